package transfer

import (
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

// ErrUnsafeURL is returned for anything other than an absolute http(s) URL.
var ErrUnsafeURL = errors.New("refusing to open non-web url")

// checkOpenURL rejects input the OS launcher could treat as a path, flag or other scheme.
func checkOpenURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrUnsafeURL, raw)
	}
	return nil
}

// BrowserOpener opens URLs in the system's default browser.
type BrowserOpener struct {
	// command builds the launcher; replaced in tests
	command func(name string, args ...string) *exec.Cmd
}

// NewBrowserOpener creates an opener for the current platform.
func NewBrowserOpener() *BrowserOpener {
	return &BrowserOpener{command: exec.Command}
}

// Open opens url without waiting for the browser to exit.
func (o *BrowserOpener) Open(url string) error {
	if err := checkOpenURL(url); err != nil {
		return err
	}

	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = o.command("open", url)
	case "windows":
		cmd = o.command("rundll32", "url.dll,FileProtocolHandler", url)
	case "linux", "freebsd", "openbsd", "netbsd":
		cmd = o.command("xdg-open", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open browser: %w", err)
	}
	go cmd.Wait()
	return nil
}
