package transfer

import (
	"errors"
	"os/exec"
	"runtime"
	"testing"
)

func TestBrowserOpener_Open(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX true binary")
	}
	truePath, err := exec.LookPath("true")
	if err != nil {
		t.Skip("true not available")
	}

	var gotName string
	var gotArgs []string
	o := &BrowserOpener{command: func(name string, args ...string) *exec.Cmd {
		gotName = name
		gotArgs = args
		return exec.Command(truePath)
	}}

	url := "https://scontent.cdninstagram.com/v/a.mp4"
	if err := o.Open(url); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if gotName == "" {
		t.Fatal("launcher not invoked")
	}
	if len(gotArgs) == 0 || gotArgs[len(gotArgs)-1] != url {
		t.Errorf("args = %v, want url last", gotArgs)
	}
}

func TestBrowserOpener_StartFailure(t *testing.T) {
	o := &BrowserOpener{command: func(string, ...string) *exec.Cmd {
		return exec.Command("/nonexistent/xinstan-launcher")
	}}

	if err := o.Open("https://example.com"); err == nil {
		t.Error("expected error when the launcher cannot start")
	}
}

func TestBrowserOpener_RejectsNonWebURLs(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"file scheme", "file:///etc/passwd"},
		{"flag", "--help"},
		{"windows path", `C:\Windows\System32\calc.exe`},
		{"relative path", "downloads/a.jpg"},
		{"javascript scheme", "javascript:alert(1)"},
		{"missing host", "https:///a.jpg"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			o := &BrowserOpener{command: func(string, ...string) *exec.Cmd {
				called = true
				return exec.Command("/nonexistent/xinstan-launcher")
			}}

			err := o.Open(tt.url)
			if !errors.Is(err, ErrUnsafeURL) {
				t.Errorf("err = %v, want ErrUnsafeURL", err)
			}
			if called {
				t.Error("launcher invoked for rejected url")
			}
		})
	}
}
