// xinstan - fetch the media of an Instagram post through an xinstan server.
// Runs as a plain line-oriented CLI or, with -tui, as a terminal UI.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/xinstan/xinstan/cmd/xinstan/internal/ui"
	"github.com/xinstan/xinstan/internal/client"
	"github.com/xinstan/xinstan/internal/config"
	"github.com/xinstan/xinstan/internal/domain"
	"github.com/xinstan/xinstan/internal/objectstore"
	"github.com/xinstan/xinstan/internal/preview"
	"github.com/xinstan/xinstan/internal/transfer"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

type options struct {
	configPath string
	serverURL  string
	outputDir  string
	tui        bool
	all        bool
	item       int
	preview    int
	verbose    bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Path to config file")
	flag.StringVar(&opts.serverURL, "server", "", "xinstan server URL (overrides config)")
	flag.StringVar(&opts.outputDir, "out", "", "Directory to save media into (overrides config)")
	flag.BoolVar(&opts.tui, "tui", false, "Run the interactive terminal UI")
	flag.BoolVar(&opts.all, "all", false, "Download every media item of the post")
	flag.IntVar(&opts.item, "item", 0, "Download only the given item (1-based)")
	flag.IntVar(&opts.preview, "preview", 0, "Load the given item (1-based) into memory, show it, then save it")
	flag.BoolVar(&opts.verbose, "v", false, "Verbose logging")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: xinstan [flags] <instagram-post-url>\n       xinstan -tui [flags]\n\nFlags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("xinstan %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	if err := run(opts, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options, args []string) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.serverURL != "" {
		cfg.Client.ServerURL = opts.serverURL
	}
	if opts.outputDir != "" {
		cfg.Client.OutputDir = opts.outputDir
	}
	if err := cfg.ValidateClient(); err != nil {
		return err
	}

	interactive := term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
	if opts.tui && !interactive {
		return errors.New("-tui requires an interactive terminal")
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	var logOut io.Writer = os.Stderr
	if opts.tui {
		// The terminal belongs to the UI.
		logOut = io.Discard
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gateway := client.New(cfg.Client, logger)
	store := objectstore.NewStore(cfg.Client.MaxHandles)
	saver := transfer.NewFileSaver(cfg.Client.OutputDir)
	opener := transfer.NewBrowserOpener()

	if opts.tui {
		app := ui.NewApp(ui.Options{
			ServerURL: cfg.Client.ServerURL,
			OutputDir: cfg.Client.OutputDir,
			Version:   Version,
		})
		orch := transfer.New(gateway, gateway, store, saver, opener, app, cfg.Client.BulkPause, logger)
		prev := preview.NewManager(gateway, store, orch, logger)
		app.Bind(orch, prev)
		if len(args) > 0 {
			app.SetInitialURL(args[0])
		}
		return app.Run()
	}

	if len(args) != 1 {
		flag.Usage()
		return errors.New("expected exactly one post URL")
	}

	out := newConsole(os.Stdout, term.IsTerminal(int(os.Stdout.Fd())))
	orch := transfer.New(gateway, gateway, store, saver, opener, out, cfg.Client.BulkPause, logger)
	return runPlain(ctx, out, orch, preview.NewManager(gateway, store, orch, logger), opts, strings.TrimSpace(args[0]))
}

func runPlain(ctx context.Context, out *console, orch *transfer.Orchestrator, prev *preview.Manager, opts options, postURL string) error {
	items, err := orch.Resolve(ctx, postURL)
	if err != nil {
		return errors.New(domain.UserMessage(err))
	}

	for i, d := range items {
		out.Printf("%2d. %-5s %s\n", i+1, d.Kind, d.SlotFilename(i))
	}

	switch {
	case opts.all:
		orch.OnProgress(out.Progress)
		go func() {
			<-ctx.Done()
			orch.Cancel()
		}()
		summary, err := orch.DownloadAll(ctx, items)
		if err != nil {
			return err
		}
		if summary.Outcome == domain.TransferOutcomeNone {
			return errors.New("no files were downloaded")
		}
		return nil

	case opts.item > 0:
		d, err := pick(items, opts.item)
		if err != nil {
			return err
		}
		outcome, err := orch.DownloadOne(ctx, d, opts.item-1)
		if err != nil {
			return err
		}
		if outcome == transfer.OutcomeOpenedExternally {
			out.Printf("Opened %s in the browser\n", d.SourceURL)
		}
		return nil

	case opts.preview > 0:
		d, err := pick(items, opts.preview)
		if err != nil {
			return err
		}
		prev.Open(ctx, d, opts.preview-1)
		prev.Wait()
		defer prev.Close()

		s := prev.Current()
		switch s.State {
		case preview.StateReady:
			blob, ok := prev.Blob()
			if !ok {
				return errors.New("preview was released")
			}
			out.Printf("Loaded %s (%s, %s)\n", d.SlotFilename(opts.preview-1), humanize.Bytes(uint64(blob.Size())), blob.MIMEType())
		case preview.StateFallback:
			out.Printf("Preview unavailable (%s), using the source URL\n", domain.UserMessage(s.Err))
		}
		_, err = prev.Download(ctx)
		return err

	default:
		out.Printf("%d item(s) found. Use -all, -item N or -preview N to download.\n", len(items))
		return nil
	}
}

func pick(items []domain.MediaDescriptor, n int) (domain.MediaDescriptor, error) {
	if n < 1 || n > len(items) {
		return domain.MediaDescriptor{}, fmt.Errorf("item %d out of range (1-%d)", n, len(items))
	}
	return items[n-1], nil
}
