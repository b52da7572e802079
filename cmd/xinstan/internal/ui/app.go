// Package ui provides the terminal user interface for xinstan.
package ui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/xinstan/xinstan/internal/domain"
	"github.com/xinstan/xinstan/internal/preview"
	"github.com/xinstan/xinstan/internal/transfer"
)

// Panel represents a UI panel type.
type Panel int

const (
	PanelMain Panel = iota
	PanelHelp
)

// Options configure the header and status texts.
type Options struct {
	ServerURL string
	OutputDir string
	Version   string
}

// App is the main TUI application.
type App struct {
	app          *tview.Application
	pages        *tview.Pages
	opts         Options
	orch         *transfer.Orchestrator
	preview      *preview.Manager
	currentPanel Panel
	ctx          context.Context
	cancel       context.CancelFunc

	// UI components
	mainFlex     *tview.Flex
	header       *tview.TextView
	footer       *tview.TextView
	statusBar    *tview.TextView
	urlInput     *tview.InputField
	mediaTable   *tview.Table
	previewView  *tview.TextView
	progressView *tview.TextView
	helpView     *tview.TextView

	// State
	itemsMu sync.RWMutex
	items   []domain.MediaDescriptor
}

// NewApp creates a new TUI application. Bind must be called before Run.
func NewApp(opts Options) *App {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		app:    tview.NewApplication(),
		pages:  tview.NewPages(),
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
	}

	a.setupUI()
	return a
}

// Bind attaches the session services and subscribes to their state changes.
func (a *App) Bind(orch *transfer.Orchestrator, prev *preview.Manager) {
	a.orch = orch
	a.preview = prev

	orch.OnProgress(func(job domain.TransferJob) {
		a.app.QueueUpdateDraw(func() {
			a.progressView.SetText(formatProgress(job))
		})
	})
	prev.OnChange(func(s preview.Session) {
		a.app.QueueUpdateDraw(func() {
			a.previewView.SetText(a.describePreview(s))
		})
	})
}

// SetInitialURL pre-fills the URL field and resolves it once the UI is running.
func (a *App) SetInitialURL(postURL string) {
	a.urlInput.SetText(postURL)
	go a.resolve(postURL)
}

// Notify implements transfer.Notifier by writing to the status bar.
func (a *App) Notify(level transfer.Level, message string) {
	color := "white"
	switch level {
	case transfer.LevelSuccess:
		color = "green"
	case transfer.LevelError:
		color = "red"
	}
	a.updateStatusBar(fmt.Sprintf("[%s]%s", color, tview.Escape(message)))
}

// setupUI initializes all UI components.
func (a *App) setupUI() {
	// Header
	a.header = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.header.SetBackgroundColor(tcell.ColorDarkBlue)
	a.updateHeader()

	// Footer with keybindings
	a.footer = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter).
		SetText("[yellow]/[white]:URL [yellow]Enter[white]:Preview [yellow]d[white]:Download [yellow]a[white]:All [yellow]c[white]:Cancel [yellow]s[white]:Save preview [yellow]x[white]:Close [yellow]?[white]:Help [yellow]q[white]:Quit")
	a.footer.SetBackgroundColor(tcell.ColorDarkBlue)

	// Status bar
	a.statusBar = tview.NewTextView().
		SetDynamicColors(true)
	a.statusBar.SetBackgroundColor(tcell.ColorDarkGreen)

	a.urlInput = tview.NewInputField().
		SetLabel(" Post URL: ").
		SetFieldWidth(0).
		SetPlaceholder("https://www.instagram.com/p/...")
	a.urlInput.SetBorder(true)
	a.urlInput.SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEnter:
			go a.resolve(a.urlInput.GetText())
			a.app.SetFocus(a.mediaTable)
		case tcell.KeyEscape:
			a.app.SetFocus(a.mediaTable)
		}
	})

	a.createMediaPanel()
	a.createPreviewPanel()
	a.createHelpPanel()

	a.progressView = tview.NewTextView().
		SetDynamicColors(true)
	a.progressView.SetBorder(true).SetTitle(" Bulk download ")
	a.progressView.SetText(formatProgress(domain.TransferJob{Status: domain.TransferStatusIdle}))

	body := tview.NewFlex().
		AddItem(a.mediaTable, 0, 2, true).
		AddItem(a.previewView, 0, 1, false)

	mainView := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.urlInput, 3, 0, false).
		AddItem(body, 0, 1, true).
		AddItem(a.progressView, 3, 0, false)

	a.pages.AddPage("main", mainView, true, true)
	a.pages.AddPage("help", a.helpView, true, false)

	// Main layout
	a.mainFlex = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.header, 3, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false).
		AddItem(a.footer, 1, 0, false)

	// Global key bindings
	a.app.SetInputCapture(a.handleGlobalKeys)

	a.app.SetRoot(a.mainFlex, true).SetFocus(a.urlInput)
}

// handleGlobalKeys handles global keyboard shortcuts.
func (a *App) handleGlobalKeys(event *tcell.EventKey) *tcell.EventKey {
	// Don't intercept when typing in the URL field
	if a.app.GetFocus() == a.urlInput {
		return event
	}

	switch event.Key() {
	case tcell.KeyRune:
		switch event.Rune() {
		case '/', 'u':
			a.switchPanel(PanelMain)
			a.app.SetFocus(a.urlInput)
			return nil
		case 'a', 'A':
			go a.downloadAll()
			return nil
		case 'c', 'C':
			a.orch.Cancel()
			return nil
		case 's', 'S':
			go a.savePreview()
			return nil
		case 'x', 'X':
			a.preview.Close()
			return nil
		case '?':
			a.switchPanel(PanelHelp)
			return nil
		case 'q', 'Q':
			a.Stop()
			return nil
		}
	case tcell.KeyEscape:
		a.switchPanel(PanelMain)
		return nil
	}

	return event
}

// switchPanel switches to the specified panel.
func (a *App) switchPanel(panel Panel) {
	a.currentPanel = panel

	switch panel {
	case PanelMain:
		a.pages.SwitchToPage("main")
		a.app.SetFocus(a.mediaTable)
	case PanelHelp:
		a.pages.SwitchToPage("help")
	}

	a.updateHeader()
}

// updateHeader updates the header with current panel name.
func (a *App) updateHeader() {
	panelName := "Media"
	if a.currentPanel == PanelHelp {
		panelName = "Help"
	}

	a.header.SetText(fmt.Sprintf("\n[white::b]xinstan %s[white] - [yellow]%s[white] | Server: [green]%s[white] | Saving to: [green]%s",
		a.opts.Version, panelName, a.opts.ServerURL, a.opts.OutputDir))
}

// updateStatusBar updates the status bar from any goroutine.
func (a *App) updateStatusBar(msg string) {
	a.app.QueueUpdateDraw(func() {
		a.statusBar.SetText(fmt.Sprintf(" %s | %s", msg, time.Now().Format("15:04:05")))
	})
}

// Run starts the TUI application.
func (a *App) Run() error {
	defer a.cancel()
	return a.app.Run()
}

// Stop stops the TUI application.
func (a *App) Stop() {
	a.cancel()
	if a.orch != nil {
		a.orch.Cancel()
	}
	if a.preview != nil {
		a.preview.Close()
	}
	a.app.Stop()
}

func (a *App) resolve(postURL string) {
	postURL = strings.TrimSpace(postURL)
	if postURL == "" {
		return
	}

	a.preview.Close()
	a.updateStatusBar("Resolving...")

	items, _ := a.orch.Resolve(a.ctx, postURL)

	a.itemsMu.Lock()
	a.items = items
	a.itemsMu.Unlock()

	a.app.QueueUpdateDraw(a.updateMediaTable)
}

func (a *App) downloadAll() {
	items := a.getItems()
	if len(items) == 0 {
		a.Notify(transfer.LevelError, "Nothing to download")
		return
	}
	if _, err := a.orch.DownloadAll(a.ctx, items); err != nil {
		a.Notify(transfer.LevelError, err.Error())
	}
}

func (a *App) downloadOne(slot int) {
	items := a.getItems()
	if slot < 0 || slot >= len(items) {
		return
	}
	a.orch.DownloadOne(a.ctx, items[slot], slot)
}

func (a *App) openPreview(slot int) {
	items := a.getItems()
	if slot < 0 || slot >= len(items) {
		return
	}
	a.preview.Open(a.ctx, items[slot], slot)
}

func (a *App) savePreview() {
	if _, err := a.preview.Download(a.ctx); err != nil {
		a.Notify(transfer.LevelError, err.Error())
	}
}

// getItems returns the currently listed media.
func (a *App) getItems() []domain.MediaDescriptor {
	a.itemsMu.RLock()
	defer a.itemsMu.RUnlock()
	return a.items
}
