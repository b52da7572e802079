package ui

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/rivo/tview"

	"github.com/xinstan/xinstan/internal/domain"
	"github.com/xinstan/xinstan/internal/preview"
)

const progressWidth = 40

// formatProgress renders a bulk job snapshot as a progress bar line.
func formatProgress(job domain.TransferJob) string {
	if job.Status != domain.TransferStatusRunning {
		return "[gray]No bulk download running. Press [yellow]a[gray] to download all."
	}

	filled := int(job.Progress / 100 * progressWidth)
	if filled > progressWidth {
		filled = progressWidth
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", progressWidth-filled)

	return fmt.Sprintf("[green]%s[white] %3.0f%%  %d/%d files, %d ok  [gray](c to cancel)",
		bar, job.Progress, job.CurrentIndex, job.Total(), job.SuccessCount)
}

// formatPreview renders a preview session. size is negative when unknown.
func formatPreview(s preview.Session, size int, mimeType string) string {
	var b strings.Builder

	switch s.State {
	case preview.StateIdle, preview.StateClosed:
		b.WriteString("[gray]Nothing previewed.\n\nSelect an item and press Enter.")
		return b.String()
	case preview.StateLoading:
		b.WriteString("[yellow]Loading...[white]\n\n")
	case preview.StateReady:
		b.WriteString("[green]Ready[white]\n\n")
	case preview.StateFallback:
		b.WriteString("[red]Preview unavailable[white]\n\n")
	}

	b.WriteString(fmt.Sprintf("[white::b]File:[white] %s\n", s.Descriptor.SlotFilename(s.Slot)))
	b.WriteString(fmt.Sprintf("[white::b]Type:[white] %s\n", s.Descriptor.Kind))
	if s.Descriptor.QualityLabel != "" {
		b.WriteString(fmt.Sprintf("[white::b]Quality:[white] %s\n", tview.Escape(s.Descriptor.QualityLabel)))
	}
	if size >= 0 {
		b.WriteString(fmt.Sprintf("[white::b]Size:[white] %s\n", humanize.Bytes(uint64(size))))
	}
	if mimeType != "" {
		b.WriteString(fmt.Sprintf("[white::b]MIME:[white] %s\n", mimeType))
	}
	if !s.Handle.IsZero() {
		b.WriteString(fmt.Sprintf("[white::b]Handle:[white] %s\n", s.Handle))
	}

	if s.State == preview.StateFallback {
		b.WriteString(fmt.Sprintf("\n%s\n", tview.Escape(domain.UserMessage(s.Err))))
		b.WriteString(fmt.Sprintf("[gray]Source: %s\n", tview.Escape(shorten(s.FallbackURL, 80))))
		b.WriteString("\nPress [yellow]s[white] to open it in the browser.")
	} else if s.State == preview.StateReady {
		b.WriteString("\nPress [yellow]s[white] to save, [yellow]x[white] to close.")
	}

	return b.String()
}

// shorten truncates s to n runes with an ellipsis.
func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
