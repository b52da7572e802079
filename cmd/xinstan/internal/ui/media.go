package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/xinstan/xinstan/internal/preview"
)

// createMediaPanel creates the table listing the resolved media.
func (a *App) createMediaPanel() {
	a.mediaTable = tview.NewTable().
		SetBorders(false).
		SetSelectable(true, false).
		SetFixed(1, 0)
	a.mediaTable.SetBorder(true).SetTitle(" Media - Enter to preview, 'd' to download ")

	a.mediaTable.SetSelectedStyle(tcell.StyleDefault.
		Foreground(tcell.ColorWhite).
		Background(tcell.ColorDarkCyan))

	// Header row
	headers := []string{"#", "TYPE", "FILE", "QUALITY", "SOURCE"}
	for i, h := range headers {
		cell := tview.NewTableCell(h).
			SetTextColor(tcell.ColorYellow).
			SetSelectable(false).
			SetExpansion(1)
		if i == len(headers)-1 {
			cell.SetExpansion(3)
		}
		a.mediaTable.SetCell(0, i, cell)
	}

	a.mediaTable.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		row, _ := a.mediaTable.GetSelection()
		if row == 0 || row > len(a.getItems()) {
			return event
		}
		slot := row - 1

		switch event.Key() {
		case tcell.KeyEnter:
			a.openPreview(slot)
			return nil
		case tcell.KeyRune:
			switch event.Rune() {
			case 'd', 'D':
				go a.downloadOne(slot)
				return nil
			case 'p', 'P':
				a.openPreview(slot)
				return nil
			}
		}
		return event
	})
}

// updateMediaTable redraws the media rows. Must run on the UI goroutine.
func (a *App) updateMediaTable() {
	// Clear existing rows (except header)
	for row := a.mediaTable.GetRowCount() - 1; row > 0; row-- {
		a.mediaTable.RemoveRow(row)
	}

	for i, d := range a.getItems() {
		row := i + 1

		kindColor := tcell.ColorWhite
		if d.IsVideo() {
			kindColor = tcell.ColorFuchsia
		}

		quality := d.QualityLabel
		if quality == "" {
			quality = "-"
		}

		a.mediaTable.SetCell(row, 0, tview.NewTableCell(fmt.Sprintf("%d", row)).SetExpansion(1))
		a.mediaTable.SetCell(row, 1, tview.NewTableCell(d.Kind.String()).SetExpansion(1).SetTextColor(kindColor))
		a.mediaTable.SetCell(row, 2, tview.NewTableCell(d.SlotFilename(i)).SetExpansion(1))
		a.mediaTable.SetCell(row, 3, tview.NewTableCell(quality).SetExpansion(1))
		a.mediaTable.SetCell(row, 4, tview.NewTableCell(shorten(d.SourceURL, 60)).SetExpansion(3).SetTextColor(tcell.ColorGray))
	}

	if a.mediaTable.GetRowCount() > 1 {
		a.mediaTable.Select(1, 0)
	}
}

// createPreviewPanel creates the preview details pane.
func (a *App) createPreviewPanel() {
	a.previewView = tview.NewTextView().
		SetDynamicColors(true).
		SetWordWrap(true)
	a.previewView.SetBorder(true).SetTitle(" Preview ")
	a.previewView.SetText(a.describePreview(preview.Session{State: preview.StateIdle}))
}

// describePreview renders the preview pane, looking up the loaded object's size.
func (a *App) describePreview(s preview.Session) string {
	size := -1
	mimeType := ""
	if s.State == preview.StateReady && a.preview != nil {
		if blob, ok := a.preview.Blob(); ok {
			size = blob.Size()
			mimeType = blob.MIMEType()
		}
	}
	return formatPreview(s, size, mimeType)
}
