package ui

import (
	"github.com/rivo/tview"
)

// createHelpPanel creates the help panel.
func (a *App) createHelpPanel() {
	a.helpView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	a.helpView.SetBorder(true).SetTitle(" Help ")

	helpText := `[yellow::b]xinstan - Instagram media downloader[white]

Paste a post, reel, story or IGTV link, list its media and save
them through the xinstan server.

[yellow::b]GLOBAL NAVIGATION[white]
[cyan]/[white] or [cyan]u[white]       URL            - Focus the post URL field
[cyan]a[white]            Download all   - Save every item, one at a time
[cyan]c[white]            Cancel         - Stop the bulk download after the current item
[cyan]s[white]            Save preview   - Save the previewed item
[cyan]x[white]            Close preview  - Release the previewed item
[cyan]?[white]            Help           - This help screen
[cyan]q[white]            Quit           - Exit the application
[cyan]Escape[white]       Media          - Return to the media list

[yellow::b]URL FIELD[white]
[cyan]Enter[white]        Resolve the post
[cyan]Escape[white]       Back to the media list

[yellow::b]MEDIA LIST[white]
[cyan]Enter[white]        Preview the selected item
[cyan]p[white]            Preview (same as Enter)
[cyan]d[white]            Download the selected item

Single downloads that cannot go through the server open the
media in the browser instead. Bulk downloads skip failed items
and report how many files were saved.

Press [yellow]Escape[white] to return.`

	a.helpView.SetText(helpText)
}
