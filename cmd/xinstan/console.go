package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/xinstan/xinstan/internal/domain"
	"github.com/xinstan/xinstan/internal/transfer"
)

const barWidth = 30

// console prints notices and bulk progress for the plain CLI. On a terminal the
// progress line is redrawn in place.
type console struct {
	mu       sync.Mutex
	w        io.Writer
	terminal bool
	inLine   bool
}

func newConsole(w io.Writer, terminal bool) *console {
	return &console{w: w, terminal: terminal}
}

func (c *console) Printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.breakLine()
	fmt.Fprintf(c.w, format, args...)
}

// Notify implements transfer.Notifier.
func (c *console) Notify(level transfer.Level, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.breakLine()

	switch level {
	case transfer.LevelError:
		fmt.Fprintf(c.w, "error: %s\n", message)
	case transfer.LevelSuccess:
		if path, ok := strings.CutPrefix(message, "Saved "); ok {
			fmt.Fprintf(c.w, "Saved %s%s\n", path, sizeSuffix(path))
			return
		}
		fmt.Fprintln(c.w, message)
	default:
		fmt.Fprintln(c.w, message)
	}
}

// Progress renders a bulk job snapshot.
func (c *console) Progress(job domain.TransferJob) {
	if job.Status != domain.TransferStatusRunning {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	line := fmt.Sprintf("[%s] %d/%d (%d ok)", progressBar(job.Progress, barWidth), job.CurrentIndex, job.Total(), job.SuccessCount)
	if c.terminal {
		fmt.Fprintf(c.w, "\r%s", line)
		c.inLine = true
		return
	}
	fmt.Fprintln(c.w, line)
}

func (c *console) breakLine() {
	if c.inLine {
		fmt.Fprintln(c.w)
		c.inLine = false
	}
}

func progressBar(percent float64, width int) string {
	filled := int(percent / 100 * float64(width))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	return strings.Repeat("=", filled) + strings.Repeat(" ", width-filled)
}

func sizeSuffix(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return ""
	}
	return " (" + humanize.Bytes(uint64(info.Size())) + ")"
}
