package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// ProgressDisplay renders a single, continuously rewritten status line for a
// download run. In verbose mode every event gets its own line instead.
type ProgressDisplay struct {
	mu         sync.Mutex
	w          io.Writer
	label      string
	pages      int
	posts      int
	photos     int
	downloaded int
	skipped    int
	failed     int
	current    string
	startTime  time.Time
	verbose    bool
	now        func() time.Time
}

// NewProgressDisplay creates a display for the child named by label
func NewProgressDisplay(w io.Writer, label string, verbose bool) *ProgressDisplay {
	return &ProgressDisplay{
		w:         w,
		label:     label,
		startTime: time.Now(),
		verbose:   verbose,
		now:       time.Now,
	}
}

// PageFetched records a crawled listing page
func (p *ProgressDisplay) PageFetched(page, posts, photos int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pages++
	p.posts += posts
	p.photos += photos

	if p.verbose {
		fmt.Fprintf(p.w, "%s page %d: %d posts, %d photos\n", Magenta("→"), page, posts, photos)
		return
	}
	p.printProgress()
}

// StartPhoto marks the photo currently being fetched
func (p *ProgressDisplay) StartPhoto(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = name
	if !p.verbose {
		p.printProgress()
	}
}

// PhotoDone records a stored or already present photo
func (p *ProgressDisplay) PhotoDone(name string, skipped bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if skipped {
		p.skipped++
	} else {
		p.downloaded++
	}
	p.current = ""

	if p.verbose {
		mark := Green("✓")
		if skipped {
			mark = Dim("=")
		}
		fmt.Fprintf(p.w, "%s %s\n", mark, name)
		return
	}
	p.printProgress()
}

// PhotoFailed records a photo that could not be stored
func (p *ProgressDisplay) PhotoFailed(name string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.failed++
	p.current = ""

	if p.verbose {
		fmt.Fprintf(p.w, "%s %s: %v\n", Red("✗"), name, err)
		return
	}
	p.printProgress()
}

// Line returns the current status line without control characters
func (p *ProgressDisplay) Line() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.line()
}

func (p *ProgressDisplay) line() string {
	done := p.downloaded + p.skipped + p.failed

	barWidth := 20
	filled := 0
	if p.photos > 0 {
		filled = done * barWidth / p.photos
		if filled > barWidth {
			filled = barWidth
		}
	}
	bar := strings.Repeat("━", filled) + strings.Repeat("─", barWidth-filled)

	line := fmt.Sprintf("%s [%s] %d/%d photos • %d pages • %s",
		p.label, bar, done, p.photos, p.pages, formatDuration(p.now().Sub(p.startTime)))
	if p.skipped > 0 {
		line += fmt.Sprintf(" • %d existing", p.skipped)
	}
	if p.current != "" {
		line += " • " + p.current
	}
	if p.failed > 0 {
		line += fmt.Sprintf(" • %d errors", p.failed)
	}
	return line
}

// printProgress rewrites the status line in place
func (p *ProgressDisplay) printProgress() {
	fmt.Fprintf(p.w, "\r%s\r%s", strings.Repeat(" ", 120), p.line())
}

// Complete ends the status line
func (p *ProgressDisplay) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.verbose {
		fmt.Fprintln(p.w)
	}
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
