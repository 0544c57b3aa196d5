package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Summary is the outcome of one download run
type Summary struct {
	Child      string
	OutputDir  string
	AuthMethod string
	Pages      int
	Posts      int
	Photos     int
	Downloaded int
	Skipped    int
	Planned    int
	Failed     int
	Elapsed    time.Duration
}

// HistoryRow is one line of the download history
type HistoryRow struct {
	When   time.Time
	PostID string
	Index  int
	Title  string
	Path   string
}

// AccountRow is one stored account, already sanitized
type AccountRow struct {
	Email    string
	Password string
	SchoolID uint64
	ChildID  uint64
	Modified time.Time
}

// NewTable returns a table writer mirrored to w
func NewTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

// RenderSummary prints the run summary
func RenderSummary(w io.Writer, s Summary) {
	t := NewTable(w)
	t.SetTitle("Download summary")
	t.AppendRows([]table.Row{
		{"Child", s.Child},
		{"Output", s.OutputDir},
		{"Signed in via", s.AuthMethod},
		{"Pages", s.Pages},
		{"Posts", s.Posts},
		{"Photos", s.Photos},
	})
	t.AppendSeparator()
	t.AppendRow(table.Row{"Downloaded", s.Downloaded})
	t.AppendRow(table.Row{"Already present", s.Skipped})
	if s.Planned > 0 {
		t.AppendRow(table.Row{"Would download", s.Planned})
	}
	t.AppendRow(table.Row{"Failed", s.Failed})
	t.AppendSeparator()
	t.AppendRow(table.Row{"Elapsed", formatDuration(s.Elapsed)})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
	})
	t.Render()
}

// RenderHistory prints recent downloads, newest first
func RenderHistory(w io.Writer, rows []HistoryRow) {
	t := NewTable(w)
	t.AppendHeader(table.Row{"Downloaded", "Post", "#", "Title", "File"})
	for _, r := range rows {
		t.AppendRow(table.Row{
			r.When.Local().Format("2006-01-02 15:04"),
			r.PostID,
			r.Index,
			truncate(r.Title, 40),
			r.Path,
		})
	}
	t.AppendFooter(table.Row{"", "", "", "Total", len(rows)})
	t.Render()
}

// RenderAccounts prints stored accounts
func RenderAccounts(w io.Writer, rows []AccountRow) {
	t := NewTable(w)
	t.AppendHeader(table.Row{"Email", "Password", "School", "Child", "Last modified"})
	for _, r := range rows {
		t.AppendRow(table.Row{
			r.Email,
			r.Password,
			r.SchoolID,
			r.ChildID,
			r.Modified.Local().Format("2006-01-02 15:04:05"),
		})
	}
	t.Render()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return fmt.Sprintf("%s...", string(r[:n-3]))
}
