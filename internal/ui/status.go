package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// RankStatus is the progress of one rank group.
type RankStatus struct {
	Rank     int  `json:"rank"`
	Boundary bool `json:"boundary"`
	Total    int  `json:"total"`
	Pending  int  `json:"pending"`
}

// RunSummary describes the most recent run.
type RunSummary struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	Phases     string    `json:"phases"`
	Attempted  int       `json:"attempted"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Complete   bool      `json:"complete"`
	Cancelled  bool      `json:"cancelled"`
}

// StatusInfo is what 'geoidx status' reports.
type StatusInfo struct {
	Database     string       `json:"database"`
	DatabaseSize int64        `json:"database_size"`
	Indexed      bool         `json:"indexed"` // run-level flag
	Total        int          `json:"total"`
	Pending      int          `json:"pending"`
	Ranks        []RankStatus `json:"ranks"`
	Transient    int          `json:"transient_failures"`
	Permanent    int          `json:"permanent_failures"`
	SearchDocs   int          `json:"search_documents"`
	LastRun      *RunSummary  `json:"last_run,omitempty"`
}

// StatusRenderer displays database indexing status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{out: out, styles: GetStyles(noColor)}
}

// Render displays status info to the terminal.
func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Index Status: "+info.Database))

	flag := r.styles.Warning.Render("no")
	if info.Indexed {
		flag = r.styles.Success.Render("yes")
	}
	_, _ = fmt.Fprintf(r.out, "  Indexed:  %s\n", flag)
	_, _ = fmt.Fprintf(r.out, "  Places:   %d (%s pending)\n", info.Total, r.renderPending(info.Pending))
	_, _ = fmt.Fprintf(r.out, "  Size:     %s\n", FormatBytes(info.DatabaseSize))
	if info.SearchDocs > 0 {
		_, _ = fmt.Fprintf(r.out, "  Search:   %d documents\n", info.SearchDocs)
	}
	_, _ = fmt.Fprintln(r.out)

	if len(info.Ranks) > 0 {
		_, _ = fmt.Fprintln(r.out, "  Ranks:")
		for _, rs := range info.Ranks {
			kind := "rank    "
			if rs.Boundary {
				kind = "boundary"
			}
			_, _ = fmt.Fprintf(r.out, "    %s %2d  %8d total  %s pending\n",
				kind, rs.Rank, rs.Total, r.renderPending(rs.Pending))
		}
		_, _ = fmt.Fprintln(r.out)
	}

	if info.Transient > 0 || info.Permanent > 0 {
		_, _ = fmt.Fprintln(r.out, "  Failures:")
		_, _ = fmt.Fprintf(r.out, "    Transient: %s\n", r.styles.Warning.Render(fmt.Sprint(info.Transient)))
		_, _ = fmt.Fprintf(r.out, "    Permanent: %s\n", r.styles.Error.Render(fmt.Sprint(info.Permanent)))
		_, _ = fmt.Fprintln(r.out)
	}

	if run := info.LastRun; run != nil {
		_, _ = fmt.Fprintln(r.out, "  Last run:")
		_, _ = fmt.Fprintf(r.out, "    ID:      %s\n", run.ID)
		_, _ = fmt.Fprintf(r.out, "    Started: %s\n", formatTime(run.StartedAt))
		_, _ = fmt.Fprintf(r.out, "    Phases:  %s\n", run.Phases)
		_, _ = fmt.Fprintf(r.out, "    Result:  %s (%d/%d indexed, %d failed)\n",
			r.renderRunState(run), run.Succeeded, run.Attempted, run.Failed)
	}
	return nil
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

func (r *StatusRenderer) renderPending(n int) string {
	s := fmt.Sprint(n)
	if n == 0 {
		return r.styles.Success.Render(s)
	}
	return r.styles.Warning.Render(s)
}

func (r *StatusRenderer) renderRunState(run *RunSummary) string {
	switch {
	case run.FinishedAt.IsZero():
		return r.styles.Error.Render("interrupted")
	case run.Cancelled:
		return r.styles.Warning.Render("cancelled")
	case run.Complete:
		return r.styles.Success.Render("complete")
	default:
		return r.styles.Warning.Render("incomplete")
	}
}

// formatTime formats a time relative to now.
func formatTime(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute") + " ago"
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour") + " ago"
	case diff < 7*24*time.Hour:
		return plural(int(diff.Hours()/24), "day") + " ago"
	default:
		return t.Format("2006-01-02 15:04")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
