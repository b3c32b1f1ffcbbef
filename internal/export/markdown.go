package export

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Markdown formats a dry run as a markdown document.
func Markdown(r *PlanReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Tab plan — %s\n", r.Profile)
	fmt.Fprintf(&b, "> Planned %s\n", r.GeneratedAt.Format("2006-01-02 15:04"))

	for _, w := range r.Windows {
		fmt.Fprintf(&b, "\n## Window %d\n", w.WindowID)
		tabs := w.lookup()
		for _, bucket := range w.Plan.Buckets {
			fmt.Fprintf(&b, "\n### %s (%s, %s)\n\n", bucket.Title, tabCount(len(bucket.TabIDs)), bucket.Color)
			for _, id := range bucket.TabIDs {
				tab := tabs[id]
				if tab == nil {
					continue
				}
				title := tab.Title
				if title == "" {
					title = tab.URL
				}
				fmt.Fprintf(&b, "- [%s](%s) — %s\n", title, tab.URL, relativeTime(tab.LastAccessed))
			}
		}
		if n := len(w.Plan.Skipped); n > 0 {
			fmt.Fprintf(&b, "\n_%s left in place_\n", tabCount(n))
		}
	}

	return b.String()
}

func relativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
