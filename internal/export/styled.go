package export

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// groupColors maps tab group colors to terminal colors.
var groupColors = map[string]lipgloss.Color{
	"grey":   lipgloss.Color("245"),
	"blue":   lipgloss.Color("33"),
	"red":    lipgloss.Color("196"),
	"yellow": lipgloss.Color("220"),
	"green":  lipgloss.Color("34"),
	"pink":   lipgloss.Color("205"),
	"purple": lipgloss.Color("135"),
	"cyan":   lipgloss.Color("44"),
	"orange": lipgloss.Color("208"),
}

var (
	windowStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// GroupStyle returns the style used for a group header of the given color.
func GroupStyle(color string) lipgloss.Style {
	s := lipgloss.NewStyle().Bold(true)
	if c, ok := groupColors[color]; ok {
		s = s.Foreground(c)
	}
	return s
}

// Styled formats a dry run for a terminal, with group headers in their
// tab group colors.
func Styled(r *PlanReport) string {
	var b strings.Builder
	for i, w := range r.Windows {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(windowStyle.Render(fmt.Sprintf("Window %d", w.WindowID)))
		b.WriteString("\n")
		tabs := w.lookup()
		for _, bucket := range w.Plan.Buckets {
			header := fmt.Sprintf("■ %s", bucket.Title)
			fmt.Fprintf(&b, "  %s %s\n", GroupStyle(bucket.Color).Render(header), dimStyle.Render("("+tabCount(len(bucket.TabIDs))+")"))
			for _, id := range bucket.TabIDs {
				tab := tabs[id]
				if tab == nil {
					continue
				}
				title := tab.Title
				if title == "" {
					title = tab.URL
				}
				fmt.Fprintf(&b, "    %s\n", title)
			}
		}
		if n := len(w.Plan.Skipped); n > 0 {
			fmt.Fprintf(&b, "  %s\n", dimStyle.Render(tabCount(n)+" left in place"))
		}
	}
	return b.String()
}
