package export

import (
	"encoding/json"
	"time"

	"github.com/lotas/tabheinzel/internal/domain"
)

type jsonExport struct {
	Profile   string       `json:"profile"`
	PlannedAt time.Time    `json:"planned_at"`
	Windows   []jsonWindow `json:"windows"`
}

type jsonWindow struct {
	WindowID int          `json:"window_id"`
	Groups   []jsonBucket `json:"groups"`
	Skipped  int          `json:"skipped"`
}

type jsonBucket struct {
	Title string    `json:"title"`
	Color string    `json:"color"`
	Start int       `json:"start"`
	Tabs  []jsonTab `json:"tabs"`
}

type jsonTab struct {
	ID                 int       `json:"id"`
	Index              int       `json:"index"`
	Title              string    `json:"title"`
	URL                string    `json:"url"`
	Domain             string    `json:"domain"`
	LastAccessed       time.Time `json:"last_accessed"`
	LastAccessedPretty string    `json:"last_accessed_pretty"`
}

// JSON formats a dry run as a JSON document.
func JSON(r *PlanReport) (string, error) {
	out := jsonExport{
		Profile:   r.Profile,
		PlannedAt: r.GeneratedAt,
		Windows:   make([]jsonWindow, 0, len(r.Windows)),
	}

	for _, w := range r.Windows {
		tabs := w.lookup()
		win := jsonWindow{
			WindowID: w.WindowID,
			Groups:   make([]jsonBucket, 0, len(w.Plan.Buckets)),
			Skipped:  len(w.Plan.Skipped),
		}
		for _, bucket := range w.Plan.Buckets {
			jb := jsonBucket{
				Title: bucket.Title,
				Color: bucket.Color,
				Start: bucket.Start,
				Tabs:  make([]jsonTab, 0, len(bucket.TabIDs)),
			}
			for i, id := range bucket.TabIDs {
				tab := tabs[id]
				if tab == nil {
					continue
				}
				host, _ := domain.Hostname(tab.URL)
				jb.Tabs = append(jb.Tabs, jsonTab{
					ID:                 tab.ID,
					Index:              bucket.Start + i,
					Title:              tab.Title,
					URL:                tab.URL,
					Domain:             host,
					LastAccessed:       tab.LastAccessed,
					LastAccessedPretty: relativeTime(tab.LastAccessed),
				})
			}
			win.Groups = append(win.Groups, jb)
		}
		out.Windows = append(out.Windows, win)
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}
