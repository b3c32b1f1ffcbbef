package export

import (
	"time"

	"github.com/lotas/tabheinzel/internal/domain"
	"github.com/lotas/tabheinzel/internal/important"
	"github.com/lotas/tabheinzel/internal/organize"
	"github.com/lotas/tabheinzel/internal/types"
)

// WindowPlan is one window's plan with the tabs it was built from.
type WindowPlan struct {
	WindowID int
	Plan     *organize.Plan
	Tabs     []*types.Tab
}

// PlanReport is a dry run over a whole session.
type PlanReport struct {
	Profile     string
	GeneratedAt time.Time
	Windows     []WindowPlan
}

// NewPlanReport builds a plan for every window of a session without
// touching the browser.
func NewPlanReport(sd *types.SessionData, set important.Set, roots *domain.Classifier, now time.Time) *PlanReport {
	r := &PlanReport{Profile: sd.Profile.Name, GeneratedAt: now}
	for _, windowID := range sd.Windows {
		tabs := sd.TabsInWindow(windowID)
		r.Windows = append(r.Windows, WindowPlan{
			WindowID: windowID,
			Plan:     organize.Build(windowID, tabs, set, roots),
			Tabs:     tabs,
		})
	}
	return r
}

func (w WindowPlan) lookup() map[int]*types.Tab {
	m := make(map[int]*types.Tab, len(w.Tabs))
	for _, t := range w.Tabs {
		m[t.ID] = t
	}
	return m
}

func tabCount(n int) string {
	if n == 1 {
		return "1 tab"
	}
	return itoa(n) + " tabs"
}
