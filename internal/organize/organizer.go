package organize

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lotas/tabheinzel/internal/applog"
	"github.com/lotas/tabheinzel/internal/classify"
	"github.com/lotas/tabheinzel/internal/domain"
	"github.com/lotas/tabheinzel/internal/important"
	"github.com/lotas/tabheinzel/internal/storage"
	"github.com/lotas/tabheinzel/internal/types"
)

// ErrWindowGone is returned when a window closed before its pass started.
var ErrWindowGone = errors.New("window no longer exists")

// Pass sources recorded in the history.
const (
	SourceDebounce = "debounce"
	SourceManual   = "manual"
)

// ImportantSource yields the current Important set.
type ImportantSource interface {
	Set(ctx context.Context) (important.Set, error)
}

// Recorder persists pass summaries.
type Recorder interface {
	RecordPass(ctx context.Context, p storage.Pass) error
}

// Organizer runs full reorganization passes. It does not serialize passes
// itself; the scheduler owns the busy flag.
type Organizer struct {
	Host      Host
	Important ImportantSource
	Roots     *domain.Classifier
	Exec      ExecOptions
	// Recorder is optional.
	Recorder Recorder

	// now and newID are replaced in tests.
	now   func() time.Time
	newID func() string
}

// NewOrganizer returns an Organizer with default execution options.
func NewOrganizer(host Host, imp ImportantSource, roots *domain.Classifier) *Organizer {
	return &Organizer{
		Host:      host,
		Important: imp,
		Roots:     roots,
		Exec:      DefaultExecOptions(),
		now:       time.Now,
		newID:     func() string { return uuid.Must(uuid.NewV7()).String() },
	}
}

// Outcome describes one window's pass.
type Outcome struct {
	WindowID int
	Plan     *Plan
	Report   *Report
	Closed   int
}

// OrganizeWindow reorganizes one window. A window that no longer exists is
// reported as ErrWindowGone without touching anything.
func (o *Organizer) OrganizeWindow(ctx context.Context, windowID int) (*Outcome, error) {
	ok, err := o.windowExists(ctx, windowID)
	if err != nil {
		return nil, err
	}
	if !ok {
		applog.Info("pass.window_gone", "window", windowID)
		return nil, ErrWindowGone
	}
	tabs, err := o.Host.QueryTabs(ctx, TabQuery{WindowID: windowID})
	if err != nil {
		return nil, fmt.Errorf("query tabs of window %d: %w", windowID, err)
	}
	return o.organize(ctx, windowID, tabs, SourceDebounce, 0)
}

// OrganizeAll reorganizes every window. Exact duplicate URLs within a
// window are closed first; the plan is computed from the remaining tabs,
// or from all of them when the close fails.
// Per-window failures are logged and joined into the returned error.
func (o *Organizer) OrganizeAll(ctx context.Context) ([]*Outcome, error) {
	windows, err := o.Host.Windows(ctx)
	if err != nil {
		return nil, fmt.Errorf("list windows: %w", err)
	}

	var outcomes []*Outcome
	var errs []error
	for _, w := range windows {
		tabs, err := o.Host.QueryTabs(ctx, TabQuery{WindowID: w.ID})
		if err != nil {
			applog.Error("pass.query", err, "window", w.ID)
			errs = append(errs, fmt.Errorf("window %d: %w", w.ID, err))
			continue
		}

		keep, dupes := classify.Duplicates(tabs)
		closed := 0
		if len(dupes) > 0 {
			if err := o.Host.CloseTabs(ctx, dupes); err != nil {
				// The duplicates are still open, so they stay in the plan.
				applog.Error("pass.close_duplicates", err, "window", w.ID, "tabs", len(dupes))
				keep = tabs
			} else {
				closed = len(dupes)
				applog.Info("pass.closed_duplicates", "window", w.ID, "tabs", closed)
			}
		}

		out, err := o.organize(ctx, w.ID, keep, SourceManual, closed)
		if err != nil {
			errs = append(errs, fmt.Errorf("window %d: %w", w.ID, err))
			continue
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, errors.Join(errs...)
}

func (o *Organizer) organize(ctx context.Context, windowID int, tabs []*types.Tab, source string, closed int) (*Outcome, error) {
	now := o.now
	if now == nil {
		now = time.Now
	}
	start := now()

	// Collapsed flags are read before anything moves.
	groups, err := o.Host.QueryGroups(ctx, windowID)
	if err != nil {
		applog.Error("pass.groups", err, "window", windowID)
		groups = nil
	}
	state := CaptureState(groups)

	set, err := o.Important.Set(ctx)
	if err != nil {
		applog.Error("pass.important", err, "window", windowID)
		set = important.Set{}
	}

	plan := Build(windowID, tabs, set, o.Roots)
	applog.Info("pass.start", "window", windowID, "source", source,
		"tabs", len(plan.Entries), "buckets", len(plan.Buckets), "skipped", len(plan.Skipped))

	report := Execute(ctx, o.Host, plan, state, o.Exec)
	elapsed := now().Sub(start)
	applog.Info("pass.done", "window", windowID, "moved", report.Moved,
		"groups", report.Grouped, "failures", report.Failures(), "ms", elapsed.Milliseconds())

	if o.Recorder != nil {
		id := uuid.NewString()
		if o.newID != nil {
			id = o.newID()
		}
		err := o.Recorder.RecordPass(ctx, storage.Pass{
			PassID:    id,
			Trigger:   source,
			WindowID:  windowID,
			Tabs:      len(plan.Entries),
			Groups:    report.Grouped,
			Closed:    closed,
			Failures:  report.Failures(),
			StartedAt: start,
			Duration:  elapsed,
		})
		if err != nil {
			applog.Error("pass.record", err, "window", windowID)
		}
	}

	return &Outcome{WindowID: windowID, Plan: plan, Report: report, Closed: closed}, nil
}

func (o *Organizer) windowExists(ctx context.Context, windowID int) (bool, error) {
	windows, err := o.Host.Windows(ctx)
	if err != nil {
		return false, fmt.Errorf("list windows: %w", err)
	}
	for _, w := range windows {
		if w.ID == windowID {
			return true, nil
		}
	}
	return false, nil
}
