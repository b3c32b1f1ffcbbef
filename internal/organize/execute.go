package organize

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lotas/tabheinzel/internal/applog"
	"github.com/lotas/tabheinzel/internal/types"
)

// GroupState maps a group title to the group that carried it before the
// pass. The first group seen for a title wins.
type GroupState map[string]*types.Group

// CaptureState records the groups of a window so collapsed flags and group
// identities survive a reorganization.
func CaptureState(groups []*types.Group) GroupState {
	state := make(GroupState, len(groups))
	for _, g := range groups {
		if _, ok := state[g.Title]; !ok {
			state[g.Title] = g
		}
	}
	return state
}

// Collapsed returns the prior collapsed flag for title, false if unknown.
func (s GroupState) Collapsed(title string) bool {
	if g, ok := s[title]; ok {
		return g.Collapsed
	}
	return false
}

// ExecOptions tunes the wait between the move and group phases.
type ExecOptions struct {
	// SettleAttempts is how often the window is re-read to confirm the
	// moves landed before grouping.
	SettleAttempts int
	SettleInterval time.Duration
	// SettlePause is slept instead when the window cannot be re-read.
	SettlePause time.Duration
}

// DefaultExecOptions returns the options used by the daemon.
func DefaultExecOptions() ExecOptions {
	return ExecOptions{
		SettleAttempts: 5,
		SettleInterval: 20 * time.Millisecond,
		SettlePause:    50 * time.Millisecond,
	}
}

// Report summarizes one Execute call. Failures are per operation; a
// failed move or group never stops the rest of the plan.
type Report struct {
	Moved       int
	MoveFailed  int
	Ungrouped   int
	Grouped     int
	GroupFailed int
	Settled     bool

	mu     sync.Mutex
	errors []error
}

func (r *Report) fail(err error) {
	r.mu.Lock()
	r.errors = append(r.errors, err)
	r.mu.Unlock()
}

// Failures returns the number of failed operations.
func (r *Report) Failures() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errors)
}

// Err joins all operation errors, or returns nil.
func (r *Report) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return errors.Join(r.errors...)
}

// Execute applies plan: every tab is moved to its target index, then each
// bucket is materialized as a group. Tabs outside the plan are not touched.
func Execute(ctx context.Context, host Host, plan *Plan, state GroupState, opts ExecOptions) *Report {
	r := &Report{}
	if plan.Empty() {
		return r
	}

	movePhase(ctx, host, plan, r)
	r.Settled = settle(ctx, host, plan, opts)
	groupPhase(ctx, host, plan, state, r)

	return r
}

// movePhase issues moves in ascending target order. Absolute moves do not
// commute, so they are not fanned out; a failed move is recorded and the
// rest of the plan still runs.
func movePhase(ctx context.Context, host Host, plan *Plan, r *Report) {
	for _, e := range plan.Entries {
		if ctx.Err() != nil {
			r.fail(fmt.Errorf("move tab %d: %w", e.TabID, ctx.Err()))
			r.MoveFailed++
			continue
		}
		if err := host.MoveTab(ctx, e.TabID, e.Index); err != nil {
			r.MoveFailed++
			r.fail(fmt.Errorf("move tab %d to %d: %w", e.TabID, e.Index, err))
			applog.Error("exec.move", err, "tab", e.TabID, "index", e.Index)
			continue
		}
		r.Moved++
	}
}

// settle waits until the planned tabs are observed in plan order. It falls
// back to a fixed pause when the window cannot be read, and gives up after
// the configured attempts.
func settle(ctx context.Context, host Host, plan *Plan, opts ExecOptions) bool {
	for attempt := 0; attempt < opts.SettleAttempts; attempt++ {
		tabs, err := host.QueryTabs(ctx, TabQuery{WindowID: plan.WindowID})
		if err != nil {
			applog.Error("exec.settle", err, "window", plan.WindowID)
			sleep(ctx, opts.SettlePause)
			return false
		}
		if inPlanOrder(plan, tabs) {
			return true
		}
		if !sleep(ctx, opts.SettleInterval) {
			return false
		}
	}
	applog.Warn("exec.settle.timeout", "window", plan.WindowID, "attempts", opts.SettleAttempts)
	return false
}

func inPlanOrder(plan *Plan, tabs []*types.Tab) bool {
	planned := make(map[int]bool, len(plan.Entries))
	for _, e := range plan.Entries {
		planned[e.TabID] = true
	}
	var observed []*types.Tab
	for _, t := range tabs {
		if planned[t.ID] {
			observed = append(observed, t)
		}
	}
	// Tabs closed since the snapshot are simply absent.
	sort.Slice(observed, func(i, j int) bool { return observed[i].Index < observed[j].Index })
	j := 0
	for _, e := range plan.Entries {
		if j < len(observed) && observed[j].ID == e.TabID {
			j++
		}
	}
	return j == len(observed)
}

func groupPhase(ctx context.Context, host Host, plan *Plan, state GroupState, r *Report) {
	fromGroup := make(map[int]int, len(plan.Entries))
	for _, e := range plan.Entries {
		fromGroup[e.TabID] = e.FromGroup
	}

	var wg sync.WaitGroup
	for _, b := range plan.Buckets {
		wg.Add(1)
		go func(b Bucket) {
			defer wg.Done()
			buildGroup(ctx, host, plan.WindowID, b, state, fromGroup, r)
		}(b)
	}
	wg.Wait()
}

func buildGroup(ctx context.Context, host Host, windowID int, b Bucket, state GroupState, fromGroup map[int]int, r *Report) {
	target := 0
	if g, ok := state[b.Title]; ok {
		target = g.ID
	}

	var stray []int
	for _, id := range b.TabIDs {
		from := fromGroup[id]
		if from != types.NoGroup && from != 0 && from != target {
			stray = append(stray, id)
		}
	}
	if len(stray) > 0 {
		if err := host.Ungroup(ctx, stray); err != nil {
			r.fail(fmt.Errorf("ungroup %d tabs for %q: %w", len(stray), b.Title, err))
			applog.Error("exec.ungroup", err, "group", b.Title, "tabs", len(stray))
		} else {
			r.mu.Lock()
			r.Ungrouped += len(stray)
			r.mu.Unlock()
		}
	}

	groupID, err := host.Group(ctx, target, b.TabIDs)
	if err != nil && target != 0 {
		// The remembered group may have vanished since the snapshot.
		applog.Warn("exec.group.recreate", "group", b.Title, "stale_id", target)
		groupID, err = host.Group(ctx, 0, b.TabIDs)
	}
	if err == nil {
		err = host.UpdateGroup(ctx, groupID, types.GroupUpdate{
			Title:     b.Title,
			Color:     b.Color,
			Collapsed: state.Collapsed(b.Title),
		})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.GroupFailed++
		r.errors = append(r.errors, fmt.Errorf("group %q: %w", b.Title, err))
		applog.Error("exec.group", err, "group", b.Title, "window", windowID)
		return
	}
	r.Grouped++
}

// sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
