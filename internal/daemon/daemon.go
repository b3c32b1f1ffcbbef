// Package daemon wires the extension bridge to the organizer: tab events
// feed the scheduler, removals trigger single-tab cleanup, and popup
// commands are answered with a result message. Failures are reported in
// the result, never propagated to the bridge.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/lotas/tabheinzel/internal/applog"
	"github.com/lotas/tabheinzel/internal/domain"
	"github.com/lotas/tabheinzel/internal/export"
	"github.com/lotas/tabheinzel/internal/important"
	"github.com/lotas/tabheinzel/internal/organize"
	"github.com/lotas/tabheinzel/internal/schedule"
	"github.com/lotas/tabheinzel/internal/server"
	"github.com/lotas/tabheinzel/internal/types"
)

// Command actions sent by the popup.
const (
	ActionOrganize            = "organize"
	ActionMoveToImportant     = "moveToImportant"
	ActionRemoveFromImportant = "removeFromImportant"
	ActionToggleImportant     = "toggleImportant"
	ActionListDomains         = "listDomains"
	ActionRemoveDomain        = "removeDomain"
	ActionExportDomains       = "exportDomains"
	ActionImportDomains       = "importDomains"
	ActionCloseOthers         = "closeOthers"
)

// Host is the browser plus its toolbar badge.
type Host interface {
	organize.Host
	SetBadge(ctx context.Context, text, title string) error
}

// Options tunes timing.
type Options struct {
	Debounce    time.Duration
	UnmarkDelay time.Duration
}

// Result is the outcome of a command.
type Result struct {
	Summary string
	Content string
	Err     error
}

// Daemon dispatches extension messages.
type Daemon struct {
	host        Host
	store       *important.Store
	org         *organize.Organizer
	sched       *schedule.Scheduler
	send        func(server.OutgoingMsg) error
	unmarkDelay time.Duration

	wg sync.WaitGroup

	mu   sync.Mutex
	last []*organize.Outcome
}

// New returns a Daemon. send delivers command results to the extension.
func New(host Host, store *important.Store, org *organize.Organizer, send func(server.OutgoingMsg) error, opts Options) *Daemon {
	if opts.UnmarkDelay <= 0 {
		opts.UnmarkDelay = organize.UnmarkDelay
	}
	d := &Daemon{
		host:        host,
		store:       store,
		org:         org,
		send:        send,
		unmarkDelay: opts.UnmarkDelay,
	}
	d.sched = schedule.New(d.organizeWindow, d.organizeAll, opts.Debounce)
	return d
}

// Scheduler exposes the scheduler for status queries.
func (d *Daemon) Scheduler() *schedule.Scheduler {
	return d.sched
}

// Run dispatches msgs until ctx is done or msgs is closed.
func (d *Daemon) Run(ctx context.Context, msgs <-chan server.IncomingMsg) error {
	schedDone := make(chan struct{})
	go func() {
		d.sched.Run(ctx)
		close(schedDone)
	}()
	defer func() {
		<-schedDone
		d.wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			d.Dispatch(ctx, msg)
		}
	}
}

// Dispatch handles one message. Commands run on their own goroutine so a
// long pass does not hold up events.
func (d *Daemon) Dispatch(ctx context.Context, msg server.IncomingMsg) {
	switch msg.Type {
	case server.TypeEvent:
		ev, err := server.ParseEvent(msg)
		if err != nil {
			applog.Warn("daemon.event", "err", err.Error())
			return
		}
		d.HandleEvent(ctx, ev)
	case server.TypeCommand:
		cmd, err := server.ParseCommand(msg)
		if err != nil {
			d.reply(server.Result(msg.ID, err, "", ""))
			return
		}
		d.background(func() {
			res := d.Execute(ctx, cmd)
			d.reply(server.Result(cmd.ID, res.Err, res.Summary, res.Content))
		})
	default:
		applog.Warn("daemon.unknown_type", "type", msg.Type)
	}
}

// HandleEvent feeds ev to the scheduler and runs the side effects that
// do not wait for the debounce.
func (d *Daemon) HandleEvent(ctx context.Context, ev types.Event) {
	d.sched.Submit(ev)

	if ev.Kind == types.EventRemoved && ev.WindowID > 0 {
		d.background(func() {
			if _, err := organize.CleanupSingles(ctx, d.host, ev.WindowID); err != nil {
				applog.Error("daemon.cleanup", err, "window", ev.WindowID)
			}
		})
	}

	switch ev.Kind {
	case types.EventCreated, types.EventRemoved, types.EventAttached,
		types.EventDetached, types.EventInstalled, types.EventStartup:
		d.background(func() {
			if err := d.UpdateBadge(ctx); err != nil {
				applog.Error("daemon.badge", err)
			}
		})
	}
}

// BadgeTitle is the toolbar tooltip for n open tabs.
func BadgeTitle(n int) string {
	return fmt.Sprintf("Tab Heinzelmann 3000\n\n📊 %d tabs open", n)
}

// UpdateBadge shows the current tab count on the toolbar button.
func (d *Daemon) UpdateBadge(ctx context.Context) error {
	tabs, err := d.host.QueryTabs(ctx, organize.TabQuery{})
	if err != nil {
		return fmt.Errorf("count tabs: %w", err)
	}
	return d.host.SetBadge(ctx, strconv.Itoa(len(tabs)), BadgeTitle(len(tabs)))
}

// Execute runs a popup command.
func (d *Daemon) Execute(ctx context.Context, cmd server.Command) Result {
	applog.Info("daemon.command", "action", cmd.Action, "tab", cmd.TabID)
	var res Result
	switch cmd.Action {
	case ActionOrganize:
		res = d.organizeNow(ctx)
	case ActionMoveToImportant:
		res = d.moveToImportant(ctx, cmd.TabID)
	case ActionRemoveFromImportant:
		res = d.removeFromImportant(ctx, cmd.TabID)
	case ActionToggleImportant:
		res = d.toggleImportant(ctx, cmd.TabID)
	case ActionListDomains, ActionExportDomains:
		res = d.listDomains(ctx)
	case ActionRemoveDomain:
		res = d.removeDomain(ctx, cmd.Content)
	case ActionImportDomains:
		res = d.importDomains(ctx, cmd.Content)
	case ActionCloseOthers:
		res = d.closeOthers(ctx, cmd.TabID)
	default:
		res.Err = fmt.Errorf("unknown action %q", cmd.Action)
	}
	if res.Err != nil {
		applog.Error("daemon.command", res.Err, "action", cmd.Action)
	}
	return res
}

func (d *Daemon) organizeWindow(ctx context.Context, windowID int) error {
	_, err := d.org.OrganizeWindow(ctx, windowID)
	if errors.Is(err, organize.ErrWindowGone) {
		return nil
	}
	return err
}

func (d *Daemon) organizeAll(ctx context.Context) error {
	outs, err := d.org.OrganizeAll(ctx)
	d.mu.Lock()
	d.last = outs
	d.mu.Unlock()
	return err
}

func (d *Daemon) organizeNow(ctx context.Context) Result {
	ran, err := d.sched.OrganizeNow(ctx)
	if !ran {
		return Result{Summary: "Organization already in progress"}
	}
	d.mu.Lock()
	outs := d.last
	d.mu.Unlock()

	closed, failures := 0, 0
	for _, o := range outs {
		closed += o.Closed
		failures += o.Report.Failures()
	}
	summary := "Tabs successfully organized!"
	if closed > 0 {
		summary = fmt.Sprintf("Tabs successfully organized! Closed %d duplicate tabs.", closed)
	}
	if failures > 0 {
		summary += fmt.Sprintf(" %d operations failed.", failures)
	}
	return Result{Summary: summary, Err: err}
}

func (d *Daemon) moveToImportant(ctx context.Context, tabID int) Result {
	changed, err := organize.MoveToImportant(ctx, d.host, tabID)
	if err != nil {
		return Result{Err: err}
	}
	if !changed {
		return Result{Summary: "Tab is already in Important"}
	}
	return Result{Summary: "Tab moved to Important"}
}

func (d *Daemon) removeFromImportant(ctx context.Context, tabID int) Result {
	if err := organize.RemoveFromImportant(ctx, d.host, tabID, d.sched, d.unmarkDelay); err != nil {
		return Result{Err: err}
	}
	return Result{Summary: "Tab removed from Important"}
}

// toggleImportant flips the mark on the tab's hostname and moves the tab
// accordingly. tabID 0 means the active tab.
func (d *Daemon) toggleImportant(ctx context.Context, tabID int) Result {
	tab, err := d.tab(ctx, tabID)
	if err != nil {
		return Result{Err: err}
	}
	host, ok := domain.Hostname(tab.URL)
	if !ok {
		return Result{Err: fmt.Errorf("tab %d has no hostname", tab.ID)}
	}

	marked, err := d.store.Contains(ctx, host)
	if err != nil {
		return Result{Err: err}
	}
	if marked {
		if _, err := d.store.Remove(ctx, host); err != nil {
			return Result{Err: err}
		}
		if err := organize.RemoveFromImportant(ctx, d.host, tab.ID, d.sched, d.unmarkDelay); err != nil {
			return Result{Err: err}
		}
		return Result{Summary: "Tab removed from Important!", Content: host}
	}

	if _, err := d.store.Add(ctx, host); err != nil {
		return Result{Err: err}
	}
	if _, err := organize.MoveToImportant(ctx, d.host, tab.ID); err != nil {
		return Result{Err: err}
	}
	return Result{Summary: "Tab marked as Important!", Content: host}
}

func (d *Daemon) listDomains(ctx context.Context) Result {
	hosts, err := d.store.List(ctx)
	if err != nil {
		return Result{Err: err}
	}
	return Result{
		Summary: fmt.Sprintf("%d important domains", len(hosts)),
		Content: export.Domains(hosts),
	}
}

func (d *Daemon) removeDomain(ctx context.Context, host string) Result {
	removed, err := d.store.Remove(ctx, host)
	if err != nil {
		return Result{Err: err}
	}
	if !removed {
		return Result{Summary: fmt.Sprintf("%s was not marked", host)}
	}
	return Result{Summary: fmt.Sprintf("Removed %s", host)}
}

func (d *Daemon) importDomains(ctx context.Context, text string) Result {
	_, added, err := d.store.ImportMerge(ctx, export.ParseDomains(text))
	if err != nil {
		return Result{Err: err}
	}
	return Result{Summary: fmt.Sprintf("Imported %d new domains", added)}
}

func (d *Daemon) closeOthers(ctx context.Context, tabID int) Result {
	tab, err := d.tab(ctx, tabID)
	if err != nil {
		return Result{Err: err}
	}
	set, err := d.store.Set(ctx)
	if err != nil {
		return Result{Err: err}
	}
	closed, err := organize.CloseUnimportant(ctx, d.host, tab.WindowID, set)
	if closed == 0 && err == nil {
		return Result{Summary: "No tabs to close - all tabs are marked as Important!"}
	}
	return Result{Summary: fmt.Sprintf("Closed %d tabs", closed), Err: err}
}

func (d *Daemon) tab(ctx context.Context, tabID int) (*types.Tab, error) {
	if tabID == 0 {
		return d.host.ActiveTab(ctx)
	}
	return d.host.Tab(ctx, tabID)
}

func (d *Daemon) reply(msg server.OutgoingMsg) {
	if d.send == nil {
		return
	}
	if err := d.send(msg); err != nil {
		applog.Error("daemon.reply", err, "id", msg.ID)
	}
}

func (d *Daemon) background(fn func()) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		fn()
	}()
}

// Wait blocks until background work started by Dispatch has finished.
func (d *Daemon) Wait() {
	d.wg.Wait()
}
