package organize

import (
	"context"
	"fmt"
	"time"

	"github.com/lotas/tabheinzel/internal/applog"
	"github.com/lotas/tabheinzel/internal/types"
)

// UnmarkDelay is how long RemoveFromImportant waits before asking for a
// light reorganization of the tab's window.
const UnmarkDelay = time.Second

// MoveToImportant puts one tab into the window's Important group without
// reorganizing anything else. The group is created at index 0 when absent.
// It reports whether anything changed.
func MoveToImportant(ctx context.Context, host Host, tabID int) (bool, error) {
	tab, err := host.Tab(ctx, tabID)
	if err != nil {
		return false, fmt.Errorf("get tab %d: %w", tabID, err)
	}
	groups, err := host.QueryGroups(ctx, tab.WindowID)
	if err != nil {
		return false, fmt.Errorf("query groups: %w", err)
	}

	var imp *types.Group
	for _, g := range groups {
		if g.Title == types.TitleImportant {
			imp = g
			break
		}
	}
	if imp != nil && tab.GroupID == imp.ID {
		return false, nil
	}

	if tab.Grouped() {
		if err := host.Ungroup(ctx, []int{tabID}); err != nil {
			return false, fmt.Errorf("ungroup tab %d: %w", tabID, err)
		}
	}

	target := 0
	groupID := 0
	if imp != nil {
		groupID = imp.ID
		members, err := host.QueryTabs(ctx, TabQuery{GroupID: imp.ID})
		if err != nil {
			return false, fmt.Errorf("query Important tabs: %w", err)
		}
		if len(members) > 0 {
			last := members[0].Index
			for _, m := range members[1:] {
				if m.Index > last {
					last = m.Index
				}
			}
			// Moving right shifts the group left by one.
			target = last + 1
			if tab.Index < last {
				target = last
			}
		}
	}

	if err := host.MoveTab(ctx, tabID, target); err != nil {
		return false, fmt.Errorf("move tab %d: %w", tabID, err)
	}
	gid, err := host.Group(ctx, groupID, []int{tabID})
	if err != nil {
		return false, fmt.Errorf("group tab %d: %w", tabID, err)
	}
	if imp == nil {
		err := host.UpdateGroup(ctx, gid, types.GroupUpdate{
			Title: types.TitleImportant,
			Color: types.ColorImportant,
		})
		if err != nil {
			return true, fmt.Errorf("update Important group: %w", err)
		}
	}
	applog.Info("important.moved", "tab", tabID, "window", tab.WindowID, "created", imp == nil)
	return true, nil
}

// RemoveFromImportant takes one tab out of its group. When resched is set,
// a light reorganization of the tab's window is requested after delay.
func RemoveFromImportant(ctx context.Context, host Host, tabID int, resched Rescheduler, delay time.Duration) error {
	tab, err := host.Tab(ctx, tabID)
	if err != nil {
		return fmt.Errorf("get tab %d: %w", tabID, err)
	}
	if tab.Grouped() {
		if err := host.Ungroup(ctx, []int{tabID}); err != nil {
			return fmt.Errorf("ungroup tab %d: %w", tabID, err)
		}
	}
	if resched != nil && tab.WindowID != 0 {
		resched.Reschedule(tab.WindowID, delay)
	}
	applog.Info("important.removed", "tab", tabID, "window", tab.WindowID)
	return nil
}
