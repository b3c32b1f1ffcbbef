package organize

import (
	"context"
	"fmt"

	"github.com/lotas/tabheinzel/internal/applog"
	"github.com/lotas/tabheinzel/internal/types"
)

// CleanupSingles moves the last tab of every domain group in windowID into
// the Unsorted group, creating it if needed. It runs after tab removals
// instead of a full pass. It returns how many tabs were moved.
func CleanupSingles(ctx context.Context, host Host, windowID int) (int, error) {
	groups, err := host.QueryGroups(ctx, windowID)
	if err != nil {
		return 0, fmt.Errorf("query groups: %w", err)
	}

	unsortedID := 0
	for _, g := range groups {
		if g.Title == types.TitleUnsorted {
			unsortedID = g.ID
			break
		}
	}

	moved := 0
	for _, g := range groups {
		if g.Title == types.TitleImportant || g.Title == types.TitleUnsorted {
			continue
		}
		members, err := host.QueryTabs(ctx, TabQuery{GroupID: g.ID})
		if err != nil {
			applog.Error("cleanup.query", err, "group", g.Title)
			continue
		}
		if len(members) != 1 {
			continue
		}
		tab := members[0]

		if err := host.Ungroup(ctx, []int{tab.ID}); err != nil {
			applog.Error("cleanup.ungroup", err, "tab", tab.ID, "group", g.Title)
			continue
		}
		id, err := host.Group(ctx, unsortedID, []int{tab.ID})
		if err != nil {
			applog.Error("cleanup.group", err, "tab", tab.ID)
			continue
		}
		if unsortedID == 0 {
			err := host.UpdateGroup(ctx, id, types.GroupUpdate{
				Title: types.TitleUnsorted,
				Color: types.ColorUnsorted,
			})
			if err != nil {
				applog.Error("cleanup.update", err, "group", id)
			}
			// Later singles join the group just created.
			unsortedID = id
		}
		moved++
		applog.Info("cleanup.moved", "tab", tab.ID, "from", g.Title, "window", windowID)
	}
	return moved, nil
}
