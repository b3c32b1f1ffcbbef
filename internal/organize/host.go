package organize

import (
	"context"
	"time"

	"github.com/lotas/tabheinzel/internal/types"
)

// TabQuery filters QueryTabs. Zero fields match everything.
type TabQuery struct {
	WindowID int
	GroupID  int
}

// Host is the browser's tab, window and group API. Every call may fail
// independently; implementations are not required to be atomic across calls.
type Host interface {
	QueryTabs(ctx context.Context, q TabQuery) ([]*types.Tab, error)
	QueryGroups(ctx context.Context, windowID int) ([]*types.Group, error)
	Tab(ctx context.Context, tabID int) (*types.Tab, error)
	ActiveTab(ctx context.Context) (*types.Tab, error)
	Windows(ctx context.Context) ([]types.Window, error)

	MoveTab(ctx context.Context, tabID, index int) error
	// Group adds tabIDs to groupID, or creates a new group when groupID is 0.
	// It returns the group ID the tabs ended up in.
	Group(ctx context.Context, groupID int, tabIDs []int) (int, error)
	Ungroup(ctx context.Context, tabIDs []int) error
	UpdateGroup(ctx context.Context, groupID int, u types.GroupUpdate) error
	CloseTabs(ctx context.Context, tabIDs []int) error
}

// Rescheduler asks for a delayed reorganization of one window.
type Rescheduler interface {
	Reschedule(windowID int, delay time.Duration)
}
