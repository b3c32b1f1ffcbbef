package daemon

import (
	"context"
	"fmt"
	"sync"

	"github.com/lotas/tabheinzel/internal/organize"
	"github.com/lotas/tabheinzel/internal/types"
)

// fakeBrowser keeps tabs of all windows in one ordered slice; indices are
// per window.
type fakeBrowser struct {
	mu        sync.Mutex
	tabs      []*types.Tab
	groups    map[int]*types.Group
	nextGroup int
	active    int
	badge     string
	badgeTip  string
}

func newFakeBrowser() *fakeBrowser {
	return &fakeBrowser{groups: make(map[int]*types.Group), nextGroup: 500}
}

func (f *fakeBrowser) add(w, id int, url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tabs = append(f.tabs, &types.Tab{ID: id, WindowID: w, GroupID: types.NoGroup, URL: url, Title: url})
	f.reindex()
}

func (f *fakeBrowser) reindex() {
	next := make(map[int]int)
	for _, t := range f.tabs {
		t.Index = next[t.WindowID]
		next[t.WindowID]++
	}
	used := make(map[int]bool)
	for _, t := range f.tabs {
		used[t.GroupID] = true
	}
	for id := range f.groups {
		if !used[id] {
			delete(f.groups, id)
		}
	}
}

func (f *fakeBrowser) find(id int) *types.Tab {
	for _, t := range f.tabs {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func (f *fakeBrowser) groupTitle(tabID int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t := f.find(tabID); t != nil {
		if g, ok := f.groups[t.GroupID]; ok {
			return g.Title
		}
	}
	return ""
}

func (f *fakeBrowser) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tabs)
}

func (f *fakeBrowser) QueryTabs(_ context.Context, q organize.TabQuery) ([]*types.Tab, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.Tab
	for _, t := range f.tabs {
		if (q.WindowID == 0 || t.WindowID == q.WindowID) && (q.GroupID == 0 || t.GroupID == q.GroupID) {
			c := *t
			out = append(out, &c)
		}
	}
	return out, nil
}

func (f *fakeBrowser) QueryGroups(_ context.Context, windowID int) ([]*types.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.Group
	for _, g := range f.groups {
		if windowID == 0 || g.WindowID == windowID {
			c := *g
			out = append(out, &c)
		}
	}
	return out, nil
}

func (f *fakeBrowser) Tab(_ context.Context, id int) (*types.Tab, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.find(id)
	if t == nil {
		return nil, fmt.Errorf("no tab with id %d", id)
	}
	c := *t
	return &c, nil
}

func (f *fakeBrowser) ActiveTab(ctx context.Context) (*types.Tab, error) {
	return f.Tab(ctx, f.active)
}

func (f *fakeBrowser) Windows(context.Context) ([]types.Window, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[int]bool)
	var out []types.Window
	for _, t := range f.tabs {
		if !seen[t.WindowID] {
			seen[t.WindowID] = true
			out = append(out, types.Window{ID: t.WindowID})
		}
	}
	return out, nil
}

func (f *fakeBrowser) MoveTab(_ context.Context, id, index int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.find(id)
	if t == nil {
		return fmt.Errorf("no tab with id %d", id)
	}
	var rest []*types.Tab
	for _, o := range f.tabs {
		if o.ID != id {
			rest = append(rest, o)
		}
	}
	// Insert before the tab currently at index in the same window.
	pos := len(rest)
	i := 0
	for k, o := range rest {
		if o.WindowID != t.WindowID {
			continue
		}
		if i == index {
			pos = k
			break
		}
		i++
	}
	f.tabs = append(rest[:pos:pos], append([]*types.Tab{t}, rest[pos:]...)...)
	f.reindex()
	return nil
}

func (f *fakeBrowser) Group(_ context.Context, groupID int, ids []int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	first := f.find(ids[0])
	if first == nil {
		return 0, fmt.Errorf("no tab with id %d", ids[0])
	}
	if groupID == 0 {
		f.nextGroup++
		groupID = f.nextGroup
		f.groups[groupID] = &types.Group{ID: groupID, WindowID: first.WindowID}
	} else if _, ok := f.groups[groupID]; !ok {
		return 0, fmt.Errorf("no group with id %d", groupID)
	}
	for _, id := range ids {
		if t := f.find(id); t != nil {
			t.GroupID = groupID
		}
	}
	f.reindex()
	return groupID, nil
}

func (f *fakeBrowser) Ungroup(_ context.Context, ids []int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		if t := f.find(id); t != nil {
			t.GroupID = types.NoGroup
		}
	}
	f.reindex()
	return nil
}

func (f *fakeBrowser) UpdateGroup(_ context.Context, id int, u types.GroupUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[id]
	if !ok {
		return fmt.Errorf("no group with id %d", id)
	}
	g.Title, g.Color, g.Collapsed = u.Title, u.Color, u.Collapsed
	return nil
}

func (f *fakeBrowser) CloseTabs(_ context.Context, ids []int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	drop := make(map[int]bool)
	for _, id := range ids {
		drop[id] = true
	}
	var kept []*types.Tab
	for _, t := range f.tabs {
		if !drop[t.ID] {
			kept = append(kept, t)
		}
	}
	f.tabs = kept
	f.reindex()
	return nil
}

func (f *fakeBrowser) SetBadge(_ context.Context, text, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.badge, f.badgeTip = text, title
	return nil
}
