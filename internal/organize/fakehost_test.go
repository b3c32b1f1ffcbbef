package organize

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lotas/tabheinzel/internal/types"
)

// fakeHost is an in-memory browser. Tab indices are recomputed from the
// per-window order after every mutation; groups with no members vanish.
type fakeHost struct {
	mu        sync.Mutex
	windows   []int
	order     map[int][]*types.Tab // window -> tabs in index order
	groups    map[int]*types.Group
	nextGroup int
	activeID  int

	failMove  map[int]bool // tab IDs whose move fails
	failGroup map[int]bool // Group fails when any listed tab is passed
	failQuery bool
	failClose bool

	moves   []int
	closed  []int
	created int
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		order:     make(map[int][]*types.Tab),
		groups:    make(map[int]*types.Group),
		nextGroup: 100,
		failMove:  make(map[int]bool),
		failGroup: make(map[int]bool),
	}
}

// addTab appends a tab to window w.
func (h *fakeHost) addTab(w, id int, url, title string) *types.Tab {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.order[w]; !ok {
		h.windows = append(h.windows, w)
	}
	t := &types.Tab{ID: id, WindowID: w, GroupID: types.NoGroup, URL: url, Title: title}
	h.order[w] = append(h.order[w], t)
	h.reindex(w)
	return t
}

// addGroup groups existing tabs under a new group.
func (h *fakeHost) addGroup(w int, title string, collapsed bool, tabIDs ...int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextGroup++
	id := h.nextGroup
	h.groups[id] = &types.Group{ID: id, WindowID: w, Title: title, Collapsed: collapsed}
	for _, tid := range tabIDs {
		h.find(tid).GroupID = id
	}
	return id
}

func (h *fakeHost) reindex(w int) {
	for i, t := range h.order[w] {
		t.Index = i
	}
}

func (h *fakeHost) find(id int) *types.Tab {
	for _, tabs := range h.order {
		for _, t := range tabs {
			if t.ID == id {
				return t
			}
		}
	}
	return nil
}

func (h *fakeHost) prune() {
	used := make(map[int]bool)
	for _, tabs := range h.order {
		for _, t := range tabs {
			used[t.GroupID] = true
		}
	}
	for id := range h.groups {
		if !used[id] {
			delete(h.groups, id)
		}
	}
}

// ids returns the tab IDs of window w in index order.
func (h *fakeHost) ids(w int) []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []int
	for _, t := range h.order[w] {
		out = append(out, t.ID)
	}
	return out
}

// groupOf returns the title of the group tab id is in, or "".
func (h *fakeHost) groupOf(id int) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	t := h.find(id)
	if t == nil {
		return ""
	}
	if g, ok := h.groups[t.GroupID]; ok {
		return g.Title
	}
	return ""
}

func (h *fakeHost) groupByTitle(title string) *types.Group {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, g := range h.groups {
		if g.Title == title {
			c := *g
			return &c
		}
	}
	return nil
}

func (h *fakeHost) QueryTabs(_ context.Context, q TabQuery) ([]*types.Tab, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failQuery {
		return nil, fmt.Errorf("query failed")
	}
	var out []*types.Tab
	for _, w := range h.windows {
		if q.WindowID != 0 && w != q.WindowID {
			continue
		}
		for _, t := range h.order[w] {
			if q.GroupID != 0 && t.GroupID != q.GroupID {
				continue
			}
			c := *t
			out = append(out, &c)
		}
	}
	return out, nil
}

func (h *fakeHost) QueryGroups(_ context.Context, windowID int) ([]*types.Group, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []*types.Group
	for _, g := range h.groups {
		if windowID == 0 || g.WindowID == windowID {
			c := *g
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (h *fakeHost) Tab(_ context.Context, tabID int) (*types.Tab, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t := h.find(tabID)
	if t == nil {
		return nil, fmt.Errorf("no tab with id %d", tabID)
	}
	c := *t
	return &c, nil
}

func (h *fakeHost) ActiveTab(ctx context.Context) (*types.Tab, error) {
	return h.Tab(ctx, h.activeID)
}

func (h *fakeHost) Windows(context.Context) ([]types.Window, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []types.Window
	for _, w := range h.windows {
		out = append(out, types.Window{ID: w})
	}
	return out, nil
}

func (h *fakeHost) MoveTab(_ context.Context, tabID, index int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failMove[tabID] {
		return fmt.Errorf("move refused")
	}
	t := h.find(tabID)
	if t == nil {
		return fmt.Errorf("no tab with id %d", tabID)
	}
	h.moves = append(h.moves, tabID)
	tabs := h.order[t.WindowID]
	tabs = append(tabs[:t.Index:t.Index], tabs[t.Index+1:]...)
	if index < 0 || index > len(tabs) {
		index = len(tabs)
	}
	tabs = append(tabs[:index], append([]*types.Tab{t}, tabs[index:]...)...)
	h.order[t.WindowID] = tabs
	h.reindex(t.WindowID)
	return nil
}

func (h *fakeHost) Group(_ context.Context, groupID int, tabIDs []int) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range tabIDs {
		if h.failGroup[id] {
			return 0, fmt.Errorf("group refused")
		}
	}
	if len(tabIDs) == 0 {
		return 0, fmt.Errorf("no tabs")
	}
	first := h.find(tabIDs[0])
	if first == nil {
		return 0, fmt.Errorf("no tab with id %d", tabIDs[0])
	}
	if groupID == 0 {
		h.nextGroup++
		groupID = h.nextGroup
		h.groups[groupID] = &types.Group{ID: groupID, WindowID: first.WindowID}
		h.created++
	} else if _, ok := h.groups[groupID]; !ok {
		return 0, fmt.Errorf("no group with id %d", groupID)
	}
	for _, id := range tabIDs {
		if t := h.find(id); t != nil {
			t.GroupID = groupID
		}
	}
	h.prune()
	return groupID, nil
}

func (h *fakeHost) Ungroup(_ context.Context, tabIDs []int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range tabIDs {
		if t := h.find(id); t != nil {
			t.GroupID = types.NoGroup
		}
	}
	h.prune()
	return nil
}

func (h *fakeHost) UpdateGroup(_ context.Context, groupID int, u types.GroupUpdate) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	g, ok := h.groups[groupID]
	if !ok {
		return fmt.Errorf("no group with id %d", groupID)
	}
	g.Title, g.Color, g.Collapsed = u.Title, u.Color, u.Collapsed
	return nil
}

func (h *fakeHost) CloseTabs(_ context.Context, tabIDs []int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failClose {
		return fmt.Errorf("close %v: tabs locked", tabIDs)
	}
	drop := make(map[int]bool, len(tabIDs))
	for _, id := range tabIDs {
		drop[id] = true
	}
	for w, tabs := range h.order {
		kept := tabs[:0]
		for _, t := range tabs {
			if !drop[t.ID] {
				kept = append(kept, t)
			}
		}
		h.order[w] = kept
		h.reindex(w)
	}
	h.closed = append(h.closed, tabIDs...)
	h.prune()
	return nil
}

type fakeRescheduler struct {
	mu    sync.Mutex
	calls []int
}

func (r *fakeRescheduler) Reschedule(windowID int, _ time.Duration) {
	r.mu.Lock()
	r.calls = append(r.calls, windowID)
	r.mu.Unlock()
}
