package server

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lotas/tabheinzel/internal/types"
)

type wireTab struct {
	ID           int     `json:"id"`
	URL          string  `json:"url"`
	Title        string  `json:"title"`
	LastAccessed float64 `json:"lastAccessed"`
	GroupID      *int    `json:"groupId"`
	WindowID     int     `json:"windowId"`
	Index        int     `json:"index"`
	Active       bool    `json:"active"`
	Pinned       bool    `json:"pinned"`
}

type wireGroup struct {
	ID        int    `json:"id"`
	WindowID  int    `json:"windowId"`
	Title     string `json:"title"`
	Color     string `json:"color"`
	Collapsed bool   `json:"collapsed"`
}

type wireWindow struct {
	ID      int  `json:"id"`
	Focused bool `json:"focused"`
}

func (wt wireTab) tab() *types.Tab {
	t := &types.Tab{
		ID:       wt.ID,
		WindowID: wt.WindowID,
		Index:    wt.Index,
		GroupID:  types.NoGroup,
		URL:      wt.URL,
		Title:    wt.Title,
		Active:   wt.Active,
		Pinned:   wt.Pinned,
	}
	if wt.GroupID != nil {
		t.GroupID = *wt.GroupID
	}
	if wt.LastAccessed > 0 {
		t.LastAccessed = time.UnixMilli(int64(wt.LastAccessed))
	}
	return t
}

// ParseTab converts a raw JSON tab into a Tab. A missing groupId means the
// tab is ungrouped.
func ParseTab(raw json.RawMessage) (*types.Tab, error) {
	var wt wireTab
	if err := json.Unmarshal(raw, &wt); err != nil {
		return nil, fmt.Errorf("parse tab: %w", err)
	}
	return wt.tab(), nil
}

// ParseTabs converts a raw JSON tab list. An absent list is empty.
func ParseTabs(raw json.RawMessage) ([]*types.Tab, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var wts []wireTab
	if err := json.Unmarshal(raw, &wts); err != nil {
		return nil, fmt.Errorf("parse tabs: %w", err)
	}
	tabs := make([]*types.Tab, 0, len(wts))
	for _, wt := range wts {
		tabs = append(tabs, wt.tab())
	}
	return tabs, nil
}

// ParseGroups converts a raw JSON group list.
func ParseGroups(raw json.RawMessage) ([]*types.Group, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var wgs []wireGroup
	if err := json.Unmarshal(raw, &wgs); err != nil {
		return nil, fmt.Errorf("parse groups: %w", err)
	}
	groups := make([]*types.Group, 0, len(wgs))
	for _, g := range wgs {
		groups = append(groups, &types.Group{
			ID:        g.ID,
			WindowID:  g.WindowID,
			Title:     g.Title,
			Color:     g.Color,
			Collapsed: g.Collapsed,
		})
	}
	return groups, nil
}

// ParseWindows converts a raw JSON window list.
func ParseWindows(raw json.RawMessage) ([]types.Window, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var wws []wireWindow
	if err := json.Unmarshal(raw, &wws); err != nil {
		return nil, fmt.Errorf("parse windows: %w", err)
	}
	windows := make([]types.Window, 0, len(wws))
	for _, w := range wws {
		windows = append(windows, types.Window{ID: w.ID, Focused: w.Focused})
	}
	return windows, nil
}

var eventKinds = map[string]types.EventKind{
	"created":   types.EventCreated,
	"updated":   types.EventUpdated,
	"removed":   types.EventRemoved,
	"attached":  types.EventAttached,
	"detached":  types.EventDetached,
	"installed": types.EventInstalled,
	"startup":   types.EventStartup,
}

// ParseEvent converts an event message. Unknown event names are rejected.
func ParseEvent(msg IncomingMsg) (types.Event, error) {
	kind, ok := eventKinds[msg.Event]
	if !ok {
		return types.Event{}, fmt.Errorf("unknown event %q", msg.Event)
	}
	return types.Event{
		Kind:     kind,
		TabID:    msg.TabID,
		WindowID: msg.WindowID,
		Status:   msg.Status,
		URL:      msg.URL,
	}, nil
}

// Command is a request from the popup.
type Command struct {
	ID      string
	Action  string
	TabID   int
	Content string
}

// ParseCommand converts a command message.
func ParseCommand(msg IncomingMsg) (Command, error) {
	if msg.Action == "" {
		return Command{}, fmt.Errorf("command %q has no action", msg.ID)
	}
	return Command{ID: msg.ID, Action: msg.Action, TabID: msg.TabID, Content: msg.Content}, nil
}

// Result answers a command.
func Result(id string, err error, summary, content string) OutgoingMsg {
	out := OutgoingMsg{ID: id, Action: "result", Summary: summary, Content: content}
	if err != nil {
		out.Status = "error"
		out.Error = err.Error()
		return out
	}
	out.Status = "success"
	return out
}
