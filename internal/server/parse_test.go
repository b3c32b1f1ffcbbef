package server

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/lotas/tabheinzel/internal/types"
)

func TestParseTabs(t *testing.T) {
	raw := json.RawMessage(`[
		{"id": 1, "url": "https://example.com", "title": "Example", "lastAccessed": 1700000000000.5, "groupId": 5, "windowId": 1, "index": 0, "active": true},
		{"id": 2, "url": "https://other.com", "title": "Other", "groupId": -1, "windowId": 1, "index": 1},
		{"id": 3, "url": "about:blank", "windowId": 2, "index": 0}
	]`)

	tabs, err := ParseTabs(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(tabs) != 3 {
		t.Fatalf("got %d tabs, want 3", len(tabs))
	}
	if tabs[0].LastAccessed.IsZero() || !tabs[0].Active {
		t.Errorf("tab 1 = %+v", tabs[0])
	}
	for i, want := range []int{5, types.NoGroup, types.NoGroup} {
		if tabs[i].GroupID != want {
			t.Errorf("tab %d GroupID = %d, want %d", tabs[i].ID, tabs[i].GroupID, want)
		}
	}
	if tabs[2].WindowID != 2 || tabs[1].Index != 1 {
		t.Errorf("window/index not mapped: %+v %+v", tabs[1], tabs[2])
	}
}

func TestParseTabsEmpty(t *testing.T) {
	tabs, err := ParseTabs(nil)
	if err != nil || len(tabs) != 0 {
		t.Errorf("ParseTabs(nil) = %v, %v", tabs, err)
	}
	if _, err := ParseTabs(json.RawMessage(`{"id":1}`)); err == nil {
		t.Error("expected error for non-array tabs")
	}
}

func TestParseGroupsAndWindows(t *testing.T) {
	groups, err := ParseGroups(json.RawMessage(`[{"id": 7, "windowId": 1, "title": "Important", "color": "red", "collapsed": true}]`))
	if err != nil {
		t.Fatal(err)
	}
	want := []*types.Group{{ID: 7, WindowID: 1, Title: "Important", Color: "red", Collapsed: true}}
	if diff := cmp.Diff(want, groups); diff != "" {
		t.Errorf("groups mismatch (-want +got):\n%s", diff)
	}

	windows, err := ParseWindows(json.RawMessage(`[{"id": 1, "focused": true}, {"id": 4}]`))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]types.Window{{ID: 1, Focused: true}, {ID: 4}}, windows); diff != "" {
		t.Errorf("windows mismatch (-want +got):\n%s", diff)
	}
}

func TestParseEvent(t *testing.T) {
	ev, err := ParseEvent(IncomingMsg{Type: TypeEvent, Event: "updated", TabID: 3, WindowID: 1, Status: "complete", URL: "https://a.com/"})
	if err != nil {
		t.Fatal(err)
	}
	if !ev.NavigationComplete() {
		t.Errorf("event %+v should be a completed navigation", ev)
	}
	if _, err := ParseEvent(IncomingMsg{Type: TypeEvent, Event: "zoomed"}); err == nil {
		t.Error("expected error for unknown event")
	}
}

func TestParseCommand(t *testing.T) {
	cmd, err := ParseCommand(IncomingMsg{Type: TypeCommand, ID: "c1", Action: "importDomains", Content: "a.com\n"})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Command{ID: "c1", Action: "importDomains", Content: "a.com\n"}, cmd); diff != "" {
		t.Errorf("command mismatch (-want +got):\n%s", diff)
	}
	if _, err := ParseCommand(IncomingMsg{Type: TypeCommand, ID: "c2"}); err == nil {
		t.Error("expected error for command without action")
	}
}
