package types

import "time"

// NoGroup is the group ID of a tab that is not in any group.
const NoGroup = -1

// Reserved group titles.
const (
	TitleImportant = "Important"
	TitleUnsorted  = "Unsorted"
)

// Reserved group colors.
const (
	ColorImportant = "red"
	ColorUnsorted  = "grey"
)

// Palette is cycled over domain groups in sorted order.
var Palette = []string{"blue", "red", "yellow", "green", "pink", "purple", "cyan", "orange"}

// Tab represents a single browser tab.
type Tab struct {
	ID           int // live browser tab ID
	WindowID     int
	Index        int
	GroupID      int // NoGroup if ungrouped
	URL          string
	Title        string
	Active       bool
	Pinned       bool
	LastAccessed time.Time
}

// Grouped reports whether the tab currently belongs to a group.
func (t *Tab) Grouped() bool {
	return t.GroupID != NoGroup && t.GroupID != 0
}

// Group represents a browser tab group.
type Group struct {
	ID        int
	WindowID  int
	Title     string
	Color     string
	Collapsed bool
}

// GroupUpdate carries the properties set on a group after (re)building it.
type GroupUpdate struct {
	Title     string
	Color     string
	Collapsed bool
}

// Window is a browser window.
type Window struct {
	ID      int
	Focused bool
}

// Profile represents a Firefox profile.
type Profile struct {
	Name       string
	Path       string // absolute path to profile directory
	IsDefault  bool
	IsRelative bool
}

// SessionData holds the tabs and groups read from a browser session,
// grouped per window.
type SessionData struct {
	Windows  []int
	Groups   []*Group
	AllTabs  []*Tab
	Profile  Profile
	ParsedAt time.Time
}

// TabsInWindow returns the tabs belonging to the given window, in order.
func (s *SessionData) TabsInWindow(windowID int) []*Tab {
	var out []*Tab
	for _, t := range s.AllTabs {
		if t.WindowID == windowID {
			out = append(out, t)
		}
	}
	return out
}

// EventKind enumerates the tab lifecycle events the engine consumes.
type EventKind string

const (
	EventCreated   EventKind = "created"
	EventUpdated   EventKind = "updated"
	EventRemoved   EventKind = "removed"
	EventAttached  EventKind = "attached"
	EventDetached  EventKind = "detached"
	EventInstalled EventKind = "installed"
	EventStartup   EventKind = "startup"
)

// Event is a tab lifecycle notification forwarded by the extension.
type Event struct {
	Kind     EventKind
	TabID    int
	WindowID int
	// Status and URL are only meaningful for EventUpdated.
	Status string
	URL    string
}

// NavigationComplete reports whether an update event marks a finished
// navigation to a new URL.
func (e Event) NavigationComplete() bool {
	return e.Kind == EventUpdated && e.Status == "complete" && e.URL != ""
}
