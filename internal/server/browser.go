package server

import (
	"context"
	"fmt"
	"time"

	"github.com/lotas/tabheinzel/internal/organize"
	"github.com/lotas/tabheinzel/internal/types"
)

// Browser implements organize.Host by calling the browser's tabs, windows
// and tabGroups APIs through the extension.
type Browser struct {
	srv     *Server
	timeout time.Duration
}

var _ organize.Host = (*Browser)(nil)

// NewBrowser returns a Browser. A non-positive timeout uses
// DefaultCallTimeout.
func NewBrowser(srv *Server, timeout time.Duration) *Browser {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Browser{srv: srv, timeout: timeout}
}

func (b *Browser) call(ctx context.Context, msg OutgoingMsg) (IncomingMsg, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.srv.Call(ctx, msg)
}

func (b *Browser) QueryTabs(ctx context.Context, q organize.TabQuery) ([]*types.Tab, error) {
	resp, err := b.call(ctx, OutgoingMsg{Action: "query-tabs", WindowID: q.WindowID, GroupID: q.GroupID})
	if err != nil {
		return nil, err
	}
	return ParseTabs(resp.Tabs)
}

func (b *Browser) QueryGroups(ctx context.Context, windowID int) ([]*types.Group, error) {
	resp, err := b.call(ctx, OutgoingMsg{Action: "query-groups", WindowID: windowID})
	if err != nil {
		return nil, err
	}
	return ParseGroups(resp.Groups)
}

func (b *Browser) Tab(ctx context.Context, tabID int) (*types.Tab, error) {
	resp, err := b.call(ctx, OutgoingMsg{Action: "get-tab", TabID: tabID})
	if err != nil {
		return nil, err
	}
	if len(resp.Tab) == 0 {
		return nil, fmt.Errorf("get-tab: tab %d not found", tabID)
	}
	return ParseTab(resp.Tab)
}

func (b *Browser) ActiveTab(ctx context.Context) (*types.Tab, error) {
	resp, err := b.call(ctx, OutgoingMsg{Action: "get-active-tab"})
	if err != nil {
		return nil, err
	}
	if len(resp.Tab) == 0 {
		return nil, fmt.Errorf("get-active-tab: no active tab")
	}
	return ParseTab(resp.Tab)
}

func (b *Browser) Windows(ctx context.Context) ([]types.Window, error) {
	resp, err := b.call(ctx, OutgoingMsg{Action: "get-windows"})
	if err != nil {
		return nil, err
	}
	return ParseWindows(resp.Windows)
}

func (b *Browser) MoveTab(ctx context.Context, tabID, index int) error {
	_, err := b.call(ctx, OutgoingMsg{Action: "move", TabID: tabID, Index: &index})
	return err
}

func (b *Browser) Group(ctx context.Context, groupID int, tabIDs []int) (int, error) {
	resp, err := b.call(ctx, OutgoingMsg{Action: "group", GroupID: groupID, TabIDs: tabIDs})
	if err != nil {
		return 0, err
	}
	if resp.GroupID == 0 {
		return 0, fmt.Errorf("group: no group id in response")
	}
	return resp.GroupID, nil
}

func (b *Browser) Ungroup(ctx context.Context, tabIDs []int) error {
	_, err := b.call(ctx, OutgoingMsg{Action: "ungroup", TabIDs: tabIDs})
	return err
}

func (b *Browser) UpdateGroup(ctx context.Context, groupID int, u types.GroupUpdate) error {
	collapsed := u.Collapsed
	_, err := b.call(ctx, OutgoingMsg{
		Action:    "update-group",
		GroupID:   groupID,
		Title:     u.Title,
		Color:     u.Color,
		Collapsed: &collapsed,
	})
	return err
}

func (b *Browser) CloseTabs(ctx context.Context, tabIDs []int) error {
	_, err := b.call(ctx, OutgoingMsg{Action: "close", TabIDs: tabIDs})
	return err
}

// BadgeColor is the badge background.
const BadgeColor = "#FF0000"

// SetBadge sets the toolbar badge text and tooltip.
func (b *Browser) SetBadge(ctx context.Context, text, title string) error {
	_, err := b.call(ctx, OutgoingMsg{Action: "set-badge", Text: text, Title: title, Color: BadgeColor})
	return err
}
