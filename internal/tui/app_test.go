package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/go-cmp/cmp"
	"github.com/lotas/tabheinzel/internal/daemon"
	"github.com/lotas/tabheinzel/internal/server"
)

type fakeCommander struct {
	mu      sync.Mutex
	domains []string
	calls   []server.Command
	fail    error
}

func (f *fakeCommander) Execute(_ context.Context, cmd server.Command) daemon.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, cmd)
	switch cmd.Action {
	case daemon.ActionListDomains:
		return daemon.Result{Content: strings.Join(f.domains, "\n") + "\n"}
	case daemon.ActionRemoveDomain:
		var kept []string
		for _, d := range f.domains {
			if d != cmd.Content {
				kept = append(kept, d)
			}
		}
		f.domains = kept
		return daemon.Result{Summary: "Removed " + cmd.Content}
	}
	if f.fail != nil {
		return daemon.Result{Err: f.fail}
	}
	return daemon.Result{Summary: "Tabs successfully organized!"}
}

func (f *fakeCommander) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		out = append(out, c.Action)
	}
	return out
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// step feeds msg to m and runs the resulting command once.
func step(t *testing.T, m Model, msg tea.Msg) (Model, tea.Msg) {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	if cmd == nil {
		return m, nil
	}
	return m, cmd()
}

func loaded(t *testing.T, f *fakeCommander) Model {
	t.Helper()
	m := NewModel(f, func() bool { return true }, 19192)
	m, _ = step(t, m, loadDomains(f)())
	return m
}

func TestLoadDomains(t *testing.T) {
	f := &fakeCommander{domains: []string{"a.com", "b.com"}}
	m := loaded(t, f)
	if diff := cmp.Diff([]string{"a.com", "b.com"}, m.domains); diff != "" {
		t.Errorf("domains mismatch (-want +got):\n%s", diff)
	}
}

func TestOrganizeKey(t *testing.T) {
	f := &fakeCommander{}
	m := loaded(t, f)

	m, msg := step(t, m, key("o"))
	if !m.busy || m.status != "Organizing tabs..." {
		t.Fatalf("after o: busy=%v status=%q", m.busy, m.status)
	}
	res, ok := msg.(resultMsg)
	if !ok {
		t.Fatalf("command returned %T, want resultMsg", msg)
	}

	m, _ = step(t, m, res)
	if m.busy {
		t.Error("still busy after result")
	}
	if m.status != "Tabs successfully organized!" || m.statusErr {
		t.Errorf("status = %q (err=%v)", m.status, m.statusErr)
	}
}

func TestBusyIgnoresSecondCommand(t *testing.T) {
	f := &fakeCommander{}
	m := loaded(t, f)

	next, cmd := m.Update(key("o"))
	if cmd == nil {
		t.Fatal("first o returned no command")
	}
	m = next.(Model)
	if _, cmd := m.Update(key("m")); cmd != nil {
		t.Error("second command started while busy")
	}
}

func TestErrorStatus(t *testing.T) {
	f := &fakeCommander{fail: errors.New("extension not connected")}
	m := loaded(t, f)

	m, msg := step(t, m, key("m"))
	m, _ = step(t, m, msg)
	if !m.statusErr || !strings.Contains(m.status, "extension not connected") {
		t.Errorf("status = %q (err=%v)", m.status, m.statusErr)
	}
	if !strings.Contains(m.View(), "extension not connected") {
		t.Error("view does not show the error")
	}
}

func TestRemoveSelectedDomain(t *testing.T) {
	f := &fakeCommander{domains: []string{"a.com", "b.com", "c.com"}}
	m := loaded(t, f)

	m, _ = step(t, m, key("j"))
	m, _ = step(t, m, key("j"))
	m, _ = step(t, m, key("j")) // clamps at the end
	if m.cursor != 2 {
		t.Fatalf("cursor = %d, want 2", m.cursor)
	}

	m, msg := step(t, m, key("d"))
	m, msg = step(t, m, msg)
	m, _ = step(t, m, msg)

	if diff := cmp.Diff([]string{"a.com", "b.com"}, m.domains); diff != "" {
		t.Errorf("domains mismatch (-want +got):\n%s", diff)
	}
	if m.cursor != 1 {
		t.Errorf("cursor = %d, want 1 after removing the last entry", m.cursor)
	}
	want := []string{daemon.ActionListDomains, daemon.ActionRemoveDomain, daemon.ActionListDomains}
	if diff := cmp.Diff(want, f.actions()); diff != "" {
		t.Errorf("actions mismatch (-want +got):\n%s", diff)
	}
}

func TestRemoveWithoutDomains(t *testing.T) {
	f := &fakeCommander{}
	m := loaded(t, f)
	if _, cmd := m.Update(key("d")); cmd != nil {
		t.Error("d with no domains should do nothing")
	}
}

func TestTickUpdatesConnection(t *testing.T) {
	online := false
	m := NewModel(&fakeCommander{}, func() bool { return online }, 19192)

	next, _ := m.Update(tickMsg{})
	m = next.(Model)
	if !strings.Contains(m.View(), "waiting for extension") {
		t.Error("view should show waiting state")
	}

	online = true
	next, _ = m.Update(tickMsg{})
	m = next.(Model)
	if !strings.Contains(m.View(), "connected on :19192") {
		t.Error("view should show connected state")
	}
}

func TestQuit(t *testing.T) {
	m := NewModel(&fakeCommander{}, nil, 1)
	_, cmd := m.Update(key("q"))
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}
