package export

import (
	"encoding/json"
	"testing"
)

func TestJSON(t *testing.T) {
	result, err := JSON(sampleReport())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed jsonExport
	if err := json.Unmarshal([]byte(result), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v\noutput:\n%s", err, result)
	}

	if parsed.Profile != "default" {
		t.Errorf("expected profile 'default', got %q", parsed.Profile)
	}
	if len(parsed.Windows) != 1 {
		t.Fatalf("expected 1 window, got %d", len(parsed.Windows))
	}
	w := parsed.Windows[0]
	if w.Skipped != 1 {
		t.Errorf("expected 1 skipped tab, got %d", w.Skipped)
	}
	if len(w.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(w.Groups))
	}
	a := w.Groups[0]
	if a.Title != "a.com" || a.Color != "blue" || len(a.Tabs) != 2 {
		t.Errorf("first group = %+v", a)
	}
	if a.Tabs[0].Title != "A" || a.Tabs[0].Index != 0 || a.Tabs[1].Index != 1 {
		t.Errorf("a.com tabs = %+v", a.Tabs)
	}
	if a.Tabs[0].Domain != "a.com" || a.Tabs[0].LastAccessedPretty != "5h ago" {
		t.Errorf("tab fields = %+v", a.Tabs[0])
	}
	u := w.Groups[1]
	if u.Title != "Unsorted" || u.Start != 2 || len(u.Tabs) != 1 {
		t.Errorf("Unsorted group = %+v", u)
	}
}
