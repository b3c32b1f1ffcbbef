package firefox

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/lotas/tabheinzel/internal/classify"
	"github.com/lotas/tabheinzel/internal/organize"
	"github.com/pierrec/lz4/v4"
)

func TestIntegration_SessionToPlan(t *testing.T) {
	// Create a fake profile directory with a session file
	profileDir := t.TempDir()
	backupDir := filepath.Join(profileDir, "sessionstore-backups")
	os.MkdirAll(backupDir, 0755)

	sessionJSON := `{
		"version": ["sessionrestore", 1],
		"windows": [{
			"tabs": [
				{
					"entries": [{"url": "https://example.com", "title": "Example"}],
					"index": 1,
					"lastAccessed": 1000000000000,
					"groupId": "g1"
				},
				{
					"entries": [{"url": "https://example.com", "title": "Example Dup"}],
					"index": 1,
					"lastAccessed": 1000000000000,
					"groupId": "g1"
				},
				{
					"entries": [{"url": "https://other.com/page", "title": "Other"}],
					"index": 1,
					"lastAccessed": 1707654321000
				}
			],
			"groups": [
				{"id": "g1", "name": "Test Group", "color": "blue", "collapsed": false}
			]
		}]
	}`

	// Compress to mozlz4
	jsonBytes := []byte(sessionJSON)
	compressed := make([]byte, lz4.CompressBlockBound(len(jsonBytes)))
	n, err := lz4.CompressBlock(jsonBytes, compressed, nil)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}

	mozlz4 := make([]byte, 0, 12+n)
	mozlz4 = append(mozlz4, []byte("mozLz40\x00")...)
	sizeBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(sizeBuf, uint32(len(jsonBytes)))
	mozlz4 = append(mozlz4, sizeBuf...)
	mozlz4 = append(mozlz4, compressed[:n]...)

	os.WriteFile(filepath.Join(backupDir, "recovery.jsonlz4"), mozlz4, 0644)

	// Run the full pipeline
	data, err := ReadSessionFile(profileDir)
	if err != nil {
		t.Fatalf("read session: %v", err)
	}

	if len(data.AllTabs) != 3 || len(data.Groups) != 1 {
		t.Fatalf("expected 3 tabs in 1 group, got %d tabs, %d groups", len(data.AllTabs), len(data.Groups))
	}

	keep, dupes := classify.Duplicates(data.TabsInWindow(1))
	if len(dupes) != 1 || dupes[0] != 2 {
		t.Errorf("expected tab 2 to be the duplicate, got %v", dupes)
	}

	plan := organize.Build(1, keep, nil, nil)
	if len(plan.Entries) != 2 {
		t.Fatalf("expected 2 planned tabs, got %d", len(plan.Entries))
	}
	if u := plan.Bucket("Unsorted"); u == nil || len(u.TabIDs) != 2 {
		t.Errorf("expected both single-domain tabs in Unsorted, got %+v", plan.Buckets)
	}
}
