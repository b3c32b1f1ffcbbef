package firefox

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lotas/tabheinzel/internal/types"
	"github.com/pierrec/lz4/v4"
)

// mozlz4 header: 8-byte magic "mozLz40\x00"
var mozLz4Magic = []byte("mozLz40\x00")

// DecompressMozLz4 decompresses data in Mozilla's mozlz4 format.
// The format is: 8-byte magic "mozLz40\x00" + 4-byte LE uint32 uncompressed size + lz4 block data.
func DecompressMozLz4(data []byte) ([]byte, error) {
	const headerSize = 12 // 8 magic + 4 size

	if len(data) < headerSize {
		return nil, fmt.Errorf("mozlz4: data too short (%d bytes)", len(data))
	}

	// Verify magic header.
	for i := 0; i < len(mozLz4Magic); i++ {
		if data[i] != mozLz4Magic[i] {
			return nil, fmt.Errorf("mozlz4: invalid header magic")
		}
	}

	// Read uncompressed size (4-byte little-endian uint32).
	uncompressedSize := binary.LittleEndian.Uint32(data[8:12])

	// Decompress using raw lz4 block decompression.
	dst := make([]byte, uncompressedSize)
	n, err := lz4.UncompressBlock(data[headerSize:], dst)
	if err != nil {
		return nil, fmt.Errorf("mozlz4: decompress failed: %w", err)
	}

	return dst[:n], nil
}

// Raw JSON types for Firefox session file parsing.
type rawEntry struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

type rawTab struct {
	Entries      []rawEntry `json:"entries"`
	Index        int        `json:"index"`
	LastAccessed int64      `json:"lastAccessed"`
	Pinned       bool       `json:"pinned"`
	Hidden       bool       `json:"hidden"`
	Group        string     `json:"groupId"`
}

type rawGroup struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	Collapsed bool   `json:"collapsed"`
}

type rawWindow struct {
	Tabs     []rawTab   `json:"tabs"`
	Groups   []rawGroup `json:"groups"`
	Selected int        `json:"selected"`
}

type rawSession struct {
	Windows []rawWindow `json:"windows"`
}

// ParseSession parses raw JSON session data into a SessionData structure.
// The session file carries no live IDs: windows are numbered from 1 in file
// order, tabs from 1 across the whole session, and Firefox's string group
// IDs are mapped to numbers in order of appearance. Hidden tabs are left out.
func ParseSession(data []byte) (*types.SessionData, error) {
	var raw rawSession
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse session JSON: %w", err)
	}

	sd := &types.SessionData{
		ParsedAt: time.Now(),
	}

	nextTab, nextGroup := 1, 1
	for winIdx, window := range raw.Windows {
		windowID := winIdx + 1
		sd.Windows = append(sd.Windows, windowID)

		groupIDs := make(map[string]int)
		for _, rg := range window.Groups {
			groupIDs[rg.ID] = nextGroup
			sd.Groups = append(sd.Groups, &types.Group{
				ID:        nextGroup,
				WindowID:  windowID,
				Title:     rg.Name,
				Color:     rg.Color,
				Collapsed: rg.Collapsed,
			})
			nextGroup++
		}

		index := 0
		for tabIdx, rt := range window.Tabs {
			if len(rt.Entries) == 0 || rt.Hidden {
				continue
			}

			// index is 1-based; current page is entries[index-1].
			entryIdx := rt.Index - 1
			if entryIdx < 0 || entryIdx >= len(rt.Entries) {
				entryIdx = len(rt.Entries) - 1
			}
			entry := rt.Entries[entryIdx]

			tab := &types.Tab{
				ID:       nextTab,
				WindowID: windowID,
				Index:    index,
				GroupID:  types.NoGroup,
				URL:      entry.URL,
				Title:    entry.Title,
				Pinned:   rt.Pinned,
				Active:   window.Selected == tabIdx+1,
			}
			if rt.LastAccessed > 0 {
				tab.LastAccessed = time.UnixMilli(rt.LastAccessed)
			}
			// A group referenced but not defined leaves the tab ungrouped.
			if id, ok := groupIDs[rt.Group]; ok && rt.Group != "" {
				tab.GroupID = id
			}
			sd.AllTabs = append(sd.AllTabs, tab)
			nextTab++
			index++
		}
	}

	return sd, nil
}

// ReadSessionFile reads and parses the session file of profileDir, trying
// the running session before the last closed one.
func ReadSessionFile(profileDir string) (*types.SessionData, error) {
	path, ok := sessionPath(profileDir)
	if !ok {
		return nil, fmt.Errorf("no session file found in %s", filepath.Join(profileDir, "sessionstore-backups"))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}

	decompressed, err := DecompressMozLz4(data)
	if err != nil {
		return nil, fmt.Errorf("decompress session file: %w", err)
	}

	return ParseSession(decompressed)
}
