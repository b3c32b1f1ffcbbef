package firefox

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/lotas/tabheinzel/internal/types"
)

// sessionFiles are tried in order: the running session, then the last
// closed one.
var sessionFiles = []string{"recovery.jsonlz4", "previous.jsonlz4"}

// sessionPath returns the first session file present in profileDir.
func sessionPath(profileDir string) (string, bool) {
	backupDir := filepath.Join(profileDir, "sessionstore-backups")
	for _, name := range sessionFiles {
		path := filepath.Join(backupDir, name)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

// Dir returns the Firefox data directory under home for goos, or "" on
// platforms without a known layout.
func Dir(home, goos string) string {
	if home == "" {
		return ""
	}
	switch goos {
	case "linux":
		return filepath.Join(home, ".mozilla", "firefox")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Firefox")
	default:
		return ""
	}
}

type iniSection struct {
	name string
	keys map[string]string
}

func parseINI(r io.Reader) ([]iniSection, error) {
	var sections []iniSection
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "", strings.HasPrefix(line, ";"), strings.HasPrefix(line, "#"):
		case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
			sections = append(sections, iniSection{name: line[1 : len(line)-1], keys: map[string]string{}})
		case len(sections) > 0:
			if key, value, ok := strings.Cut(line, "="); ok {
				sections[len(sections)-1].keys[strings.TrimSpace(key)] = strings.TrimSpace(value)
			}
		}
	}
	return sections, scanner.Err()
}

// ReadProfiles parses dir/profiles.ini and returns the profiles that have a
// session file, in file order. An [Install...] section naming a default
// profile takes precedence over the per-profile Default flag, as it does
// in current Firefox releases.
func ReadProfiles(dir string) ([]types.Profile, error) {
	f, err := os.Open(filepath.Join(dir, "profiles.ini"))
	if err != nil {
		return nil, fmt.Errorf("open profiles.ini: %w", err)
	}
	defer f.Close()

	sections, err := parseINI(f)
	if err != nil {
		return nil, fmt.Errorf("scan profiles.ini: %w", err)
	}

	installDefault := ""
	for _, s := range sections {
		if strings.HasPrefix(s.name, "Install") && s.keys["Default"] != "" {
			installDefault = s.keys["Default"]
			break
		}
	}

	var profiles []types.Profile
	for _, s := range sections {
		if !strings.HasPrefix(s.name, "Profile") {
			continue
		}
		rawPath := s.keys["Path"]
		p := types.Profile{
			Name:       s.keys["Name"],
			Path:       rawPath,
			IsRelative: s.keys["IsRelative"] == "1",
			IsDefault:  s.keys["Default"] == "1",
		}
		if installDefault != "" {
			p.IsDefault = rawPath == installDefault
		}
		if p.IsRelative {
			p.Path = filepath.Join(dir, filepath.FromSlash(rawPath))
		}
		if _, ok := sessionPath(p.Path); !ok {
			continue
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// Discover reads the profiles of the local Firefox installation.
func Discover() ([]types.Profile, error) {
	home, _ := os.UserHomeDir()
	dir := Dir(home, runtime.GOOS)
	if dir == "" {
		return nil, fmt.Errorf("could not find Firefox directory for %s", runtime.GOOS)
	}
	return ReadProfiles(dir)
}

// Select picks the profile called name, or the default profile when name
// is empty. With no default it falls back to the first profile.
func Select(profiles []types.Profile, name string) (types.Profile, error) {
	if len(profiles) == 0 {
		return types.Profile{}, fmt.Errorf("no Firefox profiles with a session file found")
	}
	if name == "" {
		for _, p := range profiles {
			if p.IsDefault {
				return p, nil
			}
		}
		return profiles[0], nil
	}
	var names []string
	for _, p := range profiles {
		if p.Name == name {
			return p, nil
		}
		names = append(names, p.Name)
	}
	return types.Profile{}, fmt.Errorf("profile %q not found (available: %s)", name, strings.Join(names, ", "))
}

// LoadSession reads the session of the profile chosen by Select.
func LoadSession(name string) (*types.SessionData, error) {
	profiles, err := Discover()
	if err != nil {
		return nil, err
	}
	p, err := Select(profiles, name)
	if err != nil {
		return nil, err
	}
	sd, err := ReadSessionFile(p.Path)
	if err != nil {
		return nil, err
	}
	sd.Profile = p
	return sd, nil
}
