package profile

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/matheus3301/gigchat/internal/config"
)

// Info describes a profile directory on disk.
type Info struct {
	Name string
	Path string
	// HasSocket reports whether a daemon socket file exists. A stale socket
	// from a crashed daemon also counts.
	HasSocket bool
}

// List returns the valid profile directories, sorted by name.
func List() ([]Info, error) {
	entries, err := os.ReadDir(filepath.Join(BaseDir(), "profiles"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []Info
	for _, e := range entries {
		if !e.IsDir() || ValidateName(e.Name()) != nil {
			continue
		}
		_, statErr := os.Stat(SocketPath(e.Name()))
		out = append(out, Info{Name: e.Name(), Path: Dir(e.Name()), HasSocket: statErr == nil})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SetDefault records name as default_profile in the global config.
func SetDefault(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	cfg, err := config.Load(ConfigPath())
	if err != nil {
		cfg = &config.Config{}
	}
	cfg.DefaultProfile = name
	return config.Save(ConfigPath(), cfg)
}
