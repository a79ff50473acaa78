package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := &Config{DefaultProfile: "work"}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultProfile != "work" {
		t.Errorf("DefaultProfile = %q, want %q", loaded.DefaultProfile, "work")
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, &Config{DefaultProfile: "main"}); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestLoadProfile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ProfileFile), `
endpoint = "wss://chat.example.com/ws"
seed_file = "seed.toml"
log_level = "debug"

[user]
id = "freelancer-7"
display_name = "Rita"

[realtime]
reconnect_delay = "5s"
ack_timeout = "2s"
queue_size = 64

[composer]
typing_debounce = "500ms"
`)

	p, err := LoadProfile(dir)
	if err != nil {
		t.Fatal(err)
	}
	if p.Endpoint != "wss://chat.example.com/ws" {
		t.Errorf("Endpoint = %q", p.Endpoint)
	}
	if p.User.ID != "freelancer-7" || p.User.DisplayName != "Rita" {
		t.Errorf("User = %+v", p.User)
	}
	if p.Realtime.ReconnectDelay != 5*time.Second || p.Realtime.AckTimeout != 2*time.Second {
		t.Errorf("Realtime = %+v", p.Realtime)
	}
	if p.Realtime.QueueSize != 64 {
		t.Errorf("QueueSize = %d, want 64", p.Realtime.QueueSize)
	}
	if p.Composer.TypingDebounce != 500*time.Millisecond {
		t.Errorf("TypingDebounce = %v, want 500ms", p.Composer.TypingDebounce)
	}
	if p.Composer.MaxAttachmentBytes != 10<<20 {
		t.Errorf("MaxAttachmentBytes = %d, want default", p.Composer.MaxAttachmentBytes)
	}
	if p.SeedFile != filepath.Join(dir, "seed.toml") {
		t.Errorf("SeedFile = %q, want it resolved against the profile dir", p.SeedFile)
	}
}

func TestLoadProfileEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ProfileFile), `
[user]
id = "from-file"
`)
	writeFile(t, filepath.Join(dir, EnvFile), "GIGCHAT_USER_ID=from-dotenv\nGIGCHAT_DISPLAY_NAME=Dot Env\n")
	t.Setenv(EnvDisplayName, "From Process")

	p, err := LoadProfile(dir)
	if err != nil {
		t.Fatal(err)
	}
	if p.User.ID != "from-dotenv" {
		t.Errorf("User.ID = %q, want from-dotenv", p.User.ID)
	}
	if p.User.DisplayName != "From Process" {
		t.Errorf("DisplayName = %q, process env should win over .env", p.User.DisplayName)
	}
	if p.Endpoint != DefaultEndpoint {
		t.Errorf("Endpoint = %q, want default", p.Endpoint)
	}
}

func TestLoadProfileValidation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"missing user id", `endpoint = "ws://localhost/ws"`, "User.ID"},
		{"bad endpoint", "endpoint = \"not a url\"\n[user]\nid = \"u\"", "Endpoint"},
		{"bad log level", "log_level = \"loud\"\n[user]\nid = \"u\"", "LogLevel"},
		{"negative queue", "[user]\nid = \"u\"\n[realtime]\nqueue_size = -1", "QueueSize"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, ProfileFile), tt.body)
			_, err := LoadProfile(dir)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadProfile() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestLoadProfileMissingFileNeedsUser(t *testing.T) {
	t.Setenv(EnvUserID, "client-1")
	p, err := LoadProfile(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if p.User.ID != "client-1" {
		t.Errorf("User.ID = %q", p.User.ID)
	}
}

func TestLoadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.toml")
	writeFile(t, path, `
active = "u-42"

[[contacts]]
id = "u-42"
display_name = "Ana"

[[messages]]
id = "m-1"
contact = "u-42"
from = "u-42"
text = "Hi! I saw your gig."
at = 2024-05-01T10:00:00Z

[[messages]]
id = "m-2"
contact = "u-42"
kind = "file"
name = "brief.pdf"
size = 2048
status = "read"
at = 2024-05-01T10:05:00Z
`)
	s, err := LoadSeed(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Contacts) != 1 || s.Contacts[0].DisplayName != "Ana" {
		t.Errorf("Contacts = %+v", s.Contacts)
	}
	if len(s.Messages) != 2 || s.Messages[1].Name != "brief.pdf" {
		t.Errorf("Messages = %+v", s.Messages)
	}
	if s.Active != "u-42" {
		t.Errorf("Active = %q", s.Active)
	}
	if !s.Messages[0].At.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("At = %v", s.Messages[0].At)
	}
}

func TestLoadSeedRejectsBadStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.toml")
	writeFile(t, path, "[[messages]]\nid = \"m\"\ncontact = \"c\"\nstatus = \"lost\"\n")
	if _, err := LoadSeed(path); err == nil {
		t.Error("LoadSeed() expected error for unknown status")
	}
}
