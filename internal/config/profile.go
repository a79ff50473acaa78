package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Environment overrides.
const (
	EnvEndpoint    = "GIGCHAT_ENDPOINT"
	EnvUserID      = "GIGCHAT_USER_ID"
	EnvDisplayName = "GIGCHAT_DISPLAY_NAME"
	EnvLogLevel    = "GIGCHAT_LOG_LEVEL"
)

const (
	ProfileFile = "profile.toml"
	EnvFile     = ".env"
)

// DefaultEndpoint is the local development relay.
const DefaultEndpoint = "ws://127.0.0.1:8090/ws"

// Profile is one account's settings, read from profile.toml.
type Profile struct {
	Endpoint string         `toml:"endpoint" validate:"required,url"`
	User     UserConfig     `toml:"user"`
	Realtime RealtimeConfig `toml:"realtime"`
	Composer ComposerConfig `toml:"composer"`
	// SeedFile is resolved relative to the profile directory.
	SeedFile string `toml:"seed_file"`
	LogLevel string `toml:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

type UserConfig struct {
	ID          string `toml:"id" validate:"required,max=128"`
	DisplayName string `toml:"display_name" validate:"max=128"`
	AvatarRef   string `toml:"avatar_ref"`
}

// RealtimeConfig tunes the connection manager. Zero values select defaults.
type RealtimeConfig struct {
	ReconnectDelay time.Duration `toml:"reconnect_delay" validate:"gte=0"`
	AckTimeout     time.Duration `toml:"ack_timeout" validate:"gte=0"`
	DialTimeout    time.Duration `toml:"dial_timeout" validate:"gte=0"`
	PingPeriod     time.Duration `toml:"ping_period" validate:"gte=0"`
	QueueSize      int           `toml:"queue_size" validate:"min=0"`
}

type ComposerConfig struct {
	TypingDebounce     time.Duration `toml:"typing_debounce" validate:"gte=0"`
	MaxAttachmentBytes int64         `toml:"max_attachment_bytes" validate:"min=0"`
}

// DefaultProfile returns the settings used when profile.toml is absent.
func DefaultProfile() *Profile {
	return &Profile{
		Endpoint: DefaultEndpoint,
		Composer: ComposerConfig{
			TypingDebounce:     time.Second,
			MaxAttachmentBytes: 10 << 20,
		},
		LogLevel: "info",
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadProfile reads dir/profile.toml over the defaults, then applies dir/.env
// and the process environment (which wins), then validates the result.
func LoadProfile(dir string) (*Profile, error) {
	p := DefaultProfile()
	path := filepath.Join(dir, ProfileFile)
	if _, err := toml.DecodeFile(path, p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	env, err := godotenv.Read(filepath.Join(dir, EnvFile))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", EnvFile, err)
	}
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := env[key]
		return v, ok
	}
	if v, ok := lookup(EnvEndpoint); ok {
		p.Endpoint = v
	}
	if v, ok := lookup(EnvUserID); ok {
		p.User.ID = v
	}
	if v, ok := lookup(EnvDisplayName); ok {
		p.User.DisplayName = v
	}
	if v, ok := lookup(EnvLogLevel); ok {
		p.LogLevel = strings.ToLower(v)
	}

	if p.SeedFile != "" && !filepath.IsAbs(p.SeedFile) {
		p.SeedFile = filepath.Join(dir, p.SeedFile)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks field constraints.
func (p *Profile) Validate() error {
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid profile: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid profile: %w", err)
	}
	return nil
}
