package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

// Seed is a TOML file of contacts and history loaded before the first
// connection, typically handed over by the marketplace web app.
//
//	[[contacts]]
//	id = "u-42"
//	display_name = "Ana (logo designer)"
//
//	[[messages]]
//	id = "m-1"
//	contact = "u-42"
//	from = "u-42"
//	text = "Hi! I saw your gig."
//	at = 2024-05-01T10:00:00Z
type Seed struct {
	Contacts []SeedContact `toml:"contacts" validate:"dive"`
	Messages []SeedMessage `toml:"messages" validate:"dive"`
	Active   string        `toml:"active"`
}

type SeedContact struct {
	ID          string `toml:"id" validate:"required"`
	DisplayName string `toml:"display_name"`
	AvatarRef   string `toml:"avatar_ref"`
}

type SeedMessage struct {
	ID      string `toml:"id" validate:"required"`
	Contact string `toml:"contact" validate:"required"`
	// From is the sender id; empty or the local user's id means us.
	From     string    `toml:"from"`
	Kind     string    `toml:"kind" validate:"omitempty,oneof=text image file"`
	Text     string    `toml:"text"`
	Name     string    `toml:"name"`
	Size     int64     `toml:"size" validate:"gte=0"`
	MimeType string    `toml:"mime_type"`
	URL      string    `toml:"url"`
	Status   string    `toml:"status" validate:"omitempty,oneof=sending sent delivered read failed"`
	At       time.Time `toml:"at"`
}

// LoadSeed reads and validates a seed file.
func LoadSeed(path string) (*Seed, error) {
	var s Seed
	if _, err := toml.DecodeFile(path, &s); err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}
	if err := validate.Struct(&s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, fmt.Errorf("invalid seed %s: %s (%s)", path, verrs[0].Namespace(), verrs[0].Tag())
		}
		return nil, fmt.Errorf("invalid seed %s: %w", path, err)
	}
	return &s, nil
}
