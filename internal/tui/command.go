package tui

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Command represents a parsed command.
type Command struct {
	Name string
	Args string
}

// Command names accepted in : mode.
const (
	CmdOpen    = "open"
	CmdSearch  = "search"
	CmdAttach  = "attach"
	CmdDetach  = "detach"
	CmdReply   = "reply"
	CmdUnreply = "unreply"
	CmdDelete  = "delete"
	CmdCard    = "card"
	CmdHelp    = "help"
	CmdQuit    = "quit"
)

// Commands returns the full command names, sorted.
func Commands() []string {
	names := []string{CmdOpen, CmdSearch, CmdAttach, CmdDetach, CmdReply, CmdUnreply, CmdDelete, CmdCard, CmdHelp, CmdQuit}
	slices.Sort(names)
	return names
}

var aliases = map[string]string{
	"o":    CmdOpen,
	"chat": CmdOpen,
	"s":    CmdSearch,
	"a":    CmdAttach,
	"r":    CmdReply,
	"d":    CmdDelete,
	"rm":   CmdDelete,
	"h":    CmdHelp,
	"q":    CmdQuit,
	"qr":   CmdCard,
}

// ParseCommand parses a command string (without the leading ':'). Aliases
// resolve to their full name.
func ParseCommand(input string) Command {
	input = strings.TrimSpace(input)
	parts := strings.SplitN(input, " ", 2)
	cmd := Command{Name: strings.ToLower(parts[0])}
	if full, ok := aliases[cmd.Name]; ok {
		cmd.Name = full
	}
	if len(parts) > 1 {
		cmd.Args = strings.TrimSpace(parts[1])
	}
	return cmd
}

// expandPath resolves a leading "~/" and makes path absolute, since the
// daemon does not share the UI's working directory.
func expandPath(path string) string {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, rest)
		}
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
