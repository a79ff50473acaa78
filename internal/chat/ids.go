package chat

import (
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

const tempPrefix = "local:"

// TempIDs issues ids for optimistic messages. They live in their own
// namespace so they can never collide with ids assigned by the server.
type TempIDs struct {
	prefix string
	n      atomic.Uint64
}

// NewTempIDs returns a generator unique to this process.
func NewTempIDs() *TempIDs {
	return &TempIDs{prefix: tempPrefix + uuid.NewString()[:8] + ":"}
}

// Next returns a fresh temp id.
func (g *TempIDs) Next() string {
	return g.prefix + strconv.FormatUint(g.n.Add(1), 10)
}

// IsTempID reports whether id was issued by a TempIDs generator.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, tempPrefix)
}
