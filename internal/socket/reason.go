package socket

import (
	"errors"
	"net"

	"github.com/gorilla/websocket"
)

// Disconnect reasons reported to handlers.
const (
	ReasonClientDisconnect = "io client disconnect"
	ReasonServerDisconnect = "io server disconnect"
	ReasonTransportClose   = "transport close"
	ReasonTransportError   = "transport error"
	ReasonPingTimeout      = "ping timeout"
	ReasonParseError       = "parse error"
)

// DisconnectReason classifies a read error into a reason string.
func DisconnectReason(err error) string {
	if err == nil || errors.Is(err, ErrClosed) {
		return ReasonClientDisconnect
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		switch ce.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.ClosePolicyViolation:
			return ReasonServerDisconnect
		default:
			return ReasonTransportClose
		}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ReasonPingTimeout
	}
	return ReasonTransportClose
}
