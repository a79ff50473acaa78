package relay

import (
	"errors"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/matheus3301/gigchat/internal/socket"
	"github.com/matheus3301/gigchat/internal/wire"
)

type peer struct {
	hub  *Hub
	conn socket.Conn
	user string
	send chan wire.Frame
	done chan struct{}
}

// push queues f without blocking; a peer that cannot keep up is dropped.
func (p *peer) push(f wire.Frame) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.send <- f:
		return true
	default:
		p.hub.logger.Warn("dropping slow client", zap.String("user", p.user))
		p.conn.Close()
		return false
	}
}

// Serve runs one client connection until it closes.
func (h *Hub) Serve(ws *websocket.Conn) {
	p := &peer{
		hub:  h,
		conn: socket.NewConn(ws, h.pongWait),
		send: make(chan wire.Frame, sendBuffer),
		done: make(chan struct{}),
	}
	go p.writePump()
	defer func() {
		close(p.done)
		p.conn.Close()
		if p.user != "" && h.unregister(p) {
			h.broadcast(mustFrame(wire.EventUserOffline, wire.UserPresence{UserID: p.user}), p.user)
			h.logger.Info("user offline", zap.String("user", p.user))
		}
	}()
	p.readPump()
}

func (p *peer) writePump() {
	for {
		select {
		case f := <-p.send:
			if err := p.conn.WriteFrame(f); err != nil {
				p.conn.Close()
				return
			}
		case <-p.done:
			return
		}
	}
}

func (p *peer) readPump() {
	for {
		f, err := p.conn.ReadFrame()
		if err != nil {
			var pe *socket.ParseError
			if errors.As(err, &pe) {
				p.push(mustFrame(wire.EventError, wire.ServerError{Message: "unreadable frame"}))
				continue
			}
			return
		}
		if p.user == "" && f.Event != wire.EventAuthenticate {
			p.push(mustFrame(wire.EventError, wire.ServerError{Message: "authenticate first"}))
			p.ack(f, wire.Ack{Error: "unauthenticated"})
			continue
		}
		p.hub.handle(p, f)
	}
}

func (p *peer) ack(f wire.Frame, a wire.Ack) {
	if f.ID == 0 {
		return
	}
	out := mustFrame(wire.EventAck, a)
	out.ID = f.ID
	p.push(out)
}

func mustFrame(event string, payload any) wire.Frame {
	f, err := wire.NewFrame(event, payload)
	if err != nil {
		panic(err)
	}
	return f
}
