package realtime

import "time"

// Config controls the realtime link.
type Config struct {
	Endpoint string
	UserID   string

	// ReconnectDelay is the fixed wait between a drop and the next dial.
	ReconnectDelay time.Duration
	// AckTimeout bounds how long EmitWithAck waits for the server.
	AckTimeout  time.Duration
	DialTimeout time.Duration
	PingPeriod  time.Duration
	// QueueSize bounds frames held while offline.
	QueueSize int
}

// Defaults.
const (
	DefaultReconnectDelay = 3 * time.Second
	DefaultAckTimeout     = 10 * time.Second
	DefaultDialTimeout    = 10 * time.Second
	DefaultPingPeriod     = 25 * time.Second
	DefaultQueueSize      = 256
)

func (c Config) withDefaults() Config {
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	if c.AckTimeout <= 0 {
		c.AckTimeout = DefaultAckTimeout
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.PingPeriod <= 0 {
		c.PingPeriod = DefaultPingPeriod
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	return c
}
