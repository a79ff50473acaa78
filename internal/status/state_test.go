package status

import (
	"testing"

	"github.com/matheus3301/gigchat/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Idle {
		t.Errorf("initial state = %s, want IDLE", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Idle, Connecting},
		{Idle, Closed},
		{Connecting, Authenticating},
		{Connecting, Reconnecting},
		{Authenticating, Online},
		{Authenticating, Reconnecting},
		{Online, Reconnecting},
		{Online, Closed},
		{Reconnecting, Connecting},
		{Reconnecting, Closed},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine(nil)
			walkTo(t, m, tt.from)
			if err := m.Transition(tt.to); err != nil {
				t.Errorf("Transition(%s -> %s) error = %v", tt.from, tt.to, err)
			}
			if m.Current() != tt.to {
				t.Errorf("state = %s, want %s", m.Current(), tt.to)
			}
		})
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Online); err == nil {
		t.Error("Transition(IDLE -> ONLINE) should fail")
	}
}

// TestClosedIsFinal verifies that nothing leaves CLOSED, so a late reconnect
// timer cannot revive a link the user shut down.
func TestClosedIsFinal(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, Online)
	if err := m.Transition(Closed); err != nil {
		t.Fatal(err)
	}
	for _, s := range []State{Idle, Connecting, Reconnecting, Online} {
		if err := m.Transition(s); err == nil {
			t.Errorf("Transition(CLOSED -> %s) should fail", s)
		}
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("conn.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(Connecting); err != nil {
		t.Fatal(err)
	}

	evt := <-ch
	if evt.Kind != bus.KindConnStatus {
		t.Errorf("event kind = %q, want %s", evt.Kind, bus.KindConnStatus)
	}
	change, ok := evt.Payload.(StatusChange)
	if !ok {
		t.Fatalf("payload type = %T, want StatusChange", evt.Payload)
	}
	if change.From != Idle || change.To != Connecting {
		t.Errorf("change = %v -> %v, want IDLE -> CONNECTING", change.From, change.To)
	}
}

// TestDropAndRecover walks the reconnect loop:
// ONLINE → RECONNECTING → CONNECTING → AUTHENTICATING → ONLINE
func TestDropAndRecover(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, Online)

	steps := []State{Reconnecting, Connecting, Authenticating, Online}
	for _, s := range steps {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition to %s: %v (current: %s)", s, err, m.Current())
		}
	}
	if m.Current() != Online {
		t.Errorf("final state = %s, want ONLINE", m.Current())
	}
}

// TestDialFailureRetries covers a dial that never gets to authenticate.
func TestDialFailureRetries(t *testing.T) {
	m := NewMachine(nil)
	steps := []State{Connecting, Reconnecting, Connecting, Reconnecting}
	for _, s := range steps {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition to %s: %v (current: %s)", s, err, m.Current())
		}
	}
}

func walkTo(t *testing.T, m *Machine, target State) {
	t.Helper()
	paths := map[State][]State{
		Idle:           {},
		Connecting:     {Connecting},
		Authenticating: {Connecting, Authenticating},
		Online:         {Connecting, Authenticating, Online},
		Reconnecting:   {Connecting, Reconnecting},
		Closed:         {Closed},
	}
	for _, s := range paths[target] {
		if err := m.Transition(s); err != nil {
			t.Fatalf("walkTo(%s): %v", target, err)
		}
	}
}
