package chat

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrLoopStopped is returned by Do and View once the loop has exited.
var ErrLoopStopped = errors.New("chat loop stopped")

// Action is a state transition. apply must validate before mutating so a
// returned error leaves the state untouched and produces no effects.
type Action interface {
	apply(s *State, fx *Effects) error
}

// ExecFunc runs the effects of an applied action.
type ExecFunc func(Effects)

type item struct {
	action Action
	view   func(*State)
	done   chan error
}

// Loop serializes every action against one State. Producers never block:
// the queue is unbounded and drained by a single goroutine.
type Loop struct {
	state  *State
	exec   ExecFunc
	logger *zap.Logger

	mu     sync.Mutex
	queue  []item
	wake   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

// NewLoop creates a loop over state. exec may be nil.
func NewLoop(state *State, exec ExecFunc, logger *zap.Logger) *Loop {
	if exec == nil {
		exec = func(Effects) {}
	}
	return &Loop{
		state:  state,
		exec:   exec,
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Start launches the loop goroutine.
func (l *Loop) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	l.mu.Lock()
	l.cancel = cancel
	l.mu.Unlock()
	go l.run(ctx)
}

// Stop ends the loop and waits for it. Queued actions are discarded.
func (l *Loop) Stop() {
	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()
	if cancel != nil {
		cancel()
		<-l.done
	}
}

// Dispatch enqueues a without waiting.
func (l *Loop) Dispatch(a Action) {
	l.push(item{action: a})
}

// Do enqueues a and waits for it to be applied and its effects executed.
func (l *Loop) Do(ctx context.Context, a Action) error {
	done := make(chan error, 1)
	l.push(item{action: a, done: done})
	return l.wait(ctx, done)
}

// View runs fn against the state after every action queued before it.
// fn must not retain the *State.
func (l *Loop) View(ctx context.Context, fn func(*State)) error {
	done := make(chan error, 1)
	l.push(item{view: fn, done: done})
	return l.wait(ctx, done)
}

func (l *Loop) push(it item) {
	l.mu.Lock()
	l.queue = append(l.queue, it)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) wait(ctx context.Context, done chan error) error {
	select {
	case err := <-done:
		return err
	case <-l.done:
		// The item may have been handled just before exit.
		select {
		case err := <-done:
			return err
		default:
			return ErrLoopStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.wake:
		}
		for {
			l.mu.Lock()
			if len(l.queue) == 0 {
				l.mu.Unlock()
				break
			}
			it := l.queue[0]
			l.queue[0] = item{}
			l.queue = l.queue[1:]
			l.mu.Unlock()

			if ctx.Err() != nil {
				return
			}
			l.handle(it)
		}
	}
}

func (l *Loop) handle(it item) {
	if it.view != nil {
		it.view(l.state)
		it.done <- nil
		return
	}
	var fx Effects
	err := it.action.apply(l.state, &fx)
	if err != nil {
		if it.done == nil {
			l.logger.Warn("action rejected", zap.String("action", actionName(it.action)), zap.Error(err))
		}
	} else if !fx.Empty() {
		l.exec(fx)
	}
	if it.done != nil {
		it.done <- err
	}
}

func actionName(a Action) string {
	switch a.(type) {
	case Seed:
		return "seed"
	case SelectContact:
		return "select_contact"
	case Incoming:
		return "incoming"
	case ConnectionChanged:
		return "connection_changed"
	case SendLocal:
		return "send_local"
	case SendAcked:
		return "send_acked"
	case Receipt:
		return "receipt"
	case ReadUnsent:
		return "read_unsent"
	case DeleteLocal:
		return "delete_local"
	case DeleteSettled:
		return "delete_settled"
	case SetReplyTarget:
		return "set_reply_target"
	case ClearReply:
		return "clear_reply"
	case OnlineSnapshot:
		return "online_snapshot"
	case UserOnline:
		return "user_online"
	case UserOffline:
		return "user_offline"
	case Typing:
		return "typing"
	}
	return "unknown"
}
