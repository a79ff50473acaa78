package messenger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/matheus3301/gigchat/internal/bus"
	"github.com/matheus3301/gigchat/internal/chat"
	"github.com/matheus3301/gigchat/internal/wire"
)

var (
	ErrAttachmentStaged   = errors.New("an attachment is staged; clear it before typing")
	ErrAttachmentTooLarge = errors.New("attachment exceeds size limit")
	ErrEmptyDraft         = errors.New("draft is empty")
)

// DefaultTypingDebounce is the quiet period before typing is announced.
const DefaultTypingDebounce = time.Second

// Staged is an attachment waiting to be sent.
type Staged struct {
	Kind            chat.Kind
	Name            string
	Size            int64
	MimeType        string
	LocalPreviewURL string
	Data            []byte `json:"-"`
}

// Draft is the composer content: text or a staged attachment, never both.
type Draft struct {
	Text   string
	Staged *Staged
}

// Empty reports whether there is nothing to send.
func (d Draft) Empty() bool {
	return d.Staged == nil && strings.TrimSpace(d.Text) == ""
}

type typingEmitter interface {
	EmitVolatile(event string, payload any) error
}

type submitFunc func(ctx context.Context, c chat.Content) (string, error)

// Composer holds the draft for the active conversation and announces typing
// to the peer, debounced.
type Composer struct {
	emitter  typingEmitter
	submit   submitFunc
	bus      *bus.Bus
	logger   *zap.Logger
	maxBytes int64
	debounce *Debouncer

	mu        sync.Mutex
	target    string
	text      string
	staged    *Staged
	typing    bool
	announced string
}

func newComposer(emitter typingEmitter, submit submitFunc, b *bus.Bus, delay time.Duration, maxBytes int64, logger *zap.Logger) *Composer {
	if delay <= 0 {
		delay = DefaultTypingDebounce
	}
	c := &Composer{
		emitter:  emitter,
		submit:   submit,
		bus:      b,
		logger:   logger,
		maxBytes: maxBytes,
	}
	c.debounce = NewDebouncer(delay, c.announceTyping)
	return c
}

// Draft returns a copy of the current draft.
func (c *Composer) Draft() Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draftLocked()
}

func (c *Composer) draftLocked() Draft {
	d := Draft{Text: c.text}
	if c.staged != nil {
		s := *c.staged
		d.Staged = &s
	}
	return d
}

// IsTyping reports the local typing latch: true from a keystroke until the
// debounced announcement fires.
func (c *Composer) IsTyping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.typing
}

// SetTarget points the composer at a new conversation. A typing announcement
// made to the previous one is withdrawn.
func (c *Composer) SetTarget(contactID string) {
	c.mu.Lock()
	if c.target == contactID {
		c.mu.Unlock()
		return
	}
	withdraw := c.stopTypingLocked()
	c.target = contactID
	c.mu.Unlock()
	c.withdraw(withdraw)
}

// SetText replaces the text draft. A non-empty value counts as a keystroke.
func (c *Composer) SetText(text string) error {
	c.mu.Lock()
	if c.staged != nil {
		c.mu.Unlock()
		return ErrAttachmentStaged
	}
	c.text = text
	var withdraw string
	if text == "" {
		withdraw = c.stopTypingLocked()
	} else {
		c.typing = true
		c.debounce.Trigger()
	}
	d := c.draftLocked()
	c.mu.Unlock()
	c.withdraw(withdraw)
	c.publish(d)
	return nil
}

// StageFile stages the file at path, replacing any text draft.
func (c *Composer) StageFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stage %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("stage %s: is a directory", path)
	}
	if c.maxBytes > 0 && info.Size() > c.maxBytes {
		return fmt.Errorf("stage %s (%d bytes): %w", path, info.Size(), ErrAttachmentTooLarge)
	}
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return fmt.Errorf("detect type of %s: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	c.stage(&Staged{
		Kind:            kindFor(mt.String()),
		Name:            filepath.Base(path),
		Size:            info.Size(),
		MimeType:        mt.String(),
		LocalPreviewURL: "file://" + filepath.ToSlash(abs),
		Data:            data,
	})
	return nil
}

// StageData stages in-memory bytes under name.
func (c *Composer) StageData(name string, data []byte) error {
	if c.maxBytes > 0 && int64(len(data)) > c.maxBytes {
		return fmt.Errorf("stage %s (%d bytes): %w", name, len(data), ErrAttachmentTooLarge)
	}
	if len(data) == 0 {
		return fmt.Errorf("stage %s: %w", name, ErrEmptyDraft)
	}
	mt := mimetype.Detect(data)
	c.stage(&Staged{
		Kind:     kindFor(mt.String()),
		Name:     name,
		Size:     int64(len(data)),
		MimeType: mt.String(),
		Data:     data,
	})
	return nil
}

func kindFor(mime string) chat.Kind {
	if strings.HasPrefix(mime, "image/") {
		return chat.KindImage
	}
	return chat.KindFile
}

func (c *Composer) stage(s *Staged) {
	c.mu.Lock()
	c.staged = s
	c.text = ""
	withdraw := c.stopTypingLocked()
	d := c.draftLocked()
	c.mu.Unlock()
	c.withdraw(withdraw)
	c.publish(d)
	c.logger.Debug("attachment staged",
		zap.String("name", s.Name),
		zap.String("mime", s.MimeType),
		zap.Int64("size", s.Size),
	)
}

// ClearAttachment removes a staged attachment.
func (c *Composer) ClearAttachment() {
	c.mu.Lock()
	if c.staged == nil {
		c.mu.Unlock()
		return
	}
	c.staged = nil
	d := c.draftLocked()
	c.mu.Unlock()
	c.publish(d)
}

// Reset clears the draft and withdraws any typing announcement.
func (c *Composer) Reset() {
	c.mu.Lock()
	c.text = ""
	c.staged = nil
	withdraw := c.stopTypingLocked()
	d := c.draftLocked()
	c.mu.Unlock()
	c.withdraw(withdraw)
	c.publish(d)
}

// Submit sends the draft to the active conversation. On success the draft
// is cleared and typing withdrawn; on failure the draft is kept.
func (c *Composer) Submit(ctx context.Context) (string, error) {
	d := c.Draft()
	if d.Empty() {
		return "", ErrEmptyDraft
	}
	content := chat.Text(d.Text)
	if s := d.Staged; s != nil {
		content = chat.Content{
			Kind: s.Kind,
			Attachment: &chat.Attachment{
				Name:     s.Name,
				Size:     s.Size,
				MimeType: s.MimeType,
				Data:     s.Data,
			},
		}
	}
	id, err := c.submit(ctx, content)
	if err != nil {
		return "", err
	}
	c.Reset()
	return id, nil
}

func (c *Composer) announceTyping() {
	c.mu.Lock()
	if !c.typing {
		// Withdrawn while the timer was firing.
		c.mu.Unlock()
		return
	}
	c.typing = false
	target := c.target
	if target == "" {
		c.mu.Unlock()
		return
	}
	c.announced = target
	c.mu.Unlock()
	c.emitTyping(target, true)
}

// stopTypingLocked cancels a pending announcement and returns the contact
// that must be told typing stopped, if any.
func (c *Composer) stopTypingLocked() string {
	c.debounce.Cancel()
	c.typing = false
	who := c.announced
	c.announced = ""
	return who
}

func (c *Composer) withdraw(contactID string) {
	if contactID != "" {
		c.emitTyping(contactID, false)
	}
}

func (c *Composer) emitTyping(contactID string, typing bool) {
	err := c.emitter.EmitVolatile(wire.EventTyping, wire.TypingOut{ReceiverID: contactID, IsTyping: typing})
	if err != nil {
		c.logger.Debug("typing not sent", zap.String("to", contactID), zap.Bool("typing", typing), zap.Error(err))
	}
}

func (c *Composer) publish(d Draft) {
	if c.bus != nil {
		c.bus.Emit(bus.KindDraftChanged, d)
	}
}
