package messenger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/matheus3301/gigchat/internal/bus"
	"github.com/matheus3301/gigchat/internal/chat"
	"github.com/matheus3301/gigchat/internal/wire"
)

type typingRecorder struct {
	mu  sync.Mutex
	out []wire.TypingOut
}

func (r *typingRecorder) EmitVolatile(event string, payload any) error {
	if event != wire.EventTyping {
		return errors.New("unexpected event " + event)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = append(r.out, payload.(wire.TypingOut))
	return nil
}

func (r *typingRecorder) sent() []wire.TypingOut {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]wire.TypingOut(nil), r.out...)
}

type submitRecorder struct {
	mu   sync.Mutex
	got  []chat.Content
	fail error
}

func (s *submitRecorder) submit(_ context.Context, c chat.Content) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return "", s.fail
	}
	s.got = append(s.got, c)
	return "local:test:1", nil
}

func newTestComposer(t *testing.T, delay time.Duration, maxBytes int64) (*Composer, *typingRecorder, *submitRecorder) {
	t.Helper()
	rec := &typingRecorder{}
	sub := &submitRecorder{}
	c := newComposer(rec, sub.submit, bus.New(), delay, maxBytes, zap.NewNop())
	c.SetTarget("bob")
	return c, rec, sub
}

func TestTypingBurstAnnouncedOnce(t *testing.T) {
	c, rec, _ := newTestComposer(t, 30*time.Millisecond, 0)

	for _, s := range []string{"h", "he", "hel", "hell", "hello"} {
		require.NoError(t, c.SetText(s))
		time.Sleep(5 * time.Millisecond)
	}
	assert.True(t, c.IsTyping())
	assert.Empty(t, rec.sent(), "nothing before the quiet period")

	require.Eventually(t, func() bool { return len(rec.sent()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, wire.TypingOut{ReceiverID: "bob", IsTyping: true}, rec.sent()[0])
	assert.False(t, c.IsTyping(), "latch resets once announced")

	time.Sleep(60 * time.Millisecond)
	assert.Len(t, rec.sent(), 1)
}

func TestSubmitWithdrawsTyping(t *testing.T) {
	c, rec, sub := newTestComposer(t, 10*time.Millisecond, 0)
	require.NoError(t, c.SetText("deal?"))
	require.Eventually(t, func() bool { return len(rec.sent()) == 1 }, time.Second, 5*time.Millisecond)

	id, err := c.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "local:test:1", id)
	require.Len(t, sub.got, 1)
	assert.Equal(t, "deal?", sub.got[0].Text)

	sent := rec.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, wire.TypingOut{ReceiverID: "bob", IsTyping: false}, sent[1])
	assert.True(t, c.Draft().Empty())
}

func TestSubmitBeforeAnnouncementSendsNoTyping(t *testing.T) {
	c, rec, _ := newTestComposer(t, time.Hour, 0)
	require.NoError(t, c.SetText("quick"))
	_, err := c.Submit(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rec.sent())
	assert.False(t, c.IsTyping())
}

func TestSubmitFailureKeepsDraft(t *testing.T) {
	c, _, sub := newTestComposer(t, time.Hour, 0)
	sub.fail = chat.ErrNoActiveContact
	require.NoError(t, c.SetText("keep me"))
	_, err := c.Submit(context.Background())
	require.ErrorIs(t, err, chat.ErrNoActiveContact)
	assert.Equal(t, "keep me", c.Draft().Text)
}

func TestSubmitEmptyDraft(t *testing.T) {
	c, _, _ := newTestComposer(t, time.Hour, 0)
	require.NoError(t, c.SetText("   "))
	_, err := c.Submit(context.Background())
	assert.ErrorIs(t, err, ErrEmptyDraft)
}

func TestClearingTextWithdrawsTyping(t *testing.T) {
	c, rec, _ := newTestComposer(t, 10*time.Millisecond, 0)
	require.NoError(t, c.SetText("x"))
	require.Eventually(t, func() bool { return len(rec.sent()) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.SetText(""))
	sent := rec.sent()
	require.Len(t, sent, 2)
	assert.False(t, sent[1].IsTyping)
}

func TestSwitchingTargetWithdrawsTyping(t *testing.T) {
	c, rec, _ := newTestComposer(t, 10*time.Millisecond, 0)
	require.NoError(t, c.SetText("x"))
	require.Eventually(t, func() bool { return len(rec.sent()) == 1 }, time.Second, 5*time.Millisecond)
	c.SetTarget("carol")
	sent := rec.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, wire.TypingOut{ReceiverID: "bob", IsTyping: false}, sent[1])
}

func TestStagedAttachmentBlocksText(t *testing.T) {
	c, _, sub := newTestComposer(t, time.Hour, 0)
	require.NoError(t, c.SetText("replaced"))
	require.NoError(t, c.StageData("notes.txt", []byte("plain text body")))

	d := c.Draft()
	assert.Empty(t, d.Text)
	require.NotNil(t, d.Staged)
	assert.Equal(t, chat.KindFile, d.Staged.Kind)
	assert.ErrorIs(t, c.SetText("more"), ErrAttachmentStaged)

	_, err := c.Submit(context.Background())
	require.NoError(t, err)
	require.Len(t, sub.got, 1)
	assert.Equal(t, chat.KindFile, sub.got[0].Kind)
	assert.Equal(t, "notes.txt", sub.got[0].Attachment.Name)
	assert.Nil(t, c.Draft().Staged)
}

func TestStageDetectsImages(t *testing.T) {
	c, _, _ := newTestComposer(t, time.Hour, 0)
	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}
	require.NoError(t, c.StageData("shot", png))
	d := c.Draft()
	require.NotNil(t, d.Staged)
	assert.Equal(t, chat.KindImage, d.Staged.Kind)
	assert.Equal(t, "image/png", d.Staged.MimeType)

	c.ClearAttachment()
	assert.Nil(t, c.Draft().Staged)
	assert.NoError(t, c.SetText("ok again"))
}

func TestStageFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brief.txt")
	require.NoError(t, os.WriteFile(path, []byte("project brief"), 0o600))

	c, _, _ := newTestComposer(t, time.Hour, 0)
	require.NoError(t, c.StageFile(path))
	d := c.Draft()
	require.NotNil(t, d.Staged)
	assert.Equal(t, "brief.txt", d.Staged.Name)
	assert.Equal(t, int64(len("project brief")), d.Staged.Size)
	assert.Contains(t, d.Staged.LocalPreviewURL, "file://")

	assert.Error(t, c.StageFile(filepath.Join(t.TempDir(), "missing")))
}

func TestStageSizeLimit(t *testing.T) {
	c, _, _ := newTestComposer(t, time.Hour, 4)
	err := c.StageData("big.bin", []byte("12345"))
	assert.ErrorIs(t, err, ErrAttachmentTooLarge)
	assert.Nil(t, c.Draft().Staged)
}

func TestDraftChangesPublished(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe(bus.KindDraftChanged, 16)
	defer unsub()

	c := newComposer(&typingRecorder{}, (&submitRecorder{}).submit, b, time.Hour, 0, zap.NewNop())
	require.NoError(t, c.SetText("a"))

	select {
	case ev := <-ch:
		d, ok := ev.Payload.(Draft)
		require.True(t, ok)
		assert.Equal(t, "a", d.Text)
	case <-time.After(time.Second):
		t.Fatal("no draft event")
	}
}
