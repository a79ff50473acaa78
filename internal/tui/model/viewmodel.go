// Package model caches daemon state for the terminal UI and folds the
// WatchEvents stream into it.
package model

import (
	"context"
	"encoding/json"
	"slices"
	"sync"

	"github.com/matheus3301/gigchat/internal/bus"
	"github.com/matheus3301/gigchat/internal/chat"
	"github.com/matheus3301/gigchat/internal/messenger"
	"github.com/matheus3301/gigchat/internal/rpc"
)

// Backend is the daemon API used by the UI. *rpc.Client implements it.
type Backend interface {
	GetStatus(ctx context.Context) (*rpc.Status, error)
	ListContacts(ctx context.Context) (*rpc.ContactList, error)
	SelectContact(ctx context.Context, id string) error
	ListMessages(ctx context.Context, req *rpc.ListMessagesRequest) (*rpc.MessageList, error)
	UpdateDraft(ctx context.Context, text string) (*rpc.Draft, error)
	StageAttachment(ctx context.Context, req *rpc.StageAttachmentRequest) (*rpc.Draft, error)
	ClearAttachment(ctx context.Context) (*rpc.Draft, error)
	Submit(ctx context.Context) (*rpc.SendResult, error)
	SetReplyTarget(ctx context.Context, messageID string) (*rpc.Reply, error)
	DeleteMessage(ctx context.Context, messageID string) error
	SearchMessages(ctx context.Context, req *rpc.SearchRequest) (*rpc.SearchResults, error)
}

// Change tells the UI which panels to redraw.
type Change uint8

const (
	ChangedStatus Change = 1 << iota
	ChangedContacts
	ChangedThread
	ChangedDraft
	ChangedReply
	// ChangedScroll asks the thread to jump to the newest message.
	ChangedScroll
)

// Has reports whether all bits of o are set in c.
func (c Change) Has(o Change) bool { return c&o == o }

// ViewModel is safe for concurrent use.
type ViewModel struct {
	mu sync.RWMutex

	backend  Backend
	status   *rpc.Status
	contacts []*rpc.Contact
	messages []*rpc.Message
	active   string
	draft    *rpc.Draft
	reply    *rpc.ReplyRef
}

func NewViewModel(b Backend) *ViewModel {
	return &ViewModel{backend: b, draft: &rpc.Draft{}}
}

// LoadStatus fetches the daemon status.
func (vm *ViewModel) LoadStatus(ctx context.Context) error {
	st, err := vm.backend.GetStatus(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.status = st
	if vm.active == "" {
		vm.active = st.Active
	}
	vm.mu.Unlock()
	return nil
}

// LoadContacts fetches the contact directory.
func (vm *ViewModel) LoadContacts(ctx context.Context) error {
	list, err := vm.backend.ListContacts(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.contacts = list.Contacts
	for _, c := range list.Contacts {
		if c.Active {
			vm.active = c.ID
		}
	}
	vm.mu.Unlock()
	return nil
}

// LoadThread fetches the visible timeline of the active contact.
func (vm *ViewModel) LoadThread(ctx context.Context) error {
	list, err := vm.backend.ListMessages(ctx, &rpc.ListMessagesRequest{})
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.messages = list.Messages
	vm.mu.Unlock()
	return nil
}

// Open selects a contact and loads its thread.
func (vm *ViewModel) Open(ctx context.Context, id string) error {
	if err := vm.backend.SelectContact(ctx, id); err != nil {
		return err
	}
	vm.mu.Lock()
	vm.active = id
	vm.reply = nil
	vm.mu.Unlock()
	return vm.LoadThread(ctx)
}

// SetDraft mirrors the composer text to the daemon, which owns typing.
func (vm *ViewModel) SetDraft(ctx context.Context, text string) error {
	d, err := vm.backend.UpdateDraft(ctx, text)
	if err != nil {
		return err
	}
	vm.setDraft(d)
	return nil
}

// Attach stages a local file.
func (vm *ViewModel) Attach(ctx context.Context, path string) error {
	d, err := vm.backend.StageAttachment(ctx, &rpc.StageAttachmentRequest{Path: path})
	if err != nil {
		return err
	}
	vm.setDraft(d)
	return nil
}

// Detach drops the staged attachment.
func (vm *ViewModel) Detach(ctx context.Context) error {
	d, err := vm.backend.ClearAttachment(ctx)
	if err != nil {
		return err
	}
	vm.setDraft(d)
	return nil
}

// Send submits the draft and returns the provisional message id.
func (vm *ViewModel) Send(ctx context.Context) (string, error) {
	res, err := vm.backend.Submit(ctx)
	if err != nil {
		return "", err
	}
	vm.setDraft(&rpc.Draft{})
	return res.TempID, nil
}

// ReplyTo quotes a message; an empty id clears the quote.
func (vm *ViewModel) ReplyTo(ctx context.Context, id string) error {
	r, err := vm.backend.SetReplyTarget(ctx, id)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.reply = r.Reply
	vm.mu.Unlock()
	return nil
}

// Delete removes a message by id.
func (vm *ViewModel) Delete(ctx context.Context, id string) error {
	return vm.backend.DeleteMessage(ctx, id)
}

// Search queries the archive.
func (vm *ViewModel) Search(ctx context.Context, query string) ([]*rpc.SearchResult, error) {
	res, err := vm.backend.SearchMessages(ctx, &rpc.SearchRequest{Query: query, Limit: 50})
	if err != nil {
		return nil, err
	}
	return res.Results, nil
}

func (vm *ViewModel) setDraft(d *rpc.Draft) {
	vm.mu.Lock()
	vm.draft = d
	vm.mu.Unlock()
}

// Apply folds one daemon event into the cache.
func (vm *ViewModel) Apply(evt *rpc.Event) Change {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	switch evt.Kind {
	case bus.KindConnStatus, bus.KindServerError:
		return ChangedStatus

	case bus.KindContactUpdated:
		var p chat.ContactUpdated
		if !decode(evt, &p) {
			return 0
		}
		vm.upsertContact(rpc.ContactFromChat(p.Contact, vm.active))
		return ChangedContacts

	case bus.KindActiveChanged:
		var p chat.ActiveChanged
		if !decode(evt, &p) {
			return 0
		}
		if p.ContactID != vm.active {
			vm.active = p.ContactID
			vm.messages = nil
		}
		vm.patchContacts(func(c *rpc.Contact) bool {
			was := c.Active
			c.Active = c.ID == vm.active
			return was != c.Active
		})
		return ChangedContacts | ChangedThread

	case bus.KindMessageAppended:
		var p chat.MessageAppended
		if !decode(evt, &p) || p.Message.ContactID != vm.active {
			return 0
		}
		m := rpc.MessageFromChat(p.Message)
		if slices.ContainsFunc(vm.messages, func(x *rpc.Message) bool { return x.ID == m.ID }) {
			return 0
		}
		idx := min(max(p.Index, 0), len(vm.messages))
		vm.messages = slices.Insert(vm.messages, idx, m)
		return ChangedThread

	case bus.KindMessageUpdated:
		var p chat.MessageUpdated
		if !decode(evt, &p) || p.Message.ContactID != vm.active {
			return 0
		}
		prev := p.PrevID
		if prev == "" {
			prev = p.Message.ID
		}
		for i, m := range vm.messages {
			if m.ID == prev || m.ID == p.Message.ID {
				vm.messages[i] = rpc.MessageFromChat(p.Message)
				return ChangedThread
			}
		}
		return 0

	case bus.KindMessageRemoved:
		var p chat.MessageRemoved
		if !decode(evt, &p) || p.ContactID != vm.active {
			return 0
		}
		n := len(vm.messages)
		vm.messages = slices.DeleteFunc(vm.messages, func(m *rpc.Message) bool { return m.ID == p.ID })
		if len(vm.messages) == n {
			return 0
		}
		return ChangedThread

	case bus.KindTyping:
		var p chat.TypingChanged
		if !decode(evt, &p) {
			return 0
		}
		if !vm.patchContacts(func(c *rpc.Contact) bool {
			if c.ID != p.ContactID || c.IsTyping == p.IsTyping {
				return false
			}
			c.IsTyping = p.IsTyping
			return true
		}) {
			return 0
		}
		return ChangedContacts

	case bus.KindPresence:
		var p chat.PresenceChanged
		if !decode(evt, &p) {
			return 0
		}
		vm.patchContacts(func(c *rpc.Contact) bool {
			online := slices.Contains(p.Online, c.ID)
			if online == c.IsOnline && (online || !c.IsTyping) {
				return false
			}
			c.IsOnline = online
			if !online {
				c.IsTyping = false
			}
			return true
		})
		if vm.status != nil {
			st := *vm.status
			st.Online = p.Online
			vm.status = &st
		}
		return ChangedContacts | ChangedStatus

	case bus.KindReplyChanged:
		var p chat.ReplyChanged
		if !decode(evt, &p) {
			return 0
		}
		vm.reply = rpc.ReplyFromChat(p.Reply)
		return ChangedReply

	case bus.KindScrollHint:
		var p chat.ScrollHint
		if !decode(evt, &p) || p.ContactID != vm.active {
			return 0
		}
		return ChangedScroll

	case bus.KindDraftChanged:
		var d messenger.Draft
		if !decode(evt, &d) {
			return 0
		}
		out := &rpc.Draft{Text: d.Text, IsTyping: vm.draft.IsTyping}
		if st := d.Staged; st != nil {
			out.Staged = &rpc.StagedAttachment{Kind: string(st.Kind), Name: st.Name, Size: st.Size, MimeType: st.MimeType}
		}
		vm.draft = out
		return ChangedDraft
	}
	return 0
}

func decode(evt *rpc.Event, v any) bool {
	return len(evt.Payload) > 0 && json.Unmarshal(evt.Payload, v) == nil
}

// patchContacts applies fn to a copy of each contact and keeps the copies fn
// changed. Readers may hold the old pointers.
func (vm *ViewModel) patchContacts(fn func(*rpc.Contact) bool) bool {
	changed := false
	for i, c := range vm.contacts {
		cp := *c
		if fn(&cp) {
			vm.contacts[i] = &cp
			changed = true
		}
	}
	return changed
}

// upsertContact keeps the list ordered by most recent message first.
func (vm *ViewModel) upsertContact(c *rpc.Contact) {
	i := slices.IndexFunc(vm.contacts, func(x *rpc.Contact) bool { return x.ID == c.ID })
	if i >= 0 {
		vm.contacts = slices.Delete(vm.contacts, i, i+1)
	}
	at := slices.IndexFunc(vm.contacts, func(x *rpc.Contact) bool { return newer(c, x) })
	if at < 0 {
		at = len(vm.contacts)
	}
	vm.contacts = slices.Insert(vm.contacts, at, c)
}

// newer orders by last message time, then id.
func newer(a, b *rpc.Contact) bool {
	switch {
	case a.LastMessageAt == nil && b.LastMessageAt == nil:
		return a.ID < b.ID
	case a.LastMessageAt == nil:
		return false
	case b.LastMessageAt == nil:
		return true
	case !a.LastMessageAt.AsTime().Equal(b.LastMessageAt.AsTime()):
		return a.LastMessageAt.AsTime().After(b.LastMessageAt.AsTime())
	}
	return a.ID < b.ID
}

// Status returns the last fetched status, or nil.
func (vm *ViewModel) Status() *rpc.Status {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.status
}

// Contacts returns a snapshot of the directory.
func (vm *ViewModel) Contacts() []*rpc.Contact {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return slices.Clone(vm.contacts)
}

// Contact returns the contact with id, or nil.
func (vm *ViewModel) Contact(id string) *rpc.Contact {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for _, c := range vm.contacts {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// Messages returns a snapshot of the active thread, oldest first.
func (vm *ViewModel) Messages() []*rpc.Message {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return slices.Clone(vm.messages)
}

// Active returns the active contact id.
func (vm *ViewModel) Active() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.active
}

// Draft returns the composer state last seen.
func (vm *ViewModel) Draft() *rpc.Draft {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.draft
}

// Reply returns the quoted message, or nil.
func (vm *ViewModel) Reply() *rpc.ReplyRef {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.reply
}
