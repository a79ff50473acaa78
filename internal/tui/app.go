// Package tui is the terminal client of the gigchat daemon.
package tui

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/gigchat/internal/bus"
	"github.com/matheus3301/gigchat/internal/chat"
	"github.com/matheus3301/gigchat/internal/rpc"
	"github.com/matheus3301/gigchat/internal/tui/keys"
	"github.com/matheus3301/gigchat/internal/tui/model"
	"github.com/matheus3301/gigchat/internal/tui/ui"
	"github.com/matheus3301/gigchat/internal/tui/views"
)

// Page names.
const (
	pageContacts = "contacts"
	pageThread   = "thread"
	pageSearch   = "search"
	pageHelp     = "help"
	pageCard     = "card"
	pageDetails  = "details"
)

const (
	headerRows    = 7
	refreshEvery  = 5 * time.Second
	watchRetryMin = 250 * time.Millisecond
	watchRetryMax = 5 * time.Second
)

// Daemon is the control API the UI needs. *rpc.Client implements it.
type Daemon interface {
	model.Backend
	WatchEvents(ctx context.Context, namespace string) (rpc.EventStream, error)
}

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	daemon   Daemon
	vm       *model.ViewModel
	flash    *ui.FlashModel
	registry *keys.Registry
	theme    *ui.Theme

	root      *tview.Flex
	pages     *ui.Pages
	prompt    *ui.Prompt
	crumbs    *ui.Crumbs
	menu      *ui.Menu
	info      *ui.ProfileInfo
	logo      *ui.Logo
	flashBar  *ui.FlashBar
	statusBar *views.StatusBar
	contacts  *views.ContactList
	thread    *views.Thread
	search    *views.SearchView
	help      *views.HelpView
	card      *views.ContactCard
	details   *views.ContactInfo

	// ops run one at a time, in order, off the UI goroutine.
	ops chan func()

	draftMu      sync.Mutex
	draftText    string
	draftPending bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(d Daemon) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:       tview.NewApplication(),
		daemon:    d,
		vm:        model.NewViewModel(d),
		flash:     ui.NewFlashModel(),
		registry:  keys.NewRegistry(),
		theme:     theme,
		pages:     ui.NewPages(),
		prompt:    ui.NewPrompt(theme),
		crumbs:    ui.NewCrumbs(theme),
		menu:      ui.NewMenu(theme, headerRows),
		info:      ui.NewProfileInfo(theme),
		logo:      ui.NewLogo(theme),
		flashBar:  ui.NewFlashBar(theme),
		statusBar: views.NewStatusBar(),
		contacts:  views.NewContactList(theme),
		thread:    views.NewThread(theme),
		search:    views.NewSearchView(theme),
		help:      views.NewHelpView(theme),
		card:      views.NewContactCard(theme),
		details:   views.NewContactInfo(theme),
		ops:       make(chan func(), 64),
		ctx:       ctx,
		cancel:    cancel,
	}
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal("command", &keys.Action{
		Key: tcell.KeyRune, Rune: ':',
		Description: ":command", Visible: true,
		Handler: func() { a.showPrompt(ui.PromptCommand) },
	})
	a.registry.AddGlobal("help", &keys.Action{
		Key: tcell.KeyRune, Rune: '?',
		Description: "?:help", Visible: true,
		Handler: func() { a.push(pageHelp) },
	})
	a.registry.AddGlobal("quit", &keys.Action{
		Key: tcell.KeyRune, Rune: 'q',
		Description: "q:quit", Visible: true,
		Handler: func() {
			if a.pages.Depth() > 1 {
				a.back()
				return
			}
			a.Stop()
		},
	})
	a.registry.AddGlobal("back", &keys.Action{
		Key:     tcell.KeyEscape,
		Handler: a.back,
	})

	a.registry.AddView(pageContacts, "filter", &keys.Action{
		Key: tcell.KeyRune, Rune: '/',
		Description: "/:filter", Visible: true,
		Handler: func() { a.showPrompt(ui.PromptFilter) },
	})
	a.registry.AddView(pageContacts, "all", &keys.Action{
		Key: tcell.KeyRune, Rune: '0',
		Handler: a.contacts.ClearFilter,
	})
	a.registry.AddView(pageContacts, "card", &keys.Action{
		Key: tcell.KeyRune, Rune: 'c',
		Description: "c:card", Visible: true,
		Handler: a.showCard,
	})
	for n := 1; n <= 9; n++ {
		a.registry.AddView(pageContacts, "jump"+string(rune('0'+n)), &keys.Action{
			Key: tcell.KeyRune, Rune: rune('0' + n),
			Handler: func() {
				if id := a.contacts.ContactByIndex(n); id != "" {
					a.openContact(id)
				}
			},
		})
	}

	a.registry.AddView(pageThread, "compose", &keys.Action{
		Key: tcell.KeyRune, Rune: 'i',
		Description: "i:compose", Visible: true,
		Handler: func() { a.app.SetFocus(a.thread.Composer()) },
	})
	a.registry.AddView(pageThread, "down", &keys.Action{
		Key: tcell.KeyRune, Rune: 'j',
		Handler: func() { a.thread.MoveSelection(1) },
	})
	a.registry.AddView(pageThread, "up", &keys.Action{
		Key: tcell.KeyRune, Rune: 'k',
		Handler: func() { a.thread.MoveSelection(-1) },
	})
	a.registry.AddView(pageThread, "reply", &keys.Action{
		Key: tcell.KeyRune, Rune: 'r',
		Description: "r:reply", Visible: true,
		Handler: a.replyToSelected,
	})
	a.registry.AddView(pageThread, "delete", &keys.Action{
		Key: tcell.KeyRune, Rune: 'x',
		Description: "x:delete", Visible: true,
		Handler: a.deleteSelected,
	})
	a.registry.AddView(pageThread, "details", &keys.Action{
		Key: tcell.KeyRune, Rune: 'd',
		Description: "d:details", Visible: true,
		Handler: func() {
			a.details.Update(a.vm.Contact(a.vm.Active()))
			a.push(pageDetails)
		},
	})
}

func (a *App) setupCallbacks() {
	a.contacts.SetSelectedFunc(func(int, int) {
		if id := a.contacts.SelectedContact(); id != "" {
			a.openContact(id)
		}
	})

	a.thread.SetOnChange(a.queueDraft)
	a.thread.SetOnSend(a.send)
	a.thread.SetOnLeave(func() { a.app.SetFocus(a.thread.Messages()) })

	a.search.SetOnQuery(a.runSearch)
	a.search.Results().SetSelectedFunc(func(int, int) {
		if contactID, _ := a.search.SelectedResult(); contactID != "" {
			a.openContact(contactID)
		}
	})

	a.prompt.SetChangedFunc(func(text string) {
		if a.prompt.Mode() == ui.PromptFilter {
			a.contacts.SetFilter(text)
		}
	})
	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		if mode == ui.PromptCommand {
			a.execute(ParseCommand(text))
		}
	})
	a.prompt.SetOnCancel(func() {
		if a.prompt.Mode() == ui.PromptFilter {
			a.contacts.ClearFilter()
		}
		a.hidePrompt()
	})

	a.prompt.SetCompletions(Commands())

	a.pages.SetOnChange(func(trail []ui.Component) {
		a.crumbs.Update(trail)
		if len(trail) > 0 {
			a.menu.Update(trail[len(trail)-1].Hints())
		}
	})
}

func (a *App) setupLayout() {
	a.pages.Add(pageContacts, a.contacts)
	a.pages.Add(pageThread, a.thread)
	a.pages.Add(pageSearch, a.search)
	a.pages.Add(pageHelp, a.help)
	a.pages.Add(pageCard, a.card)
	a.pages.Add(pageDetails, a.details)

	header := tview.NewFlex().
		AddItem(a.info, 0, 2, false).
		AddItem(a.menu, 0, 2, false).
		AddItem(a.logo, 24, 0, false)

	a.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, headerRows, 0, false).
		AddItem(a.prompt, 0, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.flashBar, 1, 0, false).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(a.root, true)
	a.pages.Reset(pageContacts)
	a.app.SetFocus(a.contacts)

	a.app.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		switch focused := a.app.GetFocus().(type) {
		case *tview.TextArea:
			return ev
		case *tview.InputField:
			if focused == a.search.Input() {
				switch ev.Key() {
				case tcell.KeyEscape:
					a.back()
					return nil
				case tcell.KeyTab, tcell.KeyDown:
					a.app.SetFocus(a.search.Results())
					return nil
				}
			}
			return ev
		}

		if a.registry.HandleEvent(a.pages.Current(), ev) {
			return nil
		}
		return ev
	})
}

func (a *App) focusCurrent() {
	switch a.pages.Current() {
	case pageContacts:
		a.app.SetFocus(a.contacts)
	case pageThread:
		a.app.SetFocus(a.thread.Messages())
	case pageSearch:
		a.app.SetFocus(a.search.Input())
	default:
		if c := a.pages.Component(a.pages.Current()); c != nil {
			a.app.SetFocus(c)
		}
	}
}

func (a *App) push(page string) {
	if a.pages.Current() == page {
		return
	}
	a.pages.Push(page)
	a.focusCurrent()
}

func (a *App) back() {
	if a.pages.Depth() <= 1 {
		return
	}
	if a.pages.Pop() == pageThread {
		a.thread.ClearSelection()
	}
	a.focusCurrent()
}

func (a *App) showPrompt(mode ui.PromptMode) {
	a.prompt.Activate(mode)
	a.root.ResizeItem(a.prompt, 3, 0)
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.root.ResizeItem(a.prompt, 0, 0)
	a.focusCurrent()
}

func (a *App) showCard() {
	userID := ""
	if st := a.vm.Status(); st != nil {
		userID = st.UserID
	}
	a.card.Show(userID)
	a.push(pageCard)
}

// do queues fn on the op worker.
func (a *App) do(fn func()) {
	select {
	case a.ops <- fn:
	case <-a.ctx.Done():
	}
}

func (a *App) runOps() {
	for {
		select {
		case fn := <-a.ops:
			fn()
		case <-a.ctx.Done():
			return
		}
	}
}

// update runs fn on the UI goroutine.
func (a *App) update(fn func()) {
	if a.ctx.Err() != nil {
		return
	}
	a.app.QueueUpdateDraw(fn)
}

// queueDraft mirrors the composer to the daemon. Keystrokes that arrive
// while an update is pending collapse into it.
func (a *App) queueDraft(text string) {
	a.draftMu.Lock()
	a.draftText = text
	pending := a.draftPending
	a.draftPending = true
	a.draftMu.Unlock()
	if !pending {
		a.do(a.flushDraft)
	}
}

func (a *App) flushDraft() {
	a.draftMu.Lock()
	text, pending := a.draftText, a.draftPending
	a.draftPending = false
	a.draftMu.Unlock()
	if !pending {
		return
	}
	if err := a.vm.SetDraft(a.ctx, text); err != nil {
		a.flash.Err(err)
	}
}

func (a *App) send(text string) {
	a.do(func() {
		a.flushDraft()
		if _, err := a.vm.Send(a.ctx); err != nil {
			a.flash.Err(err)
			return
		}
		a.update(func() {
			if a.thread.Composer().GetText() == text {
				a.thread.ClearComposer()
			}
			a.render(model.ChangedDraft | model.ChangedReply)
		})
	})
}

func (a *App) openContact(id string) {
	a.do(func() {
		if err := a.vm.Open(a.ctx, id); err != nil {
			a.flash.Err(err)
			return
		}
		a.update(func() {
			a.thread.ClearSelection()
			a.pages.Reset(pageContacts, pageThread)
			a.render(model.ChangedContacts | model.ChangedThread | model.ChangedReply | model.ChangedScroll)
			a.app.SetFocus(a.thread.Composer())
		})
	})
}

func (a *App) runSearch(query string) {
	a.do(func() {
		results, err := a.vm.Search(a.ctx, query)
		if err != nil {
			a.flash.Err(err)
			return
		}
		a.update(func() {
			a.search.Update(results, a.nameOf)
			if len(results) > 0 {
				a.app.SetFocus(a.search.Results())
			} else {
				a.flash.Info("no matches for " + query)
			}
		})
	})
}

func (a *App) replyToSelected() {
	m := a.thread.SelectedMessage()
	if m == nil {
		a.flash.Warn("select a message with j/k first")
		return
	}
	id := m.ID
	a.do(func() {
		if err := a.vm.ReplyTo(a.ctx, id); err != nil {
			a.flash.Err(err)
			return
		}
		a.update(func() {
			a.render(model.ChangedReply)
			a.app.SetFocus(a.thread.Composer())
		})
	})
}

func (a *App) deleteSelected() {
	m := a.thread.SelectedMessage()
	if m == nil {
		a.flash.Warn("select a message with j/k first")
		return
	}
	if !m.FromMe {
		a.flash.Warn("only your own messages can be deleted")
		return
	}
	id := m.ID
	a.do(func() {
		if err := a.vm.Delete(a.ctx, id); err != nil {
			a.flash.Err(err)
		}
	})
}

func (a *App) execute(cmd Command) {
	switch cmd.Name {
	case CmdOpen:
		if cmd.Args == "" {
			a.flash.Warn("usage: :open <name>")
			return
		}
		id := a.contacts.Find(cmd.Args)
		if id == "" {
			id = cmd.Args
		}
		a.openContact(id)
	case CmdSearch:
		a.push(pageSearch)
		if cmd.Args != "" {
			a.search.SetQuery(cmd.Args)
			a.runSearch(cmd.Args)
		}
	case CmdAttach:
		if cmd.Args == "" {
			a.flash.Warn("usage: :attach <path>")
			return
		}
		a.do(func() {
			if err := a.vm.Attach(a.ctx, expandPath(cmd.Args)); err != nil {
				a.flash.Err(err)
				return
			}
			a.update(func() { a.render(model.ChangedDraft) })
		})
	case CmdDetach:
		a.do(func() {
			if err := a.vm.Detach(a.ctx); err != nil {
				a.flash.Err(err)
				return
			}
			a.update(func() { a.render(model.ChangedDraft) })
		})
	case CmdReply:
		a.replyToSelected()
	case CmdUnreply:
		a.do(func() {
			if err := a.vm.ReplyTo(a.ctx, ""); err != nil {
				a.flash.Err(err)
				return
			}
			a.update(func() { a.render(model.ChangedReply) })
		})
	case CmdDelete:
		a.deleteSelected()
	case CmdCard:
		a.showCard()
	case CmdHelp:
		a.push(pageHelp)
	case CmdQuit:
		a.Stop()
	default:
		a.flash.Warn("unknown command: " + cmd.Name)
	}
}

// nameOf resolves a user id for display.
func (a *App) nameOf(id string) string {
	if id == chat.Me {
		return "You"
	}
	if st := a.vm.Status(); st != nil && id == st.UserID {
		return "You"
	}
	if c := a.vm.Contact(id); c != nil && c.DisplayName != "" {
		return c.DisplayName
	}
	return ""
}

// render redraws the panels named by ch. Must run on the UI goroutine.
func (a *App) render(ch model.Change) {
	if ch.Has(model.ChangedContacts) {
		a.contacts.Update(a.vm.Contacts())
		active := a.vm.Contact(a.vm.Active())
		a.thread.SetContact(active)
		typing := ""
		if active != nil && active.IsTyping {
			typing = a.nameOf(active.ID)
			if typing == "" {
				typing = active.ID
			}
		}
		a.statusBar.SetTyping(typing)
		if a.pages.Current() == pageDetails {
			a.details.Update(active)
		}
		a.crumbs.Update(a.pages.Trail())
	}
	if ch.Has(model.ChangedThread) {
		a.thread.Update(a.vm.Messages(), a.nameOf)
	}
	if ch.Has(model.ChangedThread) || ch.Has(model.ChangedScroll) {
		a.thread.ScrollToEnd()
	}
	if ch.Has(model.ChangedDraft) {
		a.thread.SetDraft(a.vm.Draft())
	}
	if ch.Has(model.ChangedReply) {
		a.thread.SetReply(a.vm.Reply())
	}
	if ch.Has(model.ChangedStatus) {
		st := a.vm.Status()
		a.statusBar.SetStatus(st)
		a.logo.SetConnected(st != nil && st.Connected)
		a.info.Update(profileData(st))
	}
}

func profileData(st *rpc.Status) *ui.ProfileData {
	if st == nil {
		return nil
	}
	return &ui.ProfileData{
		Profile:   st.Profile,
		UserID:    st.UserID,
		State:     st.State,
		Connected: st.Connected,
		Online:    len(st.Online),
		Queued:    st.QueuedFrames,
		Contacts:  st.ContactCount,
		Messages:  st.MessageCount,
		Uptime:    time.Duration(st.UptimeMs) * time.Millisecond,
	}
}

const renderAll = model.ChangedStatus | model.ChangedContacts | model.ChangedThread |
	model.ChangedDraft | model.ChangedReply | model.ChangedScroll

// resync reloads everything from the daemon, as after a (re)subscribe.
func (a *App) resync() error {
	if err := a.vm.LoadStatus(a.ctx); err != nil {
		return err
	}
	if err := a.vm.LoadContacts(a.ctx); err != nil {
		return err
	}
	if a.vm.Active() != "" {
		if err := a.vm.LoadThread(a.ctx); err != nil {
			return err
		}
	}
	a.update(func() { a.render(renderAll) })
	return nil
}

func (a *App) refreshStatus() {
	if err := a.vm.LoadStatus(a.ctx); err != nil {
		return
	}
	a.update(func() { a.render(model.ChangedStatus) })
}

// watch folds the daemon event stream into the view model, resubscribing
// with backoff when the daemon goes away.
func (a *App) watch() {
	delay := watchRetryMin
	for a.ctx.Err() == nil {
		stream, err := a.daemon.WatchEvents(a.ctx, "")
		if err == nil {
			err = a.resync()
		}
		if err == nil {
			delay = watchRetryMin
			err = a.consume(stream)
		}
		if a.ctx.Err() != nil {
			return
		}
		a.flash.Err(err)
		a.update(func() {
			a.statusBar.SetStatus(nil)
			a.logo.SetConnected(false)
		})

		select {
		case <-time.After(delay):
		case <-a.ctx.Done():
			return
		}
		delay = min(delay*2, watchRetryMax)
	}
}

func (a *App) consume(stream rpc.EventStream) error {
	for {
		evt, err := stream.Recv()
		if err != nil {
			return err
		}
		ch := a.vm.Apply(evt)

		switch evt.Kind {
		case bus.KindServerError:
			var msg string
			if json.Unmarshal(evt.Payload, &msg) == nil && msg != "" {
				a.flash.Warn("server: " + msg)
			}
		case bus.KindActiveChanged:
			if a.vm.Active() != "" {
				_ = a.vm.LoadThread(a.ctx)
			}
		}
		if ch.Has(model.ChangedStatus) {
			a.do(a.refreshStatus)
		}
		if ch != 0 {
			a.update(func() { a.render(ch) })
		}
	}
}

func (a *App) watchFlash() {
	for {
		select {
		case m := <-a.flash.Watch():
			a.update(func() { a.flashBar.Update(&m) })
			expiry := time.Until(m.Expires)
			time.AfterFunc(expiry, func() {
				a.update(func() { a.flashBar.Update(a.flash.GetMessage()) })
			})
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) refreshLoop() {
	ticker := time.NewTicker(refreshEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.do(a.refreshStatus)
		case <-a.ctx.Done():
			return
		}
	}
}

// Run starts the TUI application and blocks until it exits.
func (a *App) Run() error {
	go a.runOps()
	go a.watch()
	go a.watchFlash()
	go a.refreshLoop()
	defer a.cancel()
	return a.app.Run()
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
