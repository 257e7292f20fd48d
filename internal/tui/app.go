// Package tui is the terminal client. Conversation sessions own all chat state;
// the UI only renders the frames they push and forwards intents off the UI goroutine.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"github.com/matheus3301/convo/internal/bus"
	"github.com/matheus3301/convo/internal/chat"
	"github.com/matheus3301/convo/internal/config"
	"github.com/matheus3301/convo/internal/conversation"
	"github.com/matheus3301/convo/internal/pager"
	"github.com/matheus3301/convo/internal/remote"
	"github.com/matheus3301/convo/internal/status"
	"github.com/matheus3301/convo/internal/tui/keys"
	"github.com/matheus3301/convo/internal/tui/ui"
	"github.com/matheus3301/convo/internal/tui/views"
)

const (
	pageConversations = "conversations"
	pageThread        = "thread"
	pageDetails       = "details"
	pageHelp          = "help"
)

// Options configures the app.
type Options struct {
	Profile string
	Config  *config.Config
	Channel remote.Channel
	Bus     *bus.Bus
	Logger  *zap.Logger
}

// App is the main TUI application shell.
type App struct {
	app       *tview.Application
	theme     *ui.Theme
	main      *tview.Flex
	pages     *ui.Pages
	crumbs    *ui.Crumbs
	menu      *ui.Menu
	info      *ui.ProfileInfo
	flash     *ui.FlashModel
	flashBar  *ui.FlashBar
	prompt    *ui.Prompt
	statusBar *views.StatusBar
	list      *views.ConversationList
	thread    *views.Thread
	details   *views.ConversationInfo
	help      *views.HelpView
	registry  *keys.Registry

	profile string
	cfg     *config.Config
	ch      remote.Channel
	bus     *bus.Bus
	logger  *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc

	// gen invalidates session opens superseded by a later open or close.
	gen     atomic.Uint64
	mu      sync.Mutex
	session *conversation.Session

	// UI goroutine only.
	openID       string
	link         status.State
	promptActive bool
}

// NewApp creates the TUI application.
func NewApp(opts Options) *App {
	ctx, cancel := context.WithCancel(context.Background())
	if opts.Bus == nil {
		opts.Bus = bus.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	theme := ui.LoadTheme()
	app := tview.NewApplication()

	a := &App{
		app:       app,
		theme:     theme,
		pages:     ui.NewPages(),
		crumbs:    ui.NewCrumbs(theme),
		menu:      ui.NewMenu(theme),
		info:      ui.NewProfileInfo(theme),
		flash:     ui.NewFlashModel(),
		flashBar:  ui.NewFlashBar(theme),
		prompt:    ui.NewPrompt(theme),
		statusBar: views.NewStatusBar(theme),
		list:      views.NewConversationList(theme, opts.Config.UserID),
		thread:    views.NewThread(app, theme, opts.Config.UserID),
		details:   views.NewConversationInfo(theme),
		help:      views.NewHelpView(theme),
		registry:  keys.NewRegistry(),
		profile:   opts.Profile,
		cfg:       opts.Config,
		ch:        opts.Channel,
		bus:       opts.Bus,
		logger:    opts.Logger,
		ctx:       ctx,
		cancel:    cancel,
	}
	a.statusBar.SetProfile(opts.Profile)
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal(keys.Rune('q', func() {
		if a.pages.Current() == pageConversations {
			a.app.Stop()
			return
		}
		a.back()
	}))
	a.registry.AddGlobal(keys.Rune('?', func() { a.push(pageHelp) }))
	a.registry.AddGlobal(keys.Rune(':', func() { a.showPrompt(ui.PromptCommand) }))

	a.registry.AddView(pageConversations, keys.Rune('/', func() { a.showPrompt(ui.PromptFilter) }))
	a.registry.AddView(pageConversations, keys.Rune('0', func() { a.list.ClearFilter() }))
	for n := 1; n <= 9; n++ {
		a.registry.AddView(pageConversations, keys.Rune(rune('0'+n), func() {
			if id := a.list.ConversationByIndex(n); id != "" {
				a.openConversation(id)
			}
		}))
	}

	a.registry.AddView(pageThread, keys.Rune('i', func() { a.app.SetFocus(a.thread.Composer()) }))
	a.registry.AddView(pageThread, keys.Rune('j', func() { a.thread.Select(1) }))
	a.registry.AddView(pageThread, keys.Rune('k', func() { a.thread.Select(-1) }))
	a.registry.AddView(pageThread, keys.Rune('g', func() {
		a.withSession(func(s *conversation.Session) { s.LoadOlder() })
	}))
	a.registry.AddView(pageThread, keys.Rune('d', func() { a.showDetails() }))
	a.registry.AddView(pageThread, keys.Rune('e', func() { a.beginEdit() }))
	a.registry.AddView(pageThread, keys.Rune('x', func() { a.deleteSelected() }))
	a.registry.AddView(pageThread, keys.Rune('r', func() { a.settleFailed(true) }))
	a.registry.AddView(pageThread, keys.Rune('D', func() { a.settleFailed(false) }))
}

func (a *App) setupCallbacks() {
	a.list.SetSelectedFunc(func(row, _ int) {
		if id := a.list.ConversationByIndex(row); id != "" {
			a.openConversation(id)
		}
	})

	a.thread.SetHandlers(views.ThreadHandlers{
		OnSend: func(text string) {
			a.withSession(func(s *conversation.Session) {
				if _, err := s.Send(a.ctx, text); err != nil {
					a.post(ui.FlashErr, "Message not sent: "+err.Error())
				}
			})
		},
		OnEdit: func(id, text string) {
			a.withSession(func(s *conversation.Session) {
				// Rejections and failures arrive as notices.
				_ = s.Edit(a.ctx, id, text)
			})
		},
		OnInput: func(text string) {
			// Input only arms a timer and never blocks.
			if s := a.current(); s != nil {
				s.Input(text)
			}
		},
		OnScroll: func(vp pager.Viewport) {
			a.withSession(func(s *conversation.Session) { s.Scrolled(vp) })
		},
		OnInitial: func() {
			a.withSession(func(s *conversation.Session) { s.InitialRenderComplete() })
		},
		OnFrame: func(f conversation.Frame) {
			pending, failed := 0, 0
			for _, m := range f.Messages {
				switch m.State {
				case chat.Pending:
					pending++
				case chat.Failed:
					failed++
				}
			}
			a.statusBar.SetOutbox(pending, failed)
			if f.Link != a.link {
				a.link = f.Link
				a.statusBar.SetLink(f.Link)
				a.updateInfo()
			}
		},
	})

	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		switch mode {
		case ui.PromptCommand:
			a.runCommand(ParseCommand(text))
		case ui.PromptFilter:
			a.list.SetFilter(text)
		}
	})
	a.prompt.SetOnCancel(a.hidePrompt)

	a.pages.SetOnChange(func(top ui.Component, trail []string) {
		a.crumbs.Update(trail)
		a.menu.Update(top.Hints())
	})
}

func (a *App) setupLayout() {
	header := tview.NewFlex().
		AddItem(a.info, 34, 0, false).
		AddItem(a.menu, 0, 1, false).
		AddItem(ui.NewLogo(a.theme), 20, 0, false)

	a.pages.Add(pageConversations, a.list)
	a.pages.Add(pageThread, a.thread)
	a.pages.Add(pageDetails, a.details)
	a.pages.Add(pageHelp, a.help)

	a.main = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, 6, 0, false).
		AddItem(a.prompt, 0, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.flashBar, 1, 0, false).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(a.main, true)
	a.pages.Reset(pageConversations)
	a.updateInfo()

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if a.promptActive {
			return event
		}
		page := a.pages.Current()
		focused := a.app.GetFocus()

		if event.Key() == tcell.KeyEscape {
			if page == pageThread && focused == a.thread.Composer() {
				if a.thread.Editing() {
					a.thread.CancelEdit()
				}
				a.app.SetFocus(a.thread.Messages())
				return nil
			}
			if page != pageConversations {
				a.back()
				return nil
			}
		}

		// Let text input widgets handle all keys normally.
		if _, ok := focused.(*tview.InputField); ok {
			return event
		}

		if a.registry.HandleEvent(page, event) {
			return nil
		}
		return event
	})
}

// Run starts the TUI application and blocks until it exits.
func (a *App) Run() error {
	go a.thread.Run(a.ctx)
	go a.watchNotices()
	go a.tick()
	go a.loadConversations()

	err := a.app.Run()
	a.cancel()
	a.closeSession()
	return err
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}

func (a *App) push(page string) {
	if a.pages.Push(page) {
		a.app.SetFocus(a.pages.Top())
	}
}

func (a *App) back() {
	popped := a.pages.Pop()
	if popped == "" {
		return
	}
	if popped == pageThread {
		a.leaveConversation()
	}
	switch a.pages.Current() {
	case pageThread:
		a.app.SetFocus(a.thread.Messages())
	case pageConversations:
		a.app.SetFocus(a.list)
	default:
		a.app.SetFocus(a.pages.Top())
	}
}

func (a *App) showPrompt(mode ui.PromptMode) {
	a.prompt.Activate(mode)
	a.promptActive = true
	a.main.ResizeItem(a.prompt, 3, 0)
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.promptActive = false
	a.main.ResizeItem(a.prompt, 0, 0)
	if a.pages.Current() == pageThread {
		a.app.SetFocus(a.thread.Messages())
		return
	}
	a.app.SetFocus(a.pages.Top())
}

func (a *App) runCommand(cmd Command) {
	switch cmd.Name {
	case "quit":
		a.app.Stop()
	case "help":
		a.push(pageHelp)
	case "refresh":
		go a.loadConversations()
	case "open":
		id := a.resolveConversation(cmd.Args)
		if id == "" {
			a.flashNow(ui.FlashWarn, fmt.Sprintf("No conversation %q", cmd.Args))
			return
		}
		a.openConversation(id)
	case "new":
		conv, ok := cmd.NewConversation(chat.Participant{UserID: a.cfg.UserID, Username: a.cfg.Username})
		if !ok {
			a.flashNow(ui.FlashWarn, "usage: :new <id> <user[:name]>...")
			return
		}
		go a.createConversation(conv)
	case "":
	default:
		a.flashNow(ui.FlashWarn, "Unknown command: "+cmd.Name)
	}
}

// resolveConversation matches an id, a list position or a title.
func (a *App) resolveConversation(arg string) string {
	if _, ok := a.list.Lookup(arg); ok {
		return arg
	}
	if n, err := strconv.Atoi(arg); err == nil {
		return a.list.ConversationByIndex(n)
	}
	for n := 1; ; n++ {
		id := a.list.ConversationByIndex(n)
		if id == "" {
			return ""
		}
		if cv, _ := a.list.Lookup(id); views.Title(cv, a.cfg.UserID) == arg {
			return id
		}
	}
}

func (a *App) createConversation(conv chat.Conversation) {
	dir, ok := a.ch.(remote.Directory)
	if !ok {
		a.post(ui.FlashErr, "This backend cannot create conversations")
		return
	}
	ctx, cancel := context.WithTimeout(a.ctx, 10*time.Second)
	defer cancel()
	if err := dir.EnsureConversation(ctx, conv); err != nil {
		a.logger.Error("create conversation failed", zap.String("conversation", conv.ID), zap.Error(err))
		a.post(ui.FlashErr, "Could not create conversation: "+err.Error())
		return
	}
	a.loadConversations()
	a.app.QueueUpdateDraw(func() { a.openConversation(conv.ID) })
}

func (a *App) loadConversations() {
	ctx, cancel := context.WithTimeout(a.ctx, 10*time.Second)
	defer cancel()
	convs, err := a.ch.ListConversations(ctx, a.cfg.UserID)
	if err != nil {
		if a.ctx.Err() == nil {
			a.logger.Warn("list conversations failed", zap.Error(err))
			a.post(ui.FlashErr, "Could not load conversations: "+err.Error())
		}
		return
	}
	a.app.QueueUpdateDraw(func() {
		a.list.Update(convs)
		a.updateInfo()
	})
}

func (a *App) openConversation(id string) {
	cv, ok := a.list.Lookup(id)
	if !ok {
		cv = chat.Conversation{ID: id}
	}
	title := views.Title(cv, a.cfg.UserID)

	gen := a.gen.Add(1)
	a.openID = id
	a.link = status.Connecting
	a.thread.Reset(id, title)
	a.statusBar.SetConversation(title, status.Connecting)
	a.statusBar.SetOutbox(0, 0)
	a.updateInfo()
	a.push(pageThread)
	a.app.SetFocus(a.thread.Composer())

	cfg := conversation.FromConfig(a.cfg, id)
	// The thread measures in rows.
	cfg.TopThreshold = 2
	cfg.NearBottom = 3

	go func() {
		a.closeSession()
		s, err := conversation.Open(a.ctx, a.ch, a.thread, a.bus, cfg, a.logger)
		if err != nil {
			a.logger.Error("open conversation failed", zap.String("conversation", id), zap.Error(err))
			a.post(ui.FlashErr, "Could not open conversation: "+err.Error())
			return
		}
		a.mu.Lock()
		if a.gen.Load() != gen || a.ctx.Err() != nil {
			a.mu.Unlock()
			_ = s.Close(context.Background())
			return
		}
		a.session = s
		a.mu.Unlock()
	}()
}

func (a *App) leaveConversation() {
	a.gen.Add(1)
	a.openID = ""
	a.statusBar.SetConversation("", "")
	a.updateInfo()
	go func() {
		a.closeSession()
		a.loadConversations()
	}()
}

// closeSession detaches and closes the open session, publishing its final typing stop.
func (a *App) closeSession() {
	a.mu.Lock()
	s := a.session
	a.session = nil
	a.mu.Unlock()
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.Close(ctx); err != nil {
		a.logger.Warn("close conversation", zap.String("conversation", s.ID()), zap.Error(err))
	}
}

func (a *App) current() *conversation.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

// withSession runs fn against the open session off the UI goroutine.
func (a *App) withSession(fn func(*conversation.Session)) {
	s := a.current()
	if s == nil {
		return
	}
	go fn(s)
}

func (a *App) showDetails() {
	cv, ok := a.list.Lookup(a.openID)
	if !ok {
		cv = chat.Conversation{ID: a.openID}
	}
	a.details.Update(cv, a.cfg.UserID)
	a.push(pageDetails)
}

func (a *App) beginEdit() {
	m, ok := a.thread.Selected()
	if !ok {
		a.flashNow(ui.FlashInfo, "Select a message with j/k first")
		return
	}
	if m.SenderID != a.cfg.UserID {
		a.flashNow(ui.FlashWarn, "You can only edit your own messages")
		return
	}
	a.thread.BeginEdit(m)
	a.app.SetFocus(a.thread.Composer())
}

func (a *App) deleteSelected() {
	m, ok := a.thread.Selected()
	if !ok {
		a.flashNow(ui.FlashInfo, "Select a message with j/k first")
		return
	}
	a.withSession(func(s *conversation.Session) {
		if err := s.Delete(a.ctx, m.ID); err == nil {
			a.post(ui.FlashInfo, "Message deleted")
		}
	})
}

// settleFailed retries or dismisses the selected failed message, or the newest one.
func (a *App) settleFailed(retry bool) {
	m, ok := a.thread.Selected()
	if !ok || m.State != chat.Failed {
		a.withSession(func(s *conversation.Session) {
			st, err := s.State(a.ctx)
			if err != nil {
				return
			}
			for i := len(st.Messages) - 1; i >= 0; i-- {
				if st.Messages[i].State == chat.Failed {
					a.settle(s, st.Messages[i].ID, retry)
					return
				}
			}
			a.post(ui.FlashInfo, "No failed messages")
		})
		return
	}
	a.withSession(func(s *conversation.Session) { a.settle(s, m.ID, retry) })
}

func (a *App) settle(s *conversation.Session, id string, retry bool) {
	var err error
	if retry {
		err = s.Retry(a.ctx, id)
	} else {
		err = s.Dismiss(a.ctx, id)
	}
	if err != nil {
		a.post(ui.FlashWarn, err.Error())
	}
}

// watchNotices turns session notices into flashes.
func (a *App) watchNotices() {
	events, unsubscribe := a.bus.Subscribe("notice.", 64)
	defer unsubscribe()
	for {
		select {
		case evt := <-events:
			n, ok := evt.Payload.(conversation.Notice)
			if !ok {
				continue
			}
			a.post(flashLevel(n.Level), n.Text)
		case <-a.ctx.Done():
			return
		}
	}
}

func flashLevel(l conversation.Level) ui.FlashLevel {
	switch l {
	case conversation.Error:
		return ui.FlashErr
	case conversation.Warn:
		return ui.FlashWarn
	default:
		return ui.FlashInfo
	}
}

// tick expires flashes, keeps the clock current and refreshes the list.
func (a *App) tick() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	refresh := a.cfg.RefreshInterval.Duration
	last := time.Now()
	for {
		select {
		case now := <-ticker.C:
			if refresh > 0 && now.Sub(last) >= refresh {
				last = now
				if a.current() == nil {
					go a.loadConversations()
				}
			}
			a.app.QueueUpdateDraw(func() {
				a.flashBar.Update(a.flash.Current())
				a.statusBar.Refresh()
			})
		case <-a.ctx.Done():
			return
		}
	}
}

// post shows a flash from any goroutine.
func (a *App) post(level ui.FlashLevel, text string) {
	a.flash.Post(level, text)
	a.app.QueueUpdateDraw(func() { a.flashBar.Update(a.flash.Current()) })
}

// flashNow shows a flash from the UI goroutine.
func (a *App) flashNow(level ui.FlashLevel, text string) {
	a.flash.Post(level, text)
	a.flashBar.Update(a.flash.Current())
}

func (a *App) updateInfo() {
	link := status.State("")
	if a.openID != "" {
		link = a.link
	}
	a.info.Update(ui.ProfileData{
		Profile:       a.profile,
		User:          a.cfg.UserID,
		Backend:       a.cfg.Backend,
		Link:          link,
		Conversations: a.list.Len(),
	})
}
