// Package app wires the engine together for a UI shell: identity, space
// directory, transport and the chat loop, with a login/logout lifecycle.
package app

import (
	"context"
	"strings"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/pelusa-v/pelusa-spaces/internal/chat"
	"github.com/pelusa-v/pelusa-spaces/internal/config"
	"github.com/pelusa-v/pelusa-spaces/internal/directory"
	"github.com/pelusa-v/pelusa-spaces/internal/identity"
	"github.com/pelusa-v/pelusa-spaces/internal/transport"
	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

var ErrAlreadyLoggedIn = errors.New("already logged in")

type Options struct {
	Config     *config.Config
	Logger     *zap.Logger
	Dialer     transport.Dialer // nil dials real websockets
	HTTPClient *fasthttp.Client
	Clock      clock.Clock // nil is the wall clock
}

type App struct {
	cfg       *config.Config
	log       *zap.Logger
	dialer    transport.Dialer
	clock     clock.Clock
	identity  *identity.Store
	directory *directory.Directory

	mu      sync.Mutex
	session *liveSession
}

type liveSession struct {
	client    *chat.Client
	manager   *chat.Manager
	transport *transport.Manager
	cancel    context.CancelFunc
}

func New(opts Options) *App {
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	cfg := opts.Config
	return &App{
		cfg:       cfg,
		log:       opts.Logger,
		dialer:    opts.Dialer,
		clock:     opts.Clock,
		identity:  identity.NewStore(cfg.Identity.Path),
		directory: directory.New(cfg.Client.APIURL, opts.HTTPClient, cfg.Client.HTTPTimeout, opts.Logger),
	}
}

func (a *App) Directory() *directory.Directory { return a.directory }

// Client returns the running session's handle, if logged in.
func (a *App) Client() (*chat.Client, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return nil, false
	}
	return a.session.client, true
}

// Login stores nickname and starts a session. The session joins the default
// space as soon as the transport connects.
func (a *App) Login(ctx context.Context, nickname string) (*chat.Client, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return nil, &chat.ValidationError{Field: "nickname", Reason: "must not be empty"}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session != nil {
		return nil, ErrAlreadyLoggedIn
	}
	if err := a.identity.Save(nickname); err != nil {
		return nil, err
	}
	return a.start(ctx, nickname)
}

// Restore resumes the identity saved by a previous Login. It returns
// identity.ErrNoIdentity when there is none.
func (a *App) Restore(ctx context.Context) (*chat.Client, error) {
	id, err := a.identity.Load()
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session != nil {
		return a.session.client, nil
	}
	return a.start(ctx, id.Nickname)
}

// Logout ends the session and forgets the identity.
func (a *App) Logout() error {
	a.stop()
	return a.identity.Clear()
}

// Close ends the session but keeps the identity for Restore.
func (a *App) Close() { a.stop() }

func (a *App) start(ctx context.Context, nickname string) (*chat.Client, error) {
	if _, err := a.directory.LoadAll(ctx); err != nil {
		a.log.Warn("space directory unavailable, using configured default", zap.Error(err))
	}

	log := a.log.With(zap.String("nickname", nickname))
	tm := transport.NewManager(transport.Options{
		Dialer:            a.dialer,
		ReconnectAttempts: a.cfg.Client.ReconnectAttempts,
		ReconnectDelay:    a.cfg.Client.ReconnectDelay,
		SendQueue:         a.cfg.Client.SendQueue,
		Logger:            log,
	})
	mgr := chat.NewManager(chat.ManagerOptions{
		SessionOptions: chat.SessionOptions{
			Nickname:     nickname,
			Transport:    tm,
			Timers:       chat.NewTimers(a.clock),
			DefaultSpace: a.defaultSpace,
			FreshWindow:  a.cfg.Timing.FreshWindow,
			BannerWindow: a.cfg.Timing.BannerWindow,
			DedupeWindow: a.cfg.Timing.DedupeWindow,
			Logger:       log,
		},
		Events: tm.Events(),
	})

	runCtx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := mgr.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("session loop stopped", zap.Error(err))
		}
	}()
	if err := tm.Connect(runCtx, a.cfg.Client.ServerURL); err != nil {
		cancel()
		tm.Close()
		return nil, err
	}

	client := chat.NewClient(mgr, chat.NewComposer(a.cfg.Client.MaxImageBytes), a.directory, log)
	a.session = &liveSession{client: client, manager: mgr, transport: tm, cancel: cancel}
	log.Info("session started", zap.String("server", a.cfg.Client.ServerURL))
	return client, nil
}

func (a *App) stop() {
	a.mu.Lock()
	s := a.session
	a.session = nil
	a.mu.Unlock()
	if s == nil {
		return
	}
	s.transport.Close()
	s.cancel()
	<-s.manager.Done()
	a.log.Info("session stopped", zap.String("nickname", s.client.Nickname()))
}

// defaultSpace runs on the session loop: the directory's default entry,
// else the configured one.
func (a *App) defaultSpace() chat.Space {
	if sp, ok := a.directory.Default(); ok {
		return sp
	}
	id := a.cfg.Client.DefaultSpace
	if sp, ok := a.directory.Lookup(id); ok {
		return sp
	}
	return chat.Space{ID: id, Name: id}
}
