// Package sync assembles the messaging synchronization core: one
// connection manager, one message store, the mutation services and the
// dispatcher, wired per process.
package sync

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/drheny/cab-sub000/internal/api"
	"github.com/drheny/cab-sub000/internal/cache"
	"github.com/drheny/cab-sub000/internal/chat"
	"github.com/drheny/cab-sub000/internal/config"
	"github.com/drheny/cab-sub000/internal/conn"
	"github.com/drheny/cab-sub000/internal/dispatch"
	"github.com/drheny/cab-sub000/internal/models"
	"github.com/drheny/cab-sub000/internal/notify"
	"github.com/drheny/cab-sub000/internal/phone"
)

// Engine owns the sync core's lifecycle and exposes its read-only
// projections to the host.
type Engine struct {
	logger   zerolog.Logger
	cfg      *config.Config
	notifier notify.Notifier

	client  *api.Client
	store   *chat.Store
	manager *conn.Manager
	snap    *cache.Cache // nil when caching is disabled

	Chat  *chat.Service
	Phone *phone.Service

	startedAt time.Time
}

// New builds the engine from config. The persistent connection is not
// opened until Start.
func New(ctx context.Context, logger zerolog.Logger, cfg *config.Config, notifier notify.Notifier) (*Engine, error) {
	me := cfg.Identity()
	client := api.NewClient(cfg.BackendURL, cfg.RequestTimeout)
	store := chat.NewStore()
	phoneSvc := phone.NewService(logger, client, notifier, me)

	e := &Engine{
		logger:   logger.With().Str("component", "sync").Logger(),
		cfg:      cfg,
		notifier: notifier,
		client:   client,
		store:    store,
		Phone:    phoneSvc,
	}

	e.Chat = chat.NewService(logger, client, store, notifier, me, func() bool {
		return e.manager != nil && e.manager.IsOpen()
	})

	dispatcher := dispatch.New(logger, store, notifier, phoneSvc, me)

	endpoint, err := conn.ResolveEndpoint(cfg.BackendURL, cfg.WSPath, cfg.BackendURL)
	if err != nil {
		return nil, err
	}
	e.manager = conn.NewManager(logger, notifier, endpoint, cfg.ReconnectDelay, dispatcher.Handle)

	if cfg.CachePath != "" {
		snap, err := cache.Open(ctx, cfg.CachePath)
		if err != nil {
			return nil, err
		}
		e.snap = snap
		e.Chat.OnRefetch = func(msgs []models.Message) {
			if err := snap.SaveMessages(context.Background(), msgs); err != nil {
				e.logger.Warn().Err(err).Msg("snapshot save failed")
			}
		}
	}

	return e, nil
}

// Start renders the cached snapshot if present, loads the committed log
// and phone list, then opens the persistent channel.
func (e *Engine) Start(ctx context.Context) {
	e.startedAt = time.Now()

	if e.snap != nil {
		if msgs, err := e.snap.LoadMessages(ctx); err == nil && len(msgs) > 0 {
			e.store.ReplaceAll(msgs)
			e.logger.Info().Int("messages", len(msgs)).Msg("rendered cached snapshot")
		}
	}

	if err := e.Chat.Refetch(ctx); err != nil {
		e.logger.Warn().Err(err).Msg("initial message fetch failed, serving cached view")
	}
	if err := e.Phone.Refresh(ctx); err != nil {
		e.logger.Warn().Err(err).Msg("initial phone list fetch failed")
	}

	e.manager.Connect()
}

// Stop closes the channel cleanly and releases the cache.
func (e *Engine) Stop() {
	e.manager.Disconnect()
	if e.snap != nil {
		if err := e.snap.SavePhoneMessages(context.Background(), e.Phone.Messages()); err != nil {
			e.logger.Warn().Err(err).Msg("phone snapshot save failed")
		}
		e.snap.Close()
	}
}

// Messages returns the current ordered conversation projection.
func (e *Engine) Messages() []models.Message {
	return e.store.Messages()
}

// PhoneMessages returns the current phone list projection.
func (e *Engine) PhoneMessages() []models.PhoneMessage {
	return e.Phone.Messages()
}

// ConnectionState reports the channel lifecycle state for the UI's live
// indicator.
func (e *Engine) ConnectionState() notify.ConnState {
	return e.manager.State()
}

// Stats summarizes the core for the status endpoint.
type Stats struct {
	Connection    notify.ConnState `json:"connection"`
	Messages      int              `json:"messages"`
	Unread        int              `json:"unread"`
	PhoneMessages int              `json:"phone_messages"`
	PhonePending  int              `json:"phone_pending"`
	UptimeSeconds int64            `json:"uptime_seconds"`
}

// Stats returns the current summary.
func (e *Engine) Stats() Stats {
	return Stats{
		Connection:    e.manager.State(),
		Messages:      e.store.Len(),
		Unread:        e.store.UnreadCount(e.cfg.Identity()),
		PhoneMessages: len(e.Phone.Messages()),
		PhonePending:  e.Phone.PendingCount(),
		UptimeSeconds: int64(time.Since(e.startedAt).Seconds()),
	}
}
