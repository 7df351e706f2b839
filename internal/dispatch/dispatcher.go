// Package dispatch translates inbound channel events into store
// mutations and user-facing signals. Self-originated echoes are dropped:
// the optimistic entry is reconciled through the REST response path, not
// through the channel.
package dispatch

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/drheny/cab-sub000/internal/chat"
	"github.com/drheny/cab-sub000/internal/metrics"
	"github.com/drheny/cab-sub000/internal/models"
	"github.com/drheny/cab-sub000/internal/notify"
)

// PhoneRefresher refetches the phone message list. Phone pushes carry no
// incremental payload worth merging; the list is reloaded wholesale.
type PhoneRefresher interface {
	Refresh(ctx context.Context) error
}

// Dispatcher routes decoded channel events.
type Dispatcher struct {
	logger   zerolog.Logger
	store    *chat.Store
	notifier notify.Notifier
	phone    PhoneRefresher
	me       models.Identity
}

// New creates a Dispatcher. phone may be nil when the phone workflow is
// not wired (tests).
func New(logger zerolog.Logger, store *chat.Store, notifier notify.Notifier, phone PhoneRefresher, me models.Identity) *Dispatcher {
	return &Dispatcher{
		logger:   logger.With().Str("component", "dispatch").Logger(),
		store:    store,
		notifier: notifier,
		phone:    phone,
		me:       me,
	}
}

// Handle is the connection manager's frame handler. Deliveries arrive
// serialized from the single reader goroutine.
func (d *Dispatcher) Handle(data []byte) {
	ev, err := models.DecodeEvent(data)
	if err != nil {
		d.logger.Warn().Err(err).Msg("undecodable channel frame")
		return
	}

	metrics.EventsIngested.WithLabelValues(string(ev.Type)).Inc()

	switch ev.Type {
	case models.EventNewMessage:
		d.handleNewMessage(ev)
	case models.EventMessageUpdated:
		if ev.Message != nil {
			d.store.IngestUpdated(*ev.Message)
		}
	case models.EventMessageDeleted:
		d.store.IngestDeleted(ev.ID)
	case models.EventMessageRead:
		d.store.IngestRead(ev.ID)
	case models.EventMessagesCleared:
		n := d.store.ClearAll()
		if ev.Count > 0 {
			n = ev.Count
		}
		d.notifier.Toast(notify.Warning, fmt.Sprintf("conversation cleared (%d messages)", n))
	case models.EventNewPhone:
		d.refreshPhone()
		if ev.Phone == nil || ev.Phone.Direction.Recipient() == d.me.Role {
			d.notifier.BadgeIncrement(notify.BadgePhone)
			d.notifier.Toast(notify.Info, "new phone message")
		}
	case models.EventPhoneResponded:
		d.refreshPhone()
		if ev.Phone == nil || ev.Phone.Direction.Sender() == d.me.Role {
			d.notifier.Toast(notify.Info, "phone message responded")
		}
	default:
		d.logger.Debug().Str("type", string(ev.Type)).Msg("unknown event kind, skipped")
	}
}

// handleNewMessage appends a remotely created message, unless it is the
// echo of a pending local send. The echo is keyed by the correlation id
// the client sent with its create request; the (role, name) identity
// match remains as fallback for backends that do not echo it, with the
// known blind spot for rapid double-sends from the same user.
func (d *Dispatcher) handleNewMessage(ev *models.Event) {
	if ev.Message == nil {
		return
	}

	if ev.CorrelationID != "" {
		if d.store.HasPending(ev.CorrelationID) {
			metrics.EchoesSuppressed.Inc()
			return
		}
	} else if ev.Message.Mine(d.me) && d.store.HasPendingFrom(d.me) {
		metrics.EchoesSuppressed.Inc()
		return
	}

	if !d.store.IngestCreated(*ev.Message) {
		return // duplicate delivery
	}

	if !ev.Message.Mine(d.me) {
		d.notifier.BadgeIncrement(notify.BadgeChat)
		d.notifier.Toast(notify.Info, fmt.Sprintf("new message from %s", ev.Message.SenderName))
	}
}

// refreshPhone reloads the phone list off the reader goroutine so a slow
// fetch never stalls chat event delivery.
func (d *Dispatcher) refreshPhone() {
	if d.phone == nil {
		return
	}
	go func() {
		if err := d.phone.Refresh(context.Background()); err != nil {
			d.logger.Warn().Err(err).Msg("phone list refresh failed")
		}
	}()
}
