package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/drheny/cab-sub000/internal/api"
	"github.com/drheny/cab-sub000/internal/metrics"
	"github.com/drheny/cab-sub000/internal/models"
	"github.com/drheny/cab-sub000/internal/notify"
)

var (
	// ErrEmptyContent rejects blank sends and edits before any network
	// call.
	ErrEmptyContent = errors.New("message content is empty")
	// ErrNotYours is surfaced when the caller is not the original sender.
	ErrNotYours = errors.New("not your message")
	// ErrGone is surfaced when the target message no longer exists.
	ErrGone = errors.New("message already deleted")
)

// Service exposes the mutation protocol: every operation pairs a backend
// call with an optimistic local effect and a compensating rollback, so
// the store never keeps duplicate ids or orphaned optimistic entries.
type Service struct {
	logger   zerolog.Logger
	client   *api.Client
	store    *Store
	notifier notify.Notifier
	me       models.Identity

	// live reports whether the persistent channel is open. When it is
	// not, successful mutations trigger a full refetch so the client
	// stays correct without live events.
	live func() bool

	// OnRefetch observes every successful bulk fetch (snapshot caching).
	OnRefetch func([]models.Message)
}

// NewService creates the mutation protocol service.
func NewService(logger zerolog.Logger, client *api.Client, store *Store, notifier notify.Notifier, me models.Identity, live func() bool) *Service {
	return &Service{
		logger:   logger.With().Str("component", "chat").Logger(),
		client:   client,
		store:    store,
		notifier: notifier,
		me:       me,
		live:     live,
	}
}

// command is one reversible mutation: an optimistic local patch plus a
// backend call. run applies the patch, performs the call and reverts on
// failure, so rollback logic is written once for all operations.
type command struct {
	op    string
	apply func() (revert func())
	call  func(ctx context.Context) error
}

func (s *Service) run(ctx context.Context, cmd command) error {
	var revert func()
	if cmd.apply != nil {
		revert = cmd.apply()
	}

	if err := cmd.call(ctx); err != nil {
		if revert != nil {
			revert()
		}
		metrics.Mutations.WithLabelValues(cmd.op, "error").Inc()
		return err
	}

	metrics.Mutations.WithLabelValues(cmd.op, "ok").Inc()

	// Channel down at mutation time: recover correctness by refetching
	// the full committed log.
	if s.live != nil && !s.live() {
		if err := s.Refetch(ctx); err != nil {
			s.logger.Warn().Err(err).Str("op", cmd.op).Msg("fallback refetch failed")
		}
	}
	return nil
}

// Send appends an optimistic entry and creates the committed message.
// On failure the entry is rolled back and the returned error carries the
// draft content back to the caller, which restores the compose box.
func (s *Service) Send(ctx context.Context, draft models.Draft) (string, error) {
	if strings.TrimSpace(draft.Content) == "" {
		return "", ErrEmptyContent
	}

	tempID := s.store.AppendOptimistic(draft, s.me)

	err := s.run(ctx, command{
		op: "send",
		call: func(ctx context.Context) error {
			committed, err := s.client.CreateMessage(ctx, api.CreateMessageRequest{
				Content:       draft.Content,
				ReplyTo:       draft.ReplyTo,
				ReplyPreview:  draft.ReplyPreview,
				SenderRole:    s.me.Role,
				SenderName:    s.me.Name,
				CorrelationID: tempID,
			})
			if err != nil {
				return err
			}
			s.store.Reconcile(tempID, *committed)
			return nil
		},
	})
	if err != nil {
		s.store.Rollback(tempID)
		metrics.Rollbacks.Inc()
		s.logger.Warn().Err(err).Msg("send failed, optimistic entry rolled back")
		return "", fmt.Errorf("send failed: %w", err)
	}
	return tempID, nil
}

// Edit updates a message's content. No speculative local effect: the
// store changes only after the backend accepted the edit.
func (s *Service) Edit(ctx context.Context, id, content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}
	existing, ok := s.store.Get(id)
	if !ok {
		return ErrGone
	}
	if !existing.Mine(s.me) {
		return ErrNotYours
	}

	err := s.run(ctx, command{
		op: "edit",
		call: func(ctx context.Context) error {
			updated, err := s.client.UpdateMessage(ctx, id, api.UpdateMessageRequest{
				Content:    content,
				SenderRole: s.me.Role,
				SenderName: s.me.Name,
			})
			if err != nil {
				return err
			}
			s.store.IngestUpdated(*updated)
			return nil
		},
	})
	return s.classify(err)
}

// Delete removes a message optimistically. When the backend refuses, the
// removed message is re-inserted at its chronological position and a
// role-specific error is surfaced.
func (s *Service) Delete(ctx context.Context, id string) error {
	removed, ok := s.store.Get(id)
	if !ok {
		return ErrGone
	}

	err := s.run(ctx, command{
		op: "delete",
		apply: func() func() {
			s.store.IngestDeleted(id)
			return func() { s.store.Restore(removed) }
		},
		call: func(ctx context.Context) error {
			return s.client.DeleteMessage(ctx, id, s.me)
		},
	})
	return s.classify(err)
}

// MarkRead flags a message authored by the other party as read.
// Fire-and-forget: failures are logged, never surfaced.
func (s *Service) MarkRead(ctx context.Context, id string) {
	msg, ok := s.store.Get(id)
	if !ok || msg.Mine(s.me) || msg.IsRead || models.IsTempID(id) {
		return
	}

	if err := s.client.MarkRead(ctx, id); err != nil {
		metrics.Mutations.WithLabelValues("mark_read", "error").Inc()
		s.logger.Debug().Err(err).Str("id", id).Msg("mark read failed")
		return
	}
	metrics.Mutations.WithLabelValues("mark_read", "ok").Inc()
	s.store.IngestRead(id)
}

// ClearAll deletes the whole committed log. The local store is emptied
// only after the backend confirms; the caller must have collected an
// explicit user confirmation first.
func (s *Service) ClearAll(ctx context.Context) (int, error) {
	count, err := s.client.ClearAll(ctx)
	if err != nil {
		metrics.Mutations.WithLabelValues("clear_all", "error").Inc()
		return 0, err
	}
	metrics.Mutations.WithLabelValues("clear_all", "ok").Inc()

	s.store.ClearAll()
	s.notifier.Toast(notify.Success, fmt.Sprintf("%d messages cleared", count))
	return count, nil
}

// Refetch replaces the local projection with the full committed log.
func (s *Service) Refetch(ctx context.Context) error {
	metrics.Refetches.Inc()
	msgs, err := s.client.FetchMessages(ctx)
	if err != nil {
		return err
	}
	s.store.ReplaceAll(msgs)
	if s.OnRefetch != nil {
		s.OnRefetch(msgs)
	}
	return nil
}

// classify maps backend statuses onto the user-facing error taxonomy.
func (s *Service) classify(err error) error {
	switch {
	case err == nil:
		return nil
	case api.IsForbidden(err):
		return ErrNotYours
	case api.IsNotFound(err):
		return ErrGone
	default:
		return err
	}
}
