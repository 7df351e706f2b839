// Package phone implements the phone-message workflow: a request/response
// channel with a two-state lifecycle (new, then terminally responded)
// running beside the live chat. The list is a projection refetched
// wholesale on push notifications.
package phone

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/drheny/cab-sub000/internal/api"
	"github.com/drheny/cab-sub000/internal/metrics"
	"github.com/drheny/cab-sub000/internal/models"
	"github.com/drheny/cab-sub000/internal/notify"
)

var (
	// ErrEmptyContent rejects blank message or response bodies.
	ErrEmptyContent = errors.New("content is empty")
	// ErrPatientRequired rejects a secretary-to-doctor message without a
	// patient reference, before any network call.
	ErrPatientRequired = errors.New("patient reference is required")
	// ErrNotFound reports an id absent from the local list.
	ErrNotFound = errors.New("phone message not found")
	// ErrNotRecipient rejects a respond attempt by the wrong role.
	ErrNotRecipient = errors.New("only the recipient may respond")
	// ErrNotAuthor rejects an edit by the non-authoring role.
	ErrNotAuthor = errors.New("only the author may edit")
	// ErrAlreadyResponded rejects any transition out of the terminal
	// state, including edits after a response.
	ErrAlreadyResponded = errors.New("phone message already responded")
	// ErrConfirmRequired guards the irreversible bulk delete.
	ErrConfirmRequired = errors.New("bulk delete requires confirmation")
)

// Service owns the client-local phone message list and enforces the
// state machine before any backend call.
type Service struct {
	logger   zerolog.Logger
	client   *api.Client
	notifier notify.Notifier
	me       models.Identity

	mu   sync.RWMutex
	list []models.PhoneMessage
}

// NewService creates the phone workflow service.
func NewService(logger zerolog.Logger, client *api.Client, notifier notify.Notifier, me models.Identity) *Service {
	return &Service{
		logger:   logger.With().Str("component", "phone").Logger(),
		client:   client,
		notifier: notifier,
		me:       me,
	}
}

// Messages returns a copy of the current list projection.
func (s *Service) Messages() []models.PhoneMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.PhoneMessage, len(s.list))
	copy(out, s.list)
	return out
}

// PendingCount counts new messages awaiting a response from the local
// user.
func (s *Service) PendingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for i := range s.list {
		if s.list[i].Status == models.PhoneNew && s.list[i].Direction.Recipient() == s.me.Role {
			n++
		}
	}
	return n
}

// Refresh replaces the local list with the backend's. Called at startup
// and on every phone push notification.
func (s *Service) Refresh(ctx context.Context) error {
	list, err := s.client.ListPhoneMessages(ctx, api.PhoneFilter{})
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.list = list
	s.mu.Unlock()
	return nil
}

// CreateInput is the user input for a new phone message.
type CreateInput struct {
	MessageContent string
	Priority       models.Priority
	PatientRef     string
}

// Create makes a new phone message. Direction is fixed by the creator's
// role; a secretary-to-doctor message must reference the patient the
// call was about, and the reverse direction carries no patient reference.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.PhoneMessage, error) {
	if strings.TrimSpace(in.MessageContent) == "" {
		return nil, ErrEmptyContent
	}

	direction := models.DoctorToSecretary
	if s.me.Role == models.RoleSecretary {
		direction = models.SecretaryToDoctor
		if strings.TrimSpace(in.PatientRef) == "" {
			return nil, ErrPatientRequired
		}
	} else {
		in.PatientRef = ""
	}

	priority := in.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}

	now := time.Now()
	created, err := s.client.CreatePhoneMessage(ctx, api.CreatePhoneRequest{
		Direction:      direction,
		Priority:       priority,
		PatientRef:     in.PatientRef,
		MessageContent: in.MessageContent,
		CallDate:       now.Format("2006-01-02"),
		CallTime:       now.Format("15:04"),
	})
	if err != nil {
		metrics.Mutations.WithLabelValues("create_phone", "error").Inc()
		return nil, err
	}
	metrics.Mutations.WithLabelValues("create_phone", "ok").Inc()

	s.mu.Lock()
	s.list = append(s.list, *created)
	s.mu.Unlock()
	return created, nil
}

// Edit mutates message content and priority in place. Permitted only to
// the author and only while the message is still new; editing after a
// response is rejected explicitly.
func (s *Service) Edit(ctx context.Context, id, content string, priority models.Priority) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}
	pm, ok := s.get(id)
	if !ok {
		return ErrNotFound
	}
	if pm.Status == models.PhoneResponded {
		return ErrAlreadyResponded
	}
	if pm.Direction.Sender() != s.me.Role {
		return ErrNotAuthor
	}

	updated, err := s.client.UpdatePhoneMessage(ctx, id, api.UpdatePhoneRequest{
		MessageContent: content,
		Priority:       priority,
	})
	if err != nil {
		metrics.Mutations.WithLabelValues("edit_phone", "error").Inc()
		return err
	}
	metrics.Mutations.WithLabelValues("edit_phone", "ok").Inc()
	s.replace(*updated)
	return nil
}

// Respond performs the terminal transition. Only the recipient role may
// respond, and only while the message is new.
func (s *Service) Respond(ctx context.Context, id, response string) error {
	if strings.TrimSpace(response) == "" {
		return ErrEmptyContent
	}
	pm, ok := s.get(id)
	if !ok {
		return ErrNotFound
	}
	if pm.Status == models.PhoneResponded {
		return ErrAlreadyResponded
	}
	if pm.Direction.Recipient() != s.me.Role {
		return ErrNotRecipient
	}

	updated, err := s.client.RespondPhoneMessage(ctx, id, api.RespondPhoneRequest{
		ResponseContent: response,
		RespondedBy:     s.me.Name,
	})
	if err != nil {
		metrics.Mutations.WithLabelValues("respond_phone", "error").Inc()
		return err
	}
	metrics.Mutations.WithLabelValues("respond_phone", "ok").Inc()
	s.replace(*updated)
	return nil
}

// Delete removes one phone message, whatever its status.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, ok := s.get(id); !ok {
		return ErrNotFound
	}
	if err := s.client.DeletePhoneMessage(ctx, id); err != nil {
		metrics.Mutations.WithLabelValues("delete_phone", "error").Inc()
		return err
	}
	metrics.Mutations.WithLabelValues("delete_phone", "ok").Inc()

	s.mu.Lock()
	for i := range s.list {
		if s.list[i].ID == id {
			s.list = append(s.list[:i], s.list[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	return nil
}

// DeleteAll removes every phone message. Irreversible, so the caller
// must pass an explicit confirmation.
func (s *Service) DeleteAll(ctx context.Context, confirmed bool) (int, error) {
	if !confirmed {
		return 0, ErrConfirmRequired
	}
	count, err := s.client.DeleteAllPhoneMessages(ctx)
	if err != nil {
		metrics.Mutations.WithLabelValues("delete_all_phone", "error").Inc()
		return 0, err
	}
	metrics.Mutations.WithLabelValues("delete_all_phone", "ok").Inc()

	s.mu.Lock()
	s.list = nil
	s.mu.Unlock()
	s.notifier.Toast(notify.Success, "phone messages cleared")
	return count, nil
}

func (s *Service) get(id string) (models.PhoneMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.list {
		if s.list[i].ID == id {
			return s.list[i], true
		}
	}
	return models.PhoneMessage{}, false
}

func (s *Service) replace(pm models.PhoneMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.list {
		if s.list[i].ID == pm.ID {
			s.list[i] = pm
			return
		}
	}
	s.list = append(s.list, pm)
}
