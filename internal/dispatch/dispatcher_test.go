package dispatch

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/drheny/cab-sub000/internal/chat"
	"github.com/drheny/cab-sub000/internal/models"
	"github.com/drheny/cab-sub000/internal/notify"
)

var (
	doctor    = models.Identity{Role: models.RoleDoctor, Name: "Dr Heny"}
	secretary = models.Identity{Role: models.RoleSecretary, Name: "Valerie"}
)

type recordingNotifier struct {
	mu     sync.Mutex
	toasts []string
	badges []notify.Badge
}

func (n *recordingNotifier) Toast(level notify.Level, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.toasts = append(n.toasts, message)
}

func (n *recordingNotifier) ConnectionStatus(state notify.ConnState) {}

func (n *recordingNotifier) BadgeIncrement(badge notify.Badge) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.badges = append(n.badges, badge)
}

type fakeRefresher struct {
	mu    sync.Mutex
	calls int
	done  chan struct{}
}

func (f *fakeRefresher) Refresh(ctx context.Context) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	select {
	case f.done <- struct{}{}:
	default:
	}
	return nil
}

func frame(t *testing.T, ev models.Event) []byte {
	t.Helper()
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func remoteMessage(id, content string) *models.Message {
	now := time.Now()
	return &models.Message{
		ID:         id,
		SenderRole: secretary.Role,
		SenderName: secretary.Name,
		Content:    content,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestNewMessageAppendsAndSignals(t *testing.T) {
	store := chat.NewStore()
	rec := &recordingNotifier{}
	d := New(zerolog.Nop(), store, rec, nil, doctor)

	d.Handle(frame(t, models.Event{Type: models.EventNewMessage, Message: remoteMessage("m1", "coucou")}))

	if store.Len() != 1 {
		t.Fatal("remote message not appended")
	}
	if len(rec.badges) != 1 || rec.badges[0] != notify.BadgeChat {
		t.Fatal("expected a chat badge for a remote message")
	}
}

func TestDuplicateDeliveryIgnored(t *testing.T) {
	store := chat.NewStore()
	d := New(zerolog.Nop(), store, &recordingNotifier{}, nil, doctor)

	ev := frame(t, models.Event{Type: models.EventNewMessage, Message: remoteMessage("m1", "once")})
	d.Handle(ev)
	d.Handle(ev)

	if store.Len() != 1 {
		t.Fatalf("expected one message after duplicate delivery, got %d", store.Len())
	}
}

func TestEchoSuppressedByCorrelationID(t *testing.T) {
	store := chat.NewStore()
	d := New(zerolog.Nop(), store, &recordingNotifier{}, nil, doctor)

	tempID := store.AppendOptimistic(models.Draft{Content: "mine"}, doctor)

	echo := remoteMessage("m1", "mine")
	echo.SenderRole = doctor.Role
	echo.SenderName = doctor.Name
	d.Handle(frame(t, models.Event{Type: models.EventNewMessage, CorrelationID: tempID, Message: echo}))

	// Only the optimistic entry remains; the echo was dropped because
	// the REST response path owns reconciliation.
	if store.Len() != 1 {
		t.Fatalf("echo not suppressed, store has %d entries", store.Len())
	}
	if _, ok := store.Get("m1"); ok {
		t.Fatal("echo was ingested despite matching a pending send")
	}
}

func TestEchoFallbackIdentityHeuristic(t *testing.T) {
	store := chat.NewStore()
	d := New(zerolog.Nop(), store, &recordingNotifier{}, nil, doctor)

	store.AppendOptimistic(models.Draft{Content: "mine"}, doctor)

	echo := remoteMessage("m1", "mine")
	echo.SenderRole = doctor.Role
	echo.SenderName = doctor.Name
	// No correlation id: legacy backend.
	d.Handle(frame(t, models.Event{Type: models.EventNewMessage, Message: echo}))

	if _, ok := store.Get("m1"); ok {
		t.Fatal("identity-matching echo was not suppressed")
	}
}

func TestOwnMessageWithoutPendingIsIngested(t *testing.T) {
	store := chat.NewStore()
	d := New(zerolog.Nop(), store, &recordingNotifier{}, nil, doctor)

	// Same identity but nothing pending: another session of the same
	// user, not an echo.
	own := remoteMessage("m1", "from my other window")
	own.SenderRole = doctor.Role
	own.SenderName = doctor.Name
	d.Handle(frame(t, models.Event{Type: models.EventNewMessage, Message: own}))

	if _, ok := store.Get("m1"); !ok {
		t.Fatal("own message without pending send should be ingested")
	}
}

func TestUpdateDeleteReadRouting(t *testing.T) {
	store := chat.NewStore()
	d := New(zerolog.Nop(), store, &recordingNotifier{}, nil, doctor)

	d.Handle(frame(t, models.Event{Type: models.EventNewMessage, Message: remoteMessage("m1", "v1")}))

	updated := remoteMessage("m1", "v2")
	updated.IsEdited = true
	d.Handle(frame(t, models.Event{Type: models.EventMessageUpdated, Message: updated}))
	got, _ := store.Get("m1")
	if got.Content != "v2" || !got.IsEdited {
		t.Fatalf("update not routed: %+v", got)
	}

	d.Handle(frame(t, models.Event{Type: models.EventMessageRead, ID: "m1"}))
	got, _ = store.Get("m1")
	if !got.IsRead {
		t.Fatal("read not routed")
	}

	d.Handle(frame(t, models.Event{Type: models.EventMessageDeleted, ID: "m1"}))
	if store.Len() != 0 {
		t.Fatal("delete not routed")
	}
}

func TestRemoteClearToasts(t *testing.T) {
	store := chat.NewStore()
	rec := &recordingNotifier{}
	d := New(zerolog.Nop(), store, rec, nil, doctor)

	d.Handle(frame(t, models.Event{Type: models.EventNewMessage, Message: remoteMessage("m1", "x")}))
	d.Handle(frame(t, models.Event{Type: models.EventMessagesCleared}))

	if store.Len() != 0 {
		t.Fatal("store not cleared")
	}
	if len(rec.toasts) == 0 {
		t.Fatal("remote bulk-clear must be surfaced")
	}
}

func TestPhoneEventsTriggerRefresh(t *testing.T) {
	store := chat.NewStore()
	ref := &fakeRefresher{done: make(chan struct{}, 2)}
	d := New(zerolog.Nop(), store, &recordingNotifier{}, ref, doctor)

	d.Handle(frame(t, models.Event{Type: models.EventNewPhone, Phone: &models.PhoneMessage{
		ID:        "p1",
		Status:    models.PhoneNew,
		Direction: models.SecretaryToDoctor,
	}}))

	select {
	case <-ref.done:
	case <-time.After(time.Second):
		t.Fatal("phone push did not trigger a list refresh")
	}
}

func TestUnknownKindSkipped(t *testing.T) {
	store := chat.NewStore()
	d := New(zerolog.Nop(), store, &recordingNotifier{}, nil, doctor)

	d.Handle([]byte(`{"type":"typing_indicator"}`))
	d.Handle([]byte(`not json at all`))

	if store.Len() != 0 {
		t.Fatal("unknown frames must not mutate the store")
	}
}
