package phone

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/drheny/cab-sub000/internal/api"
	"github.com/drheny/cab-sub000/internal/models"
	"github.com/drheny/cab-sub000/internal/notify"
)

var (
	doctor    = models.Identity{Role: models.RoleDoctor, Name: "Dr Heny"}
	secretary = models.Identity{Role: models.RoleSecretary, Name: "Valerie"}
)

type nopNotifier struct{}

func (nopNotifier) Toast(level notify.Level, message string) {}
func (nopNotifier) ConnectionStatus(state notify.ConnState)  {}
func (nopNotifier) BadgeIncrement(badge notify.Badge)        {}

// fakeBackend stores phone messages in memory behind the REST shape the
// client expects.
type fakeBackend struct {
	mux  *http.ServeMux
	list map[string]*models.PhoneMessage
	next int
}

func newFakeBackend() *fakeBackend {
	b := &fakeBackend{mux: http.NewServeMux(), list: map[string]*models.PhoneMessage{}}

	b.mux.HandleFunc("GET /api/phone-messages", func(w http.ResponseWriter, r *http.Request) {
		var out []models.PhoneMessage
		for _, pm := range b.list {
			out = append(out, *pm)
		}
		json.NewEncoder(w).Encode(api.PhoneListResponse{PhoneMessages: out})
	})
	b.mux.HandleFunc("POST /api/phone-messages", func(w http.ResponseWriter, r *http.Request) {
		var req api.CreatePhoneRequest
		json.NewDecoder(r.Body).Decode(&req)
		b.next++
		pm := &models.PhoneMessage{
			ID:             fmt.Sprintf("p%d", b.next),
			Status:         models.PhoneNew,
			Direction:      req.Direction,
			Priority:       req.Priority,
			PatientRef:     req.PatientRef,
			MessageContent: req.MessageContent,
			CallDate:       req.CallDate,
			CallTime:       req.CallTime,
			UpdatedAt:      time.Now(),
		}
		b.list[pm.ID] = pm
		json.NewEncoder(w).Encode(pm)
	})
	b.mux.HandleFunc("PUT /api/phone-messages/{id}", func(w http.ResponseWriter, r *http.Request) {
		pm, ok := b.list[r.PathValue("id")]
		if !ok {
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
			return
		}
		var req api.UpdatePhoneRequest
		json.NewDecoder(r.Body).Decode(&req)
		pm.MessageContent = req.MessageContent
		pm.Priority = req.Priority
		pm.UpdatedAt = time.Now()
		json.NewEncoder(w).Encode(pm)
	})
	b.mux.HandleFunc("PUT /api/phone-messages/{id}/respond", func(w http.ResponseWriter, r *http.Request) {
		pm, ok := b.list[r.PathValue("id")]
		if !ok {
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
			return
		}
		if pm.Status == models.PhoneResponded {
			http.Error(w, `{"error":"already responded"}`, http.StatusConflict)
			return
		}
		var req api.RespondPhoneRequest
		json.NewDecoder(r.Body).Decode(&req)
		pm.Status = models.PhoneResponded
		pm.ResponseContent = req.ResponseContent
		pm.RespondedBy = req.RespondedBy
		pm.UpdatedAt = time.Now()
		json.NewEncoder(w).Encode(pm)
	})
	b.mux.HandleFunc("DELETE /api/phone-messages/{id}", func(w http.ResponseWriter, r *http.Request) {
		delete(b.list, r.PathValue("id"))
		w.Write([]byte(`{"ok":true}`))
	})
	b.mux.HandleFunc("DELETE /api/phone-messages", func(w http.ResponseWriter, r *http.Request) {
		n := len(b.list)
		b.list = map[string]*models.PhoneMessage{}
		json.NewEncoder(w).Encode(api.ClearAllResponse{Count: n})
	})

	return b
}

func newTestService(t *testing.T, me models.Identity) (*Service, *fakeBackend) {
	t.Helper()
	backend := newFakeBackend()
	srv := httptest.NewServer(backend.mux)
	t.Cleanup(srv.Close)

	client := api.NewClient(srv.URL, 5*time.Second)
	return NewService(zerolog.Nop(), client, nopNotifier{}, me), backend
}

func TestSecretaryCreateRequiresPatient(t *testing.T) {
	svc, backend := newTestService(t, secretary)

	_, err := svc.Create(context.Background(), CreateInput{MessageContent: "M. Martin called"})
	if !errors.Is(err, ErrPatientRequired) {
		t.Fatalf("expected ErrPatientRequired, got %v", err)
	}
	if len(backend.list) != 0 {
		t.Fatal("validation error must not reach the network")
	}

	pm, err := svc.Create(context.Background(), CreateInput{
		MessageContent: "M. Martin called",
		PatientRef:     "patient-42",
	})
	if err != nil {
		t.Fatal(err)
	}
	if pm.Direction != models.SecretaryToDoctor {
		t.Fatalf("direction not fixed by creator role: %s", pm.Direction)
	}
	if pm.Status != models.PhoneNew {
		t.Fatalf("expected new status, got %s", pm.Status)
	}
}

func TestDoctorCreateCarriesNoPatient(t *testing.T) {
	svc, _ := newTestService(t, doctor)

	pm, err := svc.Create(context.Background(), CreateInput{
		MessageContent: "call back the pharmacy",
		PatientRef:     "should-be-stripped",
	})
	if err != nil {
		t.Fatal(err)
	}
	if pm.Direction != models.DoctorToSecretary {
		t.Fatalf("unexpected direction %s", pm.Direction)
	}
	if pm.PatientRef != "" {
		t.Fatal("doctor-to-secretary message must not carry a patient reference")
	}
	if pm.Priority != models.PriorityNormal {
		t.Fatalf("expected default normal priority, got %s", pm.Priority)
	}
}

func TestRespondTerminalTransition(t *testing.T) {
	creator, backend := newTestService(t, secretary)
	pm, err := creator.Create(context.Background(), CreateInput{
		MessageContent: "Mme Dupont asks about results",
		PatientRef:     "patient-7",
		Priority:       models.PriorityUrgent,
	})
	if err != nil {
		t.Fatal(err)
	}

	// The doctor sees the same backend.
	srv := httptest.NewServer(backend.mux)
	t.Cleanup(srv.Close)
	responder := NewService(zerolog.Nop(), api.NewClient(srv.URL, 5*time.Second), nopNotifier{}, doctor)
	if err := responder.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := responder.Respond(context.Background(), pm.ID, "tell her results are in"); err != nil {
		t.Fatal(err)
	}

	got := responder.Messages()[0]
	if got.Status != models.PhoneResponded {
		t.Fatalf("expected responded, got %s", got.Status)
	}
	if got.ResponseContent == "" || got.RespondedBy != doctor.Name {
		t.Fatalf("response fields not set: %+v", got)
	}

	// Terminal: both roles are refused a second transition.
	if err := responder.Respond(context.Background(), pm.ID, "again"); !errors.Is(err, ErrAlreadyResponded) {
		t.Fatalf("expected ErrAlreadyResponded, got %v", err)
	}
	if err := creator.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := creator.Respond(context.Background(), pm.ID, "me too"); !errors.Is(err, ErrAlreadyResponded) {
		t.Fatalf("expected ErrAlreadyResponded for author as well, got %v", err)
	}
}

func TestRespondRejectsWrongRole(t *testing.T) {
	svc, _ := newTestService(t, secretary)
	pm, err := svc.Create(context.Background(), CreateInput{
		MessageContent: "call M. Bernard",
		PatientRef:     "patient-3",
	})
	if err != nil {
		t.Fatal(err)
	}

	// The author is not the recipient and may not respond.
	if err := svc.Respond(context.Background(), pm.ID, "self-answer"); !errors.Is(err, ErrNotRecipient) {
		t.Fatalf("expected ErrNotRecipient, got %v", err)
	}
}

func TestEditOnlyWhileNew(t *testing.T) {
	svc, backend := newTestService(t, secretary)
	pm, err := svc.Create(context.Background(), CreateInput{
		MessageContent: "v1",
		PatientRef:     "patient-9",
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Edit(context.Background(), pm.ID, "v2", models.PriorityUrgent); err != nil {
		t.Fatal(err)
	}
	got := svc.Messages()[0]
	if got.MessageContent != "v2" || got.Priority != models.PriorityUrgent {
		t.Fatalf("edit not applied: %+v", got)
	}
	if got.Direction != models.SecretaryToDoctor || got.Status != models.PhoneNew {
		t.Fatal("edit must not touch direction or status")
	}

	// Respond on the backend, refresh, then editing is rejected.
	backend.list[pm.ID].Status = models.PhoneResponded
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := svc.Edit(context.Background(), pm.ID, "v3", models.PriorityNormal); !errors.Is(err, ErrAlreadyResponded) {
		t.Fatalf("expected ErrAlreadyResponded, got %v", err)
	}
}

func TestEditRejectsNonAuthor(t *testing.T) {
	creator, backend := newTestService(t, secretary)
	pm, err := creator.Create(context.Background(), CreateInput{
		MessageContent: "for the doctor",
		PatientRef:     "patient-1",
	})
	if err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(backend.mux)
	t.Cleanup(srv.Close)
	other := NewService(zerolog.Nop(), api.NewClient(srv.URL, 5*time.Second), nopNotifier{}, doctor)
	if err := other.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := other.Edit(context.Background(), pm.ID, "hijacked", models.PriorityNormal); !errors.Is(err, ErrNotAuthor) {
		t.Fatalf("expected ErrNotAuthor, got %v", err)
	}
}

func TestDeleteAnyStatusAndBulkConfirmation(t *testing.T) {
	svc, backend := newTestService(t, secretary)
	pm, err := svc.Create(context.Background(), CreateInput{
		MessageContent: "done deal",
		PatientRef:     "patient-2",
	})
	if err != nil {
		t.Fatal(err)
	}
	backend.list[pm.ID].Status = models.PhoneResponded
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Responded records can still be deleted.
	if err := svc.Delete(context.Background(), pm.ID); err != nil {
		t.Fatal(err)
	}
	if len(svc.Messages()) != 0 {
		t.Fatal("local list not updated after delete")
	}

	if _, err := svc.Create(context.Background(), CreateInput{
		MessageContent: "another",
		PatientRef:     "patient-4",
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.DeleteAll(context.Background(), false); !errors.Is(err, ErrConfirmRequired) {
		t.Fatalf("expected ErrConfirmRequired, got %v", err)
	}
	count, err := svc.DeleteAll(context.Background(), true)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 || len(svc.Messages()) != 0 {
		t.Fatalf("bulk delete mismatch: count=%d local=%d", count, len(svc.Messages()))
	}
}

func TestPendingCount(t *testing.T) {
	svc, backend := newTestService(t, secretary)
	if _, err := svc.Create(context.Background(), CreateInput{
		MessageContent: "one", PatientRef: "p1",
	}); err != nil {
		t.Fatal(err)
	}
	// Pending counts what awaits *my* response; outgoing ones do not.
	if n := svc.PendingCount(); n != 0 {
		t.Fatalf("expected 0 pending for author, got %d", n)
	}

	srv := httptest.NewServer(backend.mux)
	t.Cleanup(srv.Close)
	dr := NewService(zerolog.Nop(), api.NewClient(srv.URL, 5*time.Second), nopNotifier{}, doctor)
	if err := dr.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := dr.PendingCount(); n != 1 {
		t.Fatalf("expected 1 pending for recipient, got %d", n)
	}
}
