package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/aurelle-london/backend-aurelle/internal/common"
	"github.com/aurelle-london/backend-aurelle/internal/obs"
	"github.com/aurelle-london/backend-aurelle/internal/store"
)

type stubStore struct {
	lastInsert store.AuditLog
	called     bool
}

func (s *stubStore) InsertAuditLog(_ context.Context, entry store.AuditLog) (store.AuditLog, error) {
	s.called = true
	s.lastInsert = entry
	return entry, nil
}

func (s *stubStore) ListAuditLogs(context.Context, int32, int32) ([]store.AuditLog, error) {
	return nil, nil
}

func TestServiceRecord(t *testing.T) {
	st := &stubStore{}
	svc := Service{Store: st, Enabled: true, SamplingRate: 1}
	userID := uuid.NewString()

	req := httptest.NewRequest(http.MethodPost, "https://api.test/api/v1/admin/offers?status=active", nil)
	req.Header.Set("User-Agent", "tester")
	req.Header.Set("X-Request-ID", "req-123")
	req.RemoteAddr = "10.0.0.2:54321"
	ctx := common.WithUserID(req.Context(), userID)
	ctx = obs.WithRoutePattern(ctx, "/api/v1/admin/offers")
	req = req.WithContext(ctx)

	if err := svc.Record(req.Context(), Actor{Kind: ActorKindUser, UserID: &userID}, "", "", "", req, http.StatusCreated, nil); err != nil {
		t.Fatalf("record: %v", err)
	}
	if !st.called {
		t.Fatal("expected store to be called")
	}
	if st.lastInsert.ActorKind != string(ActorKindUser) {
		t.Fatalf("unexpected actor kind: %s", st.lastInsert.ActorKind)
	}
	if st.lastInsert.ActorUserID == nil || st.lastInsert.ActorUserID.String() != userID {
		t.Fatalf("unexpected stored user id: %v", st.lastInsert.ActorUserID)
	}
	if st.lastInsert.Action != "POST /api/v1/admin/offers" {
		t.Fatalf("unexpected action: %s", st.lastInsert.Action)
	}
	if st.lastInsert.ResourceType != "admin.offers" {
		t.Fatalf("unexpected resource type: %s", st.lastInsert.ResourceType)
	}
	if st.lastInsert.IP == nil || *st.lastInsert.IP != "10.0.0.2" {
		t.Fatalf("expected ip capture, got %v", st.lastInsert.IP)
	}
	if st.lastInsert.RequestID == nil || *st.lastInsert.RequestID != "req-123" {
		t.Fatalf("expected request id, got %v", st.lastInsert.RequestID)
	}
	if len(st.lastInsert.Metadata) == 0 {
		t.Fatal("expected metadata to be set")
	}
	var meta map[string]string
	if err := json.Unmarshal(st.lastInsert.Metadata, &meta); err != nil {
		t.Fatalf("metadata json: %v", err)
	}
	if meta["query"] != "status=active" {
		t.Fatalf("unexpected metadata query: %s", meta["query"])
	}
}

func TestServiceRecordDisabled(t *testing.T) {
	st := &stubStore{}
	svc := Service{Store: st, Enabled: false}
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	if err := svc.Record(req.Context(), Actor{}, "", "", "", req, http.StatusOK, nil); err != nil {
		t.Fatalf("record: %v", err)
	}
	if st.called {
		t.Fatal("expected no insert when disabled")
	}
}
