package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aurelle-london/backend-aurelle/internal/store"
)

type listStore struct {
	stubStore
	receivedLimit  int32
	receivedOffset int32
}

func (l *listStore) ListAuditLogs(_ context.Context, limit, offset int32) ([]store.AuditLog, error) {
	l.receivedLimit = limit
	l.receivedOffset = offset
	return []store.AuditLog{{Action: "TEST", Method: "GET"}}, nil
}

func TestHandlerList(t *testing.T) {
	st := &listStore{}
	h := Handler{Store: st}
	req := httptest.NewRequest(http.MethodGet, "/audit?limit=25&offset=10", nil)
	rr := httptest.NewRecorder()
	h.List(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if st.receivedLimit != 25 || st.receivedOffset != 10 {
		t.Fatalf("unexpected pagination params: %d/%d", st.receivedLimit, st.receivedOffset)
	}
	var payload []map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload) != 1 {
		t.Fatalf("expected one log entry, got %d", len(payload))
	}
}
