package offeradmin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/aurelle-london/backend-aurelle/internal/store"
)

type stubQuerier struct {
	offers        []store.Offer
	created       *store.Offer
	createErr     error
	deactivated   []uuid.UUID
	deactivateErr error
}

func (s *stubQuerier) ListOffers(context.Context) ([]store.Offer, error) {
	return s.offers, nil
}

func (s *stubQuerier) CreateOffer(_ context.Context, o store.Offer) (store.Offer, error) {
	if s.createErr != nil {
		return store.Offer{}, s.createErr
	}
	o.ID = uuid.New()
	o.CreatedAt = time.Now()
	s.created = &o
	return o, nil
}

func (s *stubQuerier) DeactivateOffer(_ context.Context, id uuid.UUID) error {
	if s.deactivateErr != nil {
		return s.deactivateErr
	}
	s.deactivated = append(s.deactivated, id)
	return nil
}

func TestCreateNormalizesCodeAndStoresBps(t *testing.T) {
	q := &stubQuerier{}
	h := &Handler{Q: q}

	body := `{"code":"  welcome10 ","displayName":"10% off first order","discountType":"percentage","discountValue":"10","minOrderAmount":"100.00","maxUses":500,"applicableTo":"new_users","priority":10}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/offers", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if q.created == nil {
		t.Fatal("offer not persisted")
	}
	if q.created.Code == nil || *q.created.Code != "WELCOME10" {
		t.Fatalf("code = %v, want WELCOME10", q.created.Code)
	}
	if q.created.DiscountValue != 1000 {
		t.Fatalf("discount value = %d bps, want 1000", q.created.DiscountValue)
	}
	if q.created.MinOrderAmount.Pence() != 10000 {
		t.Fatalf("min order = %d, want 10000", q.created.MinOrderAmount.Pence())
	}
}

func TestCreateRejectsUnknownDiscountType(t *testing.T) {
	h := &Handler{Q: &stubQuerier{}}

	body := `{"displayName":"bad","discountType":"bogo","discountValue":"10","applicableTo":"all"}`
	rec := httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/offers", strings.NewReader(body)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateRejectsInvalidDefinition(t *testing.T) {
	h := &Handler{Q: &stubQuerier{}}

	// percentage above 100% fails definition validation
	body := `{"code":"BIG","displayName":"too much","discountType":"percentage","discountValue":"150","applicableTo":"all"}`
	rec := httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/offers", strings.NewReader(body)))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateDuplicateCodeConflicts(t *testing.T) {
	q := &stubQuerier{createErr: &pgconn.PgError{Code: "23505"}}
	h := &Handler{Q: q}

	body := `{"code":"WELCOME10","displayName":"again","discountType":"fixed","discountValue":"5.00","applicableTo":"all"}`
	rec := httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/offers", strings.NewReader(body)))

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "DUPLICATE_CODE") {
		t.Fatalf("expected DUPLICATE_CODE in body: %s", rec.Body.String())
	}
}

func TestDeactivate(t *testing.T) {
	q := &stubQuerier{}
	h := &Handler{Q: q}
	id := uuid.New()

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id.String())
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/offers/"+id.String(), nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	rec := httptest.NewRecorder()
	h.Deactivate(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if len(q.deactivated) != 1 || q.deactivated[0] != id {
		t.Fatalf("deactivated = %v, want [%s]", q.deactivated, id)
	}
}

func TestDeactivateUnknownOffer(t *testing.T) {
	q := &stubQuerier{deactivateErr: store.ErrNotFound}
	h := &Handler{Q: q}

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", uuid.NewString())
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/offers/x", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	rec := httptest.NewRecorder()
	h.Deactivate(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
