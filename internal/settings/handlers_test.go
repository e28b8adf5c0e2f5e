package settings

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
)

func updateBody(version int64, vatRate string) string {
	return `{
		"deliveryTiers": [
			{"minAmount": "0.00", "maxAmount": "49.99", "fee": "5.99"},
			{"minAmount": "50.00", "fee": "0.00"}
		],
		"freeDeliveryThreshold": {"enabled": true, "amount": "100.00"},
		"vatRate": "` + vatRate + `",
		"vatEnabled": true,
		"version": ` + strconv.FormatInt(version, 10) + `
	}`
}

func TestHandlerGetRendersDecimalStrings(t *testing.T) {
	q := &stubQuerier{current: validSettings()}
	h := &Handler{Svc: &Service{Q: q}}

	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/api/v1/settings", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Data Payload `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.VATRate != "20.00" {
		t.Fatalf("vatRate = %q, want \"20.00\"", body.Data.VATRate)
	}
	if got := body.Data.DeliveryTiers[0].Fee; got != "5.99" {
		t.Fatalf("tier fee = %q, want \"5.99\"", got)
	}
	if body.Data.Version != 3 {
		t.Fatalf("version = %d, want 3", body.Data.Version)
	}
}

func TestHandlerUpdateStaleVersionReturns409(t *testing.T) {
	q := &stubQuerier{current: validSettings(), replaceOK: false}
	h := &Handler{Svc: &Service{Q: q}}

	req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/settings", strings.NewReader(updateBody(2, "20.00")))
	rec := httptest.NewRecorder()
	h.Update(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "CONCURRENCY_CONFLICT") {
		t.Fatalf("expected CONCURRENCY_CONFLICT in body: %s", rec.Body.String())
	}
}

func TestHandlerUpdateSuccessReturnsBumpedDocument(t *testing.T) {
	q := &stubQuerier{current: validSettings(), replaceOK: true}
	h := &Handler{Svc: &Service{Q: q}}

	req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/settings", strings.NewReader(updateBody(3, "17.50")))
	rec := httptest.NewRecorder()
	h.Update(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Data Payload `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.Version != 4 {
		t.Fatalf("version = %d, want 4", body.Data.Version)
	}
	if body.Data.VATRate != "17.50" {
		t.Fatalf("vatRate = %q, want \"17.50\"", body.Data.VATRate)
	}
}

func TestHandlerUpdateRejectsMalformedMoney(t *testing.T) {
	q := &stubQuerier{current: validSettings(), replaceOK: true}
	h := &Handler{Svc: &Service{Q: q}}

	body := `{"deliveryTiers":[{"minAmount":"abc","fee":"5.99"}],"freeDeliveryThreshold":{"enabled":false,"amount":""},"vatRate":"20","vatEnabled":true,"version":3}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/settings", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Update(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
	if q.replaceCalls != 0 {
		t.Fatalf("malformed payload must not reach the store")
	}
}
