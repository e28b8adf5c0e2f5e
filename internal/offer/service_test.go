package offer

import (
	"testing"
	"time"

	"github.com/aurelle-london/backend-aurelle/internal/money"
)

func TestValidateDefinition(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	before := from.Add(-time.Hour)
	uses := int32(0)
	base := Rule{
		Code:        "SAVE10",
		DisplayName: "Save 10%",
		Type:        DiscountPercentage,
		Value:       1000,
		Audience:    AudienceAll,
		ValidFrom:   from,
	}

	cases := []struct {
		name    string
		mutate  func(*Rule)
		wantErr bool
	}{
		{"valid percentage", func(r *Rule) {}, false},
		{"valid fixed", func(r *Rule) { r.Type = DiscountFixed; r.Value = 1500 }, false},
		{"valid auto-apply without code", func(r *Rule) { r.Code = ""; r.AutoApply = true }, false},
		{"percentage over 100", func(r *Rule) { r.Value = 10001 }, true},
		{"zero value", func(r *Rule) { r.Value = 0 }, true},
		{"unknown type", func(r *Rule) { r.Type = "bogo" }, true},
		{"unknown audience", func(r *Rule) { r.Audience = "vip" }, true},
		{"missing display name", func(r *Rule) { r.DisplayName = " " }, true},
		{"missing code without auto-apply", func(r *Rule) { r.Code = "" }, true},
		{"negative min order", func(r *Rule) { r.MinOrderAmount = money.Money(-1) }, true},
		{"zero max uses", func(r *Rule) { r.MaxUses = &uses }, true},
		{"validTo before validFrom", func(r *Rule) { r.ValidTo = &before }, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := base
			tc.mutate(&r)
			err := ValidateDefinition(r)
			if tc.wantErr && err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestNormalizeCode(t *testing.T) {
	if got := NormalizeCode("  seasonal10 "); got != "SEASONAL10" {
		t.Fatalf("NormalizeCode = %q", got)
	}
}
