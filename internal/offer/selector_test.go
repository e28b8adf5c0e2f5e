package offer

import (
	"testing"
	"time"

	"github.com/aurelle-london/backend-aurelle/internal/money"
)

func autoRule(name string, priority int32, createdAt time.Time) Rule {
	return Rule{
		DisplayName: name,
		Type:        DiscountPercentage,
		Value:       1000,
		ValidFrom:   testNow.Add(-time.Hour),
		IsActive:    true,
		Audience:    AudienceAll,
		AutoApply:   true,
		Priority:    priority,
		CreatedAt:   createdAt,
	}
}

func TestSelectHighestDiscountWins(t *testing.T) {
	small := Candidate{Rule: autoRule("small", 10, testNow), Discount: money.MustParse("5.00")}
	big := Candidate{Rule: autoRule("big", 1, testNow), Discount: money.MustParse("12.00")}
	winner, ok := SelectAutoApply([]Candidate{small, big})
	if !ok || winner.Rule.DisplayName != "big" {
		t.Fatalf("expected big to win, got %+v ok=%v", winner.Rule.DisplayName, ok)
	}
}

func TestSelectPriorityBreaksAmountTie(t *testing.T) {
	low := Candidate{Rule: autoRule("low", 1, testNow), Discount: money.MustParse("10.00")}
	high := Candidate{Rule: autoRule("high", 9, testNow), Discount: money.MustParse("10.00")}
	winner, ok := SelectAutoApply([]Candidate{low, high})
	if !ok || winner.Rule.DisplayName != "high" {
		t.Fatalf("expected high priority to win, got %q", winner.Rule.DisplayName)
	}
}

func TestSelectEarliestCreatedBreaksFullTie(t *testing.T) {
	older := Candidate{Rule: autoRule("older", 5, testNow.Add(-48 * time.Hour)), Discount: money.MustParse("10.00")}
	newer := Candidate{Rule: autoRule("newer", 5, testNow), Discount: money.MustParse("10.00")}
	// Deterministic regardless of input order.
	for _, cands := range [][]Candidate{{older, newer}, {newer, older}} {
		winner, ok := SelectAutoApply(cands)
		if !ok || winner.Rule.DisplayName != "older" {
			t.Fatalf("expected older to win, got %q", winner.Rule.DisplayName)
		}
	}
}

func TestSelectSkipsNonAutoApply(t *testing.T) {
	manual := autoRule("manual", 5, testNow)
	manual.AutoApply = false
	_, ok := SelectAutoApply([]Candidate{{Rule: manual, Discount: money.MustParse("10.00")}})
	if ok {
		t.Fatal("manual-only candidates must yield no winner")
	}
}

func TestEvaluateAutoApplyFiltersIneligible(t *testing.T) {
	eligible := autoRule("eligible", 1, testNow)
	belowMin := autoRule("below-min", 1, testNow)
	belowMin.MinOrderAmount = money.MustParse("999.00")
	inactive := autoRule("inactive", 1, testNow)
	inactive.IsActive = false

	cands := EvaluateAutoApply([]Rule{eligible, belowMin, inactive}, testNow, money.MustParse("120.00"), false)
	if len(cands) != 1 || cands[0].Rule.DisplayName != "eligible" {
		t.Fatalf("unexpected candidates: %+v", cands)
	}
}
