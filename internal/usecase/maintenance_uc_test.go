package usecase_test

import (
	"context"
	"testing"
	"time"

	"a2z-marketplace/internal/domain/model"
	"a2z-marketplace/internal/usecase"
)

func TestMaintenanceUseCase_FinishExpired(t *testing.T) {
	db := newMemDB()
	clock := newTestClock()
	lapsed := paidProfile(sellerID, "thandi", model.TierBusiness, baseTime.Add(-time.Minute))
	current := paidProfile(otherID, "sipho", model.TierPremium, baseTime.AddDate(0, 0, 3))
	trialID := "5b5b5b5b-0000-4000-8000-000000000005"
	trial := freeProfile(trialID, "naledi", baseTime.AddDate(0, -1, 0))
	_ = trial.StartTrial(baseTime.AddDate(0, 0, -31))
	for _, p := range []*model.Profile{lapsed, current, trial} {
		db.putProfile(p)
	}
	profiles := db.Profiles()
	uc := usecase.NewMaintenanceUseCase(profiles, db.Payments(), db, 0, newTestLogger(), clock.Now)

	n, err := uc.FinishExpired(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expired = %d, want 2", n)
	}
	for _, id := range []string{sellerID, trialID} {
		p := db.profile(id)
		if p.Tier != model.TierFree || p.SubscriptionStatus != model.SubscriptionStatusExpired || !p.CycleStartedAt.Equal(baseTime) {
			t.Fatalf("profile %s = %+v", id, p)
		}
		if !p.TrialUsed && id == trialID {
			t.Fatal("trial flag cleared")
		}
	}
	if p := db.profile(otherID); p.Tier != model.TierPremium {
		t.Fatalf("current subscription expired: %+v", p)
	}
	if len(profiles.invalidated) != 2 {
		t.Fatalf("invalidated = %v", profiles.invalidated)
	}

	// idempotent
	if n, _ := uc.FinishExpired(context.Background()); n != 0 {
		t.Fatalf("second pass expired %d", n)
	}
}

func TestMaintenanceUseCase_CancelStalePayments(t *testing.T) {
	db := newMemDB()
	clock := newTestClock()
	mk := func(ref string, status model.PaymentStatus, age time.Duration) {
		db.putPayment(&model.Payment{ID: ref, UserID: sellerID, TransactionReference: ref, Status: status, CreatedAt: baseTime.Add(-age)})
	}
	mk("old-pending", model.PaymentStatusPending, 25*time.Hour)
	mk("fresh-pending", model.PaymentStatusPending, time.Hour)
	mk("old-completed", model.PaymentStatusCompleted, 48*time.Hour)
	uc := usecase.NewMaintenanceUseCase(db.Profiles(), db.Payments(), db, 24*time.Hour, newTestLogger(), clock.Now)

	n, err := uc.CancelStalePayments(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("n = %d err = %v", n, err)
	}
	want := map[string]model.PaymentStatus{
		"old-pending":   model.PaymentStatusCancelled,
		"fresh-pending": model.PaymentStatusPending,
		"old-completed": model.PaymentStatusCompleted,
	}
	for ref, status := range want {
		if got := db.payment(ref).Status; got != status {
			t.Fatalf("%s = %s, want %s", ref, got, status)
		}
	}
}
