package caption_test

import (
	"context"
	"errors"
	"testing"

	caption "github.com/Jamesmini007/AX2-Caption"
	"github.com/Jamesmini007/AX2-Caption/trial"
)

func TestTrialEligibility(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	sess := caption.Session{AccountID: "acct_1", SignedIn: true}

	elig, err := svc.TrialEligibility(ctx, sess, 300, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !elig.Eligible {
		t.Fatalf("fresh account must be eligible, got reason %q", elig.Reason)
	}

	// Checking never consumes the trial.
	if b := mustBalance(t, svc, sess); b != 0 {
		t.Fatalf("balance after check = %v, want 0", b)
	}

	elig, err = svc.TrialEligibility(ctx, sess, 601, 1)
	if err != nil {
		t.Fatal(err)
	}
	if elig.Eligible || elig.Reason != trial.ReasonTooLong {
		t.Fatalf("eligibility = %+v, want too long", elig)
	}
}

func TestGrantFreeTrial(t *testing.T) {
	ctx := context.Background()

	t.Run("GrantsOnce", func(t *testing.T) {
		svc := newTestService(t)
		sess := caption.Session{AccountID: "acct_1", SignedIn: true}

		if err := svc.GrantFreeTrial(ctx, sess, 300, 1); err != nil {
			t.Fatal(err)
		}
		if b := mustBalance(t, svc, sess); b != trial.GrantAmount {
			t.Fatalf("balance = %v, want %v", b, trial.GrantAmount)
		}

		err := svc.GrantFreeTrial(ctx, sess, 300, 1)
		if !errors.Is(err, caption.ErrTrialAlreadyUsed) {
			t.Fatalf("second grant err = %v, want ErrTrialAlreadyUsed", err)
		}
		if b := mustBalance(t, svc, sess); b != trial.GrantAmount {
			t.Fatalf("balance after rejected grant = %v, want %v", b, trial.GrantAmount)
		}
	})

	t.Run("UsageIsSharedAcrossPools", func(t *testing.T) {
		svc := newTestService(t)
		signedIn := caption.Session{AccountID: "acct_1", SignedIn: true}
		anon := caption.Session{AccountID: "acct_1", SignedIn: false}

		if err := svc.GrantFreeTrial(ctx, signedIn, 300, 1); err != nil {
			t.Fatal(err)
		}

		// The trial is per account, not per pool.
		err := svc.GrantFreeTrial(ctx, anon, 300, 1)
		if !errors.Is(err, caption.ErrTrialAlreadyUsed) {
			t.Fatalf("anonymous grant err = %v, want ErrTrialAlreadyUsed", err)
		}
	})

	t.Run("RejectsOversizedRequests", func(t *testing.T) {
		svc := newTestService(t)
		sess := caption.Session{AccountID: "acct_1", SignedIn: true}

		err := svc.GrantFreeTrial(ctx, sess, 601, 1)
		if !errors.Is(err, caption.ErrTrialVideoTooLong) {
			t.Fatalf("err = %v, want ErrTrialVideoTooLong", err)
		}

		err = svc.GrantFreeTrial(ctx, sess, 300, 2)
		if !errors.Is(err, caption.ErrTrialTooManyLanguages) {
			t.Fatalf("err = %v, want ErrTrialTooManyLanguages", err)
		}

		// Rejected grants must not consume the trial.
		elig, err := svc.TrialEligibility(ctx, sess, 300, 1)
		if err != nil {
			t.Fatal(err)
		}
		if !elig.Eligible {
			t.Fatal("rejected requests must leave the trial available")
		}
	})
}
