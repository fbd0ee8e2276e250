package caption_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	caption "github.com/Jamesmini007/AX2-Caption"
	"github.com/Jamesmini007/AX2-Caption/credit"
	"github.com/Jamesmini007/AX2-Caption/id"
	"github.com/Jamesmini007/AX2-Caption/store/memory"
	"github.com/Jamesmini007/AX2-Caption/types"
)

// newTestService starts a service on a fresh in-memory store and tears it
// down with the test.
func newTestService(t *testing.T, opts ...caption.Option) *caption.Service {
	t.Helper()

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]caption.Option{caption.WithLogger(quiet)}, opts...)

	svc := caption.New(memory.New(), opts...)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := svc.Stop(); err != nil {
			t.Errorf("stop: %v", err)
		}
	})

	return svc
}

func mustBalance(t *testing.T, svc *caption.Service, sess caption.Session) types.Credits {
	t.Helper()
	b, err := svc.Balance(context.Background(), sess)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestWelcomeGrant(t *testing.T) {
	ctx := context.Background()

	t.Run("GrantsOncePerPool", func(t *testing.T) {
		svc := newTestService(t)
		sess := caption.Session{AccountID: "acct_1", SignedIn: true}

		if b := mustBalance(t, svc, sess); b != 0 {
			t.Fatalf("untouched balance = %v, want 0", b)
		}

		granted, err := svc.EnsureWelcomeGrant(ctx, sess)
		if err != nil {
			t.Fatal(err)
		}
		if !granted {
			t.Fatal("first call must grant")
		}
		if b := mustBalance(t, svc, sess); b != types.WelcomeGrant {
			t.Fatalf("balance = %v, want %v", b, types.WelcomeGrant)
		}

		granted, err = svc.EnsureWelcomeGrant(ctx, sess)
		if err != nil {
			t.Fatal(err)
		}
		if granted {
			t.Fatal("second call must not grant again")
		}
	})

	t.Run("PoolsAreIndependent", func(t *testing.T) {
		svc := newTestService(t)
		signedIn := caption.Session{AccountID: "acct_1", SignedIn: true}
		anon := caption.Session{AccountID: "acct_1", SignedIn: false}

		if _, err := svc.EnsureWelcomeGrant(ctx, signedIn); err != nil {
			t.Fatal(err)
		}

		if b := mustBalance(t, svc, anon); b != 0 {
			t.Fatalf("anonymous balance = %v, want 0", b)
		}

		granted, err := svc.EnsureWelcomeGrant(ctx, anon)
		if err != nil {
			t.Fatal(err)
		}
		if !granted {
			t.Fatal("each pool gets its own grant")
		}
	})

	t.Run("FlagIsSticky", func(t *testing.T) {
		svc := newTestService(t)
		sess := caption.Session{AccountID: "acct_1", SignedIn: true}

		if _, err := svc.EnsureWelcomeGrant(ctx, sess); err != nil {
			t.Fatal(err)
		}

		// Spend the whole bonus.
		res, err := svc.Reserve(ctx, sess, id.NewJobID(), types.WelcomeGrant)
		if err != nil {
			t.Fatal(err)
		}
		if err := svc.ConfirmDeduction(ctx, sess, res.ID, res.JobID, "drain"); err != nil {
			t.Fatal(err)
		}
		if b := mustBalance(t, svc, sess); b != 0 {
			t.Fatalf("balance = %v, want 0", b)
		}

		granted, err := svc.EnsureWelcomeGrant(ctx, sess)
		if err != nil {
			t.Fatal(err)
		}
		if granted {
			t.Fatal("a zero balance must not re-arm the grant")
		}
	})

	t.Run("ConcurrentCallsGrantOnce", func(t *testing.T) {
		svc := newTestService(t)
		sess := caption.Session{AccountID: "acct_1", SignedIn: true}

		var wg sync.WaitGroup
		grants := make(chan bool, 10)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				granted, err := svc.EnsureWelcomeGrant(ctx, sess)
				if err != nil {
					t.Error(err)
					return
				}
				grants <- granted
			}()
		}
		wg.Wait()
		close(grants)

		count := 0
		for g := range grants {
			if g {
				count++
			}
		}
		if count != 1 {
			t.Fatalf("grant count = %d, want 1", count)
		}
		if b := mustBalance(t, svc, sess); b != types.WelcomeGrant {
			t.Fatalf("balance = %v, want %v", b, types.WelcomeGrant)
		}
	})
}

func TestReserveConfirmRefund(t *testing.T) {
	ctx := context.Background()

	t.Run("ReserveDeductsImmediately", func(t *testing.T) {
		svc := newTestService(t)
		sess := caption.Session{AccountID: "acct_1", SignedIn: true}
		if _, err := svc.EnsureWelcomeGrant(ctx, sess); err != nil {
			t.Fatal(err)
		}

		res, err := svc.Reserve(ctx, sess, id.NewJobID(), 30)
		if err != nil {
			t.Fatal(err)
		}
		if res.Status != credit.StatusReserved {
			t.Fatalf("status = %q, want reserved", res.Status)
		}
		if b := mustBalance(t, svc, sess); b != 70 {
			t.Fatalf("balance = %v, want 70", b)
		}
	})

	t.Run("InsufficientCredits", func(t *testing.T) {
		svc := newTestService(t)
		sess := caption.Session{AccountID: "acct_1", SignedIn: true}
		if _, err := svc.EnsureWelcomeGrant(ctx, sess); err != nil {
			t.Fatal(err)
		}

		_, err := svc.Reserve(ctx, sess, id.NewJobID(), 101)
		var insufficient *caption.InsufficientCreditsError
		if !errors.As(err, &insufficient) {
			t.Fatalf("err = %v, want InsufficientCreditsError", err)
		}
		if insufficient.Required != 101 || insufficient.Balance != 100 {
			t.Fatalf("error = %+v, want required 101, balance 100", insufficient)
		}
		if insufficient.Shortfall() != 1 {
			t.Fatalf("Shortfall = %v, want 1", insufficient.Shortfall())
		}
		if !caption.IsInsufficientCredits(err) {
			t.Fatal("IsInsufficientCredits must match")
		}

		// A failed reservation leaves the balance untouched.
		if b := mustBalance(t, svc, sess); b != 100 {
			t.Fatalf("balance = %v, want 100", b)
		}
	})

	t.Run("ConfirmIsFinal", func(t *testing.T) {
		svc := newTestService(t)
		sess := caption.Session{AccountID: "acct_1", SignedIn: true}
		if _, err := svc.EnsureWelcomeGrant(ctx, sess); err != nil {
			t.Fatal(err)
		}

		res, err := svc.Reserve(ctx, sess, id.NewJobID(), 30)
		if err != nil {
			t.Fatal(err)
		}
		if err := svc.ConfirmDeduction(ctx, sess, res.ID, res.JobID, "translation"); err != nil {
			t.Fatal(err)
		}

		err = svc.ConfirmDeduction(ctx, sess, res.ID, res.JobID, "translation")
		if !errors.Is(err, caption.ErrAlreadyConfirmed) {
			t.Fatalf("double confirm err = %v, want ErrAlreadyConfirmed", err)
		}

		_, err = svc.Refund(ctx, sess, res.ID, res.JobID, 0, "late refund")
		if !errors.Is(err, caption.ErrAlreadyConfirmed) {
			t.Fatalf("refund after confirm err = %v, want ErrAlreadyConfirmed", err)
		}
		if b := mustBalance(t, svc, sess); b != 70 {
			t.Fatalf("balance = %v, want 70", b)
		}
	})

	t.Run("FullRefund", func(t *testing.T) {
		svc := newTestService(t)
		sess := caption.Session{AccountID: "acct_1", SignedIn: true}
		if _, err := svc.EnsureWelcomeGrant(ctx, sess); err != nil {
			t.Fatal(err)
		}

		res, err := svc.Reserve(ctx, sess, id.NewJobID(), 30)
		if err != nil {
			t.Fatal(err)
		}

		refunded, err := svc.Refund(ctx, sess, res.ID, res.JobID, 0, "job failed")
		if err != nil {
			t.Fatal(err)
		}
		if refunded != 30 {
			t.Fatalf("refunded = %v, want 30", refunded)
		}
		if b := mustBalance(t, svc, sess); b != 100 {
			t.Fatalf("balance = %v, want 100", b)
		}

		_, err = svc.Refund(ctx, sess, res.ID, res.JobID, 0, "again")
		if !errors.Is(err, caption.ErrAlreadyRefunded) {
			t.Fatalf("double refund err = %v, want ErrAlreadyRefunded", err)
		}
		err = svc.ConfirmDeduction(ctx, sess, res.ID, res.JobID, "late confirm")
		if !errors.Is(err, caption.ErrAlreadyRefunded) {
			t.Fatalf("confirm after refund err = %v, want ErrAlreadyRefunded", err)
		}
	})

	t.Run("RefundIsCappedAtHold", func(t *testing.T) {
		svc := newTestService(t)
		sess := caption.Session{AccountID: "acct_1", SignedIn: true}
		if _, err := svc.EnsureWelcomeGrant(ctx, sess); err != nil {
			t.Fatal(err)
		}

		res, err := svc.Reserve(ctx, sess, id.NewJobID(), 30)
		if err != nil {
			t.Fatal(err)
		}

		refunded, err := svc.Refund(ctx, sess, res.ID, res.JobID, 99, "over-ask")
		if err != nil {
			t.Fatal(err)
		}
		if refunded != 30 {
			t.Fatalf("refunded = %v, want 30 (capped)", refunded)
		}
		if b := mustBalance(t, svc, sess); b != 100 {
			t.Fatalf("balance = %v, want 100", b)
		}
	})

	t.Run("LookupRequiresMatchingJob", func(t *testing.T) {
		svc := newTestService(t)
		sess := caption.Session{AccountID: "acct_1", SignedIn: true}
		if _, err := svc.EnsureWelcomeGrant(ctx, sess); err != nil {
			t.Fatal(err)
		}

		res, err := svc.Reserve(ctx, sess, id.NewJobID(), 30)
		if err != nil {
			t.Fatal(err)
		}

		err = svc.ConfirmDeduction(ctx, sess, res.ID, id.NewJobID(), "wrong job")
		if !errors.Is(err, caption.ErrReservationNotFound) {
			t.Fatalf("err = %v, want ErrReservationNotFound", err)
		}
	})

	t.Run("ListByStatus", func(t *testing.T) {
		svc := newTestService(t)
		sess := caption.Session{AccountID: "acct_1", SignedIn: true}
		if _, err := svc.EnsureWelcomeGrant(ctx, sess); err != nil {
			t.Fatal(err)
		}

		first, err := svc.Reserve(ctx, sess, id.NewJobID(), 30)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := svc.Reserve(ctx, sess, id.NewJobID(), 20); err != nil {
			t.Fatal(err)
		}
		if err := svc.ConfirmDeduction(ctx, sess, first.ID, first.JobID, ""); err != nil {
			t.Fatal(err)
		}

		open, err := svc.Reservations(ctx, sess, credit.StatusReserved)
		if err != nil {
			t.Fatal(err)
		}
		if len(open) != 1 {
			t.Fatalf("open reservations = %d, want 1", len(open))
		}
		all, err := svc.Reservations(ctx, sess, "")
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 2 {
			t.Fatalf("all reservations = %d, want 2", len(all))
		}
	})
}

func TestTopUpAndHistory(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	sess := caption.Session{AccountID: "acct_1", SignedIn: true}

	if _, err := svc.EnsureWelcomeGrant(ctx, sess); err != nil {
		t.Fatal(err)
	}

	balance, err := svc.TopUp(ctx, sess, 50)
	if err != nil {
		t.Fatal(err)
	}
	if balance != 150 {
		t.Fatalf("balance after top-up = %v, want 150", balance)
	}

	if _, err := svc.TopUp(ctx, sess, 0); !errors.Is(err, caption.ErrInvalidAmount) {
		t.Fatalf("zero top-up err = %v, want ErrInvalidAmount", err)
	}

	res, err := svc.Reserve(ctx, sess, id.NewJobID(), 40)
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.ConfirmDeduction(ctx, sess, res.ID, res.JobID, "Video translation: demo"); err != nil {
		t.Fatal(err)
	}

	// Newest first: debit, top-up, welcome bonus.
	entries, err := svc.History(ctx, sess, credit.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	if entries[0].Type != credit.EntryDebit || entries[0].Amount != -40 {
		t.Errorf("entries[0] = %+v, want debit of -40", entries[0])
	}
	if entries[1].Description != "Credit purchase" {
		t.Errorf("entries[1].Description = %q, want Credit purchase", entries[1].Description)
	}
	if entries[2].Description != "Welcome bonus" {
		t.Errorf("entries[2].Description = %q, want Welcome bonus", entries[2].Description)
	}

	// Type filter and paging.
	charges, err := svc.History(ctx, sess, credit.ListOpts{Type: credit.EntryCharge})
	if err != nil {
		t.Fatal(err)
	}
	if len(charges) != 2 {
		t.Fatalf("charge entries = %d, want 2", len(charges))
	}
	page, err := svc.History(ctx, sess, credit.ListOpts{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 1 || page[0].Description != "Credit purchase" {
		t.Fatalf("page = %+v, want the top-up entry", page)
	}
}
