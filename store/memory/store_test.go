package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	caption "github.com/Jamesmini007/AX2-Caption"
	"github.com/Jamesmini007/AX2-Caption/artifact"
	"github.com/Jamesmini007/AX2-Caption/credit"
	"github.com/Jamesmini007/AX2-Caption/id"
	"github.com/Jamesmini007/AX2-Caption/job"
	captionstore "github.com/Jamesmini007/AX2-Caption/store"
	"github.com/Jamesmini007/AX2-Caption/types"
)

var _ captionstore.Store = (*Store)(nil)

func TestBalances(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.GetBalance(ctx, "acct_1")
	if !errors.Is(err, caption.ErrBalanceNotFound) {
		t.Fatalf("missing balance err = %v, want ErrBalanceNotFound", err)
	}

	b := &credit.Balance{Entity: types.NewEntity(), AccountID: "acct_1", SignedIn: 100}
	if err := s.SaveBalance(ctx, b); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetBalance(ctx, "acct_1")
	if err != nil {
		t.Fatal(err)
	}
	if got.SignedIn != 100 {
		t.Fatalf("signed-in pool = %v, want 100", got.SignedIn)
	}
}

func TestReservations(t *testing.T) {
	ctx := context.Background()
	s := New()

	res := &credit.Reservation{
		Entity:     types.NewEntity(),
		ID:         id.NewReservationID(),
		JobID:      id.NewJobID(),
		AccountID:  "acct_1",
		Amount:     30,
		Status:     credit.StatusReserved,
		ReservedAt: time.Now().UTC(),
	}
	if err := s.CreateReservation(ctx, res); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateReservation(ctx, res); !errors.Is(err, caption.ErrAlreadyExists) {
		t.Fatalf("duplicate create err = %v, want ErrAlreadyExists", err)
	}

	// Lookups must match both the reservation and its job.
	if _, err := s.GetReservation(ctx, res.ID, id.NewJobID()); !errors.Is(err, caption.ErrReservationNotFound) {
		t.Fatalf("wrong job err = %v, want ErrReservationNotFound", err)
	}
	got, err := s.GetReservation(ctx, res.ID, res.JobID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Amount != 30 {
		t.Fatalf("amount = %v, want 30", got.Amount)
	}

	res.Status = credit.StatusConfirmed
	if err := s.UpdateReservation(ctx, res); err != nil {
		t.Fatal(err)
	}

	open, err := s.ListReservations(ctx, "acct_1", credit.StatusReserved)
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 0 {
		t.Fatalf("open reservations = %d, want 0", len(open))
	}
	all, err := s.ListReservations(ctx, "acct_1", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("all reservations = %d, want 1", len(all))
	}
}

func TestEntriesNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := New()

	for i, desc := range []string{"first", "second", "third"} {
		e := &credit.Entry{
			ID:          id.NewEntryID(),
			AccountID:   "acct_1",
			Date:        time.Now().UTC().Add(time.Duration(i) * time.Second),
			Type:        credit.EntryCharge,
			Description: desc,
			Amount:      10,
		}
		if err := s.AppendEntry(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := s.ListEntries(ctx, "acct_1", credit.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	if entries[0].Description != "third" || entries[2].Description != "first" {
		t.Fatalf("order = [%s %s %s], want newest first",
			entries[0].Description, entries[1].Description, entries[2].Description)
	}

	page, err := s.ListEntries(ctx, "acct_1", credit.ListOpts{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 1 || page[0].Description != "second" {
		t.Fatalf("page = %+v, want the middle entry", page)
	}
}

func TestJobs(t *testing.T) {
	ctx := context.Background()
	s := New()

	j := &job.Job{
		Entity:          types.NewEntity(),
		ID:              id.NewJobID(),
		AccountID:       "acct_1",
		Title:           "talk.mp4",
		DurationSeconds: 60,
		TargetLanguages: []string{"es"},
		Status:          job.StatusPending,
	}
	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatal(err)
	}

	j.Status = job.StatusProcessing
	if err := s.UpdateJob(ctx, j); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != job.StatusProcessing {
		t.Fatalf("status = %q, want processing", got.Status)
	}

	pending, err := s.ListJobs(ctx, "acct_1", job.ListOpts{Status: job.StatusPending})
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending jobs = %d, want 0", len(pending))
	}

	if _, err := s.GetJob(ctx, id.NewJobID()); !errors.Is(err, caption.ErrJobNotFound) {
		t.Fatalf("missing job err = %v, want ErrJobNotFound", err)
	}
}

func TestArtifactExpiry(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now().UTC()
	pastExpiry := now.Add(-time.Hour)
	futureExpiry := now.Add(time.Hour)

	expired := &artifact.Artifact{
		Entity:    types.NewEntity(),
		ID:        id.NewArtifactID(),
		AccountID: "acct_1",
		SizeBytes: 100,
		ExpiresAt: &pastExpiry,
	}
	fresh := &artifact.Artifact{
		Entity:    types.NewEntity(),
		ID:        id.NewArtifactID(),
		AccountID: "acct_1",
		SizeBytes: 200,
		ExpiresAt: &futureExpiry,
	}
	forever := &artifact.Artifact{
		Entity:    types.NewEntity(),
		ID:        id.NewArtifactID(),
		AccountID: "acct_1",
		SizeBytes: 400,
	}
	for _, a := range []*artifact.Artifact{expired, fresh, forever} {
		if err := s.CreateArtifact(ctx, a); err != nil {
			t.Fatal(err)
		}
	}

	total, err := s.SumArtifactBytes(ctx, "acct_1")
	if err != nil {
		t.Fatal(err)
	}
	if total != 700 {
		t.Fatalf("total bytes = %d, want 700", total)
	}

	old, err := s.ListExpiredArtifacts(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(old) != 1 || old[0].ID.String() != expired.ID.String() {
		t.Fatalf("expired = %d, want just the old artifact", len(old))
	}

	if err := s.DeleteArtifact(ctx, expired.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetArtifact(ctx, expired.ID); !errors.Is(err, caption.ErrArtifactNotFound) {
		t.Fatalf("deleted artifact err = %v, want ErrArtifactNotFound", err)
	}
}
