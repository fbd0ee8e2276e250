package caption_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	caption "github.com/Jamesmini007/AX2-Caption"
	"github.com/Jamesmini007/AX2-Caption/artifact"
	"github.com/Jamesmini007/AX2-Caption/backend"
	"github.com/Jamesmini007/AX2-Caption/credit"
	"github.com/Jamesmini007/AX2-Caption/job"
	"github.com/Jamesmini007/AX2-Caption/storage"
	"github.com/Jamesmini007/AX2-Caption/store/sqlite"
)

func waitForResult(t *testing.T, h *caption.JobHandle) job.Result {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := h.Wait(ctx)
	if err != nil {
		t.Fatalf("job did not finish: %v", err)
	}
	return res
}

func TestSubmitTranslation(t *testing.T) {
	ctx := context.Background()

	t.Run("RejectsInvalidRequests", func(t *testing.T) {
		svc := newTestService(t)
		sess := caption.Session{AccountID: "acct_1", SignedIn: true}

		_, err := svc.SubmitTranslation(ctx, sess, job.Request{
			DurationSeconds: 0,
			TargetLanguages: []string{"es"},
		})
		if !errors.Is(err, caption.ErrInvalidDuration) {
			t.Fatalf("err = %v, want ErrInvalidDuration", err)
		}

		_, err = svc.SubmitTranslation(ctx, sess, job.Request{
			DurationSeconds: 60,
		})
		if !errors.Is(err, caption.ErrNoTargetLanguages) {
			t.Fatalf("err = %v, want ErrNoTargetLanguages", err)
		}
	})

	t.Run("RejectsOversizedUploads", func(t *testing.T) {
		svc := newTestService(t)
		sess := caption.Session{AccountID: "acct_1", SignedIn: true}

		_, err := svc.SubmitTranslation(ctx, sess, job.Request{
			DurationSeconds: 60,
			SizeBytes:       2 << 30, // over the 1 GB free tier
			TargetLanguages: []string{"es"},
		})
		if !errors.Is(err, caption.ErrStorageExceeded) {
			t.Fatalf("err = %v, want ErrStorageExceeded", err)
		}
	})

	t.Run("HappyPath", func(t *testing.T) {
		svc := newTestService(t)
		sess := caption.Session{AccountID: "acct_1", SignedIn: true}

		handle, err := svc.SubmitTranslation(ctx, sess, job.Request{
			Title:           "talk.mp4",
			DurationSeconds: 278,
			SizeBytes:       1 << 20,
			TargetLanguages: []string{"es", "fr"},
		})
		if err != nil {
			t.Fatal(err)
		}

		result := waitForResult(t, handle)
		if result.Status != job.StatusCompleted {
			t.Fatalf("status = %q, want completed", result.Status)
		}
		if len(result.Delivered) != 2 || len(result.Failed) != 0 {
			t.Fatalf("delivered %v, failed %v, want 2 and 0", result.Delivered, result.Failed)
		}
		// floor(278/6) + 2*10 = 66, paid out of the auto-applied welcome grant.
		if result.Charged != 66 {
			t.Fatalf("charged = %v, want 66", result.Charged)
		}
		if b := mustBalance(t, svc, sess); b != 34 {
			t.Fatalf("balance = %v, want 34", b)
		}

		j, err := svc.Job(ctx, result.JobID)
		if err != nil {
			t.Fatal(err)
		}
		if j.Status != job.StatusCompleted {
			t.Fatalf("stored status = %q, want completed", j.Status)
		}
		if j.StartedAt == nil || j.CompletedAt == nil {
			t.Fatal("job timestamps must be set")
		}
		// One rendered video per language pass: the original first, then
		// one per translation.
		if len(j.ArtifactIDs) != 3 {
			t.Fatalf("artifact ids = %d, want 3", len(j.ArtifactIDs))
		}
		if len(result.ArtifactIDs) != 3 {
			t.Fatalf("result artifacts = %d, want 3", len(result.ArtifactIDs))
		}

		art, err := svc.Artifact(ctx, result.ArtifactIDs[0])
		if err != nil {
			t.Fatal(err)
		}
		if !art.Original || art.Language != "en" {
			t.Fatalf("first artifact language = %q original = %v, want the en original", art.Language, art.Original)
		}
		if !art.Downloadable {
			t.Fatal("paid artifact must be downloadable")
		}
		if len(art.Segments) == 0 {
			t.Fatal("artifact must carry its caption segments")
		}
		translated := make(map[string]bool)
		for _, artID := range result.ArtifactIDs[1:] {
			tr, err := svc.Artifact(ctx, artID)
			if err != nil {
				t.Fatal(err)
			}
			if tr.Original {
				t.Fatalf("artifact %s must not be marked original", tr.Language)
			}
			translated[tr.Language] = true
		}
		if !translated["es"] || !translated["fr"] {
			t.Fatalf("translated artifacts = %v, want es and fr", translated)
		}
		// Retention runs from completion on the 7-day base period.
		if art.ExpiresAt == nil {
			t.Fatal("paid artifact must carry an expiry")
		}
		retention := time.Until(*art.ExpiresAt)
		if retention < storage.BasePeriod-time.Minute || retention > storage.BasePeriod+time.Minute {
			t.Fatalf("retention = %v, want about %v", retention, storage.BasePeriod)
		}

		// The media blob lands in the background; poll until the download opens.
		var lastErr error
		for i := 0; i < 100; i++ {
			rc, err := svc.DownloadArtifact(ctx, sess, art.ID)
			if err == nil {
				rc.Close()
				lastErr = nil
				break
			}
			lastErr = err
			time.Sleep(10 * time.Millisecond)
		}
		if lastErr != nil {
			t.Fatalf("download never became available: %v", lastErr)
		}
	})

	t.Run("ProgressStream", func(t *testing.T) {
		svc := newTestService(t)
		sess := caption.Session{AccountID: "acct_1", SignedIn: true}

		handle, err := svc.SubmitTranslation(ctx, sess, job.Request{
			Title:           "talk.mp4",
			DurationSeconds: 60,
			TargetLanguages: []string{"es"},
		})
		if err != nil {
			t.Fatal(err)
		}
		waitForResult(t, handle)

		var updates []job.Progress
		for p := range handle.Progress() {
			updates = append(updates, p)
		}
		if len(updates) < 4 {
			t.Fatalf("progress updates = %d, want at least 4", len(updates))
		}
		if updates[0].Stage != job.StageExtractingAudio {
			t.Errorf("first stage = %q, want extracting_audio", updates[0].Stage)
		}
		last := updates[len(updates)-1]
		if last.Percent != 100 || last.Message != "completed" {
			t.Errorf("last update = %+v, want 100%% completed", last)
		}
	})

	t.Run("PartialLanguageFailureRefunds", func(t *testing.T) {
		svc := newTestService(t, caption.WithBackend(&backend.Simulator{
			FailLanguages: []string{"de"},
		}))
		sess := caption.Session{AccountID: "acct_1", SignedIn: true}

		handle, err := svc.SubmitTranslation(ctx, sess, job.Request{
			Title:           "talk.mp4",
			DurationSeconds: 278,
			TargetLanguages: []string{"es", "de"},
		})
		if err != nil {
			t.Fatal(err)
		}

		result := waitForResult(t, handle)
		if result.Status != job.StatusCompleted {
			t.Fatalf("status = %q, want completed", result.Status)
		}
		if len(result.Delivered) != 1 || result.Delivered[0] != "es" {
			t.Fatalf("delivered = %v, want [es]", result.Delivered)
		}
		if len(result.Failed) != 1 || result.Failed[0] != "de" {
			t.Fatalf("failed = %v, want [de]", result.Failed)
		}
		if result.Charged != 66 || result.Refunded != 10 {
			t.Fatalf("charged %v refunded %v, want 66 and 10", result.Charged, result.Refunded)
		}
		// 100 - 66 + 10 per failed language.
		if b := mustBalance(t, svc, sess); b != 44 {
			t.Fatalf("balance = %v, want 44", b)
		}

		j, err := svc.Job(ctx, result.JobID)
		if err != nil {
			t.Fatal(err)
		}
		if len(j.FailedLanguages) != 1 || j.FailedLanguages[0] != "de" {
			t.Fatalf("stored failed languages = %v, want [de]", j.FailedLanguages)
		}
		// The original plus the one delivered language.
		if len(j.ArtifactIDs) != 2 {
			t.Fatalf("artifact ids = %d, want 2", len(j.ArtifactIDs))
		}
	})

	t.Run("PartialRefundKeepsReservationConfirmed", func(t *testing.T) {
		// A persistent store catches stale writes that an in-memory one
		// can mask.
		st, err := sqlite.New(filepath.Join(t.TempDir(), "caption.db"))
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = st.Close() })

		quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
		svc := caption.New(st,
			caption.WithLogger(quiet),
			caption.WithBackend(&backend.Simulator{FailLanguages: []string{"de"}}),
		)
		if err := svc.Start(ctx); err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = svc.Stop() })

		sess := caption.Session{AccountID: "acct_1", SignedIn: true}
		handle, err := svc.SubmitTranslation(ctx, sess, job.Request{
			Title:           "talk.mp4",
			DurationSeconds: 278,
			TargetLanguages: []string{"es", "de"},
		})
		if err != nil {
			t.Fatal(err)
		}

		result := waitForResult(t, handle)
		if result.Charged != 66 || result.Refunded != 10 {
			t.Fatalf("charged %v refunded %v, want 66 and 10", result.Charged, result.Refunded)
		}
		if b := mustBalance(t, svc, sess); b != 44 {
			t.Fatalf("balance = %v, want 44", b)
		}

		// The partial give-back must not regress the stored status.
		all, err := svc.Reservations(ctx, sess, "")
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 1 {
			t.Fatalf("reservations = %d, want 1", len(all))
		}
		res := all[0]
		if res.Status != credit.StatusConfirmed {
			t.Fatalf("status = %q, want confirmed", res.Status)
		}
		if res.RefundAmount != 10 {
			t.Fatalf("refund amount = %v, want 10", res.RefundAmount)
		}
		if res.RefundedAt == nil {
			t.Fatal("partial give-back must stamp RefundedAt")
		}

		// A later full refund must be rejected, not mint credits.
		_, err = svc.Refund(ctx, sess, res.ID, res.JobID, 0, "late refund")
		if !errors.Is(err, caption.ErrAlreadyConfirmed) {
			t.Fatalf("refund after settle err = %v, want ErrAlreadyConfirmed", err)
		}
		if b := mustBalance(t, svc, sess); b != 44 {
			t.Fatalf("balance after rejected refund = %v, want 44", b)
		}
	})

	t.Run("AllLanguagesFailedRefundsEverything", func(t *testing.T) {
		svc := newTestService(t, caption.WithBackend(&backend.Simulator{
			FailLanguages: []string{"es", "de"},
		}))
		sess := caption.Session{AccountID: "acct_1", SignedIn: true}

		handle, err := svc.SubmitTranslation(ctx, sess, job.Request{
			Title:           "talk.mp4",
			DurationSeconds: 278,
			TargetLanguages: []string{"es", "de"},
		})
		if err != nil {
			t.Fatal(err)
		}

		result := waitForResult(t, handle)
		if result.Status != job.StatusFailed {
			t.Fatalf("status = %q, want failed", result.Status)
		}
		if result.Refunded != 66 {
			t.Fatalf("refunded = %v, want 66", result.Refunded)
		}
		if b := mustBalance(t, svc, sess); b != 100 {
			t.Fatalf("balance = %v, want 100", b)
		}
	})

	t.Run("TranscriptionFailureRefunds", func(t *testing.T) {
		svc := newTestService(t, caption.WithBackend(&backend.Simulator{
			FailTranscribe: true,
		}))
		sess := caption.Session{AccountID: "acct_1", SignedIn: true}

		handle, err := svc.SubmitTranslation(ctx, sess, job.Request{
			Title:           "talk.mp4",
			DurationSeconds: 60,
			TargetLanguages: []string{"es"},
		})
		if err != nil {
			t.Fatal(err)
		}

		result := waitForResult(t, handle)
		if result.Status != job.StatusFailed {
			t.Fatalf("status = %q, want failed", result.Status)
		}
		if b := mustBalance(t, svc, sess); b != 100 {
			t.Fatalf("balance = %v, want 100", b)
		}

		j, err := svc.Job(ctx, result.JobID)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(j.FailureReason, "speech recognition failed") {
			t.Fatalf("failure reason = %q", j.FailureReason)
		}
	})

	t.Run("StageTimeoutFails", func(t *testing.T) {
		svc := newTestService(t,
			caption.WithBackend(&backend.Simulator{StageDelay: 500 * time.Millisecond}),
			caption.WithStageTimeout(20*time.Millisecond),
		)
		sess := caption.Session{AccountID: "acct_1", SignedIn: true}

		handle, err := svc.SubmitTranslation(ctx, sess, job.Request{
			Title:           "talk.mp4",
			DurationSeconds: 60,
			TargetLanguages: []string{"es"},
		})
		if err != nil {
			t.Fatal(err)
		}

		result := waitForResult(t, handle)
		if result.Status != job.StatusFailed {
			t.Fatalf("status = %q, want failed", result.Status)
		}

		j, err := svc.Job(ctx, result.JobID)
		if err != nil {
			t.Fatal(err)
		}
		if j.FailureReason != "stage timed out" {
			t.Fatalf("failure reason = %q, want stage timed out", j.FailureReason)
		}
		if b := mustBalance(t, svc, sess); b != 100 {
			t.Fatalf("balance = %v, want 100", b)
		}
	})

	t.Run("InsufficientWithoutDegrade", func(t *testing.T) {
		svc := newTestService(t)
		sess := caption.Session{AccountID: "acct_1", SignedIn: true}

		// 300s with 6 languages needs 110; the welcome grant covers 100.
		_, err := svc.SubmitTranslation(ctx, sess, job.Request{
			Title:           "talk.mp4",
			DurationSeconds: 300,
			TargetLanguages: []string{"es", "fr", "de", "it", "pt", "nl"},
		})
		if !caption.IsInsufficientCredits(err) {
			t.Fatalf("err = %v, want insufficient credits", err)
		}
	})

	t.Run("GracefulDegrade", func(t *testing.T) {
		svc := newTestService(t)
		sess := caption.Session{AccountID: "acct_1", SignedIn: true}

		handle, err := svc.SubmitTranslation(ctx, sess, job.Request{
			Title:           "talk.mp4",
			DurationSeconds: 300,
			TargetLanguages: []string{"es", "fr", "de", "it", "pt", "nl"},
			AllowDegrade:    true,
		})
		if err != nil {
			t.Fatal(err)
		}

		result := waitForResult(t, handle)
		if result.Status != job.StatusCompleted {
			t.Fatalf("status = %q, want completed", result.Status)
		}
		// 5 languages fit: 50 base + 5*10 = 100.
		if len(result.Delivered) != 5 {
			t.Fatalf("delivered = %v, want 5 languages", result.Delivered)
		}
		if result.Charged != 100 {
			t.Fatalf("charged = %v, want 100", result.Charged)
		}
		if b := mustBalance(t, svc, sess); b != 0 {
			t.Fatalf("balance = %v, want 0", b)
		}

		j, err := svc.Job(ctx, result.JobID)
		if err != nil {
			t.Fatal(err)
		}
		if len(j.DegradedFrom) != 6 {
			t.Fatalf("degraded from = %v, want the original 6", j.DegradedFrom)
		}
	})

	t.Run("FreeTrialJob", func(t *testing.T) {
		svc := newTestService(t)
		sess := caption.Session{AccountID: "acct_1", SignedIn: true}

		handle, err := svc.SubmitTranslation(ctx, sess, job.Request{
			Title:           "talk.mp4",
			DurationSeconds: 300,
			TargetLanguages: []string{"es"},
			FreeTrial:       true,
		})
		if err != nil {
			t.Fatal(err)
		}

		result := waitForResult(t, handle)
		if result.Status != job.StatusCompleted {
			t.Fatalf("status = %q, want completed", result.Status)
		}
		// Welcome 100 + trial 100, charged 50 + 10.
		if b := mustBalance(t, svc, sess); b != 140 {
			t.Fatalf("balance = %v, want 140", b)
		}

		art, err := svc.Artifact(ctx, result.ArtifactIDs[0])
		if err != nil {
			t.Fatal(err)
		}
		if art.Downloadable {
			t.Fatal("trial artifact must be view-only")
		}
		_, err = svc.DownloadArtifact(ctx, sess, art.ID)
		if !errors.Is(err, caption.ErrNotDownloadable) {
			t.Fatalf("download err = %v, want ErrNotDownloadable", err)
		}
	})

	t.Run("FreeTrialRejectsTooManyLanguages", func(t *testing.T) {
		svc := newTestService(t)
		sess := caption.Session{AccountID: "acct_1", SignedIn: true}

		_, err := svc.SubmitTranslation(ctx, sess, job.Request{
			Title:           "talk.mp4",
			DurationSeconds: 300,
			TargetLanguages: []string{"es", "fr"},
			FreeTrial:       true,
		})
		if !errors.Is(err, caption.ErrTrialTooManyLanguages) {
			t.Fatalf("err = %v, want ErrTrialTooManyLanguages", err)
		}
	})

	t.Run("BlobWriteFailureKeepsMetadata", func(t *testing.T) {
		svc := newTestService(t, caption.WithBlobStore(&backend.MemoryBlobStore{FailPut: true}))
		sess := caption.Session{AccountID: "acct_1", SignedIn: true}

		handle, err := svc.SubmitTranslation(ctx, sess, job.Request{
			Title:           "talk.mp4",
			DurationSeconds: 60,
			TargetLanguages: []string{"es"},
		})
		if err != nil {
			t.Fatal(err)
		}

		result := waitForResult(t, handle)
		if result.Status != job.StatusCompleted {
			t.Fatalf("status = %q, want completed", result.Status)
		}

		// Metadata survives; only the media download is unavailable.
		if _, err := svc.Artifact(ctx, result.ArtifactIDs[0]); err != nil {
			t.Fatal(err)
		}
		_, err = svc.DownloadArtifact(ctx, sess, result.ArtifactIDs[0])
		if !errors.Is(err, caption.ErrArtifactIncomplete) {
			t.Fatalf("download err = %v, want ErrArtifactIncomplete", err)
		}
	})
}

func TestCancelJob(t *testing.T) {
	ctx := context.Background()

	t.Run("CancelRunningJob", func(t *testing.T) {
		svc := newTestService(t, caption.WithBackend(&backend.Simulator{
			StageDelay: 200 * time.Millisecond,
		}))
		sess := caption.Session{AccountID: "acct_1", SignedIn: true}

		handle, err := svc.SubmitTranslation(ctx, sess, job.Request{
			Title:           "talk.mp4",
			DurationSeconds: 60,
			TargetLanguages: []string{"es"},
		})
		if err != nil {
			t.Fatal(err)
		}

		time.Sleep(20 * time.Millisecond)
		if err := svc.CancelJob(ctx, sess, handle.ID); err != nil {
			t.Fatal(err)
		}

		result := waitForResult(t, handle)
		if result.Status != job.StatusCancelled {
			t.Fatalf("status = %q, want cancelled", result.Status)
		}
		if b := mustBalance(t, svc, sess); b != 100 {
			t.Fatalf("balance = %v, want full refund of 100", b)
		}

		err = svc.CancelJob(ctx, sess, handle.ID)
		if !errors.Is(err, caption.ErrJobNotCancellable) {
			t.Fatalf("second cancel err = %v, want ErrJobNotCancellable", err)
		}
	})

	t.Run("CannotCancelFinishedJob", func(t *testing.T) {
		svc := newTestService(t)
		sess := caption.Session{AccountID: "acct_1", SignedIn: true}

		handle, err := svc.SubmitTranslation(ctx, sess, job.Request{
			Title:           "talk.mp4",
			DurationSeconds: 60,
			TargetLanguages: []string{"es"},
		})
		if err != nil {
			t.Fatal(err)
		}
		waitForResult(t, handle)

		err = svc.CancelJob(ctx, sess, handle.ID)
		if !errors.Is(err, caption.ErrJobNotCancellable) {
			t.Fatalf("err = %v, want ErrJobNotCancellable", err)
		}
	})

	t.Run("OtherAccountsCannotCancel", func(t *testing.T) {
		svc := newTestService(t, caption.WithBackend(&backend.Simulator{
			StageDelay: 200 * time.Millisecond,
		}))
		owner := caption.Session{AccountID: "acct_1", SignedIn: true}
		stranger := caption.Session{AccountID: "acct_2", SignedIn: true}

		handle, err := svc.SubmitTranslation(ctx, owner, job.Request{
			Title:           "talk.mp4",
			DurationSeconds: 60,
			TargetLanguages: []string{"es"},
		})
		if err != nil {
			t.Fatal(err)
		}

		err = svc.CancelJob(ctx, stranger, handle.ID)
		if !errors.Is(err, caption.ErrJobNotFound) {
			t.Fatalf("err = %v, want ErrJobNotFound", err)
		}

		if err := svc.CancelJob(ctx, owner, handle.ID); err != nil {
			t.Fatal(err)
		}
		waitForResult(t, handle)
	})
}

func TestJobListing(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	sess := caption.Session{AccountID: "acct_1", SignedIn: true}

	for i := 0; i < 2; i++ {
		handle, err := svc.SubmitTranslation(ctx, sess, job.Request{
			Title:           "talk.mp4",
			DurationSeconds: 60,
			TargetLanguages: []string{"es"},
		})
		if err != nil {
			t.Fatal(err)
		}
		waitForResult(t, handle)
	}

	jobs, err := svc.Jobs(ctx, sess, job.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 2 {
		t.Fatalf("jobs = %d, want 2", len(jobs))
	}

	completed, err := svc.Jobs(ctx, sess, job.ListOpts{Status: job.StatusCompleted})
	if err != nil {
		t.Fatal(err)
	}
	if len(completed) != 2 {
		t.Fatalf("completed jobs = %d, want 2", len(completed))
	}

	arts, err := svc.Artifacts(ctx, sess, artifact.ListOpts{Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(arts) != 1 {
		t.Fatalf("artifacts page = %d, want 1", len(arts))
	}
}
