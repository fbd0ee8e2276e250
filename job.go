package caption

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	"github.com/Jamesmini007/AX2-Caption/artifact"
	"github.com/Jamesmini007/AX2-Caption/backend"
	"github.com/Jamesmini007/AX2-Caption/credit"
	"github.com/Jamesmini007/AX2-Caption/id"
	"github.com/Jamesmini007/AX2-Caption/job"
	"github.com/Jamesmini007/AX2-Caption/types"
)

// ──────────────────────────────────────────────────
// Job Lifecycle
// ──────────────────────────────────────────────────

// runner tracks one live job goroutine so CancelJob can signal it.
type runner struct {
	jobID  id.JobID
	cancel context.CancelFunc
}

// JobHandle is returned by SubmitTranslation. Progress updates stream on the
// progress channel (dropped, never blocking, when the consumer lags); the
// final outcome arrives via Wait.
type JobHandle struct {
	ID id.JobID

	progress chan job.Progress
	done     chan job.Result
}

// Progress returns the progress stream. The channel closes when the job
// reaches a terminal state.
func (h *JobHandle) Progress() <-chan job.Progress { return h.progress }

// Wait blocks until the job finishes or ctx expires.
func (h *JobHandle) Wait(ctx context.Context) (job.Result, error) {
	select {
	case <-ctx.Done():
		return job.Result{}, ctx.Err()
	case res := <-h.done:
		return res, nil
	}
}

// SubmitTranslation validates a request, settles its credits up front, and
// starts the processing pipeline. The returned handle reports progress and
// the final result.
//
// The synchronous part runs under the account lock: welcome grant, optional
// free trial grant, graceful degrade, and the credit reservation all commit
// atomically with respect to other requests on the same account. Work then
// continues on a detached goroutine that outlives ctx.
func (s *Service) SubmitTranslation(ctx context.Context, sess Session, req job.Request) (*JobHandle, error) {
	select {
	case <-s.stopChan:
		return nil, ErrClosed
	default:
	}

	if req.DurationSeconds <= 0 {
		return nil, ErrInvalidDuration
	}
	if len(req.TargetLanguages) == 0 {
		return nil, ErrNoTargetLanguages
	}

	quota, err := s.StorageQuota(ctx, sess)
	if err != nil {
		return nil, err
	}
	if req.SizeBytes > quota.Remaining() {
		return nil, ErrStorageExceeded
	}

	mu := s.accountLock(sess.AccountID)
	mu.Lock()
	defer mu.Unlock()

	if _, err := s.ensureWelcomeGrantLocked(ctx, sess); err != nil {
		return nil, err
	}

	if req.FreeTrial {
		if err := s.grantFreeTrialLocked(ctx, sess, req.DurationSeconds, len(req.TargetLanguages)); err != nil {
			return nil, err
		}
	}

	b, err := s.store.GetBalance(ctx, sess.AccountID)
	if err != nil {
		return nil, err
	}
	balance := b.Active(sess.SignedIn)

	targets := req.TargetLanguages
	var degradedFrom []string
	required := credit.Required(req.DurationSeconds, len(targets))

	if balance < required {
		if !req.AllowDegrade {
			return nil, &InsufficientCreditsError{Required: required, Balance: balance}
		}
		affordable := credit.AffordableLanguages(balance, req.DurationSeconds)
		if affordable < 1 {
			return nil, &InsufficientCreditsError{Required: required, Balance: balance}
		}
		if affordable < len(targets) {
			degradedFrom = targets
			targets = targets[:affordable]
			required = credit.Required(req.DurationSeconds, len(targets))
		}
	}

	jobID := id.NewJobID()
	res, err := s.reserveLocked(ctx, sess, jobID, required)
	if err != nil {
		return nil, err
	}

	j := &job.Job{
		Entity:          types.NewEntity(),
		ID:              jobID,
		AccountID:       sess.AccountID,
		SignedIn:        sess.SignedIn,
		Title:           req.Title,
		DurationSeconds: req.DurationSeconds,
		SizeBytes:       req.SizeBytes,
		SourceLanguage:  req.SourceLanguage,
		TargetLanguages: targets,
		FreeTrial:       req.FreeTrial,
		Status:          job.StatusPending,
		ReservationID:   res.ID,
		Reserved:        required,
		DegradedFrom:    degradedFrom,
	}
	if err := s.store.CreateJob(ctx, j); err != nil {
		return nil, err
	}

	handle := &JobHandle{
		ID:       jobID,
		progress: make(chan job.Progress, 16),
		done:     make(chan job.Result, 1),
	}

	jobCtx, cancel := context.WithCancel(context.Background())
	r := &runner{jobID: jobID, cancel: cancel}
	s.runMu.Lock()
	s.runners[jobID.String()] = r
	s.runMu.Unlock()

	s.wg.Add(1)
	go s.processJob(jobCtx, sess, j, res, handle)

	s.logger.Info("job submitted",
		"job", jobID.String(),
		"account", sess.AccountID,
		"languages", len(targets),
		"reserved", required,
	)

	return handle, nil
}

// CancelJob requests cancellation of a running job. The runner observes the
// signal at the next stage boundary, refunds the full reservation, and moves
// the job to the cancelled state. Finished jobs return ErrJobNotCancellable.
func (s *Service) CancelJob(ctx context.Context, sess Session, jobID id.JobID) error {
	j, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if j.AccountID != sess.AccountID {
		return ErrJobNotFound
	}
	if j.Status.Terminal() {
		return ErrJobNotCancellable
	}

	s.runMu.Lock()
	r, ok := s.runners[jobID.String()]
	s.runMu.Unlock()
	if ok {
		r.cancel()
		return nil
	}

	// No live runner (e.g. the process restarted with the job still
	// pending): settle it directly.
	if err := s.transition(ctx, j, job.StatusCancelled); err != nil {
		return err
	}
	_, err = s.Refund(ctx, sess, j.ReservationID, j.ID, 0, "cancelled")
	return err
}

// processJob drives a job through the pipeline. Each stage is bounded by the
// configured stage timeout; cancellation and timeouts are observed at stage
// boundaries. Credits are confirmed only after the artifact metadata is
// durably stored, so every failure path still holds a refundable reservation.
func (s *Service) processJob(ctx context.Context, sess Session, j *job.Job, res *credit.Reservation, handle *JobHandle) {
	defer s.wg.Done()
	defer func() {
		s.runMu.Lock()
		delete(s.runners, j.ID.String())
		s.runMu.Unlock()
		close(handle.progress)
	}()

	// Finalization must run even when ctx is already cancelled.
	bg := context.WithoutCancel(ctx)

	now := time.Now().UTC()
	j.StartedAt = &now
	if err := s.transition(bg, j, job.StatusProcessing); err != nil {
		s.logger.Error("job start failed", "job", j.ID.String(), "error", err)
		handle.done <- s.finishFailed(bg, sess, j, "internal error: "+err.Error())
		return
	}

	media := backend.Media{
		Title:           j.Title,
		DurationSeconds: j.DurationSeconds,
		SizeBytes:       j.SizeBytes,
	}

	// Stage 1: audio extraction
	s.setStage(bg, j, handle, job.StageExtractingAudio, 10, "")
	if err := s.runStage(ctx, func(stageCtx context.Context) error {
		return s.backend.ExtractAudio(stageCtx, media)
	}); err != nil {
		handle.done <- s.settleStageError(bg, sess, j, err, "audio extraction failed")
		return
	}

	// Stage 2: speech-to-text
	s.setStage(bg, j, handle, job.StageTranscribing, 30, "")
	var transcript *backend.Transcript
	if err := s.runStage(ctx, func(stageCtx context.Context) error {
		var err error
		transcript, err = s.backend.Transcribe(stageCtx, media, j.SourceLanguage)
		return err
	}); err != nil {
		handle.done <- s.settleStageError(bg, sess, j, err, "speech recognition failed")
		return
	}
	if j.SourceLanguage == "" {
		j.SourceLanguage = transcript.Language
	}

	// Stage 3: translation fan-out. A failed language does not abort the
	// others; failures are settled per-language afterwards.
	s.setStage(bg, j, handle, job.StageTranslating, 50, "")
	tracks := make([]*artifact.Track, len(j.TargetLanguages))
	errs := make([]error, len(j.TargetLanguages))

	var g errgroup.Group
	g.SetLimit(s.translateWorkers)
	for i, lang := range j.TargetLanguages {
		g.Go(func() error {
			errs[i] = s.runStage(ctx, func(stageCtx context.Context) error {
				var err error
				tracks[i], err = s.backend.Translate(stageCtx, transcript, lang)
				return err
			})
			if errs[i] == nil {
				s.emitProgress(handle, j, 50, lang, "translated")
			}
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // per-language errors are collected in errs

	if err := ctx.Err(); err != nil {
		handle.done <- s.settleStageError(bg, sess, j, err, "")
		return
	}

	var delivered []artifact.Track
	var failed []string
	for i, lang := range j.TargetLanguages {
		if errs[i] != nil {
			failed = append(failed, lang)
			s.logger.Warn("translation failed",
				"job", j.ID.String(),
				"language", lang,
				"error", errs[i],
			)
			continue
		}
		delivered = append(delivered, *tracks[i])
	}
	if len(delivered) == 0 {
		handle.done <- s.finishFailed(bg, sess, j, "translation failed for all languages")
		return
	}

	// Stage 4: render one output per pass, the original-language pass first
	// and then one per delivered translation. Artifact metadata is persisted
	// before the deduction is confirmed, so a storage failure here still
	// resolves as a refund, never a stranded charge.
	s.setStage(bg, j, handle, job.StageRendering, 80, "")
	quota, err := s.StorageQuota(bg, sess)
	if err != nil {
		handle.done <- s.finishFailed(bg, sess, j, "storage policy lookup failed")
		return
	}

	passes := make([]artifact.Track, 0, len(delivered)+1)
	passes = append(passes, artifact.Track{Language: j.SourceLanguage, Segments: transcript.Segments})
	passes = append(passes, delivered...)

	arts := make([]*artifact.Artifact, 0, len(passes))
	for i, pass := range passes {
		var blobKey string
		if err := s.runStage(ctx, func(stageCtx context.Context) error {
			var err error
			blobKey, err = s.backend.Render(stageCtx, media, []artifact.Track{pass})
			return err
		}); err != nil {
			s.deleteArtifacts(bg, arts)
			handle.done <- s.settleStageError(bg, sess, j, err, "render failed")
			return
		}

		expires := time.Now().UTC().Add(quota.Period)
		art := &artifact.Artifact{
			Entity:          types.NewEntity(),
			ID:              id.NewArtifactID(),
			JobID:           j.ID,
			AccountID:       sess.AccountID,
			Title:           j.Title,
			DurationSeconds: j.DurationSeconds,
			SizeBytes:       j.SizeBytes,
			Language:        pass.Language,
			Original:        i == 0,
			Segments:        pass.Segments,
			Downloadable:    !j.FreeTrial,
			FreeTrial:       j.FreeTrial,
			BlobKey:         blobKey,
			ExpiresAt:       &expires,
		}
		// One retry absorbs transient store errors.
		if _, err := backoff.Retry(bg, func() (struct{}, error) {
			return struct{}{}, s.store.CreateArtifact(bg, art)
		}, backoff.WithMaxTries(2)); err != nil {
			s.logger.Error("artifact persistence failed", "job", j.ID.String(), "error", err)
			s.deleteArtifacts(bg, arts)
			handle.done <- s.finishFailed(bg, sess, j, "artifact persistence failed")
			return
		}
		arts = append(arts, art)
	}

	if err := s.ConfirmDeduction(bg, sess, j.ReservationID, j.ID, "Video translation: "+j.Title); err != nil {
		s.logger.Error("deduction confirm failed", "job", j.ID.String(), "error", err)
		s.deleteArtifacts(bg, arts)
		handle.done <- s.finishFailed(bg, sess, j, "charge confirmation failed")
		return
	}

	var refunded types.Credits
	if len(failed) > 0 {
		amount := credit.RefundPerFailedLanguage.Multiply(int64(len(failed)))
		reason := fmt.Sprintf("%d language(s) failed", len(failed))
		refunded, err = s.refundAfterConfirm(bg, sess, j.ReservationID, j.ID, amount, reason)
		if err != nil {
			s.logger.Error("partial refund failed", "job", j.ID.String(), "error", err)
		}
	}

	artIDs := make([]id.ArtifactID, len(arts))
	for i, a := range arts {
		artIDs[i] = a.ID
	}

	done := time.Now().UTC()
	j.CompletedAt = &done
	j.ArtifactIDs = artIDs
	j.FailedLanguages = failed
	if err := s.transition(bg, j, job.StatusCompleted); err != nil {
		s.logger.Error("completion transition failed", "job", j.ID.String(), "error", err)
	}

	s.emitProgress(handle, j, 100, "", "completed")

	// Media blobs are written in the background; metadata is already visible
	// and the failure path only loses the downloadable media.
	for _, a := range arts {
		s.plugins.EmitArtifactCreated(bg, a)
		s.wg.Add(1)
		go s.writeBlob(bg, a, media.Reader)
	}

	deliveredLangs := make([]string, len(delivered))
	for i, tr := range delivered {
		deliveredLangs[i] = tr.Language
	}
	handle.done <- job.Result{
		JobID:       j.ID,
		Status:      job.StatusCompleted,
		ArtifactIDs: artIDs,
		Delivered:   deliveredLangs,
		Failed:      failed,
		Charged:     res.Amount,
		Refunded:    refunded,
	}
}

// deleteArtifacts removes artifacts created for a job whose charge never
// reached confirmation.
func (s *Service) deleteArtifacts(ctx context.Context, arts []*artifact.Artifact) {
	for _, a := range arts {
		if err := s.store.DeleteArtifact(ctx, a.ID); err != nil {
			s.logger.Warn("failed to delete partial artifact",
				"artifact", a.ID.String(),
				"error", err,
			)
		}
	}
}

// runStage executes one pipeline stage under the configured timeout.
func (s *Service) runStage(ctx context.Context, fn func(context.Context) error) error {
	stageCtx, cancel := context.WithTimeout(ctx, s.stageTimeout)
	defer cancel()
	return fn(stageCtx)
}

// settleStageError maps a stage failure to the right terminal state:
// cancellation signals become CANCELLED, timeouts and backend errors become
// FAILED. Either way the full reservation is refunded.
func (s *Service) settleStageError(ctx context.Context, sess Session, j *job.Job, err error, prefix string) job.Result {
	if errors.Is(err, context.Canceled) {
		return s.finishCancelled(ctx, sess, j)
	}

	reason := prefix
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		reason = "stage timed out"
	case prefix == "":
		reason = err.Error()
	default:
		reason = fmt.Sprintf("%s: %v", prefix, err)
	}
	return s.finishFailed(ctx, sess, j, reason)
}

// finishFailed moves the job to FAILED and refunds the full reservation.
// The refund is unconditional: no failure path may keep the user's credits.
func (s *Service) finishFailed(ctx context.Context, sess Session, j *job.Job, reason string) job.Result {
	j.FailureReason = reason
	if err := s.transition(ctx, j, job.StatusFailed); err != nil {
		s.logger.Error("failure transition failed", "job", j.ID.String(), "error", err)
	}

	refunded, err := s.Refund(ctx, sess, j.ReservationID, j.ID, 0, reason)
	if err != nil && !errors.Is(err, ErrAlreadyRefunded) {
		s.logger.Error("refund on failure failed", "job", j.ID.String(), "error", err)
	}

	return job.Result{
		JobID:    j.ID,
		Status:   job.StatusFailed,
		Refunded: refunded,
	}
}

// finishCancelled moves the job to CANCELLED and refunds the full reservation.
func (s *Service) finishCancelled(ctx context.Context, sess Session, j *job.Job) job.Result {
	if err := s.transition(ctx, j, job.StatusCancelled); err != nil {
		s.logger.Error("cancel transition failed", "job", j.ID.String(), "error", err)
	}

	refunded, err := s.Refund(ctx, sess, j.ReservationID, j.ID, 0, "cancelled")
	if err != nil && !errors.Is(err, ErrAlreadyRefunded) {
		s.logger.Error("refund on cancel failed", "job", j.ID.String(), "error", err)
	}

	return job.Result{
		JobID:    j.ID,
		Status:   job.StatusCancelled,
		Refunded: refunded,
	}
}

// transition applies one job state machine step, persists it, and notifies
// plugins. Illegal steps return ErrInvalidTransition.
func (s *Service) transition(ctx context.Context, j *job.Job, to job.Status) error {
	from := j.Status
	if !from.CanTransition(to) {
		return ErrInvalidTransition
	}

	j.Status = to
	j.Touch()
	if err := s.store.UpdateJob(ctx, j); err != nil {
		return err
	}

	s.plugins.EmitJobStateChanged(ctx, j, string(from), string(to))
	s.logger.Info("job state changed",
		"job", j.ID.String(),
		"from", from,
		"to", to,
	)

	return nil
}

func (s *Service) setStage(ctx context.Context, j *job.Job, handle *JobHandle, stage job.Stage, percent int, message string) {
	j.Stage = stage
	j.Touch()
	if err := s.store.UpdateJob(ctx, j); err != nil {
		s.logger.Warn("stage update failed", "job", j.ID.String(), "error", err)
	}
	s.emitProgress(handle, j, percent, "", message)
}

// emitProgress sends a snapshot without ever blocking the pipeline.
func (s *Service) emitProgress(handle *JobHandle, j *job.Job, percent int, language, message string) {
	p := job.Progress{
		JobID:    j.ID,
		Status:   j.Status,
		Stage:    j.Stage,
		Percent:  percent,
		Language: language,
		Message:  message,
	}
	select {
	case handle.progress <- p:
	default:
	}
}

// writeBlob stores the rendered media in the background. Failure leaves the
// artifact metadata in place and is surfaced through logs and plugins only.
func (s *Service) writeBlob(ctx context.Context, art *artifact.Artifact, r io.Reader) {
	defer s.wg.Done()

	if err := s.blobs.Put(ctx, art.BlobKey, r, art.SizeBytes); err != nil {
		s.logger.Error("background blob write failed",
			"artifact", art.ID.String(),
			"key", art.BlobKey,
			"error", err,
		)
		s.plugins.EmitBlobWriteFailed(ctx, art.BlobKey, err)
	}
}

// ──────────────────────────────────────────────────
// Job and Artifact access
// ──────────────────────────────────────────────────

// Job retrieves a job by ID.
func (s *Service) Job(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	return s.store.GetJob(ctx, jobID)
}

// Jobs lists the account's jobs, newest first.
func (s *Service) Jobs(ctx context.Context, sess Session, opts job.ListOpts) ([]*job.Job, error) {
	return s.store.ListJobs(ctx, sess.AccountID, opts)
}

// Artifact retrieves an artifact by ID.
func (s *Service) Artifact(ctx context.Context, artID id.ArtifactID) (*artifact.Artifact, error) {
	return s.store.GetArtifact(ctx, artID)
}

// Artifacts lists the account's artifacts, newest first. Lapsed artifacts
// are evicted first so the listing never shows expired output.
func (s *Service) Artifacts(ctx context.Context, sess Session, opts artifact.ListOpts) ([]*artifact.Artifact, error) {
	if _, err := s.SweepExpiredArtifacts(ctx); err != nil {
		return nil, err
	}
	return s.store.ListArtifacts(ctx, sess.AccountID, opts)
}

// DownloadArtifact opens the rendered media for a downloadable, unexpired
// artifact. Free-trial outputs are view-only and return ErrNotDownloadable.
// A blob whose background write has not landed yet returns
// ErrArtifactIncomplete.
func (s *Service) DownloadArtifact(ctx context.Context, sess Session, artID id.ArtifactID) (io.ReadCloser, error) {
	art, err := s.store.GetArtifact(ctx, artID)
	if err != nil {
		return nil, err
	}
	if art.AccountID != sess.AccountID {
		return nil, ErrArtifactNotFound
	}
	if art.Expired(time.Now().UTC()) {
		return nil, ErrArtifactExpired
	}
	if !art.Downloadable {
		return nil, ErrNotDownloadable
	}

	rc, err := s.blobs.Get(ctx, art.BlobKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactIncomplete, err)
	}
	return rc, nil
}
