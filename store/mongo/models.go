package mongo

import (
	"time"

	"github.com/Jamesmini007/AX2-Caption/artifact"
	"github.com/Jamesmini007/AX2-Caption/credit"
	"github.com/Jamesmini007/AX2-Caption/id"
	"github.com/Jamesmini007/AX2-Caption/job"
	"github.com/Jamesmini007/AX2-Caption/storage"
	"github.com/Jamesmini007/AX2-Caption/trial"
	"github.com/Jamesmini007/AX2-Caption/types"
)

// BSON documents keep IDs as plain strings; the empty string is the nil ID.

func parseID(s string) id.ID {
	if s == "" {
		return id.Nil
	}
	v, err := id.Parse(s)
	if err != nil {
		return id.Nil
	}
	return v
}

func toIDStrings(ids []id.ID) []string {
	if ids == nil {
		return nil
	}
	out := make([]string, len(ids))
	for i, v := range ids {
		out[i] = v.String()
	}
	return out
}

func fromIDStrings(values []string) []id.ID {
	if values == nil {
		return nil
	}
	out := make([]id.ID, len(values))
	for i, s := range values {
		out[i] = parseID(s)
	}
	return out
}

type balanceModel struct {
	AccountID        string    `bson:"_id"`
	SignedIn         int64     `bson:"signed_in"`
	Anonymous        int64     `bson:"anonymous"`
	SignedInGranted  bool      `bson:"signed_in_granted"`
	AnonymousGranted bool      `bson:"anonymous_granted"`
	TotalCharged     int64     `bson:"total_charged"`
	CreatedAt        time.Time `bson:"created_at"`
	UpdatedAt        time.Time `bson:"updated_at"`
}

func toBalanceModel(b *credit.Balance) *balanceModel {
	return &balanceModel{
		AccountID:        b.AccountID,
		SignedIn:         b.SignedIn.Int64(),
		Anonymous:        b.Anonymous.Int64(),
		SignedInGranted:  b.SignedInGranted,
		AnonymousGranted: b.AnonymousGranted,
		TotalCharged:     b.TotalCharged.Int64(),
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
	}
}

func fromBalanceModel(m *balanceModel) *credit.Balance {
	return &credit.Balance{
		Entity:           types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		AccountID:        m.AccountID,
		SignedIn:         types.Credits(m.SignedIn),
		Anonymous:        types.Credits(m.Anonymous),
		SignedInGranted:  m.SignedInGranted,
		AnonymousGranted: m.AnonymousGranted,
		TotalCharged:     types.Credits(m.TotalCharged),
	}
}

type reservationModel struct {
	ID           string     `bson:"_id"`
	JobID        string     `bson:"job_id"`
	AccountID    string     `bson:"account_id"`
	SignedIn     bool       `bson:"signed_in"`
	Amount       int64      `bson:"amount"`
	Status       string     `bson:"status"`
	ReservedAt   time.Time  `bson:"reserved_at"`
	ConfirmedAt  *time.Time `bson:"confirmed_at,omitempty"`
	RefundedAt   *time.Time `bson:"refunded_at,omitempty"`
	RefundReason string     `bson:"refund_reason,omitempty"`
	RefundAmount int64      `bson:"refund_amount,omitempty"`
	CreatedAt    time.Time  `bson:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at"`
}

func toReservationModel(r *credit.Reservation) *reservationModel {
	return &reservationModel{
		ID:           r.ID.String(),
		JobID:        r.JobID.String(),
		AccountID:    r.AccountID,
		SignedIn:     r.SignedIn,
		Amount:       r.Amount.Int64(),
		Status:       string(r.Status),
		ReservedAt:   r.ReservedAt,
		ConfirmedAt:  r.ConfirmedAt,
		RefundedAt:   r.RefundedAt,
		RefundReason: r.RefundReason,
		RefundAmount: r.RefundAmount.Int64(),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func fromReservationModel(m *reservationModel) *credit.Reservation {
	return &credit.Reservation{
		Entity:       types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:           parseID(m.ID),
		JobID:        parseID(m.JobID),
		AccountID:    m.AccountID,
		SignedIn:     m.SignedIn,
		Amount:       types.Credits(m.Amount),
		Status:       credit.ReservationStatus(m.Status),
		ReservedAt:   m.ReservedAt,
		ConfirmedAt:  m.ConfirmedAt,
		RefundedAt:   m.RefundedAt,
		RefundReason: m.RefundReason,
		RefundAmount: types.Credits(m.RefundAmount),
	}
}

type entryModel struct {
	ID            string    `bson:"_id"`
	AccountID     string    `bson:"account_id"`
	Date          time.Time `bson:"date"`
	Type          string    `bson:"type"`
	Description   string    `bson:"description"`
	Amount        int64     `bson:"amount"`
	BalanceAfter  int64     `bson:"balance_after"`
	JobID         string    `bson:"job_id,omitempty"`
	ReservationID string    `bson:"reservation_id,omitempty"`
}

func toEntryModel(e *credit.Entry) *entryModel {
	return &entryModel{
		ID:            e.ID.String(),
		AccountID:     e.AccountID,
		Date:          e.Date,
		Type:          string(e.Type),
		Description:   e.Description,
		Amount:        e.Amount.Int64(),
		BalanceAfter:  e.BalanceAfter.Int64(),
		JobID:         e.JobID.String(),
		ReservationID: e.ReservationID.String(),
	}
}

func fromEntryModel(m *entryModel) *credit.Entry {
	return &credit.Entry{
		ID:            parseID(m.ID),
		AccountID:     m.AccountID,
		Date:          m.Date,
		Type:          credit.EntryType(m.Type),
		Description:   m.Description,
		Amount:        types.Credits(m.Amount),
		BalanceAfter:  types.Credits(m.BalanceAfter),
		JobID:         parseID(m.JobID),
		ReservationID: parseID(m.ReservationID),
	}
}

type trialModel struct {
	AccountID string    `bson:"_id"`
	Used      bool      `bson:"used"`
	UsedAt    time.Time `bson:"used_at"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func toTrialModel(f *trial.Flag) *trialModel {
	return &trialModel{
		AccountID: f.AccountID,
		Used:      f.Used,
		UsedAt:    f.UsedAt,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

func fromTrialModel(m *trialModel) *trial.Flag {
	return &trial.Flag{
		Entity:    types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		AccountID: m.AccountID,
		Used:      m.Used,
		UsedAt:    m.UsedAt,
	}
}

type extensionModel struct {
	AccountID string    `bson:"_id"`
	ID        string    `bson:"id"`
	Type      string    `bson:"type"`
	ExpiresAt time.Time `bson:"expires_at"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func toExtensionModel(e *storage.Extension) *extensionModel {
	return &extensionModel{
		AccountID: e.AccountID,
		ID:        e.ID.String(),
		Type:      string(e.Type),
		ExpiresAt: e.ExpiresAt,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

func fromExtensionModel(m *extensionModel) *storage.Extension {
	return &storage.Extension{
		Entity:    types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:        parseID(m.ID),
		AccountID: m.AccountID,
		Type:      storage.ExtensionType(m.Type),
		ExpiresAt: m.ExpiresAt,
	}
}

type jobModel struct {
	ID              string     `bson:"_id"`
	AccountID       string     `bson:"account_id"`
	SignedIn        bool       `bson:"signed_in"`
	Title           string     `bson:"title"`
	DurationSeconds float64    `bson:"duration_seconds"`
	SizeBytes       int64      `bson:"size_bytes"`
	SourceLanguage  string     `bson:"source_language,omitempty"`
	TargetLanguages []string   `bson:"target_languages"`
	FreeTrial       bool       `bson:"free_trial"`
	Status          string     `bson:"status"`
	Stage           string     `bson:"stage,omitempty"`
	ReservationID   string     `bson:"reservation_id"`
	Reserved        int64      `bson:"reserved"`
	DegradedFrom    []string   `bson:"degraded_from,omitempty"`
	FailureReason   string     `bson:"failure_reason,omitempty"`
	FailedLanguages []string   `bson:"failed_languages,omitempty"`
	ArtifactIDs     []string   `bson:"artifact_ids,omitempty"`
	StartedAt       *time.Time `bson:"started_at,omitempty"`
	CompletedAt     *time.Time `bson:"completed_at,omitempty"`
	CreatedAt       time.Time  `bson:"created_at"`
	UpdatedAt       time.Time  `bson:"updated_at"`
}

func toJobModel(j *job.Job) *jobModel {
	return &jobModel{
		ID:              j.ID.String(),
		AccountID:       j.AccountID,
		SignedIn:        j.SignedIn,
		Title:           j.Title,
		DurationSeconds: j.DurationSeconds,
		SizeBytes:       j.SizeBytes,
		SourceLanguage:  j.SourceLanguage,
		TargetLanguages: j.TargetLanguages,
		FreeTrial:       j.FreeTrial,
		Status:          string(j.Status),
		Stage:           string(j.Stage),
		ReservationID:   j.ReservationID.String(),
		Reserved:        j.Reserved.Int64(),
		DegradedFrom:    j.DegradedFrom,
		FailureReason:   j.FailureReason,
		FailedLanguages: j.FailedLanguages,
		ArtifactIDs:     toIDStrings(j.ArtifactIDs),
		StartedAt:       j.StartedAt,
		CompletedAt:     j.CompletedAt,
		CreatedAt:       j.CreatedAt,
		UpdatedAt:       j.UpdatedAt,
	}
}

func fromJobModel(m *jobModel) *job.Job {
	return &job.Job{
		Entity:          types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:              parseID(m.ID),
		AccountID:       m.AccountID,
		SignedIn:        m.SignedIn,
		Title:           m.Title,
		DurationSeconds: m.DurationSeconds,
		SizeBytes:       m.SizeBytes,
		SourceLanguage:  m.SourceLanguage,
		TargetLanguages: m.TargetLanguages,
		FreeTrial:       m.FreeTrial,
		Status:          job.Status(m.Status),
		Stage:           job.Stage(m.Stage),
		ReservationID:   parseID(m.ReservationID),
		Reserved:        types.Credits(m.Reserved),
		DegradedFrom:    m.DegradedFrom,
		FailureReason:   m.FailureReason,
		FailedLanguages: m.FailedLanguages,
		ArtifactIDs:     fromIDStrings(m.ArtifactIDs),
		StartedAt:       m.StartedAt,
		CompletedAt:     m.CompletedAt,
	}
}

type segmentModel struct {
	Start float64 `bson:"start"`
	End   float64 `bson:"end"`
	Text  string  `bson:"text"`
}

type artifactModel struct {
	ID              string         `bson:"_id"`
	JobID           string         `bson:"job_id"`
	AccountID       string         `bson:"account_id"`
	Title           string         `bson:"title"`
	DurationSeconds float64        `bson:"duration_seconds"`
	SizeBytes       int64          `bson:"size_bytes"`
	Language        string         `bson:"language"`
	Original        bool           `bson:"original,omitempty"`
	Segments        []segmentModel `bson:"segments,omitempty"`
	Downloadable    bool           `bson:"downloadable"`
	FreeTrial       bool           `bson:"free_trial"`
	BlobKey         string         `bson:"blob_key,omitempty"`
	ExpiresAt       *time.Time     `bson:"expires_at,omitempty"`
	CreatedAt       time.Time      `bson:"created_at"`
	UpdatedAt       time.Time      `bson:"updated_at"`
}

func toSegmentModels(segments []artifact.Segment) []segmentModel {
	if segments == nil {
		return nil
	}
	out := make([]segmentModel, len(segments))
	for i, s := range segments {
		out[i] = segmentModel{Start: s.Start, End: s.End, Text: s.Text}
	}
	return out
}

func fromSegmentModels(models []segmentModel) []artifact.Segment {
	if models == nil {
		return nil
	}
	out := make([]artifact.Segment, len(models))
	for i, m := range models {
		out[i] = artifact.Segment{Start: m.Start, End: m.End, Text: m.Text}
	}
	return out
}

func toArtifactModel(a *artifact.Artifact) *artifactModel {
	return &artifactModel{
		ID:              a.ID.String(),
		JobID:           a.JobID.String(),
		AccountID:       a.AccountID,
		Title:           a.Title,
		DurationSeconds: a.DurationSeconds,
		SizeBytes:       a.SizeBytes,
		Language:        a.Language,
		Original:        a.Original,
		Segments:        toSegmentModels(a.Segments),
		Downloadable:    a.Downloadable,
		FreeTrial:       a.FreeTrial,
		BlobKey:         a.BlobKey,
		ExpiresAt:       a.ExpiresAt,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func fromArtifactModel(m *artifactModel) *artifact.Artifact {
	return &artifact.Artifact{
		Entity:          types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:              parseID(m.ID),
		JobID:           parseID(m.JobID),
		AccountID:       m.AccountID,
		Title:           m.Title,
		DurationSeconds: m.DurationSeconds,
		SizeBytes:       m.SizeBytes,
		Language:        m.Language,
		Original:        m.Original,
		Segments:        fromSegmentModels(m.Segments),
		Downloadable:    m.Downloadable,
		FreeTrial:       m.FreeTrial,
		BlobKey:         m.BlobKey,
		ExpiresAt:       m.ExpiresAt,
	}
}
