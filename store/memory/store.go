// Package memory provides an in-memory Store for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	caption "github.com/Jamesmini007/AX2-Caption"
	"github.com/Jamesmini007/AX2-Caption/artifact"
	"github.com/Jamesmini007/AX2-Caption/credit"
	"github.com/Jamesmini007/AX2-Caption/id"
	"github.com/Jamesmini007/AX2-Caption/job"
	"github.com/Jamesmini007/AX2-Caption/storage"
	"github.com/Jamesmini007/AX2-Caption/trial"
)

type Store struct {
	mu sync.RWMutex

	// Balance storage, keyed by account
	balances map[string]*credit.Balance

	// Reservation storage
	reservations map[string]*credit.Reservation

	// History storage, append order; listed newest-first
	entries []credit.Entry

	// Trial flags, keyed by account
	trials map[string]*trial.Flag

	// Storage extensions, keyed by account (at most one per account)
	extensions map[string]*storage.Extension

	// Job storage
	jobs map[string]*job.Job

	// Artifact storage
	artifacts map[string]*artifact.Artifact
}

func New() *Store {
	return &Store{
		balances:     make(map[string]*credit.Balance),
		reservations: make(map[string]*credit.Reservation),
		entries:      make([]credit.Entry, 0),
		trials:       make(map[string]*trial.Flag),
		extensions:   make(map[string]*storage.Extension),
		jobs:         make(map[string]*job.Job),
		artifacts:    make(map[string]*artifact.Artifact),
	}
}

// Balance Store implementation
func (s *Store) GetBalance(_ context.Context, accountID string) (*credit.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if b, ok := s.balances[accountID]; ok {
		return b, nil
	}
	return nil, caption.ErrBalanceNotFound
}

func (s *Store) SaveBalance(_ context.Context, b *credit.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.balances[b.AccountID] = b
	return nil
}

// Reservation Store implementation
func (s *Store) CreateReservation(_ context.Context, r *credit.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reservations[r.ID.String()]; exists {
		return caption.ErrAlreadyExists
	}
	s.reservations[r.ID.String()] = r
	return nil
}

func (s *Store) GetReservation(_ context.Context, resID id.ReservationID, jobID id.JobID) (*credit.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r, ok := s.reservations[resID.String()]; ok && r.JobID.String() == jobID.String() {
		return r, nil
	}
	return nil, caption.ErrReservationNotFound
}

func (s *Store) UpdateReservation(_ context.Context, r *credit.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reservations[r.ID.String()]; !exists {
		return caption.ErrReservationNotFound
	}
	s.reservations[r.ID.String()] = r
	return nil
}

func (s *Store) ListReservations(_ context.Context, accountID string, status credit.ReservationStatus) ([]*credit.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*credit.Reservation, 0)
	for _, r := range s.reservations {
		if r.AccountID == accountID {
			if status == "" || r.Status == status {
				result = append(result, r)
			}
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ReservedAt.Before(result[j].ReservedAt)
	})
	return result, nil
}

// History Store implementation
func (s *Store) AppendEntry(_ context.Context, e *credit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, *e)
	return nil
}

func (s *Store) ListEntries(_ context.Context, accountID string, opts credit.ListOpts) ([]*credit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*credit.Entry, 0)
	// Walk backwards so the newest entry comes first.
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if e.AccountID != accountID {
			continue
		}
		if opts.Type != "" && e.Type != opts.Type {
			continue
		}
		result = append(result, &e)
	}

	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

// Trial Store implementation
func (s *Store) GetTrialFlag(_ context.Context, accountID string) (*trial.Flag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if f, ok := s.trials[accountID]; ok {
		return f, nil
	}
	return nil, caption.ErrTrialFlagNotFound
}

func (s *Store) SaveTrialFlag(_ context.Context, f *trial.Flag) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trials[f.AccountID] = f
	return nil
}

// Storage extension Store implementation
func (s *Store) GetExtension(_ context.Context, accountID string) (*storage.Extension, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, ok := s.extensions[accountID]; ok {
		return e, nil
	}
	return nil, caption.ErrExtensionNotFound
}

func (s *Store) SaveExtension(_ context.Context, e *storage.Extension) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.extensions[e.AccountID] = e
	return nil
}

func (s *Store) DeleteExtension(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.extensions, accountID)
	return nil
}

// Job Store implementation
func (s *Store) CreateJob(_ context.Context, j *job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[j.ID.String()]; exists {
		return caption.ErrAlreadyExists
	}
	s.jobs[j.ID.String()] = j
	return nil
}

func (s *Store) GetJob(_ context.Context, jobID id.JobID) (*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if j, ok := s.jobs[jobID.String()]; ok {
		return j, nil
	}
	return nil, caption.ErrJobNotFound
}

func (s *Store) UpdateJob(_ context.Context, j *job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[j.ID.String()]; !exists {
		return caption.ErrJobNotFound
	}
	s.jobs[j.ID.String()] = j
	return nil
}

func (s *Store) ListJobs(_ context.Context, accountID string, opts job.ListOpts) ([]*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*job.Job, 0)
	for _, j := range s.jobs {
		if j.AccountID == accountID {
			if opts.Status == "" || j.Status == opts.Status {
				result = append(result, j)
			}
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

// Artifact Store implementation
func (s *Store) CreateArtifact(_ context.Context, a *artifact.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.artifacts[a.ID.String()]; exists {
		return caption.ErrAlreadyExists
	}
	s.artifacts[a.ID.String()] = a
	return nil
}

func (s *Store) GetArtifact(_ context.Context, artID id.ArtifactID) (*artifact.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if a, ok := s.artifacts[artID.String()]; ok {
		return a, nil
	}
	return nil, caption.ErrArtifactNotFound
}

func (s *Store) DeleteArtifact(_ context.Context, artID id.ArtifactID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.artifacts, artID.String())
	return nil
}

func (s *Store) ListArtifacts(_ context.Context, accountID string, opts artifact.ListOpts) ([]*artifact.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*artifact.Artifact, 0)
	for _, a := range s.artifacts {
		if a.AccountID == accountID {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

func (s *Store) ListExpiredArtifacts(_ context.Context, before time.Time) ([]*artifact.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*artifact.Artifact, 0)
	for _, a := range s.artifacts {
		// Artifacts without an expiry are retained indefinitely.
		if a.ExpiresAt != nil && a.ExpiresAt.Before(before) {
			result = append(result, a)
		}
	}
	return result, nil
}

func (s *Store) SumArtifactBytes(_ context.Context, accountID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, a := range s.artifacts {
		if a.AccountID == accountID {
			total += a.SizeBytes
		}
	}
	return total, nil
}

// Store management
func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	return nil // Always available
}

func (s *Store) Close() error {
	return nil // Nothing to close
}
