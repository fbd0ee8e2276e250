package caption

import (
	"context"
	"errors"
	"time"

	"github.com/Jamesmini007/AX2-Caption/credit"
	"github.com/Jamesmini007/AX2-Caption/id"
	"github.com/Jamesmini007/AX2-Caption/types"
)

// ──────────────────────────────────────────────────
// Credit Ledger
// ──────────────────────────────────────────────────

// Balance returns the active pool of the session's balance. A session that
// has never touched the ledger reads zero; reading never mutates state.
func (s *Service) Balance(ctx context.Context, sess Session) (types.Credits, error) {
	b, err := s.store.GetBalance(ctx, sess.AccountID)
	if err != nil {
		if errors.Is(err, ErrBalanceNotFound) {
			return 0, nil
		}
		return 0, err
	}

	return b.Active(sess.SignedIn), nil
}

// EnsureWelcomeGrant applies the one-time welcome bonus to the session's
// active pool if it has not been granted yet. Returns true when this call
// performed the grant. The grant flag is sticky: spending the bonus down to
// zero never re-arms it.
func (s *Service) EnsureWelcomeGrant(ctx context.Context, sess Session) (bool, error) {
	mu := s.accountLock(sess.AccountID)
	mu.Lock()
	defer mu.Unlock()

	return s.ensureWelcomeGrantLocked(ctx, sess)
}

// ensureWelcomeGrantLocked is EnsureWelcomeGrant for callers that already
// hold the account lock.
func (s *Service) ensureWelcomeGrantLocked(ctx context.Context, sess Session) (bool, error) {
	b, err := s.loadOrCreateBalance(ctx, sess.AccountID)
	if err != nil {
		return false, err
	}
	if b.Granted(sess.SignedIn) {
		return false, nil
	}

	before := b.Active(sess.SignedIn)
	b.Apply(sess.SignedIn, types.WelcomeGrant)
	if sess.SignedIn {
		b.SignedInGranted = true
	} else {
		b.AnonymousGranted = true
	}
	b.Touch()

	if err := s.store.SaveBalance(ctx, b); err != nil {
		return false, err
	}

	if err := s.appendEntry(ctx, &credit.Entry{
		AccountID:    sess.AccountID,
		Type:         credit.EntryCharge,
		Description:  "Welcome bonus",
		Amount:       types.WelcomeGrant,
		BalanceAfter: b.Active(sess.SignedIn),
	}); err != nil {
		return false, err
	}

	s.plugins.EmitWelcomeGranted(ctx, sess.AccountID, sess.SignedIn, types.WelcomeGrant.Int64())
	s.plugins.EmitBalanceChanged(ctx, sess.AccountID, sess.SignedIn, before.Int64(), b.Active(sess.SignedIn).Int64())

	s.logger.Info("welcome bonus granted",
		"account", sess.AccountID,
		"signed_in", sess.SignedIn,
	)

	return true, nil
}

// Reserve places a hold of amount credits against the session's active pool
// and deducts it immediately, so concurrent reservations can never overdraw.
// The hold stays provisional until ConfirmDeduction or Refund resolves it.
func (s *Service) Reserve(ctx context.Context, sess Session, jobID id.JobID, amount types.Credits) (*credit.Reservation, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	mu := s.accountLock(sess.AccountID)
	mu.Lock()
	defer mu.Unlock()

	return s.reserveLocked(ctx, sess, jobID, amount)
}

func (s *Service) reserveLocked(ctx context.Context, sess Session, jobID id.JobID, amount types.Credits) (*credit.Reservation, error) {
	b, err := s.loadOrCreateBalance(ctx, sess.AccountID)
	if err != nil {
		return nil, err
	}

	before := b.Active(sess.SignedIn)
	if before < amount {
		return nil, &InsufficientCreditsError{Required: amount, Balance: before}
	}

	b.Apply(sess.SignedIn, -amount)
	b.Touch()
	if err := s.store.SaveBalance(ctx, b); err != nil {
		return nil, err
	}

	res := &credit.Reservation{
		Entity:     types.NewEntity(),
		ID:         id.NewReservationID(),
		JobID:      jobID,
		AccountID:  sess.AccountID,
		SignedIn:   sess.SignedIn,
		Amount:     amount,
		Status:     credit.StatusReserved,
		ReservedAt: time.Now().UTC(),
	}
	if err := s.store.CreateReservation(ctx, res); err != nil {
		return nil, err
	}

	s.plugins.EmitReservationCreated(ctx, res)
	s.plugins.EmitBalanceChanged(ctx, sess.AccountID, sess.SignedIn, before.Int64(), b.Active(sess.SignedIn).Int64())

	s.logger.Debug("credits reserved",
		"account", sess.AccountID,
		"job", jobID.String(),
		"amount", amount,
	)

	return res, nil
}

// ConfirmDeduction makes a reservation's hold permanent and writes the debit
// history entry. Confirming twice returns ErrAlreadyConfirmed; confirming a
// refunded reservation returns ErrAlreadyRefunded. The lookup must match
// both the reservation ID and the job it was taken for.
func (s *Service) ConfirmDeduction(ctx context.Context, sess Session, resID id.ReservationID, jobID id.JobID, description string) error {
	mu := s.accountLock(sess.AccountID)
	mu.Lock()
	defer mu.Unlock()

	res, err := s.store.GetReservation(ctx, resID, jobID)
	if err != nil {
		return err
	}
	switch res.Status {
	case credit.StatusConfirmed:
		return ErrAlreadyConfirmed
	case credit.StatusRefunded:
		return ErrAlreadyRefunded
	}

	now := time.Now().UTC()
	res.Status = credit.StatusConfirmed
	res.ConfirmedAt = &now
	res.Touch()
	if err := s.store.UpdateReservation(ctx, res); err != nil {
		return err
	}

	b, err := s.store.GetBalance(ctx, sess.AccountID)
	if err != nil {
		return err
	}

	if description == "" {
		description = "Video translation"
	}
	if err := s.appendEntry(ctx, &credit.Entry{
		AccountID:     sess.AccountID,
		Type:          credit.EntryDebit,
		Description:   description,
		Amount:        -res.Amount,
		BalanceAfter:  b.Active(sess.SignedIn),
		JobID:         jobID,
		ReservationID: resID,
	}); err != nil {
		return err
	}

	s.plugins.EmitReservationConfirmed(ctx, res)

	s.logger.Info("deduction confirmed",
		"account", sess.AccountID,
		"job", jobID.String(),
		"amount", res.Amount,
	)

	return nil
}

// Refund releases a reservation's hold back to the session's active pool.
// A zero amount refunds the full hold; a positive amount is capped at the
// hold, so a refund can never manufacture credits. Refunding a resolved
// reservation returns ErrAlreadyConfirmed or ErrAlreadyRefunded.
func (s *Service) Refund(ctx context.Context, sess Session, resID id.ReservationID, jobID id.JobID, amount types.Credits, reason string) (types.Credits, error) {
	if amount.IsNegative() {
		return 0, ErrInvalidAmount
	}

	mu := s.accountLock(sess.AccountID)
	mu.Lock()
	defer mu.Unlock()

	res, err := s.store.GetReservation(ctx, resID, jobID)
	if err != nil {
		return 0, err
	}
	switch res.Status {
	case credit.StatusConfirmed:
		return 0, ErrAlreadyConfirmed
	case credit.StatusRefunded:
		return 0, ErrAlreadyRefunded
	}

	if amount.IsZero() || amount > res.Amount {
		amount = res.Amount
	}

	now := time.Now().UTC()
	res.Status = credit.StatusRefunded
	res.RefundedAt = &now
	res.RefundReason = reason
	res.RefundAmount = amount
	res.Touch()
	if err := s.store.UpdateReservation(ctx, res); err != nil {
		return 0, err
	}

	refunded, err := s.creditBack(ctx, sess, res, amount, reason)
	if err != nil {
		return 0, err
	}

	return refunded, nil
}

// refundAfterConfirm credits back part of an already-confirmed reservation.
// Used when some translation languages fail after the rest were delivered.
// The record is re-fetched so the confirmed status is never clobbered by a
// stale copy; the reservation stays confirmed and only the give-back fields
// change. Repeated give-backs accumulate, capped at the original hold.
func (s *Service) refundAfterConfirm(ctx context.Context, sess Session, resID id.ReservationID, jobID id.JobID, amount types.Credits, reason string) (types.Credits, error) {
	mu := s.accountLock(sess.AccountID)
	mu.Lock()
	defer mu.Unlock()

	res, err := s.store.GetReservation(ctx, resID, jobID)
	if err != nil {
		return 0, err
	}
	switch res.Status {
	case credit.StatusReserved:
		return 0, ErrNotConfirmed
	case credit.StatusRefunded:
		return 0, ErrAlreadyRefunded
	}

	if remaining := res.Amount - res.RefundAmount; amount > remaining {
		amount = remaining
	}

	now := time.Now().UTC()
	res.RefundedAt = &now
	res.RefundReason = reason
	res.RefundAmount += amount
	res.Touch()
	if err := s.store.UpdateReservation(ctx, res); err != nil {
		return 0, err
	}

	return s.creditBack(ctx, sess, res, amount, reason)
}

// creditBack applies a refund to the balance and writes the history entry.
// Caller must hold the account lock.
func (s *Service) creditBack(ctx context.Context, sess Session, res *credit.Reservation, amount types.Credits, reason string) (types.Credits, error) {
	b, err := s.loadOrCreateBalance(ctx, sess.AccountID)
	if err != nil {
		return 0, err
	}

	before := b.Active(sess.SignedIn)
	b.Apply(sess.SignedIn, amount)
	b.Touch()
	if err := s.store.SaveBalance(ctx, b); err != nil {
		return 0, err
	}

	description := "Refund"
	if reason != "" {
		description = "Refund: " + reason
	}
	if err := s.appendEntry(ctx, &credit.Entry{
		AccountID:     sess.AccountID,
		Type:          credit.EntryRefund,
		Description:   description,
		Amount:        amount,
		BalanceAfter:  b.Active(sess.SignedIn),
		JobID:         res.JobID,
		ReservationID: res.ID,
	}); err != nil {
		return 0, err
	}

	s.plugins.EmitReservationRefunded(ctx, res, amount.Int64(), reason)
	s.plugins.EmitBalanceChanged(ctx, sess.AccountID, sess.SignedIn, before.Int64(), b.Active(sess.SignedIn).Int64())

	s.logger.Info("credits refunded",
		"account", sess.AccountID,
		"job", res.JobID.String(),
		"amount", amount,
		"reason", reason,
	)

	return amount, nil
}

// TopUp adds purchased credits to the session's active pool and bumps the
// account's lifetime paid total, which upgrades its storage tier.
func (s *Service) TopUp(ctx context.Context, sess Session, amount types.Credits) (types.Credits, error) {
	if !amount.IsPositive() {
		return 0, ErrInvalidAmount
	}

	mu := s.accountLock(sess.AccountID)
	mu.Lock()
	defer mu.Unlock()

	b, err := s.loadOrCreateBalance(ctx, sess.AccountID)
	if err != nil {
		return 0, err
	}

	before := b.Active(sess.SignedIn)
	b.Apply(sess.SignedIn, amount)
	b.TotalCharged += amount
	b.Touch()
	if err := s.store.SaveBalance(ctx, b); err != nil {
		return 0, err
	}

	if err := s.appendEntry(ctx, &credit.Entry{
		AccountID:    sess.AccountID,
		Type:         credit.EntryCharge,
		Description:  "Credit purchase",
		Amount:       amount,
		BalanceAfter: b.Active(sess.SignedIn),
	}); err != nil {
		return 0, err
	}

	s.plugins.EmitBalanceChanged(ctx, sess.AccountID, sess.SignedIn, before.Int64(), b.Active(sess.SignedIn).Int64())

	return b.Active(sess.SignedIn), nil
}

// History lists the account's credit entries, newest first.
func (s *Service) History(ctx context.Context, sess Session, opts credit.ListOpts) ([]*credit.Entry, error) {
	return s.store.ListEntries(ctx, sess.AccountID, opts)
}

// Reservations lists the account's credit reservations, optionally filtered
// by status. An empty status lists all of them.
func (s *Service) Reservations(ctx context.Context, sess Session, status credit.ReservationStatus) ([]*credit.Reservation, error) {
	return s.store.ListReservations(ctx, sess.AccountID, status)
}

// loadOrCreateBalance fetches the account balance, creating an empty record
// on first touch. Caller must hold the account lock.
func (s *Service) loadOrCreateBalance(ctx context.Context, accountID string) (*credit.Balance, error) {
	b, err := s.store.GetBalance(ctx, accountID)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, ErrBalanceNotFound) {
		return nil, err
	}

	b = &credit.Balance{
		Entity:    types.NewEntity(),
		AccountID: accountID,
	}
	if err := s.store.SaveBalance(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Service) appendEntry(ctx context.Context, e *credit.Entry) error {
	e.ID = id.NewEntryID()
	e.Date = time.Now().UTC()
	return s.store.AppendEntry(ctx, e)
}
