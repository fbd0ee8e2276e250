package caption

import (
	"context"
	"errors"
	"time"

	"github.com/Jamesmini007/AX2-Caption/credit"
	"github.com/Jamesmini007/AX2-Caption/trial"
	"github.com/Jamesmini007/AX2-Caption/types"
)

// ──────────────────────────────────────────────────
// Free Trial
// ──────────────────────────────────────────────────

// TrialEligibility evaluates whether the session may use its free trial for
// a video of the given shape. It never mutates state.
func (s *Service) TrialEligibility(ctx context.Context, sess Session, durationSeconds float64, languageCount int) (trial.Eligibility, error) {
	used, err := s.trialUsed(ctx, sess.AccountID)
	if err != nil {
		return trial.Eligibility{}, err
	}

	return trial.Check(used, durationSeconds, languageCount), nil
}

// GrantFreeTrial consumes the account's one-time free trial: it marks the
// trial used and credits the bonus to the session's active pool. The usage
// flag is set before any work runs and is never cleared, even if the trial
// job later fails.
func (s *Service) GrantFreeTrial(ctx context.Context, sess Session, durationSeconds float64, languageCount int) error {
	mu := s.accountLock(sess.AccountID)
	mu.Lock()
	defer mu.Unlock()

	return s.grantFreeTrialLocked(ctx, sess, durationSeconds, languageCount)
}

func (s *Service) grantFreeTrialLocked(ctx context.Context, sess Session, durationSeconds float64, languageCount int) error {
	used, err := s.trialUsed(ctx, sess.AccountID)
	if err != nil {
		return err
	}

	elig := trial.Check(used, durationSeconds, languageCount)
	if !elig.Eligible {
		switch elig.Reason {
		case trial.ReasonAlreadyUsed:
			return ErrTrialAlreadyUsed
		case trial.ReasonTooLong:
			return ErrTrialVideoTooLong
		case trial.ReasonTooMany:
			return ErrTrialTooManyLanguages
		}
		return ErrInvalidInput
	}

	// Mark the trial used before crediting, so a crash in between costs the
	// user a grant rather than handing out a second one.
	flag := &trial.Flag{
		Entity:    types.NewEntity(),
		AccountID: sess.AccountID,
		Used:      true,
		UsedAt:    time.Now().UTC(),
	}
	if err := s.store.SaveTrialFlag(ctx, flag); err != nil {
		return err
	}

	b, err := s.loadOrCreateBalance(ctx, sess.AccountID)
	if err != nil {
		return err
	}

	before := b.Active(sess.SignedIn)
	b.Apply(sess.SignedIn, trial.GrantAmount)
	b.Touch()
	if err := s.store.SaveBalance(ctx, b); err != nil {
		return err
	}

	if err := s.appendEntry(ctx, &credit.Entry{
		AccountID:    sess.AccountID,
		Type:         credit.EntryCharge,
		Description:  "Free trial bonus",
		Amount:       trial.GrantAmount,
		BalanceAfter: b.Active(sess.SignedIn),
	}); err != nil {
		return err
	}

	s.plugins.EmitTrialGranted(ctx, sess.AccountID)
	s.plugins.EmitBalanceChanged(ctx, sess.AccountID, sess.SignedIn, before.Int64(), b.Active(sess.SignedIn).Int64())

	s.logger.Info("free trial granted", "account", sess.AccountID)

	return nil
}

func (s *Service) trialUsed(ctx context.Context, accountID string) (bool, error) {
	flag, err := s.store.GetTrialFlag(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrTrialFlagNotFound) {
			return false, nil
		}
		return false, err
	}
	return flag.Used, nil
}
