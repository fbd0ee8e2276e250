package caption

import (
	"context"
	"errors"
	"time"

	"github.com/Jamesmini007/AX2-Caption/credit"
	"github.com/Jamesmini007/AX2-Caption/id"
	"github.com/Jamesmini007/AX2-Caption/storage"
	"github.com/Jamesmini007/AX2-Caption/types"
)

// ──────────────────────────────────────────────────
// Storage Policy
// ──────────────────────────────────────────────────

// StorageQuota returns the account's effective capacity, retention period,
// and current usage. Paid accounts (any top-up ever) get the larger base
// tier; an active extension adds its bonus on top.
func (s *Service) StorageQuota(ctx context.Context, sess Session) (storage.Quota, error) {
	// Evict lapsed artifacts first so usage never counts expired output.
	if _, err := s.SweepExpiredArtifacts(ctx); err != nil {
		return storage.Quota{}, err
	}

	var hasPaid bool
	b, err := s.store.GetBalance(ctx, sess.AccountID)
	if err == nil {
		hasPaid = b.TotalCharged.IsPositive()
	} else if !errors.Is(err, ErrBalanceNotFound) {
		return storage.Quota{}, err
	}

	now := time.Now().UTC()
	ext, err := s.store.GetExtension(ctx, sess.AccountID)
	if err != nil {
		if !errors.Is(err, ErrExtensionNotFound) {
			return storage.Quota{}, err
		}
		ext = nil
	} else if !ext.Active(now) {
		// Lapsed extensions are pruned lazily on the next quota read.
		if err := s.store.DeleteExtension(ctx, sess.AccountID); err != nil {
			s.logger.Warn("failed to prune lapsed extension",
				"account", sess.AccountID,
				"error", err,
			)
		}
		ext = nil
	}

	used, err := s.store.SumArtifactBytes(ctx, sess.AccountID)
	if err != nil {
		return storage.Quota{}, err
	}

	return storage.Compute(hasPaid, ext, used, now), nil
}

// PurchaseExtension buys a storage extension for credits. A new purchase
// replaces any existing extension rather than stacking with it.
func (s *Service) PurchaseExtension(ctx context.Context, sess Session, typ storage.ExtensionType) (*storage.Extension, error) {
	if !typ.Valid() {
		return nil, ErrUnknownExtension
	}

	mu := s.accountLock(sess.AccountID)
	mu.Lock()
	defer mu.Unlock()

	b, err := s.loadOrCreateBalance(ctx, sess.AccountID)
	if err != nil {
		return nil, err
	}

	price := typ.Price()
	before := b.Active(sess.SignedIn)
	if before < price {
		return nil, &InsufficientCreditsError{Required: price, Balance: before}
	}

	b.Apply(sess.SignedIn, -price)
	b.Touch()
	if err := s.store.SaveBalance(ctx, b); err != nil {
		return nil, err
	}

	ext := &storage.Extension{
		Entity:    types.NewEntity(),
		ID:        id.NewExtensionID(),
		AccountID: sess.AccountID,
		Type:      typ,
		ExpiresAt: time.Now().UTC().Add(typ.Term()),
	}
	if err := s.store.SaveExtension(ctx, ext); err != nil {
		return nil, err
	}

	if err := s.appendEntry(ctx, &credit.Entry{
		AccountID:    sess.AccountID,
		Type:         credit.EntryDebit,
		Description:  "Storage extension (" + string(typ) + ")",
		Amount:       -price,
		BalanceAfter: b.Active(sess.SignedIn),
	}); err != nil {
		return nil, err
	}

	s.plugins.EmitBalanceChanged(ctx, sess.AccountID, sess.SignedIn, before.Int64(), b.Active(sess.SignedIn).Int64())

	s.logger.Info("storage extension purchased",
		"account", sess.AccountID,
		"type", typ,
		"expires_at", ext.ExpiresAt,
	)

	return ext, nil
}

// SweepExpiredArtifacts evicts every artifact whose retention period has
// lapsed, removing both metadata and media blob. Returns the eviction count.
// The sweep worker calls this on a timer; it is also safe to call directly.
func (s *Service) SweepExpiredArtifacts(ctx context.Context) (int, error) {
	start := time.Now()

	expired, err := s.store.ListExpiredArtifacts(ctx, start.UTC())
	if err != nil {
		return 0, err
	}

	count := 0
	for _, a := range expired {
		if err := s.store.DeleteArtifact(ctx, a.ID); err != nil {
			s.logger.Error("failed to evict artifact",
				"artifact", a.ID.String(),
				"error", err,
			)
			continue
		}
		if a.BlobKey != "" {
			// Blob removal is best-effort; the metadata row is gone either way.
			if err := s.blobs.Delete(ctx, a.BlobKey); err != nil {
				s.logger.Warn("failed to delete blob",
					"key", a.BlobKey,
					"error", err,
				)
			}
		}
		count++
	}

	if count > 0 {
		elapsed := time.Since(start)
		s.plugins.EmitArtifactsEvicted(ctx, count, elapsed)
		s.logger.Info("expired artifacts evicted",
			"count", count,
			"elapsed_ms", elapsed.Milliseconds(),
		)
	}

	return count, nil
}
