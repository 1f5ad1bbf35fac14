// Package reconcile decides whether a canonical provider is new, changed or
// already stored, and applies that decision inside a store transaction.
package reconcile

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/childcare-etl/internal/model"
	"github.com/sells-group/childcare-etl/internal/store"
)

// Result is the decision taken for one provider.
type Result struct {
	Outcome model.Outcome
	// ID is the stored row's surrogate id.
	ID int64
}

// Reconcile looks p up by identity key and inserts, overwrites or leaves
// the stored row alone. p.RecordHash must already hold p's fingerprint.
//
// A stored row with the same fingerprint is Unchanged and not written, so
// its etl_timestamp keeps the time of the last real change.
func Reconcile(ctx context.Context, tx store.Tx, p *model.Provider) (Result, error) {
	if p.RecordHash == "" {
		return Result{}, eris.New("reconcile: provider has no record hash")
	}

	key := p.Identity()
	match, err := tx.FindByIdentity(ctx, key)
	if err != nil {
		return Result{}, eris.Wrap(err, "reconcile: find")
	}

	if match == nil {
		id, err := tx.Insert(ctx, p)
		if err != nil {
			return Result{}, eris.Wrap(err, "reconcile: insert")
		}
		zap.L().Debug("reconcile: inserted", zap.Int64("id", id), zap.Stringer("key", key))
		return Result{Outcome: model.OutcomeInserted, ID: id}, nil
	}

	if match.RecordHash == p.RecordHash {
		zap.L().Debug("reconcile: unchanged", zap.Int64("id", match.ID), zap.Stringer("key", key))
		return Result{Outcome: model.OutcomeUnchanged, ID: match.ID}, nil
	}

	if err := tx.Update(ctx, match.ID, p); err != nil {
		return Result{}, eris.Wrap(err, "reconcile: update")
	}
	zap.L().Debug("reconcile: updated", zap.Int64("id", match.ID), zap.Stringer("key", key))
	return Result{Outcome: model.OutcomeUpdated, ID: match.ID}, nil
}
