package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/damsync/internal/model"
	"github.com/sells-group/damsync/internal/store"
)

// CatalogResult is the outcome of reconciling one feed record against the
// catalog. Dam is nil for duplicates.
type CatalogResult struct {
	Kind    Kind
	Dam     *model.Dam
	Message string
}

// Created reports whether a new catalog entry was inserted.
func (r CatalogResult) Created() bool {
	return r.Kind == Created
}

// CatalogReconciler creates or overwrites dam catalog entries.
type CatalogReconciler struct {
	store store.CatalogStore
	log   *zap.Logger
}

// NewCatalogReconciler creates a catalog reconciler backed by s.
func NewCatalogReconciler(s store.CatalogStore) *CatalogReconciler {
	return &CatalogReconciler{
		store: s,
		log:   zap.L().With(zap.String("component", "reconcile.catalog")),
	}
}

// ReconcileOne inserts raw as a new dam, or overwrites every mutable field of
// the existing dam with the same SIH key. Losing an insert race to another
// writer yields a Duplicate result, not an error.
func (c *CatalogReconciler) ReconcileOne(ctx context.Context, raw model.FeedRecord) (CatalogResult, error) {
	key := raw.Key()
	if key == "" {
		return CatalogResult{}, eris.Wrap(ErrValidation, "reconcile: feed record has blank clavesih")
	}

	existing, err := c.store.FindByKey(ctx, key)
	switch {
	case err == nil:
		existing.Overwrite(raw.Dam())
		updated, err := c.store.UpdateDam(ctx, *existing)
		if err != nil {
			return CatalogResult{}, eris.Wrapf(err, "reconcile: update dam %s", key)
		}
		return CatalogResult{Kind: Updated, Dam: updated}, nil

	case errors.Is(err, store.ErrNotFound):
		created, err := c.store.InsertDam(ctx, raw.Dam())
		if errors.Is(err, store.ErrDuplicateKey) {
			msg := fmt.Sprintf("Dam %s already exists in the catalog", key)
			c.log.Info("skipping duplicate dam", zap.String("sih_key", key))
			return CatalogResult{Kind: Duplicate, Message: msg}, nil
		}
		if err != nil {
			return CatalogResult{}, eris.Wrapf(err, "reconcile: insert dam %s", key)
		}
		return CatalogResult{Kind: Created, Dam: created}, nil

	default:
		return CatalogResult{}, eris.Wrapf(err, "reconcile: find dam %s", key)
	}
}

// ReconcileBatch reconciles records in feed order and folds the results into
// out. It stops at the first error; results gathered so far stay in out.
func (c *CatalogReconciler) ReconcileBatch(ctx context.Context, records []model.FeedRecord, out *model.CatalogOutcome) error {
	for i, raw := range records {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "reconcile: catalog batch cancelled")
		}
		res, err := c.ReconcileOne(ctx, raw)
		if err != nil {
			return eris.Wrapf(err, "reconcile: record %d", i)
		}
		switch res.Kind {
		case Created:
			out.Created = append(out.Created, *res.Dam)
		case Updated:
			out.Updated = append(out.Updated, *res.Dam)
		case Duplicate:
			out.Skipped = append(out.Skipped, res.Message)
		}
	}
	c.log.Info("catalog reconciled",
		zap.Int("created", len(out.Created)),
		zap.Int("updated", len(out.Updated)),
		zap.Int("skipped", len(out.Skipped)),
	)
	return nil
}
