package grid

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sahilchouksey/gradgrid/model"
)

// Lifecycle drives column creation, backfill and deletion against the
// backend while keeping the registry and cell store consistent.
type Lifecycle struct {
	api      API
	registry *Registry
	store    *CellStore
}

// NewLifecycle wires a lifecycle orchestrator.
func NewLifecycle(api API, registry *Registry, store *CellStore) *Lifecycle {
	return &Lifecycle{api: api, registry: registry, store: store}
}

// backfillQuestion synthesizes the retrieval question for a column.
func backfillQuestion(title string) string {
	return fmt.Sprintf("What is the %s of this university? Answer concisely based on the university's official information.", title)
}

// AddColumn creates a column, marks every visible row's new cell
// loading before any backend work (the grid shows "computing", never a
// blank), then backfills each visible row strictly one at a time. The
// sequential loop is deliberate: it bounds load on the retrieval
// backend and yields a predictable, throttled completion order. One
// row's failure never aborts the rest; the failed row just ends with no
// information available.
func (l *Lifecycle) AddColumn(ctx context.Context, title string, visible []Entity) (model.Column, error) {
	col, err := l.api.CreateColumn(ctx, title)
	if err != nil {
		return model.Column{}, fmt.Errorf("failed to create column %q: %w", title, err)
	}
	l.registry.Add(col)

	for _, e := range visible {
		l.store.SetLoading(e.ID, col.ID)
	}

	question := backfillQuestion(title)
	for _, e := range visible {
		if err := ctx.Err(); err != nil {
			return col, err
		}
		if err := l.backfillRow(ctx, col.ID, e.ID, question); err != nil {
			log.Printf("[grid] backfill failed for university %s column %s: %v", e.ID, col.ID, err)
			l.store.ClearLoading(e.ID, col.ID)
		}
	}
	return col, nil
}

// backfillRow computes and persists one cell, then commits it locally.
func (l *Lifecycle) backfillRow(ctx context.Context, columnID, entityID, question string) error {
	answer, err := l.api.Ask(ctx, question, entityID)
	if err != nil {
		return err
	}
	if err := l.api.SaveCellValue(ctx, entityID, columnID, answer); err != nil {
		return err
	}
	l.store.SetValue(entityID, columnID, &answer, time.Time{})
	return nil
}

// DeleteColumn checks ownership locally (the server enforces it again),
// deletes the column remotely, then purges registry and store state.
func (l *Lifecycle) DeleteColumn(ctx context.Context, id string, user SessionUser) error {
	col, ok := l.registry.Get(id)
	if !ok {
		return fmt.Errorf("unknown column %s", id)
	}
	if !CanDelete(col, user) {
		return fmt.Errorf("column %s is not deletable by %s", id, user.Email)
	}
	if err := l.api.DeleteColumn(ctx, id); err != nil {
		return fmt.Errorf("failed to delete column %s: %w", id, err)
	}
	l.registry.Remove(id)
	return nil
}
