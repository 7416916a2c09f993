package repository

import (
	"context"

	"imagevariants/internal/model"
)

// RecordRepository defines data access for records using SQL queries only.
// Loaded records carry a snapshot of their fields so image lifecycle hooks can read previous values.
type RecordRepository interface {
	// Create inserts a new record and returns the stored row.
	Create(ctx context.Context, rec *model.Record) (*model.Record, error)

	// Update replaces the fields of an existing record. sql.ErrNoRows if it does not exist.
	Update(ctx context.Context, rec *model.Record) (*model.Record, error)

	// FindByID returns a record of the given entity type by its ID.
	FindByID(ctx context.Context, entity, id string) (*model.Record, error)

	// List returns a page of records of one entity type and the total count.
	List(ctx context.Context, entity string, pq PageQuery) (*PageResult[*model.Record], error)

	// Delete removes a record by ID. It returns nil if the row was deleted or did not exist.
	Delete(ctx context.Context, entity, id string) error
}
