package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"imagevariants/internal/model"
	"imagevariants/internal/repository"
)

// RecordPostgres is a PostgreSQL implementation of repository.RecordRepository.
// Fields are stored in a JSONB column; it contains no business logic.
type RecordPostgres struct {
	db *sql.DB
}

// NewRecordPostgres creates a new RecordPostgres repository.
func NewRecordPostgres(db *sql.DB) *RecordPostgres {
	return &RecordPostgres{db: db}
}

var _ repository.RecordRepository = (*RecordPostgres)(nil)

// IsNoRowsError reports whether err means the requested row does not exist.
func IsNoRowsError(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

const recordColumns = `id, entity_type, fields, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*model.Record, error) {
	var (
		rec    model.Record
		fields []byte
	)
	if err := s.Scan(&rec.ID, &rec.Entity, &fields, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &rec.Fields); err != nil {
			return nil, fmt.Errorf("decode fields of %s: %w", rec.ID, err)
		}
	}
	if rec.Fields == nil {
		rec.Fields = map[string]string{}
	}
	rec.Snapshot()
	return &rec, nil
}

func encodeFields(rec *model.Record) ([]byte, error) {
	fields := rec.Fields
	if fields == nil {
		fields = map[string]string{}
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	return b, nil
}

// Create inserts a new record row and returns the stored record.
func (r *RecordPostgres) Create(ctx context.Context, rec *model.Record) (*model.Record, error) {
	fields, err := encodeFields(rec)
	if err != nil {
		return nil, err
	}
	const q = `
		INSERT INTO records (id, entity_type, fields, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + recordColumns
	row := r.db.QueryRowContext(ctx, q,
		rec.ID,
		rec.Entity,
		fields,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	return scanRecord(row)
}

// Update stores the fields of an existing record.
func (r *RecordPostgres) Update(ctx context.Context, rec *model.Record) (*model.Record, error) {
	fields, err := encodeFields(rec)
	if err != nil {
		return nil, err
	}
	const q = `
		UPDATE records SET fields = $3, updated_at = $4
		WHERE id = $1 AND entity_type = $2
		RETURNING ` + recordColumns
	row := r.db.QueryRowContext(ctx, q, rec.ID, rec.Entity, fields, rec.UpdatedAt)
	return scanRecord(row)
}

// FindByID fetches a single record by its ID.
func (r *RecordPostgres) FindByID(ctx context.Context, entity, id string) (*model.Record, error) {
	const q = `
		SELECT ` + recordColumns + `
		FROM records
		WHERE id = $1 AND entity_type = $2
	`
	return scanRecord(r.db.QueryRowContext(ctx, q, id, entity))
}

// List returns records of one entity type using LIMIT/OFFSET pagination and a total count.
func (r *RecordPostgres) List(ctx context.Context, entity string, pq repository.PageQuery) (*repository.PageResult[*model.Record], error) {
	const qCount = `SELECT COUNT(*) FROM records WHERE entity_type = $1`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount, entity).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `
		SELECT ` + recordColumns + `
		FROM records
		WHERE entity_type = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, qList, entity, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*model.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[*model.Record]{
		Items: items,
		Total: total,
	}, nil
}

// Delete removes a record by ID. It does not return an error if the row does not exist.
func (r *RecordPostgres) Delete(ctx context.Context, entity, id string) error {
	const q = `DELETE FROM records WHERE id = $1 AND entity_type = $2`
	_, err := r.db.ExecContext(ctx, q, id, entity)
	return err
}
