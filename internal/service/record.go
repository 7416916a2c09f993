package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"imagevariants/internal/lifecycle"
	"imagevariants/internal/model"
	"imagevariants/internal/repository"
	"imagevariants/internal/upload"
)

var (
	ErrIDRequired    = errors.New("id is required")
	ErrNotFound      = errors.New("record not found")
	ErrUnknownEntity = lifecycle.ErrUnknownEntity
)

// ImageHooks are the image lifecycle calls made around persistence. Implemented by *lifecycle.Hooks.
type ImageHooks interface {
	OnRecordInitialized(ctx context.Context, entity string) (*model.PathTree, error)
	OnRecordLoaded(ctx context.Context, rec *model.Record) (map[string]*string, error)
	OnBeforeValidate(ctx context.Context, rec *model.Record, provider upload.Provider) error
	OnBeforeSave(ctx context.Context, rec *model.Record) error
	OnBeforeDelete(ctx context.Context, rec *model.Record) error
	Discard(ctx context.Context, rec *model.Record) error
}

var _ ImageHooks = (*lifecycle.Hooks)(nil)

// RecordInput is the writable part of a record: plain fields and the uploads for image attributes.
// Image attributes are never taken from Fields.
type RecordInput struct {
	Fields  map[string]string
	Uploads upload.Provider
}

// RecordView is a record with the public URLs of its image variants.
type RecordView struct {
	Record *model.Record       `json:"record"`
	Images map[string]*string `json:"images"`
}

// RecordListResult is the service-level DTO for paginated records.
type RecordListResult struct {
	Items []RecordView `json:"data"`
	Total int          `json:"total"`
}

// RecordService defines the use cases for records with image attributes.
type RecordService interface {
	// Create stores the uploads, then saves the record; the written variants are removed if the DB save fails.
	Create(ctx context.Context, entity string, in RecordInput) (*RecordView, error)

	// Update replaces the fields and, for attributes with a new upload, the stored images.
	Update(ctx context.Context, entity, id string, in RecordInput) (*RecordView, error)

	// Get returns a single record by its ID.
	Get(ctx context.Context, entity, id string) (*RecordView, error)

	// List returns records using limit/offset and a total count.
	List(ctx context.Context, entity string, limit, offset int) (*RecordListResult, error)

	// Delete removes the image variants of a record, then the record.
	Delete(ctx context.Context, entity, id string) error

	// Paths returns the resolved storage and URL layout of an entity type.
	Paths(ctx context.Context, entity string) (*model.PathTree, error)
}

type recordService struct {
	repo  repository.RecordRepository
	hooks ImageHooks
	now   func() time.Time
	locks keyedMutex
}

// NewRecordService constructs a new RecordService.
func NewRecordService(repo repository.RecordRepository, hooks ImageHooks) RecordService {
	return &recordService{repo: repo, hooks: hooks, now: time.Now}
}

func (s *recordService) Create(ctx context.Context, entity string, in RecordInput) (*RecordView, error) {
	tree, err := s.hooks.OnRecordInitialized(ctx, entity)
	if err != nil {
		return nil, err
	}

	rec := model.NewRecord(uuid.NewString(), entity)
	applyFields(rec, tree, in.Fields)
	if err := s.prepare(ctx, rec, in.Uploads); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	rec.CreatedAt, rec.UpdatedAt = now, now

	stored, err := s.repo.Create(ctx, rec)
	if err != nil {
		return nil, s.rollback(ctx, rec, err)
	}
	return s.view(ctx, stored)
}

func (s *recordService) Update(ctx context.Context, entity, id string, in RecordInput) (*RecordView, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	tree, err := s.hooks.OnRecordInitialized(ctx, entity)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(entity + "/" + id)
	defer unlock()

	rec, err := s.find(ctx, entity, id)
	if err != nil {
		return nil, err
	}
	applyFields(rec, tree, in.Fields)
	if err := s.prepare(ctx, rec, in.Uploads); err != nil {
		return nil, err
	}
	rec.UpdatedAt = s.now().UTC()

	stored, err := s.repo.Update(ctx, rec)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrNotFound
		}
		return nil, s.rollback(ctx, rec, err)
	}
	return s.view(ctx, stored)
}

// Get returns a record by ID.
func (s *recordService) Get(ctx context.Context, entity, id string) (*RecordView, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	if _, err := s.hooks.OnRecordInitialized(ctx, entity); err != nil {
		return nil, err
	}
	rec, err := s.find(ctx, entity, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, rec)
}

// List returns paginated records without exposing repository types.
func (s *recordService) List(ctx context.Context, entity string, limit, offset int) (*RecordListResult, error) {
	if _, err := s.hooks.OnRecordInitialized(ctx, entity); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.repo.List(ctx, entity, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	out := &RecordListResult{Items: make([]RecordView, 0, len(res.Items)), Total: res.Total}
	for _, rec := range res.Items {
		v, err := s.view(ctx, rec)
		if err != nil {
			return nil, err
		}
		out.Items = append(out.Items, *v)
	}
	return out, nil
}

// Delete removes the stored variants first; if that fails the row is kept so the files stay referenced.
func (s *recordService) Delete(ctx context.Context, entity, id string) error {
	if id == "" {
		return ErrIDRequired
	}
	if _, err := s.hooks.OnRecordInitialized(ctx, entity); err != nil {
		return err
	}

	unlock := s.locks.lock(entity + "/" + id)
	defer unlock()

	rec, err := s.find(ctx, entity, id)
	if err != nil {
		return err
	}
	if err := s.hooks.OnBeforeDelete(ctx, rec); err != nil {
		return fmt.Errorf("delete images: %w", err)
	}
	return s.repo.Delete(ctx, entity, id)
}

func (s *recordService) Paths(ctx context.Context, entity string) (*model.PathTree, error) {
	return s.hooks.OnRecordInitialized(ctx, entity)
}

func (s *recordService) find(ctx context.Context, entity, id string) (*model.Record, error) {
	rec, err := s.repo.FindByID(ctx, entity, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

func (s *recordService) prepare(ctx context.Context, rec *model.Record, uploads upload.Provider) error {
	if uploads == nil {
		uploads = upload.None{}
	}
	if err := s.hooks.OnBeforeValidate(ctx, rec, uploads); err != nil {
		return err
	}
	if err := s.hooks.OnBeforeSave(ctx, rec); err != nil {
		return fmt.Errorf("store images: %w", err)
	}
	return nil
}

func (s *recordService) rollback(ctx context.Context, rec *model.Record, err error) error {
	if delErr := s.hooks.Discard(ctx, rec); delErr != nil {
		return fmt.Errorf("db save failed: %w; rollback delete failed: %v", err, delErr)
	}
	return fmt.Errorf("db save failed: %w", err)
}

func (s *recordService) view(ctx context.Context, rec *model.Record) (*RecordView, error) {
	images, err := s.hooks.OnRecordLoaded(ctx, rec)
	if err != nil {
		return nil, err
	}
	return &RecordView{Record: rec, Images: images}, nil
}

// applyFields copies the plain fields of in onto rec. Image attributes are owned by the lifecycle.
func applyFields(rec *model.Record, tree *model.PathTree, in map[string]string) {
	for k, v := range in {
		if _, ok := tree.Attribute(k); ok {
			continue
		}
		rec.SetField(k, v)
	}
}

// keyedMutex serializes writers of the same record.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = map[string]*keyedEntry{}
	}
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
