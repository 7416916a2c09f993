package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"imagevariants/internal/model"
	"imagevariants/internal/upload"
)

// ErrUnknownEntity is returned for an entity type without an image schema.
var ErrUnknownEntity = errors.New("unknown entity type")

// Catalog holds the registered image schemas by entity type.
type Catalog struct {
	mu      sync.RWMutex
	schemas map[string]model.EntitySchema
	order   []string
}

// NewCatalog registers schemas. Later duplicates replace earlier ones.
func NewCatalog(schemas []model.EntitySchema) *Catalog {
	c := &Catalog{}
	c.set(schemas)
	return c
}

func (c *Catalog) set(schemas []model.EntitySchema) {
	c.schemas = make(map[string]model.EntitySchema, len(schemas))
	c.order = c.order[:0]
	for _, s := range schemas {
		if _, ok := c.schemas[s.Entity]; !ok {
			c.order = append(c.order, s.Entity)
		}
		c.schemas[s.Entity] = s
	}
}

func (c *Catalog) Schema(entity string) (model.EntitySchema, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.schemas[entity]
	return s, ok
}

// Entities lists the registered entity types in registration order.
func (c *Catalog) Entities() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.order)
}

// Replace swaps every schema and returns the entity types registered before or after the swap.
func (c *Catalog) Replace(schemas []model.EntitySchema) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	touched := slices.Clone(c.order)
	c.order = nil
	c.set(schemas)
	for _, e := range c.order {
		if !slices.Contains(touched, e) {
			touched = append(touched, e)
		}
	}
	return touched
}

// Planner resolves the path tree of an entity schema. Reset drops a cached tree.
type Planner interface {
	Plan(ctx context.Context, schema model.EntitySchema) (*model.PathTree, error)
	Reset(entity string)
}

// Hooks are the calls a record workflow makes at its lifecycle points.
type Hooks struct {
	catalog *Catalog
	planner Planner
	manager *Manager
}

func NewHooks(catalog *Catalog, planner Planner, manager *Manager) *Hooks {
	return &Hooks{catalog: catalog, planner: planner, manager: manager}
}

// OnRecordInitialized resolves and caches the path tree of entity.
func (h *Hooks) OnRecordInitialized(ctx context.Context, entity string) (*model.PathTree, error) {
	s, ok := h.catalog.Schema(entity)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}
	return h.planner.Plan(ctx, s)
}

// OnRecordLoaded returns the variant URLs of a fetched record.
func (h *Hooks) OnRecordLoaded(ctx context.Context, rec *model.Record) (map[string]*string, error) {
	tree, err := h.OnRecordInitialized(ctx, rec.Entity)
	if err != nil {
		return nil, err
	}
	return Materialize(tree, rec), nil
}

// OnBeforeValidate attaches the pending uploads of every image attribute to rec.
func (h *Hooks) OnBeforeValidate(ctx context.Context, rec *model.Record, provider upload.Provider) error {
	tree, err := h.OnRecordInitialized(ctx, rec.Entity)
	if err != nil {
		return err
	}
	for _, ap := range tree.Attributes {
		f, err := provider.UploadedFile(rec, ap.Attribute)
		if err != nil {
			return fmt.Errorf("upload %s: %w", ap.Attribute, err)
		}
		rec.Attach(ap.Attribute, f)
	}
	return nil
}

// OnBeforeSave stores the pending uploads of rec and sets the stored filenames.
func (h *Hooks) OnBeforeSave(ctx context.Context, rec *model.Record) error {
	tree, err := h.OnRecordInitialized(ctx, rec.Entity)
	if err != nil {
		return err
	}
	defer rec.ClearUploads()
	return h.manager.Save(ctx, tree, rec)
}

// OnBeforeDelete removes every stored variant of rec.
func (h *Hooks) OnBeforeDelete(ctx context.Context, rec *model.Record) error {
	tree, err := h.OnRecordInitialized(ctx, rec.Entity)
	if err != nil {
		return err
	}
	return h.manager.Delete(ctx, tree, rec)
}

// Reload installs a new schema catalog. Trees of every affected entity type are rebuilt on next use;
// files already stored under an old layout are left where they are.
func (h *Hooks) Reload(schemas []model.EntitySchema) []string {
	touched := h.catalog.Replace(schemas)
	for _, entity := range touched {
		h.planner.Reset(entity)
	}
	return touched
}

// Discard undoes the files written by OnBeforeSave when the record was not persisted.
func (h *Hooks) Discard(ctx context.Context, rec *model.Record) error {
	tree, err := h.OnRecordInitialized(ctx, rec.Entity)
	if err != nil {
		return err
	}
	return h.manager.Discard(ctx, tree, rec)
}
