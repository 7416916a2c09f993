package pathplan

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"imagevariants/internal/model"
)

// AppContext resolves the directories and URLs of the running application.
type AppContext interface {
	ResolveAlias(alias string) (string, error)
	IsOwner() bool
	BaseURL() string
	PublishedURL(ctx context.Context, dir string) (string, error)
}

// Options locate the image store inside the application.
type Options struct {
	RootAlias    string
	ImagesFolder string
	DirMode      os.FileMode
}

// Registry builds and caches one PathTree per entity type.
// Plan is safe for concurrent use; a tree is computed at most once until Reset.
type Registry struct {
	fs   afero.Fs
	app  AppContext
	opts Options

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	tree *model.PathTree
}

// NewRegistry returns an empty Registry.
func NewRegistry(fs afero.Fs, app AppContext, opts Options) *Registry {
	if opts.DirMode == 0 {
		opts.DirMode = 0o777
	}
	return &Registry{fs: fs, app: app, opts: opts, entries: map[string]*entry{}}
}

// Plan returns the PathTree of schema.Entity, building it on first use.
// A failed build is not cached.
func (r *Registry) Plan(ctx context.Context, schema model.EntitySchema) (*model.PathTree, error) {
	e := r.entry(schema.Entity)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tree != nil {
		return e.tree, nil
	}

	tree, err := r.build(ctx, schema)
	if err != nil {
		return nil, err
	}
	// A Reset during the build orphans e; the tree still answers this call but is not cached.
	r.mu.Lock()
	current := r.entries[schema.Entity] == e
	r.mu.Unlock()
	if current {
		e.tree = tree
	}
	return tree, nil
}

// Lookup returns an already built tree.
func (r *Registry) Lookup(entity string) (*model.PathTree, bool) {
	r.mu.Lock()
	e, ok := r.entries[entity]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tree, e.tree != nil
}

// Reset forgets the tree of entity; the next Plan rebuilds it.
func (r *Registry) Reset(entity string) {
	r.mu.Lock()
	delete(r.entries, entity)
	r.mu.Unlock()
}

func (r *Registry) entry(entity string) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[entity]
	if !ok {
		e = &entry{}
		r.entries[entity] = e
	}
	return e
}

func (r *Registry) build(ctx context.Context, schema model.EntitySchema) (*model.PathTree, error) {
	if err := checkSchema(schema); err != nil {
		return nil, err
	}

	imagesFolder := "/"
	if r.opts.ImagesFolder != "" {
		imagesFolder += strings.Trim(r.opts.ImagesFolder, "/") + "/"
	}

	aliasDir, err := r.app.ResolveAlias("@" + r.opts.RootAlias)
	if err != nil {
		return nil, err
	}
	storageRoot := strings.TrimRight(aliasDir, "/") + imagesFolder
	if err := r.fs.MkdirAll(storageRoot, r.opts.DirMode); err != nil {
		return nil, model.IOError("mkdir", storageRoot, err)
	}

	var urlRoot string
	if r.app.IsOwner() {
		urlRoot = r.app.BaseURL() + "/" + r.opts.RootAlias
	} else {
		urlRoot, err = r.app.PublishedURL(ctx, aliasDir)
		if err != nil {
			return nil, fmt.Errorf("publish %s: %w", aliasDir, err)
		}
		urlRoot = strings.TrimRight(urlRoot, "/")
	}

	folder := schema.Folder
	if folder == "" {
		folder = model.ModelFolder(schema.Entity)
	}

	tree := &model.PathTree{
		Entity:        schema.Entity,
		StorageRoot:   storageRoot,
		PublicURLRoot: urlRoot + imagesFolder,
		PublishedDir:  aliasDir,
		Attributes:    make([]model.AttributePaths, 0, len(schema.Attributes)),
	}
	for _, a := range schema.Attributes {
		ap := model.AttributePaths{
			Attribute: a.Attribute,
			Dir:       attributeDir(folder, a),
			Variants:  make([]model.VariantPaths, 0, len(a.Variants)),
		}
		for _, v := range a.Variants {
			name := v.KeyName()
			vp := model.VariantPaths{
				Key:       v.Key,
				URLSuffix: model.UpperFirst(name),
				Policy:    v.Policy.WithDefaults(),
			}
			if name != "" {
				vp.Dir = name + "/"
			}
			ap.Variants = append(ap.Variants, vp)
		}
		tree.Attributes = append(tree.Attributes, ap)
	}
	return tree, nil
}

func attributeDir(folder string, a model.AttributeSchema) string {
	if a.SaveFolder != "" {
		return strings.TrimRight(a.SaveFolder, "/") + "/"
	}
	return folder + "/" + a.Attribute + "/"
}

func checkSchema(s model.EntitySchema) error {
	if s.Entity == "" {
		return model.ConfigError("plan paths", fmt.Errorf("entity type is required"))
	}
	if len(s.Attributes) == 0 {
		return model.ConfigError("plan paths "+s.Entity, fmt.Errorf("no image attributes declared"))
	}
	for _, a := range s.Attributes {
		if a.Attribute == "" {
			return model.ConfigError("plan paths "+s.Entity, fmt.Errorf("attribute name is required"))
		}
		if len(a.Variants) == 0 {
			return model.ConfigError("plan paths "+s.Entity, fmt.Errorf("attribute %q declares no variants", a.Attribute))
		}
	}
	return nil
}
