package pathplan

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagevariants/internal/model"
)

type fakeApp struct {
	owner     bool
	published string
	publishes atomic.Int32
}

func (a *fakeApp) ResolveAlias(alias string) (string, error) {
	if alias != "@content" {
		return "", model.ConfigError("resolve alias", errors.New("unknown alias"))
	}
	return "/srv/content", nil
}

func (a *fakeApp) IsOwner() bool   { return a.owner }
func (a *fakeApp) BaseURL() string { return "http://shop.local" }

func (a *fakeApp) PublishedURL(_ context.Context, dir string) (string, error) {
	a.publishes.Add(1)
	return a.published, nil
}

type countingFs struct {
	afero.Fs
	mkdirs atomic.Int32
}

func (c *countingFs) MkdirAll(path string, perm os.FileMode) error {
	c.mkdirs.Add(1)
	return c.Fs.MkdirAll(path, perm)
}

func productSchema() model.EntitySchema {
	return model.EntitySchema{
		Entity: "shop.Product",
		Attributes: []model.AttributeSchema{
			{
				Attribute: "Photo",
				Variants: []model.VariantSchema{
					{Key: "thumb", Policy: model.SizePolicy{FixedWidth: 150}},
					{Key: "full", Name: "large", Policy: model.SizePolicy{MaxWidth: 1200, MaxHeight: 900}},
				},
			},
			{
				Attribute:  "banner",
				SaveFolder: "banners",
				Variants:   []model.VariantSchema{{Key: ""}},
			},
		},
	}
}

var opts = Options{RootAlias: "content", ImagesFolder: "images", DirMode: 0o777}

func TestRegistry_PlanOwner(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := NewRegistry(fs, &fakeApp{owner: true}, opts)

	tree, err := r.Plan(context.Background(), productSchema())
	require.NoError(t, err)

	assert.Equal(t, "shop.Product", tree.Entity)
	assert.Equal(t, "/srv/content/images/", tree.StorageRoot)
	assert.Equal(t, "http://shop.local/content/images/", tree.PublicURLRoot)
	assert.Equal(t, "/srv/content", tree.PublishedDir)

	require.Len(t, tree.Attributes, 2)
	photo := tree.Attributes[0]
	assert.Equal(t, "product/Photo/", photo.Dir)
	require.Len(t, photo.Variants, 2)
	assert.Equal(t, model.VariantPaths{
		Key: "thumb", Dir: "thumb/", URLSuffix: "Thumb",
		Policy: model.SizePolicy{MaxWidth: 1600, MaxHeight: 1600, FixedWidth: 150},
	}, photo.Variants[0])
	assert.Equal(t, "large/", photo.Variants[1].Dir)
	assert.Equal(t, "Large", photo.Variants[1].URLSuffix)
	assert.Equal(t, "photoThumb", model.URLKey(photo.Attribute, photo.Variants[0]))

	banner := tree.Attributes[1]
	assert.Equal(t, "banners/", banner.Dir)
	assert.Equal(t, "", banner.Variants[0].Dir)
	assert.Equal(t, "banner", model.URLKey(banner.Attribute, banner.Variants[0]))

	exists, err := afero.DirExists(fs, "/srv/content/images")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRegistry_PlanNonOwnerPublishes(t *testing.T) {
	app := &fakeApp{published: "http://admin.local/assets/5f1e/"}
	r := NewRegistry(afero.NewMemMapFs(), app, opts)

	tree, err := r.Plan(context.Background(), productSchema())
	require.NoError(t, err)
	assert.Equal(t, "http://admin.local/assets/5f1e/images/", tree.PublicURLRoot)
	assert.Equal(t, int32(1), app.publishes.Load())
}

func TestRegistry_PlanIsMemoized(t *testing.T) {
	fs := &countingFs{Fs: afero.NewMemMapFs()}
	app := &fakeApp{published: "http://admin.local/assets/x"}
	r := NewRegistry(fs, app, opts)

	var wg sync.WaitGroup
	trees := make([]*model.PathTree, 16)
	for i := range trees {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tree, err := r.Plan(context.Background(), productSchema())
			assert.NoError(t, err)
			trees[i] = tree
		}(i)
	}
	wg.Wait()

	for _, tree := range trees {
		assert.Same(t, trees[0], tree)
	}
	assert.Equal(t, int32(1), fs.mkdirs.Load())
	assert.Equal(t, int32(1), app.publishes.Load())

	cached, ok := r.Lookup("shop.Product")
	assert.True(t, ok)
	assert.Same(t, trees[0], cached)
}

func TestRegistry_Reset(t *testing.T) {
	fs := &countingFs{Fs: afero.NewMemMapFs()}
	r := NewRegistry(fs, &fakeApp{owner: true}, opts)

	first, err := r.Plan(context.Background(), productSchema())
	require.NoError(t, err)
	r.Reset("shop.Product")

	_, ok := r.Lookup("shop.Product")
	assert.False(t, ok)

	second, err := r.Plan(context.Background(), productSchema())
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(2), fs.mkdirs.Load())
}

func TestRegistry_PlanErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("attribute without variants", func(t *testing.T) {
		r := NewRegistry(afero.NewMemMapFs(), &fakeApp{owner: true}, opts)
		s := productSchema()
		s.Attributes[0].Variants = nil

		_, err := r.Plan(ctx, s)
		assert.ErrorIs(t, err, model.ErrConfiguration)
	})

	t.Run("unknown alias", func(t *testing.T) {
		r := NewRegistry(afero.NewMemMapFs(), &fakeApp{owner: true}, Options{RootAlias: "missing"})
		_, err := r.Plan(ctx, productSchema())
		assert.ErrorIs(t, err, model.ErrConfiguration)
	})

	t.Run("mkdir failure is not cached", func(t *testing.T) {
		base := afero.NewMemMapFs()
		r := NewRegistry(afero.NewReadOnlyFs(base), &fakeApp{owner: true}, opts)

		_, err := r.Plan(ctx, productSchema())
		assert.ErrorIs(t, err, model.ErrIO)
		_, ok := r.Lookup("shop.Product")
		assert.False(t, ok)

		r.fs = base
		tree, err := r.Plan(ctx, productSchema())
		require.NoError(t, err)
		assert.NotNil(t, tree)
	})
}

type resettingApp struct {
	fakeApp
	reset func()
}

func (a *resettingApp) ResolveAlias(alias string) (string, error) {
	if a.reset != nil {
		a.reset()
		a.reset = nil
	}
	return a.fakeApp.ResolveAlias(alias)
}

func TestRegistry_ResetDuringPlanIsNotCached(t *testing.T) {
	app := &resettingApp{fakeApp: fakeApp{owner: true}}
	r := NewRegistry(afero.NewMemMapFs(), app, opts)
	app.reset = func() { r.Reset("shop.Product") }

	tree, err := r.Plan(context.Background(), productSchema())
	require.NoError(t, err)
	require.NotNil(t, tree)

	_, ok := r.Lookup("shop.Product")
	assert.False(t, ok, "a tree built across a reset must not be cached")

	again, err := r.Plan(context.Background(), productSchema())
	require.NoError(t, err)
	assert.NotSame(t, tree, again)

	cached, ok := r.Lookup("shop.Product")
	assert.True(t, ok)
	assert.Same(t, again, cached)
}
