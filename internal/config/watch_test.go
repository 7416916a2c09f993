package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagevariants/internal/model"
)

const watchedCatalog = `entities:
  - entity: shop.Product
    attributes:
      - attribute: photo
        variants:
          - key: thumb
            size: {fixed_width: 150}
`

func TestSchemaWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schemas.yaml")
	require.NoError(t, os.WriteFile(path, []byte(watchedCatalog), 0o644))

	got := make(chan []model.EntitySchema, 4)
	w, err := WatchSchemas(path, func(s []model.EntitySchema) { got <- s })
	require.NoError(t, err)
	w.debounce = 10 * time.Millisecond
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	updated := watchedCatalog + `  - entity: blog.Author
    attributes:
      - attribute: avatar
        variants:
          - key: small
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	select {
	case schemas := <-got:
		require.Len(t, schemas, 2)
		assert.Equal(t, "author", schemas[1].Folder)
	case <-time.After(5 * time.Second):
		t.Fatal("schema change was not delivered")
	}
}

func TestSchemaWatcher_InvalidFileKeepsCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schemas.yaml")
	require.NoError(t, os.WriteFile(path, []byte("entities:\n  - entity: shop.Product\n"), 0o644))

	called := false
	w, err := WatchSchemas(path, func([]model.EntitySchema) { called = true })
	require.NoError(t, err)
	defer w.Close()

	w.reload()
	assert.False(t, called)
}

func TestWatchSchemas_MissingDirectory(t *testing.T) {
	_, err := WatchSchemas(filepath.Join(t.TempDir(), "missing", "schemas.yaml"), func([]model.EntitySchema) {})
	assert.Error(t, err)
}
