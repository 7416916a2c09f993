package publish

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagevariants/internal/model"
	storeMocks "imagevariants/internal/storage/mocks"
)

func TestSymlink_Publish(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	content := filepath.Join(root, "content")
	assets := filepath.Join(root, "web", "assets")
	require.NoError(t, os.MkdirAll(content, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(content, "a.txt"), []byte("x"), 0o644))

	p := NewSymlink(afero.NewOsFs(), assets, "http://front.local/assets/")

	url, err := p.Publish(ctx, content)
	require.NoError(t, err)
	assert.Equal(t, "http://front.local/assets/"+Digest(content), url)

	b, err := os.ReadFile(filepath.Join(assets, Digest(content), "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "x", string(b))

	again, err := p.Publish(ctx, content)
	require.NoError(t, err)
	assert.Equal(t, url, again)
}

func TestSymlink_PublishWithoutLinker(t *testing.T) {
	p := NewSymlink(afero.NewMemMapFs(), "/assets", "/assets")
	_, err := p.Publish(context.Background(), "/content")
	assert.ErrorIs(t, err, model.ErrIO)
}

func TestDigest_Stable(t *testing.T) {
	assert.Equal(t, Digest("/srv/content"), Digest("/srv/content/"))
	assert.NotEqual(t, Digest("/srv/content"), Digest("/srv/other"))
	assert.Len(t, Digest("/srv/content"), 16)
}

func TestBucket_Publish(t *testing.T) {
	store := new(storeMocks.MockStorage)
	store.On("PublicURL", "").Return("http://minio:9000/images/content/")

	url, err := NewBucket(store).Publish(context.Background(), "/srv/content")
	require.NoError(t, err)
	assert.Equal(t, "http://minio:9000/images/content", url)
	store.AssertExpectations(t)
}
