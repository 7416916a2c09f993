package publish

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"

	"imagevariants/internal/model"
	"imagevariants/internal/storage"
)

// Publisher makes a local directory servable for an application that does not own it
// and returns the base URL of the published copy, without a trailing slash.
type Publisher interface {
	Publish(ctx context.Context, dir string) (string, error)
}

// Symlink publishes a directory by linking it into a web assets directory under a
// digest of its path, the way asset managers publish vendor directories.
type Symlink struct {
	fs        afero.Fs
	assetsDir string
	assetsURL string
}

var _ Publisher = (*Symlink)(nil)

// NewSymlink returns a Symlink publisher. fs must support symlinks (afero.OsFs does).
func NewSymlink(fs afero.Fs, assetsDir, assetsURL string) *Symlink {
	return &Symlink{fs: fs, assetsDir: assetsDir, assetsURL: strings.TrimRight(assetsURL, "/")}
}

// Digest is the published directory name of dir.
func Digest(dir string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(filepath.Clean(dir)))
}

func (s *Symlink) Publish(_ context.Context, dir string) (string, error) {
	digest := Digest(dir)
	target := filepath.Join(s.assetsDir, digest)
	url := s.assetsURL + "/" + digest

	if _, err := lstat(s.fs, target); err == nil {
		return url, nil
	}

	linker, ok := s.fs.(afero.Linker)
	if !ok {
		return "", model.IOError("publish", dir, errors.New("filesystem does not support symlinks"))
	}
	if err := s.fs.MkdirAll(s.assetsDir, 0o755); err != nil {
		return "", model.IOError("mkdir", s.assetsDir, err)
	}
	if err := linker.SymlinkIfPossible(dir, target); err != nil {
		return "", model.IOError("symlink", target, err)
	}
	return url, nil
}

func lstat(fs afero.Fs, path string) (os.FileInfo, error) {
	if l, ok := fs.(afero.Lstater); ok {
		fi, _, err := l.LstatIfPossible(path)
		return fi, err
	}
	return fs.Stat(path)
}

// Bucket publishes through the object-store mirror: the directory is served from the bucket.
type Bucket struct {
	store storage.Storage
}

var _ Publisher = (*Bucket)(nil)

func NewBucket(store storage.Storage) *Bucket {
	return &Bucket{store: store}
}

func (b *Bucket) Publish(_ context.Context, _ string) (string, error) {
	return strings.TrimRight(b.store.PublicURL(""), "/"), nil
}
