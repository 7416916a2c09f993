package lifecycle

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gofiber/fiber/v2/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"imagevariants/internal/imageproc"
	"imagevariants/internal/model"
	"imagevariants/internal/storage"
)

const tracerName = "imagevariants/internal/lifecycle"

// Target is a record whose image attributes are managed: field access plus pending uploads.
type Target interface {
	model.FieldAccessor
	model.UploadSource
}

// Options configure a Manager. Every field is optional.
type Options struct {
	// Mirror receives a copy of every written variant and loses every deleted one.
	Mirror storage.Storage
	// Registerer receives the lifecycle metrics; nil keeps them unregistered.
	Registerer prometheus.Registerer
	Tracer     trace.Tracer
	DirMode    os.FileMode
	Now        func() time.Time
}

// Manager keeps the variant files of image attributes consistent with the attribute values.
// Saves of the same record and attribute must be serialized by the caller.
type Manager struct {
	fs      afero.Fs
	resizer imageproc.Resizer
	mirror  storage.Storage
	metrics *metrics
	tracer  trace.Tracer
	dirMode os.FileMode
	now     func() time.Time
}

// NewManager returns a Manager writing to fs through resizer.
func NewManager(fs afero.Fs, resizer imageproc.Resizer, opts Options) (*Manager, error) {
	m, err := newMetrics(opts.Registerer)
	if err != nil {
		return nil, err
	}
	mgr := &Manager{
		fs:      fs,
		resizer: resizer,
		mirror:  opts.Mirror,
		metrics: m,
		tracer:  opts.Tracer,
		dirMode: opts.DirMode,
		now:     opts.Now,
	}
	if mgr.tracer == nil {
		mgr.tracer = otel.Tracer(tracerName)
	}
	if mgr.dirMode == 0 {
		mgr.dirMode = 0o777
	}
	if mgr.now == nil {
		mgr.now = time.Now
	}
	return mgr, nil
}

// StoredFilename is the name shared by every variant of one upload:
// the md5 of the unix time and the original base name, plus the original extension.
func StoredFilename(at time.Time, baseName, ext string) string {
	sum := md5.Sum([]byte(strconv.FormatInt(at.Unix(), 10) + baseName))
	return hex.EncodeToString(sum[:]) + "." + ext
}

// Save runs before a record is written. Attributes without an upload keep their previous
// value; attributes with one get a new stored filename and a freshly resized file per variant,
// replacing the files of the previous value. The first failure aborts the save.
func (m *Manager) Save(ctx context.Context, tree *model.PathTree, rec Target) error {
	for i := range tree.Attributes {
		ap := &tree.Attributes[i]
		h := rec.Upload(ap.Attribute)
		if h == nil {
			rec.SetField(ap.Attribute, rec.PreviousField(ap.Attribute))
			continue
		}
		if err := m.replace(ctx, tree, ap, rec, h); err != nil {
			rec.SetField(ap.Attribute, "")
			return err
		}
	}
	return nil
}

// Delete runs before a record is removed: it removes the files of every stored variant.
// No directory or file is created.
func (m *Manager) Delete(ctx context.Context, tree *model.PathTree, rec model.FieldAccessor) error {
	for i := range tree.Attributes {
		ap := &tree.Attributes[i]
		name := rec.PreviousField(ap.Attribute)
		if name == "" {
			continue
		}
		ctx, span := m.tracer.Start(ctx, "lifecycle.Delete", trace.WithAttributes(
			attribute.String("image.entity", tree.Entity),
			attribute.String("image.attribute", ap.Attribute),
		))
		err := m.removeAll(ctx, tree, ap, name)
		endSpan(span, err)
		if err != nil {
			return err
		}
		log.Infof("[Variants] removed %s.%s %s", tree.Entity, ap.Attribute, name)
	}
	return nil
}

// Discard removes the files written by a Save whose record could not be persisted.
// Files of the previous value deleted by that Save are not restored.
func (m *Manager) Discard(ctx context.Context, tree *model.PathTree, rec model.FieldAccessor) error {
	var errs []error
	for i := range tree.Attributes {
		ap := &tree.Attributes[i]
		name := rec.Field(ap.Attribute)
		if name == "" || name == rec.PreviousField(ap.Attribute) {
			continue
		}
		if err := m.removeAll(ctx, tree, ap, name); err != nil {
			errs = append(errs, err)
			continue
		}
		log.Warnf("[Variants] discarded %s.%s %s", tree.Entity, ap.Attribute, name)
	}
	return errors.Join(errs...)
}

func (m *Manager) replace(ctx context.Context, tree *model.PathTree, ap *model.AttributePaths, rec Target, h model.FileHandle) (err error) {
	ctx, span := m.tracer.Start(ctx, "lifecycle.Replace", trace.WithAttributes(
		attribute.String("image.entity", tree.Entity),
		attribute.String("image.attribute", ap.Attribute),
		attribute.Int("image.variants", len(ap.Variants)),
	))
	defer func() { endSpan(span, err) }()

	if err := imageproc.CheckFormat(h.Extension()); err != nil {
		return err
	}
	name, tmp, err := m.reserve(tree, ap, h)
	if err != nil {
		return err
	}
	old := rec.PreviousField(ap.Attribute)

	defer func() {
		if rmErr := m.removeIfExists(tmp); rmErr != nil && err == nil {
			err = rmErr
		}
	}()

	// The upload is copied and decoded before any file of the previous value is touched.
	if err := h.SaveAs(m.fs, tmp); err != nil {
		return err
	}
	if _, _, err := imageproc.Dimensions(m.fs, tmp); err != nil {
		return err
	}

	for _, v := range ap.Variants {
		dir := tree.StorageRoot + ap.Dir + v.Dir
		if old != "" {
			if err := m.removeVariant(ctx, tree, ap, v, dir+old); err != nil {
				return err
			}
		}
		if err := m.fs.MkdirAll(dir, m.dirMode); err != nil {
			return model.IOError("mkdir", dir, err)
		}

		start := time.Now()
		dst := dir + name
		if err := m.resizer.Transform(ctx, tmp, v.Policy, dst); err != nil {
			log.Errorf("[Variants] %s.%s variant %q failed: %v", tree.Entity, ap.Attribute, v.Key, err)
			return err
		}
		if err := m.upload(ctx, tree, dst); err != nil {
			return err
		}
		labels := prometheus.Labels{"entity": tree.Entity, "attribute": ap.Attribute, "variant": v.Key}
		m.metrics.duration.With(labels).Observe(time.Since(start).Seconds())
		m.metrics.written.With(labels).Inc()
	}

	rec.SetField(ap.Attribute, name)
	log.Infof("[Variants] stored %s.%s as %s (%d variants)", tree.Entity, ap.Attribute, name, len(ap.Variants))
	return nil
}

// maxNameAttempts bounds the search for a free stored filename.
const maxNameAttempts = 64

// reserve picks the stored filename of an upload and claims its temporary source exclusively.
// A name held by a stored variant or by a concurrent save moves the timestamp forward a second.
func (m *Manager) reserve(tree *model.PathTree, ap *model.AttributePaths, h model.FileHandle) (string, string, error) {
	at := m.now()
	for i := range maxNameAttempts {
		name := StoredFilename(at.Add(time.Duration(i)*time.Second), h.BaseName(), h.Extension())
		taken, err := m.nameTaken(tree, ap, name)
		if err != nil {
			return "", "", err
		}
		if taken {
			continue
		}
		tmp := tree.StorageRoot + name
		f, err := m.fs.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o666)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", "", model.IOError("create", tmp, err)
		}
		if err := f.Close(); err != nil {
			return "", "", model.IOError("close", tmp, err)
		}
		return name, tmp, nil
	}
	return "", "", model.IOError("reserve", tree.StorageRoot+ap.Dir, errors.New("no free stored filename"))
}

func (m *Manager) nameTaken(tree *model.PathTree, ap *model.AttributePaths, name string) (bool, error) {
	for _, v := range ap.Variants {
		p := tree.StorageRoot + ap.Dir + v.Dir + name
		exists, err := afero.Exists(m.fs, p)
		if err != nil {
			return false, model.IOError("stat", p, err)
		}
		if exists {
			return true, nil
		}
	}
	return false, nil
}

func (m *Manager) removeAll(ctx context.Context, tree *model.PathTree, ap *model.AttributePaths, name string) error {
	for _, v := range ap.Variants {
		if err := m.removeVariant(ctx, tree, ap, v, tree.StorageRoot+ap.Dir+v.Dir+name); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) removeVariant(ctx context.Context, tree *model.PathTree, ap *model.AttributePaths, v model.VariantPaths, p string) error {
	exists, err := afero.Exists(m.fs, p)
	if err != nil {
		return model.IOError("stat", p, err)
	}
	if !exists {
		return nil
	}
	if err := m.fs.Remove(p); err != nil {
		return model.IOError("remove", p, err)
	}
	if m.mirror != nil {
		key := mirrorKey(tree, p)
		if err := m.mirror.Delete(ctx, key); err != nil {
			return model.IOError("mirror delete", key, err)
		}
	}
	m.metrics.deleted.With(prometheus.Labels{"entity": tree.Entity, "attribute": ap.Attribute, "variant": v.Key}).Inc()
	return nil
}

func (m *Manager) removeIfExists(p string) error {
	exists, err := afero.Exists(m.fs, p)
	if err != nil {
		return model.IOError("stat", p, err)
	}
	if !exists {
		return nil
	}
	if err := m.fs.Remove(p); err != nil {
		return model.IOError("remove", p, err)
	}
	return nil
}

func (m *Manager) upload(ctx context.Context, tree *model.PathTree, p string) error {
	if m.mirror == nil {
		return nil
	}
	f, err := m.fs.Open(p)
	if err != nil {
		return model.IOError("open", p, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return model.IOError("stat", p, err)
	}
	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return model.IOError("sniff", p, err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		return model.IOError("seek", p, err)
	}

	key := mirrorKey(tree, p)
	if _, err := m.mirror.Put(ctx, key, f, storage.PutObjectOptions{
		Size:        fi.Size(),
		ContentType: mt.String(),
	}); err != nil {
		return model.IOError("mirror put", key, err)
	}
	return nil
}

// mirrorKey is the object key of a local file: its path below the published directory,
// so bucket URLs line up with the published URL root.
func mirrorKey(tree *model.PathTree, p string) string {
	return strings.TrimPrefix(strings.TrimPrefix(p, strings.TrimRight(tree.PublishedDir, "/")), "/")
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
