package upload

import (
	"fmt"
	"io"
	"mime/multipart"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"

	"imagevariants/internal/model"
)

// Provider returns the file uploaded for an attribute of a record, or nil when there is none.
type Provider interface {
	UploadedFile(rec *model.Record, attribute string) (model.FileHandle, error)
}

// None is a Provider without uploads.
type None struct{}

func (None) UploadedFile(*model.Record, string) (model.FileHandle, error) { return nil, nil }

// Form serves uploads from a parsed multipart form; the part name is the attribute name.
type Form struct {
	form *multipart.Form
}

var _ Provider = (*Form)(nil)

func NewForm(form *multipart.Form) *Form {
	return &Form{form: form}
}

// UploadedFile returns the first part named attribute. Parts whose content is not an image
// are rejected with model.ErrImageDecode.
func (f *Form) UploadedFile(_ *model.Record, attribute string) (model.FileHandle, error) {
	if f.form == nil {
		return nil, nil
	}
	parts := f.form.File[attribute]
	if len(parts) == 0 || parts[0].Size == 0 {
		return nil, nil
	}
	fh := parts[0]

	src, err := fh.Open()
	if err != nil {
		return nil, model.IOError("open upload", fh.Filename, err)
	}
	defer src.Close()

	mt, err := mimetype.DetectReader(src)
	if err != nil {
		return nil, model.IOError("sniff upload", fh.Filename, err)
	}
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, model.DecodeError("accept upload", fh.Filename, fmt.Errorf("unsupported content type %s", mt.String()))
	}
	return &multipartFile{header: fh}, nil
}

type multipartFile struct {
	header *multipart.FileHeader
}

func (m *multipartFile) BaseName() string  { return baseName(m.header.Filename) }
func (m *multipartFile) Extension() string { return extension(m.header.Filename) }

func (m *multipartFile) SaveAs(fs afero.Fs, dst string) error {
	src, err := m.header.Open()
	if err != nil {
		return model.IOError("open upload", m.header.Filename, err)
	}
	defer src.Close()
	return copyTo(fs, dst, src)
}

// Files serves uploads from files already present on a filesystem, keyed by attribute.
// Used by tooling that imports images from disk.
type Files struct {
	fs    afero.Fs
	paths map[string]string
}

var _ Provider = (*Files)(nil)

func NewFiles(fs afero.Fs, paths map[string]string) *Files {
	return &Files{fs: fs, paths: paths}
}

func (f *Files) UploadedFile(_ *model.Record, attribute string) (model.FileHandle, error) {
	p, ok := f.paths[attribute]
	if !ok || p == "" {
		return nil, nil
	}
	return &localFile{fs: f.fs, path: p}, nil
}

type localFile struct {
	fs   afero.Fs
	path string
}

func (l *localFile) BaseName() string  { return baseName(l.path) }
func (l *localFile) Extension() string { return extension(l.path) }

func (l *localFile) SaveAs(fs afero.Fs, dst string) error {
	src, err := l.fs.Open(l.path)
	if err != nil {
		return model.IOError("open upload", l.path, err)
	}
	defer src.Close()
	return copyTo(fs, dst, src)
}

func copyTo(fs afero.Fs, dstPath string, src io.Reader) error {
	dst, err := fs.Create(dstPath)
	if err != nil {
		return model.IOError("create", dstPath, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = fs.Remove(dstPath)
		return model.IOError("copy", dstPath, err)
	}
	if err := dst.Close(); err != nil {
		return model.IOError("close", dstPath, err)
	}
	return nil
}

// Browsers on Windows may send full client paths.
func baseName(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	return strings.TrimSuffix(name, path.Ext(name))
}

func extension(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	return strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
}
