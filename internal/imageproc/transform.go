package imageproc

import (
	"context"

	"github.com/disintegration/imaging"
	"github.com/spf13/afero"

	"imagevariants/internal/model"
)

// DefaultJPEGQuality is used when the transformer is built with a quality outside 1..100.
const DefaultJPEGQuality = 90

// Resizer produces a resized copy of an image. Implemented by Transformer.
type Resizer interface {
	Transform(ctx context.Context, src string, policy model.SizePolicy, dst string) error
}

// Transformer decodes, resizes and re-encodes images on an afero filesystem.
// The output format follows the destination extension; it is safe for concurrent use.
type Transformer struct {
	fs      afero.Fs
	quality int
}

var _ Resizer = (*Transformer)(nil)

// NewTransformer returns a Transformer writing JPEGs with the given quality.
func NewTransformer(fs afero.Fs, jpegQuality int) *Transformer {
	if jpegQuality < 1 || jpegQuality > 100 {
		jpegQuality = DefaultJPEGQuality
	}
	return &Transformer{fs: fs, quality: jpegQuality}
}

// Transform writes src resized under policy to dst. dst may equal src.
func (t *Transformer) Transform(ctx context.Context, src string, policy model.SizePolicy, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	format, err := imaging.FormatFromFilename(dst)
	if err != nil {
		return model.DecodeError("detect format", dst, err)
	}

	in, err := t.fs.Open(src)
	if err != nil {
		return model.IOError("open", src, err)
	}
	img, err := imaging.Decode(in, imaging.AutoOrientation(true))
	_ = in.Close()
	if err != nil {
		return model.DecodeError("decode", src, err)
	}

	b := img.Bounds()
	w, h := Resolve(policy, b.Dx(), b.Dy())
	if w != b.Dx() || h != b.Dy() {
		img = imaging.Resize(img, w, h, imaging.Lanczos)
	}

	out, err := t.fs.Create(dst)
	if err != nil {
		return model.IOError("create", dst, err)
	}
	if err := imaging.Encode(out, img, format, imaging.JPEGQuality(t.quality)); err != nil {
		_ = out.Close()
		_ = t.fs.Remove(dst)
		return model.IOError("encode", dst, err)
	}
	if err := out.Close(); err != nil {
		return model.IOError("close", dst, err)
	}
	return nil
}

// CheckFormat reports whether files with extension ext can be re-encoded.
// Anything imaging cannot write (webp, svg, ...) is model.ErrImageDecode.
func CheckFormat(ext string) error {
	if _, err := imaging.FormatFromExtension(ext); err != nil {
		return model.DecodeError("detect format", "."+ext, err)
	}
	return nil
}

// Dimensions reports the pixel size of the image at path.
func Dimensions(fs afero.Fs, path string) (int, int, error) {
	f, err := fs.Open(path)
	if err != nil {
		return 0, 0, model.IOError("open", path, err)
	}
	defer f.Close()

	img, err := imaging.Decode(f)
	if err != nil {
		return 0, 0, model.DecodeError("decode", path, err)
	}
	return img.Bounds().Dx(), img.Bounds().Dy(), nil
}
