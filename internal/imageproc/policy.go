package imageproc

import "imagevariants/internal/model"

// Resolve computes the target box of an image of srcW x srcH pixels under policy.
// Unset max dimensions fall back to the model defaults. Results are never smaller than 1px.
//
// When both fixed dimensions are set the fixed height is used for both axes; stored variants
// were produced that way and existing files depend on it.
func Resolve(policy model.SizePolicy, srcW, srcH int) (width, height int) {
	p := policy.WithDefaults()
	if srcW <= 0 || srcH <= 0 {
		return atLeastOne(srcW), atLeastOne(srcH)
	}

	switch {
	case p.FixedWidth > 0 && p.FixedHeight > 0:
		width, height = p.FixedHeight, p.FixedHeight
	case p.FixedHeight > 0:
		height = p.FixedHeight
		width = min(srcW*height/srcH, p.MaxWidth)
	case p.FixedWidth > 0:
		width = p.FixedWidth
		height = min(srcH*width/srcW, p.MaxHeight)
	default:
		width, height = srcW, srcH
		if srcH > p.MaxHeight || srcW > p.MaxWidth {
			hRatio := float64(srcH) / float64(p.MaxHeight)
			wRatio := float64(srcW) / float64(p.MaxWidth)
			if hRatio > wRatio {
				height = p.MaxHeight
				width = int(float64(srcW) / hRatio)
			} else {
				width = p.MaxWidth
				height = int(float64(srcH) / wRatio)
			}
		}
	}
	return atLeastOne(width), atLeastOne(height)
}

func atLeastOne(v int) int {
	if v < 1 {
		return 1
	}
	return v
}
