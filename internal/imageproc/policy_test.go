package imageproc

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"imagevariants/internal/model"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name       string
		policy     model.SizePolicy
		srcW, srcH int
		wantW      int
		wantH      int
	}{
		{
			name:   "both fixed uses height for both axes",
			policy: model.SizePolicy{FixedWidth: 100, FixedHeight: 200},
			srcW:   640, srcH: 480,
			wantW: 200, wantH: 200,
		},
		{
			name:   "fixed height derives width",
			policy: model.SizePolicy{FixedHeight: 100},
			srcW:   300, srcH: 200,
			wantW: 150, wantH: 100,
		},
		{
			name:   "fixed height caps width at max",
			policy: model.SizePolicy{MaxWidth: 120, FixedHeight: 100},
			srcW:   300, srcH: 200,
			wantW: 120, wantH: 100,
		},
		{
			name:   "fixed width derives height",
			policy: model.SizePolicy{FixedWidth: 150},
			srcW:   3000, srcH: 2000,
			wantW: 150, wantH: 100,
		},
		{
			name:   "fixed width caps height at max",
			policy: model.SizePolicy{MaxHeight: 50, FixedWidth: 150},
			srcW:   3000, srcH: 2000,
			wantW: 150, wantH: 50,
		},
		{
			name:   "fits within max keeps native size",
			policy: model.SizePolicy{MaxWidth: 1600, MaxHeight: 1600},
			srcW:   800, srcH: 600,
			wantW: 800, wantH: 600,
		},
		{
			name:   "wide source binds on width",
			policy: model.SizePolicy{MaxWidth: 1600, MaxHeight: 1600},
			srcW:   3000, srcH: 2000,
			wantW: 1600, wantH: 1066,
		},
		{
			name:   "tall source binds on height",
			policy: model.SizePolicy{MaxWidth: 1000, MaxHeight: 500},
			srcW:   800, srcH: 1600,
			wantW: 250, wantH: 500,
		},
		{
			name:   "unset max uses defaults",
			policy: model.SizePolicy{},
			srcW:   3200, srcH: 1600,
			wantW: 1600, wantH: 800,
		},
		{
			name:   "degenerate height clamps to one pixel",
			policy: model.SizePolicy{FixedWidth: 10},
			srcW:   3000, srcH: 2,
			wantW: 10, wantH: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := Resolve(tt.policy, tt.srcW, tt.srcH)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

func TestResolve_NoFixedWithinBoundsIsNoop(t *testing.T) {
	policy := model.SizePolicy{MaxWidth: 400, MaxHeight: 300}
	for w := 1; w <= 400; w += 37 {
		for h := 1; h <= 300; h += 29 {
			gotW, gotH := Resolve(policy, w, h)
			assert.Equal(t, w, gotW)
			assert.Equal(t, h, gotH)
		}
	}
}

func TestResolve_NoFixedOversizedStaysWithinBounds(t *testing.T) {
	policy := model.SizePolicy{MaxWidth: 400, MaxHeight: 300}
	for w := 100; w <= 5000; w += 173 {
		for h := 100; h <= 5000; h += 191 {
			if w <= 400 && h <= 300 {
				continue
			}
			gotW, gotH := Resolve(policy, w, h)
			assert.LessOrEqual(t, gotW, 400)
			assert.LessOrEqual(t, gotH, 300)

			// aspect ratio holds up to integer truncation of the derived axis
			ratio := float64(w) / float64(h)
			assert.InDelta(t, float64(gotH)*ratio, float64(gotW), 2*ratio+1)
		}
	}
}

func TestResolve_FixedHeightRespectsMaxWidth(t *testing.T) {
	policy := model.SizePolicy{MaxWidth: 500, MaxHeight: 500, FixedHeight: 200}
	for w := 50; w <= 4000; w += 97 {
		for h := 50; h <= 4000; h += 89 {
			gotW, gotH := Resolve(policy, w, h)
			assert.Equal(t, 200, gotH)
			assert.LessOrEqual(t, gotW, 500)
		}
	}
}
