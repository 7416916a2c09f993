package model

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModelFolder(t *testing.T) {
	tests := []struct {
		entity string
		want   string
	}{
		{"Product", "product"},
		{"shop.ProductImage", "productImage"},
		{`app\models\UserProfile`, "userProfile"},
		{"catalog/Brand", "brand"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.entity, func(t *testing.T) {
			assert.Equal(t, tt.want, ModelFolder(tt.entity))
		})
	}
}

func TestSizePolicy_WithDefaults(t *testing.T) {
	p := SizePolicy{FixedWidth: 150}.WithDefaults()
	assert.Equal(t, SizePolicy{MaxWidth: 1600, MaxHeight: 1600, FixedWidth: 150}, p)

	p = SizePolicy{MaxWidth: 800, MaxHeight: 600}.WithDefaults()
	assert.Equal(t, 800, p.MaxWidth)
	assert.Equal(t, 600, p.MaxHeight)
}

func TestVariantSchema_KeyName(t *testing.T) {
	assert.Equal(t, "thumb", VariantSchema{Key: "thumb"}.KeyName())
	assert.Equal(t, "small", VariantSchema{Key: "thumb", Name: "small"}.KeyName())
	assert.Equal(t, "", VariantSchema{}.KeyName())
}

func TestRecord_Snapshot(t *testing.T) {
	r := NewRecord("1", "Product")
	r.SetField("photo", "a.jpg")
	r.Snapshot()
	r.SetField("photo", "b.jpg")

	assert.Equal(t, "b.jpg", r.Field("photo"))
	assert.Equal(t, "a.jpg", r.PreviousField("photo"))
	assert.Equal(t, "", r.PreviousField("missing"))
}

func TestError_Is(t *testing.T) {
	err := IOError("remove", "/tmp/x", os.ErrPermission)

	assert.ErrorIs(t, err, ErrIO)
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.False(t, errors.Is(err, ErrImageDecode))
	assert.Equal(t, "io error: remove /tmp/x: permission denied", err.Error())

	cfg := ConfigError("load schema", errors.New("no variants"))
	assert.ErrorIs(t, cfg, ErrConfiguration)
}
