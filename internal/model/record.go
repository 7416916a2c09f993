package model

import (
	"maps"
	"time"

	"github.com/spf13/afero"
)

// FieldAccessor is the capability the image lifecycle needs from a persisted entity:
// read and write a named string field and read its value as it was before mutation.
type FieldAccessor interface {
	Field(name string) string
	SetField(name, value string)
	PreviousField(name string) string
}

// FileHandle is an uploaded file that has not been stored yet.
type FileHandle interface {
	// BaseName is the original file name without directory and extension.
	BaseName() string
	// Extension is the original extension without the leading dot.
	Extension() string
	// SaveAs copies the upload to path on fs.
	SaveAs(fs afero.Fs, path string) error
}

// UploadSource exposes the uploads pending for a record.
type UploadSource interface {
	Upload(attribute string) FileHandle
}

// Record is a generic entity instance whose image attributes are plain string fields.
// It keeps a snapshot of the fields as loaded so an update can tell old values from new ones.
type Record struct {
	ID        string            `json:"id"`
	Entity    string            `json:"entity"`
	Fields    map[string]string `json:"fields"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`

	previous map[string]string
	uploads  map[string]FileHandle
}

var (
	_ FieldAccessor = (*Record)(nil)
	_ UploadSource  = (*Record)(nil)
)

// NewRecord returns an empty record of the given entity type.
func NewRecord(id, entity string) *Record {
	return &Record{
		ID:       id,
		Entity:   entity,
		Fields:   map[string]string{},
		previous: map[string]string{},
	}
}

func (r *Record) Field(name string) string {
	return r.Fields[name]
}

func (r *Record) SetField(name, value string) {
	if r.Fields == nil {
		r.Fields = map[string]string{}
	}
	r.Fields[name] = value
}

func (r *Record) PreviousField(name string) string {
	return r.previous[name]
}

// Snapshot records the current fields as the pre-mutation state.
// Repositories call it after loading a row.
func (r *Record) Snapshot() {
	r.previous = maps.Clone(r.Fields)
	if r.previous == nil {
		r.previous = map[string]string{}
	}
}

// Attach registers a pending upload for attribute. A nil handle clears it.
func (r *Record) Attach(attribute string, h FileHandle) {
	if h == nil {
		delete(r.uploads, attribute)
		return
	}
	if r.uploads == nil {
		r.uploads = map[string]FileHandle{}
	}
	r.uploads[attribute] = h
}

func (r *Record) Upload(attribute string) FileHandle {
	return r.uploads[attribute]
}

// ClearUploads drops every pending upload.
func (r *Record) ClearUploads() {
	r.uploads = nil
}
