// Package schema maintains the user-editable field list of a document being composed.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/and161185/doc-issuer/internal/errs"
	"github.com/and161185/doc-issuer/internal/model"
)

// Builder keeps Fields and Template in lock-step: same length, same label at every index.
// It is owned by one composition session and is not safe for concurrent use.
type Builder struct {
	fields   []model.Field
	template []model.TemplateEntry
}

// New returns an empty builder.
func New() *Builder { return &Builder{} }

// AddField appends a field with an empty value. An empty label (cancelled prompt) is a no-op.
func (b *Builder) AddField(label string) {
	if label == "" {
		return
	}
	b.fields = append(b.fields, model.Field{Label: label})
	b.template = append(b.template, model.TemplateEntry{Label: label})
}

// UpdateFieldValue replaces the value at index i. The template is unaffected.
func (b *Builder) UpdateFieldValue(i int, value string) error {
	if err := b.check(i); err != nil {
		return err
	}
	b.fields[i].Value = value
	return nil
}

// RemoveField removes index i from both lists, shifting later entries down.
func (b *Builder) RemoveField(i int) error {
	if err := b.check(i); err != nil {
		return err
	}
	b.fields = append(b.fields[:i], b.fields[i+1:]...)
	b.template = append(b.template[:i], b.template[i+1:]...)
	return nil
}

// Clear resets both lists to empty.
func (b *Builder) Clear() {
	b.fields = nil
	b.template = nil
}

// Len returns the number of fields.
func (b *Builder) Len() int { return len(b.fields) }

// Fields returns a copy of the field list.
func (b *Builder) Fields() []model.Field {
	return append([]model.Field{}, b.fields...)
}

// Template returns a copy of the template list.
func (b *Builder) Template() []model.TemplateEntry {
	return append([]model.TemplateEntry{}, b.template...)
}

// DocumentJSON is the plaintext that gets encrypted for the owner.
func (b *Builder) DocumentJSON() ([]byte, error) {
	return json.Marshal(b.Fields())
}

// TemplateJSON is the public description sent next to the ciphertext.
func (b *Builder) TemplateJSON() (string, error) {
	out, err := json.Marshal(b.Template())
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (b *Builder) check(i int) error {
	if i < 0 || i >= len(b.fields) {
		return fmt.Errorf("field %d of %d: %w", i, len(b.fields), errs.ErrIndexOutOfRange)
	}
	return nil
}
