package catma

import (
	"fmt"

	"github.com/google/uuid"
)

// Annotation represents a typed markup instance. An Annotation has a list
// of Ranges referencing the text segments it covers and a map of
// multi-valued properties.
type Annotation struct {
	// UUID identifies the annotation.
	UUID uuid.UUID `json:"uuid"`

	// Tag is the type of the annotation.
	Tag *Tag `json:"tag"`

	// Properties maps property names to their values.
	Properties map[string][]string `json:"properties,omitempty"`

	// Ranges are the text segments the annotation covers.
	Ranges []Range `json:"ranges,omitempty"`

	// propOrder preserves property insertion order for stable output.
	propOrder []string
}

// NewAnnotation creates an Annotation typed by the given tag.
func NewAnnotation(tag *Tag) *Annotation {
	return &Annotation{
		UUID:       uuid.New(),
		Tag:        tag,
		Properties: make(map[string][]string),
	}
}

// AddRange appends a text range to the annotation.
func (a *Annotation) AddRange(r Range) {
	a.Ranges = append(a.Ranges, r)
}

// AddProperty adds a value to the named property of this annotation. If the
// value is not an adhoc value it also gets added to the proposed values of
// the property definition of the tag.
func (a *Annotation) AddProperty(name, value string, adhoc bool) {
	values, ok := a.Properties[name]
	if !ok {
		a.propOrder = append(a.propOrder, name)
	}
	for _, v := range values {
		if v == value {
			a.Tag.AddOrUpdateProperty(name, value, adhoc)
			return
		}
	}
	a.Properties[name] = append(values, value)
	a.Tag.AddOrUpdateProperty(name, value, adhoc)
}

// PropertyNames returns the property names in insertion order.
func (a *Annotation) PropertyNames() []string {
	return a.propOrder
}

func (a *Annotation) String() string {
	return fmt.Sprintf("%s@%v", a.Tag, a.Ranges)
}

// Collection is a document-scoped Annotation Collection: the annotations
// extracted from one source document together with the tagsets that declare
// their tags.
type Collection struct {
	// Title is the collection title.
	Title string `json:"title"`

	// Author is the author of the contained annotations.
	Author string `json:"author"`

	// Publisher is the publisher, defaults to the author.
	Publisher string `json:"publisher,omitempty"`

	// Description is an optional description.
	Description string `json:"description,omitempty"`

	// DocumentID identifies the annotated source document.
	DocumentID uuid.UUID `json:"document_id"`

	// TextLength is the length of the annotated text in characters.
	TextLength int `json:"text_length"`

	// Tagsets are the participating tagsets.
	Tagsets []*Tagset `json:"tagsets,omitempty"`

	// Annotations are the contained annotations in extraction order.
	Annotations []*Annotation `json:"annotations,omitempty"`

	// Attributes carries additional metadata such as source fingerprints.
	Attributes map[string]string `json:"attributes,omitempty"`
}

// NewCollection creates a Collection with a fresh document UUID.
func NewCollection(title, author string, textLength int) *Collection {
	return &Collection{
		Title:      title,
		Author:     author,
		Publisher:  author,
		DocumentID: uuid.New(),
		TextLength: textLength,
	}
}

// AddTagset adds a tagset to the collection, skipping tagsets whose UUID
// is already present.
func (c *Collection) AddTagset(ts *Tagset) {
	for _, existing := range c.Tagsets {
		if existing.UUID == ts.UUID {
			return
		}
	}
	c.Tagsets = append(c.Tagsets, ts)
}

// AddAnnotations appends annotations to the collection.
func (c *Collection) AddAnnotations(annos ...*Annotation) {
	c.Annotations = append(c.Annotations, annos...)
}

// SetAttribute sets a metadata attribute.
func (c *Collection) SetAttribute(key, value string) {
	if c.Attributes == nil {
		c.Attributes = make(map[string]string)
	}
	c.Attributes[key] = value
}

// Attribute returns a metadata attribute.
func (c *Collection) Attribute(key string) (string, bool) {
	v, ok := c.Attributes[key]
	return v, ok
}

// TagByUUID looks the tag up across all tagsets of the collection.
func (c *Collection) TagByUUID(id uuid.UUID) *Tag {
	for _, ts := range c.Tagsets {
		if tag, ok := ts.Tags[id]; ok {
			return tag
		}
	}
	return nil
}

// Merge merges the other collection into this one. Tagsets already present
// by UUID are skipped, annotations are appended. The text length grows to
// the larger of the two.
func (c *Collection) Merge(other *Collection) {
	for _, ts := range other.Tagsets {
		c.AddTagset(ts)
	}
	c.AddAnnotations(other.Annotations...)
	if other.TextLength > c.TextLength {
		c.TextLength = other.TextLength
	}
}
