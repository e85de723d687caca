package catma

import (
	"strconv"

	"github.com/google/uuid"
)

// System property names carried by every Tag.
const (
	PropDisplayColor = "catma_displaycolor"
	PropMarkupAuthor = "catma_markupauthor"
)

// Property represents a named Property of a Tag with its set of proposed
// values.
type Property struct {
	// Name is the property name.
	Name string `json:"name"`

	// Values are the possible or proposed values of the property.
	Values []string `json:"values,omitempty"`

	// UUID identifies the property definition.
	UUID uuid.UUID `json:"uuid"`
}

// NewProperty creates a Property with a fresh UUID.
func NewProperty(name string, values ...string) *Property {
	return &Property{
		Name:   name,
		Values: values,
		UUID:   uuid.New(),
	}
}

// HasValue returns true if the given value is among the proposed values.
func (p *Property) HasValue(value string) bool {
	for _, v := range p.Values {
		if v == value {
			return true
		}
	}
	return false
}

// AddValue adds the given value to the proposed values if not present.
func (p *Property) AddValue(value string) {
	if !p.HasValue(value) {
		p.Values = append(p.Values, value)
	}
}

// Tag represents the type or code of an Annotation.
type Tag struct {
	// Name is the tag name.
	Name string `json:"name"`

	// UUID identifies the tag.
	UUID uuid.UUID `json:"uuid"`

	// Version is a timestamp string, see Timestamp.
	Version string `json:"version"`

	// Color is the display color as a packed ARGB integer.
	Color int `json:"color"`

	// Author is the author of the tag.
	Author string `json:"author"`

	// Parent is the parent tag, nil for root tags.
	Parent *Tag `json:"-"`

	// Properties maps property names to their definitions. The system
	// properties catma_displaycolor and catma_markupauthor are always
	// present.
	Properties map[string]*Property `json:"properties,omitempty"`

	// propOrder preserves property insertion order for stable output.
	propOrder []string
}

// NewTag creates a root Tag with a fresh UUID, version and a random
// display color.
func NewTag(name, author string) *Tag {
	return newTag(name, author, nil)
}

// NewChildTag creates a Tag below the given parent tag.
func NewChildTag(name, author string, parent *Tag) *Tag {
	return newTag(name, author, parent)
}

func newTag(name, author string, parent *Tag) *Tag {
	t := &Tag{
		Name:       name,
		UUID:       uuid.New(),
		Version:    Timestamp(),
		Color:      RandomColor(),
		Author:     author,
		Parent:     parent,
		Properties: make(map[string]*Property),
	}
	t.AddOrUpdateProperty(PropDisplayColor, strconv.Itoa(t.Color), false)
	t.AddOrUpdateProperty(PropMarkupAuthor, author, false)
	return t
}

// AddOrUpdateProperty adds a Property with the given name if not present.
// If the value is not an adhoc value it gets added to the list of proposed
// values for the property.
func (t *Tag) AddOrUpdateProperty(name, value string, adhoc bool) {
	prop, ok := t.Properties[name]
	if !ok {
		prop = NewProperty(name)
		t.Properties[name] = prop
		t.propOrder = append(t.propOrder, name)
	}
	if !adhoc {
		prop.AddValue(value)
	}
}

// SetProperty replaces the property definition with the given one.
func (t *Tag) SetProperty(prop *Property) {
	if _, ok := t.Properties[prop.Name]; !ok {
		t.propOrder = append(t.propOrder, prop.Name)
	}
	t.Properties[prop.Name] = prop
}

// PropertyNames returns the property names in insertion order.
func (t *Tag) PropertyNames() []string {
	return t.propOrder
}

// Path returns the hierarchy path of the tag, e.g. /Coreference/Coref7.
func (t *Tag) Path() string {
	if t.Parent == nil {
		return "/" + t.Name
	}
	return t.Parent.Path() + "/" + t.Name
}

func (t *Tag) String() string {
	return t.Name + " #" + t.UUID.String()
}
