package catma

import (
	"github.com/google/uuid"
)

// Tagset represents a named, versioned set of Tags.
type Tagset struct {
	// Name is the tagset name.
	Name string `json:"name"`

	// UUID identifies the tagset.
	UUID uuid.UUID `json:"uuid"`

	// Version is a timestamp string, see Timestamp.
	Version string `json:"version"`

	// Tags maps tag UUIDs to tags.
	Tags map[uuid.UUID]*Tag `json:"tags,omitempty"`

	// tagOrder preserves tag insertion order for stable output.
	tagOrder []uuid.UUID
}

// NewTagset creates a Tagset with a fresh UUID containing the given tags.
func NewTagset(name string, tags ...*Tag) *Tagset {
	ts := &Tagset{
		Name:    name,
		UUID:    uuid.New(),
		Version: Timestamp(),
		Tags:    make(map[uuid.UUID]*Tag),
	}
	for _, tag := range tags {
		ts.AddTag(tag)
	}
	return ts
}

// AddTag adds a Tag to this tagset, replacing any tag with the same UUID.
func (ts *Tagset) AddTag(tag *Tag) {
	if _, ok := ts.Tags[tag.UUID]; !ok {
		ts.tagOrder = append(ts.tagOrder, tag.UUID)
	}
	ts.Tags[tag.UUID] = tag
}

// OrderedTags returns the tags in insertion order.
func (ts *Tagset) OrderedTags() []*Tag {
	tags := make([]*Tag, 0, len(ts.tagOrder))
	for _, id := range ts.tagOrder {
		tags = append(tags, ts.Tags[id])
	}
	return tags
}

// TagByPath returns the tag with the given hierarchy path or nil if there
// is no such tag.
func (ts *Tagset) TagByPath(path string) *Tag {
	for _, tag := range ts.Tags {
		if tag.Path() == path {
			return tag
		}
	}
	return nil
}

func (ts *Tagset) String() string {
	return ts.Name
}
