// Package catma provides the annotation model used for CATMA Annotation
// Collections: Tagsets, Tags, Properties, Annotations and text Ranges.
//
// The model uses stand-off markup: annotations never live inside the text,
// they reference character ranges of it. Overlapping and nested annotations
// are therefore representable without any tree-shape restrictions.
//
// # Core Types
//
// The model is organized hierarchically:
//
//   - Collection: document-scoped set of annotations plus their tagsets
//   - Tagset: named, versioned set of Tags
//   - Tag: the type of an annotation, optionally parented for hierarchies
//   - Property: a named, multi-valued attribute of a Tag or Annotation
//   - Annotation: a typed markup instance over one or more Ranges
//   - Range: a start/end pair of character offsets
//
// # Identity
//
// Every tagset, tag, property and annotation carries a UUID. The CATMA wire
// representation prefixes it with "CATMA_" and uppercases it; see
// FormatUUID and ParseUUID.
//
// # Example
//
//	base := catma.NewTag("Coreference", "HotCorefDe")
//	chain := catma.NewChildTag("Coref7", "HotCorefDe", base)
//
//	anno := catma.NewAnnotation(chain)
//	anno.Ranges = append(anno.Ranges, catma.Range{Start: 42, End: 48})
//	anno.AddProperty("chain", "7", false)
package catma
