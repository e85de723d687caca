package tei

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/forTEXT/catma-go/core/catma"
	cerrors "github.com/forTEXT/catma-go/core/errors"
	cxml "github.com/forTEXT/catma-go/core/xml"
)

// Read parses a CATMA TEI collection. Collections without ptr
// references use an older inline layout and are rejected.
func Read(data []byte) (*catma.Collection, error) {
	doc, err := cxml.Parse(data)
	if err != nil {
		return nil, cerrors.NewParse("tei", "", err.Error())
	}

	if err := checkVersion(doc); err != nil {
		return nil, err
	}

	col := &catma.Collection{
		Title:       headerText(doc, "//teiHeader/fileDesc/titleStmt/title"),
		Author:      headerText(doc, "//teiHeader/fileDesc/titleStmt/author"),
		Publisher:   headerText(doc, "//teiHeader/fileDesc/publicationStmt/publisher"),
		Description: headerText(doc, "//teiHeader/fileDesc/sourceDesc/p"),
	}

	ptrs, err := doc.XPath("//text/body/ab//ptr")
	if err != nil {
		return nil, err
	}
	if len(ptrs) == 0 {
		return nil, cerrors.NewParse("tei", "", "collection has no ptr references")
	}

	lastTarget := ptrs[len(ptrs)-1].Attr("target")
	lastRange, err := extractRange(lastTarget)
	if err != nil {
		return nil, err
	}
	col.TextLength = lastRange.End
	col.DocumentID, err = extractDocumentID(lastTarget)
	if err != nil {
		return nil, err
	}

	if err := readTagsets(doc, col); err != nil {
		return nil, err
	}

	ranges, err := readSegments(doc)
	if err != nil {
		return nil, err
	}
	if err := readAnnotations(doc, col, ranges); err != nil {
		return nil, err
	}

	return col, nil
}

func checkVersion(doc *cxml.Document) error {
	node, err := doc.XPathFirst("//teiHeader/fileDesc/sourceDesc/ab/fs/f[@name='version']/string")
	if err != nil {
		return err
	}
	version := 0
	if node != nil {
		version, _ = strconv.Atoi(strings.TrimSpace(node.Text()))
	}
	if version != Version {
		return cerrors.NewUnsupported("collection version",
			"only version "+strconv.Itoa(Version)+" is supported, got "+strconv.Itoa(version))
	}
	return nil
}

func headerText(doc *cxml.Document, expr string) string {
	node, err := doc.XPathFirst(expr)
	if err != nil || node == nil {
		return "empty"
	}
	return node.Text()
}

// extractRange parses the char offsets of a ptr target like
// catma://CATMA_0854DF2F-9527-428E-B753-84C0710AFDA5#char=42,48
func extractRange(target string) (catma.Range, error) {
	idx := strings.LastIndex(target, "=")
	if idx < 0 {
		return catma.Range{}, cerrors.NewParse("tei", "", "ptr target without offsets: "+target)
	}
	parts := strings.Split(target[idx+1:], ",")
	if len(parts) != 2 {
		return catma.Range{}, cerrors.NewParse("tei", "", "malformed ptr target: "+target)
	}
	start, err := strconv.Atoi(parts[0])
	if err != nil {
		return catma.Range{}, cerrors.NewParse("tei", "", "malformed ptr target: "+target)
	}
	end, err := strconv.Atoi(parts[1])
	if err != nil {
		return catma.Range{}, cerrors.NewParse("tei", "", "malformed ptr target: "+target)
	}
	return catma.Range{Start: start, End: end}, nil
}

func extractDocumentID(target string) (uuid.UUID, error) {
	start := strings.Index(target, "CATMA_")
	end := strings.Index(target, "#")
	if start < 0 || end < 0 || end <= start {
		return uuid.Nil, cerrors.NewParse("tei", "", "ptr target without document id: "+target)
	}
	return catma.ParseUUID(target[start:end])
}

func readTagsets(doc *cxml.Document, col *catma.Collection) error {
	tagsetNodes, err := doc.XPath("//encodingDesc/fsdDecl")
	if err != nil {
		return err
	}

	for _, tagsetNode := range tagsetNodes {
		n := tagsetNode.Attr("n")
		divider := strings.LastIndex(n, " ")
		name, version := n, ""
		if divider >= 0 {
			name, version = n[:divider], n[divider+1:]
		}

		id, err := catma.ParseUUID(tagsetNode.Attr("xml:id"))
		if err != nil {
			return cerrors.NewParse("tei", "", "malformed tagset id: "+tagsetNode.Attr("xml:id"))
		}

		ts := &catma.Tagset{
			Name:    name,
			UUID:    id,
			Version: version,
			Tags:    make(map[uuid.UUID]*catma.Tag),
		}
		if err := readTags(tagsetNode, ts); err != nil {
			return err
		}
		col.Tagsets = append(col.Tagsets, ts)
	}
	return nil
}

func readTags(tagsetNode *cxml.Node, ts *catma.Tagset) error {
	tagNodes, err := tagsetNode.XPath("./fsDecl")
	if err != nil {
		return err
	}

	parents := make(map[uuid.UUID]uuid.UUID)
	for _, tagNode := range tagNodes {
		tag, parentID, err := readTag(tagNode)
		if err != nil {
			return err
		}
		if parentID != uuid.Nil {
			parents[tag.UUID] = parentID
		}
		ts.AddTag(tag)
	}

	// relink parents once all tags of the set are known
	for id, parentID := range parents {
		if parent, ok := ts.Tags[parentID]; ok {
			ts.Tags[id].Parent = parent
		}
	}
	return nil
}

func readTag(tagNode *cxml.Node) (*catma.Tag, uuid.UUID, error) {
	id, err := catma.ParseUUID(tagNode.Attr("xml:id"))
	if err != nil {
		return nil, uuid.Nil, cerrors.NewParse("tei", "", "malformed tag id: "+tagNode.Attr("xml:id"))
	}

	name := ""
	if descr, _ := tagNode.XPathFirst("./fsDescr"); descr != nil {
		name = descr.Text()
	}

	author, authorProp, err := readSystemProperty(tagNode, catma.PropMarkupAuthor)
	if err != nil {
		return nil, uuid.Nil, err
	}
	colorValue, colorProp, err := readSystemProperty(tagNode, catma.PropDisplayColor)
	if err != nil {
		return nil, uuid.Nil, err
	}
	color, err := strconv.Atoi(colorValue)
	if err != nil {
		return nil, uuid.Nil, cerrors.NewParse("tei", "", "malformed display color: "+colorValue)
	}

	tag := &catma.Tag{
		Name:       name,
		UUID:       id,
		Version:    tagNode.Attr("n"),
		Color:      color,
		Author:     author,
		Properties: make(map[string]*catma.Property),
	}
	tag.SetProperty(colorProp)
	tag.SetProperty(authorProp)

	propNodes, err := tagNode.XPath("./fDecl")
	if err != nil {
		return nil, uuid.Nil, err
	}
	for _, propNode := range propNodes {
		propName := propNode.Attr("name")
		if strings.HasPrefix(propName, "catma_") {
			continue
		}
		prop, err := readProperty(propNode)
		if err != nil {
			return nil, uuid.Nil, err
		}
		tag.SetProperty(prop)
	}

	parentID := uuid.Nil
	if baseTypes := tagNode.Attr("baseTypes"); baseTypes != "" {
		parentID, err = catma.ParseUUID(baseTypes)
		if err != nil {
			return nil, uuid.Nil, cerrors.NewParse("tei", "", "malformed parent tag id: "+baseTypes)
		}
	}
	return tag, parentID, nil
}

func readSystemProperty(tagNode *cxml.Node, name string) (string, *catma.Property, error) {
	node, err := tagNode.XPathFirst("./fDecl[@name='" + name + "']")
	if err != nil {
		return "", nil, err
	}
	if node == nil {
		return "", nil, cerrors.NewParse("tei", "", "tag without "+name+" declaration")
	}
	prop, err := readProperty(node)
	if err != nil {
		return "", nil, err
	}
	if len(prop.Values) == 0 {
		return "", nil, cerrors.NewParse("tei", "", "tag with empty "+name+" declaration")
	}
	return prop.Values[0], prop, nil
}

func readProperty(propNode *cxml.Node) (*catma.Property, error) {
	id, err := catma.ParseUUID(propNode.Attr("xml:id"))
	if err != nil {
		return nil, cerrors.NewParse("tei", "", "malformed property id: "+propNode.Attr("xml:id"))
	}
	prop := &catma.Property{Name: propNode.Attr("name"), UUID: id}

	valueNodes, err := propNode.XPath(".//string")
	if err != nil {
		return nil, err
	}
	for _, valueNode := range valueNodes {
		prop.Values = append(prop.Values, valueNode.Text())
	}
	return prop, nil
}

// readSegments collects the annotation ranges referenced by the seg
// elements, keyed by annotation UUID.
func readSegments(doc *cxml.Document) (map[uuid.UUID][]catma.Range, error) {
	segNodes, err := doc.XPath("//text/body/ab/seg")
	if err != nil {
		return nil, err
	}

	ranges := make(map[uuid.UUID][]catma.Range)
	for _, segNode := range segNodes {
		ptr, err := segNode.XPathFirst("./ptr")
		if err != nil {
			return nil, err
		}
		if ptr == nil {
			return nil, cerrors.NewParse("tei", "", "seg without ptr reference")
		}
		segRange, err := extractRange(ptr.Attr("target"))
		if err != nil {
			return nil, err
		}

		for _, ref := range strings.Fields(segNode.Attr("ana")) {
			id, err := catma.ParseUUID(strings.TrimPrefix(ref, "#"))
			if err != nil {
				return nil, cerrors.NewParse("tei", "", "malformed annotation reference: "+ref)
			}
			ranges[id] = append(ranges[id], segRange)
		}
	}
	return ranges, nil
}

func readAnnotations(doc *cxml.Document, col *catma.Collection, ranges map[uuid.UUID][]catma.Range) error {
	annoNodes, err := doc.XPath("//text/fs")
	if err != nil {
		return err
	}

	for _, annoNode := range annoNodes {
		tagID, err := catma.ParseUUID(annoNode.Attr("type"))
		if err != nil {
			return cerrors.NewParse("tei", "", "malformed annotation type: "+annoNode.Attr("type"))
		}
		tag := col.TagByUUID(tagID)
		if tag == nil {
			return cerrors.NewParse("tei", "", "annotation references unknown tag "+annoNode.Attr("type"))
		}

		id, err := catma.ParseUUID(annoNode.Attr("xml:id"))
		if err != nil {
			return cerrors.NewParse("tei", "", "malformed annotation id: "+annoNode.Attr("xml:id"))
		}

		anno := &catma.Annotation{
			UUID:       id,
			Tag:        tag,
			Properties: make(map[string][]string),
			Ranges:     ranges[id],
		}

		propNodes, err := annoNode.XPath("./f")
		if err != nil {
			return err
		}
		for _, propNode := range propNodes {
			name := propNode.Attr("name")
			valueNodes, err := propNode.XPath(".//string")
			if err != nil {
				return err
			}
			for _, valueNode := range valueNodes {
				anno.AddProperty(name, valueNode.Text(), true)
			}
		}

		col.Annotations = append(col.Annotations, anno)
	}
	return nil
}
