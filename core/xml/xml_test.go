package xml

import (
	"strings"
	"testing"
)

const teiSample = `<?xml version="1.0" encoding="UTF-8"?>
<TEI xmlns="http://www.tei-c.org/ns/1.0">
	<teiHeader>
		<fileDesc>
			<titleStmt><title>sample</title></titleStmt>
		</fileDesc>
	</teiHeader>
	<text>
		<body>
			<ab type="catma">
				<seg ana="#CATMA_A #CATMA_B"><ptr target="catma://doc#char=0,5"/></seg>
				<seg ana="#CATMA_A"><ptr target="catma://doc#char=5,12"/></seg>
			</ab>
		</body>
	</text>
</TEI>`

func TestParse(t *testing.T) {
	doc, err := Parse([]byte(teiSample))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	root := doc.Root()
	if root == nil {
		t.Fatal("document has no root element")
	}
	if root.Name() != "TEI" {
		t.Errorf("root name = %q, want %q", root.Name(), "TEI")
	}
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name string
		xml  string
	}{
		{"unclosed tag", "<TEI><text></TEI>"},
		{"mismatched tags", "<TEI></text>"},
		{"invalid chars", "<TEI>\x00</TEI>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.xml)); err == nil {
				t.Error("Parse accepted malformed XML")
			}
		})
	}
}

func TestParseReader(t *testing.T) {
	doc, err := ParseReader(strings.NewReader(teiSample))
	if err != nil {
		t.Fatalf("ParseReader failed: %v", err)
	}
	if doc.Root() == nil {
		t.Fatal("document has no root element")
	}
}

func TestValidate(t *testing.T) {
	if result := Validate([]byte(teiSample)); !result.Valid {
		t.Errorf("well-formed document rejected: %v", result.Errors)
	}

	result := Validate([]byte("<TEI><unclosed>"))
	if result.Valid {
		t.Error("malformed document accepted")
	}
	if len(result.Errors) == 0 {
		t.Error("malformed document produced no errors")
	}
}

func TestXPath(t *testing.T) {
	doc, err := Parse([]byte(teiSample))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	segs, err := doc.XPath("//*[local-name()='seg']")
	if err != nil {
		t.Fatalf("XPath failed: %v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("got %d seg elements, want 2", len(segs))
	}
	if got := segs[0].Attr("ana"); got != "#CATMA_A #CATMA_B" {
		t.Errorf("ana = %q, want %q", got, "#CATMA_A #CATMA_B")
	}

	ptrs, err := segs[0].XPath(".//*[local-name()='ptr']")
	if err != nil {
		t.Fatalf("node XPath failed: %v", err)
	}
	if len(ptrs) != 1 {
		t.Fatalf("got %d ptr elements, want 1", len(ptrs))
	}
	if got := ptrs[0].Attr("target"); got != "catma://doc#char=0,5" {
		t.Errorf("target = %q, want %q", got, "catma://doc#char=0,5")
	}
}

func TestXPathFirst(t *testing.T) {
	doc, err := Parse([]byte(teiSample))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	title, err := doc.XPathFirst("//*[local-name()='title']")
	if err != nil {
		t.Fatalf("XPathFirst failed: %v", err)
	}
	if title == nil {
		t.Fatal("XPathFirst found no title")
	}
	if title.Text() != "sample" {
		t.Errorf("title text = %q, want %q", title.Text(), "sample")
	}

	missing, err := doc.XPathFirst("//*[local-name()='nonexistent']")
	if err != nil {
		t.Fatalf("XPathFirst failed: %v", err)
	}
	if missing != nil {
		t.Error("XPathFirst returned a node for a non-existent element")
	}
}

func TestXPathInvalidExpression(t *testing.T) {
	doc, err := Parse([]byte("<root/>"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if _, err := doc.XPath("[invalid"); err == nil {
		t.Error("XPath accepted an invalid expression")
	}
	if _, err := doc.XPathFirst("[invalid"); err == nil {
		t.Error("XPathFirst accepted an invalid expression")
	}
}

func TestNodeAccessors(t *testing.T) {
	doc, err := Parse([]byte(teiSample))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	root := doc.Root()
	children := root.Children()
	if len(children) != 2 {
		t.Fatalf("root has %d element children, want 2", len(children))
	}
	if children[0].Name() != "teiHeader" || children[1].Name() != "text" {
		t.Errorf("children = %q, %q", children[0].Name(), children[1].Name())
	}

	seg, err := doc.XPathFirst("//*[local-name()='seg']")
	if err != nil || seg == nil {
		t.Fatalf("seg lookup failed: %v", err)
	}
	attrs := seg.Attributes()
	if attrs["ana"] != "#CATMA_A #CATMA_B" {
		t.Errorf("Attributes()[ana] = %q", attrs["ana"])
	}
	if seg.Attr("missing") != "" {
		t.Error("Attr returned a value for a missing attribute")
	}
}

func TestNilNodeAccessors(t *testing.T) {
	n := &Node{}
	if n.Name() != "" || n.Text() != "" || n.Attr("x") != "" {
		t.Error("nil node accessors returned non-empty values")
	}
	if n.Children() != nil || n.Attributes() != nil {
		t.Error("nil node collections are not nil")
	}
}

func TestSerialize(t *testing.T) {
	doc, err := Parse([]byte(teiSample))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	out := string(doc.Serialize())
	if !strings.Contains(out, `ana="#CATMA_A #CATMA_B"`) {
		t.Error("serialized output lost the ana attribute")
	}
	if !strings.Contains(out, "catma://doc#char=0,5") {
		t.Error("serialized output lost the ptr target")
	}
}
