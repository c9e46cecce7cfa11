package xmlutils

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/net/html/charset"
	"gopkg.in/xmlpath.v2"
)

// Parse reads an XML document, honouring its declared encoding.
func Parse(r io.Reader) (*xmlpath.Node, error) {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = charset.NewReaderLabel
	root, err := xmlpath.ParseDecoder(decoder)
	if err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}
	return root, nil
}

var (
	compiledMu sync.Mutex
	compiled   = map[string]*xmlpath.Path{}
)

// compile caches compiled expressions; the same few paths are evaluated for every entry.
func compile(expr string) (*xmlpath.Path, error) {
	compiledMu.Lock()
	defer compiledMu.Unlock()
	if p, ok := compiled[expr]; ok {
		return p, nil
	}
	p, err := xmlpath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to compile XPath %q: %w", expr, err)
	}
	compiled[expr] = p
	return p, nil
}

// Nodes returns the nodes matching expr under node.
func Nodes(node *xmlpath.Node, expr string) ([]*xmlpath.Node, error) {
	path, err := compile(expr)
	if err != nil {
		return nil, err
	}
	var nodes []*xmlpath.Node
	iter := path.Iter(node)
	for iter.Next() {
		nodes = append(nodes, iter.Node())
	}
	return nodes, nil
}

// First returns the cleaned text of the first match of expr, or "".
// An invalid expression also yields "".
func First(node *xmlpath.Node, expr string) string {
	path, err := compile(expr)
	if err != nil {
		return ""
	}
	if v, ok := path.String(node); ok {
		return CleanText(v)
	}
	return ""
}

// CleanText collapses whitespace and newlines in XML text content.
func CleanText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
