package github

import (
	"strings"

	"golang.org/x/net/html"
)

// ComponentMarker is an element carrying data-* component annotations,
// located by its ancestor path.
type ComponentMarker struct {
	Tag        string            `json:"tag"`
	Attributes map[string]string `json:"attributes"`
	Path       string            `json:"path"`
}

// markerAttrs are the data-* names that flag an element as a component
// marker. Once flagged, all of its data-* attributes are collected.
var markerAttrs = map[string]bool{
	"data-component": true,
	"data-type":      true,
	"data-variant":   true,
}

// ExtractDataAttributes parses htmlContent and returns every element
// annotated with a component marker attribute, in document order.
func ExtractDataAttributes(htmlContent string) ([]ComponentMarker, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, err
	}

	var markers []ComponentMarker
	var walk func(n *html.Node, ancestors []string)
	walk = func(n *html.Node, ancestors []string) {
		if n.Type == html.ElementNode {
			if m, ok := markerFor(n, ancestors); ok {
				markers = append(markers, m)
			}
			ancestors = append(ancestors, selectorFor(n))
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child, ancestors)
		}
	}
	walk(doc, nil)
	return markers, nil
}

func markerFor(n *html.Node, ancestors []string) (ComponentMarker, bool) {
	flagged := false
	for _, attr := range n.Attr {
		if markerAttrs[attr.Key] {
			flagged = true
			break
		}
	}
	if !flagged {
		return ComponentMarker{}, false
	}

	attrs := make(map[string]string)
	for _, attr := range n.Attr {
		if strings.HasPrefix(attr.Key, "data-") {
			attrs[attr.Key] = attr.Val
		}
	}

	path := append(append([]string(nil), ancestors...), selectorFor(n))
	return ComponentMarker{
		Tag:        n.Data,
		Attributes: attrs,
		Path:       strings.Join(trimToBody(path), " > "),
	}, true
}

// selectorFor renders one path segment: tag plus #id, or tag plus the first
// class when there is no id.
func selectorFor(n *html.Node) string {
	sel := n.Data
	var id, class string
	for _, attr := range n.Attr {
		switch attr.Key {
		case "id":
			id = attr.Val
		case "class":
			for _, c := range strings.Fields(attr.Val) {
				class = c
				break
			}
		}
	}
	if id != "" {
		return sel + "#" + id
	}
	if class != "" {
		return sel + "." + class
	}
	return sel
}

// trimToBody drops the html/head/body scaffolding the parser inserts, so
// paths start at the first meaningful element.
func trimToBody(path []string) []string {
	for i, seg := range path {
		tag := seg
		if j := strings.IndexAny(seg, "#."); j >= 0 {
			tag = seg[:j]
		}
		if tag == "html" || tag == "body" || tag == "head" {
			continue
		}
		return path[i:]
	}
	return nil
}
