package interaction

import (
	"fmt"
	"strings"
)

// Attr is one data-* attribute in document order.
type Attr struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ElementInfo describes the clicked element as reported by the preview
// surface.
type ElementInfo struct {
	Tag     string   `json:"tag"`
	ID      string   `json:"id,omitempty"`
	Classes []string `json:"classes,omitempty"`
	Data    []Attr   `json:"data,omitempty"`
}

// ElementDescriptor builds the click-mode location descriptor: tag, then
// #id if present, then the leading CSS class if present, then each data-*
// attribute as a bracketed name="value" fragment, in that fixed order.
//
// Example: [button]#submit.primary[data-component="cta"]
func ElementDescriptor(el ElementInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", strings.ToLower(el.Tag))

	if el.ID != "" {
		b.WriteString("#" + el.ID)
	}

	for _, class := range el.Classes {
		if c := strings.TrimSpace(class); c != "" {
			b.WriteString("." + c)
			break
		}
	}

	for _, attr := range el.Data {
		fmt.Fprintf(&b, "[%s=\"%s\"]", attr.Name, attr.Value)
	}

	return b.String()
}
