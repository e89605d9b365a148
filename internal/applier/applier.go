// Package applier rewrites a served page so its headline matches the
// visitor's assigned variant.
package applier

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/nesium/splitship/internal/experiment"
)

const variantAttr = "data-ab-variation"

// Apply parses the page, replaces every occurrence of the baseline
// headline in h1 elements, title/hero-title-classed elements, and the
// document <title>, and stamps the active variant id on <body> for
// downstream tracking. Pages without the baseline text pass through
// unchanged apart from the body attribute.
func Apply(r io.Reader, baseline string, v experiment.Variant) ([]byte, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	walk(doc, baseline, v)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, fmt.Errorf("failed to render page: %w", err)
	}
	return buf.Bytes(), nil
}

func walk(n *html.Node, baseline string, v experiment.Variant) {
	if n.Type == html.ElementNode {
		switch {
		case n.Data == "body":
			setAttr(n, variantAttr, v.ID)
		case n.Data == "title":
			// The document title keeps its suffix (site name etc),
			// only the headline portion is swapped.
			substituteText(n, baseline, v.DisplayText)
		case n.Data == "h1" || hasTitleClass(n):
			replaceText(n, baseline, v.DisplayText)
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, baseline, v)
	}
}

// hasTitleClass matches the headline element classes the site uses.
func hasTitleClass(n *html.Node) bool {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, cls := range strings.Fields(a.Val) {
			if cls == "title" || cls == "hero-title" {
				return true
			}
		}
	}
	return false
}

// replaceText swaps the full text of any direct text child that
// contains the baseline headline. Elements without the baseline are
// left alone.
func replaceText(n *html.Node, baseline, replacement string) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode && strings.Contains(c.Data, baseline) {
			c.Data = replacement
		}
	}
}

// substituteText replaces only the baseline portion of matching text
// children, keeping surrounding text intact.
func substituteText(n *html.Node, baseline, replacement string) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode && strings.Contains(c.Data, baseline) {
			c.Data = strings.ReplaceAll(c.Data, baseline, replacement)
		}
	}
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}
