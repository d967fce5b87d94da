// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/antchfx/xmlquery"
)

// xmlTextElements are collected in this order, each in document order.
var xmlTextElements = []string{"article-title", "title", "abstract", "body"}

// XMLConverter pulls the title, abstract, and body text out of a full-text
// XML document. A document with none of those elements yields all its text.
type XMLConverter struct{}

func (XMLConverter) Convert(_ context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening XML %s: %w", path, err)
	}
	defer f.Close()

	doc, err := xmlquery.Parse(f)
	if err != nil {
		return "", fmt.Errorf("parsing XML %s: %w", path, err)
	}

	var pieces []string
	for _, name := range xmlTextElements {
		nodes, err := xmlquery.QueryAll(doc, "//"+name)
		if err != nil {
			return "", err
		}
		for _, n := range nodes {
			if text := nodeText(n); text != "" {
				pieces = append(pieces, text)
			}
		}
	}
	if len(pieces) == 0 {
		if text := nodeText(doc); text != "" {
			pieces = append(pieces, text)
		}
	}
	return strings.Join(pieces, "\n\n"), nil
}

// nodeText joins the trimmed text nodes under n with single spaces.
func nodeText(n *xmlquery.Node) string {
	var parts []string
	var walk func(*xmlquery.Node)
	walk = func(n *xmlquery.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case xmlquery.TextNode, xmlquery.CharDataNode:
				if s := strings.TrimSpace(c.Data); s != "" {
					parts = append(parts, s)
				}
			case xmlquery.ElementNode:
				walk(c)
			}
		}
	}
	walk(n)
	return strings.Join(parts, " ")
}
