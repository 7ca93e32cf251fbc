// Package render turns note markdown into HTML and extracts the outgoing
// link targets referenced by the text.
package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

// Result is the output of rendering one note.
type Result struct {
	HTML  string
	Links []string // deduplicated external targets, in order of first use
}

// Render parses source once, collects link targets from the AST, and
// renders the same tree to HTML.
func Render(source []byte) (*Result, error) {
	doc := md.Parser().Parse(text.NewReader(source))
	links := collectLinks(doc, source)

	var buf bytes.Buffer
	if err := md.Renderer().Render(&buf, source, doc); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return &Result{HTML: buf.String(), Links: links}, nil
}

// collectLinks walks the document and returns external link destinations.
// Relative destinations point at other tracked files and are not part of
// the link graph.
func collectLinks(doc ast.Node, source []byte) []string {
	seen := make(map[string]struct{})
	var out []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		var dest string
		switch l := n.(type) {
		case *ast.Link:
			dest = string(l.Destination)
		case *ast.AutoLink:
			if l.AutoLinkType == ast.AutoLinkURL {
				dest = string(l.URL(source))
			}
		default:
			return ast.WalkContinue, nil
		}
		dest = strings.TrimSpace(dest)
		if dest == "" || !isExternal(dest) {
			return ast.WalkContinue, nil
		}
		if _, dup := seen[dest]; !dup {
			seen[dest] = struct{}{}
			out = append(out, dest)
		}
		return ast.WalkContinue, nil
	})
	return out
}

func isExternal(dest string) bool {
	s := strings.ToLower(dest)
	return strings.HasPrefix(s, "http://") ||
		strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "ftp://")
}
