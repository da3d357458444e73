package extract

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"
)

// skipTags are elements that never contribute readable text; their subtrees
// are not traversed.
var skipTags = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Svg:      true,
	atom.Noscript: true,
	atom.Meta:     true,
	atom.Link:     true,
	atom.Head:     true,
}

// blockTags are elements whose text is trimmed and wrapped with a leading
// and trailing newline.
var blockTags = map[atom.Atom]bool{
	atom.P:          true,
	atom.Div:        true,
	atom.H1:         true,
	atom.H2:         true,
	atom.H3:         true,
	atom.H4:         true,
	atom.H5:         true,
	atom.H6:         true,
	atom.Li:         true,
	atom.Blockquote: true,
	atom.Section:    true,
	atom.Article:    true,
	atom.Main:       true,
	atom.Header:     true,
	atom.Footer:     true,
}

// Final document-level normalization. Whitespace-only text nodes between
// block elements leave spaces hanging at line ends; stripping those first
// lets the newline collapse see contiguous runs. Both passes are idempotent.
var (
	trailingSpace  = regexp.MustCompile(`[ \t]+\n`)
	excessNewlines = regexp.MustCompile(`\n{3,}`)
)

// Text converts a content document into normalized readable text.
//
// The document is parsed leniently (unclosed tags and case mismatches are
// tolerated, as real-world content documents require) after charset
// detection, then walked bottom-up: block-level elements wrap their trimmed
// text in newlines, <br> contributes a newline, table rows and cells keep
// minimal separation, and everything else passes its children's text
// through unchanged. The final result drops spaces hanging at line ends,
// collapses runs of three or more newlines to two, and is trimmed.
func Text(data []byte) (string, error) {
	var rd io.Reader = bytes.NewReader(data)
	if decoded, err := charset.NewReader(rd, ""); err == nil {
		rd = decoded
	} else {
		rd = bytes.NewReader(data)
	}

	doc, err := goquery.NewDocumentFromReader(rd)
	if err != nil {
		return "", fmt.Errorf("failed to parse content document: %w", err)
	}

	root := doc.Get(0)
	if root == nil {
		return "", nil
	}

	text := trailingSpace.ReplaceAllString(nodeText(root), "\n")
	text = excessNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text), nil
}

// nodeText produces the text of a subtree, bottom-up.
func nodeText(n *html.Node) string {
	switch n.Type {
	case html.TextNode:
		// Source whitespace is normalized at the text-node level, before any
		// structural newlines exist, so those are never collapsed away.
		return collapseControlWhitespace(n.Data)
	case html.DocumentNode, html.ElementNode:
	default:
		return ""
	}

	if n.Type == html.ElementNode {
		if skipTags[n.DataAtom] {
			return ""
		}
		if n.DataAtom == atom.Br {
			return "\n"
		}
	}

	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(nodeText(c))
	}
	content := b.String()

	if n.Type == html.DocumentNode {
		return content
	}

	switch {
	case blockTags[n.DataAtom]:
		return "\n" + strings.TrimSpace(content) + "\n"
	case n.DataAtom == atom.Tr:
		return "\n" + strings.TrimSpace(content)
	case n.DataAtom == atom.Td, n.DataAtom == atom.Th:
		return " " + strings.TrimSpace(content) + " "
	default:
		return content
	}
}

// collapseControlWhitespace replaces each run of tab, carriage return, and
// newline characters with a single space. Plain spaces pass through.
func collapseControlWhitespace(s string) string {
	if !strings.ContainsAny(s, "\t\r\n") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	inRun := false
	for _, r := range s {
		if r == '\t' || r == '\r' || r == '\n' {
			if !inRun {
				b.WriteByte(' ')
				inRun = true
			}
			continue
		}
		inRun = false
		b.WriteRune(r)
	}
	return b.String()
}
