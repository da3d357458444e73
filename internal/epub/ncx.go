package epub

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// NCX represents the parsed navigation structure from an NCX or EPUB 3 nav
// document.
type NCX struct {
	DocTitle  string
	NavPoints []NavPoint
}

// NavPoint represents a single navigation point in the table of contents.
type NavPoint struct {
	Label       string
	ContentPath string // fragment-free, archive-absolute path
	Fragment    string // fragment identifier (without #)
	Children    []NavPoint
}

// ncxDocument models the EPUB 2 NCX XML structure.
type ncxDocument struct {
	XMLName  xml.Name `xml:"ncx"`
	DocTitle struct {
		Text string `xml:"text"`
	} `xml:"docTitle"`
	NavMap struct {
		NavPoints []ncxNavPoint `xml:"navPoint"`
	} `xml:"navMap"`
}

type ncxNavPoint struct {
	NavLabel struct {
		Text string `xml:"text"`
	} `xml:"navLabel"`
	Content struct {
		Src string `xml:"src,attr"`
	} `xml:"content"`
	Children []ncxNavPoint `xml:"navPoint"`
}

// LoadNCX loads and parses the navigation document referenced by the
// package. Returns nil without error when the package declares none;
// navigation is optional.
func LoadNCX(r *Reader, pkg *Package) (*NCX, error) {
	if pkg.NCXPath == "" {
		return nil, nil
	}

	data, err := r.ReadFile(pkg.NCXPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read navigation document: %w", err)
	}

	baseDir := parentDir(pkg.NCXPath)
	if strings.HasSuffix(strings.ToLower(pkg.NCXPath), ".ncx") {
		return parseNCX(data, baseDir)
	}

	// EPUB 3 nav documents are XHTML; fall back to NCX parsing when the
	// extension lies about the format.
	ncx, err := parseNavDocument(data, baseDir)
	if err != nil || len(ncx.NavPoints) == 0 {
		if fallback, ferr := parseNCX(data, baseDir); ferr == nil {
			return fallback, nil
		}
	}
	return ncx, err
}

// parseNCX parses an EPUB 2 NCX document.
func parseNCX(data []byte, baseDir string) (*NCX, error) {
	var doc ncxDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse NCX: %w", err)
	}

	ncx := &NCX{DocTitle: strings.TrimSpace(doc.DocTitle.Text)}
	ncx.NavPoints = convertNavPoints(doc.NavMap.NavPoints, baseDir)
	return ncx, nil
}

func convertNavPoints(points []ncxNavPoint, baseDir string) []NavPoint {
	result := make([]NavPoint, 0, len(points))
	for _, p := range points {
		src, frag := splitFragment(strings.TrimSpace(p.Content.Src))
		np := NavPoint{
			Label:       strings.TrimSpace(p.NavLabel.Text),
			ContentPath: ResolveHref(baseDir, src),
			Fragment:    frag,
			Children:    convertNavPoints(p.Children, baseDir),
		}
		result = append(result, np)
	}
	return result
}

// parseNavDocument parses an EPUB 3 nav document, preferring the nav element
// with epub:type="toc".
func parseNavDocument(data []byte, baseDir string) (*NCX, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse nav document: %w", err)
	}

	nav := doc.Find(`nav[epub\:type="toc"]`).First()
	if nav.Length() == 0 {
		nav = doc.Find("nav").First()
	}
	if nav.Length() == 0 {
		return nil, errors.New("no nav element in navigation document")
	}

	ncx := &NCX{DocTitle: strings.TrimSpace(doc.Find("title").First().Text())}
	ncx.NavPoints = parseNavList(nav.ChildrenFiltered("ol").First(), baseDir)
	return ncx, nil
}

// parseNavList converts a nav <ol> into NavPoints, recursing into nested lists.
func parseNavList(ol *goquery.Selection, baseDir string) []NavPoint {
	var points []NavPoint
	ol.ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
		a := li.ChildrenFiltered("a").First()
		if a.Length() == 0 {
			a = li.Find("a").First()
		}

		np := NavPoint{Label: strings.TrimSpace(a.Text())}
		if href, ok := a.Attr("href"); ok {
			src, frag := splitFragment(strings.TrimSpace(href))
			np.ContentPath = ResolveHref(baseDir, src)
			np.Fragment = frag
		}
		np.Children = parseNavList(li.ChildrenFiltered("ol").First(), baseDir)

		if np.Label != "" || np.ContentPath != "" || len(np.Children) > 0 {
			points = append(points, np)
		}
	})
	return points
}
