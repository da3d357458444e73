package epub

import (
	"encoding/xml"
	"strings"
)

// opfPackage represents the package document XML structure.
type opfPackage struct {
	XMLName  xml.Name     `xml:"package"`
	Version  string       `xml:"version,attr"`
	UniqueID string       `xml:"unique-identifier,attr"`
	Metadata opfMetadata  `xml:"metadata"`
	Manifest *opfManifest `xml:"manifest"`
	Spine    *opfSpine    `xml:"spine"`
	Guide    *opfGuide    `xml:"guide"`
}

// opfMetadata represents the metadata section
type opfMetadata struct {
	Title       []string        `xml:"http://purl.org/dc/elements/1.1/ title"`
	Creator     []opfCreator    `xml:"http://purl.org/dc/elements/1.1/ creator"`
	Language    []string        `xml:"http://purl.org/dc/elements/1.1/ language"`
	Identifier  []opfIdentifier `xml:"http://purl.org/dc/elements/1.1/ identifier"`
	Publisher   []string        `xml:"http://purl.org/dc/elements/1.1/ publisher"`
	Date        []string        `xml:"http://purl.org/dc/elements/1.1/ date"`
	Description []string        `xml:"http://purl.org/dc/elements/1.1/ description"`
	Subject     []string        `xml:"http://purl.org/dc/elements/1.1/ subject"`
	Meta        []opfMeta       `xml:"meta"`
}

// opfCreator represents a creator element
type opfCreator struct {
	Name string `xml:",chardata"`
	Role string `xml:"http://www.idpf.org/2007/opf role,attr"`
}

// opfIdentifier represents an identifier element
type opfIdentifier struct {
	Value string `xml:",chardata"`
	ID    string `xml:"id,attr"`
}

// opfMeta represents a meta element (EPUB 2.0 and 3.0)
type opfMeta struct {
	Name     string `xml:"name,attr"`
	Content  string `xml:"content,attr"` // EPUB 2.0: attribute value
	Value    string `xml:",chardata"`    // EPUB 3.0: element text content
	Property string `xml:"property,attr"`
	Refines  string `xml:"refines,attr"`
}

// opfManifest represents the manifest section
type opfManifest struct {
	Items []opfManifestItem `xml:"item"`
}

// opfManifestItem represents an item in the manifest
type opfManifestItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

// opfSpine represents the spine section
type opfSpine struct {
	Toc      string       `xml:"toc,attr"`
	ItemRefs []opfItemRef `xml:"itemref"`
}

// opfItemRef represents an itemref in the spine
type opfItemRef struct {
	IDRef  string `xml:"idref,attr"`
	Linear string `xml:"linear,attr"`
}

// opfGuide represents the guide section
type opfGuide struct {
	References []opfGuideRef `xml:"reference"`
}

type opfGuideRef struct {
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr"`
	Href  string `xml:"href,attr"`
}

// LoadPackage reads the package document at the path declared by the
// container descriptor and parses it.
func LoadPackage(r *Reader) (*Package, error) {
	pkgPath := r.PackagePath()
	data, err := r.ReadFile(pkgPath)
	if err != nil {
		return nil, structuralErr("package", pkgPath, "package document missing", err)
	}
	return ParsePackage(data, pkgPath)
}

// ParsePackage parses package document content. pkgPath is the document's
// archive path; manifest hrefs resolve against its parent directory.
//
// Manifest items lacking an id or href and spine itemrefs lacking an idref
// are dropped silently: they cannot be referenced or resolved, and their
// presence is not a structural defect. A missing manifest or spine element
// is.
func ParsePackage(data []byte, pkgPath string) (*Package, error) {
	var raw opfPackage
	if err := xml.Unmarshal(data, &raw); err != nil {
		return nil, structuralErr("package", pkgPath, "malformed package XML", err)
	}

	if raw.Manifest == nil {
		return nil, structuralErr("package", pkgPath, "manifest missing", nil)
	}
	if raw.Spine == nil {
		return nil, structuralErr("package", pkgPath, "spine missing", nil)
	}

	pkg := &Package{
		Manifest: make(map[string]ManifestItem, len(raw.Manifest.Items)),
		BaseDir:  parentDir(pkgPath),
	}

	pkg.Metadata = parseMetadata(&raw.Metadata, raw.UniqueID)

	for _, item := range raw.Manifest.Items {
		if item.ID == "" || item.Href == "" {
			continue
		}
		mi := ManifestItem{
			ID:        item.ID,
			Href:      item.Href,
			MediaType: item.MediaType,
		}
		if item.Properties != "" {
			mi.Properties = strings.Fields(item.Properties)
		}
		if _, seen := pkg.Manifest[item.ID]; !seen {
			pkg.ManifestOrder = append(pkg.ManifestOrder, item.ID)
		}
		pkg.Manifest[item.ID] = mi
	}

	for _, ref := range raw.Spine.ItemRefs {
		if ref.IDRef == "" {
			continue
		}
		pkg.Spine = append(pkg.Spine, SpineItem{
			IDRef:  ref.IDRef,
			Linear: ref.Linear != "no",
		})
	}

	if raw.Guide != nil {
		for _, ref := range raw.Guide.References {
			pkg.Guide = append(pkg.Guide, GuideReference{
				Type:  ref.Type,
				Title: ref.Title,
				Href:  ref.Href,
			})
		}
	}

	// Resolve the navigation document: EPUB 2 spine toc attribute first,
	// then the EPUB 3 nav property.
	if raw.Spine.Toc != "" {
		if item, ok := pkg.Manifest[raw.Spine.Toc]; ok {
			pkg.NCXPath = ResolveHref(pkg.BaseDir, item.Href)
		}
	}
	if pkg.NCXPath == "" {
		for _, id := range pkg.ManifestOrder {
			if pkg.Manifest[id].HasProperty("nav") {
				pkg.NCXPath = ResolveHref(pkg.BaseDir, pkg.Manifest[id].Href)
				break
			}
		}
	}

	return pkg, nil
}

// HasProperty reports whether the manifest item carries the given property.
func (mi ManifestItem) HasProperty(prop string) bool {
	for _, p := range mi.Properties {
		if p == prop {
			return true
		}
	}
	return false
}

// parseMetadata extracts the fields the tool reports from the raw metadata
// section. Repeated elements keep their first occurrence.
func parseMetadata(meta *opfMetadata, uniqueID string) Metadata {
	md := Metadata{}

	if len(meta.Title) > 0 {
		md.Title = strings.TrimSpace(meta.Title[0])
	}
	if len(meta.Language) > 0 {
		md.Language = strings.TrimSpace(meta.Language[0])
	}
	if len(meta.Publisher) > 0 {
		md.Publisher = strings.TrimSpace(meta.Publisher[0])
	}
	if len(meta.Date) > 0 {
		md.Date = strings.TrimSpace(meta.Date[0])
	}
	if len(meta.Description) > 0 {
		md.Description = strings.TrimSpace(meta.Description[0])
	}
	md.Subjects = meta.Subject

	// Identifier: prefer the one named by unique-identifier.
	for _, id := range meta.Identifier {
		if id.ID == uniqueID {
			md.Identifier = strings.TrimSpace(id.Value)
			break
		}
	}
	if md.Identifier == "" && len(meta.Identifier) > 0 {
		md.Identifier = strings.TrimSpace(meta.Identifier[0].Value)
	}

	for _, c := range meta.Creator {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		md.Creators = append(md.Creators, Creator{Name: name, Role: c.Role})
	}

	// EPUB 2 cover reference.
	for _, m := range meta.Meta {
		if m.Name == "cover" && m.Content != "" {
			md.CoverID = m.Content
			break
		}
	}

	return md
}
