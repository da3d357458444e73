package epub

// Package represents the parsed package document of an EPUB container.
type Package struct {
	Metadata Metadata
	Manifest map[string]ManifestItem // id -> item
	// ManifestOrder preserves the document order of manifest ids.
	ManifestOrder []string
	Spine         []SpineItem
	Guide         []GuideReference
	// BaseDir is the package document's parent directory within the archive,
	// empty when the package document sits at the archive root. All manifest
	// hrefs resolve against it.
	BaseDir string
	// NCXPath is the archive path of the navigation document referenced by
	// the spine's toc attribute, empty if absent.
	NCXPath string
}

// Metadata represents the metadata section of the package document.
type Metadata struct {
	Title       string
	Creators    []Creator
	Language    string
	Identifier  string
	Publisher   string
	Date        string
	Description string
	Subjects    []string
	CoverID     string // EPUB 2 cover image manifest id (from meta name="cover")
}

// Creator represents a creator (author, editor, etc.) of the book.
type Creator struct {
	Name string
	Role string // e.g., "aut" for author, "edt" for editor
}

// ManifestItem represents an item in the manifest. Href is kept as declared,
// relative to the package document's directory; use ResolveHref to obtain
// the archive-absolute path.
type ManifestItem struct {
	ID         string
	Href       string
	MediaType  string
	Properties []string
}

// SpineItem represents an item reference in the spine. Spine order is the
// authoritative reading order.
type SpineItem struct {
	IDRef  string
	Linear bool
}

// GuideReference represents a reference element in the EPUB 2 guide.
type GuideReference struct {
	Type  string
	Title string
	Href  string
}
