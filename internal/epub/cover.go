package epub

import (
	"path"
	"strings"
)

// CoverInfo holds information about the detected cover image.
type CoverInfo struct {
	ManifestID      string
	Href            string // as declared in the manifest, relative to BaseDir
	MediaType       string
	DetectionMethod string // "properties", "meta", "guide", "filename"
}

// DetectCover detects the cover image from the manifest using multiple
// methods, tried in priority order:
//  1. properties="cover-image" (EPUB 3)
//  2. meta name="cover" (EPUB 2)
//  3. guide type="cover" matched to image manifest items
//  4. filename pattern (basename contains "cover", case-insensitive)
//
// Returns nil if no cover image is found.
func (pkg *Package) DetectCover() *CoverInfo {
	for _, id := range pkg.ManifestOrder {
		item := pkg.Manifest[id]
		if item.HasProperty("cover-image") && isImageMediaType(item.MediaType) {
			return coverInfo(item, "properties")
		}
	}

	if pkg.Metadata.CoverID != "" {
		if item, ok := pkg.Manifest[pkg.Metadata.CoverID]; ok && isImageMediaType(item.MediaType) {
			return coverInfo(item, "meta")
		}
	}

	for _, ref := range pkg.Guide {
		if !strings.EqualFold(ref.Type, "cover") {
			continue
		}
		href, _ := splitFragment(ref.Href)
		for _, id := range pkg.ManifestOrder {
			item := pkg.Manifest[id]
			if isImageMediaType(item.MediaType) && item.Href == href {
				return coverInfo(item, "guide")
			}
		}
	}

	for _, id := range pkg.ManifestOrder {
		item := pkg.Manifest[id]
		if !isImageMediaType(item.MediaType) {
			continue
		}
		if strings.Contains(strings.ToLower(path.Base(item.Href)), "cover") {
			return coverInfo(item, "filename")
		}
	}

	return nil
}

func coverInfo(item ManifestItem, method string) *CoverInfo {
	return &CoverInfo{
		ManifestID:      item.ID,
		Href:            item.Href,
		MediaType:       item.MediaType,
		DetectionMethod: method,
	}
}

// isImageMediaType checks if a media type is a raster image (SVG excluded).
func isImageMediaType(mediaType string) bool {
	if mediaType == "image/svg+xml" {
		return false
	}
	return strings.HasPrefix(mediaType, "image/")
}
