package extract

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/disintegration/imaging"

	"github.com/yuanying/epubtext/internal/epub"
)

// ErrNoCover indicates no cover image could be detected with any of the
// supported strategies.
var ErrNoCover = errors.New("extract: no cover image found")

// CoverOptions configures cover export.
type CoverOptions struct {
	// MaxWidth downscales wider covers to this width, preserving aspect
	// ratio. Zero or negative disables scaling.
	MaxWidth int

	// Quality is the JPEG encoding quality (1-100). Zero selects 85.
	Quality int
}

// ExportCover detects the book's cover image, optionally downscales it, and
// writes it to outPath. The output format follows the file extension; JPEG
// output honors the quality setting.
func ExportCover(r *epub.Reader, pkg *epub.Package, outPath string, opts CoverOptions) (*epub.CoverInfo, error) {
	info := pkg.DetectCover()
	if info == nil {
		return nil, ErrNoCover
	}

	resolved := epub.ResolveHref(pkg.BaseDir, info.Href)
	data, err := readWithDecodedFallback(r, resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to read cover %s: %w", resolved, err)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode cover %s: %w", resolved, err)
	}

	if opts.MaxWidth > 0 && img.Bounds().Dx() > opts.MaxWidth {
		img = imaging.Resize(img, opts.MaxWidth, 0, imaging.Lanczos)
	}

	quality := opts.Quality
	if quality <= 0 {
		quality = 85
	}
	if err := imaging.Save(img, outPath, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to save cover: %w", err)
	}
	return info, nil
}
