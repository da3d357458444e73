package extract

import (
	"errors"
	"net/url"
	"runtime"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yuanying/epubtext/internal/epub"
)

// ChapterSeparator is the literal marker inserted between extracted chapter
// texts. Consumers performing chapter-aware processing key off this exact
// string; do not change it.
const ChapterSeparator = "\n\n------------------- CHAPTER BREAK -------------------\n\n"

// ErrEmptyResult indicates a structurally valid container in which no spine
// entry yielded readable text.
var ErrEmptyResult = errors.New("extract: no spine entry yielded readable text")

// Options configures an extraction pipeline.
type Options struct {
	// Workers bounds concurrent per-entry extraction. Zero or negative
	// selects GOMAXPROCS. Output is identical regardless of worker count;
	// chapter order always follows the spine.
	Workers int

	// MaxEntrySize caps the decompressed size of a single archive entry.
	// Zero keeps the reader's default.
	MaxEntrySize int64

	// SkipNonLinear drops spine items marked linear="no".
	SkipNonLinear bool

	Logger *zap.Logger
}

// Pipeline converts an EPUB container into a single reading-order text
// stream with explicit chapter boundaries. A Pipeline holds no per-book
// state and may be reused across extractions.
type Pipeline struct {
	workers       int
	maxEntrySize  int64
	skipNonLinear bool
	log           *zap.Logger
}

// NewPipeline creates a Pipeline with the given options.
func NewPipeline(opts Options) *Pipeline {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		workers:       workers,
		maxEntrySize:  opts.MaxEntrySize,
		skipNonLinear: opts.SkipNonLinear,
		log:           log,
	}
}

// ExtractFile runs the pipeline over an EPUB file on disk.
func (p *Pipeline) ExtractFile(path string) (string, error) {
	r, err := epub.Open(path)
	if err != nil {
		return "", err
	}
	defer r.Close()
	return p.Extract(r)
}

// ExtractBytes runs the pipeline over an in-memory EPUB container.
func (p *Pipeline) ExtractBytes(data []byte) (string, error) {
	r, err := epub.NewReader(data)
	if err != nil {
		return "", err
	}
	return p.Extract(r)
}

// Extract runs the pipeline over an opened container: parse the package
// document, extract every spine entry in order, and assemble the result.
// Individual spine entries that cannot be located or parsed are skipped;
// only structural defects and an all-empty result are fatal.
func (p *Pipeline) Extract(r *epub.Reader) (string, error) {
	if p.maxEntrySize > 0 {
		r.SetMaxEntrySize(p.maxEntrySize)
	}
	if !r.MimetypeOK() {
		p.log.Warn("mimetype entry missing or not application/epub+zip, continuing")
	}

	pkg, err := epub.LoadPackage(r)
	if err != nil {
		return "", err
	}

	return Assemble(p.extractChapters(r, pkg))
}

// extractChapters extracts every spine entry, possibly concurrently, and
// returns the non-empty chapter texts in spine order.
func (p *Pipeline) extractChapters(r *epub.Reader, pkg *epub.Package) []string {
	texts := make([]string, len(pkg.Spine))

	var g errgroup.Group
	g.SetLimit(p.workers)
	for i, item := range pkg.Spine {
		if p.skipNonLinear && !item.Linear {
			p.log.Debug("skipping non-linear spine item", zap.String("idref", item.IDRef))
			continue
		}
		g.Go(func() error {
			texts[i] = p.extractEntry(r, pkg, item)
			return nil
		})
	}
	// Workers never return errors; per-entry failures are recovered skips.
	_ = g.Wait()

	chapters := make([]string, 0, len(texts))
	for _, t := range texts {
		if t != "" {
			chapters = append(chapters, t)
		}
	}
	return chapters
}

// extractEntry produces the text of a single spine entry, or "" when the
// entry is skipped.
func (p *Pipeline) extractEntry(r *epub.Reader, pkg *epub.Package, item epub.SpineItem) string {
	mi, ok := pkg.Manifest[item.IDRef]
	if !ok {
		p.log.Warn("spine idref not in manifest, skipping",
			zap.String("idref", item.IDRef))
		return ""
	}

	resolved := epub.ResolveHref(pkg.BaseDir, mi.Href)
	data, err := readWithDecodedFallback(r, resolved)
	if err != nil {
		p.log.Warn("content entry unreadable, skipping",
			zap.String("idref", item.IDRef),
			zap.String("path", resolved),
			zap.Error(err))
		return ""
	}

	text, err := Text(data)
	if err != nil {
		p.log.Warn("content parse failed, skipping",
			zap.String("path", resolved),
			zap.Error(err))
		return ""
	}
	return text
}

// readWithDecodedFallback reads an archive entry at the exact resolved path
// first, then retries with the percent-decoded path. Archive-entry naming
// varies in the wild; both attempts, in that order, are deliberate.
func readWithDecodedFallback(r *epub.Reader, path string) ([]byte, error) {
	data, err := r.ReadFile(path)
	if err == nil || !errors.Is(err, epub.ErrFileNotFound) {
		return data, err
	}

	decoded, derr := url.PathUnescape(path)
	if derr != nil || decoded == path {
		return nil, err
	}
	return r.ReadFile(decoded)
}

// Assemble joins non-empty chapter texts with the chapter-boundary
// separator. An empty sequence is the only way a structurally valid
// container still fails.
func Assemble(chapters []string) (string, error) {
	if len(chapters) == 0 {
		return "", ErrEmptyResult
	}
	return strings.Join(chapters, ChapterSeparator), nil
}
