package epub

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// containerPath is the fixed location of the container descriptor.
const containerPath = "META-INF/container.xml"

// defaultMaxEntrySize caps the decompressed size of a single archive entry.
// Guards against zip bombs; archive entries are read fully into memory.
const defaultMaxEntrySize int64 = 256 * 1024 * 1024

// Reader provides read-only access to the entries of an EPUB container.
// It is immutable after Open/NewReader returns and safe for concurrent reads.
type Reader struct {
	zr           *zip.Reader
	files        map[string]*zip.File
	packagePath  string
	maxEntrySize int64

	closer io.Closer // set when opened from a file path
}

// container.xml structure
type containerXML struct {
	Rootfiles struct {
		Rootfile []struct {
			FullPath  string `xml:"full-path,attr"`
			MediaType string `xml:"media-type,attr"`
		} `xml:"rootfile"`
	} `xml:"rootfiles"`
}

// Open opens an EPUB file from disk and locates its package document.
func Open(path string) (*Reader, error) {
	zrc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open EPUB: %w", err)
	}

	r, err := newReader(&zrc.Reader)
	if err != nil {
		zrc.Close()
		return nil, err
	}
	r.closer = zrc
	return r, nil
}

// NewReader opens an EPUB container from an in-memory byte buffer and
// locates its package document.
func NewReader(data []byte) (*Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open EPUB: %w", err)
	}
	return newReader(zr)
}

func newReader(zr *zip.Reader) (*Reader, error) {
	r := &Reader{
		zr:           zr,
		files:        make(map[string]*zip.File, len(zr.File)),
		maxEntrySize: defaultMaxEntrySize,
	}
	for _, f := range zr.File {
		r.files[normalizeEntryName(f.Name)] = f
	}

	if err := r.parseContainer(); err != nil {
		return nil, err
	}
	return r, nil
}

// Close releases the underlying file handle, if any. Readers created from
// a byte buffer have nothing to release.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// SetMaxEntrySize overrides the per-entry decompressed size limit.
// Values <= 0 restore the default.
func (r *Reader) SetMaxEntrySize(n int64) {
	if n <= 0 {
		n = defaultMaxEntrySize
	}
	r.maxEntrySize = n
}

// PackagePath returns the archive path of the package document as declared
// by the container descriptor.
func (r *Reader) PackagePath() string {
	return r.packagePath
}

// Has reports whether the archive contains an entry with the given path.
func (r *Reader) Has(path string) bool {
	_, ok := r.files[normalizeEntryName(path)]
	return ok
}

// MimetypeOK reports whether the archive carries the expected EPUB mimetype
// entry. A wrong or absent mimetype is diagnostic only, never fatal.
func (r *Reader) MimetypeOK() bool {
	data, err := r.ReadFile("mimetype")
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(data)) == "application/epub+zip"
}

// ReadFile reads the full contents of an archive entry. The per-entry size
// limit is enforced against the actual decompressed byte count, not the
// declared size, which may be forged.
func (r *Reader) ReadFile(path string) ([]byte, error) {
	f, ok := r.files[normalizeEntryName(path)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open entry %s: %w", path, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, r.maxEntrySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read entry %s: %w", path, err)
	}
	if int64(len(data)) > r.maxEntrySize {
		return nil, fmt.Errorf("entry %s exceeds size limit (%d bytes)", path, r.maxEntrySize)
	}
	return stripBOM(data), nil
}

// parseContainer reads the container descriptor and records the package
// document path.
func (r *Reader) parseContainer() error {
	data, err := r.ReadFile(containerPath)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return structuralErr("container", containerPath, "container missing", nil)
		}
		return structuralErr("container", containerPath, "container missing", err)
	}

	var c containerXML
	if err := xml.Unmarshal(data, &c); err != nil {
		return structuralErr("container", containerPath, "malformed container XML", err)
	}

	if len(c.Rootfiles.Rootfile) == 0 {
		return structuralErr("container", containerPath, "no rootfile", nil)
	}

	fullPath := strings.TrimSpace(c.Rootfiles.Rootfile[0].FullPath)
	if fullPath == "" {
		return structuralErr("container", containerPath, "rootfile missing path", nil)
	}

	r.packagePath = normalizeEntryName(fullPath)
	return nil
}

// normalizeEntryName removes a leading "./" so that declared paths and
// archive entry names compare equal.
func normalizeEntryName(name string) string {
	return strings.TrimPrefix(name, "./")
}

// stripBOM removes a leading UTF-8 byte order mark, if present.
func stripBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}
