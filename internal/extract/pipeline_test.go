package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
)

// buildBook creates an in-memory EPUB container with the standard container
// descriptor, a package document built from the manifest/spine fragments,
// and the given content entries under OEBPS/.
func buildBook(t *testing.T, manifest, spine string, contents map[string]string) []byte {
	t.Helper()

	opf := fmt.Sprintf(`<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Fixture</dc:title>
  </metadata>
  <manifest>%s</manifest>
  <spine>%s</spine>
</package>`, manifest, spine)

	files := map[string]string{
		"mimetype": "application/epub+zip",
		"META-INF/container.xml": `<?xml version="1.0"?>
<container xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`,
		"OEBPS/content.opf": opf,
	}
	for name, body := range contents {
		files["OEBPS/"+name] = body
	}

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatalf("failed to create zip entry %s: %v", name, err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatalf("failed to write zip entry %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close zip writer: %v", err)
	}
	return buf.Bytes()
}

func chapterDoc(body string) string {
	return "<html><body>" + body + "</body></html>"
}

func TestExtract_TwoChapters(t *testing.T) {
	book := buildBook(t,
		`<item id="ch1" href="ch01.xhtml" media-type="application/xhtml+xml"/>
		 <item id="ch2" href="ch02.xhtml" media-type="application/xhtml+xml"/>`,
		`<itemref idref="ch1"/><itemref idref="ch2"/>`,
		map[string]string{
			"ch01.xhtml": chapterDoc("<p>First chapter.</p>"),
			"ch02.xhtml": chapterDoc("<p>Second chapter.</p>"),
		})

	got, err := NewPipeline(Options{}).ExtractBytes(book)
	if err != nil {
		t.Fatalf("ExtractBytes failed: %v", err)
	}

	want := "First chapter." + ChapterSeparator + "Second chapter."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if n := strings.Count(got, ChapterSeparator); n != 1 {
		t.Errorf("separator count = %d, want exactly 1", n)
	}
}

func TestExtract_SpineOrderNotArchiveOrder(t *testing.T) {
	// Archive entry names sort z before a; the spine decides.
	book := buildBook(t,
		`<item id="first" href="z-last-in-zip.xhtml" media-type="application/xhtml+xml"/>
		 <item id="second" href="a-first-in-zip.xhtml" media-type="application/xhtml+xml"/>`,
		`<itemref idref="first"/><itemref idref="second"/>`,
		map[string]string{
			"z-last-in-zip.xhtml":  chapterDoc("<p>Alpha</p>"),
			"a-first-in-zip.xhtml": chapterDoc("<p>Beta</p>"),
		})

	got, err := NewPipeline(Options{}).ExtractBytes(book)
	if err != nil {
		t.Fatalf("ExtractBytes failed: %v", err)
	}
	if got != "Alpha"+ChapterSeparator+"Beta" {
		t.Errorf("got %q, chapters out of spine order", got)
	}
}

func TestExtract_MissingIdrefSkipped(t *testing.T) {
	book := buildBook(t,
		`<item id="ch1" href="ch01.xhtml" media-type="application/xhtml+xml"/>`,
		`<itemref idref="ghost"/><itemref idref="ch1"/>`,
		map[string]string{
			"ch01.xhtml": chapterDoc("<p>Still here.</p>"),
		})

	got, err := NewPipeline(Options{}).ExtractBytes(book)
	if err != nil {
		t.Fatalf("ExtractBytes failed: %v", err)
	}
	if got != "Still here." {
		t.Errorf("got %q, want %q", got, "Still here.")
	}
}

func TestExtract_MissingEntrySkipped(t *testing.T) {
	book := buildBook(t,
		`<item id="ch1" href="gone.xhtml" media-type="application/xhtml+xml"/>
		 <item id="ch2" href="ch02.xhtml" media-type="application/xhtml+xml"/>`,
		`<itemref idref="ch1"/><itemref idref="ch2"/>`,
		map[string]string{
			"ch02.xhtml": chapterDoc("<p>Survivor.</p>"),
		})

	got, err := NewPipeline(Options{}).ExtractBytes(book)
	if err != nil {
		t.Fatalf("ExtractBytes failed: %v", err)
	}
	if got != "Survivor." {
		t.Errorf("got %q, want %q", got, "Survivor.")
	}
}

func TestExtract_AllEmptyIsError(t *testing.T) {
	book := buildBook(t,
		`<item id="ch1" href="ch01.xhtml" media-type="application/xhtml+xml"/>`,
		`<itemref idref="ch1"/>`,
		map[string]string{
			"ch01.xhtml": chapterDoc("<script>no text</script>"),
		})

	_, err := NewPipeline(Options{}).ExtractBytes(book)
	if !errors.Is(err, ErrEmptyResult) {
		t.Errorf("error = %v, want ErrEmptyResult", err)
	}
}

func TestExtract_PercentEncodedHref(t *testing.T) {
	// The manifest declares a percent-encoded href while the archive stores
	// the literal name; the decoded retry must find it.
	book := buildBook(t,
		`<item id="ch1" href="my%20chapter.xhtml" media-type="application/xhtml+xml"/>`,
		`<itemref idref="ch1"/>`,
		map[string]string{
			"my chapter.xhtml": chapterDoc("<p>Found by decoding.</p>"),
		})

	got, err := NewPipeline(Options{}).ExtractBytes(book)
	if err != nil {
		t.Fatalf("ExtractBytes failed: %v", err)
	}
	if got != "Found by decoding." {
		t.Errorf("got %q, want %q", got, "Found by decoding.")
	}
}

func TestExtract_RelativeHrefTraversal(t *testing.T) {
	book := buildBook(t,
		`<item id="ch1" href="../Extra/ch01.xhtml" media-type="application/xhtml+xml"/>`,
		`<itemref idref="ch1"/>`,
		nil)
	// The traversal escapes OEBPS/, so the entry lives at the archive root.
	book = appendZipEntry(t, book, "Extra/ch01.xhtml", chapterDoc("<p>Up and over.</p>"))

	got, err := NewPipeline(Options{}).ExtractBytes(book)
	if err != nil {
		t.Fatalf("ExtractBytes failed: %v", err)
	}
	if got != "Up and over." {
		t.Errorf("got %q, want %q", got, "Up and over.")
	}
}

// appendZipEntry rewrites the archive with one additional entry.
func appendZipEntry(t *testing.T, data []byte, name, content string) []byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("failed to reopen zip: %v", err)
	}

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, f := range zr.File {
		fw, err := w.Create(f.Name)
		if err != nil {
			t.Fatalf("failed to copy zip entry %s: %v", f.Name, err)
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("failed to open zip entry %s: %v", f.Name, err)
		}
		if _, err := io.Copy(fw, rc); err != nil {
			t.Fatalf("failed to copy zip entry %s: %v", f.Name, err)
		}
		rc.Close()
	}
	fw, err := w.Create(name)
	if err != nil {
		t.Fatalf("failed to create zip entry %s: %v", name, err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("failed to write zip entry %s: %v", name, err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close zip writer: %v", err)
	}
	return buf.Bytes()
}

func TestExtract_WorkerCountDoesNotAffectOutput(t *testing.T) {
	manifest := ""
	spine := ""
	contents := map[string]string{}
	for i := 1; i <= 12; i++ {
		manifest += fmt.Sprintf(`<item id="ch%d" href="ch%02d.xhtml" media-type="application/xhtml+xml"/>`, i, i)
		spine += fmt.Sprintf(`<itemref idref="ch%d"/>`, i)
		contents[fmt.Sprintf("ch%02d.xhtml", i)] = chapterDoc(fmt.Sprintf("<p>Chapter %d.</p>", i))
	}
	book := buildBook(t, manifest, spine, contents)

	serial, err := NewPipeline(Options{Workers: 1}).ExtractBytes(book)
	if err != nil {
		t.Fatalf("ExtractBytes (workers=1) failed: %v", err)
	}
	parallel, err := NewPipeline(Options{Workers: 8}).ExtractBytes(book)
	if err != nil {
		t.Fatalf("ExtractBytes (workers=8) failed: %v", err)
	}
	if serial != parallel {
		t.Error("output differs between worker counts")
	}
	if !strings.HasPrefix(serial, "Chapter 1.") || !strings.HasSuffix(serial, "Chapter 12.") {
		t.Errorf("chapters out of order: %q", serial)
	}
}

func TestExtract_SkipNonLinear(t *testing.T) {
	book := buildBook(t,
		`<item id="ch1" href="ch01.xhtml" media-type="application/xhtml+xml"/>
		 <item id="notes" href="notes.xhtml" media-type="application/xhtml+xml"/>`,
		`<itemref idref="ch1"/><itemref idref="notes" linear="no"/>`,
		map[string]string{
			"ch01.xhtml":  chapterDoc("<p>Main text.</p>"),
			"notes.xhtml": chapterDoc("<p>Back matter.</p>"),
		})

	got, err := NewPipeline(Options{SkipNonLinear: true}).ExtractBytes(book)
	if err != nil {
		t.Fatalf("ExtractBytes failed: %v", err)
	}
	if got != "Main text." {
		t.Errorf("got %q, want non-linear entry dropped", got)
	}

	got, err = NewPipeline(Options{}).ExtractBytes(book)
	if err != nil {
		t.Fatalf("ExtractBytes failed: %v", err)
	}
	if got != "Main text."+ChapterSeparator+"Back matter." {
		t.Errorf("got %q, want non-linear entry kept by default", got)
	}
}

func TestExtract_OversizedEntrySkipped(t *testing.T) {
	big := chapterDoc("<p>" + strings.Repeat("x", 4096) + "</p>")
	book := buildBook(t,
		`<item id="ch1" href="big.xhtml" media-type="application/xhtml+xml"/>
		 <item id="ch2" href="ch02.xhtml" media-type="application/xhtml+xml"/>`,
		`<itemref idref="ch1"/><itemref idref="ch2"/>`,
		map[string]string{
			"big.xhtml":  big,
			"ch02.xhtml": chapterDoc("<p>Small.</p>"),
		})

	got, err := NewPipeline(Options{MaxEntrySize: 1024}).ExtractBytes(book)
	if err != nil {
		t.Fatalf("ExtractBytes failed: %v", err)
	}
	if got != "Small." {
		t.Errorf("got %q, want oversized entry skipped", got)
	}
}

func TestExtract_StructuralErrorSurfaces(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create("mimetype")
	fw.Write([]byte("application/epub+zip"))
	w.Close()

	_, err := NewPipeline(Options{}).ExtractBytes(buf.Bytes())
	if err == nil {
		t.Fatal("ExtractBytes succeeded without a container descriptor")
	}
	if !strings.Contains(err.Error(), "META-INF/container.xml") {
		t.Errorf("error %q does not identify the container descriptor", err)
	}
}

func TestChapterSeparator(t *testing.T) {
	dashes := strings.Repeat("-", 19)
	want := "\n\n" + dashes + " CHAPTER BREAK " + dashes + "\n\n"
	if ChapterSeparator != want {
		t.Errorf("ChapterSeparator = %q, want %q", ChapterSeparator, want)
	}
}

func TestAssemble(t *testing.T) {
	if _, err := Assemble(nil); !errors.Is(err, ErrEmptyResult) {
		t.Errorf("Assemble(nil) error = %v, want ErrEmptyResult", err)
	}

	got, err := Assemble([]string{"one"})
	if err != nil || got != "one" {
		t.Errorf("Assemble single = (%q, %v), want (one, nil)", got, err)
	}

	got, err = Assemble([]string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if strings.Count(got, ChapterSeparator) != 2 {
		t.Errorf("got %q, want two separators", got)
	}
}
