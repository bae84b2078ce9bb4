package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestExtractPlainText(t *testing.T) {
	assert := assert.New(t)

	path := writeFile(t, "notes.txt", []byte("Alpha Beta\nGamma"))

	text, err := NewExtractor(nil).Extract(context.Background(), path, "notes.txt")
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal("Alpha Beta\nGamma", text)
}

func TestExtractUnknownExtensionFallsBackToText(t *testing.T) {
	assert := assert.New(t)

	path := writeFile(t, "upload.bin", []byte("resume of a gopher"))

	text, err := NewExtractor(nil).Extract(context.Background(), path, "resume.md")
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal("resume of a gopher", text)
}

func TestExtractInvalidUTF8(t *testing.T) {
	path := writeFile(t, "broken.txt", []byte{0xff, 0xfe, 0xfd})

	_, err := NewExtractor(nil).Extract(context.Background(), path, "broken.txt")
	assert.ErrorIs(t, err, ErrExtraction)
}

func TestExtractMissingFile(t *testing.T) {
	_, err := NewExtractor(nil).Extract(context.Background(), "/does/not/exist", "missing.txt")
	assert.ErrorIs(t, err, ErrExtraction)
}

func TestExtractMalformedPDF(t *testing.T) {
	path := writeFile(t, "fake.pdf", []byte("this is not a pdf"))

	_, err := NewExtractor(nil).Extract(context.Background(), path, "fake.PDF")
	assert.ErrorIs(t, err, ErrExtraction)
}

func TestExtractMalformedDocx(t *testing.T) {
	path := writeFile(t, "fake.docx", []byte("this is not a zip archive"))

	_, err := NewExtractor(nil).Extract(context.Background(), path, "fake.docx")
	assert.ErrorIs(t, err, ErrExtraction)
}

const contentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
  <Default Extension="xml" ContentType="application/xml"/>
  <Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

const documentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Hello from a gopher</w:t></w:r></w:p>
  </w:body>
</w:document>`

func TestExtractDocx(t *testing.T) {
	assert := assert.New(t)

	path := filepath.Join(t.TempDir(), "doc.docx")

	f, err := os.Create(path)
	require.NoError(t, err)

	zw := zip.NewWriter(f)
	for name, content := range map[string]string{
		"[Content_Types].xml": contentTypes,
		"word/document.xml":   documentXML,
	} {
		w, err := zw.Create(name)
		require.NoError(t, err)

		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}

	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	text, err := NewExtractor(nil).Extract(context.Background(), path, "doc.docx")
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Contains(text, "Hello from a gopher")
}

// buildPDF writes a minimal PDF with one Helvetica text line per page. An
// empty string yields a page with an empty content stream.
func buildPDF(pages []string) []byte {
	var buf bytes.Buffer
	var offsets []int

	object := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")

	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}

	object("<< /Type /Catalog /Pages 2 0 R >>")
	object(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))
	object("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	for i, text := range pages {
		object(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
			"/Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i))

		var content string
		if text != "" {
			content = fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		}

		object(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}

	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)

	return buf.Bytes()
}

func TestExtractPDF(t *testing.T) {
	assert := assert.New(t)

	path := writeFile(t, "upload.bin", buildPDF([]string{
		"First page of the handbook",
		"",
		"Third page closes it",
	}))

	text, err := NewExtractor(nil).Extract(context.Background(), path, "handbook.pdf")
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	segments := strings.Split(text, "\n")
	if !assert.Len(segments, 2) {
		return
	}

	assert.Equal("First page of the handbook", segments[0])
	assert.Equal("Third page closes it", segments[1])
	assert.NotContains(segments, "")
}
