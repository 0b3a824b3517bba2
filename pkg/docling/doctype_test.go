package docling

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectDocumentType(t *testing.T) {
	tests := []struct {
		url      string
		expected string
	}{
		{"https://storage.googleapis.com/bucket/documents.in/u1/exam.pdf", "pdf"},
		{"https://example.com/path/to/notes.DOCX", "docx"},
		{"report.doc", "docx"},
		{"slides.pptx", "pptx"},
		{"data.xlsx", "xlsx"},
		{"page.html", "html"},
		{"page.htm", "html"},
		{"readme.md", "md"},
		{"guide.adoc", "asciidoc"},
		{"table.csv", "csv"},
		{"scan.png", "image"},
		{"photo.JPEG", "image"},
		{"diagram.webp", "image"},
		{"patents/uspto/application.xml", "xml_uspto"},
		{"articles/jats/paper.xml", "xml_jats"},
		{"some/other/file.xml", "xml_jats"},
		{"./file.unknown", KindUnknown},
		{"no-extension", KindUnknown},
		{"", KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectDocumentType(tt.url))
		})
	}
}

func TestDetectDocumentType_IgnoresQueryParameters(t *testing.T) {
	signed := "https://storage.googleapis.com/bucket/u1/exam.pdf?X-Goog-Algorithm=GOOG4-RSA-SHA256&X-Goog-Signature=abc.docx"
	assert.Equal(t, "pdf", DetectDocumentType(signed))

	// Same path with and without query must agree.
	assert.Equal(t,
		DetectDocumentType("https://example.com/a/b.docx"),
		DetectDocumentType("https://example.com/a/b.docx?expires=123"))
}
