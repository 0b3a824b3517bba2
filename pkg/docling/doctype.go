package docling

import (
	"net/url"
	"path"
	"strings"
)

// KindUnknown is returned when no extension mapping applies. The ingestion
// stage skips conversion for unknown kinds and the job fails.
const KindUnknown = "unknown"

// extensionKinds maps file extensions to converter source kinds.
var extensionKinds = map[string]string{
	".pdf":      "pdf",
	".docx":     "docx",
	".doc":      "docx",
	".pptx":     "pptx",
	".ppt":      "pptx",
	".xlsx":     "xlsx",
	".xls":      "xlsx",
	".html":     "html",
	".htm":      "html",
	".md":       "md",
	".markdown": "md",
	".adoc":     "asciidoc",
	".asciidoc": "asciidoc",
	".csv":      "csv",
	".png":      "image",
	".jpg":      "image",
	".jpeg":     "image",
	".gif":      "image",
	".webp":     "image",
	".bmp":      "image",
	".tiff":     "image",
}

// DetectDocumentType determines the converter source kind from a URL or bare
// filename. Only the path matters; query parameters (signed URL signatures
// and the like) never change the result. XML is disambiguated by path
// keywords since the converter distinguishes USPTO and JATS flavors.
func DetectDocumentType(rawURL string) string {
	p := rawURL
	if parsed, err := url.Parse(rawURL); err == nil && parsed.Path != "" {
		p = parsed.Path
	}
	lower := strings.ToLower(p)
	ext := path.Ext(lower)

	if kind, ok := extensionKinds[ext]; ok {
		return kind
	}
	if ext == ".xml" {
		if strings.Contains(lower, "uspto") {
			return "xml_uspto"
		}
		return "xml_jats"
	}
	return KindUnknown
}
