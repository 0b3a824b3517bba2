// Package docling wraps the external Docling conversion service that turns
// uploaded documents into Markdown, optionally bundled as a ZIP with the
// extracted images.
package docling

// Target types for converter output.
const (
	TargetInBody = "inbody"
	TargetZip    = "zip"
)

// OCR engines recognized by the converter.
const (
	OCREngineEasyOCR   = "easyocr"
	OCREngineTesseract = "tesseract"
)

// PDF parse backends.
const (
	PDFBackendDLParseV2 = "dlparse_v2"
	PDFBackendDLParseV4 = "dlparse_v4"
)

// Options is the closed set of conversion parameters the converter accepts.
// The validation stage mutates a copy of these between retry attempts to
// re-parameterize the conversion.
type Options struct {
	TargetType string   `json:"target_type"`
	ToFormats  []string `json:"to_formats"`

	DoOCR     bool     `json:"do_ocr"`
	ForceOCR  bool     `json:"force_ocr"`
	OCREngine string   `json:"ocr_engine"`
	OCRLang   []string `json:"ocr_lang"`

	TableMode         string `json:"table_mode"`
	DoTableStructure  bool   `json:"do_table_structure"`
	TableCellMatching bool   `json:"table_cell_matching"`

	IncludeImages   bool   `json:"include_images"`
	ImagesScale     int    `json:"images_scale"`
	ImageExportMode string `json:"image_export_mode"`

	PDFBackend string `json:"pdf_backend"`

	Pipeline        string `json:"pipeline"`
	PageRange       []int  `json:"page_range"`
	DocumentTimeout int    `json:"document_timeout"`

	MDPageBreakPlaceholder string `json:"md_page_break_placeholder"`
	AbortOnError           bool   `json:"abort_on_error"`

	DoCodeEnrichment        bool `json:"do_code_enrichment"`
	DoFormulaEnrichment     bool `json:"do_formula_enrichment"`
	DoPictureClassification bool `json:"do_picture_classification"`
	DoPictureDescription    bool `json:"do_picture_description"`
}

// DefaultOptions returns the conversion defaults used on the first attempt.
func DefaultOptions() *Options {
	return &Options{
		TargetType:          TargetInBody,
		ToFormats:           []string{"md"},
		DoOCR:               true,
		OCREngine:           OCREngineEasyOCR,
		OCRLang:             []string{"fr", "de", "es", "en"},
		TableMode:           "accurate",
		DoTableStructure:    true,
		TableCellMatching:   true,
		IncludeImages:       true,
		ImagesScale:         2,
		ImageExportMode:     "referenced",
		PDFBackend:          PDFBackendDLParseV2,
		Pipeline:            "standard",
		PageRange:           []int{1, maxPage},
		DocumentTimeout:     604800,
		DoFormulaEnrichment: true,
	}
}

// maxPage is the converter's open-ended page range sentinel.
const maxPage = 1<<63 - 1024

// Clone returns a copy that can be mutated independently.
func (o *Options) Clone() *Options {
	clone := *o
	clone.ToFormats = append([]string(nil), o.ToFormats...)
	clone.OCRLang = append([]string(nil), o.OCRLang...)
	clone.PageRange = append([]int(nil), o.PageRange...)
	return &clone
}
