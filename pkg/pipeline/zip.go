package pipeline

import (
	"archive/zip"
	"fmt"
	"io"
	"path"
	"strings"
	"unicode/utf8"
)

var zipImageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
	".svg":  true,
}

// readConversionZip returns the first Markdown entry's content and the image
// entry names from a converter output bundle.
func readConversionZip(zipPath string) (string, []string, error) {
	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", nil, fmt.Errorf("failed to open ZIP %s: %w", zipPath, err)
	}
	defer reader.Close()

	var markdown string
	var images []string
	for _, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		ext := strings.ToLower(path.Ext(file.Name))
		switch {
		case ext == ".md" && markdown == "":
			rc, err := file.Open()
			if err != nil {
				return "", nil, fmt.Errorf("failed to open ZIP entry %s: %w", file.Name, err)
			}
			content, err := io.ReadAll(rc)
			_ = rc.Close()
			if err != nil {
				return "", nil, fmt.Errorf("failed to read ZIP entry %s: %w", file.Name, err)
			}
			markdown = string(content)
		case zipImageExtensions[ext]:
			images = append(images, file.Name)
		}
	}
	return markdown, images, nil
}

// truncateWithMarker cuts text at max characters, appending a marker that
// records the original length so prompts stay within budget without hiding
// the cut. The cut never splits a multi-byte rune.
func truncateWithMarker(text string, max int) string {
	if len(text) <= max {
		return text
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + fmt.Sprintf("\n\n... [truncated, total %d characters]", len(text))
}
