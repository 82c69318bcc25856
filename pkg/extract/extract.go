// Package extract pulls plain text out of uploaded documents. Supported
// formats are a fixed allow-list; anything else is rejected at the boundary
// before reaching the relay core.
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Format is a supported attachment format, derived from the file extension.
type Format string

// Document formats carry extractable text. Image formats pass through to the
// backend as-is.
const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatXLSX Format = "xlsx"
	FormatTXT  Format = "txt"
	FormatRTF  Format = "rtf"

	FormatPNG  Format = "png"
	FormatJPG  Format = "jpg"
	FormatJPEG Format = "jpeg"
	FormatGIF  Format = "gif"
	FormatWEBP Format = "webp"
)

var (
	// ErrUnsupported means the format is outside the allow-list.
	ErrUnsupported = errors.New("extract: unsupported format")

	// ErrNoContent means the document parsed but held no readable text.
	ErrNoContent = errors.New("extract: no readable content")
)

// DocumentFormats lists the formats Extract accepts, in the order shown to
// users in the unsupported-format message.
var DocumentFormats = []Format{FormatPDF, FormatDOCX, FormatXLSX, FormatTXT, FormatRTF}

// ImageFormats lists the image formats the relay forwards without
// extraction.
var ImageFormats = []Format{FormatPNG, FormatJPG, FormatJPEG, FormatGIF, FormatWEBP}

// FromFilename derives the format from the file extension. The second
// return is false when the extension is outside the allow-list.
func FromFilename(name string) (Format, bool) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	f := Format(ext)
	switch f {
	case FormatPDF, FormatDOCX, FormatXLSX, FormatTXT, FormatRTF,
		FormatPNG, FormatJPG, FormatJPEG, FormatGIF, FormatWEBP:
		return f, true
	}
	return "", false
}

// IsImage reports whether the format is forwarded as an image attachment.
func (f Format) IsImage() bool {
	switch f {
	case FormatPNG, FormatJPG, FormatJPEG, FormatGIF, FormatWEBP:
		return true
	}
	return false
}

// Extract returns the plain text of a document in the given format. It
// returns ErrUnsupported for image or unknown formats and ErrNoContent when
// parsing succeeds but yields nothing readable.
func Extract(data []byte, format Format) (string, error) {
	var text string
	var err error

	switch format {
	case FormatPDF:
		text, err = extractPDF(data)
	case FormatDOCX:
		text, err = extractDOCX(data)
	case FormatXLSX:
		text, err = extractXLSX(data)
	case FormatTXT:
		text = string(data)
	case FormatRTF:
		text = stripRTF(string(data))
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, format)
	}
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(text) == "" {
		return "", ErrNoContent
	}
	return text, nil
}
