// Package extract turns uploaded resume documents into plain text.
package extract

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

const (
	MimePDF  = "application/pdf"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeText = "text/plain"

	// BinarySampleSize is how many bytes are inspected to decide if a .txt is really binary.
	BinarySampleSize = 1000
	binaryThreshold  = 0.3
)

var (
	ErrUnsupportedType = errors.New("unsupported file type (supported: PDF, DOCX, TXT)")
	ErrEmptyText       = errors.New("no text could be extracted from the document")
	ErrTypeMismatch    = errors.New("file content does not match its extension")
)

// DetectMime maps a file name to its MIME type and checks the content agrees.
func DetectMime(filename string, data []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		if !bytes.HasPrefix(data, []byte("%PDF-")) {
			return "", ErrTypeMismatch
		}
		return MimePDF, nil
	case ".docx":
		if !bytes.HasPrefix(data, []byte("PK")) {
			return "", ErrTypeMismatch
		}
		return MimeDOCX, nil
	case ".txt":
		if IsBinaryData(data) {
			return "", ErrTypeMismatch
		}
		return MimeText, nil
	default:
		return "", ErrUnsupportedType
	}
}

// Text extracts normalised plain text from a PDF, DOCX or TXT file.
func Text(filename string, data []byte) (string, error) {
	mime, err := DetectMime(filename, data)
	if err != nil {
		return "", err
	}
	return TextByMime(mime, data)
}

// TextByMime extracts text when the MIME type is already known.
func TextByMime(mime string, data []byte) (string, error) {
	var (
		text string
		err  error
	)
	switch mime {
	case MimeText:
		text = string(data)
	case MimePDF:
		text, err = extractPDFText(data)
	case MimeDOCX:
		text, err = extractDocxText(data)
	default:
		return "", ErrUnsupportedType
	}
	if err != nil {
		return "", err
	}

	text = Normalize(text)
	if text == "" {
		return "", ErrEmptyText
	}
	return text, nil
}

func extractPDFText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to read pdf: %w", err)
	}
	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func extractDocxText(data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to parse docx: %w", err)
	}
	defer doc.Close()
	return xmlToText(doc.Editable().GetContent())
}

// xmlToText keeps character data from WordprocessingML, one line per paragraph.
func xmlToText(content string) (string, error) {
	dec := xml.NewDecoder(strings.NewReader(content))
	var sb strings.Builder
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read docx xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			sb.Write(t)
		case xml.StartElement:
			if t.Name.Local == "tab" {
				sb.WriteString("\t")
			}
		case xml.EndElement:
			if t.Name.Local == "p" || t.Name.Local == "br" {
				sb.WriteString("\n")
			}
		}
	}
	return sb.String(), nil
}

var (
	spaceRun = regexp.MustCompile(`[ \t\f\v]+`)
	blankRun = regexp.MustCompile(`\n{3,}`)
)

// Normalize fixes invalid UTF-8, trims lines and collapses blank runs.
func Normalize(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\x00", "")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(spaceRun.ReplaceAllString(l, " "))
	}
	s = strings.Join(lines, "\n")
	s = blankRun.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// IsBinaryData reports whether content looks like a binary document rather than text.
func IsBinaryData(content []byte) bool {
	if len(content) == 0 {
		return false
	}
	if bytes.HasPrefix(content, []byte("%PDF-")) || bytes.HasPrefix(content, []byte("PK")) {
		return true
	}
	sample := min(BinarySampleSize, len(content))
	nonPrintable := 0
	for _, ch := range content[:sample] {
		if ch < 32 && ch != '\n' && ch != '\r' && ch != '\t' {
			nonPrintable++
		}
	}
	return float64(nonPrintable)/float64(sample) > binaryThreshold
}
