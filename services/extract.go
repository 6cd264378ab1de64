package services

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

const MaxSourceFileSize = 10 << 20 // 10MB

// ExtractText đọc nội dung văn bản từ file upload (.pdf, .docx, .txt)
func ExtractText(fh *multipart.FileHeader) (string, error) {
	if fh.Size > MaxSourceFileSize {
		return "", NewValidationError("file", "file vượt quá 10MB")
	}
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxSourceFileSize+1))
	if err != nil {
		return "", fmt.Errorf("lỗi đọc file: %w", err)
	}

	var text string
	switch strings.ToLower(filepath.Ext(fh.Filename)) {
	case ".pdf":
		text, err = ExtractTextFromPDF(data)
	case ".docx":
		text, err = ExtractTextFromDOCX(data)
	case ".txt":
		text = string(data)
	default:
		return "", NewValidationError("file", "chỉ hỗ trợ PDF, DOCX, TXT")
	}
	if err != nil {
		return "", err
	}
	text = PreCleanText(text)
	if text == "" {
		return "", NewValidationError("file", "không trích xuất được nội dung từ file")
	}
	return text, nil
}

func ExtractTextFromPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("không thể tạo reader PDF: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(content)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// ExtractTextFromDOCX: .docx là file zip, văn bản nằm trong các thẻ <w:t> của word/document.xml
func ExtractTextFromDOCX(data []byte) (string, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("file DOCX không hợp lệ: %w", err)
	}

	var docFile *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", errors.New("file DOCX thiếu word/document.xml")
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	var sb strings.Builder
	decoder := xml.NewDecoder(rc)
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "t":
			var text string
			if err := decoder.DecodeElement(&text, &se); err == nil {
				sb.WriteString(text)
			}
		case "p":
			sb.WriteString("\n")
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

var (
	reTOC          = regexp.MustCompile(`(?im)^.*(mục lục|table of contents).*$`)
	rePageNumber   = regexp.MustCompile(`(?im)^\s*(trang|page)\s*\d+\s*$`)
	reSpecialLines = regexp.MustCompile(`(?m)^[^\p{L}\n]*$`)
	reMultiNewLine = regexp.MustCompile(`\n{2,}`)
)

// PreCleanText bỏ mục lục, số trang, dòng rác và dòng trống thừa
func PreCleanText(text string) string {
	cleaned := strings.ReplaceAll(text, "\r\n", "\n")
	cleaned = reTOC.ReplaceAllString(cleaned, "")
	cleaned = rePageNumber.ReplaceAllString(cleaned, "")
	cleaned = reSpecialLines.ReplaceAllString(cleaned, "")
	cleaned = reMultiNewLine.ReplaceAllString(cleaned, "\n")
	return strings.TrimSpace(cleaned)
}

// SplitIntoChunks chia văn bản thành các đoạn tối đa maxLen rune, cắt ở ranh giới câu khi có thể
func SplitIntoChunks(text string, maxLen int) []string {
	runes := []rune(strings.TrimSpace(text))
	var chunks []string
	for len(runes) > 0 {
		if len(runes) <= maxLen {
			chunks = append(chunks, string(runes))
			break
		}
		cut := maxLen
		for i := maxLen - 1; i > maxLen/2; i-- {
			if isSentenceEnd(runes[i]) && (i+1 >= len(runes) || unicode.IsSpace(runes[i+1])) {
				cut = i + 1
				break
			}
		}
		chunk := strings.TrimSpace(string(runes[:cut]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		runes = []rune(strings.TrimLeftFunc(string(runes[cut:]), unicode.IsSpace))
	}
	return chunks
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == '\n'
}
