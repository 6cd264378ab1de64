package services

import (
	"archive/zip"
	"bytes"
	"errors"
	"mime/multipart"
	"strings"
	"testing"
)

func TestPreCleanText(t *testing.T) {
	in := "Mục lục\r\nChương 1\r\nTrang 3\r\n----\r\n\r\n\r\nNội dung chính."
	if got, want := PreCleanText(in), "Chương 1\nNội dung chính."; got != want {
		t.Fatalf("PreCleanText = %q, want %q", got, want)
	}
}

func TestSplitIntoChunks(t *testing.T) {
	got := SplitIntoChunks("aaaa. bbbb. cccc.", 12)
	want := []string{"aaaa. bbbb.", "cccc."}
	if len(got) != len(want) {
		t.Fatalf("chunks = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("chunk[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	hard := SplitIntoChunks(strings.Repeat("x", 25), 10)
	if len(hard) != 3 || len(hard[2]) != 5 {
		t.Fatalf("hard split = %q", hard)
	}

	if chunks := SplitIntoChunks("  ", 10); len(chunks) != 0 {
		t.Fatalf("blank text chunks = %q, want none", chunks)
	}

	vi := SplitIntoChunks("Xin chào thế giới", 100)
	if len(vi) != 1 || vi[0] != "Xin chào thế giới" {
		t.Fatalf("short unicode text = %q", vi)
	}
}

func docx(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create failed: %v", err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write failed: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close failed: %v", err)
	}
	return buf.Bytes()
}

func TestExtractTextFromDOCX(t *testing.T) {
	data := docx(t, map[string]string{
		"word/document.xml": `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:r><w:t>Xin chào</w:t></w:r></w:p><w:p><w:r><w:t>Go</w:t></w:r></w:p>
</w:body></w:document>`,
	})
	got, err := ExtractTextFromDOCX(data)
	if err != nil {
		t.Fatalf("ExtractTextFromDOCX failed: %v", err)
	}
	if got != "Xin chào\nGo" {
		t.Fatalf("text = %q", got)
	}

	if _, err := ExtractTextFromDOCX(docx(t, map[string]string{"other.xml": "<x/>"})); err == nil {
		t.Fatalf("expected error when document.xml is missing")
	}
	if _, err := ExtractTextFromDOCX([]byte("not a zip")); err == nil {
		t.Fatalf("expected error for non-zip data")
	}
}

func fileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	w, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("CreateFormFile failed: %v", err)
	}
	_, _ = w.Write(content)
	_ = mw.Close()

	form, err := multipart.NewReader(&body, mw.Boundary()).ReadForm(1 << 20)
	if err != nil {
		t.Fatalf("ReadForm failed: %v", err)
	}
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["file"][0]
}

func TestExtractText(t *testing.T) {
	text, err := ExtractText(fileHeader(t, "notes.TXT", []byte("Trang 1\nGoroutine là luồng nhẹ.\n")))
	if err != nil {
		t.Fatalf("ExtractText txt failed: %v", err)
	}
	if text != "Goroutine là luồng nhẹ." {
		t.Fatalf("text = %q", text)
	}

	var verr *ValidationError
	if _, err := ExtractText(fileHeader(t, "virus.exe", []byte("MZ"))); !errors.As(err, &verr) {
		t.Fatalf("unsupported extension = %v, want ValidationError", err)
	}
	if _, err := ExtractText(fileHeader(t, "empty.txt", []byte("123\n---\n"))); !errors.As(err, &verr) {
		t.Fatalf("file without text = %v, want ValidationError", err)
	}
}
