package utils

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	storage "github.com/supabase-community/storage-go"
)

const MaxImageSize = 5 << 20 // 5MB

var allowedImageExt = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true}

// SupabaseStorage lưu ảnh (avatar, ảnh bìa quiz) lên Supabase Storage.
// Path: <bucket>/<folder>/<uuid>.<ext>
type SupabaseStorage struct {
	baseURL string
	key     string
	bucket  string
	client  *storage.Client
	http    *http.Client
}

func NewSupabaseStorage(baseURL, key, bucket string) *SupabaseStorage {
	baseURL = strings.TrimRight(baseURL, "/")
	return &SupabaseStorage{
		baseURL: baseURL,
		key:     key,
		bucket:  bucket,
		client:  storage.NewClient(baseURL+"/storage/v1", key, nil),
		http:    &http.Client{},
	}
}

// ValidateImage kiểm tra đuôi file và dung lượng ảnh upload
func ValidateImage(fh *multipart.FileHeader) error {
	if fh.Size > MaxImageSize {
		return fmt.Errorf("ảnh vượt quá 5MB")
	}
	if !allowedImageExt[strings.ToLower(filepath.Ext(fh.Filename))] {
		return fmt.Errorf("chỉ hỗ trợ ảnh jpg, png, webp, gif")
	}
	return nil
}

func (s *SupabaseStorage) Upload(ctx context.Context, folder string, fh *multipart.FileHeader) (string, error) {
	if s.baseURL == "" || s.key == "" {
		return "", fmt.Errorf("SUPABASE_URL hoặc SUPABASE_KEY chưa cấu hình")
	}
	file, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer file.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	objectPath := fmt.Sprintf("%s/%s%s", folder, uuid.NewString(), ext)
	contentType := fh.Header.Get("Content-Type")
	options := storage.FileOptions{ContentType: &contentType}

	if _, err := s.client.UploadFile(s.bucket, objectPath, &buf, options); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, objectPath), nil
}

// Delete nhận public URL dạng .../storage/v1/object/public/<bucket>/<path> và xóa object.
// URL không thuộc storage này được bỏ qua.
func (s *SupabaseStorage) Delete(ctx context.Context, publicURL string) error {
	if publicURL == "" || s.baseURL == "" {
		return nil
	}
	idx := strings.Index(publicURL, "/storage/v1/object/")
	if idx == -1 {
		return nil
	}

	rest := strings.TrimPrefix(publicURL[idx+len("/storage/v1/object/"):], "public/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) < 2 {
		return fmt.Errorf("không parse được bucket/object từ URL: %s", publicURL)
	}
	bucket, object := parts[0], parts[1]
	if qIdx := strings.Index(object, "?"); qIdx != -1 {
		object = object[:qIdx]
	}
	if u, err := url.PathUnescape(object); err == nil {
		object = u
	}

	deleteURL := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, bucket, object)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, deleteURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.key)
	req.Header.Set("apikey", s.key)

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	// Supabase trả 200 hoặc 204 khi xóa thành công
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("xóa file Supabase thất bại: status=%d body=%s", resp.StatusCode, string(body))
	}
	return nil
}
