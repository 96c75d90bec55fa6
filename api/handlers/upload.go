package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/shalynjjj/prompt2CAD/types"
)

// acceptedImageTypes 允许上传的图片类型（按内容嗅探）
var acceptedImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

// parseUpload 解析 multipart 表单，整体大小受 maxBytes 约束
func parseUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return types.Errorf(types.ErrInvalidRequest, "upload exceeds %d bytes", maxBytes).WithCause(err)
		}
		return types.NewError(types.ErrInvalidRequest, "invalid multipart form: "+err.Error()).WithCause(err)
	}
	return nil
}

// formImage 读取图片字段；required 为 false 且字段缺失时返回 nil
func formImage(r *http.Request, field string, required bool) ([]byte, error) {
	f, _, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) && !required {
			return nil, nil
		}
		return nil, types.Errorf(types.ErrInvalidRequest, "form file %q is required", field).WithCause(err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, types.Errorf(types.ErrInvalidRequest, "read form file %q", field).WithCause(err)
	}
	if len(data) == 0 {
		return nil, types.Errorf(types.ErrInvalidRequest, "form file %q is empty", field)
	}
	ct := http.DetectContentType(data)
	if !acceptedImageTypes[ct] {
		return nil, types.Errorf(types.ErrInvalidRequest, "form file %q must be an image, got %s", field, ct)
	}
	return data, nil
}

// formVersion 解析版本字段，接受 "3" 或 "v3"，缺省为 0
func formVersion(r *http.Request, field string) (int, error) {
	raw := strings.TrimSpace(r.FormValue(field))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimPrefix(strings.ToLower(raw), "v"))
	if err != nil || n < 0 {
		return 0, types.Errorf(types.ErrInvalidRequest, "invalid %s %q", field, raw)
	}
	return n, nil
}

func formString(r *http.Request, field string) string {
	return strings.TrimSpace(r.FormValue(field))
}

func requireField(value, field string) error {
	if value == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}
