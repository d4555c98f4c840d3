package handler

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tablemate/tablemate/internal/handler/dto"
	"github.com/tablemate/tablemate/internal/media"
	"github.com/tablemate/tablemate/internal/validation"
)

// maxMultipartMemory bounds in-memory form parsing; larger parts spill to
// temporary files.
const maxMultipartMemory = 8 << 20

// imageField is the multipart part that carries an uploaded image.
const imageField = "image"

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// form reads typed optional fields from a parsed multipart form. The first
// conversion failure is kept in err.
type form struct {
	values map[string][]string
	err    error
}

// parseForm parses a multipart body. It writes the error response and
// returns nil when the body is unusable.
func parseForm(w http.ResponseWriter, r *http.Request) *form {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, dto.CodePayloadTooLarge, "Request body too large")
		} else {
			writeError(w, http.StatusBadRequest, dto.CodeValidationFailed, "Invalid multipart form")
		}
		return nil
	}
	return &form{values: r.MultipartForm.Value}
}

func (f *form) str(key string) *string {
	vals, ok := f.values[key]
	if !ok || len(vals) == 0 {
		return nil
	}
	v := vals[0]
	return &v
}

func (f *form) text(key string) string {
	if v := f.str(key); v != nil {
		return *v
	}
	return ""
}

func (f *form) int(key string) *int {
	raw := f.str(key)
	if raw == nil {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(*raw))
	if err != nil {
		f.fail(key, "must be an integer")
		return nil
	}
	return &n
}

func (f *form) float(key string) *float64 {
	raw := f.str(key)
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(*raw), 64)
	if err != nil {
		f.fail(key, "must be a number")
		return nil
	}
	return &n
}

func (f *form) time(key string) *time.Time {
	raw := f.str(key)
	if raw == nil {
		return nil
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(*raw))
	if err != nil {
		f.fail(key, "must be an RFC 3339 timestamp")
		return nil
	}
	return &t
}

func (f *form) fail(key, message string) {
	if f.err == nil {
		f.err = &validation.FieldError{Field: key, Tag: "type", Message: message}
	}
}

// check writes a validation error for the first bad field.
func (f *form) check(w http.ResponseWriter) bool {
	if f.err != nil {
		writeError(w, http.StatusBadRequest, dto.CodeValidationFailed, f.err.Error())
		return false
	}
	return true
}

// readImage returns the uploaded image, or nil when the form has none.
func readImage(r *http.Request) (*media.Upload, error) {
	file, header, err := r.FormFile(imageField)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", imageField, err)
	}
	defer file.Close()

	// One byte past the limit is enough for validation to reject it.
	data, err := io.ReadAll(io.LimitReader(file, media.MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", imageField, err)
	}

	return &media.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// uploadedImage reads the image part and writes the error response on failure.
func uploadedImage(w http.ResponseWriter, r *http.Request) (*media.Upload, bool) {
	upload, err := readImage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, dto.CodeUploadRejected, "Could not read uploaded image")
		return nil, false
	}
	return upload, true
}
