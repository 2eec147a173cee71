package httputil

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/vetclinic/sitemedia/pkg/errors"
)

// FormFile is a file part read fully into memory.
type FormFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// ReadFormFile parses a multipart request and returns the named file part.
// Bodies larger than maxBytes are rejected with an InvalidInput error.
func ReadFormFile(w http.ResponseWriter, r *http.Request, field string, maxBytes int64) (*FormFile, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperrors.InvalidInput(fmt.Sprintf("request body exceeds %d bytes", maxBytes))
		}
		return nil, apperrors.InvalidInput("invalid multipart form: " + err.Error())
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, apperrors.InvalidInput(fmt.Sprintf("missing form file %q", field))
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, apperrors.InvalidInput("read form file: " + err.Error())
	}

	return &FormFile{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
