// Package uploads accepts billing spreadsheets from admins and forwards them
// to the backend ingestion endpoint. Files are validated here, parsed there.
package uploads

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/trunkline-ops/trunkline/internal/backend"
	"github.com/trunkline-ops/trunkline/internal/shared"
)

// MaxUploadBytes caps a billing file. Monthly exports for the largest
// wilayas stay well under this.
const MaxUploadBytes = 20 << 20

var allowedExtensions = map[string]bool{
	".csv":  true,
	".xls":  true,
	".xlsx": true,
}

// AllowedExtensions lists the accepted spreadsheet types for error messages
// and the upload form.
func AllowedExtensions() []string {
	return []string{".csv", ".xls", ".xlsx"}
}

// Ingestor is the slice of the backend API the upload feature needs.
type Ingestor interface {
	ForwardBillingFile(ctx context.Context, reference, filename string, file io.Reader) (backend.UploadReceipt, error)
}

// Service validates uploads and forwards them with a fresh reference.
type Service struct {
	ingestor Ingestor
	newRef   func() string
}

// NewService constructs the upload service.
func NewService(ingestor Ingestor) *Service {
	return &Service{ingestor: ingestor, newRef: uuid.NewString}
}

// ValidateFile rejects files the ingestion pipeline cannot parse before any
// byte leaves the dashboard.
func ValidateFile(filename string, size int64) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return fmt.Errorf("%w: file type %q not accepted", shared.ErrInvalidInput, ext)
	}
	if size <= 0 {
		return fmt.Errorf("%w: empty file", shared.ErrInvalidInput)
	}
	if size > MaxUploadBytes {
		return fmt.Errorf("%w: file exceeds %d bytes", shared.ErrInvalidInput, MaxUploadBytes)
	}
	return nil
}

// Forward validates then streams the file to the backend. The returned
// receipt carries the reference so a retried forward can be correlated.
func (s *Service) Forward(ctx context.Context, filename string, size int64, file io.Reader) (backend.UploadReceipt, string, error) {
	if err := ValidateFile(filename, size); err != nil {
		return backend.UploadReceipt{}, "", err
	}
	reference := s.newRef()
	receipt, err := s.ingestor.ForwardBillingFile(ctx, reference, filepath.Base(filename), file)
	if err != nil {
		return backend.UploadReceipt{}, reference, err
	}
	return receipt, reference, nil
}
