package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/trunkline-ops/trunkline/internal/shared"
)

// UploadReceipt acknowledges a billing file accepted for ingestion.
type UploadReceipt struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Status   string `json:"status"`
}

// ForwardBillingFile streams a billing spreadsheet to the ingestion endpoint
// and returns the backend's receipt. The reference identifies one upload
// attempt; the backend dedupes on it when a forward is retried.
func (c *Client) ForwardBillingFile(ctx context.Context, reference, filename string, file io.Reader) (UploadReceipt, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return UploadReceipt{}, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return UploadReceipt{}, err
	}
	if err := writer.Close(); err != nil {
		return UploadReceipt{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/api/v1/billing/uploads", c.baseURL), body)
	if err != nil {
		return UploadReceipt{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Upload-Reference", reference)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return UploadReceipt{}, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if err := statusErr("/api/v1/billing/uploads", resp.StatusCode); err != nil {
		return UploadReceipt{}, err
	}
	var receipt UploadReceipt
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
		return UploadReceipt{}, fmt.Errorf("%w: decode upload receipt: %v", shared.ErrUpstream, err)
	}
	return receipt, nil
}
