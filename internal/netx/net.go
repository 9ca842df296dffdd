// Package netx holds small HTTP helpers shared by storage and collectors.
package netx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// PutPresigned uploads body to a presigned object-storage URL. Any status
// other than 200 is an error carrying the response body.
func PutPresigned(ctx context.Context, client *http.Client, url, contentType string, body []byte) error {
	if client == nil {
		client = http.DefaultClient
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("upload failed: %s; body: %s", resp.Status, string(b))
	}
	return nil
}

// ReadLimited reads at most limit bytes of r.
func ReadLimited(r io.Reader, limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, limit))
}
