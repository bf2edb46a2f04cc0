package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// Per-attempt timeouts. Uploads carry multi-megabyte video payloads.
	uploadTimeout   = 180 * time.Second
	downloadTimeout = 120 * time.Second

	maxRetries     = 4
	baseRetryDelay = 1 * time.Second
	maxRetryDelay  = 30 * time.Second
)

// Store talks to a Supabase Storage bucket over its REST API. All campaign
// assets (scene images, voice-overs, clips, final exports) live under one
// bucket, keyed by campaign ID.
type Store struct {
	url        string
	serviceKey string
	Bucket     string
	client     *http.Client
}

func New(url, serviceKey, bucket string) *Store {
	return &Store{
		url:        url,
		serviceKey: serviceKey,
		Bucket:     bucket,
		client: &http.Client{
			Timeout: uploadTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// withRetry runs attempt with exponential backoff and jitter. Attempts stop
// on success, on a non-retryable error, or when the caller's ctx is done.
func withRetry(ctx context.Context, op string, attempt func() (retryable bool, err error)) error {
	var lastErr error
	for try := 0; try <= maxRetries; try++ {
		if try > 0 {
			delay := retryDelay(try)
			log.Printf("[Storage] %s retry %d/%d (waiting %v)...", op, try, maxRetries, delay)

			select {
			case <-ctx.Done():
				return fmt.Errorf("%s cancelled: %w", op, ctx.Err())
			case <-time.After(delay):
			}
		}

		retryable, err := attempt()
		if err == nil {
			if try > 0 {
				log.Printf("[Storage] %s succeeded on attempt %d", op, try+1)
			}
			return nil
		}
		lastErr = err
		if !retryable {
			return lastErr
		}
		log.Printf("[Storage] %s attempt %d failed (retryable): %v", op, try+1, err)
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, maxRetries+1, lastErr)
}

// Upload writes data to the bucket at objectPath, overwriting any previous
// object at that path.
func (s *Store) Upload(ctx context.Context, objectPath string, data []byte, contentType string) error {
	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.url, s.Bucket, objectPath)

	return withRetry(ctx, "upload "+objectPath, func() (bool, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, uploadTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(attemptCtx, "PUT", url, bytes.NewReader(data))
		if err != nil {
			return false, fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("Authorization", "Bearer "+s.serviceKey)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Content-Length", fmt.Sprintf("%d", len(data)))
		req.Header.Set("x-upsert", "true")

		resp, err := s.client.Do(req)
		if err != nil {
			return isRetryableError(err), fmt.Errorf("failed to upload: %w", err)
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
			return false, nil
		}
		return isRetryableStatus(resp.StatusCode),
			fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, truncate(string(body), 200))
	})
}

// UploadFile uploads a file from a local path.
func (s *Store) UploadFile(ctx context.Context, objectPath, localPath string, contentType string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", localPath, err)
	}
	return s.Upload(ctx, objectPath, data, contentType)
}

// Download fetches an object's bytes from the bucket.
func (s *Store) Download(ctx context.Context, objectPath string) ([]byte, error) {
	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.url, s.Bucket, objectPath)

	var data []byte
	err := withRetry(ctx, "download "+objectPath, func() (bool, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, downloadTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(attemptCtx, "GET", url, nil)
		if err != nil {
			return false, fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("Authorization", "Bearer "+s.serviceKey)

		resp, err := s.client.Do(req)
		if err != nil {
			return isRetryableError(err), fmt.Errorf("failed to download: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			return isRetryableStatus(resp.StatusCode),
				fmt.Errorf("download failed with status %d: %s", resp.StatusCode, truncate(string(body), 200))
		}

		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return true, fmt.Errorf("failed to read download body: %w", err)
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// PublicURL returns the public URL for an object.
func (s *Store) PublicURL(objectPath string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.url, s.Bucket, objectPath)
}

// SignedURL creates a temporary signed URL for an object.
func (s *Store) SignedURL(ctx context.Context, objectPath string, expiresIn int) (string, error) {
	url := fmt.Sprintf("%s/storage/v1/object/sign/%s/%s", s.url, s.Bucket, objectPath)

	body := fmt.Sprintf(`{"expiresIn": %d}`, expiresIn)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBufferString(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to get signed URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("failed with status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		SignedURL string `json:"signedURL"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to parse signed URL response: %w", err)
	}

	return s.url + result.SignedURL, nil
}

// ObjectPath builds the bucket key for a campaign asset.
func ObjectPath(campaignID uuid.UUID, filename string) string {
	return path.Join(campaignID.String(), filename)
}

// retryDelay is exponential backoff with 0-25% jitter.
func retryDelay(attempt int) time.Duration {
	delay := float64(baseRetryDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(maxRetryDelay) {
		delay = float64(maxRetryDelay)
	}
	jitter := delay * 0.25 * rand.Float64()
	return time.Duration(delay + jitter)
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "EOF") ||
		strings.Contains(errStr, "broken pipe")
}

func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests ||
		status == http.StatusRequestTimeout ||
		status == http.StatusBadGateway ||
		status == http.StatusServiceUnavailable ||
		status == http.StatusGatewayTimeout
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
