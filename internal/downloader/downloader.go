package downloader

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go-tarot-gen/internal/helpers"

	log "github.com/sirupsen/logrus"
)

// Custom Downloader Errors
var (
	ErrHttpStatus  = errors.New("unexpected HTTP status code")
	ErrFileSystem  = errors.New("filesystem error") // Covers create, remove, rename
	ErrHttpRequest = errors.New("HTTP request creation/execution error")
	ErrDataURI     = errors.New("malformed data URI")
	ErrTooLarge    = errors.New("image exceeds size limit")
)

// StatusError is a non-200 response from the image host.
type StatusError struct {
	URL    string
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s fetching %s", ErrHttpStatus, e.Status, e.URL)
}

func (e *StatusError) Unwrap() error { return ErrHttpStatus }

// IsPermanent reports whether retrying a failed Fetch cannot succeed:
// malformed data URIs, oversized bodies and 4xx responses other than 408 and 429.
// Network errors and 5xx are worth another attempt.
func IsPermanent(err error) bool {
	if errors.Is(err, ErrDataURI) || errors.Is(err, ErrTooLarge) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.Code == http.StatusRequestTimeout, se.Code == http.StatusTooManyRequests:
			return false
		case se.Code >= 400 && se.Code < 500:
			return true
		}
	}
	return false
}

// maxImageBytes bounds a single downloaded image.
const maxImageBytes = 64 << 20

// Downloader fetches generated images and writes them to disk.
type Downloader struct {
	client *http.Client
}

// NewDownloader creates a new Downloader instance.
func NewDownloader(client *http.Client) *Downloader {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Downloader{client: client}
}

// Fetch returns the bytes behind an output URL. Inline data: URIs are decoded
// without a network round trip.
func (d *Downloader) Fetch(ctx context.Context, url string) ([]byte, error) {
	if strings.HasPrefix(url, "data:") {
		return DecodeDataURI(url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request for %s: %w", ErrHttpRequest, url, err)
	}
	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: performing request for %s: %w", ErrHttpRequest, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: url, Code: resp.StatusCode, Status: resp.Status}
	}

	var buf bytes.Buffer
	counter := &helpers.CounterWriter{Writer: &buf}
	if _, err := io.Copy(counter, io.LimitReader(resp.Body, maxImageBytes+1)); err != nil {
		return nil, fmt.Errorf("%w: reading body of %s: %w", ErrHttpRequest, url, err)
	}
	if counter.Total > maxImageBytes {
		return nil, fmt.Errorf("%w: %s exceeds %s", ErrTooLarge, url, helpers.BytesToSize(maxImageBytes))
	}
	log.WithFields(log.Fields{
		"url":      url,
		"size":     helpers.BytesToSize(counter.Total),
		"duration": time.Since(start).Round(time.Millisecond),
	}).Debug("Fetched output image")
	return buf.Bytes(), nil
}

// DecodeDataURI decodes a base64 data: URI.
func DecodeDataURI(uri string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("%w: expected base64 payload", ErrDataURI)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataURI, err)
	}
	return data, nil
}

// SaveFile writes data to targetPath through a temporary file in the same
// directory. The final name only ever holds a complete file.
func SaveFile(targetPath string, data []byte) error {
	targetDir := filepath.Dir(targetPath)
	if !helpers.CheckAndMakeDir(targetDir) {
		return fmt.Errorf("%w: failed to create target directory %s", ErrFileSystem, targetDir)
	}

	tempFile, err := os.CreateTemp(targetDir, filepath.Base(targetPath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: creating temporary file for %s: %w", ErrFileSystem, targetPath, err)
	}
	shouldCleanupTemp := true
	defer func() {
		if shouldCleanupTemp {
			log.Debugf("Cleaning up temporary file: %s", tempFile.Name())
			if removeErr := os.Remove(tempFile.Name()); removeErr != nil && !os.IsNotExist(removeErr) {
				log.WithError(removeErr).Warnf("Failed to remove temporary file %s", tempFile.Name())
			}
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return fmt.Errorf("%w: writing temporary file %s: %w", ErrFileSystem, tempFile.Name(), err)
	}
	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return fmt.Errorf("%w: syncing temporary file %s: %w", ErrFileSystem, tempFile.Name(), err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("%w: closing temporary file %s: %w", ErrFileSystem, tempFile.Name(), err)
	}
	if err := os.Chmod(tempFile.Name(), 0644); err != nil {
		return fmt.Errorf("%w: setting permissions on %s: %w", ErrFileSystem, tempFile.Name(), err)
	}
	if err := os.Rename(tempFile.Name(), targetPath); err != nil {
		return fmt.Errorf("%w: renaming %s to %s: %w", ErrFileSystem, tempFile.Name(), targetPath, err)
	}
	shouldCleanupTemp = false
	log.Debugf("Wrote %s (%s)", targetPath, helpers.BytesToSize(uint64(len(data))))
	return nil
}
