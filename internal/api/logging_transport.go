package api

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"os"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// maxLoggedBody caps how much of a JSON body is written to the log.
// Data URIs in img2img requests run to megabytes.
const maxLoggedBody = 4096

// LoggingTransport wraps an http.RoundTripper to log request and response details.
type LoggingTransport struct {
	Transport http.RoundTripper
	logFile   *os.File
	mu        sync.Mutex
	writer    *bufio.Writer
}

var (
	openTransportsMu sync.Mutex
	openTransports   []*LoggingTransport
)

// NewLoggingTransport creates a new LoggingTransport appending to logFilePath.
func NewLoggingTransport(transport http.RoundTripper, logFilePath string) (*LoggingTransport, error) {
	f, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open API log file %s: %w", logFilePath, err)
	}
	if transport == nil {
		transport = http.DefaultTransport
	}

	t := &LoggingTransport{
		Transport: transport,
		logFile:   f,
		writer:    bufio.NewWriter(f),
	}
	openTransportsMu.Lock()
	openTransports = append(openTransports, t)
	openTransportsMu.Unlock()
	return t, nil
}

// CloseAllLoggingTransports flushes and closes every transport opened by this process.
func CloseAllLoggingTransports() {
	openTransportsMu.Lock()
	defer openTransportsMu.Unlock()
	for _, t := range openTransports {
		if err := t.Close(); err != nil {
			log.WithError(err).Warn("Error closing API log file")
		}
	}
	openTransports = nil
}

// RoundTrip executes a single HTTP transaction, logging details.
func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	reqDump, err := httputil.DumpRequestOut(redacted(req), false)
	if err != nil {
		log.WithError(err).Error("Failed to dump API request for logging")
	}
	var reqBody []byte
	if req.Body != nil && req.GetBody != nil {
		if rc, bodyErr := req.GetBody(); bodyErr == nil {
			reqBody, _ = io.ReadAll(rc)
			rc.Close()
		}
	}

	resp, rtErr := t.Transport.RoundTrip(req)
	duration := time.Since(start)

	var entry strings.Builder
	fmt.Fprintf(&entry, "--- Request (%s) ---\n%s%s\n", start.Format(time.RFC3339), reqDump, truncateBody(reqBody))
	if rtErr != nil {
		fmt.Fprintf(&entry, "--- Response Error (Duration: %v) ---\n%s\n", duration, rtErr)
		t.writeLog(entry.String())
		return resp, rtErr
	}

	respDump, dumpErr := httputil.DumpResponse(resp, false)
	if dumpErr != nil {
		fmt.Fprintf(&entry, "--- Response (Duration: %v) ---\nStatus: %s\n", duration, resp.Status)
	} else {
		fmt.Fprintf(&entry, "--- Response (Duration: %v) ---\n%s", duration, respDump)
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		bodyBytes, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			log.WithError(readErr).Error("Failed to read response body for logging")
			resp.Body = io.NopCloser(bytes.NewReader(nil))
			t.writeLog(entry.String())
			return resp, readErr
		}
		resp.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		entry.WriteString(truncateBody(bodyBytes))
	} else {
		entry.WriteString("(Body not logged)")
	}
	t.writeLog(entry.String())
	return resp, nil
}

// redacted returns a shallow copy of req without the bearer token.
func redacted(req *http.Request) *http.Request {
	clone := req.Clone(req.Context())
	if clone.Header.Get("Authorization") != "" {
		clone.Header.Set("Authorization", "Bearer <redacted>")
	}
	clone.Body = nil
	clone.GetBody = nil
	clone.ContentLength = 0
	return clone
}

func truncateBody(body []byte) string {
	if len(body) <= maxLoggedBody {
		return string(body)
	}
	return fmt.Sprintf("%s... (%d bytes total)", body[:maxLoggedBody], len(body))
}

func (t *LoggingTransport) writeLog(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.writer.WriteString(s + "\n\n"); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing to API log file: %v\n", err)
	}
	t.writer.Flush()
}

// Close flushes and closes the underlying log file.
func (t *LoggingTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.logFile == nil {
		return nil
	}
	errFlush := t.writer.Flush()
	errClose := t.logFile.Close()
	t.logFile = nil
	if errFlush != nil {
		return fmt.Errorf("failed to flush API log buffer: %w", errFlush)
	}
	return errClose
}
