package downloader

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer server.Close()

	d := NewDownloader(server.Client())

	data, err := d.Fetch(context.Background(), server.URL+"/card.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)

	_, err = d.Fetch(context.Background(), server.URL+"/missing.png")
	assert.ErrorIs(t, err, ErrHttpStatus)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.True(t, IsPermanent(err))

	_, err = d.Fetch(context.Background(), "http://%zz")
	assert.ErrorIs(t, err, ErrHttpRequest)
}

func TestFetchDataURI(t *testing.T) {
	d := NewDownloader(nil)
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("inline"))

	data, err := d.Fetch(context.Background(), uri)
	require.NoError(t, err)
	assert.Equal(t, []byte("inline"), data)

	_, err = d.Fetch(context.Background(), "data:text/plain,hello")
	assert.ErrorIs(t, err, ErrDataURI)

	_, err = DecodeDataURI("data:image/png;base64,!!!")
	assert.ErrorIs(t, err, ErrDataURI)
}

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"not found", &StatusError{Code: http.StatusNotFound}, true},
		{"forbidden wrapped", fmt.Errorf("fetching output: %w", &StatusError{Code: http.StatusForbidden}), true},
		{"too many requests", &StatusError{Code: http.StatusTooManyRequests}, false},
		{"request timeout", &StatusError{Code: http.StatusRequestTimeout}, false},
		{"bad gateway", &StatusError{Code: http.StatusBadGateway}, false},
		{"malformed data uri", fmt.Errorf("%w: expected base64 payload", ErrDataURI), true},
		{"too large", fmt.Errorf("%w: big.png", ErrTooLarge), true},
		{"connection reset", fmt.Errorf("%w: %w", ErrHttpRequest, errors.New("connection reset by peer")), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPermanent(tt.err))
		})
	}
}

func TestFetchServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewDownloader(server.Client()).Fetch(context.Background(), server.URL+"/card.png")
	require.ErrorIs(t, err, ErrHttpStatus)
	assert.False(t, IsPermanent(err))
}

func TestSaveFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "deck")
	target := filepath.Join(dir, "00_the_fool.png")

	require.NoError(t, SaveFile(target, []byte("first")))
	require.NoError(t, SaveFile(target, []byte("second")))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temporary files should remain")
	assert.Equal(t, "00_the_fool.png", entries[0].Name())
}

func TestSaveFileFailureLeavesNoFinalFile(t *testing.T) {
	dir := t.TempDir()
	// A directory at the target name makes the rename fail.
	target := filepath.Join(dir, "01_the_magician.png")
	require.NoError(t, os.Mkdir(target, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(target, "keep"), []byte("x"), 0644))

	err := SaveFile(target, []byte("data"))
	require.ErrorIs(t, err, ErrFileSystem)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].IsDir())
}
