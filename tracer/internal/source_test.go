package internal

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, FormatYAML, FormatFromPath("rules.yaml"))
	assert.Equal(t, FormatYAML, FormatFromPath("/etc/xray/Rules.YML"))
	assert.Equal(t, FormatJSON, FormatFromPath("rules.json"))
	assert.Equal(t, FormatJSON, FormatFromPath("rules"))
}

func TestReadManifestFileMissing(t *testing.T) {
	raw, err := ReadManifestFile(filepath.Join("testdata", "DoesntExist.json"))
	assert.Nil(t, raw)
	assert.True(t, errors.Is(err, ErrSourceUnavailable), "%v", err)
	assert.False(t, errors.Is(err, ErrInvalidManifest))
}

func TestReadManifestFileMalformed(t *testing.T) {
	raw, err := ReadManifestFile(filepath.Join("testdata", "Malformed.json"))
	assert.Nil(t, raw)
	assert.True(t, errors.Is(err, ErrInvalidManifest), "%v", err)
	assert.False(t, errors.Is(err, ErrSourceUnavailable))
}

func TestDecodeManifestYAMLFromTempFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yml")
	body := "version: 1\ndefault:\n  fixed_target: 4\n  rate: 0.25\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	raw, err := ReadManifestFile(path)
	require.NoError(t, err)

	m, err := NewManifest(raw)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), m.Default.FixedTarget)
	assert.Equal(t, 0.25, m.Default.Rate)
}

func TestFetchManifest(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rules.json", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, filepath.Join("testdata", "TwoSamplingRules.json"))
	})
	mux.HandleFunc("/rules", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write([]byte("version: 1\ndefault:\n  fixed_target: 2\n  rate: 0\n"))
	})
	mux.HandleFunc("/broken.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx := context.Background()

	t.Run("json", func(t *testing.T) {
		raw, err := FetchManifest(ctx, srv.Client(), srv.URL+"/rules.json")
		require.NoError(t, err)
		assert.Equal(t, 1, raw.Version)
		assert.Len(t, raw.Rules, 1)
	})

	t.Run("yaml by content type", func(t *testing.T) {
		raw, err := FetchManifest(ctx, srv.Client(), srv.URL+"/rules")
		require.NoError(t, err)
		m, err := NewManifest(raw)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), m.Default.FixedTarget)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := FetchManifest(ctx, srv.Client(), srv.URL+"/missing.json")
		assert.True(t, errors.Is(err, ErrSourceUnavailable), "%v", err)
	})

	t.Run("invalid content", func(t *testing.T) {
		_, err := FetchManifest(ctx, srv.Client(), srv.URL+"/broken.json")
		assert.True(t, errors.Is(err, ErrInvalidManifest), "%v", err)
	})

	t.Run("unreachable", func(t *testing.T) {
		_, err := FetchManifest(ctx, nil, "http://127.0.0.1:1/rules.json")
		assert.True(t, errors.Is(err, ErrSourceUnavailable), "%v", err)
	})

	t.Run("bad url", func(t *testing.T) {
		_, err := FetchManifest(ctx, nil, "://nope")
		assert.True(t, errors.Is(err, ErrSourceUnavailable), "%v", err)
	})
}
