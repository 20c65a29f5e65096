package internal

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ErrSourceUnavailable marks a manifest source that could not be located or
// read. It is distinct from a manifest whose content is invalid.
var ErrSourceUnavailable = errors.New("sampling manifest source unavailable")

// Format is the encoding of a manifest document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

const defaultFetchTimeout = 5 * time.Second

// FormatFromPath picks the document format from a file or URL path extension.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// DecodeManifest parses data into a RawManifest. Undecodable content is a
// *ConfigurationError, not a source failure.
func DecodeManifest(data []byte, format Format) (*RawManifest, error) {
	raw := &RawManifest{}
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, raw)
	default:
		err = json.Unmarshal(data, raw)
	}
	if err != nil {
		return nil, configErr(-1, "", "decode %s: %v", format, err)
	}
	return raw, nil
}

// ReadManifestFile loads and decodes the manifest stored at path.
func ReadManifestFile(path string) (*RawManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(ErrSourceUnavailable, "read %s: %v", path, err)
	}
	return DecodeManifest(data, FormatFromPath(path))
}

// FetchManifest downloads and decodes the manifest served at rawURL. A nil
// client uses http.DefaultClient. Transport failures and non-2xx answers are
// reported as ErrSourceUnavailable.
func FetchManifest(ctx context.Context, client *http.Client, rawURL string) (*RawManifest, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultFetchTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrapf(ErrSourceUnavailable, "build request for %s: %v", rawURL, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		// If the context has been canceled, the context's error is probably more useful.
		select {
		case <-ctx.Done():
			err = ctx.Err()
		default:
		}
		return nil, errors.Wrapf(ErrSourceUnavailable, "get %s: %v", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Wrapf(ErrSourceUnavailable, "get %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(ErrSourceUnavailable, "read body of %s: %v", rawURL, err)
	}

	format := FormatFromPath(req.URL.Path)
	if ct := resp.Header.Get("Content-Type"); strings.Contains(ct, "yaml") {
		format = FormatYAML
	}
	return DecodeManifest(data, format)
}
