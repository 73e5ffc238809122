// Package rulesource loads the (key, value) pattern entries an
// acdat.Builder compiles, from a single JSON file, a directory of
// them, or a remote HTTP endpoint fetched with retry.
package rulesource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/swarmguard/acdat"
)

// Loader produces the pattern entries to compile into an automaton.
type Loader interface {
	Load(ctx context.Context) ([]acdat.Entry, error)
}

// document is the on-disk shape both FileLoader and DirectoryLoader
// parse: a JSON object whose "patterns" array holds the entries.
type document struct {
	Patterns []patternRecord `json:"patterns"`
}

type patternRecord struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

func (d document) entries() []acdat.Entry {
	out := make([]acdat.Entry, len(d.Patterns))
	for i, p := range d.Patterns {
		out[i] = acdat.Entry{Key: p.Key, Value: p.Value}
	}
	return out
}

// FileLoader reads one JSON pattern file from disk.
type FileLoader struct {
	Path string
}

// NewFileLoader constructs a loader for the given JSON file path.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{Path: path}
}

// Load reads and parses the file named by Path.
func (f *FileLoader) Load(ctx context.Context) ([]acdat.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("rulesource: read %s: %w", f.Path, err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("rulesource: parse %s: %w", f.Path, err)
	}
	return doc.entries(), nil
}

// DirectoryLoader merges every *.json file in a directory into one
// pattern set. A directory with no JSON files is an error: callers
// should not silently compile an empty automaton from a misconfigured
// path.
type DirectoryLoader struct {
	Dir string
}

// NewDirectoryLoader constructs a loader for a rules directory.
func NewDirectoryLoader(dir string) *DirectoryLoader {
	return &DirectoryLoader{Dir: dir}
}

// Load reads every *.json file in Dir and concatenates their entries.
// A file that fails to parse is skipped rather than aborting the
// whole directory load.
func (d *DirectoryLoader) Load(ctx context.Context) ([]acdat.Entry, error) {
	entries, err := os.ReadDir(d.Dir)
	if err != nil {
		return nil, fmt.Errorf("rulesource: read dir %s: %w", d.Dir, err)
	}

	var all []acdat.Entry
	for _, e := range entries {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		loader := NewFileLoader(filepath.Join(d.Dir, e.Name()))
		loaded, err := loader.Load(ctx)
		if err != nil {
			continue
		}
		all = append(all, loaded...)
	}
	if len(all) == 0 {
		return nil, errors.New("rulesource: no patterns loaded from directory")
	}
	return all, nil
}

// RemoteLoader fetches a pattern document over HTTP, retrying
// transient failures with an exponential backoff before giving up.
type RemoteLoader struct {
	URL        string
	HTTPClient *http.Client
	MaxElapsed time.Duration
}

// NewRemoteLoader constructs a loader that GETs url, retrying for up
// to maxElapsed before returning the last error.
func NewRemoteLoader(url string, maxElapsed time.Duration) *RemoteLoader {
	if maxElapsed <= 0 {
		maxElapsed = 30 * time.Second
	}
	return &RemoteLoader{URL: url, HTTPClient: http.DefaultClient, MaxElapsed: maxElapsed}
}

// Load fetches and parses the remote pattern document, retrying on
// network errors and 5xx responses with randomized exponential
// backoff.
func (r *RemoteLoader) Load(ctx context.Context) ([]acdat.Entry, error) {
	var doc document

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := r.HTTPClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("rulesource: remote %s returned %d", r.URL, resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("rulesource: remote %s returned %d", r.URL, resp.StatusCode))
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, &doc); err != nil {
			return backoff.Permanent(fmt.Errorf("rulesource: parse response from %s: %w", r.URL, err))
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxElapsedTime(backoff.NewExponentialBackOff(), r.MaxElapsed), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return doc.entries(), nil
}
