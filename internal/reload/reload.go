// Package reload watches a pattern source for changes and atomically
// swaps a compiled acdat.Automaton in place, the way the signature
// engine's HotReloadScanner swaps *AhoScanner instances.
package reload

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/swarmguard/acdat"
	"github.com/swarmguard/acdat/internal/automatoncache"
	"github.com/swarmguard/acdat/internal/rulesource"
)

// Metadata reports the state of the most recent (re)build.
type Metadata struct {
	Version         string
	LoadedAt        time.Time
	PatternCount    int
	BuildDurationMs int64
	LastReloadAt    time.Time
	ReloadCount     int
	LastError       string
}

// Watcher keeps a compiled automaton up to date with its source,
// swapping it atomically so concurrent readers never observe a
// partially built automaton.
type Watcher struct {
	loader     rulesource.Loader
	ignoreCase bool

	ptr atomic.Pointer[acdat.Automaton]

	mu       sync.RWMutex
	metadata Metadata
	lastHash string

	fsWatcher *fsnotify.Watcher
	debounce  time.Duration
	stopCh    chan struct{}
	doneCh    chan struct{}

	onReload func(Metadata)

	cache         *automatoncache.Cache
	onCacheResult func(hit bool)
	onError       func(error)
}

// Option configures optional Watcher behavior not carried by New's
// required parameters.
type Option func(*Watcher)

// WithCache backs the watcher with a compiled-automaton cache: a
// rebuild first checks the cache for the pattern set's fingerprint
// before running the double array construction, and stores every
// freshly built automaton (topology only, values restored from the
// loader's own entries) under its fingerprint afterward.
func WithCache(cache *automatoncache.Cache) Option {
	return func(w *Watcher) { w.cache = cache }
}

// WithCacheObserver registers a callback invoked with true on every
// cache hit and false on every cache miss, once WithCache is also
// set. It is a no-op without a configured cache.
func WithCacheObserver(observe func(hit bool)) Option {
	return func(w *Watcher) { w.onCacheResult = observe }
}

// WithErrorObserver registers a callback invoked every time a load or
// build attempt fails, including the initial one inside New.
func WithErrorObserver(observe func(error)) Option {
	return func(w *Watcher) { w.onError = observe }
}

// New builds an automaton from loader immediately, then starts an
// fsnotify watch on watchPath (a file or directory) so subsequent
// changes trigger a debounced rebuild. onReload, if non-nil, is
// called after every successful reload including the initial build.
func New(ctx context.Context, loader rulesource.Loader, ignoreCase bool, watchPath string, onReload func(Metadata), opts ...Option) (*Watcher, error) {
	w := &Watcher{
		loader:     loader,
		ignoreCase: ignoreCase,
		debounce:   200 * time.Millisecond,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		onReload:   onReload,
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := w.reload(ctx); err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("reload: create fsnotify watcher: %w", err)
	}
	watchDir := watchPath
	if ext := filepath.Ext(watchPath); ext != "" {
		watchDir = filepath.Dir(watchPath)
	}
	if err := fsw.Add(watchDir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("reload: watch %s: %w", watchDir, err)
	}
	w.fsWatcher = fsw

	go w.watchLoop(ctx)
	return w, nil
}

// Automaton returns the currently active compiled automaton.
func (w *Watcher) Automaton() *acdat.Automaton {
	return w.ptr.Load()
}

// Metadata returns a snapshot of the most recent reload's statistics.
func (w *Watcher) Metadata() Metadata {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.metadata
}

// ForceReload triggers an immediate reload regardless of the
// debounce timer, returning the error (if any) the rebuild hit.
func (w *Watcher) ForceReload(ctx context.Context) error {
	return w.reload(ctx)
}

// Close stops the background fsnotify watch and waits for it to
// exit.
func (w *Watcher) Close() error {
	close(w.stopCh)
	<-w.doneCh
	if w.fsWatcher != nil {
		return w.fsWatcher.Close()
	}
	return nil
}

func (w *Watcher) watchLoop(ctx context.Context) {
	defer close(w.doneCh)

	// A timer parked far in the future until the first filesystem
	// event resets it to the debounce window, mirroring the
	// policy-service config watcher's idle-timer trick.
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				timer.Reset(w.debounce)
			}
		case <-timer.C:
			_ = w.reload(ctx)
		case <-w.fsWatcher.Errors:
			// A watch error doesn't invalidate the currently loaded
			// automaton; it is dropped and not recorded in metadata.
		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) reload(ctx context.Context) error {
	entries, err := w.loader.Load(ctx)
	if err != nil {
		w.recordError(err)
		return err
	}

	hash := hashEntries(entries)
	if hash == w.lastHash {
		return nil
	}

	start := time.Now()
	automaton, err := w.buildOrRestore(entries)
	if err != nil {
		w.recordError(err)
		return err
	}

	w.ptr.Store(automaton)
	w.lastHash = hash

	w.mu.Lock()
	w.metadata = Metadata{
		Version:         hash[:12],
		LoadedAt:        start,
		PatternCount:    automaton.Count(),
		BuildDurationMs: time.Since(start).Milliseconds(),
		LastReloadAt:    time.Now(),
		ReloadCount:     w.metadata.ReloadCount + 1,
		LastError:       "",
	}
	snapshot := w.metadata
	w.mu.Unlock()

	if w.onReload != nil {
		w.onReload(snapshot)
	}
	return nil
}

// buildOrRestore returns a compiled automaton for entries, consulting
// the configured cache (if any) before running a full build and
// storing the result (topology only) for next time.
func (w *Watcher) buildOrRestore(entries []acdat.Entry) (*acdat.Automaton, error) {
	if w.cache == nil {
		return build(w.ignoreCase, entries)
	}

	fp := fingerprintEntries(entries)
	if data, found, err := w.cache.Get(fp); err == nil && found {
		restore := func(index int) any { return entries[index].Value }
		automaton, err := acdat.Load(bytes.NewReader(data), restore)
		if err == nil {
			w.reportCacheResult(true)
			return automaton, nil
		}
	}
	w.reportCacheResult(false)

	automaton, err := build(w.ignoreCase, entries)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := acdat.Save(&buf, automaton, false); err == nil {
		_ = w.cache.Put(fp, buf.Bytes())
	}
	return automaton, nil
}

func (w *Watcher) reportCacheResult(hit bool) {
	if w.onCacheResult != nil {
		w.onCacheResult(hit)
	}
}

func build(ignoreCase bool, entries []acdat.Entry) (*acdat.Automaton, error) {
	b := acdat.NewBuilder(ignoreCase)
	if err := b.AddAll(entries); err != nil {
		return nil, err
	}
	return b.Build()
}

func fingerprintEntries(entries []acdat.Entry) [32]byte {
	keys := make([]string, len(entries))
	values := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
		values[i] = fmt.Sprintf("%v", e.Value)
	}
	return automatoncache.Fingerprint(keys, values)
}

func (w *Watcher) recordError(err error) {
	w.mu.Lock()
	w.metadata.LastError = err.Error()
	w.mu.Unlock()
	if w.onError != nil {
		w.onError(err)
	}
}

// hashEntries computes a deterministic fingerprint of a pattern set
// so unchanged sources skip a rebuild, the same way the signature
// engine hashes enabled rules before rebuilding its automaton.
func hashEntries(entries []acdat.Entry) string {
	sorted := make([]acdat.Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	h := sha256.New()
	for _, e := range sorted {
		h.Write([]byte(e.Key))
		h.Write([]byte{0})
		fmt.Fprintf(h, "%v", e.Value)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
