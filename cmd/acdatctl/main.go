// Command acdatctl builds, inspects and serves Aho-Corasick double
// array trie automatons compiled from JSON pattern files.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/swarmguard/acdat"
	"github.com/swarmguard/acdat/internal/automatoncache"
	"github.com/swarmguard/acdat/internal/corelog"
	"github.com/swarmguard/acdat/internal/eventbus"
	"github.com/swarmguard/acdat/internal/reload"
	"github.com/swarmguard/acdat/internal/rulesource"
	"github.com/swarmguard/acdat/internal/telemetry"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "build":
		runBuild(os.Args[2:])
	case "scan":
		runScan(os.Args[2:])
	case "serve":
		runServe(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: acdatctl <build|scan|serve> [flags]")
}

func runBuild(args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	patterns := fs.String("patterns", "", "path to a JSON pattern file")
	out := fs.String("out", "automaton.bin", "path to write the compiled automaton")
	ignoreCase := fs.Bool("ignore-case", false, "fold patterns and input to invariant upper case")
	saveValues := fs.Bool("save-values", true, "embed pattern values in the serialized automaton")
	fs.Parse(args)

	if *patterns == "" {
		fmt.Fprintln(os.Stderr, "build: -patterns is required")
		os.Exit(2)
	}

	loader := rulesource.NewFileLoader(*patterns)
	entries, err := loader.Load(context.Background())
	fatalIf(err)

	b := acdat.NewBuilder(*ignoreCase)
	fatalIf(b.AddAll(entries))

	a, err := b.Build()
	fatalIf(err)

	f, err := os.Create(*out)
	fatalIf(err)
	defer f.Close()

	fatalIf(acdat.Save(f, a, *saveValues))
	fmt.Printf("compiled %d patterns into %s\n", a.Count(), *out)
}

func runScan(args []string) {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	automatonPath := fs.String("automaton", "", "path to a compiled automaton")
	text := fs.String("text", "", "text to scan")
	fs.Parse(args)

	if *automatonPath == "" || *text == "" {
		fmt.Fprintln(os.Stderr, "scan: -automaton and -text are required")
		os.Exit(2)
	}

	f, err := os.Open(*automatonPath)
	fatalIf(err)
	defer f.Close()

	a, err := acdat.Load(f, nil)
	fatalIf(err)

	hits := a.Parse(*text)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	fatalIf(enc.Encode(hits))
}

type serveConfig struct {
	addr        string
	patterns    string
	ignoreCase  bool
	service     string
	natsURL     string
	natsSubject string
	cacheDir    string
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfg := serveConfig{}
	fs.StringVar(&cfg.addr, "addr", ":8080", "HTTP listen address")
	fs.StringVar(&cfg.patterns, "patterns", "", "path to a JSON pattern file, watched for changes")
	fs.BoolVar(&cfg.ignoreCase, "ignore-case", false, "fold patterns and input to invariant upper case")
	fs.StringVar(&cfg.service, "service", "acdatctl", "service name reported to telemetry")
	fs.StringVar(&cfg.natsURL, "nats-url", "", "NATS server URL to announce reloads on (disabled when empty)")
	fs.StringVar(&cfg.natsSubject, "nats-subject", "acdat.reload", "subject reload announcements are published on")
	fs.StringVar(&cfg.cacheDir, "cache-dir", "", "Badger directory to cache compiled automatons in (disabled when empty)")
	fs.Parse(args)

	if cfg.patterns == "" {
		fmt.Fprintln(os.Stderr, "serve: -patterns is required")
		os.Exit(2)
	}

	logger := corelog.Init(cfg.service)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownMetrics, instr, err := telemetry.InitMetrics(ctx, cfg.service)
	if err != nil {
		logger.Warn("telemetry metrics disabled", slog.Any("error", err))
		shutdownMetrics = func(context.Context) error { return nil }
	}
	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.service)
	if err != nil {
		logger.Warn("telemetry tracing disabled", slog.Any("error", err))
		shutdownTracer = func(context.Context) error { return nil }
	}

	var nc *nats.Conn
	if cfg.natsURL != "" {
		nc, err = nats.Connect(cfg.natsURL)
		if err != nil {
			logger.Warn("nats announcements disabled", slog.Any("error", err))
			nc = nil
		} else {
			defer nc.Close()
		}
	}

	reloadOpts := []reload.Option{reload.WithErrorObserver(func(err error) {
		logger.Warn("automaton reload failed", slog.Any("error", err))
		instr.ReloadFailures.Add(ctx, 1)
	})}
	if cfg.cacheDir != "" {
		cache, err := automatoncache.Open(cfg.cacheDir)
		if err != nil {
			logger.Warn("automaton cache disabled", slog.Any("error", err))
		} else {
			defer cache.Close()
			reloadOpts = append(reloadOpts, reload.WithCache(cache), reload.WithCacheObserver(func(hit bool) {
				if hit {
					instr.CacheHits.Add(ctx, 1)
				} else {
					instr.CacheMisses.Add(ctx, 1)
				}
			}))
		}
	}

	loader := rulesource.NewFileLoader(cfg.patterns)
	watcher, err := reload.New(ctx, loader, cfg.ignoreCase, cfg.patterns, func(m reload.Metadata) {
		logger.Info("automaton reloaded",
			slog.String("version", m.Version),
			slog.Int("patterns", m.PatternCount),
			slog.Int64("build_ms", m.BuildDurationMs))
		instr.ReloadCounter.Add(ctx, 1)
		instr.BuildDuration.Record(ctx, float64(m.BuildDurationMs))

		if nc != nil {
			event := eventbus.ReloadEvent{Source: cfg.service, Version: m.Version, PatternCount: m.PatternCount}
			if err := eventbus.Publish(ctx, nc, cfg.natsSubject, event); err != nil {
				logger.Warn("failed to announce reload", slog.Any("error", err))
			}
		}
	}, reloadOpts...)
	fatalIf(err)
	defer watcher.Close()

	mux := http.NewServeMux()
	registerRoutes(mux, watcher, instr)

	srv := &http.Server{Addr: cfg.addr, Handler: mux}
	go func() {
		logger.Info("listening", slog.String("addr", cfg.addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server stopped", slog.Any("error", err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = shutdownMetrics(shutdownCtx)
	_ = shutdownTracer(shutdownCtx)
}

func registerRoutes(mux *http.ServeMux, watcher *reload.Watcher, instr telemetry.Instruments) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/scan", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(r.Body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		a := watcher.Automaton()
		text := buf.String()
		start := time.Now()
		hits := a.Parse(text)
		instr.ScanLatency.Record(r.Context(), float64(time.Since(start).Microseconds())/1000.0)
		instr.MatchCounter.Add(r.Context(), int64(len(hits)))
		var codeUnits int64
		for _, ch := range text {
			if ch >= 0x10000 {
				codeUnits += 2
			} else {
				codeUnits++
			}
		}
		instr.BytesScanned.Add(r.Context(), codeUnits)

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Pattern-Count", fmt.Sprintf("%d", a.Count()))
		json.NewEncoder(w).Encode(hits)
	})

	mux.HandleFunc("/reload", func(w http.ResponseWriter, r *http.Request) {
		if err := watcher.ForceReload(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(watcher.Metadata())
	})

	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(watcher.Metadata())
	})
}

func fatalIf(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "acdatctl:", err)
		os.Exit(1)
	}
}
