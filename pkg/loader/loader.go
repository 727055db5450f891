package loader

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	"github.com/slipwayhq/slipway/pkg/primitives"
	"github.com/slipwayhq/slipway/pkg/resilience"
)

// Config configures a Loader's local filesystem and network behaviour.
type Config struct {
	// BaseDir is prepended to relative Local reference paths.
	BaseDir string
	// CacheDir holds downloaded Http-reference tar archives.
	CacheDir string
	// RegistryTemplates are tried in order for Registry references.
	RegistryTemplates []string
	// Concurrency bounds simultaneous in-flight resolutions.
	Concurrency int
	// HTTPClient overrides the default client used for Http references
	// and registry template fetches; nil uses http.DefaultClient.
	HTTPClient *http.Client
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 8
	}
	return c
}

// Loader resolves primitives.Reference values to LoadedComponent file
// getters, dispatching across the special/local/http/registry sources
// described in §4.1.
type Loader struct {
	cfg    Config
	logger *slog.Logger
	fanOut *resilience.Bulkhead

	mu       sync.Mutex
	tarFiles []*tarFiles // opened archives, closed together with the loader
}

// New constructs a Loader.
func New(cfg Config, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &Loader{
		cfg:    cfg,
		logger: logger,
		fanOut: resilience.NewBulkhead("loader.resolve", cfg.Concurrency),
	}
}

// Close releases every tar archive this loader has opened.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var firstErr error
	for _, tf := range l.tarFiles {
		if err := tf.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.tarFiles = nil
	return firstErr
}

func (l *Loader) trackTar(tf *tarFiles) {
	l.mu.Lock()
	l.tarFiles = append(l.tarFiles, tf)
	l.mu.Unlock()
}

// Resolve loads a single reference (§4.1 "Resolution order for one
// reference").
func (l *Loader) Resolve(ctx context.Context, ref primitives.Reference) (*LoadedComponent, error) {
	switch ref.Kind {
	case primitives.ReferenceSpecial:
		return &LoadedComponent{Reference: ref, Files: newSpecialFiles(ref.Special)}, nil

	case primitives.ReferenceLocal:
		return l.resolveLocal(ref)

	case primitives.ReferenceHTTP:
		return l.resolveHTTP(ctx, ref)

	case primitives.ReferenceRegistry:
		return l.resolveRegistry(ctx, ref)

	default:
		return nil, newLoadError(NotFound, ref.String(), fmt.Errorf("unknown reference kind"))
	}
}

func (l *Loader) resolveLocal(ref primitives.Reference) (*LoadedComponent, error) {
	path := ref.Path
	if !ref.Abs && !filepath.IsAbs(path) {
		path = filepath.Join(l.cfg.BaseDir, path)
	}
	return l.resolveLocalPath(ref, path)
}

func (l *Loader) resolveLocalPath(ref primitives.Reference, path string) (*LoadedComponent, error) {
	switch {
	case strings.HasSuffix(path, ".tar"):
		tf, err := openTarFiles(path)
		if err != nil {
			return nil, err
		}
		l.trackTar(tf)
		return &LoadedComponent{Reference: ref, Files: tf}, nil

	default:
		df := newDirFiles(path)
		if !df.Exists("slipway_component.json") {
			return nil, newLoadError(NotFound, path, fmt.Errorf("no slipway_component.json under %s", path))
		}
		return &LoadedComponent{Reference: ref, Files: df}, nil
	}
}

func (l *Loader) resolveHTTP(ctx context.Context, ref primitives.Reference) (*LoadedComponent, error) {
	cachePath, err := l.fetchToCache(ctx, ref.URL)
	if err != nil {
		return nil, err
	}
	tf, err := openTarFiles(cachePath)
	if err != nil {
		return nil, err
	}
	l.trackTar(tf)
	return &LoadedComponent{Reference: ref, Files: tf}, nil
}

func (l *Loader) resolveRegistry(ctx context.Context, ref primitives.Reference) (*LoadedComponent, error) {
	if len(l.cfg.RegistryTemplates) == 0 {
		return nil, newLoadError(NotFound, ref.String(), fmt.Errorf("no registry templates configured"))
	}

	var lastErr error
	for _, tmpl := range l.cfg.RegistryTemplates {
		resolved := substituteRegistryTemplate(tmpl, ref.Publisher, ref.Name, ref.Version)
		comp, err := l.resolveClassified(ctx, ref, resolved)
		if err == nil {
			return comp, nil
		}
		l.logger.Debug("registry template miss, trying next",
			"reference", ref.String(), "template", tmpl, "error", err)
		lastErr = err
	}
	return nil, newLoadError(NotFound, ref.String(),
		fmt.Errorf("not found in any registry (last error: %w)", lastErr))
}

func (l *Loader) resolveClassified(ctx context.Context, ref primitives.Reference, resolved string) (*LoadedComponent, error) {
	switch classifyResolvedURL(resolved) {
	case resolvedHTTP:
		comp, err := l.resolveHTTP(ctx, primitives.NewHTTPReference(resolved))
		return withOriginal(comp, err, ref)
	case resolvedAbsolutePath:
		return l.resolveLocalPath(ref, resolved)
	case resolvedRelativePath:
		return l.resolveLocalPath(ref, filepath.Join(l.cfg.BaseDir, resolved))
	default:
		return nil, newLoadError(NotFound, resolved, fmt.Errorf("unsupported registry URL form"))
	}
}

// withOriginal swaps a re-resolved LoadedComponent's Reference back to
// the registry reference the caller asked for, so identity/caching keys
// stay stable regardless of which template matched.
func withOriginal(lc *LoadedComponent, err error, original primitives.Reference) (*LoadedComponent, error) {
	if err != nil {
		return nil, err
	}
	lc.Reference = original
	return lc, nil
}

// LoadComponents resolves every reference concurrently, preserving
// input order in the result slice (§4.1 "Concurrent. Preserves input
// order."). Fan-out is bounded by a resilience.Bulkhead sized to
// Config.Concurrency rather than a hand-rolled semaphore channel.
func (l *Loader) LoadComponents(ctx context.Context, refs []primitives.Reference) []Result {
	results := make([]Result, len(refs))
	var wg sync.WaitGroup

	for i, ref := range refs {
		wg.Add(1)
		go func(i int, ref primitives.Reference) {
			defer wg.Done()
			err := l.fanOut.Execute(ctx, func() error {
				comp, err := l.Resolve(ctx, ref)
				results[i] = Result{Component: comp, Err: err}
				return err
			})
			if err != nil && results[i].Err == nil {
				results[i] = Result{Err: err}
			}
		}(i, ref)
	}

	wg.Wait()
	return results
}

// Result pairs a LoadedComponent with its resolution error, used in
// LoadComponents' ordered output.
type Result struct {
	Component *LoadedComponent
	Err       error
}
