package translate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"go.uber.org/zap"

	componenthost "github.com/wippyai/component-host"
	"github.com/wippyai/component-host/analyze"
	"github.com/wippyai/component-host/errors"
	"github.com/wippyai/component-host/scan"
	"github.com/wippyai/component-host/wasm"
)

// TranslatedComponent is the cached unit of translation. Immutable
// once registered; runtime load state lives on the cache entry.
type TranslatedComponent struct {
	// ID is the SHA-256 content hash of Source. Identical payloads
	// always share an ID; distinct payloads never do.
	ID        string
	Metadata  analyze.ComponentMetadata
	Module    componenthost.CompiledModule
	TypeDefs  string
	Source    []byte
	Security  *scan.Report
	CreatedAt time.Time
	Warnings  []string
}

// Cache is the subset of the component registry the translator needs.
// Lookup must refresh the entry's recency.
type Cache interface {
	Lookup(id string) (*TranslatedComponent, bool)
	Register(tc *TranslatedComponent) string
}

// Config holds translator construction parameters.
type Config struct {
	// MaxComponentSize is the pre-hash size ceiling in bytes.
	// 0 means wasm.DefaultMaxSize (50 MiB).
	MaxComponentSize int

	// KnownModules extends the analyzer's WASI-seeded registry of
	// host-provided modules.
	KnownModules []string

	Logger *zap.Logger
}

// Translator converts raw component binaries into cached
// TranslatedComponents. Translation is memoized by content hash,
// independent of the caller-supplied name.
type Translator struct {
	compiler componenthost.Compiler
	cache    Cache
	analyzer *analyze.Analyzer
	maxSize  int
	logger   *zap.Logger
}

// New creates a translator bound to a compiler capability and a cache.
func New(compiler componenthost.Compiler, cache Cache, cfg Config) *Translator {
	maxSize := cfg.MaxComponentSize
	if maxSize <= 0 {
		maxSize = wasm.DefaultMaxSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Translator{
		compiler: compiler,
		cache:    cache,
		analyzer: analyze.NewAnalyzer(cfg.KnownModules),
		maxSize:  maxSize,
		logger:   logger,
	}
}

// WithScorer replaces the analyzer's complexity scorer.
func (t *Translator) WithScorer(s analyze.Scorer) *Translator {
	t.analyzer.WithScorer(s)
	return t
}

// Digest computes the content hash used as the cache key. Pure
// function of the bytes; never touches the cache.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Translate validates, hashes and translates a component binary.
//
// Identical payloads hit the cache and skip the compiler entirely, so
// the second translation of the same bytes performs no expensive work.
// Validation failures are reported before hashing where possible and
// always before compilation, bounding the cost of hostile input.
func (t *Translator) Translate(ctx context.Context, data []byte, suggestedName string) (*TranslatedComponent, error) {
	check := wasm.CheckHeader(data, t.maxSize)
	if !check.OK() {
		return nil, errors.Validation(check.Reasons)
	}

	id := Digest(data)
	if cached, ok := t.cache.Lookup(id); ok {
		t.logger.Debug("translation cache hit",
			zap.String("component", id),
			zap.String("name", cached.Metadata.Name))
		return cached, nil
	}

	info, err := wasm.Introspect(data)
	if err != nil {
		return nil, errors.Translation(err)
	}

	name := suggestedName
	if name == "" {
		name = "component-" + id[:12]
	}

	module, err := t.compiler.Compile(ctx, data)
	if err != nil {
		return nil, errors.From(err, errors.PhaseTranslate,
			errors.KindCompileFailed, "compile component")
	}

	source := make([]byte, len(data))
	copy(source, data)

	tc := &TranslatedComponent{
		ID:        id,
		Metadata:  t.analyzer.Metadata(info, name, id, len(data)),
		Module:    module,
		TypeDefs:  module.TypeDefs(),
		Source:    source,
		Security:  scan.Scan(info, len(data)),
		CreatedAt: time.Now(),
		Warnings:  check.Warnings,
	}

	t.cache.Register(tc)
	t.logger.Info("translated component",
		zap.String("component", id),
		zap.String("name", name),
		zap.Int("size", len(data)),
		zap.Int("complexity", tc.Metadata.Analysis.Stats.Complexity),
		zap.String("risk", tc.Security.Risk.String()))

	return tc, nil
}
