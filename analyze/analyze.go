package analyze

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wippyai/component-host/wasm"
)

// ComponentMetadata is the identity and shape of a component.
// Immutable once produced by the translator.
type ComponentMetadata struct {
	Name        string
	Version     string
	Description string
	Interfaces  []string // distinct import module names, first-seen order
	Exports     []string
	Imports     []string // "module.name" pairs
	Size        int
	Hash        string
	CreatedAt   time.Time
	Analysis    *ModuleAnalysis
}

// DepStatus flags a dependency group against the known-module registry.
type DepStatus string

const (
	DepAvailable DepStatus = "available"
	DepMissing   DepStatus = "missing"
)

// Dependency groups a component's imports by declaring module.
type Dependency struct {
	Module  string
	Imports []string
	Status  DepStatus
}

// Severity tags an optimization suggestion.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// Suggestion is an advisory optimization hint. Never correctness-critical.
type Suggestion struct {
	Severity Severity
	Message  string
}

// Compatibility is the analyzer's verdict on whether the component can
// run against the host's provided modules.
type Compatibility struct {
	Compatible bool
	Issues     []string
	Warnings   []string
}

// Stats summarizes the structural counts feeding the complexity score.
type Stats struct {
	ImportCount     int
	ExportCount     int
	DependencyCount int
	FuncImports     int
	FuncExports     int
	Complexity      int // 0-100
}

// Port is a single import or export with its inferred kind.
type Port struct {
	Name   string
	Kind   string // function, memory, table, global, tag
	Module string // declaring module, imports only
}

// ModuleAnalysis is the derived structural report embedded in
// ComponentMetadata.
type ModuleAnalysis struct {
	Imports       []Port
	Exports       []Port
	Dependencies  []Dependency
	Suggestions   []Suggestion
	Compatibility Compatibility
	Stats         Stats
}

// Scorer computes a 0-100 complexity score from structural counts.
// Pluggable so scoring can be refined without touching cache or
// execution contracts.
type Scorer func(Stats) int

// Thresholds for suggestion heuristics.
const (
	exportSurfaceThreshold = 20
	splitSizeThreshold     = 1 << 20 // 1 MiB
)

// Default complexity weights. Each term is capped so a single dimension
// cannot saturate the score.
const (
	importWeight  = 2
	importCap     = 30
	exportWeight  = 2
	exportCap     = 30
	depWeight     = 5
	depCap        = 20
	funcWeight    = 1
	funcCap       = 20
	complexityMax = 100
)

// DefaultScorer is the built-in weighted, capped complexity scorer.
func DefaultScorer(s Stats) int {
	score := capped(s.ImportCount*importWeight, importCap) +
		capped(s.ExportCount*exportWeight, exportCap) +
		capped(s.DependencyCount*depWeight, depCap) +
		capped((s.FuncImports+s.FuncExports)*funcWeight, funcCap)
	return capped(score, complexityMax)
}

func capped(v, maxValue int) int {
	if v > maxValue {
		return maxValue
	}
	return v
}

// KnownWASIModules are the runtime-provided modules every analyzer
// registry is seeded with.
var KnownWASIModules = []string{
	"wasi_snapshot_preview1",
	"wasi_unstable",
	"wasi:cli/environment",
	"wasi:cli/exit",
	"wasi:clocks/monotonic-clock",
	"wasi:clocks/wall-clock",
	"wasi:filesystem/preopens",
	"wasi:filesystem/types",
	"wasi:io/error",
	"wasi:io/poll",
	"wasi:io/streams",
	"wasi:random/random",
}

// Analyzer builds ModuleAnalysis reports. It never fails: it operates
// on data the introspector already accepted.
type Analyzer struct {
	known  map[string]bool
	scorer Scorer
}

// NewAnalyzer creates an analyzer whose known-module registry contains
// the WASI modules plus any extra host-provided module names.
func NewAnalyzer(extraModules []string) *Analyzer {
	a := &Analyzer{
		known:  make(map[string]bool, len(KnownWASIModules)+len(extraModules)),
		scorer: DefaultScorer,
	}
	for _, m := range KnownWASIModules {
		a.known[m] = true
	}
	for _, m := range extraModules {
		a.known[m] = true
	}
	return a
}

// WithScorer replaces the complexity scorer.
func (a *Analyzer) WithScorer(s Scorer) *Analyzer {
	if s != nil {
		a.scorer = s
	}
	return a
}

// Analyze produces the structural report for an introspected module.
func (a *Analyzer) Analyze(info *wasm.Info, size int) *ModuleAnalysis {
	ma := &ModuleAnalysis{
		Imports: ports(info.Imports),
		Exports: exportPorts(info.Exports),
	}

	ma.Dependencies = a.dependencies(info)
	ma.Suggestions = suggestions(info, size)
	ma.Compatibility = compatibility(ma.Dependencies)

	ma.Stats = Stats{
		ImportCount:     len(info.Imports),
		ExportCount:     len(info.Exports),
		DependencyCount: len(ma.Dependencies),
		FuncImports:     info.FuncImports(),
		FuncExports:     info.FuncExports(),
	}
	ma.Stats.Complexity = a.scorer(ma.Stats)

	return ma
}

// Metadata assembles component metadata for an introspected module.
func (a *Analyzer) Metadata(info *wasm.Info, name, hash string, size int) ComponentMetadata {
	imports := make([]string, len(info.Imports))
	for i, imp := range info.Imports {
		imports[i] = imp.Module + "." + imp.Name
	}
	exports := make([]string, len(info.Exports))
	for i, exp := range info.Exports {
		exports[i] = exp.Name
	}

	return ComponentMetadata{
		Name:       name,
		Interfaces: info.ImportModules(),
		Exports:    exports,
		Imports:    imports,
		Size:       size,
		Hash:       hash,
		CreatedAt:  time.Now(),
		Analysis:   a.Analyze(info, size),
	}
}

func ports(imports []wasm.Import) []Port {
	out := make([]Port, len(imports))
	for i, imp := range imports {
		out[i] = Port{
			Name:   imp.Name,
			Kind:   wasm.KindName(imp.Kind),
			Module: imp.Module,
		}
	}
	return out
}

func exportPorts(exports []wasm.Export) []Port {
	out := make([]Port, len(exports))
	for i, exp := range exports {
		out[i] = Port{
			Name: exp.Name,
			Kind: wasm.KindName(exp.Kind),
		}
	}
	return out
}

// dependencies clusters imports by declaring module and flags each
// group against the known-module registry.
func (a *Analyzer) dependencies(info *wasm.Info) []Dependency {
	byModule := make(map[string][]string)
	var order []string
	for _, imp := range info.Imports {
		if _, seen := byModule[imp.Module]; !seen {
			order = append(order, imp.Module)
		}
		byModule[imp.Module] = append(byModule[imp.Module], imp.Name)
	}

	deps := make([]Dependency, 0, len(order))
	for _, module := range order {
		status := DepMissing
		if a.known[module] {
			status = DepAvailable
		}
		deps = append(deps, Dependency{
			Module:  module,
			Imports: byModule[module],
			Status:  status,
		})
	}
	return deps
}

// diagnosticMarkers flag imports that look like debug-only plumbing.
var diagnosticMarkers = []string{"log", "debug", "trace", "print", "panic"}

func suggestions(info *wasm.Info, size int) []Suggestion {
	var out []Suggestion

	for _, imp := range info.Imports {
		lower := strings.ToLower(imp.Name)
		for _, marker := range diagnosticMarkers {
			if strings.Contains(lower, marker) {
				out = append(out, Suggestion{
					Severity: SeverityInfo,
					Message:  fmt.Sprintf("import %s.%s looks diagnostic-only and may be removable in release builds", imp.Module, imp.Name),
				})
				break
			}
		}
	}

	if n := len(info.Exports); n > exportSurfaceThreshold {
		out = append(out, Suggestion{
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("%d exports; consider reducing the public surface", n),
		})
	}

	if n := info.MemoryImports(); n > 1 {
		out = append(out, Suggestion{
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("%d memory imports; consider consolidating into a single memory", n),
		})
	}

	if size > splitSizeThreshold {
		out = append(out, Suggestion{
			Severity: SeverityInfo,
			Message:  fmt.Sprintf("component is %d bytes; consider splitting the module", size),
		})
	}

	return out
}

func compatibility(deps []Dependency) Compatibility {
	c := Compatibility{Compatible: true}
	for _, dep := range deps {
		if dep.Status == DepMissing {
			c.Compatible = false
			c.Issues = append(c.Issues, fmt.Sprintf("dependency %q is not provided by the host", dep.Module))
		}
	}
	return c
}

// SortMetadata orders metadata by component name for stable listings.
func SortMetadata(list []ComponentMetadata) {
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})
}

// HasInterface reports whether the component consumes the named interface.
func (m *ComponentMetadata) HasInterface(name string) bool {
	for _, iface := range m.Interfaces {
		if iface == name {
			return true
		}
	}
	return false
}
