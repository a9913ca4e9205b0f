// Package scan performs a best-effort security review of a component
// binary's declared surface. The report is advisory: it informs
// operators, it does not gate registration or execution.
package scan

import (
	"fmt"
	"strings"
	"time"

	"github.com/wippyai/component-host/wasm"
)

// RiskLevel classifies the overall result of a scan.
type RiskLevel int

const (
	RiskNone RiskLevel = iota
	RiskLow
	RiskMedium
	RiskHigh
)

func (r RiskLevel) String() string {
	switch r {
	case RiskNone:
		return "none"
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Issue is a single finding.
type Issue struct {
	Severity    RiskLevel
	Description string
}

// Report is the outcome of scanning one component.
type Report struct {
	Risk      RiskLevel
	Issues    []Issue
	ScannedAt time.Time
}

// sensitive maps capability markers in import module names to the risk
// they imply when a component requests them.
var sensitive = []struct {
	marker string
	risk   RiskLevel
	what   string
}{
	{"sockets", RiskHigh, "network socket access"},
	{"http", RiskMedium, "outbound HTTP access"},
	{"filesystem", RiskMedium, "filesystem access"},
	{"process", RiskHigh, "process control"},
	{"exec", RiskHigh, "code execution facilities"},
	{"random", RiskLow, "entropy source access"},
}

// largeDataThreshold flags unusually big embedded data payloads.
const largeDataThreshold = 5 << 20 // 5 MiB

// Scan reviews an introspected module. It never fails; absent signals
// simply produce an empty report with RiskNone.
func Scan(info *wasm.Info, size int) *Report {
	rep := &Report{ScannedAt: time.Now()}

	for _, module := range info.ImportModules() {
		lower := strings.ToLower(module)
		for _, s := range sensitive {
			if strings.Contains(lower, s.marker) {
				rep.add(s.risk, fmt.Sprintf("imports %q: %s", module, s.what))
			}
		}
	}

	if info.DataBytes > largeDataThreshold {
		rep.add(RiskLow, fmt.Sprintf("embedded data section is %d bytes", info.DataBytes))
	}

	if len(info.Exports) == 0 {
		rep.add(RiskLow, "module exports nothing; behavior is opaque to the host")
	}

	if size > wasm.DefaultMaxSize/2 {
		rep.add(RiskLow, fmt.Sprintf("binary is %d bytes, more than half the upload ceiling", size))
	}

	return rep
}

func (r *Report) add(severity RiskLevel, description string) {
	r.Issues = append(r.Issues, Issue{Severity: severity, Description: description})
	if severity > r.Risk {
		r.Risk = severity
	}
}
