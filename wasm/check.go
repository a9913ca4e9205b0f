package wasm

import (
	"encoding/binary"
	"fmt"
)

// DefaultMaxSize is the default component size ceiling (50 MiB).
const DefaultMaxSize = 50 * 1024 * 1024

// CheckResult is the outcome of structural header validation.
// A payload is acceptable iff Reasons is empty; Warnings never block.
type CheckResult struct {
	Reasons  []string
	Warnings []string
}

// OK reports whether the payload passed all hard checks.
func (c CheckResult) OK() bool {
	return len(c.Reasons) == 0
}

// CheckHeader performs the cheap structural checks that gate all
// expensive work, in order: non-empty, size ceiling, magic number,
// version. A version mismatch is recorded as a warning, not a failure,
// since newer engines may still accept the binary. maxSize <= 0 selects
// DefaultMaxSize.
//
// CheckHeader is a pure function of the bytes; it never hashes and
// never touches the cache.
func CheckHeader(data []byte, maxSize int) CheckResult {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	var res CheckResult

	if len(data) == 0 {
		res.Reasons = append(res.Reasons, "component binary is empty")
		return res
	}

	if len(data) > maxSize {
		res.Reasons = append(res.Reasons, fmt.Sprintf("component is %d bytes, exceeds ceiling of %d", len(data), maxSize))
		return res
	}

	if len(data) < HeaderSize {
		res.Reasons = append(res.Reasons, fmt.Sprintf("truncated header: %d bytes, need %d", len(data), HeaderSize))
		return res
	}

	if magic := binary.LittleEndian.Uint32(data[0:4]); magic != Magic {
		res.Reasons = append(res.Reasons, "Invalid WASM magic number")
		return res
	}

	switch version := binary.LittleEndian.Uint32(data[4:8]); version {
	case Version:
		// current core format
	case ComponentVersion:
		res.Warnings = append(res.Warnings, "component-model layer binary; core-module introspection may be partial")
	default:
		res.Warnings = append(res.Warnings, fmt.Sprintf("unexpected WASM version 0x%08x, expected 0x%08x", version, Version))
	}

	return res
}
