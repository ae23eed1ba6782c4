package toolcall

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

type ruleKind int

const (
	knownNumeric ruleKind = iota
	knownString
)

// defaultRules is the pinned rule set of spec §4.6: numeric-shaped values
// for these parameter names parse as numbers regardless of tool; these
// parameter names stay strings regardless of tool. Applies across all
// tools — no tool_name_regex narrows it further in the default set.
var defaultRules = map[string]ruleKind{
	"offset":  knownNumeric,
	"limit":   knownNumeric,
	"timeout": knownNumeric,
	"port":    knownNumeric,
	"line":    knownNumeric,
	"count":   knownNumeric,
	"size":    knownNumeric,
	"length":  knownNumeric,
	"index":   knownNumeric,
	"number":  knownNumeric,
	"num":     knownNumeric,

	"id":          knownString,
	"file_path":   knownString,
	"path":        knownString,
	"name":        knownString,
	"description": knownString,
}

var numericShape = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// coerce implements spec §4.6's type-coercion rules for one parameter's
// raw text value. Returns the typed value and a non-empty warning message
// for KNOWN_STRING or UNKNOWN numeric-shaped values.
func coerce(toolName, paramName, raw string) (interface{}, string) {
	switch strings.ToLower(raw) {
	case "true":
		return true, ""
	case "false":
		return false, ""
	}

	if !numericShape.MatchString(raw) {
		return raw, ""
	}

	kind, known := defaultRules[paramName]
	switch {
	case known && kind == knownNumeric:
		return parseNumber(raw), ""
	case known && kind == knownString:
		return raw, "parameter " + paramName + " of tool " + toolName + " is numeric-shaped but pinned as string"
	default:
		return parseNumber(raw), "parameter " + paramName + " of tool " + toolName + " is numeric-shaped with no known type, parsed as number"
	}
}

// parseNumber implements spec §4.6's KNOWN_NUMERIC parse: int if the value
// has no decimal point and fits 32 bits, else int64, else float64.
func parseNumber(raw string) interface{} {
	if !strings.Contains(raw, ".") {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			if v >= math.MinInt32 && v <= math.MaxInt32 {
				return int(v)
			}
			return v
		}
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return v
	}
	return raw
}
