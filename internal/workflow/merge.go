package workflow

import (
	"encoding/json"
	"strconv"
	"strings"
)

// MergeSummary folds a fresh extraction into the accumulated summary.
//
// A scalar takes the extracted value only when it is non-blank. A list is
// replaced wholesale by a non-empty extracted list; extraction runs over the
// whole transcript, so the latest non-empty list supersedes earlier ones.
// Merging an empty extraction, or the same extraction twice, changes nothing.
func MergeSummary(current, extracted DiscoverySummary) DiscoverySummary {
	out := current.Clone()
	for _, f := range allFields {
		if f.IsList() {
			if list := cleanList(extracted.List(f)); len(list) > 0 {
				*out.listPtr(f) = list
			}
			continue
		}
		if v := strings.TrimSpace(extracted.Scalar(f)); v != "" {
			*out.scalarPtr(f) = v
		}
	}
	return out
}

// SummaryFromRaw coerces loosely typed extraction output (a decoded JSON
// object) into a DiscoverySummary. It never fails: a list arriving for a
// scalar becomes a joined string, a non-list arriving for a list becomes an
// empty list, and anything unrecognised is dropped.
func SummaryFromRaw(raw map[string]any) DiscoverySummary {
	var d DiscoverySummary
	if raw == nil {
		return d
	}
	for _, f := range allFields {
		v, ok := raw[string(f)]
		if !ok {
			continue
		}
		if f.IsList() {
			*d.listPtr(f) = coerceList(v)
		} else {
			*d.scalarPtr(f) = coerceScalar(v)
		}
	}
	return d
}

func coerceScalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []any:
		return strings.TrimSpace(strings.Join(coerceList(t), ", "))
	case map[string]any:
		return ""
	default:
		return scalarString(t)
	}
}

func coerceList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		if strs, ok := v.([]string); ok {
			return cleanList(strs)
		}
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch t := item.(type) {
		case nil, []any, map[string]any:
			continue
		case string:
			if s := strings.TrimSpace(t); s != "" {
				out = append(out, s)
			}
		default:
			if s := scalarString(t); s != "" {
				out = append(out, s)
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func scalarString(v any) string {
	switch t := v.(type) {
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	case string:
		return strings.TrimSpace(t)
	}
	return ""
}

func cleanList(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
