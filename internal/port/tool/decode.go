package tool

import (
	"encoding/json"
	"strings"
)

// ErrorPrefix marks a tool reply that reports failure in-band.
const ErrorPrefix = "Error:"

// listKeys are object keys under which a tool may wrap a list of ids.
var listKeys = []string{"video_ids", "videos", "result", "items"}

// StringList decodes a list of strings from a tool result. It accepts
// structured lists, JSON lists in text, objects wrapping a list, one id
// per text block, or a single bare id. An empty list, a malformed reply,
// or a list whose first element starts with "Error:" is a tool failure.
func StringList(name string, res *Result) ([]string, error) {
	if res == nil {
		return nil, Failure(name, "empty result")
	}

	list, ok := listFrom(res.Structured)
	if !ok {
		list, ok = listFromTexts(res.Texts)
	}
	if !ok {
		return nil, Failure(name, "malformed result")
	}
	if len(list) == 0 {
		return nil, Failure(name, "no results")
	}
	if strings.HasPrefix(strings.TrimSpace(list[0]), ErrorPrefix) {
		return nil, Failure(name, "%s", strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(list[0]), ErrorPrefix)))
	}
	return list, nil
}

// Text decodes a single string from a tool result: the value under key in
// structured or JSON-object content, or else the raw text. Empty text or an
// "Error:" reply is a tool failure.
func Text(name string, res *Result, key string) (string, error) {
	if res == nil {
		return "", Failure(name, "empty result")
	}

	var out string
	if m, ok := res.Structured.(map[string]any); ok {
		out, _ = m[key].(string)
	}
	if out == "" {
		raw := strings.TrimSpace(res.Text())
		var obj map[string]any
		if strings.HasPrefix(raw, "{") && json.Unmarshal([]byte(raw), &obj) == nil {
			out, _ = obj[key].(string)
			if out == "" {
				return "", Failure(name, "result has no %q field", key)
			}
		} else {
			out = raw
		}
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return "", Failure(name, "empty result")
	}
	if strings.HasPrefix(out, ErrorPrefix) {
		return "", Failure(name, "%s", strings.TrimSpace(strings.TrimPrefix(out, ErrorPrefix)))
	}
	return out, nil
}

func listFrom(v any) ([]string, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	case map[string]any:
		for _, k := range listKeys {
			if inner, ok := t[k]; ok {
				if inner == nil {
					return []string{}, true
				}
				return listFrom(inner)
			}
		}
	}
	return nil, false
}

func listFromTexts(texts []string) ([]string, bool) {
	switch len(texts) {
	case 0:
		return []string{}, true
	case 1:
	default:
		out := make([]string, 0, len(texts))
		for _, t := range texts {
			if t = strings.TrimSpace(t); t != "" {
				out = append(out, t)
			}
		}
		return out, true
	}

	raw := strings.TrimSpace(texts[0])
	if raw == "" || raw == "null" {
		return []string{}, true
	}
	if strings.HasPrefix(raw, "[") || strings.HasPrefix(raw, "{") {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, false
		}
		return listFrom(v)
	}
	if strings.HasPrefix(raw, ErrorPrefix) || !strings.ContainsAny(raw, " \t\n") {
		return []string{raw}, true
	}
	return nil, false
}
