package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/cascade/internal/ir"
)

// Lookup resolves template placeholders against a live store.
// *target.Target implements Lookup.
type Lookup interface {
	Get(key string) (string, bool)
	Last(key string) (ir.IRValue, bool)
}

// MapLookup adapts a plain map to Lookup. It has no arrays.
type MapLookup map[string]string

// Get implements Lookup.
func (m MapLookup) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Last implements Lookup.
func (m MapLookup) Last(string) (ir.IRValue, bool) {
	return nil, false
}

// placeholder is one parsed {key} or {key[sub]} reference.
type placeholder struct {
	key    string
	sub    string
	hasSub bool
}

// segment is either a literal run of text or a placeholder.
type segment struct {
	literal string
	field   *placeholder
}

// Render substitutes every placeholder in template with its stored value.
//
// Syntax:
//
//	{key}        stored value of key
//	{key[sub]}   field sub of key; key must hold a JSON object string or
//	             name an array whose newest item is a record
//	{{ and }}    literal braces
//
// Example:
//
//	Render("hello {user}", MapLookup{"user": "bob"}) → "hello bob"
//	Render("hello {missing}", MapLookup{})          → ConfigurationError
func Render(template string, l Lookup) (string, error) {
	segments, err := parseTemplate(template)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, seg := range segments {
		if seg.field == nil {
			b.WriteString(seg.literal)
			continue
		}
		val, err := resolve(*seg.field, l)
		if err != nil {
			return "", err
		}
		b.WriteString(val)
	}
	return b.String(), nil
}

// Fields returns the top-level store keys referenced by template, in order
// of first appearance. For {credentials[password]} only "credentials" is
// returned.
func Fields(template string) ([]string, error) {
	segments, err := parseTemplate(template)
	if err != nil {
		return nil, err
	}

	var keys []string
	seen := make(map[string]bool)
	for _, seg := range segments {
		if seg.field == nil || seen[seg.field.key] {
			continue
		}
		seen[seg.field.key] = true
		keys = append(keys, seg.field.key)
	}
	return keys, nil
}

// parseTemplate splits template into literal and placeholder segments.
func parseTemplate(template string) ([]segment, error) {
	var (
		segments []segment
		lit      strings.Builder
	)

	flush := func() {
		if lit.Len() > 0 {
			segments = append(segments, segment{literal: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(template); i++ {
		c := template[i]
		switch c {
		case '{':
			if i+1 < len(template) && template[i+1] == '{' {
				lit.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(template[i+1:], '}')
			if end < 0 {
				return nil, &ConfigurationError{
					Field:   template,
					Message: "unterminated placeholder",
				}
			}
			ph, err := parsePlaceholder(template[i+1 : i+1+end])
			if err != nil {
				return nil, err
			}
			flush()
			segments = append(segments, segment{field: ph})
			i += end + 1
		case '}':
			if i+1 < len(template) && template[i+1] == '}' {
				lit.WriteByte('}')
				i++
				continue
			}
			return nil, &ConfigurationError{
				Field:   template,
				Message: "single '}' encountered in template",
			}
		default:
			lit.WriteByte(c)
		}
	}
	flush()
	return segments, nil
}

// parsePlaceholder parses the inside of a {...} reference.
func parsePlaceholder(body string) (*placeholder, error) {
	if body == "" {
		return nil, &ConfigurationError{Field: "{}", Message: "placeholder must name a stored key"}
	}
	if strings.ContainsAny(body, ":!{") {
		return nil, &ConfigurationError{
			Field:   "{" + body + "}",
			Message: "format specs and conversions are not supported",
		}
	}

	open := strings.IndexByte(body, '[')
	if open < 0 {
		if strings.ContainsRune(body, ']') {
			return nil, &ConfigurationError{Field: "{" + body + "}", Message: "unbalanced ']'"}
		}
		return &placeholder{key: body}, nil
	}

	if open == 0 || !strings.HasSuffix(body, "]") || strings.Count(body, "[") != 1 {
		return nil, &ConfigurationError{
			Field:   "{" + body + "}",
			Message: "only one level of [sub] access is supported",
		}
	}
	sub := body[open+1 : len(body)-1]
	if sub == "" {
		return nil, &ConfigurationError{Field: "{" + body + "}", Message: "empty sub-key"}
	}
	return &placeholder{key: body[:open], sub: sub, hasSub: true}, nil
}

// resolve looks up one placeholder.
func resolve(ph placeholder, l Lookup) (string, error) {
	if !ph.hasSub {
		v, ok := l.Get(ph.key)
		if !ok {
			return "", &ConfigurationError{
				Field:   "{" + ph.key + "}",
				Message: fmt.Sprintf("stored key %q is not set", ph.key),
			}
		}
		return v, nil
	}

	field := fmt.Sprintf("{%s[%s]}", ph.key, ph.sub)

	if raw, ok := l.Get(ph.key); ok {
		var obj map[string]any
		if err := json.Unmarshal([]byte(raw), &obj); err != nil {
			return "", &ConfigurationError{
				Field:   field,
				Message: fmt.Sprintf("stored key %q is not an object", ph.key),
				Err:     err,
			}
		}
		v, ok := obj[ph.sub]
		if !ok {
			return "", &ConfigurationError{
				Field:   field,
				Message: fmt.Sprintf("stored key %q has no field %q", ph.key, ph.sub),
			}
		}
		if s, isString := v.(string); isString {
			return s, nil
		}
		enc, err := json.Marshal(v)
		if err != nil {
			return "", &ConfigurationError{Field: field, Message: "cannot render field", Err: err}
		}
		return string(enc), nil
	}

	if last, ok := l.Last(ph.key); ok {
		if rec, isRecord := last.(ir.IRRecord); isRecord {
			if v, ok := rec[ph.sub]; ok {
				return v, nil
			}
		}
	}

	return "", &ConfigurationError{
		Field:   field,
		Message: fmt.Sprintf("stored key %q has no field %q", ph.key, ph.sub),
	}
}
