// Package jsonx contains small JSON document helpers built on gjson and sjson.
package jsonx

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ErrInvalidJSON is returned when a document cannot be parsed.
var ErrInvalidJSON = errors.New("invalid JSON document")

// UnwrapList returns the payload of a list envelope. When body is an object
// with a "data" member, the raw value of that member is returned; any other
// valid document is returned unchanged.
func UnwrapList(body []byte) ([]byte, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrInvalidJSON
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return body, nil
	}
	data := doc.Get("data")
	if !data.Exists() {
		return body, nil
	}
	return []byte(data.Raw), nil
}

// Merge writes every option into the JSON object in body, in the map's
// insertion order. Keys listed in reserved are skipped so callers can keep
// ownership of fields they set themselves.
func Merge(body []byte, options *orderedmap.OrderedMap[string, any], reserved ...string) ([]byte, error) {
	if options == nil {
		return body, nil
	}
	var err error
	for pair := options.Oldest(); pair != nil; pair = pair.Next() {
		if slices.Contains(reserved, pair.Key) {
			continue
		}
		if raw, ok := pair.Value.(json.RawMessage); ok {
			body, err = sjson.SetRawBytes(body, EscapeKey(pair.Key), raw)
		} else {
			body, err = sjson.SetBytes(body, EscapeKey(pair.Key), pair.Value)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to set option %q: %w", pair.Key, err)
		}
	}
	return body, nil
}

var keyEscaper = strings.NewReplacer(`\`, `\\`, `.`, `\.`, `*`, `\*`, `?`, `\?`, `|`, `\|`, `#`, `\#`, `@`, `\@`)

// EscapeKey escapes the gjson/sjson path characters in a literal object key.
func EscapeKey(key string) string {
	return keyEscaper.Replace(key)
}
