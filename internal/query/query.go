package query

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Encode converts the supplied data into a query string.
// Keys are emitted in sorted order and both keys and values are
// percent-encoded like encodeURIComponent, with spaces encoded as %20.
// An empty or nil map yields an empty string.
func Encode(data map[string]any) string {
	if len(data) == 0 {
		return ""
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, Escape(key)+"="+Escape(stringify(data[key])))
	}

	return strings.Join(pairs, "&")
}

// Decode parses a query string produced by Encode back into a map of strings.
// Malformed pairs are skipped.
func Decode(query string) map[string]string {
	result := make(map[string]string)
	if query == "" {
		return result
	}

	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, err := url.PathUnescape(rawKey)
		if err != nil {
			continue
		}
		value, err := url.PathUnescape(rawValue)
		if err != nil {
			continue
		}
		result[key] = value
	}

	return result
}

// Append adds the encoded data to rawURL, using & when rawURL already has a
// query component and ? otherwise.
func Append(rawURL string, data map[string]any) string {
	q := Encode(data)
	if q == "" {
		return rawURL
	}
	if strings.Contains(rawURL, "?") {
		return rawURL + "&" + q
	}
	return rawURL + "?" + q
}

// componentUnescaper undoes QueryEscape where encodeURIComponent leaves the
// character literal. QueryEscape already escapes a literal '+', so any '+'
// left is a space.
var componentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// Escape percent-encodes s for use as a query key or value, using the same
// unreserved set as encodeURIComponent.
func Escape(s string) string {
	return componentUnescaper.Replace(url.QueryEscape(s))
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
