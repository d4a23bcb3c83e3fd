// Package fingerprint derives stable cache keys from a request's method, path and body.
package fingerprint

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"unicode/utf8"
)

// DefaultCacheableMethods are the methods the response cache fingerprints.
// Anything else bypasses the cache.
var DefaultCacheableMethods = []string{"GET", "POST"}

// Cacheable reports whether method belongs to the cacheable set.
// An empty set falls back to DefaultCacheableMethods.
func Cacheable(method string, methods []string) bool {
	if len(methods) == 0 {
		methods = DefaultCacheableMethods
	}
	for _, m := range methods {
		if strings.EqualFold(strings.TrimSpace(m), method) {
			return true
		}
	}
	return false
}

// Compute returns the hex SHA-256 fingerprint of method, path and body.
// JSON bodies are canonicalized first so that payloads differing only in key
// order or whitespace hash identically. Non-JSON bodies are hashed verbatim.
func Compute(method, path string, body []byte) (string, error) {
	canonical, err := CanonicalBody(body)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write([]byte(strings.ToUpper(strings.TrimSpace(method))))
	h.Write([]byte{'\n'})
	h.Write([]byte(CanonicalPath(path)))
	h.Write([]byte{'\n'})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// CanonicalPath sorts the query string of path so ?a=1&b=2 and ?b=2&a=1 match.
func CanonicalPath(path string) string {
	idx := strings.IndexByte(path, '?')
	if idx < 0 {
		return path
	}
	values, err := url.ParseQuery(path[idx+1:])
	if err != nil {
		return path
	}
	// url.Values.Encode sorts by key
	for _, v := range values {
		sort.Strings(v)
	}
	encoded := values.Encode()
	if encoded == "" {
		return path[:idx]
	}
	return path[:idx] + "?" + encoded
}

// CanonicalBody re-encodes a JSON document with sorted object keys and no
// insignificant whitespace. Numbers keep their literal form. Bodies that are
// not a single JSON value, or that are not valid UTF-8, are returned unchanged.
func CanonicalBody(body []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}
	// Decoding would turn invalid UTF-8 into U+FFFD and merge distinct bodies
	if !utf8.Valid(trimmed) || !json.Valid(trimmed) {
		return body, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return body, nil
	}
	if _, err := dec.Token(); err != io.EOF {
		return body, nil
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, doc); err != nil {
		return nil, fmt.Errorf("canonicalize body: %w", err)
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := writeCanonical(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, item := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case json.Number:
		buf.WriteString(t.String())
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return err
		}
		buf.Write(b)
	}
	return nil
}
