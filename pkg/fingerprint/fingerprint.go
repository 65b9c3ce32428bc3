// Package fingerprint hashes canonicalized graph values into stable identities.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
)

// Edge fingerprints an undirected edge. Endpoint order does not matter.
func Edge(u, v, edgeType string, attrs map[string]any) string {
	if v < u {
		u, v = v, u
	}
	var b strings.Builder
	b.WriteString(Canonical(u))
	b.WriteByte('|')
	b.WriteString(Canonical(v))
	b.WriteByte('|')
	b.WriteString(Canonical(edgeType))
	b.WriteByte('|')
	b.WriteString(Canonical(attrs))
	return hash(b.String())
}

// Attributes fingerprints an edge's type and attributes, ignoring its endpoints
func Attributes(edgeType string, attrs map[string]any) string {
	return hash(Canonical(edgeType) + "|" + Canonical(attrs))
}

// Canonical returns a deterministic string for a value, sorting map keys recursively
func Canonical(data any) string {
	var b strings.Builder
	writeCanonical(&b, data)
	return b.String()
}

func writeCanonical(b *strings.Builder, data any) {
	switch v := data.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			keyJSON, _ := json.Marshal(k)
			b.Write(keyJSON)
			b.WriteByte(':')
			writeCanonical(b, v[k])
		}
		b.WriteByte('}')
	case []any:
		b.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCanonical(b, item)
		}
		b.WriteByte(']')
	case []string:
		items := make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}
		writeCanonical(b, items)
	default:
		out, _ := json.Marshal(v)
		b.Write(out)
	}
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
