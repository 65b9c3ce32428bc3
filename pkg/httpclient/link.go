package httpclient

import (
	"net/http"
	"strings"
)

// NextLink returns the target of the rel="next" entry of the response's Link headers, or ""
func NextLink(header http.Header) string {
	for _, value := range header.Values("Link") {
		for _, entry := range splitLinks(value) {
			target, params, ok := parseLink(entry)
			if !ok {
				continue
			}
			for _, rel := range strings.Fields(params["rel"]) {
				if strings.EqualFold(rel, "next") {
					return target
				}
			}
		}
	}
	return ""
}

// splitLinks splits a Link header on the commas between entries, ignoring commas inside <...>
func splitLinks(value string) []string {
	var out []string
	depth := 0
	start := 0
	for i, r := range value {
		switch r {
		case '<':
			depth++
		case '>':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				out = append(out, value[start:i])
				start = i + 1
			}
		}
	}
	return append(out, value[start:])
}

func parseLink(entry string) (string, map[string]string, bool) {
	entry = strings.TrimSpace(entry)
	if !strings.HasPrefix(entry, "<") {
		return "", nil, false
	}
	end := strings.Index(entry, ">")
	if end < 0 {
		return "", nil, false
	}
	target := entry[1:end]
	params := make(map[string]string)
	for _, part := range strings.Split(entry[end+1:], ";") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		params[strings.ToLower(strings.TrimSpace(key))] = strings.Trim(strings.TrimSpace(value), `"`)
	}
	return target, params, true
}
