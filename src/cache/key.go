package cache

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Page is an offset/limit pagination window.
type Page struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// CreateCacheKey composes a deterministic key from a request's method,
// resource, pagination window and filters. Filter field order never changes
// the key.
func CreateCacheKey(method, resource string, page *Page, filters map[string]any) string {
	window := "*"
	if page != nil {
		window = fmt.Sprintf("%d-%d", page.Offset, page.Limit)
	}
	return strings.ToUpper(method) + ":" + resource + ":" + window + ":" + canonicalFilters(filters)
}

// encoding/json writes map keys in sorted order at every depth.
func canonicalFilters(filters map[string]any) string {
	if len(filters) == 0 {
		return "{}"
	}
	b, err := json.Marshal(filters)
	if err == nil {
		return string(b)
	}

	// Unencodable values (funcs, channels) fall back to sorted %v pairs.
	names := make([]string, 0, len(filters))
	for k := range filters {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, k := range names {
		parts[i] = fmt.Sprintf("%s=%v", k, filters[k])
	}
	return "{" + strings.Join(parts, ",") + "}"
}
