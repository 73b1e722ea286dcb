package httpmetrics

import "strings"

// UnmatchedPath labels requests outside the account API so scanners hitting
// random URLs cannot grow the metric label set.
const UnmatchedPath = "/{unmatched}"

var knownPaths = map[string]struct{}{
	"/":                     {},
	"/health":               {},
	"/metrics":              {},
	"/user/register":        {},
	"/user/login":           {},
	"/user/logout":          {},
	"/user/update":          {},
	"/user/update-password": {},
	"/token/refresh/":       {},
}

// NormalizePath maps a request path onto a bounded label. The refresh route is
// the only one registered with a trailing slash; the others match with or
// without one.
func NormalizePath(path string) string {
	if path == "" {
		return "/"
	}
	if _, ok := knownPaths[path]; ok {
		return path
	}
	if trimmed := strings.TrimSuffix(path, "/"); trimmed != path {
		if _, ok := knownPaths[trimmed]; ok {
			return trimmed
		}
	}
	return UnmatchedPath
}
