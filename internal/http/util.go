package httpx

import (
	"net/http"
	"strconv"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

// pageParams reads the limit/offset query parameters and clamps them to the
// API-wide bounds. Missing or malformed values fall back to the defaults.
func pageParams(r *http.Request) (limit, offset int) {
	q := r.URL.Query()
	limit = clamp(atoiOr(q.Get("limit"), defaultPageLimit), 1, maxPageLimit)
	offset = max(atoiOr(q.Get("offset"), 0), 0)
	return limit, offset
}

func atoiOr(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func clamp(n, low, high int) int {
	return min(max(n, low), high)
}
