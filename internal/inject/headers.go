package inject

import (
	"net/http"
	"strconv"
)

// RepairHeaders returns a copy of h adjusted for a rewritten HTML body: the
// content-encoding header is dropped (the body was decoded to text), the
// content type is pinned to UTF-8 HTML, and content-length is recomputed from
// the new body's byte length. The input header map is not mutated.
func RepairHeaders(h http.Header, bodyLen int) http.Header {
	out := h.Clone()
	if out == nil {
		out = http.Header{}
	}
	out.Del("Content-Encoding")
	out.Set("Content-Type", "text/html; charset=utf-8")
	out.Set("Content-Length", strconv.Itoa(bodyLen))
	return out
}
