package middleware

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// etagWriter buffers a response body so its hash can be sent as an ETag
// before anything reaches the client.
type etagWriter struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (ew *etagWriter) WriteHeader(code int) {
	ew.statusCode = code
}

func (ew *etagWriter) Write(b []byte) (int, error) {
	return ew.body.Write(b)
}

// ETag hashes successful GET responses with xxhash and answers a matching
// If-None-Match with 304 Not Modified. Other methods pass straight through.
func ETag(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}

		ew := &etagWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ew, r)

		if ew.statusCode != http.StatusOK {
			w.WriteHeader(ew.statusCode)
			_, _ = w.Write(ew.body.Bytes())
			return
		}

		tag := fmt.Sprintf(`"%016x"`, xxhash.Sum64(ew.body.Bytes()))
		w.Header().Set("ETag", tag)

		if etagMatches(r.Header.Get("If-None-Match"), tag) {
			w.Header().Del("Content-Type")
			w.Header().Del("Content-Length")
			w.WriteHeader(http.StatusNotModified)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(ew.body.Bytes())
	})
}

// etagMatches applies the weak comparison used for If-None-Match.
func etagMatches(header, tag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == tag {
			return true
		}
	}
	return false
}
