package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/kbukum/streamkit/logger"
)

// RequestLogger logs every request with its status, body size and duration.
// Probe endpoints are skipped. Aborted requests are logged and the abort
// panic is passed on.
func RequestLogger(log *logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isProbeEndpoint(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			sw := newStatusWriter(w)
			defer func() {
				fields := map[string]interface{}{
					"method":             r.Method,
					"path":               r.URL.Path,
					logger.FieldStatus:   sw.status,
					logger.FieldBytes:    sw.bytes,
					logger.FieldDuration: time.Since(start).Milliseconds(),
				}
				if id := r.Header.Get(HeaderRequestID); id != "" {
					fields[logger.FieldRequestID] = id
				}
				if rec := recover(); rec != nil {
					fields["aborted"] = true
					log.Warn("Request aborted", fields)
					panic(rec)
				}
				if sw.hijacked {
					fields["aborted"] = true
					log.Warn("Request aborted", fields)
					return
				}
				logByStatus(log, fields, sw.status)
			}()
			next.ServeHTTP(sw, r)
		})
	}
}

func isProbeEndpoint(path string) bool {
	switch strings.TrimPrefix(path, "/api") {
	case "/health", "/live", "/ready", "/metrics":
		return true
	}
	return false
}

// logByStatus logs request fields at a level derived from the status code.
func logByStatus(log *logger.Logger, fields map[string]interface{}, status int) {
	switch {
	case status >= 500:
		log.Error("Request completed", fields)
	case status >= 400:
		log.Warn("Request completed", fields)
	default:
		log.Debug("Request completed", fields)
	}
}
