// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClassGate Contributors

package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// instrument records metrics for one route. The route label is the mux
// pattern without its method so label cardinality stays bounded.
func (s *Server) instrument(pattern string, next http.Handler) http.Handler {
	if s.metrics == nil {
		return next
	}
	route := pattern
	if _, path, ok := strings.Cut(pattern, " "); ok {
		route = path
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		s.metrics.RequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		s.metrics.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
