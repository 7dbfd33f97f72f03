package middleware

import (
	"net/http"
	"time"

	chi_middleware "github.com/go-chi/chi/middleware"
	log "github.com/sirupsen/logrus"
)

const (
	FieldRequestID  = "request_id"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldRemoteAddr = "remote_addr"
	FieldStatus     = "status"
	FieldDuration   = "duration"
)

// RequestLogFields returns the log fields identifying a request.
func RequestLogFields(r *http.Request) log.Fields {
	fields := log.Fields{
		FieldMethod:     r.Method,
		FieldPath:       r.URL.Path,
		FieldRemoteAddr: r.RemoteAddr,
	}
	if id := chi_middleware.GetReqID(r.Context()); len(id) > 0 {
		fields[FieldRequestID] = id
	}
	return fields
}

// RequestLogger logs one line per request once the handler has returned.
// It must be installed after chi's RequestID middleware to pick up request IDs.
func RequestLogger() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chi_middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger := log.WithFields(RequestLogFields(r)).WithFields(log.Fields{
				FieldStatus:   status,
				FieldDuration: time.Since(start).Round(time.Millisecond).String(),
			})
			switch {
			case status >= http.StatusInternalServerError:
				logger.Warnf("%s %s", r.Method, r.URL.Path)
			default:
				logger.Debugf("%s %s", r.Method, r.URL.Path)
			}
		}
		return http.HandlerFunc(fn)
	}
}
