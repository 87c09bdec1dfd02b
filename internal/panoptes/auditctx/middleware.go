package auditctx

import (
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// RequestIDHeader is honored when present and echoed on the response.
const RequestIDHeader = "X-Request-ID"

// Middleware installs a fresh scope per request. When extract is non-nil its
// result seeds the scope; request metadata the extractor left blank is filled
// from the request itself.
func Middleware(extract func(*http.Request) *UserContext) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := Scope(r.Context())

			uc := UserContext{}
			if extract != nil {
				if got := extract(r); got != nil {
					uc = *got
				}
			}
			if uc.RequestID == "" {
				uc.RequestID = r.Header.Get(RequestIDHeader)
			}
			if uc.RequestID == "" {
				uc.RequestID = uuid.NewString()
			}
			if uc.IPAddress == "" {
				uc.IPAddress = clientIP(r)
			}
			if uc.UserAgent == "" {
				uc.UserAgent = r.UserAgent()
			}
			Set(ctx, uc)

			w.Header().Set(RequestIDHeader, uc.RequestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
