// Package origin rejects cross-origin state-changing requests.
package origin

import (
	"net/http"
	"net/url"
	"strings"

	dErrors "authguard/pkg/domain-errors"
	"authguard/pkg/platform/httputil"
	"authguard/pkg/requestcontext"
)

// SameOrigin admits safe methods unconditionally. Unsafe methods must carry an Origin
// (or, failing that, a Referer) whose scheme://host is in allowed, or equal to the
// request's own host when allowed is empty.
func SameOrigin(allowed []string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[strings.TrimRight(strings.ToLower(a), "/")] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafe(r.Method) || permitted(r, set) {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteErrorWithRequestID(w,
				dErrors.New(dErrors.CodeForbidden, "cross-origin request rejected"),
				requestcontext.RequestID(r.Context()))
		})
	}
}

func isSafe(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func permitted(r *http.Request, allowed map[string]struct{}) bool {
	src := r.Header.Get("Origin")
	if src == "" {
		src = r.Header.Get("Referer")
	}
	if src == "" {
		return false
	}
	u, err := url.Parse(src)
	if err != nil || u.Host == "" {
		return false
	}
	o := strings.ToLower(u.Scheme + "://" + u.Host)
	if len(allowed) == 0 {
		return strings.EqualFold(u.Host, r.Host)
	}
	_, ok := allowed[o]
	return ok
}
