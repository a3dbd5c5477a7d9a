package origin

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSameOrigin(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	cases := []struct {
		name    string
		allowed []string
		method  string
		headers map[string]string
		want    int
	}{
		{name: "safe method passes", method: http.MethodGet, want: http.StatusNoContent},
		{name: "missing origin rejected", method: http.MethodPost, want: http.StatusForbidden},
		{name: "same host without allow list", method: http.MethodPost, headers: map[string]string{"Origin": "https://example.com"}, want: http.StatusNoContent},
		{name: "other host without allow list", method: http.MethodPost, headers: map[string]string{"Origin": "https://evil.test"}, want: http.StatusForbidden},
		{name: "allow listed origin", allowed: []string{"https://app.example.com/"}, method: http.MethodPost, headers: map[string]string{"Origin": "https://APP.example.com"}, want: http.StatusNoContent},
		{name: "referer fallback", allowed: []string{"https://app.example.com"}, method: http.MethodPost, headers: map[string]string{"Referer": "https://app.example.com/login?next=/"}, want: http.StatusNoContent},
		{name: "scheme mismatch", allowed: []string{"https://app.example.com"}, method: http.MethodPost, headers: map[string]string{"Origin": "http://app.example.com"}, want: http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(tc.method, "https://example.com/risk/evaluate", nil)
			for k, v := range tc.headers {
				r.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			SameOrigin(tc.allowed)(ok).ServeHTTP(w, r)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}
