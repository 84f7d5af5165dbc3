package util

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWithCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		origins    []string
		method     string
		origin     string
		wantOrigin string
		wantStatus int
	}{
		{"wildcard by default", nil, http.MethodGet, "http://a.test", "*", http.StatusOK},
		{"listed origin echoed", []string{"http://app.test/"}, http.MethodGet, "http://app.test", "http://app.test", http.StatusOK},
		{"unlisted origin omitted", []string{"http://app.test"}, http.MethodGet, "http://evil.test", "", http.StatusOK},
		{"preflight short-circuits", []string{"*"}, http.MethodOptions, "http://a.test", "*", http.StatusNoContent},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/api/notes", nil)
			req.Header.Set("Origin", tc.origin)
			rec := httptest.NewRecorder()
			WithCORS(tc.origins)(next).ServeHTTP(rec, req)

			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tc.wantOrigin {
				t.Fatalf("allow origin = %q, want %q", got, tc.wantOrigin)
			}
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Methods"); got == "" {
				t.Fatal("expected allow methods")
			}
		})
	}
}
