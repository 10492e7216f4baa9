package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthURL(t *testing.T) {
	tests := []struct {
		name, url, addr, want string
	}{
		{"default", "", "", "http://127.0.0.1:8080/healthz"},
		{"port only", "", ":9090", "http://127.0.0.1:9090/healthz"},
		{"host and port", "", "0.0.0.0:8081", "http://0.0.0.0:8081/healthz"},
		{"explicit url", "http://bridge:8080/healthz", ":1", "http://bridge:8080/healthz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HEALTHCHECK_URL", tt.url)
			t.Setenv("HTTP_ADDR", tt.addr)
			if got := healthURL(); got != tt.want {
				t.Errorf("healthURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRun(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ok.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer bad.Close()

	if code := run(ok.URL + "/healthz"); code != 0 {
		t.Errorf("healthy server: exit %d", code)
	}
	if code := run(bad.URL + "/healthz"); code != 1 {
		t.Errorf("unhealthy server: exit %d", code)
	}
	if code := run("http://127.0.0.1:1/healthz"); code != 1 {
		t.Errorf("unreachable server: exit %d", code)
	}
}
