package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		code   int
		ok     bool
	}{
		{"ok", FromCode(200), 200, true},
		{"created", FromCode(201), 201, true},
		{"not_found", FromCode(404), 404, false},
		{"server_error", FromCode(500), 500, false},
		{"network", StatusNetworkError, 0, false},
		{"generic", StatusError, 0, false},
		{"harvester_sentinel", StatusErrTrafi, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.Code(); got != tt.code {
				t.Errorf("Code() = %d, want %d", got, tt.code)
			}
			if got := tt.status.OK(); got != tt.ok {
				t.Errorf("OK() = %v, want %v", got, tt.ok)
			}
		})
	}
}

func TestClient_Fetch_HTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body><p>hello</p></body></html>"))
	}))
	defer srv.Close()

	c := NewClient("landseer-test", 5*time.Second)
	res := c.Fetch(context.Background(), srv.URL)

	if res.Status != "200" {
		t.Errorf("Status = %q, want 200", res.Status)
	}
	if res.HTML == "" {
		t.Error("HTML not captured for a 200 html response")
	}
}

func TestClient_Fetch_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient("landseer-test", 5*time.Second)
	res := c.Fetch(context.Background(), srv.URL+"/missing")

	if res.Status != "404" {
		t.Errorf("Status = %q, want 404", res.Status)
	}
	if res.HTML != "" {
		t.Errorf("HTML captured for a 404: %q", res.HTML)
	}
}

func TestClient_Fetch_NonHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"not": "html"}`))
	}))
	defer srv.Close()

	c := NewClient("landseer-test", 5*time.Second)
	res := c.Fetch(context.Background(), srv.URL)

	if res.Status != "200" {
		t.Errorf("Status = %q, want 200", res.Status)
	}
	if res.HTML != "" {
		t.Error("HTML captured for a non-html content type")
	}
}

func TestClient_Fetch_NetworkError(t *testing.T) {
	// Grab a port nobody is listening on.
	srv := httptest.NewServer(http.NotFoundHandler())
	dead := srv.URL
	srv.Close()

	c := NewClient("landseer-test", 2*time.Second)
	res := c.Fetch(context.Background(), dead)

	if res.Status != StatusNetworkError {
		t.Errorf("Status = %q, want %q", res.Status, StatusNetworkError)
	}
}

func TestClient_Fetch_UserAgent(t *testing.T) {
	var seen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	c := NewClient("landseer/1.0", 5*time.Second)
	c.Fetch(context.Background(), srv.URL)

	if seen != "landseer/1.0" {
		t.Errorf("User-Agent = %q, want landseer/1.0", seen)
	}
}
