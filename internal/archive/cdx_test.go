package archive

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func cdxServer(t *testing.T, payload string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cdx/search/cdx" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(payload))
	}))
}

func TestClient_Lookup(t *testing.T) {
	payload := `[["urlkey","timestamp","original","mimetype","statuscode","digest","length"],
["example)/dead","20230101000000","https://d.example/dead","text/html","200","ABC","1234"]]`
	srv := cdxServer(t, payload)
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	snap, err := c.Lookup(context.Background(), "https://d.example/dead", Latest)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}

	if snap.Timestamp != "20230101000000" {
		t.Errorf("Timestamp = %q", snap.Timestamp)
	}
	if snap.Original != "https://d.example/dead" {
		t.Errorf("Original = %q", snap.Original)
	}
	want := srv.URL + "/web/20230101000000/https://d.example/dead"
	if snap.URL() != want {
		t.Errorf("URL() = %q, want %q", snap.URL(), want)
	}

	ts, err := snap.Time()
	if err != nil {
		t.Fatalf("Time: %v", err)
	}
	if ts.Year() != 2023 || ts.Month() != time.January {
		t.Errorf("Time = %v", ts)
	}
}

func TestClient_Lookup_NoSnapshot(t *testing.T) {
	srv := cdxServer(t, `[]`)
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	_, err := c.Lookup(context.Background(), "https://never.example/", Earliest)
	if !errors.Is(err, ErrNoSnapshot) {
		t.Errorf("err = %v, want ErrNoSnapshot", err)
	}
}

func TestClient_Lookup_HeaderOnly(t *testing.T) {
	srv := cdxServer(t, `[["urlkey","timestamp","original"]]`)
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	_, err := c.Lookup(context.Background(), "https://never.example/", Earliest)
	if !errors.Is(err, ErrNoSnapshot) {
		t.Errorf("err = %v, want ErrNoSnapshot", err)
	}
}

func TestClient_Lookup_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	if _, err := c.Lookup(context.Background(), "https://x.example/", Latest); err == nil {
		t.Error("Lookup succeeded against a 503 index")
	}
}

func TestClient_Lookup_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	dead := srv.URL
	srv.Close()

	c := NewClient(dead, 1*time.Second)
	if _, err := c.Lookup(context.Background(), "https://x.example/", Latest); err == nil {
		t.Error("Lookup succeeded against a dead index")
	}
}
