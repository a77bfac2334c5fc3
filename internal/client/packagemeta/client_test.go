package packagemeta

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLookupPurl(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("purl"); got != "pkg:gem/rack" {
			t.Errorf("purl=%q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"name":"rack","ecosystem":"rubygems","repository_url":"https://github.com/rack/rack"}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL)
	pkg, err := c.LookupPurl(context.Background(), "pkg:gem/rack")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if pkg == nil || pkg.Name != "rack" || pkg.Ecosystem != "rubygems" {
		t.Fatalf("pkg=%+v", pkg)
	}
	if pkg.RepositoryURL == nil || *pkg.RepositoryURL != "https://github.com/rack/rack" {
		t.Fatalf("repository_url=%v", pkg.RepositoryURL)
	}
}

func TestLookup_EmptyResultMeansUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL)
	pkg, err := c.LookupRepositoryURL(context.Background(), "https://github.com/nobody/nothing")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if pkg != nil {
		t.Fatalf("pkg=%+v want nil", pkg)
	}
}

func TestLookup_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL)
	_, err := c.LookupPurl(context.Background(), "pkg:gem/rack")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err=%v want APIError", err)
	}
	if apiErr.Status != http.StatusTooManyRequests {
		t.Fatalf("status=%d", apiErr.Status)
	}
}
