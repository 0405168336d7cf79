package govinfo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestEachPackage_Pagination(t *testing.T) {
	pages := map[string][]Package{
		"0": {{PackageID: "CREC-2024-01-02", DateIssued: "2024-01-02"}, {PackageID: "CREC-2024-01-03", DateIssued: "2024-01-03"}},
		"2": {{PackageID: "CREC-2024-01-04", DateIssued: "2024-01-04"}},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/CREC" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("api_key") != "test-key" {
			t.Errorf("expected api_key on listing request")
		}
		if r.URL.Query().Get("startDate") != "2024-01-02" {
			t.Errorf("missing startDate, got %q", r.URL.Query().Get("startDate"))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"packages": pages[r.URL.Query().Get("offset")]})
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, APIKey: "test-key", PageSize: 2}
	var got []string
	err := c.EachPackage(context.Background(), "2024-01-02", "2024-01-04", func(p Package) error {
		got = append(got, p.PackageID)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 || got[2] != "CREC-2024-01-04" {
		t.Fatalf("expected 3 packages across 2 pages, got %v", got)
	}
}

func TestEachPackage_Stop(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(map[string]any{"packages": []Package{
			{PackageID: "CREC-2024-01-02"}, {PackageID: "CREC-2024-01-03"},
		}})
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, APIKey: "k", PageSize: 2}
	var seen int
	err := c.EachPackage(context.Background(), "2024-01-02", "2024-01-03", func(p Package) error {
		seen++
		return Stop
	})
	if err != nil {
		t.Fatalf("Stop must not surface as an error, got %v", err)
	}
	if seen != 1 || calls != 1 {
		t.Fatalf("expected iteration to end after the first package, seen=%d calls=%d", seen, calls)
	}
}

func TestEachGranule_Pagination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/packages/CREC-2024-01-02/granules" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var page []Granule
		if r.URL.Query().Get("offset") == "0" {
			page = []Granule{{GranuleID: "g1", GranuleClass: "HOUSE"}}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"granules": page})
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, APIKey: "k"}
	var got []Granule
	err := c.EachGranule(context.Background(), "CREC-2024-01-02", func(g Granule) error {
		got = append(got, g)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].GranuleClass != "HOUSE" {
		t.Fatalf("unexpected granules: %v", got)
	}
}

func TestDocumentText_PrefersXMLLink(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/packages/pkg/granules/gr/summary", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Summary{
			Title: "Morning Business",
			Download: map[string]string{
				"txtLink": srv.URL + "/doc.txt",
				"xmlLink": srv.URL + "/doc.xml",
			},
		})
	})
	mux.HandleFunc("/doc.xml", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api_key") != "k" {
			t.Errorf("expected api_key on download request")
		}
		fmt.Fprint(w, `<speaking speaker="A">Hello.</speaking>`)
	})
	mux.HandleFunc("/doc.txt", func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("txt link must not be used when xml is available")
	})

	c := &Client{BaseURL: srv.URL, APIKey: "k"}
	text, sum, err := c.DocumentText(context.Background(), "pkg", "gr")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.Title != "Morning Business" {
		t.Fatalf("unexpected summary title %q", sum.Title)
	}
	if text != `<speaking speaker="A">Hello.</speaking>` {
		t.Fatalf("unexpected document text %q", text)
	}
}

func TestDocumentText_NoDownloadLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Summary{Title: "No text here"})
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, APIKey: "k"}
	text, sum, err := c.DocumentText(context.Background(), "pkg", "gr")
	if err != nil {
		t.Fatalf("a missing download link is not an error, got %v", err)
	}
	if text != "" || sum.Title != "No text here" {
		t.Fatalf("expected empty text with summary, got %q / %+v", text, sum)
	}
}

func TestGet_RetriesTransientStatus(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"packages": []Package{}})
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, APIKey: "k"}
	err := c.EachPackage(context.Background(), "2024-01-02", "2024-01-02", func(Package) error { return nil })
	if err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestGet_PermanentOnClientError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, APIKey: "k"}
	err := c.EachPackage(context.Background(), "2024-01-02", "2024-01-02", func(Package) error { return nil })
	if err == nil {
		t.Fatalf("expected error on 404")
	}
	if calls != 1 {
		t.Fatalf("404 must not be retried, got %d attempts", calls)
	}
}

func TestPace_DelaysAfterFirstRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"granules": []Granule{}})
	}))
	defer srv.Close()

	delay := 30 * time.Millisecond
	c := &Client{BaseURL: srv.URL, APIKey: "k", RateDelay: delay}
	start := time.Now()
	for i := 0; i < 2; i++ {
		if err := c.EachGranule(context.Background(), "pkg", func(Granule) error { return nil }); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < delay {
		t.Fatalf("expected at least %v between requests, elapsed %v", delay, elapsed)
	}
}

func TestDecodeCharset(t *testing.T) {
	// "Sénat" in ISO-8859-1 is not valid UTF-8.
	latin1 := []byte{'S', 0xE9, 'n', 'a', 't'}
	text, err := decodeCharset(latin1, "text/plain; charset=iso-8859-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "Sénat" {
		t.Fatalf("expected decoded latin-1 text, got %q", text)
	}

	text, err = decodeCharset([]byte("Sénat"), "application/xml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "Sénat" {
		t.Fatalf("expected utf-8 passthrough, got %q", text)
	}
}

func TestPageFromGranuleID(t *testing.T) {
	cases := []struct {
		id   string
		want string
	}{
		{"CREC-2024-01-02-pt1-PgH23", "PgH23"},
		{"CREC-2024-01-02-pt1-PgS45-2", "PgS45-2"},
		{"CREC-2024-01-02-pt1-Daily-Digest", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := PageFromGranuleID(tc.id); got != tc.want {
			t.Fatalf("PageFromGranuleID(%q) = %q, want %q", tc.id, got, tc.want)
		}
	}
}
