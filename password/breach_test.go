package password

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func sha1Suffix(pw string) string {
	sum := sha1.Sum([]byte(pw))
	return strings.ToUpper(hex.EncodeToString(sum[:]))[5:]
}

func TestBreachClientFindsSuffixInRange(t *testing.T) {
	const pw = "password123"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/range/") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if len(strings.TrimPrefix(r.URL.Path, "/range/")) != 5 {
			t.Errorf("prefix must be exactly 5 chars, got %q", r.URL.Path)
		}
		fmt.Fprintf(w, "0018A45C4D1DEF81644B54AB7F969B88D65:1\r\n%s:5271\r\nFFFFF00000000000000000000000000000F:2\r\n", sha1Suffix(pw))
	}))
	defer srv.Close()

	c := NewBreachClient(BreachConfig{Endpoint: srv.URL}, nil)
	if !c.IsCompromised(context.Background(), pw) {
		t.Fatal("expected listed password to be reported compromised")
	}
	if c.IsCompromised(context.Background(), "Entirely-Different-9!") {
		t.Fatal("expected unlisted password to pass")
	}
}

func TestBreachClientIgnoresPaddingRows(t *testing.T) {
	const pw = "password123"

	// With Add-Padding the service mixes in zero-count filler rows; a filler
	// row matching our suffix must not count as a hit.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, "0018A45C4D1DEF81644B54AB7F969B88D65:12\r\n%s:0\r\nFFFFF00000000000000000000000000000F:0\r\n", sha1Suffix(pw))
	}))
	defer srv.Close()

	c := NewBreachClient(BreachConfig{Endpoint: srv.URL}, nil)
	if c.IsCompromised(context.Background(), pw) {
		t.Fatal("zero-count padding row must not report compromised")
	}
}

func TestBreachClientFailsOpen(t *testing.T) {
	t.Run("service error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		c := NewBreachClient(BreachConfig{Endpoint: srv.URL}, nil)
		if c.IsCompromised(context.Background(), "password123") {
			t.Fatal("service failure must not report compromised")
		}
	})

	t.Run("unreachable endpoint", func(t *testing.T) {
		c := NewBreachClient(BreachConfig{
			Endpoint: "http://127.0.0.1:1",
			Timeout:  200 * time.Millisecond,
		}, nil)
		if c.IsCompromised(context.Background(), "password123") {
			t.Fatal("network failure must not report compromised")
		}
	})

	t.Run("disabled", func(t *testing.T) {
		c := NewBreachClient(BreachConfig{}, nil)
		if c.Enabled() {
			t.Fatal("empty endpoint must disable the check")
		}
		if c.IsCompromised(context.Background(), "password123") {
			t.Fatal("disabled check must report not compromised")
		}
	})
}

func TestBreachClientSendsAPIKey(t *testing.T) {
	var gotKey, gotPadding string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("hibp-api-key")
		gotPadding = r.Header.Get("Add-Padding")
	}))
	defer srv.Close()

	c := NewBreachClient(BreachConfig{Endpoint: srv.URL, APIKey: "k-123"}, nil)
	c.IsCompromised(context.Background(), "password123")

	if gotKey != "k-123" {
		t.Fatalf("expected api key header, got %q", gotKey)
	}
	if gotPadding != "true" {
		t.Fatalf("expected Add-Padding header, got %q", gotPadding)
	}
}
