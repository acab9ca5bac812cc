package breach

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func rangeBody(password string, extra ...string) string {
	digest := sha1.Sum([]byte(password))
	full := strings.ToUpper(hex.EncodeToString(digest[:]))
	lines := []string{full[5:] + ":42"}
	lines = append(lines, extra...)
	return strings.Join(lines, "\r\n")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIsCommonFindsSuffix(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/range/") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		fmt.Fprint(w, rangeBody("password123", "0018A45C4D1DEF81644B54AB7F969B88D65:3"))
	}))
	defer srv.Close()

	c := NewChecker(Config{Endpoint: srv.URL + "/range/"}, testLogger())
	if !c.IsCommon(context.Background(), "password123") {
		t.Fatal("expected breached password to be reported common")
	}
	if c.IsCommon(context.Background(), "kx9!vQ2#mz8$Lp0w") {
		t.Fatal("expected absent suffix to be reported not common")
	}
}

func TestPrefixOnlyLeavesProcess(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, "ABCDEF0123456789ABCDEF0123456789ABC:1")
	}))
	defer srv.Close()

	c := NewChecker(Config{Endpoint: srv.URL + "/range/"}, testLogger())
	c.IsCommon(context.Background(), "hunter2")

	digest := sha1.Sum([]byte("hunter2"))
	full := strings.ToUpper(hex.EncodeToString(digest[:]))
	if gotPath != "/range/"+full[:5] {
		t.Fatalf("expected prefix-only query, got path %q", gotPath)
	}
	if strings.Contains(gotPath, full[5:]) {
		t.Fatal("full digest leaked in request path")
	}
}

func TestFailsOpenOnErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewChecker(Config{Endpoint: srv.URL + "/range/"}, testLogger())
	if c.IsCommon(context.Background(), "password123") {
		t.Fatal("expected fail-open on upstream error")
	}
}

func TestFailsOpenOnTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewChecker(Config{Endpoint: srv.URL + "/range/", Timeout: 20 * time.Millisecond}, testLogger())
	if c.IsCommon(context.Background(), "password123") {
		t.Fatal("expected fail-open on timeout")
	}
}

func TestCircuitOpensAfterRepeatedFailures(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewChecker(Config{Endpoint: srv.URL + "/range/"}, testLogger())
	for i := 0; i < 20; i++ {
		if c.IsCommon(context.Background(), "password123") {
			t.Fatal("expected fail-open while upstream is down")
		}
	}
	if hits >= 20 {
		t.Fatalf("expected circuit to stop probing, upstream saw %d hits", hits)
	}
}
