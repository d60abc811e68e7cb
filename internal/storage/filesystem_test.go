package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir(), "http://localhost:8080/static/", "secret")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return s
}

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "videos/a.mp4", want: "videos/a.mp4"},
		{in: "/videos//a.mp4", want: "videos/a.mp4"},
		{in: `videos\a.mp4`, want: "videos/a.mp4"},
		{in: "./person/p.png", want: "person/p.png"},
		{in: "", wantErr: true},
		{in: "../etc/passwd", wantErr: true},
		{in: "a/../../b", wantErr: true},
		{in: "..", wantErr: true},
	}
	for _, tt := range tests {
		got, err := sanitizeKey(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("sanitizeKey(%q) expected error, got %q", tt.in, got)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("sanitizeKey(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestSignAndVerify(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	raw, err := s.Sign(context.Background(), "videos/a.mp4", time.Hour)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !strings.HasPrefix(raw, "http://localhost:8080/static/videos/a.mp4?") {
		t.Fatalf("unexpected url %s", raw)
	}
	u, _ := url.Parse(raw)
	if err := s.Verify("videos/a.mp4", u.Query()); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if err := s.Verify("videos/b.mp4", u.Query()); err == nil {
		t.Fatalf("signature must bind the key")
	}

	tampered := u.Query()
	tampered.Set("expires", "9999999999")
	if err := s.Verify("videos/a.mp4", tampered); err == nil {
		t.Fatalf("signature must bind the expiry")
	}

	s.now = func() time.Time { return base.Add(time.Hour) }
	if err := s.Verify("videos/a.mp4", u.Query()); err == nil {
		t.Fatalf("expired url accepted")
	}
}

func TestHandlerServesSignedFiles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	key, err := s.Write(ctx, "videos/a.mp4", []byte("video-bytes"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	raw, _ := s.Sign(ctx, key, time.Hour)
	u, _ := url.Parse(raw)

	srv := httptest.NewServer(http.StripPrefix("/static", s.Handler()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + u.RequestURI())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "video-bytes" {
		t.Fatalf("status %d body %q", resp.StatusCode, body)
	}

	resp, err = http.Get(srv.URL + "/static/videos/a.mp4")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("unsigned request status %d, want 403", resp.StatusCode)
	}
}
