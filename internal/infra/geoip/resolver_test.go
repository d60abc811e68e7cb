package geoip

import (
	"errors"
	"testing"
)

func TestOpenWithoutPath(t *testing.T) {
	r, err := Open("  ")
	if err != nil || r != nil {
		t.Fatalf("Open(\"\") = %v, %v; want nil, nil", r, err)
	}
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := Open("/nonexistent/GeoLite2-Country.mmdb"); err == nil {
		t.Fatal("expected error for missing database")
	}
}

func TestCountryCodeWithoutDatabase(t *testing.T) {
	var r *Resolver
	tests := []struct {
		ip      string
		want    string
		wantErr error
	}{
		{ip: "127.0.0.1", want: ""},
		{ip: "10.1.2.3", want: ""},
		{ip: "::1", want: ""},
		{ip: "203.0.113.7", wantErr: ErrUnavailable},
	}
	for _, tc := range tests {
		got, err := r.CountryCode(tc.ip)
		if !errors.Is(err, tc.wantErr) || got != tc.want {
			t.Fatalf("CountryCode(%q) = %q, %v; want %q, %v", tc.ip, got, err, tc.want, tc.wantErr)
		}
	}
	if _, err := r.CountryCode("not-an-ip"); err == nil {
		t.Fatal("expected error for invalid ip")
	}
}
