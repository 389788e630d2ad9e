package geo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
)

func TestIPStackCountryCode(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode string
		wantErr  bool
	}{
		{
			name:     "resolved",
			status:   http.StatusOK,
			body:     `{"ip":"203.0.113.1","country_code":"RU","country_name":"Russia"}`,
			wantCode: "RU",
		},
		{
			name:   "unknown country",
			status: http.StatusOK,
			body:   `{"ip":"0.0.0.0","country_code":null}`,
		},
		{
			name:    "api error envelope",
			status:  http.StatusOK,
			body:    `{"success":false,"error":{"code":101,"type":"invalid_access_key","info":"You have not supplied a valid API Access Key."}}`,
			wantErr: true,
		},
		{
			name:    "http error",
			status:  http.StatusBadGateway,
			body:    `bad gateway`,
			wantErr: true,
		},
		{
			name:    "garbage",
			status:  http.StatusOK,
			body:    `<html>`,
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var gotPath, gotKey string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				gotKey = r.URL.Query().Get("access_key")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			r := NewIPStack("secret", srv.Client()).WithBaseURL(srv.URL)
			code, err := r.CountryCode(context.Background(), "203.0.113.1")
			if (err != nil) != tc.wantErr {
				t.Fatalf("CountryCode() error = %v, wantErr %v", err, tc.wantErr)
			}
			if code != tc.wantCode {
				t.Fatalf("CountryCode() = %q, want %q", code, tc.wantCode)
			}
			if gotPath != "/203.0.113.1" || gotKey != "secret" {
				t.Fatalf("request = %s?access_key=%s", gotPath, gotKey)
			}
		})
	}
}

func TestNewSelectsBackend(t *testing.T) {
	r, err := New(Options{})
	if err != nil || r != nil {
		t.Fatalf("New(empty) = %v, %v; want nil, nil", r, err)
	}

	r, err = New(Options{IPStackAPIKey: "k", GeoIPDBPath: "/does/not/matter.mmdb"})
	if err != nil {
		t.Fatalf("New(ipstack) error = %v", err)
	}
	if _, ok := r.(*IPStack); !ok {
		t.Fatalf("New(ipstack) = %T, want *IPStack", r)
	}

	_, err = New(Options{GeoIPDBPath: filepath.Join(t.TempDir(), "missing.mmdb")})
	if err == nil {
		t.Fatal("New(missing db) error = nil, want open error")
	}
}

func TestMaxMindNilReader(t *testing.T) {
	var m *MaxMind
	if _, err := m.CountryCode(context.Background(), "203.0.113.1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("CountryCode() error = %v, want ErrUnavailable", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}
