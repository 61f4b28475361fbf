package fetch

import (
	"testing"

	"github.com/jimyag/aggravator/pkg/errors"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		ref     string
		want    string
		wantErr bool
	}{
		{
			name: "no scheme resolves relative to http base",
			base: "http://example.com/inv/config.yml",
			ref:  "hosts.yml",
			want: "http://example.com/inv/hosts.yml",
		},
		{
			name: "no scheme with subdirectory",
			base: "http://example.com/inv/config.yml",
			ref:  "prod/hosts.yml",
			want: "http://example.com/inv/prod/hosts.yml",
		},
		{
			name: "absolute path http ref used as is",
			base: "http://example.com/inv/config.yml",
			ref:  "https://other.example.com/data.json",
			want: "https://other.example.com/data.json",
		},
		{
			name: "absolute file ref used as is",
			base: "file:///etc/aggravator/config.yml",
			ref:  "file:///srv/inventory/hosts.yml",
			want: "file:///srv/inventory/hosts.yml",
		},
		{
			name: "file scheme with relative path resolves against base",
			base: "file:///etc/aggravator/config.yml",
			ref:  "file:hosts.yml",
			want: "file:///etc/aggravator/hosts.yml",
		},
		{
			name: "no scheme against file base",
			base: "file:///etc/aggravator/config.yml",
			ref:  "vars/web.yml",
			want: "file:///etc/aggravator/vars/web.yml",
		},
		{
			name: "plain local base joins paths",
			base: "example/config.yml",
			ref:  "hosts.yml",
			want: "example/hosts.yml",
		},
		{
			name: "absolute local path against plain base",
			base: "example/config.yml",
			ref:  "file:///srv/hosts.yml",
			want: "file:///srv/hosts.yml",
		},
		{
			name:    "unsupported scheme",
			base:    "http://example.com/config.yml",
			ref:     "ftp://example.com/hosts.yml",
			wantErr: true,
		},
		{
			name:    "unsupported scheme gopher",
			base:    "file:///etc/config.yml",
			ref:     "gopher://example.com/x",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.base, tt.ref)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Resolve() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.IsType(err, errors.ErrUnsupportedScheme) {
					t.Errorf("Expected UnsupportedScheme, got %v", errors.TypeOf(err))
				}
				return
			}
			if got != tt.want {
				t.Errorf("Resolve() = %v, want %v", got, tt.want)
			}
		})
	}
}
