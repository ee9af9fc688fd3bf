package util

import (
	"errors"
	"testing"
)

func TestNormalizeEmail(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "simple", input: "Ops@Example.Com", want: "ops@example.com"},
		{name: "surrounding whitespace", input: "  duty@example.com  ", want: "duty@example.com"},
		{name: "empty", input: "   ", wantErr: true},
		{name: "missing domain", input: "nobody@", wantErr: true},
		{name: "display name rejected", input: "Ops <ops@example.com>", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeEmail(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got %q", tc.input, got)
				}
				if !errors.Is(err, ErrInvalidEmail) {
					t.Fatalf("expected ErrInvalidEmail, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestNormalizeE164(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "valid", input: "+254700111222", want: "+254700111222"},
		{name: "whitespace trimmed", input: " +15550001234 ", want: "+15550001234"},
		{name: "missing plus", input: "254700111222", wantErr: true},
		{name: "leading zero", input: "+054700111222", wantErr: true},
		{name: "too short", input: "+1234", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeE164(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got %q", tc.input, got)
				}
				if !errors.Is(err, ErrInvalidPhone) {
					t.Fatalf("expected ErrInvalidPhone, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
