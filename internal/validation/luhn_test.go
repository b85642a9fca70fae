package validation

import (
	"errors"
	"testing"
)

func TestIsValidLuhn(t *testing.T) {
	tests := []struct {
		name   string
		number string
		valid  bool
	}{
		{
			name:   "valid example 1",
			number: "79927398713",
			valid:  true,
		},
		{
			name:   "valid example 2",
			number: "4539578763621486",
			valid:  true,
		},
		{
			name:   "invalid checksum",
			number: "79927398710",
			valid:  false,
		},
		{
			name:   "contains letters",
			number: "1234a67890",
			valid:  false,
		},
		{
			name:   "empty string",
			number: "",
			valid:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsValidLuhn(tt.number)
			if got != tt.valid {
				t.Fatalf("IsValidLuhn(%q) = %v, want %v", tt.number, got, tt.valid)
			}
		})
	}
}

func TestLuhnCheckDigit(t *testing.T) {
	digit, ok := LuhnCheckDigit("7992739871")
	if !ok {
		t.Fatalf("LuhnCheckDigit returned !ok")
	}
	if digit != '3' {
		t.Fatalf("LuhnCheckDigit = %c, want 3", digit)
	}

	for _, payload := range []string{"0", "123456789", "000000001"} {
		d, ok := LuhnCheckDigit(payload)
		if !ok || !IsValidLuhn(payload+string(d)) {
			t.Fatalf("check digit for %q does not produce a valid number", payload)
		}
	}

	if _, ok := LuhnCheckDigit("12a"); ok {
		t.Fatalf("expected !ok for non-digit payload")
	}
}

func TestPlayerID(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr error
	}{
		{name: "min length", in: "12345678", want: "12345678"},
		{name: "max length", in: "123456789012", want: "123456789012"},
		{name: "trimmed", in: "  12345678 ", want: "12345678"},
		{name: "too short", in: "1234567", wantErr: ErrInvalidPlayerID},
		{name: "too long", in: "1234567890123", wantErr: ErrInvalidPlayerID},
		{name: "empty", in: "", wantErr: ErrInvalidPlayerID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PlayerID(tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("PlayerID(%q) error = %v, want %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("PlayerID(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestUsername(t *testing.T) {
	if got, err := Username(" Ali "); err != nil || got != "Ali" {
		t.Fatalf("Username(\" Ali \") = %q, %v", got, err)
	}
	if _, err := Username("Al"); !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername, got %v", err)
	}
	if _, err := Username("   "); !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername for blank name, got %v", err)
	}
}
