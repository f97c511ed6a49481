package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateNamespace(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"simple", "team-a", nil},
		{"alphanumeric", "Team42", nil},
		{"hyphens only", "---", nil},
		{"empty", "", ErrInputRequired},
		{"whitespace", "   ", ErrInputRequired},
		{"underscore", "team_a", ErrInputInvalid},
		{"space", "team a", ErrInputInvalid},
		{"dot", "team.a", ErrInputInvalid},
		{"slash", "team/a", ErrInputInvalid},
		{"unicode", "équipe", ErrInputInvalid},
		{"too long", strings.Repeat("a", MaxNamespaceLength+1), ErrInputTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNamespace(tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateNamespace(%q) = %v, want %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

// A valid namespace can never contain the token delimiter, so a minted
// token always splits into exactly four segments.
func TestValidateNamespace_NeverAllowsDelimiter(t *testing.T) {
	for _, ns := range []string{"_", "a_b", "_lead", "trail_", "a__b"} {
		if err := ValidateNamespace(ns); err == nil {
			t.Errorf("expected %q to be rejected", ns)
		}
	}
}

func TestValidateProcessName(t *testing.T) {
	valid := []string{"api", "api-server", "worker_1", "app.v2", "2fa-service"}
	for _, name := range valid {
		if err := ValidateProcessName(name); err != nil {
			t.Errorf("expected %q to be valid, got %v", name, err)
		}
	}

	invalid := map[string]error{
		"":                    ErrInputRequired,
		"-leading":            ErrInputInvalid,
		"has space":           ErrInputInvalid,
		"semi;colon":          ErrInputInvalid,
		"1":                   ErrInputInvalid,
		"0042":                ErrInputInvalid,
		strings.Repeat("a", MaxProcessNameLength+1): ErrInputTooLong,
	}
	for name, want := range invalid {
		if err := ValidateProcessName(name); !errors.Is(err, want) {
			t.Errorf("ValidateProcessName(%q) = %v, want %v", name, err, want)
		}
	}
}

func TestValidateDescription(t *testing.T) {
	if err := ValidateDescription("CI deploy token", MaxDescriptionLength); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateDescription(strings.Repeat("x", 11), 10); !errors.Is(err, ErrInputTooLong) {
		t.Errorf("expected ErrInputTooLong, got %v", err)
	}
	if err := ValidateDescription("nul\x00byte", 100); !errors.Is(err, ErrInputInvalid) {
		t.Errorf("expected ErrInputInvalid, got %v", err)
	}
}

func TestValidateIdentifier(t *testing.T) {
	if err := ValidateIdentifier("3f1c0c6e-1d1b-4b5a-9b9c-3b7b1f7e0a11"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateIdentifier(" "); !errors.Is(err, ErrInputRequired) {
		t.Errorf("expected ErrInputRequired, got %v", err)
	}
	if err := ValidateIdentifier("a\nb"); !errors.Is(err, ErrInputInvalid) {
		t.Errorf("expected ErrInputInvalid, got %v", err)
	}
}

func TestValidatePath(t *testing.T) {
	if err := ValidatePath("/srv/app"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	for _, p := range []string{"relative/dir", "/srv/../etc", "/srv/\x00"} {
		if err := ValidatePath(p); !errors.Is(err, ErrInputInvalid) {
			t.Errorf("ValidatePath(%q) = %v, want ErrInputInvalid", p, err)
		}
	}
}
