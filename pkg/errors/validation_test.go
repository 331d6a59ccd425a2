package errors

import (
	"testing"
)

func TestValidateHandle(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "olirice", false},
		{"valid with dash", "supa-base", false},
		{"valid with underscore", "my_org", false},
		{"valid digits", "team42", false},

		{"empty", "", true},
		{"uppercase", "Olirice", true},
		{"too long", string(make([]byte, 100)), true},
		{"path traversal ..", "foo..bar", true},
		{"slash", "foo/bar", true},
		{"null byte", "foo\x00bar", true},
		{"backslash", "foo\\bar", true},
		{"newline", "foo\nbar", true},
		{"leading dash", "-foo", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHandle(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateHandle(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && FieldOf(err) != "handle" {
				t.Errorf("FieldOf() = %q, want handle", FieldOf(err))
			}
		})
	}
}

func TestValidatePartialName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", "index_advisor", false},
		{"valid with dot", "pg.json", false},
		{"valid mixed case", "PgTap", false},

		{"empty", "", true},
		{"slash", "a/b", true},
		{"traversal", "..", true},
		{"control char", "foo\x01bar", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePartialName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePartialName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateRequired(t *testing.T) {
	if err := ValidateRequired("bio", "hello"); err != nil {
		t.Errorf("ValidateRequired() unexpected error: %v", err)
	}

	err := ValidateRequired("partialName", "")
	if !Is(err, ErrCodeValidation) {
		t.Fatalf("ValidateRequired() = %v, want VALIDATION_ERROR", err)
	}
	if UserMessage(err) != "partialName is required" {
		t.Errorf("UserMessage() = %q", UserMessage(err))
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"https://example.supabase.co", false},
		{"http://localhost:54321", false},
		{"", true},
		{"ftp://example.com", true},
		{"javascript:alert(1)", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if err := ValidateURL(tt.input); (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
