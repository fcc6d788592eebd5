package query

import (
	"strings"
	"testing"
)

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		ident   string
		wantErr bool
	}{
		{"simple", "Users", false},
		{"lowercase", "users", false},
		{"underscore prefix", "_internal", false},
		{"schema qualified", "dbo.Users", false},
		{"deeply qualified", "warehouse.dbo.Users", false},
		{"digits", "table2", false},
		{"bracketed with space", "[User Orders]", false},
		{"bracketed qualified", "[dbo.User Orders]", false},
		{"empty", "", true},
		{"leading digit", "2fast", true},
		{"semicolon", "users; DROP TABLE users", true},
		{"line comment", "users--", true},
		{"block comment open", "users/*", true},
		{"block comment close", "users*/", true},
		{"single quote", "o'brien", true},
		{"double quote", `us"ers`, true},
		{"backtick", "us`ers", true},
		{"space unbracketed", "user orders", true},
		{"bracketed injection", "[users]; DROP TABLE t]", true},
		{"empty brackets", "[]", true},
		{"nested brackets", "[[users]]", true},
		{"max length", strings.Repeat("a", 128), false},
		{"over max length", strings.Repeat("a", 129), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIdentifier(tt.ident)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateIdentifier(%q) error = %v, wantErr %v", tt.ident, err, tt.wantErr)
			}
		})
	}
}

func TestValidateIdentifiers(t *testing.T) {
	if err := ValidateIdentifiers([]string{"id", "name", "dbo.created_at"}); err != nil {
		t.Errorf("all-valid list: %v", err)
	}
	if err := ValidateIdentifiers([]string{"id", "bad name", "created_at"}); err == nil {
		t.Error("expected error for invalid identifier in list")
	}
}

func TestUnbracket(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wrapped bool
	}{
		{"[User Orders]", "User Orders", true},
		{"[users]", "users", true},
		{"users", "users", false},
		{"[]", "[]", false},
		{"[a[b]", "[a[b]", false},
		{"[users", "[users", false},
	}
	for _, tt := range tests {
		got, wrapped := Unbracket(tt.in)
		if got != tt.want || wrapped != tt.wrapped {
			t.Errorf("Unbracket(%q) = (%q, %v), want (%q, %v)", tt.in, got, wrapped, tt.want, tt.wrapped)
		}
	}
}
