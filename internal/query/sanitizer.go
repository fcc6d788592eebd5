// Package query provides identifier validation and conditional WHERE-clause
// assembly for the Conduit API layer. It turns declared per-parameter rules
// and a loose JSON request into parameterized SQL.
package query

import (
	"fmt"
	"regexp"
	"strings"
)

// identifierRegex validates plain SQL identifiers (column names, table names).
// Must start with a letter or underscore, followed by alphanumerics,
// underscores, or dots (schema qualification).
var identifierRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.]*$`)

// bracketedRegex validates the interior of a bracket-wrapped identifier
// ([User Orders]). Spaces are allowed inside brackets; quoting handles them.
var bracketedRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_. ]*$`)

// forbiddenFragments are substrings that terminate or restructure a SQL
// statement. Parameterization handles value injection; these guard the
// identifier positions where values are never bound.
var forbiddenFragments = []string{"--", "/*", "*/", ";", "'", `"`, "`"}

// ValidateIdentifier ensures a SQL identifier (table or column name, possibly
// schema-qualified like "dbo.Users", possibly bracket-wrapped like
// "[User Orders]") is safe to embed in generated SQL. It rejects empty
// strings, strings over 128 characters, comment markers, statement
// separators, and quote characters.
func ValidateIdentifier(name string) error {
	if len(name) == 0 {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(name) > 128 {
		return fmt.Errorf("identifier too long (max 128 chars): %q", name)
	}
	for _, frag := range forbiddenFragments {
		if strings.Contains(name, frag) {
			return fmt.Errorf("identifier %q contains forbidden sequence %q", name, frag)
		}
	}

	if inner, ok := Unbracket(name); ok {
		if !bracketedRegex.MatchString(inner) {
			return fmt.Errorf("invalid bracketed identifier %q", name)
		}
		return nil
	}

	if !identifierRegex.MatchString(name) {
		return fmt.Errorf("invalid identifier %q: must match [a-zA-Z_][a-zA-Z0-9_.]*", name)
	}
	return nil
}

// ValidateIdentifiers validates multiple identifiers, returning the first error found.
func ValidateIdentifiers(names []string) error {
	for _, name := range names {
		if err := ValidateIdentifier(name); err != nil {
			return err
		}
	}
	return nil
}

// Unbracket strips a single [ ] wrapping from an identifier. The second
// return reports whether the name was bracket-wrapped.
func Unbracket(name string) (string, bool) {
	if len(name) >= 2 && name[0] == '[' && name[len(name)-1] == ']' {
		inner := name[1 : len(name)-1]
		if inner == "" || strings.ContainsAny(inner, "[]") {
			return name, false
		}
		return inner, true
	}
	return name, false
}
