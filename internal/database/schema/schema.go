package schema

import (
	_ "embed"
	"strings"
)

//go:embed schema.sql
var SQL string

// Statements splits the embedded schema into executable statements with
// comment lines removed.
func Statements() []string {
	var cleaned strings.Builder
	for _, line := range strings.Split(SQL, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		cleaned.WriteString(line)
		cleaned.WriteString("\n")
	}

	var statements []string
	for _, statement := range strings.Split(cleaned.String(), ";") {
		statement = strings.TrimSpace(statement)
		if statement == "" {
			continue
		}
		statements = append(statements, statement)
	}
	return statements
}
