package sqlassets

import (
	_ "embed"
	"strings"
)

//go:embed schema/platform/tenants.sql
var TenantsSQL string

//go:embed schema/platform/users.sql
var UsersSQL string

//go:embed schema/platform/bookings.sql
var BookingsSQL string

//go:embed schema/platform/rls.sql
var RLSSQL string

// Statements returns the platform DDL in dependency order, one statement per element.
func Statements() []string {
	var out []string
	for _, script := range []string{TenantsSQL, UsersSQL, BookingsSQL, RLSSQL} {
		out = append(out, SplitStatements(script)...)
	}
	return out
}

// SplitStatements breaks a script on semicolons and drops comment-only fragments.
// Scripts must not contain semicolons inside literals or dollar-quoted bodies.
func SplitStatements(script string) []string {
	var out []string
	for _, raw := range strings.Split(script, ";") {
		var lines []string
		for _, line := range strings.Split(raw, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "--") {
				continue
			}
			lines = append(lines, line)
		}
		stmt := strings.TrimSpace(strings.Join(lines, "\n"))
		if stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
