// Package schema embeds the DDL for the process ledger
package schema

import (
	"embed"
	"strings"
)

//go:embed *.sql
var files embed.FS

// Postgres returns the Postgres DDL
func Postgres() string { return mustRead("001_process_ledger.pg.sql") }

// ClickHouse returns the ClickHouse DDL split into single statements,
// since the native protocol runs one statement per query
func ClickHouse() []string {
	return Statements(mustRead("002_leaderboards.ch.sql"))
}

// Statements splits a DDL script on semicolons, dropping comments and blanks
func Statements(script string) []string {
	var out []string
	for _, part := range strings.Split(script, ";") {
		var lines []string
		for _, ln := range strings.Split(part, "\n") {
			if strings.HasPrefix(strings.TrimSpace(ln), "--") {
				continue
			}
			lines = append(lines, ln)
		}
		if stmt := strings.TrimSpace(strings.Join(lines, "\n")); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

func mustRead(name string) string {
	b, err := files.ReadFile(name)
	if err != nil {
		panic("schema: missing " + name)
	}
	return string(b)
}
