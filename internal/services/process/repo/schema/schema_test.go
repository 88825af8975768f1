package schema

import (
	"strings"
	"testing"
)

func TestStatements(t *testing.T) {
	t.Parallel()

	script := `
-- leading comment
CREATE TABLE a (x Int8);

  -- only a comment;
CREATE TABLE b
(
    y String -- trailing note stays
);
`
	got := Statements(script)
	if len(got) != 2 {
		t.Fatalf("statements = %q", got)
	}
	if !strings.HasPrefix(got[0], "CREATE TABLE a") || !strings.HasPrefix(got[1], "CREATE TABLE b") {
		t.Fatalf("statements = %q", got)
	}
}

func TestEmbeddedDDL(t *testing.T) {
	t.Parallel()

	if pg := Postgres(); !strings.Contains(pg, "process_runs") || !strings.Contains(pg, "process_inputs") {
		t.Fatalf("postgres ddl missing tables")
	}
	ch := ClickHouse()
	if len(ch) != 2 {
		t.Fatalf("clickhouse ddl has %d statements", len(ch))
	}
	for _, s := range ch {
		if strings.Contains(s, ";") {
			t.Fatalf("statement not split: %q", s)
		}
	}
}
