package config

import (
	"slices"
	"testing"
	"time"

	kit "reddcrawl/internal/platform/testkit"
)

func TestPrefix(t *testing.T) {
	c := New().Prefix("CORE_").Prefix("PROCESS_")
	if got := c.key("WORKERS"); got != "CORE_PROCESS_WORKERS" {
		t.Fatalf("key = %q", got)
	}
}

func TestMustString(t *testing.T) {
	t.Setenv("SERVICE_PGSQL_DBURL", "  postgres://x ")
	c := New().Prefix("SERVICE_PGSQL_")
	if got := c.MustString("DBURL"); got != "postgres://x" {
		t.Fatalf("MustString = %q", got)
	}
	kit.MustPanic(t, func() { _ = c.MustString("MISSING") })
}

func TestMayGetters(t *testing.T) {
	t.Setenv("T_WORKERS", " 8 ")
	t.Setenv("T_BAD_INT", "eight")
	t.Setenv("T_SIZE", "0.0005")
	t.Setenv("T_BAD_SIZE", "tiny")
	t.Setenv("T_DRY", "true")
	t.Setenv("T_BAD_DRY", "sometimes")
	t.Setenv("T_TTL", "90s")
	t.Setenv("T_BAD_TTL", "soon")
	t.Setenv("T_NAME", "reddcrawl")

	c := New().Prefix("T_")
	if c.MayInt("WORKERS", 1) != 8 || c.MayInt("BAD_INT", 3) != 3 || c.MayInt("NONE", 2) != 2 {
		t.Fatalf("MayInt")
	}
	if c.MayFloat64("SIZE", 0) != 0.0005 || c.MayFloat64("BAD_SIZE", 0.1) != 0.1 {
		t.Fatalf("MayFloat64")
	}
	if !c.MayBool("DRY", false) || c.MayBool("BAD_DRY", false) || !c.MayBool("NONE", true) {
		t.Fatalf("MayBool")
	}
	if c.MayDuration("TTL", 0) != 90*time.Second || c.MayDuration("BAD_TTL", time.Minute) != time.Minute {
		t.Fatalf("MayDuration")
	}
	if c.MayString("NAME", "x") != "reddcrawl" || c.MayString("NONE", "x") != "x" {
		t.Fatalf("MayString")
	}
}

func TestMayCSV(t *testing.T) {
	t.Setenv("API_CORS_ORIGINS", " https://a.example , ,https://b.example,")
	t.Setenv("API_EMPTY", " , ")

	c := New().Prefix("API_")
	want := []string{"https://a.example", "https://b.example"}
	if got := c.MayCSV("CORS_ORIGINS", nil); !slices.Equal(got, want) {
		t.Fatalf("MayCSV = %v", got)
	}
	if got := c.MayCSV("EMPTY", []string{"*"}); !slices.Equal(got, []string{"*"}) {
		t.Fatalf("blank MayCSV = %v", got)
	}
}

func TestMayEnum(t *testing.T) {
	t.Setenv("P_PARTITIONER", "Hash")
	t.Setenv("P_BAD", "round-robin")

	c := New().Prefix("P_")
	if got := c.MayEnum("PARTITIONER", "random", "random", "hash"); got != "Hash" {
		t.Fatalf("MayEnum = %q", got)
	}
	if got := c.MayEnum("NONE", "random", "random", "hash"); got != "random" {
		t.Fatalf("default = %q", got)
	}
	kit.MustPanic(t, func() { _ = c.MayEnum("BAD", "random", "random", "hash") })
}
