package ch

import (
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// BuildClientInfo identifies this process in system.query_log: app tag, role
// ("api" or "process"), go version, vcs revision and host
func BuildClientInfo(role, tag string) clickhouse.ClientInfo {
	host, _ := os.Hostname()
	info := clickhouse.ClientInfo{}
	for _, p := range [][2]string{
		{"reddcrawl", tag},
		{"role", role},
		{"go", runtime.Version()},
		{"commit", revision()},
		{"host", host},
	} {
		v := strings.TrimSpace(p[1])
		if v == "" {
			v = "unknown"
		}
		info.Products = append(info.Products, struct{ Name, Version string }{p[0], v})
	}
	return info
}

func revision() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" {
			return s.Value[:min(7, len(s.Value))]
		}
	}
	return ""
}
