package store

import "time"

// Config selects and configures backends
type Config struct {
	AppName string
	PG      PGConfig
	CH      CHConfig
}

// PGConfig configures the ledger pool
type PGConfig struct {
	Enabled     bool
	URL         string
	MaxConns    int32
	LogSQL      bool
	SlowQueryMs int

	ConnectRetries int           // 20 when zero
	PingTimeout    time.Duration // 3s when zero
}

// CHConfig configures the rankings client
type CHConfig struct {
	Enabled bool
	URL     string
	LogSQL  bool
	Role    string // reported as client info, e.g. "api" or "process"
}
