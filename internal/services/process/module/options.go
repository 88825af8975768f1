package module

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"reddcrawl/internal/core/quality"
	"reddcrawl/internal/core/story"
	"reddcrawl/internal/platform/config"
	perr "reddcrawl/internal/platform/errors"

	"gopkg.in/yaml.v3"
)

// RunPolicy is everything that decides what lands in which stream.
// It is loaded from an optional YAML file and recorded verbatim with each run
type RunPolicy struct {
	TestSize        float64        `yaml:"test_size" json:"test_size"`
	ShardCount      int            `yaml:"shard_count" json:"shard_count"`
	TrainPartitions int            `yaml:"train_partition_count" json:"train_partition_count"`
	Partitioner     string         `yaml:"partitioner" json:"partitioner"`
	Timezone        string         `yaml:"timezone" json:"timezone"`
	Filter          quality.Policy `yaml:"filter" json:"filter"`
}

// DefaultRunPolicy returns the production policy
func DefaultRunPolicy() RunPolicy {
	return RunPolicy{
		TestSize:        story.DefaultTestSize,
		ShardCount:      256,
		TrainPartitions: 128,
		Partitioner:     "random",
		Timezone:        "Local",
		Filter:          quality.DefaultPolicy(),
	}
}

// Options holds configuration options for the process service
type Options struct {
	Policy RunPolicy

	Workers    int
	MaxRetries int
	RetryBase  time.Duration

	InputTimeout  time.Duration
	FetchTimeout  time.Duration
	ReadTimeout   time.Duration
	LedgerTimeout time.Duration
}

// Location resolves the policy timezone used for calendar day freshness
func (o Options) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(o.Policy.Timezone)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "process: timezone %q", o.Policy.Timezone)
	}
	return loc, nil
}

// FromConfig reads the process options with CORE_PROCESS_ prefix.
// POLICY_FILE is applied first, single env vars override it
func FromConfig(cfg config.Conf) (Options, error) {
	pc := cfg.Prefix("CORE_PROCESS_")

	pol := DefaultRunPolicy()
	if path := pc.MayString("POLICY_FILE", ""); path != "" {
		var err error
		if pol, err = loadPolicy(path, pol); err != nil {
			return Options{}, err
		}
	}

	pol.TestSize = pc.MayFloat64("TEST_SIZE", pol.TestSize)
	pol.ShardCount = pc.MayInt("SHARD_COUNT", pol.ShardCount)
	pol.TrainPartitions = pc.MayInt("TRAIN_PARTITION_COUNT", pol.TrainPartitions)
	pol.Partitioner = strings.ToLower(pc.MayEnum("PARTITIONER", pol.Partitioner, "random", "hash"))
	pol.Timezone = pc.MayString("TIMEZONE", pol.Timezone)
	pol.Filter.RetentionDays = pc.MayInt("RETENTION_DAYS", pol.Filter.RetentionDays)
	pol.Filter.ScoreFloor = int64(pc.MayInt("SCORE_FLOOR", int(pol.Filter.ScoreFloor)))
	pol.Filter.MaxDiscoveryLatency = pc.MayDuration("MAX_DISCOVERY_LATENCY", pol.Filter.MaxDiscoveryLatency)
	pol.Filter.MinHistorySpan = pc.MayDuration("MIN_HISTORY_SPAN", pol.Filter.MinHistorySpan)

	opts := Options{
		Policy:        pol,
		Workers:       pc.MayInt("WORKERS", 4),
		MaxRetries:    pc.MayInt("RETRIES", 3),
		RetryBase:     pc.MayDuration("RETRY_BASE", 500*time.Millisecond),
		InputTimeout:  pc.MayDuration("INPUT_TIMEOUT", 0),
		FetchTimeout:  pc.MayDuration("FETCH_TIMEOUT", 10*time.Minute),
		ReadTimeout:   pc.MayDuration("READ_TIMEOUT", 30*time.Minute),
		LedgerTimeout: pc.MayDuration("LEDGER_TIMEOUT", 5*time.Second),
	}
	return opts, opts.validate()
}

func (o Options) validate() error {
	p := o.Policy
	switch {
	case p.TestSize < 0 || p.TestSize > 1:
		return perr.InvalidArgf("process: test size %v outside [0,1]", p.TestSize)
	case p.ShardCount < 1 || p.TrainPartitions < 1:
		return perr.InvalidArgf("process: partition counts must be positive (shards=%d train=%d)",
			p.ShardCount, p.TrainPartitions)
	case p.Filter.RetentionDays < 1:
		return perr.InvalidArgf("process: retention days must be positive, got %d", p.Filter.RetentionDays)
	case o.Workers < 1:
		return perr.InvalidArgf("process: workers must be positive, got %d", o.Workers)
	}
	_, err := o.Location()
	return err
}

// loadPolicy decodes path over base; keys missing from the file keep their base value
func loadPolicy(path string, base RunPolicy) (RunPolicy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return base, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "process: read policy %s", path)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	out := base
	if err := dec.Decode(&out); err != nil && !errors.Is(err, io.EOF) {
		return base, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "process: parse policy %s", path)
	}
	return out, nil
}
