// Package service runs the story processing job: read archives, route records,
// publish rankings and record the run in the ledger
package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"reddcrawl/internal/adapters/datasets"
	"reddcrawl/internal/adapters/ingest/storyarchive"
	"reddcrawl/internal/core/leaderboard"
	"reddcrawl/internal/core/quality"
	"reddcrawl/internal/core/story"
	"reddcrawl/internal/modkit/repokit"
	perr "reddcrawl/internal/platform/errors"
	"reddcrawl/internal/platform/logger"
	"reddcrawl/internal/services/process/domain"
	"reddcrawl/internal/services/process/guardrails"

	"github.com/google/uuid"
)

// Config holds configuration options for the process service
type Config struct {
	// Partition counts
	ShardCount      int // full-archive parts; <=0 -> 256
	TrainPartitions int // train parts; <=0 -> 128

	// Input-level retry, only before any record of the input was written
	MaxRetries int           // attempts per input; <=0 -> 1
	RetryBase  time.Duration // base backoff; <=0 -> 500ms

	// Timeouts applied via guardrails
	InputTimeout  time.Duration
	FetchTimeout  time.Duration
	ReadTimeout   time.Duration
	LedgerTimeout time.Duration

	// Policy is stored verbatim in the run ledger
	Policy any
}

// Service implements domain.RunnerPort
type Service struct {
	// DB and Binder form the optional Postgres ledger; nil DB disables it
	DB     repokit.TxRunner
	Binder repokit.Binder[domain.LedgerRepo]

	// Boards is the optional ClickHouse rankings store
	Boards domain.LeaderboardRepo

	Fetch    domain.Fetcher
	Reader   domain.ReaderFactory
	Exec     domain.Executor
	Pipeline *Pipeline
	Cfg      Config
}

var _ domain.RunnerPort = (*Service)(nil)

// New constructs the process service
func New(
	f domain.Fetcher,
	rf domain.ReaderFactory,
	exec domain.Executor,
	p *Pipeline,
	cfg Config,
) *Service {
	if f == nil || rf == nil {
		panic("process.Service requires a fetcher and a reader factory")
	}
	if exec == nil {
		panic("process.Service requires an executor")
	}
	if p == nil {
		panic("process.Service requires a pipeline")
	}
	if cfg.ShardCount <= 0 {
		cfg.ShardCount = 256
	}
	if cfg.TrainPartitions <= 0 {
		cfg.TrainPartitions = 128
	}
	return &Service{Fetch: f, Reader: rf, Exec: exec, Pipeline: p, Cfg: cfg}
}

// WithLedger enables the Postgres run ledger
func (s *Service) WithLedger(db repokit.TxRunner, b repokit.Binder[domain.LedgerRepo]) *Service {
	s.DB, s.Binder = db, b
	return s
}

// WithLeaderboards enables publishing rankings to ClickHouse
func (s *Service) WithLeaderboards(r domain.LeaderboardRepo) *Service {
	s.Boards = r
	return s
}

// runState is shared by every task of one run
type runState struct {
	id      uuid.UUID
	streams Streams
	agg     *leaderboard.Aggregator
	stages  quality.Counts

	// record counters
	records, valid, archived, train, test atomic.Int64

	// malformed by reason
	decode, missingID, invalid atomic.Int64

	bytes atomic.Int64
}

// tally counts one input; it is folded into runState only when the input succeeds
type tally struct {
	valid, archived, train, test int64

	missingID, invalid int64

	stages map[quality.Stage]int64
}

// Run implements domain.RunnerPort. Streams are committed only when every input succeeded
func (s *Service) Run(ctx context.Context, inputs []domain.InputRef, sink datasets.Sink) (domain.Summary, error) {
	if len(inputs) == 0 {
		return domain.Summary{}, perr.InvalidArgf("process: no inputs")
	}
	if sink == nil {
		return domain.Summary{}, perr.InvalidArgf("process: nil sink")
	}

	start := time.Now()
	rs := &runState{id: uuid.New(), agg: leaderboard.New()}
	ctx = logger.WithRun(ctx, rs.id.String())
	log := logger.C(ctx)
	sum := domain.Summary{RunID: rs.id}

	if err := s.startRun(ctx, rs.id); err != nil {
		_ = sink.Close()
		return sum, err
	}

	retErr := s.execute(ctx, rs, inputs, sink)
	sum.Counters = rs.counters(len(inputs))
	sum.Elapsed = time.Since(start)

	fin := domain.RunFinish{Status: domain.StatusOK, Counters: sum.Counters}
	if retErr != nil {
		fin.Status = domain.StatusError
		fin.ErrText = retErr.Error()
	}
	// record the outcome even when ctx was canceled
	if err := s.finishRun(context.WithoutCancel(ctx), rs.id, fin); err != nil {
		retErr = errors.Join(retErr, err)
	}

	ev := log.Info()
	if retErr != nil {
		ev = log.Error().Err(retErr)
	}
	ev.Int("inputs", len(inputs)).
		Int64("records", sum.Counters.Records).
		Int64("valid", sum.Counters.Valid).
		Int64("train", sum.Counters.Train).
		Int64("test", sum.Counters.Test).
		Int64("archived", sum.Counters.Archived).
		Interface("malformed", sum.Counters.Malformed).
		Interface("rejected", sum.Counters.Rejected).
		Dur("elapsed", sum.Elapsed).
		Msg("process: run finished")

	return sum, retErr
}

// execute drains every input, then writes rankings, commits the sink and publishes to ClickHouse
func (s *Service) execute(ctx context.Context, rs *runState, inputs []domain.InputRef, sink datasets.Sink) error {
	streams, err := s.openStreams(sink)
	if err != nil {
		_ = sink.Close()
		return err
	}
	rs.streams = streams

	err = s.Exec.Run(ctx, len(inputs), func(ctx context.Context, task int) error {
		return s.runInputWithRetry(ctx, rs, inputs[task])
	})
	if err != nil {
		_ = sink.Close()
		return err
	}

	rankings := rs.agg.Rankings()
	if err := writeRankings(streams.Rankings, rankings); err != nil {
		_ = sink.Close()
		return err
	}
	if err := sink.Commit(ctx); err != nil {
		return err
	}

	if s.Boards == nil {
		return nil
	}
	if err := s.Boards.InsertLeaderboards(ctx, rs.id, rankings); err != nil {
		return err
	}
	return s.Boards.InsertStageCounts(ctx, rs.id, rs.stages.Snapshot())
}

func (s *Service) openStreams(sink datasets.Sink) (Streams, error) {
	var out Streams
	var err error
	if out.Train, err = sink.Stream(datasets.StreamTrain, s.Cfg.TrainPartitions); err != nil {
		return Streams{}, err
	}
	if out.Test, err = sink.Stream(datasets.StreamTest, 1); err != nil {
		return Streams{}, err
	}
	if out.Archive, err = sink.Stream(datasets.StreamFullArchive, s.Cfg.ShardCount); err != nil {
		return Streams{}, err
	}
	// ranking streams are opened up front so an existing output fails before any input is read
	out.Rankings = make(map[leaderboard.Kind]datasets.StreamWriter, len(rankingStreams))
	for _, kind := range leaderboard.Kinds() {
		if out.Rankings[kind], err = sink.Stream(rankingStreams[kind], 1); err != nil {
			return Streams{}, err
		}
	}
	return out, nil
}

// rankingStreams maps each ranking to its single partition output stream
var rankingStreams = map[leaderboard.Kind]string{
	leaderboard.KindAuthors:    datasets.StreamAuthors,
	leaderboard.KindSubreddits: datasets.StreamSubreddits,
	leaderboard.KindDomains:    datasets.StreamDomains,
}

func writeRankings(streams map[leaderboard.Kind]datasets.StreamWriter, rankings map[leaderboard.Kind][]leaderboard.Entry) error {
	for _, kind := range leaderboard.Kinds() {
		w := streams[kind]
		for _, e := range rankings[kind] {
			if err := w.WriteLine(0, []byte(e.Line(kind))); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Service) runInputWithRetry(ctx context.Context, rs *runState, ref domain.InputRef) error {
	attempts := max(s.Cfg.MaxRetries, 1)
	base := s.Cfg.RetryBase
	if base <= 0 {
		base = 500 * time.Millisecond
	}

	var last error
	for i := range attempts {
		emitted, err := s.runInput(ctx, rs, ref)
		if err == nil {
			return nil
		}
		last = err

		// records of this input already reached the sink, a retry would duplicate them
		if emitted {
			return last
		}
		if !perr.Retryable(err) {
			return last
		}
		if i == attempts-1 {
			break
		}

		// Exponential backoff with jitter, cap at 30s
		d := min(base<<i, 30*time.Second)
		j := d/2 + time.Duration(rand.Int64N(int64(d/2)+1))
		logger.C(ctx).Warn().Err(err).Str("input", ref.String()).Int("attempt", i+1).Dur("backoff", j).
			Msg("process: input failed, retrying")
		if se := sleepCtx(ctx, j); se != nil {
			return se
		}
	}
	return last
}

// runInput processes one archive. emitted reports whether any record was written
func (s *Service) runInput(ctx context.Context, rs *runState, ref domain.InputRef) (emitted bool, retErr error) {
	tos := guardrails.Timeouts{
		Input:  s.Cfg.InputTimeout,
		Fetch:  s.Cfg.FetchTimeout,
		Read:   s.Cfg.ReadTimeout,
		Ledger: s.Cfg.LedgerTimeout,
	}
	inCtx, inCancel := guardrails.WithInput(logger.WithInput(ctx, ref.String()), tos)
	defer inCancel()
	log := logger.C(inCtx)

	startWall := time.Now()
	var fin domain.InputFinish
	s.startInput(inCtx, tos, rs.id, ref)
	defer func() {
		fin.ElapsedMS = int(time.Since(startWall).Milliseconds())
		fin.Status = domain.StatusOK
		if retErr != nil {
			fin.Status = domain.StatusError
			fin.ErrText = retErr.Error()
		}
		s.finishInput(context.WithoutCancel(inCtx), tos, rs.id, ref, fin)
	}()

	// Fetch (timeoutable)
	t0 := time.Now()
	fetchCtx, fetchCancel := guardrails.ForFetch(inCtx, tos)
	rc, err := s.Fetch.Fetch(fetchCtx, ref)
	fetchCancel()
	fin.FetchMS = int(time.Since(t0).Milliseconds())
	if err != nil {
		return false, err
	}
	fin.CacheHit = storyarchive.IsCacheHit(rc)

	rd, err := s.Reader.New(rc)
	if err != nil {
		return false, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "process: open archive %s", ref)
	}
	defer func() {
		if cerr := rd.Close(); cerr != nil && retErr == nil {
			retErr = cerr
		}
	}()

	// Read + route (timeoutable)
	t1 := time.Now()
	readCtx, readCancel := guardrails.ForRead(inCtx, tos)
	defer readCancel()
	var t tally
	partial := leaderboard.NewPartial()
	for {
		if err := readCtx.Err(); err != nil {
			return emitted, err
		}
		rec, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return emitted, perr.Wrapf(err, perr.ErrorCodeUnavailable, "process: read %s", ref)
		}
		o, err := s.Pipeline.Route(readCtx, rec, rs.streams, partial)
		if err != nil {
			return true, err
		}
		t.observe(o)
		emitted = emitted || o.Valid()
	}
	fin.ReadMS = int(time.Since(t1).Milliseconds())

	st := rd.Stats()
	fin.Records = st.Records
	fin.Malformed = st.Malformed + int(t.missingID+t.invalid)
	fin.BytesUncompressed = st.Bytes

	rs.fold(t, st)
	rs.agg.Merge(partial)

	log.Debug().
		Int("records", st.Records).
		Int64("valid", t.valid).
		Int("malformed", fin.Malformed).
		Int64("train", t.train).
		Int64("test", t.test).
		Bool("cache_hit", fin.CacheHit).
		Int("fetch_ms", fin.FetchMS).
		Int("read_ms", fin.ReadMS).
		Msg("process: input done")
	return emitted, nil
}

func (t *tally) observe(o Outcome) {
	if !o.Valid() {
		if o.Reason == story.ReasonMissingID {
			t.missingID++
		} else {
			t.invalid++
		}
		return
	}
	t.valid++
	t.archived++
	if t.stages == nil {
		t.stages = map[quality.Stage]int64{}
	}
	t.stages[o.Stage]++
	if o.Stage != quality.StagePass {
		return
	}
	if o.Split == story.SplitTest {
		t.test++
	} else {
		t.train++
	}
}

func (rs *runState) fold(t tally, st domain.ReaderStats) {
	rs.records.Add(int64(st.Records))
	rs.bytes.Add(st.Bytes)
	rs.decode.Add(int64(st.Malformed))
	rs.missingID.Add(t.missingID)
	rs.invalid.Add(t.invalid)
	rs.valid.Add(t.valid)
	rs.archived.Add(t.archived)
	rs.train.Add(t.train)
	rs.test.Add(t.test)
	for stage, n := range t.stages {
		rs.stages.Add(stage, n)
	}
}

func (rs *runState) counters(inputs int) domain.Counters {
	rejected := rs.stages.Snapshot()
	delete(rejected, quality.StagePass.String())
	return domain.Counters{
		Inputs:  inputs,
		Records: rs.records.Load(),
		Valid:   rs.valid.Load(),
		Malformed: map[string]int64{
			story.ReasonDecode:    rs.decode.Load(),
			story.ReasonMissingID: rs.missingID.Load(),
			story.ReasonInvalid:   rs.invalid.Load(),
		},
		Rejected:          rejected,
		Train:             rs.train.Load(),
		Test:              rs.test.Load(),
		Archived:          rs.archived.Load(),
		BytesUncompressed: rs.bytes.Load(),
	}
}

// startRun is fatal when the ledger is enabled and unavailable
func (s *Service) startRun(ctx context.Context, runID uuid.UUID) error {
	if s.DB == nil || s.Binder == nil {
		return nil
	}
	policy, err := json.Marshal(s.Cfg.Policy)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, "process: encode policy")
	}
	dbCtx, cancel := guardrails.ForLedger(ctx, guardrails.Timeouts{Ledger: s.Cfg.LedgerTimeout})
	defer cancel()
	return repokit.WithTx(dbCtx, s.DB, s.Binder, func(r domain.LedgerRepo) error {
		return r.StartRun(dbCtx, runID, policy)
	})
}

func (s *Service) finishRun(ctx context.Context, runID uuid.UUID, fin domain.RunFinish) error {
	if s.DB == nil || s.Binder == nil {
		return nil
	}
	dbCtx, cancel := guardrails.ForLedger(ctx, guardrails.Timeouts{Ledger: s.Cfg.LedgerTimeout})
	defer cancel()
	return repokit.WithTx(dbCtx, s.DB, s.Binder, func(r domain.LedgerRepo) error {
		return r.FinishRun(dbCtx, runID, fin)
	})
}

// startInput and finishInput are best effort; the run row carries the authoritative outcome
func (s *Service) startInput(ctx context.Context, tos guardrails.Timeouts, runID uuid.UUID, ref domain.InputRef) {
	if s.DB == nil || s.Binder == nil {
		return
	}
	dbCtx, cancel := guardrails.ForLedger(ctx, tos)
	defer cancel()
	if err := repokit.WithTx(dbCtx, s.DB, s.Binder, func(r domain.LedgerRepo) error {
		return r.StartInput(dbCtx, runID, ref.String())
	}); err != nil {
		logger.C(ctx).Warn().Err(err).Msg("process: ledger StartInput failed")
	}
}

func (s *Service) finishInput(
	ctx context.Context,
	tos guardrails.Timeouts,
	runID uuid.UUID,
	ref domain.InputRef,
	fin domain.InputFinish,
) {
	if s.DB == nil || s.Binder == nil {
		return
	}
	dbCtx, cancel := guardrails.ForLedger(ctx, tos)
	defer cancel()
	if err := repokit.WithTx(dbCtx, s.DB, s.Binder, func(r domain.LedgerRepo) error {
		return r.FinishInput(dbCtx, runID, ref.String(), fin)
	}); err != nil {
		logger.C(ctx).Warn().Err(err).Msg("process: ledger FinishInput failed")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
