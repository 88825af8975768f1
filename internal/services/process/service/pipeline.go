package service

import (
	"context"
	"encoding/json"
	"strings"

	"reddcrawl/internal/adapters/datasets"
	"reddcrawl/internal/core/leaderboard"
	"reddcrawl/internal/core/quality"
	"reddcrawl/internal/core/story"
	perr "reddcrawl/internal/platform/errors"
	"reddcrawl/internal/platform/logger"
)

// droppedSampleMax bounds the summary logged for a dropped record
const droppedSampleMax = 512

// Pipeline routes one decoded record to the output streams. It holds no per run state
// and is safe for concurrent use
type Pipeline struct {
	assigner story.Assigner
	filter   quality.Filter
	parts    datasets.Partitioner
}

// NewPipeline wires the record level components; a nil partitioner means random placement
func NewPipeline(a story.Assigner, f quality.Filter, p datasets.Partitioner) *Pipeline {
	if p == nil {
		p = datasets.RandomPartitioner{}
	}
	return &Pipeline{assigner: a, filter: f, parts: p}
}

// Streams are the record streams of one run
type Streams struct {
	Train   datasets.StreamWriter
	Test    datasets.StreamWriter
	Archive datasets.StreamWriter

	// Rankings receive the leaderboards once every input is drained
	Rankings map[leaderboard.Kind]datasets.StreamWriter
}

// Outcome describes what happened to one record
type Outcome struct {
	// Reason is the malformed reason; empty for valid records
	Reason string

	// Err explains why a malformed record was dropped
	Err error

	// Stage is StagePass when the record reached train or test
	Stage quality.Stage

	// Split is the assigned set of a valid record
	Split story.Split
}

// Valid reports whether the record was archived and aggregated
func (o Outcome) Valid() bool { return o.Reason == "" }

// Route validates and annotates s, writes it to full-archive, adds it to the partial
// rankings, then filters the raw history and writes the sanitized record to train or test.
// Malformed records are logged at debug, reported in the outcome and never fail the call
func (p *Pipeline) Route(ctx context.Context, s story.Story, out Streams, partial *leaderboard.Partial) (Outcome, error) {
	if err := story.Validate(s); err != nil {
		return dropped(ctx, s, err), nil
	}
	ann, err := p.assigner.Annotate(s)
	if err != nil {
		return dropped(ctx, s, err), nil
	}

	if err := p.emit(out.Archive, ann); err != nil {
		return Outcome{}, err
	}
	partial.Add(ann)

	o := Outcome{Split: ann.Set, Stage: p.filter.Evaluate(ann)}
	if o.Stage != quality.StagePass {
		return o, nil
	}

	dst := out.Train
	if ann.Set == story.SplitTest {
		dst = out.Test
	}
	return o, p.emit(dst, story.Sanitize(ann))
}

func dropped(ctx context.Context, s story.Story, err error) Outcome {
	o := Outcome{Reason: story.Reason(err), Err: err}
	if ev := logger.C(ctx).Debug(); ev.Enabled() {
		raw, _ := json.Marshal(s.Summary)
		if len(raw) > droppedSampleMax {
			raw = append(raw[:droppedSampleMax:droppedSampleMax], "..."...)
		}
		ev.Err(err).
			Str("id", s.Summary.ID).
			Str("reason", o.Reason).
			Str("sample", strings.ToValidUTF8(string(raw), "")).
			Msg("process: record dropped")
	}
	return o
}

func (p *Pipeline) emit(w datasets.StreamWriter, s story.Story) error {
	line, err := json.Marshal(s)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeJSON, "process: encode story %s", s.Summary.ID)
	}
	return w.WriteLine(p.parts.Choose(s, w.Parts()), line)
}
