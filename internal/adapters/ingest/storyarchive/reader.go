package storyarchive

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"

	"reddcrawl/internal/core/story"
	"reddcrawl/internal/platform/logger"

	"github.com/klauspost/compress/gzip"
)

const (
	readBufferSize = 512 * 1024
	maxLineBytes   = 32 * 1024 * 1024
	sampleRawMax   = 2048 // max bytes of raw JSON logged for samples
)

// ErrLineTooLong is handed to the malformed hook for lines over the size limit
var ErrLineTooLong = errors.New("storyarchive: line exceeds size limit")

// Reader streams stories from a gzip archive
type Reader struct {
	r       io.ReadCloser
	gz      *gzip.Reader
	br      *bufio.Reader
	line    []byte
	maxLine int
	err     error
	pending []story.Story
	stats   Stats
	sampled bool // logs exactly one sample raw line per archive
	onBad   func(raw []byte, err error)
}

// ReaderOption configures a Reader
type ReaderOption func(*Reader)

// WithMalformedHook is called for every undecodable line
func WithMalformedHook(fn func(raw []byte, err error)) ReaderOption {
	return func(rd *Reader) { rd.onBad = fn }
}

// WithMaxLineBytes caps a single line; longer lines are skipped as malformed
func WithMaxLineBytes(n int) ReaderOption {
	return func(rd *Reader) {
		if n > 0 {
			rd.maxLine = n
		}
	}
}

// NewReader wraps r; concatenated gzip members are read as one stream
func NewReader(r io.ReadCloser, opts ...ReaderOption) (*Reader, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		if cerr := r.Close(); cerr != nil {
			return nil, errors.Join(err, cerr)
		}
		return nil, err
	}
	rd := &Reader{r: r, gz: gz, br: bufio.NewReaderSize(gz, readBufferSize), maxLine: maxLineBytes}
	for _, o := range opts {
		o(rd)
	}
	return rd, nil
}

// Next returns the next decoded story; io.EOF when the archive is drained.
// Decoded stories are not validated
func (rd *Reader) Next() (story.Story, error) {
	for {
		if len(rd.pending) > 0 {
			s := rd.pending[0]
			rd.pending = rd.pending[1:]
			rd.stats.Records++
			return s, nil
		}
		if rd.err != nil {
			return story.Story{}, rd.err
		}
		line, tooLong, err := rd.readLine()
		if err != nil {
			rd.err = err
			return story.Story{}, err
		}
		if tooLong {
			rd.malformed(line, ErrLineTooLong)
			continue
		}
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		rd.decodeLine(line)
	}
}

// readLine returns the next line without its terminator. A line over maxLine is consumed
// up to its newline and reported as tooLong with only its head kept
func (rd *Reader) readLine() ([]byte, bool, error) {
	rd.line = rd.line[:0]
	var n int
	tooLong := false
	for {
		frag, err := rd.br.ReadSlice('\n')
		n += len(frag)
		rd.stats.Bytes += int64(len(frag))
		switch {
		case tooLong:
		case len(rd.line)+len(frag) > rd.maxLine:
			tooLong = true
			rd.line = append(rd.line, frag...)
			rd.line = rd.line[:min(len(rd.line), sampleRawMax)]
		default:
			rd.line = append(rd.line, frag...)
		}

		switch {
		case err == nil, errors.Is(err, io.EOF) && n > 0:
			return bytes.TrimRight(rd.line, "\r\n"), tooLong, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		default:
			return nil, false, err
		}
	}
}

// decodeLine decodes every object on the line. A decode failure drops the rest of the line
func (rd *Reader) decodeLine(line []byte) {
	dec := json.NewDecoder(bytes.NewReader(line))
	for {
		var s story.Story
		err := dec.Decode(&s)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			rd.malformed(line, err)
			break
		}
		rd.pending = append(rd.pending, s)
	}

	if !rd.sampled && len(rd.pending) > 0 {
		rd.sampled = true
		logger.Named("storyarchive").Debug().
			Int("line_bytes", len(line)).
			Str("sample_raw", truncateUTF8(line, sampleRawMax)).
			Msg("storyarchive: sample raw line")
	}
}

func (rd *Reader) malformed(line []byte, err error) {
	rd.stats.Malformed++
	if rd.onBad != nil {
		rd.onBad(line, err)
	}
	logger.Named("storyarchive").Debug().
		Err(err).
		Str("sample_raw", truncateUTF8(line, sampleRawMax)).
		Msg("storyarchive: malformed line skipped")
}

// Close closes the gzip stream and the underlying reader
func (rd *Reader) Close() error {
	var first error
	if rd.gz != nil {
		if err := rd.gz.Close(); err != nil && !errors.Is(err, io.ErrClosedPipe) {
			first = err
		}
	}
	if rd.r != nil {
		if err := rd.r.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Stats returns counters so far
func (rd *Reader) Stats() Stats { return rd.stats }

// truncateUTF8 returns b truncated to at most max bytes on a rune boundary,
// with an ellipsis when shortened
func truncateUTF8(b []byte, max int) string {
	if max <= 0 || len(b) <= max {
		return string(b)
	}
	i := max
	for i > 0 && (b[i]&0xC0) == 0x80 {
		i--
	}
	if i <= 0 {
		i = max
	}
	return string(b[:i]) + "..."
}
