package ingest

import (
	"io"

	"reddcrawl/internal/adapters/ingest/storyarchive"
	"reddcrawl/internal/services/process/domain"
)

// readerFactory adapts storyarchive.NewReader to domain.ReaderFactory
type readerFactory struct {
	opts []storyarchive.ReaderOption
}

// NewReaderFactory returns a factory that wraps storyarchive.NewReader
func NewReaderFactory(opts ...storyarchive.ReaderOption) domain.ReaderFactory {
	return readerFactory{opts: opts}
}

func (f readerFactory) New(rc io.ReadCloser) (domain.ReaderPort, error) {
	r, err := storyarchive.NewReader(rc, f.opts...)
	if err != nil {
		return nil, err
	}
	return r, nil
}
