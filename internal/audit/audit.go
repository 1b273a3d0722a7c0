// Package audit writes records of pruned accounts. Writes are best-effort:
// callers log failures and carry on.
package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"commandr-server/internal/model"
)

type Sink interface {
	Write(records []model.AccountRecord) error
	Close() error
}

const (
	KindFile = "file"
	KindBolt = "bolt"
	KindNone = "none"
)

// Open returns the sink named by kind writing to target.
func Open(kind, target string) (Sink, error) {
	switch kind {
	case KindFile:
		return NewFileSink(target)
	case KindBolt:
		return OpenBoltSink(target)
	case KindNone, "":
		return Nop{}, nil
	default:
		return nil, errors.Errorf("unknown audit sink %q", kind)
	}
}

type Nop struct{}

func (Nop) Write([]model.AccountRecord) error { return nil }
func (Nop) Close() error                      { return nil }

// FileSink appends one JSON document per record to a file.
type FileSink struct {
	path string
	mu   sync.Mutex
}

func NewFileSink(path string) (*FileSink, error) {
	if path == "" {
		return nil, errors.New("audit: missing file path")
	}
	return &FileSink{path: path}, nil
}

func (s *FileSink) Path() string { return s.path }

func (s *FileSink) Write(records []model.AccountRecord) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return errors.Wrapf(err, "audit: mkdir %s", dir)
		}
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return errors.Wrapf(err, "audit: open %s", s.path)
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			_ = f.Close()
			return errors.Wrapf(err, "audit: encode %s", rec.ID)
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "audit: flush")
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "audit: sync")
	}
	return f.Close()
}

func (s *FileSink) Close() error { return nil }
