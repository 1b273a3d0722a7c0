package resolver

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"commandr-server/internal/metrics"
	"commandr-server/internal/unit"
)

// UnitExt is the optional extension of unit entries inside an archive.
const UnitExt = ".unit"

const maxEntrySize = 16 << 20

// ArchiveReadError reports an archive, or an entry inside one, that could
// not be used. Resolution skips it and moves on to the next archive.
type ArchiveReadError struct {
	AssetID   string
	AssetName string
	Entry     string
	Err       error
}

func (e *ArchiveReadError) Error() string {
	if e.Entry != "" {
		return fmt.Sprintf("archive %s (%s): entry %s: %v", e.AssetName, e.AssetID, e.Entry, e.Err)
	}
	return fmt.Sprintf("archive %s (%s): %v", e.AssetName, e.AssetID, e.Err)
}

func (e *ArchiveReadError) Unwrap() error { return e.Err }

// EntryPath maps a unit name such as "pkg.Bar" to its archive path "pkg/Bar".
func EntryPath(name string) string {
	return strings.ReplaceAll(name, ".", "/")
}

func matchesEntry(entry, want string) bool {
	entry = strings.TrimPrefix(path.Clean("/"+entry), "/")
	return strings.TrimSuffix(entry, UnitExt) == want
}

type archiveStep struct {
	r      *Resolver
	source ArchiveSource
}

func (archiveStep) Name() string { return "archive" }

func (s archiveStep) Lookup(name string) (*unit.Unit, error) {
	if s.source == nil {
		return nil, nil
	}
	want := EntryPath(name)
	for _, asset := range s.source.AssetsOf(s.r.owner) {
		if !asset.IsArchive() {
			continue
		}
		payload, found, err := readEntry(asset.Data, want)
		if err != nil {
			s.skip(&ArchiveReadError{AssetID: asset.ID, AssetName: asset.Name, Err: err})
			continue
		}
		if !found {
			continue
		}
		u, err := unit.Compile(name, s.r.id, payload)
		if err != nil {
			s.skip(&ArchiveReadError{AssetID: asset.ID, AssetName: asset.Name, Entry: want, Err: err})
			continue
		}
		return u, nil
	}
	return nil, nil
}

func (s archiveStep) skip(err *ArchiveReadError) {
	metrics.CounterArchiveReadErrors.Inc()
	s.r.log.WithError(err).WithFields(logrus.Fields{"asset": err.AssetID}).Warn("skipping unreadable archive")
}

func readEntry(data []byte, want string) ([]byte, bool, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, false, errors.Wrap(err, "open")
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !matchesEntry(f.Name, want) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, false, errors.Wrapf(err, "open entry %s", f.Name)
		}
		payload, err := io.ReadAll(io.LimitReader(rc, maxEntrySize+1))
		_ = rc.Close()
		if err != nil {
			return nil, false, errors.Wrapf(err, "read entry %s", f.Name)
		}
		if len(payload) > maxEntrySize {
			return nil, false, errors.Errorf("entry %s exceeds %d bytes", f.Name, maxEntrySize)
		}
		return payload, true, nil
	}
	return nil, false, nil
}
