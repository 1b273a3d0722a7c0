package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"commandr-server/internal/model"
)

func record(id string) model.AccountRecord {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := model.AccountRecord{ID: id, Name: id + "@x.com", CreationTime: now, AccessTime: now, ChangeTime: now, DeletionTime: &now}
	rec.SchemaCreate = 2
	return rec
}

func TestFileSink_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "audit.log")
	s, err := Open(KindFile, path)
	require.NoError(t, err)

	require.NoError(t, s.Write([]model.AccountRecord{record("a")}))
	require.NoError(t, s.Write([]model.AccountRecord{record("b"), record("c")}))
	require.NoError(t, s.Write(nil))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var ids []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec map[string]interface{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		ids = append(ids, rec["id"].(string))
		require.EqualValues(t, 2, rec["schemaCreateCount"])
	}
	require.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestFileSink_UnwritableTarget(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	s, err := NewFileSink(filepath.Join(blocker, "audit.log"))
	require.NoError(t, err)
	require.Error(t, s.Write([]model.AccountRecord{record("a")}))
}

func TestBoltSink_RoundTrip(t *testing.T) {
	s, err := OpenBoltSink(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Write([]model.AccountRecord{record("a"), record("b")}))
	require.NoError(t, s.Write([]model.AccountRecord{record("c")}))

	got, err := s.Records()
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "a", got[0].ID)
	require.Equal(t, "c", got[2].ID)
	require.EqualValues(t, 2, got[1].SchemaCreate)
}

func TestOpen_Kinds(t *testing.T) {
	s, err := Open(KindNone, "")
	require.NoError(t, err)
	require.NoError(t, s.Write([]model.AccountRecord{record("a")}))

	_, err = Open("kafka", "x")
	require.Error(t, err)
}
