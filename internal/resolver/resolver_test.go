package resolver

import (
	"archive/zip"
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"commandr-server/internal/model"
	"commandr-server/internal/unit"
)

type fakeSource struct {
	mu     sync.Mutex
	assets map[string][]model.Asset
}

func newFakeSource() *fakeSource {
	return &fakeSource{assets: make(map[string][]model.Asset)}
}

func (f *fakeSource) add(accountID, name string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.assets[accountID]
	f.assets[accountID] = append(list, model.Asset{
		ID:        accountID + "-" + name,
		Name:      name,
		AccountID: accountID,
		Data:      data,
		Seq:       int64(len(list) + 1),
	})
}

func (f *fakeSource) AssetsOf(accountID string) []model.Asset {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Asset(nil), f.assets[accountID]...)
}

func buildArchive(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func evaluate(t *testing.T, u *unit.Unit, params map[string]interface{}) interface{} {
	t.Helper()
	ev, err := u.New()
	require.NoError(t, err)
	out, err := ev.Evaluate(context.Background(), params)
	require.NoError(t, err)
	return out
}

func TestResolve_IdentityStable(t *testing.T) {
	src := newFakeSource()
	src.add("A", "udf.zip", buildArchive(t, map[string]string{"pkg/Bar": "x + 1"}))
	r := New("A", Options{Builtins: unit.Builtins(), Archives: src})

	u1, err := r.Resolve("pkg.Bar")
	require.NoError(t, err)
	u2, err := r.Resolve("pkg.Bar")
	require.NoError(t, err)
	require.Same(t, u1, u2)
	require.Equal(t, r.ID(), u1.Loader())
	require.Equal(t, 1, r.Cached())
	require.Equal(t, 3.0, evaluate(t, u1, map[string]interface{}{"x": 2.0}))
}

func TestResolve_TenantIsolation(t *testing.T) {
	src := newFakeSource()
	same := buildArchive(t, map[string]string{"pkg/Bar.unit": "x * 10"})
	src.add("A", "a.jar", same)
	src.add("B", "b.jar", same)
	src.add("C", "c.zip", buildArchive(t, map[string]string{"pkg/Bar": "x * 20"}))

	builtins := unit.Builtins()
	ra := New("A", Options{Builtins: builtins, Archives: src})
	rb := New("B", Options{Builtins: builtins, Archives: src})
	rc := New("C", Options{Builtins: builtins, Archives: src})

	ua, err := ra.Resolve("pkg.Bar")
	require.NoError(t, err)
	ub, err := rb.Resolve("pkg.Bar")
	require.NoError(t, err)
	uc, err := rc.Resolve("pkg.Bar")
	require.NoError(t, err)

	require.NotSame(t, ua, ub)
	require.NotSame(t, ua, uc)
	require.NotEqual(t, ua.Loader(), ub.Loader())
	require.Equal(t, 10.0, evaluate(t, ua, map[string]interface{}{"x": 1.0}))
	require.Equal(t, 20.0, evaluate(t, uc, map[string]interface{}{"x": 1.0}))
}

func TestResolve_BuiltinWinsOverArchive(t *testing.T) {
	src := newFakeSource()
	src.add("A", "evil.zip", buildArchive(t, map[string]string{"sys/Sum": "666"}))
	builtins := unit.Builtins()
	r := New("A", Options{Builtins: builtins, Archives: src})

	u, err := r.Resolve("sys.Sum")
	require.NoError(t, err)
	want, _ := builtins.Lookup("sys.Sum")
	require.Same(t, want, u)
	require.Equal(t, unit.BuiltinLoader, u.Loader())
	require.Equal(t, 3.0, evaluate(t, u, map[string]interface{}{"values": []interface{}{1.0, 2.0}}))
}

func TestResolve_SkipsUnreadableArchives(t *testing.T) {
	src := newFakeSource()
	src.add("A", "broken.zip", []byte("definitely not a zip"))
	src.add("A", "bad-entry.zip", buildArchive(t, map[string]string{"pkg/Bar": "x +* ("}))
	src.add("A", "notes.txt", buildArchive(t, map[string]string{"pkg/Bar": "1"}))
	src.add("A", "good.zip", buildArchive(t, map[string]string{"pkg/Bar": "x - 1"}))
	r := New("A", Options{Builtins: unit.Builtins(), Archives: src})

	u, err := r.Resolve("pkg.Bar")
	require.NoError(t, err)
	require.Equal(t, 4.0, evaluate(t, u, map[string]interface{}{"x": 5.0}))
}

func TestResolve_FirstArchiveWins(t *testing.T) {
	src := newFakeSource()
	src.add("A", "first.zip", buildArchive(t, map[string]string{"pkg/Bar": "1"}))
	src.add("A", "second.zip", buildArchive(t, map[string]string{"pkg/Bar": "2"}))
	r := New("A", Options{Archives: src})

	u, err := r.Resolve("pkg.Bar")
	require.NoError(t, err)
	require.Equal(t, 1.0, evaluate(t, u, nil))
}

func TestResolve_NotFound(t *testing.T) {
	src := newFakeSource()
	r := New("A", Options{Builtins: unit.Builtins(), Archives: src})

	_, err := r.Resolve("pkg.Missing")
	require.ErrorIs(t, err, model.ErrUnitNotFound)
	require.Equal(t, 0, r.Cached())

	// A later upload makes the name resolvable; failures are not cached.
	src.add("A", "late.zip", buildArchive(t, map[string]string{"pkg/Missing": "42"}))
	u, err := r.Resolve("pkg.Missing")
	require.NoError(t, err)
	require.Equal(t, 42.0, evaluate(t, u, nil))

	_, err = r.Resolve("")
	require.ErrorIs(t, err, model.ErrInvalidArgument)
}

func TestResolve_ConcurrentSameName(t *testing.T) {
	src := newFakeSource()
	src.add("A", "udf.zip", buildArchive(t, map[string]string{"pkg/Bar": "x"}))
	r := New("A", Options{Archives: src})

	const n = 32
	results := make([]*unit.Unit, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, err := r.Resolve("pkg.Bar")
			if err == nil {
				results[i] = u
			}
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		require.NotNil(t, results[i])
		require.Same(t, results[0], results[i])
	}
}

func TestArchiveReadError_Unwrap(t *testing.T) {
	inner := model.ErrInvalidArgument
	err := &ArchiveReadError{AssetID: "1", AssetName: "a.zip", Entry: "pkg/Bar", Err: inner}
	require.ErrorIs(t, err, inner)
	require.Contains(t, err.Error(), "pkg/Bar")
}

func TestMatchesEntry(t *testing.T) {
	require.True(t, matchesEntry("pkg/Bar", "pkg/Bar"))
	require.True(t, matchesEntry("pkg/Bar.unit", "pkg/Bar"))
	require.True(t, matchesEntry("./pkg/Bar", "pkg/Bar"))
	require.False(t, matchesEntry("pkg/BarBaz", "pkg/Bar"))
	require.False(t, matchesEntry("other/pkg/Bar", "pkg/Bar"))
}
