package service_test

import (
	"context"
	"encoding/csv"
	"errors"
	"math/rand"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/visitor-logbook/internal/domain"
	"github.com/pkordes/visitor-logbook/internal/mirror"
	"github.com/pkordes/visitor-logbook/internal/service"
)

// assertContiguous fails unless rows are numbered 1..len(rows).
func assertContiguous(t *testing.T, rows []domain.ExportRow) {
	t.Helper()
	for i, r := range rows {
		require.Equal(t, i+1, r.Position, "row %d has position %d", i, r.Position)
	}
}

func TestExportService_Rebuild_AfterMixedMutations(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))

	var live []int64
	for i := 0; i < 60; i++ {
		if len(live) > 0 && rng.Intn(3) == 0 {
			idx := rng.Intn(len(live))
			require.NoError(t, h.visitors.Delete(ctx, live[idx]))
			live = append(live[:idx], live[idx+1:]...)
			continue
		}
		v, err := h.visitors.Create(ctx, validVisitor("V"+strconv.Itoa(i)))
		require.NoError(t, err)
		live = append(live, v.ID)
	}

	res, err := h.export.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(live), res.Rows)

	rows := h.mirror.latest()
	require.Len(t, rows, len(live))
	assertContiguous(t, rows)

	list, err := h.visitors.List(ctx)
	require.NoError(t, err)
	for i, v := range list {
		assert.Equal(t, v.Name, rows[i].Name, "row order must follow arrival order")
	}
}

func TestExportService_Rebuild_ClearsStaleAfterFailure(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.mirror.setFail(true)
	_, err := h.visitors.Create(ctx, validVisitor("Alice"))
	require.ErrorIs(t, err, domain.ErrMirrorWrite)

	st := h.export.Status(ctx)
	assert.True(t, st.Stale)
	assert.Contains(t, st.LastError, "locked")
	assert.Nil(t, st.LastRebuild)

	h.mirror.setFail(false)
	res, err := h.export.Rebuild(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, res.Rows)
	st = h.export.Status(ctx)
	assert.False(t, st.Stale)
	require.NotNil(t, st.LastRebuild)
	assert.Equal(t, res, *st.LastRebuild)
}

func TestExportService_Status_KeepsLastSuccessAfterFailure(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	_, err := h.visitors.Create(ctx, validVisitor("Alice"))
	require.NoError(t, err)

	h.mirror.setFail(true)
	_, err = h.visitors.Create(ctx, validVisitor("Carol"))
	require.ErrorIs(t, err, domain.ErrMirrorWrite)

	st := h.export.Status(ctx)
	assert.True(t, st.Stale)
	require.NotNil(t, st.LastRebuild)
	assert.Equal(t, 1, st.LastRebuild.Rows, "last success predates the failed rebuild")
}

func TestExportService_HoldsLockAcrossMutationAndRebuild(t *testing.T) {
	store := newMemStore()
	locker := &fakeLocker{}
	m := &lockCheckingMirror{recordingMirror: &recordingMirror{}, locker: locker}
	export := service.NewExportService(store, locker, m, nil)
	svc := service.NewVisitorService(store, store, export, nil)
	ctx := context.Background()

	v, err := svc.Create(ctx, validVisitor("Alice"))
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, v.ID))
	_, err = export.Rebuild(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, locker.count())
	assert.Equal(t, 3, m.count())
	assert.Zero(t, m.unlocked, "every rebuild must run under the lock")
	assert.False(t, locker.isHeld(), "lock released afterwards")
}

func TestExportService_LockFailure(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.locker.err = errors.New("too many connections")

	_, err := h.visitors.Create(ctx, validVisitor("Alice"))
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.NotErrorIs(t, err, domain.ErrMirrorWrite)

	_, err = h.export.Rebuild(ctx)
	assert.Error(t, err)

	n, _ := h.store.Count(ctx)
	assert.Zero(t, n, "nothing is written without the lock")
	assert.Zero(t, h.mirror.count())
}

func TestExportService_Rebuild_ListError(t *testing.T) {
	r := &mockVisitorRepo{
		list: func(_ context.Context) ([]domain.Visitor, error) { return nil, errors.New("db down") },
	}
	m := &recordingMirror{}
	svc := service.NewExportService(r, &fakeLocker{}, m, nil)

	_, err := svc.Rebuild(context.Background())

	assert.ErrorIs(t, err, domain.ErrMirrorWrite)
	assert.Zero(t, m.count())
	assert.True(t, svc.Status(context.Background()).Stale)
}

func TestExportService_Rebuild_Idempotent(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	for _, name := range []string{"Alice", "Carol"} {
		_, err := h.visitors.Create(ctx, validVisitor(name))
		require.NoError(t, err)
	}

	_, err := h.export.Rebuild(ctx)
	require.NoError(t, err)
	first := h.mirror.latest()
	_, err = h.export.Rebuild(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, h.mirror.latest())
}

// TestExportService_ConcurrentMutations runs creates and deletes from many
// goroutines. Every rebuild observed by the mirror must be numbered 1..N, and
// the artifact on disk must match the final store.
func TestExportService_ConcurrentMutations(t *testing.T) {
	store := newMemStore()
	rec := &recordingMirror{}
	path := filepath.Join(t.TempDir(), "log.csv")
	fileMirror, err := mirror.New(mirror.Config{Path: path, Format: domain.FormatCSV}, nil)
	require.NoError(t, err)
	tee := &teeMirror{Mirror: fileMirror, rec: rec}

	export := service.NewExportService(store, &fakeLocker{}, tee, nil)
	svc := service.NewVisitorService(store, store, export, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				v, err := svc.Create(ctx, validVisitor("w"+strconv.Itoa(w)+"-"+strconv.Itoa(i)))
				if !assert.NoError(t, err) {
					return
				}
				if i%2 == 0 {
					assert.NoError(t, svc.Delete(ctx, v.ID))
				}
			}
		}(w)
	}
	wg.Wait()

	for _, rows := range rec.all() {
		assertContiguous(t, rows)
	}

	art, err := export.OpenArtifact(ctx)
	require.NoError(t, err)
	defer art.Close()
	assert.Equal(t, "log.csv", art.Name)
	records, err := csv.NewReader(art).ReadAll()
	require.NoError(t, err)

	n, _ := store.Count(ctx)
	require.Equal(t, 40, n)
	require.Len(t, records, n+1)
	for i, record := range records[1:] {
		assert.Equal(t, strconv.Itoa(i+1), record[0])
	}
}

// A caller that goes away after the insert committed must still get the
// artifact rewritten.
func TestExportService_RebuildSurvivesCancelledCaller(t *testing.T) {
	store := newMemStore()
	path := filepath.Join(t.TempDir(), "log.csv")
	fileMirror, err := mirror.New(mirror.Config{Path: path, Format: domain.FormatCSV}, nil)
	require.NoError(t, err)
	export := service.NewExportService(store, &fakeLocker{}, fileMirror, nil)
	svc := service.NewVisitorService(store, store, export, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = svc.Create(ctx, validVisitor("Alice"))
	require.NoError(t, err)

	st := export.Status(context.Background())
	assert.True(t, st.Exists)
	assert.False(t, st.Stale)
}

func TestExportService_OpenArtifact_NotFound(t *testing.T) {
	h := newHarness()

	_, err := h.export.OpenArtifact(context.Background())

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// teeMirror writes through a real mirror and records the rows it was given.
type teeMirror struct {
	*mirror.Mirror
	rec *recordingMirror
}

func (m *teeMirror) Rebuild(ctx context.Context, visitors []domain.Visitor) (domain.RebuildResult, error) {
	if _, err := m.rec.Rebuild(ctx, visitors); err != nil {
		return domain.RebuildResult{}, err
	}
	return m.Mirror.Rebuild(ctx, visitors)
}

// lockCheckingMirror counts rebuilds that ran without the lock held.
type lockCheckingMirror struct {
	*recordingMirror
	locker   *fakeLocker
	unlocked int
}

func (m *lockCheckingMirror) Rebuild(ctx context.Context, visitors []domain.Visitor) (domain.RebuildResult, error) {
	if !m.locker.isHeld() {
		m.unlocked++
	}
	return m.recordingMirror.Rebuild(ctx, visitors)
}
