package service_test

import (
	"context"
	"errors"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/pkordes/visitor-logbook/internal/domain"
	"github.com/pkordes/visitor-logbook/internal/mirror"
	"github.com/pkordes/visitor-logbook/internal/repo"
	"github.com/pkordes/visitor-logbook/internal/service"
)

// ---- in-memory store ---------------------------------------------------------

// memStore is an in-memory repo.VisitorRepo and repo.Transactor. IDs come from
// a counter that never goes backwards and arrival times tick one second per
// insert, mirroring the identity column and clock_timestamp() default.
type memStore struct {
	mu       sync.Mutex
	visitors []domain.Visitor
	nextID   int64
	clock    time.Time
}

func newMemStore() *memStore {
	return &memStore{nextID: 1, clock: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (m *memStore) Create(_ context.Context, v domain.Visitor) (domain.Visitor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v.ID = m.nextID
	m.nextID++
	m.clock = m.clock.Add(time.Second)
	v.CreatedAt = m.clock
	m.visitors = append(m.visitors, v)
	return v, nil
}

func (m *memStore) GetByID(_ context.Context, id int64) (domain.Visitor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.visitors {
		if v.ID == id {
			return v, nil
		}
	}
	return domain.Visitor{}, domain.ErrNotFound
}

func (m *memStore) List(_ context.Context) ([]domain.Visitor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.visitors), nil
}

func (m *memStore) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, v := range m.visitors {
		if v.ID == id {
			m.visitors = slices.Delete(m.visitors, i, i+1)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memStore) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.visitors), nil
}

// WithinTx restores the visitor slice when fn fails. The ID counter is not
// restored, matching Postgres sequences which are not transactional.
func (m *memStore) WithinTx(_ context.Context, fn func(repo.VisitorRepo) error) error {
	m.mu.Lock()
	snapshot := slices.Clone(m.visitors)
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.visitors = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

var (
	_ repo.VisitorRepo = (*memStore)(nil)
	_ repo.Transactor  = (*memStore)(nil)
)

// ---- function-field mocks ------------------------------------------------------

// mockVisitorRepo is a hand-written test double for repo.VisitorRepo.
// Each method is a function field; set only the ones your test needs.
type mockVisitorRepo struct {
	create  func(ctx context.Context, v domain.Visitor) (domain.Visitor, error)
	getByID func(ctx context.Context, id int64) (domain.Visitor, error)
	list    func(ctx context.Context) ([]domain.Visitor, error)
	delete  func(ctx context.Context, id int64) error
	count   func(ctx context.Context) (int, error)
}

func (m *mockVisitorRepo) Create(ctx context.Context, v domain.Visitor) (domain.Visitor, error) {
	return m.create(ctx, v)
}
func (m *mockVisitorRepo) GetByID(ctx context.Context, id int64) (domain.Visitor, error) {
	return m.getByID(ctx, id)
}
func (m *mockVisitorRepo) List(ctx context.Context) ([]domain.Visitor, error) {
	return m.list(ctx)
}
func (m *mockVisitorRepo) Delete(ctx context.Context, id int64) error {
	return m.delete(ctx, id)
}
func (m *mockVisitorRepo) Count(ctx context.Context) (int, error) {
	return m.count(ctx)
}

var _ repo.VisitorRepo = (*mockVisitorRepo)(nil)

// passthroughTx runs fn directly against r, without transactional semantics.
type passthroughTx struct{ r repo.VisitorRepo }

func (p passthroughTx) WithinTx(_ context.Context, fn func(repo.VisitorRepo) error) error {
	return fn(p.r)
}

// ---- mirror fake ---------------------------------------------------------------

// recordingMirror keeps every rebuilt row set in memory and can be told to
// fail, standing in for a file held open by a spreadsheet program.
type recordingMirror struct {
	mu       sync.Mutex
	rebuilds [][]domain.ExportRow
	fail     bool
}

var errLocked = errors.New("file is locked by another process")

func (m *recordingMirror) Rebuild(_ context.Context, visitors []domain.Visitor) (domain.RebuildResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return domain.RebuildResult{}, &domain.MirrorWriteError{Path: "/tmp/log.xlsx", Err: errLocked}
	}
	rows := mirror.Project(visitors)
	m.rebuilds = append(m.rebuilds, rows)
	return domain.RebuildResult{Path: "/tmp/log.xlsx", Format: domain.FormatXLSX, Rows: len(rows)}, nil
}

func (m *recordingMirror) Status() domain.MirrorStatus {
	return domain.MirrorStatus{Path: "/tmp/log.xlsx", Format: domain.FormatXLSX}
}

func (m *recordingMirror) Open() (*os.File, os.FileInfo, error) {
	return nil, nil, domain.ErrNotFound
}

func (m *recordingMirror) ContentType() string { return "application/octet-stream" }

func (m *recordingMirror) setFail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = fail
}

func (m *recordingMirror) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rebuilds)
}

func (m *recordingMirror) latest() []domain.ExportRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.rebuilds) == 0 {
		return nil
	}
	return m.rebuilds[len(m.rebuilds)-1]
}

func (m *recordingMirror) all() [][]domain.ExportRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.rebuilds)
}

var _ service.Mirror = (*recordingMirror)(nil)

// ---- locker --------------------------------------------------------------------

// fakeLocker is an in-memory repo.Locker. It tracks whether the lock is held
// and fails every Lock call while err is set.
type fakeLocker struct {
	mu    sync.Mutex
	held  bool
	locks int
	err   error
}

func (l *fakeLocker) Lock(_ context.Context) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	l.held = true
	l.locks++
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.held = false
	}, nil
}

func (l *fakeLocker) isHeld() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}

func (l *fakeLocker) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.locks
}

var _ repo.Locker = (*fakeLocker)(nil)

// ---- wiring --------------------------------------------------------------------

type harness struct {
	store    *memStore
	locker   *fakeLocker
	mirror   *recordingMirror
	export   *service.ExportService
	visitors *service.VisitorService
}

func newHarness() *harness {
	store := newMemStore()
	locker := &fakeLocker{}
	m := &recordingMirror{}
	export := service.NewExportService(store, locker, m, nil)
	return &harness{
		store:    store,
		locker:   locker,
		mirror:   m,
		export:   export,
		visitors: service.NewVisitorService(store, store, export, nil),
	}
}

func validVisitor(name string) domain.Visitor {
	return domain.Visitor{
		Name:      name,
		Phone:     "111",
		Email:     "a@x.com",
		Date:      "2026-01-01",
		Purpose:   "Meeting",
		MeetsWhom: "Bob",
	}
}
