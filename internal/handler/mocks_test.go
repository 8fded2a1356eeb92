package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pkordes/visitor-logbook/internal/domain"
	"github.com/pkordes/visitor-logbook/internal/handler"
)

// mockVisitorServicer is a test double for handler.VisitorServicer.
// Set only the method fields your test needs.
type mockVisitorServicer struct {
	create func(ctx context.Context, v domain.Visitor) (domain.Visitor, error)
	list   func(ctx context.Context) ([]domain.Visitor, error)
	get    func(ctx context.Context, id int64) (domain.Visitor, error)
	delete func(ctx context.Context, id int64) error
	count  func(ctx context.Context) (int, error)
}

func (m *mockVisitorServicer) Create(ctx context.Context, v domain.Visitor) (domain.Visitor, error) {
	return m.create(ctx, v)
}
func (m *mockVisitorServicer) List(ctx context.Context) ([]domain.Visitor, error) {
	return m.list(ctx)
}
func (m *mockVisitorServicer) Get(ctx context.Context, id int64) (domain.Visitor, error) {
	return m.get(ctx, id)
}
func (m *mockVisitorServicer) Delete(ctx context.Context, id int64) error {
	return m.delete(ctx, id)
}
func (m *mockVisitorServicer) Count(ctx context.Context) (int, error) {
	return m.count(ctx)
}

// mockExportServicer is a test double for handler.ExportServicer.
type mockExportServicer struct {
	rebuild      func(ctx context.Context) (domain.RebuildResult, error)
	status       func(ctx context.Context) domain.MirrorStatus
	openArtifact func(ctx context.Context) (domain.Artifact, error)
}

func (m *mockExportServicer) Rebuild(ctx context.Context) (domain.RebuildResult, error) {
	return m.rebuild(ctx)
}
func (m *mockExportServicer) Status(ctx context.Context) domain.MirrorStatus {
	return m.status(ctx)
}
func (m *mockExportServicer) OpenArtifact(ctx context.Context) (domain.Artifact, error) {
	return m.openArtifact(ctx)
}

// compile-time checks
var (
	_ handler.VisitorServicer = (*mockVisitorServicer)(nil)
	_ handler.ExportServicer  = (*mockExportServicer)(nil)
)

// ---- helpers ---------------------------------------------------------------

// newHTTPHandler wires a Server with the given mocks, the same way main.go
// mounts it in production (minus middleware).
func newHTTPHandler(visitors handler.VisitorServicer, export handler.ExportServicer) http.Handler {
	return handler.NewServer(visitors, export, nil).Handler()
}

func visitorFixture(id int64, name string) domain.Visitor {
	return domain.Visitor{
		ID:        id,
		Name:      name,
		Phone:     "555-0100",
		Email:     "a@x.io",
		Date:      "2024-05-01",
		Purpose:   "Interview",
		MeetsWhom: "Bob",
		CreatedAt: time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
	}
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

// decodeError reads the {"error": "..."} body.
func decodeError(t *testing.T, body *bytes.Buffer) string {
	t.Helper()
	var resp struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(body).Decode(&resp))
	return resp.Error
}
