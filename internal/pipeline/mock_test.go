package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/minesite-cli/internal/model"
	"github.com/sells-group/minesite-cli/internal/store"
)

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateRun(ctx context.Context, edgarRoot, gazetteer string) (*model.Run, error) {
	args := m.Called(ctx, edgarRoot, gazetteer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary model.RunSummary) error {
	args := m.Called(ctx, runID, status, summary)
	return args.Error(0)
}

func (m *mockStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Run), args.Error(1)
}

func (m *mockStore) SaveSites(ctx context.Context, runID string, sites []model.ResolvedSite) error {
	args := m.Called(ctx, runID, sites)
	return args.Error(0)
}

func (m *mockStore) ListSites(ctx context.Context, runID string) ([]model.ResolvedSite, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ResolvedSite), args.Error(1)
}

func (m *mockStore) RecordDownload(ctx context.Context, d model.Download) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *mockStore) HasDownload(ctx context.Context, source, key string) (bool, error) {
	args := m.Called(ctx, source, key)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) ListDownloads(ctx context.Context, source string, limit int) ([]model.Download, error) {
	args := m.Called(ctx, source, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Download), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}
