package service

import (
	"context"
	"io"
	"log/slog"

	"github.com/stretchr/testify/mock"

	"github.com/linkpulse/linkpulse/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockLinkStore struct {
	mock.Mock
}

func (m *mockLinkStore) CreateLink(ctx context.Context, link *model.Link) error {
	return m.Called(ctx, link).Error(0)
}

func (m *mockLinkStore) GetLinkByShortCode(ctx context.Context, shortCode string) (*model.Link, error) {
	args := m.Called(ctx, shortCode)
	link, _ := args.Get(0).(*model.Link)
	return link, args.Error(1)
}

func (m *mockLinkStore) ShortCodeExists(ctx context.Context, shortCode string) (bool, error) {
	args := m.Called(ctx, shortCode)
	return args.Bool(0), args.Error(1)
}

type mockClickCounter struct {
	mock.Mock
}

func (m *mockClickCounter) InitClicks(ctx context.Context, shortCode string) error {
	return m.Called(ctx, shortCode).Error(0)
}

func (m *mockClickCounter) IncrementClicks(ctx context.Context, shortCode string) (int64, error) {
	args := m.Called(ctx, shortCode)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockClickCounter) GetClicks(ctx context.Context, shortCode string) (int64, error) {
	args := m.Called(ctx, shortCode)
	return args.Get(0).(int64), args.Error(1)
}

type mockClickLogReader struct {
	mock.Mock
}

func (m *mockClickLogReader) CountByShortCode(ctx context.Context, shortCode string) (int64, error) {
	args := m.Called(ctx, shortCode)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockClickLogReader) ListByShortCode(ctx context.Context, shortCode string, limit int) ([]*model.ClickLogRecord, error) {
	args := m.Called(ctx, shortCode, limit)
	records, _ := args.Get(0).([]*model.ClickLogRecord)
	return records, args.Error(1)
}

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) Dispatch(ctx context.Context, event model.ClickEvent) error {
	return m.Called(ctx, event).Error(0)
}
