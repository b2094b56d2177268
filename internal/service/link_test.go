package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/linkpulse/linkpulse/internal/cache"
	"github.com/linkpulse/linkpulse/internal/metrics"
	"github.com/linkpulse/linkpulse/internal/model"
	"github.com/linkpulse/linkpulse/internal/repository"
)

type linkServiceDeps struct {
	links   *mockLinkStore
	counter *mockClickCounter
	clicks  *mockClickLogReader
	metrics *metrics.InMemoryRecorder
}

func newTestLinkService(t *testing.T) (*LinkService, linkServiceDeps) {
	t.Helper()
	deps := linkServiceDeps{
		links:   &mockLinkStore{},
		counter: &mockClickCounter{},
		clicks:  &mockClickLogReader{},
		metrics: metrics.NewInMemory(),
	}
	t.Cleanup(func() {
		deps.links.AssertExpectations(t)
		deps.counter.AssertExpectations(t)
		deps.clicks.AssertExpectations(t)
	})
	svc := NewLinkService(deps.links, deps.counter, deps.clicks, discardLogger(), deps.metrics)
	return svc, deps
}

var shortCodePattern = regexp.MustCompile(`^[A-Za-z0-9]{6}$`)

func TestValidateURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		url     string
		wantErr error
	}{
		{"empty", "", ErrInvalidURL},
		{"not a url", "hello world", ErrInvalidURL},
		{"relative", "/path/only", ErrInvalidURL},
		{"invalid scheme", "ftp://example.com/file", ErrInvalidURL},
		{"missing host", "https://", ErrInvalidURL},
		{"too long", "https://example.com/" + strings.Repeat("a", maxURLLength), ErrURLTooLong},
		{"valid https", "https://example.com/path?q=1", nil},
		{"valid http", "http://example.com", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := validateURL(tt.url)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("validateURL(%q) = %v, want %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestGenerateShortCode(t *testing.T) {
	t.Parallel()

	for i := 0; i < 50; i++ {
		code, err := generateShortCode()
		require.NoError(t, err)
		assert.Regexp(t, shortCodePattern, code)
	}
}

func TestShorten_CreatesLinkAndInitializesCounter(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, deps := newTestLinkService(t)

	deps.links.On("ShortCodeExists", ctx, mock.AnythingOfType("string")).Return(false, nil).Once()
	deps.links.On("CreateLink", ctx, mock.MatchedBy(func(l *model.Link) bool {
		return l.OriginalURL == "https://example.com" && shortCodePattern.MatchString(l.ShortCode) && l.ID != ""
	})).Return(nil).Once()
	deps.counter.On("InitClicks", ctx, mock.AnythingOfType("string")).Return(nil).Once()

	link, err := svc.Shorten(ctx, "https://example.com")

	require.NoError(t, err)
	assert.Equal(t, "https://example.com", link.OriginalURL)
	assert.Regexp(t, shortCodePattern, link.ShortCode)
	deps.counter.AssertCalled(t, "InitClicks", ctx, link.ShortCode)
	assert.Equal(t, uint64(1), deps.metrics.Snapshot().LinksCreated)
}

func TestShorten_InvalidURLHasNoSideEffects(t *testing.T) {
	t.Parallel()
	svc, deps := newTestLinkService(t)

	_, err := svc.Shorten(context.Background(), "")

	assert.ErrorIs(t, err, ErrInvalidURL)
	deps.links.AssertNotCalled(t, "CreateLink", mock.Anything, mock.Anything)
	deps.counter.AssertNotCalled(t, "InitClicks", mock.Anything, mock.Anything)
}

func TestShorten_RetriesOnCollision(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, deps := newTestLinkService(t)

	codes := []string{"taken1", "raced1", "free01"}
	svc.generateCode = func() (string, error) {
		code := codes[0]
		codes = codes[1:]
		return code, nil
	}

	deps.links.On("ShortCodeExists", ctx, "taken1").Return(true, nil).Once()
	deps.links.On("ShortCodeExists", ctx, "raced1").Return(false, nil).Once()
	deps.links.On("CreateLink", ctx, mock.MatchedBy(func(l *model.Link) bool { return l.ShortCode == "raced1" })).
		Return(repository.ErrShortCodeExists).Once()
	deps.links.On("ShortCodeExists", ctx, "free01").Return(false, nil).Once()
	deps.links.On("CreateLink", ctx, mock.MatchedBy(func(l *model.Link) bool { return l.ShortCode == "free01" })).
		Return(nil).Once()
	deps.counter.On("InitClicks", ctx, "free01").Return(nil).Once()

	link, err := svc.Shorten(ctx, "https://example.com")

	require.NoError(t, err)
	assert.Equal(t, "free01", link.ShortCode)
}

func TestShorten_CounterInitFailureStillSucceeds(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, deps := newTestLinkService(t)

	deps.links.On("ShortCodeExists", ctx, mock.Anything).Return(false, nil).Once()
	deps.links.On("CreateLink", ctx, mock.Anything).Return(nil).Once()
	deps.counter.On("InitClicks", ctx, mock.Anything).Return(errors.New("redis down")).Once()

	link, err := svc.Shorten(ctx, "https://example.com")

	require.NoError(t, err)
	assert.NotNil(t, link)
}

func TestShorten_StoreFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, deps := newTestLinkService(t)

	deps.links.On("ShortCodeExists", ctx, mock.Anything).Return(false, nil).Once()
	deps.links.On("CreateLink", ctx, mock.Anything).Return(errors.New("connection reset")).Once()

	_, err := svc.Shorten(ctx, "https://example.com")

	assert.Error(t, err)
	deps.counter.AssertNotCalled(t, "InitClicks", mock.Anything, mock.Anything)
}

func TestStats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		counter    int64
		counterErr error
		wantClicks int64
		wantErr    bool
	}{
		{"counter value", 5, nil, 5, false},
		{"unset counter reads as zero", 0, cache.ErrCounterUnset, 0, false},
		{"counter failure", 0, errors.New("redis down"), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			svc, deps := newTestLinkService(t)

			deps.links.On("GetLinkByShortCode", ctx, "abc123").
				Return(&model.Link{ShortCode: "abc123", OriginalURL: "https://example.com"}, nil).Once()
			deps.counter.On("GetClicks", ctx, "abc123").Return(tt.counter, tt.counterErr).Once()

			stats, err := svc.Stats(ctx, "abc123")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "https://example.com", stats.OriginalURL)
			assert.Equal(t, tt.wantClicks, stats.Clicks)
		})
	}
}

func TestStats_NotFound(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, deps := newTestLinkService(t)

	deps.links.On("GetLinkByShortCode", ctx, "nope").Return(nil, repository.ErrLinkNotFound).Once()

	_, err := svc.Stats(ctx, "nope")

	assert.ErrorIs(t, err, ErrLinkNotFound)
	deps.counter.AssertNotCalled(t, "GetClicks", mock.Anything, mock.Anything)
}

func TestAudit_ReportsDrift(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, deps := newTestLinkService(t)

	deps.links.On("GetLinkByShortCode", ctx, "abc123").Return(&model.Link{ShortCode: "abc123"}, nil).Once()
	deps.counter.On("GetClicks", ctx, "abc123").Return(int64(5), nil).Once()
	deps.clicks.On("CountByShortCode", ctx, "abc123").Return(int64(4), nil).Once()

	audit, err := svc.Audit(ctx, "abc123")

	require.NoError(t, err)
	assert.Equal(t, int64(5), audit.CounterClicks)
	assert.Equal(t, int64(4), audit.LoggedClicks)
	assert.Equal(t, int64(1), audit.Drift)
	assert.False(t, audit.InSync())
}

func TestAudit_NotFound(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, deps := newTestLinkService(t)

	deps.links.On("GetLinkByShortCode", ctx, "nope").Return(nil, repository.ErrLinkNotFound).Once()

	_, err := svc.Audit(ctx, "nope")
	assert.ErrorIs(t, err, ErrLinkNotFound)
}

func TestRecentClicks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, deps := newTestLinkService(t)

	rows := []*model.ClickLogRecord{{ID: "r1", ShortCode: "abc123"}}
	deps.links.On("GetLinkByShortCode", ctx, "abc123").Return(&model.Link{ShortCode: "abc123"}, nil).Once()
	deps.clicks.On("ListByShortCode", ctx, "abc123", 10).Return(rows, nil).Once()

	got, err := svc.RecentClicks(ctx, "abc123", 10)

	require.NoError(t, err)
	assert.Equal(t, rows, got)
}
