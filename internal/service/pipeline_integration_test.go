//go:build integration

package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/linkpulse/linkpulse/internal/analytics"
	"github.com/linkpulse/linkpulse/internal/cache"
	"github.com/linkpulse/linkpulse/internal/metrics"
	"github.com/linkpulse/linkpulse/internal/model"
	"github.com/linkpulse/linkpulse/internal/repository"
	"github.com/linkpulse/linkpulse/internal/testutil"
)

// PipelineSuite runs the redirect path and the log consumer against real
// PostgreSQL and Redis.
type PipelineSuite struct {
	suite.Suite
	ctx      context.Context
	repo     *repository.Repository
	clickLog *repository.ClickLogRepository
	cache    *cache.Cache
}

func (s *PipelineSuite) SetupSuite() {
	s.ctx = context.Background()

	repo, err := repository.New(s.ctx, testutil.StartPostgres(s.T()))
	s.Require().NoError(err)
	s.Require().NoError(repo.Migrate(s.ctx))
	s.repo = repo
	s.clickLog = repository.NewClickLogRepository(repo)

	c, err := cache.New(s.ctx, testutil.StartRedis(s.T()))
	s.Require().NoError(err)
	s.cache = c
}

func (s *PipelineSuite) TearDownSuite() {
	if s.cache != nil {
		_ = s.cache.Close()
	}
	if s.repo != nil {
		s.repo.Close()
	}
}

func (s *PipelineSuite) SetupTest() {
	_, err := s.repo.Pool().Exec(s.ctx, "TRUNCATE links, click_logs")
	s.Require().NoError(err)
	s.Require().NoError(testutil.FlushRedis(s.ctx, s.cache.Client()))
}

func TestPipelineSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}
	suite.Run(t, new(PipelineSuite))
}

// flakyWriter fails the first failN appends.
type flakyWriter struct {
	next  analytics.ClickLogWriter
	failN int32
	calls atomic.Int32
}

func (w *flakyWriter) Append(ctx context.Context, rec *model.ClickLogRecord) error {
	if w.calls.Add(1) <= w.failN {
		return errors.New("database unavailable")
	}
	return w.next.Append(ctx, rec)
}

type pipeline struct {
	links     *LinkService
	redirects *RedirectService
	channel   analytics.Channel
	publisher *analytics.Publisher
	recorder  *metrics.InMemoryRecorder
}

func (s *PipelineSuite) newPipeline(mode analytics.AckMode) *pipeline {
	recorder := metrics.NewInMemory()

	channel := analytics.NewRedisStream(s.cache.Client(), analytics.RedisStreamOptions{
		Stream:       "clicks_queue",
		ConsumerID:   testutil.UniqueID("consumer"),
		AckMode:      mode,
		BlockTimeout: 100 * time.Millisecond,
	})
	s.Require().NoError(channel.Declare(s.ctx))

	publisher := analytics.NewPublisher(channel, discardLogger(), recorder, analytics.PublisherOptions{
		PublishTimeout: time.Second,
		BufferSize:     64,
		FailOpen:       true,
	})
	publisher.Start()
	s.T().Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = publisher.Shutdown(ctx)
	})

	return &pipeline{
		links:     NewLinkService(s.repo, s.cache, s.clickLog, discardLogger(), recorder),
		redirects: NewRedirectService(s.repo, s.cache, publisher, discardLogger(), recorder),
		channel:   channel,
		publisher: publisher,
		recorder:  recorder,
	}
}

func (s *PipelineSuite) runConsumer(p *pipeline, writer analytics.ClickLogWriter) {
	consumer := analytics.NewConsumer(p.channel, writer, discardLogger(), p.recorder)
	consumer.SetRetryDelay(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = consumer.Run(ctx)
	}()
	s.T().Cleanup(func() {
		cancel()
		<-done
	})
}

func (s *PipelineSuite) TestStatsZeroBeforeAnyRedirect() {
	p := s.newPipeline(analytics.AckOnReceipt)

	link, err := p.links.Shorten(s.ctx, "https://example.com/fresh")
	s.Require().NoError(err)

	stats, err := p.links.Stats(s.ctx, link.ShortCode)
	s.Require().NoError(err)
	s.Equal(int64(0), stats.Clicks)
	s.Equal("https://example.com/fresh", stats.OriginalURL)
}

func (s *PipelineSuite) TestConcurrentRedirectsReachCounterAndLog() {
	p := s.newPipeline(analytics.AckOnReceipt)
	s.runConsumer(p, s.clickLog)

	link, err := p.links.Shorten(s.ctx, "https://example.com/landing")
	s.Require().NoError(err)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dest, err := p.redirects.Resolve(s.ctx, link.ShortCode, "")
			assert.NoError(s.T(), err)
			assert.Equal(s.T(), "https://example.com/landing", dest)
		}()
	}
	wg.Wait()

	stats, err := p.links.Stats(s.ctx, link.ShortCode)
	s.Require().NoError(err)
	s.Equal(int64(5), stats.Clicks)

	s.Require().Eventually(func() bool {
		n, err := s.clickLog.CountByShortCode(s.ctx, link.ShortCode)
		return err == nil && n == 5
	}, 10*time.Second, 50*time.Millisecond)

	records, err := p.links.RecentClicks(s.ctx, link.ShortCode, 10)
	s.Require().NoError(err)
	s.Require().Len(records, 5)
	for _, rec := range records {
		s.Equal(model.UnknownUserAgent, rec.UserAgent)
	}

	audit, err := p.links.Audit(s.ctx, link.ShortCode)
	s.Require().NoError(err)
	s.True(audit.InSync())
}

func (s *PipelineSuite) TestOnReceiptPersistFailureLosesEvent() {
	p := s.newPipeline(analytics.AckOnReceipt)
	writer := &flakyWriter{next: s.clickLog, failN: 1}
	s.runConsumer(p, writer)

	link, err := p.links.Shorten(s.ctx, "https://example.com/lossy")
	s.Require().NoError(err)

	_, err = p.redirects.Resolve(s.ctx, link.ShortCode, "curl/8.0")
	s.Require().NoError(err)

	s.Require().Eventually(func() bool {
		return p.recorder.Snapshot().AnalyticsEventsLost == 1
	}, 10*time.Second, 50*time.Millisecond)

	// Nothing is redelivered: the broker forgot the message on receipt.
	time.Sleep(300 * time.Millisecond)
	n, err := s.clickLog.CountByShortCode(s.ctx, link.ShortCode)
	s.Require().NoError(err)
	s.Equal(int64(0), n)

	audit, err := p.links.Audit(s.ctx, link.ShortCode)
	s.Require().NoError(err)
	s.Equal(int64(1), audit.CounterClicks)
	s.Equal(int64(1), audit.Drift)
}

func (s *PipelineSuite) TestUnknownCodeHasNoSideEffects() {
	p := s.newPipeline(analytics.AckOnReceipt)

	_, err := p.redirects.Resolve(s.ctx, "nope42", "curl/8.0")
	s.Require().ErrorIs(err, ErrLinkNotFound)

	_, err = s.cache.GetClicks(s.ctx, "nope42")
	s.ErrorIs(err, cache.ErrCounterUnset)

	depth, err := p.channel.Depth(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(0), depth)
}
