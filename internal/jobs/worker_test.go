package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/sitelore-ai/sitelore/internal/domain"
)

// MockJobProcessor is a mock implementation of JobProcessor
type MockJobProcessor struct {
	mock.Mock
}

func (m *MockJobProcessor) ProcessJobs(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockSourceLister is a mock implementation of SourceLister
type MockSourceLister struct {
	mock.Mock
}

func (m *MockSourceLister) List(ctx context.Context) ([]*domain.Source, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Source), args.Error(1)
}

// MockCrawlStarter is a mock implementation of CrawlStarter
type MockCrawlStarter struct {
	mock.Mock
}

func (m *MockCrawlStarter) Start(ctx context.Context, url string) (string, error) {
	args := m.Called(ctx, url)
	return args.String(0), args.Error(1)
}

// TestWorker_StartStop tests the worker start and stop functionality
func TestWorker_StartStop(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(250 * time.Millisecond)

	worker.Stop()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

// TestWorker_ContextCancellation tests worker stops on context cancellation
func TestWorker_ContextCancellation(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(150 * time.Millisecond)

	cancel()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

func TestCrawlResumeWorker_NoActiveSources(t *testing.T) {
	lister := new(MockSourceLister)
	starter := new(MockCrawlStarter)

	lister.On("List", mock.Anything).Return([]*domain.Source{
		{URL: "https://done.example.com", Status: domain.CrawlStatusCompleted},
		{URL: "https://failed.example.com", Status: domain.CrawlStatusFailed},
	}, nil)

	worker := NewCrawlResumeWorker(lister, starter)
	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	starter.AssertNotCalled(t, "Start", mock.Anything, mock.Anything)
}

func TestCrawlResumeWorker_ResumesOrphans(t *testing.T) {
	lister := new(MockSourceLister)
	starter := new(MockCrawlStarter)

	lister.On("List", mock.Anything).Return([]*domain.Source{
		{URL: "https://stuck.example.com", Status: domain.CrawlStatusRunning},
		{URL: "https://queued.example.com", Status: domain.CrawlStatusQueued},
		{URL: "https://done.example.com", Status: domain.CrawlStatusCompleted},
	}, nil)
	starter.On("Start", mock.Anything, "https://stuck.example.com").Return("https://stuck.example.com", nil)
	starter.On("Start", mock.Anything, "https://queued.example.com").Return("https://queued.example.com", nil)

	worker := NewCrawlResumeWorker(lister, starter)
	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	starter.AssertExpectations(t)
	starter.AssertNumberOfCalls(t, "Start", 2)
}

func TestCrawlResumeWorker_SkipsLiveJobs(t *testing.T) {
	lister := new(MockSourceLister)
	starter := new(MockCrawlStarter)

	lister.On("List", mock.Anything).Return([]*domain.Source{
		{URL: "https://live.example.com", Status: domain.CrawlStatusRunning},
	}, nil)
	starter.On("Start", mock.Anything, "https://live.example.com").
		Return("", domain.ErrCrawlAlreadyRunning)

	worker := NewCrawlResumeWorker(lister, starter)
	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	starter.AssertExpectations(t)
}

func TestCrawlResumeWorker_ListError(t *testing.T) {
	lister := new(MockSourceLister)
	starter := new(MockCrawlStarter)

	lister.On("List", mock.Anything).Return(nil, errors.New("database error"))

	worker := NewCrawlResumeWorker(lister, starter)
	err := worker.ProcessJobs(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list sources")
}
