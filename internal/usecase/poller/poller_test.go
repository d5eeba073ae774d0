package poller

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"paper-reader/internal/application/port/output"
	"paper-reader/internal/application/service"
	"paper-reader/internal/domain/entity"
	"paper-reader/internal/infrastructure/logger"
	"paper-reader/internal/infrastructure/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusStep struct {
	report *entity.StatusReport
	err    error
}

// mockBackend replays scripted status steps; the last step repeats.
type mockBackend struct {
	mu        sync.Mutex
	taskID    string
	submitErr error
	steps     []statusStep

	submitted []entity.GenerationRequest
	queries   int
}

func (m *mockBackend) Name() string { return "mock" }

func (m *mockBackend) Submit(_ context.Context, req entity.GenerationRequest) (entity.TaskHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitted = append(m.submitted, req)
	if m.submitErr != nil {
		return entity.TaskHandle{}, m.submitErr
	}
	return entity.TaskHandle{ID: m.taskID, Backend: "mock"}, nil
}

func (m *mockBackend) Status(_ context.Context, handle entity.TaskHandle) (*entity.StatusReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries++
	if len(m.steps) == 0 {
		return &entity.StatusReport{Status: entity.TaskStatusPending}, nil
	}
	idx := m.queries - 1
	if idx >= len(m.steps) {
		idx = len(m.steps) - 1
	}
	return m.steps[idx].report, m.steps[idx].err
}

func (m *mockBackend) Queries() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queries
}

type mockFetcher struct {
	served map[string][]byte
	calls  []string
}

func (m *mockFetcher) Fetch(_ context.Context, ref entity.ArtifactRef) (*entity.Artifact, error) {
	if ref.IsInline() {
		return &entity.Artifact{Data: ref.Data, MimeType: ref.MimeType}, nil
	}
	m.calls = append(m.calls, ref.URL)
	data, ok := m.served[ref.URL]
	if !ok {
		return nil, fmt.Errorf("download artifact: unexpected status 404")
	}
	return &entity.Artifact{Data: data, MimeType: "image/png", SourceURL: ref.URL}, nil
}

type mockStore struct {
	err error
	// failOn makes only the named files fail.
	failOn map[string]error
	saved  []string
}

func (m *mockStore) SaveArtifact(dir string, artifact entity.Artifact) (string, error) {
	if err, ok := m.failOn[artifact.Filename]; ok {
		return "", err
	}
	if m.err != nil {
		return "", m.err
	}
	path := filepath.Join(dir, artifact.Filename)
	m.saved = append(m.saved, path)
	return path, nil
}

type sleepRecorder struct {
	waits []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return ctx.Err()
}

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func pending() statusStep {
	return statusStep{report: &entity.StatusReport{Status: entity.TaskStatusPending}}
}

func running() statusStep {
	return statusStep{report: &entity.StatusReport{Status: entity.TaskStatusRunning}}
}

func succeededWith(payload string) statusStep {
	return statusStep{report: &entity.StatusReport{Status: entity.TaskStatusSucceeded, Payload: []byte(payload)}}
}

func newUseCase(backend output.TaskBackend, fetcher output.ArtifactFetcher, store output.ArtifactStore, rec *sleepRecorder) *UseCase {
	cfg := DefaultConfig()
	cfg.MaxAttempts = 5
	return New(backend, fetcher, store, logger.NewNop(), cfg,
		WithSleep(rec.sleep),
		WithClock(func() time.Time { return fixedNow }),
	)
}

func TestGenerate_RedCircleScenario(t *testing.T) {
	imgBytes := []byte("\x89PNG red circle")
	backend := &mockBackend{
		taskID: "T1",
		steps: []statusStep{
			running(),
			running(),
			succeededWith(`{"output":{"task_id":"T1","task_status":"SUCCEEDED","results":[{"url":"https://example/img.png"}]}}`),
		},
	}
	fetcher := &mockFetcher{served: map[string][]byte{"https://example/img.png": imgBytes}}
	rec := &sleepRecorder{}
	dir := t.TempDir()

	uc := newUseCase(backend, fetcher, storage.NewFileStore(), rec)
	result, paths, err := uc.Generate(context.Background(), entity.GenerationRequest{
		Prompt: "a red circle",
		Size:   entity.Size{Width: 1024, Height: 1024},
		Count:  1,
	}, dir)
	require.NoError(t, err)

	assert.Equal(t, "T1", result.TaskID)
	assert.Equal(t, entity.TaskStatusSucceeded, result.Status)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, 3, backend.Queries())
	assert.Equal(t, []string{"https://example/img.png"}, fetcher.calls)
	assert.Equal(t, []time.Duration{DefaultPollInterval, DefaultPollInterval, DefaultPollInterval}, rec.waits)

	require.Len(t, paths, 1)
	assert.Equal(t, filepath.Join(dir, "image_20250314-092653_1.png"), paths[0])
	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, imgBytes, data)

	require.Len(t, backend.submitted, 1)
	assert.Equal(t, "a red circle", backend.submitted[0].Prompt)
	assert.Equal(t, entity.Size{Width: 1024, Height: 1024}, backend.submitted[0].Size)
}

func TestPoll_AlwaysPendingTimesOut(t *testing.T) {
	backend := &mockBackend{taskID: "T2", steps: []statusStep{pending()}}
	rec := &sleepRecorder{}
	uc := newUseCase(backend, &mockFetcher{}, &mockStore{}, rec)

	result := uc.Poll(context.Background(), entity.TaskHandle{ID: "T2"}, 10*time.Millisecond, 4)

	assert.Equal(t, entity.TaskStatusTimedOut, result.Status)
	assert.Equal(t, 4, result.Attempts)
	assert.Equal(t, 4, backend.Queries())
	assert.Empty(t, result.Artifacts)
	assert.ErrorIs(t, result.Err(), entity.ErrTaskTimedOut)
	assert.Len(t, rec.waits, 4)
}

func TestPoll_FailedOnFirstQuery(t *testing.T) {
	backend := &mockBackend{
		taskID: "T3",
		steps: []statusStep{
			{report: &entity.StatusReport{Status: entity.TaskStatusFailed, Message: "InvalidParameter: prompt too long"}},
			succeededWith(`{"output":{"results":[{"url":"https://example/never.png"}]}}`),
		},
	}
	fetcher := &mockFetcher{}
	uc := newUseCase(backend, fetcher, &mockStore{}, &sleepRecorder{})

	result := uc.Poll(context.Background(), entity.TaskHandle{ID: "T3"}, time.Second, 10)

	assert.Equal(t, entity.TaskStatusFailed, result.Status)
	assert.Equal(t, "InvalidParameter: prompt too long", result.Message)
	assert.Equal(t, 1, backend.Queries())
	assert.Empty(t, fetcher.calls)
	assert.ErrorIs(t, result.Err(), entity.ErrTaskFailed)
}

func TestPoll_TransientErrorsCountAgainstBudget(t *testing.T) {
	backend := &mockBackend{
		taskID: "T4",
		steps: []statusStep{
			{err: errors.New("connection reset")},
			{err: errors.New("status 502")},
			succeededWith(`{"data":[{"url":"https://example/a.png"}]}`),
		},
	}
	fetcher := &mockFetcher{served: map[string][]byte{"https://example/a.png": []byte("a")}}
	uc := newUseCase(backend, fetcher, &mockStore{}, &sleepRecorder{})

	result := uc.Poll(context.Background(), entity.TaskHandle{ID: "T4"}, time.Second, 3)
	assert.Equal(t, entity.TaskStatusSucceeded, result.Status)
	assert.Equal(t, 3, result.Attempts)

	backend = &mockBackend{taskID: "T5", steps: []statusStep{{err: errors.New("boom")}}}
	uc = newUseCase(backend, fetcher, &mockStore{}, &sleepRecorder{})

	result = uc.Poll(context.Background(), entity.TaskHandle{ID: "T5"}, time.Second, 3)
	assert.Equal(t, entity.TaskStatusTimedOut, result.Status)
	assert.Equal(t, 3, backend.Queries())
}

func TestPoll_SuccessWithoutArtifactIsFailure(t *testing.T) {
	backend := &mockBackend{taskID: "T6", steps: []statusStep{succeededWith(`{"output":{"task_status":"SUCCEEDED"}}`)}}
	uc := newUseCase(backend, &mockFetcher{}, &mockStore{}, &sleepRecorder{})

	result := uc.Poll(context.Background(), entity.TaskHandle{ID: "T6"}, time.Second, 5)

	assert.Equal(t, entity.TaskStatusFailed, result.Status)
	assert.Contains(t, result.Message, entity.ErrUnrecognizedResponseFormat.Error())
	assert.Equal(t, 1, backend.Queries())
}

func TestPoll_FetchFailureIsFailure(t *testing.T) {
	backend := &mockBackend{taskID: "T7", steps: []statusStep{succeededWith(`{"output":{"results":[{"url":"https://example/gone.png"}]}}`)}}
	uc := newUseCase(backend, &mockFetcher{}, &mockStore{}, &sleepRecorder{})

	result := uc.Poll(context.Background(), entity.TaskHandle{ID: "T7"}, time.Second, 5)

	assert.Equal(t, entity.TaskStatusFailed, result.Status)
	assert.Contains(t, result.Message, "retrieve artifact 1")
	assert.Empty(t, result.Artifacts)
}

func TestPoll_BackendDecodedArtifacts(t *testing.T) {
	backend := &mockBackend{taskID: "T8", steps: []statusStep{{report: &entity.StatusReport{
		Status: entity.TaskStatusSucceeded,
		Artifacts: []entity.ArtifactRef{
			{Data: []byte("one"), MimeType: "image/jpeg"},
			{Data: []byte("two"), MimeType: "image/webp"},
		},
	}}}}
	uc := newUseCase(backend, &mockFetcher{}, &mockStore{}, &sleepRecorder{})

	result := uc.Poll(context.Background(), entity.TaskHandle{ID: "T8"}, time.Second, 5)
	require.Equal(t, entity.TaskStatusSucceeded, result.Status)
	require.Len(t, result.Artifacts, 2)
	assert.Equal(t, "image_20250314-092653_1.jpg", result.Artifacts[0].Filename)
	assert.Equal(t, "image_20250314-092653_2.webp", result.Artifacts[1].Filename)
}

func TestPoll_CancelledWhileWaiting(t *testing.T) {
	backend := &mockBackend{taskID: "T9", steps: []statusStep{pending()}}
	cfg := DefaultConfig()
	uc := New(backend, &mockFetcher{}, &mockStore{}, logger.NewNop(), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for backend.Queries() < 2 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	result := uc.Poll(ctx, entity.TaskHandle{ID: "T9"}, 5*time.Millisecond, 1000)

	assert.Equal(t, entity.TaskStatusTimedOut, result.Status)
	assert.Less(t, result.Attempts, 1000)
	assert.Contains(t, result.Message, "cancelled")
}

func TestPersist(t *testing.T) {
	uc := newUseCase(&mockBackend{}, &mockFetcher{}, storage.NewFileStore(), &sleepRecorder{})

	t.Run("writes nothing unless succeeded", func(t *testing.T) {
		dir := t.TempDir()
		for _, status := range []entity.TaskStatus{entity.TaskStatusFailed, entity.TaskStatusTimedOut} {
			paths, err := uc.Persist(&entity.GenerationResult{TaskID: "x", Status: status}, dir)
			require.NoError(t, err)
			assert.Nil(t, paths)
		}
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("one file with the artifact bytes", func(t *testing.T) {
		dir := t.TempDir()
		result := &entity.GenerationResult{
			TaskID:    "x",
			Status:    entity.TaskStatusSucceeded,
			Artifacts: []entity.Artifact{{Data: []byte("bytes"), MimeType: "image/png"}},
		}
		paths, err := uc.Persist(result, dir)
		require.NoError(t, err)
		require.Len(t, paths, 1)
		assert.Equal(t, "image_20250314-092653_1.png", filepath.Base(paths[0]))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
		data, err := os.ReadFile(paths[0])
		require.NoError(t, err)
		assert.Equal(t, []byte("bytes"), data)
	})

	t.Run("does not overwrite", func(t *testing.T) {
		dir := t.TempDir()
		result := &entity.GenerationResult{
			Status:    entity.TaskStatusSucceeded,
			Artifacts: []entity.Artifact{{Data: []byte("new"), Filename: "same_1.png"}},
		}
		first, err := uc.Persist(result, dir)
		require.NoError(t, err)
		second, err := uc.Persist(result, dir)
		require.NoError(t, err)
		assert.NotEqual(t, first[0], second[0])
	})
}

func TestPersist_WriteFailure(t *testing.T) {
	uc := newUseCase(&mockBackend{}, &mockFetcher{}, &mockStore{err: errors.New("disk full")}, &sleepRecorder{})

	_, err := uc.Persist(&entity.GenerationResult{
		Status:    entity.TaskStatusSucceeded,
		Artifacts: []entity.Artifact{{Data: []byte("x")}},
	}, "out")
	assert.ErrorIs(t, err, entity.ErrPersist)
}

func TestPersist_KeepsWritingAfterFailure(t *testing.T) {
	store := &mockStore{failOn: map[string]error{
		"a.png": &entity.IOError{Path: "out/a.png", Err: errors.New("disk full")},
	}}
	uc := newUseCase(&mockBackend{}, &mockFetcher{}, store, &sleepRecorder{})

	paths, err := uc.Persist(&entity.GenerationResult{
		TaskID: "T",
		Status: entity.TaskStatusSucceeded,
		Artifacts: []entity.Artifact{
			{Data: []byte("a"), Filename: "a.png"},
			{Data: []byte("b"), Filename: "b.png"},
		},
	}, "out")

	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrPersist)
	var ioErr *entity.IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, "out/a.png", ioErr.Path)

	assert.Equal(t, []string{filepath.Join("out", "b.png")}, paths)
	assert.Equal(t, paths, store.saved)
}

func TestPersist_JoinsEveryFailure(t *testing.T) {
	uc := newUseCase(&mockBackend{}, &mockFetcher{}, &mockStore{err: errors.New("read-only file system")}, &sleepRecorder{})

	paths, err := uc.Persist(&entity.GenerationResult{
		Status:    entity.TaskStatusSucceeded,
		Artifacts: []entity.Artifact{{Data: []byte("a")}, {Data: []byte("b")}},
	}, "out")

	assert.Empty(t, paths)
	require.Error(t, err)
	assert.Equal(t, 2, strings.Count(err.Error(), "read-only file system"))
}

func TestSubmit_Errors(t *testing.T) {
	uc := newUseCase(&mockBackend{taskID: "T"}, &mockFetcher{}, &mockStore{}, &sleepRecorder{})
	_, err := uc.Submit(context.Background(), entity.GenerationRequest{})
	assert.ErrorIs(t, err, entity.ErrSubmission)

	backend := &mockBackend{submitErr: errors.New("dial tcp: refused")}
	uc = newUseCase(backend, &mockFetcher{}, &mockStore{}, &sleepRecorder{})
	_, err = uc.Submit(context.Background(), entity.GenerationRequest{Prompt: "p"})
	assert.ErrorIs(t, err, entity.ErrSubmission)
	assert.Equal(t, 0, backend.Queries())

	uc = newUseCase(&mockBackend{}, &mockFetcher{}, &mockStore{}, &sleepRecorder{})
	_, err = uc.Submit(context.Background(), entity.GenerationRequest{Prompt: "p"})
	assert.ErrorIs(t, err, entity.ErrSubmission)
}

func TestSubmit_Defaults(t *testing.T) {
	backend := &mockBackend{taskID: "T"}
	uc := newUseCase(backend, &mockFetcher{}, &mockStore{}, &sleepRecorder{})

	_, err := uc.Submit(context.Background(), entity.GenerationRequest{Prompt: "p"})
	require.NoError(t, err)
	require.Len(t, backend.submitted, 1)
	assert.Equal(t, entity.DefaultSize, backend.submitted[0].Size)
	assert.Equal(t, 1, backend.submitted[0].Count)
}

func TestGenerate_NamedRequest(t *testing.T) {
	backend := &mockBackend{taskID: "T", steps: []statusStep{succeededWith(`{"data":[{"url":"https://example/a.png"}]}`)}}
	fetcher := &mockFetcher{served: map[string][]byte{"https://example/a.png": []byte("a")}}
	dir := t.TempDir()

	uc := newUseCase(backend, fetcher, storage.NewFileStore(), &sleepRecorder{})
	_, paths, err := uc.Generate(context.Background(), entity.GenerationRequest{Prompt: "p", Name: "核心 概念/图"}, dir)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, "核心_概念图_1.png", filepath.Base(paths[0]))
}

func TestGenerate_TimeoutReturnsTaskError(t *testing.T) {
	backend := &mockBackend{taskID: "T", steps: []statusStep{running()}}
	dir := t.TempDir()
	uc := newUseCase(backend, &mockFetcher{}, storage.NewFileStore(), &sleepRecorder{})

	result, paths, err := uc.Generate(context.Background(), entity.GenerationRequest{Prompt: "p"}, dir)
	assert.ErrorIs(t, err, entity.ErrTaskTimedOut)
	assert.Equal(t, entity.TaskStatusTimedOut, result.Status)
	assert.Equal(t, 5, backend.Queries())
	assert.Nil(t, paths)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// batchBackend gives each submission its own task id; odd tasks fail.
type batchBackend struct {
	submits int
}

func (b *batchBackend) Name() string { return "batch" }

func (b *batchBackend) Submit(_ context.Context, req entity.GenerationRequest) (entity.TaskHandle, error) {
	b.submits++
	return entity.TaskHandle{ID: fmt.Sprintf("B%d", b.submits)}, nil
}

func (b *batchBackend) Status(_ context.Context, handle entity.TaskHandle) (*entity.StatusReport, error) {
	if handle.ID == "B2" {
		return &entity.StatusReport{Status: entity.TaskStatusFailed, Message: "DataInspectionFailed"}, nil
	}
	return &entity.StatusReport{
		Status:    entity.TaskStatusSucceeded,
		Artifacts: []entity.ArtifactRef{{Data: []byte(handle.ID), MimeType: "image/png"}},
	}, nil
}

func TestGenerateBatch(t *testing.T) {
	rec := &sleepRecorder{}
	dir := t.TempDir()
	uc := newUseCase(&batchBackend{}, &mockFetcher{}, storage.NewFileStore(), rec)

	items := uc.GenerateBatch(context.Background(), []entity.GenerationRequest{
		{Prompt: "one", Name: "first"},
		{Prompt: "two", Name: "second"},
		{Prompt: "three", Name: "third"},
	}, dir)

	require.Len(t, items, 3)
	assert.NoError(t, items[0].Err)
	assert.ErrorIs(t, items[1].Err, entity.ErrTaskFailed)
	assert.NoError(t, items[2].Err)
	assert.Equal(t, "third_1.png", filepath.Base(items[2].Paths[0]))

	// each item waits one poll interval, plus the delay before items 2 and 3
	delays := 0
	for _, d := range rec.waits {
		if d == DefaultRequestDelay {
			delays++
		}
	}
	assert.Equal(t, 2, delays)
}

func TestGenerateBatch_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	backend := &batchBackend{}
	uc := newUseCase(backend, &mockFetcher{}, &mockStore{}, &sleepRecorder{})
	items := uc.GenerateBatch(ctx, []entity.GenerationRequest{{Prompt: "a"}, {Prompt: "b"}}, t.TempDir())

	require.Len(t, items, 2)
	assert.ErrorIs(t, items[0].Err, context.Canceled)
	assert.ErrorIs(t, items[1].Err, context.Canceled)
	assert.Equal(t, 0, backend.submits)
}

func TestNewFromRegistry(t *testing.T) {
	registry := service.NewBackendRegistry()
	var got output.BackendConfig
	registry.Register("mock", func(cfg output.BackendConfig) (output.TaskBackend, error) {
		got = cfg
		return &mockBackend{taskID: "T"}, nil
	})

	cfg := DefaultConfig()
	cfg.APIKey = "sk-1"
	cfg.Model = "wanx-v1"
	uc, err := NewFromRegistry(registry, "mock", &mockFetcher{}, &mockStore{}, logger.NewNop(), cfg)
	require.NoError(t, err)
	assert.NotNil(t, uc)
	assert.Equal(t, "sk-1", got.APIKey)
	assert.Equal(t, "wanx-v1", got.Model)

	cfg.MaxAttempts = 0
	_, err = NewFromRegistry(registry, "mock", &mockFetcher{}, &mockStore{}, logger.NewNop(), cfg)
	assert.Error(t, err)
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), 0))
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}

func TestSanitizeStem(t *testing.T) {
	assert.Equal(t, "figure_1", sanitizeStem(" figure 1 "))
	assert.Equal(t, "etcpasswd", sanitizeStem("../etc/passwd"))
	assert.Equal(t, "", sanitizeStem("///"))
	assert.Equal(t, ".jpg", extensionFor("IMAGE/JPEG"))
	assert.Equal(t, ".png", extensionFor(""))
}
