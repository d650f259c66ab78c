package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/shopwise/dealagent/internal/common"
	"github.com/shopwise/dealagent/internal/interfaces"
	"github.com/shopwise/dealagent/internal/models"
	"github.com/shopwise/dealagent/internal/services/history"
)

type memoryKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryKV() *memoryKV {
	return &memoryKV{data: make(map[string][]byte)}
}

func (m *memoryKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.data[key]
	if !ok {
		return nil, interfaces.ErrKeyNotFound
	}
	return value, nil
}

func (m *memoryKV) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memoryKV) Has(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok, nil
}

// fakeSubscription is a channel-backed TaskSubscription under test control
type fakeSubscription struct {
	events    chan interfaces.TaskEvent
	closeOnce sync.Once
}

func newFakeSubscription() *fakeSubscription {
	return &fakeSubscription{events: make(chan interfaces.TaskEvent, 16)}
}

func (f *fakeSubscription) Events() <-chan interfaces.TaskEvent { return f.events }

func (f *fakeSubscription) Close() {}

func (f *fakeSubscription) closeStream() {
	f.closeOnce.Do(func() { close(f.events) })
}

// fakeRunner scripts the runner's behavior for one test
type fakeRunner struct {
	mu           sync.Mutex
	nextID       string
	sub          *fakeSubscription
	subscribeErr error
	record       *interfaces.TaskRecord
	fetchErr     error
	fetchCount   int
}

func (f *fakeRunner) Submit(context.Context, string, string, map[string]interface{}) (string, error) {
	return f.nextID, nil
}

func (f *fakeRunner) Fetch(context.Context, string) (*interfaces.TaskRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCount++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.record, nil
}

func (f *fakeRunner) Subscribe(context.Context, string) (interfaces.TaskSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	return f.sub, nil
}

type fakeDirectory struct {
	entries []models.SellerDirectoryEntry
}

func (f *fakeDirectory) Snapshot() []models.SellerDirectoryEntry { return f.entries }
func (f *fakeDirectory) Refresh(context.Context) error           { return nil }
func (f *fakeDirectory) Start(context.Context) error             { return nil }
func (f *fakeDirectory) Stop()                                   {}

type captureEvents struct {
	mu     sync.Mutex
	events []interfaces.Event
}

func (c *captureEvents) Subscribe(interfaces.EventType, interfaces.EventHandler) error { return nil }
func (c *captureEvents) Publish(_ context.Context, event interfaces.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}
func (c *captureEvents) PublishSync(ctx context.Context, event interfaces.Event) error {
	return c.Publish(ctx, event)
}
func (c *captureEvents) Close() error { return nil }

func (c *captureEvents) byType(eventType interfaces.EventType) []interfaces.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []interfaces.Event
	for _, event := range c.events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

type trackerFixture struct {
	service *Service
	runner  *fakeRunner
	events  *captureEvents
	history *history.Service
	dir     *fakeDirectory
}

func newTrackerFixture(t *testing.T, runner *fakeRunner) *trackerFixture {
	t.Helper()

	historyService, err := history.NewService(context.Background(), newMemoryKV(), 50, arbor.NewLogger())
	require.NoError(t, err)

	events := &captureEvents{}
	dir := &fakeDirectory{}
	config := &common.TrackerConfig{
		FallbackTimeout: 300 * time.Millisecond,
		PollInterval:    20 * time.Millisecond,
	}

	service := NewService(runner, events, dir, historyService, config, arbor.NewLogger())

	return &trackerFixture{
		service: service,
		runner:  runner,
		events:  events,
		history: historyService,
		dir:     dir,
	}
}

func waitForStatus(t *testing.T, fixture *trackerFixture, taskID string, status models.TaskStatus) *models.Task {
	t.Helper()
	var task *models.Task
	require.Eventually(t, func() bool {
		current, ok := fixture.service.Task(taskID)
		if !ok {
			return false
		}
		task = current
		return current.Status == status
	}, 2*time.Second, 10*time.Millisecond)
	return task
}

const rawSearchOutput = `=== Fridge ===
1. ACME Electronics (Rating: 4.5/5)
   Price: 12,500 ILS
   URL: https://acme.example.com/fridge
2. Electric Shop
   Price: 11,900 ILS
`

func TestTracker_PushPathCompletes(t *testing.T) {
	sub := newFakeSubscription()
	runner := &fakeRunner{nextID: "task-1", sub: sub}
	fixture := newTrackerFixture(t, runner)

	task, err := fixture.service.Submit(context.Background(), "fridge", models.TaskKindPriceSearch, nil)
	require.NoError(t, err)
	require.Equal(t, "task-1", task.ID)

	sub.events <- interfaces.TaskEvent{TaskID: "task-1", EventType: interfaces.TaskEventStepStarted, StepName: "searching"}
	sub.events <- interfaces.TaskEvent{TaskID: "task-1", EventType: interfaces.TaskEventTaskEnded, Output: rawSearchOutput}

	waitForStatus(t, fixture, "task-1", models.TaskStatusCompleted)

	result, ok := fixture.service.Result("task-1")
	require.True(t, ok)
	require.Len(t, result.Sections, 1)
	assert.Len(t, result.Sections[0].Offers, 2)

	entries, err := fixture.history.List(context.Background(), models.HistoryKindSearch)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.TaskStatusCompleted, entries[0].Status)
	assert.Equal(t, 2, entries[0].ResultCount)
	require.Len(t, entries[0].TopOffers, 2)
	assert.Equal(t, "ACME Electronics", entries[0].TopOffers[0].Seller)

	assert.NotEmpty(t, fixture.events.byType(interfaces.EventTaskProgress))
	assert.Len(t, fixture.events.byType(interfaces.EventTaskCompleted), 1)
}

func TestTracker_PushPathError(t *testing.T) {
	sub := newFakeSubscription()
	runner := &fakeRunner{nextID: "task-2", sub: sub}
	fixture := newTrackerFixture(t, runner)

	_, err := fixture.service.Submit(context.Background(), "fridge", models.TaskKindPriceSearch, nil)
	require.NoError(t, err)

	sub.events <- interfaces.TaskEvent{TaskID: "task-2", EventType: interfaces.TaskEventTaskEnded, Error: "upstream exploded"}

	task := waitForStatus(t, fixture, "task-2", models.TaskStatusError)
	assert.Equal(t, "upstream exploded", task.Error)

	entries, err := fixture.history.List(context.Background(), models.HistoryKindSearch)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "upstream exploded", entries[0].ErrorMessage)

	assert.Len(t, fixture.events.byType(interfaces.EventTaskFailed), 1)
}

func TestTracker_FallbackAdoptsTerminalRecord(t *testing.T) {
	sub := newFakeSubscription()
	runner := &fakeRunner{
		nextID: "task-3",
		sub:    sub,
		record: &interfaces.TaskRecord{ID: "task-3", Status: "completed", RawOutput: rawSearchOutput},
	}
	fixture := newTrackerFixture(t, runner)

	_, err := fixture.service.Submit(context.Background(), "fridge", models.TaskKindPriceSearch, nil)
	require.NoError(t, err)

	// transport drops without a terminal event
	sub.closeStream()

	waitForStatus(t, fixture, "task-3", models.TaskStatusCompleted)

	result, ok := fixture.service.Result("task-3")
	require.True(t, ok)
	assert.Len(t, result.Sections, 1)
}

func TestTracker_FallbackExhaustionIsTransportLost(t *testing.T) {
	sub := newFakeSubscription()
	runner := &fakeRunner{
		nextID: "task-4",
		sub:    sub,
		record: &interfaces.TaskRecord{ID: "task-4", Status: "running"},
	}
	fixture := newTrackerFixture(t, runner)

	_, err := fixture.service.Submit(context.Background(), "fridge", models.TaskKindPriceSearch, nil)
	require.NoError(t, err)

	sub.closeStream()

	task := waitForStatus(t, fixture, "task-4", models.TaskStatusError)
	assert.Equal(t, interfaces.ErrTransportLost.Error(), task.Error)

	runner.mu.Lock()
	fetches := runner.fetchCount
	runner.mu.Unlock()
	assert.GreaterOrEqual(t, fetches, 2, "fallback should have polled")
}

func TestTracker_SubscribeFailureEntersFallback(t *testing.T) {
	runner := &fakeRunner{
		nextID:       "task-5",
		subscribeErr: interfaces.ErrTransportLost,
		record:       &interfaces.TaskRecord{ID: "task-5", Status: "failed", ErrorMessage: "agent crashed"},
	}
	fixture := newTrackerFixture(t, runner)

	_, err := fixture.service.Submit(context.Background(), "fridge", models.TaskKindPriceSearch, nil)
	require.NoError(t, err)

	task := waitForStatus(t, fixture, "task-5", models.TaskStatusError)
	assert.Equal(t, "agent crashed", task.Error)
}

func TestTracker_CancelStopsTracking(t *testing.T) {
	sub := newFakeSubscription()
	runner := &fakeRunner{nextID: "task-6", sub: sub}
	fixture := newTrackerFixture(t, runner)

	_, err := fixture.service.Submit(context.Background(), "fridge", models.TaskKindPriceSearch, nil)
	require.NoError(t, err)

	waitForStatus(t, fixture, "task-6", models.TaskStatusRunning)
	fixture.service.Cancel("task-6")

	// a terminal event after cancellation is no longer honored
	time.Sleep(50 * time.Millisecond)
	sub.events <- interfaces.TaskEvent{TaskID: "task-6", EventType: interfaces.TaskEventTaskEnded, Output: rawSearchOutput}
	time.Sleep(100 * time.Millisecond)

	task, ok := fixture.service.Task("task-6")
	require.True(t, ok)
	assert.Equal(t, models.TaskStatusRunning, task.Status)

	_, ok = fixture.service.Result("task-6")
	assert.False(t, ok)
}

func TestTracker_DiscoveryResultParsed(t *testing.T) {
	sub := newFakeSubscription()
	runner := &fakeRunner{nextID: "task-7", sub: sub}
	fixture := newTrackerFixture(t, runner)

	_, err := fixture.service.Submit(context.Background(), "quiet soundbar", models.TaskKindDiscovery, nil)
	require.NoError(t, err)

	sub.events <- interfaces.TaskEvent{
		TaskID:    "task-7",
		EventType: interfaces.TaskEventTaskEnded,
		Output:    `{"products": [{"name": "Soundbar X", "category": "audio"}], "search_summary": "one hit"}`,
	}

	waitForStatus(t, fixture, "task-7", models.TaskStatusCompleted)

	result, ok := fixture.service.Result("task-7")
	require.True(t, ok)
	require.NotNil(t, result.Discovery)
	require.Len(t, result.Discovery.Products, 1)
	assert.Equal(t, "Soundbar X", result.Discovery.Products[0].Name)

	entries, err := fixture.history.List(context.Background(), models.HistoryKindDiscovery)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].ResultCount)
}

func TestTracker_ContactsResolvedFromDirectory(t *testing.T) {
	sub := newFakeSubscription()
	runner := &fakeRunner{nextID: "task-8", sub: sub}
	fixture := newTrackerFixture(t, runner)
	fixture.dir.entries = []models.SellerDirectoryEntry{
		{Name: "Electric Shop", Phone: "972502222222"},
	}

	_, err := fixture.service.Submit(context.Background(), "fridge", models.TaskKindPriceSearch, nil)
	require.NoError(t, err)

	sub.events <- interfaces.TaskEvent{TaskID: "task-8", EventType: interfaces.TaskEventTaskEnded, Output: rawSearchOutput}

	waitForStatus(t, fixture, "task-8", models.TaskStatusCompleted)

	result, ok := fixture.service.Result("task-8")
	require.True(t, ok)
	require.Len(t, result.Sections, 1)
	assert.Equal(t, "972502222222", result.Sections[0].Offers[1].ContactPhone)
	assert.Empty(t, result.Sections[0].Offers[0].ContactPhone, "no directory entry for this seller")
}

func TestTracker_LateContactBackfill(t *testing.T) {
	sub := newFakeSubscription()
	runner := &fakeRunner{nextID: "task-9", sub: sub}
	fixture := newTrackerFixture(t, runner)

	_, err := fixture.service.Submit(context.Background(), "fridge", models.TaskKindPriceSearch, nil)
	require.NoError(t, err)

	sub.events <- interfaces.TaskEvent{TaskID: "task-9", EventType: interfaces.TaskEventTaskEnded, Output: rawSearchOutput}
	waitForStatus(t, fixture, "task-9", models.TaskStatusCompleted)

	result, ok := fixture.service.Result("task-9")
	require.True(t, ok)
	assert.Empty(t, result.Sections[0].Offers[1].ContactPhone)

	// directory loads after the task finished
	fixture.dir.entries = []models.SellerDirectoryEntry{
		{Name: "Electric Shop", Phone: "972502222222"},
	}
	fixture.service.reResolveContacts()

	result, ok = fixture.service.Result("task-9")
	require.True(t, ok)
	assert.Equal(t, "972502222222", result.Sections[0].Offers[1].ContactPhone)
}

func TestTracker_ResultSnapshotIsolated(t *testing.T) {
	sub := newFakeSubscription()
	runner := &fakeRunner{nextID: "task-10", sub: sub}
	fixture := newTrackerFixture(t, runner)

	_, err := fixture.service.Submit(context.Background(), "fridge", models.TaskKindPriceSearch, nil)
	require.NoError(t, err)

	sub.events <- interfaces.TaskEvent{TaskID: "task-10", EventType: interfaces.TaskEventTaskEnded, Output: rawSearchOutput}
	waitForStatus(t, fixture, "task-10", models.TaskStatusCompleted)

	// scribbling on returned snapshots must not leak into tracked state
	task, ok := fixture.service.Task("task-10")
	require.True(t, ok)
	task.Status = models.TaskStatusError
	task.Progress = "scribbled"

	result, ok := fixture.service.Result("task-10")
	require.True(t, ok)
	result.Task.Query = "scribbled"
	result.Sections[0].Offers[0].ContactPhone = "000"

	fresh, ok := fixture.service.Task("task-10")
	require.True(t, ok)
	assert.Equal(t, models.TaskStatusCompleted, fresh.Status)
	assert.NotEqual(t, "scribbled", fresh.Progress)

	freshResult, ok := fixture.service.Result("task-10")
	require.True(t, ok)
	assert.Equal(t, "fridge", freshResult.Task.Query)
	assert.Empty(t, freshResult.Sections[0].Offers[0].ContactPhone)
}

func TestTracker_SnapshotsSafeForConcurrentEncoding(t *testing.T) {
	sub := newFakeSubscription()
	runner := &fakeRunner{nextID: "task-11", sub: sub}
	fixture := newTrackerFixture(t, runner)

	_, err := fixture.service.Submit(context.Background(), "fridge", models.TaskKindPriceSearch, nil)
	require.NoError(t, err)
	waitForStatus(t, fixture, "task-11", models.TaskStatusRunning)

	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				if task, ok := fixture.service.Task("task-11"); ok {
					_, err := json.Marshal(task)
					assert.NoError(t, err)
				}
				if result, ok := fixture.service.Result("task-11"); ok {
					_, err := json.Marshal(result)
					assert.NoError(t, err)
				}
			}
		}()
	}

	// progress updates mutate the task while readers encode snapshots
	for i := 0; i < 20; i++ {
		sub.events <- interfaces.TaskEvent{TaskID: "task-11", EventType: interfaces.TaskEventStepEnded, StepName: fmt.Sprintf("step-%d", i)}
	}
	sub.events <- interfaces.TaskEvent{TaskID: "task-11", EventType: interfaces.TaskEventTaskEnded, Output: rawSearchOutput}
	waitForStatus(t, fixture, "task-11", models.TaskStatusCompleted)

	// contact backfill rewrites the stored result while readers encode it
	fixture.dir.entries = []models.SellerDirectoryEntry{
		{Name: "Electric Shop", Phone: "972502222222"},
	}
	for i := 0; i < 10; i++ {
		fixture.service.reResolveContacts()
	}

	close(done)
	wg.Wait()
}

func TestTracker_FinishedTasksPruned(t *testing.T) {
	runner := &fakeRunner{
		subscribeErr: interfaces.ErrTransportLost,
		record:       &interfaces.TaskRecord{Status: "completed", RawOutput: rawSearchOutput},
	}
	fixture := newTrackerFixture(t, runner)
	fixture.service.config.MaxTrackedTasks = 2

	for _, id := range []string{"task-a", "task-b", "task-c"} {
		runner.nextID = id
		_, err := fixture.service.Submit(context.Background(), "fridge", models.TaskKindPriceSearch, nil)
		require.NoError(t, err)
		waitForStatus(t, fixture, id, models.TaskStatusCompleted)
	}

	_, ok := fixture.service.Task("task-a")
	assert.False(t, ok, "oldest finished task should be evicted")
	_, ok = fixture.service.Task("task-b")
	assert.True(t, ok)
	_, ok = fixture.service.Task("task-c")
	assert.True(t, ok)

	// live tasks are never evicted, even over the cap
	liveRunner := &fakeRunner{
		nextID: "task-live",
		record: &interfaces.TaskRecord{Status: "running"},
	}
	liveSub := newFakeSubscription()
	liveRunner.sub = liveSub
	liveFixture := newTrackerFixture(t, liveRunner)
	liveFixture.service.config.MaxTrackedTasks = 1

	_, err := liveFixture.service.Submit(context.Background(), "fridge", models.TaskKindPriceSearch, nil)
	require.NoError(t, err)
	waitForStatus(t, liveFixture, "task-live", models.TaskStatusRunning)

	liveRunner.nextID = "task-live-2"
	liveSub2 := newFakeSubscription()
	liveRunner.mu.Lock()
	liveRunner.sub = liveSub2
	liveRunner.mu.Unlock()
	_, err = liveFixture.service.Submit(context.Background(), "fridge", models.TaskKindPriceSearch, nil)
	require.NoError(t, err)

	_, ok = liveFixture.service.Task("task-live")
	assert.True(t, ok, "running task must survive pruning")
	_, ok = liveFixture.service.Task("task-live-2")
	assert.True(t, ok)
}
