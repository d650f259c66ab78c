package tracker

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/shopwise/dealagent/internal/common"
	"github.com/shopwise/dealagent/internal/interfaces"
	"github.com/shopwise/dealagent/internal/models"
	"github.com/shopwise/dealagent/internal/services/directory"
	"github.com/shopwise/dealagent/internal/services/history"
	"github.com/shopwise/dealagent/internal/services/parser"
)

// Result is the enriched output of one terminal task, exposed to display
// collaborators.
type Result struct {
	Task      *models.Task            `json:"task"`
	Sections  []models.ProductSection `json:"sections,omitempty"`
	Bundles   []models.Bundle         `json:"bundles,omitempty"`
	Discovery *models.DiscoveryResult `json:"discovery,omitempty"`
}

type trackedTask struct {
	task      *models.Task
	cancel    context.CancelFunc
	result    *Result
	cancelled bool
}

// Service tracks the lifecycle of one or more concurrent tasks, driven by
// the runner's push-event subscription with a rate-limited pull fallback.
// Each subscription filters strictly on its own task id; no parse state is
// shared across concurrently tracked tasks.
//
// All task and result state is guarded by the service mutex. Accessors
// return copies, so callers never observe a mutation in flight.
type Service struct {
	runner       interfaces.RunnerClient
	eventService interfaces.EventService
	dir          interfaces.DirectoryService
	history      *history.Service
	config       *common.TrackerConfig
	logger       arbor.ILogger

	mu    sync.RWMutex
	tasks map[string]*trackedTask
}

// NewService creates a task lifecycle tracker. It re-resolves contacts on
// stored results whenever the directory snapshot changes.
func NewService(
	runner interfaces.RunnerClient,
	eventService interfaces.EventService,
	dir interfaces.DirectoryService,
	historyService *history.Service,
	config *common.TrackerConfig,
	logger arbor.ILogger,
) *Service {
	s := &Service{
		runner:       runner,
		eventService: eventService,
		dir:          dir,
		history:      historyService,
		config:       config,
		logger:       logger,
		tasks:        make(map[string]*trackedTask),
	}

	if eventService != nil {
		_ = eventService.Subscribe(interfaces.EventDirectoryRefreshed, func(ctx context.Context, event interfaces.Event) error {
			s.reResolveContacts()
			return nil
		})
	}

	return s
}

// Submit starts a task via the runner, writes the optimistic history
// placeholder and begins tracking. The task is pending the instant
// submission returns an external id.
func (s *Service) Submit(ctx context.Context, query string, kind models.TaskKind, params map[string]interface{}) (*models.Task, error) {
	externalID, err := s.runner.Submit(ctx, query, string(kind), params)
	if err != nil {
		return nil, err
	}

	task := models.NewTask(externalID, kind, query)

	if err := s.history.Append(context.Background(), historyKind(kind), models.NewHistoryEntry(query, externalID)); err != nil {
		s.logger.Warn().Err(err).Str("task_id", externalID).Msg("Failed to write history placeholder")
	}

	trackCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.tasks[externalID] = &trackedTask{task: task, cancel: cancel}
	s.pruneLocked()
	snapshot := cloneTask(task)
	s.mu.Unlock()

	go s.track(trackCtx, task)

	return snapshot, nil
}

// Task returns a snapshot of the current task state for an id
func (s *Service) Task(taskID string) (*models.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tracked, ok := s.tasks[taskID]
	if !ok {
		return nil, false
	}
	return cloneTask(tracked.task), true
}

// Result returns a snapshot of the enriched result of a terminal task
func (s *Service) Result(taskID string) (*Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tracked, ok := s.tasks[taskID]
	if !ok || tracked.result == nil {
		return nil, false
	}
	return cloneResult(tracked.result), true
}

// Cancel stops tracking a task: its subscription closes and further
// events or fallbacks for it are no longer honored, even if the transport
// is still open. Cancelled tasks become eligible for pruning.
func (s *Service) Cancel(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tracked, ok := s.tasks[taskID]
	if !ok {
		return
	}
	tracked.cancelled = true
	tracked.cancel()
	s.pruneLocked()
}

// track drives one task to a terminal state. Events are processed in
// delivery order; a terminal event always supersedes earlier status
// updates.
func (s *Service) track(ctx context.Context, task *models.Task) {
	sub, err := s.runner.Subscribe(ctx, task.ID)
	if err != nil {
		s.logger.Warn().Err(err).Str("task_id", task.ID).Msg("Event subscription failed, entering pull fallback")
		s.markRunning(task)
		s.fallback(ctx, task)
		return
	}
	defer sub.Close()

	// No distinct "accepted" signal is modeled; an open subscription means
	// the task is running.
	s.markRunning(task)

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug().Str("task_id", task.ID).Msg("Task tracking cancelled")
			return
		case event, ok := <-sub.Events():
			if !ok {
				s.fallback(ctx, task)
				return
			}

			switch event.EventType {
			case interfaces.TaskEventStepStarted, interfaces.TaskEventStepEnded:
				// Best-effort status side channel; never blocks terminal
				// resolution.
				if event.StepName != "" {
					s.setProgress(task, event.StepName)
					_ = s.eventService.Publish(ctx, interfaces.Event{
						Type:    interfaces.EventTaskProgress,
						Payload: map[string]string{"task_id": task.ID, "step": event.StepName},
					})
				}
			case interfaces.TaskEventTaskEnded:
				if event.Error != "" {
					s.finishError(task, event.Error)
				} else {
					s.finishSuccess(task, event.Output)
				}
				return
			}
		}
	}
}

// fallback is the pull path after the push channel is lost: fetch the
// current record, adopt it if terminal, else poll at the configured rate
// until the bounded wait is exhausted.
func (s *Service) fallback(ctx context.Context, task *models.Task) {
	s.mu.RLock()
	terminal := task.IsTerminal()
	s.mu.RUnlock()
	if terminal {
		return
	}

	pollCtx, cancel := context.WithTimeout(ctx, s.config.FallbackTimeout)
	defer cancel()

	limiter := rate.NewLimiter(rate.Every(s.config.PollInterval), 1)

	for {
		record, err := s.runner.Fetch(pollCtx, task.ID)
		if err != nil {
			s.logger.Debug().Err(err).Str("task_id", task.ID).Msg("Fallback fetch failed")
		} else if record.IsTerminal() {
			if record.ErrorMessage != "" || record.Status == "error" || record.Status == "failed" {
				msg := record.ErrorMessage
				if msg == "" {
					msg = "task failed"
				}
				s.finishError(task, msg)
			} else {
				s.finishSuccess(task, record.RawOutput)
			}
			return
		}

		if err := limiter.Wait(pollCtx); err != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				// cancelled by the caller, not a transport failure
				return
			}
			s.finishError(task, interfaces.ErrTransportLost.Error())
			return
		}
	}
}

func (s *Service) markRunning(task *models.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = task.MarkRunning()
}

func (s *Service) setProgress(task *models.Task, step string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task.Progress = step
}

// finishSuccess terminalizes the task, parses its raw output by kind,
// enriches contacts from the directory snapshot, updates the history
// entry in place and publishes the completed event.
func (s *Service) finishSuccess(task *models.Task, rawOutput string) {
	s.mu.Lock()
	err := task.MarkCompleted(rawOutput)
	s.mu.Unlock()
	if err != nil {
		s.logger.Warn().Err(err).Str("task_id", task.ID).Msg("Ignoring duplicate terminal event")
		return
	}

	result := &Result{Task: task}
	resultCount := 0
	var topOffers []models.TopOffer

	switch task.Kind {
	case models.TaskKindDiscovery:
		discovery := parser.ParseDiscovery(rawOutput)
		result.Discovery = &discovery
		resultCount = len(discovery.Products)
	default:
		result.Sections = parser.ParseSections(rawOutput, task.Query)
		result.Bundles = parser.ParseBundles(rawOutput)
		s.resolveContacts(result)
		for _, section := range result.Sections {
			resultCount += len(section.Offers)
			for _, offer := range section.Offers {
				if len(topOffers) < 3 {
					topOffers = append(topOffers, models.TopOffer{
						Seller:   offer.Seller,
						Price:    offer.Price,
						Currency: offer.Currency,
					})
				}
			}
		}
		resultCount += len(result.Bundles)
	}

	s.mu.Lock()
	if tracked, ok := s.tasks[task.ID]; ok {
		tracked.result = result
	}
	s.pruneLocked()
	snapshot := cloneResult(result)
	s.mu.Unlock()

	s.updateHistory(snapshot.Task, resultCount, topOffers)

	s.logger.Info().
		Str("task_id", task.ID).
		Str("kind", string(task.Kind)).
		Int("result_count", resultCount).
		Msg("Task completed")

	_ = s.eventService.Publish(context.Background(), interfaces.Event{
		Type:    interfaces.EventTaskCompleted,
		Payload: snapshot,
	})
}

// finishError terminalizes the task with an error, updates history and
// publishes the failed event.
func (s *Service) finishError(task *models.Task, errorMsg string) {
	s.mu.Lock()
	err := task.MarkError(errorMsg)
	var snapshot *models.Task
	if err == nil {
		s.pruneLocked()
		snapshot = cloneTask(task)
	}
	s.mu.Unlock()
	if err != nil {
		s.logger.Warn().Err(err).Str("task_id", task.ID).Msg("Ignoring duplicate terminal event")
		return
	}

	s.updateHistory(snapshot, 0, nil)

	s.logger.Warn().
		Str("task_id", task.ID).
		Str("error", errorMsg).
		Msg("Task failed")

	_ = s.eventService.Publish(context.Background(), interfaces.Event{
		Type:    interfaces.EventTaskFailed,
		Payload: &Result{Task: snapshot},
	})
}

// updateHistory updates the placeholder entry written at submission; the
// entry keeps its creation time, so its list position never changes
// beyond the always-applied sort.
func (s *Service) updateHistory(task *models.Task, resultCount int, topOffers []models.TopOffer) {
	err := s.history.UpdateByTaskID(context.Background(), historyKind(task.Kind), task.ID, func(entry *models.HistoryEntry) {
		entry.Status = task.Status
		entry.ResultCount = resultCount
		entry.DurationMs = task.Duration().Milliseconds()
		entry.ErrorMessage = task.Error
		entry.TopOffers = topOffers
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("task_id", task.ID).Msg("Failed to update history entry")
	}
}

// resolveContacts backfills contact phones on offers and bundles from the
// current directory snapshot. The snapshot is immutable during a pass.
func (s *Service) resolveContacts(result *Result) {
	entries := s.dir.Snapshot()
	if len(entries) == 0 {
		return
	}

	for i := range result.Sections {
		for j := range result.Sections[i].Offers {
			offer := &result.Sections[i].Offers[j]
			if offer.ContactPhone != "" {
				continue
			}
			if phone, ok := directory.ResolveContact(offer.Seller, offer.URL, entries); ok {
				offer.ContactPhone = phone
			}
		}
	}

	for i := range result.Bundles {
		bundle := &result.Bundles[i]
		if bundle.ContactPhone != "" {
			continue
		}
		if phone, ok := directory.ResolveContact(bundle.StoreName, "", entries); ok {
			bundle.ContactPhone = phone
		}
	}
}

// reResolveContacts re-runs contact resolution over stored results after
// the directory snapshot changed, backfilling records parsed before the
// directory finished loading.
func (s *Service) reResolveContacts() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tracked := range s.tasks {
		if tracked.result != nil {
			s.resolveContacts(tracked.result)
		}
	}
}

// pruneLocked evicts finished or cancelled tasks, oldest first, until the
// tracked set fits its cap. Live tasks are never evicted. Caller holds
// the write lock.
func (s *Service) pruneLocked() {
	max := s.config.MaxTrackedTasks
	if max <= 0 || len(s.tasks) <= max {
		return
	}

	type candidate struct {
		id string
		at time.Time
	}
	var candidates []candidate
	for id, tracked := range s.tasks {
		if !tracked.task.IsTerminal() && !tracked.cancelled {
			continue
		}
		at := tracked.task.StartedAt
		if tracked.task.CompletedAt != nil {
			at = *tracked.task.CompletedAt
		}
		candidates = append(candidates, candidate{id: id, at: at})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].at.Before(candidates[j].at)
	})

	for _, c := range candidates {
		if len(s.tasks) <= max {
			return
		}
		delete(s.tasks, c.id)
		s.logger.Debug().Str("task_id", c.id).Msg("Pruned finished task")
	}
}

// cloneTask returns an independent copy safe to hand to encoders while
// tracking goroutines keep mutating the original.
func cloneTask(task *models.Task) *models.Task {
	copied := *task
	if task.CompletedAt != nil {
		at := *task.CompletedAt
		copied.CompletedAt = &at
	}
	return &copied
}

// cloneResult deep-copies a result so contact re-resolution never races
// with a caller reading or encoding the returned value.
func cloneResult(result *Result) *Result {
	copied := &Result{Task: cloneTask(result.Task)}

	if result.Sections != nil {
		copied.Sections = make([]models.ProductSection, len(result.Sections))
		for i, section := range result.Sections {
			copied.Sections[i] = section
			copied.Sections[i].Offers = append([]models.Offer(nil), section.Offers...)
		}
	}
	if result.Bundles != nil {
		copied.Bundles = make([]models.Bundle, len(result.Bundles))
		for i, bundle := range result.Bundles {
			copied.Bundles[i] = bundle
			copied.Bundles[i].Items = append([]models.BundleItem(nil), bundle.Items...)
		}
	}
	if result.Discovery != nil {
		discovery := *result.Discovery
		discovery.Products = append([]models.DiscoveredProduct(nil), result.Discovery.Products...)
		discovery.Suggestions = append([]string(nil), result.Discovery.Suggestions...)
		copied.Discovery = &discovery
	}

	return copied
}

func historyKind(kind models.TaskKind) models.HistoryKind {
	if kind == models.TaskKindDiscovery {
		return models.HistoryKindDiscovery
	}
	return models.HistoryKindSearch
}
