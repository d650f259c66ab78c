package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"gopkg.in/yaml.v3"

	"github.com/shopwise/dealagent/internal/common"
	"github.com/shopwise/dealagent/internal/interfaces"
	"github.com/shopwise/dealagent/internal/models"
)

// Service serves an immutable snapshot of the external seller directory.
// The snapshot is loaded once per session and swapped atomically on
// refresh; callers holding a snapshot never see it mutate under them.
type Service struct {
	config       *common.DirectoryConfig
	eventService interfaces.EventService
	logger       arbor.ILogger
	httpClient   *http.Client

	mu       sync.RWMutex
	snapshot []models.SellerDirectoryEntry

	cron    *cron.Cron
	entryID cron.EntryID
}

// NewService creates a new seller directory service
func NewService(config *common.DirectoryConfig, eventService interfaces.EventService, logger arbor.ILogger) interfaces.DirectoryService {
	return &Service{
		config:       config,
		eventService: eventService,
		logger:       logger,
		httpClient:   &http.Client{},
	}
}

// Snapshot returns the current directory entries in stable order. The
// returned slice must be treated as read-only.
func (s *Service) Snapshot() []models.SellerDirectoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Refresh re-fetches the directory and publishes a directory_refreshed
// event when the snapshot changed. Refresh is explicit; nothing triggers
// it silently on every mutation.
func (s *Service) Refresh(ctx context.Context) error {
	entries, err := s.load(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Seller directory unavailable, contacts stay absent")
		return err
	}

	s.mu.Lock()
	changed := !entriesEqual(s.snapshot, entries)
	s.snapshot = entries
	s.mu.Unlock()

	s.logger.Info().Int("sellers", len(entries)).Bool("changed", changed).Msg("Seller directory refreshed")

	if changed && s.eventService != nil {
		return s.eventService.Publish(ctx, interfaces.Event{
			Type:    interfaces.EventDirectoryRefreshed,
			Payload: len(entries),
		})
	}
	return nil
}

// Start performs the initial load and begins the periodic refresh
// schedule. The initial load failing is not fatal: resolution proceeds
// with contacts absent and is retried on schedule.
func (s *Service) Start(ctx context.Context) error {
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Initial directory load failed, will retry on schedule")
	}

	if s.config.RefreshSchedule == "" {
		return nil
	}

	s.cron = cron.New()
	entryID, err := s.cron.AddFunc(s.config.RefreshSchedule, func() {
		if err := s.Refresh(context.Background()); err != nil {
			s.logger.Warn().Err(err).Msg("Scheduled directory refresh failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid directory refresh schedule %q: %w", s.config.RefreshSchedule, err)
	}
	s.entryID = entryID
	s.cron.Start()

	s.logger.Debug().Str("schedule", s.config.RefreshSchedule).Msg("Directory refresh scheduled")
	return nil
}

// Stop halts the periodic refresh schedule
func (s *Service) Stop() {
	if s.cron != nil {
		s.cron.Remove(s.entryID)
		s.cron.Stop()
	}
}

// load fetches the directory from the service, falling back to the local
// seed file, then to an empty snapshot error.
func (s *Service) load(ctx context.Context) ([]models.SellerDirectoryEntry, error) {
	if s.config.BaseURL != "" {
		entries, err := s.fetchRemote(ctx)
		if err == nil {
			return entries, nil
		}
		s.logger.Warn().Err(err).Str("url", s.config.BaseURL).Msg("Directory service fetch failed, trying seed file")
	}

	if s.config.SeedFile != "" {
		entries, err := s.loadSeedFile()
		if err == nil {
			return entries, nil
		}
		s.logger.Debug().Err(err).Str("file", s.config.SeedFile).Msg("Seed file load failed")
	}

	return nil, interfaces.ErrDirectoryUnavailable
}

func (s *Service) fetchRemote(ctx context.Context) ([]models.SellerDirectoryEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.BaseURL+"/sellers", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build directory request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directory request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directory service returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory response: %w", err)
	}

	var entries []models.SellerDirectoryEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode directory response: %w", err)
	}
	return entries, nil
}

func (s *Service) loadSeedFile() ([]models.SellerDirectoryEntry, error) {
	data, err := os.ReadFile(s.config.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed struct {
		Sellers []models.SellerDirectoryEntry `yaml:"sellers"`
	}
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return seed.Sellers, nil
}

func entriesEqual(a, b []models.SellerDirectoryEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
