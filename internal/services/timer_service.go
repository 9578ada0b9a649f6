package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tracklight/agent-core/internal/config"
	"github.com/tracklight/agent-core/internal/models"
	"github.com/tracklight/agent-core/internal/repositories"
)

var (
	ErrActiveEntryExists = errors.New("an active time entry already exists")
	ErrProjectNotFound   = errors.New("project not found")
	ErrEntryNotFound     = errors.New("time entry not found")
)

// InvalidTransitionError reports a transition attempted against the wrong
// status. The current status is included so a retrying agent can recognize
// "already applied" (e.g. stop on an already-stopped entry).
type InvalidTransitionError struct {
	Requested string
	Current   models.EntryStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s a %s entry", e.Requested, e.Current)
}

// TimerService is the authoritative time-entry state machine. All wall-clock
// accounting lives here; repositories only persist the result, with the
// status-conditional update guarding against concurrent writers.
type TimerService struct {
	entries  repositories.TimeEntryRepository
	projects repositories.ProjectRepository
	policy   config.StartPolicy
	now      func() time.Time
}

func NewTimerService(
	entries repositories.TimeEntryRepository,
	projects repositories.ProjectRepository,
	policy config.StartPolicy,
) *TimerService {
	return &TimerService{
		entries:  entries,
		projects: projects,
		policy:   policy,
		now:      time.Now,
	}
}

// Start creates a new running entry for the user. What happens to a
// lingering non-stopped entry is governed by one policy shared by the agent
// and the web path: auto-stop finalizes it first, reject returns
// ErrActiveEntryExists. Either way the partial unique index keeps the
// check-and-create atomic under concurrent starts.
func (s *TimerService) Start(ctx context.Context, userID, projectID uuid.UUID, description string) (*models.TimeEntry, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}
	if project.UserID != userID {
		return nil, ErrProjectNotFound
	}

	// Two attempts: the second covers an entry that appeared between our
	// auto-stop and the insert.
	for attempt := 0; attempt < 2; attempt++ {
		if s.policy == config.StartAutoStop {
			active, err := s.entries.GetActiveByUser(ctx, userID)
			if err != nil && !errors.Is(err, repositories.ErrNotFound) {
				return nil, err
			}
			if active != nil {
				if err := s.finalize(ctx, active); err != nil && !errors.Is(err, repositories.ErrStatusConflict) {
					return nil, err
				}
			}
		}

		now := s.now()
		entry := &models.TimeEntry{
			ID:             uuid.New(),
			UserID:         userID,
			ProjectID:      projectID,
			Description:    description,
			Status:         models.EntryRunning,
			StartedAt:      now,
			LastActivityAt: now,
		}

		err = s.entries.Create(ctx, entry)
		if errors.Is(err, repositories.ErrActiveEntryExists) {
			if s.policy == config.StartReject {
				return nil, ErrActiveEntryExists
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		return entry, nil
	}
	return nil, ErrActiveEntryExists
}

// Pause freezes the running clock: elapsed time since the last activity mark
// is credited to duration, then the entry waits in paused.
func (s *TimerService) Pause(ctx context.Context, entryID, userID uuid.UUID) (*models.TimeEntry, error) {
	entry, err := s.ownedEntry(ctx, entryID, userID)
	if err != nil {
		return nil, err
	}
	if entry.Status != models.EntryRunning {
		return nil, &InvalidTransitionError{Requested: "pause", Current: entry.Status}
	}

	now := s.now()
	entry.CreditActivity(now)
	entry.Status = models.EntryPaused

	if err := s.update(ctx, entry, models.EntryRunning, "pause"); err != nil {
		return nil, err
	}
	return entry, nil
}

// Resume restarts the clock. Paused wall time becomes idle time unless the
// caller discards it as a break.
func (s *TimerService) Resume(ctx context.Context, entryID, userID uuid.UUID, discardIdle bool) (*models.TimeEntry, error) {
	entry, err := s.ownedEntry(ctx, entryID, userID)
	if err != nil {
		return nil, err
	}
	if entry.Status != models.EntryPaused {
		return nil, &InvalidTransitionError{Requested: "resume", Current: entry.Status}
	}

	now := s.now()
	if !discardIdle {
		idle := int64(now.Sub(entry.LastActivityAt).Seconds())
		if idle > 0 {
			entry.IdleSeconds += idle
		}
	}
	entry.LastActivityAt = now
	entry.Status = models.EntryRunning

	if err := s.update(ctx, entry, models.EntryPaused, "resume"); err != nil {
		return nil, err
	}
	return entry, nil
}

// Stop finalizes the entry. Stopped is terminal.
func (s *TimerService) Stop(ctx context.Context, entryID, userID uuid.UUID) (*models.TimeEntry, error) {
	entry, err := s.ownedEntry(ctx, entryID, userID)
	if err != nil {
		return nil, err
	}
	if entry.Stopped() {
		return nil, &InvalidTransitionError{Requested: "stop", Current: entry.Status}
	}

	if err := s.finalize(ctx, entry); err != nil {
		if errors.Is(err, repositories.ErrStatusConflict) {
			return nil, s.conflictError(ctx, entry.ID, "stop")
		}
		return nil, err
	}
	return entry, nil
}

// RecordActivity credits elapsed time on a running entry. Heartbeats call
// this best-effort: a missing, foreign or non-running entry is silently
// ignored so the liveness signal never fails.
func (s *TimerService) RecordActivity(ctx context.Context, entryID, userID uuid.UUID) {
	entry, err := s.entries.GetByID(ctx, entryID)
	if err != nil || entry.UserID != userID || entry.Status != models.EntryRunning {
		return
	}
	entry.CreditActivity(s.now())
	// A concurrent transition losing this write is fine; the next heartbeat
	// or the transition itself re-reads the clock.
	_ = s.entries.UpdateTransition(ctx, entry, models.EntryRunning)
}

// SetProjectStatus applies an external project-status change and drives the
// review sub-state: entering review marks review-started-at on the project
// and its non-stopped entries; leaving review folds the elapsed time into
// the accumulators and pushes the project due date forward by exactly that
// much.
func (s *TimerService) SetProjectStatus(ctx context.Context, projectID, ownerID uuid.UUID, status models.ProjectStatus) (*models.Project, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}
	if project.UserID != ownerID {
		return nil, ErrProjectNotFound
	}

	now := s.now()
	entering := status == models.ProjectInReview && project.Status != models.ProjectInReview
	exiting := project.Status == models.ProjectInReview && status != models.ProjectInReview

	if entering {
		project.ReviewStartedAt = &now
		if err := s.markEntriesReview(ctx, projectID, &now, false); err != nil {
			return nil, err
		}
	}

	if exiting {
		if project.ReviewStartedAt != nil {
			elapsed := now.Sub(*project.ReviewStartedAt)
			project.ReviewMs += elapsed.Milliseconds()
			if project.DueDate != nil {
				shifted := project.DueDate.Add(elapsed)
				project.DueDate = &shifted
			}
			project.ReviewStartedAt = nil
		}
		if err := s.markEntriesReview(ctx, projectID, &now, true); err != nil {
			return nil, err
		}
	}

	project.Status = status
	if err := s.projects.UpdateReview(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

func (s *TimerService) markEntriesReview(ctx context.Context, projectID uuid.UUID, now *time.Time, exit bool) error {
	entries, err := s.entries.GetNonStoppedByProject(ctx, projectID)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if exit {
			if entry.ReviewStartedAt == nil {
				continue
			}
			entry.ReviewMs += now.Sub(*entry.ReviewStartedAt).Milliseconds()
			entry.ReviewStartedAt = nil
		} else {
			entry.ReviewStartedAt = now
		}
		if err := s.entries.UpdateTransition(ctx, entry, entry.Status); err != nil && !errors.Is(err, repositories.ErrStatusConflict) {
			return err
		}
	}
	return nil
}

// finalize stops an entry, crediting any running time first.
func (s *TimerService) finalize(ctx context.Context, entry *models.TimeEntry) error {
	now := s.now()
	previous := entry.Status
	if entry.Status == models.EntryRunning {
		entry.CreditActivity(now)
	}
	entry.Status = models.EntryStopped
	entry.EndedAt = &now
	return s.entries.UpdateTransition(ctx, entry, previous)
}

func (s *TimerService) ownedEntry(ctx context.Context, entryID, userID uuid.UUID) (*models.TimeEntry, error) {
	entry, err := s.entries.GetByID(ctx, entryID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	if entry.UserID != userID {
		return nil, ErrEntryNotFound
	}
	return entry, nil
}

func (s *TimerService) update(ctx context.Context, entry *models.TimeEntry, expected models.EntryStatus, requested string) error {
	err := s.entries.UpdateTransition(ctx, entry, expected)
	if errors.Is(err, repositories.ErrStatusConflict) {
		return s.conflictError(ctx, entry.ID, requested)
	}
	return err
}

// conflictError re-reads the entry so the caller learns which status won the
// race.
func (s *TimerService) conflictError(ctx context.Context, entryID uuid.UUID, requested string) error {
	current, err := s.entries.GetByID(ctx, entryID)
	if err != nil {
		return &InvalidTransitionError{Requested: requested, Current: models.EntryStopped}
	}
	return &InvalidTransitionError{Requested: requested, Current: current.Status}
}
