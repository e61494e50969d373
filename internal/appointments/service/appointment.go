package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	appterrors "breez/internal/appointments/errors"
	"breez/internal/appointments/events"
	"breez/internal/appointments/repository"
	"breez/internal/appointments/validator"
	"breez/pkg/config"
	"breez/pkg/dateparse"
	apperrors "breez/pkg/errors"
	"breez/pkg/model"
	"breez/pkg/sanitizer"

	"go.mongodb.org/mongo-driver/mongo"
)

type AppointmentService interface {
	Book(ctx context.Context, req *model.AppointmentRequest) (*model.Appointment, error)
	GetByID(ctx context.Context, id string) (*model.Appointment, error)
	List(ctx context.Context, namePattern string, age *int, limit int, offset int64) ([]*model.Appointment, int64, error)
	Reschedule(ctx context.Context, id string, rawDate string) (*model.Appointment, error)
	Cancel(ctx context.Context, id string) error
	FreeSlots(ctx context.Context, day time.Time) ([]string, error)
}

type appointmentService struct {
	repo      repository.AppointmentRepository
	lockRepo  repository.SlotLockRepository
	validator *validator.AppointmentValidator
	publisher *events.Publisher
	cfg       *config.Config

	// now is swappable for tests; defaults to time.Now.
	now func() time.Time
}

func NewAppointmentService(
	repo repository.AppointmentRepository,
	lockRepo repository.SlotLockRepository,
	validator *validator.AppointmentValidator,
	publisher *events.Publisher,
	cfg *config.Config,
) AppointmentService {
	return &appointmentService{
		repo:      repo,
		lockRepo:  lockRepo,
		validator: validator,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *appointmentService) Book(ctx context.Context, req *model.AppointmentRequest) (*model.Appointment, error) {
	appt := &model.Appointment{
		PatientName:       sanitizer.NormalizePatientName(req.PatientName),
		Age:               req.Age,
		Service:           sanitizer.NormalizeServiceLabel(req.Service),
		InsuranceProvider: sanitizer.TrimAndNormalize(req.InsuranceProvider),
		Notes:             sanitizer.TrimAndNormalize(req.Notes),
	}

	start, err := s.normalize(req.AppointmentDate)
	if err != nil {
		return nil, err
	}
	appt.StartTime = start

	if err := s.validate(appt); err != nil {
		return nil, err
	}
	if err := s.checkWorkingHours(start); err != nil {
		return nil, err
	}

	// Serialize check-then-act across the whole schedule
	if err := s.acquireScheduleLock(ctx); err != nil {
		return nil, err
	}
	defer func() {
		if releaseErr := s.releaseScheduleLock(ctx); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release schedule lock", "error", releaseErr)
		}
	}()

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.verifyNoConflict(sessCtx, start, ""); err != nil {
			return err
		}
		if err := s.repo.Create(sessCtx, appt); err != nil {
			return apperrors.Storage("Failed to create appointment", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to book appointment", "error", err)
		return nil, err
	}

	s.cfg.Log.Info("Appointment booked successfully",
		"id", appt.ID,
		"patient_name", appt.PatientName,
		"service", appt.Service,
		"start_time", appt.StartTime,
	)
	s.publisher.Publish(ctx, events.TypeBooked, appt)
	return appt, nil
}

func (s *appointmentService) GetByID(ctx context.Context, id string) (*model.Appointment, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Appointment ID cannot be empty")
	}

	appt, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, appterrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Appointment", id)
		}
		if errors.Is(err, appterrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid appointment ID format")
		}
		return nil, apperrors.Storage("Failed to retrieve appointment", err)
	}

	return appt, nil
}

func (s *appointmentService) List(ctx context.Context, namePattern string, age *int, limit int, offset int64) ([]*model.Appointment, int64, error) {
	var count int64
	var appts []*model.Appointment
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx, namePattern, age)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count appointments", "error", errCount)
			errCount = apperrors.Storage("Failed to count appointments", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		appts, errFind = s.repo.FindAll(ctx, namePattern, age, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list appointments", "error", errFind)
			errFind = apperrors.Storage("Failed to retrieve appointments", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return appts, count, nil
}

func (s *appointmentService) Reschedule(ctx context.Context, id string, rawDate string) (*model.Appointment, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Appointment ID cannot be empty")
	}

	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	start, err := s.normalize(rawDate)
	if err != nil {
		return nil, err
	}
	if err := s.checkWorkingHours(start); err != nil {
		return nil, err
	}

	if err := s.acquireScheduleLock(ctx); err != nil {
		return nil, err
	}
	defer func() {
		if releaseErr := s.releaseScheduleLock(ctx); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release schedule lock", "error", releaseErr)
		}
	}()

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		// the appointment's own prior slot is not a conflict against itself
		if err := s.verifyNoConflict(sessCtx, start, id); err != nil {
			return err
		}
		if err := s.repo.UpdateStartTime(sessCtx, id, start); err != nil {
			if errors.Is(err, appterrors.ErrNotFound) {
				return apperrors.NotFoundWithID("Appointment", id)
			}
			return apperrors.Storage("Failed to reschedule appointment", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to reschedule appointment", "id", id, "error", err)
		return nil, err
	}

	existing.StartTime = start
	s.cfg.Log.Info("Appointment rescheduled successfully", "id", id, "start_time", start)
	s.publisher.Publish(ctx, events.TypeRescheduled, existing)
	return existing, nil
}

func (s *appointmentService) Cancel(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Appointment ID cannot be empty")
	}

	appt, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.repo.Delete(sessCtx, id); err != nil {
			if errors.Is(err, appterrors.ErrNotFound) {
				// removed between lookup and delete: still report honestly
				return apperrors.NotFoundWithID("Appointment", id)
			}
			if errors.Is(err, appterrors.ErrInvalidID) {
				return apperrors.InvalidInput("Invalid appointment ID format")
			}
			return apperrors.Storage("Failed to cancel appointment", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.cfg.Log.Info("Appointment cancelled successfully", "id", id)
	s.publisher.Publish(ctx, events.TypeCancelled, appt)
	return nil
}

// --- Helpers ---

func (s *appointmentService) normalize(raw string) (time.Time, error) {
	now := s.now()
	start, err := dateparse.Normalize(raw, now)
	if err != nil {
		var pastErr *dateparse.PastDateError
		if errors.As(err, &pastErr) {
			s.cfg.Log.Warn("Past-dated appointment rejected", "requested", pastErr.Parsed, "now", pastErr.Now)
			return time.Time{}, apperrors.PastDate(pastErr.Now)
		}
		s.cfg.Log.Warn("Malformed appointment date rejected", "raw", raw)
		return time.Time{}, apperrors.MalformedDate(raw)
	}
	return start, nil
}

func (s *appointmentService) validate(appt *model.Appointment) error {
	if err := s.validator.Validate(appt); err != nil {
		s.cfg.Log.Warn("Appointment validation failed", "error", err)
		return apperrors.Validation("Appointment validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}

// verifyNoConflict queries for live appointments strictly inside the open
// window (start-(D-1), start+(D-1)). A start sitting exactly on a window
// boundary is not a conflict.
func (s *appointmentService) verifyNoConflict(ctx context.Context, start time.Time, excludeID string) error {
	w := s.cfg.ConflictWindow()
	existing, err := s.repo.FindInWindow(ctx, start.Add(-w), start.Add(w), excludeID)
	if err != nil {
		return apperrors.Storage("Failed to check existing appointments", err)
	}

	if len(existing) > 0 {
		return apperrors.Conflict(fmt.Sprintf(
			"Requested time conflicts with an existing appointment at %s",
			existing[0].StartTime.Format("2006-01-02 15:04"),
		))
	}
	return nil
}

// The clinic books a single chair, so every check-then-act write serializes
// on one resource-wide lock. Locking per slot would let two bookings inside
// the same conflict window pass their checks against disjoint snapshots and
// both commit: transactions inserting distinct documents never
// write-conflict.
const scheduleLockID = "schedule_writer"

// acquireScheduleLock takes the resource-wide advisory lock, retrying in
// SlotLockRetryInterval steps for a bounded number of attempts covering
// SlotLockWait. A request that cannot take the lock in time gets a retryable
// busy outcome instead of queueing indefinitely.
func (s *appointmentService) acquireScheduleLock(ctx context.Context) error {
	attempts := int(s.cfg.SlotLockWait/s.cfg.SlotLockRetryInterval) + 1

	for i := 0; i < attempts; i++ {
		lock := &model.SlotLock{
			ID:        scheduleLockID,
			ExpiresAt: s.now().Add(s.cfg.SlotLockTTL),
		}

		_, err := s.lockRepo.Create(ctx, lock)
		if err == nil {
			return nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return apperrors.Storage("Failed to acquire schedule lock", err)
		}

		if i == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			// the caller is gone, so telling it to retry would be wrong
			return ctx.Err()
		case <-time.After(s.cfg.SlotLockRetryInterval):
		}
	}

	return apperrors.Busy("The schedule is currently being updated by another request. Please try again.")
}

func (s *appointmentService) releaseScheduleLock(ctx context.Context) error {
	return s.lockRepo.Delete(ctx, scheduleLockID)
}
