package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	appterrors "breez/internal/appointments/errors"
	"breez/internal/appointments/events"
	"breez/internal/appointments/validator"
	"breez/pkg/config"
	apperrors "breez/pkg/errors"
	"breez/pkg/logger"
	"breez/pkg/model"
	mongotx "breez/pkg/db/mongo"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// --- In-memory repository ---

type memoryAppointmentRepo struct {
	mu    sync.Mutex
	appts map[string]*model.Appointment

	// findInWindowDelay stretches the conflict check so concurrent callers
	// overlap in time.
	findInWindowDelay time.Duration
}

func newMemoryAppointmentRepo() *memoryAppointmentRepo {
	return &memoryAppointmentRepo{appts: make(map[string]*model.Appointment)}
}

func (r *memoryAppointmentRepo) Create(_ context.Context, appt *model.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	appt.ID = primitive.NewObjectID().Hex()
	appt.CreatedAt = time.Now()
	stored := *appt
	r.appts[appt.ID] = &stored
	return nil
}

func (r *memoryAppointmentRepo) FindByID(_ context.Context, id string) (*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	appt, ok := r.appts[id]
	if !ok {
		return nil, appterrors.ErrNotFound
	}
	copied := *appt
	return &copied, nil
}

func (r *memoryAppointmentRepo) FindAll(_ context.Context, namePattern string, age *int, limit int, offset int64) ([]*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.Appointment
	for _, appt := range r.appts {
		if !matchesFilters(appt, namePattern, age) {
			continue
		}
		copied := *appt
		out = append(out, &copied)
	}
	return out, nil
}

func (r *memoryAppointmentRepo) Count(_ context.Context, namePattern string, age *int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for _, appt := range r.appts {
		if matchesFilters(appt, namePattern, age) {
			count++
		}
	}
	return count, nil
}

// matchesFilters mirrors the repository filter: case-insensitive substring
// match on patient name, exact match on age.
func matchesFilters(appt *model.Appointment, namePattern string, age *int) bool {
	if namePattern != "" && !strings.Contains(strings.ToLower(appt.PatientName), strings.ToLower(namePattern)) {
		return false
	}
	if age != nil && appt.Age != *age {
		return false
	}
	return true
}

func (r *memoryAppointmentRepo) FindInWindow(_ context.Context, startExclusive, endExclusive time.Time, excludeID string) ([]*model.Appointment, error) {
	if r.findInWindowDelay > 0 {
		time.Sleep(r.findInWindowDelay)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.Appointment
	for _, appt := range r.appts {
		if appt.ID == excludeID {
			continue
		}
		if appt.StartTime.After(startExclusive) && appt.StartTime.Before(endExclusive) {
			copied := *appt
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memoryAppointmentRepo) FindByDay(_ context.Context, dayStart, dayEnd time.Time) ([]*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.Appointment
	for _, appt := range r.appts {
		if !appt.StartTime.Before(dayStart) && appt.StartTime.Before(dayEnd) {
			copied := *appt
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memoryAppointmentRepo) UpdateStartTime(_ context.Context, id string, start time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	appt, ok := r.appts[id]
	if !ok {
		return appterrors.ErrNotFound
	}
	appt.StartTime = start
	return nil
}

func (r *memoryAppointmentRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.appts[id]; !ok {
		return appterrors.ErrNotFound
	}
	delete(r.appts, id)
	return nil
}

func (r *memoryAppointmentRepo) ExecuteTransaction(_ context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

func (r *memoryAppointmentRepo) all() []*model.Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.Appointment
	for _, appt := range r.appts {
		copied := *appt
		out = append(out, &copied)
	}
	return out
}

// --- In-memory slot lock repository ---

type memorySlotLockRepo struct {
	mu      sync.Mutex
	held    map[string]bool
	stuck   bool // when set, every acquisition reports the lock as held
	creates int
}

func newMemorySlotLockRepo() *memorySlotLockRepo {
	return &memorySlotLockRepo{held: make(map[string]bool)}
}

func duplicateKeyErr() error {
	return mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000}}}
}

func (r *memorySlotLockRepo) Create(_ context.Context, lock *model.SlotLock) (*model.SlotLock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.creates++
	if r.stuck || r.held[lock.ID] {
		return nil, duplicateKeyErr()
	}
	r.held[lock.ID] = true
	return lock, nil
}

func (r *memorySlotLockRepo) Delete(_ context.Context, lockID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.held, lockID)
	return nil
}

// --- Fixture ---

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.Local)

func newTestService(t *testing.T) (*appointmentService, *memoryAppointmentRepo, *memorySlotLockRepo) {
	t.Helper()

	log := logger.New(logger.Config{Level: "error", Output: io.Discard})
	cfg := &config.Config{
		WorkStartHour:          config.DefaultWorkStartHour,
		WorkEndHour:            config.DefaultWorkEndHour,
		AppointmentDurationMin: config.DefaultAppointmentDurationMin,
		SlotLockTTL:            config.DefaultSlotLockTTL,
		SlotLockWait:           50 * time.Millisecond,
		SlotLockRetryInterval:  10 * time.Millisecond,
		Log:                    log,
	}

	publisher, err := events.NewPublisher(cfg)
	if err != nil {
		t.Fatalf("NewPublisher() error = %v", err)
	}

	repo := newMemoryAppointmentRepo()
	lockRepo := newMemorySlotLockRepo()
	svc := NewAppointmentService(repo, lockRepo, validator.NewAppointmentValidator(log), publisher, cfg).(*appointmentService)
	svc.now = func() time.Time { return testNow }
	return svc, repo, lockRepo
}

func bookingRequest(date string) *model.AppointmentRequest {
	return &model.AppointmentRequest{
		PatientName:     "Jane Doe",
		Age:             34,
		Service:         "Cleaning",
		AppointmentDate: date,
	}
}

func assertCode(t *testing.T, err error, wantCode string) *apperrors.AppError {
	t.Helper()

	if err == nil {
		t.Fatalf("expected error with code %s, got nil", wantCode)
	}
	appErr := apperrors.AsAppError(err)
	if appErr == nil {
		t.Fatalf("expected AppError, got %T: %v", err, err)
	}
	if appErr.Code != wantCode {
		t.Fatalf("error code = %s, want %s (message: %s)", appErr.Code, wantCode, appErr.Message)
	}
	return appErr
}

// --- Booking ---

func TestBook_Success(t *testing.T) {
	svc, _, lockRepo := newTestService(t)

	appt, err := svc.Book(context.Background(), bookingRequest("2099-01-10 09:00"))
	if err != nil {
		t.Fatalf("Book() error = %v", err)
	}
	if appt.ID == "" {
		t.Error("expected appointment ID to be set")
	}
	if got := appt.StartTime.Format("2006-01-02 15:04"); got != "2099-01-10 09:00" {
		t.Errorf("StartTime = %s, want 2099-01-10 09:00", got)
	}
	if appt.PatientName != "Jane Doe" {
		t.Errorf("PatientName = %s, want Jane Doe", appt.PatientName)
	}
	if appt.Service != "cleaning" {
		t.Errorf("Service = %s, want cleaning", appt.Service)
	}
	if len(lockRepo.held) != 0 {
		t.Errorf("slot lock not released, %d still held", len(lockRepo.held))
	}
}

func TestBook_TruncatesSeconds(t *testing.T) {
	svc, _, _ := newTestService(t)

	appt, err := svc.Book(context.Background(), bookingRequest("2099-01-10T09:00:45"))
	if err != nil {
		t.Fatalf("Book() error = %v", err)
	}
	if appt.StartTime.Second() != 0 {
		t.Errorf("StartTime seconds = %d, want 0", appt.StartTime.Second())
	}
}

func TestBook_ConflictWithinWindow(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Book(ctx, bookingRequest("2099-01-10 09:00")); err != nil {
		t.Fatalf("first Book() error = %v", err)
	}

	_, err := svc.Book(ctx, bookingRequest("2099-01-10 09:30"))
	assertCode(t, err, apperrors.CodeConflict)
}

func TestBook_AdjacentSlotAllowed(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Book(ctx, bookingRequest("2099-01-10 09:00")); err != nil {
		t.Fatalf("first Book() error = %v", err)
	}
	// exactly one duration apart: window boundaries touch but do not overlap
	if _, err := svc.Book(ctx, bookingRequest("2099-01-10 10:00")); err != nil {
		t.Fatalf("adjacent Book() error = %v", err)
	}
}

func TestBook_ConflictWindowBoundaries(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Book(ctx, bookingRequest("2099-01-10 09:00")); err != nil {
		t.Fatalf("first Book() error = %v", err)
	}

	// one minute inside the open window conflicts
	_, err := svc.Book(ctx, bookingRequest("2099-01-10 09:58"))
	assertCode(t, err, apperrors.CodeConflict)

	// exactly on the window boundary does not
	if _, err := svc.Book(ctx, bookingRequest("2099-01-10 09:59")); err != nil {
		t.Fatalf("Book() on window boundary error = %v", err)
	}
}

func TestBook_PastDate(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Book(context.Background(), bookingRequest("2020-01-01 10:00"))
	appErr := assertCode(t, err, apperrors.CodePastDate)

	if appErr.Details["current_date"] != testNow.Format("2006-01-02 15:04") {
		t.Errorf("current_date detail = %v, want %s", appErr.Details["current_date"], testNow.Format("2006-01-02 15:04"))
	}
}

func TestBook_SameMinuteAsNowAccepted(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Book(context.Background(), bookingRequest(testNow.Format("2006-01-02 15:04")))
	if err != nil {
		t.Fatalf("Book() at the current minute error = %v", err)
	}
}

func TestBook_OutOfHours(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		date string
	}{
		{"evening", "2099-01-10 20:00"},
		{"before opening", "2099-01-10 07:59"},
		{"at closing hour", "2099-01-10 16:00"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Book(ctx, bookingRequest(tc.date))
			assertCode(t, err, apperrors.CodeOutOfHours)
		})
	}
}

func TestBook_LastWorkingHourAccepted(t *testing.T) {
	svc, _, _ := newTestService(t)

	if _, err := svc.Book(context.Background(), bookingRequest("2099-01-10 15:59")); err != nil {
		t.Fatalf("Book() at 15:59 error = %v", err)
	}
}

func TestBook_MalformedDate(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	for _, raw := range []string{"not-a-date", "2099-13-40 09:00", "", "10/2099/01 09:00"} {
		_, err := svc.Book(ctx, bookingRequest(raw))
		assertCode(t, err, apperrors.CodeMalformedDate)
	}
}

func TestBook_ValidationFailure(t *testing.T) {
	svc, _, _ := newTestService(t)

	req := bookingRequest("2099-01-10 09:00")
	req.PatientName = ""
	_, err := svc.Book(context.Background(), req)
	assertCode(t, err, apperrors.CodeValidation)
}

func TestBook_BusyWhenScheduleLockHeld(t *testing.T) {
	svc, _, lockRepo := newTestService(t)
	lockRepo.stuck = true

	done := make(chan error, 1)
	go func() {
		_, err := svc.Book(context.Background(), bookingRequest("2099-01-10 09:00"))
		done <- err
	}()

	// the wait is bounded by retry attempts, so it must give up even though
	// the service clock is frozen in this fixture
	select {
	case err := <-done:
		appErr := assertCode(t, err, apperrors.CodeBusy)
		if appErr.StatusCode() != 503 {
			t.Errorf("StatusCode() = %d, want 503", appErr.StatusCode())
		}
		if lockRepo.creates < 2 {
			t.Errorf("lock acquisition attempts = %d, want retries before giving up", lockRepo.creates)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Book() did not give up waiting for the schedule lock")
	}
}

func TestBook_LockSharedAcrossSlots(t *testing.T) {
	svc, _, lockRepo := newTestService(t)
	lockRepo.held[scheduleLockID] = true

	// a booking far from whoever holds the lock still contends on it: the
	// whole schedule has one writer at a time
	_, err := svc.Book(context.Background(), bookingRequest("2099-01-10 09:30"))
	assertCode(t, err, apperrors.CodeBusy)
}

func TestBook_ConcurrentOverlappingSerialized(t *testing.T) {
	svc, repo, _ := newTestService(t)
	svc.cfg.SlotLockWait = time.Second
	repo.findInWindowDelay = 50 * time.Millisecond

	// two requests thirty minutes apart race; the slow conflict check gives
	// both a chance to read the schedule before either write lands
	errs := make(chan error, 2)
	for _, date := range []string{"2099-01-10 09:00", "2099-01-10 09:30"} {
		go func(date string) {
			_, err := svc.Book(context.Background(), bookingRequest(date))
			errs <- err
		}(date)
	}

	var booked, conflicted int
	for i := 0; i < 2; i++ {
		switch err := <-errs; {
		case err == nil:
			booked++
		case apperrors.AsAppError(err) != nil && apperrors.AsAppError(err).Code == apperrors.CodeConflict:
			conflicted++
		default:
			t.Fatalf("Book() unexpected error = %v", err)
		}
	}

	if booked != 1 || conflicted != 1 {
		t.Errorf("booked = %d, conflicted = %d, want exactly one of each", booked, conflicted)
	}
	if got := len(repo.all()); got != 1 {
		t.Fatalf("%d appointments persisted, want 1", got)
	}
}

func TestBook_CancelledContextStopsLockWait(t *testing.T) {
	svc, _, lockRepo := newTestService(t)
	lockRepo.stuck = true

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Book(ctx, bookingRequest("2099-01-10 09:00"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Book() error = %v, want context.Canceled", err)
	}
	if appErr := apperrors.AsAppError(err); appErr != nil && appErr.Code == apperrors.CodeBusy {
		t.Error("aborted request reported as retryable busy")
	}
}

func TestBook_RandomizedNoOverlap(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		day := 10 + rng.Intn(3)
		hour := svc.cfg.WorkStartHour + rng.Intn(svc.cfg.WorkEndHour-svc.cfg.WorkStartHour)
		minute := rng.Intn(60)
		date := fmt.Sprintf("2099-01-%02d %02d:%02d", day, hour, minute)

		_, err := svc.Book(ctx, bookingRequest(date))
		if err != nil && apperrors.AsAppError(err).Code != apperrors.CodeConflict {
			t.Fatalf("Book(%s) unexpected error = %v", date, err)
		}
	}

	appts := repo.all()
	window := svc.cfg.ConflictWindow()
	for i, a := range appts {
		for j, b := range appts {
			if i == j {
				continue
			}
			gap := a.StartTime.Sub(b.StartTime)
			if gap < 0 {
				gap = -gap
			}
			if gap < window {
				t.Fatalf("overlapping appointments persisted: %s and %s",
					a.StartTime.Format("2006-01-02 15:04"), b.StartTime.Format("2006-01-02 15:04"))
			}
		}
	}
}

// --- Reschedule ---

func TestReschedule_Success(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	appt, err := svc.Book(ctx, bookingRequest("2099-01-10 09:00"))
	if err != nil {
		t.Fatalf("Book() error = %v", err)
	}

	moved, err := svc.Reschedule(ctx, appt.ID, "2099-01-10 11:00")
	if err != nil {
		t.Fatalf("Reschedule() error = %v", err)
	}
	if got := moved.StartTime.Format("15:04"); got != "11:00" {
		t.Errorf("StartTime = %s, want 11:00", got)
	}
	if moved.PatientName != appt.PatientName {
		t.Errorf("PatientName changed on reschedule: %s", moved.PatientName)
	}
}

func TestReschedule_ExcludesItself(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	appt, err := svc.Book(ctx, bookingRequest("2099-01-10 09:00"))
	if err != nil {
		t.Fatalf("Book() error = %v", err)
	}

	// moving to its own current time must not self-conflict
	if _, err := svc.Reschedule(ctx, appt.ID, "2099-01-10 09:00"); err != nil {
		t.Fatalf("Reschedule() to own slot error = %v", err)
	}

	// nor does moving thirty minutes inside its own window
	if _, err := svc.Reschedule(ctx, appt.ID, "2099-01-10 09:30"); err != nil {
		t.Fatalf("Reschedule() into own window error = %v", err)
	}
}

func TestReschedule_ConflictWithOther(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Book(ctx, bookingRequest("2099-01-10 09:00")); err != nil {
		t.Fatalf("Book() error = %v", err)
	}
	other, err := svc.Book(ctx, bookingRequest("2099-01-10 11:00"))
	if err != nil {
		t.Fatalf("second Book() error = %v", err)
	}

	_, err = svc.Reschedule(ctx, other.ID, "2099-01-10 09:30")
	assertCode(t, err, apperrors.CodeConflict)
}

func TestReschedule_NotFound(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Reschedule(context.Background(), primitive.NewObjectID().Hex(), "2099-01-10 09:00")
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestReschedule_OutOfHours(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	appt, err := svc.Book(ctx, bookingRequest("2099-01-10 09:00"))
	if err != nil {
		t.Fatalf("Book() error = %v", err)
	}

	_, err = svc.Reschedule(ctx, appt.ID, "2099-01-10 19:00")
	assertCode(t, err, apperrors.CodeOutOfHours)
}

// --- Cancel ---

func TestCancel_Success(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	appt, err := svc.Book(ctx, bookingRequest("2099-01-10 09:00"))
	if err != nil {
		t.Fatalf("Book() error = %v", err)
	}

	if err := svc.Cancel(ctx, appt.ID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if len(repo.all()) != 0 {
		t.Error("appointment still present after cancel")
	}
}

func TestCancel_Twice(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	appt, err := svc.Book(ctx, bookingRequest("2099-01-10 09:00"))
	if err != nil {
		t.Fatalf("Book() error = %v", err)
	}
	if err := svc.Cancel(ctx, appt.ID); err != nil {
		t.Fatalf("first Cancel() error = %v", err)
	}

	err = svc.Cancel(ctx, appt.ID)
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestCancel_FreesTheSlot(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	appt, err := svc.Book(ctx, bookingRequest("2099-01-10 09:00"))
	if err != nil {
		t.Fatalf("Book() error = %v", err)
	}
	if err := svc.Cancel(ctx, appt.ID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	if _, err := svc.Book(ctx, bookingRequest("2099-01-10 09:30")); err != nil {
		t.Fatalf("Book() into freed window error = %v", err)
	}
}

// --- Lookup ---

func TestGetByID_EmptyID(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.GetByID(context.Background(), "")
	assertCode(t, err, apperrors.CodeInvalidInput)
}

func TestList_ReturnsCountAndPage(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	for _, date := range []string{"2099-01-10 09:00", "2099-01-10 11:00", "2099-01-10 13:00"} {
		if _, err := svc.Book(ctx, bookingRequest(date)); err != nil {
			t.Fatalf("Book(%s) error = %v", date, err)
		}
	}

	appts, count, err := svc.List(ctx, "", nil, 10, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
	if len(appts) != 3 {
		t.Errorf("len(appts) = %d, want 3", len(appts))
	}
}

func TestList_FiltersByNameAndAge(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	patients := []struct {
		name string
		age  int
		date string
	}{
		{"Alice Cohen", 30, "2099-01-10 09:00"},
		{"Bob Levi", 45, "2099-01-10 11:00"},
		{"Alicia Stone", 30, "2099-01-10 13:00"},
	}
	for _, p := range patients {
		req := bookingRequest(p.date)
		req.PatientName = p.name
		req.Age = p.age
		if _, err := svc.Book(ctx, req); err != nil {
			t.Fatalf("Book(%s) error = %v", p.name, err)
		}
	}

	// name filter is a case-insensitive substring match
	appts, count, err := svc.List(ctx, "alic", nil, 10, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if count != 2 || len(appts) != 2 {
		t.Fatalf("name filter: count = %d, len = %d, want 2 and 2", count, len(appts))
	}
	for _, appt := range appts {
		if !strings.Contains(strings.ToLower(appt.PatientName), "alic") {
			t.Errorf("unexpected patient %s in filtered page", appt.PatientName)
		}
	}

	age := 30
	appts, count, err = svc.List(ctx, "alice", &age, 10, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if count != 1 || len(appts) != 1 {
		t.Fatalf("combined filter: count = %d, len = %d, want 1 and 1", count, len(appts))
	}
	if appts[0].PatientName != "Alice Cohen" {
		t.Errorf("PatientName = %s, want Alice Cohen", appts[0].PatientName)
	}
}
