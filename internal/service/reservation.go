package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/cheche-app/api/internal/database"
	"github.com/cheche-app/api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
)

const (
	maxCNRRetries = 3
	cnrLength     = 6

	// DateLayout is the wire format for appointment dates.
	DateLayout = "01-02-2006"

	idempotencyTTL = 24 * time.Hour
)

// Errors returned by the reservation service.
var (
	ErrInvalidDate         = errors.New("invalid appointment_date, expected MM-DD-YYYY")
	ErrDateInPast          = errors.New("appointment_date must not be before today")
	ErrInvalidPartySize    = errors.New("party_size must be > 0")
	ErrInvalidServiceID    = errors.New("invalid branch_service_id")
	ErrInvalidDurationID   = errors.New("invalid duration_id")
	ErrServiceNotFound     = errors.New("service not found in branch")
	ErrDurationNotFound    = errors.New("duration not found in branch")
	ErrSlotFull            = errors.New("no remaining slots for the selected time")
	ErrInvalidTransition   = errors.New("reservation is not in the required status")
	ErrMissingName         = errors.New("first_name and last_name are required")
	ErrMissingMobile       = errors.New("mobile is required")
	ErrInvalidThrough      = errors.New("invalid appointment_through")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrDuplicateInFlight   = errors.New("a reservation with this idempotency key is already being processed")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ReservationStore defines the DB methods needed to create reservations.
// Satisfied by *database.Queries (and its WithTx variant).
type ReservationStore interface {
	GetBranch(ctx context.Context, id uuid.UUID) (database.Branch, error)
	GetBranchService(ctx context.Context, arg database.GetBranchServiceParams) (database.BranchService, error)
	GetDuration(ctx context.Context, arg database.GetDurationParams) (database.Duration, error)
	ListDurationsByBranch(ctx context.Context, branchID uuid.UUID) ([]database.Duration, error)
	GetSlotUsage(ctx context.Context, arg database.GetSlotUsageParams) ([]database.GetSlotUsageRow, error)
	CountActiveReservations(ctx context.Context, arg database.CountActiveReservationsParams) (int64, error)
	CreateReservation(ctx context.Context, arg database.CreateReservationParams) (database.Reservation, error)
	GetReservationForBranch(ctx context.Context, arg database.GetReservationForBranchParams) (database.Reservation, error)
	GetReservationByID(ctx context.Context, id uuid.UUID) (database.Reservation, error)
	CheckInReservation(ctx context.Context, id uuid.UUID) (database.Reservation, error)
	CheckOutReservation(ctx context.Context, id uuid.UUID) (database.Reservation, error)
	CancelReservation(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// NewReservationStore creates a ReservationStore from a DBTX (pool or tx).
type NewReservationStore func(db database.DBTX) ReservationStore

// TimeSlot is one bookable interval with remaining capacity.
type TimeSlot struct {
	DurationID     uuid.UUID `json:"duration_id"`
	TimeFrom       string    `json:"time_from"`
	TimeTo         string    `json:"time_to"`
	IsMorning      bool      `json:"is_morning"`
	RemainingSlots int64     `json:"remaining_slots"`
}

// CreateReservationRequest is the validated input for creating a reservation.
type CreateReservationRequest struct {
	BranchID           uuid.UUID
	BranchServiceID    string
	DurationID         string
	AppointmentDate    string // MM-DD-YYYY
	FirstName          string
	LastName           string
	Mobile             string
	PartySize          int32
	AppointmentThrough string
	CreatedBy          uuid.UUID
	IdempotencyKey     string
}

// ReservationService handles reservation business logic.
type ReservationService struct {
	store    ReservationStore
	pool     TxBeginner
	newStore NewReservationStore
	rdb      *redis.Client
}

// NewReservationService creates a new ReservationService. store serves
// non-transactional reads; newStore builds per-transaction stores. rdb may
// be nil, in which case the idempotency guard is disabled.
func NewReservationService(store ReservationStore, pool TxBeginner, newStore NewReservationStore, rdb *redis.Client) *ReservationService {
	return &ReservationService{store: store, pool: pool, newStore: newStore, rdb: rdb}
}

// Availability returns the branch's time slots for a service and date with
// remaining capacity. A slot's capacity is the branch's services_per_hour;
// confirmed and checked-in reservations consume it.
func (s *ReservationService) Availability(ctx context.Context, branchID uuid.UUID, serviceID uuid.UUID, date string) ([]TimeSlot, error) {
	store := s.store
	day, err := parseAppointmentDate(date)
	if err != nil {
		return nil, err
	}

	branch, err := store.GetBranch(ctx, branchID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, fmt.Errorf("get branch: %w", err)
	}

	if _, err := store.GetBranchService(ctx, database.GetBranchServiceParams{ID: serviceID, BranchID: branchID}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, fmt.Errorf("get branch service: %w", err)
	}

	durations, err := store.ListDurationsByBranch(ctx, branchID)
	if err != nil {
		return nil, fmt.Errorf("list durations: %w", err)
	}

	usage, err := store.GetSlotUsage(ctx, database.GetSlotUsageParams{
		BranchServiceID: serviceID,
		AppointmentDate: day,
	})
	if err != nil {
		return nil, fmt.Errorf("get slot usage: %w", err)
	}
	used := make(map[uuid.UUID]int64, len(usage))
	for _, u := range usage {
		used[u.DurationID] = u.ReservationCount
	}

	slots := make([]TimeSlot, 0, len(durations))
	for _, d := range durations {
		remaining := int64(branch.ServicesPerHour) - used[d.ID]
		if remaining < 0 {
			remaining = 0
		}
		slots = append(slots, TimeSlot{
			DurationID:     d.ID,
			TimeFrom:       d.TimeFrom,
			TimeTo:         d.TimeTo,
			IsMorning:      d.IsMorning,
			RemainingSlots: remaining,
		})
	}
	return slots, nil
}

// CreateReservation validates the request, re-checks slot capacity inside a
// transaction, and inserts the reservation with a fresh CNR. Retries up to
// maxCNRRetries times on CNR unique-constraint collisions.
//
// When an idempotency key is supplied, a duplicate submission returns the
// originally created reservation instead of booking twice.
func (s *ReservationService) CreateReservation(ctx context.Context, req CreateReservationRequest) (*database.Reservation, error) {
	if req.FirstName == "" || req.LastName == "" {
		return nil, ErrMissingName
	}
	if req.Mobile == "" {
		return nil, ErrMissingMobile
	}
	if req.PartySize <= 0 {
		return nil, ErrInvalidPartySize
	}

	through := req.AppointmentThrough
	if through == "" {
		through = enum.AppointmentThroughSelf
	}
	if through != enum.AppointmentThroughSelf && through != enum.AppointmentThroughAgent {
		return nil, ErrInvalidThrough
	}

	serviceID, err := uuid.Parse(req.BranchServiceID)
	if err != nil {
		return nil, ErrInvalidServiceID
	}
	durationID, err := uuid.Parse(req.DurationID)
	if err != nil {
		return nil, ErrInvalidDurationID
	}

	day, err := parseAppointmentDate(req.AppointmentDate)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if day.Before(today) {
		return nil, ErrDateInPast
	}

	if replayed, ok, err := s.claimIdempotencyKey(ctx, req.IdempotencyKey); err != nil {
		return nil, err
	} else if ok {
		return replayed, nil
	}

	var lastErr error
	for attempt := 0; attempt < maxCNRRetries; attempt++ {
		res, err := s.createReservationTx(ctx, req, serviceID, durationID, day, through)
		if err == nil {
			s.storeIdempotencyResult(ctx, req.IdempotencyKey, res.ID)
			return res, nil
		}
		if isCNRConflict(err) {
			lastErr = err
			continue
		}
		s.releaseIdempotencyKey(ctx, req.IdempotencyKey)
		return nil, err
	}
	s.releaseIdempotencyKey(ctx, req.IdempotencyKey)
	return nil, lastErr
}

// createReservationTx executes the capacity check and insert in one
// transaction.
func (s *ReservationService) createReservationTx(ctx context.Context, req CreateReservationRequest, serviceID, durationID uuid.UUID, day time.Time, through string) (*database.Reservation, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	branch, err := store.GetBranch(ctx, req.BranchID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, fmt.Errorf("get branch: %w", err)
	}

	if _, err := store.GetBranchService(ctx, database.GetBranchServiceParams{ID: serviceID, BranchID: req.BranchID}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, fmt.Errorf("get branch service: %w", err)
	}

	if _, err := store.GetDuration(ctx, database.GetDurationParams{ID: durationID, BranchID: req.BranchID}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDurationNotFound
		}
		return nil, fmt.Errorf("get duration: %w", err)
	}

	count, err := store.CountActiveReservations(ctx, database.CountActiveReservationsParams{
		BranchServiceID: serviceID,
		DurationID:      durationID,
		AppointmentDate: day,
	})
	if err != nil {
		return nil, fmt.Errorf("count reservations: %w", err)
	}
	if count >= int64(branch.ServicesPerHour) {
		return nil, ErrSlotFull
	}

	cnr, err := generateCNR()
	if err != nil {
		return nil, fmt.Errorf("generate cnr: %w", err)
	}

	res, err := store.CreateReservation(ctx, database.CreateReservationParams{
		Cnr:                cnr,
		BranchServiceID:    serviceID,
		DurationID:         durationID,
		AppointmentDate:    day,
		FirstName:          req.FirstName,
		LastName:           req.LastName,
		Mobile:             req.Mobile,
		PartySize:          req.PartySize,
		Status:             enum.ReservationStatusConfirmed,
		AppointmentThrough: through,
		CreatedBy:          req.CreatedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("create reservation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &res, nil
}

// CheckIn transitions confirmed → checked_in.
func (s *ReservationService) CheckIn(ctx context.Context, branchID, reservationID uuid.UUID) (*database.Reservation, error) {
	return s.transition(ctx, s.store, branchID, reservationID, enum.ReservationStatusConfirmed, s.store.CheckInReservation)
}

// CheckOut transitions checked_in → checked_out.
func (s *ReservationService) CheckOut(ctx context.Context, branchID, reservationID uuid.UUID) (*database.Reservation, error) {
	return s.transition(ctx, s.store, branchID, reservationID, enum.ReservationStatusCheckedIn, s.store.CheckOutReservation)
}

// Cancel transitions confirmed → cancelled.
func (s *ReservationService) Cancel(ctx context.Context, branchID, reservationID uuid.UUID) error {
	store := s.store
	existing, err := store.GetReservationForBranch(ctx, database.GetReservationForBranchParams{ID: reservationID, BranchID: branchID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrReservationNotFound
		}
		return fmt.Errorf("get reservation: %w", err)
	}
	if existing.Status != enum.ReservationStatusConfirmed {
		return ErrInvalidTransition
	}
	if _, err := store.CancelReservation(ctx, reservationID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInvalidTransition
		}
		return fmt.Errorf("cancel reservation: %w", err)
	}
	return nil
}

func (s *ReservationService) transition(ctx context.Context, store ReservationStore, branchID, reservationID uuid.UUID, wantStatus string, apply func(context.Context, uuid.UUID) (database.Reservation, error)) (*database.Reservation, error) {
	existing, err := store.GetReservationForBranch(ctx, database.GetReservationForBranchParams{ID: reservationID, BranchID: branchID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	if existing.Status != wantStatus {
		return nil, ErrInvalidTransition
	}
	res, err := apply(ctx, reservationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost a race with a concurrent transition.
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("update reservation: %w", err)
	}
	return &res, nil
}

// --- Idempotency guard ---

// claimIdempotencyKey reserves the key. Returns (reservation, true, nil)
// when the key was already used and the original reservation could be
// replayed, and ErrDuplicateInFlight when the first request with this key
// has not finished yet. A nil redis client or a redis failure disables the
// guard rather than blocking bookings.
func (s *ReservationService) claimIdempotencyKey(ctx context.Context, key string) (*database.Reservation, bool, error) {
	if s.rdb == nil || key == "" {
		return nil, false, nil
	}
	set, err := s.rdb.SetNX(ctx, idempotencyRedisKey(key), "pending", idempotencyTTL).Result()
	if err != nil || set {
		return nil, false, nil
	}

	val, err := s.rdb.Get(ctx, idempotencyRedisKey(key)).Result()
	if err != nil {
		return nil, false, nil
	}
	if val == "pending" {
		// First request still in flight; a second insert would book twice.
		return nil, false, ErrDuplicateInFlight
	}
	id, err := uuid.Parse(val)
	if err != nil {
		return nil, false, nil
	}
	res, err := s.store.GetReservationByID(ctx, id)
	if err != nil {
		return nil, false, nil
	}
	return &res, true, nil
}

func (s *ReservationService) storeIdempotencyResult(ctx context.Context, key string, id uuid.UUID) {
	if s.rdb == nil || key == "" {
		return
	}
	s.rdb.Set(ctx, idempotencyRedisKey(key), id.String(), idempotencyTTL)
}

func (s *ReservationService) releaseIdempotencyKey(ctx context.Context, key string) {
	if s.rdb == nil || key == "" {
		return
	}
	s.rdb.Del(ctx, idempotencyRedisKey(key))
}

func idempotencyRedisKey(key string) string {
	return "reservation:idem:" + key
}

// --- Helpers ---

func parseAppointmentDate(s string) (time.Time, error) {
	day, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return day, nil
}

// isCNRConflict checks if the error is a unique constraint violation on
// the reservation CNR (pgconn error code 23505).
func isCNRConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "reservations_cnr_key"
	}
	return false
}

const cnrAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ"

// generateCNR produces a 6-letter confirmation code. Ambiguous letters
// (I, O) are excluded.
func generateCNR() (string, error) {
	buf := make([]byte, cnrLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(cnrAlphabet))))
		if err != nil {
			return "", err
		}
		buf[i] = cnrAlphabet[n.Int64()]
	}
	return string(buf), nil
}
