package shift

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrEmptyUserID and ErrEmptyID signal a broken caller contract: every
// repository operation requires a partition key, and the id-addressed ones a
// document id. Handlers must never let an empty value reach the store.
var (
	ErrEmptyUserID = errors.New("user id must not be empty")
	ErrEmptyID     = errors.New("shift id must not be empty")
)

// visibleShift is the uniform visibility predicate: the caller owns the
// document and it has not been soft-deleted. Owner mismatch is therefore
// indistinguishable from not-found. The deleted key is omitted from
// documents where it is false, hence the coalesce.
const visibleShift = `user_id = $1 AND NOT coalesce((doc->>'deleted')::boolean, false)`

// Store persists shift documents. Each shift (with its embedded job list)
// is one jsonb document in the shifts table, partitioned by the owner's
// user id. Writes replace the whole document; there is no concurrency token
// on the read-modify-write cycle, matching the service's historical
// behavior.
type Store struct {
	pool    *pgxpool.Pool
	observe ObserveFunc

	initOnce sync.Once
	initErr  error
}

// ObserveFunc receives the outcome of one repository operation.
type ObserveFunc func(operation string, err error, seconds float64)

// NewStore creates a Store backed by the given connection pool. The backing
// table is created lazily on first use.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Instrument registers a hook invoked after every repository operation.
func (s *Store) Instrument(fn ObserveFunc) {
	s.observe = fn
}

func (s *Store) observeOp(operation string, start time.Time, err error) {
	if s.observe != nil {
		s.observe(operation, err, time.Since(start).Seconds())
	}
}

// init ensures the shifts table exists. Migrations are the deployment path;
// this mirrors the store's create-if-missing contract so that dev and test
// environments work from an empty database.
func (s *Store) init(ctx context.Context) error {
	s.initOnce.Do(func() {
		statements := []string{
			`CREATE TABLE IF NOT EXISTS shifts (
				id text PRIMARY KEY,
				user_id text NOT NULL,
				doc jsonb NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS shifts_user_id_idx ON shifts (user_id)`,
		}
		for _, stmt := range statements {
			if _, err := s.pool.Exec(ctx, stmt); err != nil {
				s.initErr = fmt.Errorf("initialising shifts table: %w", err)
				return
			}
		}
	})
	return s.initErr
}

// newID produces a fresh opaque document id.
func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// AddShift stores a new shift for the user and returns its assigned id.
func (s *Store) AddShift(ctx context.Context, userID string, ns *NewShift) (id string, err error) {
	defer func(start time.Time) { s.observeOp("add_shift", start, err) }(time.Now())

	if strings.TrimSpace(userID) == "" {
		return "", ErrEmptyUserID
	}
	if ns == nil {
		return "", errors.New("new shift must not be nil")
	}
	if err := s.init(ctx); err != nil {
		return "", err
	}

	sh := &Shift{
		ID:       newID(),
		UserID:   userID,
		Date:     ns.Date,
		Duration: ns.Duration,
		Event:    ns.Event,
		Location: ns.Location,
		Role:     ns.Role,
		CrewMate: ns.CrewMate,
		Jobs:     []Job{},
	}

	doc, err := json.Marshal(sh)
	if err != nil {
		return "", fmt.Errorf("marshalling shift: %w", err)
	}

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO shifts (id, user_id, doc) VALUES ($1, $2, $3)`,
		sh.ID, userID, doc,
	); err != nil {
		return "", fmt.Errorf("inserting shift: %w", err)
	}
	return sh.ID, nil
}

// GetShift returns the shift only if it exists, is owned by the user, and
// has not been soft-deleted; otherwise (nil, nil).
func (s *Store) GetShift(ctx context.Context, userID, id string) (sh *Shift, err error) {
	defer func(start time.Time) { s.observeOp("get_shift", start, err) }(time.Now())

	if strings.TrimSpace(userID) == "" {
		return nil, ErrEmptyUserID
	}
	if strings.TrimSpace(id) == "" {
		return nil, ErrEmptyID
	}
	if err := s.init(ctx); err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx,
		`SELECT doc FROM shifts WHERE `+visibleShift+` AND id = $2`,
		userID, id,
	)
	return scanShift(row)
}

// GetAllShifts returns every non-deleted shift owned by the user, in no
// particular order; callers impose their own ordering.
func (s *Store) GetAllShifts(ctx context.Context, userID string) (shifts []*Shift, err error) {
	defer func(start time.Time) { s.observeOp("get_all_shifts", start, err) }(time.Now())

	if strings.TrimSpace(userID) == "" {
		return nil, ErrEmptyUserID
	}
	if err := s.init(ctx); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT doc FROM shifts WHERE `+visibleShift,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing shifts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		sh, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		shifts = append(shifts, sh)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating shifts: %w", err)
	}
	return shifts, nil
}

// UpdateShift replaces the stored document for sh.ID, but only while the
// existing document is visible to the user. Returns false when the target
// is missing, owned by someone else, or soft-deleted; nothing is written in
// those cases.
func (s *Store) UpdateShift(ctx context.Context, userID string, sh *Shift) (ok bool, err error) {
	defer func(start time.Time) { s.observeOp("update_shift", start, err) }(time.Now())

	if strings.TrimSpace(userID) == "" {
		return false, ErrEmptyUserID
	}
	if sh == nil {
		return false, errors.New("shift must not be nil")
	}
	if strings.TrimSpace(sh.ID) == "" {
		return false, ErrEmptyID
	}
	if err := s.init(ctx); err != nil {
		return false, err
	}

	// The owner is immutable regardless of what the caller put in the
	// document.
	sh.UserID = userID

	return s.replace(ctx, userID, sh)
}

// DeleteShift marks the shift as deleted. Returns false when the shift is
// missing, owned by someone else, or already deleted.
func (s *Store) DeleteShift(ctx context.Context, userID, id string) (ok bool, err error) {
	defer func(start time.Time) { s.observeOp("delete_shift", start, err) }(time.Now())

	sh, err := s.getOwned(ctx, userID, id)
	if err != nil {
		return false, err
	}
	if sh == nil || sh.Deleted {
		return false, nil
	}
	sh.Deleted = true
	return s.replace(ctx, userID, sh)
}

// UndeleteShift clears the deleted flag. Returns false when the shift is
// missing, owned by someone else, or not currently deleted.
func (s *Store) UndeleteShift(ctx context.Context, userID, id string) (ok bool, err error) {
	defer func(start time.Time) { s.observeOp("undelete_shift", start, err) }(time.Now())

	sh, err := s.getOwned(ctx, userID, id)
	if err != nil {
		return false, err
	}
	if sh == nil || !sh.Deleted {
		return false, nil
	}
	sh.Deleted = false

	doc, err := json.Marshal(sh)
	if err != nil {
		return false, fmt.Errorf("marshalling shift: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE shifts SET doc = $3 WHERE user_id = $1 AND id = $2 AND coalesce((doc->>'deleted')::boolean, false)`,
		userID, sh.ID, doc,
	)
	if err != nil {
		return false, fmt.Errorf("replacing shift: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// AddJob appends a job to the parent shift's embedded list and writes the
// whole document back. Returns false when the parent shift is missing,
// owned by someone else, or soft-deleted.
func (s *Store) AddJob(ctx context.Context, userID string, nj *NewJob) (ok bool, err error) {
	defer func(start time.Time) { s.observeOp("add_job", start, err) }(time.Now())

	if strings.TrimSpace(userID) == "" {
		return false, ErrEmptyUserID
	}
	if nj == nil {
		return false, errors.New("new job must not be nil")
	}

	sh, err := s.GetShift(ctx, userID, nj.Shift)
	if err != nil {
		return false, err
	}
	if sh == nil {
		return false, nil
	}

	sh.Jobs = append(sh.Jobs, Job{
		ID:             newID(),
		Age:            nj.Age,
		Category:       nj.Category,
		Gender:         nj.Gender,
		BlueLights:     nj.BlueLights,
		Drove:          nj.Drove,
		Notes:          nj.Notes,
		Outcome:        nj.Outcome,
		ReflectionFlag: nj.ReflectionFlag,
	})

	return s.replace(ctx, userID, sh)
}

// getOwned fetches the user's document regardless of its deleted state.
// Used by the delete/undelete cycle, which needs to see both sides of the
// flag.
func (s *Store) getOwned(ctx context.Context, userID, id string) (*Shift, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrEmptyUserID
	}
	if strings.TrimSpace(id) == "" {
		return nil, ErrEmptyID
	}
	if err := s.init(ctx); err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx,
		`SELECT doc FROM shifts WHERE user_id = $1 AND id = $2`,
		userID, id,
	)
	return scanShift(row)
}

// replace writes the full document back, guarded by the visibility
// predicate so a concurrent soft delete cannot be clobbered by a stale
// write. There is deliberately no version check beyond that.
func (s *Store) replace(ctx context.Context, userID string, sh *Shift) (bool, error) {
	doc, err := json.Marshal(sh)
	if err != nil {
		return false, fmt.Errorf("marshalling shift: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE shifts SET doc = $3 WHERE `+visibleShift+` AND id = $2`,
		userID, sh.ID, doc,
	)
	if err != nil {
		return false, fmt.Errorf("replacing shift: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanShift(row pgx.Row) (*Shift, error) {
	var doc []byte
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning shift: %w", err)
	}
	var sh Shift
	if err := json.Unmarshal(doc, &sh); err != nil {
		return nil, fmt.Errorf("unmarshalling shift: %w", err)
	}
	return &sh, nil
}
