package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/conference-scheduler/internal/persistence"
)

// Store implements persistence.Store on a relational database.
type Store struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
	retry  *RetryHelper
}

var _ persistence.Store = (*Store)(nil)

// NewStore builds a store on an open, migrated database.
func NewStore(db *sql.DB, dialect Dialect) *Store {
	return NewStoreWithRetry(db, dialect, DefaultRetryConfig())
}

// NewStoreWithRetry builds a store with a custom retry policy for busy databases.
func NewStoreWithRetry(db *sql.DB, dialect Dialect, retry RetryConfig) *Store {
	pool := NewConnectionPool(db, dialect)
	mapper := NewErrorMapper(dialect)
	return &Store{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: mapper,
		retry:  NewRetryHelper(retry, mapper),
	}
}

// Pool exposes the connection pool for health checks.
func (s *Store) Pool() *ConnectionPool {
	return s.pool
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.pool.Close()
}

// SaveConference upserts the conference row and replaces its rooms.
func (s *Store) SaveConference(ctx context.Context, conference persistence.Conference) error {
	if conference.ID == "" {
		return persistence.ErrConstraintViolation
	}
	return s.retry.WithRetry(ctx, func() error {
		return s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			_, err := s.helper.ExecTx(ctx, tx, `
				INSERT INTO conferences (id, name, window_start, window_end, slot_duration_minutes, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (id) DO UPDATE SET
					name = excluded.name,
					window_start = excluded.window_start,
					window_end = excluded.window_end,
					slot_duration_minutes = excluded.slot_duration_minutes,
					updated_at = excluded.updated_at`,
				conference.ID,
				conference.Name,
				formatTime(conference.WindowStart),
				formatTime(conference.WindowEnd),
				conference.SlotDurationMinutes,
				formatTime(conference.CreatedAt),
				formatTime(conference.UpdatedAt),
			)
			if err != nil {
				return fmt.Errorf("upsert conference: %w", err)
			}

			if _, err := s.helper.ExecTx(ctx, tx, `DELETE FROM conference_rooms WHERE conference_id = ?`, conference.ID); err != nil {
				return fmt.Errorf("clear rooms: %w", err)
			}
			for i, room := range conference.Rooms {
				var capacity sql.NullInt64
				if room.Capacity != nil {
					capacity = sql.NullInt64{Int64: int64(*room.Capacity), Valid: true}
				}
				_, err := s.helper.ExecTx(ctx, tx, `
					INSERT INTO conference_rooms (conference_id, position, room_id, name, capacity)
					VALUES (?, ?, ?, ?, ?)`,
					conference.ID, i, room.ID, room.Name, capacity,
				)
				if err != nil {
					return fmt.Errorf("insert room %d: %w", i, err)
				}
			}
			return nil
		})
	})
}

// GetConference loads a conference with its rooms in stored order.
func (s *Store) GetConference(ctx context.Context, id string) (persistence.Conference, error) {
	var conference persistence.Conference
	err := s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var windowStart, windowEnd, createdAt, updatedAt string
		row := s.helper.QueryRowTx(ctx, tx, `
			SELECT id, name, window_start, window_end, slot_duration_minutes, created_at, updated_at
			FROM conferences WHERE id = ?`, id)
		if err := row.Scan(
			&conference.ID,
			&conference.Name,
			&windowStart,
			&windowEnd,
			&conference.SlotDurationMinutes,
			&createdAt,
			&updatedAt,
		); err != nil {
			return err
		}

		var err error
		if conference.WindowStart, err = parseTime(windowStart); err != nil {
			return err
		}
		if conference.WindowEnd, err = parseTime(windowEnd); err != nil {
			return err
		}
		if conference.CreatedAt, err = parseTime(createdAt); err != nil {
			return err
		}
		if conference.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return err
		}

		rows, err := s.helper.QueryTx(ctx, tx, `
			SELECT position, room_id, name, capacity
			FROM conference_rooms WHERE conference_id = ? ORDER BY position`, id)
		if err != nil {
			return err
		}
		defer rows.Close()

		conference.Rooms = []persistence.Room{}
		for rows.Next() {
			var room persistence.Room
			var capacity sql.NullInt64
			if err := rows.Scan(&room.Position, &room.ID, &room.Name, &capacity); err != nil {
				return err
			}
			if capacity.Valid {
				value := int(capacity.Int64)
				room.Capacity = &value
			}
			conference.Rooms = append(conference.Rooms, room)
		}
		return rows.Err()
	})
	if err != nil {
		return persistence.Conference{}, s.mapper.MapError(err)
	}
	return conference, nil
}

// ReplacePapers swaps the full paper set of a conference.
func (s *Store) ReplacePapers(ctx context.Context, conferenceID string, papers []persistence.Paper) error {
	return s.retry.WithRetry(ctx, func() error {
		return s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			var exists int
			if err := s.helper.QueryRowTx(ctx, tx, `SELECT COUNT(1) FROM conferences WHERE id = ?`, conferenceID).Scan(&exists); err != nil {
				return err
			}
			if exists == 0 {
				return persistence.ErrForeignKeyViolation
			}

			if _, err := s.helper.ExecTx(ctx, tx, `DELETE FROM papers WHERE conference_id = ?`, conferenceID); err != nil {
				return fmt.Errorf("clear papers: %w", err)
			}
			for i, paper := range papers {
				_, err := s.helper.ExecTx(ctx, tx, `
					INSERT INTO papers (id, conference_id, title, status, metadata_complete, position)
					VALUES (?, ?, ?, ?, ?, ?)`,
					paper.ID, conferenceID, paper.Title, paper.Status, paper.MetadataComplete, i,
				)
				if err != nil {
					return fmt.Errorf("insert paper %s: %w", paper.ID, err)
				}
			}
			return nil
		})
	})
}

// GetAcceptedPapers returns the accepted papers of a conference in registration order.
func (s *Store) GetAcceptedPapers(ctx context.Context, conferenceID string) ([]persistence.Paper, error) {
	rows, err := s.helper.Query(ctx, `
		SELECT id, conference_id, title, status, metadata_complete, position
		FROM papers WHERE conference_id = ? AND status = 'accepted' ORDER BY position`, conferenceID)
	if err != nil {
		return nil, s.mapper.MapError(err)
	}
	defer rows.Close()

	papers := []persistence.Paper{}
	for rows.Next() {
		var paper persistence.Paper
		if err := rows.Scan(&paper.ID, &paper.ConferenceID, &paper.Title, &paper.Status, &paper.MetadataComplete, &paper.Position); err != nil {
			return nil, s.mapper.MapError(err)
		}
		papers = append(papers, paper)
	}
	if err := rows.Err(); err != nil {
		return nil, s.mapper.MapError(err)
	}
	return papers, nil
}

// SaveDraft writes a new draft version and its items in one transaction.
func (s *Store) SaveDraft(ctx context.Context, input persistence.DraftInput) (persistence.Schedule, error) {
	var saved persistence.Schedule
	err := s.retry.WithRetry(ctx, func() error {
		return s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			schedule, exists, err := s.scheduleTx(ctx, tx, input.ConferenceID)
			if err != nil {
				return err
			}

			switch {
			case exists && schedule.Status == persistence.ScheduleStatusPublished:
				return persistence.ErrConstraintViolation
			case exists && input.ExpectedVersion != nil && *input.ExpectedVersion != schedule.Version:
				return persistence.ErrVersionConflict
			case exists:
				result, err := s.helper.ExecTx(ctx, tx, `
					UPDATE schedules SET status = ?, version = version + 1, updated_at = ?
					WHERE id = ? AND version = ?`,
					persistence.ScheduleStatusDraft, formatTime(input.Now), schedule.ID, schedule.Version,
				)
				if err != nil {
					return fmt.Errorf("bump schedule version: %w", err)
				}
				if affected, err := result.RowsAffected(); err == nil && affected != 1 {
					return persistence.ErrVersionConflict
				}
				schedule.Version++
			case input.ExpectedVersion != nil:
				return persistence.ErrScheduleNotFound
			case input.ScheduleID == "":
				return persistence.ErrConstraintViolation
			default:
				schedule = persistence.Schedule{
					ID:           input.ScheduleID,
					ConferenceID: input.ConferenceID,
					Version:      1,
					CreatedAt:    input.Now,
				}
				_, err := s.helper.ExecTx(ctx, tx, `
					INSERT INTO schedules (id, conference_id, status, version, created_at, updated_at)
					VALUES (?, ?, ?, ?, ?, ?)`,
					schedule.ID, schedule.ConferenceID, persistence.ScheduleStatusDraft, schedule.Version,
					formatTime(input.Now), formatTime(input.Now),
				)
				if err != nil {
					return fmt.Errorf("insert schedule: %w", err)
				}
			}
			schedule.Status = persistence.ScheduleStatusDraft
			schedule.UpdatedAt = input.Now

			if _, err := s.helper.ExecTx(ctx, tx, `DELETE FROM schedule_items WHERE schedule_id = ?`, schedule.ID); err != nil {
				return fmt.Errorf("clear schedule items: %w", err)
			}
			for i, item := range input.Items {
				_, err := s.helper.ExecTx(ctx, tx, `
					INSERT INTO schedule_items (id, schedule_id, paper_id, room_id, slot_id, start_time, end_time, status, reason, position)
					VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
					item.ID,
					schedule.ID,
					item.PaperID,
					nullString(item.RoomID),
					nullString(item.SlotID),
					nullTime(item.Start),
					nullTime(item.End),
					item.Status,
					nullString(item.Reason),
					i,
				)
				if err != nil {
					return fmt.Errorf("insert schedule item %s: %w", item.ID, err)
				}
			}

			saved = schedule
			return nil
		})
	})
	if err != nil {
		return persistence.Schedule{}, s.mapper.MapError(err)
	}
	return saved, nil
}

// GetSchedule returns the schedule of a conference.
func (s *Store) GetSchedule(ctx context.Context, conferenceID string) (persistence.Schedule, error) {
	schedule, err := scanSchedule(s.helper.QueryRow(ctx, scheduleQuery, conferenceID))
	if err != nil {
		return persistence.Schedule{}, s.mapper.MapError(err)
	}
	return schedule, nil
}

// GetScheduleItems returns the items of a schedule in stored order.
func (s *Store) GetScheduleItems(ctx context.Context, scheduleID string) ([]persistence.ScheduleItem, error) {
	rows, err := s.helper.Query(ctx, `
		SELECT id, schedule_id, paper_id, room_id, slot_id, start_time, end_time, status, reason, position
		FROM schedule_items WHERE schedule_id = ? ORDER BY position`, scheduleID)
	if err != nil {
		return nil, s.mapper.MapError(err)
	}
	defer rows.Close()

	items := []persistence.ScheduleItem{}
	for rows.Next() {
		var item persistence.ScheduleItem
		var roomID, slotID, start, end, reason sql.NullString
		if err := rows.Scan(
			&item.ID,
			&item.ScheduleID,
			&item.PaperID,
			&roomID,
			&slotID,
			&start,
			&end,
			&item.Status,
			&reason,
			&item.Position,
		); err != nil {
			return nil, s.mapper.MapError(err)
		}
		item.RoomID = stringPtr(roomID)
		item.SlotID = stringPtr(slotID)
		item.Reason = stringPtr(reason)
		if item.Start, err = timePtr(start); err != nil {
			return nil, err
		}
		if item.End, err = timePtr(end); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, s.mapper.MapError(err)
	}
	return items, nil
}

// SaveSchedule moves the conference's schedule forward to the requested status. The update only
// matches rows in a lower status, so a concurrent publish is never undone. Requesting the
// stored status returns the schedule unchanged; requesting a lower one fails with
// ErrConstraintViolation.
func (s *Store) SaveSchedule(ctx context.Context, input persistence.StatusInput) (persistence.Schedule, error) {
	if _, ok := persistence.ScheduleStatusRank(input.Status); !ok {
		return persistence.Schedule{}, persistence.ErrConstraintViolation
	}
	lower := persistence.StatusesBelow(input.Status)

	var saved persistence.Schedule
	err := s.retry.WithRetry(ctx, func() error {
		return s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			var affected int64
			if len(lower) > 0 {
				args := []any{input.Status, formatTime(input.Now), input.ConferenceID}
				for _, status := range lower {
					args = append(args, status)
				}
				placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(lower)), ", ")
				result, err := s.helper.ExecTx(ctx, tx, `
					UPDATE schedules SET status = ?, updated_at = ?
					WHERE conference_id = ? AND status IN (`+placeholders+`)`, args...)
				if err != nil {
					return fmt.Errorf("update schedule status: %w", err)
				}
				if affected, err = result.RowsAffected(); err != nil {
					return err
				}
			}
			if affected == 0 {
				current, exists, err := s.scheduleTx(ctx, tx, input.ConferenceID)
				if err != nil {
					return err
				}
				if !exists {
					return persistence.ErrScheduleNotFound
				}
				if current.Status != input.Status {
					return persistence.ErrConstraintViolation
				}
				saved = current
				return nil
			}

			schedule, err := scanSchedule(s.helper.QueryRowTx(ctx, tx, scheduleQuery, input.ConferenceID))
			if err != nil {
				return err
			}
			saved = schedule
			return nil
		})
	})
	if err != nil {
		return persistence.Schedule{}, s.mapper.MapError(err)
	}
	return saved, nil
}

// PublishSchedule is SaveSchedule with the published status.
func (s *Store) PublishSchedule(ctx context.Context, input persistence.StatusInput) (persistence.Schedule, error) {
	input.Status = persistence.ScheduleStatusPublished
	return s.SaveSchedule(ctx, input)
}

const scheduleQuery = `
	SELECT id, conference_id, status, version, created_at, updated_at
	FROM schedules WHERE conference_id = ?`

func (s *Store) scheduleTx(ctx context.Context, tx *sql.Tx, conferenceID string) (persistence.Schedule, bool, error) {
	schedule, err := scanSchedule(s.helper.QueryRowTx(ctx, tx, scheduleQuery, conferenceID))
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.Schedule{}, false, nil
	}
	if err != nil {
		return persistence.Schedule{}, false, err
	}
	return schedule, true, nil
}

func scanSchedule(row *sql.Row) (persistence.Schedule, error) {
	var schedule persistence.Schedule
	var createdAt, updatedAt string
	if err := row.Scan(
		&schedule.ID,
		&schedule.ConferenceID,
		&schedule.Status,
		&schedule.Version,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Schedule{}, err
	}

	var err error
	if schedule.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Schedule{}, err
	}
	if schedule.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Schedule{}, err
	}
	return schedule, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", value, err)
	}
	return t, nil
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func nullTime(value *time.Time) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*value), Valid: true}
}

func stringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	out := value.String
	return &out
}

func timePtr(value sql.NullString) (*time.Time, error) {
	if !value.Valid {
		return nil, nil
	}
	t, err := parseTime(value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
