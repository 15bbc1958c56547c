package repository

import (
	"database/sql"
	"errors"

	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/domain"
)

const eventColumns = `
	id,
	name,
	to_char(date, 'YYYY-MM-DD'),
	to_char(start_time, 'HH24:MI:SS'),
	to_char(end_time, 'HH24:MI:SS'),
	room,
	manual_owner,
	type,
	source,
	source_uid,
	created_at,
	version
`

func scanEvent(s rowScanner) (*domain.Event, error) {
	event := &domain.Event{}
	dst := []any{
		&event.ID,
		&event.Name,
		&event.Date,
		&event.StartTime,
		&event.EndTime,
		&event.Room,
		&event.ManualOwner,
		&event.Type,
		&event.Source,
		&event.SourceUID,
		&event.CreatedAt,
		&event.Version,
	}
	if err := s.Scan(dst...); err != nil {
		return nil, err
	}
	return event, nil
}

func (r *Repository) GetEventsByDate(date string) ([]*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE date = $1 ORDER BY start_time, id`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]*domain.Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

func (r *Repository) GetEventByID(id int64) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	ctx, cancel := r.queryContext()
	defer cancel()

	return scanEvent(r.dbpool.QueryRowContext(ctx, query, id))
}

func (r *Repository) CreateEvent(event *domain.Event) error {
	query := `
		INSERT INTO events (name, date, start_time, end_time, room, manual_owner, type, source, source_uid)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, version
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	args := []any{event.Name, event.Date, event.StartTime, event.EndTime, event.Room, event.ManualOwner, event.Type, event.Source, event.SourceUID}
	return r.dbpool.QueryRowContext(ctx, query, args...).Scan(&event.ID, &event.CreatedAt, &event.Version)
}

// UpdateEvent 使用乐观锁更新活动，版本不一致时返回 sql.ErrNoRows
func (r *Repository) UpdateEvent(event *domain.Event) error {
	query := `
		UPDATE events
		SET
			name = $1,
			date = $2,
			start_time = $3,
			end_time = $4,
			room = $5,
			manual_owner = $6,
			type = $7,
			version = version + 1
		WHERE id = $8 AND version = $9
		RETURNING version
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	args := []any{event.Name, event.Date, event.StartTime, event.EndTime, event.Room, event.ManualOwner, event.Type, event.ID, event.Version}
	return r.dbpool.QueryRowContext(ctx, query, args...).Scan(&event.Version)
}

func (r *Repository) DeleteEvent(id int64) error {
	query := `DELETE FROM events WHERE id = $1`

	ctx, cancel := r.queryContext()
	defer cancel()

	_, err := r.dbpool.ExecContext(ctx, query, id)
	return err
}

// UpsertImportedEvent 按 (source, source_uid, date) 插入或更新导入的活动，
// 已有记录的人工指定负责人保持不变。内容没有变化时不更新记录，版本号也不变，
// 返回值表示活动是否新建或被修改
func (r *Repository) UpsertImportedEvent(event *domain.Event) (bool, error) {
	query := `
		INSERT INTO events (name, date, start_time, end_time, room, type, source, source_uid)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (source, source_uid, date) WHERE source <> '' DO UPDATE
		SET
			name = EXCLUDED.name,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			room = EXCLUDED.room,
			type = EXCLUDED.type,
			version = events.version + 1
		WHERE (events.name, events.start_time, events.end_time, events.room, events.type)
			IS DISTINCT FROM (EXCLUDED.name, EXCLUDED.start_time, EXCLUDED.end_time, EXCLUDED.room, EXCLUDED.type)
		RETURNING id, manual_owner, created_at, version
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	args := []any{event.Name, event.Date, event.StartTime, event.EndTime, event.Room, event.Type, event.Source, event.SourceUID}
	err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&event.ID, &event.ManualOwner, &event.CreatedAt, &event.Version)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}

	// 冲突但内容相同，UPDATE 被跳过，没有返回行
	query = `
		SELECT id, manual_owner, created_at, version
		FROM events
		WHERE source = $1 AND source_uid = $2 AND date = $3
	`
	if err := r.dbpool.QueryRowContext(ctx, query, event.Source, event.SourceUID, event.Date).Scan(&event.ID, &event.ManualOwner, &event.CreatedAt, &event.Version); err != nil {
		return false, err
	}

	return false, nil
}

// DeleteStaleImportedEvents 删除某个来源在 [from, to) 内、本次导入中没有出现的活动
func (r *Repository) DeleteStaleImportedEvents(source, from, to string, keepIDs []int64) (int64, error) {
	query := `
		DELETE FROM events
		WHERE source = $1 AND date >= $2 AND date < $3 AND NOT (id = ANY($4))
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	if keepIDs == nil {
		keepIDs = make([]int64, 0)
	}

	result, err := r.dbpool.ExecContext(ctx, query, source, from, to, keepIDs)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}
