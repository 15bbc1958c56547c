package repository

import (
	"database/sql"
	"time"

	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/domain"
)

const weeklyShiftBlockQuery = `
	SELECT
		wsb.id,
		to_char(wsb.week_start, 'YYYY-MM-DD'),
		wsb.day_of_week,
		to_char(wsb.start_time, 'HH24:MI:SS'),
		to_char(wsb.end_time, 'HH24:MI:SS'),
		wsb.created_at,
		wsb.version,
		wsba.user_id,
		wsba.room
	FROM weekly_shift_blocks wsb
	LEFT JOIN weekly_shift_block_assignments wsba ON wsb.id = wsba.block_id
`

func collectWeeklyShiftBlocks(rows *sql.Rows) ([]*domain.WeeklyShiftBlock, error) {
	blocks := make([]*domain.WeeklyShiftBlock, 0)
	blocksMap := make(map[int64]*domain.WeeklyShiftBlock)
	builders := make(map[int64]*assignmentBuilder)

	for rows.Next() {
		var row struct {
			ID        int64
			WeekStart string
			DayOfWeek int32
			StartTime string
			EndTime   string
			CreatedAt time.Time
			Version   int32

			UserID sql.NullInt64
			Room   sql.NullString
		}

		dst := []any{&row.ID, &row.WeekStart, &row.DayOfWeek, &row.StartTime, &row.EndTime, &row.CreatedAt, &row.Version, &row.UserID, &row.Room}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}

		if _, exists := blocksMap[row.ID]; !exists {
			block := &domain.WeeklyShiftBlock{
				ID:        row.ID,
				WeekStart: row.WeekStart,
				DayOfWeek: row.DayOfWeek,
				StartTime: row.StartTime,
				EndTime:   row.EndTime,
				CreatedAt: row.CreatedAt,
				Version:   row.Version,
			}
			blocksMap[row.ID] = block
			builders[row.ID] = newAssignmentBuilder()
			blocks = append(blocks, block)
		}

		builders[row.ID].add(row.UserID, row.Room)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, block := range blocks {
		block.Assignments = builders[block.ID].build()
	}

	return blocks, nil
}

func (r *Repository) GetWeeklyShiftBlocks(weekStart string) ([]*domain.WeeklyShiftBlock, error) {
	query := weeklyShiftBlockQuery + ` WHERE wsb.week_start = $1 ORDER BY wsb.day_of_week, wsb.start_time, wsb.id, wsba.id`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, weekStart)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectWeeklyShiftBlocks(rows)
}

// GetShiftBlocksForDayOfWeekAndWeek 返回某周某天的班次，并转换为带具体日期的 ShiftBlock
func (r *Repository) GetShiftBlocksForDayOfWeekAndWeek(dayOfWeek int32, weekStart string) ([]*domain.ShiftBlock, error) {
	query := weeklyShiftBlockQuery + ` WHERE wsb.week_start = $1 AND wsb.day_of_week = $2 ORDER BY wsb.start_time, wsb.id, wsba.id`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, weekStart, dayOfWeek)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	weeklyBlocks, err := collectWeeklyShiftBlocks(rows)
	if err != nil {
		return nil, err
	}

	blocks := make([]*domain.ShiftBlock, 0, len(weeklyBlocks))
	for _, wb := range weeklyBlocks {
		block := wb.ToShiftBlock()
		blocks = append(blocks, &block)
	}

	return blocks, nil
}

func (r *Repository) GetWeeklyShiftBlockByID(id int64) (*domain.WeeklyShiftBlock, error) {
	query := weeklyShiftBlockQuery + ` WHERE wsb.id = $1 ORDER BY wsba.id`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	blocks, err := collectWeeklyShiftBlocks(rows)
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, sql.ErrNoRows
	}

	return blocks[0], nil
}

func (r *Repository) CreateWeeklyShiftBlock(block *domain.WeeklyShiftBlock) error {
	ctx, cancel := r.transactionContext()
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		INSERT INTO weekly_shift_blocks (week_start, day_of_week, start_time, end_time)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, version
	`
	args := []any{block.WeekStart, block.DayOfWeek, block.StartTime, block.EndTime}
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&block.ID, &block.CreatedAt, &block.Version); err != nil {
		return err
	}

	if err := insertAssignments(ctx, tx, "weekly_shift_block_assignments", block.ID, block.Assignments); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *Repository) DeleteWeeklyShiftBlock(id int64) error {
	query := `DELETE FROM weekly_shift_blocks WHERE id = $1`

	ctx, cancel := r.queryContext()
	defer cancel()

	_, err := r.dbpool.ExecContext(ctx, query, id)
	return err
}
