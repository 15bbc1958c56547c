package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/domain"
)

const shiftBlockQuery = `
	SELECT
		sb.id,
		to_char(sb.date, 'YYYY-MM-DD'),
		to_char(sb.start_time, 'HH24:MI:SS'),
		to_char(sb.end_time, 'HH24:MI:SS'),
		sb.created_at,
		sb.version,
		sba.user_id,
		sba.room
	FROM shift_blocks sb
	LEFT JOIN shift_block_assignments sba ON sb.id = sba.block_id
`

// assignmentBuilder 把 (user_id, room) 形式的行按出现顺序合并为分配列表
type assignmentBuilder struct {
	order []int64
	rooms map[int64][]string
}

func newAssignmentBuilder() *assignmentBuilder {
	return &assignmentBuilder{
		order: make([]int64, 0),
		rooms: make(map[int64][]string),
	}
}

func (b *assignmentBuilder) add(userID sql.NullInt64, room sql.NullString) {
	// 没有任何分配的班次 LEFT JOIN 之后 user_id 为空
	if !userID.Valid || !room.Valid {
		return
	}
	if _, exists := b.rooms[userID.Int64]; !exists {
		b.order = append(b.order, userID.Int64)
	}
	b.rooms[userID.Int64] = append(b.rooms[userID.Int64], room.String)
}

func (b *assignmentBuilder) build() []domain.ShiftBlockAssignment {
	assignments := make([]domain.ShiftBlockAssignment, 0, len(b.order))
	for _, userID := range b.order {
		assignments = append(assignments, domain.ShiftBlockAssignment{
			UserID: userID,
			Rooms:  b.rooms[userID],
		})
	}
	return assignments
}

func collectShiftBlocks(rows *sql.Rows) ([]*domain.ShiftBlock, error) {
	blocks := make([]*domain.ShiftBlock, 0)
	blocksMap := make(map[int64]*domain.ShiftBlock)
	builders := make(map[int64]*assignmentBuilder)

	for rows.Next() {
		var row struct {
			ID        int64
			Date      string
			StartTime string
			EndTime   string
			CreatedAt time.Time
			Version   int32

			UserID sql.NullInt64
			Room   sql.NullString
		}

		dst := []any{&row.ID, &row.Date, &row.StartTime, &row.EndTime, &row.CreatedAt, &row.Version, &row.UserID, &row.Room}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}

		if _, exists := blocksMap[row.ID]; !exists {
			block := &domain.ShiftBlock{
				ID:        row.ID,
				Date:      row.Date,
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

func (r *Repository) GetShiftBlocksForDate(date string) ([]*domain.ShiftBlock, error) {
	query := shiftBlockQuery + ` WHERE sb.date = $1 ORDER BY sb.start_time, sb.id, sba.id`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectShiftBlocks(rows)
}

func (r *Repository) GetShiftBlockByID(id int64) (*domain.ShiftBlock, error) {
	query := shiftBlockQuery + ` WHERE sb.id = $1 ORDER BY sba.id`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	blocks, err := collectShiftBlocks(rows)
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, sql.ErrNoRows
	}

	return blocks[0], nil
}

func insertAssignments(ctx context.Context, tx *sql.Tx, table string, blockID int64, assignments []domain.ShiftBlockAssignment) error {
	query := `INSERT INTO ` + table + ` (block_id, user_id, room) VALUES ($1, $2, $3)`
	for _, assignment := range assignments {
		for _, room := range assignment.Rooms {
			if _, err := tx.ExecContext(ctx, query, blockID, assignment.UserID, room); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Repository) CreateShiftBlock(block *domain.ShiftBlock) error {
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
		INSERT INTO shift_blocks (date, start_time, end_time)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, version
	`
	if err := tx.QueryRowContext(ctx, query, block.Date, block.StartTime, block.EndTime).Scan(&block.ID, &block.CreatedAt, &block.Version); err != nil {
		return err
	}

	if err := insertAssignments(ctx, tx, "shift_block_assignments", block.ID, block.Assignments); err != nil {
		return err
	}

	return tx.Commit()
}

// UpdateShiftBlock 更新班次的时间并整体替换分配，版本不一致时返回 sql.ErrNoRows
func (r *Repository) UpdateShiftBlock(block *domain.ShiftBlock) error {
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
		UPDATE shift_blocks
		SET date = $1, start_time = $2, end_time = $3, version = version + 1
		WHERE id = $4 AND version = $5
		RETURNING version
	`
	if err := tx.QueryRowContext(ctx, query, block.Date, block.StartTime, block.EndTime, block.ID, block.Version).Scan(&block.Version); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM shift_block_assignments WHERE block_id = $1`, block.ID); err != nil {
		return err
	}

	if err := insertAssignments(ctx, tx, "shift_block_assignments", block.ID, block.Assignments); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *Repository) DeleteShiftBlock(id int64) error {
	query := `DELETE FROM shift_blocks WHERE id = $1`

	ctx, cancel := r.queryContext()
	defer cancel()

	_, err := r.dbpool.ExecContext(ctx, query, id)
	return err
}
