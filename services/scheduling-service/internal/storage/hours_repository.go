package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joseantoniobg/financial-platform-scheduling/libs/db"
)

// ConsultantHours is the per-consultant booking configuration synced from the
// CRM backend. Minutes are offsets from midnight in the consultant's local day.
type ConsultantHours struct {
	ConsultantID string
	WorkdayStart int
	WorkdayEnd   int
	SlotMinutes  int
	UpdatedAt    time.Time
}

type HoursRepository struct {
	pool *db.Pool
}

func NewHoursRepository(pool *db.Pool) *HoursRepository {
	return &HoursRepository{pool: pool}
}

func (r *HoursRepository) Get(ctx context.Context, consultantID string) (ConsultantHours, bool, error) {
	var h ConsultantHours
	err := r.pool.QueryRow(ctx, `
		SELECT consultant_id::text, workday_start_minutes, workday_end_minutes, slot_minutes, updated_at
		FROM consultant_hours
		WHERE consultant_id::text = $1
	`, consultantID).Scan(&h.ConsultantID, &h.WorkdayStart, &h.WorkdayEnd, &h.SlotMinutes, &h.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ConsultantHours{}, false, nil
		}
		return ConsultantHours{}, false, err
	}
	return h, true, nil
}

func (r *HoursRepository) Upsert(ctx context.Context, tx pgx.Tx, h ConsultantHours) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO consultant_hours (consultant_id, workday_start_minutes, workday_end_minutes, slot_minutes)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (consultant_id)
		DO UPDATE SET workday_start_minutes = EXCLUDED.workday_start_minutes,
		              workday_end_minutes = EXCLUDED.workday_end_minutes,
		              slot_minutes = EXCLUDED.slot_minutes,
		              updated_at = now()
	`, h.ConsultantID, h.WorkdayStart, h.WorkdayEnd, h.SlotMinutes)
	return err
}
