package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinica/clinica/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

func (r *repoPG) Overview(ctx context.Context, doctorID uuid.UUID, dayStart, dayEnd, weekStart, weekEnd time.Time) (*Overview, error) {
	ov := &Overview{AppointmentsByState: make(map[string]int)}

	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM patient WHERE active = true`).Scan(&ov.ActivePatients); err != nil {
		return nil, fmt.Errorf("count patients: %w", err)
	}

	scope := ``
	args := []interface{}{dayStart, dayEnd}
	if doctorID != uuid.Nil {
		scope = ` AND doctor_id = $3`
		args = append(args, doctorID)
	}
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM appointment
		 WHERE is_deleted = false AND start_time >= $1 AND start_time < $2`+scope,
		args...).Scan(&ov.AppointmentsToday); err != nil {
		return nil, fmt.Errorf("count today: %w", err)
	}

	weekArgs := []interface{}{weekStart, weekEnd}
	if doctorID != uuid.Nil {
		weekArgs = append(weekArgs, doctorID)
	}
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM appointment
		 WHERE is_deleted = false AND start_time >= $1 AND start_time < $2`+scope,
		weekArgs...).Scan(&ov.AppointmentsWeek); err != nil {
		return nil, fmt.Errorf("count week: %w", err)
	}

	statusScope := ``
	statusArgs := []interface{}{}
	if doctorID != uuid.Nil {
		statusScope = ` AND doctor_id = $1`
		statusArgs = append(statusArgs, doctorID)
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT status, COUNT(*) FROM appointment
		 WHERE is_deleted = false`+statusScope+` GROUP BY status`, statusArgs...)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		ov.AppointmentsByState[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	ov.AppointmentsPending = ov.AppointmentsByState["PENDING"]

	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM support_ticket WHERE status = 'ABIERTO'`).Scan(&ov.OpenTickets); err != nil {
		return nil, fmt.Errorf("count tickets: %w", err)
	}
	return ov, nil
}

func (r *repoPG) Upcoming(ctx context.Context, doctorID uuid.UUID, from time.Time, limit int) ([]Upcoming, error) {
	scope := ``
	args := []interface{}{from, limit}
	if doctorID != uuid.Nil {
		scope = ` AND doctor_id = $3`
		args = append(args, doctorID)
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT id, doctor_id, patient_id, start_time, end_time, status
		 FROM appointment
		 WHERE is_deleted = false AND start_time >= $1`+scope+`
		 ORDER BY start_time ASC LIMIT $2`, args...)
	if err != nil {
		return nil, fmt.Errorf("upcoming: %w", err)
	}
	defer rows.Close()

	items := make([]Upcoming, 0, limit)
	for rows.Next() {
		var u Upcoming
		if err := rows.Scan(&u.ID, &u.DoctorID, &u.PatientID, &u.StartTime, &u.EndTime, &u.Status); err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	return items, rows.Err()
}

func (r *repoPG) UserCounts(ctx context.Context) (map[string]int, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT role, COUNT(*) FROM app_user GROUP BY role`)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var role string
		var n int
		if err := rows.Scan(&role, &n); err != nil {
			return nil, err
		}
		counts[role] = n
	}
	return counts, rows.Err()
}
