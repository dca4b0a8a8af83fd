package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinica/clinica/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const entryCols = `id, patient_id, visit_date, reason, diagnosis, treatment, notes,
	vitals, attachments, created_by, deleted_at, deleted_by, created_at, updated_at`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.PatientID, &e.VisitDate, &e.Reason, &e.Diagnosis, &e.Treatment,
		&e.Notes, &e.Vitals, &e.Attachments, &e.CreatedBy, &e.DeletedAt, &e.DeletedBy,
		&e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &e, err
}

func (r *repoPG) Create(ctx context.Context, e *Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO clinical_history (id, patient_id, visit_date, reason, diagnosis, treatment,
			notes, vitals, attachments, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		e.ID, e.PatientID, e.VisitDate, e.Reason, e.Diagnosis, e.Treatment,
		e.Notes, e.Vitals, e.Attachments, e.CreatedBy)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return scanEntry(r.conn(ctx).QueryRow(ctx,
		`SELECT `+entryCols+` FROM clinical_history WHERE id = $1 AND deleted_at IS NULL`, id))
}

func (r *repoPG) GetAny(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return scanEntry(r.conn(ctx).QueryRow(ctx,
		`SELECT `+entryCols+` FROM clinical_history WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, e *Entry) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE clinical_history SET visit_date=$2, reason=$3, diagnosis=$4, treatment=$5,
			notes=$6, vitals=$7, attachments=$8, updated_at=NOW()
		WHERE id = $1 AND deleted_at IS NULL`,
		e.ID, e.VisitDate, e.Reason, e.Diagnosis, e.Treatment, e.Notes, e.Vitals, e.Attachments)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) SoftDelete(ctx context.Context, id uuid.UUID, by uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE clinical_history SET deleted_at = NOW(), deleted_by = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`, id, by)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Restore(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE clinical_history SET deleted_at = NULL, deleted_by = NULL, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NOT NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotDeleted
	}
	return nil
}

func (r *repoPG) ExistsDuplicate(ctx context.Context, key DuplicateKey, excludeID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM clinical_history
			WHERE deleted_at IS NULL
			  AND id <> $1
			  AND patient_id = $2
			  AND date_trunc('day', visit_date) = date_trunc('day', $3::timestamptz)
			  AND diagnosis = $4
			  AND created_by = $5)`,
		excludeID, key.PatientID, key.VisitDate, key.Diagnosis, key.CreatedBy).Scan(&exists)
	return exists, err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, from, to *time.Time, limit, offset int) ([]*Entry, int, error) {
	where := ` WHERE deleted_at IS NULL AND patient_id = $1`
	args := []interface{}{patientID}
	idx := 2
	if from != nil {
		where += fmt.Sprintf(` AND visit_date >= $%d`, idx)
		args = append(args, *from)
		idx++
	}
	if to != nil {
		where += fmt.Sprintf(` AND visit_date <= $%d`, idx)
		args = append(args, *to)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM clinical_history`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM clinical_history%s ORDER BY visit_date DESC LIMIT $%d OFFSET $%d`,
		entryCols, where, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	return items, total, rows.Err()
}

func (r *repoPG) PatientExists(ctx context.Context, patientID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM patient WHERE id = $1 AND active = true)`, patientID).Scan(&exists)
	return exists, err
}
