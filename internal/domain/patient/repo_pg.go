package patient

import (
	"context"
	"errors"
	"fmt"

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

const patientCols = `id, first_name, father_last_name, mother_last_name, birth_date, sex,
	dpi, nit, address, phone, email, allergies, vaccines, conditions, hospitalizations,
	background, active, created_at, updated_at, deleted_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.FirstName, &p.FatherLastName, &p.MotherLastName, &p.BirthDate, &p.Sex,
		&p.DPI, &p.NIT, &p.Address, &p.Phone, &p.Email, &p.Allergies, &p.Vaccines, &p.Conditions,
		&p.Hospitalizations, &p.Background, &p.Active, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patient (id, first_name, father_last_name, mother_last_name, birth_date, sex,
			dpi, nit, address, phone, email, allergies, vaccines, conditions, hospitalizations,
			background, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,true)`,
		p.ID, p.FirstName, p.FatherLastName, p.MotherLastName, p.BirthDate, p.Sex,
		p.DPI, p.NIT, p.Address, p.Phone, p.Email, p.Allergies, p.Vaccines, p.Conditions,
		p.Hospitalizations, p.Background)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient WHERE id = $1 AND active = true`, id))
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient SET first_name=$2, father_last_name=$3, mother_last_name=$4, birth_date=$5,
			sex=$6, dpi=$7, nit=$8, address=$9, phone=$10, email=$11, allergies=$12, vaccines=$13,
			conditions=$14, hospitalizations=$15, background=$16, updated_at=NOW()
		WHERE id = $1 AND active = true`,
		p.ID, p.FirstName, p.FatherLastName, p.MotherLastName, p.BirthDate,
		p.Sex, p.DPI, p.NIT, p.Address, p.Phone, p.Email, p.Allergies, p.Vaccines,
		p.Conditions, p.Hospitalizations, p.Background)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient SET active = false, deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND active = true`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ExistsDocument(ctx context.Context, dpi, nit *string, excludeID uuid.UUID) (bool, error) {
	if dpi == nil && nit == nil {
		return false, nil
	}
	query := `SELECT EXISTS (SELECT 1 FROM patient WHERE active = true AND id <> $1 AND (`
	args := []interface{}{excludeID}
	idx := 2
	var clauses []string
	if dpi != nil {
		clauses = append(clauses, fmt.Sprintf(`dpi = $%d`, idx))
		args = append(args, *dpi)
		idx++
	}
	if nit != nil {
		clauses = append(clauses, fmt.Sprintf(`nit = $%d`, idx))
		args = append(args, *nit)
	}
	for i, cl := range clauses {
		if i > 0 {
			query += ` OR `
		}
		query += cl
	}
	query += `))`

	var exists bool
	err := r.conn(ctx).QueryRow(ctx, query, args...).Scan(&exists)
	return exists, err
}

var sortColumns = map[string]string{
	"name":       "first_name ASC, father_last_name ASC",
	"created_at": "created_at DESC",
	"birth_date": "birth_date ASC",
}

func (r *repoPG) Search(ctx context.Context, q, sort string, limit, offset int) ([]*Patient, int, error) {
	where := ` WHERE active = true`
	var args []interface{}
	idx := 1
	if q != "" {
		where += fmt.Sprintf(` AND (first_name ILIKE $%d OR father_last_name ILIKE $%d OR mother_last_name ILIKE $%d
			OR dpi LIKE $%d OR nit LIKE $%d OR phone LIKE $%d)`, idx, idx, idx, idx, idx, idx)
		args = append(args, "%"+q+"%")
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patient`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order, ok := sortColumns[sort]
	if !ok {
		order = sortColumns["created_at"]
	}
	query := fmt.Sprintf(`SELECT %s FROM patient%s ORDER BY %s LIMIT $%d OFFSET $%d`,
		patientCols, where, order, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}
