package profiles

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

const profileColumns = `
	id, email, password_hash, full_name, gender, role, registration_number,
	worker_code, hostel, floor, assigned_hostel, total_washes, washes_left, created_at`

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) Create(ctx context.Context, p *Profile) error {
	err := r.DB.QueryRow(ctx, `
		INSERT INTO profiles (id, email, password_hash, full_name, gender, role,
		                      registration_number, worker_code, hostel, floor,
		                      assigned_hostel, total_washes, washes_left)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at`,
		p.ID, p.Email, p.PasswordHash, p.FullName, p.Gender, p.Role,
		p.RegistrationNumber, p.WorkerCode, p.Hostel, p.Floor,
		p.AssignedHostel, p.TotalWashes, p.WashesLeft,
	).Scan(&p.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (*Profile, error) {
	return r.get(ctx, `SELECT `+profileColumns+` FROM profiles WHERE email = $1`, email)
}

func (r *Repo) GetByID(ctx context.Context, id string) (*Profile, error) {
	return r.get(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
}

func (r *Repo) get(ctx context.Context, query, arg string) (*Profile, error) {
	var p Profile
	err := r.DB.QueryRow(ctx, query, arg).Scan(
		&p.ID, &p.Email, &p.PasswordHash, &p.FullName, &p.Gender, &p.Role,
		&p.RegistrationNumber, &p.WorkerCode, &p.Hostel, &p.Floor,
		&p.AssignedHostel, &p.TotalWashes, &p.WashesLeft, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
