package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/TemirB/freight-portal/internal/config"
	"github.com/TemirB/freight-portal/internal/domain"
)

type UserRepo struct {
	base
}

func NewUserRepo(db DB, t config.Tables) *UserRepo { return &UserRepo{base{db: db, tables: t}} }

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	err := r.db.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO %s (username, display_name, email, role, password_hash)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id, created_at
	`, r.qt(r.tables.Users)),
		u.Username, u.DisplayName, u.Email, string(u.Role), u.PasswordHash,
	).Scan(&u.ID, &u.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("user %q: %w", u.Username, domain.ErrConflict)
	}
	return err
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	var (
		u    domain.User
		role string
	)
	err := r.db.QueryRow(ctx, fmt.Sprintf(`
		SELECT id, username, display_name, email, role, password_hash, created_at
		FROM %s WHERE username=$1
	`, r.qt(r.tables.Users)), username).Scan(
		&u.ID, &u.Username, &u.DisplayName, &u.Email, &role, &u.PasswordHash, &u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Role = domain.Role(role)
	return &u, nil
}

// List returns users ordered by username. An empty role lists everybody.
func (r *UserRepo) List(ctx context.Context, role domain.Role) ([]domain.User, error) {
	rows, err := r.db.Query(ctx, fmt.Sprintf(`
		SELECT id, username, display_name, email, role, created_at
		FROM %s
		WHERE $1 = '' OR role = $1
		ORDER BY username
	`, r.qt(r.tables.Users)), string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		var (
			u    domain.User
			role string
		)
		if err := rows.Scan(&u.ID, &u.Username, &u.DisplayName, &u.Email, &role, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.Role = domain.Role(role)
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepo) Delete(ctx context.Context, username string) error {
	tag, err := r.db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE username=$1`, r.qt(r.tables.Users)), username)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
