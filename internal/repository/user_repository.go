package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/dinewithus/internal/domain"
)

// ErrNotFound is returned when no mirror record exists for the lookup key.
var ErrNotFound = errors.New("not found")

// UpsertRoleParams carries the values written when a principal picks a role. ID and Name
// are used only when the record does not exist yet.
type UpsertRoleParams struct {
	ID    string
	Email string
	Name  string
	Role  domain.Role
}

// UserRepository is the local mirror of identity provider users, keyed uniquely by email.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*domain.Principal, error)
	// CreateIfAbsent inserts the principal unless the email is already present, in which
	// case the stored record is returned with created=false.
	CreateIfAbsent(ctx context.Context, principal *domain.Principal) (stored *domain.Principal, created bool, err error)
	// UpsertRole sets the role and clears needsRoleSelection, creating the record if needed.
	UpsertRole(ctx context.Context, params UpsertRoleParams) (*domain.Principal, error)
	Ping(ctx context.Context) error
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `id, email, name, role, needs_role_selection, created_at, updated_at`

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.Principal, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email=$1`

	principal, err := scanPrincipal(r.pool.QueryRow(ctx, query, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return principal, err
}

func (r *userRepository) CreateIfAbsent(ctx context.Context, principal *domain.Principal) (*domain.Principal, bool, error) {
	const query = `
        INSERT INTO users (id, email, name, role, needs_role_selection)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (email) DO NOTHING
        RETURNING ` + userColumns

	stored, err := scanPrincipal(r.pool.QueryRow(ctx, query,
		principal.ID,
		principal.Email,
		principal.Name,
		principal.Role.Ptr(),
		principal.NeedsRoleSelection,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		existing, err := r.GetByEmail(ctx, principal.Email)
		return existing, false, err
	}
	if err != nil {
		return nil, false, err
	}
	return stored, true, nil
}

func (r *userRepository) UpsertRole(ctx context.Context, params UpsertRoleParams) (*domain.Principal, error) {
	const query = `
        INSERT INTO users (id, email, name, role, needs_role_selection)
        VALUES ($1, $2, $3, $4, FALSE)
        ON CONFLICT (email) DO UPDATE
            SET role = EXCLUDED.role, needs_role_selection = FALSE, updated_at = NOW()
        RETURNING ` + userColumns

	return scanPrincipal(r.pool.QueryRow(ctx, query,
		params.ID,
		params.Email,
		params.Name,
		params.Role.Ptr(),
	))
}

func (r *userRepository) Ping(ctx context.Context) error {
	if r.pool == nil {
		return errors.New("postgres pool not configured")
	}
	return r.pool.Ping(ctx)
}

func scanPrincipal(row pgx.Row) (*domain.Principal, error) {
	var (
		principal domain.Principal
		role      *string
	)
	if err := row.Scan(
		&principal.ID,
		&principal.Email,
		&principal.Name,
		&role,
		&principal.NeedsRoleSelection,
		&principal.CreatedAt,
		&principal.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if role != nil {
		principal.Role = domain.Role(*role)
	}
	return &principal, nil
}
