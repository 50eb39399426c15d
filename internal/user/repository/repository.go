package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	pgx "github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/ysamarin/postline/backend/internal/common/db"
	commonerrors "github.com/ysamarin/postline/backend/internal/common/errors"
	"github.com/ysamarin/postline/backend/internal/user/domain"
)

var ErrUserNotFound = errors.New("user not found")

type Repository interface {
	Create(ctx context.Context, user domain.User) error
	FindByID(ctx context.Context, id domain.ID) (domain.User, error)
	FindByUsername(ctx context.Context, username string) (domain.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const uniqueViolation = "23505"

func (r *PgRepository) Create(ctx context.Context, user domain.User) error {
	start := time.Now()
	_, err := r.pool.Exec(
		ctx,
		`INSERT INTO users (id, username, email, password_hash, first_name, last_name, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(user.ID),
		user.Username,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			switch pgErr.ConstraintName {
			case "users_email_key":
				return commonerrors.ErrEmailAlreadyExists
			default:
				return commonerrors.ErrUsernameAlreadyExists
			}
		}
		return db.HandleExecError(err, "create user", start)
	}
	db.MeasureQueryDuration("create user", start)
	return nil
}

func (r *PgRepository) FindByID(ctx context.Context, id domain.ID) (domain.User, error) {
	start := time.Now()
	row := r.pool.QueryRow(
		ctx,
		`SELECT id, username, email, password_hash, first_name, last_name, created_at
		 FROM users WHERE id = $1`,
		string(id),
	)

	var user domain.User
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName, &user.CreatedAt)
	if err := db.HandleQueryError(err, ErrUserNotFound, "find user by id", start); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (r *PgRepository) FindByUsername(ctx context.Context, username string) (domain.User, error) {
	start := time.Now()
	row := r.pool.QueryRow(
		ctx,
		`SELECT id, username, email, password_hash, first_name, last_name, created_at
		 FROM users WHERE username = $1`,
		username,
	)

	var user domain.User
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName, &user.CreatedAt)
	if err := db.HandleQueryError(err, ErrUserNotFound, "find user by username", start); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (r *PgRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, username, "check username exists")
}

func (r *PgRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email, "check email exists")
}

func (r *PgRepository) exists(ctx context.Context, query, arg, operation string) (bool, error) {
	start := time.Now()
	row := r.pool.QueryRow(ctx, query, arg)

	var exists bool
	if err := row.Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			db.MeasureQueryDuration(operation, start)
			return false, nil
		}
		return false, db.HandleQueryError(err, nil, operation, start)
	}
	db.MeasureQueryDuration(operation, start)
	return exists, nil
}
