package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/bob/dialect/psql/um"

	"github.com/campuskit/event-registration/internal/db"
)

type User struct {
	ID           string     `db:"id"`
	FullName     string     `db:"full_name"`
	Email        string     `db:"email"`
	USN          string     `db:"usn"`
	Semester     int        `db:"semester"`
	Department   string     `db:"department"`
	PasswordHash string     `db:"password_hash"`
	IsVerified   bool       `db:"is_verified"`
	TokenHash    *string    `db:"activation_token"`
	TokenExpires *time.Time `db:"activation_expires"`
}

type UserRepository interface {
	Create(ctx context.Context, user *User) error
	Get(ctx context.Context, userID string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByActivationToken(ctx context.Context, tokenHash string) (*User, error)
	SetVerified(ctx context.Context, userID string) error
}

type pgxUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgxUserRepository(pool *pgxpool.Pool) UserRepository {
	return &pgxUserRepository{pool: pool}
}

func (p *pgxUserRepository) Create(ctx context.Context, user *User) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("users",
			"id", "full_name", "email", "usn", "semester", "department",
			"password_hash", "is_verified", "activation_token", "activation_expires"),
		im.Values(
			psql.Arg(user.ID), psql.Arg(user.FullName), psql.Arg(user.Email),
			psql.Arg(user.USN), psql.Arg(user.Semester), psql.Arg(user.Department),
			psql.Arg(user.PasswordHash), psql.Arg(user.IsVerified),
			psql.Arg(user.TokenHash), psql.Arg(user.TokenExpires)),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	_, err = e.Exec(ctx, sql, args...)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadyExists
	}

	return err
}

func (p *pgxUserRepository) Get(ctx context.Context, userID string) (*User, error) {
	return p.getWhere(ctx, "id", userID)
}

func (p *pgxUserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return p.getWhere(ctx, "email", email)
}

func (p *pgxUserRepository) GetByActivationToken(ctx context.Context, tokenHash string) (*User, error) {
	return p.getWhere(ctx, "activation_token", tokenHash)
}

func (p *pgxUserRepository) getWhere(ctx context.Context, column, value string) (*User, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("id", "full_name", "email", "usn", "semester", "department",
			"password_hash", "is_verified", "activation_token", "activation_expires"),
		sm.From("users"),
		sm.Where(psql.Quote(column).EQ(psql.Arg(value))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	user := &User{}
	if err = e.QueryRow(ctx, sql, args...).Scan(
		&user.ID, &user.FullName, &user.Email, &user.USN, &user.Semester,
		&user.Department, &user.PasswordHash, &user.IsVerified,
		&user.TokenHash, &user.TokenExpires,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

func (p *pgxUserRepository) SetVerified(ctx context.Context, userID string) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Update(
		um.Table("users"),
		um.SetCol("is_verified").ToArg(true),
		um.SetCol("activation_token").ToArg(nil),
		um.SetCol("activation_expires").ToArg(nil),
		um.Where(psql.Quote("id").EQ(psql.Arg(userID))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	tag, err := e.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
