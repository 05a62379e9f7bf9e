package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/dm"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/bob/dialect/psql/um"

	"github.com/campuskit/event-registration/internal/db"
)

type Team struct {
	ID        string     `db:"id"`
	Name      string     `db:"name"`
	LeaderID  string     `db:"leader_id"`
	CreatedAt *time.Time `db:"created_at"`
	Members   []*TeamMember
}

type TeamMember struct {
	FullName   string `db:"full_name"`
	USN        string `db:"usn"`
	Semester   int    `db:"semester"`
	Department string `db:"department"`
}

type TeamRepository interface {
	Create(ctx context.Context, team *Team) error
	Get(ctx context.Context, teamID string) (*Team, error)
	GetByLeader(ctx context.Context, leaderID string) ([]*Team, error)
	Update(ctx context.Context, team *Team) error
	Delete(ctx context.Context, teamID string) error
}

type pgxTeamRepository struct {
	pool *pgxpool.Pool
}

func NewPgxTeamRepository(pool *pgxpool.Pool) TeamRepository {
	return &pgxTeamRepository{pool: pool}
}

func (p *pgxTeamRepository) Create(ctx context.Context, team *Team) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("team", "id", "name", "leader_id"),
		im.Values(psql.Arg(team.ID), psql.Arg(team.Name), psql.Arg(team.LeaderID)),
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
	if err != nil {
		return err
	}

	return p.insertMembers(ctx, team.ID, team.Members)
}

func (p *pgxTeamRepository) Get(ctx context.Context, teamID string) (*Team, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("id", "name", "leader_id", "created_at"),
		sm.From("team"),
		sm.Where(psql.Quote("id").EQ(psql.Arg(teamID))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	team := &Team{}
	if err = e.QueryRow(ctx, sql, args...).Scan(&team.ID, &team.Name, &team.LeaderID, &team.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if team.Members, err = p.getMembers(ctx, team.ID); err != nil {
		return nil, err
	}
	return team, nil
}

func (p *pgxTeamRepository) GetByLeader(ctx context.Context, leaderID string) ([]*Team, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("id", "name", "leader_id", "created_at"),
		sm.From("team"),
		sm.Where(psql.Quote("leader_id").EQ(psql.Arg(leaderID))),
		sm.OrderBy("created_at"),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	teams, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Team, error) {
		team := &Team{}
		if err = row.Scan(&team.ID, &team.Name, &team.LeaderID, &team.CreatedAt); err != nil {
			return nil, err
		}
		return team, nil
	})
	if err != nil {
		return nil, err
	}

	for _, team := range teams {
		if team.Members, err = p.getMembers(ctx, team.ID); err != nil {
			return nil, err
		}
	}
	return teams, nil
}

// Update replaces the team's name and its full member roster.
func (p *pgxTeamRepository) Update(ctx context.Context, team *Team) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Update(
		um.Table("team"),
		um.SetCol("name").ToArg(team.Name),
		um.Where(psql.Quote("id").EQ(psql.Arg(team.ID))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	tag, err := e.Exec(ctx, sql, args...)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadyExists
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if err = p.deleteMembers(ctx, team.ID); err != nil {
		return err
	}
	return p.insertMembers(ctx, team.ID, team.Members)
}

func (p *pgxTeamRepository) Delete(ctx context.Context, teamID string) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	if err := p.deleteMembers(ctx, teamID); err != nil {
		return err
	}

	q := psql.Delete(
		dm.From("team"),
		dm.Where(psql.Quote("id").EQ(psql.Arg(teamID))),
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

func (p *pgxTeamRepository) getMembers(ctx context.Context, teamID string) ([]*TeamMember, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("full_name", "usn", "semester", "department"),
		sm.From("team_member"),
		sm.Where(psql.Quote("team_id").EQ(psql.Arg(teamID))),
		sm.OrderBy("position"),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*TeamMember, error) {
		member := &TeamMember{}
		if err = row.Scan(&member.FullName, &member.USN, &member.Semester, &member.Department); err != nil {
			return nil, err
		}
		return member, nil
	})
}

func (p *pgxTeamRepository) insertMembers(ctx context.Context, teamID string, members []*TeamMember) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	for i, member := range members {
		q := psql.Insert(
			im.Into("team_member", "team_id", "position", "full_name", "usn", "semester", "department"),
			im.Values(psql.Arg(teamID), psql.Arg(i), psql.Arg(member.FullName),
				psql.Arg(member.USN), psql.Arg(member.Semester), psql.Arg(member.Department)),
		)

		sql, args, err := q.Build(ctx)
		if err != nil {
			return err
		}
		if _, err = e.Exec(ctx, sql, args...); err != nil {
			return err
		}
	}
	return nil
}

func (p *pgxTeamRepository) deleteMembers(ctx context.Context, teamID string) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Delete(
		dm.From("team_member"),
		dm.Where(psql.Quote("team_id").EQ(psql.Arg(teamID))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	_, err = e.Exec(ctx, sql, args...)
	return err
}
