package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"

	"github.com/campuskit/event-registration/internal/db"
)

type Event struct {
	ID          string     `db:"id"`
	Name        string     `db:"name"`
	Description string     `db:"description"`
	Category    []string   `db:"category"`
	Date        time.Time  `db:"date"`
	StartTime   string     `db:"start_time"`
	EndTime     string     `db:"end_time"`
	Location    string     `db:"location"`
	MaxSeats    int        `db:"max_seats"`
	CreatedAt   *time.Time `db:"created_at"`

	RegisteredTeams []string
}

// EventRepository owns event records. The membership set (the
// event_registration table) has exactly one mutator, AddRegistration;
// there is no generic update path that can touch it.
type EventRepository interface {
	Create(ctx context.Context, event *Event) error
	Get(ctx context.Context, eventID string) (*Event, error)
	List(ctx context.Context) ([]*Event, error)
	AddRegistration(ctx context.Context, eventID, teamID string) error
	CountForTeam(ctx context.Context, teamID string) (int, error)
}

type pgxEventRepository struct {
	pool *pgxpool.Pool
}

func NewPgxEventRepository(pool *pgxpool.Pool) EventRepository {
	return &pgxEventRepository{pool: pool}
}

func (p *pgxEventRepository) Create(ctx context.Context, event *Event) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("event", "id", "name", "description", "category", "date",
			"start_time", "end_time", "location", "max_seats"),
		im.Values(psql.Arg(event.ID), psql.Arg(event.Name), psql.Arg(event.Description),
			psql.Arg(event.Category), psql.Arg(event.Date), psql.Arg(event.StartTime),
			psql.Arg(event.EndTime), psql.Arg(event.Location), psql.Arg(event.MaxSeats)),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	_, err = e.Exec(ctx, sql, args...)
	return err
}

func (p *pgxEventRepository) Get(ctx context.Context, eventID string) (*Event, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("id", "name", "description", "category", "date",
			"start_time", "end_time", "location", "max_seats", "created_at"),
		sm.From("event"),
		sm.Where(psql.Quote("id").EQ(psql.Arg(eventID))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	event := &Event{}
	if err = e.QueryRow(ctx, sql, args...).Scan(
		&event.ID, &event.Name, &event.Description, &event.Category, &event.Date,
		&event.StartTime, &event.EndTime, &event.Location, &event.MaxSeats, &event.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if event.RegisteredTeams, err = p.registeredTeamIDs(ctx, eventID); err != nil {
		return nil, err
	}
	return event, nil
}

func (p *pgxEventRepository) List(ctx context.Context) ([]*Event, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("id", "name", "description", "category", "date",
			"start_time", "end_time", "location", "max_seats", "created_at"),
		sm.From("event"),
		sm.OrderBy("date"),
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

	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Event, error) {
		event := &Event{}
		if err = row.Scan(
			&event.ID, &event.Name, &event.Description, &event.Category, &event.Date,
			&event.StartTime, &event.EndTime, &event.Location, &event.MaxSeats, &event.CreatedAt,
		); err != nil {
			return nil, err
		}
		return event, nil
	})
	if err != nil {
		return nil, err
	}

	for _, event := range events {
		if event.RegisteredTeams, err = p.registeredTeamIDs(ctx, event.ID); err != nil {
			return nil, err
		}
	}
	return events, nil
}

// AddRegistration consumes one seat for teamID, or reports exactly why it
// could not. Must run inside WithinTransaction.
//
// The event row is locked first, which serializes seat writers per event
// (writers on other events are untouched). The insert then carries both
// preconditions — team absent, seats left — in its own predicate, so the
// membership check and the seat consumption are one indivisible statement.
// bob has no construction for an INSERT ... SELECT guarded by NOT EXISTS
// plus an aggregate comparison, so this one statement is raw SQL.
//
// A rejected insert is re-read under the same lock purely to name the
// cause; the re-read never decides a retry.
func (p *pgxEventRepository) AddRegistration(ctx context.Context, eventID, teamID string) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	var maxSeats int
	err := e.QueryRow(ctx,
		`SELECT max_seats FROM event WHERE id = $1 FOR UPDATE`,
		eventID,
	).Scan(&maxSeats)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	tag, err := e.Exec(ctx,
		`INSERT INTO event_registration (event_id, team_id)
		 SELECT $1, $2
		 WHERE NOT EXISTS (
		         SELECT 1 FROM event_registration
		         WHERE event_id = $1 AND team_id = $2)
		   AND (SELECT count(*) FROM event_registration
		        WHERE event_id = $1) < $3`,
		eventID, teamID, maxSeats,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var registered bool
	if err = e.QueryRow(ctx,
		`SELECT EXISTS (
		     SELECT 1 FROM event_registration
		     WHERE event_id = $1 AND team_id = $2)`,
		eventID, teamID,
	).Scan(&registered); err != nil {
		return err
	}
	if registered {
		return ErrAlreadyRegistered
	}
	return ErrEventFull
}

func (p *pgxEventRepository) CountForTeam(ctx context.Context, teamID string) (int, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("count(*)"),
		sm.From("event_registration"),
		sm.Where(psql.Quote("team_id").EQ(psql.Arg(teamID))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return 0, err
	}

	var count int
	if err = e.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (p *pgxEventRepository) registeredTeamIDs(ctx context.Context, eventID string) ([]string, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("team_id"),
		sm.From("event_registration"),
		sm.Where(psql.Quote("event_id").EQ(psql.Arg(eventID))),
		sm.OrderBy("registered_at"),
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

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (string, error) {
		var id string
		err = row.Scan(&id)
		return id, err
	})
}
