package service

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/campuskit/event-registration/internal/db"
	"github.com/campuskit/event-registration/internal/model"
	"github.com/campuskit/event-registration/internal/repository"
	"github.com/campuskit/event-registration/pkg/logger"
)

// RegistrationService is the only writer of an event's membership set.
type RegistrationService struct {
	tx db.Transactor

	teams  repository.TeamRepository
	events repository.EventRepository
}

func NewRegistrationService(tx db.Transactor) *RegistrationService {
	return &RegistrationService{
		tx: tx,
	}
}

// RegisterTeam reserves one seat on the event for the caller's team. All
// checks and the seat write run in a single transaction: either the team
// holds the seat afterwards or nothing changed.
//
// When two teams race for the last seat, whichever write the store applies
// first wins and the loser gets EVENT_FULL. That is first-committer-wins,
// not first-requester-wins: arrival order and commit order can differ under
// concurrent transactions, and no fairness is promised.
//
// The service never retries. UNAVAILABLE means the transaction aborted
// without applying anything and the caller may try again; every other code
// is a definitive answer for this (event, team) pair.
func (s *RegistrationService) RegisterTeam(ctx context.Context, eventID, teamID, callerUserID string) (*model.Event, *Error) {
	l := logger.FromContext(ctx)
	l.Info("registering team for event",
		zap.String("event_id", eventID),
		zap.String("team_id", teamID),
		zap.String("caller_user_id", callerUserID))

	var event *repository.Event

	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		team, err := s.teams.Get(txCtx, teamID)
		if errors.Is(err, repository.ErrNotFound) {
			l.Warn("team not found", zap.String("team_id", teamID))
			return NewError(ErrorCodeNotFound, "team not found")
		}
		if err != nil {
			return s.storeError(l, "failed to get team", err)
		}

		if team.LeaderID != callerUserID {
			l.Warn("caller is not the team leader",
				zap.String("team_id", teamID),
				zap.String("caller_user_id", callerUserID))
			return NewError(ErrorCodeForbidden, "only the team leader can register the team")
		}

		err = s.events.AddRegistration(txCtx, eventID, teamID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			l.Warn("event not found", zap.String("event_id", eventID))
			return NewError(ErrorCodeNotFound, "event not found")
		case errors.Is(err, repository.ErrAlreadyRegistered):
			l.Warn("team already registered",
				zap.String("event_id", eventID),
				zap.String("team_id", teamID))
			return NewError(ErrorCodeAlreadyRegistered, "this team is already registered")
		case errors.Is(err, repository.ErrEventFull):
			l.Warn("event is full", zap.String("event_id", eventID))
			return NewError(ErrorCodeEventFull, "registration failed: the event is full")
		case err != nil:
			return s.storeError(l, "failed to add registration", err)
		}

		if event, err = s.events.Get(txCtx, eventID); err != nil {
			return s.storeError(l, "failed to read event after registration", err)
		}

		return nil
	})

	if err != nil {
		res := &Error{}
		if errors.As(err, &res) {
			return nil, res
		}
		// Commit-time failure: the transaction aborted whole, nothing was
		// applied.
		l.Error("registration transaction failed", zap.Error(err))
		if db.IsRetryable(err) {
			return nil, NewError(ErrorCodeUnavailable, "store unavailable, retry the request")
		}
		return nil, NewError(ErrorCodeUnspecified, "failed to register team")
	}

	l.Info("team registered",
		zap.String("event_id", eventID),
		zap.String("team_id", teamID),
		zap.Int("seats_available", event.MaxSeats-len(event.RegisteredTeams)))

	return eventToModel(event), nil
}

func (s *RegistrationService) storeError(l *zap.Logger, msg string, err error) *Error {
	l.Error(msg, zap.Error(err))
	if db.IsRetryable(err) {
		return NewError(ErrorCodeUnavailable, "store unavailable, retry the request")
	}
	return NewError(ErrorCodeUnspecified, msg)
}

func (s *RegistrationService) WithTeamRepo(r repository.TeamRepository) *RegistrationService {
	s.teams = r
	return s
}

func (s *RegistrationService) WithEventRepo(r repository.EventRepository) *RegistrationService {
	s.events = r
	return s
}
