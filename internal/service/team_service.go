package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/campuskit/event-registration/internal/db"
	"github.com/campuskit/event-registration/internal/model"
	"github.com/campuskit/event-registration/internal/repository"
	"github.com/campuskit/event-registration/pkg/logger"
)

type TeamService struct {
	tx db.Transactor

	teams  repository.TeamRepository
	events repository.EventRepository
}

func NewTeamService(tx db.Transactor) *TeamService {
	return &TeamService{
		tx: tx,
	}
}

// validateRoster checks the 2–3 member bound. The leader is counted
// separately, so a valid team is 3–4 people in total.
func validateRoster(members []*model.TeamMember) *Error {
	if len(members) < model.MinTeamMembers {
		return NewError(ErrorCodeInvalidArgument, "a team must have at least 3 members (including leader)")
	}
	if len(members) > model.MaxTeamMembers {
		return NewError(ErrorCodeInvalidArgument, "a team can have a maximum of 4 members (including leader)")
	}
	return nil
}

func (s *TeamService) CreateTeam(ctx context.Context, team *model.Team, callerUserID string) (*model.Team, *Error) {
	l := logger.FromContext(ctx)
	l.Info("creating team", zap.String("team_name", team.Name), zap.String("leader_id", callerUserID))

	if err := validateRoster(team.Members); err != nil {
		l.Warn("invalid roster size", zap.Int("members", len(team.Members)))
		return nil, err
	}

	team.ID = uuid.NewString()
	team.LeaderID = callerUserID

	// The team row and its member rows are separate inserts; they commit
	// together or not at all.
	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		err := s.teams.Create(txCtx, teamToRepo(team))
		if errors.Is(err, repository.ErrAlreadyExists) {
			l.Warn("team name already exists", zap.String("team_name", team.Name))
			return NewError(ErrorCodeTeamExists, "team_name already exists")
		}
		if err != nil {
			l.Error("failed to create team", zap.String("team_name", team.Name), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to create team")
		}
		return nil
	})

	var res *Error
	if errors.As(err, &res) {
		return nil, res
	}
	if err != nil {
		l.Error("create transaction failed", zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to create team")
	}

	l.Debug("team created", zap.String("team_id", team.ID))
	return team, nil
}

func (s *TeamService) GetTeam(ctx context.Context, teamID string) (*model.Team, *Error) {
	l := logger.FromContext(ctx)
	l.Debug("getting team", zap.String("team_id", teamID))

	team, err := s.teams.Get(ctx, teamID)
	if errors.Is(err, repository.ErrNotFound) {
		l.Warn("team not found", zap.String("team_id", teamID))
		return nil, NewError(ErrorCodeNotFound, "team not found")
	}
	if err != nil {
		l.Error("failed to get team", zap.String("team_id", teamID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to get team")
	}

	return teamToModel(team), nil
}

func (s *TeamService) ListMyTeams(ctx context.Context, callerUserID string) ([]*model.Team, *Error) {
	l := logger.FromContext(ctx)
	l.Debug("listing caller teams", zap.String("caller_user_id", callerUserID))

	teams, err := s.teams.GetByLeader(ctx, callerUserID)
	if err != nil {
		l.Error("failed to list teams", zap.String("caller_user_id", callerUserID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to list teams")
	}

	res := make([]*model.Team, 0, len(teams))
	for _, team := range teams {
		res = append(res, teamToModel(team))
	}
	return res, nil
}

func (s *TeamService) UpdateTeam(ctx context.Context, team *model.Team, callerUserID string) (*model.Team, *Error) {
	l := logger.FromContext(ctx)
	l.Info("updating team", zap.String("team_id", team.ID), zap.String("caller_user_id", callerUserID))

	if err := validateRoster(team.Members); err != nil {
		l.Warn("invalid roster size", zap.Int("members", len(team.Members)))
		return nil, err
	}

	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		current, err := s.teams.Get(txCtx, team.ID)
		if errors.Is(err, repository.ErrNotFound) {
			l.Warn("team not found", zap.String("team_id", team.ID))
			return NewError(ErrorCodeNotFound, "team not found")
		}
		if err != nil {
			l.Error("failed to get team", zap.String("team_id", team.ID), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to update team")
		}

		if current.LeaderID != callerUserID {
			l.Warn("caller is not the team leader", zap.String("team_id", team.ID))
			return NewError(ErrorCodeForbidden, "not authorized to update this team")
		}

		// Leadership is immutable after creation.
		team.LeaderID = current.LeaderID

		err = s.teams.Update(txCtx, teamToRepo(team))
		if errors.Is(err, repository.ErrAlreadyExists) {
			l.Warn("team name already exists", zap.String("team_name", team.Name))
			return NewError(ErrorCodeTeamExists, "team_name already exists")
		}
		if err != nil {
			l.Error("failed to update team", zap.String("team_id", team.ID), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to update team")
		}
		return nil
	})

	var res *Error
	if errors.As(err, &res) {
		return nil, res
	}
	if err != nil {
		l.Error("update transaction failed", zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to update team")
	}

	l.Debug("team updated", zap.String("team_id", team.ID))
	return team, nil
}

// DeleteTeam removes the caller's team. A team holding a seat on any event
// cannot be deleted; the registration has to be released first. Cascading
// the removal here would make deletion a second writer of the membership
// set, so it is refused instead.
func (s *TeamService) DeleteTeam(ctx context.Context, teamID, callerUserID string) *Error {
	l := logger.FromContext(ctx)
	l.Info("deleting team", zap.String("team_id", teamID), zap.String("caller_user_id", callerUserID))

	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		team, err := s.teams.Get(txCtx, teamID)
		if errors.Is(err, repository.ErrNotFound) {
			l.Warn("team not found", zap.String("team_id", teamID))
			return NewError(ErrorCodeNotFound, "team not found")
		}
		if err != nil {
			l.Error("failed to get team", zap.String("team_id", teamID), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to delete team")
		}

		if team.LeaderID != callerUserID {
			l.Warn("caller is not the team leader", zap.String("team_id", teamID))
			return NewError(ErrorCodeForbidden, "not authorized to delete this team")
		}

		count, err := s.events.CountForTeam(txCtx, teamID)
		if err != nil {
			l.Error("failed to count registrations", zap.String("team_id", teamID), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to delete team")
		}
		if count > 0 {
			l.Warn("team still registered for events",
				zap.String("team_id", teamID),
				zap.Int("registrations", count))
			return NewError(ErrorCodeHasRegistration, "team is registered for an event and cannot be deleted")
		}

		if err = s.teams.Delete(txCtx, teamID); err != nil {
			l.Error("failed to delete team", zap.String("team_id", teamID), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to delete team")
		}
		return nil
	})

	var res *Error
	if errors.As(err, &res) {
		return res
	}
	if err != nil {
		l.Error("delete transaction failed", zap.Error(err))
		return NewError(ErrorCodeUnspecified, "failed to delete team")
	}

	l.Debug("team deleted", zap.String("team_id", teamID))
	return nil
}

func (s *TeamService) WithTeamRepo(r repository.TeamRepository) *TeamService {
	s.teams = r
	return s
}

func (s *TeamService) WithEventRepo(r repository.EventRepository) *TeamService {
	s.events = r
	return s
}

func teamToRepo(team *model.Team) *repository.Team {
	members := make([]*repository.TeamMember, 0, len(team.Members))
	for _, member := range team.Members {
		members = append(members, &repository.TeamMember{
			FullName:   member.FullName,
			USN:        member.USN,
			Semester:   member.Semester,
			Department: member.Department,
		})
	}
	return &repository.Team{
		ID:       team.ID,
		Name:     team.Name,
		LeaderID: team.LeaderID,
		Members:  members,
	}
}

func teamToModel(team *repository.Team) *model.Team {
	members := make([]*model.TeamMember, 0, len(team.Members))
	for _, member := range team.Members {
		members = append(members, &model.TeamMember{
			FullName:   member.FullName,
			USN:        member.USN,
			Semester:   member.Semester,
			Department: member.Department,
		})
	}
	return &model.Team{
		ID:        team.ID,
		Name:      team.Name,
		LeaderID:  team.LeaderID,
		Members:   members,
		CreatedAt: team.CreatedAt,
	}
}
