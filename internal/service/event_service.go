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

type EventService struct {
	tx db.Transactor

	events repository.EventRepository
	teams  repository.TeamRepository
}

func NewEventService(tx db.Transactor) *EventService {
	return &EventService{
		tx: tx,
	}
}

func (s *EventService) CreateEvent(ctx context.Context, event *model.Event) (*model.Event, *Error) {
	l := logger.FromContext(ctx)
	l.Info("creating event", zap.String("event_name", event.Name), zap.Int("max_seats", event.MaxSeats))

	if event.MaxSeats < 1 {
		l.Warn("invalid max_seats", zap.Int("max_seats", event.MaxSeats))
		return nil, NewError(ErrorCodeInvalidArgument, "an event must have at least one seat")
	}

	event.ID = uuid.NewString()

	if err := s.events.Create(ctx, &repository.Event{
		ID:          event.ID,
		Name:        event.Name,
		Description: event.Description,
		Category:    event.Category,
		Date:        event.Date,
		StartTime:   event.StartTime,
		EndTime:     event.EndTime,
		Location:    event.Location,
		MaxSeats:    event.MaxSeats,
	}); err != nil {
		l.Error("failed to create event", zap.String("event_name", event.Name), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to create event")
	}

	event.RegisteredTeams = []string{}
	event.SeatsAvailable = event.MaxSeats

	l.Debug("event created", zap.String("event_id", event.ID))
	return event, nil
}

func (s *EventService) GetEvent(ctx context.Context, eventID string) (*model.Event, *Error) {
	l := logger.FromContext(ctx)
	l.Debug("getting event", zap.String("event_id", eventID))

	event, err := s.events.Get(ctx, eventID)
	if errors.Is(err, repository.ErrNotFound) {
		l.Warn("event not found", zap.String("event_id", eventID))
		return nil, NewError(ErrorCodeNotFound, "event not found")
	}
	if err != nil {
		l.Error("failed to get event", zap.String("event_id", eventID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to get event")
	}

	return eventToModel(event), nil
}

func (s *EventService) ListEvents(ctx context.Context) ([]*model.Event, *Error) {
	l := logger.FromContext(ctx)
	l.Debug("listing events")

	events, err := s.events.List(ctx)
	if err != nil {
		l.Error("failed to list events", zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to list events")
	}

	res := make([]*model.Event, 0, len(events))
	for _, event := range events {
		res = append(res, eventToModel(event))
	}
	return res, nil
}

// EventRegistrations is the admin projection: an event together with the
// full roster of every registered team.
type EventRegistrations struct {
	Event *model.Event  `json:"event"`
	Teams []*model.Team `json:"teams"`
}

func (s *EventService) ListRegistrations(ctx context.Context) ([]*EventRegistrations, *Error) {
	l := logger.FromContext(ctx)
	l.Debug("listing registrations")

	events, err := s.events.List(ctx)
	if err != nil {
		l.Error("failed to list events", zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to list registrations")
	}

	res := make([]*EventRegistrations, 0, len(events))
	for _, event := range events {
		entry := &EventRegistrations{
			Event: eventToModel(event),
			Teams: make([]*model.Team, 0, len(event.RegisteredTeams)),
		}
		for _, teamID := range event.RegisteredTeams {
			team, err := s.teams.Get(ctx, teamID)
			if errors.Is(err, repository.ErrNotFound) {
				// Registration without a team cannot happen: deletion is
				// refused while a team is registered.
				l.Error("registered team missing", zap.String("team_id", teamID))
				continue
			}
			if err != nil {
				l.Error("failed to get registered team", zap.String("team_id", teamID), zap.Error(err))
				return nil, NewError(ErrorCodeUnspecified, "failed to list registrations")
			}
			entry.Teams = append(entry.Teams, teamToModel(team))
		}
		res = append(res, entry)
	}
	return res, nil
}

func (s *EventService) WithEventRepo(r repository.EventRepository) *EventService {
	s.events = r
	return s
}

func (s *EventService) WithTeamRepo(r repository.TeamRepository) *EventService {
	s.teams = r
	return s
}

func eventToModel(event *repository.Event) *model.Event {
	registered := event.RegisteredTeams
	if registered == nil {
		registered = []string{}
	}
	return &model.Event{
		ID:              event.ID,
		Name:            event.Name,
		Description:     event.Description,
		Category:        event.Category,
		Date:            event.Date,
		StartTime:       event.StartTime,
		EndTime:         event.EndTime,
		Location:        event.Location,
		MaxSeats:        event.MaxSeats,
		CreatedAt:       event.CreatedAt,
		RegisteredTeams: registered,
		SeatsAvailable:  event.MaxSeats - len(registered),
	}
}
