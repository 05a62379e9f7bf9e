package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/campuskit/event-registration/internal/model"
	"github.com/campuskit/event-registration/internal/repository"
)

func TestEventService_CreateEvent(t *testing.T) {
	event := func(maxSeats int) *model.Event {
		return &model.Event{
			Name:        "hacknight",
			Description: "24h build sprint",
			Category:    []string{"technical"},
			Date:        time.Date(2026, 9, 12, 0, 0, 0, 0, time.UTC),
			StartTime:   "09:00",
			EndTime:     "18:00",
			Location:    "Seminar Hall 1",
			MaxSeats:    maxSeats,
		}
	}

	t.Run("success", func(t *testing.T) {
		mockEventRepo := new(MockEventRepository)
		mockEventRepo.On("Create", mock.Anything, mock.MatchedBy(func(e *repository.Event) bool {
			return e.MaxSeats == 20 && e.ID != ""
		})).Return(nil)

		service := NewEventService(new(MockTransactor)).WithEventRepo(mockEventRepo)

		got, err := service.CreateEvent(context.Background(), event(20))
		assert.Nil(t, err)
		assert.Equal(t, 20, got.SeatsAvailable)
		assert.Empty(t, got.RegisteredTeams)

		mockEventRepo.AssertExpectations(t)
	})

	t.Run("zero seats rejected", func(t *testing.T) {
		service := NewEventService(new(MockTransactor)).WithEventRepo(new(MockEventRepository))

		got, err := service.CreateEvent(context.Background(), event(0))
		assert.Error(t, err)
		assert.Equal(t, ErrorCodeInvalidArgument, err.Code)
		assert.Nil(t, got)
	})
}

func TestEventService_GetEvent(t *testing.T) {
	t.Run("seats available is computed", func(t *testing.T) {
		mockEventRepo := new(MockEventRepository)
		mockEventRepo.On("Get", mock.Anything, "event1").Return(&repository.Event{
			ID:              "event1",
			Name:            "hacknight",
			MaxSeats:        10,
			RegisteredTeams: []string{"team1", "team2", "team3"},
		}, nil)

		service := NewEventService(new(MockTransactor)).WithEventRepo(mockEventRepo)

		got, err := service.GetEvent(context.Background(), "event1")
		assert.Nil(t, err)
		assert.Equal(t, 7, got.SeatsAvailable)
		assert.Len(t, got.RegisteredTeams, 3)

		mockEventRepo.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		mockEventRepo := new(MockEventRepository)
		mockEventRepo.On("Get", mock.Anything, "ghost").Return(nil, repository.ErrNotFound)

		service := NewEventService(new(MockTransactor)).WithEventRepo(mockEventRepo)

		got, err := service.GetEvent(context.Background(), "ghost")
		assert.Error(t, err)
		assert.Equal(t, ErrorCodeNotFound, err.Code)
		assert.Nil(t, got)
	})
}

func TestEventService_ListRegistrations(t *testing.T) {
	mockEventRepo := new(MockEventRepository)
	mockTeamRepo := new(MockTeamRepository)

	mockEventRepo.On("List", mock.Anything).Return([]*repository.Event{
		{ID: "event1", Name: "hacknight", MaxSeats: 10, RegisteredTeams: []string{"team1"}},
		{ID: "event2", Name: "ctf", MaxSeats: 5, RegisteredTeams: nil},
	}, nil)
	mockTeamRepo.On("Get", mock.Anything, "team1").Return(&repository.Team{
		ID:       "team1",
		Name:     "backend",
		LeaderID: "leader1",
	}, nil)

	service := NewEventService(new(MockTransactor)).
		WithEventRepo(mockEventRepo).
		WithTeamRepo(mockTeamRepo)

	got, err := service.ListRegistrations(context.Background())
	assert.Nil(t, err)
	assert.Len(t, got, 2)
	assert.Len(t, got[0].Teams, 1)
	assert.Equal(t, "backend", got[0].Teams[0].Name)
	assert.Empty(t, got[1].Teams)

	mockEventRepo.AssertExpectations(t)
	mockTeamRepo.AssertExpectations(t)
}
