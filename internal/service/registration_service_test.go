package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/campuskit/event-registration/internal/repository"
)

func TestRegistrationService_RegisterTeam(t *testing.T) {
	team := &repository.Team{ID: "team1", Name: "backend", LeaderID: "leader1"}

	tests := []struct {
		name          string
		eventID       string
		teamID        string
		callerUserID  string
		setupMocks    func(*MockTeamRepository, *MockEventRepository)
		expectedError bool
		errorCode     ErrorCode
	}{
		{
			name:         "success",
			eventID:      "event1",
			teamID:       "team1",
			callerUserID: "leader1",
			setupMocks: func(tr *MockTeamRepository, er *MockEventRepository) {
				tr.On("Get", mock.Anything, "team1").Return(team, nil)
				er.On("AddRegistration", mock.Anything, "event1", "team1").Return(nil)
				er.On("Get", mock.Anything, "event1").Return(&repository.Event{
					ID:              "event1",
					MaxSeats:        3,
					RegisteredTeams: []string{"team1"},
				}, nil)
			},
			expectedError: false,
		},
		{
			name:         "team not found",
			eventID:      "event1",
			teamID:       "missing",
			callerUserID: "leader1",
			setupMocks: func(tr *MockTeamRepository, er *MockEventRepository) {
				tr.On("Get", mock.Anything, "missing").Return(nil, repository.ErrNotFound)
			},
			expectedError: true,
			errorCode:     ErrorCodeNotFound,
		},
		{
			name:         "caller is not the leader",
			eventID:      "event1",
			teamID:       "team1",
			callerUserID: "someone-else",
			setupMocks: func(tr *MockTeamRepository, er *MockEventRepository) {
				tr.On("Get", mock.Anything, "team1").Return(team, nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeForbidden,
		},
		{
			name:         "event not found",
			eventID:      "missing",
			teamID:       "team1",
			callerUserID: "leader1",
			setupMocks: func(tr *MockTeamRepository, er *MockEventRepository) {
				tr.On("Get", mock.Anything, "team1").Return(team, nil)
				er.On("AddRegistration", mock.Anything, "missing", "team1").Return(repository.ErrNotFound)
			},
			expectedError: true,
			errorCode:     ErrorCodeNotFound,
		},
		{
			name:         "already registered",
			eventID:      "event1",
			teamID:       "team1",
			callerUserID: "leader1",
			setupMocks: func(tr *MockTeamRepository, er *MockEventRepository) {
				tr.On("Get", mock.Anything, "team1").Return(team, nil)
				er.On("AddRegistration", mock.Anything, "event1", "team1").Return(repository.ErrAlreadyRegistered)
			},
			expectedError: true,
			errorCode:     ErrorCodeAlreadyRegistered,
		},
		{
			name:         "event full",
			eventID:      "event1",
			teamID:       "team1",
			callerUserID: "leader1",
			setupMocks: func(tr *MockTeamRepository, er *MockEventRepository) {
				tr.On("Get", mock.Anything, "team1").Return(team, nil)
				er.On("AddRegistration", mock.Anything, "event1", "team1").Return(repository.ErrEventFull)
			},
			expectedError: true,
			errorCode:     ErrorCodeEventFull,
		},
		{
			name:         "store failure",
			eventID:      "event1",
			teamID:       "team1",
			callerUserID: "leader1",
			setupMocks: func(tr *MockTeamRepository, er *MockEventRepository) {
				tr.On("Get", mock.Anything, "team1").Return(team, nil)
				er.On("AddRegistration", mock.Anything, "event1", "team1").Return(errors.New("db error"))
			},
			expectedError: true,
			errorCode:     ErrorCodeUnspecified,
		},
		{
			name:         "serialization failure is retryable",
			eventID:      "event1",
			teamID:       "team1",
			callerUserID: "leader1",
			setupMocks: func(tr *MockTeamRepository, er *MockEventRepository) {
				tr.On("Get", mock.Anything, "team1").Return(team, nil)
				er.On("AddRegistration", mock.Anything, "event1", "team1").Return(&pgconn.PgError{Code: "40001"})
			},
			expectedError: true,
			errorCode:     ErrorCodeUnavailable,
		},
		{
			name:         "deadlock abort is retryable",
			eventID:      "event1",
			teamID:       "team1",
			callerUserID: "leader1",
			setupMocks: func(tr *MockTeamRepository, er *MockEventRepository) {
				tr.On("Get", mock.Anything, "team1").Return(team, nil)
				er.On("AddRegistration", mock.Anything, "event1", "team1").Return(&pgconn.PgError{Code: "40P01"})
			},
			expectedError: true,
			errorCode:     ErrorCodeUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockTx := new(MockTransactor)
			mockTeamRepo := new(MockTeamRepository)
			mockEventRepo := new(MockEventRepository)

			tt.setupMocks(mockTeamRepo, mockEventRepo)

			service := NewRegistrationService(mockTx).
				WithTeamRepo(mockTeamRepo).
				WithEventRepo(mockEventRepo)

			got, err := service.RegisterTeam(context.Background(), tt.eventID, tt.teamID, tt.callerUserID)

			if tt.expectedError {
				assert.Error(t, err)
				assert.Equal(t, tt.errorCode, err.Code)
				assert.Nil(t, got)
			} else {
				assert.Nil(t, err)
				assert.Equal(t, "event1", got.ID)
				assert.Equal(t, []string{"team1"}, got.RegisteredTeams)
				assert.Equal(t, 2, got.SeatsAvailable)
			}

			mockTeamRepo.AssertExpectations(t)
			mockEventRepo.AssertExpectations(t)
		})
	}
}

// memStore backs the concurrency tests: a store whose AddRegistration is a
// single atomic conditional write, like the real conditional insert under
// the event row lock.
type memStore struct {
	mu     sync.Mutex
	teams  map[string]*repository.Team
	events map[string]*repository.Event
	regs   map[string]map[string]bool
}

func newMemStore() *memStore {
	return &memStore{
		teams:  make(map[string]*repository.Team),
		events: make(map[string]*repository.Event),
		regs:   make(map[string]map[string]bool),
	}
}

func (m *memStore) WithinTransaction(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func (m *memStore) addTeam(team *repository.Team) {
	m.teams[team.ID] = team
}

func (m *memStore) addEvent(event *repository.Event) {
	m.events[event.ID] = event
	m.regs[event.ID] = make(map[string]bool)
}

func (m *memStore) Get(ctx context.Context, teamID string) (*repository.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	team, ok := m.teams[teamID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return team, nil
}

func (m *memStore) GetByLeader(ctx context.Context, leaderID string) ([]*repository.Team, error) {
	return nil, nil
}

func (m *memStore) Create(ctx context.Context, team *repository.Team) error { return nil }

func (m *memStore) Update(ctx context.Context, team *repository.Team) error { return nil }

func (m *memStore) Delete(ctx context.Context, teamID string) error { return nil }

type memEvents struct {
	store *memStore
}

func (m *memEvents) Create(ctx context.Context, event *repository.Event) error { return nil }

func (m *memEvents) Get(ctx context.Context, eventID string) (*repository.Event, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	event, ok := m.store.events[eventID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	registered := make([]string, 0, len(m.store.regs[eventID]))
	for teamID := range m.store.regs[eventID] {
		registered = append(registered, teamID)
	}
	return &repository.Event{
		ID:              event.ID,
		Name:            event.Name,
		MaxSeats:        event.MaxSeats,
		RegisteredTeams: registered,
	}, nil
}

func (m *memEvents) List(ctx context.Context) ([]*repository.Event, error) { return nil, nil }

func (m *memEvents) AddRegistration(ctx context.Context, eventID, teamID string) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	event, ok := m.store.events[eventID]
	if !ok {
		return repository.ErrNotFound
	}
	if m.store.regs[eventID][teamID] {
		return repository.ErrAlreadyRegistered
	}
	if len(m.store.regs[eventID]) >= event.MaxSeats {
		return repository.ErrEventFull
	}
	m.store.regs[eventID][teamID] = true
	return nil
}

func (m *memEvents) CountForTeam(ctx context.Context, teamID string) (int, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	count := 0
	for _, teams := range m.store.regs {
		if teams[teamID] {
			count++
		}
	}
	return count, nil
}

func newMemService(store *memStore) *RegistrationService {
	return NewRegistrationService(store).
		WithTeamRepo(store).
		WithEventRepo(&memEvents{store: store})
}

// Many distinct teams race for a handful of seats: the membership set never
// exceeds capacity, exactly maxSeats attempts win, and every loser sees
// EVENT_FULL.
func TestRegisterTeam_CapacityUnderContention(t *testing.T) {
	const maxSeats = 5
	const attempts = 100

	store := newMemStore()
	store.addEvent(&repository.Event{ID: "event1", Name: "hacknight", MaxSeats: maxSeats})
	for i := 0; i < attempts; i++ {
		store.addTeam(&repository.Team{
			ID:       fmt.Sprintf("team%d", i),
			Name:     fmt.Sprintf("team-%d", i),
			LeaderID: fmt.Sprintf("leader%d", i),
		})
	}

	service := newMemService(store)

	var successCount, fullCount, otherCount int32
	var wg sync.WaitGroup
	wg.Add(attempts)

	for i := 0; i < attempts; i++ {
		go func(i int) {
			defer wg.Done()
			teamID := fmt.Sprintf("team%d", i)
			leaderID := fmt.Sprintf("leader%d", i)
			_, err := service.RegisterTeam(context.Background(), "event1", teamID, leaderID)
			switch {
			case err == nil:
				atomic.AddInt32(&successCount, 1)
			case err.Code == ErrorCodeEventFull:
				atomic.AddInt32(&fullCount, 1)
			default:
				atomic.AddInt32(&otherCount, 1)
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, maxSeats, successCount)
	assert.EqualValues(t, attempts-maxSeats, fullCount)
	assert.Zero(t, otherCount)

	event, _ := (&memEvents{store: store}).Get(context.Background(), "event1")
	assert.Len(t, event.RegisteredTeams, maxSeats)
}

// The same (event, team) pair submitted concurrently consumes exactly one
// seat: one success, everyone else ALREADY_REGISTERED.
func TestRegisterTeam_ExactlyOnceMembership(t *testing.T) {
	const attempts = 50

	store := newMemStore()
	store.addEvent(&repository.Event{ID: "event1", Name: "hacknight", MaxSeats: 10})
	store.addTeam(&repository.Team{ID: "team1", Name: "backend", LeaderID: "leader1"})

	service := newMemService(store)

	var successCount, duplicateCount int32
	var wg sync.WaitGroup
	wg.Add(attempts)

	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			_, err := service.RegisterTeam(context.Background(), "event1", "team1", "leader1")
			if err == nil {
				atomic.AddInt32(&successCount, 1)
			} else if err.Code == ErrorCodeAlreadyRegistered {
				atomic.AddInt32(&duplicateCount, 1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, successCount)
	assert.EqualValues(t, attempts-1, duplicateCount)

	event, _ := (&memEvents{store: store}).Get(context.Background(), "event1")
	assert.Equal(t, []string{"team1"}, event.RegisteredTeams)
	assert.Equal(t, 9, event.MaxSeats-len(event.RegisteredTeams))
}

// Two teams race for the last seat: exactly one wins, the other is told the
// event is full. First-committer-wins, so either outcome is acceptable.
func TestRegisterTeam_LastSeatRace(t *testing.T) {
	store := newMemStore()
	store.addEvent(&repository.Event{ID: "event1", Name: "finals", MaxSeats: 1})
	store.addTeam(&repository.Team{ID: "team1", Name: "alpha", LeaderID: "leader1"})
	store.addTeam(&repository.Team{ID: "team2", Name: "beta", LeaderID: "leader2"})

	service := newMemService(store)

	results := make(chan *Error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	for _, pair := range [][2]string{{"team1", "leader1"}, {"team2", "leader2"}} {
		go func(teamID, leaderID string) {
			defer wg.Done()
			_, err := service.RegisterTeam(context.Background(), "event1", teamID, leaderID)
			results <- err
		}(pair[0], pair[1])
	}
	wg.Wait()
	close(results)

	var successes, fulls int
	for err := range results {
		if err == nil {
			successes++
		} else if err.Code == ErrorCodeEventFull {
			fulls++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, fulls)

	event, _ := (&memEvents{store: store}).Get(context.Background(), "event1")
	assert.Len(t, event.RegisteredTeams, 1)
}

// A sequential re-registration after success is a deterministic duplicate,
// and the membership set is unchanged by it.
func TestRegisterTeam_IdempotentDuplicate(t *testing.T) {
	store := newMemStore()
	store.addEvent(&repository.Event{ID: "event1", Name: "hacknight", MaxSeats: 3})
	store.addTeam(&repository.Team{ID: "team1", Name: "backend", LeaderID: "leader1"})

	service := newMemService(store)

	event, err := service.RegisterTeam(context.Background(), "event1", "team1", "leader1")
	assert.Nil(t, err)
	assert.Equal(t, []string{"team1"}, event.RegisteredTeams)

	_, err = service.RegisterTeam(context.Background(), "event1", "team1", "leader1")
	assert.NotNil(t, err)
	assert.Equal(t, ErrorCodeAlreadyRegistered, err.Code)

	after, _ := (&memEvents{store: store}).Get(context.Background(), "event1")
	assert.Equal(t, []string{"team1"}, after.RegisteredTeams)
}

// A full event rejects a new distinct team without touching the set.
func TestRegisterTeam_FullEventRejectsNewTeam(t *testing.T) {
	store := newMemStore()
	store.addEvent(&repository.Event{ID: "event1", Name: "hacknight", MaxSeats: 3})
	for i := 1; i <= 4; i++ {
		store.addTeam(&repository.Team{
			ID:       fmt.Sprintf("team%d", i),
			Name:     fmt.Sprintf("team-%d", i),
			LeaderID: fmt.Sprintf("leader%d", i),
		})
	}

	service := newMemService(store)

	for i := 1; i <= 3; i++ {
		_, err := service.RegisterTeam(context.Background(),
			"event1", fmt.Sprintf("team%d", i), fmt.Sprintf("leader%d", i))
		assert.Nil(t, err)
	}

	_, err := service.RegisterTeam(context.Background(), "event1", "team4", "leader4")
	assert.NotNil(t, err)
	assert.Equal(t, ErrorCodeEventFull, err.Code)

	event, _ := (&memEvents{store: store}).Get(context.Background(), "event1")
	assert.Len(t, event.RegisteredTeams, 3)
	assert.NotContains(t, event.RegisteredTeams, "team4")
}

// Registering against a missing event fails with NOT_FOUND and leaves no
// registration behind for the team.
func TestRegisterTeam_MissingEvent(t *testing.T) {
	store := newMemStore()
	store.addTeam(&repository.Team{ID: "team1", Name: "backend", LeaderID: "leader1"})

	service := newMemService(store)

	_, err := service.RegisterTeam(context.Background(), "ghost", "team1", "leader1")
	assert.NotNil(t, err)
	assert.Equal(t, ErrorCodeNotFound, err.Code)

	count, _ := (&memEvents{store: store}).CountForTeam(context.Background(), "team1")
	assert.Zero(t, count)
}
