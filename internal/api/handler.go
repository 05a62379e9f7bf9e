package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/campuskit/event-registration/internal/model"
	"github.com/campuskit/event-registration/internal/service"
	"github.com/campuskit/event-registration/pkg/logger"
)

type Handler struct {
	registration *service.RegistrationService
	team         *service.TeamService
	event        *service.EventService
	user         *service.UserService

	healthChecker HealthChecker

	logger *zap.Logger
}

func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{
		logger: logger,
	}
}

func (h *Handler) WithHealthChecker(c HealthChecker) *Handler {
	h.healthChecker = c
	return h
}

func (h *Handler) WithRegistrationService(s *service.RegistrationService) *Handler {
	h.registration = s
	return h
}

func (h *Handler) WithTeamService(s *service.TeamService) *Handler {
	h.team = s
	return h
}

func (h *Handler) WithEventService(s *service.EventService) *Handler {
	h.event = s
	return h
}

func (h *Handler) WithUserService(s *service.UserService) *Handler {
	h.user = s
	return h
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.Validator = NewValidator()
	e.Use(middleware.RequestID())
	e.Use(ZapLoggerMiddleware(h.logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.GET("/health", h.healthChecker.HealthCheck())

	e.POST("/users/signup", h.Signup)
	e.POST("/users/login", h.Login)
	e.GET("/users/activate/:token", h.Activate)

	secured := e.Group("", AuthMiddleware())

	secured.POST("/teams", h.CreateTeam)
	secured.GET("/teams", h.ListMyTeams)
	secured.GET("/teams/:id", h.GetTeam)
	secured.PUT("/teams/:id", h.UpdateTeam)
	secured.DELETE("/teams/:id", h.DeleteTeam)

	secured.POST("/events", h.CreateEvent)
	secured.GET("/events", h.ListEvents)
	secured.GET("/events/:id", h.GetEvent)
	secured.POST("/events/:id/register", h.RegisterTeam)

	secured.GET("/admin/registrations", h.ListRegistrations)
}

func (h *Handler) RegisterTeam(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req struct {
		TeamID string `json:"team_id" validate:"required"`
	}

	if err := h.decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	eventID := e.Param("id")
	callerUserID := CallerUserID(e)

	l.Info("registering team",
		zap.String("event_id", eventID),
		zap.String("team_id", req.TeamID))

	event, err := h.registration.RegisterTeam(e.Request().Context(), eventID, req.TeamID, callerUserID)
	if err != nil {
		l.Error("failed to register team",
			zap.String("event_id", eventID),
			zap.String("team_id", req.TeamID),
			zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, event)
}

func (h *Handler) CreateTeam(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	team := &model.Team{}

	if err := h.decodeRequest(e, team); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	l.Info("creating team", zap.String("team_name", team.Name))

	created, err := h.team.CreateTeam(e.Request().Context(), team, CallerUserID(e))
	if err != nil {
		l.Error("failed to create team", zap.String("team_name", team.Name), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusCreated, created)
}

func (h *Handler) GetTeam(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	teamID := e.Param("id")

	l.Info("getting team", zap.String("team_id", teamID))

	team, err := h.team.GetTeam(e.Request().Context(), teamID)
	if err != nil {
		l.Error("failed to get team", zap.String("team_id", teamID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, team)
}

func (h *Handler) ListMyTeams(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	teams, err := h.team.ListMyTeams(e.Request().Context(), CallerUserID(e))
	if err != nil {
		l.Error("failed to list teams", zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, teams)
}

func (h *Handler) UpdateTeam(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	team := &model.Team{}

	if err := h.decodeRequest(e, team); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}
	team.ID = e.Param("id")

	l.Info("updating team", zap.String("team_id", team.ID))

	updated, err := h.team.UpdateTeam(e.Request().Context(), team, CallerUserID(e))
	if err != nil {
		l.Error("failed to update team", zap.String("team_id", team.ID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteTeam(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	teamID := e.Param("id")

	l.Info("deleting team", zap.String("team_id", teamID))

	if err := h.team.DeleteTeam(e.Request().Context(), teamID, CallerUserID(e)); err != nil {
		l.Error("failed to delete team", zap.String("team_id", teamID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, map[string]any{})
}

func (h *Handler) CreateEvent(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	event := &model.Event{}

	if err := h.decodeRequest(e, event); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	l.Info("creating event", zap.String("event_name", event.Name))

	created, err := h.event.CreateEvent(e.Request().Context(), event)
	if err != nil {
		l.Error("failed to create event", zap.String("event_name", event.Name), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusCreated, created)
}

func (h *Handler) GetEvent(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	eventID := e.Param("id")

	l.Info("getting event", zap.String("event_id", eventID))

	event, err := h.event.GetEvent(e.Request().Context(), eventID)
	if err != nil {
		l.Error("failed to get event", zap.String("event_id", eventID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, event)
}

func (h *Handler) ListEvents(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	events, err := h.event.ListEvents(e.Request().Context())
	if err != nil {
		l.Error("failed to list events", zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, events)
}

func (h *Handler) ListRegistrations(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	registrations, err := h.event.ListRegistrations(e.Request().Context())
	if err != nil {
		l.Error("failed to list registrations", zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, registrations)
}

func (h *Handler) Signup(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	req := &model.Signup{}

	if err := h.decodeRequest(e, req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	l.Info("signing up", zap.String("email", req.Email))

	token, err := h.user.Signup(e.Request().Context(), req)
	if err != nil {
		l.Error("failed to sign up", zap.String("email", req.Email), zap.Any("error", err))
		return h.transportError(e, err)
	}

	// The activation token would normally be mailed; it is returned here
	// because delivery is out of scope.
	return e.JSON(http.StatusCreated, map[string]string{
		"message":          "account created, activation required",
		"activation_token": token,
	})
}

func (h *Handler) Activate(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	if err := h.user.Activate(e.Request().Context(), e.Param("token")); err != nil {
		l.Error("failed to activate account", zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, map[string]string{"message": "account activated successfully"})
}

func (h *Handler) Login(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	if err := h.decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	l.Info("logging in", zap.String("email", req.Email))

	token, user, err := h.user.Login(e.Request().Context(), req.Email, req.Password)
	if err != nil {
		l.Error("failed to log in", zap.String("email", req.Email), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"access_token": token,
		"user":         user,
	})
}

func (h *Handler) decodeRequest(e echo.Context, req any) *service.Error {
	if err := e.Bind(req); err != nil {
		return service.NewError(service.ErrorCodeInvalidBody, "invalid request body")
	}

	if err := e.Validate(req); err != nil {
		return service.NewError(service.ErrorCodeInvalidBody, errors.Wrap(err, "request validation failed").Error())
	}
	return nil
}

func (h *Handler) transportError(e echo.Context, err *service.Error) error {
	response := struct {
		Error *service.Error `json:"error"`
	}{Error: err}

	switch err.Code {
	case service.ErrorCodeNotFound:
		return e.JSON(http.StatusNotFound, response)
	case service.ErrorCodeForbidden:
		return e.JSON(http.StatusForbidden, response)
	case service.ErrorCodeUnauthorized:
		return e.JSON(http.StatusUnauthorized, response)
	case service.ErrorCodeAlreadyRegistered, service.ErrorCodeEventFull,
		service.ErrorCodeTeamExists, service.ErrorCodeUserExists,
		service.ErrorCodeHasRegistration:
		return e.JSON(http.StatusConflict, response)
	case service.ErrorCodeInvalidBody, service.ErrorCodeInvalidArgument:
		return e.JSON(http.StatusBadRequest, response)
	case service.ErrorCodeUnavailable:
		return e.JSON(http.StatusServiceUnavailable, response)
	default:
		return e.JSON(http.StatusInternalServerError, response)
	}
}
