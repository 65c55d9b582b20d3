package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/bugtrack/bugtrack-server/internal/application"
	"github.com/bugtrack/bugtrack-server/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// trackerHTTPError translates service errors to HTTP status codes.
// Unrecognized errors are returned as-is and end up as 500.
func trackerHTTPError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, application.ErrPermissionDenied):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrTeamNotFound),
		errors.Is(err, domain.ErrProjectNotFound),
		errors.Is(err, domain.ErrTicketNotFound),
		errors.Is(err, domain.ErrCommentNotFound),
		errors.Is(err, domain.ErrAttachmentNotFound),
		errors.Is(err, domain.ErrNotTeamMember),
		errors.Is(err, domain.ErrNotProjectMember),
		errors.Is(err, domain.ErrAccountNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrTeamExists),
		errors.Is(err, domain.ErrProjectExists),
		errors.Is(err, domain.ErrAlreadyTeamMember),
		errors.Is(err, domain.ErrAlreadyProjectMember),
		errors.Is(err, domain.ErrTicketClosed),
		errors.Is(err, domain.ErrProjectArchived),
		errors.Is(err, domain.ErrInvitationUsed),
		errors.Is(err, domain.ErrInvitationExpired),
		errors.Is(err, application.ErrInvalidToken):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return err
}

type TeamData struct {
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	Created     time.Time `json:"created"`
}

type TeamMemberData struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

func toTeamData(t domain.Team) TeamData {
	return TeamData{
		Title:       t.Title,
		Slug:        t.Slug,
		Description: t.Description,
		Created:     t.Created,
	}
}

func (s *Server) handleGetTeams(c echo.Context) error {
	user, err := s.auth.GetUser(c)
	if err != nil {
		return err
	}
	teams, err := s.tracker.ListTeams(user.Username)
	if err != nil {
		return trackerHTTPError(err)
	}
	data := []TeamData{}
	for _, t := range teams {
		data = append(data, toTeamData(t))
	}
	return c.JSON(http.StatusOK, data)
}

func (s *Server) handleCreateTeam() func(echo.Context) error {
	type TeamForm struct {
		Title       string `json:"title" form:"title" validate:"required"`
		Description string `json:"description" form:"description"`
	}
	var validate = validator.New()
	return func(c echo.Context) error {
		form := new(TeamForm)
		if err := c.Bind(form); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(form); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		user, err := s.auth.GetUser(c)
		if err != nil {
			return err
		}
		team, err := s.tracker.CreateTeam(user.Username, form.Title, form.Description)
		if err != nil {
			return trackerHTTPError(err)
		}
		return c.JSON(http.StatusCreated, toTeamData(team))
	}
}

func (s *Server) handleGetTeam(c echo.Context) error {
	user, err := s.auth.GetUser(c)
	if err != nil {
		return err
	}
	team, memberships, err := s.tracker.GetTeam(user.Username, c.Param("team"))
	if err != nil {
		return trackerHTTPError(err)
	}
	type Resp struct {
		TeamData
		Members []TeamMemberData `json:"members"`
	}
	resp := Resp{TeamData: toTeamData(team), Members: []TeamMemberData{}}
	for _, m := range memberships {
		resp.Members = append(resp.Members, TeamMemberData{Username: m.Username, Role: m.Role.Name()})
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleUpdateTeam() func(echo.Context) error {
	type TeamForm struct {
		Description string `json:"description" form:"description"`
	}
	return func(c echo.Context) error {
		form := new(TeamForm)
		if err := c.Bind(form); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		user, err := s.auth.GetUser(c)
		if err != nil {
			return err
		}
		team, err := s.tracker.UpdateTeam(user.Username, c.Param("team"), form.Description)
		if err != nil {
			return trackerHTTPError(err)
		}
		return c.JSON(http.StatusOK, toTeamData(team))
	}
}

func (s *Server) handleUpdateTeamRole() func(echo.Context) error {
	type RoleForm struct {
		Role int `json:"role" form:"role" validate:"required"`
	}
	var validate = validator.New()
	return func(c echo.Context) error {
		form := new(RoleForm)
		if err := c.Bind(form); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(form); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		user, err := s.auth.GetUser(c)
		if err != nil {
			return err
		}
		err = s.tracker.UpdateTeamRole(user.Username, c.Param("team"), c.Param("user"), domain.TeamRole(form.Role))
		if err != nil {
			return trackerHTTPError(err)
		}
		return c.NoContent(http.StatusOK)
	}
}

func (s *Server) handleRemoveTeamMember(c echo.Context) error {
	user, err := s.auth.GetUser(c)
	if err != nil {
		return err
	}
	err = s.tracker.RemoveTeamMember(user.Username, c.Param("team"), c.Param("user"))
	if err != nil {
		return trackerHTTPError(err)
	}
	return c.NoContent(http.StatusOK)
}

func (s *Server) handleInviteToTeam() func(echo.Context) error {
	type InviteForm struct {
		Email string `json:"email" form:"email" validate:"required,email"`
	}
	var validate = validator.New()
	return func(c echo.Context) error {
		form := new(InviteForm)
		if err := c.Bind(form); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(form); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		user, err := s.auth.GetUser(c)
		if err != nil {
			return err
		}
		invitation, err := s.tracker.InviteToTeam(user.Username, c.Param("team"), form.Email)
		if err != nil {
			return trackerHTTPError(err)
		}
		type Resp struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		}
		return c.JSON(http.StatusCreated, Resp{ID: invitation.ID, Email: invitation.Email})
	}
}

func (s *Server) handleGetInvitations(c echo.Context) error {
	user, err := s.auth.GetUser(c)
	if err != nil {
		return err
	}
	invitations, err := s.tracker.ListInvitations(user.Username, c.Param("team"))
	if err != nil {
		return trackerHTTPError(err)
	}
	type Invitation struct {
		ID        string    `json:"id"`
		Email     string    `json:"email"`
		InvitedBy string    `json:"invited_by"`
		Accepted  bool      `json:"accepted"`
		Created   time.Time `json:"created"`
	}
	data := []Invitation{}
	for _, i := range invitations {
		data = append(data, Invitation{
			ID:        i.ID,
			Email:     i.Email,
			InvitedBy: i.InvitedBy,
			Accepted:  i.Accepted,
			Created:   i.Created,
		})
	}
	return c.JSON(http.StatusOK, data)
}

func (s *Server) handleAcceptInvitation() func(echo.Context) error {
	type JoinForm struct {
		Invitation string `json:"invitation" form:"invitation" query:"invitation" validate:"required"`
		Token      string `json:"token" form:"token" query:"token" validate:"required"`
	}
	var validate = validator.New()
	return func(c echo.Context) error {
		form := new(JoinForm)
		if err := c.Bind(form); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(form); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		user, err := s.auth.GetUser(c)
		if err != nil {
			return err
		}
		team, err := s.tracker.AcceptInvitation(user.Username, form.Invitation, form.Token)
		if err != nil {
			return trackerHTTPError(err)
		}
		return c.JSON(http.StatusOK, toTeamData(team))
	}
}
