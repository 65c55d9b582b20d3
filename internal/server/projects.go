package server

import (
	"net/http"
	"time"

	"github.com/bugtrack/bugtrack-server/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type ProjectData struct {
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	IsArchived  bool      `json:"is_archived"`
	Created     time.Time `json:"created"`
	Modified    time.Time `json:"modified"`
}

func toProjectData(p domain.Project) ProjectData {
	return ProjectData{
		Title:       p.Title,
		Slug:        p.Slug,
		Description: p.Description,
		IsArchived:  p.IsArchived,
		Created:     p.Created,
		Modified:    p.Modified,
	}
}

func (s *Server) handleGetProjects(c echo.Context) error {
	user, err := s.auth.GetUser(c)
	if err != nil {
		return err
	}
	projects, err := s.tracker.ListProjects(user.Username, c.Param("team"))
	if err != nil {
		return trackerHTTPError(err)
	}
	data := []ProjectData{}
	for _, p := range projects {
		data = append(data, toProjectData(p))
	}
	return c.JSON(http.StatusOK, data)
}

func (s *Server) handleCreateProject() func(echo.Context) error {
	type ProjectForm struct {
		Title       string `json:"title" form:"title" validate:"required"`
		Description string `json:"description" form:"description"`
	}
	var validate = validator.New()
	return func(c echo.Context) error {
		form := new(ProjectForm)
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
		project, err := s.tracker.CreateProject(user.Username, c.Param("team"), form.Title, form.Description)
		if err != nil {
			return trackerHTTPError(err)
		}
		return c.JSON(http.StatusCreated, toProjectData(project))
	}
}

func (s *Server) handleGetProject(c echo.Context) error {
	user, err := s.auth.GetUser(c)
	if err != nil {
		return err
	}
	project, memberships, err := s.tracker.GetProject(user.Username, c.Param("team"), c.Param("project"))
	if err != nil {
		return trackerHTTPError(err)
	}
	type Member struct {
		Username string `json:"username"`
		Role     string `json:"role"`
	}
	type Resp struct {
		ProjectData
		Members []Member `json:"members"`
	}
	resp := Resp{ProjectData: toProjectData(project), Members: []Member{}}
	for _, m := range memberships {
		resp.Members = append(resp.Members, Member{Username: m.Username, Role: m.Role.Name()})
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleUpdateProject() func(echo.Context) error {
	type ProjectForm struct {
		Description string `json:"description" form:"description"`
		IsArchived  bool   `json:"is_archived" form:"is_archived"`
	}
	return func(c echo.Context) error {
		form := new(ProjectForm)
		if err := c.Bind(form); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		user, err := s.auth.GetUser(c)
		if err != nil {
			return err
		}
		project, err := s.tracker.UpdateProject(user.Username, c.Param("team"), c.Param("project"), form.Description, form.IsArchived)
		if err != nil {
			return trackerHTTPError(err)
		}
		return c.JSON(http.StatusOK, toProjectData(project))
	}
}

func (s *Server) handleDeleteProject(c echo.Context) error {
	user, err := s.auth.GetUser(c)
	if err != nil {
		return err
	}
	if err := s.tracker.DeleteProject(user.Username, c.Param("team"), c.Param("project")); err != nil {
		return trackerHTTPError(err)
	}
	return c.NoContent(http.StatusOK)
}

func (s *Server) handleAddProjectMember() func(echo.Context) error {
	type MemberForm struct {
		Username string `json:"username" form:"username" validate:"required"`
		Role     int    `json:"role" form:"role" validate:"required"`
	}
	var validate = validator.New()
	return func(c echo.Context) error {
		form := new(MemberForm)
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
		err = s.tracker.AddProjectMember(user.Username, c.Param("team"), c.Param("project"), form.Username, domain.ProjectRole(form.Role))
		if err != nil {
			return trackerHTTPError(err)
		}
		return c.NoContent(http.StatusCreated)
	}
}

func (s *Server) handleUpdateProjectRole() func(echo.Context) error {
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
		err = s.tracker.UpdateProjectRole(user.Username, c.Param("team"), c.Param("project"), c.Param("user"), domain.ProjectRole(form.Role))
		if err != nil {
			return trackerHTTPError(err)
		}
		return c.NoContent(http.StatusOK)
	}
}

func (s *Server) handleRemoveProjectMember(c echo.Context) error {
	user, err := s.auth.GetUser(c)
	if err != nil {
		return err
	}
	err = s.tracker.RemoveProjectMember(user.Username, c.Param("team"), c.Param("project"), c.Param("user"))
	if err != nil {
		return trackerHTTPError(err)
	}
	return c.NoContent(http.StatusOK)
}

func (s *Server) handleSubscribeProject(c echo.Context) error {
	user, err := s.auth.GetUser(c)
	if err != nil {
		return err
	}
	if err := s.tracker.SubscribeProject(user.Username, c.Param("team"), c.Param("project")); err != nil {
		return trackerHTTPError(err)
	}
	return c.NoContent(http.StatusOK)
}

func (s *Server) handleUnsubscribeProject(c echo.Context) error {
	user, err := s.auth.GetUser(c)
	if err != nil {
		return err
	}
	if err := s.tracker.UnsubscribeProject(user.Username, c.Param("team"), c.Param("project")); err != nil {
		return trackerHTTPError(err)
	}
	return c.NoContent(http.StatusOK)
}
