package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrProjectExists        = errors.New("Project already exists")
	ErrProjectNotFound      = errors.New("Project not found")
	ErrNotProjectMember     = errors.New("Not a member of the project")
	ErrAlreadyProjectMember = errors.New("Already a member of the project")
	ErrProjectArchived      = errors.New("Project is archived")
)

type ProjectRole int

const (
	ProjectRoleDeveloper ProjectRole = 1
	ProjectRoleManager   ProjectRole = 2
)

func (r ProjectRole) Name() string {
	switch r {
	case ProjectRoleManager:
		return "Manager"
	case ProjectRoleDeveloper:
		return "Developer"
	}
	return "Unknown"
}

func (r ProjectRole) Valid() bool {
	return r == ProjectRoleDeveloper || r == ProjectRoleManager
}

// Project is the second level organizational unit: a team-scoped
// collection of members and tickets.
type Project struct {
	ID          int64
	TeamID      int64
	Title       string
	Slug        string
	Description string
	IsArchived  bool
	Created     time.Time
	Modified    time.Time
}

// ProjectMembership joins an account to a project with a role.
type ProjectMembership struct {
	ProjectID int64
	Username  string
	Role      ProjectRole
	Created   time.Time
	Modified  time.Time
}

func (m ProjectMembership) IsManager() bool {
	return m.Role == ProjectRoleManager
}

func NewProject(teamID int64, title, description string) (Project, error) {
	title = strings.TrimSpace(title)
	if title == "" || len(title) > 100 {
		return Project{}, fmt.Errorf("invalid project title: '%s'", title)
	}
	slug := Slugify(title)
	if slug == "" {
		return Project{}, fmt.Errorf("project title must contain alphanumeric characters: '%s'", title)
	}
	return Project{
		TeamID:      teamID,
		Title:       title,
		Slug:        slug,
		Description: strings.TrimSpace(description),
	}, nil
}

type ProjectsRepository interface {
	// Create stores the project and adds manager as its first member.
	Create(project Project, manager string) (Project, error)
	Update(project Project) error
	Delete(projectID int64) error
	GetBySlug(teamID int64, slug string) (Project, error)
	ListForTeam(teamID int64) ([]Project, error)

	GetMembership(projectID int64, username string) (ProjectMembership, error)
	GetMemberships(projectID int64) ([]ProjectMembership, error)
	AddMember(projectID int64, username string, role ProjectRole) error
	UpdateMemberRole(projectID int64, username string, role ProjectRole) error
	RemoveMember(projectID int64, username string) error

	Subscribe(projectID int64, username string) error
	Unsubscribe(projectID int64, username string) error
	GetSubscribers(projectID int64) ([]string, error)
}
