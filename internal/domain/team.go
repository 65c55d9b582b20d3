package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrTeamExists        = errors.New("Team already exists")
	ErrTeamNotFound      = errors.New("Team not found")
	ErrNotTeamMember     = errors.New("Not a member of the team")
	ErrAlreadyTeamMember = errors.New("Already a member of the team")
	ErrInvitationExpired = errors.New("Invitation is no longer valid")
	ErrInvitationUsed    = errors.New("Invitation was already accepted")
)

type TeamRole int

const (
	TeamRoleMember TeamRole = 1
	TeamRoleAdmin  TeamRole = 2
)

func (r TeamRole) Name() string {
	switch r {
	case TeamRoleAdmin:
		return "Administrator"
	case TeamRoleMember:
		return "Member"
	}
	return "Unknown"
}

func (r TeamRole) Valid() bool {
	return r == TeamRoleMember || r == TeamRoleAdmin
}

// Team is the top level organizational unit: a collection of members
// and projects working together as a single organization.
type Team struct {
	ID          int64
	Title       string
	Slug        string
	Description string
	Created     time.Time
}

// TeamMembership joins an account to a team with a role.
type TeamMembership struct {
	TeamID   int64
	Username string
	Role     TeamRole
	Created  time.Time
	Modified time.Time
}

func (m TeamMembership) IsAdmin() bool {
	return m.Role == TeamRoleAdmin
}

func NewTeam(title, description string) (Team, error) {
	title = strings.TrimSpace(title)
	if title == "" || len(title) > 100 {
		return Team{}, fmt.Errorf("invalid team title: '%s'", title)
	}
	slug := Slugify(title)
	if slug == "" {
		return Team{}, fmt.Errorf("team title must contain alphanumeric characters: '%s'", title)
	}
	return Team{
		Title:       title,
		Slug:        slug,
		Description: strings.TrimSpace(description),
	}, nil
}

// TeamInvitation is an email invite to join a team. The invite link carries
// a signed token; the record tracks whether it was already used.
type TeamInvitation struct {
	ID        string
	TeamID    int64
	Email     string
	InvitedBy string
	Accepted  bool
	Created   time.Time
}

type TeamsRepository interface {
	// Create stores the team and adds creator as its administrator.
	Create(team Team, creator string) (Team, error)
	Update(team Team) error
	Delete(teamID int64) error
	GetBySlug(slug string) (Team, error)
	ListForUser(username string) ([]Team, error)

	GetMembership(teamID int64, username string) (TeamMembership, error)
	GetMemberships(teamID int64) ([]TeamMembership, error)
	AddMember(teamID int64, username string, role TeamRole) error
	UpdateMemberRole(teamID int64, username string, role TeamRole) error
	RemoveMember(teamID int64, username string) error

	CreateInvitation(invitation TeamInvitation) error
	GetInvitation(id string) (TeamInvitation, error)
	ListInvitations(teamID int64) ([]TeamInvitation, error)
	MarkInvitationAccepted(id string) error
}
