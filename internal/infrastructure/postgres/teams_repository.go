package postgres

import (
	"database/sql"

	"github.com/bugtrack/bugtrack-server/internal/domain"
	"github.com/jmoiron/sqlx"
)

type TeamsRepository struct {
	db *sqlx.DB
}

func NewTeamsRepository(db *sqlx.DB) *TeamsRepository {
	return &TeamsRepository{db}
}

func (r *TeamsRepository) Create(team domain.Team, creator string) (domain.Team, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return domain.Team{}, err
	}
	defer tx.Rollback()

	row := tx.QueryRow(
		`INSERT INTO team (title, slug, description) VALUES ($1, $2, $3) RETURNING id, created_at`,
		team.Title, team.Slug, team.Description,
	)
	if err := row.Scan(&team.ID, &team.Created); err != nil {
		if isUniqueViolation(err) {
			return domain.Team{}, domain.ErrTeamExists
		}
		return domain.Team{}, err
	}
	_, err = tx.Exec(
		`INSERT INTO team_membership (team_id, username, role) VALUES ($1, $2, $3)`,
		team.ID, creator, domain.TeamRoleAdmin,
	)
	if err != nil {
		return domain.Team{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Team{}, err
	}
	return team, nil
}

func (r *TeamsRepository) Update(team domain.Team) error {
	_, err := r.db.Exec(
		`UPDATE team SET description=$1 WHERE id=$2`,
		team.Description, team.ID,
	)
	return err
}

func (r *TeamsRepository) Delete(teamID int64) error {
	_, err := r.db.Exec(`DELETE FROM team WHERE id=$1`, teamID)
	return err
}

func (r *TeamsRepository) GetBySlug(slug string) (domain.Team, error) {
	var team Team
	err := r.db.Get(&team, `SELECT * FROM team WHERE slug=$1`, slug)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Team{}, domain.ErrTeamNotFound
		}
		return domain.Team{}, err
	}
	return toTeam(team), nil
}

func (r *TeamsRepository) ListForUser(username string) ([]domain.Team, error) {
	var teams []Team
	err := r.db.Select(&teams,
		`SELECT t.* FROM team t
		JOIN team_membership m ON m.team_id = t.id
		WHERE m.username=$1
		ORDER BY t.title`, username)
	if err != nil {
		return nil, err
	}
	result := make([]domain.Team, len(teams))
	for i, t := range teams {
		result[i] = toTeam(t)
	}
	return result, nil
}

func (r *TeamsRepository) GetMembership(teamID int64, username string) (domain.TeamMembership, error) {
	var m TeamMembership
	err := r.db.Get(&m,
		`SELECT * FROM team_membership WHERE team_id=$1 AND username=$2`,
		teamID, username)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.TeamMembership{}, domain.ErrNotTeamMember
		}
		return domain.TeamMembership{}, err
	}
	return toTeamMembership(m), nil
}

func (r *TeamsRepository) GetMemberships(teamID int64) ([]domain.TeamMembership, error) {
	var memberships []TeamMembership
	err := r.db.Select(&memberships,
		`SELECT * FROM team_membership WHERE team_id=$1 ORDER BY username`, teamID)
	if err != nil {
		return nil, err
	}
	result := make([]domain.TeamMembership, len(memberships))
	for i, m := range memberships {
		result[i] = toTeamMembership(m)
	}
	return result, nil
}

func (r *TeamsRepository) AddMember(teamID int64, username string, role domain.TeamRole) error {
	_, err := r.db.Exec(
		`INSERT INTO team_membership (team_id, username, role) VALUES ($1, $2, $3)`,
		teamID, username, role)
	if err != nil && isUniqueViolation(err) {
		return domain.ErrAlreadyTeamMember
	}
	return err
}

func (r *TeamsRepository) UpdateMemberRole(teamID int64, username string, role domain.TeamRole) error {
	res, err := r.db.Exec(
		`UPDATE team_membership SET role=$1, updated_at=now() WHERE team_id=$2 AND username=$3`,
		role, teamID, username)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotTeamMember
	}
	return nil
}

func (r *TeamsRepository) RemoveMember(teamID int64, username string) error {
	res, err := r.db.Exec(
		`DELETE FROM team_membership WHERE team_id=$1 AND username=$2`,
		teamID, username)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotTeamMember
	}
	return nil
}

func (r *TeamsRepository) CreateInvitation(invitation domain.TeamInvitation) error {
	_, err := r.db.Exec(
		`INSERT INTO team_invitation (id, team_id, email, invited_by) VALUES ($1, $2, $3, $4)`,
		invitation.ID, invitation.TeamID, invitation.Email, invitation.InvitedBy)
	return err
}

func (r *TeamsRepository) GetInvitation(id string) (domain.TeamInvitation, error) {
	var inv TeamInvitation
	err := r.db.Get(&inv, `SELECT * FROM team_invitation WHERE id=$1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.TeamInvitation{}, domain.ErrInvitationExpired
		}
		return domain.TeamInvitation{}, err
	}
	return toTeamInvitation(inv), nil
}

func (r *TeamsRepository) ListInvitations(teamID int64) ([]domain.TeamInvitation, error) {
	var invitations []TeamInvitation
	err := r.db.Select(&invitations,
		`SELECT * FROM team_invitation WHERE team_id=$1 ORDER BY created_at DESC`, teamID)
	if err != nil {
		return nil, err
	}
	result := make([]domain.TeamInvitation, len(invitations))
	for i, inv := range invitations {
		result[i] = toTeamInvitation(inv)
	}
	return result, nil
}

func (r *TeamsRepository) MarkInvitationAccepted(id string) error {
	res, err := r.db.Exec(`UPDATE team_invitation SET accepted=true WHERE id=$1 AND accepted=false`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrInvitationUsed
	}
	return nil
}

func toTeam(t Team) domain.Team {
	return domain.Team{
		ID:          t.ID,
		Title:       t.Title,
		Slug:        t.Slug,
		Description: t.Description,
		Created:     t.Created,
	}
}

func toTeamMembership(m TeamMembership) domain.TeamMembership {
	return domain.TeamMembership{
		TeamID:   m.TeamID,
		Username: m.Username,
		Role:     domain.TeamRole(m.Role),
		Created:  m.Created,
		Modified: m.Modified,
	}
}

func toTeamInvitation(i TeamInvitation) domain.TeamInvitation {
	return domain.TeamInvitation{
		ID:        i.ID,
		TeamID:    i.TeamID,
		Email:     i.Email,
		InvitedBy: i.InvitedBy,
		Accepted:  i.Accepted,
		Created:   i.Created,
	}
}
