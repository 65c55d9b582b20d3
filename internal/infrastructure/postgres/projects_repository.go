package postgres

import (
	"database/sql"

	"github.com/bugtrack/bugtrack-server/internal/domain"
	"github.com/jmoiron/sqlx"
)

type ProjectsRepository struct {
	db *sqlx.DB
}

func NewProjectsRepository(db *sqlx.DB) *ProjectsRepository {
	return &ProjectsRepository{db}
}

func (r *ProjectsRepository) Create(project domain.Project, manager string) (domain.Project, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	row := tx.QueryRow(
		`INSERT INTO project (team_id, title, slug, description)
		VALUES ($1, $2, $3, $4) RETURNING id, created_at, updated_at`,
		project.TeamID, project.Title, project.Slug, project.Description,
	)
	if err := row.Scan(&project.ID, &project.Created, &project.Modified); err != nil {
		if isUniqueViolation(err) {
			return domain.Project{}, domain.ErrProjectExists
		}
		return domain.Project{}, err
	}
	_, err = tx.Exec(
		`INSERT INTO project_membership (project_id, username, role) VALUES ($1, $2, $3)`,
		project.ID, manager, domain.ProjectRoleManager,
	)
	if err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return project, nil
}

func (r *ProjectsRepository) Update(project domain.Project) error {
	_, err := r.db.Exec(
		`UPDATE project SET description=$1, is_archived=$2, updated_at=now() WHERE id=$3`,
		project.Description, project.IsArchived, project.ID,
	)
	return err
}

func (r *ProjectsRepository) Delete(projectID int64) error {
	_, err := r.db.Exec(`DELETE FROM project WHERE id=$1`, projectID)
	return err
}

func (r *ProjectsRepository) GetBySlug(teamID int64, slug string) (domain.Project, error) {
	var project Project
	err := r.db.Get(&project, `SELECT * FROM project WHERE team_id=$1 AND slug=$2`, teamID, slug)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Project{}, domain.ErrProjectNotFound
		}
		return domain.Project{}, err
	}
	return toProject(project), nil
}

func (r *ProjectsRepository) ListForTeam(teamID int64) ([]domain.Project, error) {
	var projects []Project
	err := r.db.Select(&projects, `SELECT * FROM project WHERE team_id=$1 ORDER BY title`, teamID)
	if err != nil {
		return nil, err
	}
	result := make([]domain.Project, len(projects))
	for i, p := range projects {
		result[i] = toProject(p)
	}
	return result, nil
}

func (r *ProjectsRepository) GetMembership(projectID int64, username string) (domain.ProjectMembership, error) {
	var m ProjectMembership
	err := r.db.Get(&m,
		`SELECT * FROM project_membership WHERE project_id=$1 AND username=$2`,
		projectID, username)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.ProjectMembership{}, domain.ErrNotProjectMember
		}
		return domain.ProjectMembership{}, err
	}
	return toProjectMembership(m), nil
}

func (r *ProjectsRepository) GetMemberships(projectID int64) ([]domain.ProjectMembership, error) {
	var memberships []ProjectMembership
	err := r.db.Select(&memberships,
		`SELECT * FROM project_membership WHERE project_id=$1 ORDER BY username`, projectID)
	if err != nil {
		return nil, err
	}
	result := make([]domain.ProjectMembership, len(memberships))
	for i, m := range memberships {
		result[i] = toProjectMembership(m)
	}
	return result, nil
}

func (r *ProjectsRepository) AddMember(projectID int64, username string, role domain.ProjectRole) error {
	_, err := r.db.Exec(
		`INSERT INTO project_membership (project_id, username, role) VALUES ($1, $2, $3)`,
		projectID, username, role)
	if err != nil && isUniqueViolation(err) {
		return domain.ErrAlreadyProjectMember
	}
	return err
}

func (r *ProjectsRepository) UpdateMemberRole(projectID int64, username string, role domain.ProjectRole) error {
	res, err := r.db.Exec(
		`UPDATE project_membership SET role=$1, updated_at=now() WHERE project_id=$2 AND username=$3`,
		role, projectID, username)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotProjectMember
	}
	return nil
}

func (r *ProjectsRepository) RemoveMember(projectID int64, username string) error {
	res, err := r.db.Exec(
		`DELETE FROM project_membership WHERE project_id=$1 AND username=$2`,
		projectID, username)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotProjectMember
	}
	return nil
}

func (r *ProjectsRepository) Subscribe(projectID int64, username string) error {
	// duplicate subscription is not an error
	_, err := r.db.Exec(
		`INSERT INTO project_subscription (project_id, username) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`,
		projectID, username)
	return err
}

func (r *ProjectsRepository) Unsubscribe(projectID int64, username string) error {
	_, err := r.db.Exec(
		`DELETE FROM project_subscription WHERE project_id=$1 AND username=$2`,
		projectID, username)
	return err
}

func (r *ProjectsRepository) GetSubscribers(projectID int64) ([]string, error) {
	var usernames []string
	err := r.db.Select(&usernames,
		`SELECT username FROM project_subscription WHERE project_id=$1`, projectID)
	return usernames, err
}

func toProject(p Project) domain.Project {
	return domain.Project{
		ID:          p.ID,
		TeamID:      p.TeamID,
		Title:       p.Title,
		Slug:        p.Slug,
		Description: p.Description,
		IsArchived:  p.IsArchived,
		Created:     p.Created,
		Modified:    p.Modified,
	}
}

func toProjectMembership(m ProjectMembership) domain.ProjectMembership {
	return domain.ProjectMembership{
		ProjectID: m.ProjectID,
		Username:  m.Username,
		Role:      domain.ProjectRole(m.Role),
		Created:   m.Created,
		Modified:  m.Modified,
	}
}
