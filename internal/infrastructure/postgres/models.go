package postgres

import (
	"database/sql"
	"time"
)

type User struct {
	Username    string     `db:"username"`
	Email       string     `db:"email"`
	Password    []byte     `db:"password"`
	FirstName   string     `db:"first_name"`
	LastName    string     `db:"last_name"`
	IsSuperuser bool       `db:"is_superuser"`
	IsActive    bool       `db:"is_active"`
	DateJoined  *time.Time `db:"date_joined"`
	LastLogin   *time.Time `db:"last_login"`
}

type Team struct {
	ID          int64     `db:"id"`
	Title       string    `db:"title"`
	Slug        string    `db:"slug"`
	Description string    `db:"description"`
	Created     time.Time `db:"created_at"`
}

type TeamMembership struct {
	TeamID   int64     `db:"team_id"`
	Username string    `db:"username"`
	Role     int       `db:"role"`
	Created  time.Time `db:"created_at"`
	Modified time.Time `db:"updated_at"`
}

type TeamInvitation struct {
	ID        string    `db:"id"`
	TeamID    int64     `db:"team_id"`
	Email     string    `db:"email"`
	InvitedBy string    `db:"invited_by"`
	Accepted  bool      `db:"accepted"`
	Created   time.Time `db:"created_at"`
}

type Project struct {
	ID          int64     `db:"id"`
	TeamID      int64     `db:"team_id"`
	Title       string    `db:"title"`
	Slug        string    `db:"slug"`
	Description string    `db:"description"`
	IsArchived  bool      `db:"is_archived"`
	Created     time.Time `db:"created_at"`
	Modified    time.Time `db:"updated_at"`
}

type ProjectMembership struct {
	ProjectID int64     `db:"project_id"`
	Username  string    `db:"username"`
	Role      int       `db:"role"`
	Created   time.Time `db:"created_at"`
	Modified  time.Time `db:"updated_at"`
}

type Ticket struct {
	ID          int64          `db:"id"`
	ProjectID   int64          `db:"project_id"`
	Title       string         `db:"title"`
	Slug        string         `db:"slug"`
	Description string         `db:"description"`
	Priority    int            `db:"priority"`
	Submitter   sql.NullString `db:"submitter"`
	Developer   sql.NullString `db:"developer"`
	IsOpen      bool           `db:"is_open"`
	Resolution  string         `db:"resolution"`
	Created     time.Time      `db:"created_at"`
	Modified    time.Time      `db:"updated_at"`
}

type Attachment struct {
	ID          string         `db:"id"`
	TicketID    int64          `db:"ticket_id"`
	Filename    string         `db:"filename"`
	Key         string         `db:"key"`
	Size        int64          `db:"size"`
	ContentType string         `db:"content_type"`
	UploadedBy  sql.NullString `db:"uploaded_by"`
	Created     time.Time      `db:"created_at"`
}

type Comment struct {
	ID       int64          `db:"id"`
	TicketID int64          `db:"ticket_id"`
	Author   sql.NullString `db:"author"`
	Text     string         `db:"text"`
	Created  time.Time      `db:"created_at"`
	Modified time.Time      `db:"updated_at"`
}
