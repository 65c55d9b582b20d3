package postgres

import (
	"database/sql"
	"fmt"

	"github.com/bugtrack/bugtrack-server/internal/domain"
	"github.com/jmoiron/sqlx"
)

type TicketsRepository struct {
	db *sqlx.DB
}

func NewTicketsRepository(db *sqlx.DB) *TicketsRepository {
	return &TicketsRepository{db}
}

func (r *TicketsRepository) Create(ticket domain.Ticket) (domain.Ticket, error) {
	baseSlug := ticket.Slug
	// slug is unique within a project; duplicate titles get a numeric suffix
	for attempt := 1; ; attempt++ {
		row := r.db.QueryRow(
			`INSERT INTO ticket (project_id, title, slug, description, priority, submitter, developer, is_open, resolution)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id, created_at, updated_at`,
			ticket.ProjectID, ticket.Title, ticket.Slug, ticket.Description, ticket.Priority,
			nullable(ticket.Submitter), nullable(ticket.Developer), ticket.IsOpen, ticket.Resolution,
		)
		err := row.Scan(&ticket.ID, &ticket.Created, &ticket.Modified)
		if err == nil {
			return ticket, nil
		}
		if !isUniqueViolation(err) || attempt >= 100 {
			return domain.Ticket{}, err
		}
		ticket.Slug = fmt.Sprintf("%s-%d", baseSlug, attempt+1)
	}
}

func (r *TicketsRepository) Update(ticket domain.Ticket) error {
	_, err := r.db.Exec(
		`UPDATE ticket
		SET description=$1, priority=$2, developer=$3, is_open=$4, resolution=$5, updated_at=now()
		WHERE id=$6`,
		ticket.Description, ticket.Priority, nullable(ticket.Developer),
		ticket.IsOpen, ticket.Resolution, ticket.ID,
	)
	return err
}

func (r *TicketsRepository) Delete(ticketID int64) error {
	_, err := r.db.Exec(`DELETE FROM ticket WHERE id=$1`, ticketID)
	return err
}

func (r *TicketsRepository) GetBySlug(projectID int64, slug string) (domain.Ticket, error) {
	var ticket Ticket
	err := r.db.Get(&ticket, `SELECT * FROM ticket WHERE project_id=$1 AND slug=$2`, projectID, slug)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Ticket{}, domain.ErrTicketNotFound
		}
		return domain.Ticket{}, err
	}
	return toTicket(ticket), nil
}

func (r *TicketsRepository) ListForProject(projectID int64) ([]domain.Ticket, error) {
	return r.list(`SELECT * FROM ticket WHERE project_id=$1 ORDER BY created_at DESC`, projectID)
}

func (r *TicketsRepository) ListAssigned(username string) ([]domain.Ticket, error) {
	return r.list(`SELECT * FROM ticket WHERE developer=$1 AND is_open=true ORDER BY priority DESC, created_at DESC`, username)
}

func (r *TicketsRepository) list(q string, args ...interface{}) ([]domain.Ticket, error) {
	var tickets []Ticket
	err := r.db.Select(&tickets, q, args...)
	if err != nil {
		return nil, err
	}
	result := make([]domain.Ticket, len(tickets))
	for i, t := range tickets {
		result[i] = toTicket(t)
	}
	return result, nil
}

func (r *TicketsRepository) Subscribe(ticketID int64, username string) error {
	_, err := r.db.Exec(
		`INSERT INTO ticket_subscription (ticket_id, username) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`,
		ticketID, username)
	return err
}

func (r *TicketsRepository) Unsubscribe(ticketID int64, username string) error {
	_, err := r.db.Exec(
		`DELETE FROM ticket_subscription WHERE ticket_id=$1 AND username=$2`,
		ticketID, username)
	return err
}

func (r *TicketsRepository) GetSubscribers(ticketID int64) ([]string, error) {
	var usernames []string
	err := r.db.Select(&usernames,
		`SELECT username FROM ticket_subscription WHERE ticket_id=$1`, ticketID)
	return usernames, err
}

func (r *TicketsRepository) AddAttachment(attachment domain.Attachment) error {
	_, err := r.db.Exec(
		`INSERT INTO ticket_attachment (id, ticket_id, filename, key, size, content_type, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		attachment.ID, attachment.TicketID, attachment.Filename, attachment.Key,
		attachment.Size, attachment.ContentType, nullable(attachment.UploadedBy))
	return err
}

func (r *TicketsRepository) GetAttachment(id string) (domain.Attachment, error) {
	var attachment Attachment
	err := r.db.Get(&attachment, `SELECT * FROM ticket_attachment WHERE id=$1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Attachment{}, domain.ErrAttachmentNotFound
		}
		return domain.Attachment{}, err
	}
	return toAttachment(attachment), nil
}

func (r *TicketsRepository) ListAttachments(ticketID int64) ([]domain.Attachment, error) {
	var attachments []Attachment
	err := r.db.Select(&attachments,
		`SELECT * FROM ticket_attachment WHERE ticket_id=$1 ORDER BY created_at`, ticketID)
	if err != nil {
		return nil, err
	}
	result := make([]domain.Attachment, len(attachments))
	for i, a := range attachments {
		result[i] = toAttachment(a)
	}
	return result, nil
}

func (r *TicketsRepository) DeleteAttachment(id string) error {
	_, err := r.db.Exec(`DELETE FROM ticket_attachment WHERE id=$1`, id)
	return err
}

func (r *TicketsRepository) CreateComment(comment domain.Comment) (domain.Comment, error) {
	row := r.db.QueryRow(
		`INSERT INTO comment (ticket_id, author, text) VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`,
		comment.TicketID, nullable(comment.Author), comment.Text,
	)
	if err := row.Scan(&comment.ID, &comment.Created, &comment.Modified); err != nil {
		return domain.Comment{}, err
	}
	return comment, nil
}

func (r *TicketsRepository) UpdateComment(comment domain.Comment) error {
	_, err := r.db.Exec(
		`UPDATE comment SET text=$1, updated_at=now() WHERE id=$2`,
		comment.Text, comment.ID)
	return err
}

func (r *TicketsRepository) DeleteComment(commentID int64) error {
	_, err := r.db.Exec(`DELETE FROM comment WHERE id=$1`, commentID)
	return err
}

func (r *TicketsRepository) GetComment(commentID int64) (domain.Comment, error) {
	var comment Comment
	err := r.db.Get(&comment, `SELECT * FROM comment WHERE id=$1`, commentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Comment{}, domain.ErrCommentNotFound
		}
		return domain.Comment{}, err
	}
	return toComment(comment), nil
}

func (r *TicketsRepository) ListComments(ticketID int64) ([]domain.Comment, error) {
	var comments []Comment
	err := r.db.Select(&comments,
		`SELECT * FROM comment WHERE ticket_id=$1 ORDER BY created_at DESC`, ticketID)
	if err != nil {
		return nil, err
	}
	result := make([]domain.Comment, len(comments))
	for i, c := range comments {
		result[i] = toComment(c)
	}
	return result, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func toTicket(t Ticket) domain.Ticket {
	return domain.Ticket{
		ID:          t.ID,
		ProjectID:   t.ProjectID,
		Title:       t.Title,
		Slug:        t.Slug,
		Description: t.Description,
		Priority:    domain.TicketPriority(t.Priority),
		Submitter:   t.Submitter.String,
		Developer:   t.Developer.String,
		IsOpen:      t.IsOpen,
		Resolution:  t.Resolution,
		Created:     t.Created,
		Modified:    t.Modified,
	}
}

func toAttachment(a Attachment) domain.Attachment {
	return domain.Attachment{
		ID:          a.ID,
		TicketID:    a.TicketID,
		Filename:    a.Filename,
		Key:         a.Key,
		Size:        a.Size,
		ContentType: a.ContentType,
		UploadedBy:  a.UploadedBy.String,
		Created:     a.Created,
	}
}

func toComment(c Comment) domain.Comment {
	return domain.Comment{
		ID:       c.ID,
		TicketID: c.TicketID,
		Author:   c.Author.String,
		Text:     c.Text,
		Created:  c.Created,
		Modified: c.Modified,
	}
}
