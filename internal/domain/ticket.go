package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrTicketNotFound  = errors.New("Ticket not found")
	ErrTicketClosed    = errors.New("Ticket is closed")
	ErrCommentNotFound = errors.New("Comment not found")
)

type TicketPriority int

const (
	PriorityLow    TicketPriority = 1
	PriorityHigh   TicketPriority = 2
	PriorityUrgent TicketPriority = 3
)

func (p TicketPriority) Name() string {
	switch p {
	case PriorityLow:
		return "Low"
	case PriorityHigh:
		return "High"
	case PriorityUrgent:
		return "Urgent"
	}
	return "Unknown"
}

func (p TicketPriority) Valid() bool {
	return p >= PriorityLow && p <= PriorityUrgent
}

// Ticket is the lowest organizational unit: an individual task or bug
// report within a project.
type Ticket struct {
	ID          int64
	ProjectID   int64
	Title       string
	Slug        string
	Description string
	Priority    TicketPriority
	// Submitter is the username of the reporting user. Kept when the
	// account is deleted (empty string).
	Submitter string
	// Developer is the username of the assigned developer, empty when
	// unassigned.
	Developer  string
	IsOpen     bool
	Resolution string
	Created    time.Time
	Modified   time.Time
}

// Close marks the ticket resolved. A resolution text is required.
func (t *Ticket) Close(resolution string) error {
	if !t.IsOpen {
		return ErrTicketClosed
	}
	resolution = strings.TrimSpace(resolution)
	if resolution == "" {
		return fmt.Errorf("resolution is required to close a ticket")
	}
	t.IsOpen = false
	t.Resolution = resolution
	return nil
}

func (t *Ticket) Reopen() {
	t.IsOpen = true
	t.Resolution = ""
}

func NewTicket(projectID int64, title, description string, priority TicketPriority, submitter string) (Ticket, error) {
	title = strings.TrimSpace(title)
	if title == "" || len(title) > 100 {
		return Ticket{}, fmt.Errorf("invalid ticket title: '%s'", title)
	}
	if !priority.Valid() {
		return Ticket{}, fmt.Errorf("invalid ticket priority: %d", priority)
	}
	slug := Slugify(title)
	if slug == "" {
		return Ticket{}, fmt.Errorf("ticket title must contain alphanumeric characters: '%s'", title)
	}
	return Ticket{
		ProjectID:   projectID,
		Title:       title,
		Slug:        slug,
		Description: strings.TrimSpace(description),
		Priority:    priority,
		Submitter:   submitter,
		IsOpen:      true,
	}, nil
}

// Comment posted to an individual ticket.
type Comment struct {
	ID       int64
	TicketID int64
	Author   string
	Text     string
	Created  time.Time
	Modified time.Time
}

func NewComment(ticketID int64, author, text string) (Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Comment{}, fmt.Errorf("comment text is required")
	}
	return Comment{
		TicketID: ticketID,
		Author:   author,
		Text:     text,
	}, nil
}

// Attachment is a file uploaded to a ticket. Content lives in object
// storage under Key; the record keeps the metadata.
type Attachment struct {
	ID          string
	TicketID    int64
	Filename    string
	Key         string
	Size        int64
	ContentType string
	UploadedBy  string
	Created     time.Time
}

var ErrAttachmentNotFound = errors.New("Attachment not found")

type TicketsRepository interface {
	Create(ticket Ticket) (Ticket, error)
	Update(ticket Ticket) error
	Delete(ticketID int64) error
	GetBySlug(projectID int64, slug string) (Ticket, error)
	ListForProject(projectID int64) ([]Ticket, error)
	ListAssigned(username string) ([]Ticket, error)

	Subscribe(ticketID int64, username string) error
	Unsubscribe(ticketID int64, username string) error
	GetSubscribers(ticketID int64) ([]string, error)

	AddAttachment(attachment Attachment) error
	GetAttachment(id string) (Attachment, error)
	ListAttachments(ticketID int64) ([]Attachment, error)
	DeleteAttachment(id string) error

	CreateComment(comment Comment) (Comment, error)
	UpdateComment(comment Comment) error
	DeleteComment(commentID int64) error
	GetComment(commentID int64) (Comment, error)
	// ListComments returns the ticket's comments, newest first.
	ListComments(ticketID int64) ([]Comment, error)
}
