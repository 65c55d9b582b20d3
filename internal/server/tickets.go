package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/bugtrack/bugtrack-server/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type TicketData struct {
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	Priority    int       `json:"priority"`
	Submitter   string    `json:"submitter"`
	Developer   string    `json:"developer,omitempty"`
	IsOpen      bool      `json:"is_open"`
	Resolution  string    `json:"resolution,omitempty"`
	Created     time.Time `json:"created"`
	Modified    time.Time `json:"modified"`
}

type CommentData struct {
	ID       int64     `json:"id"`
	Author   string    `json:"author"`
	Text     string    `json:"text"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
}

type AttachmentData struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	UploadedBy  string    `json:"uploaded_by"`
	Created     time.Time `json:"created"`
}

func toTicketData(t domain.Ticket) TicketData {
	return TicketData{
		Title:       t.Title,
		Slug:        t.Slug,
		Description: t.Description,
		Priority:    int(t.Priority),
		Submitter:   t.Submitter,
		Developer:   t.Developer,
		IsOpen:      t.IsOpen,
		Resolution:  t.Resolution,
		Created:     t.Created,
		Modified:    t.Modified,
	}
}

func toCommentData(c domain.Comment) CommentData {
	return CommentData{
		ID:       c.ID,
		Author:   c.Author,
		Text:     c.Text,
		Created:  c.Created,
		Modified: c.Modified,
	}
}

func toAttachmentData(a domain.Attachment) AttachmentData {
	return AttachmentData{
		ID:          a.ID,
		Filename:    a.Filename,
		Size:        a.Size,
		ContentType: a.ContentType,
		UploadedBy:  a.UploadedBy,
		Created:     a.Created,
	}
}

func (s *Server) handleGetTickets(c echo.Context) error {
	user, err := s.auth.GetUser(c)
	if err != nil {
		return err
	}
	tickets, err := s.tracker.ListTickets(user.Username, c.Param("team"), c.Param("project"))
	if err != nil {
		return trackerHTTPError(err)
	}
	data := []TicketData{}
	for _, t := range tickets {
		data = append(data, toTicketData(t))
	}
	return c.JSON(http.StatusOK, data)
}

func (s *Server) handleGetAssignedTickets(c echo.Context) error {
	user, err := s.auth.GetUser(c)
	if err != nil {
		return err
	}
	tickets, err := s.tracker.ListAssignedTickets(user.Username)
	if err != nil {
		return trackerHTTPError(err)
	}
	data := []TicketData{}
	for _, t := range tickets {
		data = append(data, toTicketData(t))
	}
	return c.JSON(http.StatusOK, data)
}

func (s *Server) handleCreateTicket() func(echo.Context) error {
	type TicketForm struct {
		Title       string `json:"title" form:"title" validate:"required"`
		Description string `json:"description" form:"description"`
		Priority    int    `json:"priority" form:"priority" validate:"required"`
	}
	var validate = validator.New()
	return func(c echo.Context) error {
		form := new(TicketForm)
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
		ticket, err := s.tracker.CreateTicket(user.Username, c.Param("team"), c.Param("project"), form.Title, form.Description, domain.TicketPriority(form.Priority))
		if err != nil {
			return trackerHTTPError(err)
		}
		return c.JSON(http.StatusCreated, toTicketData(ticket))
	}
}

func (s *Server) handleGetTicket(c echo.Context) error {
	user, err := s.auth.GetUser(c)
	if err != nil {
		return err
	}
	ticket, err := s.tracker.GetTicket(user.Username, c.Param("team"), c.Param("project"), c.Param("ticket"))
	if err != nil {
		return trackerHTTPError(err)
	}
	return c.JSON(http.StatusOK, toTicketData(ticket))
}

func (s *Server) handleUpdateTicket() func(echo.Context) error {
	type TicketForm struct {
		Description string `json:"description" form:"description"`
		Priority    int    `json:"priority" form:"priority" validate:"required"`
	}
	var validate = validator.New()
	return func(c echo.Context) error {
		form := new(TicketForm)
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
		ticket, err := s.tracker.UpdateTicket(user.Username, c.Param("team"), c.Param("project"), c.Param("ticket"), form.Description, domain.TicketPriority(form.Priority))
		if err != nil {
			return trackerHTTPError(err)
		}
		return c.JSON(http.StatusOK, toTicketData(ticket))
	}
}

func (s *Server) handleAssignTicket() func(echo.Context) error {
	type AssignForm struct {
		Developer string `json:"developer" form:"developer"`
	}
	return func(c echo.Context) error {
		form := new(AssignForm)
		if err := c.Bind(form); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		user, err := s.auth.GetUser(c)
		if err != nil {
			return err
		}
		ticket, err := s.tracker.AssignTicket(user.Username, c.Param("team"), c.Param("project"), c.Param("ticket"), form.Developer)
		if err != nil {
			return trackerHTTPError(err)
		}
		return c.JSON(http.StatusOK, toTicketData(ticket))
	}
}

func (s *Server) handleCloseTicket() func(echo.Context) error {
	type CloseForm struct {
		Resolution string `json:"resolution" form:"resolution" validate:"required"`
	}
	var validate = validator.New()
	return func(c echo.Context) error {
		form := new(CloseForm)
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
		ticket, err := s.tracker.CloseTicket(user.Username, c.Param("team"), c.Param("project"), c.Param("ticket"), form.Resolution)
		if err != nil {
			return trackerHTTPError(err)
		}
		return c.JSON(http.StatusOK, toTicketData(ticket))
	}
}

func (s *Server) handleReopenTicket(c echo.Context) error {
	user, err := s.auth.GetUser(c)
	if err != nil {
		return err
	}
	ticket, err := s.tracker.ReopenTicket(user.Username, c.Param("team"), c.Param("project"), c.Param("ticket"))
	if err != nil {
		return trackerHTTPError(err)
	}
	return c.JSON(http.StatusOK, toTicketData(ticket))
}

func (s *Server) handleDeleteTicket(c echo.Context) error {
	user, err := s.auth.GetUser(c)
	if err != nil {
		return err
	}
	if err := s.tracker.DeleteTicket(user.Username, c.Param("team"), c.Param("project"), c.Param("ticket")); err != nil {
		return trackerHTTPError(err)
	}
	return c.NoContent(http.StatusOK)
}

func (s *Server) handleSubscribeTicket(c echo.Context) error {
	user, err := s.auth.GetUser(c)
	if err != nil {
		return err
	}
	if err := s.tracker.SubscribeTicket(user.Username, c.Param("team"), c.Param("project"), c.Param("ticket")); err != nil {
		return trackerHTTPError(err)
	}
	return c.NoContent(http.StatusOK)
}

func (s *Server) handleUnsubscribeTicket(c echo.Context) error {
	user, err := s.auth.GetUser(c)
	if err != nil {
		return err
	}
	if err := s.tracker.UnsubscribeTicket(user.Username, c.Param("team"), c.Param("project"), c.Param("ticket")); err != nil {
		return trackerHTTPError(err)
	}
	return c.NoContent(http.StatusOK)
}

// COMMENTS

func (s *Server) handleGetComments(c echo.Context) error {
	user, err := s.auth.GetUser(c)
	if err != nil {
		return err
	}
	comments, err := s.tracker.ListComments(user.Username, c.Param("team"), c.Param("project"), c.Param("ticket"))
	if err != nil {
		return trackerHTTPError(err)
	}
	data := []CommentData{}
	for _, comment := range comments {
		data = append(data, toCommentData(comment))
	}
	return c.JSON(http.StatusOK, data)
}

func (s *Server) handleCreateComment() func(echo.Context) error {
	type CommentForm struct {
		Text string `json:"text" form:"text" validate:"required"`
	}
	var validate = validator.New()
	return func(c echo.Context) error {
		form := new(CommentForm)
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
		comment, err := s.tracker.AddComment(user.Username, c.Param("team"), c.Param("project"), c.Param("ticket"), form.Text)
		if err != nil {
			return trackerHTTPError(err)
		}
		return c.JSON(http.StatusCreated, toCommentData(comment))
	}
}

func commentID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("comment"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid comment id")
	}
	return id, nil
}

func (s *Server) handleUpdateComment() func(echo.Context) error {
	type CommentForm struct {
		Text string `json:"text" form:"text" validate:"required"`
	}
	var validate = validator.New()
	return func(c echo.Context) error {
		form := new(CommentForm)
		if err := c.Bind(form); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(form); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		id, err := commentID(c)
		if err != nil {
			return err
		}
		user, err := s.auth.GetUser(c)
		if err != nil {
			return err
		}
		comment, err := s.tracker.UpdateComment(user.Username, c.Param("team"), c.Param("project"), c.Param("ticket"), id, form.Text)
		if err != nil {
			return trackerHTTPError(err)
		}
		return c.JSON(http.StatusOK, toCommentData(comment))
	}
}

func (s *Server) handleDeleteComment(c echo.Context) error {
	id, err := commentID(c)
	if err != nil {
		return err
	}
	user, err := s.auth.GetUser(c)
	if err != nil {
		return err
	}
	if err := s.tracker.DeleteComment(user.Username, c.Param("team"), c.Param("project"), c.Param("ticket"), id); err != nil {
		return trackerHTTPError(err)
	}
	return c.NoContent(http.StatusOK)
}

// ATTACHMENTS

func (s *Server) handleGetAttachments(c echo.Context) error {
	user, err := s.auth.GetUser(c)
	if err != nil {
		return err
	}
	attachments, err := s.tracker.ListAttachments(user.Username, c.Param("team"), c.Param("project"), c.Param("ticket"))
	if err != nil {
		return trackerHTTPError(err)
	}
	data := []AttachmentData{}
	for _, a := range attachments {
		data = append(data, toAttachmentData(a))
	}
	return c.JSON(http.StatusOK, data)
}

func (s *Server) handleUploadAttachment(c echo.Context) error {
	if s.storage == nil {
		return echo.NewHTTPError(http.StatusPreconditionFailed, "File storage not configured")
	}
	user, err := s.auth.GetUser(c)
	if err != nil {
		return err
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing 'file' upload")
	}
	if s.Config.MaxAttachmentSize > 0 && fh.Size > s.Config.MaxAttachmentSize {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "Attachment is too big")
	}
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	id, err := uuid.NewV4()
	if err != nil {
		return err
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := fmt.Sprintf("attachments/%s/%s", id.String(), fh.Filename)
	info, err := s.storage.Save(c.Request().Context(), key, f, fh.Size, contentType)
	if err != nil {
		return fmt.Errorf("saving attachment: %w", err)
	}
	attachment := domain.Attachment{
		ID:          id.String(),
		Filename:    fh.Filename,
		Key:         info.Key,
		Size:        info.Size,
		ContentType: info.ContentType,
	}
	attachment, err = s.tracker.AddAttachment(user.Username, c.Param("team"), c.Param("project"), c.Param("ticket"), attachment)
	if err != nil {
		if derr := s.storage.Delete(c.Request().Context(), key); derr != nil {
			s.log.Errorw("removing orphaned attachment", "key", key, zap.Error(derr))
		}
		return trackerHTTPError(err)
	}
	return c.JSON(http.StatusCreated, toAttachmentData(attachment))
}

func (s *Server) handleDownloadAttachment(c echo.Context) error {
	if s.storage == nil {
		return echo.ErrNotFound
	}
	user, err := s.auth.GetUser(c)
	if err != nil {
		return err
	}
	attachment, err := s.tracker.GetAttachment(user.Username, c.Param("team"), c.Param("project"), c.Param("ticket"), c.Param("attachment"))
	if err != nil {
		return trackerHTTPError(err)
	}
	obj, info, err := s.storage.Open(c.Request().Context(), attachment.Key)
	if err != nil {
		return fmt.Errorf("opening attachment [%s]: %w", attachment.Key, err)
	}
	defer obj.Close()
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, attachment.Filename))
	return c.Stream(http.StatusOK, info.ContentType, obj)
}

func (s *Server) handleDeleteAttachment(c echo.Context) error {
	user, err := s.auth.GetUser(c)
	if err != nil {
		return err
	}
	attachment, err := s.tracker.DeleteAttachment(user.Username, c.Param("team"), c.Param("project"), c.Param("ticket"), c.Param("attachment"))
	if err != nil {
		return trackerHTTPError(err)
	}
	if s.storage != nil {
		if err := s.storage.Delete(c.Request().Context(), attachment.Key); err != nil {
			s.log.Errorw("removing attachment file", "key", attachment.Key, zap.Error(err))
		}
	}
	return c.NoContent(http.StatusOK)
}
