package email

import (
	"bytes"
	"fmt"
	"net/url"

	"github.com/bugtrack/bugtrack-server/internal/domain"
	mail "github.com/xhit/go-simple-mail/v2"
)

// TrackerEmailSender delivers ticket activity notifications to
// project and ticket subscribers.
type TrackerEmailSender struct {
	client            EmailService
	sender            string
	siteURL           string
	invitationSubject string
	templates         map[string]EmailTemplate
}

func NewTrackerEmailSender(client EmailService, templatesRoot, sender, siteURL, invitationSubject string) *TrackerEmailSender {
	templates := make(map[string]EmailTemplate, 2)
	templates["ticket_notification_email"] = parseEmailTemplate(templatesRoot, "ticket_notification_email")
	templates["team_invitation_email"] = parseEmailTemplate(templatesRoot, "team_invitation_email")
	return &TrackerEmailSender{
		client:            client,
		sender:            sender,
		siteURL:           siteURL,
		invitationSubject: invitationSubject,
		templates:         templates,
	}
}

func (s *TrackerEmailSender) SendTeamInvitationEmail(to string, team domain.Team, invitedBy, invitationID, token string) error {
	link, _ := url.Parse(s.siteURL)
	link.Path = "/teams/join"
	params := link.Query()
	params.Set("invitation", invitationID)
	params.Set("token", token)
	link.RawQuery = params.Encode()
	data := map[string]interface{}{
		"Team":      &team,
		"InvitedBy": invitedBy,
		"SiteURL":   s.siteURL,
		"JoinLink":  link.String(),
	}
	email, err := composeWith(s.templates["team_invitation_email"], s.sender, to, s.invitationSubject, data)
	if err != nil {
		return err
	}
	return s.client.SendEmail(email)
}

func (s *TrackerEmailSender) SendTicketNotification(event domain.TicketEvent, recipients []string) error {
	if len(recipients) == 0 {
		return nil
	}
	ticketURL, _ := url.Parse(s.siteURL)
	ticketURL.Path = fmt.Sprintf("/teams/%s/projects/%s/tickets/%s", event.Team, event.Project, event.Ticket)

	data := map[string]interface{}{
		"Event":     event,
		"SiteURL":   s.siteURL,
		"TicketURL": ticketURL.String(),
	}
	template := s.templates["ticket_notification_email"]
	subject := fmt.Sprintf("[%s] %s: %s", event.Project, event.Action, event.Title)

	index := 0
	next := func() (*mail.Email, error) {
		if index >= len(recipients) {
			return nil, EndOfQueue
		}
		to := recipients[index]
		index++

		email, err := composeWith(template, s.sender, to, subject, data)
		if err != nil {
			return nil, err
		}
		return email, nil
	}
	return s.client.SendMultiple(next)
}

func composeWith(template EmailTemplate, sender, to, subject string, data map[string]interface{}) (*mail.Email, error) {
	var htmlMsg, textMsg bytes.Buffer
	if err := template.HTML.ExecuteTemplate(&htmlMsg, "email", data); err != nil {
		return nil, err
	}
	if err := template.Text.ExecuteTemplate(&textMsg, "email", data); err != nil {
		return nil, err
	}
	email := mail.NewMSG()
	email.SetFrom(sender)
	email.AddTo(to)
	email.SetSubject(subject)
	email.SetBody(mail.TextPlain, textMsg.String())
	email.AddAlternative(mail.TextHTML, htmlMsg.String())
	if email.Error != nil {
		return nil, email.Error
	}
	return email, nil
}
