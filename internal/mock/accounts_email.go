package mock

import (
	htmltemplate "html/template"
	"sync"
	texttemplate "text/template"

	"github.com/bugtrack/bugtrack-server/internal/domain"
)

// EmailService records sent account emails for inspection in tests.
type EmailService struct {
	ActivationEmails    []SentEmail
	PasswordResetEmails []SentEmail
	BulkEmails          [][]domain.Account
}

type SentEmail struct {
	Account domain.Account
	UID     string
	Token   string
}

func (s *EmailService) SendActivationEmail(account domain.Account, uid, token string, data map[string]interface{}) error {
	s.ActivationEmails = append(s.ActivationEmails, SentEmail{Account: account, UID: uid, Token: token})
	return nil
}

func (s *EmailService) SendPasswordResetEmail(account domain.Account, uid, token string) error {
	s.PasswordResetEmails = append(s.PasswordResetEmails, SentEmail{Account: account, UID: uid, Token: token})
	return nil
}

func (s *EmailService) SendBulkEmail(accounts []domain.Account, subject string, htmlTemplate *htmltemplate.Template, textTemplate *texttemplate.Template, data map[string]interface{}) error {
	s.BulkEmails = append(s.BulkEmails, accounts)
	return nil
}

// TrackerEmailService records ticket notifications and team invitations.
// Safe for concurrent use, notifications are delivered from background
// goroutines.
type TrackerEmailService struct {
	mu            sync.Mutex
	notifications []SentNotification
	Invitations   []SentInvitation
}

type SentNotification struct {
	Event      domain.TicketEvent
	Recipients []string
}

type SentInvitation struct {
	To           string
	Team         domain.Team
	InvitedBy    string
	InvitationID string
	Token        string
}

func (s *TrackerEmailService) SendTicketNotification(event domain.TicketEvent, recipients []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, SentNotification{Event: event, Recipients: recipients})
	return nil
}

func (s *TrackerEmailService) Notifications() []SentNotification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SentNotification(nil), s.notifications...)
}

func (s *TrackerEmailService) SendTeamInvitationEmail(to string, team domain.Team, invitedBy, invitationID, token string) error {
	s.Invitations = append(s.Invitations, SentInvitation{To: to, Team: team, InvitedBy: invitedBy, InvitationID: invitationID, Token: token})
	return nil
}
