package email

import (
	"time"

	mail "github.com/xhit/go-simple-mail/v2"
)

type SmtpEmailService struct {
	Host       string
	Port       int
	Encryption mail.Encryption
	Username   string
	Password   string
}

func (s *SmtpEmailService) connect() (*mail.SMTPClient, error) {
	smtp := mail.NewSMTPClient()
	smtp.Host = s.Host
	smtp.Port = s.Port
	smtp.Username = s.Username
	smtp.Password = s.Password
	smtp.Encryption = s.Encryption
	smtp.KeepAlive = false
	// Timeout for connect to SMTP Server
	smtp.ConnectTimeout = 10 * time.Second
	// Timeout for send the data and wait respond
	smtp.SendTimeout = 10 * time.Second
	return smtp.Connect()
}

func (s *SmtpEmailService) SendEmail(email *mail.Email) error {
	client, err := s.connect()
	if err != nil {
		return err
	}
	defer client.Close()
	return email.Send(client)
}

func (s *SmtpEmailService) SendMultiple(next func() (*mail.Email, error)) error {
	client, err := s.connect()
	if err != nil {
		return err
	}
	defer client.Close()

	var failed []EmailError
	for {
		email, err := next()
		if err == EndOfQueue {
			break
		}
		if err != nil {
			return err
		}
		if err := email.Send(client); err != nil {
			failed = append(failed, EmailError{Recipients: email.GetRecipients(), Err: err})
		}
	}
	if len(failed) > 0 {
		return &BulkEmailError{Errors: failed}
	}
	return nil
}
