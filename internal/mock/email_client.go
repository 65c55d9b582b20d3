package mock

import (
	"errors"
	"log"

	"github.com/bugtrack/bugtrack-server/internal/infrastructure/email"
	mail "github.com/xhit/go-simple-mail/v2"
)

type dummyService struct{}

func (s *dummyService) SendEmail(e *mail.Email) error {
	e.Encoding = mail.EncodingNone
	log.Println(e.GetMessage())
	return nil
}

func (s *dummyService) SendMultiple(next func() (*mail.Email, error)) error {
	for {
		e, err := next()
		if err != nil {
			if errors.Is(err, email.EndOfQueue) {
				return nil
			}
			return err
		}
		if err := s.SendEmail(e); err != nil {
			return err
		}
	}
}

func NewDummyEmailService() *dummyService {
	return &dummyService{}
}
