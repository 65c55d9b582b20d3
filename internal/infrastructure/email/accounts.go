package email

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"net/url"
	"path/filepath"
	texttemplate "text/template"

	"github.com/bugtrack/bugtrack-server/internal/domain"
	mail "github.com/xhit/go-simple-mail/v2"
)

type AccountsEmailSender struct {
	client               EmailService
	sender               string
	siteURL              string
	activationSubject    string
	passwordResetSubject string
	templates            map[string]EmailTemplate
}

type EmailTemplate struct {
	HTML *htmltemplate.Template
	Text *texttemplate.Template
}

func parseEmailTemplate(root, name string) EmailTemplate {
	funcs := map[string]any{
		"query_escape": url.QueryEscape,
	}
	htmlFuncs := htmltemplate.FuncMap(funcs)
	textFuncs := texttemplate.FuncMap(funcs)
	html := htmltemplate.Must(htmltemplate.New("email").Funcs(htmlFuncs).ParseFiles(
		filepath.Join(root, "email_base.html"),
		filepath.Join(root, fmt.Sprintf("%s.html", name)),
	))
	text := texttemplate.Must(texttemplate.New("email").Funcs(textFuncs).ParseFiles(
		filepath.Join(root, "email_base.txt"),
		filepath.Join(root, fmt.Sprintf("%s.txt", name)),
	))
	return EmailTemplate{HTML: html, Text: text}
}

func NewAccountsEmailSender(client EmailService, templatesRoot, sender, siteURL, activationSubject, passwordResetSubject string) *AccountsEmailSender {
	templates := make(map[string]EmailTemplate, 3)
	templates["activation_email"] = parseEmailTemplate(templatesRoot, "activation_email")
	templates["invitation_email"] = parseEmailTemplate(templatesRoot, "invitation_email")
	templates["password_reset_email"] = parseEmailTemplate(templatesRoot, "reset_password_email")
	return &AccountsEmailSender{
		client:               client,
		sender:               sender,
		siteURL:              siteURL,
		activationSubject:    activationSubject,
		passwordResetSubject: passwordResetSubject,
		templates:            templates,
	}
}

func (s *AccountsEmailSender) compose(template string, to, subject string, data map[string]interface{}) (*mail.Email, error) {
	var htmlMsg, textMsg bytes.Buffer
	if err := s.templates[template].HTML.ExecuteTemplate(&htmlMsg, "email", data); err != nil {
		return nil, err
	}
	if err := s.templates[template].Text.ExecuteTemplate(&textMsg, "email", data); err != nil {
		return nil, err
	}
	email := mail.NewMSG()
	email.SetFrom(s.sender)
	email.AddTo(to)
	email.SetSubject(subject)
	email.SetBody(mail.TextPlain, textMsg.String())
	email.AddAlternative(mail.TextHTML, htmlMsg.String())
	if email.Error != nil {
		return nil, email.Error
	}
	return email, nil
}

func (s *AccountsEmailSender) linkURL(path, uid, token string) string {
	link, _ := url.Parse(s.siteURL)
	link.Path = path
	params := link.Query()
	params.Set("uid", uid)
	params.Set("token", token)
	link.RawQuery = params.Encode()
	return link.String()
}

func (s *AccountsEmailSender) SendActivationEmail(account domain.Account, uid, token string, data map[string]interface{}) error {
	if data == nil {
		data = map[string]interface{}{}
	}
	data["User"] = &account
	data["SiteURL"] = s.siteURL
	data["ActivationLink"] = s.linkURL("/accounts/activate", uid, token)
	data["uid"] = uid
	data["token"] = token
	template := "activation_email"
	if len(account.Password) == 0 {
		template = "invitation_email"
	}
	email, err := s.compose(template, account.Email, s.activationSubject, data)
	if err != nil {
		return err
	}
	return s.client.SendEmail(email)
}

func (s *AccountsEmailSender) SendPasswordResetEmail(account domain.Account, uid, token string) error {
	data := map[string]interface{}{
		"User":            &account,
		"SiteURL":         s.siteURL,
		"SetPasswordLink": s.linkURL("/accounts/new-password", uid, token),
	}
	email, err := s.compose("password_reset_email", account.Email, s.passwordResetSubject, data)
	if err != nil {
		return err
	}
	return s.client.SendEmail(email)
}

func (s *AccountsEmailSender) SendBulkEmail(accounts []domain.Account, subject string, htmlTemplate *htmltemplate.Template, textTemplate *texttemplate.Template, data map[string]interface{}) error {
	index := 0
	next := func() (*mail.Email, error) {
		if index >= len(accounts) {
			return nil, EndOfQueue
		}
		account := accounts[index]
		index++
		if data == nil {
			data = map[string]interface{}{}
		}
		data["User"] = &account
		data["SiteURL"] = s.siteURL

		var htmlMsg, textMsg bytes.Buffer
		if err := htmlTemplate.Execute(&htmlMsg, data); err != nil {
			return nil, err
		}
		if err := textTemplate.Execute(&textMsg, data); err != nil {
			return nil, err
		}
		email := mail.NewMSG()
		email.SetFrom(s.sender)
		email.AddTo(account.Email)
		email.SetSubject(subject)
		email.SetBody(mail.TextPlain, textMsg.String())
		email.AddAlternative(mail.TextHTML, htmlMsg.String())
		if email.Error != nil {
			return nil, email.Error
		}
		return email, nil
	}
	return s.client.SendMultiple(next)
}
