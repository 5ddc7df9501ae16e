package mailer

import (
	"bytes"
	"embed"
	"fmt"
	"net/smtp"
	"text/template"

	"github.com/rs/zerolog/log"
)

var (
	logger = log.With().Str("component", "mailer").Logger()
)

//go:embed templates/*.tmpl
var templateFiles embed.FS

var templates = template.Must(template.ParseFS(templateFiles, "templates/*.tmpl"))

var subjects = map[Kind]string{
	KindInvitationSent:     "You are invited to register your organization",
	KindApproved:           "Your organization request has been approved",
	KindRejected:           "Your organization request has been rejected",
	KindCorrections:        "Your organization request needs corrections",
	KindExpirationReminder: "Your organization invitation is about to expire",
}

type Config struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	AppName  string `yaml:"app_name"`
}

func (c *Config) applyDefaults() {
	if c.Port == "" {
		c.Port = "587"
	}
	if c.From == "" {
		c.From = c.Username
	}
	if c.AppName == "" {
		c.AppName = "orgreq"
	}
}

// SMTPSender delivers over plain SMTP. An unconfigured host makes every
// Send a logged no-op returning false, which keeps dev setups working
// while the notification rows still record the attempt.
type SMTPSender struct {
	conf Config
}

func NewSMTPSender(conf Config) *SMTPSender {
	conf.applyDefaults()
	if conf.Host == "" {
		logger.Warn().Msg("SMTP host not configured, outbound email is disabled")
	}
	return &SMTPSender{conf: conf}
}

func (s *SMTPSender) Send(kind Kind, recipient string, data Data) bool {
	subject, ok := subjects[kind]
	if !ok {
		logger.Error().Str("kind", string(kind)).Msg("unknown mail kind")
		return false
	}

	if s.conf.Host == "" {
		logger.Warn().
			Str("kind", string(kind)).
			Str("recipient", recipient).
			Msg("SMTP not configured, skipping send")
		return false
	}

	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, string(kind)+".tmpl", data); err != nil {
		logger.Error().Err(err).Str("kind", string(kind)).Msg("failed to render mail template")
		return false
	}

	msg := fmt.Sprintf("From: %s <%s>\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n%s",
		s.conf.AppName, s.conf.From, recipient, subject, body.String())

	var auth smtp.Auth
	if s.conf.Username != "" {
		auth = smtp.PlainAuth("", s.conf.Username, s.conf.Password, s.conf.Host)
	}

	addr := s.conf.Host + ":" + s.conf.Port
	if err := smtp.SendMail(addr, auth, s.conf.From, []string{recipient}, []byte(msg)); err != nil {
		logger.Error().Err(err).
			Str("kind", string(kind)).
			Str("recipient", recipient).
			Msg("failed to send mail")
		return false
	}

	logger.Info().
		Str("kind", string(kind)).
		Str("recipient", recipient).
		Msg("mail accepted by transport")
	return true
}
