// Package notify emails school staff when a group's timetable changes.
package notify

import (
	"context"
	"errors"
	"fmt"
	"text/template"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/events"
)

// Sender delivers composed messages; *mail.Client satisfies it.
type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

var bodies = map[string]*template.Template{
	events.TimetableGenerated: template.Must(template.New("generated").Parse(
		`A new timetable was generated for group {{.GroupID}}.

Version:  {{.Version}}
Attempts: {{.Attempts}}
{{- if .ActorID}}
Requested by: {{.ActorID}}{{end}}
At: {{.OccurredAt.Format "2006-01-02 15:04 MST"}}
`)),
	events.TimetableUpdated: template.Must(template.New("updated").Parse(
		`The timetable of group {{.GroupID}} was edited by hand.

Version: {{.Version}}
{{- if .ActorID}}
Edited by: {{.ActorID}}{{end}}
At: {{.OccurredAt.Format "2006-01-02 15:04 MST"}}
`)),
}

var subjects = map[string]string{
	events.TimetableGenerated: "Timetable generated for group %s",
	events.TimetableUpdated:   "Timetable updated for group %s",
}

// Mailer turns timetable events into notification emails.
type Mailer struct {
	sender     Sender
	from       string
	recipients []string
	logger     *zap.Logger
}

// NewMailer builds a mailer sending from the given address to recipients.
func NewMailer(sender Sender, from string, recipients []string, logger *zap.Logger) *Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mailer{sender: sender, from: from, recipients: recipients, logger: logger}
}

// NewSMTPClient prepares an implicit-TLS client; no connection is made yet.
func NewSMTPClient(cfg config.MailConfig) (*mail.Client, error) {
	if cfg.SMTPHost == "" {
		return nil, errors.New("smtp host is not configured")
	}
	opts := []mail.Option{
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithSSL(),
		mail.WithPort(cfg.SMTPPort),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
	}
	if cfg.DialTimeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.DialTimeout))
	}
	return mail.NewClient(cfg.SMTPHost, opts...)
}

// Compose renders the message for an event. Unknown event types yield
// events.ErrDropEvent.
func (m *Mailer) Compose(event events.TimetableEvent) (*mail.Msg, error) {
	body, ok := bodies[event.Type]
	if !ok {
		return nil, fmt.Errorf("%w: no template for %q", events.ErrDropEvent, event.Type)
	}

	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return nil, fmt.Errorf("%w: sender %q: %v", events.ErrDropEvent, m.from, err)
	}
	if err := msg.To(m.recipients...); err != nil {
		return nil, fmt.Errorf("%w: recipients: %v", events.ErrDropEvent, err)
	}
	msg.Subject(fmt.Sprintf(subjects[event.Type], event.GroupID))
	if err := msg.SetBodyTextTemplate(body, event); err != nil {
		return nil, fmt.Errorf("render %s body: %w", event.Type, err)
	}
	return msg, nil
}

// Notify sends the email for one event. It has the events.EventHandler shape.
func (m *Mailer) Notify(ctx context.Context, event events.TimetableEvent) error {
	if len(m.recipients) == 0 {
		m.logger.Debug("no recipients configured, skipping notification", zap.String("type", event.Type))
		return nil
	}
	msg, err := m.Compose(event)
	if err != nil {
		return err
	}
	if err := m.sender.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send %s notification: %w", event.Type, err)
	}
	m.logger.Info("timetable notification sent",
		zap.String("type", event.Type),
		zap.String("group_id", event.GroupID),
		zap.Int("recipients", len(m.recipients)))
	return nil
}
