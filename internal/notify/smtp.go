package notify

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"

	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/config"
	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/model"
)

// SMTPDeliverer sends email jobs directly over SMTP.
type SMTPDeliverer struct {
	cfg     config.SMTPConfig
	company string
}

func NewSMTPDeliverer(cfg config.SMTPConfig, company string) *SMTPDeliverer {
	return &SMTPDeliverer{cfg: cfg, company: company}
}

func (d *SMTPDeliverer) Deliver(ctx context.Context, msg model.EmailMessage) error {
	m, err := d.buildMessage(msg)
	if err != nil {
		return err
	}

	opts := []mail.Option{mail.WithPort(d.cfg.Port), mail.WithTLSPolicy(mail.TLSOpportunistic)}
	if d.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(d.cfg.Username),
			mail.WithPassword(d.cfg.Password),
		)
	}
	client, err := mail.NewClient(d.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}

func (d *SMTPDeliverer) buildMessage(msg model.EmailMessage) (*mail.Msg, error) {
	subject, body := Compose(msg, d.company)

	m := mail.NewMsg()
	if err := m.FromFormat(d.company, d.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", d.cfg.From, err)
	}
	if err := m.AddToFormat(msg.Name, msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}
	m.Subject(subject)
	m.SetGenHeader(mail.Header("X-Notification-ID"), msg.ID)
	m.SetBodyString(mail.TypeTextPlain, body)
	return m, nil
}
