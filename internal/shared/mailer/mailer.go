// Package mailer 事务邮件投递（密码重置、欢迎邮件）
//
// 通过 SMTP 发送，开发环境可指向 MailHog/Mailpit 等本地投递工具。
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/wneessen/go-mail"

	"pokedex-api/internal/config"
)

// Mailer 邮件发送接口
type Mailer interface {
	// SendPasswordReset 发送密码重置邮件，resetURL 为带明文 token 的重置链接
	SendPasswordReset(ctx context.Context, to, name, resetURL string) error
	// SendWelcome 发送注册欢迎邮件
	SendWelcome(ctx context.Context, to, name string) error
}

// SMTPMailer 基于 SMTP 的 Mailer 实现
type SMTPMailer struct {
	cfg config.MailConfig
}

// NewSMTPMailer 创建 SMTP 邮件客户端
func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) client() (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}
	return mail.NewClient(m.cfg.Host, opts...)
}

func (m *SMTPMailer) send(ctx context.Context, to, subject string, tmpl *template.Template, data any) error {
	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return fmt.Errorf("render mail template: %w", err)
	}

	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("invalid from address %q: %w", m.cfg.From, err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("invalid to address %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, body.String())

	client, err := m.client()
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

// SendPasswordReset 发送密码重置邮件
func (m *SMTPMailer) SendPasswordReset(ctx context.Context, to, name, resetURL string) error {
	return m.send(ctx, to, "Your password reset token (valid for 10 minutes)", resetTmpl, struct {
		Name     string
		ResetURL string
	}{Name: name, ResetURL: resetURL})
}

// SendWelcome 发送欢迎邮件
func (m *SMTPMailer) SendWelcome(ctx context.Context, to, name string) error {
	return m.send(ctx, to, "Welcome to the Pokedex!", welcomeTmpl, struct {
		Name string
	}{Name: name})
}
