package tools

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/rahul/workbench/pkg/config"
)

type EmailTool struct {
	Config config.EmailConfig
	Dialer net.Dialer
}

func NewEmailTool(cfg config.EmailConfig) *EmailTool {
	return &EmailTool{
		Config: cfg,
		Dialer: net.Dialer{Timeout: 30 * time.Second},
	}
}

func (e *EmailTool) Name() string {
	return ToolSendEmail
}

func (e *EmailTool) Description() string {
	return "Send an email report. Delivery is mocked unless email is enabled in the configuration."
}

func (e *EmailTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"to": map[string]any{
				"type":        "string",
				"description": "Recipient address",
			},
			"subject": map[string]any{
				"type":        "string",
				"description": "Subject line",
			},
			"body": map[string]any{
				"type":        "string",
				"description": "Plain-text body",
			},
		},
		"required": []string{"to", "subject", "body"},
	}
}

func (e *EmailTool) Execute(ctx context.Context, input Input) (Result, error) {
	to := input.String("to")
	subject := input.String("subject")
	body := input.String("body")
	from := e.Config.From

	if !e.Config.Enabled {
		return Result{"status": "mocked", "to": to, "from": from, "subject": subject}, nil
	}

	msg := buildMessage(from, to, subject, body)
	if err := e.send(ctx, from, to, msg); err != nil {
		return Result{
			"status":   "error",
			"to":       to,
			"from":     from,
			"error":    err.Error(),
			"host":     e.Config.Host,
			"port":     e.Config.Port,
			"security": e.Config.Security,
		}, nil
	}
	return Result{"status": "sent", "to": to, "from": from, "subject": subject}, nil
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

func (e *EmailTool) send(ctx context.Context, from, to string, msg []byte) error {
	addr := net.JoinHostPort(e.Config.Host, strconv.Itoa(e.Config.Port))
	tlsCfg := &tls.Config{ServerName: e.Config.Host}

	var conn net.Conn
	var err error
	if strings.EqualFold(e.Config.Security, "ssl") {
		d := tls.Dialer{NetDialer: &e.Dialer, Config: tlsCfg}
		conn, err = d.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = e.Dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("connect smtp: %w", err)
	}

	client, err := smtp.NewClient(conn, e.Config.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if strings.EqualFold(e.Config.Security, "starttls") {
		if err := client.StartTLS(tlsCfg); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if e.Config.Username != "" && e.Config.Password != "" {
		auth := smtp.PlainAuth("", e.Config.Username, e.Config.Password, e.Config.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish message: %w", err)
	}
	return client.Quit()
}
