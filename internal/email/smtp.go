package email

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

const (
	smtpTimeout = 30 * time.Second
)

var resetCodeHTML = template.Must(template.New("reset").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Your Verification Code</title></head>
<body style="font-family:Helvetica,Arial,sans-serif;background:#f7f9fc;color:#333;margin:0;padding:20px">
<div style="max-width:600px;margin:0 auto;background:#fff;border-radius:8px;overflow:hidden">
<div style="background:#4a6ee0;color:#fff;padding:30px 20px;text-align:center"><h1>Your Verification Code</h1></div>
<div style="padding:30px">
<p>Hello,</p>
<p>We received a request to reset your password. Please use the following verification code:</p>
<p style="text-align:center;margin:30px 0"><span style="display:inline-block;font-size:32px;font-weight:bold;letter-spacing:5px;background:#f5f7fa;padding:15px 30px;border:1px dashed #d1d8e0;border-radius:6px">{{.Code}}</span></p>
<p>This code is valid for <strong style="color:#e74c3c">{{.Minutes}} minutes</strong>. If you didn't request this, please ignore this email.</p>
<p style="font-size:14px;color:#7f8c8d">For your security, never share this code with anyone. Our support team will never ask for this code.</p>
</div>
</div>
</body>
</html>`))

type SMTPService struct {
	host     string
	port     int
	username string
	password string
	from     string
}

func NewSMTPService(host string, port int, username, password, from string) *SMTPService {
	return &SMTPService{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

func (s *SMTPService) SendPasswordResetCode(ctx context.Context, to, code string, validFor time.Duration) error {
	minutes := int(validFor.Minutes())

	text := fmt.Sprintf(`Hello,

We received a request to reset your password. Your verification code is:

    %s

This code is valid for %d minutes. If you didn't request this, please ignore this email.

For your security, never share this code with anyone.`, code, minutes)

	var html bytes.Buffer
	if err := resetCodeHTML.Execute(&html, struct {
		Code    string
		Minutes int
	}{code, minutes}); err != nil {
		return fmt.Errorf("rendering reset email: %w", err)
	}

	msg, err := s.buildMessage(to, "Verification Code", text, html.String())
	if err != nil {
		return err
	}

	return s.send(ctx, to, msg)
}

func (s *SMTPService) send(ctx context.Context, to, msg string) error {
	ctx, cancel := context.WithTimeout(ctx, smtpTimeout)
	defer cancel()

	client, err := s.dial(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := s.secure(client); err != nil {
		return err
	}
	if err := deliver(client, s.from, to, msg); err != nil {
		return err
	}

	if err := client.Quit(); err != nil {
		slog.Warn("smtp quit failed", "component", "email", "error", err)
	}
	return nil
}

// dial opens the connection with the context deadline applied to it.
func (s *SMTPService) dial(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing smtp %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("smtp handshake: %w", err)
	}
	return client, nil
}

// secure upgrades to TLS when offered and authenticates. Plaintext is only
// tolerated on the local relay ports.
func (s *SMTPService) secure(client *smtp.Client) error {
	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: s.host}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	} else if s.port != 25 && s.port != 1025 {
		return fmt.Errorf("smtp server on port %d does not offer STARTTLS", s.port)
	}

	if s.username == "" || s.password == "" {
		return nil
	}
	if err := client.Auth(smtp.PlainAuth("", s.username, s.password, s.host)); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	return nil
}

func deliver(client *smtp.Client, from, to, msg string) error {
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}

	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := io.WriteString(wc, msg); err != nil {
		wc.Close()
		return fmt.Errorf("smtp write body: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("smtp finish body: %w", err)
	}
	return nil
}

// buildMessage renders a multipart/alternative message with a plain-text
// and an HTML part.
func (s *SMTPService) buildMessage(to, subject, text, html string) (string, error) {
	if strings.ContainsAny(to, "\r\n") || strings.ContainsAny(subject, "\r\n") {
		return "", fmt.Errorf("invalid header value")
	}

	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating MIME boundary: %w", err)
	}
	boundary := "notely-" + hex.EncodeToString(b)

	var sb strings.Builder
	fmt.Fprintf(&sb, "From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\n", s.from, to, subject)
	fmt.Fprintf(&sb, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)
	fmt.Fprintf(&sb, "--%s\r\nContent-Type: text/plain; charset=\"utf-8\"\r\n\r\n%s\r\n", boundary, text)
	fmt.Fprintf(&sb, "--%s\r\nContent-Type: text/html; charset=\"utf-8\"\r\n\r\n%s\r\n", boundary, html)
	fmt.Fprintf(&sb, "--%s--\r\n", boundary)

	return sb.String(), nil
}
