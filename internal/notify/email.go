package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// recipientSplit separates "a@x; b@y, c@z" style destination lists.
var recipientSplit = regexp.MustCompile(`\s*[;,]\s*`)

// EmailAdapter delivers messages to an SMTP server.
//
// Settings: server (required), destination (required), source, subject,
// port (default 25), tls ("1" for STARTTLS), ssl ("1" for implicit
// TLS), authentication_required, username, password,
// suppress_timestamp.
type EmailAdapter struct {
	server     string
	port       int
	source     string
	recipients []string
	subject    string

	startTLS bool
	implicit bool
	auth     smtp.Auth

	appendTimestamp bool
}

// newEmailAdapter builds an EmailAdapter from a notifier's settings.
func newEmailAdapter(cfg *NotifierConfig) (*EmailAdapter, error) {
	server, err := cfg.RequiredSetting("server")
	if err != nil {
		return nil, err
	}
	destination, err := cfg.RequiredSetting("destination")
	if err != nil {
		return nil, err
	}

	port, err := strconv.Atoi(cfg.Setting("port", "25"))
	if err != nil || port <= 0 {
		return nil, fmt.Errorf("%w: port %q", ErrInvalidSetting, cfg.Setting("port", ""))
	}

	a := &EmailAdapter{
		server:          server,
		port:            port,
		source:          cfg.Setting("source", "alarmbridge@localhost"),
		recipients:      recipientSplit.Split(destination, -1),
		subject:         cfg.Setting("subject", "Alarm event"),
		startTLS:        cfg.Setting("tls", "0") == "1",
		implicit:        cfg.Setting("ssl", "0") == "1",
		appendTimestamp: cfg.Setting("suppress_timestamp", "0") != "1",
	}

	if cfg.Setting("authentication_required", "0") == "1" {
		username, err := cfg.RequiredSetting("username")
		if err != nil {
			return nil, err
		}
		password, err := cfg.RequiredSetting("password")
		if err != nil {
			return nil, err
		}
		a.auth = smtp.PlainAuth("", username, password, server)
	}

	return a, nil
}

// Send transmits one message.
func (a *EmailAdapter) Send(ctx context.Context, delivery Delivery) error {
	subject := a.subject
	if a.appendTimestamp {
		subject = fmt.Sprintf("%s (%s)", subject, time.Now().Format(time.RFC1123Z))
	}

	var body strings.Builder
	fmt.Fprintf(&body, "From: %s\r\n", a.source)
	fmt.Fprintf(&body, "To: %s\r\n", strings.Join(a.recipients, ", "))
	fmt.Fprintf(&body, "Subject: %s\r\n", subject)
	fmt.Fprintf(&body, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	body.WriteString("\r\n")
	body.WriteString(delivery.Message)
	body.WriteString("\r\n")

	if err := a.transmit(ctx, body.String()); err != nil {
		return fmt.Errorf("%w: email via %s: %v", ErrDeliveryFailed, a.server, err)
	}
	return nil
}

// transmit performs the SMTP session.
func (a *EmailAdapter) transmit(ctx context.Context, message string) error {
	addr := net.JoinHostPort(a.server, strconv.Itoa(a.port))

	dialer := &net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dialing: %w", err)
	}
	if a.implicit {
		conn = tls.Client(conn, &tls.Config{ServerName: a.server})
	}

	client, err := smtp.NewClient(conn, a.server)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if a.startTLS && !a.implicit {
		if err := client.StartTLS(&tls.Config{ServerName: a.server}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if a.auth != nil {
		if err := client.Auth(a.auth); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := client.Mail(a.source); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	for _, rcpt := range a.recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write([]byte(message)); err != nil {
		w.Close()
		return fmt.Errorf("writing body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing body: %w", err)
	}

	return client.Quit()
}
