package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"go.uber.org/zap"
)

// dialTimeout bounds the TCP dial to the SMTP or IMAP server.
const dialTimeout = 15 * time.Second

// SMTPConfig holds the SMTP server settings for outbound mail.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	TLS      bool

	// ArchiveMailbox, when set, receives a copy of each sent message via
	// IMAP APPEND on IMAPHost:IMAPPort using the same credentials.
	ArchiveMailbox string
	IMAPHost       string
	IMAPPort       string
}

// SMTPSender delivers mail through an SMTP relay.
type SMTPSender struct {
	cfg SMTPConfig
	log *zap.Logger
	now func() time.Time
}

var _ Sender = (*SMTPSender)(nil)

// NewSMTPSender creates an SMTP-backed Sender.
func NewSMTPSender(cfg SMTPConfig, log *zap.Logger) *SMTPSender {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &SMTPSender{cfg: cfg, log: log, now: time.Now}
}

// SendEmail composes and sends email. Archiving a sent copy is best-effort
// and never fails the send.
func (s *SMTPSender) SendEmail(ctx context.Context, email Email) error {
	msg, err := Compose(s.cfg.From, email, s.now())
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(s.cfg.Host, s.cfg.Port)
	if s.cfg.TLS {
		err = sendSMTPWithTLS(ctx, addr, s.cfg, email.To, msg)
	} else {
		err = sendSMTPWithStartTLS(ctx, addr, s.cfg, email.To, msg)
	}
	if err != nil {
		return fmt.Errorf("sending email to %s: %w", email.To, err)
	}

	if s.cfg.ArchiveMailbox != "" {
		if err := s.archive(msg); err != nil {
			s.log.Warn("archiving sent email failed",
				zap.String("mailbox", s.cfg.ArchiveMailbox),
				zap.Error(err),
			)
		}
	}
	return nil
}

// archive appends msg to the configured IMAP mailbox, flagged as seen.
func (s *SMTPSender) archive(msg []byte) error {
	addr := net.JoinHostPort(s.cfg.IMAPHost, s.cfg.IMAPPort)

	client, err := imapclient.DialTLS(addr, nil)
	if err != nil {
		return fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}
	defer func() { _ = client.Logout().Wait() }()

	if err := client.Login(s.cfg.Username, s.cfg.Password).Wait(); err != nil {
		return fmt.Errorf("IMAP login for %s: %w", s.cfg.Username, err)
	}

	appendCmd := client.Append(s.cfg.ArchiveMailbox, int64(len(msg)), &imap.AppendOptions{
		Flags: []imap.Flag{imap.FlagSeen},
		Time:  s.now(),
	})
	if _, err := appendCmd.Write(msg); err != nil {
		return fmt.Errorf("writing message to %s: %w", s.cfg.ArchiveMailbox, err)
	}
	if err := appendCmd.Close(); err != nil {
		return fmt.Errorf("closing append to %s: %w", s.cfg.ArchiveMailbox, err)
	}
	if _, err := appendCmd.Wait(); err != nil {
		return fmt.Errorf("appending to %s: %w", s.cfg.ArchiveMailbox, err)
	}
	return nil
}

// sendSMTPWithTLS sends an email over an implicit TLS connection.
func sendSMTPWithTLS(
	ctx context.Context, addr string, cfg SMTPConfig,
	to string, body []byte,
) error {
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: dialTimeout},
		Config:    &tls.Config{ServerName: cfg.Host},
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("TLS dial to %s: %w", addr, err)
	}

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Close()

	if cfg.Username != "" {
		auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP auth: %w", err)
		}
	}

	return sendMailViaSMTPClient(client, cfg.From, to, body)
}

// sendSMTPWithStartTLS sends an email using STARTTLS on a plain connection.
func sendSMTPWithStartTLS(
	ctx context.Context, addr string, cfg SMTPConfig,
	to string, body []byte,
) error {
	dialer := &net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial to %s: %w", addr, err)
	}

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: cfg.Host}); err != nil {
			return fmt.Errorf("STARTTLS: %w", err)
		}
	}

	if cfg.Username != "" {
		auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP auth: %w", err)
		}
	}

	return sendMailViaSMTPClient(client, cfg.From, to, body)
}

// sendMailViaSMTPClient sends the message using an established SMTP client.
func sendMailViaSMTPClient(
	client *smtp.Client, from, to string, body []byte,
) error {
	fromAddr, err := parseBareAddress(from)
	if err != nil {
		return err
	}
	toAddr, err := parseBareAddress(to)
	if err != nil {
		return err
	}

	if err := client.Mail(fromAddr); err != nil {
		return fmt.Errorf("SMTP MAIL FROM: %w", err)
	}
	if err := client.Rcpt(toAddr); err != nil {
		return fmt.Errorf("SMTP RCPT TO: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("writing message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing message body: %w", err)
	}

	return client.Quit()
}
