package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"net/textproto"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/notification-fanout/internal/config"
	"github.com/example/notification-fanout/internal/util"
)

// SMTPOption configures the behaviour of the SMTP provider.
type SMTPOption func(*SMTPProvider)

// WithSMTPTLSConfig overrides the TLS configuration used when negotiating STARTTLS.
func WithSMTPTLSConfig(cfg *tls.Config) SMTPOption {
	return func(p *SMTPProvider) {
		p.tlsConfig = cfg
	}
}

// WithSMTPDialer swaps the network dialer used to establish SMTP connections.
func WithSMTPDialer(d Dialer) SMTPOption {
	return func(p *SMTPProvider) {
		if d != nil {
			p.dialer = d
		}
	}
}

// WithSMTPClock replaces the clock used for timestamps.
func WithSMTPClock(now func() time.Time) SMTPOption {
	return func(p *SMTPProvider) {
		if now != nil {
			p.now = now
		}
	}
}

// Dialer abstracts net.Dialer to simplify testing.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// SMTPProvider implements Provider against a real SMTP backend.
type SMTPProvider struct {
	logger    zerolog.Logger
	host      string
	port      int
	from      string
	auth      smtp.Auth
	tlsConfig *tls.Config
	dialer    Dialer
	now       func() time.Time
}

// NewSMTPProvider constructs a Provider backed by an SMTP server. Missing
// credentials are a configuration error surfaced here, at startup, never per
// dispatch.
func NewSMTPProvider(cfg config.SMTPConfig, logger zerolog.Logger, opts ...SMTPOption) (*SMTPProvider, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("smtp provider: host is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("smtp provider: invalid port %d", cfg.Port)
	}
	from, err := util.NormalizeEmail(cfg.From)
	if err != nil {
		return nil, fmt.Errorf("smtp provider: from address: %w", err)
	}

	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	p := &SMTPProvider{
		logger: logger,
		host:   cfg.Host,
		port:   cfg.Port,
		from:   from,
		dialer: &net.Dialer{Timeout: 30 * time.Second},
		now:    time.Now,
		tlsConfig: &tls.Config{
			ServerName: cfg.Host,
			MinVersion: tls.VersionTLS12,
		},
	}

	if strings.TrimSpace(cfg.User) != "" {
		p.auth = smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host)
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	return p, nil
}

// Send delivers the payload to its single recipient over SMTP.
func (p *SMTPProvider) Send(ctx context.Context, payload *Payload) (*RawResponse, error) {
	if payload == nil {
		return nil, errors.New("smtp provider: payload is required")
	}
	to := strings.TrimSpace(payload.To)
	if to == "" {
		return nil, errors.New("smtp provider: recipient address is required")
	}

	from := strings.TrimSpace(payload.From)
	if from == "" {
		from = p.from
	}

	resp := &RawResponse{
		ID:        payload.MessageID,
		Timestamp: p.now(),
	}

	message := p.buildMessage(from, to, payload.Subject, payload.Body)

	if err := p.deliver(ctx, from, to, message); err != nil {
		resp.Code, resp.Body = classifySMTPError(err)
		if resp.Body == "" {
			resp.Body = err.Error()
		}
		p.logger.Warn().
			Str("message_id", payload.MessageID).
			Int("code", resp.Code).
			Err(err).
			Msg("smtp provider: delivery failed")
		return resp, err
	}

	resp.Code = 250
	resp.Body = "smtp: message accepted"
	return resp, nil
}

func (p *SMTPProvider) buildMessage(from, to, subject, body string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", sanitizeHeader(subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", p.now().UTC().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(body)
	buf.WriteString("\r\n")
	return buf.Bytes()
}

func (p *SMTPProvider) deliver(ctx context.Context, from, to string, message []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := net.JoinHostPort(p.host, strconv.Itoa(p.port))
	conn, err := p.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp provider: dial: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, p.host)
	if err != nil {
		return fmt.Errorf("smtp provider: handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(p.tlsConfig); err != nil {
			return fmt.Errorf("smtp provider: starttls: %w", err)
		}
	}

	if p.auth != nil {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(p.auth); err != nil {
				return fmt.Errorf("smtp provider: auth: %w", err)
			}
		}
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("smtp provider: mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp provider: rcpt to: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp provider: data: %w", err)
	}
	if _, err := writer.Write(message); err != nil {
		writer.Close()
		return fmt.Errorf("smtp provider: write body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("smtp provider: close body: %w", err)
	}

	return client.Quit()
}

// classifySMTPError extracts the server reply code and text when the error
// carries one.
func classifySMTPError(err error) (int, string) {
	var proto *textproto.Error
	if errors.As(err, &proto) {
		return proto.Code, proto.Msg
	}
	return 0, ""
}

func sanitizeHeader(value string) string {
	value = strings.ReplaceAll(value, "\r", " ")
	return strings.ReplaceAll(value, "\n", " ")
}
