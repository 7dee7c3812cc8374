package email

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

const defaultSettleTimeout = 30 * time.Second

// SMTPSender sends through an SMTP relay, e.g. Gmail with an app password.
type SMTPSender struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// SettleTimeout bounds how long Send keeps waiting for the relay's
	// answer once ctx is done. After it the connection is closed.
	SettleTimeout time.Duration
	Log           *zap.Logger
}

// Send dials the relay for every message. When ctx ends mid-session the
// relay's verdict is still awaited for SettleTimeout, so a message the
// relay accepted is reported as sent rather than failed.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m := buildMessage(s.From, msg, s.logger())

	conn, err := s.dial(ctx)
	if err != nil {
		return sendError("smtp", err)
	}
	defer conn.Close()

	done := make(chan error, 1)
	go func() {
		done <- s.deliver(conn, m)
	}()

	select {
	case err := <-done:
		if err != nil {
			return sendError("smtp", err)
		}
		return nil
	case <-ctx.Done():
	}

	timer := time.NewTimer(s.settleTimeout())
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			return sendError("smtp", err)
		}
		s.logger().Warn("smtp relay accepted message after deadline", zap.String("to", msg.To))
		return nil
	case <-timer.C:
		// closing the connection before the end of DATA aborts the transaction
		_ = conn.Close()
		<-done
		return sendError("smtp", ctx.Err())
	}
}

func (s *SMTPSender) dial(ctx context.Context) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(s.Host, strconv.Itoa(s.Port)))
	if err != nil {
		return nil, err
	}
	if s.Port != 465 {
		return conn, nil
	}

	tlsConn := tls.Client(conn, &tls.Config{ServerName: s.Host})
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return tlsConn, nil
}

func (s *SMTPSender) deliver(conn net.Conn, m *gomail.Message) error {
	c, err := smtp.NewClient(conn, s.Host)
	if err != nil {
		return err
	}

	if _, isTLS := conn.(*tls.Conn); !isTLS {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(&tls.Config{ServerName: s.Host}); err != nil {
				return err
			}
		}
	}
	if s.Username != "" {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(smtp.PlainAuth("", s.Username, s.Password, s.Host)); err != nil {
				return err
			}
		}
	}

	send := gomail.SendFunc(func(from string, to []string, msg io.WriterTo) error {
		if err := c.Mail(from); err != nil {
			return err
		}
		for _, rcpt := range to {
			if err := c.Rcpt(rcpt); err != nil {
				return err
			}
		}
		w, err := c.Data()
		if err != nil {
			return err
		}
		if _, err := msg.WriteTo(w); err != nil {
			return err
		}
		return w.Close()
	})
	if err := gomail.Send(send, m); err != nil {
		return err
	}

	// the message is accepted once DATA is acknowledged
	_ = c.Quit()
	return nil
}

func (s *SMTPSender) settleTimeout() time.Duration {
	if s.SettleTimeout <= 0 {
		return defaultSettleTimeout
	}
	return s.SettleTimeout
}

func (s *SMTPSender) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}
