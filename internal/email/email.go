package email

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// ErrSendFailed marks an ordinary delivery failure.
var ErrSendFailed = errors.New("failed to send email")

// Sender delivers one message. A non-nil error means the message was not
// accepted by the provider.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type Message struct {
	To      string
	Subject string
	Body    string // plain text

	// AttachmentPath is optional. An unreadable file is skipped with a
	// warning instead of failing the send.
	AttachmentPath string
}

type attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

func loadAttachment(path string) (*attachment, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	name := filepath.Base(path)
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return &attachment{Filename: name, ContentType: contentType, Content: content}, nil
}

// attachmentFor returns nil when msg has no attachment or it cannot be read.
func attachmentFor(msg Message, logger *zap.Logger) *attachment {
	if msg.AttachmentPath == "" {
		return nil
	}
	att, err := loadAttachment(msg.AttachmentPath)
	if err != nil {
		logger.Warn("could not attach file, sending without it",
			zap.String("to", msg.To),
			zap.String("path", msg.AttachmentPath),
			zap.Error(err),
		)
		return nil
	}
	return att
}

// buildMessage renders msg as a MIME message. from may be empty when the
// provider fills it in.
func buildMessage(from string, msg Message, logger *zap.Logger) *gomail.Message {
	m := gomail.NewMessage()
	if from != "" {
		m.SetHeader("From", from)
	}
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	if att := attachmentFor(msg, logger); att != nil {
		m.Attach(att.Filename,
			gomail.SetHeader(map[string][]string{"Content-Type": {att.ContentType}}),
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(att.Content)
				return err
			}),
		)
	}
	return m
}

func formatAddress(name, address string) string {
	if name == "" {
		return address
	}
	return fmt.Sprintf("%s <%s>", name, address)
}

func sendError(provider string, err error) error {
	return errors.Join(ErrSendFailed, fmt.Errorf("%s: %w", provider, err))
}
