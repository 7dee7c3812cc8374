package email

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// GmailSender sends through the Gmail API on behalf of the account that
// granted the token.
type GmailSender struct {
	service *gmail.Service
	from    string
	log     *zap.Logger
}

// NewGmailSender builds a sender for ts. When senderName is set the account
// address is looked up once so the From header can carry the display name.
func NewGmailSender(ctx context.Context, ts oauth2.TokenSource, senderName string, logger *zap.Logger, opts ...option.ClientOption) (*GmailSender, error) {
	opts = append([]option.ClientOption{option.WithTokenSource(ts)}, opts...)
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gmail: failed to create service: %w", err)
	}

	g := &GmailSender{service: svc, log: logger.Named("gmail")}

	if senderName != "" {
		addr, err := g.Profile(ctx)
		if err != nil {
			g.log.Warn("sender name ignored", zap.Error(err))
		} else {
			g.from = formatAddress(senderName, addr)
		}
	}
	return g, nil
}

func (g *GmailSender) Send(ctx context.Context, msg Message) error {
	var buf bytes.Buffer
	if _, err := buildMessage(g.from, msg, g.log).WriteTo(&buf); err != nil {
		return sendError("gmail", err)
	}
	raw := base64.URLEncoding.EncodeToString(buf.Bytes())

	sent, err := g.service.Users.Messages.Send("me", &gmail.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return sendError("gmail", err)
	}

	g.log.Debug("gmail accepted message",
		zap.String("to", msg.To),
		zap.String("message_id", sent.Id),
	)
	return nil
}

// Profile returns the address of the authenticated account.
func (g *GmailSender) Profile(ctx context.Context) (string, error) {
	p, err := g.service.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("gmail: failed to fetch profile: %w", err)
	}
	return p.EmailAddress, nil
}
