package email

import (
	"context"

	"github.com/resend/resend-go/v3"
	"go.uber.org/zap"
)

type ResendSender struct {
	client *resend.Client
	from   string
	log    *zap.Logger
}

func NewResendSender(apiKey, from, senderName string, logger *zap.Logger) *ResendSender {
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   formatAddress(senderName, from),
		log:    logger.Named("resend"),
	}
}

func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	req := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Text:    msg.Body,
	}

	if att := attachmentFor(msg, s.log); att != nil {
		req.Attachments = []*resend.Attachment{{
			Filename:    att.Filename,
			Content:     att.Content,
			ContentType: att.ContentType,
		}}
	}

	if _, err := s.client.Emails.SendWithContext(ctx, req); err != nil {
		return sendError("resend", err)
	}
	return nil
}
