package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotConfigured means no AI credential is available. Callers report
	// it to the user instead of falling back silently.
	ErrNotConfigured = errors.New("content: GEMINI_API_KEY not configured")

	// ErrGenerationFailed wraps any failure of a configured model.
	ErrGenerationFailed = errors.New("content: generation failed")
)

const (
	maxSubjectLen   = 70
	maxResumeChars  = 1500
	truncatedSuffix = "..."
)

// Completer turns a prompt into model text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type SubjectParams struct {
	Name    string
	Company string
	JobRole string
}

type EmailParams struct {
	Name       string
	Company    string
	JobRole    string
	Highlights string
	ResumeText string
}

// Generator writes outreach subjects and bodies with a Completer.
type Generator struct {
	client Completer
}

// NewGenerator returns ErrNotConfigured when client is nil.
func NewGenerator(client Completer) (*Generator, error) {
	if client == nil {
		return nil, ErrNotConfigured
	}
	return &Generator{client: client}, nil
}

func (g *Generator) GenerateSubject(ctx context.Context, p SubjectParams) (string, error) {
	text, err := g.client.Complete(ctx, subjectPrompt(p))
	if err != nil {
		return "", errors.Join(ErrGenerationFailed, err)
	}
	subject := cleanSubject(text)
	if subject == "" {
		return "", fmt.Errorf("%w: empty subject", ErrGenerationFailed)
	}
	return subject, nil
}

// GenerateEmail returns the body only, without subject or signature.
func (g *Generator) GenerateEmail(ctx context.Context, p EmailParams) (string, error) {
	text, err := g.client.Complete(ctx, emailPrompt(p))
	if err != nil {
		return "", errors.Join(ErrGenerationFailed, err)
	}
	body := strings.TrimSpace(text)
	if body == "" {
		return "", fmt.Errorf("%w: empty body", ErrGenerationFailed)
	}
	return body, nil
}

func cleanSubject(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = s[:i]
	}
	s = strings.Trim(strings.TrimSpace(s), `"'`)
	s = strings.TrimPrefix(s, "Subject:")
	s = strings.TrimSpace(s)

	if r := []rune(s); len(r) > maxSubjectLen {
		s = string(r[:maxSubjectLen-len(truncatedSuffix)]) + truncatedSuffix
	}
	return s
}
