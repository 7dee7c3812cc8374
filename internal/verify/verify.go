// Package verify checks whether addresses can receive mail: syntax, MX
// records, then an SMTP RCPT probe against the first exchanger.
package verify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrNoMXRecord = errors.New("no mx record")

var syntaxPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

type Result struct {
	Email           string `json:"email"`
	ValidFormat     bool   `json:"valid_format"`
	DomainExists    bool   `json:"domain_exists"`
	SMTPDeliverable bool   `json:"smtp_deliverable"`
}

// Resolver is satisfied by *net.Resolver.
type Resolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
}

// Prober asks a mail exchanger whether it accepts rcpt.
type Prober interface {
	Probe(ctx context.Context, host, rcpt string) (bool, error)
}

type Verifier struct {
	Resolver Resolver
	Prober   Prober // nil skips the SMTP step
	Log      *zap.Logger
}

func New(prober Prober, logger *zap.Logger) *Verifier {
	return &Verifier{
		Resolver: &net.Resolver{},
		Prober:   prober,
		Log:      logger.Named("verify"),
	}
}

func ValidSyntax(email string) bool {
	return syntaxPattern.MatchString(email)
}

func (v *Verifier) Check(ctx context.Context, email string) Result {
	email = strings.TrimSpace(email)
	res := Result{Email: email}

	if !ValidSyntax(email) {
		return res
	}
	res.ValidFormat = true

	domain := email[strings.LastIndex(email, "@")+1:]
	host, err := v.lookupMX(ctx, domain)
	if err != nil {
		v.Log.Debug("mx lookup failed", zap.String("domain", domain), zap.Error(err))
		return res
	}
	res.DomainExists = true

	if v.Prober == nil {
		return res
	}
	ok, err := v.Prober.Probe(ctx, host, email)
	if err != nil {
		v.Log.Debug("smtp probe failed", zap.String("email", email), zap.String("mx", host), zap.Error(err))
	}
	res.SMTPDeliverable = ok
	return res
}

// CheckAll verifies emails with at most concurrency checks in flight and
// returns results in input order.
func (v *Verifier) CheckAll(ctx context.Context, emails []string, concurrency int) []Result {
	results := make([]Result, len(emails))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))
	for i, e := range emails {
		g.Go(func() error {
			results[i] = v.Check(ctx, e)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (v *Verifier) lookupMX(ctx context.Context, domain string) (string, error) {
	records, err := v.Resolver.LookupMX(ctx, domain)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", ErrNoMXRecord
	}
	sorted := append([]*net.MX(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Pref < sorted[j].Pref })

	host := strings.TrimSuffix(sorted[0].Host, ".")
	if host == "" {
		return "", ErrNoMXRecord
	}
	return host, nil
}

// SMTPProber talks plain SMTP on Port and stops after RCPT TO. No message
// is ever sent.
type SMTPProber struct {
	Port     int
	Helo     string
	MailFrom string
	Timeout  time.Duration
}

func NewSMTPProber(timeout time.Duration) *SMTPProber {
	return &SMTPProber{
		Port:     25,
		Helo:     "example.com",
		MailFrom: "test@example.com",
		Timeout:  timeout,
	}
}

func (p *SMTPProber) Probe(ctx context.Context, host, rcpt string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	addr := net.JoinHostPort(host, strconv.Itoa(p.Port))
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return false, fmt.Errorf("smtp greeting: %w", err)
	}
	defer c.Close()

	if err := c.Hello(p.Helo); err != nil {
		return false, fmt.Errorf("helo: %w", err)
	}
	if err := c.Mail(p.MailFrom); err != nil {
		return false, fmt.Errorf("mail from: %w", err)
	}

	// net/smtp accepts only 250 and 251 here
	rcptErr := c.Rcpt(rcpt)
	_ = c.Quit()

	if rcptErr != nil {
		return false, fmt.Errorf("rcpt to: %w", rcptErr)
	}
	return true, nil
}
