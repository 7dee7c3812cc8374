package csvparser

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"PulseOutreach/internal/models"
)

// emailColumnFallback is used when no header contains "email".
const emailColumnFallback = 2

var ErrNoEmailColumn = errors.New("could not find email column in csv")

type columns struct {
	email, name, company int
}

// detectColumns picks the first header containing "email", "name" and
// "company" (case-insensitive). Without an email header the third column
// is assumed to hold addresses.
func detectColumns(headers []string) (columns, error) {
	cols := columns{email: -1, name: -1, company: -1}
	for i, h := range headers {
		h = strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(h, "email") && cols.email == -1:
			cols.email = i
		case strings.Contains(h, "name") && cols.name == -1:
			cols.name = i
		case strings.Contains(h, "company") && cols.company == -1:
			cols.company = i
		}
	}
	if cols.email == -1 {
		if len(headers) <= emailColumnFallback {
			return cols, ErrNoEmailColumn
		}
		cols.email = emailColumnFallback
	}
	return cols, nil
}

// ParseRecipients reads a CSV with a header row and returns at most maxCount
// recipients whose address passes ValidEmail. Rows with a bad address are
// dropped silently and do not count towards maxCount.
func ParseRecipients(r io.Reader, maxCount int) ([]models.Recipient, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, err
	}
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], "\ufeff")
	}

	cols, err := detectColumns(headers)
	if err != nil {
		return nil, err
	}

	if maxCount <= 0 {
		maxCount = 1000
	}

	recipients := make([]models.Recipient, 0)
	for len(recipients) < maxCount {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		email := field(record, cols.email)
		if !ValidEmail(email) {
			continue
		}

		name := field(record, cols.name)
		if name == "" {
			name = models.DefaultRecipientName
		}

		recipients = append(recipients, models.Recipient{
			Email:   email,
			Name:    name,
			Company: field(record, cols.company),
		})
	}

	return recipients, nil
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// ValidEmail is the syntactic filter applied during resolution: one "@"
// with a non-empty local part and a domain containing a dot.
func ValidEmail(email string) bool {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	if strings.ContainsAny(email, " \t\r\n") {
		return false
	}
	domain := email[at+1:]
	dot := strings.Index(domain, ".")
	return dot > 0 && dot < len(domain)-1
}

// Normalize filters and caps an inline recipient list the same way a
// parsed file is filtered, and fills in the default display name.
func Normalize(in []models.Recipient, maxCount int) []models.Recipient {
	out := make([]models.Recipient, 0, len(in))
	for _, r := range in {
		if maxCount > 0 && len(out) >= maxCount {
			break
		}
		r.Email = strings.TrimSpace(r.Email)
		if !ValidEmail(r.Email) {
			continue
		}
		r.Name = strings.TrimSpace(r.Name)
		if r.Name == "" {
			r.Name = models.DefaultRecipientName
		}
		r.Company = strings.TrimSpace(r.Company)
		out = append(out, r)
	}
	return out
}
