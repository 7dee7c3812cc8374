package verify

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"
)

// ReadEmails takes the first column of every row, skipping blank rows and
// an "email" header.
func ReadEmails(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var emails []string
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(row) == 0 {
			continue
		}

		e := strings.TrimSpace(strings.TrimPrefix(row[0], "\ufeff"))
		if e == "" || strings.EqualFold(e, "email") {
			continue
		}
		emails = append(emails, e)
	}
	return emails, nil
}

func WriteReport(w io.Writer, results []Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"email", "valid_format", "domain_exists", "smtp_deliverable"}); err != nil {
		return err
	}
	for _, r := range results {
		row := []string{
			r.Email,
			strconv.FormatBool(r.ValidFormat),
			strconv.FormatBool(r.DomainExists),
			strconv.FormatBool(r.SMTPDeliverable),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
