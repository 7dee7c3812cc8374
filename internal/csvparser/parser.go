package csvparser

import (
	"fmt"
	"os"

	"PulseOutreach/internal/models"
)

// ReadFile opens path and parses it with ParseRecipients.
func ReadFile(path string, maxCount int) ([]models.Recipient, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recipients file: %w", err)
	}
	defer f.Close()

	recipients, err := ParseRecipients(f, maxCount)
	if err != nil {
		return nil, fmt.Errorf("parse recipients file: %w", err)
	}
	return recipients, nil
}
