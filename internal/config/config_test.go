package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LEDGER_BACKEND", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gmail", cfg.MailProvider)
	assert.Equal(t, 150, cfg.MaxEmailsPerHour)
	assert.Equal(t, 30, cfg.DefaultMaxEmails)
	assert.Equal(t, "global", cfg.LedgerScope)
	assert.False(t, cfg.CampaignScoped())
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.CORSOrigins)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "postgres without database url",
			env:  map[string]string{"LEDGER_BACKEND": "postgres", "DATABASE_URL": ""},
		},
		{
			name: "unknown provider",
			env:  map[string]string{"LEDGER_BACKEND": "memory", "MAIL_PROVIDER": "pigeon"},
		},
		{
			name: "unknown scope",
			env:  map[string]string{"LEDGER_BACKEND": "memory", "LEDGER_SCOPE": "forever"},
		},
		{
			name: "zero rate",
			env:  map[string]string{"LEDGER_BACKEND": "memory", "MAX_EMAILS_PER_HOUR": "0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}
