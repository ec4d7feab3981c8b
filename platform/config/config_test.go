package config

import (
	"strings"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/funnel")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("EMAIL_ENABLED", "false")
	t.Setenv("CORS_ALLOW_ALL", "false")
	t.Setenv("CORS_ORIGINS", "http://localhost:3000")
	t.Setenv("ADMIN_NOTIFICATION_EMAIL", "")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.GetAssessmentHighPotentialThreshold() != 10 {
		t.Errorf("expected assessment threshold 10, got %d", cfg.GetAssessmentHighPotentialThreshold())
	}
	if cfg.GetApplicationStrongThreshold() != 8 || cfg.GetApplicationModerateThreshold() != 4 {
		t.Errorf("unexpected application thresholds %d/%d", cfg.GetApplicationStrongThreshold(), cfg.GetApplicationModerateThreshold())
	}
	if got := strings.Join(cfg.GetApplicationCommitmentKeywords(), ","); got != "ready,budget,pay,yes" {
		t.Errorf("unexpected commitment keywords %q", got)
	}
	if cfg.GetLifecycleOperationTimeout() != 5*time.Second {
		t.Errorf("expected 5s lifecycle timeout, got %s", cfg.GetLifecycleOperationTimeout())
	}
	if cfg.GetPaymentLinkTTL() != 72*time.Hour {
		t.Errorf("expected 72h payment link ttl, got %s", cfg.GetPaymentLinkTTL())
	}
	if got := strings.Join(cfg.GetAutomatedOutreachStates(), ","); got != "NURTURING,ONLINE_CLIENT" {
		t.Errorf("unexpected outreach states %q", got)
	}
	if cfg.GetOutboxRetention() != 14*24*time.Hour {
		t.Errorf("expected 14 day outbox retention, got %s", cfg.GetOutboxRetention())
	}
	if cfg.GetAdminNotificationEmail() != "" {
		t.Errorf("expected no admin notification email by default, got %q", cfg.GetAdminNotificationEmail())
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing database",
			env:     map[string]string{"DATABASE_URL": ""},
			wantErr: "DATABASE_URL",
		},
		{
			name:    "smtp without host",
			env:     map[string]string{"EMAIL_ENABLED": "true", "EMAIL_FROM_ADDRESS": "noreply@example.com", "EMAIL_PROVIDER": "smtp", "SMTP_HOST": ""},
			wantErr: "SMTP_HOST",
		},
		{
			name:    "brevo without key",
			env:     map[string]string{"EMAIL_ENABLED": "true", "EMAIL_FROM_ADDRESS": "noreply@example.com", "EMAIL_PROVIDER": "brevo", "BREVO_API_KEY": ""},
			wantErr: "BREVO_API_KEY",
		},
		{
			name:    "inverted thresholds",
			env:     map[string]string{"APPLICATION_STRONG_THRESHOLD": "3", "APPLICATION_MODERATE_THRESHOLD": "6"},
			wantErr: "APPLICATION_MODERATE_THRESHOLD",
		},
		{
			name:    "bad timeout",
			env:     map[string]string{"LIFECYCLE_OPERATION_TIMEOUT": "soon"},
			wantErr: "LIFECYCLE_OPERATION_TIMEOUT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			for key, value := range tt.env {
				t.Setenv(key, value)
			}

			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error mentioning %s, got %v", tt.wantErr, err)
			}
		})
	}
}
