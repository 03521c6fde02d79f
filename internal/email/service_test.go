package email

import (
	"strings"
	"testing"
)

func TestServiceIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected bool
	}{
		{
			name:     "empty config",
			config:   Config{},
			expected: false,
		},
		{
			name: "missing host",
			config: Config{
				Port: "587",
				From: "prompts@example.com",
			},
			expected: false,
		},
		{
			name: "missing from",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
			},
			expected: false,
		},
		{
			name: "fully configured",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
				From: "prompts@example.com",
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.config)
			if svc.IsConfigured() != tt.expected {
				t.Errorf("IsConfigured() = %v, want %v", svc.IsConfigured(), tt.expected)
			}
		})
	}
}

func TestSendHTMLEmailRequiresConfiguration(t *testing.T) {
	svc := NewService(Config{})
	err := svc.SendHTMLEmail([]string{"alice@team.example"}, "subject", "<p>hi</p>")
	if err == nil {
		t.Fatal("expected error when not configured")
	}
	if !strings.Contains(err.Error(), "not configured") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestMagicLinkTemplateRenders(t *testing.T) {
	html, err := renderTemplate(magicLinkEmailTemplate, MagicLinkData{
		AppName:   "Prompt Manager",
		SignInURL: "https://prompts.team.example/login?oobCode=abc123",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(html, "https://prompts.team.example/login?oobCode=abc123") {
		t.Error("sign-in link missing from rendered email")
	}
	if !strings.Contains(html, "Prompt Manager") {
		t.Error("app name missing from rendered email")
	}
	if !strings.Contains(html, "single-use") {
		t.Error("single-use notice missing from rendered email")
	}
}
