package notify

import (
	"context"
	"errors"
	"net/textproto"
	"testing"
	"time"

	"github.com/maxbolgarin/gitshield/internal/config"
	"github.com/maxbolgarin/gitshield/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestValidRecipientsFiltering(t *testing.T) {
	s := NewEmailSink(config.EmailConfig{
		Recipients: []string{
			"security@company.com",
			"not-an-address",
			"  ops@company.com  ",
			"missing-domain@",
			"@missing-local.com",
		},
	})

	valid := s.validRecipients()

	assert.Equal(t, []string{"security@company.com", "ops@company.com"}, valid)
}

func TestSendFailsWithoutValidRecipients(t *testing.T) {
	s := NewEmailSink(config.EmailConfig{
		Recipients: []string{"bogus", "also bogus"},
	})

	err := s.Send(context.Background(), testAlert())

	assert.Error(t, err)
}

func TestIsAuthErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		auth bool
	}{
		{"reply 530", &textproto.Error{Code: 530, Msg: "Authentication required"}, true},
		{"reply 534", &textproto.Error{Code: 534, Msg: "Auth mechanism too weak"}, true},
		{"reply 535", &textproto.Error{Code: 535, Msg: "Invalid credentials"}, true},
		{"reply 421", &textproto.Error{Code: 421, Msg: "Service not available"}, false},
		{"auth failed text", errors.New("535 5.7.8 authentication failed"), true},
		{"gmail style text", errors.New("username and password not accepted"), true},
		{"connection refused", errors.New("dial tcp: connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.auth, isAuthErr(tt.err))
		})
	}
}

func TestEmailBody(t *testing.T) {
	s := NewEmailSink(config.EmailConfig{})
	alert := testAlert()
	alert.CreatedAt = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	body := s.body(alert)

	assert.Contains(t, body, alert.Message)
	assert.Contains(t, body, "team/app")
	assert.Contains(t, body, "abc123")
	assert.Contains(t, body, string(model.SeverityHigh))
	assert.Contains(t, body, "2025-06-02T12:00:00Z")
}
