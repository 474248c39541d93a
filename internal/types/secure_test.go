package types

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretString_Redaction(t *testing.T) {
	secret := SecretString("hunter2")

	assert.Equal(t, "***REDACTED***", secret.String())
	assert.Equal(t, "***REDACTED***", fmt.Sprintf("%v", secret))
	assert.Equal(t, "***REDACTED***", fmt.Sprintf("%s", secret))
	assert.NotContains(t, fmt.Sprintf("%+v", struct{ S SecretString }{secret}), "hunter2")
}

func TestSecretString_JSONRedaction(t *testing.T) {
	payload := struct {
		Token SecretString `json:"token"`
	}{Token: "hunter2"}

	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"token":"***REDACTED***"}`, string(raw))
}

func TestSecretString_UnmaskAndIsSet(t *testing.T) {
	assert.Equal(t, "hunter2", SecretString("hunter2").Unmask())
	assert.True(t, SecretString("hunter2").IsSet())
	assert.False(t, SecretString("").IsSet())
}

func TestNotificationRender(t *testing.T) {
	n := Notification{
		Title: "Test Alert",
		Fields: []NotificationField{
			{Label: "Amount", Value: "$10"},
			{Label: "Type", Value: "monthly sponsorship"},
		},
		Footer: "footer line",
	}

	text := n.Render()
	assert.Equal(t, "*Test Alert*\n\n*Amount:* $10\n*Type:* monthly sponsorship\n\nfooter line", text)
}

func TestNotificationRender_NoFooter(t *testing.T) {
	n := Notification{Title: "T", Fields: []NotificationField{{Label: "A", Value: "1"}}}
	assert.Equal(t, "*T*\n\n*A:* 1", n.Render())
}
