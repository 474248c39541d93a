package handlers

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"payrelay/internal/types"
)

// unknownValue is the fallback rendered for any missing optional field.
const unknownValue = "Unknown"

// githubTimestampLayout is the timestamp shape GitHub sends in sponsorship
// payloads. Anything else is passed through unmodified.
const githubTimestampLayout = "2006-01-02T15:04:05Z"

// SponsorFormatter maps a raw sponsorship webhook payload into a rendered
// alert. It is total: malformed or partial payloads degrade to fallback
// values or a generic notice, never a panic that reaches the handler.
type SponsorFormatter struct {
	logger *slog.Logger
}

// NewSponsorFormatter creates a SponsorFormatter.
func NewSponsorFormatter(logger *slog.Logger) *SponsorFormatter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SponsorFormatter{logger: logger}
}

// Format renders the webhook payload into the alert text.
//
// For action "created" with a sponsorship object present, it extracts the
// sponsor display name (name, then login, then "Unknown"), tier name,
// monthly price, one-time-vs-recurring flag, and creation timestamp. For any
// other action, or when the sponsorship object is absent, it returns a
// one-line notice naming the action.
//
// Format never panics out to the caller: an internal extraction failure is
// logged and converted to a generic failure notice so the operator is still
// alerted that something happened.
func (f *SponsorFormatter) Format(data map[string]any) (text string) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("error formatting sponsor message",
				"panic", fmt.Sprintf("%v", r),
			)
			text = "Error processing GitHub Sponsors webhook data"
		}
	}()

	action := stringField(data, "action", "unknown")

	sponsorship, ok := data["sponsorship"].(map[string]any)
	if action != "created" || !ok {
		return fmt.Sprintf("GitHub Sponsors event received: %s", action)
	}

	sponsor, _ := sponsorship["sponsor"].(map[string]any)
	tier, _ := sponsorship["tier"].(map[string]any)

	sponsorLogin := stringField(sponsor, "login", unknownValue)
	sponsorName := stringField(sponsor, "name", "")
	if sponsorName == "" {
		sponsorName = sponsorLogin
	}

	tierName := stringField(tier, "name", unknownValue)
	amount := amountField(tier, "monthly_price_in_dollars")

	paymentType := "monthly sponsorship"
	if oneTime, _ := sponsorship["is_one_time_payment"].(bool); oneTime {
		paymentType = "one-time donation"
	}

	createdAt := stringField(sponsorship, "created_at", unknownValue)
	createdAt = reformatTimestamp(createdAt)

	n := types.Notification{
		Title: "🔔 New GitHub Sponsor Payment Received",
		Fields: []types.NotificationField{
			{Label: "Sponsor", Value: fmt.Sprintf("%s (@%s)", sponsorName, sponsorLogin)},
			{Label: "Tier", Value: tierName},
			{Label: "Amount", Value: "$" + amount},
			{Label: "Type", Value: paymentType},
			{Label: "Timestamp", Value: createdAt},
		},
		Footer: fmt.Sprintf("*GitHub Profile:* https://github.com/%s", sponsorLogin),
	}

	return n.Render()
}

// stringField reads a string value from a possibly-nil map, falling back
// when the key is absent, empty, or not a string.
func stringField(m map[string]any, key, fallback string) string {
	if m == nil {
		return fallback
	}
	if s, ok := m[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

// amountField renders a numeric field without a trailing ".0" for whole
// dollar amounts. JSON numbers decode as float64; string values are passed
// through; anything else degrades to "Unknown".
func amountField(m map[string]any, key string) string {
	if m == nil {
		return unknownValue
	}
	switch v := m[key].(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		if v != "" {
			return v
		}
	}
	return unknownValue
}

// reformatTimestamp rewrites "YYYY-MM-DDTHH:MM:SSZ" as
// "YYYY-MM-DD HH:MM:SS". Any other shape is returned unmodified.
func reformatTimestamp(ts string) string {
	t, err := time.Parse(githubTimestampLayout, ts)
	if err != nil {
		return ts
	}
	return t.Format("2006-01-02 15:04:05")
}
