package mailbox

import (
	"payrelay/internal/types"
)

const timestampLayout = "2006-01-02 15:04:05"

// Format renders one email payment event as alert text.
func (s *Source) Format(ev types.PaymentEvent) string {
	amount := "Unknown"
	if ev.Amount != "" {
		amount = ev.Amount
		if ev.Currency != "" {
			amount += " " + ev.Currency
		}
	}

	subject := ev.Detail
	if subject == "" {
		subject = "(no subject)"
	}
	from := ev.Extra["from"]
	if from == "" {
		from = "Unknown"
	}

	n := types.Notification{
		Title: "📧 Payment Email Received",
		Fields: []types.NotificationField{
			{Label: "From", Value: from},
			{Label: "Subject", Value: subject},
			{Label: "Amount", Value: amount},
			{Label: "Time", Value: ev.Occurred.Format(timestampLayout)},
		},
	}
	return n.Render()
}
