package exchange

import (
	"fmt"

	"payrelay/internal/types"
)

const timestampLayout = "2006-01-02 15:04:05"

// Format renders one exchange payment event as alert text.
func (s *Source) Format(ev types.PaymentEvent) string {
	switch ev.Kind {
	case types.EventKindDeposit:
		n := types.Notification{
			Title: "💰 New Exchange Deposit Received",
			Fields: []types.NotificationField{
				{Label: "Amount", Value: fmt.Sprintf("%s %s", ev.Amount, ev.Currency)},
				{Label: "Network", Value: orUnknown(ev.Detail)},
				{Label: "Transaction", Value: orUnknown(ev.Extra["tx_id"])},
				{Label: "Time", Value: ev.Occurred.Format(timestampLayout)},
			},
		}
		return n.Render()
	case types.EventKindP2POrder:
		n := types.Notification{
			Title: "💱 P2P Order Completed",
			Fields: []types.NotificationField{
				{Label: "Order", Value: orUnknown(ev.Extra["order_number"])},
				{Label: "Paid", Value: fmt.Sprintf("%s %s", ev.Amount, ev.Currency)},
				{Label: "Received", Value: orUnknown(ev.Detail)},
				{Label: "Time", Value: ev.Occurred.Format(timestampLayout)},
			},
		}
		return n.Render()
	default:
		return fmt.Sprintf("Exchange event: %s %s %s", ev.Kind, ev.Amount, ev.Currency)
	}
}

func orUnknown(v string) string {
	if v == "" {
		return "Unknown"
	}
	return v
}
