package types

import (
	"fmt"
	"strings"
	"time"
)

// EventKind identifies the category of a payment event produced by a Source.
type EventKind string

const (
	EventKindDeposit  EventKind = "deposit"
	EventKindP2POrder EventKind = "p2p_order"
	EventKindEmail    EventKind = "email_payment"
)

// PaymentEvent is the normalized payment signal produced by a polled Source.
// ID is the opaque dedup identifier (transaction ID, order number, or mailbox
// Message-Id); it must be stable across poll cycles for the same underlying
// record. PaymentEvents are ephemeral -- nothing beyond the ID is persisted.
type PaymentEvent struct {
	ID       string
	Kind     EventKind
	Amount   string
	Currency string
	Detail   string
	Occurred time.Time
	Extra    map[string]string
}

// NotificationField is a single labeled value in a rendered alert.
type NotificationField struct {
	Label string
	Value string
}

// Notification is the one-way transformation target for all alerts.
// It is immutable once built and is rendered to Telegram-flavored Markdown;
// it is never parsed back.
type Notification struct {
	Title  string
	Fields []NotificationField
	Footer string
}

// Render produces the multi-line Markdown text block for delivery.
// Field labels are bold; field order follows insertion order.
func (n Notification) Render() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("*%s*\n", n.Title))
	for _, f := range n.Fields {
		b.WriteString(fmt.Sprintf("\n*%s:* %s", f.Label, f.Value))
	}
	if n.Footer != "" {
		b.WriteString("\n\n")
		b.WriteString(n.Footer)
	}
	return b.String()
}
