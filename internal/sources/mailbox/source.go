// Package mailbox polls an IMAP mailbox for payment confirmation emails.
// Each poll opens a fresh connection, searches for unseen messages,
// filters them by sender and keyword, and emits a payment event per
// matching message.
//
// A message is marked \Seen on the server only once its alert no longer
// needs a retry: either the filters rejected it, or the dedup ledger
// records it as delivered. Matching messages are fetched with BODY.PEEK so
// a failed delivery leaves the message unseen and the next poll picks it
// up again.
package mailbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"payrelay/internal/config"
	"payrelay/internal/types"
)

// SourceName identifies this source in logs and the dedup ledger.
const SourceName = "mailbox"

// defaultKeywords classifies a message as a payment notice when no
// explicit keyword filters are configured.
var defaultKeywords = []string{"payment", "received", "deposit", "transfer", "invoice"}

// fetchedMessage is one unseen message pulled off the server.
type fetchedMessage struct {
	uid       imap.UID
	messageID string
	subject   string
	from      string
	date      time.Time
	body      []byte // raw RFC 822 message
}

// fetchFunc retrieves unseen messages. Injected so tests can exercise the
// source without an IMAP server.
type fetchFunc func(ctx context.Context) ([]fetchedMessage, error)

// markSeenFunc flags the given messages \Seen on the server. Injected for
// the same reason.
type markSeenFunc func(ctx context.Context, uids []imap.UID) error

// Source polls the mailbox and emits payment events.
type Source struct {
	cfg    config.MailboxConfig
	ledger types.Ledger
	logger *slog.Logger
	fetch  fetchFunc
	mark   markSeenFunc
}

var _ types.Source = (*Source)(nil)

// NewSource creates a mailbox Source. The ledger is consulted during Poll
// so messages whose alert was already delivered can be retired on the
// server; it may be nil, in which case delivered messages simply stay
// unseen and keep being filtered by the scheduler's own ledger check.
func NewSource(cfg config.MailboxConfig, delivered types.Ledger, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.KeywordFilters) == 0 {
		cfg.KeywordFilters = defaultKeywords
	}
	s := &Source{cfg: cfg, ledger: delivered, logger: logger}
	s.fetch = s.fetchUnseen
	s.mark = s.markSeenOnServer
	return s
}

func (s *Source) Name() string { return SourceName }

func (s *Source) Enabled() bool { return s.cfg.Enabled() }

func (s *Source) Interval() time.Duration { return s.cfg.PollInterval }

// Poll fetches unseen messages and converts the ones that look like
// payment confirmations into events.
//
// Messages rejected by the sender or keyword filters, and messages the
// ledger already records as delivered, are marked seen so they are not
// re-examined every cycle. A message with a pending alert is left unseen;
// it must stay visible to the next poll until its delivery succeeds and
// the ledger is marked.
func (s *Source) Poll(ctx context.Context) ([]types.PaymentEvent, error) {
	msgs, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}

	var events []types.PaymentEvent
	var retired []imap.UID
	for _, msg := range msgs {
		if !matchesSender(msg.from, s.cfg.SenderFilters) {
			retired = append(retired, msg.uid)
			continue
		}
		text := extractPlainText(msg.body)
		if !containsKeyword(msg.subject+"\n"+text, s.cfg.KeywordFilters) {
			retired = append(retired, msg.uid)
			continue
		}

		ev := paymentEventFromMessage(msg, text)
		if s.ledger != nil {
			delivered, err := s.ledger.Seen(ctx, SourceName, ev.ID)
			if err != nil {
				s.logger.Warn("ledger lookup failed", "event_id", ev.ID, "error", err)
			} else if delivered {
				retired = append(retired, msg.uid)
				continue
			}
		}
		events = append(events, ev)
	}

	if len(retired) > 0 {
		if err := s.mark(ctx, retired); err != nil {
			s.logger.Warn("failed to mark messages seen", "error", err)
		}
	}

	s.logger.Debug("mailbox poll complete",
		"fetched", len(msgs),
		"pending", len(events),
		"retired", len(retired),
	)
	return events, nil
}

func paymentEventFromMessage(msg fetchedMessage, text string) types.PaymentEvent {
	amount, currency := extractAmount(msg.subject + "\n" + text)
	occurred := msg.date
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	return types.PaymentEvent{
		ID:       "mail:" + messageKey(msg),
		Kind:     types.EventKindEmail,
		Amount:   amount,
		Currency: currency,
		Detail:   msg.subject,
		Occurred: occurred.UTC(),
		Extra: map[string]string{
			"from": msg.from,
		},
	}
}

// messageKey prefers the Message-ID header; messages without one fall back
// to a subject+date composite so they still dedup across polls.
func messageKey(msg fetchedMessage) string {
	if msg.messageID != "" {
		return msg.messageID
	}
	return fmt.Sprintf("%s|%d", msg.subject, msg.date.Unix())
}

// withSession runs fn against a fresh authenticated session on the
// configured mailbox. The connection is closed on every path.
func (s *Source) withSession(ctx context.Context, fn func(client *imapclient.Client) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	client, err := imapclient.DialTLS(addr, nil)
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamMailbox, "imap dial failed", err)
	}
	defer client.Close()
	defer func() {
		if err := client.Logout().Wait(); err != nil {
			s.logger.Debug("imap logout failed", "error", err)
		}
	}()

	if err := client.Login(s.cfg.User, s.cfg.Password.Unmask()).Wait(); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamMailbox, "imap login failed", err)
	}
	if _, err := client.Select(s.cfg.Mailbox, nil).Wait(); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamMailbox, "imap select failed", err)
	}

	return fn(client)
}

// fetchUnseen pulls every unseen message in the configured mailbox. The
// body fetch uses BODY.PEEK so the fetch itself never flips \Seen; seen
// state is advanced only by markSeenOnServer once retry is ruled out.
func (s *Source) fetchUnseen(ctx context.Context) ([]fetchedMessage, error) {
	var msgs []fetchedMessage
	err := s.withSession(ctx, func(client *imapclient.Client) error {
		criteria := &imap.SearchCriteria{NotFlag: []imap.Flag{imap.FlagSeen}}
		searchData, err := client.UIDSearch(criteria, nil).Wait()
		if err != nil {
			return types.NewAppError(types.ErrCodeUpstreamMailbox, "imap search failed", err)
		}
		uids := searchData.AllUIDs()
		if len(uids) == 0 {
			return nil
		}

		bodySection := &imap.FetchItemBodySection{Peek: true}
		fetchOptions := &imap.FetchOptions{
			UID:         true,
			Envelope:    true,
			BodySection: []*imap.FetchItemBodySection{bodySection},
		}
		buffers, err := client.Fetch(imap.UIDSetNum(uids...), fetchOptions).Collect()
		if err != nil {
			return types.NewAppError(types.ErrCodeUpstreamMailbox, "imap fetch failed", err)
		}

		msgs = make([]fetchedMessage, 0, len(buffers))
		for _, buf := range buffers {
			msg := fetchedMessage{
				uid:  buf.UID,
				body: buf.FindBodySection(bodySection),
			}
			if env := buf.Envelope; env != nil {
				msg.messageID = env.MessageID
				msg.subject = env.Subject
				msg.date = env.Date
				if len(env.From) > 0 {
					msg.from = env.From[0].Addr()
				}
			}
			msgs = append(msgs, msg)
		}
		return nil
	})
	return msgs, err
}

// markSeenOnServer flags the given messages \Seen.
func (s *Source) markSeenOnServer(ctx context.Context, uids []imap.UID) error {
	return s.withSession(ctx, func(client *imapclient.Client) error {
		storeFlags := &imap.StoreFlags{
			Op:     imap.StoreFlagsAdd,
			Flags:  []imap.Flag{imap.FlagSeen},
			Silent: true,
		}
		if err := client.Store(imap.UIDSetNum(uids...), storeFlags, nil).Close(); err != nil {
			return types.NewAppError(types.ErrCodeUpstreamMailbox, "imap store failed", err)
		}
		return nil
	})
}
