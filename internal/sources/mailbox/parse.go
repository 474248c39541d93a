package mailbox

import (
	"bytes"
	"io"
	"regexp"
	"strings"

	"github.com/emersion/go-message/mail"
)

// amountPattern matches a currency marker next to a number, e.g. "$25.00",
// "EUR 10", "12.50 USD". The marker may precede or follow the number.
var amountPattern = regexp.MustCompile(
	`(?i)(USD|EUR|GBP|\$|€|£)\s?([0-9]+(?:[.,][0-9]{1,2})?)|([0-9]+(?:[.,][0-9]{1,2})?)\s?(USD|EUR|GBP)`)

var currencySymbols = map[string]string{
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
}

// extractPlainText pulls the text/plain part out of a raw RFC 822 message.
// Multipart messages yield their first text/plain part; a single-part
// message yields its body. HTML-only messages fall back to the raw HTML so
// keyword matching still has something to look at.
func extractPlainText(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return string(raw)
	}

	var htmlFallback string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := header.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}
		switch contentType {
		case "text/plain":
			return string(body)
		case "text/html":
			if htmlFallback == "" {
				htmlFallback = string(body)
			}
		}
	}
	return htmlFallback
}

// matchesSender reports whether the from address matches any configured
// sender filter. Filters are case-insensitive substrings; an empty filter
// list matches every sender.
func matchesSender(from string, filters []string) bool {
	if len(filters) == 0 {
		return true
	}
	from = strings.ToLower(from)
	for _, f := range filters {
		if f == "" {
			continue
		}
		if strings.Contains(from, strings.ToLower(f)) {
			return true
		}
	}
	return false
}

// containsKeyword reports whether the text contains any configured keyword,
// case-insensitively. An empty keyword list matches everything.
func containsKeyword(text string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	text = strings.ToLower(text)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// extractAmount finds the first currency-marked amount in the text. It
// returns empty strings when nothing matches; the formatter degrades to
// "Unknown" in that case.
func extractAmount(text string) (amount, currency string) {
	m := amountPattern.FindStringSubmatch(text)
	if m == nil {
		return "", ""
	}
	if m[1] != "" {
		return normalizeAmount(m[2]), normalizeCurrency(m[1])
	}
	return normalizeAmount(m[3]), normalizeCurrency(m[4])
}

func normalizeAmount(s string) string {
	return strings.ReplaceAll(s, ",", ".")
}

func normalizeCurrency(s string) string {
	if code, ok := currencySymbols[s]; ok {
		return code
	}
	return strings.ToUpper(s)
}
