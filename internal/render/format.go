// Package render turns job records into Telegram-ready HTML text and
// splits grouped output into bounded-length message chunks.
package render

import (
	"fmt"
	"html"
	"strings"

	"jobalertbot/internal/jobs"
	"jobalertbot/internal/transport"
)

// MaxMessageLen is the per-message character budget. Telegram caps
// messages at 4096; leave headroom for markup.
const MaxMessageLen = 4000

// DefaultSubstitution replaces blank detail fields.
const DefaultSubstitution = "Refer official ad"

type Config struct {
	// DateFormats are the accepted input layouts for last-dates.
	DateFormats []string
	// OutputDateFormat is the layout dates are rendered in.
	OutputDateFormat string
	// DefaultSubstitution replaces blank age/qualification/experience.
	DefaultSubstitution string
	// MaxMessageLen overrides the chunking budget (tests use small values).
	MaxMessageLen int
}

func (c Config) outputFormat() string {
	if c.OutputDateFormat != "" {
		return c.OutputDateFormat
	}
	return jobs.DefaultOutputFormat
}

func (c Config) substitution() string {
	if c.DefaultSubstitution != "" {
		return c.DefaultSubstitution
	}
	return DefaultSubstitution
}

func (c Config) maxLen() int {
	if c.MaxMessageLen > 0 {
		return c.MaxMessageLen
	}
	return MaxMessageLen
}

// JobBlock renders one job as an HTML text block. The last-date is
// reformatted when it parses and passed through raw otherwise.
func JobBlock(r jobs.Record, cfg Config) string {
	dateText := r.LastDate
	if ld, ok := jobs.ParseDate(r.LastDate, cfg.DateFormats); ok {
		dateText = ld.Format(cfg.outputFormat())
	}

	title := r.Title
	if strings.TrimSpace(title) == "" {
		title = "Untitled Job"
	}
	sub := cfg.substitution()

	var b strings.Builder
	fmt.Fprintf(&b, "🔔 <b>%s</b>\n", esc(title))
	fmt.Fprintf(&b, "🗓 <b>Last Date:</b> %s\n", esc(dateText))
	fmt.Fprintf(&b, "🎯 <b>Age Limit:</b> %s\n", esc(orSub(r.AgeLimit, sub)))
	fmt.Fprintf(&b, "🎓 <b>Qualification:</b> %s\n", esc(orSub(r.Qualification, sub)))
	fmt.Fprintf(&b, "💼 <b>Experience:</b> %s", esc(orSub(r.Experience, sub)))
	if link := strings.TrimSpace(r.ApplyLink); link != "" {
		fmt.Fprintf(&b, "\n🔗 <a href=\"%s\">Apply Here</a>", esc(link))
	}
	return b.String()
}

// SplitMessages concatenates job blocks under a source header into chunks
// that stay within the message budget. At least one chunk is always
// produced, even for an empty group (header only). Only the first chunk
// carries the header.
func SplitMessages(source string, records []jobs.Record, cfg Config) []string {
	maxLen := cfg.maxLen()
	var messages []string
	current := fmt.Sprintf("📌 <b>%s</b>\n\n", esc(source))
	for _, r := range records {
		block := JobBlock(r, cfg)
		if len(current)+len(block)+2 > maxLen {
			messages = append(messages, strings.TrimSpace(current))
			current = block + "\n\n"
		} else {
			current += block + "\n\n"
		}
	}
	if strings.TrimSpace(current) != "" {
		messages = append(messages, strings.TrimSpace(current))
	}
	return messages
}

// PremiumTeaser is the fixed upsell notice appended after free-tier
// deliveries.
func PremiumTeaser() string {
	return "ℹ️ <b>You are on Free Plan</b>\n\n" +
		"👉 Use /start to get the latest job details (limited list).\n" +
		"👉 Use /resendall to re-check jobs (limits apply).\n\n" +
		"🔒 Want ALL jobs without limits?\n" +
		"👉 Use /subscribe to unlock Premium!"
}

// FooterKeyboard is the inline keyboard attached under job messages.
func FooterKeyboard(botURL string) [][]transport.Button {
	var rows [][]transport.Button
	if strings.TrimSpace(botURL) != "" {
		rows = append(rows, []transport.Button{{Text: "🔗 Share this bot", URL: botURL}})
	}
	rows = append(rows, []transport.Button{{Text: "⭐ Upgrade to Premium", Data: "subscribe"}})
	return rows
}

func orSub(v, sub string) string {
	if strings.TrimSpace(v) == "" {
		return sub
	}
	return v
}

func esc(s string) string { return html.EscapeString(s) }
