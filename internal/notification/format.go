package notification

import (
	"fmt"
	"strings"

	"otc-signal-bot/internal/database"
	"otc-signal-bot/internal/market"
)

// markdownEscaper escapes the characters Telegram's legacy Markdown treats as entities
var markdownEscaper = strings.NewReplacer(
	"_", "\\_",
	"*", "\\*",
	"`", "\\`",
	"[", "\\[",
)

// EscapeMarkdown escapes dynamic text for parse_mode=Markdown
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// PairLabel renders a pair with its OTC tag, e.g. "EUR/USD (OTC)"
func PairLabel(pair string) string {
	if market.IsOTC(pair) {
		return market.BaseSymbol(pair) + " (OTC)"
	}
	return pair
}

func directionEmoji(direction string) (string, string) {
	if direction == database.DirectionPut {
		return "🔴", "⬇️"
	}
	return "🟢", "⬆️"
}

// SignalTitle is the short headline used by push channels
func SignalTitle(s *database.Signal) string {
	dot, _ := directionEmoji(s.Direction)
	return fmt.Sprintf("%s %s %s", dot, s.Direction, PairLabel(s.Pair))
}

// PlainSignal is the unformatted one-line summary of a signal
func PlainSignal(s *database.Signal) string {
	return fmt.Sprintf("%s %s at %s UTC for %d min, probability %.1f%%",
		s.Direction, PairLabel(s.Pair), s.EntryTime.UTC().Format("15:04"), s.DurationMinutes, s.Probability)
}

// FormatSignal builds the Telegram Markdown message for a new signal
func FormatSignal(s *database.Signal) string {
	dot, arrow := directionEmoji(s.Direction)

	var b strings.Builder
	b.WriteString("📊 *NEW SIGNAL*")
	if s.Forced {
		b.WriteString(" (relaxed)")
	}
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "💱 Pair: *%s*\n", EscapeMarkdown(PairLabel(s.Pair)))
	fmt.Fprintf(&b, "%s Direction: *%s* %s\n", dot, s.Direction, arrow)
	fmt.Fprintf(&b, "⏰ Entry: *%s UTC*\n", s.EntryTime.UTC().Format("15:04"))
	fmt.Fprintf(&b, "⌛ Expiry: *%d min*\n", s.DurationMinutes)
	fmt.Fprintf(&b, "🎯 Probability: *%.1f%%*\n", s.Probability)
	if s.Grade != "" {
		fmt.Fprintf(&b, "⭐ Quality: *%.1f* (%s)\n", s.QualityScore, EscapeMarkdown(s.Grade))
	}

	if len(s.Reasons) > 0 {
		b.WriteString("\n📝 Analysis:\n")
		for _, r := range s.Reasons {
			fmt.Fprintf(&b, "• %s\n", EscapeMarkdown(r))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func outcomeEmoji(status string) string {
	switch status {
	case database.StatusWin:
		return "✅"
	case database.StatusLoss:
		return "❌"
	default:
		return "➖"
	}
}

// OutcomeTitle is the short headline for a settled signal
func OutcomeTitle(s *database.Signal) string {
	return fmt.Sprintf("%s %s %s", outcomeEmoji(s.Status), s.Status, PairLabel(s.Pair))
}

// PlainOutcome is the unformatted summary of a settled signal
func PlainOutcome(s *database.Signal) string {
	msg := fmt.Sprintf("%s %s %s", s.Status, s.Direction, PairLabel(s.Pair))
	if s.ExitPrice != nil {
		msg += fmt.Sprintf(": %s -> %s", formatPrice(s.EntryPrice), formatPrice(*s.ExitPrice))
	}
	return msg
}

// FormatOutcome builds the Telegram Markdown message reporting WIN, LOSS or DRAW
func FormatOutcome(s *database.Signal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s *%s*\n\n", outcomeEmoji(s.Status), s.Status)
	fmt.Fprintf(&b, "💱 Pair: *%s*\n", EscapeMarkdown(PairLabel(s.Pair)))
	_, arrow := directionEmoji(s.Direction)
	fmt.Fprintf(&b, "Direction: *%s* %s\n", s.Direction, arrow)
	fmt.Fprintf(&b, "⏰ Entry: %s UTC, %d min\n", s.EntryTime.UTC().Format("15:04"), s.DurationMinutes)
	if s.ExitPrice != nil {
		fmt.Fprintf(&b, "💵 Price: %s → %s\n", formatPrice(s.EntryPrice), formatPrice(*s.ExitPrice))
	}
	fmt.Fprintf(&b, "🎯 Probability was %.1f%%", s.Probability)
	return b.String()
}

func formatPrice(p float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.5f", p), "0"), ".")
}
