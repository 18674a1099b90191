package notify

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"announcement-radar/internal/domain"
)

const publishLayout = "2006-01-02 15:04 MST"

// FormatAnnouncement renders a Telegram HTML message. All dynamic text is escaped.
func FormatAnnouncement(a *domain.Announcement) string {
	var b strings.Builder

	fmt.Fprintf(&b, "<b>%s</b> | %s\n", esc(strings.ToUpper(a.Exchange)), esc(a.Type.Label()))
	fmt.Fprintf(&b, "%s\n", esc(a.Title))

	if tokens := formatTokens(a.Tokens); tokens != "" {
		fmt.Fprintf(&b, "\n<b>Tokens:</b> %s\n", esc(tokens))
	}
	if !a.PublishTime.IsZero() {
		fmt.Fprintf(&b, "<b>Published:</b> %s\n", esc(a.PublishTime.UTC().Format(publishLayout)))
	}
	if a.URL != "" {
		fmt.Fprintf(&b, "\n<a href=\"%s\">Read announcement</a>", strings.ReplaceAll(esc(a.URL), `"`, "&quot;"))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatTokens(tokens []domain.TokenCandidate) string {
	parts := make([]string, 0, len(tokens))
	for _, t := range tokens {
		switch {
		case t.Name != "" && t.Symbol != "":
			parts = append(parts, fmt.Sprintf("%s (%s)", t.Name, t.Symbol))
		case t.Symbol != "":
			parts = append(parts, t.Symbol)
		case t.Name != "":
			parts = append(parts, t.Name)
		}
	}
	return strings.Join(parts, ", ")
}

func esc(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeHTML, s)
}
