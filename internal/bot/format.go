package bot

import (
	"fmt"
	"strings"

	"github.com/velden/playerok-bridge/internal/playerok"
	"github.com/velden/playerok-bridge/internal/runner"
)

const replyCallbackPrefix = "reply:"

// chatLink returns the marketplace web URL of a chat.
func chatLink(chatID string) string {
	return "https://playerok.com/chats/" + chatID
}

// replyCallbackData encodes a chat id into the inline-button callback payload.
func replyCallbackData(chatID string) string {
	return replyCallbackPrefix + chatID
}

// parseReplyCallback extracts the chat id from a callback payload.
func parseReplyCallback(data string) (string, bool) {
	if !strings.HasPrefix(data, replyCallbackPrefix) {
		return "", false
	}
	chatID := strings.TrimPrefix(data, replyCallbackPrefix)
	if chatID == "" {
		return "", false
	}
	return chatID, true
}

// systemCaptions are the human renderings of system message types, in the
// marketplace's own wording.
var systemCaptions = map[playerok.MessageType]string{
	playerok.TypeItemPaid:                   "💰 Товар оплачен",
	playerok.TypeItemSent:                   "📦 Товар отправлен",
	playerok.TypeDealConfirmed:              "✅ Сделка подтверждена",
	playerok.TypeDealConfirmedAutomatically: "✅ Сделка подтверждена автоматически",
	playerok.TypeDealRolledBack:             "↩️ Сделка возвращена",
	playerok.TypeDealHasProblem:             "⚠️ Проблема в сделке",
	playerok.TypeDealProblemResolved:        "✔️ Проблема решена",
}

// formatEvent renders a runner event as the Telegram notification text.
func formatEvent(ev runner.NewMessageEvent) string {
	msg := ev.Message

	var b strings.Builder
	if caption, ok := systemCaptions[msg.Type]; ok {
		b.WriteString(caption)
		b.WriteString("\n")
	}

	username := "Неизвестный"
	if msg.User != nil && msg.User.Username != "" {
		username = msg.User.Username
	}

	switch {
	case msg.Type == playerok.TypeMedia:
		fmt.Fprintf(&b, "👤 %s отправил файл", username)
	case msg.Type.IsSystem():
		if deal := dealSummary(msg); deal != "" {
			b.WriteString(deal)
		}
	default:
		fmt.Fprintf(&b, "👤 %s: %s", username, msg.Text)
	}

	return strings.TrimRight(b.String(), "\n")
}

// photoURL returns the attachment URL to relay as a photo, empty when the
// message carries no file. Messages with both text and a file keep the text
// as the photo caption.
func photoURL(msg playerok.Message) string {
	if msg.File == nil {
		return ""
	}
	return msg.File.URL
}

// dealSummary renders the item line attached to a system message, empty when
// the deal payload is absent or unrecognized.
func dealSummary(msg playerok.Message) string {
	if msg.Deal == nil || msg.Deal.Kind != playerok.DealKindItem || msg.Deal.Item == nil {
		return ""
	}
	item := msg.Deal.Item
	if item.ItemName == "" {
		return ""
	}
	return fmt.Sprintf("🛒 %s — %.0f ₽", item.ItemName, item.ItemPrice)
}
