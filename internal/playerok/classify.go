package playerok

import "strings"

// MessageType is the closed classification of a chat message.
type MessageType string

const (
	TypeNonSystem                  MessageType = "NON_SYSTEM"
	TypeDealHasProblem             MessageType = "DEAL_HAS_PROBLEM"
	TypeDealProblemResolved        MessageType = "DEAL_PROBLEM_RESOLVED"
	TypeDealConfirmed              MessageType = "DEAL_CONFIRMED"
	TypeItemSent                   MessageType = "ITEM_SENT"
	TypeDealRolledBack             MessageType = "DEAL_ROLLED_BACK"
	TypeDealConfirmedAutomatically MessageType = "DEAL_CONFIRMED_AUTOMATICALLY"
	TypeItemPaid                   MessageType = "ITEM_PAID"
	TypeMedia                      MessageType = "MEDIA"
)

// systemMarkers maps the fixed template markers the API embeds in system
// messages to their classification. Scan order is fixed; first match wins.
var systemMarkers = []struct {
	marker string
	typ    MessageType
}{
	{"{{DEAL_HAS_PROBLEM}}", TypeDealHasProblem},
	{"{{DEAL_PROBLEM_RESOLVED}}", TypeDealProblemResolved},
	{"{{DEAL_CONFIRMED}}", TypeDealConfirmed},
	{"{{ITEM_SENT}}", TypeItemSent},
	{"{{DEAL_ROLLED_BACK}}", TypeDealRolledBack},
	{"{{DEAL_CONFIRMED_AUTOMATICALLY}}", TypeDealConfirmedAutomatically},
	{"{{ITEM_PAID}}", TypeItemPaid},
}

// IsSystem reports whether the type is one of the system deal markers.
func (t MessageType) IsSystem() bool {
	return t != TypeNonSystem && t != TypeMedia
}

// Classify derives the message type from its text. A message with no text but
// an attached file classifies as media; anything without a known marker is a
// plain non-system message.
func Classify(text string, hasFile bool) MessageType {
	for _, m := range systemMarkers {
		if strings.Contains(text, m.marker) {
			return m.typ
		}
	}
	if text == "" && hasFile {
		return TypeMedia
	}
	return TypeNonSystem
}
