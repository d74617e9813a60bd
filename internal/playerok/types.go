// Package playerok is a client for the Playerok marketplace's private
// GraphQL API: a retrying transport with identity rotation, tolerant entity
// decoding and a high-level account facade.
package playerok

// UserFragment is the short user record embedded in chats, messages and items.
type UserFragment struct {
	ID                 string
	Username           string
	Role               string
	AvatarURL          string
	IsOnline           bool
	IsBlocked          bool
	Rating             float64
	TestimonialCounter int
	CreatedAt          string
	SupportChatID      string
	SystemChatID       string
}

// UserBalance is the viewer's balance breakdown.
type UserBalance struct {
	ID            string
	Value         float64
	Frozen        float64
	Available     float64
	Withdrawable  float64
	PendingIncome float64
}

// UserProfile is the account owner's profile as returned by the viewer query.
type UserProfile struct {
	ID                 string
	Username           string
	Email              string
	Role               string
	IsBlocked          bool
	HasFrozenBalance   bool
	SupportChatID      string
	SystemChatID       string
	UnreadChatsCounter int
	CreatedAt          string
	Balance            UserBalance
}

// File is an uploaded attachment reference.
type File struct {
	ID       string
	URL      string
	Filename string
	MIME     string
}

// DealKind discriminates DealRef variants.
type DealKind string

const (
	// DealKindItem is a recognized item deal shape.
	DealKindItem DealKind = "ITEM_DEAL"
	// DealKindOpaque is an unrecognized deal payload kept raw.
	DealKindOpaque DealKind = "OPAQUE"
)

// ItemDeal is the recognized deal shape attached to chat messages.
type ItemDeal struct {
	ID                string
	Direction         string
	Status            string
	StatusDescription string
	HasProblem        bool
	ItemID            string
	ItemName          string
	ItemPrice         float64
	User              *UserFragment
}

// DealRef is a tagged union over the polymorphic deal payloads embedded in
// messages: either a recognized ItemDeal or the raw payload untouched.
type DealRef struct {
	Kind DealKind
	Item *ItemDeal
	Raw  any
}

// Message is a single chat message.
//
// CreatedAt is an opaque server-assigned string, comparable only by the
// ordering the server returns. Text and File are "at least one present" for
// well-formed messages.
type Message struct {
	ID              string
	Text            string
	CreatedAt       string
	DeletedAt       string
	IsRead          bool
	IsSuspicious    bool
	IsBulkMessaging bool
	IsAutoResponse  bool
	Event           string
	File            *File
	User            *UserFragment
	Deal            *DealRef
	Type            MessageType
}

// Chat is a conversation snapshot, fetched fresh every poll cycle.
type Chat struct {
	ID                    string
	Type                  string
	Status                string
	UnreadMessagesCounter int
	Bookmarked            bool
	IsTextingAllowed      bool
	Owner                 *UserFragment
	Participants          []UserFragment
	Deals                 []ItemDeal
	LastMessage           *Message
	StartedAt             string
	FinishedAt            string
}

// PageInfo carries relay-style pagination metadata.
type PageInfo struct {
	StartCursor     string
	EndCursor       string
	HasPreviousPage bool
	HasNextPage     bool
}

// ChatPage is one page of the chats listing.
type ChatPage struct {
	Chats      []Chat
	PageInfo   PageInfo
	TotalCount int
}

// Item is a marketplace listing.
type Item struct {
	ID          string
	Slug        string
	Name        string
	Description string
	Price       float64
	RawPrice    float64
	Status      string
	SellerType  string
	Comment     string
	CreatedAt   string
	User        *UserFragment
	Attachments []File
}

// ItemPage is one page of the account's item listing.
type ItemPage struct {
	Items      []Item
	PageInfo   PageInfo
	TotalCount int
}

// Transaction is a payment record attached to deals.
type Transaction struct {
	ID        string
	Operation string
	Direction string
	Status    string
	Value     float64
	Fee       float64
	CreatedAt string
}

// Deal statuses accepted by UpdateDeal.
const (
	DealStatusSent       = "SENT"
	DealStatusRolledBack = "ROLLED_BACK"
)
