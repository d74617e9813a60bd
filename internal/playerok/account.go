package playerok

import (
	"context"
	"fmt"

	"github.com/velden/playerok-bridge/internal/logger"
)

// Caller is the transport surface the facade needs. Satisfied by *Transport;
// tests substitute fakes.
type Caller interface {
	Call(ctx context.Context, op Operation) (map[string]any, error)
	Upload(ctx context.Context, op Operation, path string) (map[string]any, error)
}

// Account exposes high-level marketplace operations on top of the transport
// and decoders. It adds no retries of its own: retry policy lives in the
// transport, and stacking another layer would amplify duplicates.
type Account struct {
	tp       Caller
	log      *logger.Logger
	userID   string
	msgLimit int
}

// NewAccount creates an account facade over the given transport.
func NewAccount(tp Caller, log *logger.Logger) *Account {
	if log == nil {
		log = logger.Get()
	}
	return &Account{tp: tp, log: log, msgLimit: defaultMessageLimit}
}

const defaultMessageLimit = 100

// SetMessagesLimit overrides the default page size used by ChatMessages when
// the caller passes no limit. Non-positive values are ignored.
func (a *Account) SetMessagesLimit(n int) {
	if n > 0 {
		a.msgLimit = n
	}
}

// Init fetches the viewer profile and remembers the account's user id, which
// listing filters require. Call once before the listing operations.
func (a *Account) Init(ctx context.Context) (UserProfile, error) {
	profile, err := a.Viewer(ctx)
	if err != nil {
		return UserProfile{}, err
	}
	a.userID = profile.ID
	return profile, nil
}

// UserID returns the id learned by Init, empty before it.
func (a *Account) UserID() string { return a.userID }

// Viewer fetches the profile of the account owning the token.
func (a *Account) Viewer(ctx context.Context) (UserProfile, error) {
	data, err := a.tp.Call(ctx, Operation{
		Name:      "viewer",
		Query:     queryViewer,
		Variables: map[string]any{},
	})
	if err != nil {
		return UserProfile{}, err
	}
	return DecodeUserProfile(data["viewer"])
}

// UserProfile fetches another user's public profile by username.
func (a *Account) UserProfile(ctx context.Context, username string) (UserProfile, error) {
	data, err := a.tp.Call(ctx, Operation{
		Name:      "user",
		Query:     queryUser,
		Variables: map[string]any{"username": username},
	})
	if err != nil {
		return UserProfile{}, err
	}
	return DecodeUserProfile(data["user"])
}

// ListChats fetches one page of the account's chats.
func (a *Account) ListChats(ctx context.Context, count int) (ChatPage, error) {
	data, err := a.tp.Call(ctx, Operation{
		Name:  "chats",
		Query: queryChats,
		Variables: map[string]any{
			"pagination": map[string]any{"first": count},
			"filter":     map[string]any{"userId": a.userID},
		},
	})
	if err != nil {
		return ChatPage{}, err
	}
	return DecodeChatPage(data["chats"])
}

// ListUnreadChats returns the ids of chats with unread messages, in listing
// order. The ids are ephemeral: recompute them every poll cycle.
func (a *Account) ListUnreadChats(ctx context.Context) ([]string, error) {
	page, err := a.ListChats(ctx, defaultChatPageSize)
	if err != nil {
		return nil, err
	}

	var unread []string
	for _, chat := range page.Chats {
		if chat.UnreadMessagesCounter > 0 {
			unread = append(unread, chat.ID)
		}
	}
	return unread, nil
}

const defaultChatPageSize = 10

// GetChat fetches a single chat snapshot.
func (a *Account) GetChat(ctx context.Context, chatID string) (Chat, error) {
	data, err := a.tp.Call(ctx, Operation{
		Name:      "chat",
		Query:     queryChat,
		Variables: map[string]any{"id": chatID},
	})
	if err != nil {
		return Chat{}, err
	}
	return DecodeChat(data["chat"])
}

// ChatMessages fetches the newest limit messages of a chat and returns them
// in chronological order (oldest first). The API pages newest-first; the
// reversal here is the contract the poller relies on.
func (a *Account) ChatMessages(ctx context.Context, chatID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = a.msgLimit
	}
	data, err := a.tp.Call(ctx, Operation{
		Name:  "chatMessages",
		Query: queryChatMessages,
		Variables: map[string]any{
			"pagination": map[string]any{"first": limit},
			"filter":     map[string]any{"chatId": chatID},
		},
	})
	if err != nil {
		return nil, err
	}

	messages, err := DecodeMessagePage(data["chatMessages"])
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// MarkChatRead marks a single chat and all its messages as read.
func (a *Account) MarkChatRead(ctx context.Context, chatID string) error {
	_, err := a.tp.Call(ctx, Operation{
		Name:  "markChatAsRead",
		Query: mutationMarkChatAsRead,
		Variables: map[string]any{
			"input": map[string]any{"chatId": chatID},
		},
	})
	return err
}

// MarkChatsRead marks a batch of chats as read, one request per id: the API
// has no batch primitive. Not atomic — a failure mid-batch leaves earlier
// chats read and later ones not, and returns the first error.
func (a *Account) MarkChatsRead(ctx context.Context, chatIDs []string) error {
	for _, id := range chatIDs {
		if err := a.MarkChatRead(ctx, id); err != nil {
			return fmt.Errorf("mark chat %s read: %w", id, err)
		}
	}
	return nil
}

// SendMessage posts a text message into a chat and returns the created
// message.
func (a *Account) SendMessage(ctx context.Context, chatID, text string) (Message, error) {
	data, err := a.tp.Call(ctx, Operation{
		Name:  "createChatMessage",
		Query: mutationCreateChatMessage,
		Variables: map[string]any{
			"input": map[string]any{"chatId": chatID, "text": text},
		},
	})
	if err != nil {
		return Message{}, err
	}
	return DecodeMessage(data["createChatMessage"])
}

// SendImage uploads a local image file into a chat via the multipart form
// and returns the created message.
func (a *Account) SendImage(ctx context.Context, chatID, path string) (Message, error) {
	data, err := a.tp.Upload(ctx, Operation{
		Name:  "createChatMessage",
		Query: mutationCreateChatMessage,
		Variables: map[string]any{
			"input": map[string]any{"chatId": chatID},
			"file":  nil,
		},
	}, path)
	if err != nil {
		return Message{}, err
	}
	return DecodeMessage(data["createChatMessage"])
}

// Item fetches a listing by slug.
func (a *Account) Item(ctx context.Context, slug string) (Item, error) {
	data, err := a.tp.Call(ctx, Operation{
		Name:      "item",
		Query:     queryItem,
		Variables: map[string]any{"slug": slug},
	})
	if err != nil {
		return Item{}, err
	}
	return DecodeItem(data["item"])
}

// ItemUpdate carries the editable listing fields; nil means leave unchanged.
type ItemUpdate struct {
	Name        *string
	Description *string
	Comment     *string
	Price       *float64
}

// UpdateItem edits a listing and returns its new state.
func (a *Account) UpdateItem(ctx context.Context, itemID string, upd ItemUpdate) (Item, error) {
	input := map[string]any{
		"id":         itemID,
		"dataFields": []any{},
	}
	if upd.Name != nil {
		input["name"] = *upd.Name
	}
	if upd.Description != nil {
		input["description"] = *upd.Description
	}
	if upd.Comment != nil {
		input["comment"] = *upd.Comment
	}
	if upd.Price != nil {
		input["price"] = *upd.Price
	}

	data, err := a.tp.Call(ctx, Operation{
		Name:  "updateItem",
		Query: mutationUpdateItem,
		Variables: map[string]any{
			"input":            input,
			"addedAttachments": nil,
		},
	})
	if err != nil {
		return Item{}, err
	}
	return DecodeItem(data["updateItem"])
}

// RemoveItem deletes a listing and returns its final state.
func (a *Account) RemoveItem(ctx context.Context, itemID string) (Item, error) {
	data, err := a.tp.Call(ctx, Operation{
		Name:      "removeItem",
		Query:     mutationRemoveItem,
		Variables: map[string]any{"id": itemID},
	})
	if err != nil {
		return Item{}, err
	}
	return DecodeItem(data["removeItem"])
}

// CountItems returns the number of listings on the account.
func (a *Account) CountItems(ctx context.Context) (int, error) {
	data, err := a.tp.Call(ctx, Operation{
		Name:  "countItems",
		Query: queryCountItems,
		Variables: map[string]any{
			"filter": map[string]any{"userId": a.userID},
		},
	})
	if err != nil {
		return 0, err
	}

	var derr error
	r := newReader("countItems", data, &derr)
	n := r.Int("countItems")
	if derr != nil {
		return 0, derr
	}
	return n, nil
}

// ListItems fetches one page of the account's active listings.
func (a *Account) ListItems(ctx context.Context, count int) (ItemPage, error) {
	data, err := a.tp.Call(ctx, Operation{
		Name:  "items",
		Query: queryItems,
		Variables: map[string]any{
			"pagination": map[string]any{"first": count},
			"filter": map[string]any{
				"userId": a.userID,
				"status": []string{"APPROVED", "PENDING_MODERATION", "PENDING_APPROVAL"},
			},
		},
	})
	if err != nil {
		return ItemPage{}, err
	}
	return DecodeItemPage(data["items"])
}

// UpdateDeal moves a deal to the given status: DealStatusSent confirms the
// order, DealStatusRolledBack refunds it.
func (a *Account) UpdateDeal(ctx context.Context, dealID, status string) error {
	if status != DealStatusSent && status != DealStatusRolledBack {
		return fmt.Errorf("unsupported deal status: %s", status)
	}
	_, err := a.tp.Call(ctx, Operation{
		Name:  "updateDeal",
		Query: mutationUpdateDeal,
		Variables: map[string]any{
			"input": map[string]any{"id": dealID, "status": status},
		},
	})
	return err
}
