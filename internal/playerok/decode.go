package playerok

import "encoding/json"

// reader walks a decoded JSON object with defaulting semantics: a missing or
// null field yields its zero value, a field of the wrong type records a
// DecodeError. The first error sticks; decode functions check Err() once at
// the end. The API's optional-field behavior is inconsistent, so absence is
// never an error here.
type reader struct {
	m    map[string]any
	path string
	err  *error
}

func newReader(path string, v any, errSlot *error) *reader {
	r := &reader{path: path, err: errSlot}
	switch t := v.(type) {
	case nil:
		r.m = map[string]any{}
	case map[string]any:
		r.m = t
	default:
		r.fail(path, "object", v)
		r.m = map[string]any{}
	}
	return r
}

func (r *reader) fail(path, want string, got any) {
	if *r.err == nil {
		*r.err = &DecodeError{Path: path, Want: want, Got: got}
	}
}

func (r *reader) key(k string) string {
	if r.path == "" {
		return k
	}
	return r.path + "." + k
}

// Str returns a string field, "" when missing or null.
func (r *reader) Str(k string) string {
	v, ok := r.m[k]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		r.fail(r.key(k), "string", v)
		return ""
	}
	return s
}

// Int returns an integer field, 0 when missing or null. JSON numbers arrive
// as float64.
func (r *reader) Int(k string) int {
	v, ok := r.m[k]
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			r.fail(r.key(k), "int", v)
			return 0
		}
		return int(i)
	default:
		r.fail(r.key(k), "int", v)
		return 0
	}
}

// Float returns a numeric field, 0 when missing or null.
func (r *reader) Float(k string) float64 {
	v, ok := r.m[k]
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			r.fail(r.key(k), "number", v)
			return 0
		}
		return f
	default:
		r.fail(r.key(k), "number", v)
		return 0
	}
}

// Bool returns a boolean field, false when missing or null.
func (r *reader) Bool(k string) bool {
	v, ok := r.m[k]
	if !ok || v == nil {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		r.fail(r.key(k), "bool", v)
		return false
	}
	return b
}

// Has reports whether a field is present and non-null.
func (r *reader) Has(k string) bool {
	v, ok := r.m[k]
	return ok && v != nil
}

// Raw returns the undecoded field value.
func (r *reader) Raw(k string) any {
	return r.m[k]
}

// Obj descends into an object field. Missing or null yields a reader over an
// empty object, so chained access still defaults.
func (r *reader) Obj(k string) *reader {
	return newReader(r.key(k), r.m[k], r.err)
}

// List returns readers over an array-of-objects field, nil when missing.
func (r *reader) List(k string) []*reader {
	v, ok := r.m[k]
	if !ok || v == nil {
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		r.fail(r.key(k), "array", v)
		return nil
	}
	out := make([]*reader, 0, len(items))
	for _, item := range items {
		out = append(out, newReader(r.key(k), item, r.err))
	}
	return out
}

func decodeUserFragment(r *reader) UserFragment {
	return UserFragment{
		ID:                 r.Str("id"),
		Username:           r.Str("username"),
		Role:               r.Str("role"),
		AvatarURL:          r.Str("avatarURL"),
		IsOnline:           r.Bool("isOnline"),
		IsBlocked:          r.Bool("isBlocked"),
		Rating:             r.Float("rating"),
		TestimonialCounter: r.Int("testimonialCounter"),
		CreatedAt:          r.Str("createdAt"),
		SupportChatID:      r.Str("supportChatId"),
		SystemChatID:       r.Str("systemChatId"),
	}
}

func decodeUserRef(r *reader, k string) *UserFragment {
	if !r.Has(k) {
		return nil
	}
	u := decodeUserFragment(r.Obj(k))
	return &u
}

func decodeFile(r *reader) File {
	return File{
		ID:       r.Str("id"),
		URL:      r.Str("url"),
		Filename: r.Str("filename"),
		MIME:     r.Str("mime"),
	}
}

func decodeItemDeal(r *reader) ItemDeal {
	item := r.Obj("item")
	return ItemDeal{
		ID:                r.Str("id"),
		Direction:         r.Str("direction"),
		Status:            r.Str("status"),
		StatusDescription: r.Str("statusDescription"),
		HasProblem:        r.Bool("hasProblem"),
		ItemID:            item.Str("id"),
		ItemName:          item.Str("name"),
		ItemPrice:         item.Float("price"),
		User:              decodeUserRef(r, "user"),
	}
}

// decodeDealRef keeps the raw payload when the deal object does not carry the
// recognized ItemDeal shape.
func decodeDealRef(r *reader, k string) *DealRef {
	if !r.Has(k) {
		return nil
	}
	raw := r.Raw(k)
	obj, ok := raw.(map[string]any)
	if !ok {
		return &DealRef{Kind: DealKindOpaque, Raw: raw}
	}
	if _, hasID := obj["id"]; !hasID {
		return &DealRef{Kind: DealKindOpaque, Raw: raw}
	}
	deal := decodeItemDeal(r.Obj(k))
	return &DealRef{Kind: DealKindItem, Item: &deal}
}

// DecodeMessage converts a raw chat-message payload into a Message,
// classifying its type from the text and file presence.
func DecodeMessage(v any) (Message, error) {
	var err error
	r := newReader("message", v, &err)

	msg := Message{
		ID:              r.Str("id"),
		Text:            r.Str("text"),
		CreatedAt:       r.Str("createdAt"),
		DeletedAt:       r.Str("deletedAt"),
		IsRead:          r.Bool("isRead"),
		IsSuspicious:    r.Bool("isSuspicious"),
		IsBulkMessaging: r.Bool("isBulkMessaging"),
		IsAutoResponse:  r.Bool("isAutoResponse"),
		Event:           r.Str("event"),
		User:            decodeUserRef(r, "user"),
		Deal:            decodeDealRef(r, "deal"),
	}
	if r.Has("file") {
		f := decodeFile(r.Obj("file"))
		msg.File = &f
	}
	msg.Type = Classify(msg.Text, msg.File != nil)

	if err != nil {
		return Message{}, err
	}
	return msg, nil
}

// DecodeChat converts a raw chat payload into a Chat.
func DecodeChat(v any) (Chat, error) {
	var err error
	r := newReader("chat", v, &err)

	chat := Chat{
		ID:                    r.Str("id"),
		Type:                  r.Str("type"),
		Status:                r.Str("status"),
		UnreadMessagesCounter: r.Int("unreadMessagesCounter"),
		Bookmarked:            r.Bool("bookmarked"),
		IsTextingAllowed:      r.Bool("isTextingAllowed"),
		Owner:                 decodeUserRef(r, "owner"),
		StartedAt:             r.Str("startedAt"),
		FinishedAt:            r.Str("finishedAt"),
	}
	for _, pr := range r.List("participants") {
		chat.Participants = append(chat.Participants, decodeUserFragment(pr))
	}
	for _, dr := range r.List("deals") {
		chat.Deals = append(chat.Deals, decodeItemDeal(dr))
	}
	if r.Has("lastMessage") {
		last, merr := DecodeMessage(r.Raw("lastMessage"))
		if merr != nil {
			return Chat{}, merr
		}
		chat.LastMessage = &last
	}

	if err != nil {
		return Chat{}, err
	}
	return chat, nil
}

func decodePageInfo(r *reader) PageInfo {
	return PageInfo{
		StartCursor:     r.Str("startCursor"),
		EndCursor:       r.Str("endCursor"),
		HasPreviousPage: r.Bool("hasPreviousPage"),
		HasNextPage:     r.Bool("hasNextPage"),
	}
}

// DecodeChatPage converts a raw chats listing (relay edges) into a ChatPage.
// Edge order is preserved exactly as returned.
func DecodeChatPage(v any) (ChatPage, error) {
	var err error
	r := newReader("chats", v, &err)

	page := ChatPage{
		PageInfo:   decodePageInfo(r.Obj("pageInfo")),
		TotalCount: r.Int("totalCount"),
	}
	for _, edge := range r.List("edges") {
		chat, cerr := DecodeChat(edge.Raw("node"))
		if cerr != nil {
			return ChatPage{}, cerr
		}
		page.Chats = append(page.Chats, chat)
	}

	if err != nil {
		return ChatPage{}, err
	}
	return page, nil
}

// DecodeMessagePage converts a raw chatMessages listing into messages in the
// exact order returned (newest first, per the API). Reordering is the account
// facade's contract, not the decoder's.
func DecodeMessagePage(v any) ([]Message, error) {
	var err error
	r := newReader("chatMessages", v, &err)

	var messages []Message
	for _, edge := range r.List("edges") {
		msg, merr := DecodeMessage(edge.Raw("node"))
		if merr != nil {
			return nil, merr
		}
		messages = append(messages, msg)
	}

	if err != nil {
		return nil, err
	}
	return messages, nil
}

// DecodeUserProfile converts a raw viewer/user payload into a UserProfile.
func DecodeUserProfile(v any) (UserProfile, error) {
	var err error
	r := newReader("user", v, &err)

	profile := UserProfile{
		ID:                 r.Str("id"),
		Username:           r.Str("username"),
		Email:              r.Str("email"),
		Role:               r.Str("role"),
		IsBlocked:          r.Bool("isBlocked"),
		HasFrozenBalance:   r.Bool("hasFrozenBalance"),
		SupportChatID:      r.Str("supportChatId"),
		SystemChatID:       r.Str("systemChatId"),
		UnreadChatsCounter: r.Int("unreadChatsCounter"),
		CreatedAt:          r.Str("createdAt"),
	}
	if r.Has("balance") {
		b := r.Obj("balance")
		profile.Balance = UserBalance{
			ID:            b.Str("id"),
			Value:         b.Float("value"),
			Frozen:        b.Float("frozen"),
			Available:     b.Float("available"),
			Withdrawable:  b.Float("withdrawable"),
			PendingIncome: b.Float("pendingIncome"),
		}
	}

	if err != nil {
		return UserProfile{}, err
	}
	return profile, nil
}

// DecodeItem converts a raw item payload into an Item.
func DecodeItem(v any) (Item, error) {
	var err error
	r := newReader("item", v, &err)

	item := Item{
		ID:          r.Str("id"),
		Slug:        r.Str("slug"),
		Name:        r.Str("name"),
		Description: r.Str("description"),
		Price:       r.Float("price"),
		RawPrice:    r.Float("rawPrice"),
		Status:      r.Str("status"),
		SellerType:  r.Str("sellerType"),
		Comment:     r.Str("comment"),
		CreatedAt:   r.Str("createdAt"),
		User:        decodeUserRef(r, "user"),
	}
	for _, ar := range r.List("attachments") {
		item.Attachments = append(item.Attachments, decodeFile(ar))
	}

	if err != nil {
		return Item{}, err
	}
	return item, nil
}

// DecodeItemPage converts a raw items listing into an ItemPage.
func DecodeItemPage(v any) (ItemPage, error) {
	var err error
	r := newReader("items", v, &err)

	page := ItemPage{
		PageInfo:   decodePageInfo(r.Obj("pageInfo")),
		TotalCount: r.Int("totalCount"),
	}
	for _, edge := range r.List("edges") {
		item, ierr := DecodeItem(edge.Raw("node"))
		if ierr != nil {
			return ItemPage{}, ierr
		}
		page.Items = append(page.Items, item)
	}

	if err != nil {
		return ItemPage{}, err
	}
	return page, nil
}

// DecodeTransaction converts a raw transaction payload into a Transaction.
func DecodeTransaction(v any) (Transaction, error) {
	var err error
	r := newReader("transaction", v, &err)

	tx := Transaction{
		ID:        r.Str("id"),
		Operation: r.Str("operation"),
		Direction: r.Str("direction"),
		Status:    r.Str("status"),
		Value:     r.Float("value"),
		Fee:       r.Float("fee"),
		CreatedAt: r.Str("createdAt"),
	}

	if err != nil {
		return Transaction{}, err
	}
	return tx, nil
}
