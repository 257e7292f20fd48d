package wire

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/matheus3301/convo/internal/chat"
)

// Field names shared by requests, responses and stream events.
const (
	FieldID             = "id"
	FieldConversationID = "conversation_id"
	FieldSenderID       = "sender_id"
	FieldSenderName     = "sender_name"
	FieldContent        = "content"
	FieldCreatedAt      = "created_at"
	FieldIsRead         = "is_read"
	FieldEdited         = "edited"
	FieldUserID         = "user_id"
	FieldUsername       = "username"
	FieldIsTyping       = "is_typing"
	FieldUpdatedAt      = "updated_at"
	FieldBefore         = "before"
	FieldLimit          = "limit"
	FieldKind           = "kind"
	FieldTopic          = "topic"
	FieldMessages       = "messages"
	FieldMessage        = "message"
	FieldRecords        = "records"
	FieldConversations  = "conversations"
	FieldParticipants   = "participants"
	FieldName           = "name"
	FieldLastMessage    = "last_message"
	FieldLastAt         = "last_at"
	FieldLink           = "link"
	FieldError          = "error"
)

// Subscription topics.
const (
	TopicMessages = "messages"
	TopicTyping   = "typing"
)

// Fields builds a Struct from already-encoded values.
func Fields(kv map[string]*structpb.Value) *structpb.Struct {
	return &structpb.Struct{Fields: kv}
}

func str(v string) *structpb.Value           { return structpb.NewStringValue(v) }
func num(v int64) *structpb.Value            { return structpb.NewNumberValue(float64(v)) }
func flag(v bool) *structpb.Value            { return structpb.NewBoolValue(v) }
func obj(s *structpb.Struct) *structpb.Value { return structpb.NewStructValue(s) }

// String returns a string field, "" when absent.
func String(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

// Int returns a numeric field truncated to int64, 0 when absent.
func Int(s *structpb.Struct, key string) int64 {
	return int64(s.GetFields()[key].GetNumberValue())
}

// Bool returns a boolean field, false when absent.
func Bool(s *structpb.Struct, key string) bool {
	return s.GetFields()[key].GetBoolValue()
}

// Has reports whether key is set.
func Has(s *structpb.Struct, key string) bool {
	_, ok := s.GetFields()[key]
	return ok
}

// List returns the struct elements of a list field.
func List(s *structpb.Struct, key string) []*structpb.Struct {
	vals := s.GetFields()[key].GetListValue().GetValues()
	out := make([]*structpb.Struct, 0, len(vals))
	for _, v := range vals {
		if sv := v.GetStructValue(); sv != nil {
			out = append(out, sv)
		}
	}
	return out
}

// ListValue wraps structs into a list value.
func ListValue(items []*structpb.Struct) *structpb.Value {
	vals := make([]*structpb.Value, len(items))
	for i, it := range items {
		vals[i] = obj(it)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: vals})
}

// EncodeMessage converts a stored message.
func EncodeMessage(m chat.Message) *structpb.Struct {
	return Fields(map[string]*structpb.Value{
		FieldID:             str(m.ID),
		FieldConversationID: str(m.ConversationID),
		FieldSenderID:       str(m.SenderID),
		FieldSenderName:     str(m.SenderName),
		FieldContent:        str(m.Content),
		FieldCreatedAt:      num(chat.Millis(m.CreatedAt)),
		FieldIsRead:         flag(m.IsRead),
		FieldEdited:         flag(m.Edited),
	})
}

// DecodeMessage is the inverse of EncodeMessage. Decoded messages are confirmed.
func DecodeMessage(s *structpb.Struct) chat.Message {
	return chat.Message{
		ID:             String(s, FieldID),
		ConversationID: String(s, FieldConversationID),
		SenderID:       String(s, FieldSenderID),
		SenderName:     String(s, FieldSenderName),
		Content:        String(s, FieldContent),
		CreatedAt:      chat.FromMillis(Int(s, FieldCreatedAt)),
		IsRead:         Bool(s, FieldIsRead),
		Edited:         Bool(s, FieldEdited),
		State:          chat.Confirmed,
	}
}

// EncodeMessages wraps a page of messages.
func EncodeMessages(msgs []chat.Message) *structpb.Struct {
	items := make([]*structpb.Struct, len(msgs))
	for i, m := range msgs {
		items[i] = EncodeMessage(m)
	}
	return Fields(map[string]*structpb.Value{FieldMessages: ListValue(items)})
}

// DecodeMessages unwraps a page of messages.
func DecodeMessages(s *structpb.Struct) []chat.Message {
	items := List(s, FieldMessages)
	out := make([]chat.Message, len(items))
	for i, it := range items {
		out[i] = DecodeMessage(it)
	}
	return out
}

// EncodePatch sets only the fields the patch changes.
func EncodePatch(id string, p chat.Patch) *structpb.Struct {
	f := map[string]*structpb.Value{FieldID: str(id)}
	if p.Content != nil {
		f[FieldContent] = str(*p.Content)
	}
	if p.IsRead != nil {
		f[FieldIsRead] = flag(*p.IsRead)
	}
	return Fields(f)
}

// DecodePatch is the inverse of EncodePatch.
func DecodePatch(s *structpb.Struct) (string, chat.Patch) {
	var p chat.Patch
	if Has(s, FieldContent) {
		c := String(s, FieldContent)
		p.Content = &c
	}
	if Has(s, FieldIsRead) {
		r := Bool(s, FieldIsRead)
		p.IsRead = &r
	}
	return String(s, FieldID), p
}

// EncodeTyping converts a typing record.
func EncodeTyping(r chat.TypingRecord) *structpb.Struct {
	return Fields(map[string]*structpb.Value{
		FieldConversationID: str(r.ConversationID),
		FieldUserID:         str(r.UserID),
		FieldIsTyping:       flag(r.IsTyping),
		FieldUpdatedAt:      num(chat.Millis(r.UpdatedAt)),
	})
}

// DecodeTyping is the inverse of EncodeTyping.
func DecodeTyping(s *structpb.Struct) chat.TypingRecord {
	return chat.TypingRecord{
		ConversationID: String(s, FieldConversationID),
		UserID:         String(s, FieldUserID),
		IsTyping:       Bool(s, FieldIsTyping),
		UpdatedAt:      chat.FromMillis(Int(s, FieldUpdatedAt)),
	}
}

// EncodeTypingRecords wraps a list of typing records.
func EncodeTypingRecords(recs []chat.TypingRecord) *structpb.Struct {
	items := make([]*structpb.Struct, len(recs))
	for i, r := range recs {
		items[i] = EncodeTyping(r)
	}
	return Fields(map[string]*structpb.Value{FieldRecords: ListValue(items)})
}

// DecodeTypingRecords unwraps a list of typing records.
func DecodeTypingRecords(s *structpb.Struct) []chat.TypingRecord {
	items := List(s, FieldRecords)
	out := make([]chat.TypingRecord, len(items))
	for i, it := range items {
		out[i] = DecodeTyping(it)
	}
	return out
}

// EncodeConversation converts a conversation summary.
func EncodeConversation(c chat.Conversation) *structpb.Struct {
	ps := make([]*structpb.Struct, len(c.Participants))
	for i, p := range c.Participants {
		ps[i] = Fields(map[string]*structpb.Value{FieldUserID: str(p.UserID), FieldUsername: str(p.Username)})
	}
	return Fields(map[string]*structpb.Value{
		FieldID:           str(c.ID),
		FieldName:         str(c.Name),
		FieldLastMessage:  str(c.LastMessage),
		FieldLastAt:       num(chat.Millis(c.LastAt)),
		FieldParticipants: ListValue(ps),
	})
}

// DecodeConversation is the inverse of EncodeConversation.
func DecodeConversation(s *structpb.Struct) chat.Conversation {
	c := chat.Conversation{
		ID:          String(s, FieldID),
		Name:        String(s, FieldName),
		LastMessage: String(s, FieldLastMessage),
		LastAt:      chat.FromMillis(Int(s, FieldLastAt)),
	}
	for _, p := range List(s, FieldParticipants) {
		c.Participants = append(c.Participants, chat.Participant{UserID: String(p, FieldUserID), Username: String(p, FieldUsername)})
	}
	return c
}

// EncodeConversations wraps a conversation list.
func EncodeConversations(convs []chat.Conversation) *structpb.Struct {
	items := make([]*structpb.Struct, len(convs))
	for i, c := range convs {
		items[i] = EncodeConversation(c)
	}
	return Fields(map[string]*structpb.Value{FieldConversations: ListValue(items)})
}

// DecodeConversations unwraps a conversation list.
func DecodeConversations(s *structpb.Struct) []chat.Conversation {
	items := List(s, FieldConversations)
	out := make([]chat.Conversation, len(items))
	for i, it := range items {
		out[i] = DecodeConversation(it)
	}
	return out
}

// EncodeEvent converts a pushed event for the Subscribe stream.
func EncodeEvent(e chat.Event) *structpb.Struct {
	f := map[string]*structpb.Value{FieldKind: str(string(e.Kind))}
	switch e.Kind {
	case chat.EventInsert:
		f[FieldMessage] = obj(EncodeMessage(e.Message))
	case chat.EventUpdate:
		f[FieldMessage] = obj(EncodePatch(e.ID, e.Patch))
	case chat.EventDelete:
		f[FieldID] = str(e.ID)
	case chat.EventTyping:
		f[FieldRecords] = ListValue([]*structpb.Struct{EncodeTyping(e.Typing)})
	case chat.EventLink:
		f[FieldLink] = str(string(e.Link))
		if e.Err != nil {
			f[FieldError] = str(e.Err.Error())
		}
	}
	return Fields(f)
}

// DecodeEvent is the inverse of EncodeEvent. The result still needs Validate.
func DecodeEvent(s *structpb.Struct) (chat.Event, error) {
	switch kind := chat.EventKind(String(s, FieldKind)); kind {
	case chat.EventInsert:
		return chat.InsertEvent(DecodeMessage(s.GetFields()[FieldMessage].GetStructValue())), nil
	case chat.EventUpdate:
		id, p := DecodePatch(s.GetFields()[FieldMessage].GetStructValue())
		return chat.UpdateEvent(id, p), nil
	case chat.EventDelete:
		return chat.DeleteEvent(String(s, FieldID)), nil
	case chat.EventTyping:
		recs := DecodeTypingRecords(s)
		if len(recs) != 1 {
			return chat.Event{}, fmt.Errorf("%w: typing event carries %d records", chat.ErrMalformedEvent, len(recs))
		}
		return chat.TypingEvent(recs[0]), nil
	case chat.EventLink:
		var err error
		if msg := String(s, FieldError); msg != "" {
			err = fmt.Errorf("remote: %s", msg)
		}
		return chat.LinkEvent(chat.LinkState(String(s, FieldLink)), err), nil
	default:
		return chat.Event{}, fmt.Errorf("%w: unknown kind %q", chat.ErrMalformedEvent, kind)
	}
}
