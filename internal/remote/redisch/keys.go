package redisch

import "fmt"

func messageKey(id string) string { return fmt.Sprintf("msg:%s", id) }

// conversationMessagesKey is a sorted set of message ids scored by created_at.
func conversationMessagesKey(convID string) string {
	return fmt.Sprintf("conv:%s:messages", convID)
}

func conversationLastTSKey(convID string) string { return fmt.Sprintf("conv:%s:last_ts", convID) }

func conversationMetaKey(convID string) string { return fmt.Sprintf("conv:%s:meta", convID) }

// conversationParticipantsKey maps user id to username.
func conversationParticipantsKey(convID string) string {
	return fmt.Sprintf("conv:%s:participants", convID)
}

// conversationTypingKey maps user id to "<updated_at ms>:<0|1>".
func conversationTypingKey(convID string) string { return fmt.Sprintf("conv:%s:typing", convID) }

func userConversationsKey(userID string) string { return fmt.Sprintf("user:%s:conversations", userID) }

func messageEventsChannel(convID string) string { return fmt.Sprintf("conv:%s:events", convID) }

func typingEventsChannel(convID string) string { return fmt.Sprintf("conv:%s:typing:events", convID) }
