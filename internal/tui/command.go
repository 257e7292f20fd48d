package tui

import (
	"strings"

	"github.com/matheus3301/convo/internal/chat"
)

// Command represents a parsed command.
type Command struct {
	Name string
	Args string
}

var aliases = map[string]string{
	"q": "quit",
	"h": "help",
	"o": "open",
	"n": "new",
}

// ParseCommand parses a command string (without the leading ':').
func ParseCommand(input string) Command {
	input = strings.TrimSpace(input)
	name, args, _ := strings.Cut(input, " ")
	name = strings.ToLower(name)
	if full, ok := aliases[name]; ok {
		name = full
	}
	return Command{Name: name, Args: strings.TrimSpace(args)}
}

// NewConversation reads "<id> <user[:name]>..." into a conversation that always
// includes self.
func (c Command) NewConversation(self chat.Participant) (chat.Conversation, bool) {
	fields := strings.Fields(c.Args)
	if len(fields) == 0 {
		return chat.Conversation{}, false
	}
	conv := chat.Conversation{ID: fields[0], Participants: []chat.Participant{self}}
	for _, f := range fields[1:] {
		id, name, _ := strings.Cut(f, ":")
		if id == "" || id == self.UserID {
			continue
		}
		conv.Participants = append(conv.Participants, chat.Participant{UserID: id, Username: name})
	}
	return conv, true
}
