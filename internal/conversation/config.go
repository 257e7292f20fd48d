package conversation

import (
	"errors"
	"time"

	"github.com/matheus3301/convo/internal/chat"
	"github.com/matheus3301/convo/internal/config"
	"github.com/matheus3301/convo/internal/pager"
	"github.com/matheus3301/convo/internal/presence"
)

// DefaultMatchWindow is generous enough for a slow store round trip and tight
// enough that a repeated message sent minutes later is not paired with an old send.
const DefaultMatchWindow = 2 * time.Minute

// Config configures one conversation session.
type Config struct {
	ConversationID string
	SelfID         string
	SelfName       string

	PageSize     int
	TopThreshold int
	NearBottom   int

	TypingTimeout time.Duration
	Heartbeat     time.Duration

	// RefreshInterval re-fetches the newest page and merges it. Zero disables it.
	RefreshInterval time.Duration
	EditWindow      time.Duration
	// MatchWindow bounds how far a push may be from a pending send for the content
	// match to pair them. Negative disables the bound.
	MatchWindow time.Duration

	// AutoRetry is how many times a failed send is retried before it is left failed.
	AutoRetry    int
	RetryBackoff time.Duration
	CallTimeout  time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

func (c *Config) validate() error {
	if c.ConversationID == "" {
		return errors.New("conversation id is required")
	}
	if c.SelfID == "" {
		return errors.New("self id is required")
	}
	if c.PageSize <= 0 {
		c.PageSize = pager.DefaultPageSize
	}
	if c.TopThreshold <= 0 {
		c.TopThreshold = pager.DefaultTopThreshold
	}
	if c.NearBottom <= 0 {
		c.NearBottom = pager.DefaultNearBottom
	}
	if c.TypingTimeout <= 0 {
		c.TypingTimeout = presence.DefaultIdleTimeout
	}
	if c.Heartbeat <= 0 {
		c.Heartbeat = presence.DefaultHeartbeat
	}
	if c.EditWindow <= 0 {
		c.EditWindow = chat.EditWindow
	}
	if c.MatchWindow == 0 {
		c.MatchWindow = DefaultMatchWindow
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 2 * time.Second
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 10 * time.Second
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return nil
}

// FromConfig builds a session config for conversationID from the profile configuration.
func FromConfig(c *config.Config, conversationID string) Config {
	return Config{
		ConversationID:  conversationID,
		SelfID:          c.UserID,
		SelfName:        c.Username,
		PageSize:        c.PageSize,
		TypingTimeout:   c.TypingTimeout.Duration,
		Heartbeat:       c.HeartbeatInterval.Duration,
		RefreshInterval: c.RefreshInterval.Duration,
		EditWindow:      c.EditWindow.Duration,
		AutoRetry:       c.AutoRetry,
	}
}
