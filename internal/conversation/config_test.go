package conversation

import (
	"testing"
	"time"

	"github.com/matheus3301/convo/internal/config"
	"github.com/matheus3301/convo/internal/pager"
)

func TestFromConfig(t *testing.T) {
	c := config.Default()
	c.UserID, c.Username = "alice", "Alice"
	c.AutoRetry = 2

	cfg := FromConfig(c, "c1")
	if err := cfg.validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.SelfID != "alice" || cfg.SelfName != "Alice" || cfg.ConversationID != "c1" {
		t.Errorf("identity = %+v", cfg)
	}
	if cfg.PageSize != 10 || cfg.TypingTimeout != 10*time.Second || cfg.EditWindow != 15*time.Minute {
		t.Errorf("timings = %+v", cfg)
	}
	if cfg.TopThreshold != pager.DefaultTopThreshold || cfg.AutoRetry != 2 {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestFromConfigRequiresUser(t *testing.T) {
	cfg := FromConfig(config.Default(), "c1")
	if err := cfg.validate(); err == nil {
		t.Fatal("validate() accepted a config without a user id")
	}
}

func TestHumanDuration(t *testing.T) {
	for d, want := range map[time.Duration]string{
		15 * time.Minute: "15 minutes",
		time.Minute:      "1 minute",
		90 * time.Second: "1m30s",
	} {
		if got := humanDuration(d); got != want {
			t.Errorf("humanDuration(%v) = %q, want %q", d, got, want)
		}
	}
}
