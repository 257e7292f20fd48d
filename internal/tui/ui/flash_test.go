package ui

import (
	"errors"
	"testing"
	"time"
)

func TestFlashExpires(t *testing.T) {
	now := time.Unix(1000, 0)
	f := NewFlashModel()
	f.now = func() time.Time { return now }

	f.Info("saved")
	if m := f.Current(); m == nil || m.Text != "saved" || m.Level != FlashInfo {
		t.Fatalf("Current() = %+v", m)
	}
	now = now.Add(6 * time.Second)
	if m := f.Current(); m != nil {
		t.Errorf("Current() after expiry = %+v, want nil", m)
	}
}

func TestFlashErrorNotHiddenByInfo(t *testing.T) {
	now := time.Unix(1000, 0)
	f := NewFlashModel()
	f.now = func() time.Time { return now }

	f.Err(errors.New("Message not sent"))
	f.Info("Reconnected")
	if m := f.Current(); m == nil || m.Level != FlashErr {
		t.Fatalf("Current() = %+v, want the error", m)
	}

	now = now.Add(11 * time.Second)
	f.Info("Reconnected")
	if m := f.Current(); m == nil || m.Text != "Reconnected" {
		t.Errorf("Current() = %+v, want info once the error lapsed", m)
	}
}

func TestFlashClear(t *testing.T) {
	f := NewFlashModel()
	f.Warn("slow")
	f.Clear()
	if m := f.Current(); m != nil {
		t.Errorf("Current() after Clear = %+v", m)
	}
}
