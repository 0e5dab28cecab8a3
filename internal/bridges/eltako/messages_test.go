package eltako

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-eltako/internal/bus"
	"github.com/nerrad567/gray-logic-eltako/internal/directory"
	"github.com/nerrad567/gray-logic-eltako/internal/eep"
	"github.com/nerrad567/gray-logic-eltako/internal/enocean"
	"github.com/nerrad567/gray-logic-eltako/internal/enocean/esp2"
)

func TestCommandMessageUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantTS  bool
		wantErr bool
	}{
		{"with timestamp", `{"id":"c1","device_id":"light","command":"on","timestamp":"2026-01-15T10:30:00Z"}`, true, false},
		{"empty timestamp", `{"id":"c1","device_id":"light","command":"on","timestamp":""}`, false, false},
		{"no timestamp", `{"id":"c1","command":"dim","parameters":{"level":50}}`, false, false},
		{"bad timestamp", `{"id":"c1","timestamp":"yesterday"}`, false, true},
		{"not json", `{`, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cmd CommandMessage
			err := json.Unmarshal([]byte(tt.payload), &cmd)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if cmd.ID != "c1" {
				t.Errorf("ID = %q", cmd.ID)
			}
			if cmd.Timestamp.IsZero() == tt.wantTS {
				t.Errorf("Timestamp = %v, want set=%v", cmd.Timestamp, tt.wantTS)
			}
		})
	}
}

func TestNewAckError(t *testing.T) {
	cmd := CommandMessage{ID: "c1", DeviceID: "light"}

	timeout := NewAckError(cmd, "00-00-00-10", ErrCodeTimeout, "no response", 3)
	if timeout.Status != AckTimeout {
		t.Errorf("Status = %q, want timeout", timeout.Status)
	}
	if timeout.Error.Retries != 3 {
		t.Errorf("Retries = %d, want 3", timeout.Error.Retries)
	}

	failed := NewAckError(cmd, "", ErrCodeInvalidCommand, "bad", 0)
	if failed.Status != AckFailed || failed.Protocol != Protocol {
		t.Errorf("ack = %+v", failed)
	}
}

func TestNewUnresolvedMessage(t *testing.T) {
	tel, err := esp2.NewRadio(esp2.RRT, enocean.OrgRPS, []byte{0x70}, enocean.MustParseAddress("FE-DB-B6-40"), 0x30)
	if err != nil {
		t.Fatalf("NewRadio() error = %v", err)
	}
	at := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

	t.Run("unknown sender", func(t *testing.T) {
		msg := NewUnresolvedMessage(bus.EventUnresolved{Time: at, Telegram: tel})
		if msg.Address != "FE-DB-B6-40" || msg.Org != "RPS" || msg.Payload != "70" || msg.Status != 0x30 {
			t.Errorf("msg = %+v", msg)
		}
		if msg.ID == "" {
			t.Error("ID should be set")
		}
		if msg.DeviceID != "" || msg.Error != "" {
			t.Errorf("unexpected device or error: %+v", msg)
		}
	})

	t.Run("decode failure", func(t *testing.T) {
		entry := directory.Entry{ID: "switch", Address: tel.Sender, EEP: eep.MustParseID("A5-04-02")}
		msg := NewUnresolvedMessage(bus.EventUnresolved{Time: at, Telegram: tel, Entry: &entry, Err: errors.New("wrong org")})
		if msg.DeviceID != "switch" || msg.EEP != "A5-04-02" || msg.Error != "wrong org" {
			t.Errorf("msg = %+v", msg)
		}
	})
}

func TestNewHealthMessage(t *testing.T) {
	stats := bus.Stats{
		State:        bus.StateOpen,
		Rx:           10,
		Tx:           4,
		FrameErrors:  1,
		NoAcks:       2,
		Unresolved:   3,
		LastActivity: time.Now(),
	}

	msg := NewHealthMessage("eltako-1", "1.0.0", HealthHealthy, stats, 7, time.Now().Add(-time.Minute))

	if msg.Connection == nil || msg.Connection.Status != "open" || msg.Connection.LastActivity == nil {
		t.Errorf("Connection = %+v", msg.Connection)
	}
	if msg.Statistics.MessagesReceived != 10 || msg.Statistics.MessagesSent != 4 {
		t.Errorf("Statistics = %+v", msg.Statistics)
	}
	if msg.Statistics.Errors != 3 {
		t.Errorf("Errors = %d, want frame errors plus missing acks", msg.Statistics.Errors)
	}
	if msg.DevicesManaged != 7 || msg.UptimeSeconds < 59 {
		t.Errorf("msg = %+v", msg)
	}
}

func TestLWTPayload(t *testing.T) {
	payload, err := LWTPayload("eltako-1")
	if err != nil {
		t.Fatalf("LWTPayload() error = %v", err)
	}
	var msg HealthMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if msg.Status != HealthOffline || msg.Bridge != "eltako-1" {
		t.Errorf("msg = %+v", msg)
	}

	will, err := Will("eltako-1")
	if err != nil {
		t.Fatalf("Will() error = %v", err)
	}
	if will.Topic != "graylogic/health/eltako" || will.QoS != 1 {
		t.Errorf("will = %+v", will)
	}
}
