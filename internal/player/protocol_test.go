package player_test

import (
	"errors"
	"testing"

	"github.com/p-n-ai/pai-comply/internal/player"
)

func TestDecodeInbound(t *testing.T) {
	tests := []struct {
		name    string
		msg     string
		wantErr bool
	}{
		{"open lesson", `{"type":"open_lesson","lessonId":"l1","position":0,"duration":60}`, false},
		{"open lesson without id", `{"type":"open_lesson"}`, true},
		{"timeupdate", `{"type":"timeupdate","position":12.5}`, false},
		{"timeupdate without position", `{"type":"timeupdate"}`, true},
		{"negative position", `{"type":"seeking","position":-1}`, true},
		{"ended", `{"type":"ended","position":60,"duration":60}`, false},
		{"intro", `{"type":"intro_watched"}`, false},
		{"open cue", `{"type":"open_cue","cueId":"q1"}`, false},
		{"submit", `{"type":"submit","cueId":"q1","answers":{"0":"B","1":"free text"}}`, false},
		{"submit without answers", `{"type":"submit","cueId":"q1"}`, true},
		{"submit bad index", `{"type":"submit","cueId":"q1","answers":{"first":"B"}}`, true},
		{"submit numeric answer", `{"type":"submit","cueId":"q1","answers":{"0":2}}`, true},
		{"play failed", `{"type":"play_failed","error":"NotAllowedError"}`, false},
		{"unknown type", `{"type":"rewind"}`, true},
		{"missing type", `{"lessonId":"l1"}`, true},
		{"not json", `hello`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := player.DecodeInbound([]byte(tt.msg))
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeInbound() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, player.ErrInvalidEvent) {
				t.Errorf("error = %v, want ErrInvalidEvent", err)
			}
		})
	}
}

func TestDecodeInbound_Fields(t *testing.T) {
	in, err := player.DecodeInbound([]byte(`{"type":"submit","cueId":"q1","answers":{"0":"B"}}`))
	if err != nil {
		t.Fatalf("DecodeInbound() error = %v", err)
	}
	if in.Type != player.EventSubmit || in.CueID != "q1" || in.Answers["0"] != "B" {
		t.Errorf("Inbound = %+v", in)
	}
}

func TestRemoteMedia(t *testing.T) {
	m := player.NewRemoteMedia("l1", 3, 0)
	m.Update(12, 90)
	m.Update(13, 0)
	if m.Position() != 13 || m.Duration() != 90 {
		t.Errorf("Position, Duration = %v, %v; want 13, 90", m.Position(), m.Duration())
	}

	m.Pause()
	m.SetPosition(5)
	if err := m.Play(); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if !m.Playing() || m.Position() != 5 {
		t.Errorf("Playing, Position = %v, %v", m.Playing(), m.Position())
	}

	cmds := m.Drain()
	want := []string{player.CmdPause, player.CmdSeek, player.CmdPlay}
	if len(cmds) != len(want) {
		t.Fatalf("Drain() = %d commands, want %d", len(cmds), len(want))
	}
	for i, c := range cmds {
		if c.Type != want[i] || c.LessonID != "l1" {
			t.Errorf("cmd[%d] = %+v, want %s", i, c, want[i])
		}
	}
	if *cmds[1].Position != 5 {
		t.Errorf("seek position = %v, want 5", *cmds[1].Position)
	}
	if len(m.Drain()) != 0 {
		t.Error("Drain() should clear the queue")
	}
}
