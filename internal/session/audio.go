package session

import "coaster-builder/internal/monitoring"

// AudioSink is the audio collaborator. It only hears about day/night and mute.
type AudioSink interface {
	SetNight(night bool)
	SetMuted(muted bool)
}

// LogAudio is the default sink; it logs the changes.
type LogAudio struct{}

func (LogAudio) SetNight(night bool) {
	monitoring.Logf("audio: night=%t", night)
}

func (LogAudio) SetMuted(muted bool) {
	monitoring.Logf("audio: muted=%t", muted)
}

// SetNight switches day/night and notifies the audio sink on change.
func (s *Session) SetNight(night bool) {
	if s.state.Night == night {
		return
	}
	s.state.Night = night
	s.audio.SetNight(night)
}

// ToggleNight flips day/night.
func (s *Session) ToggleNight() {
	s.SetNight(!s.state.Night)
}

// SetMuted mutes or unmutes and notifies the audio sink on change.
func (s *Session) SetMuted(muted bool) {
	if s.state.Muted == muted {
		return
	}
	s.state.Muted = muted
	s.audio.SetMuted(muted)
}
