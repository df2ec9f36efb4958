package send

import (
	"context"
	"fmt"

	"github.com/james-see/reasend/pkg/host"
	"github.com/james-see/reasend/pkg/routing"
)

// Mode is the send tap point (I_SENDMODE)
type Mode int

const (
	ModePostFader        Mode = 0
	ModePreFX            Mode = 1
	ModePostFXDeprecated Mode = 2
	ModePostFX           Mode = 3
)

func (m Mode) String() string {
	switch m {
	case ModePostFader:
		return "post-fader"
	case ModePreFX:
		return "pre-fx"
	case ModePostFXDeprecated:
		return "post-fx (deprecated)"
	case ModePostFX:
		return "post-fx"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// AutoMode is the send automation mode (I_AUTOMODE)
type AutoMode int

const (
	AutoModeTrack AutoMode = -1 // follow the track's automation mode
	AutoModeTrim  AutoMode = 0
	AutoModeRead  AutoMode = 1
	AutoModeTouch AutoMode = 2
	AutoModeWrite AutoMode = 3
	AutoModeLatch AutoMode = 4
)

func (a AutoMode) String() string {
	switch a {
	case AutoModeTrack:
		return "track"
	case AutoModeTrim:
		return "trim/off"
	case AutoModeRead:
		return "read"
	case AutoModeTouch:
		return "touch"
	case AutoModeWrite:
		return "write"
	case AutoModeLatch:
		return "latch"
	default:
		return fmt.Sprintf("automode(%d)", int(a))
	}
}

func (s *Send) boolInfo(ctx context.Context, param string) (bool, error) {
	v, err := s.Info(ctx, param)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func (s *Send) setBoolInfo(ctx context.Context, param string, on bool) error {
	var v float64
	if on {
		v = 1
	}
	return s.SetInfo(ctx, param, v)
}

func (s *Send) intInfo(ctx context.Context, param string) (int, error) {
	v, err := s.Info(ctx, param)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

// IsMuted reports whether the send is muted
func (s *Send) IsMuted(ctx context.Context) (bool, error) {
	return s.boolInfo(ctx, host.ParamMute)
}

// SetMuted mutes or unmutes the send
func (s *Send) SetMuted(ctx context.Context, muted bool) error {
	return s.setBoolInfo(ctx, host.ParamMute, muted)
}

func (s *Send) Mute(ctx context.Context) error   { return s.SetMuted(ctx, true) }
func (s *Send) Unmute(ctx context.Context) error { return s.SetMuted(ctx, false) }

// IsPhaseFlipped reports whether the signal is multiplied by -1
func (s *Send) IsPhaseFlipped(ctx context.Context) (bool, error) {
	return s.boolInfo(ctx, host.ParamPhase)
}

func (s *Send) SetPhaseFlipped(ctx context.Context, flipped bool) error {
	return s.setBoolInfo(ctx, host.ParamPhase, flipped)
}

// FlipPhase toggles the phase state. The read and write run inside the
// host so no other caller can interleave.
func (s *Send) FlipPhase(ctx context.Context) error {
	return s.inside(ctx, func(ctx context.Context) error {
		flipped, err := s.IsPhaseFlipped(ctx)
		if err != nil {
			return err
		}
		return s.SetPhaseFlipped(ctx, !flipped)
	})
}

// IsMono reports whether the send is mono rather than stereo
func (s *Send) IsMono(ctx context.Context) (bool, error) {
	return s.boolInfo(ctx, host.ParamMono)
}

func (s *Send) SetMono(ctx context.Context, mono bool) error {
	return s.setBoolInfo(ctx, host.ParamMono, mono)
}

// Volume is the linear send gain, 1.0 = +0dB
func (s *Send) Volume(ctx context.Context) (float64, error) {
	return s.Info(ctx, host.ParamVolume)
}

func (s *Send) SetVolume(ctx context.Context, volume float64) error {
	return s.SetInfo(ctx, host.ParamVolume, volume)
}

// Pan goes from -1 (left) to 1 (right)
func (s *Send) Pan(ctx context.Context) (float64, error) {
	return s.Info(ctx, host.ParamPan)
}

func (s *Send) SetPan(ctx context.Context, pan float64) error {
	return s.SetInfo(ctx, host.ParamPan, pan)
}

// PanLaw: 1.0=+0.0dB, 0.5=-6dB, -1.0=project default
func (s *Send) PanLaw(ctx context.Context) (float64, error) {
	return s.Info(ctx, host.ParamPanLaw)
}

func (s *Send) SetPanLaw(ctx context.Context, law float64) error {
	return s.SetInfo(ctx, host.ParamPanLaw, law)
}

func (s *Send) Mode(ctx context.Context) (Mode, error) {
	v, err := s.intInfo(ctx, host.ParamSendMode)
	return Mode(v), err
}

func (s *Send) SetMode(ctx context.Context, mode Mode) error {
	return s.SetInfo(ctx, host.ParamSendMode, float64(mode))
}

func (s *Send) AutoMode(ctx context.Context) (AutoMode, error) {
	v, err := s.intInfo(ctx, host.ParamAutoMode)
	return AutoMode(v), err
}

func (s *Send) SetAutoMode(ctx context.Context, mode AutoMode) error {
	return s.SetInfo(ctx, host.ParamAutoMode, float64(mode))
}

// SourceChannel returns the decoded audio source channel (I_SRCCHAN)
func (s *Send) SourceChannel(ctx context.Context) (routing.AudioChannel, error) {
	v, err := s.intInfo(ctx, host.ParamSrcChan)
	if err != nil {
		return routing.AudioChannel{}, err
	}
	return routing.DecodeAudioChannel(v), nil
}

// DestChannel returns the decoded audio destination channel (I_DSTCHAN)
func (s *Send) DestChannel(ctx context.Context) (routing.AudioChannel, error) {
	v, err := s.intInfo(ctx, host.ParamDstChan)
	if err != nil {
		return routing.AudioChannel{}, err
	}
	return routing.DecodeAudioChannel(v), nil
}

// SendToMonoOutput routes the send to a single output channel; 0 is output 1
func (s *Send) SendToMonoOutput(ctx context.Context, ch int) error {
	return s.SetInfo(ctx, host.ParamDstChan, float64(ch+routing.MonoFlag))
}

// SendToStereoOutput routes the send to a stereo pair; 0 is outputs 1 and 2
func (s *Send) SendToStereoOutput(ctx context.Context, ch int) error {
	return s.SetInfo(ctx, host.ParamDstChan, float64(ch))
}

// MIDIRouting decodes I_MIDIFLAGS
func (s *Send) MIDIRouting(ctx context.Context) (routing.Routing, error) {
	v, err := s.intInfo(ctx, host.ParamMIDIFlags)
	if err != nil {
		return routing.Routing{}, err
	}
	return routing.Decode(v), nil
}

// SetMIDIRouting encodes r into I_MIDIFLAGS. Components are not range checked.
func (s *Send) SetMIDIRouting(ctx context.Context, r routing.Routing) error {
	return s.SetInfo(ctx, host.ParamMIDIFlags, float64(routing.Encode(r)))
}

// MIDISource is the (bus, channel) the send reads on its source track
func (s *Send) MIDISource(ctx context.Context) (routing.Endpoint, error) {
	r, err := s.MIDIRouting(ctx)
	return r.Source, err
}

// SetMIDISource replaces the source endpoint and keeps the destination
func (s *Send) SetMIDISource(ctx context.Context, src routing.Endpoint) error {
	return s.inside(ctx, func(ctx context.Context) error {
		r, err := s.MIDIRouting(ctx)
		if err != nil {
			return err
		}
		return s.SetMIDIRouting(ctx, routing.Routing{Source: src, Dest: r.Dest})
	})
}

// MIDIDest is the (bus, channel) the send writes on the receiving track
func (s *Send) MIDIDest(ctx context.Context) (routing.Endpoint, error) {
	r, err := s.MIDIRouting(ctx)
	return r.Dest, err
}

// SetMIDIDest replaces the destination endpoint and keeps the source
func (s *Send) SetMIDIDest(ctx context.Context, dst routing.Endpoint) error {
	return s.inside(ctx, func(ctx context.Context) error {
		r, err := s.MIDIRouting(ctx)
		if err != nil {
			return err
		}
		return s.SetMIDIRouting(ctx, routing.Routing{Source: r.Source, Dest: dst})
	})
}
