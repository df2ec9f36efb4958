package send

import (
	"context"
	"errors"
	"testing"

	"github.com/james-see/reasend/pkg/host"
	"github.com/james-see/reasend/pkg/host/memhost"
	"github.com/james-see/reasend/pkg/routing"
)

type call struct {
	trackID string
	cat     host.Category
	index   int
	param   string
	value   float64
}

// recordingHost records every primitive call and answers reads from values
type recordingHost struct {
	values  map[string]float64
	calls   []call
	removed []call
	err     error
}

func (r *recordingHost) GetSendInfo(_ context.Context, trackID string, cat host.Category, index int, param string) (float64, error) {
	r.calls = append(r.calls, call{trackID, cat, index, param, 0})
	return r.values[param], r.err
}

func (r *recordingHost) SetSendInfo(_ context.Context, trackID string, cat host.Category, index int, param string, value float64) error {
	r.calls = append(r.calls, call{trackID, cat, index, param, value})
	if r.values == nil {
		r.values = make(map[string]float64)
	}
	r.values[param] = value
	return r.err
}

func (r *recordingHost) RemoveSend(_ context.Context, trackID string, cat host.Category, index int) error {
	r.removed = append(r.removed, call{trackID: trackID, cat: cat, index: index})
	return r.err
}

func (r *recordingHost) TrackFromPointer(_ context.Context, pointer float64) (host.Track, error) {
	return host.Track{ID: "resolved"}, r.err
}

func TestKindCodes(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected host.Category
	}{
		{KindSend, 0},
		{KindHardware, 1},
		{KindReceive, -1},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			code, err := tt.kind.Code()
			if err != nil {
				t.Fatalf("Code() error = %v", err)
			}
			if code != tt.expected {
				t.Errorf("Code() = %d, want %d", code, tt.expected)
			}
			back, err := KindOf(code)
			if err != nil || back != tt.kind {
				t.Errorf("KindOf(%d) = %q, %v", code, back, err)
			}
		})
	}
}

func TestUnknownKind(t *testing.T) {
	if _, err := Kind("sidechain").Code(); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("Code() error = %v, want ErrUnknownKind", err)
	}
	if _, err := ParseKind("Send"); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("ParseKind(Send) error = %v, want ErrUnknownKind", err)
	}
	if _, err := KindOf(host.Category(5)); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("KindOf(5) error = %v, want ErrUnknownKind", err)
	}
	_, err := New(&recordingHost{}, Config{TrackID: "t", Kind: "aux"})
	if !errors.Is(err, ErrUnknownKind) {
		t.Errorf("New() error = %v, want ErrUnknownKind", err)
	}
}

func TestNew(t *testing.T) {
	h := &recordingHost{}

	if _, err := New(h, Config{}); !errors.Is(err, ErrNoTrack) {
		t.Errorf("New() without track error = %v, want ErrNoTrack", err)
	}

	s, err := New(h, Config{Track: &host.Track{ID: "from-track"}, Index: 2})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if s.TrackID() != "from-track" || s.Index() != 2 || s.Kind() != KindSend || s.Category() != host.CategorySend {
		t.Errorf("New() = %s (%d)", s, s.Category())
	}

	s, err = New(h, Config{Track: &host.Track{ID: "ignored"}, TrackID: "explicit", Kind: KindReceive})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if s.TrackID() != "explicit" {
		t.Errorf("TrackID() = %q, want %q", s.TrackID(), "explicit")
	}
}

func TestPassThroughArguments(t *testing.T) {
	h := &recordingHost{}
	s, _ := New(h, Config{TrackID: "tr", Index: 3, Kind: KindHardware})
	ctx := context.Background()

	_ = s.SetVolume(ctx, 0.5)
	_, _ = s.Pan(ctx)
	_ = s.Delete(ctx)

	want := []call{
		{"tr", host.CategoryHardware, 3, host.ParamVolume, 0.5},
		{"tr", host.CategoryHardware, 3, host.ParamPan, 0},
	}
	if len(h.calls) != len(want) {
		t.Fatalf("calls = %+v", h.calls)
	}
	for i := range want {
		if h.calls[i] != want[i] {
			t.Errorf("call %d = %+v, want %+v", i, h.calls[i], want[i])
		}
	}
	if len(h.removed) != 1 || h.removed[0].cat != host.CategoryHardware || h.removed[0].index != 3 {
		t.Errorf("removed = %+v", h.removed)
	}
}

func TestBoolProperties(t *testing.T) {
	h := &recordingHost{}
	s, _ := New(h, Config{TrackID: "tr"})
	ctx := context.Background()

	if err := s.Mute(ctx); err != nil {
		t.Fatalf("Mute() error = %v", err)
	}
	if h.values[host.ParamMute] != 1 {
		t.Errorf("B_MUTE = %v, want 1", h.values[host.ParamMute])
	}
	muted, _ := s.IsMuted(ctx)
	if !muted {
		t.Error("IsMuted() = false after Mute")
	}
	_ = s.Unmute(ctx)
	if muted, _ = s.IsMuted(ctx); muted {
		t.Error("IsMuted() = true after Unmute")
	}

	_ = s.SetMono(ctx, true)
	if mono, _ := s.IsMono(ctx); !mono {
		t.Error("IsMono() = false after SetMono(true)")
	}
}

func TestOutputChannels(t *testing.T) {
	h := &recordingHost{}
	s, _ := New(h, Config{TrackID: "tr", Kind: KindHardware})
	ctx := context.Background()

	_ = s.SendToMonoOutput(ctx, 2)
	if h.values[host.ParamDstChan] != 1026 {
		t.Errorf("I_DSTCHAN = %v, want 1026", h.values[host.ParamDstChan])
	}
	ch, _ := s.DestChannel(ctx)
	if !ch.Mono || ch.Index != 2 {
		t.Errorf("DestChannel() = %+v", ch)
	}

	_ = s.SendToStereoOutput(ctx, 4)
	if h.values[host.ParamDstChan] != 4 {
		t.Errorf("I_DSTCHAN = %v, want 4", h.values[host.ParamDstChan])
	}
}

func TestErrorsPropagate(t *testing.T) {
	boom := errors.New("boom")
	s, _ := New(&recordingHost{err: boom}, Config{TrackID: "tr"})
	ctx := context.Background()

	if _, err := s.IsMuted(ctx); !errors.Is(err, boom) {
		t.Errorf("IsMuted() error = %v, want boom", err)
	}
	if _, err := s.MIDIRouting(ctx); !errors.Is(err, boom) {
		t.Errorf("MIDIRouting() error = %v, want boom", err)
	}
	if _, err := s.DestTrack(ctx); !errors.Is(err, boom) {
		t.Errorf("DestTrack() error = %v, want boom", err)
	}
	if err := s.FlipPhase(ctx); !errors.Is(err, boom) {
		t.Errorf("FlipPhase() error = %v, want boom", err)
	}
}

func TestExtensionUnavailable(t *testing.T) {
	s, _ := New(&recordingHost{}, Config{TrackID: "tr"})
	ctx := context.Background()

	if _, err := s.ExtInfo(ctx, host.ExtParamMIDISrcBus); !errors.Is(err, host.ErrExtensionUnavailable) {
		t.Errorf("ExtInfo() error = %v, want ErrExtensionUnavailable", err)
	}
	if err := s.SetExtInfo(ctx, host.ExtParamMIDISrcBus, 1); !errors.Is(err, host.ErrExtensionUnavailable) {
		t.Errorf("SetExtInfo() error = %v, want ErrExtensionUnavailable", err)
	}
}

func newMemSend(t *testing.T) (*memhost.Host, *Send, host.Track) {
	t.Helper()
	h := memhost.New(memhost.WithExtension(true))
	t.Cleanup(func() { _ = h.Close() })

	ctx := context.Background()
	src, _ := h.AddTrack(ctx, "Synth")
	dst, _ := h.AddTrack(ctx, "FX")
	if _, err := h.CreateSend(ctx, src.ID, dst.ID); err != nil {
		t.Fatalf("CreateSend() error = %v", err)
	}
	s, err := New(h, Config{Track: &src})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return h, s, dst
}

func TestMIDIEndpoints(t *testing.T) {
	_, s, _ := newMemSend(t)
	ctx := context.Background()

	if err := s.SetMIDIRouting(ctx, routing.Routing{Source: routing.Endpoint{Bus: 2, Channel: 5}, Dest: routing.Endpoint{Bus: 3}}); err != nil {
		t.Fatalf("SetMIDIRouting() error = %v", err)
	}
	flags, _ := s.Info(ctx, host.ParamMIDIFlags)
	if int(flags) != 12615685 {
		t.Errorf("I_MIDIFLAGS = %v, want 12615685", flags)
	}

	if err := s.SetMIDISource(ctx, routing.Endpoint{Bus: 1, Channel: 10}); err != nil {
		t.Fatalf("SetMIDISource() error = %v", err)
	}
	if err := s.SetMIDIDest(ctx, routing.Endpoint{Bus: 4, Channel: 2}); err != nil {
		t.Fatalf("SetMIDIDest() error = %v", err)
	}
	src, _ := s.MIDISource(ctx)
	dst, _ := s.MIDIDest(ctx)
	if src != (routing.Endpoint{Bus: 1, Channel: 10}) || dst != (routing.Endpoint{Bus: 4, Channel: 2}) {
		t.Errorf("endpoints = %v -> %v", src, dst)
	}

	bus, err := s.ExtInfo(ctx, host.ExtParamMIDIDstBus)
	if err != nil || bus != 4 {
		t.Errorf("ExtInfo(I_MIDI_DSTBUS) = %v, %v; want 4", bus, err)
	}

	if err := s.SetMIDIRouting(ctx, routing.Disabled); err != nil {
		t.Fatalf("SetMIDIRouting(Disabled) error = %v", err)
	}
	r, _ := s.MIDIRouting(ctx)
	if !r.IsDisabled() {
		t.Errorf("MIDIRouting() = %v, want disabled", r)
	}
}

func TestFlipPhaseAndTracks(t *testing.T) {
	_, s, dst := newMemSend(t)
	ctx := context.Background()

	if err := s.FlipPhase(ctx); err != nil {
		t.Fatalf("FlipPhase() error = %v", err)
	}
	if flipped, _ := s.IsPhaseFlipped(ctx); !flipped {
		t.Error("IsPhaseFlipped() = false after FlipPhase")
	}
	_ = s.FlipPhase(ctx)
	if flipped, _ := s.IsPhaseFlipped(ctx); flipped {
		t.Error("IsPhaseFlipped() = true after second FlipPhase")
	}

	got, err := s.DestTrack(ctx)
	if err != nil || got.ID != dst.ID {
		t.Errorf("DestTrack() = %+v, %v; want %s", got, err, dst.ID)
	}
	srcTrack, err := s.SourceTrack(ctx)
	if err != nil || srcTrack.ID != s.TrackID() {
		t.Errorf("SourceTrack() = %+v, %v", srcTrack, err)
	}
}

func TestModesAndLevels(t *testing.T) {
	_, s, _ := newMemSend(t)
	ctx := context.Background()

	_ = s.SetMode(ctx, ModePreFX)
	_ = s.SetAutoMode(ctx, AutoModeLatch)
	_ = s.SetPan(ctx, -0.5)
	_ = s.SetPanLaw(ctx, 0.5)

	if m, _ := s.Mode(ctx); m != ModePreFX {
		t.Errorf("Mode() = %v, want %v", m, ModePreFX)
	}
	if a, _ := s.AutoMode(ctx); a != AutoModeLatch {
		t.Errorf("AutoMode() = %v, want %v", a, AutoModeLatch)
	}
	if p, _ := s.Pan(ctx); p != -0.5 {
		t.Errorf("Pan() = %v, want -0.5", p)
	}
	if l, _ := s.PanLaw(ctx); l != 0.5 {
		t.Errorf("PanLaw() = %v, want 0.5", l)
	}
	if v, _ := s.Volume(ctx); v != 1 {
		t.Errorf("Volume() = %v, want 1", v)
	}
	if ch, _ := s.SourceChannel(ctx); ch.Index != 0 || ch.Mono {
		t.Errorf("SourceChannel() = %+v", ch)
	}
	if env, err := s.Envelope(ctx, "PANENV"); err != nil || env == 0 {
		t.Errorf("Envelope() = %v, %v", env, err)
	}
	if ModePostFXDeprecated.String() != "post-fx (deprecated)" || AutoModeTrack.String() != "track" {
		t.Error("unexpected mode names")
	}
}

func TestStaleSendAfterDelete(t *testing.T) {
	_, s, _ := newMemSend(t)
	ctx := context.Background()

	if err := s.Delete(ctx); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Volume(ctx); !errors.Is(err, host.ErrIndexOutOfRange) {
		t.Errorf("Volume() after Delete error = %v, want ErrIndexOutOfRange", err)
	}
}
