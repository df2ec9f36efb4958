package memhost

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"gitlab.com/gomidi/midi/v2"

	"github.com/james-see/reasend/pkg/host"
	"github.com/james-see/reasend/pkg/routing"
)

func newTestHost(t *testing.T, opts ...Option) (*Host, host.Track, host.Track) {
	t.Helper()
	h := New(opts...)
	t.Cleanup(func() { _ = h.Close() })

	ctx := context.Background()
	src, err := h.AddTrack(ctx, "Drums")
	if err != nil {
		t.Fatalf("AddTrack() error = %v", err)
	}
	dst, err := h.AddTrack(ctx, "Bus")
	if err != nil {
		t.Fatalf("AddTrack() error = %v", err)
	}
	if _, err := h.CreateSend(ctx, src.ID, dst.ID); err != nil {
		t.Fatalf("CreateSend() error = %v", err)
	}
	return h, src, dst
}

func TestAddTrack(t *testing.T) {
	h, src, _ := newTestHost(t)

	if !strings.HasPrefix(src.ID, "(MediaTrack*)0x") {
		t.Errorf("track ID = %q, want (MediaTrack*)0x prefix", src.ID)
	}
	if len(src.GUID) != 38 {
		t.Errorf("GUID = %q, want braced uuid", src.GUID)
	}

	tracks, err := h.Tracks(context.Background())
	if err != nil {
		t.Fatalf("Tracks() error = %v", err)
	}
	if len(tracks) != 2 || tracks[0].Name != "Drums" || tracks[1].Name != "Bus" {
		t.Errorf("Tracks() = %+v", tracks)
	}
}

func TestSendAppearsAsReceive(t *testing.T) {
	h, src, dst := newTestHost(t)
	ctx := context.Background()

	n, err := h.NumSends(ctx, dst.ID, host.CategoryReceive)
	if err != nil || n != 1 {
		t.Fatalf("NumSends(receive) = %d, %v; want 1", n, err)
	}

	if err := h.SetSendInfo(ctx, src.ID, host.CategorySend, 0, host.ParamVolume, 0.5); err != nil {
		t.Fatalf("SetSendInfo() error = %v", err)
	}
	v, err := h.GetSendInfo(ctx, dst.ID, host.CategoryReceive, 0, host.ParamVolume)
	if err != nil {
		t.Fatalf("GetSendInfo() error = %v", err)
	}
	if v != 0.5 {
		t.Errorf("receive volume = %v, want 0.5", v)
	}
}

func TestDefaults(t *testing.T) {
	h, src, _ := newTestHost(t)
	ctx := context.Background()

	tests := []struct {
		param    string
		expected float64
	}{
		{host.ParamMute, 0},
		{host.ParamVolume, 1},
		{host.ParamPanLaw, -1},
		{host.ParamAutoMode, -1},
		{host.ParamMIDIFlags, 0},
	}
	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			v, err := h.GetSendInfo(ctx, src.ID, host.CategorySend, 0, tt.param)
			if err != nil {
				t.Fatalf("GetSendInfo() error = %v", err)
			}
			if v != tt.expected {
				t.Errorf("GetSendInfo(%s) = %v, want %v", tt.param, v, tt.expected)
			}
		})
	}
}

func TestHardwareOutputMIDIDisabled(t *testing.T) {
	h, src, _ := newTestHost(t)
	ctx := context.Background()

	idx, err := h.CreateHardwareOutput(ctx, src.ID)
	if err != nil {
		t.Fatalf("CreateHardwareOutput() error = %v", err)
	}
	v, err := h.GetSendInfo(ctx, src.ID, host.CategoryHardware, idx, host.ParamMIDIFlags)
	if err != nil {
		t.Fatalf("GetSendInfo() error = %v", err)
	}
	if int(v) != routing.DisabledFlags {
		t.Errorf("hardware I_MIDIFLAGS = %v, want %d", v, routing.DisabledFlags)
	}
	ptr, err := h.GetSendInfo(ctx, src.ID, host.CategoryHardware, idx, host.ParamDestTrack)
	if err != nil || ptr != 0 {
		t.Errorf("hardware P_DESTTRACK = %v, %v; want 0", ptr, err)
	}
}

func TestErrors(t *testing.T) {
	h, src, _ := newTestHost(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		call  func() error
		isErr error
	}{
		{"unknown track", func() error {
			_, err := h.GetSendInfo(ctx, "nope", host.CategorySend, 0, host.ParamMute)
			return err
		}, host.ErrInvalidTrack},
		{"index out of range", func() error {
			_, err := h.GetSendInfo(ctx, src.ID, host.CategorySend, 3, host.ParamMute)
			return err
		}, host.ErrIndexOutOfRange},
		{"unknown param", func() error {
			_, err := h.GetSendInfo(ctx, src.ID, host.CategorySend, 0, "D_NOPE")
			return err
		}, host.ErrInvalidParam},
		{"read only", func() error {
			return h.SetSendInfo(ctx, src.ID, host.CategorySend, 0, host.ParamDestTrack, 1)
		}, host.ErrReadOnly},
		{"unknown envelope", func() error {
			_, err := h.GetSendInfo(ctx, src.ID, host.CategorySend, 0, host.EnvelopeParam("FOOENV"))
			return err
		}, host.ErrInvalidParam},
		{"bad pointer", func() error {
			_, err := h.TrackFromPointer(ctx, 42)
			return err
		}, host.ErrInvalidTrack},
		{"extension missing", func() error {
			_, err := h.GetSetSendInfo(ctx, src.ID, host.CategorySend, 0, host.ParamMute, false, 0)
			return err
		}, host.ErrExtensionUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, tt.isErr) {
				t.Errorf("error = %v, want %v", err, tt.isErr)
			}
		})
	}
}

func TestPointersResolve(t *testing.T) {
	h, src, dst := newTestHost(t)
	ctx := context.Background()

	ptr, err := h.GetSendInfo(ctx, src.ID, host.CategorySend, 0, host.ParamDestTrack)
	if err != nil {
		t.Fatalf("GetSendInfo() error = %v", err)
	}
	got, err := h.TrackFromPointer(ctx, ptr)
	if err != nil {
		t.Fatalf("TrackFromPointer() error = %v", err)
	}
	if got.ID != dst.ID {
		t.Errorf("dest track = %s, want %s", got.ID, dst.ID)
	}

	env1, _ := h.GetSendInfo(ctx, src.ID, host.CategorySend, 0, host.EnvelopeParam("VOLENV"))
	env2, _ := h.GetSendInfo(ctx, src.ID, host.CategorySend, 0, host.EnvelopeParam("VOLENV"))
	if env1 == 0 || env1 != env2 {
		t.Errorf("envelope handles = %v, %v; want stable non-zero", env1, env2)
	}
}

func TestRemoveSend(t *testing.T) {
	h, src, dst := newTestHost(t)
	ctx := context.Background()

	if err := h.RemoveSend(ctx, dst.ID, host.CategoryReceive, 0); err != nil {
		t.Fatalf("RemoveSend() error = %v", err)
	}
	for _, c := range []struct {
		id  string
		cat host.Category
	}{{src.ID, host.CategorySend}, {dst.ID, host.CategoryReceive}} {
		n, err := h.NumSends(ctx, c.id, c.cat)
		if err != nil || n != 0 {
			t.Errorf("NumSends(%s) = %d, %v; want 0", c.cat, n, err)
		}
	}
}

func TestExtensionMIDIFields(t *testing.T) {
	h, src, _ := newTestHost(t, WithExtension(true))
	ctx := context.Background()

	if !h.ExtensionAvailable(ctx) {
		t.Fatal("ExtensionAvailable() = false")
	}

	flags := routing.Encode(routing.Routing{Source: routing.Endpoint{Bus: 2, Channel: 5}, Dest: routing.Endpoint{Bus: 3}})
	if err := h.SetSendInfo(ctx, src.ID, host.CategorySend, 0, host.ParamMIDIFlags, float64(flags)); err != nil {
		t.Fatalf("SetSendInfo() error = %v", err)
	}

	fields := map[string]float64{
		host.ExtParamMIDISrcBus:  2,
		host.ExtParamMIDISrcChan: 5,
		host.ExtParamMIDIDstBus:  3,
		host.ExtParamMIDIDstChan: 0,
	}
	for param, want := range fields {
		v, err := h.GetSetSendInfo(ctx, src.ID, host.CategorySend, 0, param, false, 0)
		if err != nil {
			t.Fatalf("GetSetSendInfo(%s) error = %v", param, err)
		}
		if v != want {
			t.Errorf("GetSetSendInfo(%s) = %v, want %v", param, v, want)
		}
	}

	// -1 on any field disables the MIDI send
	if _, err := h.GetSetSendInfo(ctx, src.ID, host.CategorySend, 0, host.ExtParamMIDIDstBus, true, -1); err != nil {
		t.Fatalf("GetSetSendInfo(set) error = %v", err)
	}
	v, _ := h.GetSendInfo(ctx, src.ID, host.CategorySend, 0, host.ParamMIDIFlags)
	if int(v) != routing.DisabledFlags {
		t.Errorf("I_MIDIFLAGS = %v, want %d", v, routing.DisabledFlags)
	}

	// enabling a field again starts from all/original
	v, err := h.GetSetSendInfo(ctx, src.ID, host.CategorySend, 0, host.ExtParamMIDISrcChan, true, 7)
	if err != nil || v != 7 {
		t.Fatalf("GetSetSendInfo(set) = %v, %v; want 7", v, err)
	}
	v, _ = h.GetSendInfo(ctx, src.ID, host.CategorySend, 0, host.ParamMIDIFlags)
	if int(v) != 7 {
		t.Errorf("I_MIDIFLAGS = %v, want 7", v)
	}
}

func TestInsideIsAtomic(t *testing.T) {
	h, src, _ := newTestHost(t)
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := h.Inside(ctx, func(ctx context.Context) error {
				v, err := h.GetSendInfo(ctx, src.ID, host.CategorySend, 0, host.ParamPan)
				if err != nil {
					return err
				}
				return h.SetSendInfo(ctx, src.ID, host.CategorySend, 0, host.ParamPan, v+0.01)
			})
			if err != nil {
				t.Errorf("Inside() error = %v", err)
			}
		}()
	}
	wg.Wait()

	v, err := h.GetSendInfo(ctx, src.ID, host.CategorySend, 0, host.ParamPan)
	if err != nil {
		t.Fatalf("GetSendInfo() error = %v", err)
	}
	if v < 0.1999 || v > 0.2001 {
		t.Errorf("pan = %v, want 0.2 after %d atomic increments", v, workers)
	}
}

func TestClosed(t *testing.T) {
	h := New()
	_ = h.Close()
	if _, err := h.AddTrack(context.Background(), "late"); !errors.Is(err, ErrClosed) {
		t.Errorf("AddTrack() after Close error = %v, want ErrClosed", err)
	}
}

func TestCanceledContext(t *testing.T) {
	h := New()
	defer h.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// either outcome is acceptable while the loop is idle, but a canceled
	// context must never hang
	_, _ = h.Tracks(ctx)
}

func TestCancelAfterQueueReportsResult(t *testing.T) {
	h, src, _ := newTestHost(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = h.Inside(context.Background(), func(context.Context) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		result <- h.SetSendInfo(ctx, src.ID, host.CategorySend, 0, host.ParamVolume, 0.25)
	}()
	for len(h.ops) == 0 {
		time.Sleep(time.Millisecond)
	}

	cancel()
	time.Sleep(10 * time.Millisecond)
	close(release)

	if err := <-result; err != nil {
		t.Fatalf("SetSendInfo() error = %v, want the queued write to report success", err)
	}
	v, err := h.GetSendInfo(context.Background(), src.ID, host.CategorySend, 0, host.ParamVolume)
	if err != nil || v != 0.25 {
		t.Errorf("D_VOL = %v, %v; want 0.25", v, err)
	}
}

func TestCloseWhileQueued(t *testing.T) {
	h, src, _ := newTestHost(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = h.Inside(context.Background(), func(context.Context) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	result := make(chan error, 1)
	go func() {
		result <- h.SetSendInfo(context.Background(), src.ID, host.CategorySend, 0, host.ParamMute, 1)
	}()
	for len(h.ops) == 0 {
		time.Sleep(time.Millisecond)
	}

	closed := make(chan struct{})
	go func() {
		_ = h.Close()
		close(closed)
	}()
	time.Sleep(10 * time.Millisecond)
	close(release)
	<-closed

	// the loop may or may not have picked the write up before stopping
	if err := <-result; err != nil && !errors.Is(err, ErrClosed) {
		t.Errorf("SetSendInfo() error = %v, want nil or ErrClosed", err)
	}
}

func TestLoad(t *testing.T) {
	h := New()
	defer h.Close()
	ctx := context.Background()

	vol := 0.25
	flags := 12615685
	p := Project{Tracks: []TrackSpec{
		{Name: "Keys", Sends: []SendSpec{{To: "Reverb", Volume: &vol, MIDIFlags: &flags}}, HardwareOutputs: 1},
		{Name: "Reverb"},
	}}
	if err := h.Load(ctx, p); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	keys, err := h.TrackByName(ctx, "Keys")
	if err != nil {
		t.Fatalf("TrackByName() error = %v", err)
	}
	v, _ := h.GetSendInfo(ctx, keys.ID, host.CategorySend, 0, host.ParamVolume)
	if v != vol {
		t.Errorf("volume = %v, want %v", v, vol)
	}
	v, _ = h.GetSendInfo(ctx, keys.ID, host.CategorySend, 0, host.ParamMIDIFlags)
	if int(v) != flags {
		t.Errorf("I_MIDIFLAGS = %v, want %d", v, flags)
	}
	if n, _ := h.NumSends(ctx, keys.ID, host.CategoryHardware); n != 1 {
		t.Errorf("hardware outputs = %d, want 1", n)
	}

	bad := Project{Tracks: []TrackSpec{{Name: "A", Sends: []SendSpec{{To: "missing"}}}}}
	if err := h.Load(ctx, bad); !errors.Is(err, host.ErrInvalidTrack) {
		t.Errorf("Load(bad) error = %v, want ErrInvalidTrack", err)
	}
}

func TestDeliverMIDI(t *testing.T) {
	h, src, dst := newTestHost(t)
	ctx := context.Background()

	r := routing.Routing{Source: routing.Endpoint{Channel: 1}, Dest: routing.Endpoint{Bus: 2, Channel: 4}}
	if err := h.SetSendInfo(ctx, src.ID, host.CategorySend, 0, host.ParamMIDIFlags, float64(routing.Encode(r))); err != nil {
		t.Fatalf("SetSendInfo() error = %v", err)
	}

	got, err := h.DeliverMIDI(ctx, src.ID, midi.NoteOn(0, 60, 100))
	if err != nil {
		t.Fatalf("DeliverMIDI() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(got))
	}
	var ch uint8
	got[0].Message.GetChannel(&ch)
	if got[0].Track.ID != dst.ID || got[0].Bus != 2 || ch != 3 {
		t.Errorf("delivery = %+v (channel %d)", got[0], ch)
	}

	got, _ = h.DeliverMIDI(ctx, src.ID, midi.NoteOn(5, 60, 100))
	if len(got) != 0 {
		t.Errorf("channel 6 deliveries = %d, want 0", len(got))
	}

	_ = h.SetSendInfo(ctx, src.ID, host.CategorySend, 0, host.ParamMute, 1)
	got, _ = h.DeliverMIDI(ctx, src.ID, midi.NoteOn(0, 60, 100))
	if len(got) != 0 {
		t.Errorf("muted deliveries = %d, want 0", len(got))
	}
}
