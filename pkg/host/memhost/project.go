package memhost

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/james-see/reasend/pkg/host"
	"github.com/james-see/reasend/pkg/routing"
)

type track struct {
	ref      host.Track
	ptr      uint64
	sends    []*route
	receives []*route
	hwOuts   []*route
}

// route is one send. Track sends are shared between the source's send list
// and the destination's receive list; hardware outputs have no dst.
type route struct {
	src    *track
	dst    *track
	params map[string]float64
	envs   map[string]uint64
}

func defaultParams(hardware bool) map[string]float64 {
	midiFlags := 0.0
	if hardware {
		midiFlags = routing.DisabledFlags
	}
	return map[string]float64{
		host.ParamMute:              0,
		host.ParamPhase:             0,
		host.ParamMono:              0,
		host.ParamVolume:            1,
		host.ParamPan:               0,
		host.ParamPanLaw:            -1,
		host.ParamSendMode:          0,
		host.ParamAutoMode:          -1,
		host.ParamSrcChan:           0,
		host.ParamDstChan:           0,
		host.ParamMIDIFlags:         midiFlags,
		host.ExtParamMIDILinkVolPan: 0,
	}
}

func (h *Host) allocPtr() uint64 {
	p := h.nextPtr
	h.nextPtr += 0x100
	return p
}

// AddTrack appends a track to the project
func (h *Host) AddTrack(ctx context.Context, name string) (host.Track, error) {
	var ref host.Track
	err := h.exec(ctx, func() error {
		ptr := h.allocPtr()
		t := &track{
			ref: host.Track{
				ID:   fmt.Sprintf("(MediaTrack*)0x%016X", ptr),
				GUID: "{" + uuid.New().String() + "}",
				Name: name,
			},
			ptr: ptr,
		}
		h.tracks = append(h.tracks, t)
		h.byID[t.ref.ID] = t
		h.byPtr[ptr] = t
		ref = t.ref
		h.log.Info("track added", "track", ref.ID, "name", name)
		return nil
	})
	return ref, err
}

// CreateSend adds a send from src to dst and returns its index on src
func (h *Host) CreateSend(ctx context.Context, srcID, dstID string) (int, error) {
	var index int
	err := h.exec(ctx, func() error {
		src, err := h.track(srcID)
		if err != nil {
			return err
		}
		dst, err := h.track(dstID)
		if err != nil {
			return err
		}
		if src == dst {
			return fmt.Errorf("%w: track cannot send to itself", host.ErrInvalidTrack)
		}
		r := &route{src: src, dst: dst, params: defaultParams(false)}
		src.sends = append(src.sends, r)
		dst.receives = append(dst.receives, r)
		index = len(src.sends) - 1
		h.log.Info("send created", "src", srcID, "dst", dstID, "index", index)
		return nil
	})
	return index, err
}

// CreateHardwareOutput adds a hardware output to a track and returns its index
func (h *Host) CreateHardwareOutput(ctx context.Context, trackID string) (int, error) {
	var index int
	err := h.exec(ctx, func() error {
		t, err := h.track(trackID)
		if err != nil {
			return err
		}
		t.hwOuts = append(t.hwOuts, &route{src: t, params: defaultParams(true)})
		index = len(t.hwOuts) - 1
		h.log.Info("hardware output created", "track", trackID, "index", index)
		return nil
	})
	return index, err
}

// Tracks lists the project's tracks in order
func (h *Host) Tracks(ctx context.Context) ([]host.Track, error) {
	var out []host.Track
	err := h.exec(ctx, func() error {
		out = make([]host.Track, 0, len(h.tracks))
		for _, t := range h.tracks {
			out = append(out, t.ref)
		}
		return nil
	})
	return out, err
}

// NumSends counts the routings of one category on a track
func (h *Host) NumSends(ctx context.Context, trackID string, cat host.Category) (int, error) {
	var n int
	err := h.exec(ctx, func() error {
		t, err := h.track(trackID)
		if err != nil {
			return err
		}
		list, err := t.list(cat)
		if err != nil {
			return err
		}
		n = len(list)
		return nil
	})
	return n, err
}

// TrackByName finds the first track called name
func (h *Host) TrackByName(ctx context.Context, name string) (host.Track, error) {
	var ref host.Track
	err := h.exec(ctx, func() error {
		for _, t := range h.tracks {
			if t.ref.Name == name {
				ref = t.ref
				return nil
			}
		}
		return fmt.Errorf("%w: no track named %q", host.ErrInvalidTrack, name)
	})
	return ref, err
}

func (h *Host) track(id string) (*track, error) {
	t, ok := h.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", host.ErrInvalidTrack, id)
	}
	return t, nil
}

func (t *track) list(cat host.Category) ([]*route, error) {
	switch cat {
	case host.CategorySend:
		return t.sends, nil
	case host.CategoryReceive:
		return t.receives, nil
	case host.CategoryHardware:
		return t.hwOuts, nil
	default:
		return nil, fmt.Errorf("%w: unknown category %d", host.ErrIndexOutOfRange, int(cat))
	}
}

func (h *Host) route(trackID string, cat host.Category, index int) (*route, error) {
	t, err := h.track(trackID)
	if err != nil {
		return nil, err
	}
	list, err := t.list(cat)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(list) {
		return nil, fmt.Errorf("%w: %s %d of %d on %s", host.ErrIndexOutOfRange, cat, index, len(list), trackID)
	}
	return list[index], nil
}

func removeRoute(list []*route, r *route) []*route {
	for i, x := range list {
		if x == r {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// SendSpec describes a send to create when loading a project
type SendSpec struct {
	To        string   `toml:"to" json:"to"`
	Volume    *float64 `toml:"volume,omitempty" json:"volume,omitempty"`
	Pan       float64  `toml:"pan,omitempty" json:"pan,omitempty"`
	Muted     bool     `toml:"muted,omitempty" json:"muted,omitempty"`
	MIDIFlags *int     `toml:"midi_flags,omitempty" json:"midi_flags,omitempty"`
}

// TrackSpec describes a track to create when loading a project
type TrackSpec struct {
	Name            string     `toml:"name" json:"name"`
	Sends           []SendSpec `toml:"sends,omitempty" json:"sends,omitempty"`
	HardwareOutputs int        `toml:"hardware_outputs,omitempty" json:"hardware_outputs,omitempty"`
}

// Project is a declarative project layout
type Project struct {
	Tracks []TrackSpec `toml:"tracks" json:"tracks"`
}

// Load creates every track of p, then its sends and hardware outputs.
// Send targets refer to tracks by name.
func (h *Host) Load(ctx context.Context, p Project) error {
	return h.Inside(ctx, func(ctx context.Context) error {
		ids := make(map[string]string, len(p.Tracks))
		for _, ts := range p.Tracks {
			ref, err := h.AddTrack(ctx, ts.Name)
			if err != nil {
				return err
			}
			ids[ts.Name] = ref.ID
		}

		for _, ts := range p.Tracks {
			src := ids[ts.Name]
			for _, ss := range ts.Sends {
				dst, ok := ids[ss.To]
				if !ok {
					return fmt.Errorf("%w: send target %q not in project", host.ErrInvalidTrack, ss.To)
				}
				idx, err := h.CreateSend(ctx, src, dst)
				if err != nil {
					return err
				}
				if err := h.applySpec(ctx, src, idx, ss); err != nil {
					return err
				}
			}
			for i := 0; i < ts.HardwareOutputs; i++ {
				if _, err := h.CreateHardwareOutput(ctx, src); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (h *Host) applySpec(ctx context.Context, trackID string, idx int, ss SendSpec) error {
	set := func(param string, v float64) error {
		return h.SetSendInfo(ctx, trackID, host.CategorySend, idx, param, v)
	}
	if ss.Volume != nil {
		if err := set(host.ParamVolume, *ss.Volume); err != nil {
			return err
		}
	}
	if ss.Pan != 0 {
		if err := set(host.ParamPan, ss.Pan); err != nil {
			return err
		}
	}
	if ss.Muted {
		if err := set(host.ParamMute, 1); err != nil {
			return err
		}
	}
	if ss.MIDIFlags != nil {
		if err := set(host.ParamMIDIFlags, float64(*ss.MIDIFlags)); err != nil {
			return err
		}
	}
	return nil
}
