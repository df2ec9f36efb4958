package memhost

import (
	"context"
	"fmt"
	"strings"

	"github.com/james-see/reasend/pkg/host"
	"github.com/james-see/reasend/pkg/routing"
)

var envelopeChunks = map[string]bool{
	"VOLENV":  true,
	"PANENV":  true,
	"MUTEENV": true,
}

// Parameters the extension accepts on top of the derived MIDI ones
var extParams = map[string]bool{
	host.ParamMute:              true,
	host.ParamPhase:             true,
	host.ParamMono:              true,
	host.ParamVolume:            true,
	host.ParamPan:               true,
	host.ParamPanLaw:            true,
	host.ParamSendMode:          true,
	host.ParamSrcChan:           true,
	host.ParamDstChan:           true,
	host.ExtParamMIDILinkVolPan: true,
}

func isIntParam(param string) bool {
	return strings.HasPrefix(param, "I_") || strings.HasPrefix(param, "B_")
}

// GetSendInfo reads one send parameter
func (h *Host) GetSendInfo(ctx context.Context, trackID string, cat host.Category, index int, param string) (float64, error) {
	var v float64
	err := h.exec(ctx, func() error {
		r, err := h.route(trackID, cat, index)
		if err != nil {
			return err
		}
		v, err = h.get(r, param)
		return err
	})
	return v, err
}

func (h *Host) get(r *route, param string) (float64, error) {
	switch {
	case param == host.ParamDestTrack:
		if r.dst == nil {
			return 0, nil
		}
		return float64(r.dst.ptr), nil
	case param == host.ParamSrcTrack:
		return float64(r.src.ptr), nil
	case strings.HasPrefix(param, host.ParamEnvPrefix):
		chunk := strings.TrimPrefix(param, host.ParamEnvPrefix)
		if !envelopeChunks[chunk] {
			return 0, fmt.Errorf("%w: %s", host.ErrInvalidParam, param)
		}
		if r.envs == nil {
			r.envs = make(map[string]uint64)
		}
		ptr, ok := r.envs[chunk]
		if !ok {
			ptr = h.allocPtr()
			r.envs[chunk] = ptr
		}
		return float64(ptr), nil
	case param == host.ExtParamMIDILinkVolPan:
		return 0, fmt.Errorf("%w: %s", host.ErrInvalidParam, param)
	}

	v, ok := r.params[param]
	if !ok {
		return 0, fmt.Errorf("%w: %s", host.ErrInvalidParam, param)
	}
	return v, nil
}

// SetSendInfo writes one send parameter
func (h *Host) SetSendInfo(ctx context.Context, trackID string, cat host.Category, index int, param string, value float64) error {
	return h.exec(ctx, func() error {
		r, err := h.route(trackID, cat, index)
		if err != nil {
			return err
		}
		if err := h.set(r, param, value); err != nil {
			return err
		}
		h.log.Debug("send info set", "track", trackID, "category", cat.String(), "index", index, "param", param, "value", value)
		return nil
	})
}

func (h *Host) set(r *route, param string, value float64) error {
	if strings.HasPrefix(param, "P_") {
		return fmt.Errorf("%w: %s", host.ErrReadOnly, param)
	}
	if param == host.ExtParamMIDILinkVolPan {
		return fmt.Errorf("%w: %s", host.ErrInvalidParam, param)
	}
	if _, ok := r.params[param]; !ok {
		return fmt.Errorf("%w: %s", host.ErrInvalidParam, param)
	}
	if isIntParam(param) {
		value = float64(int(value))
	}
	r.params[param] = value
	return nil
}

// RemoveSend deletes a send, receive or hardware output. Removing a send
// also removes the matching receive on the destination track.
func (h *Host) RemoveSend(ctx context.Context, trackID string, cat host.Category, index int) error {
	return h.exec(ctx, func() error {
		r, err := h.route(trackID, cat, index)
		if err != nil {
			return err
		}
		if r.dst == nil {
			r.src.hwOuts = removeRoute(r.src.hwOuts, r)
		} else {
			r.src.sends = removeRoute(r.src.sends, r)
			r.dst.receives = removeRoute(r.dst.receives, r)
		}
		h.log.Info("send removed", "track", trackID, "category", cat.String(), "index", index)
		return nil
	})
}

// TrackFromPointer resolves a pointer returned by P_DESTTRACK / P_SRCTRACK
func (h *Host) TrackFromPointer(ctx context.Context, pointer float64) (host.Track, error) {
	var ref host.Track
	err := h.exec(ctx, func() error {
		t, ok := h.byPtr[uint64(pointer)]
		if !ok {
			return fmt.Errorf("%w: no track at pointer 0x%X", host.ErrInvalidTrack, uint64(pointer))
		}
		ref = t.ref
		return nil
	})
	return ref, err
}

// GetSetSendInfo is the extension primitive. The I_MIDI_* parameters are
// views on I_MIDIFLAGS; -1 on any of them disables the MIDI send.
func (h *Host) GetSetSendInfo(ctx context.Context, trackID string, cat host.Category, index int, param string, set bool, value float64) (float64, error) {
	var out float64
	err := h.exec(ctx, func() error {
		if !h.extension {
			return host.ErrExtensionUnavailable
		}
		r, err := h.route(trackID, cat, index)
		if err != nil {
			return err
		}

		if isMIDIField(param) {
			rt := routing.Decode(int(r.params[host.ParamMIDIFlags]))
			if set {
				rt = setMIDIField(rt, param, int(value))
				r.params[host.ParamMIDIFlags] = float64(routing.Encode(rt))
			}
			out = float64(midiField(rt, param))
			return nil
		}

		if !extParams[param] {
			return fmt.Errorf("%w: %s", host.ErrInvalidParam, param)
		}
		if set {
			if isIntParam(param) {
				value = float64(int(value))
			}
			r.params[param] = value
		}
		out = r.params[param]
		return nil
	})
	return out, err
}

func isMIDIField(param string) bool {
	switch param {
	case host.ExtParamMIDISrcChan, host.ExtParamMIDIDstChan, host.ExtParamMIDISrcBus, host.ExtParamMIDIDstBus:
		return true
	}
	return false
}

func midiField(rt routing.Routing, param string) int {
	switch param {
	case host.ExtParamMIDISrcChan:
		return rt.Source.Channel
	case host.ExtParamMIDIDstChan:
		return rt.Dest.Channel
	case host.ExtParamMIDISrcBus:
		return rt.Source.Bus
	default:
		return rt.Dest.Bus
	}
}

func setMIDIField(rt routing.Routing, param string, v int) routing.Routing {
	if v < 0 {
		return routing.Disabled
	}
	if rt.IsDisabled() {
		rt = routing.Routing{}
	}
	switch param {
	case host.ExtParamMIDISrcChan:
		rt.Source.Channel = v
	case host.ExtParamMIDIDstChan:
		rt.Dest.Channel = v
	case host.ExtParamMIDISrcBus:
		rt.Source.Bus = v
	case host.ExtParamMIDIDstBus:
		rt.Dest.Bus = v
	}
	return rt
}
