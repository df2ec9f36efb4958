package memhost

import (
	"context"

	"gitlab.com/gomidi/midi/v2"

	"github.com/james-see/reasend/pkg/host"
	"github.com/james-see/reasend/pkg/routing"
)

// Delivery is a MIDI message arriving on a track through a send
type Delivery struct {
	Track   host.Track
	Bus     int
	Message midi.Message
}

// DeliverMIDI plays msg on a track and returns what each of its unmuted
// sends passes on, according to the send's MIDI routing.
func (h *Host) DeliverMIDI(ctx context.Context, trackID string, msg midi.Message) ([]Delivery, error) {
	var out []Delivery
	err := h.exec(ctx, func() error {
		t, err := h.track(trackID)
		if err != nil {
			return err
		}
		for _, r := range t.sends {
			if r.params[host.ParamMute] != 0 {
				continue
			}
			rt := routing.Decode(int(r.params[host.ParamMIDIFlags]))
			routed, ok := rt.Apply(msg)
			if !ok {
				continue
			}
			out = append(out, Delivery{Track: r.dst.ref, Bus: rt.Dest.Bus, Message: routed})
		}
		return nil
	})
	return out, err
}
