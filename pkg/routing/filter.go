package routing

import (
	"bytes"
	"fmt"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// Apply runs msg through the routing the way a host send does.
// Channel messages pass when the source channel is 0 (all) or matches, and
// are moved to the destination channel unless it is 0 (original).
// Messages without a channel pass unchanged. A disabled routing passes nothing.
func (r Routing) Apply(msg midi.Message) (midi.Message, bool) {
	if r.IsDisabled() || len(msg) == 0 {
		return nil, false
	}

	var ch uint8
	if !msg.GetChannel(&ch) {
		return msg, true
	}

	// Routing channels are 1-based, wire channels 0-based
	if r.Source.Channel != 0 && r.Source.Channel != int(ch)+1 {
		return nil, false
	}
	if r.Dest.Channel == 0 || r.Dest.Channel > 16 {
		return msg, true
	}

	out := make(midi.Message, len(msg))
	copy(out, msg)
	out[0] = out[0]&0xF0 | uint8(r.Dest.Channel-1)
	return out, true
}

// RouteSMF applies r to every event of a Standard MIDI File and returns the
// rewritten file. Dropped events keep their delta time so timing is preserved.
func RouteSMF(r Routing, data []byte) ([]byte, error) {
	in, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse MIDI: %w", err)
	}

	out := smf.New()
	out.TimeFormat = in.TimeFormat

	for _, track := range in.Tracks {
		var routed smf.Track
		var carry uint32

		for _, ev := range track {
			msg := ev.Message
			carry += ev.Delta

			// End of track (FF 2F 00) is re-added by Close
			if len(msg) >= 2 && msg[0] == 0xFF && msg[1] == 0x2F {
				continue
			}

			// Meta and sysex events are file structure, not routed data
			if len(msg) > 0 && (msg[0] == 0xFF || msg[0] == 0xF0 || msg[0] == 0xF7) {
				routed.Add(carry, msg)
				carry = 0
				continue
			}

			m, ok := r.Apply(midi.Message(msg))
			if !ok {
				continue
			}
			routed.Add(carry, smf.Message(m))
			carry = 0
		}

		routed.Close(carry)
		if err := out.Add(routed); err != nil {
			return nil, fmt.Errorf("failed to add track: %w", err)
		}
	}

	var buf bytes.Buffer
	if _, err := out.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write MIDI: %w", err)
	}
	return buf.Bytes(), nil
}
