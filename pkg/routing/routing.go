// Package routing encodes and decodes the packed MIDI and audio channel
// fields a host stores on track sends.
package routing

import (
	"fmt"
)

// DisabledFlags is the I_MIDIFLAGS value a host uses for "MIDI send disabled".
// It cannot be produced by the packing rule and is special-cased both ways.
const DisabledFlags = 0b1111111100000000011111

// Field layout of I_MIDIFLAGS
const (
	channelMask   = 0b11111      // 5 bits per channel
	channelFields = 0b1111111111 // low 10 bits: source + destination channel
	dstChanShift  = 5
	srcBusShift   = 14
	dstBusShift   = 22
	busFieldShift = dstBusShift - srcBusShift
)

// Endpoint is one side of a MIDI routing.
// Channel 0 means "all" on the source side and "original" on the destination side.
type Endpoint struct {
	Bus     int `json:"bus"`
	Channel int `json:"channel"`
}

// Routing pairs the source and destination MIDI endpoints of a send
type Routing struct {
	Source Endpoint `json:"source"`
	Dest   Endpoint `json:"dest"`
}

// Disabled is the decoded form of DisabledFlags
var Disabled = Routing{
	Source: Endpoint{Bus: -1, Channel: -1},
	Dest:   Endpoint{Bus: -1, Channel: -1},
}

// IsDisabled reports whether r means "no MIDI routing"
func (r Routing) IsDisabled() bool {
	return r == Disabled
}

func (e Endpoint) String() string {
	return fmt.Sprintf("(%d,%d)", e.Bus, e.Channel)
}

func (r Routing) String() string {
	if r.IsDisabled() {
		return "disabled"
	}
	return fmt.Sprintf("%s -> %s", r.Source, r.Dest)
}

// Decode unpacks an I_MIDIFLAGS value. Any input yields a result; values
// outside the documented layout decode to whatever their bits say.
func Decode(flags int) Routing {
	if flags == DisabledFlags {
		return Disabled
	}

	ch := flags & channelFields
	bus := flags >> srcBusShift

	return Routing{
		Source: Endpoint{
			Bus:     bus & channelMask,
			Channel: ch & channelMask,
		},
		Dest: Endpoint{
			Bus:     bus >> busFieldShift,
			Channel: ch >> dstChanShift,
		},
	}
}

// Encode packs r into an I_MIDIFLAGS value.
// Components are not range checked: an oversized value spills into the
// neighbouring field. Use Validate first when that matters.
func Encode(r Routing) int {
	if r.IsDisabled() {
		return DisabledFlags
	}
	return r.Source.Bus<<srcBusShift |
		r.Source.Channel |
		r.Dest.Bus<<dstBusShift |
		r.Dest.Channel<<dstChanShift
}

// Widths that survive a Decode(Encode(r)) round trip
const (
	MaxChannel   = channelMask
	MaxSourceBus = channelMask
	MaxDestBus   = 0xFF
)

// RangeError reports a routing component outside its field width
type RangeError struct {
	Field string
	Value int
	Max   int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("routing: %s = %d out of range [0, %d]", e.Field, e.Value, e.Max)
}

// Validate checks every component against its field width.
// Disabled is always valid.
func (r Routing) Validate() error {
	if r.IsDisabled() {
		return nil
	}
	checks := []struct {
		field string
		value int
		max   int
	}{
		{"source bus", r.Source.Bus, MaxSourceBus},
		{"source channel", r.Source.Channel, MaxChannel},
		{"dest bus", r.Dest.Bus, MaxDestBus},
		{"dest channel", r.Dest.Channel, MaxChannel},
	}
	for _, c := range checks {
		if c.value < 0 || c.value > c.max {
			return &RangeError{Field: c.field, Value: c.value, Max: c.max}
		}
	}
	return nil
}
