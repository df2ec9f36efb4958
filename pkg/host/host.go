// Package host declares the scripting primitives a DAW exposes for track
// sends. Everything in reasend reads and writes send state through these
// interfaces; the host owns the state.
package host

import (
	"context"
	"errors"
	"strings"
)

// Category is the host's integer code for a routing role
type Category int

const (
	CategoryReceive  Category = -1
	CategorySend     Category = 0
	CategoryHardware Category = 1
)

func (c Category) String() string {
	switch c {
	case CategoryReceive:
		return "receive"
	case CategorySend:
		return "send"
	case CategoryHardware:
		return "hardware"
	default:
		return "unknown"
	}
}

// Valid reports whether c is one of the three codes the host accepts
func (c Category) Valid() bool {
	return c >= CategoryReceive && c <= CategoryHardware
}

// Send parameter names, as the host spells them.
//
//	D_VOL       1.0 = +0dB
//	D_PAN       -1..+1
//	D_PANLAW    1.0=+0.0dB, 0.5=-6dB, -1.0=project default
//	I_SRCCHAN   index, &1024=mono, -1 for none
//	I_DSTCHAN   index, &1024=mono, hardware outputs &512=rearoute
//	P_*         read only; P_ENV:< takes an envelope chunk name suffix
const (
	ParamMute      = "B_MUTE"
	ParamPhase     = "B_PHASE"
	ParamMono      = "B_MONO"
	ParamVolume    = "D_VOL"
	ParamPan       = "D_PAN"
	ParamPanLaw    = "D_PANLAW"
	ParamSendMode  = "I_SENDMODE"
	ParamAutoMode  = "I_AUTOMODE"
	ParamSrcChan   = "I_SRCCHAN"
	ParamDstChan   = "I_DSTCHAN"
	ParamMIDIFlags = "I_MIDIFLAGS"
	ParamDestTrack = "P_DESTTRACK"
	ParamSrcTrack  = "P_SRCTRACK"
	ParamEnvPrefix = "P_ENV:<"
)

// Parameter names only available through the Extension
const (
	ExtParamMIDISrcChan    = "I_MIDI_SRCCHAN"
	ExtParamMIDIDstChan    = "I_MIDI_DSTCHAN"
	ExtParamMIDISrcBus     = "I_MIDI_SRCBUS"
	ExtParamMIDIDstBus     = "I_MIDI_DSTBUS"
	ExtParamMIDILinkVolPan = "I_MIDI_LINK_VOLPAN"
)

// EnvelopeParam builds the P_ENV parameter name for an envelope chunk
func EnvelopeParam(chunk string) string {
	return ParamEnvPrefix + strings.TrimPrefix(chunk, "<")
}

var (
	ErrInvalidTrack         = errors.New("invalid track")
	ErrInvalidParam         = errors.New("invalid parameter name")
	ErrIndexOutOfRange      = errors.New("send index out of range")
	ErrReadOnly             = errors.New("parameter is read only")
	ErrExtensionUnavailable = errors.New("host extension not available")
)

// Stable codes for the error sentinels, used on the wire
var errorCodes = []struct {
	err  error
	code string
}{
	{ErrInvalidTrack, "invalid_track"},
	{ErrInvalidParam, "invalid_param"},
	{ErrIndexOutOfRange, "index_out_of_range"},
	{ErrReadOnly, "read_only"},
	{ErrExtensionUnavailable, "extension_unavailable"},
}

// ErrorCode returns the wire code of the sentinel err wraps, or "host_error"
func ErrorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return "host_error"
}

// ErrorFromCode returns the sentinel for a wire code, or nil if the code is unknown
func ErrorFromCode(code string) error {
	for _, ec := range errorCodes {
		if ec.code == code {
			return ec.err
		}
	}
	return nil
}

// Track is a reference to a host track
type Track struct {
	ID   string `json:"id"`
	GUID string `json:"guid,omitempty"`
	Name string `json:"name,omitempty"`
}

// Host is the set of primitives every send operation is built from
type Host interface {
	GetSendInfo(ctx context.Context, trackID string, cat Category, index int, param string) (float64, error)
	SetSendInfo(ctx context.Context, trackID string, cat Category, index int, param string, value float64) error
	RemoveSend(ctx context.Context, trackID string, cat Category, index int) error
	TrackFromPointer(ctx context.Context, pointer float64) (Track, error)
}

// Extension is the optional third-party primitive with the richer parameter set.
// GetSetSendInfo writes value when set is true and returns the current value.
type Extension interface {
	ExtensionAvailable(ctx context.Context) bool
	GetSetSendInfo(ctx context.Context, trackID string, cat Category, index int, param string, set bool, value float64) (float64, error)
}

// Executor runs fn on the host's own execution context. Calls made by fn
// with the context it receives must not be dispatched again.
type Executor interface {
	Inside(ctx context.Context, fn func(ctx context.Context) error) error
}

// Browser lists what a host project contains
type Browser interface {
	Tracks(ctx context.Context) ([]Track, error)
	NumSends(ctx context.Context, trackID string, cat Category) (int, error)
}

// RequireExtension returns h as an Extension when it has one installed
func RequireExtension(ctx context.Context, h Host) (Extension, error) {
	ext, ok := h.(Extension)
	if !ok || !ext.ExtensionAvailable(ctx) {
		return nil, ErrExtensionUnavailable
	}
	return ext, nil
}

// Inside runs fn through h's Executor, or directly when h has none
func Inside(ctx context.Context, h Host, fn func(ctx context.Context) error) error {
	if ex, ok := h.(Executor); ok {
		return ex.Inside(ctx, fn)
	}
	return fn(ctx)
}
