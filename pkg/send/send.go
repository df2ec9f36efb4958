// Package send exposes a host track send (outgoing send, hardware output or
// receive) as a typed object. Every accessor is a single host call; nothing
// is cached, so the last write wins.
package send

import (
	"context"
	"errors"
	"fmt"

	"github.com/james-see/reasend/pkg/host"
)

// Kind is the routing role of a Send
type Kind string

const (
	KindSend     Kind = "send"
	KindHardware Kind = "hardware"
	KindReceive  Kind = "receive"
)

var kindCodes = map[Kind]host.Category{
	KindSend:     host.CategorySend,
	KindHardware: host.CategoryHardware,
	KindReceive:  host.CategoryReceive,
}

var (
	ErrNoTrack     = errors.New("one of Track or TrackID must be specified")
	ErrUnknownKind = errors.New("unknown send kind")
)

// Code returns the host category for k
func (k Kind) Code() (host.Category, error) {
	code, ok := kindCodes[k]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, string(k))
	}
	return code, nil
}

// ParseKind looks up a kind by name
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if _, err := k.Code(); err != nil {
		return "", err
	}
	return k, nil
}

// KindOf returns the kind addressed by a host category
func KindOf(cat host.Category) (Kind, error) {
	for k, c := range kindCodes {
		if c == cat {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: category %d", ErrUnknownKind, int(cat))
}

// Config identifies a send. Track or TrackID is required; an empty Kind means KindSend.
type Config struct {
	Track   *host.Track
	TrackID string
	Index   int
	Kind    Kind
}

// Send is a handle on one routing slot of a track.
// If the host deletes or reorders routings, a Send keeps pointing at the
// same slot and silently addresses whatever occupies it now.
type Send struct {
	host    host.Host
	trackID string
	index   int
	kind    Kind
	code    host.Category
}

// New creates a Send backed by h
func New(h host.Host, cfg Config) (*Send, error) {
	trackID := cfg.TrackID
	if trackID == "" {
		if cfg.Track == nil {
			return nil, ErrNoTrack
		}
		trackID = cfg.Track.ID
	}

	kind := cfg.Kind
	if kind == "" {
		kind = KindSend
	}
	code, err := kind.Code()
	if err != nil {
		return nil, err
	}

	return &Send{
		host:    h,
		trackID: trackID,
		index:   cfg.Index,
		kind:    kind,
		code:    code,
	}, nil
}

// TrackID returns the id of the owning track
func (s *Send) TrackID() string { return s.trackID }

// Index returns the position of the send on its track
func (s *Send) Index() int { return s.index }

// Kind returns the routing role
func (s *Send) Kind() Kind { return s.kind }

// Category returns the host code for the routing role
func (s *Send) Category() host.Category { return s.code }

func (s *Send) String() string {
	return fmt.Sprintf("%s %d on %s", s.kind, s.index, s.trackID)
}

// Info reads a raw parameter. See the host package for parameter names.
func (s *Send) Info(ctx context.Context, param string) (float64, error) {
	return s.host.GetSendInfo(ctx, s.trackID, s.code, s.index, param)
}

// SetInfo writes a raw parameter
func (s *Send) SetInfo(ctx context.Context, param string, value float64) error {
	return s.host.SetSendInfo(ctx, s.trackID, s.code, s.index, param, value)
}

// ExtInfo reads a parameter through the host extension.
// It fails with host.ErrExtensionUnavailable when the extension is missing.
func (s *Send) ExtInfo(ctx context.Context, param string) (float64, error) {
	ext, err := host.RequireExtension(ctx, s.host)
	if err != nil {
		return 0, err
	}
	return ext.GetSetSendInfo(ctx, s.trackID, s.code, s.index, param, false, 0)
}

// SetExtInfo writes a parameter through the host extension
func (s *Send) SetExtInfo(ctx context.Context, param string, value float64) error {
	ext, err := host.RequireExtension(ctx, s.host)
	if err != nil {
		return err
	}
	_, err = ext.GetSetSendInfo(ctx, s.trackID, s.code, s.index, param, true, value)
	return err
}

// Delete removes the send from the host
func (s *Send) Delete(ctx context.Context) error {
	return s.host.RemoveSend(ctx, s.trackID, s.code, s.index)
}

// DestTrack resolves the track the send feeds
func (s *Send) DestTrack(ctx context.Context) (host.Track, error) {
	return s.trackParam(ctx, host.ParamDestTrack)
}

// SourceTrack resolves the track the send comes from
func (s *Send) SourceTrack(ctx context.Context) (host.Track, error) {
	return s.trackParam(ctx, host.ParamSrcTrack)
}

func (s *Send) trackParam(ctx context.Context, param string) (host.Track, error) {
	ptr, err := s.Info(ctx, param)
	if err != nil {
		return host.Track{}, err
	}
	return s.host.TrackFromPointer(ctx, ptr)
}

// Envelope returns the opaque host handle of an automation envelope,
// e.g. Envelope(ctx, "VOLENV")
func (s *Send) Envelope(ctx context.Context, chunk string) (float64, error) {
	return s.Info(ctx, host.EnvelopeParam(chunk))
}

func (s *Send) inside(ctx context.Context, fn func(ctx context.Context) error) error {
	return host.Inside(ctx, s.host, fn)
}
