package routing

// Flag bits carried by I_SRCCHAN / I_DSTCHAN
const (
	MonoFlag     = 1024
	RearouteFlag = 512 // hardware outputs only
	NoChannel    = -1  // audio send disabled
)

// AudioChannel is a decoded I_SRCCHAN or I_DSTCHAN value
type AudioChannel struct {
	Index    int  `json:"index"`
	Mono     bool `json:"mono"`
	Rearoute bool `json:"rearoute,omitempty"`
	None     bool `json:"none,omitempty"`
}

// DecodeAudioChannel splits a channel parameter into its starting index and flags
func DecodeAudioChannel(v int) AudioChannel {
	if v < 0 {
		return AudioChannel{Index: NoChannel, None: true}
	}
	return AudioChannel{
		Index:    v &^ (MonoFlag | RearouteFlag),
		Mono:     v&MonoFlag != 0,
		Rearoute: v&RearouteFlag != 0,
	}
}

// Encode packs c back into the host's integer form
func (c AudioChannel) Encode() int {
	if c.None {
		return NoChannel
	}
	v := c.Index
	if c.Mono {
		v |= MonoFlag
	}
	if c.Rearoute {
		v |= RearouteFlag
	}
	return v
}
