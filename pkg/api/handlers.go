package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/james-see/reasend/pkg/host"
	"github.com/james-see/reasend/pkg/routing"
)

// ValueRequest sets a parameter
type ValueRequest struct {
	Value *float64 `json:"value" binding:"required"`
}

// ValueResponse carries a parameter value
type ValueResponse struct {
	Value float64 `json:"value"`
}

// routeParams are the path parameters addressing one send
type routeParams struct {
	track    string
	category host.Category
	index    int
}

func parseRoute(c *gin.Context) (routeParams, bool) {
	cat, err := strconv.Atoi(c.Param("category"))
	if err != nil || !host.Category(cat).Valid() {
		badRequest(c, "category must be -1 (receive), 0 (send) or 1 (hardware)")
		return routeParams{}, false
	}
	p := routeParams{track: c.Param("track"), category: host.Category(cat)}
	if raw := c.Param("index"); raw != "" {
		idx, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "index must be an integer")
			return routeParams{}, false
		}
		p.index = idx
	}
	return p, true
}

func bindValue(c *gin.Context) (float64, bool) {
	var req ValueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body must be {\"value\": <number>}")
		return 0, false
	}
	return *req.Value, true
}

// getInfo godoc
// @Summary Read a send parameter
// @Description Forwards to the host's get-send-info primitive
// @Tags sends
// @Produce json
// @Param track path string true "Track id"
// @Param category path int true "-1 receive, 0 send, 1 hardware"
// @Param index path int true "Send index"
// @Param param path string true "Parameter name, e.g. D_VOL"
// @Success 200 {object} ValueResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/tracks/{track}/routes/{category}/{index}/info/{param} [get]
func (s *Server) getInfo(c *gin.Context) {
	p, ok := parseRoute(c)
	if !ok {
		return
	}
	v, err := s.host.GetSendInfo(c.Request.Context(), p.track, p.category, p.index, c.Param("param"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ValueResponse{Value: v})
}

// setInfo godoc
// @Summary Write a send parameter
// @Description Forwards to the host's set-send-info primitive
// @Tags sends
// @Accept json
// @Produce json
// @Param track path string true "Track id"
// @Param category path int true "-1 receive, 0 send, 1 hardware"
// @Param index path int true "Send index"
// @Param param path string true "Parameter name, e.g. B_MUTE"
// @Param body body ValueRequest true "New value"
// @Success 200 {object} ValueResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/tracks/{track}/routes/{category}/{index}/info/{param} [put]
func (s *Server) setInfo(c *gin.Context) {
	p, ok := parseRoute(c)
	if !ok {
		return
	}
	v, ok := bindValue(c)
	if !ok {
		return
	}
	if err := s.host.SetSendInfo(c.Request.Context(), p.track, p.category, p.index, c.Param("param"), v); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ValueResponse{Value: v})
}

// removeSend godoc
// @Summary Remove a send, receive or hardware output
// @Tags sends
// @Param track path string true "Track id"
// @Param category path int true "-1 receive, 0 send, 1 hardware"
// @Param index path int true "Send index"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/tracks/{track}/routes/{category}/{index} [delete]
func (s *Server) removeSend(c *gin.Context) {
	p, ok := parseRoute(c)
	if !ok {
		return
	}
	if err := s.host.RemoveSend(c.Request.Context(), p.track, p.category, p.index); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// getExtInfo godoc
// @Summary Read a parameter through the host extension
// @Tags extension
// @Produce json
// @Param track path string true "Track id"
// @Param category path int true "-1 receive, 0 send, 1 hardware"
// @Param index path int true "Send index"
// @Param param path string true "Parameter name, e.g. I_MIDI_SRCBUS"
// @Success 200 {object} ValueResponse
// @Failure 501 {object} ErrorResponse
// @Router /api/v1/tracks/{track}/routes/{category}/{index}/ext/{param} [get]
func (s *Server) getExtInfo(c *gin.Context) {
	s.extInfo(c, false)
}

// setExtInfo godoc
// @Summary Write a parameter through the host extension
// @Tags extension
// @Accept json
// @Produce json
// @Param track path string true "Track id"
// @Param category path int true "-1 receive, 0 send, 1 hardware"
// @Param index path int true "Send index"
// @Param param path string true "Parameter name"
// @Param body body ValueRequest true "New value"
// @Success 200 {object} ValueResponse
// @Failure 501 {object} ErrorResponse
// @Router /api/v1/tracks/{track}/routes/{category}/{index}/ext/{param} [put]
func (s *Server) setExtInfo(c *gin.Context) {
	s.extInfo(c, true)
}

func (s *Server) extInfo(c *gin.Context, set bool) {
	p, ok := parseRoute(c)
	if !ok {
		return
	}
	var v float64
	if set {
		if v, ok = bindValue(c); !ok {
			return
		}
	}
	ctx := c.Request.Context()
	ext, err := host.RequireExtension(ctx, s.host)
	if err != nil {
		abortWithError(c, err)
		return
	}
	out, err := ext.GetSetSendInfo(ctx, p.track, p.category, p.index, c.Param("param"), set, v)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ValueResponse{Value: out})
}

// extensionStatus godoc
// @Summary Report whether the host extension is installed
// @Tags extension
// @Produce json
// @Success 200 {object} map[string]bool
// @Router /api/v1/extension [get]
func (s *Server) extensionStatus(c *gin.Context) {
	_, err := host.RequireExtension(c.Request.Context(), s.host)
	c.JSON(http.StatusOK, gin.H{"available": err == nil})
}

// trackFromPointer godoc
// @Summary Resolve a track pointer
// @Description Turns a P_DESTTRACK / P_SRCTRACK value into a track reference
// @Tags tracks
// @Produce json
// @Param pointer path number true "Pointer value as returned by get-send-info"
// @Success 200 {object} host.Track
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/pointers/{pointer} [get]
func (s *Server) trackFromPointer(c *gin.Context) {
	ptr, err := strconv.ParseFloat(c.Param("pointer"), 64)
	if err != nil {
		badRequest(c, "pointer must be a number")
		return
	}
	t, err := s.host.TrackFromPointer(c.Request.Context(), ptr)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) browser(c *gin.Context) (host.Browser, bool) {
	b, ok := s.host.(host.Browser)
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotImplemented, ErrorResponse{Error: "host cannot list tracks", Code: "not_supported"})
		return nil, false
	}
	return b, true
}

// listTracks godoc
// @Summary List project tracks
// @Tags tracks
// @Produce json
// @Success 200 {object} map[string][]host.Track
// @Failure 501 {object} ErrorResponse
// @Router /api/v1/tracks [get]
func (s *Server) listTracks(c *gin.Context) {
	b, ok := s.browser(c)
	if !ok {
		return
	}
	tracks, err := b.Tracks(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tracks": tracks})
}

// countSends godoc
// @Summary Count a track's routings of one category
// @Tags tracks
// @Produce json
// @Param track path string true "Track id"
// @Param category path int true "-1 receive, 0 send, 1 hardware"
// @Success 200 {object} map[string]int
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/tracks/{track}/routes/{category} [get]
func (s *Server) countSends(c *gin.Context) {
	p, ok := parseRoute(c)
	if !ok {
		return
	}
	b, ok := s.browser(c)
	if !ok {
		return
	}
	n, err := b.NumSends(c.Request.Context(), p.track, p.category)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

// DecodeRequest carries a packed I_MIDIFLAGS value
type DecodeRequest struct {
	Flags *int `json:"flags" binding:"required"`
}

// FlagsResponse shows both forms of a MIDI routing
type FlagsResponse struct {
	Flags    int             `json:"flags"`
	Routing  routing.Routing `json:"routing"`
	Disabled bool            `json:"disabled"`
}

// EncodeRequest carries a routing to pack. Strict rejects components
// outside their field width instead of letting them spill over.
type EncodeRequest struct {
	Routing routing.Routing `json:"routing"`
	Strict  bool            `json:"strict"`
}

// decodeFlags godoc
// @Summary Decode MIDI routing flags
// @Tags midiflags
// @Accept json
// @Produce json
// @Param body body DecodeRequest true "Packed flags"
// @Success 200 {object} FlagsResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/midiflags/decode [post]
func decodeFlags(c *gin.Context) {
	var req DecodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body must be {\"flags\": <integer>}")
		return
	}
	r := routing.Decode(*req.Flags)
	c.JSON(http.StatusOK, FlagsResponse{Flags: *req.Flags, Routing: r, Disabled: r.IsDisabled()})
}

// encodeFlags godoc
// @Summary Encode a MIDI routing into flags
// @Tags midiflags
// @Accept json
// @Produce json
// @Param body body EncodeRequest true "Routing"
// @Success 200 {object} FlagsResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/midiflags/encode [post]
func encodeFlags(c *gin.Context) {
	var req EncodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.Strict {
		if err := req.Routing.Validate(); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	c.JSON(http.StatusOK, FlagsResponse{
		Flags:    routing.Encode(req.Routing),
		Routing:  req.Routing,
		Disabled: req.Routing.IsDisabled(),
	})
}
