package portal

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zulandar/bikereg/internal/scan"
)

// keyRequest is one key press forwarded by the registration page. At is the
// browser's event time in Unix milliseconds; zero means "when received". Seq
// is the page's key counter; keys are applied in Seq order.
type keyRequest struct {
	Seq    uint64 `json:"seq"`
	Key    string `json:"key"`
	Target string `json:"target"`
	At     int64  `json:"at"`
}

func registerScanRoutes(g *gin.RouterGroup, sessions *SessionManager) {
	g.POST("/sessions", handleCreateSession(sessions))
	g.GET("/sessions/:id", withSession(sessions, handleSessionState))
	g.DELETE("/sessions/:id", handleCloseSession(sessions))
	g.POST("/sessions/:id/camera", withSession(sessions, handleCameraMode))
	g.POST("/sessions/:id/external", withSession(sessions, handleExternalMode))
	g.POST("/sessions/:id/reset", withSession(sessions, handleReset))
	g.PUT("/sessions/:id/value", withSession(sessions, handleManualValue))
	g.POST("/sessions/:id/keys", withSession(sessions, handleKeys))
	g.GET("/sessions/:id/events", withSession(sessions, handleSessionEvents))
}

// withSession resolves :id to a live session or answers 404.
func withSession(sessions *SessionManager, h func(*gin.Context, *Session)) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := sessions.Get(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"message": "Scan session not found"})
			return
		}
		h(c, s)
	}
}

// respondScan answers a scan transition: the new state on success, or the
// failure mapped to a status code alongside the state it left behind.
func respondScan(c *gin.Context, s *Session, err error) {
	st := s.Reconciler().State()
	switch {
	case err == nil:
		c.JSON(http.StatusOK, st)
	case errors.Is(err, scan.ErrClosed):
		c.JSON(http.StatusGone, gin.H{"message": "Scan session closed", "state": st})
	case errors.Is(err, scan.ErrResolved), errors.Is(err, scan.ErrSuperseded):
		c.JSON(http.StatusConflict, gin.H{"message": err.Error(), "state": st})
	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": st.Status, "state": st})
	}
}

func handleCreateSession(sessions *SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := sessions.Create()
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": s.ID, "state": s.Reconciler().State()})
	}
}

func handleCloseSession(sessions *SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := sessions.Close(c.Param("id")); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"message": "Scan session not found"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func handleSessionState(c *gin.Context, s *Session) {
	c.JSON(http.StatusOK, s.Reconciler().State())
}

// handleCameraMode blocks while the camera is acquired so the response
// carries the outcome. A client that goes away cancels acquisition.
func handleCameraMode(c *gin.Context, s *Session) {
	respondScan(c, s, s.Reconciler().EnterCameraMode(c.Request.Context()))
}

func handleExternalMode(c *gin.Context, s *Session) {
	respondScan(c, s, s.Reconciler().EnterExternalListeningMode())
}

func handleReset(c *gin.Context, s *Session) {
	respondScan(c, s, s.Reconciler().ResetScan())
}

func handleManualValue(c *gin.Context, s *Session) {
	var body struct {
		Value string `json:"value"`
	}
	if !bindJSON(c, &body) {
		return
	}
	respondScan(c, s, s.Reconciler().ManualOverride(body.Value))
}

// handleKeys accepts either a single key or {"keys": [...]} so the page can
// batch presses that arrive faster than its requests complete.
func handleKeys(c *gin.Context, s *Session) {
	var body struct {
		keyRequest
		Keys []keyRequest `json:"keys"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}
	keys := body.Keys
	if len(keys) == 0 {
		if body.Key == "" {
			c.JSON(http.StatusBadRequest, gin.H{"message": "key is required"})
			return
		}
		keys = []keyRequest{body.keyRequest}
	}
	for _, k := range keys {
		ev := scan.KeyEvent{Key: k.Key, Target: scan.TargetFromTag(k.Target)}
		if k.At > 0 {
			ev.At = time.UnixMilli(k.At)
		}
		s.Key(k.Seq, ev)
	}
	c.JSON(http.StatusOK, s.Reconciler().State())
}
