package portal

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
)

// heartbeatInterval keeps idle event streams open through proxies.
var heartbeatInterval = 15 * time.Second

// handleSessionEvents streams the session's state as SSE: the current state
// right after "connected", then every change until the client leaves or the
// session is closed.
func handleSessionEvents(c *gin.Context, s *Session) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	updates, cancel := s.Watch()
	defer cancel()

	writeSSE(c.Writer, "connected", map[string]string{"type": "connected", "session": s.ID})
	last := s.State()
	writeSSE(c.Writer, "state", last)
	c.Writer.Flush()

	ctx := c.Request.Context()
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			writeSSE(c.Writer, "heartbeat", map[string]string{
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
			c.Writer.Flush()
		case st, ok := <-updates:
			if !ok {
				writeSSE(c.Writer, "closed", map[string]string{"session": s.ID})
				c.Writer.Flush()
				return
			}
			if st.Seq <= last.Seq {
				continue
			}
			last = st
			writeSSE(c.Writer, "state", st)
			c.Writer.Flush()
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
