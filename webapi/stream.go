package webapi

import (
	"errors"
	"net/http"
	"sync"
	"time"

	iface "SegTrackServer/interface"
	"SegTrackServer/logger"
	"SegTrackServer/sessions"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var (
	json     = jsoniter.ConfigCompatibleWithStandardLibrary
	upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
)

const readLimit = 20 * 1024 * 1024

type streamReply struct {
	Dropped bool               `json:"dropped,omitempty"`
	Error   string             `json:"error,omitempty"`
	Result  *iface.FrameResult `json:"result,omitempty"`
}

// wsConn serializes writes; gorilla connections allow one writer at a time.
type wsConn struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func (w *wsConn) send(reply streamReply) error {
	data, err := json.Marshal(reply)
	if err != nil {
		return err
	}
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *wsConn) close(reason string) {
	w.closeOnce.Do(func() {
		w.writeMu.Lock()
		_ = w.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason))
		w.writeMu.Unlock()
		_ = w.conn.Close()
		close(w.done)
	})
}

// stream reads JSON frames and answers each with a result, a drop notice or
// an error. The session is released when the client goes away or idles.
func (api *API) stream(c *gin.Context) {
	id := c.Param("id")
	s, err := api.Manager.Get(id)
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	conn.SetReadLimit(readLimit)
	ws := &wsConn{conn: conn, done: make(chan struct{})}
	go api.idleMonitor(ws, s)

	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			_ = api.Manager.Release(id)
			ws.close("client gone")
			logger.Log().Debug("websocket closed", zap.String("session", id), zap.Error(err))
			return
		}
		if mt != websocket.TextMessage {
			_ = ws.send(streamReply{Error: "unsupported message type"})
			continue
		}
		var frame iface.Frame
		if err := json.Unmarshal(msg, &frame); err != nil {
			_ = ws.send(streamReply{Error: "invalid frame: " + err.Error()})
			continue
		}
		if err := frame.Validate(); err != nil {
			_ = ws.send(streamReply{Error: err.Error()})
			continue
		}
		res, err := api.Manager.Process(c.Request.Context(), id, frame, false)
		switch {
		case errors.Is(err, sessions.ErrBusy):
			err = ws.send(streamReply{Dropped: true})
		case err != nil:
			err = ws.send(streamReply{Error: err.Error()})
		default:
			err = ws.send(streamReply{Result: &res})
		}
		if err != nil {
			_ = api.Manager.Release(id)
			ws.close("write failed")
			return
		}
	}
}

// idleMonitor closes the connection once the session idles past the
// timeout or is released elsewhere.
func (api *API) idleMonitor(ws *wsConn, s *sessions.Session) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ws.done:
			return
		case <-ticker.C:
			if _, err := api.Manager.Get(s.ID); err != nil {
				ws.close("session released")
				return
			}
			if api.IdleTimeout > 0 && time.Since(s.LastActive()) > api.IdleTimeout {
				_ = api.Manager.Release(s.ID)
				ws.close("session idle, released")
				return
			}
		}
	}
}
