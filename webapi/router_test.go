package webapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"SegTrackServer/config"
	iface "SegTrackServer/interface"
	"SegTrackServer/sessions"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func testFrame() iface.Frame {
	row := []float32{10, 15, 20, 30, 0.9, 1}
	pts := make([]r3.Vec, iface.NumLandmarks)
	for i := range pts {
		pts[i] = r3.Vec{X: 0.95, Y: 0.95}
	}
	pts[iface.Wrist] = r3.Vec{X: 0.1, Y: 0.45}
	pts[iface.IndexMCP] = r3.Vec{X: 0.05, Y: 0.3}
	pts[iface.PinkyMCP] = r3.Vec{X: 0.18, Y: 0.3}
	pts[iface.IndexDIP] = r3.Vec{X: 0.1, Y: 0.2}
	pts[iface.IndexTip] = r3.Vec{X: 0.1, Y: 0.15}
	return iface.Frame{
		Width:     100,
		Height:    100,
		Output:    iface.Tensor{Data: row, Features: len(row), Candidates: 1},
		Landmarks: []iface.LandmarkSet{{Identity: "h", Handedness: "Right", Points: pts}},
	}
}

func newTestAPI(idle time.Duration) (*API, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	cfg := config.DefaultPipeline()
	cfg.InputWidth, cfg.InputHeight = 100, 100
	cfg.SearchRadius = 1
	api := &API{Manager: sessions.NewManager(cfg, idle, nil, nil), IdleTimeout: idle}
	return api, NewRouter(api)
}

func do(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		data, _ := json.Marshal(body)
		buf.Write(data)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func openSession(t *testing.T, r http.Handler) string {
	t.Helper()
	w := do(r, http.MethodPost, "/api/sessions", map[string]string{"description": "cam"})
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		SessionID string `json:"sessionID"`
		WsURL     string `json:"wsURL"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body.SessionID)
	assert.True(t, strings.HasSuffix(body.WsURL, "/ws/"+body.SessionID))
	return body.SessionID
}

func TestPing(t *testing.T) {
	_, r := newTestAPI(time.Minute)
	w := do(r, http.MethodGet, "/api/ping", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"pong"}`, w.Body.String())
}

func TestSessionsAPI(t *testing.T) {
	_, r := newTestAPI(time.Minute)
	id := openSession(t, r)

	t.Run("process", func(t *testing.T) {
		w := do(r, http.MethodPost, "/api/sessions/"+id+"/process", testFrame())
		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Data iface.FrameResult `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Len(t, body.Data.Matches, 1)
		assert.Equal(t, iface.IndexTip, body.Data.Matches[0].Landmark)
		assert.InDelta(t, 0.97, body.Data.Matches[0].Score, 1e-6)
	})

	t.Run("info", func(t *testing.T) {
		w := do(r, http.MethodGet, "/api/sessions/"+id, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Data sessions.Info `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, uint64(1), body.Data.Frames)
		assert.Equal(t, "cam", body.Data.Description)
	})

	t.Run("list", func(t *testing.T) {
		w := do(r, http.MethodGet, "/api/sessions", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), id)
	})

	t.Run("bad input", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/process", strings.NewReader("{"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		bad := testFrame()
		bad.Height = 0
		assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/sessions/"+id+"/process", bad).Code)
	})

	t.Run("reset and release", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/sessions/"+id+"/reset", nil).Code)
		assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/sessions/"+id+"/release", nil).Code)
		assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, "/api/sessions/"+id+"/release", nil).Code)
		assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/sessions/"+id, nil).Code)
		assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, "/api/sessions/"+id+"/process", testFrame()).Code)
	})
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusTooManyRequests, statusOf(sessions.ErrBusy))
	assert.Equal(t, http.StatusNotFound, statusOf(sessions.ErrNotFound))
	assert.Equal(t, http.StatusServiceUnavailable, statusOf(sessions.ErrClosed))
	assert.Equal(t, http.StatusBadRequest, statusOf(iface.ErrInvalidFrame))
	assert.Equal(t, http.StatusInternalServerError, statusOf(assert.AnError))
}

func TestWebsocket(t *testing.T) {
	api, r := newTestAPI(time.Minute)
	srv := httptest.NewServer(r)
	defer srv.Close()
	id := openSession(t, r)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + id

	t.Run("unknown session", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/missing", nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	t.Run("frames", func(t *testing.T) {
		data, err := json.Marshal(testFrame())
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
			_, msg, err := conn.ReadMessage()
			require.NoError(t, err)
			var reply streamReply
			require.NoError(t, json.Unmarshal(msg, &reply))
			require.NotNil(t, reply.Result)
			assert.Len(t, reply.Result.Matches, 1)
		}
	})

	t.Run("garbage", func(t *testing.T) {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Contains(t, string(msg), "invalid frame")
	})

	t.Run("client close releases session", func(t *testing.T) {
		require.NoError(t, conn.Close())
		assert.Eventually(t, func() bool { return api.Manager.Len() == 0 }, time.Second, 10*time.Millisecond)
	})
}

func TestWebsocket_Idle(t *testing.T) {
	api, r := newTestAPI(100 * time.Millisecond)
	srv := httptest.NewServer(r)
	defer srv.Close()
	id := openSession(t, r)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/"+id, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
	assert.Equal(t, 0, api.Manager.Len())
}
