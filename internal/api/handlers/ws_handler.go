package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/resumedesk/internal/api/middleware"
	"github.com/yoockh/resumedesk/internal/feed"
	"github.com/yoockh/resumedesk/internal/models"
	"github.com/yoockh/resumedesk/internal/reconciler"
	"github.com/yoockh/resumedesk/internal/utils"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// LiveHandler streams a live resume list over a websocket, one reconciler view per connection.
type LiveHandler struct {
	store    reconciler.Store
	feed     feed.Subscriber
	log      *logrus.Entry
	upgrader websocket.Upgrader
}

func NewLiveHandler(store reconciler.Store, sub feed.Subscriber, log *logrus.Entry) *LiveHandler {
	return &LiveHandler{
		store:    store,
		feed:     sub,
		log:      log,
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 4096},
	}
}

type snapshotMsg struct {
	Type     string          `json:"type"`
	Loading  bool            `json:"loading"`
	Error    string          `json:"error,omitempty"`
	Items    []models.Resume `json:"items"`
	Updating []string        `json:"updating"`
}

func snapshotOf(s reconciler.State) snapshotMsg {
	msg := snapshotMsg{
		Type:     "snapshot",
		Loading:  s.Loading,
		Items:    s.Items(),
		Updating: s.UpdatingIDs(),
	}
	if s.Err != nil {
		var ae *utils.AppError
		if errors.As(s.Err, &ae) && ae.Message != "" {
			msg.Error = ae.Message
		} else {
			msg.Error = "failed to load resumes"
		}
	}
	return msg
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeText(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.c.SetWriteDeadline(time.Now().Add(writeWait))
	return w.c.WriteMessage(websocket.TextMessage, b)
}

func (w *wsConn) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.c.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (h *LiveHandler) Candidate(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	h.serve(c, userID, feed.Scope{OwnerID: userID})
}

func (h *LiveHandler) Reviewer(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	h.serve(c, userID, feed.Scope{})
}

func (h *LiveHandler) serve(c *gin.Context, userID string, scope feed.Scope) {
	// the handshake bypasses c.Writer, so refreshed session cookies go in explicitly
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, middleware.ResponseCookies(c))
	if err != nil {
		// upgrade already wrote response in most cases
		return
	}
	defer conn.Close()

	log := h.log.WithFields(logrus.Fields{"user_id": userID, "scope_owner": scope.OwnerID})
	wc := &wsConn{c: conn}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// single producer: listener calls are serialized by the view
	latest := make(chan reconciler.State, 1)
	view := reconciler.NewView(ctx, h.store, h.feed, log, func(s reconciler.State) {
		select {
		case <-latest:
		default:
		}
		latest <- s
	})
	defer view.Close()

	// reader: only pongs and close frames are expected
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		defer cancel()
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := view.Start(scope); err != nil && ctx.Err() == nil {
		log.WithError(err).Warn("live list start")
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-readDone:
			return
		case <-ctx.Done():
			return
		case s := <-latest:
			b, err := json.Marshal(snapshotOf(s))
			if err != nil {
				log.WithError(err).Error("encode snapshot")
				return
			}
			if err := wc.writeText(b); err != nil {
				return
			}
		case <-ticker.C:
			if err := wc.ping(); err != nil {
				return
			}
		}
	}
}
