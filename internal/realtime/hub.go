package realtime

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yashrk2006/smart-parking-system/internal/dispatch"
	"github.com/yashrk2006/smart-parking-system/internal/domain"
	"github.com/yashrk2006/smart-parking-system/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is served from a different origin in development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wireMessage is what goes over the socket, keeping the dashboard's
// event-name convention.
type wireMessage struct {
	Event   string      `json:"event"`
	Channel string      `json:"channel"`
	ZoneID  string      `json:"zone_id"`
	Data    interface{} `json:"data"`
}

// Hub upgrades websocket clients and bridges them onto dispatcher
// subscriptions. Each client gets its own bounded subscription per
// channel; a slow client loses its own oldest facts, never anyone
// else's.
type Hub struct {
	dispatcher *dispatch.Dispatcher
	log        *logger.Logger
}

// NewHub creates a Hub over the dispatcher.
func NewHub(d *dispatch.Dispatcher) *Hub {
	return &Hub{dispatcher: d, log: logger.Get()}
}

// Serve handles GET /ws. Query parameters select the feed:
// ?channels=occupancy,violations (default both) and ?zones=z1,z2
// (default all zones).
func (h *Hub) Serve(c *gin.Context) {
	channels := splitParam(c.Query("channels"))
	if len(channels) == 0 {
		channels = []string{domain.ChannelOccupancy, domain.ChannelViolations}
	}
	zones := splitParam(c.Query("zones"))

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}

	subs := make([]*dispatch.Subscription, 0, len(channels))
	for _, ch := range channels {
		if ch != domain.ChannelOccupancy && ch != domain.ChannelViolations {
			continue
		}
		subs = append(subs, h.dispatcher.Subscribe(ch, zones...))
	}

	client := &client{
		conn: conn,
		subs: subs,
		done: make(chan struct{}),
	}

	go client.readPump()
	go client.writePump()

	h.log.Debug("Websocket client connected",
		zap.Strings("channels", channels),
		zap.Int("zone_filter", len(zones)))
}

type client struct {
	conn      *websocket.Conn
	subs      []*dispatch.Subscription
	done      chan struct{}
	closeOnce sync.Once
}

// readPump drains inbound frames to process control messages; the feed
// is one-way, so everything else is discarded.
func (c *client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump fans the client's subscriptions into the socket.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	// Merge all subscriptions into one outbound stream.
	merged := make(chan dispatch.Envelope, 16)
	for _, sub := range c.subs {
		go func(sub *dispatch.Subscription) {
			for env := range sub.C {
				select {
				case merged <- env:
				case <-c.done:
					return
				}
			}
		}(sub)
	}

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case env := <-merged:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(toWire(env)); err != nil {
				return
			}
		}
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		for _, sub := range c.subs {
			sub.Close()
		}
		_ = c.conn.Close()
	})
}

// toWire maps a fact to its dashboard event name.
func toWire(env dispatch.Envelope) wireMessage {
	event := ""
	switch env.Fact.(type) {
	case *domain.OccupancyChanged:
		event = domain.EventOccupancyUpdate
	case *domain.ViolationDetected:
		event = domain.EventViolationDetected
	case *domain.ViolationResolved:
		event = domain.EventViolationResolved
	}
	return wireMessage{
		Event:   event,
		Channel: env.Channel,
		ZoneID:  env.Key,
		Data:    env.Fact,
	}
}

func splitParam(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
