// Package gateway fans snapshot updates out to WebSocket clients.
//
// Snapshots are published to Redis PubSub on pub:technicals:{symbol} by the
// refresh pipeline; the Hub subscribes with a single pattern and forwards each
// message to every connected client whose symbol filter matches. The latest
// message per channel is cached so a newly connected client gets an immediate
// replay instead of waiting for the next refresh.
package gateway

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"

	"stockpulse/internal/metrics"
)

const pubSubPattern = "pub:technicals:*"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Dashboard clients connect from arbitrary origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub manages WebSocket clients and the Redis PubSub subscription.
type Hub struct {
	rdb *goredis.Client
	met *metrics.Metrics

	mu      sync.RWMutex
	clients map[*Client]bool
	latest  map[string]latestEntry
}

type latestEntry struct {
	Data json.RawMessage
	TS   time.Time
}

// NewHub creates a Hub backed by the given Redis client. met may be nil.
func NewHub(rdb *goredis.Client, met *metrics.Metrics) *Hub {
	return &Hub{
		rdb:     rdb,
		met:     met,
		clients: make(map[*Client]bool),
		latest:  make(map[string]latestEntry),
	}
}

// Run subscribes to the technicals pattern and routes messages until ctx is
// cancelled. Reconnects with backoff if the subscription drops.
func (h *Hub) Run(ctx context.Context) {
	for {
		if err := h.subscribeLoop(ctx); err != nil {
			log.Printf("[gateway] pubsub loop ended: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

func (h *Hub) subscribeLoop(ctx context.Context) error {
	sub := h.rdb.PSubscribe(ctx, pubSubPattern)
	defer sub.Close()

	ch := sub.Channel()
	log.Printf("[gateway] subscribed pattern %s", pubSubPattern)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return context.Canceled
			}
			h.dispatch(msg.Channel, []byte(msg.Payload))
		}
	}
}

// Publish injects a snapshot directly, bypassing Redis. Used when the cache
// breaker is open so connected clients still see fresh data.
func (h *Hub) Publish(symbol string, data []byte) {
	h.dispatch("pub:technicals:"+symbol, data)
}

func (h *Hub) dispatch(channel string, data []byte) {
	symbol := symbolFromChannel(channel)
	envelope, err := json.Marshal(map[string]interface{}{
		"channel": channel,
		"symbol":  symbol,
		"data":    json.RawMessage(data),
		"ts":      time.Now().Format(time.RFC3339Nano),
	})
	if err != nil {
		return
	}

	h.mu.Lock()
	h.latest[channel] = latestEntry{Data: envelope, TS: time.Now()}
	h.mu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if !client.wantsSymbol(symbol) {
			continue
		}
		select {
		case client.send <- envelope:
		default:
			// Slow client: drop rather than block the fan-out.
			if h.met != nil {
				h.met.WSDropsTotal.Inc()
			}
		}
	}
}

// symbolFromChannel extracts "SBIN" from "pub:technicals:SBIN".
func symbolFromChannel(channel string) string {
	i := strings.LastIndexByte(channel, ':')
	if i < 0 {
		return channel
	}
	return channel[i+1:]
}

// HandleWS upgrades the request and registers the client. Symbols may be
// filtered with ?symbols=SBIN,TCS; no filter means all symbols.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[gateway] upgrade failed: %v", err)
		return
	}

	client := &Client{
		conn:    conn,
		send:    make(chan []byte, 64),
		hub:     h,
		symbols: parseSymbolFilter(r.URL.Query().Get("symbols")),
	}

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	if h.met != nil {
		h.met.WSClients.Set(float64(count))
	}
	log.Printf("[gateway] ws client connected (%d total)", count)

	go client.sendInitialState()
	go client.writePump()
	go client.readPump()
}

// RemoveClient deregisters a client and closes its send channel.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	count := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	close(c.send)
	if h.met != nil {
		h.met.WSClients.Set(float64(count))
	}
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func parseSymbolFilter(raw string) map[string]bool {
	if raw == "" {
		return nil
	}
	out := make(map[string]bool)
	for _, s := range strings.Split(raw, ",") {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			out[s] = true
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
