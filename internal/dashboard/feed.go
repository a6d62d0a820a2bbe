// Package dashboard serves the prediction form and streams served predictions to browsers
// over a websocket.
package dashboard

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"heart-predictor/internal/metrics"
	"heart-predictor/internal/ml"
)

const (
	broadcastBuffer = 100
	recentEvents    = 20
	writeWait       = 5 * time.Second
)

// Feed fans prediction events out to connected websocket clients. New clients first receive
// the most recent events.
type Feed struct {
	upgrader         websocket.Upgrader       // WebSocket upgrader for the feed
	clients          map[*websocket.Conn]bool // Connected WebSocket clients
	clientsMu        sync.Mutex               // Guards clients and recent; held while writing
	recent           []ml.PredictionEvent     // Last events, oldest first
	broadcastChannel chan ml.PredictionEvent  // Buffered events awaiting broadcast
	stopChannel      chan struct{}            // Closed on Stop, replaced on Start
	clientsGauge     metrics.MetricsGauge     // Connected client count, may be nil
	dropped          int                      // Events discarded because the buffer was full
	isRunning        bool
	mu               sync.Mutex
}

// NewFeed creates a feed. gauge may be nil.
func NewFeed(gauge metrics.MetricsGauge) *Feed {
	return &Feed{
		upgrader:         websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:          make(map[*websocket.Conn]bool),
		broadcastChannel: make(chan ml.PredictionEvent, broadcastBuffer),
		clientsGauge:     gauge,
	}
}

// Start launches the broadcaster. A stopped feed can be started again.
func (f *Feed) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.isRunning {
		return fmt.Errorf("prediction feed is already running")
	}
	f.stopChannel = make(chan struct{})
	go f.clientBroadcaster(f.stopChannel)
	f.isRunning = true
	log.Info().Msg("Prediction feed started")
	return nil
}

// Stop ends the broadcaster and disconnects every client.
func (f *Feed) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.isRunning {
		return
	}
	close(f.stopChannel)

	f.clientsMu.Lock()
	for client := range f.clients {
		client.Close()
	}
	f.clients = make(map[*websocket.Conn]bool)
	f.setGauge()
	f.clientsMu.Unlock()

	f.isRunning = false
	log.Info().Msg("Prediction feed stopped")
}

// Publish queues ev for broadcast. It never blocks: when the buffer is full the event is
// dropped.
func (f *Feed) Publish(ev ml.PredictionEvent) {
	select {
	case f.broadcastChannel <- ev:
	default:
		f.clientsMu.Lock()
		f.dropped++
		f.clientsMu.Unlock()
		log.Warn().Str("request_id", ev.RequestID).Msg("Prediction feed buffer full, event dropped")
	}
}

// Clients returns the number of connected clients.
func (f *Feed) Clients() int {
	f.clientsMu.Lock()
	defer f.clientsMu.Unlock()
	return len(f.clients)
}

// Dropped returns how many events were discarded.
func (f *Feed) Dropped() int {
	f.clientsMu.Lock()
	defer f.clientsMu.Unlock()
	return f.dropped
}

// clientBroadcaster broadcasts queued events to all connected clients
func (f *Feed) clientBroadcaster(stop <-chan struct{}) {
	for {
		select {
		case ev := <-f.broadcastChannel:
			f.broadcastToClients(ev)
		case <-stop:
			return
		}
	}
}

func (f *Feed) broadcastToClients(ev ml.PredictionEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal prediction event for broadcast")
		return
	}

	f.clientsMu.Lock()
	defer f.clientsMu.Unlock()

	f.recent = append(f.recent, ev)
	if len(f.recent) > recentEvents {
		f.recent = f.recent[len(f.recent)-recentEvents:]
	}

	for client := range f.clients {
		if err := write(client, data); err != nil {
			log.Debug().Err(err).Msg("Dropping websocket client")
			client.Close()
			delete(f.clients, client)
		}
	}
	f.setGauge()
}

// ServeHTTP upgrades the connection and keeps it registered until the client goes away.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	f.clientsMu.Lock()
	for _, ev := range f.recent {
		if data, err := json.Marshal(ev); err == nil {
			if err := write(conn, data); err != nil {
				f.clientsMu.Unlock()
				return
			}
		}
	}
	f.clients[conn] = true
	f.setGauge()
	f.clientsMu.Unlock()

	// Reads only detect the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	f.clientsMu.Lock()
	delete(f.clients, conn)
	f.setGauge()
	f.clientsMu.Unlock()
}

func write(conn *websocket.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// setGauge must be called with clientsMu held.
func (f *Feed) setGauge() {
	if f.clientsGauge != nil {
		f.clientsGauge.Set(float64(len(f.clients)))
	}
}

var _ ml.PredictionPublisher = (*Feed)(nil)
