package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// RateMessage is broadcast to every connected operator once per interval.
type RateMessage struct {
	Rate      float64            `json:"rate"`
	Failures  float64            `json:"failure_rate"`
	Endpoints map[string]float64 `json:"endpoints"`
}

type submissionReport struct {
	endpoint string
	failed   bool
}

// SSEBroker streams live submission rates to operators over Server-Sent Events.
type SSEBroker struct {
	logger   *slog.Logger
	clients  map[chan []byte]struct{}
	mu       sync.RWMutex
	reports  chan submissionReport
	interval time.Duration
}

// NewSSEBroker creates a broker and starts its loop until ctx is done.
func NewSSEBroker(ctx context.Context, logger *slog.Logger) *SSEBroker {
	return newSSEBroker(ctx, logger, time.Second)
}

func newSSEBroker(ctx context.Context, logger *slog.Logger, interval time.Duration) *SSEBroker {
	broker := &SSEBroker{
		logger:   logger.With("component", "sse_broker"),
		clients:  make(map[chan []byte]struct{}),
		reports:  make(chan submissionReport, 1000),
		interval: interval,
	}
	go broker.run(ctx)
	return broker
}

// ServeHTTP holds an SSE connection open until the client goes away.
func (b *SSEBroker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	messageChan := make(chan []byte, 4)
	b.addClient(messageChan)
	defer b.removeClient(messageChan)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messageChan:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// ReportSubmission implements usecase.SubmissionReporter. It never blocks the intake path.
func (b *SSEBroker) ReportSubmission(endpoint string, failed bool) {
	select {
	case b.reports <- submissionReport{endpoint: endpoint, failed: failed}:
	default:
		b.logger.Warn("SSE report channel is full, dropping report")
	}
}

// ClientCount returns the number of connected SSE clients.
func (b *SSEBroker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

func (b *SSEBroker) addClient(client chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clients[client] = struct{}{}
	b.logger.Info("SSE client connected")
}

func (b *SSEBroker) removeClient(client chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[client]; ok {
		delete(b.clients, client)
		close(client)
		b.logger.Info("SSE client disconnected")
	}
}

func (b *SSEBroker) broadcast(msg []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for client := range b.clients {
		select {
		case client <- msg:
		default:
			// Slow client; skip this tick for it.
		}
	}
}

func (b *SSEBroker) run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	var total, failures int
	perEndpoint := make(map[string]int)
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case rep := <-b.reports:
			total++
			perEndpoint[rep.endpoint]++
			if rep.failed {
				failures++
			}
		case <-ticker.C:
			now := time.Now()
			secs := now.Sub(last).Seconds()
			msg := RateMessage{Endpoints: make(map[string]float64, len(perEndpoint))}
			if secs > 0 {
				msg.Rate = float64(total) / secs
				msg.Failures = float64(failures) / secs
				for ep, n := range perEndpoint {
					msg.Endpoints[ep] = float64(n) / secs
				}
			}

			data, err := json.Marshal(msg)
			if err != nil {
				b.logger.Error("failed to marshal SSE message", "error", err)
				continue
			}
			b.broadcast(data)

			last = now
			total, failures = 0, 0
			clear(perEndpoint)
		}
	}
}
