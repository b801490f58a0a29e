package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// replyTimeout bounds how long a REST caller waits for the agent's answer.
const replyTimeout = 60 * time.Second

// RESTAdapter implements Adapter for HTTP-based message ingestion. Each
// request opens a one-shot reply channel keyed by a generated channel id;
// the router answers into it via Send.
type RESTAdapter struct {
	handler  MessageHandler
	channels map[string]chan *OutboundMessage
	mu       sync.RWMutex
	logger   *zap.Logger
}

// NewRESTAdapter creates a REST gateway adapter.
func NewRESTAdapter(logger *zap.Logger) *RESTAdapter {
	return &RESTAdapter{
		channels: make(map[string]chan *OutboundMessage),
		logger:   logger,
	}
}

func (a *RESTAdapter) Platform() string { return "rest" }

func (a *RESTAdapter) Connect(_ context.Context) error { return nil }

func (a *RESTAdapter) OnMessage(h MessageHandler) { a.handler = h }

func (a *RESTAdapter) Close() error { return nil }

// openChannel registers a one-shot reply channel and returns its id.
func (a *RESTAdapter) openChannel() (string, chan *OutboundMessage) {
	id := uuid.New().String()
	ch := make(chan *OutboundMessage, 1)
	a.mu.Lock()
	a.channels[id] = ch
	a.mu.Unlock()
	return id, ch
}

func (a *RESTAdapter) closeChannel(id string) {
	a.mu.Lock()
	delete(a.channels, id)
	a.mu.Unlock()
}

// Send delivers a reply into the waiting request's channel.
func (a *RESTAdapter) Send(_ context.Context, msg *OutboundMessage) error {
	a.mu.RLock()
	ch, ok := a.channels[msg.ChannelID]
	a.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no active channel: %s", msg.ChannelID)
	}
	select {
	case ch <- msg:
		return nil
	default:
		return fmt.Errorf("channel %s buffer full", msg.ChannelID)
	}
}

// Routes returns a chi router with REST gateway endpoints.
func (a *RESTAdapter) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/message", a.handleMessage)
	return r
}

// handleMessage accepts an inbound message via HTTP and blocks until the
// router answers or the timeout fires.
func (a *RESTAdapter) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID   string `json:"user_id"`
		UserName string `json:"user_name"`
		Content  string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		restError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" {
		restError(w, http.StatusBadRequest, "content is required")
		return
	}

	channelID, ch := a.openChannel()
	defer a.closeChannel(channelID)

	if a.handler != nil {
		a.handler(&InboundMessage{
			Platform:  "rest",
			ChannelID: channelID,
			UserID:    req.UserID,
			UserName:  req.UserName,
			Content:   req.Content,
			Timestamp: time.Now(),
		})
	}

	select {
	case msg := <-ch:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(msg)
	case <-time.After(replyTimeout):
		restError(w, http.StatusGatewayTimeout, "response timeout")
	case <-r.Context().Done():
		return
	}
}

// Broadcast pushes to every in-flight REST request. A full or closing
// channel is skipped rather than blocked on.
func (a *RESTAdapter) Broadcast(_ context.Context, msg *BroadcastMessage) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, ch := range a.channels {
		select {
		case ch <- &OutboundMessage{
			Platform: "rest",
			Content:  fmt.Sprintf("[%s] %s\n%s", msg.Type, msg.Title, msg.Content),
		}:
		default:
		}
	}
	return nil
}

func restError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
