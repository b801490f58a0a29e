package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/memetic-os/memos/internal/agent"
	"github.com/memetic-os/memos/internal/bridge"
	"github.com/memetic-os/memos/internal/gateway"
	"github.com/memetic-os/memos/internal/graph"
	"github.com/memetic-os/memos/internal/meme"
	"github.com/memetic-os/memos/internal/sim"
	"github.com/memetic-os/memos/internal/strategy"
	"github.com/memetic-os/memos/internal/vectorstore"
	"go.uber.org/zap"
)

// Handler holds dependencies for HTTP handlers. Graph, index, env and
// broadcaster may be nil when their backing services are unavailable; the
// corresponding routes then answer 503.
type Handler struct {
	population  *meme.Population
	agent       *agent.Agent
	reflector   *agent.Reflector
	env         *bridge.Environment
	memeGraph   *graph.MemeGraph
	memeIndex   *vectorstore.MemeIndex
	broadcaster *gateway.Broadcaster
	rest        *gateway.RESTAdapter
	clock       *sim.Clock
	logger      *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(
	population *meme.Population,
	a *agent.Agent,
	reflector *agent.Reflector,
	env *bridge.Environment,
	memeGraph *graph.MemeGraph,
	memeIndex *vectorstore.MemeIndex,
	broadcaster *gateway.Broadcaster,
	rest *gateway.RESTAdapter,
	clock *sim.Clock,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		population:  population,
		agent:       a,
		reflector:   reflector,
		env:         env,
		memeGraph:   memeGraph,
		memeIndex:   memeIndex,
		broadcaster: broadcaster,
		rest:        rest,
		clock:       clock,
		logger:      logger,
	}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)

		// Population routes
		r.Get("/memes", h.listMemes)
		r.Post("/memes", h.createMeme)
		r.Get("/memes/similar", h.similarMemes)
		r.Get("/memes/{id}", h.getMeme)
		r.Delete("/memes/{id}", h.removeMeme)
		r.Post("/memes/{id}/mutate", h.mutateMeme)
		r.Post("/memes/{id}/connect", h.connectMemes)
		r.Get("/memes/{id}/links", h.memeLinks)
		r.Post("/population/evolve", h.evolvePopulation)
		r.Get("/population/status", h.populationStatus)

		// Agent routes
		r.Post("/agent/think", h.think)
		r.Get("/agent/state", h.agentState)
		r.Get("/agent/stats", h.agentStats)
		r.Get("/agent/memory", h.agentMemory)
		r.Post("/agent/goals", h.rememberGoal)
		r.Get("/agent/strategies", h.listStrategies)
		r.Post("/agent/strategies", h.setStrategies)
		r.Post("/agent/strategies/evolve", h.evolveStrategies)
		r.Post("/agent/memes", h.addAgentMeme)
		r.Get("/agent/memes/{name}", h.getAgentMeme)
		r.Post("/agent/memes/{name}/mutate", h.mutateAgentMeme)

		// Reflection routes
		r.Post("/reflection/start", h.startReflection)
		r.Post("/reflection/stop", h.stopReflection)
		r.Get("/reflection/status", h.reflectionStatus)

		// Dialog and gateway routes
		r.Post("/chat", h.chat)
		r.Post("/broadcast", h.sendBroadcast)
		r.Get("/broadcast/history", h.broadcastHistory)
		if h.rest != nil {
			r.Mount("/gateway/rest", h.rest.Routes())
		}
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "memos"})
}

// createMemeRequest carries the payload for one new meme. Image and model
// contents have dedicated shapes; executable memes cannot cross the wire.
type createMemeRequest struct {
	Kind     string                 `json:"kind"`
	Content  json.RawMessage        `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

func decodeContent(kind meme.ContentKind, raw json.RawMessage) (interface{}, error) {
	switch kind {
	case meme.KindText:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return s, nil
	case meme.KindData:
		var m map[string]interface{}
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return m, nil
	case meme.KindImage:
		var spec struct {
			Width    int `json:"width"`
			Height   int `json:"height"`
			Channels int `json:"channels"`
		}
		if err := json.Unmarshal(raw, &spec); err != nil {
			return nil, err
		}
		return meme.NewImage(spec.Width, spec.Height, spec.Channels), nil
	case meme.KindModel:
		var spec struct {
			Params []float64 `json:"params"`
		}
		if err := json.Unmarshal(raw, &spec); err != nil {
			return nil, err
		}
		return &meme.Model{Params: spec.Params}, nil
	default:
		return nil, errors.New("unsupported kind for API creation")
	}
}

func (h *Handler) createMeme(w http.ResponseWriter, r *http.Request) {
	var req createMemeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	kind := meme.ContentKind(req.Kind)
	content, err := decodeContent(kind, req.Content)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	m, err := meme.New(kind, content, req.Metadata)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	h.population.Add(m)

	if h.memeGraph != nil {
		if err := h.memeGraph.UpsertMeme(r.Context(), m.ID, string(m.Kind), m.Fitness); err != nil {
			h.logger.Warn("graph mirror failed", zap.Error(err))
		}
	}
	if h.memeIndex != nil {
		if _, err := h.memeIndex.Index(r.Context(), m); err != nil {
			h.logger.Warn("meme indexing failed", zap.Error(err))
		}
	}

	writeJSON(w, http.StatusCreated, m.Snapshot())
}

func (h *Handler) listMemes(w http.ResponseWriter, r *http.Request) {
	memes := h.population.List()
	out := make([]map[string]interface{}, 0, len(memes))
	for _, m := range memes {
		out = append(out, m.Snapshot())
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) memeByParam(w http.ResponseWriter, r *http.Request) (*meme.Meme, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid meme id"})
		return nil, false
	}
	m, ok := h.population.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "meme not found"})
		return nil, false
	}
	return m, true
}

func (h *Handler) getMeme(w http.ResponseWriter, r *http.Request) {
	m, ok := h.memeByParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, m.Snapshot())
}

func (h *Handler) removeMeme(w http.ResponseWriter, r *http.Request) {
	m, ok := h.memeByParam(w, r)
	if !ok {
		return
	}
	h.population.Remove(m.ID)
	if h.memeGraph != nil {
		if err := h.memeGraph.RemoveMeme(r.Context(), m.ID); err != nil {
			h.logger.Warn("graph removal failed", zap.Error(err))
		}
	}
	if h.memeIndex != nil {
		if err := h.memeIndex.Remove(r.Context(), m.ID.String()); err != nil {
			h.logger.Warn("index removal failed", zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (h *Handler) mutateMeme(w http.ResponseWriter, r *http.Request) {
	m, ok := h.memeByParam(w, r)
	if !ok {
		return
	}
	m.Mutate()
	if h.memeIndex != nil {
		if _, err := h.memeIndex.Index(r.Context(), m); err != nil {
			h.logger.Warn("meme reindexing failed", zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, m.Snapshot())
}

type connectRequest struct {
	Target string  `json:"target"`
	Weight float64 `json:"weight"`
}

func (h *Handler) connectMemes(w http.ResponseWriter, r *http.Request) {
	m, ok := h.memeByParam(w, r)
	if !ok {
		return
	}
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	target, err := uuid.Parse(req.Target)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid target id"})
		return
	}
	m.Connect(target, req.Weight)

	if h.memeGraph != nil {
		link := &graph.Link{From: m.ID, To: target, Weight: req.Weight}
		if err := h.memeGraph.SetLink(r.Context(), link); err != nil {
			h.logger.Warn("graph link mirror failed", zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, m.Snapshot())
}

func (h *Handler) memeLinks(w http.ResponseWriter, r *http.Request) {
	if h.memeGraph == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "graph not available"})
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid meme id"})
		return
	}
	links, err := h.memeGraph.Neighbors(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, links)
}

func (h *Handler) similarMemes(w http.ResponseWriter, r *http.Request) {
	if h.memeIndex == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "vector index not available"})
		return
	}
	query := r.URL.Query().Get("q")
	if query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "q is required"})
		return
	}
	results, err := h.memeIndex.Similar(r.Context(), query, 5)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *Handler) evolvePopulation(w http.ResponseWriter, r *http.Request) {
	h.population.Evolve()
	h.populationStatus(w, r)
}

func (h *Handler) populationStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"size":       h.population.Len(),
		"generation": h.population.Generation(),
		"world_time": h.clock.WorldTime().Format(time.RFC3339),
	})
}

type thinkRequest struct {
	Thought string `json:"thought"`
}

func (h *Handler) think(w http.ResponseWriter, r *http.Request) {
	var req thinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Thought == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "thought is required"})
		return
	}
	result, err := h.agent.Think(r.Context(), req.Thought)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) agentState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.agent.StateSnapshot())
}

func (h *Handler) agentStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.agent.StatsSnapshot())
}

func (h *Handler) agentMemory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.agent.MemorySnapshot())
}

type goalRequest struct {
	Goal string `json:"goal"`
}

func (h *Handler) rememberGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Goal == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "goal is required"})
		return
	}
	if err := h.agent.RememberGoal(r.Context(), req.Goal); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "remembered"})
}

func (h *Handler) listStrategies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.agent.Strategies())
}

func (h *Handler) setStrategies(w http.ResponseWriter, r *http.Request) {
	var strategies []*strategy.Strategy
	if err := json.NewDecoder(r.Body).Decode(&strategies); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	h.agent.SetStrategies(strategies)
	writeJSON(w, http.StatusOK, h.agent.Strategies())
}

func (h *Handler) evolveStrategies(w http.ResponseWriter, r *http.Request) {
	mutated, err := h.agent.EvolveStrategies(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"new":        len(mutated),
		"strategies": mutated,
	})
}

type agentMemeRequest struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

func (h *Handler) addAgentMeme(w http.ResponseWriter, r *http.Request) {
	var req agentMemeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if err := h.agent.AddMeme(r.Context(), req.Name, req.Content); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"name": req.Name, "content": req.Content})
}

func (h *Handler) getAgentMeme(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	writeJSON(w, http.StatusOK, map[string]string{
		"name":    name,
		"content": h.agent.GetMeme(name),
	})
}

func (h *Handler) mutateAgentMeme(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.agent.MutateMeme(r.Context(), name); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"name":    name,
		"content": h.agent.GetMeme(name),
	})
}

func (h *Handler) startReflection(w http.ResponseWriter, r *http.Request) {
	if h.reflector == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "reflection not initialized"})
		return
	}
	h.reflector.Start(context.Background())
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

func (h *Handler) stopReflection(w http.ResponseWriter, r *http.Request) {
	if h.reflector == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "reflection not initialized"})
		return
	}
	h.reflector.Stop()
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (h *Handler) reflectionStatus(w http.ResponseWriter, r *http.Request) {
	running := h.reflector != nil && h.reflector.Running()
	writeJSON(w, http.StatusOK, map[string]bool{"running": running})
}

type chatRequest struct {
	Message string `json:"message"`
}

func (h *Handler) chat(w http.ResponseWriter, r *http.Request) {
	if h.env == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no LLM provider configured"})
		return
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	reply, err := h.env.Handle(r.Context(), req.Message)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reply": reply,
		"state": h.env.State(),
	})
}

func (h *Handler) sendBroadcast(w http.ResponseWriter, r *http.Request) {
	if h.broadcaster == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "gateway not initialized"})
		return
	}
	var msg gateway.BroadcastMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if msg.Type == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "type is required"})
		return
	}
	if err := h.broadcaster.Send(r.Context(), &msg); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "broadcast sent"})
}

func (h *Handler) broadcastHistory(w http.ResponseWriter, r *http.Request) {
	if h.broadcaster == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "gateway not initialized"})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records := h.broadcaster.History(limit)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(records),
		"history": records,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
