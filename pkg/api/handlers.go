// Package api serves read-only introspection of a running simulation:
// meeting-rate estimates, replica predictions, per-node routing state and
// delivery counters.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/gilchrisn/dtn-routing-service/pkg/models"
	"github.com/gilchrisn/dtn-routing-service/pkg/netstate"
	"github.com/gilchrisn/dtn-routing-service/pkg/sim"
)

// NetworkView is the part of a simulation the API reads
type NetworkView interface {
	Snapshots() []models.NodeSnapshot
	NodeSnapshot(id models.NodeID) (models.NodeSnapshot, error)
	Stats() sim.Stats
}

// StoreView exposes the shared estimates of an Epic run
type StoreView interface {
	Snapshot() netstate.Snapshot
}

// Handlers contains HTTP request handlers
type Handlers struct {
	network NetworkView
	store   StoreView // nil unless the run shares a store
	policy  string
	started time.Time
}

// NewHandlers creates API handlers over network and, when non-nil, store
func NewHandlers(network NetworkView, store StoreView, policy string) *Handlers {
	return &Handlers{
		network: network,
		store:   store,
		policy:  policy,
		started: time.Now(),
	}
}

// HealthCheck returns server health status
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	WriteSuccessResponse(w, "Service is healthy", map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(h.started).String(),
		"policy":    h.policy,
	})
}

// GetLambdas returns the latest meeting-rate estimate per node
func (h *Handlers) GetLambdas(w http.ResponseWriter, r *http.Request) {
	if h.store != nil {
		snap := h.store.Snapshot()
		WriteSuccessResponse(w, "Shared meeting-rate estimates", map[string]interface{}{
			"lambdas": snap.Lambdas,
			"samples": snap.Samples,
		})
		return
	}

	lambdas := make(map[string]float64)
	for _, snap := range h.network.Snapshots() {
		if snap.Lambda != nil {
			lambdas[string(snap.ID)] = *snap.Lambda
		}
	}
	WriteSuccessResponse(w, "Per-node meeting-rate estimates", map[string]interface{}{
		"lambdas": lambdas,
	})
}

// GetReplicas returns the latest shared replica prediction per message
func (h *Handlers) GetReplicas(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		WriteErrorResponse(w, http.StatusNotFound, "Replica predictions are not shared under policy "+h.policy, nil)
		return
	}
	snap := h.store.Snapshot()
	WriteSuccessResponse(w, "Shared replica predictions", map[string]interface{}{
		"replicas": snap.Replicas,
		"exported": snap.Exported,
	})
}

// ListNodes returns the routing state of every node
func (h *Handlers) ListNodes(w http.ResponseWriter, r *http.Request) {
	nodes := h.network.Snapshots()
	WriteSuccessResponse(w, "Nodes retrieved", map[string]interface{}{
		"nodes": nodes,
		"total": len(nodes),
	})
}

// GetNode returns one node's routing state
func (h *Handlers) GetNode(w http.ResponseWriter, r *http.Request) {
	id := models.NodeID(mux.Vars(r)["nodeId"])

	snap, err := h.network.NodeSnapshot(id)
	if err != nil {
		if errors.Is(err, sim.ErrUnknownNode) {
			WriteErrorResponse(w, http.StatusNotFound, "Node not found", err)
			return
		}
		log.Error().Err(err).Str("node", string(id)).Msg("Failed to read node state")
		WriteErrorResponse(w, http.StatusInternalServerError, "Failed to read node state", err)
		return
	}
	WriteSuccessResponse(w, "Node retrieved", snap)
}

// GetStats returns the delivery counters
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	WriteSuccessResponse(w, "Statistics retrieved", h.network.Stats())
}
