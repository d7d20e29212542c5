package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eugenenazirov/vagrant-fusion/internal/action"
	"github.com/eugenenazirov/vagrant-fusion/internal/compute"
	"github.com/eugenenazirov/vagrant-fusion/internal/providerconfig"
	"github.com/eugenenazirov/vagrant-fusion/internal/storage"
)

const maxDocumentBytes = 1 << 20

type contextKey string

const requestIDContextKey contextKey = "requestID"

// Loader builds a finalized provider configuration from the configured
// documents with extra layers merged on top.
type Loader interface {
	Load(layers ...*providerconfig.Config) (*providerconfig.Config, error)
}

// Handler wires storage, the provider loader and the compute backend into
// HTTP handlers.
type Handler struct {
	storage storage.Storage
	loader  Loader
	backend compute.Backend
	logger  *zap.Logger

	clock func() time.Time

	mu              sync.RWMutex
	configUpdatedAt time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithHandlerLogger sets the logger passed to actions.
func WithHandlerLogger(logger *zap.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler constructs a Handler with the provided dependencies.
func NewHandler(store storage.Storage, loader Loader, backend compute.Backend, opts ...HandlerOption) *Handler {
	h := &Handler{
		storage: store,
		loader:  loader,
		backend: backend,
		logger:  zap.NewNop(),
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.configUpdatedAt = h.clock()
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetProviderConfig(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.activeConfig(w)
	if !ok {
		return
	}

	resp := providerConfigResponse{
		Config:    cfg.View(revealSecrets(r)),
		Regions:   cfg.Regions(),
		Sources:   h.storage.Sources(),
		UpdatedAt: h.currentConfigUpdatedAt(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handlePutProviderConfig(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxDocumentBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to read request body")
		return
	}

	layer, err := providerconfig.Parse(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid provider document", err.Error())
		return
	}

	cfg, err := h.loader.Load(layer)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Cannot load provider configuration", err.Error(),
			"check the credential files referenced by fusion_profile and fusion_dir")
		return
	}

	errs, err := cfg.Validate()
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if !errs.Empty() {
		writeJSON(w, http.StatusUnprocessableEntity, validationResponse{Valid: false, Errors: errs})
		return
	}

	if err := h.storage.SetConfig(cfg, h.storage.Sources()...); err != nil {
		writeInternalError(w, err)
		return
	}
	h.markConfigUpdated()

	resp := providerConfigResponse{
		Config:    cfg.View(false),
		Regions:   cfg.Regions(),
		Sources:   h.storage.Sources(),
		UpdatedAt: h.currentConfigUpdatedAt(),
		Message:   "Provider configuration updated successfully",
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetRegion(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.activeConfig(w)
	if !ok {
		return
	}

	name := r.PathValue("name")
	regionCfg, err := cfg.RegionConfig(name)
	if err != nil {
		writeInternalError(w, err)
		return
	}

	resp := regionResponse{
		Name:     name,
		Compiled: regionCfg != cfg,
		Config:   regionCfg.View(revealSecrets(r)),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	_ = r
	cfg, ok := h.activeConfig(w)
	if !ok {
		return
	}

	errs, err := cfg.Validate()
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, validationResponse{Valid: errs.Empty(), Errors: errs})
}

func (h *Handler) handleHalt(w http.ResponseWriter, r *http.Request) {
	force, err := parseBoolQuery(r, "force")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "force must be a boolean")
		return
	}
	h.runAction(w, r, action.Halt(h.logger), force)
}

func (h *Handler) handleRegisterELB(w http.ResponseWriter, r *http.Request) {
	h.runAction(w, r, action.RegisterELB(h.logger), false)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	h.runAction(w, r, action.Status(h.logger), false)
}

func (h *Handler) runAction(w http.ResponseWriter, r *http.Request, run action.Handler, force bool) {
	cfg, ok := h.activeConfig(w)
	if !ok {
		return
	}

	ui := &action.RecordingUI{}
	env := &action.Env{
		Machine:   action.Machine{ID: r.PathValue("id")},
		Config:    cfg,
		Backend:   h.backend,
		UI:        ui,
		ForceHalt: force,
	}

	if err := run(r.Context(), env); err != nil {
		writeActionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, actionResponse{
		MachineID: env.Machine.ID,
		Messages:  ui.Messages(),
	})
}

func (h *Handler) activeConfig(w http.ResponseWriter) (*providerconfig.Config, bool) {
	cfg, err := h.storage.GetConfig()
	if err != nil {
		if errors.Is(err, storage.ErrNoConfig) {
			writeError(w, http.StatusServiceUnavailable, "No provider configuration", err.Error(),
				"PUT a provider document to /api/provider-config")
			return nil, false
		}
		writeInternalError(w, err)
		return nil, false
	}
	return cfg, true
}

func writeActionError(w http.ResponseWriter, err error) {
	var cloudErr *compute.CloudError
	var internalErr *compute.InternalCloudError
	switch {
	case errors.Is(err, compute.ErrInstanceNotFound):
		writeError(w, http.StatusNotFound, "Instance not found", err.Error())
	case errors.Is(err, compute.ErrLoadBalancerNotFound):
		writeError(w, http.StatusNotFound, "Load balancer not found", err.Error(),
			"check the elb setting of the provider configuration")
	case errors.As(err, &cloudErr):
		writeError(w, http.StatusBadGateway, "Cloud API error", err.Error())
	case errors.As(err, &internalErr), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusBadGateway, "Cloud unreachable", err.Error())
	default:
		writeInternalError(w, err)
	}
}

func revealSecrets(r *http.Request) bool {
	reveal, err := parseBoolQuery(r, "reveal")
	return err == nil && reveal
}

func parseBoolQuery(r *http.Request, key string) (bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

func (h *Handler) currentConfigUpdatedAt() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.configUpdatedAt
}

func (h *Handler) markConfigUpdated() {
	h.mu.Lock()
	h.configUpdatedAt = h.clock()
	h.mu.Unlock()
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type providerConfigResponse struct {
	Config    map[string]any `json:"config"`
	Regions   []string       `json:"regions"`
	Sources   []string       `json:"sources"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Message   string         `json:"message,omitempty"`
}

type regionResponse struct {
	Name     string         `json:"name"`
	Compiled bool           `json:"compiled"`
	Config   map[string]any `json:"config"`
}

type validationResponse struct {
	Valid  bool                            `json:"valid"`
	Errors providerconfig.ValidationErrors `json:"errors"`
}

type actionResponse struct {
	MachineID string   `json:"machineId"`
	Messages  []string `json:"messages"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string, suggestion ...string) {
	resp := errorResponse{
		Error:   message,
		Details: details,
	}
	if len(suggestion) > 0 {
		resp.Suggestion = suggestion[0]
	}
	writeJSON(w, status, resp)
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
}
