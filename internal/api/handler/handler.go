package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/user"
	"github.com/pkg/errors"

	"go-aggregation-engine/internal/aggregation"
	"go-aggregation-engine/internal/model"
)

// QueryHistory serves the saved query runs of a tenant.
type QueryHistory interface {
	ListQueryRuns(ctx context.Context, tenantID string, limit int) ([]model.QueryRun, error)
	GetQueryRun(ctx context.Context, tenantID, id string) (model.QueryRun, error)
}

// Options configure tenant resolution.
type Options struct {
	// RequireTenant rejects requests without an X-Scope-OrgID header.
	RequireTenant bool
	// DefaultTenant serves requests without the header when RequireTenant is off.
	DefaultTenant string
}

// Handler serves the aggregation API.
type Handler struct {
	engine  *aggregation.Engine
	schema  model.SchemaSource
	history QueryHistory
	opts    Options
	logger  log.Logger
}

// New returns a Handler. history may be nil, the query endpoints then
// answer 404.
func New(engine *aggregation.Engine, schema model.SchemaSource, history QueryHistory, opts Options, logger log.Logger) *Handler {
	return &Handler{
		engine:  engine,
		schema:  schema,
		history: history,
		opts:    opts,
		logger:  log.With(logger, "component", "api"),
	}
}

type errorResponse struct {
	Error string         `json:"error"`
	Code  string         `json:"code,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

// tenant resolves the tenant of r and returns a context carrying it.
func (h *Handler) tenant(w http.ResponseWriter, r *http.Request) (string, context.Context, bool) {
	tenantID, ctx, err := user.ExtractOrgIDFromHTTPRequest(r)
	if err == nil {
		return tenantID, ctx, true
	}
	if h.opts.RequireTenant || h.opts.DefaultTenant == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing tenant: " + err.Error()})
		return "", nil, false
	}
	return h.opts.DefaultTenant, user.InjectOrgID(r.Context(), h.opts.DefaultTenant), true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeEngineError answers with 400 for invalid configs and reports false.
// Any other error is logged and reported true: the caller then renders an
// empty result.
func (h *Handler) writeEngineError(w http.ResponseWriter, err error) bool {
	var e model.Err
	if errors.As(err, &e) && e.Code == model.ConfigValidationErr {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: e.Title, Code: e.Code, Data: e.Data})
		return false
	}
	level.Warn(h.logger).Log("msg", "query failed, answering with an empty result", "err", err)
	return true
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON payload"})
		return false
	}
	return true
}
