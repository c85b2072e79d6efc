package router

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type HandlerFunc func(http.ResponseWriter, *http.Request)

// Router dispatches METHOD:PATH routes. A "*" path segment matches any
// segment, a trailing "*" matches any remaining segments. Prefix handlers
// registered with Handle serve every method below their prefix.
type Router struct {
	routes   map[string]HandlerFunc // key = METHOD:PATH
	paths    map[string]bool        // track registered paths
	order    []string               // wildcard paths in registration order
	prefixes []prefixHandler
	logger   log.Logger
	duration *prometheus.HistogramVec
}

type prefixHandler struct {
	prefix  string
	handler http.Handler
}

// New returns a router logging every request to logger. Request durations
// are registered with reg when it is not nil.
func New(logger log.Logger, reg prometheus.Registerer) *Router {
	return &Router{
		routes: make(map[string]HandlerFunc),
		paths:  make(map[string]bool),
		logger: logger,
		duration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aggregator",
			Name:      "http_request_duration_seconds",
			Help:      "Time spent serving HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status_code"}),
	}
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

	route := r.dispatch(lrw, req)

	duration := time.Since(start)
	r.duration.WithLabelValues(req.Method, route, strconv.Itoa(lrw.statusCode)).Observe(duration.Seconds())

	logger := level.Debug(r.logger)
	if lrw.statusCode >= http.StatusInternalServerError {
		logger = level.Warn(r.logger)
	}
	logger.Log("msg", "request", "method", req.Method, "path", req.URL.Path, "route", route, "status", lrw.statusCode, "duration", duration)
}

// dispatch serves req and returns the route that matched it.
func (r *Router) dispatch(w http.ResponseWriter, req *http.Request) string {
	key := req.Method + ":" + req.URL.Path
	if h, ok := r.routes[key]; ok {
		h(w, req)
		return req.URL.Path
	}

	for _, routePath := range r.order {
		if !matchWildcardRoute(req.URL.Path, routePath) {
			continue
		}
		if h, ok := r.routes[req.Method+":"+routePath]; ok {
			h(w, req)
			return routePath
		}
	}

	for _, p := range r.prefixes {
		if strings.HasPrefix(req.URL.Path, p.prefix) {
			p.handler.ServeHTTP(w, req)
			return p.prefix
		}
	}

	if r.paths[req.URL.Path] || r.wildcardExists(req.URL.Path) {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return "method_not_allowed"
	}
	http.Error(w, "Not Found", http.StatusNotFound)
	return "not_found"
}

func (r *Router) wildcardExists(requestPath string) bool {
	for _, routePath := range r.order {
		if matchWildcardRoute(requestPath, routePath) {
			return true
		}
	}
	return false
}

// matchWildcardRoute checks if a request path matches a wildcard route pattern
func matchWildcardRoute(requestPath, routePattern string) bool {
	requestSegments := strings.Split(strings.Trim(requestPath, "/"), "/")
	routeSegments := strings.Split(strings.Trim(routePattern, "/"), "/")

	// Trailing wildcard matches one or more remaining segments.
	if routeSegments[len(routeSegments)-1] == "*" {
		if len(requestSegments) < len(routeSegments) {
			return false
		}
		for i := 0; i < len(routeSegments)-1; i++ {
			if routeSegments[i] != "*" && requestSegments[i] != routeSegments[i] {
				return false
			}
		}
		return true
	}

	if len(requestSegments) != len(routeSegments) {
		return false
	}
	for i, routeSegment := range routeSegments {
		if routeSegment != "*" && requestSegments[i] != routeSegment {
			return false
		}
	}
	return true
}

// Wildcards returns the request path segments matched by the "*" segments of pattern.
func Wildcards(req *http.Request, pattern string) []string {
	requestSegments := strings.Split(strings.Trim(req.URL.Path, "/"), "/")
	routeSegments := strings.Split(strings.Trim(pattern, "/"), "/")

	var out []string
	for i, seg := range routeSegments {
		if seg != "*" || i >= len(requestSegments) {
			continue
		}
		if i == len(routeSegments)-1 {
			out = append(out, strings.Join(requestSegments[i:], "/"))
			break
		}
		out = append(out, requestSegments[i])
	}
	return out
}

// --- Register paths ---
func (r *Router) register(method, path string, handler HandlerFunc) {
	key := method + ":" + path
	r.routes[key] = handler
	if !r.paths[path] && strings.Contains(path, "*") {
		r.order = append(r.order, path)
	}
	r.paths[path] = true
}

func (r *Router) GET(path string, handler HandlerFunc)  { r.register(http.MethodGet, path, handler) }
func (r *Router) POST(path string, handler HandlerFunc) { r.register(http.MethodPost, path, handler) }

// Handle serves every request below prefix that no route matched.
func (r *Router) Handle(prefix string, handler http.Handler) {
	r.prefixes = append(r.prefixes, prefixHandler{prefix: prefix, handler: handler})
}

// Server returns an http.Server serving the router on addr.
func (r *Router) Server(addr string, readTimeout, writeTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
}

// --- Logging response writer to capture status codes ---
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}
