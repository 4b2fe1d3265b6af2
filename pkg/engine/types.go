package engine

import (
	"log/slog"
	"net/http"

	"clp/pkg/configstore"
	"clp/pkg/filters"
	"clp/pkg/hub"
	"clp/pkg/loadbalancer"
	"clp/pkg/requestlog"
	"clp/pkg/router"
	"clp/pkg/telemetry/metrics"
)

// Options configures one service's Engine.
type Options struct {
	// Service is the AI service name this engine proxies for ("claude",
	// "codex").
	Service string

	ConfigStore    *configstore.Store
	Blocker        *filters.Blocker
	HeaderStripper *filters.HeaderStripper
	BodyRewriter   *filters.BodyRewriter
	Router         *router.Router
	LoadBalancer   *loadbalancer.LoadBalancer
	Hub            *hub.Hub
	Log            *requestlog.Log

	// Metrics is optional; a nil Metrics disables metric recording.
	Metrics *metrics.Collector

	Logger *slog.Logger
}

// Engine is the seven-phase Proxy Engine for one AI service. It
// implements http.Handler and is mounted as the dispatch target behind
// the ambient server's middleware chain and auth gate.
type Engine struct {
	service string

	configStore    *configstore.Store
	blocker        *filters.Blocker
	headerStripper *filters.HeaderStripper
	bodyRewriter   *filters.BodyRewriter
	router         *router.Router
	lb             *loadbalancer.LoadBalancer
	hub            *hub.Hub
	log            *requestlog.Log
	metrics        *metrics.Collector
	logger         *slog.Logger

	client *http.Client
	ids    *idGenerator
}

// New creates an Engine from opts.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		service:        opts.Service,
		configStore:    opts.ConfigStore,
		blocker:        opts.Blocker,
		headerStripper: opts.HeaderStripper,
		bodyRewriter:   opts.BodyRewriter,
		router:         opts.Router,
		lb:             opts.LoadBalancer,
		hub:            opts.Hub,
		log:            opts.Log,
		metrics:        opts.Metrics,
		logger:         logger,
		client:         newUpstreamClient(),
		ids:            newIDGenerator(),
	}
}
