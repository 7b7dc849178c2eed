package services

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fyrsmithlabs/specd/internal/agents/discovery"
	"github.com/fyrsmithlabs/specd/internal/agents/scoping"
	"github.com/fyrsmithlabs/specd/internal/agents/specwriter"
	"github.com/fyrsmithlabs/specd/internal/config"
	"github.com/fyrsmithlabs/specd/internal/events"
	"github.com/fyrsmithlabs/specd/internal/extraction"
	"github.com/fyrsmithlabs/specd/internal/llm"
	"github.com/fyrsmithlabs/specd/internal/logging"
	"github.com/fyrsmithlabs/specd/internal/orchestrator"
	"github.com/fyrsmithlabs/specd/internal/search"
	"github.com/fyrsmithlabs/specd/internal/secrets"
	"github.com/fyrsmithlabs/specd/internal/session"
	"github.com/fyrsmithlabs/specd/internal/workflow"
)

// Registry provides access to the assembled specd services.
type Registry interface {
	Generator() llm.Generator
	Orchestrator() *orchestrator.Orchestrator
	Sessions() *session.Manager
	Publisher() events.Publisher
	Settings() workflow.Settings
	// Close releases the event connection.
	Close()
}

// Options overrides collaborators that Build would otherwise create from
// configuration. Zero values mean "build from config".
type Options struct {
	Generator llm.Generator
	Searcher  workflow.Searcher
	Publisher events.Publisher
	// Registerer receives the session metrics. Defaults to the global
	// Prometheus registerer.
	Registerer prometheus.Registerer
	Logger     *logging.Logger
}

type registry struct {
	generator    llm.Generator
	orchestrator *orchestrator.Orchestrator
	sessions     *session.Manager
	publisher    events.Publisher
	settings     workflow.Settings
}

// Build creates every service from cfg.
func Build(cfg *config.Config, opts Options) (Registry, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	settings, err := workflow.SettingsFromConfig(cfg.Workflow)
	if err != nil {
		return nil, fmt.Errorf("invalid workflow config: %w", err)
	}

	gen := opts.Generator
	if gen == nil {
		if gen, err = llm.New(cfg.LLM, logger); err != nil {
			return nil, fmt.Errorf("failed to create llm client: %w", err)
		}
	}

	searcher := opts.Searcher
	if searcher == nil {
		if searcher, err = search.New(cfg.Search, logger.Named("search")); err != nil {
			return nil, fmt.Errorf("failed to create search client: %w", err)
		}
	}

	redactor, err := secrets.New(cfg.Secrets)
	if err != nil {
		return nil, fmt.Errorf("failed to create secret redactor: %w", err)
	}

	publisher := opts.Publisher
	if publisher == nil {
		if publisher, err = events.Connect(cfg.Events, logger.Named("events")); err != nil {
			return nil, fmt.Errorf("failed to connect event publisher: %w", err)
		}
	}

	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	orch := NewOrchestrator(gen, searcher, settings, logger)
	sessions := session.NewManager(
		session.ConfigFrom(cfg.Session, settings),
		orch,
		redactor,
		publisher,
		session.NewMetrics(reg),
		logger,
	)

	return &registry{
		generator:    gen,
		orchestrator: orch,
		sessions:     sessions,
		publisher:    publisher,
		settings:     settings,
	}, nil
}

// NewOrchestrator registers the three stage agents and the skip gate on a
// fresh orchestrator.
func NewOrchestrator(gen llm.Generator, searcher workflow.Searcher, settings workflow.Settings, logger *logging.Logger) *orchestrator.Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	ex := extraction.New(gen, logger.Named("extraction"))

	o := orchestrator.New(logger)
	o.RegisterHandler(discovery.New(gen, ex, ex, settings, logger))
	o.RegisterHandler(scoping.New(gen, ex, ex, searcher, settings, logger))
	o.RegisterHandler(specwriter.New(gen, logger))
	o.RegisterGate(orchestrator.NewSkipGate())
	return o
}

func (r *registry) Generator() llm.Generator                 { return r.generator }
func (r *registry) Orchestrator() *orchestrator.Orchestrator { return r.orchestrator }
func (r *registry) Sessions() *session.Manager               { return r.sessions }
func (r *registry) Publisher() events.Publisher              { return r.publisher }
func (r *registry) Settings() workflow.Settings              { return r.settings }

func (r *registry) Close() {
	if r.publisher != nil {
		r.publisher.Close()
	}
}
