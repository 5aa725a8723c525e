package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/seedwright/seedwright/internal/config"
	"github.com/seedwright/seedwright/internal/depgraph"
	"github.com/seedwright/seedwright/internal/executor"
	"github.com/seedwright/seedwright/internal/handlers"
	"github.com/seedwright/seedwright/internal/introspect"
	"github.com/seedwright/seedwright/internal/junction"
	"github.com/seedwright/seedwright/internal/metadata"
	"github.com/seedwright/seedwright/internal/report"
	"github.com/seedwright/seedwright/internal/rules"
	"github.com/seedwright/seedwright/internal/values"
	"github.com/seedwright/seedwright/internal/workflow"
)

// Engine is the core seeding engine shared by all commands. It threads one
// pipeline: introspect, discover constraints, build the dependency graph,
// generate a workflow, execute it.
type Engine struct {
	Config *config.Config
	Client metadata.Client
	Logger *slog.Logger

	// Cached pipeline artifacts. Each stage reuses the previous stage's
	// output when present; call the stage method again to refresh.
	mu          sync.Mutex
	result      *introspect.Result
	constraints *rules.ConstraintMetadata
	graph       *depgraph.DependencyGraph
	cache       *rules.Cache
}

// New creates an Engine with the given config and logger. The metadata
// client is not connected until Connect is called.
func New(cfg *config.Config, logger *slog.Logger) *Engine {
	return &Engine{
		Config: cfg,
		Logger: logger,
		cache:  rules.NewCache(),
	}
}

// Connect establishes the database connection pool.
func (e *Engine) Connect(ctx context.Context) error {
	if e.Client != nil {
		return nil
	}
	if e.Config == nil {
		return fmt.Errorf("no config set")
	}
	client := metadata.NewPostgres(&e.Config.Target)
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connecting to %s/%s: %w", e.Config.Target.Host, e.Config.Target.Database, err)
	}
	e.Client = client
	return nil
}

// Close releases the database connection pool.
func (e *Engine) Close() {
	if e.Client != nil {
		e.Client.Close()
		e.Client = nil
	}
}

// TestConnection verifies connectivity without caching the client.
func (e *Engine) TestConnection(ctx context.Context, cfg *config.TargetConfig) error {
	client := metadata.NewPostgres(cfg)
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Close()
	return client.Ping(ctx)
}

// Introspect runs schema introspection and caches the result.
func (e *Engine) Introspect(ctx context.Context) (*introspect.Result, error) {
	if e.Client == nil {
		return nil, fmt.Errorf("not connected")
	}

	in := &introspect.Introspector{
		Client: e.Client,
		Logger: e.Logger,
	}
	if e.Config != nil {
		in.Parallelism = e.Config.Seed.Parallelism
		in.Host = e.Config.Target.Host
		in.Database = e.Config.Target.Database
		in.SchemaName = e.Config.Target.Schema
	}

	result, err := in.Introspect(ctx)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.result = result
	e.constraints = nil
	e.graph = nil
	e.cache.Clear()
	e.mu.Unlock()
	return result, nil
}

// Introspection returns the cached introspection result, or nil.
func (e *Engine) Introspection() *introspect.Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result
}

// DiscoverConstraints discovers business rules and dependencies for the
// named tables. An empty list means every introspected table. Results are
// cached per table set until the next Introspect.
func (e *Engine) DiscoverConstraints(ctx context.Context, tableNames []string) (*rules.ConstraintMetadata, error) {
	result, err := e.ensureIntrospected(ctx)
	if err != nil {
		return nil, err
	}

	if len(tableNames) == 0 {
		for _, t := range result.Snapshot.Tables {
			tableNames = append(tableNames, t.Name)
		}
	}

	if cached, ok := e.cache.Get(tableNames); ok {
		return cached, nil
	}

	eng := &rules.Engine{
		Client:   e.Client,
		Snapshot: result.Snapshot,
		Logger:   e.Logger,
	}
	meta, err := eng.Discover(ctx, tableNames)
	if err != nil {
		return nil, err
	}
	e.cache.Put(tableNames, meta)

	e.mu.Lock()
	e.constraints = meta
	e.graph = nil
	e.mu.Unlock()
	return meta, nil
}

// BuildDependencyGraph builds the table dependency graph from discovered
// constraints, discovering them first if needed.
func (e *Engine) BuildDependencyGraph(ctx context.Context) (*depgraph.DependencyGraph, error) {
	e.mu.Lock()
	meta, result, g := e.constraints, e.result, e.graph
	e.mu.Unlock()
	if g != nil {
		return g, nil
	}

	if meta == nil {
		var err error
		meta, err = e.DiscoverConstraints(ctx, nil)
		if err != nil {
			return nil, err
		}
		result = e.Introspection()
	}

	g = depgraph.Build(meta, result.Snapshot)

	e.mu.Lock()
	e.graph = g
	e.mu.Unlock()
	return g, nil
}

// DetectJunctions classifies junction tables in the dependency graph.
func (e *Engine) DetectJunctions(ctx context.Context) ([]junction.JunctionTableInfo, error) {
	g, err := e.BuildDependencyGraph(ctx)
	if err != nil {
		return nil, err
	}
	d := junction.NewDetector(e.Introspection().Snapshot)
	return d.Detect(g), nil
}

// SeedJunction generates and inserts relationship rows for one junction
// table, reading existing keys from both referenced tables.
func (e *Engine) SeedJunction(ctx context.Context, info junction.JunctionTableInfo, opts junction.GenerateOptions) (*junction.InsertReport, error) {
	if e.Client == nil {
		return nil, fmt.Errorf("not connected")
	}

	leftRows, err := e.Client.SelectRows(ctx, info.Left.Table, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", info.Left.Table, err)
	}
	rightRows, err := e.Client.SelectRows(ctx, info.Right.Table, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", info.Right.Table, err)
	}

	pairs, err := junction.GenerateRelationships(info, leftRows, rightRows, opts)
	if err != nil {
		return nil, err
	}

	batchSize := 100
	if e.Config != nil && e.Config.Seed.BatchSize > 0 {
		batchSize = e.Config.Seed.BatchSize
	}
	return junction.Insert(ctx, e.Client, info, pairs, batchSize, e.Logger)
}

// GenerateWorkflow produces an ordered workflow for the named tables,
// running introspection, discovery, and graph construction as needed.
func (e *Engine) GenerateWorkflow(ctx context.Context, tableNames []string, opts workflow.Options) (*workflow.Workflow, *workflow.GenerationMetadata, error) {
	g, err := e.BuildDependencyGraph(ctx)
	if err != nil {
		return nil, nil, err
	}

	e.mu.Lock()
	meta, result := e.constraints, e.result
	e.mu.Unlock()

	gen := &workflow.Generator{
		Graph:    g,
		Metadata: meta,
		Snapshot: result.Snapshot,
		Patterns: result.Patterns,
		Logger:   e.Logger,
	}

	if len(tableNames) == 0 {
		for _, t := range result.Snapshot.Tables {
			tableNames = append(tableNames, t.Name)
		}
	}
	return gen.Generate(tableNames, opts)
}

// Execute runs a workflow against the target database with constraint
// validation and auto-fixing.
func (e *Engine) Execute(ctx context.Context, wf *workflow.Workflow, input map[string]any) (*executor.ExecutionResult, error) {
	if e.Client == nil {
		return nil, fmt.Errorf("not connected")
	}

	e.mu.Lock()
	meta := e.constraints
	e.mu.Unlock()

	provider := values.New()
	registry, err := handlers.NewDefaultRegistry(provider, e.Logger)
	if err != nil {
		return nil, fmt.Errorf("building handler registry: %w", err)
	}

	exec := &executor.Executor{
		Client:   e.Client,
		Registry: registry,
		Provider: provider,
		Metadata: meta,
		Logger:   e.Logger,
	}
	if e.Config != nil {
		exec.Parallelism = e.Config.Seed.Parallelism
	}
	return exec.Execute(ctx, wf, input)
}

// Report assembles a run report from the cached pipeline artifacts and an
// execution result. Pass nil for a plan-only report.
func (e *Engine) Report(wf *workflow.Workflow, result *executor.ExecutionResult) *report.SeedReport {
	e.mu.Lock()
	defer e.mu.Unlock()

	target := report.TargetSummary{}
	if e.Config != nil {
		target.Host = e.Config.Target.Host
		target.Database = e.Config.Target.Database
		target.Schema = e.Config.Target.Schema
	}
	if e.result != nil {
		target.Tables = len(e.result.Snapshot.Tables)
	}

	discovery := report.DiscoverySummary{}
	if e.constraints != nil {
		discovery.Rules = len(e.constraints.BusinessRules)
		discovery.Dependencies = len(e.constraints.Dependencies)
		discovery.Confidence = e.constraints.Confidence
	}
	if e.result != nil && e.result.Framework != nil {
		discovery.Framework = e.result.Framework.Name
	}

	wfSummary := report.WorkflowSummary{}
	if wf != nil {
		wfSummary.Name = wf.Name
		wfSummary.Steps = len(wf.Steps)
	}
	if e.Config != nil {
		wfSummary.Mode = e.Config.Seed.Mode
	}

	return report.Build(target, discovery, wfSummary, result)
}

// ensureIntrospected returns the cached introspection result, running
// introspection first when none is cached.
func (e *Engine) ensureIntrospected(ctx context.Context) (*introspect.Result, error) {
	e.mu.Lock()
	result := e.result
	e.mu.Unlock()
	if result != nil {
		return result, nil
	}
	return e.Introspect(ctx)
}
