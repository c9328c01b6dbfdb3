package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/rules"
	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/wasm"
)

// Compile stages.
const (
	StageValidate = "validate"
	StageMeter    = "meter"
	StageCompile  = "compile"
)

// CompileError reports the stage at which an artifact was refused.
type CompileError struct {
	Stage string
	Err   error
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *CompileError) Unwrap() error {
	return e.Err
}

// Option configures an Engine.
type Option func(*Engine)

// WithTracer sets the tracer used for evaluation spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = t
	}
}

// Engine owns the wazero runtime shared by all modules and evaluations.
type Engine struct {
	config  *Config
	runtime wazero.Runtime
	logger  *slog.Logger
	tracer  trace.Tracer

	inflight          atomic.Int64
	inflightMemory    atomic.Int64
	liveArtifactBytes atomic.Int64
}

// NewEngine creates the runtime and registers the host module.
func NewEngine(ctx context.Context, config *Config, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sandbox config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	var rc wazero.RuntimeConfig
	if config.Engine == EngineCompiler {
		rc = wazero.NewRuntimeConfigCompiler()
	} else {
		rc = wazero.NewRuntimeConfigInterpreter()
	}
	rc = rc.
		WithCloseOnContextDone(true).
		WithMemoryLimitPages(config.MemoryPages).
		WithCoreFeatures(api.CoreFeaturesV2.SetEnabled(api.CoreFeatureSIMD, false))

	e := &Engine{
		config:  config,
		runtime: wazero.NewRuntimeWithConfig(ctx, rc),
		logger:  logger.With("component", "sandbox"),
		tracer:  noop.NewTracerProvider().Tracer(""),
	}
	for _, opt := range opts {
		opt(e)
	}

	_, err := e.runtime.NewHostModuleBuilder(rules.HostModule).
		NewFunctionBuilder().
		WithGoModuleFunction(hostLog(e.logger),
			[]api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, []api.ValueType{}).
		WithParameterNames("ptr", "len").
		Export(rules.HostLog).
		Instantiate(ctx)
	if err != nil {
		_ = e.runtime.Close(ctx)
		return nil, fmt.Errorf("failed to register host module: %w", err)
	}

	return e, nil
}

// Config returns the engine limits.
func (e *Engine) Config() *Config {
	return e.config
}

// Close releases the runtime and every module compiled by it.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// Compile validates the artifact against the guest ABI, instruments it with
// fuel accounting and compiles it. Errors are *CompileError.
func (e *Engine) Compile(ctx context.Context, artifact []byte) (*Module, error) {
	bin, err := wasm.Parse(artifact)
	if err != nil {
		return nil, &CompileError{Stage: StageValidate, Err: err}
	}
	if err := checkImports(bin); err != nil {
		return nil, &CompileError{Stage: StageValidate, Err: err}
	}

	// Compiling the raw artifact runs wazero's full validation and exposes
	// the export signatures.
	raw, err := e.runtime.CompileModule(ctx, artifact)
	if err != nil {
		return nil, &CompileError{Stage: StageValidate, Err: err}
	}
	err = checkExports(raw, e.config.MemoryPages)
	_ = raw.Close(ctx)
	if err != nil {
		return nil, &CompileError{Stage: StageValidate, Err: err}
	}

	metered, _, err := wasm.Meter(artifact, wasm.MeterOptions{
		Budget:     e.config.FuelBudget,
		ExportName: FuelExport,
	})
	if err != nil {
		return nil, &CompileError{Stage: StageMeter, Err: err}
	}

	compiled, err := e.runtime.CompileModule(ctx, metered)
	if err != nil {
		return nil, &CompileError{Stage: StageCompile, Err: err}
	}

	digest := Digest(artifact)
	custom, ok := bin.Custom(rules.VersionSection)
	m := &Module{
		Digest:      digest,
		Version:     versionFor(custom, ok, digest),
		Size:        len(artifact),
		MeteredSize: len(metered),
		CompiledAt:  time.Now(),
		compiled:    compiled,
		engine:      e,
	}
	e.liveArtifactBytes.Add(int64(len(metered)))

	e.logger.Debug("compiled module",
		"version", m.Version,
		"digest", digest,
		"size", m.Size,
		"metered_size", m.MeteredSize,
	)
	return m, nil
}

// Evaluate runs one isolated evaluation of input against m.
func (e *Engine) Evaluate(ctx context.Context, m *Module, input []byte) (out Outcome) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "sandbox.evaluate", trace.WithAttributes(
		attribute.Int("input.size", len(input)),
	))

	e.inflight.Add(1)
	defer func() {
		e.inflight.Add(-1)
		out.Duration = time.Since(start)
		if m != nil {
			out.PolicyVersion = m.Version
		}
		span.SetAttributes(
			attribute.String("decision", out.Decision()),
			attribute.Int64("fuel.consumed", out.FuelConsumed),
		)
		if out.Fault != nil {
			span.SetStatus(codes.Error, out.Fault.Error())
		}
		span.End()
	}()

	if m == nil {
		return Faulted(&Fault{Kind: FaultInstantiate, Detail: "no module"}, "")
	}
	if len(input) > e.config.MaxInputBytes {
		return Faulted(&Fault{
			Kind:   FaultInputTooLarge,
			Detail: fmt.Sprintf("%d bytes exceeds limit of %d", len(input), e.config.MaxInputBytes),
		}, "")
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	sink := &logSink{max: e.config.MaxLogBytes}
	ctx = withSink(ctx, sink)

	inst, err := e.runtime.InstantiateModule(ctx, m.compiled,
		wazero.NewModuleConfig().WithName("").WithStartFunctions())
	if err != nil {
		f := classify(err, 0, false)
		if f.Kind == FaultTrap {
			f = &Fault{Kind: FaultInstantiate, Detail: firstLine(err.Error())}
		}
		return e.fault(f, sink)
	}
	defer inst.Close(context.Background())

	out = e.run(ctx, inst, input, sink)
	if out.Fault != nil {
		e.logger.Warn("sandbox fault",
			"kind", out.Fault.Kind,
			"detail", out.Fault.Detail,
			"version", m.Version,
			"fuel_consumed", out.FuelConsumed,
		)
	}
	return out
}

func (e *Engine) run(ctx context.Context, inst api.Module, input []byte, sink *logSink) Outcome {
	mem := inst.Memory()
	if mem == nil {
		return e.fault(&Fault{Kind: FaultABI, Detail: "module has no memory"}, sink)
	}
	size := int64(mem.Size())
	e.inflightMemory.Add(size)
	defer e.inflightMemory.Add(-size)

	fuel := inst.ExportedGlobal(FuelExport)
	getBuffer := inst.ExportedFunction(rules.ExportInputBuffer)
	evaluate := inst.ExportedFunction(rules.ExportEvaluate)
	if fuel == nil || getBuffer == nil || evaluate == nil {
		return e.fault(&Fault{Kind: FaultABI, Detail: "required exports missing"}, sink)
	}

	consumed := func() int64 {
		left := int64(fuel.Get())
		if left < 0 {
			return e.config.FuelBudget
		}
		return e.config.FuelBudget - left
	}
	trapped := func(err error) Outcome {
		left := int64(fuel.Get())
		out := e.fault(classify(err, left, true), sink)
		out.FuelConsumed = consumed()
		return out
	}

	res, err := getBuffer.Call(ctx)
	if err != nil {
		return trapped(err)
	}
	if len(res) != 1 {
		return e.fault(&Fault{Kind: FaultABI, Detail: "get_input_buffer returned no value"}, sink)
	}

	ptr := api.DecodeU32(res[0])
	if uint64(ptr)+uint64(len(input)) > uint64(mem.Size()) || !mem.Write(ptr, input) {
		out := e.fault(&Fault{
			Kind:   FaultOutOfBounds,
			Detail: fmt.Sprintf("input of %d bytes at offset %d exceeds memory of %d bytes", len(input), ptr, mem.Size()),
		}, sink)
		out.FuelConsumed = consumed()
		return out
	}

	res, err = evaluate.Call(ctx, api.EncodeU32(ptr), api.EncodeU32(uint32(len(input))))
	if err != nil {
		return trapped(err)
	}
	if len(res) != 1 {
		return e.fault(&Fault{Kind: FaultABI, Detail: "evaluate_access returned no value"}, sink)
	}

	return Outcome{
		Allowed:      api.DecodeU32(res[0]) != 0,
		Reason:       sink.text(),
		FuelConsumed: consumed(),
		RejectedLogs: sink.rejected,
	}
}

func (e *Engine) fault(f *Fault, sink *logSink) Outcome {
	out := Faulted(f, sink.text())
	out.RejectedLogs = sink.rejected
	return out
}

// InFlight returns the number of evaluations currently running.
func (e *Engine) InFlight() int64 {
	return e.inflight.Load()
}

// MemoryEstimate returns the bytes held by the sandbox: linear memory of
// running instances plus the metered artifacts of live modules.
func (e *Engine) MemoryEstimate() uint64 {
	n := e.inflightMemory.Load() + e.liveArtifactBytes.Load()
	if n < 0 {
		return 0
	}
	return uint64(n)
}

// IsCompileError reports whether err came from Compile and returns its stage.
func IsCompileError(err error) (string, bool) {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Stage, true
	}
	return "", false
}
