package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/sandbox"
)

// DefaultMaxArtifactBytes bounds artifacts read from disk.
const DefaultMaxArtifactBytes = 16 << 20

// Compiler turns artifacts into modules. *sandbox.Engine implements it.
type Compiler interface {
	Compile(ctx context.Context, artifact []byte) (*sandbox.Module, error)
}

// Option configures a Store.
type Option func(*Store)

// WithTracer sets the tracer used for reload spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Store) {
		s.tracer = t
	}
}

// WithMaxArtifactBytes bounds artifacts read by LoadFile and ReloadFile.
func WithMaxArtifactBytes(n int64) Option {
	return func(s *Store) {
		s.maxArtifactBytes = n
	}
}

// handle is one published module. The slot owns one reference; every lease
// owns one more. The module is closed when the count drops to zero.
type handle struct {
	module   *sandbox.Module
	loadedAt time.Time
	refs     atomic.Int64
}

// tryAcquire takes a reference unless the handle is already retired.
func (h *handle) tryAcquire() bool {
	for {
		n := h.refs.Load()
		if n <= 0 {
			return false
		}
		if h.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Store owns the active module.
type Store struct {
	compiler Compiler
	logger   *slog.Logger
	tracer   trace.Tracer

	maxArtifactBytes int64

	active atomic.Pointer[handle]

	// reloadMu serialises LoadInitial, TryReload and Close. Evaluations
	// never take it.
	reloadMu sync.Mutex

	loaded    atomic.Uint64
	unchanged atomic.Uint64
	rejected  atomic.Uint64
	retired   atomic.Uint64
	lastError atomic.Pointer[string]
}

// New creates an empty store.
func New(compiler Compiler, logger *slog.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		compiler:         compiler,
		logger:           logger.With("component", "store"),
		tracer:           noop.NewTracerProvider().Tracer(""),
		maxArtifactBytes: DefaultMaxArtifactBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadInitial compiles and publishes the first module. Any failure is a
// *StartupError.
func (s *Store) LoadInitial(ctx context.Context, artifact []byte) (*sandbox.Module, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	if s.active.Load() != nil {
		return nil, &StartupError{Cause: ErrAlreadyLoaded}
	}
	if len(artifact) == 0 {
		return nil, &StartupError{Cause: errors.New("artifact is empty")}
	}

	m, err := s.compiler.Compile(ctx, artifact)
	if err != nil {
		return nil, &StartupError{Cause: err}
	}
	s.publish(m)
	s.loaded.Add(1)

	s.logger.Info("Policy module loaded",
		"version", m.Version,
		"digest", m.Digest,
		"size_bytes", m.Size,
	)
	return m, nil
}

// LoadFile reads path and calls LoadInitial.
func (s *Store) LoadFile(ctx context.Context, path string) (*sandbox.Module, error) {
	artifact, err := s.readArtifact(path)
	if err != nil {
		return nil, &StartupError{Path: path, Cause: err}
	}
	m, err := s.LoadInitial(ctx, artifact)
	if err != nil {
		var se *StartupError
		if errors.As(err, &se) {
			se.Path = path
		}
		return nil, err
	}
	return m, nil
}

// TryReload validates, compiles and publishes artifact. On any failure the
// active module is left untouched.
func (s *Store) TryReload(ctx context.Context, artifact []byte) ReloadResult {
	ctx, span := s.tracer.Start(ctx, "store.reload", trace.WithAttributes(
		attribute.Int("artifact.size", len(artifact)),
	))
	defer span.End()

	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	start := time.Now()
	res := s.tryReload(ctx, artifact)
	res.Duration = time.Since(start)

	span.SetAttributes(attribute.String("status", string(res.Status)))
	if res.Err != nil {
		span.SetStatus(codes.Error, res.Err.Error())
	}
	return res
}

func (s *Store) tryReload(ctx context.Context, artifact []byte) ReloadResult {
	prev := s.active.Load()
	res := ReloadResult{SizeBytes: len(artifact)}
	if prev != nil {
		res.Version = prev.module.Version
		res.Digest = prev.module.Digest
	}

	if len(artifact) == 0 {
		return s.reject(res, &ReloadError{Stage: StageRead, Cause: errors.New("artifact is empty")})
	}

	if prev != nil && sandbox.Digest(artifact) == prev.module.Digest {
		s.unchanged.Add(1)
		res.Status = StatusUnchanged
		s.logger.Debug("Policy module unchanged", "version", res.Version)
		return res
	}

	s.logger.Info("Reloading policy module", "size_bytes", len(artifact))

	m, err := s.compiler.Compile(ctx, artifact)
	if err != nil {
		return s.reject(res, reloadError(err))
	}

	s.publish(m)
	s.loaded.Add(1)
	s.lastError.Store(nil)

	res.Status = StatusLoaded
	if prev != nil {
		res.Previous = prev.module.Version
	}
	res.Version = m.Version
	res.Digest = m.Digest

	s.logger.Info("Policy module reloaded",
		"version", m.Version,
		"previous", res.Previous,
		"digest", m.Digest,
	)
	return res
}

// ReloadFile reads path and calls TryReload. A read failure is reported as a
// rejection at the read stage.
func (s *Store) ReloadFile(ctx context.Context, path string) ReloadResult {
	artifact, err := s.readArtifact(path)
	if err != nil {
		s.reloadMu.Lock()
		defer s.reloadMu.Unlock()
		res := ReloadResult{}
		if h := s.active.Load(); h != nil {
			res.Version, res.Digest = h.module.Version, h.module.Digest
		}
		return s.reject(res, &ReloadError{Stage: StageRead, Cause: err})
	}
	return s.TryReload(ctx, artifact)
}

func (s *Store) reject(res ReloadResult, err *ReloadError) ReloadResult {
	s.rejected.Add(1)
	msg := err.Error()
	s.lastError.Store(&msg)

	res.Status = StatusRejected
	res.Err = err
	s.logger.Error("Policy reload rejected, keeping previous module",
		"stage", err.Stage,
		"error", err.Cause,
		"version", res.Version,
	)
	return res
}

// publish swaps in m and drops the slot's reference on the previous handle.
func (s *Store) publish(m *sandbox.Module) {
	h := &handle{module: m, loadedAt: time.Now()}
	h.refs.Store(1)
	if prev := s.active.Swap(h); prev != nil {
		s.release(prev)
	}
}

func (s *Store) release(h *handle) {
	n := h.refs.Add(-1)
	if n > 0 {
		return
	}
	if n < 0 {
		panic("store: handle released more often than acquired")
	}
	s.retired.Add(1)
	if err := h.module.Close(context.Background()); err != nil {
		s.logger.Warn("Failed to close retired module", "version", h.module.Version, "error", err)
		return
	}
	s.logger.Debug("Retired policy module", "version", h.module.Version)
}

// Lease pins a module for one evaluation.
type Lease struct {
	h    *handle
	s    *Store
	once sync.Once
}

// Module returns the leased module.
func (l *Lease) Module() *sandbox.Module {
	return l.h.module
}

// Release returns the lease. Calling it more than once has no effect.
func (l *Lease) Release() {
	l.once.Do(func() {
		l.s.release(l.h)
	})
}

// Acquire leases the active module without blocking.
func (s *Store) Acquire() (*Lease, error) {
	for {
		h := s.active.Load()
		if h == nil {
			return nil, ErrNoActiveModule
		}
		if h.tryAcquire() {
			return &Lease{h: h, s: s}, nil
		}
		// h was retired between Load and tryAcquire; the slot already
		// points at its successor.
	}
}

// Current describes the active module. ok is false when none is loaded.
func (s *Store) Current() (info Info, ok bool) {
	info = Info{
		Loaded:    s.loaded.Load(),
		Unchanged: s.unchanged.Load(),
		Rejected:  s.rejected.Load(),
	}
	if msg := s.lastError.Load(); msg != nil {
		info.LastError = *msg
	}
	h := s.active.Load()
	if h == nil {
		return info, false
	}
	info.Version = h.module.Version
	info.Digest = h.module.Digest
	info.Size = h.module.Size
	info.LoadedAt = h.loadedAt
	return info, true
}

// Ready reports whether a module is active.
func (s *Store) Ready() bool {
	return s.active.Load() != nil
}

// Close empties the slot. The last module is closed once in-flight leases
// are released.
func (s *Store) Close() {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()
	if prev := s.active.Swap(nil); prev != nil {
		s.release(prev)
	}
}

func (s *Store) readArtifact(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.maxArtifactBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > s.maxArtifactBytes {
		return nil, fmt.Errorf("artifact exceeds %d bytes", s.maxArtifactBytes)
	}
	return data, nil
}
