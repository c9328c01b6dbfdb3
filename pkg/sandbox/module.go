package sandbox

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/tetratelabs/wazero"
)

// Module is a validated, metered and compiled artifact. It is immutable and
// safe for concurrent evaluations.
type Module struct {
	// Digest is the hex sha256 of the artifact as supplied.
	Digest string

	// Version comes from the edge.version custom section, or is derived from
	// the digest.
	Version string

	// Size is the artifact size in bytes; MeteredSize is the size after fuel
	// instrumentation.
	Size        int
	MeteredSize int

	CompiledAt time.Time

	compiled  wazero.CompiledModule
	engine    *Engine
	closeOnce sync.Once
}

// Close releases the compiled code. It must not be called while evaluations
// against the module are running.
func (m *Module) Close(ctx context.Context) error {
	var err error
	m.closeOnce.Do(func() {
		m.engine.liveArtifactBytes.Add(-int64(m.MeteredSize))
		err = m.compiled.Close(ctx)
	})
	return err
}

// Digest returns the hex sha256 of an artifact.
func Digest(artifact []byte) string {
	sum := sha256.Sum256(artifact)
	return hex.EncodeToString(sum[:])
}

func versionFor(custom []byte, ok bool, digest string) string {
	if ok && len(custom) > 0 {
		return string(custom)
	}
	return "sha256:" + digest[:12]
}
