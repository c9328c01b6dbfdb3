package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tetratelabs/wazero/api"

	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/rules"
	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/wasm"
)

// FunctionInfo describes one imported or exported function.
type FunctionInfo struct {
	Module    string `json:"module,omitempty"`
	Name      string `json:"name"`
	Signature string `json:"signature"`
}

// MemoryInfo describes the exported linear memory in 64 KiB pages.
type MemoryInfo struct {
	Name     string `json:"name"`
	MinPages uint32 `json:"min_pages"`
	MaxPages uint32 `json:"max_pages,omitempty"`
	HasMax   bool   `json:"has_max"`
}

// Report is the result of Inspect.
type Report struct {
	Digest      string         `json:"digest"`
	Version     string         `json:"version"`
	Size        int            `json:"size_bytes"`
	MeteredSize int            `json:"metered_size_bytes,omitempty"`
	Imports     []FunctionInfo `json:"imports"`
	Exports     []FunctionInfo `json:"exports"`
	Memories    []MemoryInfo   `json:"memories"`
	Valid       bool           `json:"valid"`
	Stage       string         `json:"stage,omitempty"`
	Problem     string         `json:"problem,omitempty"`
}

// Inspect describes an artifact and reports whether the engine would accept
// it. Only artifacts that are not WebAssembly at all return an error.
func (e *Engine) Inspect(ctx context.Context, artifact []byte) (*Report, error) {
	bin, err := wasm.Parse(artifact)
	if err != nil {
		return nil, fmt.Errorf("not a WebAssembly module: %w", err)
	}

	digest := Digest(artifact)
	custom, ok := bin.Custom(rules.VersionSection)
	r := &Report{
		Digest:  digest,
		Version: versionFor(custom, ok, digest),
		Size:    len(artifact),
	}

	raw, err := e.runtime.CompileModule(ctx, artifact)
	if err == nil {
		for _, def := range raw.ImportedFunctions() {
			mod, name, _ := def.Import()
			r.Imports = append(r.Imports, FunctionInfo{Module: mod, Name: name, Signature: describe(def)})
		}
		for name, def := range raw.ExportedFunctions() {
			r.Exports = append(r.Exports, FunctionInfo{Name: name, Signature: describe(def)})
		}
		for name, mem := range raw.ExportedMemories() {
			info := MemoryInfo{Name: name, MinPages: mem.Min()}
			info.MaxPages, info.HasMax = mem.Max()
			r.Memories = append(r.Memories, info)
		}
		_ = raw.Close(ctx)
		sort.Slice(r.Exports, func(i, j int) bool { return r.Exports[i].Name < r.Exports[j].Name })
		sort.Slice(r.Memories, func(i, j int) bool { return r.Memories[i].Name < r.Memories[j].Name })
	}

	m, err := e.Compile(ctx, artifact)
	if err != nil {
		r.Problem = err.Error()
		var ce *CompileError
		if errors.As(err, &ce) {
			r.Stage = ce.Stage
			r.Problem = ce.Err.Error()
		}
		return r, nil
	}
	r.Valid = true
	r.MeteredSize = m.MeteredSize
	_ = m.Close(ctx)
	return r, nil
}

func describe(def api.FunctionDefinition) string {
	return signature{params: def.ParamTypes(), results: def.ResultTypes()}.String()
}

// Text renders the report for a terminal.
func (r *Report) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Version:      %s\n", r.Version)
	fmt.Fprintf(&b, "Digest:       %s\n", r.Digest)
	fmt.Fprintf(&b, "Size:         %d bytes\n", r.Size)
	if r.MeteredSize > 0 {
		fmt.Fprintf(&b, "Metered size: %d bytes\n", r.MeteredSize)
	}

	b.WriteString("Imports:\n")
	if len(r.Imports) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, f := range r.Imports {
		fmt.Fprintf(&b, "  %s.%s %s\n", f.Module, f.Name, f.Signature)
	}
	b.WriteString("Exports:\n")
	for _, f := range r.Exports {
		fmt.Fprintf(&b, "  %s %s\n", f.Name, f.Signature)
	}
	for _, m := range r.Memories {
		if m.HasMax {
			fmt.Fprintf(&b, "  %s memory %d..%d pages\n", m.Name, m.MinPages, m.MaxPages)
		} else {
			fmt.Fprintf(&b, "  %s memory %d.. pages\n", m.Name, m.MinPages)
		}
	}

	if r.Valid {
		b.WriteString("Status:       valid\n")
	} else if r.Stage != "" {
		fmt.Fprintf(&b, "Status:       rejected at %s: %s\n", r.Stage, r.Problem)
	} else {
		fmt.Fprintf(&b, "Status:       rejected: %s\n", r.Problem)
	}
	return b.String()
}
