package rules

import (
	"context"
	"strings"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/wasm"
)

type guest struct {
	ctx  context.Context
	mod  api.Module
	logs []string
}

func load(t *testing.T, bin []byte) *guest {
	t.Helper()
	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	t.Cleanup(func() { _ = r.Close(ctx) })

	g := &guest{ctx: ctx}
	_, err := r.NewHostModuleBuilder(HostModule).
		NewFunctionBuilder().
		WithFunc(func(_ context.Context, m api.Module, ptr, n uint32) {
			if b, ok := m.Memory().Read(ptr, n); ok {
				g.logs = append(g.logs, string(b))
			}
		}).
		Export(HostLog).
		Instantiate(ctx)
	if err != nil {
		t.Fatalf("host module: %v", err)
	}

	g.mod, err = r.Instantiate(ctx, bin)
	if err != nil {
		t.Fatalf("Instantiate() error = %v", err)
	}
	return g
}

func (g *guest) eval(t *testing.T, input []byte) (bool, string) {
	t.Helper()
	g.logs = nil
	off, err := g.mod.ExportedFunction(ExportInputBuffer).Call(g.ctx)
	if err != nil {
		t.Fatalf("get_input_buffer: %v", err)
	}
	if !g.mod.Memory().Write(uint32(off[0]), input) {
		t.Fatalf("input of %d bytes does not fit at %d", len(input), off[0])
	}
	res, err := g.mod.ExportedFunction(ExportEvaluate).Call(g.ctx, off[0], uint64(len(input)))
	if err != nil {
		t.Fatalf("evaluate_access: %v", err)
	}
	return uint32(res[0]) != 0, strings.Join(g.logs, "; ")
}

func TestCompiledMatchesEvaluate(t *testing.T) {
	rs := Default()
	g := load(t, MustCompile(rs))

	inputs := []string{
		`{"role":"admin"}`,
		`{"blocked":true}`,
		`{"blocked": true}`,
		`{"role":"operator","resource":"secret"}`,
		`{"role":"operator","resource":"data"}`,
		`{"role":"viewer","action":"write"}`,
		`{"role":"viewer"}`,
		`{}`,
		`x`,
		`"admi`,
		strings.Repeat(`"adm`, 500) + `"admin"`,
	}
	for _, tc := range rs.Tests {
		inputs = append(inputs, tc.Input)
	}

	for _, in := range inputs {
		want := rs.Evaluate([]byte(in))
		allowed, reason := g.eval(t, []byte(in))
		if allowed != want.Allowed || reason != want.Reason {
			t.Errorf("input %.40q: compiled = (%v, %q), evaluate = (%v, %q)",
				in, allowed, reason, want.Allowed, want.Reason)
		}
	}
}

func TestCompiledRejectsInvalidBounds(t *testing.T) {
	g := load(t, MustCompile(Default()))

	tests := []struct {
		name     string
		ptr, len uint64
	}{
		{name: "zero length", ptr: 1024, len: 0},
		{name: "too long", ptr: 1024, len: DefaultMaxInput + 1},
		{name: "negative pointer", ptr: uint64(uint32(0xffffff00)), len: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g.logs = nil
			res, err := g.mod.ExportedFunction(ExportEvaluate).Call(g.ctx, tt.ptr, tt.len)
			if err != nil {
				t.Fatalf("evaluate_access: %v", err)
			}
			if res[0] != 0 {
				t.Errorf("evaluate_access = %d, want deny", res[0])
			}
			if len(g.logs) != 1 || g.logs[0] != ReasonInvalidInput {
				t.Errorf("logs = %v, want %q", g.logs, ReasonInvalidInput)
			}
		})
	}
}

func TestCompileLayout(t *testing.T) {
	rs := Default()
	bin := MustCompile(rs)

	b, err := wasm.Parse(bin)
	if err != nil {
		t.Fatalf("wasm.Parse() error = %v", err)
	}
	names, err := b.ExportNames()
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]bool{ExportMemory: true, ExportInputBuffer: true, ExportEvaluate: true}
	for _, n := range names {
		delete(want, n)
	}
	if len(want) != 0 {
		t.Errorf("missing exports %v", want)
	}

	if v, ok := b.Custom(VersionSection); !ok || string(v) != rs.Version {
		t.Errorf("version section = %q, %v", v, ok)
	}

	if off := rs.InputOffset(); off < minInput || off%16 != 0 {
		t.Errorf("InputOffset() = %d", off)
	}

	if _, err := Compile(&RuleSet{Default: Fallback{Decision: "nope"}}); err == nil {
		t.Error("Compile() accepted invalid rule set")
	}
}

func TestCompileLargeData(t *testing.T) {
	rs := &RuleSet{
		MaxInput: 256,
		Default:  Fallback{Decision: Deny, Reason: "closed"},
	}
	for i := 0; i < 40; i++ {
		p := strings.Repeat(string(rune('a'+i%26)), 30+i)
		rs.Rules = append(rs.Rules, Rule{Pattern: p, Decision: Allow, Reason: "long " + p})
	}
	if off := rs.InputOffset(); off <= minInput {
		t.Fatalf("InputOffset() = %d, want above %d once data outgrows it", off, minInput)
	}

	g := load(t, MustCompile(rs))
	in := "xx" + rs.Rules[39].Pattern + "yy"
	allowed, reason := g.eval(t, []byte(in))
	want := rs.Evaluate([]byte(in))
	if allowed != want.Allowed || reason != want.Reason {
		t.Errorf("compiled = (%v, %q), evaluate = (%v, %q)", allowed, reason, want.Allowed, want.Reason)
	}
}
