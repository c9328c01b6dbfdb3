package sandbox

import (
	"fmt"
	"slices"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/rules"
	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/wasm"
)

// FuelExport is the name of the fuel global injected at compile time.
const FuelExport = wasm.DefaultFuelExport

var (
	sigLog         = signature{params: []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}}
	sigInputBuffer = signature{results: []api.ValueType{api.ValueTypeI32}}
	sigEvaluate    = signature{
		params:  []api.ValueType{api.ValueTypeI32, api.ValueTypeI32},
		results: []api.ValueType{api.ValueTypeI32},
	}
)

type signature struct {
	params  []api.ValueType
	results []api.ValueType
}

func (s signature) matches(def api.FunctionDefinition) bool {
	return slices.Equal(def.ParamTypes(), s.params) && slices.Equal(def.ResultTypes(), s.results)
}

func (s signature) String() string {
	return fmt.Sprintf("(%s) -> (%s)", typeList(s.params), typeList(s.results))
}

func typeList(ts []api.ValueType) string {
	out := ""
	for i, t := range ts {
		if i > 0 {
			out += ", "
		}
		out += api.ValueTypeName(t)
	}
	return out
}

// ABIError reports an artifact that does not implement the guest ABI.
type ABIError struct {
	Reason string
}

// Error implements the error interface.
func (e *ABIError) Error() string {
	return "abi: " + e.Reason
}

func abiErrorf(format string, args ...any) *ABIError {
	return &ABIError{Reason: fmt.Sprintf(format, args...)}
}

// checkImports allows host.log and nothing else.
func checkImports(bin *wasm.Binary) error {
	imports, err := bin.Imports()
	if err != nil {
		return fmt.Errorf("import section: %w", err)
	}
	for _, imp := range imports {
		if imp.Module != rules.HostModule || imp.Name != rules.HostLog || imp.Kind != wasm.KindFunc {
			return abiErrorf("import %s.%s (%s) is not provided by the host", imp.Module, imp.Name, imp.Kind)
		}
	}
	return nil
}

// checkExports verifies the exact export signatures and the memory limits.
func checkExports(compiled wazero.CompiledModule, maxPages uint32) error {
	for _, def := range compiled.ImportedFunctions() {
		if !sigLog.matches(def) {
			return abiErrorf("import %s.%s must have signature %s", rules.HostModule, rules.HostLog, sigLog)
		}
	}

	fns := compiled.ExportedFunctions()
	for name, sig := range map[string]signature{
		rules.ExportInputBuffer: sigInputBuffer,
		rules.ExportEvaluate:    sigEvaluate,
	} {
		def, ok := fns[name]
		if !ok {
			return abiErrorf("missing export %q", name)
		}
		if !sig.matches(def) {
			return abiErrorf("export %q must have signature %s", name, sig)
		}
	}

	if len(compiled.ImportedMemories()) > 0 {
		return abiErrorf("memory must be defined by the module, not imported")
	}
	mem, ok := compiled.ExportedMemories()[rules.ExportMemory]
	if !ok {
		return abiErrorf("missing export %q", rules.ExportMemory)
	}
	if mem.Min() > maxPages {
		return abiErrorf("memory minimum of %d pages exceeds limit of %d", mem.Min(), maxPages)
	}
	if max, ok := mem.Max(); ok && max > maxPages {
		return abiErrorf("memory maximum of %d pages exceeds limit of %d", max, maxPages)
	}
	return nil
}
