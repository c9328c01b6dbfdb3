package sandbox

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/tetratelabs/wazero/api"
)

type sinkKey struct{}

const (
	logSeparator = "; "

	// maxLogEntries bounds the number of captured host.log calls.
	maxLogEntries = 64
)

// logSink collects host.log calls of one evaluation. An instance runs on a
// single goroutine, so the sink needs no locking. The joined text, separators
// included, never exceeds max bytes.
type logSink struct {
	lines     []string
	size      int
	max       int
	rejected  int
	truncated bool
}

func withSink(ctx context.Context, s *logSink) context.Context {
	return context.WithValue(ctx, sinkKey{}, s)
}

func sinkFrom(ctx context.Context) *logSink {
	s, _ := ctx.Value(sinkKey{}).(*logSink)
	return s
}

func (s *logSink) add(b []byte) {
	if s.truncated || len(b) == 0 {
		return
	}
	if len(s.lines) >= maxLogEntries {
		s.truncated = true
		return
	}

	sep := 0
	if len(s.lines) > 0 {
		sep = len(logSeparator)
	}
	room := s.max - s.size - sep
	if room <= 0 {
		s.truncated = true
		return
	}

	line := strings.ToValidUTF8(string(b), string(utf8.RuneError))
	if len(line) > room {
		cut := room
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		line = line[:cut]
		s.truncated = true
		if line == "" {
			return
		}
	}
	s.size += sep + len(line)
	s.lines = append(s.lines, line)
}

func (s *logSink) text() string {
	return strings.Join(s.lines, logSeparator)
}

// hostLog returns host.log. The range is checked against the caller's
// current memory size before anything is read; a bad range is counted and
// dropped without trapping the guest.
func hostLog(logger *slog.Logger) api.GoModuleFunc {
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		sink := sinkFrom(ctx)
		if sink == nil {
			return
		}
		ptr, n := api.DecodeU32(stack[0]), api.DecodeU32(stack[1])

		mem := mod.Memory()
		if mem == nil || uint64(ptr)+uint64(n) > uint64(mem.Size()) {
			sink.rejected++
			logger.Warn("rejected out of range log call",
				"ptr", ptr,
				"len", n,
				"memory_size", memorySize(mem),
			)
			return
		}

		b, ok := mem.Read(ptr, n)
		if !ok {
			sink.rejected++
			return
		}
		logger.Debug("guest log", "source", "guest", "message", string(b))
		sink.add(b)
	}
}

func memorySize(mem api.Memory) uint32 {
	if mem == nil {
		return 0
	}
	return mem.Size()
}
