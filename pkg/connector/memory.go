package connector

const bytesPerMB = 1024 * 1024

// MemoryReport compares the current estimate with the configured target.
type MemoryReport struct {
	Bytes        uint64
	TargetBytes  uint64
	WithinTarget bool
}

// KB returns Bytes in kibibytes.
func (r MemoryReport) KB() float64 {
	return float64(r.Bytes) / 1024
}

// MB returns Bytes in mebibytes.
func (r MemoryReport) MB() float64 {
	return float64(r.Bytes) / bytesPerMB
}

// TargetMB returns TargetBytes in mebibytes.
func (r MemoryReport) TargetMB() uint64 {
	return r.TargetBytes / bytesPerMB
}

// Memory reports CurrentMemoryEstimate against server.memory_target_mb. A
// zero target is always met.
func (c *Connector) Memory() MemoryReport {
	r := MemoryReport{
		Bytes:       c.CurrentMemoryEstimate(),
		TargetBytes: c.config.Server.MemoryTargetMB * bytesPerMB,
	}
	r.WithinTarget = r.TargetBytes == 0 || r.Bytes <= r.TargetBytes
	return r
}
