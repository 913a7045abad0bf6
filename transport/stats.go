package transport

import "sync/atomic"

// Stats are the cumulative statistics of a host.
type Stats struct {
	PacketsIn  uint64
	PacketsOut uint64
	BytesIn    uint64
	BytesOut   uint64

	MessagesIn  uint64
	MessagesOut uint64

	// Invalid is the number of datagrams that were malformed or that came
	// from unknown addresses.
	Invalid uint64

	// Duplicates is the number of datagrams dropped because their
	// sequence number was already seen or was too old.
	Duplicates uint64

	// Incomplete is the number of fragmented messages dropped before all
	// of their fragments were received.
	Incomplete uint64
}

type stats struct {
	pktsIn     atomic.Uint64
	pktsOut    atomic.Uint64
	bytesIn    atomic.Uint64
	bytesOut   atomic.Uint64
	msgsIn     atomic.Uint64
	msgsOut    atomic.Uint64
	invalid    atomic.Uint64
	duplicates atomic.Uint64
	incomplete atomic.Uint64
}

func (s *stats) snapshot() Stats {
	return Stats{
		PacketsIn:   s.pktsIn.Load(),
		PacketsOut:  s.pktsOut.Load(),
		BytesIn:     s.bytesIn.Load(),
		BytesOut:    s.bytesOut.Load(),
		MessagesIn:  s.msgsIn.Load(),
		MessagesOut: s.msgsOut.Load(),
		Invalid:     s.invalid.Load(),
		Duplicates:  s.duplicates.Load(),
		Incomplete:  s.incomplete.Load(),
	}
}
