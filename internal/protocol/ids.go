package protocol

import "sync/atomic"

// IDGenerator hands out msg_ids for messages this node originates. The zero
// value is ready to use and starts at 1.
type IDGenerator struct {
	last atomic.Int64
}

func (g *IDGenerator) Next() int64 {
	return g.last.Add(1)
}
