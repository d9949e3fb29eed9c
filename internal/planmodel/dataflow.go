package planmodel

// ConnectionPolicy describes how samples flowing through one (source-port,
// sink-port) pair should be buffered/delivered. The actual policy
// computation is delegated to the dataflow-dynamics external collaborator
//; this type is just the value the resolver threads through merges.
type ConnectionPolicy struct {
	Type string
	Size int
}

// Equal reports whether two policies are the same, used by the merge
// solver to detect MergeConflict.
func (p ConnectionPolicy) Equal(other ConnectionPolicy) bool {
	return p.Type == other.Type && p.Size == other.Size
}

// PortPair identifies one (source-port, sink-port) connection within a
// dataflow edge's connection set.
type PortPair struct {
	SourcePort string
	SinkPort   string
}

// DataflowEdge is a directed edge between two tasks labelled with a
// connection set. ConnectionSet maps a (source-port, sink-port) pair
// to the policy governing that one connection; a single edge can carry
// many such pairs.
type DataflowEdge struct {
	Source Handle
	Sink   Handle

	ConnectionSet map[PortPair]ConnectionPolicy
}

// HasPort reports whether the connection set contains an entry for the
// given port pair.
func (e *DataflowEdge) HasPort(pair PortPair) bool {
	_, ok := e.ConnectionSet[pair]
	return ok
}
