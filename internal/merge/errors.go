package merge

import (
	"fmt"

	"github.com/g-arjones/tools-syskit/internal/planmodel"
)

// ConflictError is MergeConflict: structurally compatible tasks carry
// incompatible connection policies for the same (source-port,sink-port)
// pair.
type ConflictError struct {
	From, To planmodel.Handle
	Port     planmodel.PortPair
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("MergeConflict: %s and %s disagree on connection policy for sink port %q", e.From, e.To, e.Port.SinkPort)
}
