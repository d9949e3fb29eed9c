package merge

import (
	"fmt"
	"sort"

	"github.com/g-arjones/tools-syskit/internal/planmodel"
	"github.com/google/go-cmp/cmp"
)

// taskSnapshot is a handle-independent view of one surviving task, used
// to compare two merge outcomes for isomorphism.
type taskSnapshot struct {
	Model string
	Args  map[string]string
}

// edgeSnapshot is a handle-independent view of one surviving dataflow
// edge.
type edgeSnapshot struct {
	Source, Sink string
	Ports        []string
}

type graphSnapshot struct {
	Tasks []taskSnapshot
	Edges []edgeSnapshot
}

func snapshotOf(tx *planmodel.Transaction) graphSnapshot {
	tasks := tx.OrderedTasks()
	label := make(map[planmodel.Handle]string, len(tasks))
	counts := make(map[string]int)

	var out graphSnapshot
	for _, t := range tasks {
		name := "<abstract>"
		if t.Model != nil {
			name = t.Model.Name
		}
		counts[name]++
		label[t.Handle] = fmt.Sprintf("%s#%d", name, counts[name])

		args := make(map[string]string, len(t.Args))
		for k, v := range t.Args {
			if v.Set {
				args[k] = fmt.Sprint(v.Value)
			}
		}
		out.Tasks = append(out.Tasks, taskSnapshot{Model: name, Args: args})
	}
	sort.Slice(out.Tasks, func(i, j int) bool {
		if out.Tasks[i].Model != out.Tasks[j].Model {
			return out.Tasks[i].Model < out.Tasks[j].Model
		}
		return fmt.Sprint(out.Tasks[i].Args) < fmt.Sprint(out.Tasks[j].Args)
	})

	for _, e := range tx.AllEdges() {
		var ports []string
		for pair := range e.ConnectionSet {
			ports = append(ports, pair.SourcePort+"->"+pair.SinkPort)
		}
		sort.Strings(ports)
		out.Edges = append(out.Edges, edgeSnapshot{
			Source: label[e.Source],
			Sink:   label[e.Sink],
			Ports:  ports,
		})
	}
	sort.Slice(out.Edges, func(i, j int) bool {
		if out.Edges[i].Source != out.Edges[j].Source {
			return out.Edges[i].Source < out.Edges[j].Source
		}
		return out.Edges[i].Sink < out.Edges[j].Sink
	})
	return out
}

// ValidateConfluence builds two structurally identical transactions from
// build, merges one in its natural creation-index order and the other in
// reverse, and reports any difference between the two outcomes via
// go-cmp. It is not wired into Resolve; it exists for tests that want to
// confirm the solver's tie-breaking keeps the merge fixed point
// independent of visitation order.
func ValidateConfluence(build func() *planmodel.Transaction) error {
	forward := build()
	if err := NewSolver().MergeIdenticalTasks(forward); err != nil {
		return fmt.Errorf("confluence: forward merge: %w", err)
	}

	reversed := build()
	order := reversed.OrderedTasks()
	handles := make([]planmodel.Handle, len(order))
	for i, t := range order {
		handles[len(order)-1-i] = t.Handle
	}
	if err := NewSolver().mergeIdenticalTasksInOrder(reversed, handles); err != nil {
		return fmt.Errorf("confluence: reversed merge: %w", err)
	}

	a, b := snapshotOf(forward), snapshotOf(reversed)
	if diff := cmp.Diff(a, b); diff != "" {
		return fmt.Errorf("confluence: merge outcome depends on task order (-forward +reversed):\n%s", diff)
	}
	return nil
}
