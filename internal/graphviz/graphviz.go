// Package graphviz renders a staging transaction's dataflow and hierarchy
// relations as Graphviz dot language, for the OnErrorSave failure policy
// and the demo command's graph subcommand. Nodes and edges are sorted
// into a deterministic order before being written out, the same
// lexical-by-ID approach the dag/graphviz package uses for reproducible
// test fixtures.
package graphviz

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/g-arjones/tools-syskit/internal/planmodel"
)

var validUnquotedID = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func quote(s string) string {
	if validUnquotedID.MatchString(s) {
		return s
	}
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		if r == '"' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}

func label(t *planmodel.Task) string {
	if t.Model != nil {
		return fmt.Sprintf("%s\\n%s", t.Handle, t.Model.Name)
	}
	return t.Handle.String()
}

// WriteHierarchy writes the hierarchy relation (parent -> child, labelled
// with the child's role) as a dot digraph.
func WriteHierarchy(tx *planmodel.Transaction, w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString("digraph hierarchy {\n"); err != nil {
		return err
	}

	tasks := tx.OrderedTasks()
	for _, t := range tasks {
		if _, err := fmt.Fprintf(bw, "  %s [label=%s];\n", quote(t.Handle.String()), quote(label(t))); err != nil {
			return err
		}
	}

	type edge struct{ parent, child, role string }
	var edges []edge
	for _, t := range tasks {
		for parent, roles := range t.Roles {
			for _, role := range roles {
				edges = append(edges, edge{parent: parent.String(), child: t.Handle.String(), role: role})
			}
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].parent != edges[j].parent {
			return edges[i].parent < edges[j].parent
		}
		return edges[i].child < edges[j].child
	})
	for _, e := range edges {
		if _, err := fmt.Fprintf(bw, "  %s -> %s [label=%s];\n", quote(e.parent), quote(e.child), quote(e.role)); err != nil {
			return err
		}
	}

	if _, err := bw.WriteString("}\n"); err != nil {
		return err
	}
	return bw.Flush()
}

// WriteDataflow writes the dataflow relation (source -> sink, labelled
// with the connected port count) as a dot digraph.
func WriteDataflow(tx *planmodel.Transaction, w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString("digraph dataflow {\n"); err != nil {
		return err
	}

	tasks := tx.OrderedTasks()
	for _, t := range tasks {
		if _, err := fmt.Fprintf(bw, "  %s [label=%s];\n", quote(t.Handle.String()), quote(label(t))); err != nil {
			return err
		}
	}

	edges := append([]*planmodel.DataflowEdge(nil), tx.AllEdges()...)
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Sink < edges[j].Sink
	})
	for _, e := range edges {
		lbl := fmt.Sprintf("%d port(s)", len(e.ConnectionSet))
		if _, err := fmt.Fprintf(bw, "  %s -> %s [label=%s];\n", quote(e.Source.String()), quote(e.Sink.String()), quote(lbl)); err != nil {
			return err
		}
	}

	if _, err := bw.WriteString("}\n"); err != nil {
		return err
	}
	return bw.Flush()
}

// DumpAll writes both the hierarchy and dataflow graphs under dir as
// hierarchy.dot and dataflow.dot, creating dir if necessary.
func DumpAll(tx *planmodel.Transaction, dir string) error {
	return DumpAllIndexed(tx, dir, 0)
}

// DumpAllIndexed writes both graphs under dir, naming them
// syskit-plan-<index>.hierarchy.dot and syskit-plan-<index>.dataflow.dot
// when index is positive, or hierarchy.dot/dataflow.dot when it is zero.
// The index lets a caller that calls DumpAllIndexed repeatedly within one
// process (e.g. the pipeline driver's OnErrorSave policy across several
// failed resolves) keep every failure's graphs instead of overwriting the
// previous pair.
func DumpAllIndexed(tx *planmodel.Transaction, dir string, index int) error {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	prefix := ""
	if index > 0 {
		prefix = fmt.Sprintf("syskit-plan-%d.", index)
	}

	hf, err := os.Create(filepath.Join(dir, prefix+"hierarchy.dot"))
	if err != nil {
		return err
	}
	defer hf.Close()
	if err := WriteHierarchy(tx, hf); err != nil {
		return err
	}

	df, err := os.Create(filepath.Join(dir, prefix+"dataflow.dot"))
	if err != nil {
		return err
	}
	defer df.Close()
	return WriteDataflow(tx, df)
}
