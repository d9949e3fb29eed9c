package deploy

import (
	"fmt"
	"regexp"

	"github.com/g-arjones/tools-syskit/internal/component"
	"github.com/g-arjones/tools-syskit/internal/planmodel"
)

// Missing records a task context that could not be bound to a deployment
// slot, along with the candidates the selector considered.
type Missing struct {
	Task       planmodel.Handle
	Candidates []Candidate
}

// Ambiguous records a task context with several candidates and no
// orocos_name whose deployment-hint filtering left zero or several
// survivors.
type Ambiguous struct {
	Task       planmodel.Handle
	Candidates []Candidate
}

// Selector binds task contexts to deployment instances.
type Selector struct {
	Registry component.Registry
	Index    *Index
}

// New returns a Selector over the given registry and a freshly built Index.
func New(registry component.Registry) *Selector {
	return &Selector{Registry: registry, Index: Build(registry)}
}

// Result is what Select returns: the bindings it was able to make plus the
// tasks it could not resolve.
type Result struct {
	Bindings  map[planmodel.Handle]Candidate
	Missing   []Missing
	Ambiguous []Ambiguous
}

// Select chooses, for each non-abstract task context in tx without an
// execution agent, which deployment slot it will be bound to. It does not mutate tx; call Apply with the result to materialize
// deployment instances and merge the originals into them.
func (s *Selector) Select(tx *planmodel.Transaction) *Result {
	res := &Result{Bindings: make(map[planmodel.Handle]Candidate)}
	taken := make(map[[3]string]planmodel.Handle)

	for _, t := range tx.OrderedTasks() {
		if t.Abstract || t.Model == nil || t.Model.Kind != component.KindTaskContext {
			continue
		}
		if t.ExecutionAgent.Valid() {
			continue
		}

		candidates := s.Index.CandidatesFor(t.Model)
		if len(candidates) == 0 {
			res.Missing = append(res.Missing, Missing{Task: t.Handle})
			continue
		}

		var chosen *Candidate
		switch {
		case len(candidates) == 1:
			chosen = &candidates[0]
		case t.OrocosName != "":
			var match *Candidate
			count := 0
			for i := range candidates {
				if candidates[i].DeploymentLocal == t.OrocosName {
					match = &candidates[i]
					count++
				}
			}
			if count == 1 {
				chosen = match
			} else {
				res.Missing = append(res.Missing, Missing{Task: t.Handle, Candidates: candidates})
				continue
			}
		default:
			survivors := filterByHints(candidates, t.DeploymentHints)
			switch len(survivors) {
			case 1:
				chosen = &survivors[0]
			default:
				res.Ambiguous = append(res.Ambiguous, Ambiguous{Task: t.Handle, Candidates: survivors})
				continue
			}
		}

		key := [3]string{chosen.Host, chosen.Deployment.Name, chosen.DeploymentLocal}
		if _, alreadyBound := taken[key]; alreadyBound {
			res.Missing = append(res.Missing, Missing{Task: t.Handle, Candidates: candidates})
			continue
		}
		taken[key] = t.Handle
		res.Bindings[t.Handle] = *chosen
	}
	return res
}

// filterByHints narrows candidates to those matching at least one of the
// task's deployment hints.
func filterByHints(candidates []Candidate, hints []planmodel.DeploymentHint) []Candidate {
	if len(hints) == 0 {
		return candidates
	}
	var out []Candidate
	for _, c := range candidates {
		for _, h := range hints {
			if h.DeploymentModel != "" && h.DeploymentModel == c.Deployment.Name {
				out = append(out, c)
				break
			}
			if h.NamePattern != "" {
				if matched, err := regexp.MatchString(h.NamePattern, c.DeploymentLocal); err == nil && matched {
					out = append(out, c)
					break
				}
			}
		}
	}
	return out
}

// Apply materializes a deployment-instance task for each distinct (host,
// deployment-model) pair referenced by res.Bindings, keyed so that two task
// contexts bound into the same deployment share one instance, then merges
// each original task context into its deployed counterpart.
func (s *Selector) Apply(tx *planmodel.Transaction, res *Result) error {
	instances := make(map[[2]string]planmodel.Handle)

	for original, candidate := range res.Bindings {
		instKey := [2]string{candidate.Host, candidate.Deployment.Name}
		agent, ok := instances[instKey]
		if !ok {
			depModel, found := s.Registry.ModelFor(candidate.Deployment.Name)
			if !found {
				return fmt.Errorf("deploy: no registered model for deployment %q", candidate.Deployment.Name)
			}
			agent = tx.Add(&planmodel.Task{
				Model:                 depModel,
				Reusable:              true,
				DeploymentProcessName: processName(candidate.Host, candidate.Deployment.Name),
				DeploymentHostName:    candidate.Host,
			})
			instances[instKey] = agent
		}

		deployed := tx.Add(&planmodel.Task{
			Model:      mustTaskModel(tx, original),
			OrocosName: candidate.DeploymentLocal,
			Reusable:   true,
		})
		originalTask, _ := tx.Task(original)
		originalTask.ExecutionAgent = agent
		deployedTask, _ := tx.Task(deployed)
		deployedTask.ExecutionAgent = agent
		if originalTask != nil && len(originalTask.Args) > 0 {
			deployedTask.Args = make(map[string]planmodel.Arg, len(originalTask.Args))
			for name, arg := range originalTask.Args {
				deployedTask.Args[name] = arg
			}
		}

		if err := tx.Replace(original, deployed); err != nil {
			return fmt.Errorf("deploy: merge %s into deployed slot %s/%s: %w", original, candidate.Host, candidate.DeploymentLocal, err)
		}
	}
	return nil
}

func mustTaskModel(tx *planmodel.Transaction, h planmodel.Handle) *component.Model {
	if t, ok := tx.Task(h); ok {
		return t.Model
	}
	return nil
}

// processName derives the OS process name a deployment instance runs
// under. Real process names are assigned by the execution layer outside
// this engine's scope; this is a stable, host-qualified placeholder
// good enough for reconciliation matching in tests and the demo command.
func processName(host, deploymentModel string) string {
	return fmt.Sprintf("%s!%s", host, deploymentModel)
}
