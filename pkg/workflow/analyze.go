package workflow

import "context"

// Statistics computes execution counts over the last 100 runs of a
// workflow. Engine failures are reported in Statistics.Error with zeroed
// counters; the only error returned is a rate-limit denial.
func (b *Bridge) Statistics(ctx context.Context, workflowID string) (Statistics, error) {
	if err := b.admit(ctx, "statistics"); err != nil {
		return Statistics{}, err
	}
	return b.statistics(ctx, workflowID), nil
}

func (b *Bridge) statistics(ctx context.Context, workflowID string) Statistics {
	execs, err := b.executions(ctx, workflowID, statisticsSample)
	if err != nil {
		return Statistics{Error: err.Error()}
	}
	return summarize(execs)
}

// summarize classifies executions: successful runs finished without a stop
// time, failed runs have one, running ones have neither.
func summarize(execs []Execution) Statistics {
	s := Statistics{TotalExecutions: len(execs)}
	for _, e := range execs {
		switch {
		case e.stopped():
			s.Failed++
		case e.Finished:
			s.Successful++
		default:
			s.Running++
		}
	}
	if s.TotalExecutions > 0 {
		s.SuccessRate = float64(s.Successful) / float64(s.TotalExecutions) * 100
	}
	return s
}

// Analyze gathers the workflow, its statistics and its five most recent
// executions. A statistics failure degrades to a zeroed block; failing to
// fetch the workflow or its recent executions aborts.
func (b *Bridge) Analyze(ctx context.Context, id string) (*Analysis, error) {
	if err := b.admit(ctx, "analyze"); err != nil {
		return nil, err
	}

	d, err := b.get(ctx, id)
	if err != nil {
		return nil, err
	}
	stats := b.statistics(ctx, id)
	recent, err := b.executions(ctx, id, recentExecutions)
	if err != nil {
		return nil, err
	}

	tags := d.Tags
	if tags == nil {
		tags = []Tag{}
	}
	a := &Analysis{
		Workflow: Summary{
			ID:              d.ID,
			Name:            d.Name,
			Active:          d.Active,
			NodeCount:       len(d.Nodes),
			ConnectionCount: len(d.Connections),
			Tags:            tags,
		},
		Performance:      stats,
		RecentExecutions: recent,
		Nodes:            make([]NodeSummary, 0, len(d.Nodes)),
	}
	for _, n := range d.Nodes {
		params := n.Parameters
		if params == nil {
			params = map[string]any{}
		}
		pos := n.Position
		if pos == nil {
			pos = []float64{}
		}
		a.Nodes = append(a.Nodes, NodeSummary{Type: n.Type, Name: n.Name, Parameters: params, Position: pos})
	}
	return a, nil
}
