package workspace

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"

	"github.com/Ramsey-B/bramble/pkg/contracts"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/tasks"
)

// TaskStatus is the latest task of a name and, once it succeeded, what it did to the graph
type TaskStatus struct {
	tasks.Info
	Outcome *Outcome `json:"outcome,omitempty"`
}

// StartSearch runs a search in the background and ingests its records when it completes
func (w *Workspace) StartSearch(ctx context.Context, req SearchRequest) (tasks.Info, error) {
	return w.startIngest(ctx, TaskSearch, func(ctx context.Context) ([]models.EntityRecord, error) {
		return w.FetchSearch(ctx, req)
	})
}

// StartExpand runs an expansion in the background and ingests its records when it completes
func (w *Workspace) StartExpand(ctx context.Context, sel Selection) (tasks.Info, error) {
	return w.startIngest(ctx, TaskExpand, func(ctx context.Context) ([]models.EntityRecord, error) {
		return w.FetchExpansion(ctx, sel)
	})
}

func (w *Workspace) startIngest(ctx context.Context, name string, fetch func(context.Context) ([]models.EntityRecord, error)) (tasks.Info, error) {
	return w.tasks.Start(ctx, name, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	}, func(ctx context.Context, result any, err error) error {
		if err != nil {
			return err
		}
		recs, _ := result.([]models.EntityRecord)
		out, err := w.Ingest(ctx, recs)
		if err != nil {
			return err
		}
		w.setOutcome(name, out)
		return nil
	})
}

// StartContractSearch searches contracts for the selected nodes in the background and graphs
// the results when it completes. An empty selection searches every company node.
func (w *Workspace) StartContractSearch(ctx context.Context, sel Selection) (tasks.Info, error) {
	if w.deps.Contracts == nil {
		return tasks.Info{}, notConfigured("contracts search")
	}
	return w.tasks.Start(ctx, TaskContractSearch, func(ctx context.Context) (any, error) {
		return w.deps.Contracts.SearchNodes(ctx, w.contractTargets(sel))
	}, func(ctx context.Context, result any, err error) error {
		if err != nil {
			return err
		}
		results, _ := result.([]contracts.Result)
		out := w.ApplyContracts(ctx, results)
		w.setOutcome(TaskContractSearch, out)
		return nil
	})
}

// Task returns the latest task of name
func (w *Workspace) Task(name string) (TaskStatus, error) {
	info, ok := w.tasks.Get(name)
	if !ok {
		return TaskStatus{}, httperror.NewHTTPErrorf(http.StatusNotFound, "no %s task has run", name)
	}
	status := TaskStatus{Info: info}
	if info.Status == tasks.StatusSucceeded {
		w.mu.Lock()
		if out, ok := w.outcomes[name]; ok {
			status.Outcome = &out
		}
		w.mu.Unlock()
	}
	return status, nil
}

// Tasks returns the latest task of every name
func (w *Workspace) Tasks() []tasks.Info {
	return w.tasks.All()
}

// CancelTask cancels the running task of name. It reports whether one was running.
func (w *Workspace) CancelTask(name string) bool {
	return w.tasks.Cancel(name)
}

// WaitTask blocks until the task of name finishes
func (w *Workspace) WaitTask(ctx context.Context, name string) (TaskStatus, error) {
	if _, err := w.tasks.Wait(ctx, name); err != nil {
		return TaskStatus{}, err
	}
	return w.Task(name)
}

func (w *Workspace) setOutcome(name string, out Outcome) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.outcomes[name] = out
}
