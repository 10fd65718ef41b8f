package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/taskd/internal/metrics"
	"github.com/fyrsmithlabs/taskd/pkg/docstore"
	"github.com/fyrsmithlabs/taskd/pkg/model"
)

const (
	msgAddProjectFailed    = "failed to add project"
	msgUpdateProjectFailed = "failed to update project"
	msgDeleteProjectFailed = "failed to delete project"
	msgProjectStreamError  = "project subscription error"
)

// AddProject sends a full project record to the remote collection.
// Local state updates via the active subscription.
func (s *Store) AddProject(ctx context.Context, project model.Project) error {
	if err := project.Validate(); err != nil {
		return err
	}

	s.begin()

	now := s.now()
	if project.CreatedAt.IsZero() {
		project.CreatedAt = now
	}
	project.UpdatedAt = now

	if _, err := s.projects.Create(ctx, project); err != nil {
		s.fail(ctx, "add_project", msgAddProjectFailed, err)
		return fmt.Errorf("%s: %w", msgAddProjectFailed, err)
	}

	s.done("add_project")
	return nil
}

// UpdateProject sends a partial patch for the project by id.
func (s *Store) UpdateProject(ctx context.Context, id string, patch model.ProjectPatch) error {
	s.begin()

	fields := patch.Fields()
	fields["updatedAt"] = s.now()

	if err := s.projects.Update(ctx, id, fields); err != nil {
		s.fail(ctx, "update_project", msgUpdateProjectFailed, err)
		return fmt.Errorf("%s: %w", msgUpdateProjectFailed, err)
	}

	s.done("update_project")
	return nil
}

// DeleteProject deletes the project remotely, then optimistically prunes it
// from local state by id. Todos referencing the project are untouched; views
// render their dangling reference as "no project".
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	s.begin()

	if err := s.projects.Delete(ctx, id); err != nil {
		s.fail(ctx, "delete_project", msgDeleteProjectFailed, err)
		return fmt.Errorf("%s: %w", msgDeleteProjectFailed, err)
	}

	s.mu.Lock()
	kept := make([]model.Project, 0, len(s.state.Projects))
	for _, p := range s.state.Projects {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	s.state.Projects = kept
	s.state.Loading = false
	s.mu.Unlock()
	metrics.MutationsTotal.WithLabelValues("delete_project", "success").Inc()
	s.notify()
	return nil
}

// SubscribeToProjects opens a live subscription filtered server-side to
// projects owned by userID. Every snapshot replaces local project state
// wholesale. Stream errors are recorded but leave the subscription open.
func (s *Store) SubscribeToProjects(ctx context.Context, userID string) (CancelFunc, error) {
	sub, err := s.projects.Subscribe(ctx, docstore.Filter{Field: "userId", Equals: userID})
	if err != nil {
		s.setStreamError(ctx, "projects", msgProjectStreamError, err)
		return nil, fmt.Errorf("subscribe to projects: %w", err)
	}

	go s.consumeProjects(ctx, sub)
	return CancelFunc(sub.Cancel), nil
}

func (s *Store) consumeProjects(ctx context.Context, sub *docstore.Subscription) {
	for {
		select {
		case snap, ok := <-sub.Snapshots():
			if !ok {
				return
			}
			s.applyProjectSnapshot(ctx, snap)
		case err := <-sub.Errors():
			s.setStreamError(ctx, "projects", msgProjectStreamError, err)
		}
	}
}

func (s *Store) applyProjectSnapshot(ctx context.Context, snap docstore.Snapshot) {
	start := time.Now()

	projects, err := docstore.Decode[model.Project](snap)
	if err != nil {
		s.setStreamError(ctx, "projects", msgProjectStreamError, err)
		return
	}
	sortProjects(projects)

	s.mu.Lock()
	s.state.Projects = projects
	s.mu.Unlock()

	metrics.SnapshotsApplied.WithLabelValues("projects").Inc()
	metrics.SnapshotApplyDuration.Observe(time.Since(start).Seconds())
	s.notify()

	s.log.Trace(ctx, "project snapshot applied", zap.Int("count", len(projects)))
}
