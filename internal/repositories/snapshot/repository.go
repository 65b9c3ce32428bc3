// Package snapshot persists QNG documents of workspace graphs in Postgres
package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/bramble/pkg/database"
	"github.com/Ramsey-B/bramble/pkg/qng"
	"github.com/Ramsey-B/bramble/pkg/tracing"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
)

const table = "snapshots"

// Summary describes a stored snapshot without its document
type Summary struct {
	ID          uuid.UUID `db:"id" json:"id"`
	WorkspaceID string    `db:"workspace_id" json:"workspace_id"`
	Name        string    `db:"name" json:"name"`
	NodeCount   int       `db:"node_count" json:"node_count"`
	EdgeCount   int       `db:"edge_count" json:"edge_count"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Snapshot is a stored QNG document
type Snapshot struct {
	Summary
	Document database.JSONB[qng.Document] `db:"document" json:"-"`
}

// Repository handles snapshot persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new snapshot repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Save stores doc under (workspaceID, name), replacing an existing snapshot of that name
func (r *Repository) Save(ctx context.Context, workspaceID, name string, doc qng.Document, nodeCount, edgeCount int) (*Summary, error) {
	ctx, span := tracing.StartSpan(ctx, "snapshot.Repository.Save")
	defer span.End()

	now := time.Now().UTC()
	s := Summary{
		ID:          uuid.New(),
		WorkspaceID: workspaceID,
		Name:        name,
		NodeCount:   nodeCount,
		EdgeCount:   edgeCount,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	query, args := database.Upsert(table,
		[]string{"workspace_id", "name"},
		[]string{"node_count", "edge_count", "document", "updated_at"},
		[]string{"id", "workspace_id", "name", "node_count", "edge_count", "document", "created_at", "updated_at"},
		s.ID, s.WorkspaceID, s.Name, s.NodeCount, s.EdgeCount, database.JSONB[qng.Document]{Data: doc}, s.CreatedAt, s.UpdatedAt,
	)
	query += " RETURNING id, created_at"

	log := r.logger.WithContext(ctx).WithFields(map[string]any{"workspace_id": workspaceID, "name": name})
	var stored struct {
		ID        uuid.UUID `db:"id"`
		CreatedAt time.Time `db:"created_at"`
	}
	if err := r.db.GetContext(ctx, &stored, query, args...); err != nil {
		log.WithError(err).Error("Failed to save snapshot")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to save snapshot")
	}
	s.ID = stored.ID
	s.CreatedAt = stored.CreatedAt

	log.WithField("id", s.ID.String()).Info("Saved snapshot")
	return &s, nil
}

// List returns the workspace's snapshots, most recently updated first
func (r *Repository) List(ctx context.Context, workspaceID string) ([]Summary, error) {
	ctx, span := tracing.StartSpan(ctx, "snapshot.Repository.List")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "workspace_id", "name", "node_count", "edge_count", "created_at", "updated_at")
	sb.From(table)
	sb.Where(sb.Equal("workspace_id", workspaceID))
	sb.OrderBy("updated_at").Desc()

	query, args := sb.Build()
	summaries := []Summary{}
	if err := r.db.SelectContext(ctx, &summaries, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list snapshots")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list snapshots")
	}
	return summaries, nil
}

// Get returns one snapshot with its document
func (r *Repository) Get(ctx context.Context, workspaceID string, id uuid.UUID) (*Snapshot, error) {
	ctx, span := tracing.StartSpan(ctx, "snapshot.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "workspace_id", "name", "node_count", "edge_count", "document", "created_at", "updated_at")
	sb.From(table)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("workspace_id", workspaceID),
	)

	query, args := sb.Build()
	var s Snapshot
	if err := r.db.GetContext(ctx, &s, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("snapshot %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get snapshot")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get snapshot")
	}
	return &s, nil
}

// Delete removes one snapshot
func (r *Repository) Delete(ctx context.Context, workspaceID string, id uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "snapshot.Repository.Delete")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	sb.DeleteFrom(table)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("workspace_id", workspaceID),
	)

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete snapshot")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete snapshot")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("snapshot %s not found", id))
	}

	r.logger.WithContext(ctx).WithField("id", id.String()).Info("Deleted snapshot")
	return nil
}
