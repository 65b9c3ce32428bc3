// Package context carries request-scoped identifiers through handlers, tasks and logs.
package context

import (
	"context"
	"regexp"
)

type ContextKey string

const (
	RequestIDKey   ContextKey = "request_id"
	RouteKey       ContextKey = "route"
	WorkspaceIDKey ContextKey = "workspace_id"
)

// DefaultWorkspaceID is used when a request names no workspace
const DefaultWorkspaceID = "default"

var workspaceIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

// ValidWorkspaceID reports whether id can name a workspace
func ValidWorkspaceID(id string) bool {
	return workspaceIDPattern.MatchString(id)
}

func lookup(ctx context.Context, key ContextKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}

func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	return lookup(ctx, RequestIDKey)
}

func SetRoute(ctx context.Context, route string) context.Context {
	return context.WithValue(ctx, RouteKey, route)
}

func GetRoute(ctx context.Context) string {
	return lookup(ctx, RouteKey)
}

func SetWorkspaceID(ctx context.Context, workspaceID string) context.Context {
	return context.WithValue(ctx, WorkspaceIDKey, workspaceID)
}

// GetWorkspaceID returns the workspace id on ctx, falling back to DefaultWorkspaceID
func GetWorkspaceID(ctx context.Context) string {
	if v := lookup(ctx, WorkspaceIDKey); v != "" {
		return v
	}
	return DefaultWorkspaceID
}

// Fields returns the identifiers set on ctx as log fields
func Fields(ctx context.Context) map[string]any {
	fields := map[string]any{"workspace_id": GetWorkspaceID(ctx)}
	for _, key := range []ContextKey{RequestIDKey, RouteKey} {
		if v := lookup(ctx, key); v != "" {
			fields[string(key)] = v
		}
	}
	return fields
}
