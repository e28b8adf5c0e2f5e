package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AuditLog records one admin or system mutation.
type AuditLog struct {
	ID           uuid.UUID  `json:"id"`
	ActorKind    string     `json:"actorKind"`
	ActorUserID  *uuid.UUID `json:"actorUserId,omitempty"`
	Action       string     `json:"action"`
	ResourceType string     `json:"resourceType"`
	ResourceID   *string    `json:"resourceId,omitempty"`
	Method       string     `json:"method"`
	Path         string     `json:"path"`
	Route        *string    `json:"route,omitempty"`
	Status       int32      `json:"status"`
	IP           *string    `json:"ip,omitempty"`
	UserAgent    *string    `json:"userAgent,omitempty"`
	RequestID    *string    `json:"requestId,omitempty"`
	Metadata     []byte     `json:"metadata,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// InsertAuditLog persists one audit entry.
func (q *Queries) InsertAuditLog(ctx context.Context, entry AuditLog) (AuditLog, error) {
	id := entry.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	row := q.db.QueryRow(ctx, `
INSERT INTO audit_logs (id, actor_kind, actor_user_id, action, resource_type, resource_id, method, path, route, status, ip, user_agent, request_id, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING id, created_at`,
		id, entry.ActorKind, entry.ActorUserID, entry.Action, entry.ResourceType, entry.ResourceID,
		entry.Method, entry.Path, entry.Route, entry.Status, entry.IP, entry.UserAgent,
		entry.RequestID, entry.Metadata)
	if err := row.Scan(&entry.ID, &entry.CreatedAt); err != nil {
		return AuditLog{}, err
	}
	return entry, nil
}

// ListAuditLogs returns audit entries newest first.
func (q *Queries) ListAuditLogs(ctx context.Context, limit, offset int32) ([]AuditLog, error) {
	rows, err := q.db.Query(ctx, `
SELECT id, actor_kind, actor_user_id, action, resource_type, resource_id, method, path, route, status, ip, user_agent, request_id, metadata, created_at
FROM audit_logs ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []AuditLog
	for rows.Next() {
		var e AuditLog
		if err := rows.Scan(&e.ID, &e.ActorKind, &e.ActorUserID, &e.Action, &e.ResourceType, &e.ResourceID,
			&e.Method, &e.Path, &e.Route, &e.Status, &e.IP, &e.UserAgent, &e.RequestID, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
