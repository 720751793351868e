package dbosruntime

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrRunNotFound is returned when no workflow has the requested id
var ErrRunNotFound = errors.New("run not found")

// WorkflowStatusInfo is one row of dbos.workflow_status
type WorkflowStatusInfo struct {
	WorkflowUUID string
	Status       string
	Name         string
	Error        string
	CreatedAt    int64
	UpdatedAt    int64
}

// GetWorkflowStatus retrieves the status of a workflow from the DBOS status table
func (r *Runtime) GetWorkflowStatus(ctx context.Context, workflowUUID string) (*WorkflowStatusInfo, error) {
	return queryWorkflowStatus(ctx, r.db, workflowUUID)
}

func queryWorkflowStatus(ctx context.Context, db *sql.DB, workflowUUID string) (*WorkflowStatusInfo, error) {
	query := `
		SELECT workflow_uuid, status, name, COALESCE(error, ''), created_at, updated_at
		FROM dbos.workflow_status
		WHERE workflow_uuid = $1
	`

	var info WorkflowStatusInfo
	err := db.QueryRowContext(ctx, query, workflowUUID).Scan(
		&info.WorkflowUUID,
		&info.Status,
		&info.Name,
		&info.Error,
		&info.CreatedAt,
		&info.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow status: %w", err)
	}

	return &info, nil
}

// State maps a DBOS status to the pipeline's run states
func (i WorkflowStatusInfo) State() string {
	switch i.Status {
	case "ENQUEUED":
		return "pending"
	case "PENDING":
		return "running"
	case "SUCCESS":
		return "succeeded"
	case "CANCELLED":
		return "cancelled"
	case "ERROR", "MAX_RECOVERY_ATTEMPTS_EXCEEDED", "RETRIES_EXCEEDED":
		return "failed"
	default:
		return "pending"
	}
}
