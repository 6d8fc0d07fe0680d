package repository

import "crm-sync/internal/domain/entity"

// SyncStatusStore keeps the summary of the most recent sync run. It holds no
// history and starts empty on every process start.
type SyncStatusStore interface {
	Last() *entity.SyncRunSummary
	Put(summary *entity.SyncRunSummary)
}
