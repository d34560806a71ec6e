package repository

import (
	"notes-pipeline/internal/models"
	"sync"
)

// MemoryPayloadRepository keeps job payloads in memory until they are taken.
// Take removes the entry, so each payload is handed out at most once.
type MemoryPayloadRepository struct {
	mu       sync.Mutex
	payloads map[string]*models.Payload
}

// NewMemoryPayloadRepository creates an empty payload repository
func NewMemoryPayloadRepository() *MemoryPayloadRepository {
	return &MemoryPayloadRepository{
		payloads: make(map[string]*models.Payload),
	}
}

// Put stores the payload for a job, replacing any previous one
func (r *MemoryPayloadRepository) Put(jobID string, payload *models.Payload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads[jobID] = payload
}

// Take returns and removes the payload for a job
func (r *MemoryPayloadRepository) Take(jobID string) (*models.Payload, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	payload, ok := r.payloads[jobID]
	if ok {
		delete(r.payloads, jobID)
	}
	return payload, ok
}

// Drop discards payloads for jobs that will never run
func (r *MemoryPayloadRepository) Drop(jobIDs ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range jobIDs {
		delete(r.payloads, id)
	}
}

// Len returns the number of payloads still held
func (r *MemoryPayloadRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payloads)
}
