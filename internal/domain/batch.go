package domain

import "time"

// Selector chooses the recipient set for a batch: either an explicit,
// deduplicated ID list, or a directory filter evaluated against the user
// directory. Exactly one of the two should be populated.
type Selector struct {
	RecipientIDs []string          `json:"recipient_ids,omitempty"`
	Filter       map[string]string `json:"filter,omitempty"`
}

// Batch is a single logical request that fans out to many per-recipient
// notifications.
type Batch struct {
	Type        NotificationType `json:"type"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	Priority    Priority         `json:"priority"`
	Channels    []Channel        `json:"channels"`
	Targets     Selector         `json:"targets"`
	TemplateRef string           `json:"template_ref,omitempty"`
	ExpiresAt   *time.Time       `json:"expires_at,omitempty"`
}

func (b *Batch) Validate() error {
	if !b.Type.IsValid() {
		return ErrInvalidType
	}
	if !b.Priority.IsValid() {
		return ErrInvalidPriority
	}
	if b.Title == "" || len(b.Title) > 200 {
		return ErrInvalidTitle
	}
	if b.Message == "" || len(b.Message) > 1000 {
		return ErrInvalidMessage
	}
	if len(b.Channels) == 0 {
		return ErrInvalidChannel
	}
	for _, c := range b.Channels {
		if !c.IsValid() {
			return ErrInvalidChannel
		}
	}
	if len(b.Targets.RecipientIDs) == 0 && len(b.Targets.Filter) == 0 {
		return ErrNoTargets
	}
	return nil
}

// BatchResult aggregates the outcome of a batch fan-out. Counts are mutable
// only while the batch is executing; once CreatedCount+FailedCount equals
// TotalTargets the result is complete and frozen.
type BatchResult struct {
	BatchID      string    `json:"batch_id"`
	TenantID     string    `json:"tenant_id"`
	TotalTargets int       `json:"total_targets"`
	CreatedCount int       `json:"created_count"`
	FailedCount  int       `json:"failed_count"`
	Errors       []string   `json:"errors,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Complete reports whether every target has resolved one way or the other.
func (r *BatchResult) Complete() bool {
	return r.CreatedCount+r.FailedCount == r.TotalTargets
}
