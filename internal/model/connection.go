package model

import (
	"fmt"
	"time"
)

// RepositoryConnection links a user to one provider repository. Descriptive fields
// are copied at connect time and never refreshed.
type RepositoryConnection struct {
	CreatedAt      time.Time `json:"created_at"`
	WebhookID      *int64    `json:"webhook_id,omitempty"`
	Owner          string    `json:"owner"`
	Name           string    `json:"name"`
	FullName       string    `json:"full_name"`
	URL            string    `json:"url"`
	ID             int64     `json:"id"`
	ProviderRepoID int64     `json:"provider_repo_id"`
	UserID         int64     `json:"user_id"`
}

// FullNameOf is the provider's "owner/name" form.
func FullNameOf(owner, name string) string {
	return fmt.Sprintf("%s/%s", owner, name)
}
