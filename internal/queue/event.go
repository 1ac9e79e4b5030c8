package queue

// RepoEvent is published for every push or pull request delivered for a connected repository.
type RepoEvent struct {
	TraceID        *string
	Provider       string
	Kind           string
	Repository     string
	Ref            string
	HeadSHA        string
	Action         string
	DeliveryID     string
	ConnectionID   int64
	ProviderRepoID int64
	UserID         int64
	Number         int
}

func (e RepoEvent) fields() map[string]any {
	fields := map[string]any{
		"provider":         e.Provider,
		"kind":             e.Kind,
		"repository":       e.Repository,
		"connection_id":    e.ConnectionID,
		"provider_repo_id": e.ProviderRepoID,
		"user_id":          e.UserID,
	}
	if e.Ref != "" {
		fields["ref"] = e.Ref
	}
	if e.HeadSHA != "" {
		fields["head_sha"] = e.HeadSHA
	}
	if e.Action != "" {
		fields["action"] = e.Action
	}
	if e.Number != 0 {
		fields["number"] = e.Number
	}
	if e.DeliveryID != "" {
		fields["delivery_id"] = e.DeliveryID
	}
	if e.TraceID != nil && *e.TraceID != "" {
		fields["trace_id"] = *e.TraceID
	}
	return fields
}
