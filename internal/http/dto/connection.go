package dto

import (
	"time"

	"basegraph.app/codesight/internal/model"
	"basegraph.app/codesight/internal/provider"
	"basegraph.app/codesight/internal/service"
)

type ConnectRepositoryRequest struct {
	Owner    string `json:"owner" binding:"required,min=1,max=255"`
	Repo     string `json:"repo" binding:"required,min=1,max=255"`
	GithubID int64  `json:"githubId" binding:"required,gt=0"`
}

type ConnectionResponse struct {
	ID        int64     `json:"id,string"`
	GithubID  int64     `json:"githubId"`
	Owner     string    `json:"owner"`
	Name      string    `json:"name"`
	FullName  string    `json:"fullName"`
	URL       string    `json:"url"`
	UserID    int64     `json:"userId,string"`
	WebhookID *int64    `json:"webhookId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func ToConnectionResponse(c *model.RepositoryConnection) ConnectionResponse {
	return ConnectionResponse{
		ID:        c.ID,
		GithubID:  c.ProviderRepoID,
		Owner:     c.Owner,
		Name:      c.Name,
		FullName:  c.FullName,
		URL:       c.URL,
		UserID:    c.UserID,
		WebhookID: c.WebhookID,
		CreatedAt: c.CreatedAt,
	}
}

func ToConnectionResponses(conns []model.RepositoryConnection) []ConnectionResponse {
	out := make([]ConnectionResponse, 0, len(conns))
	for i := range conns {
		out = append(out, ToConnectionResponse(&conns[i]))
	}
	return out
}

type ConnectRepositoryResponse struct {
	Connection       ConnectionResponse `json:"connection"`
	Webhook          *provider.Webhook  `json:"webhook,omitempty"`
	AlreadyConnected bool               `json:"alreadyConnected"`
}

func ToConnectRepositoryResponse(r *service.ConnectResult) ConnectRepositoryResponse {
	return ConnectRepositoryResponse{
		Connection:       ToConnectionResponse(r.Connection),
		Webhook:          r.Webhook,
		AlreadyConnected: r.AlreadyConnected,
	}
}

type DisconnectResponse struct {
	Error          string `json:"error,omitempty"`
	Success        bool   `json:"success"`
	WebhookRemoved bool   `json:"webhookRemoved"`
}

type ConnectionFailureResponse struct {
	ConnectionID int64  `json:"connectionId,string"`
	FullName     string `json:"fullName"`
	Error        string `json:"error"`
}

type DisconnectAllResponse struct {
	Error           string                      `json:"error,omitempty"`
	Policy          string                      `json:"policy"`
	Failures        []ConnectionFailureResponse `json:"failures"`
	Count           int64                       `json:"count"`
	Attempted       int                         `json:"attempted"`
	WebhooksRemoved int                         `json:"webhooksRemoved"`
	Failed          int                         `json:"failed"`
	Success         bool                        `json:"success"`
}

// ToDisconnectAllResponse reports provider failures by repository without their raw messages.
func ToDisconnectAllResponse(r service.DisconnectAllResult) DisconnectAllResponse {
	resp := DisconnectAllResponse{
		Policy:          string(r.Policy),
		Failures:        make([]ConnectionFailureResponse, 0, len(r.Failures)),
		Count:           r.Deleted,
		Attempted:       r.Attempted,
		WebhooksRemoved: r.WebhooksRemoved,
		Failed:          r.Failed,
		Success:         r.Success,
	}
	for _, f := range r.Failures {
		resp.Failures = append(resp.Failures, ConnectionFailureResponse{
			ConnectionID: f.ConnectionID,
			FullName:     f.FullName,
			Error:        "failed to remove webhook",
		})
	}
	if r.Err != nil {
		resp.Error = "failed to disconnect all repositories"
	}
	return resp
}
