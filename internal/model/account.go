package model

// Account is a provider account linked by the external auth system.
type Account struct {
	AccessToken *string `json:"-"`
	Provider    string  `json:"provider"`
	ID          int64   `json:"id"`
	UserID      int64   `json:"user_id"`
}
