package dto

import "time"

// GrantResponse es la vista JSON de un grant persistido.
type GrantResponse struct {
	ID             string              `json:"id"`
	UserID         string              `json:"user_id"`
	ClientID       string              `json:"client_id"`
	Scopes         []string            `json:"scopes,omitempty"`
	ResourceScopes map[string][]string `json:"resource_scopes,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// GrantListResponse es la lista paginada de grants (superficie admin).
type GrantListResponse struct {
	Grants []GrantResponse `json:"grants"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}
