package model

import "time"

// ArtifactSummary is one query result row: enough identity to re-fetch the full
// artifact metadata.
type ArtifactSummary struct {
	UUID           string    `json:"uuid"`
	Name           string    `json:"name"`
	Model          string    `json:"model"`
	Type           string    `json:"type"`
	Description    string    `json:"description,omitempty"`
	CreatedBy      string    `json:"created_by,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	LastModifiedAt time.Time `json:"last_modified_at"`
	Derived        bool      `json:"derived"`
}

// GetID returns the artifact UUID.
func (s ArtifactSummary) GetID() string { return s.UUID }

// GetKind returns "artifact" for artifact summaries.
func (s ArtifactSummary) GetKind() string { return "artifact" }

// GetContent returns the artifact name for display.
func (s ArtifactSummary) GetContent() string { return s.Name }

// GetLocation returns "model/type".
func (s ArtifactSummary) GetLocation() string { return s.Model + "/" + s.Type }

// PagedResult is an ordered page of results plus the total number of matches
// available to the query (independent of paging).
type PagedResult[T any] struct {
	Items          []T    `json:"items"`
	TotalAvailable int    `json:"total_available"`
	StartIndex     int    `json:"start_index"`
	Count          int    `json:"count"`
	OrderBy        string `json:"order_by"`
	Ascending      bool   `json:"ascending"`
}

// HasMore reports whether more results exist beyond this page.
func (p *PagedResult[T]) HasMore() bool {
	return p.StartIndex+len(p.Items) < p.TotalAvailable
}
