package messagequeue

// TenantEventPayload is the schema for tenants.* messages.
type TenantEventPayload struct {
	TenantID string `json:"tenant_id"`
	Slug     string `json:"slug"`
	// Template is the seed template requested at creation, if any.
	Template string `json:"template,omitempty"`
	ActorID  string `json:"actor_id,omitempty"`
}

// ContentEventPayload is the schema for content.* messages.
type ContentEventPayload struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
	TenantID   string `json:"tenant_id"`
	Slug       string `json:"slug,omitempty"`
	Event      string `json:"event"`
	ActorID    string `json:"actor_id,omitempty"`
}
