package messagequeue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Validate checks whether data is valid JSON conforming to the schema
// associated with the given subject. Unknown subjects only need valid JSON.
func Validate(subject string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON on subject %s", subject)
	}

	switch {
	case strings.HasPrefix(subject, "tenants."):
		var p TenantEventPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("schema validation failed for %s: %w", subject, err)
		}
		if p.TenantID == "" {
			return fmt.Errorf("schema validation failed for %s: %w", subject, errors.New("tenant_id is required"))
		}
	case strings.HasPrefix(subject, SubjectContent+"."):
		var p ContentEventPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("schema validation failed for %s: %w", subject, err)
		}
		if p.TenantID == "" || p.ID == "" {
			return fmt.Errorf("schema validation failed for %s: %w", subject, errors.New("id and tenant_id are required"))
		}
	}
	return nil
}
