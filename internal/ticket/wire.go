package ticket

import "time"

// ToMap renders the canonical wire form: enums as strings,
// timestamps as RFC3339 UTC, content nested under its own discriminator.
func (t *Ticket) ToMap() map[string]any {
	m := map[string]any{
		"id":                t.ID,
		"created_at":        t.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at":        t.UpdatedAt.UTC().Format(time.RFC3339Nano),
		"source":            string(t.Source),
		"category":          string(t.Category),
		"priority":          string(t.Priority),
		"tags":              append([]string{}, t.Tags...),
		"status":            string(t.Status),
		"current_queue":     string(t.CurrentQueue),
		"assignee_id":       t.AssigneeID,
		"suggested_assignee": t.SuggestedAssignee,
		"title":             t.DisplayTitle(),
		"description":       t.DisplayDescription(),
		"resolution_action": string(t.ResolutionAction),
	}
	if t.AIReasoning != nil {
		m["ai_reasoning"] = t.AIReasoning
	}
	if t.Content != nil {
		m["content"] = t.Content.ToMap()
	}
	return m
}

// FromMap is the inverse of ToMap and must accept ToMap's own output
// faithfully.
func FromMap(m map[string]any) (*Ticket, error) {
	t := &Ticket{
		ID:                str(m["id"]),
		Source:             Source(str(m["source"])),
		Category:           Category(str(m["category"])),
		Priority:           Priority(str(m["priority"])),
		Tags:               strSlice(m["tags"]),
		Status:             Status(str(m["status"])),
		CurrentQueue:       Queue(str(m["current_queue"])),
		AssigneeID:         str(m["assignee_id"]),
		SuggestedAssignee:  str(m["suggested_assignee"]),
		Title:              str(m["title"]),
		Description:        str(m["description"]),
		ResolutionAction:   ResolutionAction(str(m["resolution_action"])),
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	if created, err := time.Parse(time.RFC3339Nano, str(m["created_at"])); err == nil {
		t.CreatedAt = created
	}
	if updated, err := time.Parse(time.RFC3339Nano, str(m["updated_at"])); err == nil {
		t.UpdatedAt = updated
	}
	if reasoning, ok := m["ai_reasoning"].(map[string]any); ok {
		t.AIReasoning = reasoning
	}
	if contentMap, ok := m["content"].(map[string]any); ok {
		content, err := ContentFromMap(contentMap)
		if err != nil {
			return nil, err
		}
		t.Content = content
	}
	return t, nil
}
