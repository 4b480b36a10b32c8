package model

// Relationship is a named, directed edge from one artifact to zero or more targets.
// Targets is the owning collection for pending relationship sources.
type Relationship struct {
	Name string `json:"name"`

	// Generic relationships are user-defined; derived (modeled) relationships
	// are created by derivers.
	Generic bool `json:"generic"`

	Attributes map[string]string `json:"attributes,omitempty"`
	Targets    []*Target         `json:"targets"`
}

// AddTarget appends a target to the relationship.
func (r *Relationship) AddTarget(t *Target) {
	r.Targets = append(r.Targets, t)
}

// RemoveTarget removes the given target (by identity). Returns false if the
// target was not part of this relationship.
func (r *Relationship) RemoveTarget(t *Target) bool {
	for i, existing := range r.Targets {
		if existing == t {
			r.Targets = append(r.Targets[:i], r.Targets[i+1:]...)
			return true
		}
	}
	return false
}

// ResolvedTargets returns the targets that carry a UUID.
func (r *Relationship) ResolvedTargets() []*Target {
	out := make([]*Target, 0, len(r.Targets))
	for _, t := range r.Targets {
		if t != nil && t.UUID != "" {
			out = append(out, t)
		}
	}
	return out
}

// Target is one end of a relationship: a UUID reference to another artifact.
// A Target with an empty UUID is a placeholder awaiting resolution.
type Target struct {
	UUID string `json:"uuid"`

	// Type is the artifact type of the target, when known.
	Type string `json:"type,omitempty"`

	Attributes map[string]string `json:"attributes,omitempty"`
}
