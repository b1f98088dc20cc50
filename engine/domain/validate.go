package domain

import (
	"strings"
)

// ValidEntityType reports whether t is a schema label.
func ValidEntityType(t EntityType) bool {
	_, ok := EntityTypes[t]
	return ok
}

// ValidRelationType reports whether t is a schema relationship type.
func ValidRelationType(t RelationType) bool {
	_, ok := RelationTypes[t]
	return ok
}

// ValidateEntity checks an extracted entity. Labels are interpolated into
// Cypher, so only schema types pass.
func ValidateEntity(e Entity) error {
	if !ValidEntityType(e.Type) {
		return NewValidationError("type", string(e.Type), ErrUnknownEntityType)
	}
	if strings.TrimSpace(e.Name) == "" {
		return NewValidationError("name", e.Name, ErrEmptyName)
	}
	return nil
}

// ValidateRelationship checks an extracted relationship.
func ValidateRelationship(r Relationship) error {
	if !ValidRelationType(r.Type) {
		return NewValidationError("type", string(r.Type), ErrUnknownRelationType)
	}
	if strings.TrimSpace(r.From) == "" {
		return NewValidationError("from", r.From, ErrEmptyName)
	}
	if strings.TrimSpace(r.To) == "" {
		return NewValidationError("to", r.To, ErrEmptyName)
	}
	return nil
}

// Sanitize drops invalid entities and relationships, trims names, and
// returns the cleaned extraction together with the rejection errors.
func Sanitize(x Extraction) (Extraction, []error) {
	var errs []error
	out := Extraction{ChunkSummary: strings.TrimSpace(x.ChunkSummary)}
	for _, e := range x.Entities {
		e.Type = normalizeEntityType(e.Type)
		e.Name = strings.TrimSpace(e.Name)
		if err := ValidateEntity(e); err != nil {
			errs = append(errs, err)
			continue
		}
		out.Entities = append(out.Entities, e)
	}
	for _, r := range x.Relationships {
		r.Type = RelationType(strings.ToUpper(strings.TrimSpace(string(r.Type))))
		r.From = strings.TrimSpace(r.From)
		r.To = strings.TrimSpace(r.To)
		if err := ValidateRelationship(r); err != nil {
			errs = append(errs, err)
			continue
		}
		out.Relationships = append(out.Relationships, r)
	}
	return out, errs
}

// normalizeEntityType maps case variants like "concept" onto schema labels.
func normalizeEntityType(t EntityType) EntityType {
	s := strings.TrimSpace(string(t))
	for known := range EntityTypes {
		if strings.EqualFold(s, string(known)) {
			return known
		}
	}
	return EntityType(s)
}
