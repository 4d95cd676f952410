package service

import "strings"

// ValidateRow parses a raw row into a normalized contact candidate or a row
// error. Pure function: no lookups, no side effects.
func ValidateRow(row ImportRow) (*NormalizedContact, *RowError) {
	raw, _ := row.field(ColEmail)
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return nil, &RowError{Line: row.Line, Reason: "Email is required"}
	}
	if !validEmailShape(email) {
		return nil, &RowError{Line: row.Line, Reason: "Invalid email format", Value: email}
	}

	nc := &NormalizedContact{
		Email:     email,
		FirstName: optionalField(row, ColFirstName),
		LastName:  optionalField(row, ColLastName),
		Phone:     optionalField(row, ColPhone),
		Company:   optionalField(row, ColCompany),
		JobTitle:  optionalField(row, ColJobTitle),
		Notes:     optionalField(row, ColNotes),
	}

	if raw, ok := row.field(ColTags); ok {
		nc.Tags = SplitTags(raw)
		nc.TagsPresent = true
	}
	return nc, nil
}

// validEmailShape enforces the import contract: exactly one "@", a non-empty
// local part, and a non-empty domain containing at least one dot. Anything
// stricter belongs to the API-level verifier, not the importer.
func validEmailShape(email string) bool {
	at := strings.Count(email, "@")
	if at != 1 {
		return false
	}
	parts := strings.SplitN(email, "@", 2)
	local, domain := parts[0], parts[1]
	return local != "" && domain != "" && strings.Contains(domain, ".")
}

func optionalField(row ImportRow, col string) *string {
	v, ok := row.field(col)
	if !ok {
		return nil
	}
	trimmed := strings.TrimSpace(v)
	return &trimmed
}

// SplitTags splits a comma-separated tag field, trims each piece, drops
// empties and keeps the first occurrence of each tag.
func SplitTags(raw string) []string {
	tags := []string{}
	seen := make(map[string]struct{})
	for _, piece := range strings.Split(raw, ",") {
		tag := strings.TrimSpace(piece)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}
