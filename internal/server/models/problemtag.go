package models

import "fmt"

// ProblemTag flags an inconsistency found when auditing a migrated user.
type ProblemTag string

const (
	ProblemPlaintextPassword  ProblemTag = "plaintext_password"
	ProblemMissingCompany     ProblemTag = "missing_company"
	ProblemMissingSector      ProblemTag = "missing_sector"
	ProblemMissingRole        ProblemTag = "missing_role"
	ProblemMissingCompanyName ProblemTag = "missing_company_name"
	ProblemMissingSectorName  ProblemTag = "missing_sector_name"
)

// ProblemTags lists every tag in report order.
var ProblemTags = []ProblemTag{
	ProblemPlaintextPassword,
	ProblemMissingCompany,
	ProblemMissingSector,
	ProblemMissingRole,
	ProblemMissingCompanyName,
	ProblemMissingSectorName,
}

// ParseProblemTag converts a stored string back to a ProblemTag.
func ParseProblemTag(s string) (ProblemTag, error) {
	for _, t := range ProblemTags {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown problem tag %q", s)
}
