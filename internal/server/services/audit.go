package services

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/credkeeper/internal/cryptox"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/users"
)

// AuditUser lists the migration problems of one user in report order.
func AuditUser(u *models.User) []models.ProblemTag {
	var tags []models.ProblemTag
	if u.LegacyPlaintext != nil && *u.LegacyPlaintext != "" {
		tags = append(tags, models.ProblemPlaintextPassword)
	}
	if blank(u.CompanyID) {
		tags = append(tags, models.ProblemMissingCompany)
	}
	if blank(u.SectorID) {
		tags = append(tags, models.ProblemMissingSector)
	}
	if blank(u.Role) {
		tags = append(tags, models.ProblemMissingRole)
	}
	if !blank(u.CompanyID) && blank(u.CompanyName) {
		tags = append(tags, models.ProblemMissingCompanyName)
	}
	if !blank(u.SectorID) && blank(u.SectorName) {
		tags = append(tags, models.ProblemMissingSectorName)
	}
	return tags
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

// UserFinding is one user with at least one problem.
type UserFinding struct {
	UserID   string
	Username string
	Tags     []models.ProblemTag
}

// AuditReport summarizes the migration state of all users. Migrated counts
// users on a modern credential with no clear-text password left.
type AuditReport struct {
	Total    int
	Migrated int
	ByTag    map[models.ProblemTag]int
	Findings []UserFinding
}

// AuditUsers scans every user record.
func AuditUsers(ctx context.Context, repo users.Repository) (*AuditReport, error) {
	all, err := repo.List(ctx)
	if err != nil {
		return nil, storeError("list users", err)
	}

	report := &AuditReport{Total: len(all), ByTag: make(map[models.ProblemTag]int)}
	for _, u := range all {
		tags := AuditUser(u)
		for _, t := range tags {
			report.ByTag[t]++
		}
		if len(tags) > 0 {
			report.Findings = append(report.Findings, UserFinding{UserID: u.ID, Username: u.Username, Tags: tags})
		}
		if u.Credential.Version == cryptox.VersionModern && u.LegacyPlaintext == nil {
			report.Migrated++
		}
	}
	return report, nil
}
