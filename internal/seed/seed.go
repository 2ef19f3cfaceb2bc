// Package seed fills an empty store with a small demo forest, one or more
// libraries per workspace.
package seed

import (
	"context"
	"fmt"

	"github.com/bcnelson/workspace-tree/internal/domain"
	"github.com/bcnelson/workspace-tree/internal/service"
	"github.com/bcnelson/workspace-tree/internal/storage"
	"github.com/rs/zerolog"
)

// Item is one demo node and its subtree.
type Item struct {
	DomType      domain.DomType
	ResType      string
	Name         string
	Reference    string
	Synchronized bool
	Permissions  string
	Wizards      string
	Children     []Item
}

var full = domain.AllCapabilities().String()

// Demo is the forest written by Run.
var Demo = []Item{
	{
		DomType: domain.DomDrive, ResType: "requirement-libraries", Name: "Platform", Wizards: "jira,redmine",
		Children: []Item{
			{DomType: domain.DomFolder, ResType: "requirement-folders", Name: "Authentication", Children: []Item{
				{DomType: domain.DomRequirement, ResType: "requirements", Name: "Login", Reference: "REQ-1", Synchronized: true, Children: []Item{
					{DomType: domain.DomRequirement, ResType: "requirements", Name: "Password reset", Reference: "REQ-2", Synchronized: true},
				}},
				{DomType: domain.DomRequirement, ResType: "requirements", Name: "Single sign-on", Reference: "REQ-3"},
			}},
			{DomType: domain.DomFolder, ResType: "requirement-folders", Name: "Billing"},
		},
	},
	{
		DomType: domain.DomDrive, ResType: "requirement-libraries", Name: "Mobile",
		Children: []Item{
			{DomType: domain.DomFolder, ResType: "requirement-folders", Name: "Offline mode"},
			{DomType: domain.DomRequirement, ResType: "requirements", Name: "Push notifications", Reference: "MOB-1", Permissions: "readable,exportable"},
		},
	},
	{
		DomType: domain.DomDrive, ResType: "test-case-libraries", Name: "Platform tests",
		Children: []Item{
			{DomType: domain.DomFolder, ResType: "test-case-folders", Name: "Smoke", Children: []Item{
				{DomType: domain.DomTestCase, ResType: "test-cases", Name: "Login succeeds", Reference: "TC-1"},
				{DomType: domain.DomTestCase, ResType: "test-cases", Name: "Login rejects bad password", Reference: "TC-2"},
			}},
		},
	},
	{
		DomType: domain.DomDrive, ResType: "campaign-libraries", Name: "Releases",
		Children: []Item{
			{DomType: domain.DomCampaign, ResType: "campaigns", Name: "Release 1.0", Children: []Item{
				{DomType: domain.DomIteration, ResType: "iterations", Name: "Sprint 1", Children: []Item{
					{DomType: domain.DomTestSuite, ResType: "test-suites", Name: "Regression"},
				}},
			}},
		},
	},
	{
		DomType: domain.DomLibrary, ResType: "custom-report-libraries", Name: "Reporting",
		Children: []Item{
			{DomType: domain.DomDashboard, ResType: "custom-report-dashboards", Name: "Overview"},
			{DomType: domain.DomChart, ResType: "custom-report-charts", Name: "Coverage"},
			{DomType: domain.DomReport, ResType: "custom-report-reports", Name: "Weekly"},
		},
	},
}

// Run writes items through svc unless the store already holds nodes. It
// reports whether anything was written.
func Run(ctx context.Context, store storage.Storage, svc *service.TreeService, items []Item, logger zerolog.Logger) (bool, error) {
	count, err := store.CountNodes(ctx)
	if err != nil {
		return false, err
	}
	if count > 0 {
		logger.Debug().Int("nodes", count).Msg("store not empty, skipping seed")
		return false, nil
	}

	created := 0
	var add func(parentID string, item Item) error
	add = func(parentID string, item Item) error {
		perms := item.Permissions
		if perms == "" {
			perms = full
		}
		e, err := svc.CreateNode(ctx, parentID, &domain.Entity{
			DomType:        item.DomType,
			ResType:        item.ResType,
			Name:           item.Name,
			Reference:      item.Reference,
			Synchronized:   item.Synchronized,
			Permissions:    perms,
			EnabledWizards: item.Wizards,
		})
		if err != nil {
			return fmt.Errorf("seeding %s %q: %w", item.DomType, item.Name, err)
		}
		created++
		for _, child := range item.Children {
			if err := add(e.ID, child); err != nil {
				return err
			}
		}
		return nil
	}

	for _, item := range items {
		if err := add("", item); err != nil {
			return false, err
		}
	}
	logger.Info().Int("nodes", created).Msg("seeded demo data")
	return true, nil
}
