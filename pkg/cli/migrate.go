package cli

import (
	"context"

	"github.com/m-mizutani/fireconf"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/compliflow/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdMigrate() *cli.Command {
	var projectID string
	var databaseID string
	var collectionPrefix string
	var dryRun bool

	return &cli.Command{
		Name:    "migrate",
		Aliases: []string{"m"},
		Usage:   "Migrate Firestore indexes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "firestore-project-id",
				Usage:       "Firestore Project ID (required)",
				Required:    true,
				Sources:     cli.EnvVars("COMPLIFLOW_FIRESTORE_PROJECT_ID"),
				Destination: &projectID,
			},
			&cli.StringFlag{
				Name:        "firestore-database-id",
				Usage:       "Firestore Database ID",
				Sources:     cli.EnvVars("COMPLIFLOW_FIRESTORE_DATABASE_ID"),
				Destination: &databaseID,
			},
			&cli.StringFlag{
				Name:        "firestore-collection-prefix",
				Usage:       "Prefix prepended to every Firestore collection name",
				Sources:     cli.EnvVars("COMPLIFLOW_FIRESTORE_COLLECTION_PREFIX"),
				Destination: &collectionPrefix,
			},
			&cli.BoolFlag{
				Name:        "dry-run",
				Usage:       "Preview changes without applying",
				Destination: &dryRun,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.From(ctx)

			logger.Info("Migrate configuration",
				"projectID", projectID,
				"databaseID", databaseID,
				"collectionPrefix", collectionPrefix,
				"dryRun", dryRun)

			indexConfig := getIndexConfig(collectionPrefix)

			client, err := fireconf.NewClient(ctx, projectID, databaseID)
			if err != nil {
				return goerr.Wrap(err, "failed to create fireconf client")
			}
			defer func() {
				if err := client.Close(); err != nil {
					logger.Error("failed to close fireconf client", "error", err.Error())
				}
			}()

			if dryRun {
				logger.Info("Dry run mode - previewing changes")
				plan, err := client.GetMigrationPlan(ctx, indexConfig)
				if err != nil {
					return goerr.Wrap(err, "failed to create migration plan")
				}

				if len(plan.Steps) == 0 {
					logger.Info("No changes required")
					return nil
				}

				for _, step := range plan.Steps {
					logger.Info("Migration step",
						"collection", step.Collection,
						"operation", step.Operation,
						"description", step.Description,
						"destructive", step.Destructive)
				}
				return nil
			}

			logger.Info("Applying migrations")
			if err := client.Migrate(ctx, indexConfig); err != nil {
				return goerr.Wrap(err, "failed to apply migrations")
			}
			logger.Info("Migrations applied successfully")
			return nil
		},
	}
}

func asc(path string) fireconf.IndexField {
	return fireconf.IndexField{Path: path, Order: fireconf.OrderAscending}
}

func desc(path string) fireconf.IndexField {
	return fireconf.IndexField{Path: path, Order: fireconf.OrderDescending}
}

func index(fields ...fireconf.IndexField) fireconf.Index {
	return fireconf.Index{Fields: fields}
}

// getIndexConfig returns the composite indexes the Firestore repository queries need
func getIndexConfig(prefix string) *fireconf.Config {
	name := func(collection string) string {
		if prefix == "" {
			return collection
		}
		return prefix + "_" + collection
	}

	return &fireconf.Config{
		Collections: []fireconf.Collection{
			{
				Name: name("issues"),
				Indexes: []fireconf.Index{
					// List: organization, newest first, with each optional equality filter
					index(asc("OrganizationID"), desc("CreatedAt")),
					index(asc("OrganizationID"), asc("Status"), desc("CreatedAt")),
					index(asc("OrganizationID"), asc("Category"), desc("CreatedAt")),
					index(asc("OrganizationID"), asc("Priority"), desc("CreatedAt")),
					index(asc("OrganizationID"), asc("AssigneeID"), desc("CreatedAt")),
					index(asc("OrganizationID"), asc("SLABreached"), desc("CreatedAt")),
					// ListOverdue: across organizations
					index(asc("SLABreached"), asc("DueDate")),
				},
			},
			{
				Name: name("audit_logs"),
				Indexes: []fireconf.Index{
					index(asc("OrganizationID"), desc("Timestamp")),
					index(asc("OrganizationID"), asc("Entity"), desc("Timestamp")),
					index(asc("OrganizationID"), asc("Entity"), asc("EntityID"), desc("Timestamp")),
					index(asc("OrganizationID"), asc("Action"), desc("Timestamp")),
					index(asc("OrganizationID"), asc("PerformedBy"), desc("Timestamp")),
				},
			},
			{
				Name: name("workflows"),
				Indexes: []fireconf.Index{
					index(asc("OrganizationID"), desc("CreatedAt")),
					index(asc("OrganizationID"), asc("IsDefault"), asc("IsActive")),
				},
			},
			{
				Name: name("users"),
				Indexes: []fireconf.Index{
					index(asc("OrganizationID"), asc("CreatedAt")),
				},
			},
		},
	}
}
