// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/skyquery/query-api/pkg/api"
	"github.com/skyquery/query-api/pkg/store/sqlstore"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP query server",
		Description: `Start the HTTP query server. The feed updater runs alongside the
server when feed.enabled is set or FEED_URL is present.`,
		Action: serve,
	}
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return api.Serve(ctx, cfg)
}

type migrateResult struct {
	Driver   string `json:"driver" yaml:"driver" toml:"driver"`
	Versions []int  `json:"versions,omitempty" yaml:"versions,omitempty" toml:"versions,omitempty"`
}

func migrateCmd() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply schema migrations to the configured SQL store",
		Flags: []cli.Flag{outputFlag, formatFlag},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			dialect := sqlstore.Dialect(cfg.Store.Driver)
			if !dialect.IsValid() {
				return fmt.Errorf("store driver %q has no schema to migrate", cfg.Store.Driver)
			}

			st, err := sqlstore.Open(ctx, sqlstore.Config{Dialect: dialect, DSN: cfg.Store.DSN})
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Migrate(ctx); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			res := migrateResult{Driver: cfg.Store.Driver}
			if dialect == sqlstore.DialectSQLite {
				if res.Versions, err = st.AppliedMigrations(ctx); err != nil {
					return err
				}
			}
			slog.Info("migrations applied", "driver", res.Driver, "versions", res.Versions)
			return writeOutput(ctx, cmd, res)
		},
	}
}

func updateCmd() *cli.Command {
	return &cli.Command{
		Name:  "update",
		Usage: "Run a single feed update cycle into the configured store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "url",
				Usage: "Feed base URL (overrides feed.url)",
			},
			outputFlag,
			formatFlag,
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if u := cmd.String("url"); u != "" {
				cfg.Feed.URL = u
			}

			st, err := api.OpenStore(ctx, cfg.Store)
			if err != nil {
				return err
			}
			defer st.Close()

			up, err := api.NewUpdater(cfg.Feed, st)
			if err != nil {
				return err
			}
			if err := up.RunOnce(ctx); err != nil {
				return fmt.Errorf("update failed: %w", err)
			}
			return writeOutput(ctx, cmd, up.Status())
		},
	}
}
