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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/skyquery/query-api/pkg/api"
	"github.com/skyquery/query-api/pkg/encoder"
	"github.com/skyquery/query-api/pkg/query"
)

func queryCmd() *cli.Command {
	return &cli.Command{
		Name:      "query",
		Usage:     "Execute one query against the configured store",
		ArgsUsage: "<op> [name=value ...]",
		Description: fmt.Sprintf(`Execute a query locally, without the HTTP server, and print the
response envelope.

Supported operations: %v

Examples:
  query_api query get key=0f3c...
  query_api query lowestbin ids=HYPERION,WOLF --format table`, query.SupportedOps()),
		Flags: []cli.Flag{outputFlag, formatFlag},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() == 0 {
				return fmt.Errorf("operation is required (supported values: %v)", query.SupportedOps())
			}
			params, err := parseParams(cmd.Args().Tail())
			if err != nil {
				return err
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := api.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			q := query.New(query.Op(cmd.Args().First()), params,
				query.WithID(uuid.NewString()),
				query.WithRequestedBy("cli"))
			res := a.Executor().Execute(ctx, q)

			var envelope any
			if err := json.Unmarshal(encoder.Encode(res), &envelope); err != nil {
				return err
			}
			if err := writeOutput(ctx, cmd, envelope); err != nil {
				return err
			}
			if !res.OK() {
				return fmt.Errorf("query failed: %s: %s", res.Kind, res.Message)
			}
			return nil
		},
	}
}

// parseParams turns name=value arguments into query parameters.
func parseParams(args []string) (map[string]string, error) {
	params := make(map[string]string, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected name=value", arg)
		}
		if _, dup := params[k]; dup {
			return nil, fmt.Errorf("parameter %q given more than once", k)
		}
		params[k] = v
	}
	return params, nil
}
