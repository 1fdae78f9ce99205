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

// Package serializer reads and writes structured documents.
//
// Supported formats:
//   - JSON: machine readable, indented on write
//   - YAML: gopkg.in/yaml.v3
//   - TOML: github.com/pelletier/go-toml/v2
//   - Table: flattened FIELD/VALUE listing, write only
//
// Writing:
//
//	w := serializer.NewFileWriterOrStdout(serializer.FormatYAML, path)
//	defer w.Close()
//	if err := w.Serialize(ctx, result); err != nil {
//		return err
//	}
//
// Reading, with the format taken from the extension:
//
//	cfg, err := serializer.FromFile[Config]("query_api.toml")
//
// HTTP helpers: RespondJSON buffers the body before writing headers so a
// failed encode never produces a partial response, and HttpReader fetches
// documents with bounded timeouts.
package serializer
