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

// Package encoder converts query results to and from the wire envelope.
//
// Every result encodes. A success becomes
//
//	{"status":"success","op":"lowestbin","requestId":"…","data":{…}}
//
// and a failure becomes
//
//	{"status":"failure","op":"get","requestId":"…",
//	 "error":{"code":"NOT_FOUND","message":"auction not found","retryable":false}}
//
// Failures of unknown kind are encoded as INTERNAL, and INTERNAL messages are
// always the fixed generic message. Decode validates an envelope against its
// JSON schema before rebuilding the result.
package encoder
