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

// Package feed reads the public SkyBlock auction feed.
//
// The feed is paginated JSON. Each auction carries its item as a base64
// encoded, gzip compressed NBT compound; DecodeItem unpacks it with the
// go-mc nbt codec and derives the internal id used to group equal items:
//
//	pets                  TYPE;TIER
//	single enchant books  ENCHANT;LEVEL
//	single runes          RUNE;LEVEL
//	single attribute      ATTRIBUTE_SHARD_NAME;LEVEL
//	party hats            PARTY_HAT_CRAB_COLOR
//	new year cakes        NEW_YEAR_CAKE;YEAR
//
// Everything else uses the item id unchanged.
package feed
