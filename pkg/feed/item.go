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

package feed

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/Tnze/go-mc/nbt"
)

// maxItemBytes bounds the decompressed size of one item payload.
const maxItemBytes = 1 << 20

var formatCodes = regexp.MustCompile("§.")

// Item is the decoded item of an auction.
type Item struct {
	ID         string
	InternalID string
	Name       string
	Count      int32
	Enchants   []string
	// PetTier is set for pets only.
	PetTier string
}

// nbtInventory is the root compound of an item payload.
type nbtInventory struct {
	Items []nbtItem `nbt:"i"`
}

type nbtItem struct {
	Count int8   `nbt:"Count"`
	Tag   nbtTag `nbt:"tag"`
}

type nbtTag struct {
	ExtraAttributes Attributes `nbt:"ExtraAttributes"`
	Display         nbtDisplay `nbt:"display"`
}

type nbtDisplay struct {
	Name string `nbt:"Name"`
}

// Attributes are the SkyBlock specific attributes of an item.
type Attributes struct {
	ID            string           `nbt:"id"`
	PetInfo       string           `nbt:"petInfo,omitempty"`
	Enchantments  map[string]int32 `nbt:"enchantments,omitempty"`
	Runes         map[string]int32 `nbt:"runes,omitempty"`
	Attributes    map[string]int32 `nbt:"attributes,omitempty"`
	PartyHatColor string           `nbt:"party_hat_color,omitempty"`
	NewYearsCake  int32            `nbt:"new_years_cake,omitempty"`
}

// petInfo is the JSON document stored in the petInfo string tag.
type petInfo struct {
	Type     string `json:"type"`
	Tier     string `json:"tier"`
	HeldItem string `json:"heldItem"`
}

// DecodeItem unpacks a base64, gzip, NBT item payload.
func DecodeItem(itemBytes string) (Item, error) {
	raw, err := base64.StdEncoding.DecodeString(itemBytes)
	if err != nil {
		return Item{}, fmt.Errorf("failed to decode item base64: %w", err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return Item{}, fmt.Errorf("failed to open item gzip: %w", err)
	}
	defer zr.Close()

	data, err := io.ReadAll(io.LimitReader(zr, maxItemBytes))
	if err != nil {
		return Item{}, fmt.Errorf("failed to read item gzip: %w", err)
	}

	var inv nbtInventory
	if err := nbt.Unmarshal(data, &inv); err != nil {
		return Item{}, fmt.Errorf("failed to decode item nbt: %w", err)
	}
	if len(inv.Items) == 0 {
		return Item{}, fmt.Errorf("item payload has no items")
	}
	return itemFrom(inv.Items[0])
}

func itemFrom(n nbtItem) (Item, error) {
	extra := n.Tag.ExtraAttributes
	if extra.ID == "" {
		return Item{}, fmt.Errorf("item has no id")
	}

	item := Item{
		ID:       extra.ID,
		Name:     StripFormatting(n.Tag.Display.Name),
		Count:    max(int32(n.Count), 1),
		Enchants: enchantList(extra.Enchantments),
	}

	var pet petInfo
	if extra.ID == "PET" && extra.PetInfo != "" {
		if err := json.Unmarshal([]byte(extra.PetInfo), &pet); err != nil {
			return Item{}, fmt.Errorf("failed to decode pet info: %w", err)
		}
		item.PetTier = strings.ToUpper(pet.Tier)
	}
	item.InternalID = internalID(extra, pet)
	return item, nil
}

// internalID derives the grouping key of an item.
func internalID(extra Attributes, pet petInfo) string {
	id := extra.ID
	switch {
	case id == "PET" && pet.Type != "":
		return strings.ToUpper(pet.Type) + ";" + strings.ToUpper(pet.Tier)
	case id == "ENCHANTED_BOOK" && len(extra.Enchantments) == 1:
		return single(extra.Enchantments)
	case id == "RUNE" && len(extra.Runes) == 1:
		return single(extra.Runes)
	case id == "ATTRIBUTE_SHARD" && len(extra.Attributes) == 1:
		return id + "_" + single(extra.Attributes)
	case strings.HasPrefix(id, "PARTY_HAT") && extra.PartyHatColor != "":
		return id + "_" + strings.ToUpper(extra.PartyHatColor)
	case id == "NEW_YEAR_CAKE" && extra.NewYearsCake > 0:
		return id + ";" + strconv.Itoa(int(extra.NewYearsCake))
	}
	return id
}

func single(m map[string]int32) string {
	name, lvl := only(m)
	return strings.ToUpper(name) + ";" + strconv.Itoa(int(lvl))
}

func only(m map[string]int32) (string, int32) {
	for k, v := range m {
		return k, v
	}
	return "", 0
}

// enchantList renders enchantments as sorted NAME;LEVEL entries.
func enchantList(m map[string]int32) []string {
	out := make([]string, 0, len(m))
	for name, lvl := range m {
		out = append(out, strings.ToUpper(name)+";"+strconv.Itoa(int(lvl)))
	}
	slices.Sort(out)
	return out
}

// StripFormatting removes Minecraft section-sign formatting codes.
func StripFormatting(s string) string {
	return formatCodes.ReplaceAllString(s, "")
}

// EncodeItem is the inverse of DecodeItem: it packs a single item with the
// given display name, stack size and attributes.
func EncodeItem(name string, count int8, attrs Attributes) (string, error) {
	inv := nbtInventory{Items: []nbtItem{{
		Count: count,
		Tag: nbtTag{
			ExtraAttributes: attrs,
			Display:         nbtDisplay{Name: name},
		},
	}}}
	data, err := nbt.Marshal(inv)
	if err != nil {
		return "", fmt.Errorf("failed to encode item nbt: %w", err)
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return "", err
	}
	if err := zw.Close(); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
