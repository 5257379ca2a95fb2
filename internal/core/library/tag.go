// Copyright (c) 2026 Albumin. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package library

import (
	"strings"

	"github.com/taibuivan/albumin/pkg/slug"
)

// Tag is a free-form label shared by every user who typed an equivalent name.
type Tag struct {
	ID       string `json:"-"`
	UniqueID string `json:"uniqueId"`
	Name     string `json:"name"`
}

// CalculateUniqueID folds a display name into the key that identifies a Tag.
// "Jazz ", "jazz" and "JAZZ" share the key "jazz".
func CalculateUniqueID(name string) string {
	return slug.Key(name)
}

// newTag builds an unsaved Tag from user input.
func newTag(id, name string) *Tag {
	return &Tag{
		ID:       id,
		UniqueID: CalculateUniqueID(name),
		Name:     strings.TrimSpace(name),
	}
}
