// Copyright (c) 2026 Albumin. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package query parses list-valued URL query parameters.
package query

import (
	"encoding/json"
	"strings"
)

// StringList parses a query value that is either a JSON array of strings
// (`["jazz","rock"]`) or a comma-separated list (`jazz,rock`).
// Entries are trimmed and empty entries dropped. The boolean is false when
// the value looks like JSON but does not decode to a string array.
func StringList(val string) ([]string, bool) {
	val = strings.TrimSpace(val)
	if val == "" {
		return nil, true
	}

	var raw []string
	if strings.HasPrefix(val, "[") {
		if err := json.Unmarshal([]byte(val), &raw); err != nil {
			return nil, false
		}
	} else {
		raw = strings.Split(val, ",")
	}

	var res []string
	for _, v := range raw {
		if clean := strings.TrimSpace(v); clean != "" {
			res = append(res, clean)
		}
	}
	return res, true
}

// Bool reports whether a flag-style query value is set ("true", "1", "yes").
func Bool(val string) bool {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}
