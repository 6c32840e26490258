/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrUnknownUnit = errors.New("unknown activity unit")

// 1 mCi = 37 MBq.
var mbqPerUnit = map[string]decimal.Decimal{
	"MBq": decimal.NewFromInt(1),
	"GBq": decimal.NewFromInt(1000),
	"mCi": decimal.NewFromInt(37),
	"Ci":  decimal.NewFromInt(37000),
}

func normalizeUnit(u string) string {
	switch strings.ToLower(strings.TrimSpace(u)) {
	case "mbq":
		return "MBq"
	case "gbq":
		return "GBq"
	case "mci":
		return "mCi"
	case "ci":
		return "Ci"
	}
	return u
}

// NormalizeUnit returns the canonical spelling of u, or an error.
func NormalizeUnit(u string) (string, error) {
	n := normalizeUnit(u)
	if _, ok := mbqPerUnit[n]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownUnit, u)
	}
	return n, nil
}

// ConvertActivity converts v from one unit to another.
func ConvertActivity(v decimal.Decimal, from, to string) (decimal.Decimal, error) {
	f, ok := mbqPerUnit[normalizeUnit(from)]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownUnit, from)
	}
	t, ok := mbqPerUnit[normalizeUnit(to)]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownUnit, to)
	}
	if f.Equal(t) {
		return v, nil
	}
	return v.Mul(f).DivRound(t, 6), nil
}
