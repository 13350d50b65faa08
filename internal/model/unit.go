package model

import (
	"fmt"
	"strings"
)

// Unit is the measure a product is priced in.
type Unit string

const (
	UnitPiece      Unit = "pcs"
	UnitGram       Unit = "g"
	UnitMilliliter Unit = "ml"
)

// Cyrillic labels are accepted as aliases.
var unitAliases = map[string]Unit{
	"pcs": UnitPiece,
	"шт":  UnitPiece,
	"g":   UnitGram,
	"гр":  UnitGram,
	"ml":  UnitMilliliter,
	"мл":  UnitMilliliter,
}

// ParseUnit normalizes a unit label. An empty string is an error.
func ParseUnit(s string) (Unit, error) {
	u, ok := unitAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("unknown unit %q", s)
	}
	return u, nil
}

func (u Unit) Valid() bool {
	switch u {
	case UnitPiece, UnitGram, UnitMilliliter:
		return true
	}
	return false
}
