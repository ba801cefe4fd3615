// Package sessions derives billable session counts from catalog names and
// package item quantities.
package sessions

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var ErrNegative = errors.New("session inputs must not be negative")

var (
	leadingQuantity = regexp.MustCompile(`^\s*(\d+)\s*(?:x|×|er\b)?\s*([\pL.]*)`)
	bonusQuantity   = regexp.MustCompile(`(?i)\+\s*(\d+)\b[^+]*?\b(?:gratis|free|kostenlos|geschenkt)\b`)
)

// Words after a leading number that make it a duration, not a quantity.
var durationUnits = map[string]bool{
	"min": true, "min.": true, "minute": true, "minuten": true, "minutes": true,
	"std": true, "std.": true, "stunde": true, "stunden": true, "h": true, "hour": true, "hours": true,
}

// CountFromServiceName recovers sessions per unit from names such as
// "10 Teilmassage + 1 Teilmassage gratis" (11). Names without a recognised
// quantity count as 1.
func CountFromServiceName(name string) int {
	m := leadingQuantity.FindStringSubmatch(name)
	if m == nil || durationUnits[strings.ToLower(m[2])] {
		return 1
	}
	total, err := strconv.Atoi(m[1])
	if err != nil || total <= 0 {
		return 1
	}
	for _, bonus := range bonusQuantity.FindAllStringSubmatch(name, -1) {
		n, err := strconv.Atoi(bonus[1])
		if err != nil {
			continue
		}
		total += n
	}
	return total
}

// TotalForPackageItem is units purchased times sessions per unit.
func TotalForPackageItem(units, perUnit int) (int, error) {
	if units < 0 || perUnit < 0 {
		return 0, fmt.Errorf("%w: units=%d per_unit=%d", ErrNegative, units, perUnit)
	}
	return units * perUnit, nil
}

// UsedForPackageItem is completed appointments times sessions per unit.
func UsedForPackageItem(completed, perUnit int) (int, error) {
	if completed < 0 || perUnit < 0 {
		return 0, fmt.Errorf("%w: completed=%d per_unit=%d", ErrNegative, completed, perUnit)
	}
	return completed * perUnit, nil
}
