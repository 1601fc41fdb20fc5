package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

type DayCountBasis string

const (
	BasisAct365  DayCountBasis = "ACT/365"
	BasisEuro360 DayCountBasis = "30E/360"
	BasisAct360  DayCountBasis = "ACT/360"
	BasisActAct  DayCountBasis = "ACT/ACT"
)

type Compounding string

const (
	Compound   Compounding = "compound"
	NoCompound Compounding = "no_compound"
)

// InterestMethod pairs a day-count basis with a compounding policy.
// Its textual form is "<basis>_<compounding>", e.g. "ACT/365_no_compound".
type InterestMethod struct {
	Basis       DayCountBasis
	Compounding Compounding
}

// IsCompound reports whether accrued interest is added back into the interest base.
func (m InterestMethod) IsCompound() bool {
	return m.Compounding == Compound
}

func (m InterestMethod) String() string {
	return string(m.Basis) + "_" + string(m.Compounding)
}

// ParseInterestMethod parses the textual form of an InterestMethod.
func ParseInterestMethod(s string) (InterestMethod, error) {
	basis, compounding, ok := strings.Cut(strings.TrimSpace(s), "_")
	if !ok {
		return InterestMethod{}, fmt.Errorf("invalid interest method %q", s)
	}
	m := InterestMethod{
		Basis:       DayCountBasis(strings.ToUpper(basis)),
		Compounding: Compounding(strings.ToLower(compounding)),
	}
	switch m.Basis {
	case BasisAct365, BasisEuro360, BasisAct360, BasisActAct:
	default:
		return InterestMethod{}, fmt.Errorf("invalid day-count basis %q", basis)
	}
	switch m.Compounding {
	case Compound, NoCompound:
	default:
		return InterestMethod{}, fmt.Errorf("invalid compounding %q", compounding)
	}
	return m, nil
}

func (m InterestMethod) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *InterestMethod) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseInterestMethod(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
