package models

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidSelector = errors.New("invalid chart selector")

// Unit is the measurement basis of a counter.
type Unit string

const (
	UnitCount    Unit = "count"
	UnitPack     Unit = "pack"
	UnitPiece    Unit = "piece"
	UnitCurrency Unit = "currency"
)

var Units = []Unit{UnitCount, UnitPack, UnitPiece, UnitCurrency}

func (u Unit) index() (int, bool) {
	switch u {
	case UnitCount:
		return 0, true
	case UnitPack:
		return 1, true
	case UnitPiece:
		return 2, true
	case UnitCurrency:
		return 3, true
	}
	return -1, false
}

func (u Unit) Valid() bool {
	_, ok := u.index()
	return ok
}

// Scale is the number of decimal places a unit carries.
func (u Unit) Scale() int32 {
	if u == UnitCurrency {
		return 2
	}
	return 0
}

func (u Unit) keyPrefix() string {
	switch u {
	case UnitCount:
		return "count"
	case UnitPack:
		return "pack"
	case UnitPiece:
		return "piece"
	case UnitCurrency:
		return "amount"
	}
	return ""
}

// Family groups CNs by defect type. FamilyAggregate covers every CN.
type Family string

const (
	FamilyAggregate Family = "aggregate"
	FamilyMissing   Family = "missing"
	FamilyDegraded  Family = "degraded"
)

var Families = []Family{FamilyAggregate, FamilyMissing, FamilyDegraded}

func (f Family) index() (int, bool) {
	switch f {
	case FamilyAggregate:
		return 0, true
	case FamilyMissing:
		return 1, true
	case FamilyDegraded:
		return 2, true
	}
	return -1, false
}

func (f Family) Valid() bool {
	_, ok := f.index()
	return ok
}

// Code is the defect code used in upstream field names.
func (f Family) Code() string {
	switch f {
	case FamilyMissing:
		return "43"
	case FamilyDegraded:
		return "42"
	}
	return ""
}

// Category is the disposition of a CN.
type Category string

const (
	CategoryTotal    Category = "total"
	CategoryApproved Category = "approved"
	CategoryRejected Category = "rejected"
	CategoryWaiting  Category = "waiting"
)

var Categories = []Category{CategoryTotal, CategoryApproved, CategoryRejected, CategoryWaiting}

func (c Category) index() (int, bool) {
	switch c {
	case CategoryTotal:
		return 0, true
	case CategoryApproved:
		return 1, true
	case CategoryRejected:
		return 2, true
	case CategoryWaiting:
		return 3, true
	}
	return -1, false
}

func (c Category) Valid() bool {
	_, ok := c.index()
	return ok
}

// Presentation is the chart kind a widget draws.
type Presentation string

const (
	PresentationLine Presentation = "line"
	PresentationArea Presentation = "area"
	PresentationBar  Presentation = "bar"
	PresentationPie  Presentation = "pie"
)

func (p Presentation) Valid() bool {
	switch p {
	case PresentationLine, PresentationArea, PresentationBar, PresentationPie:
		return true
	}
	return false
}

// Selector is the compound (presentation, unit) value a widget shows.
// Its text form is "presentation-unit", e.g. "bar-pack".
type Selector struct {
	Presentation Presentation `json:"presentation"`
	Unit         Unit         `json:"unit"`
}

var DefaultSelector = Selector{Presentation: PresentationLine, Unit: UnitCount}

func (s Selector) String() string {
	return string(s.Presentation) + "-" + string(s.Unit)
}

func ParseSelector(value string) (Selector, error) {
	presentation, unit, ok := strings.Cut(strings.TrimSpace(value), "-")
	if !ok {
		return Selector{}, fmt.Errorf("%w %q: expected presentation-unit", ErrInvalidSelector, value)
	}

	s := Selector{Presentation: Presentation(presentation), Unit: Unit(unit)}
	if !s.Presentation.Valid() {
		return Selector{}, fmt.Errorf("%w %q: unknown presentation %q", ErrInvalidSelector, value, presentation)
	}
	if !s.Unit.Valid() {
		return Selector{}, fmt.Errorf("%w %q: unknown unit %q", ErrInvalidSelector, value, unit)
	}
	return s, nil
}

// ReportStatus is the lifecycle state of a report fetch.
type ReportStatus string

const (
	StatusInitial ReportStatus = "initial"
	StatusLoading ReportStatus = "loading"
	StatusSuccess ReportStatus = "success"
	StatusEmpty   ReportStatus = "empty"
	StatusError   ReportStatus = "error"
)
