// Package aggregation folds series of decimal samples with a small set of
// reduce operators.
package aggregation

import (
	"github.com/shopspring/decimal"
)

const (
	OpCount = "count"
	OpSum   = "sum"
	OpMin   = "min"
	OpMax   = "max"
)

// avgPlaces is the precision of a derived average.
const avgPlaces = 3

// Folder is one reduce operator. First seeds the accumulator from the
// first sample; Step folds every following sample into it.
type Folder interface {
	First(v decimal.Decimal) decimal.Decimal
	Step(acc, v decimal.Decimal) decimal.Decimal
}

// Operators lists the supported folds by name.
var Operators = map[string]Folder{
	OpCount: countFold{},
	OpSum:   sumFold{},
	OpMin:   minFold{},
	OpMax:   maxFold{},
}

// ValidOperator reports whether op names a fold in Operators.
func ValidOperator(op string) bool {
	_, ok := Operators[op]
	return ok
}

// Fold reduces values with the named operator. ok is false for an
// unknown operator or an empty input.
func Fold(op string, values []decimal.Decimal) (decimal.Decimal, bool) {
	f, found := Operators[op]
	if !found || len(values) == 0 {
		return decimal.Zero, false
	}
	acc := f.First(values[0])
	for _, v := range values[1:] {
		acc = f.Step(acc, v)
	}
	return acc, true
}

// Summary is every fold over one series plus the derived average.
type Summary struct {
	Count int64           `json:"count"`
	Sum   decimal.Decimal `json:"sum"`
	Min   decimal.Decimal `json:"min"`
	Max   decimal.Decimal `json:"max"`
	Avg   decimal.Decimal `json:"avg"`
}

// Summarize folds values with all operators. An empty input yields the
// zero summary.
func Summarize(values []decimal.Decimal) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	count, _ := Fold(OpCount, values)
	sum, _ := Fold(OpSum, values)
	lo, _ := Fold(OpMin, values)
	hi, _ := Fold(OpMax, values)
	return Summary{
		Count: count.IntPart(),
		Sum:   sum,
		Min:   lo,
		Max:   hi,
		Avg:   sum.DivRound(count, avgPlaces),
	}
}

type countFold struct{}

func (countFold) First(decimal.Decimal) decimal.Decimal { return decimal.NewFromInt(1) }
func (countFold) Step(acc, _ decimal.Decimal) decimal.Decimal {
	return acc.Add(decimal.NewFromInt(1))
}

type sumFold struct{}

func (sumFold) First(v decimal.Decimal) decimal.Decimal     { return v }
func (sumFold) Step(acc, v decimal.Decimal) decimal.Decimal { return acc.Add(v) }

type minFold struct{}

func (minFold) First(v decimal.Decimal) decimal.Decimal { return v }
func (minFold) Step(acc, v decimal.Decimal) decimal.Decimal {
	if v.LessThan(acc) {
		return v
	}
	return acc
}

type maxFold struct{}

func (maxFold) First(v decimal.Decimal) decimal.Decimal { return v }
func (maxFold) Step(acc, v decimal.Decimal) decimal.Decimal {
	if v.GreaterThan(acc) {
		return v
	}
	return acc
}
