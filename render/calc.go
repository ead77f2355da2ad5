package render

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/model"
	"github.com/shopspring/decimal"
)

const calcToken = "calc"

var errCalcSyntax = errors.New("calc placeholder needs an expression")

// evalCalc evaluates {{calc:<expr>[:currency|number]}} over the record's
// amounts. Only arithmetic over the known amount names is accepted.
func evalCalc(seg Segment, rec *model.BusinessRecord, f Formatter) (string, error) {
	if len(seg.Options) == 0 || strings.TrimSpace(seg.Options[0]) == "" {
		return "", errCalcSyntax
	}

	expr, err := govaluate.NewEvaluableExpression(seg.Options[0])
	if err != nil {
		return "", fmt.Errorf("parse calc expression: %w", err)
	}

	params := map[string]interface{}{}
	for name, amount := range amounts(rec) {
		params[name] = amount.InexactFloat64()
	}
	for _, v := range expr.Vars() {
		if _, ok := params[v]; !ok {
			return "", fmt.Errorf("unknown calc variable %q", v)
		}
	}

	out, err := expr.Evaluate(params)
	if err != nil {
		return "", fmt.Errorf("evaluate calc expression: %w", err)
	}
	n, ok := out.(float64)
	if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
		return "", fmt.Errorf("calc expression is not a finite number: %v", out)
	}

	result := decimal.NewFromFloat(n).Round(2)
	format := "currency"
	if len(seg.Options) > 1 && seg.Options[1] != "" {
		format = strings.ToLower(seg.Options[1])
	}
	switch format {
	case "currency":
		return f.Currency(result), nil
	case "number":
		return f.Number(result), nil
	default:
		return "", fmt.Errorf("unknown calc format %q", format)
	}
}
