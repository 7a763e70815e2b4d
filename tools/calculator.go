package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mnemoworks/mnemo/core"
)

// Calculator returns the arithmetic tool.
func Calculator() *Tool {
	return &Tool{
		Definition: core.ToolDefinition{
			Name:        "calculator",
			Description: "Perform basic arithmetic operations (add, subtract, multiply, divide) on two numbers",
			InputSchema: ObjectSchema(map[string]interface{}{
				"operation": StringEnumProperty("The arithmetic operation to perform",
					"add", "subtract", "multiply", "divide"),
				"a": NumberProperty("The first operand"),
				"b": NumberProperty("The second operand"),
			}, "operation", "a", "b"),
		},
		Describe: func(args map[string]interface{}) string {
			return fmt.Sprintf("calculator(%s)", stringArg(args, "operation"))
		},
		Handler: calculate,
	}
}

func calculate(ctx context.Context, params *core.ToolParams) (*core.ToolResult, error) {
	var args map[string]interface{}
	_ = json.Unmarshal(params.Input, &args)

	opRaw, hasOp := args["operation"]
	aRaw, hasA := args["a"]
	bRaw, hasB := args["b"]
	if !hasOp || !hasA || !hasB || opRaw == nil || aRaw == nil || bRaw == nil {
		return errorResult("Error: Missing required arguments (operation, a, b)"), nil
	}

	a, okA := toNumber(aRaw)
	b, okB := toNumber(bRaw)
	if !okA || !okB {
		return errorResult("Error: Arguments 'a' and 'b' must be numbers"), nil
	}

	op, _ := opRaw.(string)

	var result float64
	var symbol string
	switch op {
	case "add":
		result, symbol = a+b, "+"
	case "subtract":
		result, symbol = a-b, "-"
	case "multiply":
		result, symbol = a*b, "*"
	case "divide":
		if b == 0 {
			return errorResult("Error: Division by zero is not allowed"), nil
		}
		result, symbol = a/b, "/"
	default:
		return errorResult(fmt.Sprintf("Error: Unknown operation '%s'", op)), nil
	}

	return &core.ToolResult{
		Observation: fmt.Sprintf("%s %s %s = %s",
			formatOperand(a), symbol, formatOperand(b), formatNumber(result)),
	}, nil
}

// toNumber coerces JSON numbers and numeric strings.
func toNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// formatOperand renders integral operands with one decimal place
// ("2.0") and everything else in full precision ("2.5").
func formatOperand(v float64) string {
	if v == math.Trunc(v) && !math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatNumber trims a result to at most six decimals, dropping
// trailing zeros ("5", "2.5", "0.333333").
func formatNumber(v float64) string {
	if v == 0 {
		return "0"
	}
	if v == math.Trunc(v) && !math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	s := strconv.FormatFloat(v, 'f', 6, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
