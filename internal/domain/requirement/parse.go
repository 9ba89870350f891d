package requirement

import (
	"encoding/json"
	"fmt"

	"github.com/habitquest/habit-quest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PARSING
// Требования хранятся в шаблонах квестов как JSON-дерево и валидируются
// до любой мутации (ошибка парсинга = ValidationError).
// ══════════════════════════════════════════════════════════════════════════════

// exprDTO - транспортная форма узла дерева требований.
type exprDTO struct {
	Kind string `json:"kind"` // "numeric" | "boolean" | "compound"

	// Numeric
	Metric   string  `json:"metric,omitempty"`
	Operator string  `json:"operator,omitempty"`
	Value    float64 `json:"value,omitempty"`

	// Boolean
	Expected *bool `json:"expected,omitempty"`

	// Compound
	Children []exprDTO `json:"children,omitempty"`
}

// Parse разбирает JSON-представление требования и валидирует его.
func Parse(data []byte) (Expr, error) {
	var dto exprDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, shared.WrapError("requirement", "Parse", shared.ErrValidation, "invalid requirement JSON", err)
	}
	return mapDTO(dto)
}

// MustParse разбирает требование и паникует при ошибке.
// Только для статических определений в коде и тестах.
func MustParse(data []byte) Expr {
	expr, err := Parse(data)
	if err != nil {
		panic(err)
	}
	return expr
}

// Marshal сериализует дерево требований в JSON для хранения.
func Marshal(expr Expr) ([]byte, error) {
	dto, err := mapExpr(expr)
	if err != nil {
		return nil, err
	}
	return json.Marshal(dto)
}

func mapDTO(dto exprDTO) (Expr, error) {
	switch dto.Kind {
	case "numeric":
		if dto.Metric == "" {
			return nil, shared.ErrEmptyMetric
		}
		op := Op(dto.Operator)
		if !op.IsValid() {
			return nil, shared.WrapError("requirement", "Parse", shared.ErrValidation,
				fmt.Sprintf("unknown numeric operator %q", dto.Operator), shared.ErrUnknownOperator)
		}
		return Numeric{Metric: dto.Metric, Operator: op, Value: dto.Value}, nil

	case "boolean":
		if dto.Metric == "" {
			return nil, shared.ErrEmptyMetric
		}
		expected := true
		if dto.Expected != nil {
			expected = *dto.Expected
		}
		return Boolean{Metric: dto.Metric, Expected: expected}, nil

	case "compound":
		op := CompoundOp(dto.Operator)
		if !op.IsValid() {
			return nil, shared.WrapError("requirement", "Parse", shared.ErrValidation,
				fmt.Sprintf("unknown compound operator %q", dto.Operator), shared.ErrUnknownOperator)
		}
		children := make([]Expr, 0, len(dto.Children))
		for _, childDTO := range dto.Children {
			child, err := mapDTO(childDTO)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		return Compound{Operator: op, Children: children}, nil

	default:
		return nil, shared.WrapError("requirement", "Parse", shared.ErrValidation,
			fmt.Sprintf("unknown node kind %q", dto.Kind), shared.ErrMalformedExpr)
	}
}

func mapExpr(expr Expr) (exprDTO, error) {
	switch e := expr.(type) {
	case Numeric:
		return exprDTO{Kind: "numeric", Metric: e.Metric, Operator: string(e.Operator), Value: e.Value}, nil
	case Boolean:
		expected := e.Expected
		return exprDTO{Kind: "boolean", Metric: e.Metric, Expected: &expected}, nil
	case Compound:
		children := make([]exprDTO, 0, len(e.Children))
		for _, child := range e.Children {
			childDTO, err := mapExpr(child)
			if err != nil {
				return exprDTO{}, err
			}
			children = append(children, childDTO)
		}
		return exprDTO{Kind: "compound", Operator: string(e.Operator), Children: children}, nil
	default:
		return exprDTO{}, shared.ErrMalformedExpr
	}
}
