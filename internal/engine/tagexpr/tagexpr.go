// Package tagexpr compiles and evaluates tag expressions from API
// definitions. An expression sees the request argument as `arg` and the
// fetched result as `result`, and returns a list of tag strings in the
// "Type" or "Type(ID)" form.
package tagexpr

import (
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"go.trai.ch/requery/internal/core/domain"
	"go.trai.ch/zerr"
)

// Program is a compiled tag expression bound to a tag type registry.
type Program struct {
	src      string
	program  *vm.Program
	tagTypes map[string]bool
}

// Compile compiles a tag expression. The resulting tags are validated
// against tagTypes at evaluation time.
func Compile(src string, tagTypes []string) (*Program, error) {
	program, err := expr.Compile(src, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrInvalidTagExpression.Error()), "expression", src)
	}

	known := make(map[string]bool, len(tagTypes))
	for _, t := range tagTypes {
		known[t] = true
	}

	return &Program{src: src, program: program, tagTypes: known}, nil
}

// Eval runs the expression against the given argument and result.
func (p *Program) Eval(arg, result any) ([]domain.Tag, error) {
	env := map[string]any{
		"arg":    arg,
		"result": result,
	}

	out, err := expr.Run(p.program, env)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrTagExpressionResult.Error()), "expression", p.src)
	}

	raw, err := tagStrings(out)
	if err != nil {
		return nil, zerr.With(err, "expression", p.src)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	tags := make([]domain.Tag, 0, len(raw))
	for _, s := range raw {
		tag, err := domain.ParseTag(s)
		if err != nil {
			return nil, zerr.With(err, "expression", p.src)
		}
		if !p.tagTypes[tag.Type] {
			return nil, zerr.With(zerr.With(domain.ErrUnknownTagType, "type", tag.Type), "expression", p.src)
		}
		tags = append(tags, tag)
	}

	return domain.DedupTags(tags), nil
}

// tagStrings coerces an expression result into a string list. A single
// string is treated as a one-element list.
func tagStrings(out any) ([]string, error) {
	switch v := out.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case []any:
		strs := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, zerr.With(domain.ErrTagExpressionResult, "element", item)
			}
			strs = append(strs, s)
		}
		return strs, nil
	default:
		return nil, zerr.With(domain.ErrTagExpressionResult, "result", out)
	}
}
