package parser

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/jchiru21/tech-debt-assassin/internal/models"
)

// ErrUnparsable marks a file whose syntax tree contains errors. The file is
// excluded from further processing but never aborts a whole scan.
var ErrUnparsable = fmt.Errorf("unparsable source")

// ExtractSignatures parses Python source and returns a record for every
// function and method declaration, including async variants, in source order.
func ExtractSignatures(filePath string, code []byte) ([]models.FunctionSignature, error) {
	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())

	tree, err := p.ParseCtx(context.Background(), nil, code)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filePath, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, fmt.Errorf("%w: %s", ErrUnparsable, filePath)
	}

	var signatures []models.FunctionSignature
	walk(root, code, filePath, "", &signatures)
	return signatures, nil
}

func walk(node *sitter.Node, code []byte, filePath, className string, out *[]models.FunctionSignature) {
	switch node.Type() {
	case "class_definition":
		name := ""
		if n := node.ChildByFieldName("name"); n != nil {
			name = n.Content(code)
		}
		if body := node.ChildByFieldName("body"); body != nil {
			for i := 0; i < int(body.NamedChildCount()); i++ {
				walk(body.NamedChild(i), code, filePath, name, out)
			}
		}
		return

	case "function_definition":
		sig := buildSignature(node, code, filePath, className)
		*out = append(*out, sig)
		// Nested defs are still walked so inner helpers get scanned too.
		if body := node.ChildByFieldName("body"); body != nil {
			for i := 0; i < int(body.NamedChildCount()); i++ {
				walk(body.NamedChild(i), code, filePath, className, out)
			}
		}
		return
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		walk(node.NamedChild(i), code, filePath, className, out)
	}
}

func buildSignature(node *sitter.Node, code []byte, filePath, className string) models.FunctionSignature {
	name := ""
	if n := node.ChildByFieldName("name"); n != nil {
		name = n.Content(code)
	}
	qualified := name
	if className != "" {
		qualified = className + "." + name
	}

	sig := models.FunctionSignature{
		FilePath: filePath,
		Name:     qualified,
		Class:    className,
		Async:    isAsync(node),
		DeclLine: int(node.StartPoint().Row) + 1,
		DeclEnd:  declEndLine(node),
		Indent:   lineIndent(code, int(node.StartByte())),
		Source:   node.Content(code),
	}

	if params := node.ChildByFieldName("parameters"); params != nil {
		sig.Params = extractParams(params, code, className != "")
	}
	if ret := node.ChildByFieldName("return_type"); ret != nil {
		sig.Return = ret.Content(code)
		sig.ReturnValid = validAnnotation(ret, code)
	}
	if body := node.ChildByFieldName("body"); body != nil {
		sig.Doc = docstring(body, code)
	}

	return sig
}

// isAsync checks for the async keyword token preceding def.
func isAsync(node *sitter.Node) bool {
	for i := 0; i < int(node.ChildCount()); i++ {
		c := node.Child(i)
		if c.Type() == "def" {
			break
		}
		if c.Type() == "async" {
			return true
		}
	}
	return false
}

// declEndLine finds the line holding the colon that closes the declaration.
// The signature may span several lines when the parameter list wraps.
func declEndLine(node *sitter.Node) int {
	for i := int(node.ChildCount()) - 1; i >= 0; i-- {
		c := node.Child(i)
		if c.Type() == ":" {
			return int(c.StartPoint().Row) + 1
		}
	}
	// Degenerate tree, fall back to the params end.
	if params := node.ChildByFieldName("parameters"); params != nil {
		return int(params.EndPoint().Row) + 1
	}
	return int(node.StartPoint().Row) + 1
}

func lineIndent(code []byte, startByte int) string {
	lineStart := startByte
	for lineStart > 0 && code[lineStart-1] != '\n' {
		lineStart--
	}
	return string(code[lineStart:startByte])
}

func extractParams(params *sitter.Node, code []byte, isMethod bool) []models.Param {
	var out []models.Param
	for i := 0; i < int(params.NamedChildCount()); i++ {
		child := params.NamedChild(i)
		p := extractParam(child, code)
		if p == nil {
			continue
		}
		if isMethod && len(out) == 0 && (p.Name == "self" || p.Name == "cls") {
			p.Receiver = true
		}
		out = append(out, *p)
	}
	return out
}

func extractParam(node *sitter.Node, code []byte) *models.Param {
	switch node.Type() {
	case "identifier":
		return &models.Param{Name: node.Content(code)}

	case "typed_parameter":
		p := &models.Param{}
		if inner := node.NamedChild(0); inner != nil {
			switch inner.Type() {
			case "list_splat_pattern":
				p.Prefix = "*"
				p.Name = splatName(inner, code)
			case "dictionary_splat_pattern":
				p.Prefix = "**"
				p.Name = splatName(inner, code)
			default:
				p.Name = inner.Content(code)
			}
		}
		if t := node.ChildByFieldName("type"); t != nil {
			p.Annotation = t.Content(code)
			p.Valid = validAnnotation(t, code)
		}
		return p

	case "default_parameter":
		p := &models.Param{}
		if n := node.ChildByFieldName("name"); n != nil {
			p.Name = n.Content(code)
		}
		if v := node.ChildByFieldName("value"); v != nil {
			p.Default = v.Content(code)
		}
		return p

	case "typed_default_parameter":
		p := &models.Param{}
		if n := node.ChildByFieldName("name"); n != nil {
			p.Name = n.Content(code)
		}
		if t := node.ChildByFieldName("type"); t != nil {
			p.Annotation = t.Content(code)
			p.Valid = validAnnotation(t, code)
		}
		if v := node.ChildByFieldName("value"); v != nil {
			p.Default = v.Content(code)
		}
		return p

	case "list_splat_pattern":
		return &models.Param{Prefix: "*", Name: splatName(node, code)}

	case "dictionary_splat_pattern":
		return &models.Param{Prefix: "**", Name: splatName(node, code)}

	case "keyword_separator":
		return &models.Param{Name: "*", Separator: true}

	case "positional_separator":
		return &models.Param{Name: "/", Separator: true}
	}

	return nil
}

func splatName(node *sitter.Node, code []byte) string {
	if inner := node.NamedChild(0); inner != nil {
		return inner.Content(code)
	}
	return strings.TrimLeft(node.Content(code), "*")
}

// docstring returns the leading string literal of a block, if any.
func docstring(body *sitter.Node, code []byte) string {
	first := body.NamedChild(0)
	if first == nil || first.Type() != "expression_statement" {
		return ""
	}
	str := first.NamedChild(0)
	if str == nil || str.Type() != "string" {
		return ""
	}
	doc := str.Content(code)
	doc = strings.Trim(doc, "\"'")
	return strings.TrimSpace(doc)
}
