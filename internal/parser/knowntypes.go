package parser

import (
	"unicode"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
)

// knownTypeNames are valid lowercase spellings for single-name annotations:
// Python builtins plus common typing constructs. Anything starting with an
// uppercase letter is accepted as a user-defined class or typing name, so the
// set only needs the lowercase vocabulary to catch typos like "stirng".
var knownTypeNames = map[string]bool{
	"int": true, "float": true, "complex": true, "str": true, "bytes": true,
	"bytearray": true, "bool": true, "list": true, "dict": true, "tuple": true,
	"set": true, "frozenset": true, "object": true, "type": true, "range": true,
	"slice": true, "memoryview": true, "property": true, "staticmethod": true,
	"classmethod": true, "super": true, "filter": true, "map": true, "zip": true,
	"enumerate": true, "reversed": true, "iter": true, "callable": true,
}

// validAnnotation reports whether an annotation node looks intentional.
// Subscripts (list[X]), attributes (mod.Type), unions (X | Y), string forward
// references and None are always accepted; a bare lowercase identifier must be
// a known builtin, otherwise it is treated as a likely typo.
func validAnnotation(node *sitter.Node, code []byte) bool {
	if node == nil {
		return false
	}
	// The grammar wraps annotations in a "type" node; look through it.
	if node.Type() == "type" {
		if inner := node.NamedChild(0); inner != nil {
			node = inner
		}
	}
	if node.Type() != "identifier" {
		return true
	}

	name := node.Content(code)
	if name == "" {
		return false
	}
	r, _ := utf8.DecodeRuneInString(name)
	if unicode.IsUpper(r) {
		return true
	}
	return knownTypeNames[name]
}
