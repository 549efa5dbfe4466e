package parser

import (
	"errors"
	"testing"
)

func TestExtractSignatures(t *testing.T) {
	code := []byte(`def greet(name):
    """Say hello."""
    print(f"Hello, {name}")

def typed(a: int, b: str = "x") -> bool:
    return True

class Calculator:
    def add(self, a, b):
        return a + b

    async def fetch(self, url: str) -> dict:
        return {}
`)

	sigs, err := ExtractSignatures("test.py", code)
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}

	if len(sigs) != 4 {
		t.Fatalf("Expected 4 signatures, got %d", len(sigs))
	}

	greet := sigs[0]
	if greet.Name != "greet" {
		t.Errorf("Expected name greet, got %s", greet.Name)
	}
	if greet.DeclLine != 1 || greet.DeclEnd != 1 {
		t.Errorf("Expected decl span 1-1, got %d-%d", greet.DeclLine, greet.DeclEnd)
	}
	if greet.Doc != "Say hello." {
		t.Errorf("Expected docstring, got %q", greet.Doc)
	}
	if len(greet.Params) != 1 || greet.Params[0].Annotation != "" {
		t.Errorf("Expected one unannotated param, got %+v", greet.Params)
	}
	if !greet.MissingHints() {
		t.Error("greet should be missing hints")
	}

	typed := sigs[1]
	if typed.Return != "bool" || !typed.ReturnValid {
		t.Errorf("Expected valid bool return, got %q valid=%v", typed.Return, typed.ReturnValid)
	}
	if typed.Params[1].Default != `"x"` {
		t.Errorf("Expected default preserved, got %q", typed.Params[1].Default)
	}
	if typed.MissingHints() {
		t.Error("typed should not be missing hints")
	}

	add := sigs[2]
	if add.Name != "Calculator.add" {
		t.Errorf("Expected qualified name Calculator.add, got %s", add.Name)
	}
	if add.BareName() != "add" {
		t.Errorf("Expected bare name add, got %s", add.BareName())
	}
	if !add.Params[0].Receiver {
		t.Error("self should be marked as receiver")
	}
	if add.Params[0].NeedsHint() {
		t.Error("self must not count against coverage")
	}

	fetch := sigs[3]
	if !fetch.Async {
		t.Error("fetch should be async")
	}
	if fetch.MissingHints() {
		t.Errorf("fetch is fully annotated, missing params: %v", fetch.MissingParams())
	}
}

func TestExtractSignaturesMultiLineDecl(t *testing.T) {
	code := []byte(`def configure(
    host,
    port=8080,
    *args,
    **kwargs,
):
    pass
`)

	sigs, err := ExtractSignatures("test.py", code)
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}
	if len(sigs) != 1 {
		t.Fatalf("Expected 1 signature, got %d", len(sigs))
	}

	sig := sigs[0]
	if sig.DeclLine != 1 || sig.DeclEnd != 6 {
		t.Errorf("Expected decl span 1-6, got %d-%d", sig.DeclLine, sig.DeclEnd)
	}
	if len(sig.Params) != 4 {
		t.Fatalf("Expected 4 params, got %d", len(sig.Params))
	}
	if sig.Params[2].Prefix != "*" || sig.Params[2].Name != "args" {
		t.Errorf("Expected *args, got %+v", sig.Params[2])
	}
	if sig.Params[3].Prefix != "**" || sig.Params[3].Name != "kwargs" {
		t.Errorf("Expected **kwargs, got %+v", sig.Params[3])
	}
	if sig.Params[2].NeedsHint() || sig.Params[3].NeedsHint() {
		t.Error("splat params must not count against coverage")
	}

	missing := sig.MissingParams()
	if len(missing) != 2 || missing[0] != "host" || missing[1] != "port" {
		t.Errorf("Expected host and port missing, got %v", missing)
	}
}

func TestExtractSignaturesSeparators(t *testing.T) {
	code := []byte(`def f(a, /, b, *, c):
    pass
`)

	sigs, err := ExtractSignatures("test.py", code)
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}
	if len(sigs) != 1 {
		t.Fatalf("Expected 1 signature, got %d", len(sigs))
	}

	var separators, named int
	for _, p := range sigs[0].Params {
		if p.Separator {
			separators++
		} else {
			named++
		}
	}
	if separators != 2 {
		t.Errorf("Expected 2 separators, got %d", separators)
	}
	if named != 3 {
		t.Errorf("Expected 3 named params, got %d", named)
	}
}

func TestSuspectedTypoAnnotation(t *testing.T) {
	code := []byte(`def f(a: stirng, b: int, c: MyClass) -> itn:
    pass
`)

	sigs, err := ExtractSignatures("test.py", code)
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}

	sig := sigs[0]
	if sig.Params[0].Valid {
		t.Error("stirng should be flagged as a suspected typo")
	}
	if !sig.Params[0].NeedsHint() {
		t.Error("a typo annotation still needs a hint")
	}
	if !sig.Params[1].Valid {
		t.Error("int should be valid")
	}
	if !sig.Params[2].Valid {
		t.Error("capitalized names are assumed to be user types")
	}
	if sig.ReturnValid {
		t.Error("itn should be flagged as a suspected typo")
	}
}

func TestExtractSignaturesUnparsable(t *testing.T) {
	code := []byte("def broken(:\n    pass\n")

	_, err := ExtractSignatures("bad.py", code)
	if !errors.Is(err, ErrUnparsable) {
		t.Fatalf("Expected ErrUnparsable, got %v", err)
	}
}

func TestExtractSignaturesNestedDef(t *testing.T) {
	code := []byte(`def outer():
    def inner(x):
        return x
    return inner
`)

	sigs, err := ExtractSignatures("test.py", code)
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}
	if len(sigs) != 2 {
		t.Fatalf("Expected outer and inner, got %d signatures", len(sigs))
	}
	if sigs[1].Name != "inner" {
		t.Errorf("Expected inner, got %s", sigs[1].Name)
	}
	if sigs[1].Indent != "    " {
		t.Errorf("Expected four-space indent, got %q", sigs[1].Indent)
	}
}

func TestParseSignatureLine(t *testing.T) {
	sig, err := ParseSignatureLine("def greet(name: str) -> None:")
	if err != nil {
		t.Fatalf("Failed to parse line: %v", err)
	}
	if sig.Name != "greet" {
		t.Errorf("Expected greet, got %s", sig.Name)
	}
	if sig.Params[0].Annotation != "str" {
		t.Errorf("Expected str annotation, got %q", sig.Params[0].Annotation)
	}
	if sig.Return != "None" {
		t.Errorf("Expected None return, got %q", sig.Return)
	}
}

func TestParseSignatureLineNoColon(t *testing.T) {
	sig, err := ParseSignatureLine("async def fetch(url: str) -> dict")
	if err != nil {
		t.Fatalf("Failed to parse line without colon: %v", err)
	}
	if !sig.Async {
		t.Error("Expected async flag")
	}
}

func TestParseSignatureLineRejectsGarbage(t *testing.T) {
	for _, line := range []string{"", "not a def", "def f(:"} {
		if _, err := ParseSignatureLine(line); err == nil {
			t.Errorf("Expected error for %q", line)
		}
	}
}
