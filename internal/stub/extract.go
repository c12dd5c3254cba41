package stub

import "github.com/jward/pascope/internal/pascal"

// sectionEnds are the keywords that close a type section when they appear
// where a declaration could start.
var sectionEnds = map[string]bool{
	"var":            true,
	"const":          true,
	"resourcestring": true,
	"threadvar":      true,
	"label":          true,
	"procedure":      true,
	"function":       true,
	"constructor":    true,
	"destructor":     true,
	"class":          true,
	"operator":       true,
	"interface":      true,
	"implementation": true,
	"initialization": true,
	"finalization":   true,
	"exports":        true,
	"uses":           true,
	"begin":          true,
	"end":            true,
}

// Extract returns the stubs of every top-level type declaration in src, in
// source order. It only looks inside type sections, and skips the bodies of
// classes, records and interfaces so members are never read as declarations.
// Forward declarations are not reported; the full declaration that follows
// them is. The result depends on src alone.
func Extract(src []byte) []TypeStub {
	x := &extractor{toks: pascal.Tokenize(src)}
	return x.run()
}

type extractor struct {
	toks []pascal.Token
	pos  int
	out  []TypeStub
}

func (x *extractor) at(i int) pascal.Token {
	if i >= 0 && i < len(x.toks) {
		return x.toks[i]
	}
	return pascal.Token{Kind: pascal.EOF}
}

func (x *extractor) run() []TypeStub {
	inType := false
	atDeclStart := false
	for x.pos < len(x.toks) {
		tok := x.toks[x.pos]
		switch {
		case tok.Is("type"):
			inType = true
			atDeclStart = true
			x.pos++
			continue
		case tok.Kind == pascal.Ident && !tok.Escaped && sectionEnds[pascal.Normalize(tok.Text)]:
			inType = false
		case inType && atDeclStart && tok.Kind == pascal.Ident:
			if x.declaration() {
				continue
			}
		}
		atDeclStart = tok.IsSymbol(";") || tok.IsSymbol("]")
		x.pos++
	}
	return x.out
}

// declaration tries to read "Name [<params>] = ..." at x.pos. On success it
// consumes the whole declaration, records a stub unless it was a forward
// declaration, and reports true.
func (x *extractor) declaration() bool {
	nameTok := x.toks[x.pos]
	j := x.pos + 1

	var params []string
	if x.at(j).IsSymbol("<") {
		var ok bool
		params, j, ok = x.typeParams(j + 1)
		if !ok {
			return false
		}
	}
	if !x.at(j).IsSymbol("=") {
		return false
	}
	j++

	kind, hasBody, forward := x.classify(j)
	if hasBody {
		j = x.skipBody(j)
	}
	x.pos = x.skipToSemicolon(j)

	if forward {
		return true
	}
	name := nameTok.Text
	x.out = append(x.out, TypeStub{
		Name:           &name,
		Kind:           kind,
		TypeParameters: params,
		Offset:         nameTok.Offset,
	})
	return true
}

// typeParams parses a generic parameter list starting just after '<' and
// returns the parameter names and the index after the closing '>'.
// Constraints following ':' are skipped.
func (x *extractor) typeParams(j int) ([]string, int, bool) {
	params := []string{}
	for {
		tok := x.at(j)
		switch {
		case tok.Kind == pascal.Ident:
			params = append(params, tok.Text)
			j++
		case tok.IsSymbol(",") || tok.IsSymbol(";"):
			j++
		case tok.IsSymbol(":"):
			j = x.skipConstraints(j + 1)
		case tok.IsSymbol(">"):
			return params, j + 1, true
		default:
			return nil, j, false
		}
	}
}

// skipConstraints advances past a constraint list up to, but not including,
// the ';' or '>' that ends it. Nested angle brackets are balanced.
func (x *extractor) skipConstraints(j int) int {
	depth := 0
	for j < len(x.toks) {
		tok := x.toks[j]
		switch {
		case tok.IsSymbol("<"):
			depth++
		case tok.IsSymbol(">"):
			if depth == 0 {
				return j
			}
			depth--
		case tok.IsSymbol(";") && depth == 0:
			return j
		case tok.IsSymbol("="):
			return j
		}
		j++
	}
	return j
}

// classify inspects the tokens after '=' at index j.
func (x *extractor) classify(j int) (kind Kind, hasBody, forward bool) {
	tok := x.at(j)
	if tok.Is("packed") {
		j++
		tok = x.at(j)
	}
	switch {
	case tok.Is("class"):
		next := x.at(j + 1)
		if next.IsSymbol(";") {
			return KindClass, false, true
		}
		return KindClass, x.opensBody(j), false
	case tok.Is("interface") || tok.Is("dispinterface"):
		if x.at(j + 1).IsSymbol(";") {
			return KindInterface, false, true
		}
		return KindInterface, x.opensBody(j), false
	case tok.Is("record"):
		return KindRecord, true, false
	case tok.Is("object"):
		return KindUnknown, x.opensBody(j), false
	case tok.Is("procedure") || tok.Is("function"):
		return KindProcedural, false, false
	case tok.Is("reference") && x.at(j+1).Is("to"):
		return KindProcedural, false, false
	}
	return KindUnknown, false, false
}

// opensBody reports whether the class, interface or object keyword at j is
// followed by a member list closed by "end", as opposed to a bodiless form
// such as "class(Exception);" or "class of TFoo".
func (x *extractor) opensBody(j int) bool {
	j++
	for x.at(j).Is("abstract") || x.at(j).Is("sealed") {
		j++
	}
	if x.at(j).Is("of") {
		return false
	}
	if x.at(j).Is("helper") && x.at(j+1).Is("for") {
		j += 2
		for x.at(j).Kind == pascal.Ident || x.at(j).IsSymbol(".") {
			j++
		}
	}
	if x.at(j).IsSymbol("(") {
		j = x.skipParens(j)
	}
	return !x.at(j).IsSymbol(";")
}

// skipBody returns the index just after the "end" matching the body whose
// opening keyword is at j.
func (x *extractor) skipBody(j int) int {
	if x.at(j).Is("packed") {
		j++
	}
	depth := 0
	for j < len(x.toks) {
		tok := x.toks[j]
		switch {
		case tok.Is("end"):
			depth--
			if depth == 0 {
				return j + 1
			}
		case tok.Is("record"):
			depth++
		case depth == 0 && (tok.Is("class") || tok.Is("interface") || tok.Is("dispinterface") || tok.Is("object")):
			depth++
		case depth > 0 && x.at(j-1).IsSymbol("=") &&
			(tok.Is("class") || tok.Is("interface") || tok.Is("dispinterface") || tok.Is("object")):
			if x.opensBody(j) {
				depth++
			}
		}
		j++
	}
	return j
}

// skipParens returns the index after the ')' matching the '(' at j.
func (x *extractor) skipParens(j int) int {
	depth := 0
	for j < len(x.toks) {
		tok := x.toks[j]
		if tok.IsSymbol("(") {
			depth++
		} else if tok.IsSymbol(")") {
			depth--
			if depth == 0 {
				return j + 1
			}
		}
		j++
	}
	return j
}

// skipToSemicolon returns the index after the next ';' outside brackets and
// inline bodies such as "array[0..1] of record ... end".
// Hint directives after a closing "end" ("end deprecated;") are consumed.
func (x *extractor) skipToSemicolon(j int) int {
	depth := 0
	for j < len(x.toks) {
		tok := x.toks[j]
		switch {
		case tok.Is("record") || (tok.Is("object") && x.opensBody(j)):
			j = x.skipBody(j)
			continue
		case tok.IsSymbol("(") || tok.IsSymbol("["):
			depth++
		case tok.IsSymbol(")") || tok.IsSymbol("]"):
			if depth > 0 {
				depth--
			}
		case tok.IsSymbol(";") && depth == 0:
			return j + 1
		}
		j++
	}
	return j
}
