package main

// Expression compiling: recursive descent with the precedence chain
// ternary (?:) > comparisons > additive > multiplicative > unary/primary.
// Every level always leaves exactly one value on the operand stack; only
// compileAssignmentStmt (compiler.go) ever leaves zero or re-pushes one via
// a store opcode.

func (c *Compiler) compileExpr() {
	c.compileTernary()
}

func (c *Compiler) compileTernary() {
	line := c.curLine()
	c.compileComparison()
	if c.lex.Peek().Kind != TokQuestion {
		return
	}
	c.lex.Next()
	jz := c.img.emit(OpJz, line, 0)
	c.compileTernary()
	jmp := c.img.emit(OpJmp, c.curLine(), 0)
	c.img.patchJumpOperand(jz+1, c.img.here())
	c.expect(TokColon)
	c.compileTernary()
	c.img.patchJumpOperand(jmp+1, c.img.here())
}

func (c *Compiler) compileComparison() {
	c.compileAdditive()
	for {
		line := c.curLine()
		switch c.lex.Peek().Kind {
		case TokEqEq:
			c.lex.Next()
			c.compileAdditive()
			c.img.emit(OpEq, line)
		case TokBangEq:
			c.lex.Next()
			c.compileAdditive()
			c.img.emit(OpNeq, line)
		case TokLt:
			c.lex.Next()
			c.compileAdditive()
			c.img.emit(OpLt, line)
		case TokGt:
			c.lex.Next()
			c.compileAdditive()
			c.img.emit(OpGt, line)
		case TokLe:
			c.lex.Next()
			c.compileAdditive()
			c.img.emit(OpLe, line)
		case TokGe:
			c.lex.Next()
			c.compileAdditive()
			c.img.emit(OpGe, line)
		default:
			return
		}
	}
}

func (c *Compiler) compileAdditive() {
	c.compileMultiplicative()
	for {
		line := c.curLine()
		switch c.lex.Peek().Kind {
		case TokPlus:
			c.lex.Next()
			c.compileMultiplicative()
			c.img.emit(OpAdd, line)
		case TokMinus:
			c.lex.Next()
			c.compileMultiplicative()
			c.img.emit(OpSub, line)
		default:
			return
		}
	}
}

func (c *Compiler) compileMultiplicative() {
	c.compileUnary()
	for {
		line := c.curLine()
		switch c.lex.Peek().Kind {
		case TokStar:
			c.lex.Next()
			c.compileUnary()
			c.img.emit(OpMul, line)
		case TokSlash:
			c.lex.Next()
			c.compileUnary()
			c.img.emit(OpDiv, line)
		case TokPercent:
			c.lex.Next()
			c.compileUnary()
			c.img.emit(OpMod, line)
		default:
			return
		}
	}
}

func (c *Compiler) compileUnary() {
	if c.lex.Peek().Kind == TokMinus {
		line := c.lex.Next().Line
		c.img.emit(OpPshNum, line, int32(c.zeroConst))
		c.compileUnary()
		c.img.emit(OpSub, line)
		return
	}
	c.compilePrimary()
}

func (c *Compiler) compilePrimary() {
	tok := c.lex.Peek()
	switch tok.Kind {
	case TokNumber:
		c.lex.Next()
		idx := c.internConst(tok.Num)
		c.img.emit(OpPshNum, tok.Line, int32(idx))
	case TokString:
		c.lex.Next()
		idx := c.internString(tok.Text)
		c.img.emit(OpPshStr, tok.Line, int32(idx))
	case TokFString:
		c.lex.Next()
		c.compileFString(tok)
	case TokKwTrue:
		c.lex.Next()
		idx := c.internConst(1)
		c.img.emit(OpPshNum, tok.Line, int32(idx))
	case TokKwFalse:
		c.lex.Next()
		c.img.emit(OpPshNum, tok.Line, int32(c.zeroConst))
	case TokLParen:
		c.lex.Next()
		c.compileExpr()
		c.expect(TokRParen)
	case TokLBracket:
		c.compileArrayLiteral()
	case TokLBrace:
		c.compileBraceLiteral("")
	case TokIdent:
		c.compileIdentPrimary()
	default:
		c.fail(tok.Line, "unexpected token %v", tok.Kind)
	}
}

// compileIdentPrimary handles every form that can start with an
// identifier in expression position: a bare variable load, a call (plain
// or namespace-qualified), an enum member reference, or any of those
// followed by index/slice/field access.
func (c *Compiler) compileIdentPrimary() {
	tok := c.expect(TokIdent)
	name, line := tok.Text, tok.Line

	if c.lex.Peek().Kind == TokColonColon {
		c.lex.Next()
		memberTok := c.expect(TokIdent)
		mangled := name + "_" + memberTok.Text

		if c.lex.Peek().Kind == TokLParen {
			c.compileCallArgs([]string{mangled}, "", line)
			return
		}
		ord, ok := c.enums.lookup(mangled)
		if !ok {
			c.fail(memberTok.Line, "undefined enum member %q", mangled)
		}
		idx := c.internConst(ord)
		c.img.emit(OpPshNum, line, int32(idx))
		return
	}

	if c.lex.Peek().Kind == TokLParen {
		c.compileCallArgs([]string{c.ns.mangle(name), name}, name, line)
		return
	}

	info := c.loadVar(name, line)
	c.compilePostfixChain(info)
}

// compilePostfixChain compiles any run of [idx], [lo:hi], or .field
// following an already-loaded value. info describes the static shape of
// the value currently on top of the stack (only ever known precisely for
// the first hop; deeper chains fall back to an untyped result, matching
// the Non-goal of full static type inference).
func (c *Compiler) compilePostfixChain(info varInfo) {
	for {
		switch c.lex.Peek().Kind {
		case TokLBracket:
			line := c.lex.Next().Line
			c.compileExpr()
			if c.lex.Peek().Kind == TokColon {
				c.lex.Next()
				c.compileExpr()
				c.expect(TokRBracket)
				c.img.emit(OpSlice, line)
			} else {
				c.expect(TokRBracket)
				c.img.emit(OpAGet, line)
			}
			info = varInfo{structID: -1}
		case TokDot:
			c.lex.Next()
			fieldTok := c.expect(TokIdent)
			if info.structID < 0 || info.structID >= len(c.structs.layouts) {
				c.fail(fieldTok.Line, "member access through a non-struct")
			}
			layout := c.structs.layouts[info.structID]
			offset, ok := layout.fieldOffset(fieldTok.Text)
			if !ok {
				c.fail(fieldTok.Line, "struct %q has no field %q", layout.Name, fieldTok.Text)
			}
			c.img.emit(OpHGet, fieldTok.Line, int32(offset), int32(info.structID))
			info = varInfo{structID: -1}
		default:
			return
		}
	}
}

// compileCallArgs compiles a parenthesized argument list and emits CALL or
// NATIVE. candidates is tried in order against the user-function table;
// nativeName (empty for namespace-qualified calls, which never resolve to
// natives) is tried against the native registry; if neither resolves, the
// call is assumed to be a forward reference and patched once the whole
// program has been compiled.
func (c *Compiler) compileCallArgs(candidates []string, nativeName string, line int) {
	c.expect(TokLParen)
	n := 0
	if c.lex.Peek().Kind != TokRParen {
		c.compileExpr()
		n++
		for c.lex.Peek().Kind == TokComma {
			c.lex.Next()
			c.compileExpr()
			n++
		}
	}
	c.expect(TokRParen)

	for _, cand := range candidates {
		if addr, ok := c.funcs.byName[cand]; ok {
			c.img.emit(OpCall, line, int32(addr), int32(n))
			return
		}
	}
	if nativeName != "" {
		if id, arity, ok := c.natives.Lookup(nativeName); ok {
			if arity != n {
				c.fail(line, "native %q expects %d argument(s), got %d", nativeName, arity, n)
			}
			c.img.emit(OpNative, line, int32(id))
			return
		}
	}

	addr := c.img.emit(OpCall, line, 0, int32(n))
	c.pendingCalls = append(c.pendingCalls, pendingCall{operandAddr: addr + 1, name: candidates[0], line: line})
}

func (c *Compiler) compileArrayLiteral() {
	line := c.expect(TokLBracket).Line
	n := 0
	if c.lex.Peek().Kind != TokRBracket {
		c.compileExpr()
		n++
		for c.lex.Peek().Kind == TokComma {
			c.lex.Next()
			c.compileExpr()
			n++
		}
	}
	c.expect(TokRBracket)
	c.img.emit(OpArr, line, int32(n))
}

// compileBraceLiteral compiles either a map literal ({"key"=expr, ...}) or
// a struct literal ({field=expr, ...}), disambiguated by the first entry's
// key token (string literal vs identifier). typeHint, when non-empty,
// names the struct to use instead of inferring one from the first field.
func (c *Compiler) compileBraceLiteral(typeHint string) (structID int, isArray bool) {
	line := c.expect(TokLBrace).Line
	if c.lex.Peek().Kind == TokRBrace {
		c.lex.Next()
		c.img.emit(OpMap, line)
		return -1, false
	}
	if c.lex.Peek().Kind == TokString {
		return c.compileMapLiteral(line)
	}
	return c.compileStructLiteral(line, typeHint)
}

func (c *Compiler) compileMapLiteral(line int) (int, bool) {
	c.img.emit(OpMap, line)
	for {
		keyTok := c.expect(TokString)
		c.expect(TokEq)
		c.img.emit(OpDup, keyTok.Line)
		keyIdx := c.internString(keyTok.Text)
		c.img.emit(OpPshStr, keyTok.Line, int32(keyIdx))
		c.compileExpr()
		c.img.emit(OpASet, keyTok.Line)
		c.img.emit(OpPop, keyTok.Line)
		if c.lex.Peek().Kind != TokComma {
			break
		}
		c.lex.Next()
	}
	c.expect(TokRBrace)
	return -1, false
}

func (c *Compiler) compileStructLiteral(line int, typeHint string) (int, bool) {
	structID := -1
	if typeHint != "" {
		id, ok := c.structs.lookup(typeHint)
		if !ok {
			c.fail(line, "undefined struct %q", typeHint)
		}
		structID = id
	}

	firstTok := c.expect(TokIdent)
	if structID < 0 {
		id, ok := c.structs.findByFirstField(firstTok.Text)
		if !ok {
			c.fail(firstTok.Line, "cannot infer struct type from field %q", firstTok.Text)
		}
		structID = id
	}
	layout := c.structs.layouts[structID]
	c.img.emit(OpAlloc, line, int32(len(layout.Fields)), int32(structID))

	c.expect(TokEq)
	c.compileStructFieldStore(firstTok, structID, layout)
	for c.lex.Peek().Kind == TokComma {
		c.lex.Next()
		fieldTok := c.expect(TokIdent)
		c.expect(TokEq)
		c.compileStructFieldStore(fieldTok, structID, layout)
	}
	c.expect(TokRBrace)
	return structID, false
}

func (c *Compiler) compileStructFieldStore(fieldTok Token, structID int, layout StructLayout) {
	offset, ok := layout.fieldOffset(fieldTok.Text)
	if !ok {
		c.fail(fieldTok.Line, "struct %q has no field %q", layout.Name, fieldTok.Text)
	}
	c.img.emit(OpDup, fieldTok.Line)
	c.compileExpr()
	c.img.emit(OpHSet, fieldTok.Line, int32(offset), int32(structID))
}

type interpSeg struct {
	text   string
	isExpr bool
}

// splitInterpSegments breaks an f-string's raw template text into
// alternating literal and {expr} segments, tracking brace depth so a
// struct or map literal inside an interpolated expression doesn't
// terminate it early.
func splitInterpSegments(s string) []interpSeg {
	var segs []interpSeg
	var buf []byte
	i := 0
	for i < len(s) {
		if s[i] == '{' {
			if len(buf) > 0 {
				segs = append(segs, interpSeg{text: string(buf)})
				buf = nil
			}
			depth := 1
			j := i + 1
			for j < len(s) && depth > 0 {
				switch s[j] {
				case '{':
					depth++
				case '}':
					depth--
					if depth == 0 {
						goto found
					}
				}
				j++
			}
		found:
			segs = append(segs, interpSeg{text: s[i+1 : j], isExpr: true})
			i = j + 1
			continue
		}
		buf = append(buf, s[i])
		i++
	}
	if len(buf) > 0 {
		segs = append(segs, interpSeg{text: string(buf)})
	}
	return segs
}

// compileFString lowers an interpolated string into a chain of PSH_STR /
// NATIVE(str) / CAT instructions, reusing str() to stringify each embedded
// expression's result regardless of its runtime type.
func (c *Compiler) compileFString(tok Token) {
	line := tok.Line
	segs := splitInterpSegments(tok.Text)
	if len(segs) == 0 {
		idx := c.internString("")
		c.img.emit(OpPshStr, line, int32(idx))
		return
	}

	strID, _, ok := c.natives.Lookup("str")
	if !ok {
		c.fail(line, "native \"str\" not registered")
	}

	for i, seg := range segs {
		if seg.isExpr {
			sub := NewLexer(seg.text)
			saved := c.lex
			c.lex = sub
			c.compileExpr()
			if c.lex.Peek().Kind != TokEOF {
				c.fail(line, "malformed interpolation expression %q", seg.text)
			}
			c.lex = saved
			c.img.emit(OpNative, line, int32(strID))
		} else {
			idx := c.internString(seg.text)
			c.img.emit(OpPshStr, line, int32(idx))
		}
		if i > 0 {
			c.img.emit(OpCat, line)
		}
	}
}
