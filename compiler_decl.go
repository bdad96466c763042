package main

import "fmt"

// compileStructDecl parses `struct Name { var f1 var f2 … }`, registering
// an id and its ordered field names. Field names may repeat across
// structs -- struct-literal inference depends on that.
func (c *Compiler) compileStructDecl() {
	c.expect(TokKwStruct)
	nameTok := c.expect(TokIdent)
	mangled := c.ns.mangle(nameTok.Text)
	c.expect(TokLBrace)

	var fields []string
	for c.lex.Peek().Kind != TokRBrace {
		c.expect(TokKwVar)
		fieldTok := c.expect(TokIdent)
		fields = append(fields, fieldTok.Text)
		if c.lex.Peek().Kind == TokComma {
			c.lex.Next()
		}
	}
	c.expect(TokRBrace)

	c.structs.declare(mangled, fields)
	if mangled != nameTok.Text {
		c.structs.declare(nameTok.Text, fields)
	}
}

// compileEnumDecl parses `enum Name { A, B, C }`, registering ordinal
// constants Name_A=0, Name_B=1, … into the enum table. Enums have no
// runtime representation beyond the numeric constants their members
// compile to.
func (c *Compiler) compileEnumDecl() {
	c.expect(TokKwEnum)
	nameTok := c.expect(TokIdent)
	mangledName := c.ns.mangle(nameTok.Text)
	c.expect(TokLBrace)

	ordinal := 0
	for c.lex.Peek().Kind != TokRBrace {
		memberTok := c.expect(TokIdent)
		c.enums.declare(mangledName+"_"+memberTok.Text, ordinal)
		if mangledName != nameTok.Text {
			c.enums.declare(nameTok.Text+"_"+memberTok.Text, ordinal)
		}
		ordinal++
		if c.lex.Peek().Kind == TokComma {
			c.lex.Next()
		}
	}
	c.expect(TokRBrace)
}

// compileModBlock enters a namespace, mangling every function/global/
// struct/enum name declared directly inside it with a "Foo_" prefix; uses
// inside the block see both the mangled and unmangled forms via
// resolveVar's fallback chain.
func (c *Compiler) compileModBlock() {
	c.expect(TokKwMod)
	nameTok := c.expect(TokIdent)
	restore := c.ns.enter(nameTok.Text)
	c.expect(TokLBrace)
	for c.lex.Peek().Kind != TokRBrace {
		c.compileTopLevelStmt()
	}
	c.expect(TokRBrace)
	restore()
}

// compileFuncDecl compiles `fn name(params) { body }`. Because the
// function body is emitted inline in the same linear code array as
// top-level statements, a JMP is threaded around it so ordinary top-to-
// bottom execution never falls into a body except via CALL.
func (c *Compiler) compileFuncDecl() {
	tok := c.expect(TokKwFn)
	nameTok := c.expect(TokIdent)
	mangled := c.ns.mangle(nameTok.Text)

	c.expect(TokLParen)
	var params []string
	if c.lex.Peek().Kind != TokRParen {
		params = append(params, c.expect(TokIdent).Text)
		for c.lex.Peek().Kind == TokComma {
			c.lex.Next()
			params = append(params, c.expect(TokIdent).Text)
		}
	}
	c.expect(TokRParen)
	c.expect(TokLBrace)

	skip := c.img.emit(OpJmp, tok.Line, 0)
	entry := c.img.here()
	c.img.Funcs[mangled] = entry
	c.funcs.byName[mangled] = entry
	if mangled != nameTok.Text {
		c.img.Funcs[nameTok.Text] = entry
		c.funcs.byName[nameTok.Text] = entry
	}

	extra := c.countFunctionLocals()

	savedLocals := c.locals
	savedLoops := c.loops
	c.locals = newLocalScope()
	c.loops = loopStack{}
	for _, p := range params {
		c.locals.declare(p, -1, false)
	}
	for i := 0; i < extra; i++ {
		c.img.emit(OpPshNum, tok.Line, int32(c.zeroConst))
	}

	c.compileBlockStmts()

	// Defensive fallthrough: every body is expected to end in `ret`, but a
	// stray fallthrough returns zero rather than executing whatever bytes
	// happen to follow.
	c.img.emit(OpPshNum, c.curLine(), int32(c.zeroConst))
	c.img.emit(OpRet, c.curLine())

	c.locals = savedLocals
	c.loops = savedLoops

	c.img.patchJumpOperand(skip+1, c.img.here())
}

// countFunctionLocals performs a side-effect-free lookahead scan (lexer
// snapshot/restore, the same idiom isAssignmentAhead uses) to
// count how many local slots beyond the parameters a function body will
// need, so the compiler can reserve them with a single run of PSH_NUM
// placeholders before compiling the body. Every `var` contributes one
// slot; every `for` contributes two (range-for needs end+step, collection-
// for needs a coll ref + index, conditional-for needs none but still
// reserves two to keep this count exact) -- see compileFor.
func (c *Compiler) countFunctionLocals() int {
	snap := c.lex.snapshot()
	defer c.lex.restore(snap)

	depth := 0
	count := 0
	for {
		tok := c.lex.Peek()
		if tok.Kind == TokEOF {
			break
		}
		if tok.Kind == TokLBrace {
			depth++
			c.lex.Next()
			continue
		}
		if tok.Kind == TokRBrace {
			if depth == 0 {
				break
			}
			depth--
			c.lex.Next()
			continue
		}
		if tok.Kind == TokKwVar {
			count++
		}
		if tok.Kind == TokKwFor {
			count += 2
		}
		c.lex.Next()
	}
	return count
}

func (c *Compiler) declareHidden(prefix string) (varInfo, bool) {
	c.loopCounter++
	name := fmt.Sprintf("%s_%d", prefix, c.loopCounter)
	return c.declareVar(name, -1, false)
}

func (c *Compiler) storeInto(info varInfo, isLocal bool, line int) {
	if isLocal {
		c.img.emit(OpSVar, line, int32(info.slot))
	} else {
		c.img.emit(OpSet, line, int32(info.slot))
	}
}

func (c *Compiler) loadFrom(info varInfo, isLocal bool, line int) {
	if isLocal {
		c.img.emit(OpLVar, line, int32(info.slot))
	} else {
		c.img.emit(OpGet, line, int32(info.slot))
	}
}

func (c *Compiler) compileFor() {
	tok := c.expect(TokKwFor)
	c.expect(TokLParen)
	frame := c.loops.push()

	if c.lex.Peek().Kind == TokKwVar {
		c.compileVarFor(tok, frame)
	} else {
		c.compileConditionalFor(tok, frame)
	}

	c.loops.pop()
}

// compileVarFor handles both loop-variable shapes: range (`var i in
// start...end`) and collection (`var x in coll`). Both begin by compiling
// a single expression; whichever token follows it (`...` or not)
// determines the shape.
func (c *Compiler) compileVarFor(tok Token, frame *loopFrame) {
	c.expect(TokKwVar)
	nameTok := c.expect(TokIdent)
	c.expect(TokKwIn)

	iterInfo, iterLocal := c.declareVar(nameTok.Text, -1, false)

	line := c.curLine()
	c.compileExpr()

	if c.lex.Peek().Kind == TokDotDotDot {
		c.lex.Next()
		c.compileRangeFor(frame, iterInfo, iterLocal, line)
		return
	}
	c.compileCollectionFor(frame, iterInfo, iterLocal, line)
}

func (c *Compiler) compileRangeFor(frame *loopFrame, iterInfo varInfo, iterLocal bool, line int) {
	c.compileExpr() // end
	c.expect(TokRParen)

	endInfo, endLocal := c.declareHidden("$for_end")
	stepInfo, stepLocal := c.declareHidden("$for_step")

	c.storeInto(endInfo, endLocal, line)  // stack: [start]
	c.storeInto(iterInfo, iterLocal, line) // stack: []

	c.loadFrom(iterInfo, iterLocal, line)
	c.loadFrom(endInfo, endLocal, line)
	c.img.emit(OpLe, line)
	jz := c.img.emit(OpJz, line, 0)
	oneIdx := c.internConst(1)
	c.img.emit(OpPshNum, line, int32(oneIdx))
	jmp := c.img.emit(OpJmp, line, 0)
	c.img.patchJumpOperand(jz+1, c.img.here())
	negOneIdx := c.internConst(-1)
	c.img.emit(OpPshNum, line, int32(negOneIdx))
	c.img.patchJumpOperand(jmp+1, c.img.here())
	c.storeInto(stepInfo, stepLocal, line)

	condAddr := c.img.here()
	c.loadFrom(iterInfo, iterLocal, line)
	c.loadFrom(endInfo, endLocal, line)
	c.loadFrom(stepInfo, stepLocal, line)
	c.img.emit(OpAdd, line)
	c.img.emit(OpNeq, line)
	exitJz := c.img.emit(OpJz, line, 0)

	c.expect(TokLBrace)
	c.compileBlockStmts()

	continueAddr := c.img.here()
	c.loadFrom(iterInfo, iterLocal, line)
	c.loadFrom(stepInfo, stepLocal, line)
	c.img.emit(OpAdd, line)
	c.storeInto(iterInfo, iterLocal, line)
	c.img.emit(OpJmp, line, int32(condAddr))

	exitAddr := c.img.here()
	c.img.patchJumpOperand(exitJz+1, exitAddr)
	frame.resolve(c.img, continueAddr, exitAddr)
}

func (c *Compiler) compileCollectionFor(frame *loopFrame, iterInfo varInfo, iterLocal bool, line int) {
	c.expect(TokRParen)

	collInfo, collLocal := c.declareHidden("$for_coll")
	idxInfo, idxLocal := c.declareHidden("$for_idx")

	c.storeInto(collInfo, collLocal, line)
	zeroIdx := c.internConst(0)
	c.img.emit(OpPshNum, line, int32(zeroIdx))
	c.storeInto(idxInfo, idxLocal, line)

	condAddr := c.img.here()
	c.loadFrom(idxInfo, idxLocal, line)
	c.loadFrom(collInfo, collLocal, line)
	c.img.emit(OpALen, line)
	c.img.emit(OpLt, line)
	exitJz := c.img.emit(OpJz, line, 0)

	c.loadFrom(collInfo, collLocal, line)
	c.loadFrom(idxInfo, idxLocal, line)
	c.img.emit(OpAGet, line)
	c.storeInto(iterInfo, iterLocal, line)

	c.expect(TokLBrace)
	c.compileBlockStmts()

	continueAddr := c.img.here()
	c.loadFrom(idxInfo, idxLocal, line)
	oneIdx := c.internConst(1)
	c.img.emit(OpPshNum, line, int32(oneIdx))
	c.img.emit(OpAdd, line)
	c.storeInto(idxInfo, idxLocal, line)
	c.img.emit(OpJmp, line, int32(condAddr))

	exitAddr := c.img.here()
	c.img.patchJumpOperand(exitJz+1, exitAddr)
	frame.resolve(c.img, continueAddr, exitAddr)
}

// compileConditionalFor handles `for (expr) { body }`: a plain while loop
// where zero ends it. It still reserves (and never uses) two hidden
// slots, to match the fixed +2-per-for accounting countFunctionLocals
// relies on.
func (c *Compiler) compileConditionalFor(tok Token, frame *loopFrame) {
	c.declareHidden("$for_a")
	c.declareHidden("$for_b")

	condAddr := c.img.here()
	line := c.curLine()
	c.compileExpr()
	c.expect(TokRParen)
	exitJz := c.img.emit(OpJz, line, 0)

	c.expect(TokLBrace)
	c.compileBlockStmts()

	c.img.emit(OpJmp, line, int32(condAddr))
	exitAddr := c.img.here()
	c.img.patchJumpOperand(exitJz+1, exitAddr)
	frame.resolve(c.img, condAddr, exitAddr)
}
