package main

import (
	"path/filepath"

	"github.com/jcorbin/mylo/internal/fileinput"
)

// Compiler is a single-pass recursive-descent parser/emitter: it holds the
// lexer, the bytecode image being built, and every compile-time symbol
// table. All of these tables are discarded once Compile returns -- they
// live only for the duration of compilation.
type Compiler struct {
	lex *Lexer
	img *Image

	globals *globalTable
	locals  *localScope // nil outside any function body
	funcs   *funcTable
	structs *structTable
	enums   *enumTable
	ns      namespaceStack
	loops   loopStack

	natives *NativeRegistry

	baseDir     string
	searchPaths []string

	pendingCalls []pendingCall
	zeroConst    int // interned 0.0, used to reserve local slots and as numeric false
	emptyStr     int // interned "", used as the map-miss sentinel
	loopCounter  int // disambiguates hidden per-loop slot names
}

// pendingCall records a CALL emitted against a function name not yet known
// at the time of emission; resolved once compilation of the whole program
// (including every nested import) completes.
type pendingCall struct {
	operandAddr int // address of the target-address operand to patch
	name        string
	line        int
}

// CompileOption configures a Compiler via the functional options idiom
// (see options.go).
type CompileOption interface{ apply(c *Compiler) }

type compileOptionFunc func(c *Compiler)

func (f compileOptionFunc) apply(c *Compiler) { f(c) }

// WithSearchPath appends a directory to the list consulted by later
// imports, equivalent to a module_path("dir") statement issued before
// compilation starts.
func WithSearchPath(dir string) CompileOption {
	return compileOptionFunc(func(c *Compiler) { c.searchPaths = append(c.searchPaths, dir) })
}

// WithNatives overrides the default native-function registry.
func WithNatives(reg *NativeRegistry) CompileOption {
	return compileOptionFunc(func(c *Compiler) { c.natives = reg })
}

func newCompiler(src, baseDir string) *Compiler {
	c := &Compiler{
		lex:     NewLexer(src),
		img:     newImage(),
		globals: newGlobalTable(),
		funcs:   newFuncTable(),
		structs: newStructTable(),
		enums:   newEnumTable(),
		natives: defaultNatives(),
		baseDir: baseDir,
	}
	c.zeroConst, _ = c.img.Consts.Intern(0)
	c.emptyStr, _ = c.img.Strings.Intern("")
	return c
}

// Compile parses and emits the whole program rooted at src (whose imports,
// if any, are resolved relative to baseDir and any configured search
// paths), returning the finished bytecode Image.
func Compile(src, baseDir string, opts ...CompileOption) (img *Image, err error) {
	c := newCompiler(src, baseDir)
	for _, opt := range opts {
		opt.apply(c)
	}

	defer func() {
		if r := recover(); r != nil {
			if ce, ok := r.(CompileError); ok {
				err = ce
				return
			}
			panic(r)
		}
	}()

	c.compileUnit()
	c.resolvePendingCalls()
	c.img.Structs = c.structs.layouts
	c.img.emit(OpHlt, c.curLine())
	return c.img, nil
}

func (c *Compiler) internConst(n float64) int {
	idx, err := c.img.Consts.Intern(n)
	if err != nil {
		c.fail(c.curLine(), "%v", err)
	}
	return idx
}

func (c *Compiler) internString(s string) int {
	idx, err := c.img.Strings.Intern(s)
	if err != nil {
		c.fail(c.curLine(), "%v", err)
	}
	return idx
}

func (c *Compiler) curLine() int { return c.lex.Peek().Line }

func (c *Compiler) fail(line int, format string, args ...interface{}) {
	panic(compileErrorf(line, format, args...))
}

func (c *Compiler) expect(k Kind) Token {
	t := c.lex.Peek()
	if t.Kind != k {
		c.fail(t.Line, "expected %v, got %v", k, t.Kind)
	}
	return c.lex.Next()
}

// compileUnit compiles every top-level statement of the current lexer
// until EOF. It is called both for the main source and, recursively with a
// swapped-in lexer, for each imported file -- the shared symbol tables and
// Image are what make imports textual inclusion into the same bytecode
// image, rather than separate compilation units.
func (c *Compiler) compileUnit() {
	for c.lex.Peek().Kind != TokEOF {
		c.compileTopLevelStmt()
	}
}

func (c *Compiler) compileTopLevelStmt() {
	switch c.lex.Peek().Kind {
	case TokKwImport:
		c.compileImport()
	case TokKwModulePath:
		c.compileModulePath()
	case TokKwMod:
		c.compileModBlock()
	case TokKwStruct:
		c.compileStructDecl()
	case TokKwEnum:
		c.compileEnumDecl()
	case TokKwFn:
		c.compileFuncDecl()
	default:
		c.compileStmt()
	}
}

// compileBlockStmts compiles statements up to (and consuming) a closing
// '}'. The opening '{' must already have been consumed by the caller.
func (c *Compiler) compileBlockStmts() {
	for c.lex.Peek().Kind != TokRBrace {
		if c.lex.Peek().Kind == TokEOF {
			c.fail(c.curLine(), "unexpected end of input, expected %v", TokRBrace)
		}
		c.compileStmt()
	}
	c.expect(TokRBrace)
}

func (c *Compiler) compileStmt() {
	switch c.lex.Peek().Kind {
	case TokKwVar:
		c.compileVarDecl()
	case TokKwIf:
		c.compileIf()
	case TokKwFor:
		c.compileFor()
	case TokKwRet:
		c.compileReturn()
	case TokKwPrint:
		c.compilePrint()
	case TokKwBreak:
		c.compileBreak()
	case TokKwContinue:
		c.compileContinue()
	case TokKwModulePath:
		c.compileModulePath()
	case TokLBrace:
		c.expect(TokLBrace)
		c.compileBlockStmts()
	default:
		c.compileExprOrAssignStmt()
	}
}

func (c *Compiler) compileExprOrAssignStmt() {
	if c.lex.Peek().Kind == TokIdent && c.isAssignmentAhead() {
		c.compileAssignmentStmt()
		return
	}
	line := c.curLine()
	c.compileExpr()
	c.img.emit(OpPop, line)
}

// isAssignmentAhead performs a pure, side-effect-free lookahead (via
// lexer snapshot/restore) to classify whether the identifier at the
// current position starts an assignment statement (name = ..., name.field
// = ..., name[idx] = ...) as opposed to a plain expression.
func (c *Compiler) isAssignmentAhead() bool {
	snap := c.lex.snapshot()
	defer c.lex.restore(snap)

	if c.lex.Peek().Kind != TokIdent {
		return false
	}
	c.lex.Next()

	switch c.lex.Peek().Kind {
	case TokEq:
		return true
	case TokDot:
		c.lex.Next()
		if c.lex.Peek().Kind != TokIdent {
			return false
		}
		c.lex.Next()
		return c.lex.Peek().Kind == TokEq
	case TokLBracket:
		c.lex.Next()
		depth := 1
		for depth > 0 {
			k := c.lex.Peek().Kind
			if k == TokEOF {
				return false
			}
			if k == TokLBracket {
				depth++
			}
			if k == TokRBracket {
				depth--
			}
			c.lex.Next()
		}
		return c.lex.Peek().Kind == TokEq
	default:
		return false
	}
}

func (c *Compiler) compileAssignmentStmt() {
	nameTok := c.expect(TokIdent)
	name, line := nameTok.Text, nameTok.Line

	switch c.lex.Peek().Kind {
	case TokDot:
		c.lex.Next()
		fieldTok := c.expect(TokIdent)
		c.expect(TokEq)

		info, _, found := c.resolveVar(name)
		if !found {
			c.fail(line, "undefined identifier %q", name)
		}
		if info.structID < 0 || info.structID >= len(c.structs.layouts) {
			c.fail(line, "member access through a non-struct: %q", name)
		}
		layout := c.structs.layouts[info.structID]
		offset, ok := layout.fieldOffset(fieldTok.Text)
		if !ok {
			c.fail(fieldTok.Line, "struct %q has no field %q", layout.Name, fieldTok.Text)
		}
		c.loadVar(name, line)
		c.compileExpr()
		c.img.emit(OpHSet, line, int32(offset), int32(info.structID))

	case TokLBracket:
		c.lex.Next()
		c.loadVar(name, line)
		c.compileExpr()
		c.expect(TokRBracket)
		c.expect(TokEq)
		c.compileExpr()
		c.img.emit(OpASet, line)
		c.img.emit(OpPop, line) // ASET re-pushes the stored value; discard it

	default:
		c.expect(TokEq)
		c.compileExpr()
		c.storeVar(name, line)
	}
}

// resolveVar implements the variable lookup order: local frame, then
// current-namespace-mangled global, then bare global.
func (c *Compiler) resolveVar(name string) (info varInfo, isLocal bool, found bool) {
	if c.locals != nil {
		if info, ok := c.locals.lookup(name); ok {
			return info, true, true
		}
	}
	mangled := c.ns.mangle(name)
	if info, ok := c.globals.lookup(mangled); ok {
		return info, false, true
	}
	if info, ok := c.globals.lookup(name); ok {
		return info, false, true
	}
	return varInfo{}, false, false
}

func (c *Compiler) loadVar(name string, line int) varInfo {
	info, isLocal, found := c.resolveVar(name)
	if !found {
		c.fail(line, "undefined identifier %q", name)
	}
	if isLocal {
		c.img.emit(OpLVar, line, int32(info.slot))
	} else {
		c.img.emit(OpGet, line, int32(info.slot))
	}
	return info
}

func (c *Compiler) storeVar(name string, line int) varInfo {
	info, isLocal, found := c.resolveVar(name)
	if !found {
		c.fail(line, "undefined identifier %q", name)
	}
	if isLocal {
		c.img.emit(OpSVar, line, int32(info.slot))
	} else {
		c.img.emit(OpSet, line, int32(info.slot))
	}
	return info
}

// declareVar registers a new name (local if inside a function, else a
// namespace-mangled global) and returns enough info for storeDeclared to
// emit the matching store.
func (c *Compiler) declareVar(name string, structID int, isArray bool) (info varInfo, isLocal bool) {
	if c.locals != nil {
		return c.locals.declare(name, structID, isArray), true
	}
	mangled := c.ns.mangle(name)
	return c.globals.declare(mangled, structID, isArray), false
}

func (c *Compiler) storeDeclared(info varInfo, isLocal bool, line int) {
	if isLocal {
		c.img.emit(OpSVar, line, int32(info.slot))
	} else {
		c.img.emit(OpSet, line, int32(info.slot))
	}
}

func (c *Compiler) compileVarDecl() {
	c.expect(TokKwVar)
	nameTok := c.expect(TokIdent)
	typeHint := ""
	if c.lex.Peek().Kind == TokColon {
		c.lex.Next()
		typeHint = c.expect(TokIdent).Text
	}
	c.expect(TokEq)

	structID, isArray := c.compileVarInitializer(typeHint)
	info, isLocal := c.declareVar(nameTok.Text, structID, isArray)
	c.storeDeclared(info, isLocal, nameTok.Line)
}

// compileVarInitializer compiles the right-hand side of a var declaration
// and returns what static struct/array shape (if any) can be determined
// without a general type system -- only declared struct/field names are
// tracked, never arbitrary static types.
func (c *Compiler) compileVarInitializer(typeHint string) (structID int, isArray bool) {
	switch c.lex.Peek().Kind {
	case TokLBracket:
		c.compileArrayLiteral()
		return -1, true
	case TokLBrace:
		return c.compileBraceLiteral(typeHint)
	default:
		c.compileExpr()
		return -1, false
	}
}

func (c *Compiler) compileModulePath() {
	tok := c.expect(TokKwModulePath)
	c.expect(TokLParen)
	pathTok := c.expect(TokString)
	c.expect(TokRParen)
	_ = tok
	c.searchPaths = append(c.searchPaths, pathTok.Text)
}

// compileImport resolves "path" against the directory of the current file
// (which may itself be a nested import) followed by every module_path(...)
// search directory, first hit wins, then recompiles it into the same
// Image via a saved-and-restored lexer/baseDir swap -- imports are textual
// inclusion, not a separate compilation unit.
func (c *Compiler) compileImport() {
	c.expect(TokKwImport)
	pathTok := c.expect(TokString)

	resolver := fileinput.Resolver{Dirs: append([]string{c.baseDir}, c.searchPaths...)}
	fullPath, data, err := resolver.Resolve(pathTok.Text)
	if err != nil {
		c.fail(pathTok.Line, "import %q: %v", pathTok.Text, err)
	}

	savedLex := c.lex
	savedBase := c.baseDir
	c.lex = NewLexer(string(data))
	c.baseDir = filepath.Dir(fullPath)

	c.compileUnit()

	c.lex = savedLex
	c.baseDir = savedBase
}

// resolvePendingCalls patches every CALL emitted against a function name
// not yet defined at emission time -- the single-pass compiler's answer to
// forward references, using the same backpatch idiom as jumps.
func (c *Compiler) resolvePendingCalls() {
	for _, pc := range c.pendingCalls {
		addr, ok := c.funcs.byName[pc.name]
		if !ok {
			c.fail(pc.line, "undefined function %q", pc.name)
		}
		c.img.patchInt32(pc.operandAddr, int32(addr))
	}
	c.pendingCalls = nil
}

func (c *Compiler) compileIf() {
	c.expect(TokKwIf)
	c.expect(TokLParen)
	line := c.curLine()
	c.compileExpr()
	c.expect(TokRParen)

	jzAddr := c.img.emit(OpJz, line, 0)
	c.expect(TokLBrace)
	c.compileBlockStmts()

	if c.lex.Peek().Kind == TokKwElse {
		c.lex.Next()
		jmpAddr := c.img.emit(OpJmp, c.curLine(), 0)
		c.img.patchJumpOperand(jzAddr+1, c.img.here())

		if c.lex.Peek().Kind == TokKwIf {
			c.compileIf()
		} else {
			c.expect(TokLBrace)
			c.compileBlockStmts()
		}
		c.img.patchJumpOperand(jmpAddr+1, c.img.here())
	} else {
		c.img.patchJumpOperand(jzAddr+1, c.img.here())
	}
}

func (c *Compiler) compileReturn() {
	tok := c.expect(TokKwRet)
	c.compileExpr()
	c.img.emit(OpRet, tok.Line)
}

func (c *Compiler) compilePrint() {
	tok := c.expect(TokKwPrint)
	c.expect(TokLParen)
	c.compileExpr()
	c.expect(TokRParen)
	c.img.emit(OpPrn, tok.Line)
}

func (c *Compiler) compileBreak() {
	tok := c.expect(TokKwBreak)
	frame, ok := c.loops.top()
	if !ok {
		c.fail(tok.Line, "break outside of a loop")
	}
	addr := c.img.emit(OpJmp, tok.Line, 0)
	frame.addBreak(addr + 1)
}

func (c *Compiler) compileContinue() {
	tok := c.expect(TokKwContinue)
	frame, ok := c.loops.top()
	if !ok {
		c.fail(tok.Line, "continue outside of a loop")
	}
	addr := c.img.emit(OpJmp, tok.Line, 0)
	frame.addContinue(addr + 1)
}
