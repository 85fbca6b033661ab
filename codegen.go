package jarl

// capSource describes where a captured variable's value comes from
// in the enclosing function, resolved once at compile time so the
// enclosing function knows what to push before OpMakeClosure.
type capSource struct {
	isLocal bool
	slot    int // enclosing function's local slot, or its own capture index
}

// funcCompiler holds the codegen state for a single function body
// (the top-level program counts as one, with parent == nil).
type funcCompiler struct {
	parent   *funcCompiler
	selfName string // set when this func literal is the RHS of `var selfName = func ...`, enabling named recursion

	locals   map[string]int
	nextSlot int
	paramCount int

	captureNames  []string
	captureSelf   []bool
	captureSource []capSource

	code      []uint16
	constants []Value
}

func newFuncCompiler(parent *funcCompiler) *funcCompiler {
	return &funcCompiler{parent: parent, locals: make(map[string]int)}
}

func (fc *funcCompiler) declareLocal(name string) int {
	slot := fc.nextSlot
	fc.nextSlot++
	fc.locals[name] = slot
	return slot
}

// allocTemp reserves the next slot number for compiler-internal
// bookkeeping. It is never registered by name and is never reclaimed,
// and it emits nothing: the slot only exists on the VM stack once code
// has pushed a value at that position.
func (fc *funcCompiler) allocTemp() int {
	slot := fc.nextSlot
	fc.nextSlot++
	return slot
}

func (fc *funcCompiler) addConst(v Value) int {
	fc.constants = append(fc.constants, v)
	return len(fc.constants) - 1
}

func (fc *funcCompiler) addCapture(name string, self bool, src capSource) int {
	for i, n := range fc.captureNames {
		if n == name {
			return i
		}
	}
	fc.captureNames = append(fc.captureNames, name)
	fc.captureSelf = append(fc.captureSelf, self)
	fc.captureSource = append(fc.captureSource, src)
	return len(fc.captureNames) - 1
}

// --- emit helpers -----------------------------------------------------

func (fc *funcCompiler) emit0(op Op) {
	fc.code = append(fc.code, encodeHead(op, false, false, false))
}

func (fc *funcCompiler) emitExt(op Op, operand int, dest, isInt bool) int {
	pos := len(fc.code)
	fc.code = append(fc.code, encodeHead(op, true, dest, isInt), uint16(operand))
	return pos + 1 // index of the operand word, for later patching
}

func (fc *funcCompiler) patch(operandPos int, value int) {
	fc.code[operandPos] = uint16(value)
}

func (fc *funcCompiler) here() int { return len(fc.code) }

func (fc *funcCompiler) emitPushNull()     { fc.emit0(OpPush) }
func (fc *funcCompiler) emitPushInt(v int64) {
	fc.emitExt(OpPush, int(int16(v)), false, true)
}
func (fc *funcCompiler) emitPushLocal(slot int) {
	fc.emitExt(OpPush, slot, true, false)
}
func (fc *funcCompiler) emitPushConst(v Value) {
	idx := fc.addConst(v)
	fc.emitExt(OpPush, idx, false, false)
}
func (fc *funcCompiler) emitWrite(slot int) {
	fc.emitExt(OpWrite, slot, true, false)
}
func (fc *funcCompiler) emitPop(count int) {
	if count <= 0 {
		return
	}
	fc.emitExt(OpPop, count, false, true)
}
func (fc *funcCompiler) emitReduce(count int) {
	if count <= 0 {
		return
	}
	fc.emitExt(OpReduce, count, false, true)
}

// Compiler drives code generation for a whole program, threading the
// funcCompiler chain through nested function literals.
type Compiler struct{}

// Compile parses, checks, and generates bytecode for source, returning
// the top-level Function (NumParams == NumCaptures == 0) that
// Execute/VM.Run expect.
func Compile(source []byte) (*Function, error) {
	ast, err := ParseProgram(source)
	if err != nil {
		return nil, err
	}
	if diags := CheckProgram(ast, source); diags.HasErrors() {
		return nil, diags
	}
	c := &Compiler{}
	root := newFuncCompiler(nil)
	if err := c.compileBlockBody(root, ast, true); err != nil {
		return nil, err
	}
	root.emit0(OpReturn)
	return &Function{
		Name:      "<program>",
		NumParams: 0, NumCaptures: 0,
		Code: root.code, Constants: root.constants,
	}, nil
}

// --- statements / blocks -----------------------------------------------

func flattenSeq(node *Node) []*Node {
	var out []*Node
	for node != nil {
		if node.Kind == NSeq {
			out = append(out, node.Left)
			node = node.Right
			continue
		}
		out = append(out, node)
		node = nil
	}
	return out
}

func flattenCommaLeft(node *Node) []*Node {
	if node == nil {
		return nil
	}
	if node.Kind == NExprList {
		return append(flattenCommaLeft(node.Left), node.Right)
	}
	return []*Node{node}
}

// compileBlockBody compiles an NBlock node (or any bare statement used
// as a body). Every statement leaves exactly one value on the stack
// (compileExpr's universal contract); var-decls keep theirs forever as
// a new local, every other statement's value is discarded unless it
// is the last one and keepLast is true. Locals declared directly in
// this block are stripped again before returning, via OpReduce when a
// kept value sits above them or OpPop when there is none.
func (c *Compiler) compileBlockBody(fc *funcCompiler, block *Node, keepLast bool) error {
	if block.Kind != NBlock {
		// a bare statement body: `if`/`while`/`for`/`func` only require
		// braces when the body itself is a `{ ... }` block, so a
		// single non-brace statement reaches here directly.
		return c.compileBlockBody(fc, &Node{Kind: NBlock, Pos: block.Pos, Child: block}, keepLast)
	}
	if block.Child == nil {
		if keepLast {
			fc.emitPushNull()
		}
		return nil
	}
	stmts := flattenSeq(block.Child)
	localsBefore := fc.nextSlot
	namesBefore := make(map[string]int, len(fc.locals))
	for name, slot := range fc.locals {
		namesBefore[name] = slot
	}
	localsDeclared := 0
	for i, s := range stmts {
		isLast := i == len(stmts)-1
		if err := c.compileExpr(fc, s); err != nil {
			return err
		}
		if s.Kind == NVarDecl {
			localsDeclared++
			continue
		}
		if isLast && keepLast {
			continue
		}
		fc.emitPop(1)
	}
	fc.nextSlot = localsBefore
	fc.locals = namesBefore
	lastIsValue :=len(stmts) > 0 && stmts[len(stmts)-1].Kind != NVarDecl
	if keepLast {
		if !lastIsValue {
			// last statement was a var-decl: its value already sits on
			// top, nothing further to keep; the locals below it
			// (including itself) still need stripping down to just
			// that value, so reduce by localsDeclared-1 (everything
			// but the final, kept local).
			fc.emitReduce(localsDeclared - 1)
		} else {
			fc.emitReduce(localsDeclared)
		}
	} else {
		fc.emitPop(localsDeclared)
	}
	return nil
}

// compileExpr compiles node, leaving exactly one net value on the
// stack. This holds uniformly across every NodeKind, including
// statement-shaped ones (print/assert/while/for/return/var-decl),
// which push Null after performing their effect when they would not
// otherwise leave a value.
func (c *Compiler) compileExpr(fc *funcCompiler, node *Node) error {
	switch node.Kind {
	case NIntLit:
		fc.emitPushInt(node.Int)
		return nil
	case NFloatLit:
		fc.emitPushConst(FloatValue(node.Float))
		return nil
	case NStringLit:
		fc.emitPushConst(StringValue(node.Str))
		return nil
	case NBoolLit:
		fc.emitPushConst(BoolValue(node.Bool))
		return nil
	case NNullLit:
		fc.emitPushNull()
		return nil
	case NIdent:
		return c.compileIdentLoad(fc, node.Str)

	case NNeg:
		if err := c.compileExpr(fc, node.Child); err != nil {
			return err
		}
		fc.emit0(OpNeg)
		return nil
	case NNot:
		if err := c.compileExpr(fc, node.Child); err != nil {
			return err
		}
		fc.emit0(OpNot)
		return nil

	case NAdd, NSub, NMul, NDiv, NMod, NAppendOp, NCmp, NEq, NNeq, NGt, NLt, NGeq, NLeq:
		return c.compileBinary(fc, node)

	case NOr:
		if err := c.compileExpr(fc, node.Left); err != nil {
			return err
		}
		jmp := fc.emitExt(OpJtsc, 0, true, false)
		fc.emitPop(1)
		if err := c.compileExpr(fc, node.Right); err != nil {
			return err
		}
		fc.patch(jmp, fc.here())
		return nil
	case NAnd:
		if err := c.compileExpr(fc, node.Left); err != nil {
			return err
		}
		jmp := fc.emitExt(OpJfsc, 0, true, false)
		fc.emitPop(1)
		if err := c.compileExpr(fc, node.Right); err != nil {
			return err
		}
		fc.patch(jmp, fc.here())
		return nil

	case NApply:
		if err := c.compileExpr(fc, node.Left); err != nil {
			return err
		}
		if err := c.compileExpr(fc, node.Right); err != nil {
			return err
		}
		fc.emit0(OpApply)
		return nil

	case NIndex:
		if err := c.compileExpr(fc, node.Left); err != nil {
			return err
		}
		if err := c.compileExpr(fc, node.Right); err != nil {
			return err
		}
		fc.emit0(OpGet)
		return nil

	case NSlice:
		if err := c.compileExpr(fc, node.Left); err != nil {
			return err
		}
		bounds := node.Right
		if bounds.Left != nil {
			if err := c.compileExpr(fc, bounds.Left); err != nil {
				return err
			}
		} else {
			fc.emitPushNull()
		}
		if bounds.Right != nil {
			if err := c.compileExpr(fc, bounds.Right); err != nil {
				return err
			}
		} else {
			fc.emitPushNull()
		}
		fc.emit0(OpSlice)
		return nil

	case NArray:
		return c.compileArray(fc, node)
	case NTable:
		return c.compileTable(fc, node)

	case NVarDecl:
		fc.declareLocal(node.Str)
		return c.compileVarDeclInit(fc, node)

	case NAssign, NPlusAssign, NMinusAssign, NMulAssign, NDivAssign, NModAssign, NAppendAssign:
		return c.compileAssign(fc, node)

	case NIndexAssign:
		return c.compileIndexAssign(fc, node)

	case NMove:
		return c.compileMove(fc, node)

	case NPrint:
		if err := c.compileExpr(fc, node.Child); err != nil {
			return err
		}
		fc.emit0(OpPrint)
		fc.emitPushNull()
		return nil

	case NAssert:
		if err := c.compileExpr(fc, node.Child); err != nil {
			return err
		}
		fc.emitPushConst(StringValue("assertion failed"))
		fc.emit0(OpAssert)
		fc.emitPushNull()
		return nil

	case NAssertMsg:
		if err := c.compileExpr(fc, node.Left); err != nil {
			return err
		}
		if err := c.compileExpr(fc, node.Right); err != nil {
			return err
		}
		fc.emit0(OpAssert)
		fc.emitPushNull()
		return nil

	case NReturn:
		if node.Child != nil {
			if err := c.compileExpr(fc, node.Child); err != nil {
				return err
			}
		} else {
			fc.emitPushNull()
		}
		fc.emit0(OpReturn)
		return nil

	case NIf:
		return c.compileIf(fc, node)
	case NWhile:
		return c.compileWhile(fc, node)
	case NForIn:
		return c.compileForIn(fc, node)
	case NFunc:
		return c.compileFuncLit(fc, node, "")

	case NBlock:
		return c.compileBlockBody(fc, node, true)

	default:
		return newDiagnostic("check", 0, "codegen: unhandled node kind %d", node.Kind)
	}
}

var binOpOpcode = map[NodeKind]Op{
	NAdd: OpAdd, NSub: OpSub, NMul: OpMul, NDiv: OpDiv, NMod: OpMod,
	NAppendOp: OpAppend,
	NCmp:      OpCmp, NEq: OpEq, NNeq: OpNeq, NGt: OpGt, NLt: OpLt, NGeq: OpGeq, NLeq: OpLeq,
}

func (c *Compiler) compileBinary(fc *funcCompiler, node *Node) error {
	if err := c.compileExpr(fc, node.Left); err != nil {
		return err
	}
	if err := c.compileExpr(fc, node.Right); err != nil {
		return err
	}
	fc.emit0(binOpOpcode[node.Kind])
	return nil
}

func (c *Compiler) compileVarDeclInit(fc *funcCompiler, node *Node) error {
	if node.Child.Kind == NFunc {
		return c.compileFuncLit(fc, node.Child, node.Str)
	}
	return c.compileExpr(fc, node.Child)
}

// compileIdentLoad resolves name against fc's locals, then its own
// already-established captures, then the self-binding name, then
// recursively against the enclosing function, promoting to a new
// capture on first miss -- the lazy, single-pass identifier promotion
// design.
func (c *Compiler) compileIdentLoad(fc *funcCompiler, name string) error {
	slot, isCapture, err := c.resolveIdent(fc, name)
	if err != nil {
		return err
	}
	if isCapture {
		fc.emitPushLocal(fc.captureSlotFor(slot))
		return nil
	}
	fc.emitPushLocal(slot)
	return nil
}

// captureSlotFor maps a capture index to its frame slot (captures
// live right after parameters in the call frame).
func (fc *funcCompiler) captureSlotFor(captureIndex int) int {
	return fc.numParamsHint() + captureIndex
}

// numParamsHint reports how many of fc's declared locals are actually
// parameters (they are declared first, before any body statement, so
// this is just the count of locals declared before any capture
// resolution can occur -- tracked directly instead via paramCount).
func (fc *funcCompiler) numParamsHint() int { return fc.paramCount }

func (c *Compiler) resolveIdent(fc *funcCompiler, name string) (slot int, isCapture bool, err error) {
	if slot, ok := fc.locals[name]; ok {
		return slot, false, nil
	}
	for i, n := range fc.captureNames {
		if n == name {
			return i, true, nil
		}
	}
	if fc.selfName == name {
		idx := fc.addCapture(name, true, capSource{})
		return idx, true, nil
	}
	if fc.parent == nil {
		return 0, false, newDiagnostic("check", 0, "undeclared identifier %q", name)
	}
	parentSlot, parentIsCapture, err := c.resolveIdent(fc.parent, name)
	if err != nil {
		return 0, false, err
	}
	idx := fc.addCapture(name, false, capSource{isLocal: !parentIsCapture, slot: parentSlot})
	return idx, true, nil
}

func (c *Compiler) compileAssign(fc *funcCompiler, node *Node) error {
	ident := node.Left
	slot, isCapture, err := c.resolveIdent(fc, ident.Str)
	if err != nil {
		return err
	}
	if isCapture {
		slot = fc.captureSlotFor(slot)
	}
	if node.Kind != NAssign {
		fc.emitPushLocal(slot)
		if err := c.compileExpr(fc, node.Right); err != nil {
			return err
		}
		fc.emit0(compoundOpOpcode[node.Kind])
	} else {
		if err := c.compileExpr(fc, node.Right); err != nil {
			return err
		}
	}
	fc.emitWrite(slot)
	fc.emitPushLocal(slot)
	return nil
}

var compoundOpOpcode = map[NodeKind]Op{
	NPlusAssign: OpAdd, NMinusAssign: OpSub, NMulAssign: OpMul,
	NDivAssign: OpDiv, NModAssign: OpMod, NAppendAssign: OpAppend,
}

// compileIndexAssign compiles `container[index] (op)= value`. The
// assignment operator is recorded in node.Int by the parser. Plain
// assignment evaluates container/index once; compound forms evaluate
// them twice (OpGet to read, OpSet to write) since there is no stack
// rotate instruction: the first container/index pair stays on the
// stack beneath the second, so the freshly computed value lands on top
// of it in the order OpSet pops.
func (c *Compiler) compileIndexAssign(fc *funcCompiler, node *Node) error {
	kind := NodeKind(node.Int)
	container := node.Left.Left
	index := node.Left.Right
	value := node.Right

	if kind == NAssign {
		if err := c.compileExpr(fc, container); err != nil {
			return err
		}
		if err := c.compileExpr(fc, index); err != nil {
			return err
		}
		if err := c.compileExpr(fc, value); err != nil {
			return err
		}
		fc.emit0(OpSet)
		fc.emitPushNull()
		return nil
	}

	if err := c.compileExpr(fc, container); err != nil {
		return err
	}
	if err := c.compileExpr(fc, index); err != nil {
		return err
	}
	if err := c.compileExpr(fc, container); err != nil {
		return err
	}
	if err := c.compileExpr(fc, index); err != nil {
		return err
	}
	fc.emit0(OpGet)
	if err := c.compileExpr(fc, value); err != nil {
		return err
	}
	fc.emit0(compoundOpOpcode[kind])
	fc.emit0(OpSet)
	fc.emitPushNull()
	return nil
}

// compileMove evaluates an lvalue, then clears the source: an
// identifier's slot is set to Null, an index target's slot is set to
// Null via OpSet. The moved-out value is left as the expression's
// result.
func (c *Compiler) compileMove(fc *funcCompiler, node *Node) error {
	target := node.Child
	if target.Kind == NIdent {
		slot, isCapture, err := c.resolveIdent(fc, target.Str)
		if err != nil {
			return err
		}
		if isCapture {
			slot = fc.captureSlotFor(slot)
		}
		fc.emitPushLocal(slot)
		fc.emitPushNull()
		fc.emitWrite(slot)
		return nil
	}
	if target.Kind == NIndex {
		if err := c.compileExpr(fc, target.Left); err != nil {
			return err
		}
		if err := c.compileExpr(fc, target.Right); err != nil {
			return err
		}
		fc.emit0(OpGet)
		if err := c.compileExpr(fc, target.Left); err != nil {
			return err
		}
		if err := c.compileExpr(fc, target.Right); err != nil {
			return err
		}
		fc.emitPushNull()
		fc.emit0(OpSet)
		return nil
	}
	return newDiagnostic("check", 0, "move target must be an identifier or index expression")
}

func (c *Compiler) compileArray(fc *funcCompiler, node *Node) error {
	if node.Child == nil {
		fc.emitExt(OpCreateArray, 0, false, true)
		return nil
	}
	if node.Child.Kind == NRange {
		if err := c.compileExpr(fc, node.Child.Left); err != nil {
			return err
		}
		if err := c.compileExpr(fc, node.Child.Right); err != nil {
			return err
		}
		fc.emit0(OpCreateRange)
		return nil
	}
	elems := flattenCommaLeft(node.Child)
	for _, e := range elems {
		if err := c.compileExpr(fc, e); err != nil {
			return err
		}
	}
	fc.emitExt(OpCreateArray, len(elems), false, true)
	return nil
}

func (c *Compiler) compileTable(fc *funcCompiler, node *Node) error {
	if node.Child == nil {
		fc.emitExt(OpCreateTable, 0, false, true)
		return nil
	}
	pairs := flattenCommaLeft(node.Child)
	for _, pair := range pairs {
		if err := c.compileTableKey(fc, pair.Left); err != nil {
			return err
		}
		if err := c.compileExpr(fc, pair.Right); err != nil {
			return err
		}
	}
	fc.emitExt(OpCreateTable, len(pairs), false, true)
	return nil
}

func (c *Compiler) compileTableKey(fc *funcCompiler, key *Node) error {
	switch key.Kind {
	case NIdent:
		fc.emitPushConst(StringValue(key.Str))
		return nil
	case NStringLit:
		fc.emitPushConst(StringValue(key.Str))
		return nil
	default:
		return c.compileExpr(fc, key)
	}
}

func (c *Compiler) compileIf(fc *funcCompiler, node *Node) error {
	arms := node.Right
	if err := c.compileExpr(fc, node.Left); err != nil {
		return err
	}
	elseJmp := fc.emitExt(OpJf, 0, true, false)
	if err := c.compileBlockBody(fc, arms.Left, true); err != nil {
		return err
	}
	endJmp := fc.emitExt(OpJmp, 0, true, false)
	fc.patch(elseJmp, fc.here())
	if arms.Right != nil {
		if err := c.compileBlockBody(fc, arms.Right, true); err != nil {
			return err
		}
	} else {
		fc.emitPushNull()
	}
	fc.patch(endJmp, fc.here())
	return nil
}

func (c *Compiler) compileWhile(fc *funcCompiler, node *Node) error {
	loopStart := fc.here()
	if err := c.compileExpr(fc, node.Left); err != nil {
		return err
	}
	exitJmp := fc.emitExt(OpJf, 0, true, false)
	if err := c.compileBlockBody(fc, node.Right, false); err != nil {
		return err
	}
	fc.emitExt(OpJmp, loopStart, true, false)
	fc.patch(exitJmp, fc.here())
	fc.emitPushNull()
	return nil
}

// compileForIn compiles both loop-header shapes: a single variable
// bound directly to each yielded element, and the two-variable tuple
// form `(k, v)` used to destructure a table's [key, value] elements.
func (c *Compiler) compileForIn(fc *funcCompiler, node *Node) error {
	header := node.Left
	if err := c.compileExpr(fc, header.Right); err != nil {
		return err
	}
	fc.emit0(OpBeginIter)
	namesBefore := make(map[string]int, len(fc.locals))
	for name, slot := range fc.locals {
		namesBefore[name] = slot
	}
	iterSlot := fc.nextSlot
	fc.nextSlot++
	elemSlot := fc.nextSlot
	fc.nextSlot++

	names := header.Params
	loopStart := fc.here()
	exitJmp := fc.emitExt(OpNextOrJmp, 0, true, false)

	popCount := 1
	if len(names) == 1 {
		fc.locals[names[0]] = elemSlot
	} else {
		keySlot := fc.nextSlot
		fc.nextSlot++
		fc.emitPushLocal(elemSlot)
		fc.emitPushInt(0)
		fc.emit0(OpGet)
		fc.locals[names[0]] = keySlot

		valSlot := fc.nextSlot
		fc.nextSlot++
		fc.emitPushLocal(elemSlot)
		fc.emitPushInt(1)
		fc.emit0(OpGet)
		fc.locals[names[1]] = valSlot

		popCount = 3
	}

	if err := c.compileBlockBody(fc, node.Right, false); err != nil {
		return err
	}
	fc.emitPop(popCount)
	fc.emitExt(OpJmp, loopStart, true, false)
	fc.patch(exitJmp, fc.here())
	fc.nextSlot = iterSlot
	fc.locals = namesBefore
	fc.emitPushNull()
	return nil
}

func (c *Compiler) compileFuncLit(fc *funcCompiler, node *Node, selfName string) error {
	child := newFuncCompiler(fc)
	child.selfName = selfName
	for _, p := range node.Params {
		child.declareLocal(p)
	}
	child.paramCount = len(node.Params)

	if err := c.compileBlockBody(child, node.Body, true); err != nil {
		return err
	}
	child.emit0(OpReturn)

	fn := &Function{
		Name:        selfName,
		NumParams:   len(node.Params),
		NumCaptures: len(child.captureNames),
		Code:        child.code,
		Constants:   child.constants,
	}
	if len(child.captureSelf) > 0 {
		fn.CaptureIsSelf = append([]bool(nil), child.captureSelf...)
	}

	fnConstIdx := fc.addConst(Value{}) // placeholder, replaced below once built
	fc.constants[fnConstIdx] = FunctionValue(fn)

	// Push non-self captures in capture-index order: the VM pops them
	// starting from the highest capture index, so each value lands in
	// its own Partial slot.
	for i := 0; i < len(child.captureNames); i++ {
		if child.captureSelf[i] {
			continue
		}
		src := child.captureSource[i]
		if src.isLocal {
			fc.emitPushLocal(src.slot)
		} else {
			fc.emitPushLocal(fc.captureSlotFor(src.slot))
		}
	}
	fc.emitExt(OpMakeClosure, fnConstIdx, false, false)
	return nil
}
