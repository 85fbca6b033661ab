package jarl

// Op is a single bytecode opcode. Instructions are 16-bit words: the
// opcode sits in the low byte, flag bits in the high byte (see the Op*
// flag constants below). A flagged instruction is followed by one
// more 16-bit word carrying its immediate operand.
type Op byte

const (
	OpReturn Op = iota //   ...v            ->   (returns v to caller)
	OpNop              //   ...             ->   ... (no-op, used for empty statements)
	OpPush             //   ...             ->   ...v (push null / immediate int / stack[bp+slot] / constant)
	OpPop              //   ...v            ->   ... (pop one value, or OP1 values with Int flag)
	OpReduce           //   ...v1..vn,top   ->   ...top (collapse OP1 values below the top into the top)
	OpWrite            //   ...v            ->   ... (stack[bp+OP1] = v)
	OpSet              //   ...c,i,v        ->   ... (c[i] = v; index-expression assignment)

	OpAdd //   ...a,b   ->   ...(a+b)
	OpSub //   ...a,b   ->   ...(a-b)
	OpMul //   ...a,b   ->   ...(a*b)
	OpDiv //   ...a,b   ->   ...(a/b)
	OpMod //   ...a,b   ->   ...(a%b)

	OpAppend //   ...a,b   ->   ...(a++b)   (string concat / array concat)
	OpNeg    //   ...a     ->   ...(-a)
	OpNot    //   ...a     ->   ...(!a)

	OpCmp //   ...a,b   ->   ...(a<=>b)      (-1/0/1)
	OpEq  //   ...a,b   ->   ...(a==b)
	OpNeq //   ...a,b   ->   ...(a!=b)
	OpGt  //   ...a,b   ->   ...(a>b)
	OpLt  //   ...a,b   ->   ...(a<b)
	OpGeq //   ...a,b   ->   ...(a>=b)
	OpLeq //   ...a,b   ->   ...(a<=b)

	OpGet   //   ...c,i     ->   ...c[i]
	OpSlice //   ...c,lo,hi ->   ...c[lo:hi]

	OpJmp  //   ...              ->   ...            (unconditional jump to OP1)
	OpJt   //   ...v             ->   ...            (jump to OP1 if v truthy)
	OpJf   //   ...v             ->   ...            (jump to OP1 if v falsy)
	OpJtsc //   ...v             ->   ...v           (short-circuit `or`: jump to OP1 if v truthy; v is never popped)
	OpJfsc //   ...v             ->   ...v           (short-circuit `and`: jump to OP1 if v falsy; v is never popped)

	OpCreateArray //   ...v1..vn   ->   ...[v1..vn]   (OP1 elements)
	OpCreateRange //   ...lo,hi    ->   ...[lo..hi]   (materialized eagerly)
	OpCreateTable //   ...k1,v1..  ->   ...{k1:v1..}  (OP1 pairs)

	OpApply  //   ...f,a   ->   ...(f applied to one more argument, invoked once saturated)
	OpMakeClosure // ...cap1..capn -> ...partial  (OP1 is the function's constant-pool index)

	OpBeginIter //   ...v   ->   ...iter  (wrap v in an Iterator)
	OpNextOrJmp //   ...iter ->  ...iter,elem  or jump to OP1 and pop iter when exhausted

	OpPrint  //   ...v   ->   ...  (writes to the VM's output sink, stdout by default)
	OpAssert //   ...cond,msg -> ... (raises a RuntimeError if cond is falsy)

	opCount
)

const (
	// OpExtended marks an instruction that is followed by one more
	// 16-bit word holding its immediate operand.
	OpExtended byte = 0x80
	// OpDest marks a jump/application operand as a destination slot
	// rather than a plain count, distinguishing e.g. OpWrite's slot
	// operand from OpPop's count operand when both are Extended.
	OpDest byte = 0x40
	// OpInt marks the operand as a signed immediate rather than an
	// unsigned count or slot index (used by OpPush for int literals).
	OpInt byte = 0x20
)

var opNames = map[Op]string{
	OpReturn: "Return", OpNop: "Nop", OpPush: "Push", OpPop: "Pop",
	OpReduce: "Reduce", OpWrite: "Write", OpSet: "Set",
	OpAdd: "Add", OpSub: "Sub", OpMul: "Mul", OpDiv: "Div", OpMod: "Mod",
	OpAppend: "Append", OpNeg: "Neg", OpNot: "Not",
	OpCmp: "Cmp", OpEq: "Eq", OpNeq: "Neq", OpGt: "Gt", OpLt: "Lt",
	OpGeq: "Geq", OpLeq: "Leq",
	OpGet: "Get", OpSlice: "Slice",
	OpJmp: "Jmp", OpJt: "Jt", OpJf: "Jf", OpJtsc: "Jtsc", OpJfsc: "Jfsc",
	OpCreateArray: "CreateArray", OpCreateRange: "CreateRange", OpCreateTable: "CreateTable",
	OpApply: "Apply", OpMakeClosure: "MakeClosure",
	OpBeginIter: "BeginIter", OpNextOrJmp: "NextOrJmp",
	OpPrint: "Print", OpAssert: "Assert",
}

func (op Op) String() string {
	if s, ok := opNames[op]; ok {
		return s
	}
	return "Op(?)"
}

// Instruction is a decoded bytecode word plus its optional immediate
// operand. Nothing in this package builds one: codegen emits, and the
// VM executes, the packed []uint16 form directly.
type Instruction struct {
	Op       Op
	Extended bool
	Dest     bool
	Int      bool
	Operand  int
}

func encodeHead(op Op, extended, dest, isInt bool) uint16 {
	var flags byte
	if extended {
		flags |= OpExtended
	}
	if dest {
		flags |= OpDest
	}
	if isInt {
		flags |= OpInt
	}
	return uint16(flags)<<8 | uint16(op)
}

func decodeHead(word uint16) (op Op, extended, dest, isInt bool) {
	op = Op(word & 0xFF)
	flags := byte(word >> 8)
	extended = flags&OpExtended != 0
	dest = flags&OpDest != 0
	isInt = flags&OpInt != 0
	return
}
