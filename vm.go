package jarl

import (
	"fmt"
	"io"
	"os"
)

const (
	defaultStackCapacity  = 1024
	defaultCallDepthLimit = 256
)

// callFrame is one activation record: which function is running,
// where to resume in the caller, and the base pointer into the shared
// value stack where this call's params/captures/locals begin.
type callFrame struct {
	fn *Function
	pc int
	bp int
}

// VM is a single-threaded stack machine executing one Function at a
// time. Multiple VMs may run concurrently in the same process (see
// ExecuteAll in api.go); the only state they share is the process-wide
// interned-string table, which is mutex-guarded.
type VM struct {
	stack  []Value
	frames []callFrame
	config *Config
	trace  bool

	out    io.Writer // print's destination, defaults to stdout
	errOut io.Writer // runtime diagnostics' destination; nil (the default) means "same as out"
}

func NewVM(cfg *Config) *VM {
	if cfg == nil {
		cfg = NewConfig()
	}
	cap := cfg.GetInt("vm.stack_capacity")
	return &VM{
		stack:  make([]Value, 0, cap),
		config: cfg,
		trace:  cfg.GetBool("vm.trace"),
		out:    os.Stdout,
	}
}

// SetOutput installs the destination for `print` statements, letting
// an embedder capture or redirect script output instead of it always
// going to os.Stdout.
func (vm *VM) SetOutput(w io.Writer) { vm.out = w }

// SetErrorOutput installs a separate destination for runtime
// diagnostics. Without it, diagnostics go to the same sink as print.
func (vm *VM) SetErrorOutput(w io.Writer) { vm.errOut = w }

func (vm *VM) diagnosticsOutput() io.Writer {
	if vm.errOut != nil {
		return vm.errOut
	}
	return vm.out
}

func (vm *VM) push(v Value) {
	if len(vm.stack) == cap(vm.stack) {
		// grow rather than error: the configured capacity is a sizing
		// hint, not a hard ceiling a host script can trip over.
		grown := make([]Value, len(vm.stack), cap(vm.stack)*2+1)
		copy(grown, vm.stack)
		vm.stack = grown
	}
	vm.stack = append(vm.stack, v)
}

func (vm *VM) pop() Value {
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v
}

func (vm *VM) top() Value { return vm.stack[len(vm.stack)-1] }

// Run executes fn to completion (a freshly compiled top-level program
// has no parameters or captures) and returns its final value.
func (vm *VM) Run(fn *Function) (Value, error) {
	bp := len(vm.stack)
	vm.frames = append(vm.frames, callFrame{fn: fn, pc: 0, bp: bp})
	v, err := vm.loop()
	if err != nil {
		fmt.Fprintln(vm.diagnosticsOutput(), err.Error())
	}
	return v, err
}

func (vm *VM) loop() (Value, error) {
	for {
		if len(vm.frames) == 0 {
			return NoneValue(), nil
		}
		frame := &vm.frames[len(vm.frames)-1]
		code := frame.fn.Code
		if frame.pc >= len(code) {
			return NoneValue(), newRuntimeError("fell off the end of %q without a return", frame.fn.Name)
		}
		op, extended, dest, isInt := decodeHead(code[frame.pc])
		frame.pc++
		operand := 0
		if extended {
			operand = int(int16(code[frame.pc]))
			frame.pc++
		}

		if vm.trace {
			fmt.Fprintf(vm.out, "pc=%d op=%s operand=%d dest=%v int=%v\n", frame.pc, op, operand, dest, isInt)
		}

		switch op {
		case OpReturn:
			v := vm.pop()
			vm.stack = vm.stack[:frame.bp]
			vm.frames = vm.frames[:len(vm.frames)-1]
			if len(vm.frames) == 0 {
				return v, nil
			}
			vm.push(v)

		case OpNop:
			// no-op

		case OpPush:
			switch {
			case isInt:
				vm.push(IntValue(int64(operand)))
			case dest:
				vm.push(vm.stack[frame.bp+operand])
			case extended:
				vm.push(frame.fn.Constants[operand])
			default:
				vm.push(NullValue())
			}

		case OpPop:
			n := operand
			if !extended {
				n = 1
			}
			for i := 0; i < n; i++ {
				vm.pop()
			}

		case OpReduce:
			top := vm.pop()
			for i := 0; i < operand; i++ {
				vm.pop()
			}
			vm.push(top)

		case OpWrite:
			v := vm.pop()
			vm.stack[frame.bp+operand] = v

		case OpSet:
			v := vm.pop()
			idx := vm.pop()
			container := vm.pop()
			if err := vmSet(container, idx, v); err != nil {
				return Value{}, err
			}

		case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpAppend:
			b := vm.pop()
			a := vm.pop()
			v, err := arith(op, a, b)
			if err != nil {
				return Value{}, err
			}
			vm.push(v)

		case OpNeg:
			a := vm.pop()
			v, err := negate(a)
			if err != nil {
				return Value{}, err
			}
			vm.push(v)

		case OpNot:
			a := vm.pop()
			vm.push(BoolValue(!a.IsTruthy()))

		case OpCmp, OpEq, OpNeq, OpGt, OpLt, OpGeq, OpLeq:
			b := vm.pop()
			a := vm.pop()
			v, err := compare(op, a, b)
			if err != nil {
				return Value{}, err
			}
			vm.push(v)

		case OpGet:
			idx := vm.pop()
			container := vm.pop()
			v, err := vmGet(container, idx)
			if err != nil {
				return Value{}, err
			}
			vm.push(v)

		case OpSlice:
			hi := vm.pop()
			lo := vm.pop()
			container := vm.pop()
			v, err := vmSlice(container, lo, hi)
			if err != nil {
				return Value{}, err
			}
			vm.push(v)

		case OpJmp:
			frame.pc = operand

		case OpJt:
			v := vm.pop()
			if v.IsTruthy() {
				frame.pc = operand
			}

		case OpJf:
			v := vm.pop()
			if !v.IsTruthy() {
				frame.pc = operand
			}

		case OpJtsc:
			if vm.top().IsTruthy() {
				frame.pc = operand
			}

		case OpJfsc:
			if !vm.top().IsTruthy() {
				frame.pc = operand
			}

		case OpCreateArray:
			items := make([]Value, operand)
			for i := operand - 1; i >= 0; i-- {
				items[i] = vm.pop()
			}
			vm.push(ArrayValue(NewArray(items)))

		case OpCreateRange:
			hi := vm.pop()
			lo := vm.pop()
			v, err := createRange(lo, hi)
			if err != nil {
				return Value{}, err
			}
			vm.push(v)

		case OpCreateTable:
			t := NewTable()
			pairs := make([]Value, operand*2)
			for i := len(pairs) - 1; i >= 0; i-- {
				pairs[i] = vm.pop()
			}
			for i := 0; i < operand; i++ {
				t.Set(pairs[i*2], pairs[i*2+1])
			}
			vm.push(TableValue(t))

		case OpApply:
			arg := vm.pop()
			callee := vm.pop()
			partial, saturated, err := vmApply(callee, arg)
			if err != nil {
				return Value{}, err
			}
			if !saturated {
				vm.push(PartialValue(partial))
				continue
			}
			if len(vm.frames) >= vm.config.GetInt("vm.call_depth_limit") {
				return Value{}, newRuntimeError("call depth limit exceeded")
			}
			newBp := len(vm.stack)
			for _, s := range partial.Slots {
				vm.push(s)
			}
			vm.frames = append(vm.frames, callFrame{fn: partial.Fn, pc: 0, bp: newBp})

		case OpMakeClosure:
			fn, ok := frame.fn.Constants[operand].fn, frame.fn.Constants[operand].tag == TagFunction
			if !ok {
				return Value{}, newRuntimeError("MakeClosure constant is not a function")
			}
			p := NewPartial(fn)
			selfIdx := make([]int, 0)
			for i := fn.NumCaptures - 1; i >= 0; i-- {
				if i < len(fn.CaptureIsSelf) && fn.CaptureIsSelf[i] {
					selfIdx = append(selfIdx, i)
					continue
				}
				p.Capture(i, vm.pop())
			}
			for _, i := range selfIdx {
				p.Capture(i, PartialValue(p))
			}
			// A zero-parameter closure is left as a value rather than
			// auto-invoked. The surface grammar's only call syntax is
			// juxtaposition, which always supplies an argument: applying
			// such a closure to anything saturates it at once and runs
			// it, and the argument is discarded.
			vm.push(PartialValue(p))

		case OpBeginIter:
			v := vm.pop()
			it, err := beginIter(v)
			if err != nil {
				return Value{}, err
			}
			vm.push(IteratorValue(it))

		case OpNextOrJmp:
			it := vm.top().it
			elem, ok := it.Next()
			if !ok {
				vm.pop()
				frame.pc = operand
				continue
			}
			vm.push(elem)

		case OpPrint:
			v := vm.pop()
			fmt.Fprintln(vm.out, v.String())

		case OpAssert:
			msg := vm.pop()
			cond := vm.pop()
			if !cond.IsTruthy() {
				return Value{}, newRuntimeError("%s", msg.String())
			}

		default:
			return Value{}, newRuntimeError("unknown opcode %d", op)
		}
	}
}
