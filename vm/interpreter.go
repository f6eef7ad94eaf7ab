package vm

import (
	"errors"
	"fmt"

	"github.com/chazu/datacode/pkg/bytecode"
	"github.com/tliron/commonlog"
)

const logDebug = commonlog.Debug

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// Config tunes an Interpreter.
type Config struct {
	StackSize     int  // initial value stack capacity
	FrameCapacity int  // initial frame stack capacity
	MaxFrames     int  // call depth limit; 0 means unbounded
	Trace         bool // log every instruction at debug level
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		StackSize:     1024,
		FrameCapacity: 64,
	}
}

// ---------------------------------------------------------------------------
// Interpreter: Bytecode execution engine
// ---------------------------------------------------------------------------

// Interpreter executes DataCode bytecode. Function calls push frames onto an
// explicit frame stack driven by a single loop; the host call stack does not
// grow with program call depth.
type Interpreter struct {
	config  Config
	program *bytecode.Program
	natives []Native

	// Execution state
	stack    []Value
	frames   []*CallFrame
	handlers []*ExceptionHandler

	// Global state, kept after Run returns
	globals             []Value
	globalNames         map[int]string
	explicitGlobalNames map[int]string
	relations           []ExplicitRelation
	primaryKeys         []ExplicitPrimaryKey

	caches map[*bytecode.Function]*FnCache
	env    NativeEnv
	log    commonlog.Logger
}

// New creates an interpreter with the given native table.
func New(natives []Native, config Config) *Interpreter {
	if config.StackSize <= 0 {
		config.StackSize = DefaultConfig().StackSize
	}
	if config.FrameCapacity <= 0 {
		config.FrameCapacity = DefaultConfig().FrameCapacity
	}
	log := commonlog.GetLogger("datacode.vm")
	return &Interpreter{
		config:              config,
		natives:             natives,
		stack:               make([]Value, 0, config.StackSize),
		frames:              make([]*CallFrame, 0, config.FrameCapacity),
		globalNames:         make(map[int]string),
		explicitGlobalNames: make(map[int]string),
		caches:              make(map[*bytecode.Function]*FnCache),
		env:                 NativeEnv{log: log},
		log:                 log,
	}
}

// Natives returns the native table.
func (i *Interpreter) Natives() []Native {
	return i.natives
}

// ---------------------------------------------------------------------------
// Stack operations
// ---------------------------------------------------------------------------

func (i *Interpreter) push(v Value) {
	i.stack = append(i.stack, v)
}

// pop removes the top value. Callers check the stack height first.
func (i *Interpreter) pop() Value {
	n := len(i.stack) - 1
	v := i.stack[n]
	i.stack[n] = Null
	i.stack = i.stack[:n]
	return v
}

// popN removes n values and returns them in push order.
func (i *Interpreter) popN(n int) []Value {
	start := len(i.stack) - n
	vals := make([]Value, n)
	copy(vals, i.stack[start:])
	i.truncateStack(start)
	return vals
}

func (i *Interpreter) truncateStack(height int) {
	if height >= len(i.stack) {
		return
	}
	clear(i.stack[height:])
	i.stack = i.stack[:height]
}

// StackDepth returns the number of values on the value stack.
func (i *Interpreter) StackDepth() int {
	return len(i.stack)
}

// ---------------------------------------------------------------------------
// Frame management
// ---------------------------------------------------------------------------

func (i *Interpreter) frame() *CallFrame {
	return i.frames[len(i.frames)-1]
}

func (i *Interpreter) popFrame() {
	n := len(i.frames) - 1
	i.frames[n] = nil
	i.frames = i.frames[:n]
}

// FrameDepth returns the number of live frames.
func (i *Interpreter) FrameDepth() int {
	return len(i.frames)
}

// stackTrace lists the live frames, innermost first.
func (i *Interpreter) stackTrace() []TraceEntry {
	trace := make([]TraceEntry, 0, len(i.frames))
	for n := len(i.frames) - 1; n >= 0; n-- {
		f := i.frames[n]
		trace = append(trace, TraceEntry{Function: f.Name(), Line: f.Line()})
	}
	return trace
}

// ---------------------------------------------------------------------------
// Main interpreter loop
// ---------------------------------------------------------------------------

// Run executes a program's main chunk and returns its result. An uncaught
// fault is returned as a *Fault. Globals survive the run and can be
// inspected afterwards. Execution state and declared relations and primary
// keys are reset on entry.
func (i *Interpreter) Run(p *bytecode.Program) (Value, error) {
	if p == nil || p.Main == nil {
		return Null, errors.New("vm: program has no main chunk")
	}
	i.program = p
	i.truncateStack(0)
	i.frames = i.frames[:0]
	i.handlers = i.handlers[:0]
	i.relations = i.relations[:0]
	i.primaryKeys = i.primaryKeys[:0]
	i.globalNames = copyNames(p.Main.GlobalNames)
	i.explicitGlobalNames = copyNames(p.Main.ExplicitGlobalNames)

	i.frames = append(i.frames, newRootFrame(p.Main))
	result, err := i.execute()
	if err != nil {
		var f *Fault
		if errors.As(err, &f) {
			i.log.Info("uncaught fault",
				"type", f.Type.String(),
				"line", f.Line,
				"message", f.Message)
		}
		i.frames = i.frames[:0]
		i.handlers = i.handlers[:0]
		return Null, err
	}
	return result, nil
}

func (i *Interpreter) execute() (Value, error) {
	for {
		frame := i.frame()
		code := frame.Chunk.Code

		if frame.IP >= len(code) {
			if len(i.frames) == 1 {
				result := Null
				if len(i.stack) > 0 {
					result = i.pop()
				}
				i.popFrame()
				return result, nil
			}
			// A function body that runs off its end returns null.
			i.returnFrom(Null)
			continue
		}

		start := frame.IP
		if start < 0 {
			f := raise(RuntimeError, "invalid instruction pointer %d", start)
			f.Line = frame.Chunk.LineAt(frame.opStart)
			f.StackTrace = i.stackTrace()
			return Null, f
		}
		op := bytecode.Opcode(code[start])
		info := bytecode.GetOpcodeInfo(op)
		if !op.IsKnown() || start+1+info.OperandLen > len(code) {
			f := raise(RuntimeError, "invalid instruction %s at offset %04X", op, start)
			f.Line = frame.Chunk.LineAt(start)
			f.StackTrace = i.stackTrace()
			return Null, f
		}
		operand := 0
		if info.OperandLen > 0 {
			operand = frame.Chunk.Operand(start)
		}
		frame.opStart = start
		frame.IP = start + 1 + info.OperandLen

		if i.config.Trace && i.log.AllowLevel(logDebug) {
			text, _ := frame.Chunk.DisassembleInstruction(start)
			i.log.Debugf("%s %04X %s [stack=%d]", frame.Name(), start, text, len(i.stack))
		}

		// Stack underflow means the artifact is malformed.
		need := info.StackPop
		switch op {
		case bytecode.OpCall:
			need = operand + 1
		case bytecode.OpMakeArray:
			need = operand
		case bytecode.OpReturn:
			need = 0
		}
		if len(i.stack) < need {
			f := &Fault{
				Type:    RuntimeError,
				Message: fmt.Sprintf("%s: %s needs %d values, stack has %d", ErrStackUnderflow, op, need, len(i.stack)),
				cause:   ErrStackUnderflow,
			}
			f.Line = frame.Chunk.LineAt(start)
			f.StackTrace = i.stackTrace()
			return Null, f
		}

		var fault *Fault

		switch op {
		// --- Stack and constants ---
		case bytecode.OpNop:
			// Do nothing

		case bytecode.OpPop:
			i.pop()

		case bytecode.OpConstant:
			if operand >= len(frame.Chunk.Constants) {
				fault = raise(RuntimeError, "constant index %d out of bounds", operand)
				break
			}
			i.push(constantValue(frame.Chunk.Constants[operand]))

		// --- Variables ---
		case bytecode.OpLoadLocal:
			i.push(frame.Local(operand))

		case bytecode.OpStoreLocal:
			frame.SetLocal(operand, i.pop())

		case bytecode.OpLoadGlobal:
			if operand >= len(i.globals) {
				fault = raise(RuntimeError, "Undefined variable")
				if name, ok := i.globalNames[operand]; ok {
					fault.Message = fmt.Sprintf("Undefined variable '%s'", name)
				}
				break
			}
			i.push(i.globals[operand])

		case bytecode.OpStoreGlobal:
			i.storeGlobal(operand, i.pop())

		// --- Arithmetic and comparison ---
		case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv,
			bytecode.OpIntDiv, bytecode.OpMod, bytecode.OpPow,
			bytecode.OpEqual, bytecode.OpNotEqual, bytecode.OpGreater,
			bytecode.OpLess, bytecode.OpGreaterEqual, bytecode.OpLessEqual:
			b := i.pop()
			a := i.pop()
			var result Value
			if result, fault = Binary(op, a, b); fault == nil {
				i.push(result)
			}

		case bytecode.OpNegate:
			var result Value
			if result, fault = Negate(i.pop()); fault == nil {
				i.push(result)
			}

		case bytecode.OpIn:
			haystack := i.pop()
			needle := i.pop()
			var result Value
			if result, fault = In(needle, haystack); fault == nil {
				i.push(result)
			}

		// --- Logic (both operands already evaluated) ---
		case bytecode.OpNot:
			i.push(FromBool(!i.pop().Truthy()))

		case bytecode.OpAnd:
			b := i.pop()
			a := i.pop()
			if !a.Truthy() {
				i.push(a)
			} else {
				i.push(b)
			}

		case bytecode.OpOr:
			b := i.pop()
			a := i.pop()
			if a.Truthy() {
				i.push(a)
			} else {
				i.push(b)
			}

		// --- Jumps ---
		case bytecode.OpJump8, bytecode.OpJump16, bytecode.OpJump32:
			frame.IP += operand

		case bytecode.OpJumpIfFalse8, bytecode.OpJumpIfFalse16, bytecode.OpJumpIfFalse32:
			if !i.pop().Truthy() {
				frame.IP += operand
			}

		// --- Calls ---
		case bytecode.OpCall:
			fault = i.call(operand)

		case bytecode.OpReturn:
			result := Null
			if len(i.stack) > frame.StackStart {
				result = i.pop()
			}
			if done := i.returnFrom(result); done {
				return result, nil
			}

		// --- Collections ---
		case bytecode.OpMakeArray:
			i.push(NewArrayValue(i.popN(operand)...))

		case bytecode.OpGetArrayLength:
			v := i.pop()
			switch v.kind {
			case KindArray:
				i.push(FromInt(v.array.Len()))
			case KindColumn:
				if !v.table.HasColumn(v.str) {
					fault = raise(KeyError, "Column '%s' not found", v.str)
					break
				}
				i.push(FromInt(v.table.RowCount()))
			default:
				fault = raise(TypeError, "Expected array or column, got %s", v.TypeName())
			}

		case bytecode.OpGetArrayElement:
			index := i.pop()
			container := i.pop()
			var result Value
			if result, fault = GetElement(container, index); fault == nil {
				i.push(result)
			}

		case bytecode.OpClone:
			i.push(DeepClone(i.pop()))

		// --- Exceptions ---
		case bytecode.OpBeginTry:
			fault = i.pushHandler(operand)

		case bytecode.OpEndTry:
			if h := i.popHandler(); h != nil && !h.Fired && h.Info.HasElse() {
				frame.IP = h.Info.ElseIP
			}

		case bytecode.OpCatch, bytecode.OpEndCatch:
			// Markers only

		case bytecode.OpThrow:
			fault = thrown(i.pop())

		case bytecode.OpPopExceptionHandler:
			i.popHandler()
		}

		if fault == nil {
			continue
		}

		// Position the fault at the instruction that raised it. After a
		// call the top frame is still the caller.
		if fault.Line == 0 {
			fault.Line = frame.Chunk.LineAt(start)
		}
		if fault.StackTrace == nil {
			fault.StackTrace = i.stackTrace()
		}
		if !i.dispatch(fault, start) {
			return Null, fault
		}
	}
}

// constantValue converts a constant pool entry to a runtime value.
func constantValue(k bytecode.Constant) Value {
	switch k.Kind {
	case bytecode.ConstNumber:
		return FromNumber(k.Number)
	case bytecode.ConstBool:
		return FromBool(k.Bool)
	case bytecode.ConstString:
		return FromString(k.Text)
	case bytecode.ConstFunction:
		return FromFunction(k.Index)
	case bytecode.ConstNative:
		return FromNative(k.Index)
	case bytecode.ConstPath:
		return FromPath(k.Text)
	}
	return Null
}

// thrown converts a thrown value into a RuntimeError whose message is the
// value's rendering.
func thrown(v Value) *Fault {
	return &Fault{Type: RuntimeError, Message: v.String()}
}

// ---------------------------------------------------------------------------
// Call protocol
// ---------------------------------------------------------------------------

// call pops the callee and argc arguments and invokes the callee. Functions
// get a new frame that the main loop continues in; natives run to
// completion immediately.
func (i *Interpreter) call(argc int) *Fault {
	callee := i.pop()
	switch callee.kind {
	case KindNative:
		return i.callNative(callee.index, i.popN(argc))

	case KindFunction:
		fn, err := i.program.Function(callee.index)
		if err != nil {
			i.popN(argc)
			return raise(RuntimeError, "%v", err)
		}
		if argc != fn.Arity {
			i.popN(argc)
			return raise(TypeError, "%s expected %d arguments but got %d", fn.Name, fn.Arity, argc)
		}
		args := i.popN(argc)

		if fn.Cacheable {
			if key, ok := NewCacheKey(args); ok {
				if v, hit := i.cacheFor(fn).Lookup(key); hit {
					i.push(v)
					return nil
				}
			}
		}

		if i.config.MaxFrames > 0 && len(i.frames) >= i.config.MaxFrames {
			return raise(RecursionError, "maximum call depth %d exceeded calling %s", i.config.MaxFrames, fn.Name)
		}

		frame := newFrame(fn, len(i.stack))
		i.captureInto(frame, fn)
		start := fn.ParamStart()
		for n, arg := range args {
			frame.SetLocal(start+n, arg)
		}
		if fn.Cacheable {
			frame.CachedArgs = args
		}
		i.frames = append(i.frames, frame)
		return nil
	}

	i.popN(argc)
	return raise(TypeError, "Can only call functions, got %s", callee.TypeName())
}

// captureInto copies captured variables into a new frame. Each descriptor
// names an ancestor counted from the frame on top of the stack at call time;
// a missing ancestor or slot yields Null.
func (i *Interpreter) captureInto(frame *CallFrame, fn *bytecode.Function) {
	for _, c := range fn.Captures {
		v := Null
		if idx := len(i.frames) - 1 - c.AncestorDepth; c.AncestorDepth >= 0 && idx >= 0 {
			v = i.frames[idx].Local(c.ParentSlot)
		}
		frame.SetLocal(c.LocalSlot, v)
	}
}

// returnFrom pops the top frame, memoizing the result of a cacheable call.
// Reports true when the root frame returned.
func (i *Interpreter) returnFrom(result Value) bool {
	frame := i.frame()
	i.truncateStack(frame.StackStart)

	if fn := frame.Function; fn != nil && fn.Cacheable && frame.CachedArgs != nil {
		if key, ok := NewCacheKey(frame.CachedArgs); ok {
			i.cacheFor(fn).Store(key, result)
		}
	}

	i.unwindHandlersToFrame(len(i.frames) - 1)
	i.popFrame()
	if len(i.frames) == 0 {
		return true
	}
	i.push(result)
	return false
}

func (i *Interpreter) callNative(index int, args []Value) *Fault {
	if index < 0 || index >= len(i.natives) {
		return raise(RuntimeError, "native function index %d out of bounds", index)
	}
	n := i.natives[index]
	i.env.reset()
	result := n.Fn(&i.env, args)
	i.collectDeclarations()
	if f := i.env.takeFault(); f != nil {
		return f
	}
	i.push(result)
	return nil
}

// cacheFor returns the memoization cache of a function, creating it on first use.
func (i *Interpreter) cacheFor(fn *bytecode.Function) *FnCache {
	c, ok := i.caches[fn]
	if !ok {
		c = NewFnCache()
		i.caches[fn] = c
	}
	return c
}

// Cache returns the memoization cache of a function, or nil if it has none.
func (i *Interpreter) Cache(fn *bytecode.Function) *FnCache {
	return i.caches[fn]
}
