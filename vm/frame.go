package vm

import "github.com/chazu/datacode/pkg/bytecode"

// mainFunctionName names the synthetic root frame in stack traces.
const mainFunctionName = "<main>"

// CallFrame is the execution state of one function activation.
type CallFrame struct {
	Function   *bytecode.Function // nil for the root frame
	Chunk      *bytecode.Chunk    // code being executed
	IP         int                // offset of the next instruction
	StackStart int                // value stack height when the frame was entered
	Slots      []Value            // captured variables, then parameters, then locals

	// CachedArgs is the argument vector of a cacheable call, kept so the
	// result can be memoized on return.
	CachedArgs []Value

	opStart int // offset of the instruction currently executing
}

func newRootFrame(chunk *bytecode.Chunk) *CallFrame {
	return &CallFrame{Chunk: chunk}
}

func newFrame(fn *bytecode.Function, stackStart int) *CallFrame {
	return &CallFrame{
		Function:   fn,
		Chunk:      fn.Chunk,
		StackStart: stackStart,
		Slots:      make([]Value, fn.SlotCount()),
	}
}

// Name returns the function name shown in stack traces.
func (f *CallFrame) Name() string {
	if f.Function == nil {
		return mainFunctionName
	}
	return f.Function.Name
}

// Line returns the source line of the instruction the frame last started.
func (f *CallFrame) Line() int {
	return f.Chunk.LineAt(f.opStart)
}

// Local returns the value in slot, or Null if the slot does not exist.
func (f *CallFrame) Local(slot int) Value {
	if slot < 0 || slot >= len(f.Slots) {
		return Null
	}
	return f.Slots[slot]
}

// SetLocal stores v in slot, growing the slot array as needed.
func (f *CallFrame) SetLocal(slot int, v Value) {
	if slot >= len(f.Slots) {
		grown := make([]Value, slot+1)
		copy(grown, f.Slots)
		f.Slots = grown
	}
	f.Slots[slot] = v
}
