package bytecode

import "fmt"

// CaptureDescriptor describes a variable a function copies out of a live
// ancestor frame when it is called.
type CaptureDescriptor struct {
	Name          string `cbor:"1,keyasint"` // Variable name (for debugging)
	AncestorDepth int    `cbor:"2,keyasint"` // 0 = the frame on top of the stack at call time
	ParentSlot    int    `cbor:"3,keyasint"` // Slot index in the ancestor frame
	LocalSlot     int    `cbor:"4,keyasint"` // Slot index in the new frame
}

// Function is the compile-time descriptor of a callable function.
// It is shared, read-only, by every call to the function.
type Function struct {
	Name       string              `cbor:"1,keyasint"`
	Arity      int                 `cbor:"2,keyasint"`
	ParamNames []string            `cbor:"3,keyasint,omitempty"`
	Captures   []CaptureDescriptor `cbor:"4,keyasint,omitempty"`
	Chunk      *Chunk              `cbor:"5,keyasint"`

	// Cacheable marks the function for result memoization keyed by its
	// argument vector.
	Cacheable bool `cbor:"6,keyasint,omitempty"`
}

// NewFunction creates a function descriptor with an empty chunk.
func NewFunction(name string, arity int) *Function {
	return &Function{
		Name:  name,
		Arity: arity,
		Chunk: NewChunk(),
	}
}

// AddCapture appends a capture descriptor and returns its index.
func (f *Function) AddCapture(name string, depth, parentSlot, localSlot int) int {
	f.Captures = append(f.Captures, CaptureDescriptor{
		Name:          name,
		AncestorDepth: depth,
		ParentSlot:    parentSlot,
		LocalSlot:     localSlot,
	})
	return len(f.Captures) - 1
}

// ParamStart returns the first parameter slot; captured variables occupy
// the slots before it.
func (f *Function) ParamStart() int {
	return len(f.Captures)
}

// SlotCount returns the minimum number of local slots a frame needs.
func (f *Function) SlotCount() int {
	n := len(f.Captures) + f.Arity
	for _, c := range f.Captures {
		if c.LocalSlot+1 > n {
			n = c.LocalSlot + 1
		}
	}
	return n
}

// Program is a complete compiled artifact: the top-level chunk plus the
// function table that Function values index into.
type Program struct {
	Main      *Chunk      `cbor:"1,keyasint"`
	Functions []*Function `cbor:"2,keyasint,omitempty"`
}

// NewProgram creates a program with an empty main chunk.
func NewProgram() *Program {
	return &Program{Main: NewChunk()}
}

// AddFunction appends a function to the function table and returns its index.
func (p *Program) AddFunction(f *Function) int {
	p.Functions = append(p.Functions, f)
	return len(p.Functions) - 1
}

// Function returns the function at index, or an error if it does not exist.
func (p *Program) Function(index int) (*Function, error) {
	if index < 0 || index >= len(p.Functions) {
		return nil, fmt.Errorf("function index %d out of bounds", index)
	}
	return p.Functions[index], nil
}
