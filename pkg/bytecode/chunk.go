package bytecode

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// BytecodeVersion is the current bytecode format version.
// Increment when making incompatible changes to the format.
const BytecodeVersion uint16 = 1

// NoIndex marks an absent optional index (error type, variable slot, else entry).
const NoIndex = -1

// ConstKind identifies the literal kind stored in a constant pool entry.
type ConstKind uint8

const (
	ConstNull ConstKind = iota
	ConstNumber
	ConstBool
	ConstString
	ConstFunction // index into Program.Functions
	ConstNative   // index into the native table
	ConstPath
)

// String returns a human-readable name for ConstKind.
func (k ConstKind) String() string {
	switch k {
	case ConstNull:
		return "null"
	case ConstNumber:
		return "number"
	case ConstBool:
		return "bool"
	case ConstString:
		return "string"
	case ConstFunction:
		return "function"
	case ConstNative:
		return "native"
	case ConstPath:
		return "path"
	default:
		return fmt.Sprintf("ConstKind(%d)", k)
	}
}

// Constant is one literal in a chunk's constant pool. Compilers only emit
// scalar literals and function/native references; compound values are built
// at run time.
type Constant struct {
	Kind   ConstKind `cbor:"1,keyasint"`
	Number float64   `cbor:"2,keyasint,omitempty"`
	Text   string    `cbor:"3,keyasint,omitempty"`
	Bool   bool      `cbor:"4,keyasint,omitempty"`
	Index  int       `cbor:"5,keyasint,omitempty"`
}

func NullConst() Constant { return Constant{Kind: ConstNull} }
func NumberConst(n float64) Constant { return Constant{Kind: ConstNumber, Number: n} }
func BoolConst(b bool) Constant { return Constant{Kind: ConstBool, Bool: b} }
func StringConst(s string) Constant { return Constant{Kind: ConstString, Text: s} }
func FunctionConst(index int) Constant { return Constant{Kind: ConstFunction, Index: index} }
func NativeConst(index int) Constant { return Constant{Kind: ConstNative, Index: index} }
func PathConst(path string) Constant { return Constant{Kind: ConstPath, Text: path} }

// String renders the constant for listings.
func (c Constant) String() string {
	switch c.Kind {
	case ConstNull:
		return "null"
	case ConstNumber:
		return fmt.Sprintf("%g", c.Number)
	case ConstBool:
		return fmt.Sprintf("%t", c.Bool)
	case ConstString:
		return fmt.Sprintf("%q", c.Text)
	case ConstFunction:
		return fmt.Sprintf("<function %d>", c.Index)
	case ConstNative:
		return fmt.Sprintf("<native %d>", c.Index)
	case ConstPath:
		return fmt.Sprintf("path(%q)", c.Text)
	default:
		return c.Kind.String()
	}
}

// LineEntry maps a bytecode offset to a source line. Entries are sorted by
// offset; each covers every byte up to the next entry.
type LineEntry struct {
	Offset int `cbor:"1,keyasint"`
	Line   int `cbor:"2,keyasint"`
}

// CatchClause is one catch block of a try region.
type CatchClause struct {
	IP        int `cbor:"1,keyasint"` // Entry point of the catch block
	ErrorType int `cbor:"2,keyasint"` // Index into Chunk.ErrorTypes, or NoIndex for catch-all
	VarSlot   int `cbor:"3,keyasint"` // Local slot receiving the message, or NoIndex
}

// Typed reports whether the clause only catches a declared error type.
func (c CatchClause) Typed() bool {
	return c.ErrorType != NoIndex
}

// Binds reports whether the clause binds the fault message to a local slot.
func (c CatchClause) Binds() bool {
	return c.VarSlot != NoIndex
}

// ExceptionHandlerInfo describes one try region, referenced by OpBeginTry.
type ExceptionHandlerInfo struct {
	Catches []CatchClause `cbor:"1,keyasint"`
	ElseIP  int           `cbor:"2,keyasint"` // Entry point of the else block, or NoIndex
}

// HasElse reports whether the try region declares an else block.
func (h ExceptionHandlerInfo) HasElse() bool {
	return h.ElseIP != NoIndex
}

// Chunk represents compiled bytecode for the top-level program or a function.
// It is produced once by a compiler and never modified during execution.
type Chunk struct {
	Version uint16 `cbor:"1,keyasint"`

	// Code section: one opcode byte followed by little-endian operands
	Code []byte `cbor:"2,keyasint"`

	// Constant pool referenced by OpConstant
	Constants []Constant `cbor:"3,keyasint"`

	// Offset -> source line, for error reporting
	Lines []LineEntry `cbor:"4,keyasint"`

	// Try regions referenced by OpBeginTry
	ExceptionHandlers []ExceptionHandlerInfo `cbor:"5,keyasint"`

	// Global slot -> registered variable name
	GlobalNames map[int]string `cbor:"6,keyasint"`

	// Global slot -> name, for globals declared with the explicit global keyword
	ExplicitGlobalNames map[int]string `cbor:"7,keyasint"`

	// Error type names referenced by typed catch clauses
	ErrorTypes []string `cbor:"8,keyasint"`

	line int // current source line while emitting
}

// NewChunk creates a new empty chunk with the current version.
func NewChunk() *Chunk {
	return &Chunk{
		Version:             BytecodeVersion,
		Code:                make([]byte, 0, 64),
		Constants:           make([]Constant, 0, 8),
		GlobalNames:         make(map[int]string),
		ExplicitGlobalNames: make(map[int]string),
	}
}

// SetLine sets the source line attached to subsequently emitted instructions.
func (c *Chunk) SetLine(line int) {
	c.line = line
}

// AddConstant adds a constant to the pool and returns its index.
// Scalar constants already present are reused.
func (c *Chunk) AddConstant(k Constant) int {
	for i, existing := range c.Constants {
		if existing == k {
			return i
		}
	}
	c.Constants = append(c.Constants, k)
	return len(c.Constants) - 1
}

// Emit appends an instruction and returns its offset. Operands are encoded
// according to the opcode's operand width.
func (c *Chunk) Emit(op Opcode, operands ...int) int {
	offset := len(c.Code)
	c.markLine(offset)
	c.Code = append(c.Code, byte(op))

	width := op.OperandLen()
	if width == 0 {
		return offset
	}
	var operand int
	if len(operands) > 0 {
		operand = operands[0]
	}
	c.Code = appendOperand(c.Code, width, operand)
	return offset
}

// EmitConstant emits an OpConstant instruction for the given literal.
// Adds the constant to the pool if not already present.
func (c *Chunk) EmitConstant(k Constant) int {
	return c.Emit(OpConstant, c.AddConstant(k))
}

// EmitJump emits a jump of the given width with a zero placeholder offset.
// Returns the offset of the jump instruction for later patching.
func (c *Chunk) EmitJump(conditional bool, width int) int {
	return c.Emit(JumpOpcode(conditional, width), 0)
}

// PatchJump patches the jump at the given instruction offset to land on the
// current end of code.
func (c *Chunk) PatchJump(at int) error {
	return c.PatchJumpTo(at, len(c.Code))
}

// PatchJumpTo patches the jump at the given instruction offset to land on target.
// The stored offset is relative to the instruction following the jump.
func (c *Chunk) PatchJumpTo(at int, target int) error {
	op := Opcode(c.Code[at])
	if !op.IsJump() {
		return fmt.Errorf("patch at %04X: %s is not a jump", at, op)
	}
	width := op.OperandLen()
	delta := target - (at + 1 + width)
	if JumpWidth(delta) > width {
		return fmt.Errorf("patch at %04X: offset %d does not fit in %s", at, delta, op)
	}
	putOperand(c.Code[at+1:], width, delta)
	return nil
}

// EmitLoop emits an unconditional jump back to target, choosing the
// narrowest encoding that reaches it.
func (c *Chunk) EmitLoop(target int) int {
	from := len(c.Code)
	for _, width := range []int{1, 2, 4} {
		delta := target - (from + 1 + width)
		if JumpWidth(delta) <= width {
			return c.Emit(JumpOpcode(false, width), delta)
		}
	}
	return c.Emit(OpJump32, target-(from+5))
}

// AddHandler registers a try region and returns its index for OpBeginTry.
func (c *Chunk) AddHandler(info ExceptionHandlerInfo) int {
	c.ExceptionHandlers = append(c.ExceptionHandlers, info)
	return len(c.ExceptionHandlers) - 1
}

// AddErrorType interns an error type name and returns its index.
func (c *Chunk) AddErrorType(name string) int {
	for i, existing := range c.ErrorTypes {
		if existing == name {
			return i
		}
	}
	c.ErrorTypes = append(c.ErrorTypes, name)
	return len(c.ErrorTypes) - 1
}

// DeclareGlobal records the name of a global slot. Explicit globals are the
// ones declared with the global keyword.
func (c *Chunk) DeclareGlobal(slot int, name string, explicit bool) {
	if c.GlobalNames == nil {
		c.GlobalNames = make(map[int]string)
	}
	c.GlobalNames[slot] = name
	if explicit {
		if c.ExplicitGlobalNames == nil {
			c.ExplicitGlobalNames = make(map[int]string)
		}
		c.ExplicitGlobalNames[slot] = name
	}
}

// CurrentOffset returns the current offset in the code section.
func (c *Chunk) CurrentOffset() int {
	return len(c.Code)
}

// CodeLen returns the length of the code section.
func (c *Chunk) CodeLen() int {
	return len(c.Code)
}

// LineAt returns the source line for a bytecode offset, or 0 if unknown.
func (c *Chunk) LineAt(offset int) int {
	i := sort.Search(len(c.Lines), func(i int) bool {
		return c.Lines[i].Offset > offset
	})
	if i == 0 {
		return 0
	}
	return c.Lines[i-1].Line
}

// Operand decodes the operand of the instruction at offset. Jump offsets are
// sign-extended; all other operands are unsigned.
func (c *Chunk) Operand(offset int) int {
	op := Opcode(c.Code[offset])
	info := GetOpcodeInfo(op)
	b := c.Code[offset+1:]
	switch info.OperandLen {
	case 1:
		if info.Signed {
			return int(int8(b[0]))
		}
		return int(b[0])
	case 2:
		v := binary.LittleEndian.Uint16(b)
		if info.Signed {
			return int(int16(v))
		}
		return int(v)
	case 4:
		v := binary.LittleEndian.Uint32(b)
		if info.Signed {
			return int(int32(v))
		}
		return int(v)
	}
	return 0
}

func (c *Chunk) markLine(offset int) {
	if n := len(c.Lines); n > 0 && c.Lines[n-1].Line == c.line {
		return
	}
	c.Lines = append(c.Lines, LineEntry{Offset: offset, Line: c.line})
}

func appendOperand(code []byte, width int, v int) []byte {
	switch width {
	case 1:
		return append(code, byte(v))
	case 2:
		return binary.LittleEndian.AppendUint16(code, uint16(v))
	default:
		return binary.LittleEndian.AppendUint32(code, uint32(v))
	}
}

func putOperand(dst []byte, width int, v int) {
	switch width {
	case 1:
		dst[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(dst, uint16(v))
	default:
		binary.LittleEndian.PutUint32(dst, uint32(v))
	}
}
