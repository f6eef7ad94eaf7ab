package bytecode

import "fmt"

// Opcode represents a bytecode instruction.
// Opcodes are organized into ranges by category for easy identification.
type Opcode byte

const (
	// ========================================================================
	// Stack manipulation and constants (0x00-0x0F)
	// ========================================================================

	OpNop      Opcode = 0x00 // No operation
	OpPop      Opcode = 0x01 // Pop top of stack
	OpConstant Opcode = 0x02 // Push constant from pool: OpConstant <index:u16>

	// ========================================================================
	// Variables (0x10-0x1F)
	// ========================================================================

	OpLoadLocal   Opcode = 0x10 // Push local slot: OpLoadLocal <slot:u16>
	OpStoreLocal  Opcode = 0x11 // Pop and store to local slot: OpStoreLocal <slot:u16>
	OpLoadGlobal  Opcode = 0x12 // Push global slot: OpLoadGlobal <slot:u16>
	OpStoreGlobal Opcode = 0x13 // Pop and store to global slot: OpStoreGlobal <slot:u16>

	// ========================================================================
	// Arithmetic (0x20-0x2F)
	// ========================================================================

	OpAdd    Opcode = 0x20 // Pop two, push sum or concatenation
	OpSub    Opcode = 0x21 // Pop two, push difference (a - b where b is TOS)
	OpMul    Opcode = 0x22 // Pop two, push product
	OpDiv    Opcode = 0x23 // Pop two, push quotient (or joined path)
	OpIntDiv Opcode = 0x24 // Pop two, push floored quotient
	OpMod    Opcode = 0x25 // Pop two, push remainder
	OpPow    Opcode = 0x26 // Pop two, push a raised to b
	OpNegate Opcode = 0x27 // Negate top of stack

	// ========================================================================
	// Comparison (0x30-0x3F)
	// ========================================================================

	OpEqual        Opcode = 0x30 // Pop two, push structural equality
	OpNotEqual     Opcode = 0x31 // Pop two, push structural inequality
	OpGreater      Opcode = 0x32 // Pop two, push a > b
	OpLess         Opcode = 0x33 // Pop two, push a < b
	OpGreaterEqual Opcode = 0x34 // Pop two, push a >= b
	OpLessEqual    Opcode = 0x35 // Pop two, push a <= b
	OpIn           Opcode = 0x36 // Pop value and array, push membership

	// ========================================================================
	// Logical operations (0x38-0x3F)
	// ========================================================================

	OpNot Opcode = 0x38 // Push true if TOS is falsy
	OpAnd Opcode = 0x39 // Both operands already evaluated; keeps a if falsy, else b
	OpOr  Opcode = 0x3A // Both operands already evaluated; keeps a if truthy, else b

	// ========================================================================
	// Control flow (0x40-0x4F)
	// ========================================================================

	OpJump8         Opcode = 0x40 // Unconditional jump: OpJump8 <offset:i8>
	OpJump16        Opcode = 0x41 // Unconditional jump: OpJump16 <offset:i16>
	OpJump32        Opcode = 0x42 // Unconditional jump: OpJump32 <offset:i32>
	OpJumpIfFalse8  Opcode = 0x43 // Pop, jump if falsy: OpJumpIfFalse8 <offset:i8>
	OpJumpIfFalse16 Opcode = 0x44 // Pop, jump if falsy: OpJumpIfFalse16 <offset:i16>
	OpJumpIfFalse32 Opcode = 0x45 // Pop, jump if falsy: OpJumpIfFalse32 <offset:i32>

	// ========================================================================
	// Calls (0x50-0x5F)
	// ========================================================================

	OpCall   Opcode = 0x50 // Pop callee, then argc args: OpCall <argc:u8>
	OpReturn Opcode = 0x51 // Return top of stack (or null) to the caller

	// ========================================================================
	// Collections (0x60-0x6F)
	// ========================================================================

	OpMakeArray       Opcode = 0x60 // Pop count values into a new array: OpMakeArray <count:u16>
	OpGetArrayLength  Opcode = 0x61 // Pop array or column, push length
	OpGetArrayElement Opcode = 0x62 // Pop index and container, push element
	OpClone           Opcode = 0x63 // Pop value, push an independent deep copy

	// ========================================================================
	// Exception handling (0x70-0x7F)
	// ========================================================================

	OpBeginTry            Opcode = 0x70 // Install handler: OpBeginTry <handler:u16>
	OpEndTry              Opcode = 0x71 // Remove handler; run else block if nothing fired
	OpCatch               Opcode = 0x72 // Marks the start of a catch block: OpCatch <clause:u16>
	OpEndCatch            Opcode = 0x73 // Marks the end of a catch block
	OpThrow               Opcode = 0x74 // Pop value and raise it as a fault
	OpPopExceptionHandler Opcode = 0x75 // Remove the innermost handler
)

// OpcodeInfo provides metadata about each opcode for debugging and validation.
type OpcodeInfo struct {
	Name       string // Human-readable name
	StackPop   int    // How many values popped from stack (-1 = variable)
	StackPush  int    // How many values pushed to stack (-1 = variable)
	OperandLen int    // Number of operand bytes following the opcode
	Signed     bool   // Operand is a signed jump offset
}

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpNop:      {"NOP", 0, 0, 0, false},
	OpPop:      {"POP", 1, 0, 0, false},
	OpConstant: {"CONSTANT", 0, 1, 2, false},

	OpLoadLocal:   {"LOAD_LOCAL", 0, 1, 2, false},
	OpStoreLocal:  {"STORE_LOCAL", 1, 0, 2, false},
	OpLoadGlobal:  {"LOAD_GLOBAL", 0, 1, 2, false},
	OpStoreGlobal: {"STORE_GLOBAL", 1, 0, 2, false},

	OpAdd:    {"ADD", 2, 1, 0, false},
	OpSub:    {"SUB", 2, 1, 0, false},
	OpMul:    {"MUL", 2, 1, 0, false},
	OpDiv:    {"DIV", 2, 1, 0, false},
	OpIntDiv: {"INT_DIV", 2, 1, 0, false},
	OpMod:    {"MOD", 2, 1, 0, false},
	OpPow:    {"POW", 2, 1, 0, false},
	OpNegate: {"NEGATE", 1, 1, 0, false},

	OpEqual:        {"EQUAL", 2, 1, 0, false},
	OpNotEqual:     {"NOT_EQUAL", 2, 1, 0, false},
	OpGreater:      {"GREATER", 2, 1, 0, false},
	OpLess:         {"LESS", 2, 1, 0, false},
	OpGreaterEqual: {"GREATER_EQUAL", 2, 1, 0, false},
	OpLessEqual:    {"LESS_EQUAL", 2, 1, 0, false},
	OpIn:           {"IN", 2, 1, 0, false},

	OpNot: {"NOT", 1, 1, 0, false},
	OpAnd: {"AND", 2, 1, 0, false},
	OpOr:  {"OR", 2, 1, 0, false},

	OpJump8:         {"JUMP8", 0, 0, 1, true},
	OpJump16:        {"JUMP16", 0, 0, 2, true},
	OpJump32:        {"JUMP32", 0, 0, 4, true},
	OpJumpIfFalse8:  {"JUMP_IF_FALSE8", 1, 0, 1, true},
	OpJumpIfFalse16: {"JUMP_IF_FALSE16", 1, 0, 2, true},
	OpJumpIfFalse32: {"JUMP_IF_FALSE32", 1, 0, 4, true},

	OpCall:   {"CALL", -1, 1, 1, false}, // Pops callee + argc args
	OpReturn: {"RETURN", 1, 0, 0, false},

	OpMakeArray:       {"MAKE_ARRAY", -1, 1, 2, false},
	OpGetArrayLength:  {"GET_ARRAY_LENGTH", 1, 1, 0, false},
	OpGetArrayElement: {"GET_ARRAY_ELEMENT", 2, 1, 0, false},
	OpClone:           {"CLONE", 1, 1, 0, false},

	OpBeginTry:            {"BEGIN_TRY", 0, 0, 2, false},
	OpEndTry:              {"END_TRY", 0, 0, 0, false},
	OpCatch:               {"CATCH", 0, 0, 2, false},
	OpEndCatch:            {"END_CATCH", 0, 0, 0, false},
	OpThrow:               {"THROW", 1, 0, 0, false},
	OpPopExceptionHandler: {"POP_EXCEPTION_HANDLER", 0, 0, 0, false},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// OperandLen returns the number of operand bytes for this opcode.
func (op Opcode) OperandLen() int {
	return GetOpcodeInfo(op).OperandLen
}

// InstructionLen returns the total length of an instruction (1 + operand bytes).
func (op Opcode) InstructionLen() int {
	return 1 + op.OperandLen()
}

// IsJump returns true if this opcode is a relative jump.
func (op Opcode) IsJump() bool {
	return op >= OpJump8 && op <= OpJumpIfFalse32
}

// IsConditionalJump returns true if the jump pops and tests a condition.
func (op Opcode) IsConditionalJump() bool {
	return op >= OpJumpIfFalse8 && op <= OpJumpIfFalse32
}

// IsKnown reports whether the opcode has metadata.
func (op Opcode) IsKnown() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// AllOpcodes returns a slice of all defined opcodes.
// Useful for testing that all opcodes have metadata.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}

// JumpWidth returns the narrowest jump encoding (1, 2 or 4 bytes) that can
// hold the given relative offset.
func JumpWidth(offset int) int {
	switch {
	case offset >= -128 && offset <= 127:
		return 1
	case offset >= -32768 && offset <= 32767:
		return 2
	default:
		return 4
	}
}

// JumpOpcode returns the jump opcode of the requested kind and operand width.
func JumpOpcode(conditional bool, width int) Opcode {
	base := OpJump8
	if conditional {
		base = OpJumpIfFalse8
	}
	switch width {
	case 1:
		return base
	case 2:
		return base + 1
	default:
		return base + 2
	}
}
