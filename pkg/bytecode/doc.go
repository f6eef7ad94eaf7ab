// Package bytecode defines the compiled form of DataCode programs: opcodes,
// chunks, function descriptors and the on-disk artifact format.
//
// The bytecode format is designed for:
//   - Compact representation (one opcode byte plus 0, 1, 2 or 4 operand bytes)
//   - Fast decoding (little-endian operands at fixed widths per opcode)
//   - Easy serialization ("DCBC" header followed by a canonical CBOR body)
//
// # Architecture Overview
//
//   - Opcodes: stack-based instructions covering constants, variables,
//     arithmetic, comparison, jumps, calls, collections and exceptions
//
//   - Chunk: a compiled code unit holding code, constant pool, line table,
//     try-region descriptors, global names and declared error type names.
//     Instruction pointers are byte offsets into Chunk.Code.
//
//   - Function: arity, parameter names, capture descriptors and the body
//     chunk. Captured variables are copied by value into the leading local
//     slots at call time; parameters follow them.
//
//   - Program: the main chunk plus the function table that function
//     constants index into.
//
// # Jumps
//
// Jump offsets are signed and relative to the instruction that follows the
// jump. Each jump comes in 8, 16 and 32 bit operand widths; EmitJump and
// PatchJumpTo let a compiler emit a placeholder and fill it in once the
// target is known.
//
// # Try Regions
//
// A try region compiles to
//
//	BEGIN_TRY h; <body>; END_TRY; JUMP end
//	catch_0: CATCH 0; <body>; END_CATCH; POP_EXCEPTION_HANDLER; JUMP end
//	...
//	else: <body>
//	end:
//
// where handler h lists the catch entry points and the else entry point.
// END_TRY transfers to the else block when no catch fired.
package bytecode
