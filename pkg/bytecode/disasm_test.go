package bytecode

import (
	"strings"
	"testing"
)

func TestDisassembleEmpty(t *testing.T) {
	c := NewChunk()

	output := c.Disassemble()

	if !strings.Contains(output, "DataCode Bytecode v1") {
		t.Error("Disassembly missing header")
	}
}

func TestDisassembleSimple(t *testing.T) {
	c := NewChunk()
	c.SetLine(1)
	c.EmitConstant(NumberConst(2))
	c.EmitConstant(StringConst("x"))
	c.Emit(OpAdd)
	c.DeclareGlobal(0, "total", true)
	c.Emit(OpStoreGlobal, 0)
	c.Emit(OpReturn)

	output := c.DisassembleWithName("main")

	for _, want := range []string{
		"; === main ===",
		"; Constants:",
		`"x"`,
		"CONSTANT 0 ; 2",
		"ADD",
		"STORE_GLOBAL 0 ; total",
		"total (global)",
		"RETURN",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("Disassembly missing %q\n%s", want, output)
		}
	}
}

func TestDisassembleJump(t *testing.T) {
	c := NewChunk()
	at := c.EmitJump(true, 1)
	c.Emit(OpNop)
	c.Emit(OpNop)
	if err := c.PatchJump(at); err != nil {
		t.Fatal(err)
	}

	text, n := c.DisassembleInstruction(at)
	if n != 2 {
		t.Errorf("length = %d, want 2", n)
	}
	if text != "JUMP_IF_FALSE8 +2 (-> 0004)" {
		t.Errorf("text = %q", text)
	}
}

func TestDisassembleHandlers(t *testing.T) {
	c := NewChunk()
	typ := c.AddErrorType("ValueError")
	h := c.AddHandler(ExceptionHandlerInfo{
		Catches: []CatchClause{{IP: 0x10, ErrorType: typ, VarSlot: 1}},
		ElseIP:  0x20,
	})
	c.Emit(OpBeginTry, h)

	output := c.Disassemble()
	for _, want := range []string{"catch ValueError -> 0010 (slot 1)", "else -> 0020", "BEGIN_TRY 0 ; 1 catch(es)"} {
		if !strings.Contains(output, want) {
			t.Errorf("Disassembly missing %q\n%s", want, output)
		}
	}
}

func TestDisassembleUnknownOpcode(t *testing.T) {
	c := NewChunk()
	c.Code = append(c.Code, 0xEE)
	text, n := c.DisassembleInstruction(0)
	if n != 1 || !strings.HasPrefix(text, "UNKNOWN") {
		t.Errorf("got %q, %d", text, n)
	}
}

func TestDisassembleProgram(t *testing.T) {
	p := NewProgram()
	fn := NewFunction("fib", 1)
	fn.Cacheable = true
	fn.AddCapture("base", 0, 2, 0)
	fn.Chunk.Emit(OpLoadLocal, 1)
	fn.Chunk.Emit(OpReturn)
	idx := p.AddFunction(fn)
	p.Main.EmitConstant(FunctionConst(idx))

	output := p.Disassemble()
	for _, want := range []string{"<main>", "fib/1 #0 [cached]", "<function 0>", "base (depth=0, slot 2 -> 0)"} {
		if !strings.Contains(output, want) {
			t.Errorf("Disassembly missing %q\n%s", want, output)
		}
	}
}
