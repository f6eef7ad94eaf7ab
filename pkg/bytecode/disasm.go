package bytecode

import (
	"fmt"
	"sort"
	"strings"
)

// Disassemble returns a human-readable bytecode listing for the chunk.
func (c *Chunk) Disassemble() string {
	return c.DisassembleWithName("")
}

// DisassembleWithName returns a human-readable bytecode listing with a name header.
func (c *Chunk) DisassembleWithName(name string) string {
	var sb strings.Builder

	if name != "" {
		sb.WriteString(fmt.Sprintf("; === %s ===\n", name))
	}
	sb.WriteString(fmt.Sprintf("; DataCode Bytecode v%d\n", c.Version))
	sb.WriteString("\n")

	if len(c.Constants) > 0 {
		sb.WriteString("; Constants:\n")
		for i, k := range c.Constants {
			display := k.String()
			if len(display) > 40 {
				display = display[:37] + "..."
			}
			display = strings.ReplaceAll(display, "\n", "\\n")
			display = strings.ReplaceAll(display, "\t", "\\t")
			sb.WriteString(fmt.Sprintf(";   [%3d] %s\n", i, display))
		}
		sb.WriteString("\n")
	}

	if len(c.GlobalNames) > 0 {
		sb.WriteString("; Globals:\n")
		for _, slot := range sortedSlots(c.GlobalNames) {
			marker := ""
			if _, ok := c.ExplicitGlobalNames[slot]; ok {
				marker = " (global)"
			}
			sb.WriteString(fmt.Sprintf(";   [%3d] %s%s\n", slot, c.GlobalNames[slot], marker))
		}
		sb.WriteString("\n")
	}

	if len(c.ExceptionHandlers) > 0 {
		sb.WriteString("; Handlers:\n")
		for i, h := range c.ExceptionHandlers {
			sb.WriteString(fmt.Sprintf(";   [%3d]", i))
			for _, clause := range h.Catches {
				typ := "*"
				if clause.Typed() && clause.ErrorType < len(c.ErrorTypes) {
					typ = c.ErrorTypes[clause.ErrorType]
				}
				sb.WriteString(fmt.Sprintf(" catch %s -> %04X", typ, clause.IP))
				if clause.Binds() {
					sb.WriteString(fmt.Sprintf(" (slot %d)", clause.VarSlot))
				}
				sb.WriteString(";")
			}
			if h.HasElse() {
				sb.WriteString(fmt.Sprintf(" else -> %04X", h.ElseIP))
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("; Code:\n")
	offset := 0
	lastLine := -1
	for offset < len(c.Code) {
		text, n := c.disassembleInstruction(offset)
		line := c.LineAt(offset)
		if line != lastLine {
			sb.WriteString(fmt.Sprintf("%04X %4d  %s\n", offset, line, text))
			lastLine = line
		} else {
			sb.WriteString(fmt.Sprintf("%04X    |  %s\n", offset, text))
		}
		offset += n
	}

	return sb.String()
}

// DisassembleInstruction returns a human-readable representation of a single
// instruction and its length in bytes.
func (c *Chunk) DisassembleInstruction(offset int) (string, int) {
	return c.disassembleInstruction(offset)
}

func (c *Chunk) disassembleInstruction(offset int) (string, int) {
	if offset >= len(c.Code) {
		return "<end>", 1
	}

	op := Opcode(c.Code[offset])
	info := GetOpcodeInfo(op)
	if !op.IsKnown() {
		return info.Name, 1
	}
	length := op.InstructionLen()
	if offset+length > len(c.Code) {
		return fmt.Sprintf("%s <truncated>", info.Name), len(c.Code) - offset
	}
	if info.OperandLen == 0 {
		return info.Name, length
	}

	operand := c.Operand(offset)

	switch {
	case op == OpConstant:
		if operand < len(c.Constants) {
			return fmt.Sprintf("CONSTANT %d ; %s", operand, c.Constants[operand]), length
		}
		return fmt.Sprintf("CONSTANT %d ; <invalid>", operand), length

	case op == OpLoadGlobal || op == OpStoreGlobal:
		if name, ok := c.GlobalNames[operand]; ok {
			return fmt.Sprintf("%s %d ; %s", info.Name, operand, name), length
		}
		return fmt.Sprintf("%s %d", info.Name, operand), length

	case op.IsJump():
		target := offset + length + operand
		return fmt.Sprintf("%s %+d (-> %04X)", info.Name, operand, target), length

	case op == OpCall:
		return fmt.Sprintf("CALL argc=%d", operand), length

	case op == OpBeginTry:
		if operand < len(c.ExceptionHandlers) {
			return fmt.Sprintf("BEGIN_TRY %d ; %d catch(es)", operand, len(c.ExceptionHandlers[operand].Catches)), length
		}
		return fmt.Sprintf("BEGIN_TRY %d ; <invalid>", operand), length

	default:
		return fmt.Sprintf("%s %d", info.Name, operand), length
	}
}

// Disassemble returns a listing of the main chunk followed by every function.
func (p *Program) Disassemble() string {
	var sb strings.Builder
	sb.WriteString(p.Main.DisassembleWithName("<main>"))
	for i, fn := range p.Functions {
		sb.WriteString("\n")
		header := fmt.Sprintf("%s/%d #%d", fn.Name, fn.Arity, i)
		if fn.Cacheable {
			header += " [cached]"
		}
		sb.WriteString(fn.Chunk.DisassembleWithName(header))
		if len(fn.Captures) > 0 {
			sb.WriteString("; Captures:\n")
			for j, cap := range fn.Captures {
				sb.WriteString(fmt.Sprintf(";   [%3d] %s (depth=%d, slot %d -> %d)\n",
					j, cap.Name, cap.AncestorDepth, cap.ParentSlot, cap.LocalSlot))
			}
		}
	}
	return sb.String()
}

func sortedSlots(m map[int]string) []int {
	slots := make([]int, 0, len(m))
	for slot := range m {
		slots = append(slots, slot)
	}
	sort.Ints(slots)
	return slots
}
