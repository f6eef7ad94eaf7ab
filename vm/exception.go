package vm

import "github.com/chazu/datacode/pkg/bytecode"

// ---------------------------------------------------------------------------
// Exception Handling Infrastructure
// ---------------------------------------------------------------------------

// ExceptionHandler is the runtime record of one active try region.
type ExceptionHandler struct {
	Info        *bytecode.ExceptionHandlerInfo // catch table and else entry
	StackHeight int                            // value stack height at BeginTry
	FrameIndex  int                            // frame that executed BeginTry
	Fired       bool                           // a catch clause has been entered
}

// inCatchBlock reports whether ip lies inside one of the handler's own catch
// blocks. Catch block i spans [catch_i, catch_i+1); the last one ends at the
// else entry, or is unbounded when there is no else block.
func (h *ExceptionHandler) inCatchBlock(ip int) bool {
	catches := h.Info.Catches
	for n, c := range catches {
		if ip < c.IP {
			continue
		}
		switch {
		case n+1 < len(catches):
			if ip < catches[n+1].IP {
				return true
			}
		case h.Info.HasElse():
			if ip < h.Info.ElseIP {
				return true
			}
		default:
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Interpreter exception handler stack
// ---------------------------------------------------------------------------

// pushHandler installs the try region at index of the current frame's chunk.
func (i *Interpreter) pushHandler(index int) *Fault {
	frame := i.frame()
	if index < 0 || index >= len(frame.Chunk.ExceptionHandlers) {
		return raise(RuntimeError, "exception handler %d out of bounds", index)
	}
	i.handlers = append(i.handlers, &ExceptionHandler{
		Info:        &frame.Chunk.ExceptionHandlers[index],
		StackHeight: len(i.stack),
		FrameIndex:  len(i.frames) - 1,
	})
	return nil
}

// popHandler removes the innermost handler. Returns nil if none is installed.
func (i *Interpreter) popHandler() *ExceptionHandler {
	if len(i.handlers) == 0 {
		return nil
	}
	h := i.handlers[len(i.handlers)-1]
	i.handlers[len(i.handlers)-1] = nil
	i.handlers = i.handlers[:len(i.handlers)-1]
	return h
}

// unwindHandlersToFrame removes handlers owned by frameIndex or deeper frames.
func (i *Interpreter) unwindHandlersToFrame(frameIndex int) {
	for len(i.handlers) > 0 && i.handlers[len(i.handlers)-1].FrameIndex >= frameIndex {
		i.popHandler()
	}
}

// clauseMatches reports whether a catch clause accepts a fault. Typed clauses
// resolve their type name through the owning chunk's error type table;
// unknown names never match.
func clauseMatches(chunk *bytecode.Chunk, clause bytecode.CatchClause, f *Fault) bool {
	if !clause.Typed() {
		return true
	}
	if clause.ErrorType < 0 || clause.ErrorType >= len(chunk.ErrorTypes) {
		return false
	}
	want, ok := ParseErrorType(chunk.ErrorTypes[clause.ErrorType])
	if !ok {
		return false
	}
	return f.Type.IsA(want)
}

// dispatch offers a fault to the active handlers, newest first. siteIP is the
// offset of the faulting instruction in the top frame. On a match the stack
// and frames are unwound to the handler, the message is bound if the clause
// asks for it, and execution resumes at the catch entry.
func (i *Interpreter) dispatch(f *Fault, siteIP int) bool {
	top := len(i.frames) - 1
	for n := len(i.handlers) - 1; n >= 0; n-- {
		h := i.handlers[n]
		if h.FrameIndex > top {
			continue
		}
		// A fault raised inside this handler's own catch block belongs to
		// an outer handler.
		if h.FrameIndex == top && h.inCatchBlock(siteIP) {
			continue
		}

		owner := i.frames[h.FrameIndex]
		for _, clause := range h.Info.Catches {
			if !clauseMatches(owner.Chunk, clause, f) {
				continue
			}

			h.Fired = true
			i.truncateStack(h.StackHeight)
			for len(i.frames) > h.FrameIndex+1 {
				i.popFrame()
			}
			for len(i.handlers) > n+1 {
				i.popHandler()
			}
			if clause.Binds() {
				owner.SetLocal(clause.VarSlot, FromString(f.Message))
			}
			owner.IP = clause.IP

			if i.log.AllowLevel(logDebug) {
				i.log.Debug("fault caught",
					"type", f.Type.String(),
					"line", f.Line,
					"function", owner.Name())
			}
			return true
		}
	}
	return false
}
