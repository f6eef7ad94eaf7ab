package bytecode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"
)

// Magic bytes for bytecode files: "DCBC" (DataCode ByteCode)
var BytecodeMagic = []byte{'D', 'C', 'B', 'C'}

// ErrBadMagic is returned when decoding data that is not a bytecode file.
var ErrBadMagic = errors.New("bytecode: invalid magic number")

const headerLen = 6 // magic + version

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalProgram serializes a program for storage.
//
// Format:
//
//	[magic:4] [version:2] [program:cbor]
func MarshalProgram(p *Program) ([]byte, error) {
	if p == nil || p.Main == nil {
		return nil, errors.New("bytecode: program has no main chunk")
	}
	body, err := cborEncMode.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("bytecode: marshal program: %w", err)
	}
	buf := make([]byte, 0, headerLen+len(body))
	buf = append(buf, BytecodeMagic...)
	buf = binary.LittleEndian.AppendUint16(buf, BytecodeVersion)
	buf = append(buf, body...)
	return buf, nil
}

// UnmarshalProgram deserializes a program written by MarshalProgram.
func UnmarshalProgram(data []byte) (*Program, error) {
	if len(data) < headerLen {
		return nil, fmt.Errorf("bytecode: data too short (%d bytes)", len(data))
	}
	if !bytes.Equal(data[:4], BytecodeMagic) {
		return nil, ErrBadMagic
	}
	version := binary.LittleEndian.Uint16(data[4:6])
	if version != BytecodeVersion {
		return nil, fmt.Errorf("bytecode: unsupported version %d (expected %d)", version, BytecodeVersion)
	}

	var p Program
	if err := cbor.Unmarshal(data[headerLen:], &p); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal program: %w", err)
	}
	if p.Main == nil {
		return nil, errors.New("bytecode: program has no main chunk")
	}
	p.Main.normalize()
	for i, fn := range p.Functions {
		if fn == nil || fn.Chunk == nil {
			return nil, fmt.Errorf("bytecode: function %d has no chunk", i)
		}
		fn.Chunk.normalize()
	}
	return &p, nil
}

// ReadFile loads a program from a bytecode file.
func ReadFile(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	p, err := UnmarshalProgram(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// WriteFile stores a program as a bytecode file.
func WriteFile(path string, p *Program) error {
	data, err := MarshalProgram(p)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	return nil
}

// normalize restores the invariants NewChunk establishes that a decoder
// leaves unset.
func (c *Chunk) normalize() {
	if c.GlobalNames == nil {
		c.GlobalNames = make(map[int]string)
	}
	if c.ExplicitGlobalNames == nil {
		c.ExplicitGlobalNames = make(map[int]string)
	}
}
