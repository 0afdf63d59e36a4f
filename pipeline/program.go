package pipeline

import (
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"vkframe/descriptor"
	"vkframe/gpu"
)

const spirvMagic = 0x07230203

// Program is a compiled vertex and fragment shader pair together with the
// bindings it reads and the size in bytes of each of its uniforms.
type Program struct {
	Name      string
	Vertex    []byte
	Fragment  []byte
	Signature descriptor.Signature
	Uniforms  []uint64
}

// LoadProgram reads <dir>/<name>.vert.spv and <dir>/<name>.frag.spv. A
// missing or malformed artifact is a fatal init error.
func LoadProgram(dir, name string, sig descriptor.Signature, uniforms ...uint64) (*Program, error) {
	p := &Program{Name: name, Signature: sig, Uniforms: uniforms}
	var err error
	if p.Vertex, err = readSPIRV(filepath.Join(dir, name+".vert.spv")); err != nil {
		return nil, err
	}
	if p.Fragment, err = readSPIRV(filepath.Join(dir, name+".frag.spv")); err != nil {
		return nil, err
	}
	if n := sig.Count(descriptor.Uniform); len(uniforms) != n {
		return nil, errors.Mark(errors.Newf("program %s: %d uniform sizes for %d uniform bindings", name, len(uniforms), n), gpu.ErrFatalInit)
	}
	return p, nil
}

func readSPIRV(path string) ([]byte, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "read shader"), gpu.ErrFatalInit)
	}
	if len(code) < 4 || len(code)%4 != 0 || binary.LittleEndian.Uint32(code) != spirvMagic {
		return nil, errors.Mark(errors.Newf("%s is not a SPIR-V module", path), gpu.ErrFatalInit)
	}
	return code, nil
}
