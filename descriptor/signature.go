// Package descriptor builds descriptor set layouts and per-entity descriptor
// sets over uniform buffers and sampled textures.
package descriptor

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"vkframe/gpu"
)

// Binding is the kind of resource bound at one position of a set.
type Binding byte

const (
	Uniform Binding = 'U'
	Sampler Binding = 'S'
)

func (b Binding) String() string {
	switch b {
	case Uniform:
		return "uniform"
	case Sampler:
		return "sampler"
	}
	return fmt.Sprintf("Binding(%d)", byte(b))
}

func (b Binding) descriptorType() gpu.DescriptorType {
	if b == Sampler {
		return gpu.DescriptorCombinedImageSampler
	}
	return gpu.DescriptorUniformBuffer
}

// Uniforms are read by the vertex stage, samplers by the fragment stage.
func (b Binding) stage() gpu.ShaderStage {
	if b == Sampler {
		return gpu.ShaderStageFragment
	}
	return gpu.ShaderStageVertex
}

// Signature is the ordered list of bindings a shader program expects. The
// binding index is the position in the list. Signatures are immutable and
// comparable, so equal signatures can be used as the same map key.
type Signature struct {
	key string
}

// NewSignature returns the signature of bindings in order.
func NewSignature(bindings ...Binding) Signature {
	var sb strings.Builder
	for _, b := range bindings {
		if b != Uniform && b != Sampler {
			panic(fmt.Sprintf("descriptor: invalid binding %d", byte(b)))
		}
		sb.WriteByte(byte(b))
	}
	return Signature{key: sb.String()}
}

// ParseSignature parses the compact form returned by Key, for example "US".
func ParseSignature(s string) (Signature, error) {
	bindings := make([]Binding, len(s))
	for i := 0; i < len(s); i++ {
		b := Binding(s[i])
		if b != Uniform && b != Sampler {
			return Signature{}, errors.Newf("binding signature %q: invalid kind %q at %d", s, s[i], i)
		}
		bindings[i] = b
	}
	return NewSignature(bindings...), nil
}

// Key is a compact comparable form of the signature, one letter per binding.
func (s Signature) Key() string { return s.key }

func (s Signature) Len() int { return len(s.key) }

func (s Signature) At(i int) Binding { return Binding(s.key[i]) }

// Count returns how many bindings of kind the signature holds.
func (s Signature) Count(kind Binding) int {
	return strings.Count(s.key, string(kind))
}

func (s Signature) Bindings() []Binding {
	out := make([]Binding, len(s.key))
	for i := range out {
		out[i] = s.At(i)
	}
	return out
}

func (s Signature) String() string {
	names := make([]string, s.Len())
	for i := range names {
		names[i] = s.At(i).String()
	}
	return "[" + strings.Join(names, " ") + "]"
}

func (s Signature) layoutBindings() []gpu.LayoutBinding {
	out := make([]gpu.LayoutBinding, s.Len())
	for i := range out {
		b := s.At(i)
		out[i] = gpu.LayoutBinding{Binding: uint32(i), Type: b.descriptorType(), Stage: b.stage()}
	}
	return out
}
