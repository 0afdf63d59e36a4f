package scene

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"vkframe/core"
	"vkframe/gpu"
	"vkframe/pipeline"
	"vkframe/resource"
)

// AABB is an axis-aligned bounding box in mesh space.
type AABB struct {
	Min, Max mgl32.Vec3
}

// Mesh is vertex and index data uploaded to device-local buffers. Indices
// are uint32.
type Mesh struct {
	Name       string
	Vertices   *resource.Buffer
	Indices    *resource.Buffer
	IndexCount uint32
	Layout     pipeline.VertexLayoutKind
	Bounds     AABB
}

// NewMesh uploads static mesh data.
func NewMesh(pool *resource.Pool, name string, data core.MeshData) (*Mesh, error) {
	positions := make([]mgl32.Vec3, len(data.Vertices))
	for i, v := range data.Vertices {
		positions[i] = v.Position
	}
	return upload(pool, name, pipeline.Static, data.VertexBytes(), data.IndexBytes(), len(data.Indices), positions)
}

// NewAnimatedMesh uploads skinned mesh data.
func NewAnimatedMesh(pool *resource.Pool, name string, data core.AnimatedMeshData) (*Mesh, error) {
	positions := make([]mgl32.Vec3, len(data.Vertices))
	for i, v := range data.Vertices {
		positions[i] = v.Position
	}
	return upload(pool, name, pipeline.Animated, data.VertexBytes(), data.IndexBytes(), len(data.Indices), positions)
}

func upload(pool *resource.Pool, name string, layout pipeline.VertexLayoutKind, vertices, indices []byte, count int, positions []mgl32.Vec3) (*Mesh, error) {
	if len(vertices) == 0 || count == 0 {
		return nil, errors.Newf("mesh %s has no geometry", name)
	}
	m := &Mesh{Name: name, IndexCount: uint32(count), Layout: layout, Bounds: computeBounds(positions)}

	var err error
	m.Vertices, err = pool.CreateBuffer(uint64(len(vertices)), resource.DeviceLocal, gpu.BufferUsageVertex, vertices)
	if err != nil {
		return nil, errors.Wrapf(err, "mesh %s vertices", name)
	}
	m.Indices, err = pool.CreateBuffer(uint64(len(indices)), resource.DeviceLocal, gpu.BufferUsageIndex, indices)
	if err != nil {
		pool.Destroy(m.Vertices)
		return nil, errors.Wrapf(err, "mesh %s indices", name)
	}
	return m, nil
}

func computeBounds(positions []mgl32.Vec3) AABB {
	if len(positions) == 0 {
		return AABB{}
	}
	b := AABB{Min: positions[0], Max: positions[0]}
	for _, p := range positions[1:] {
		for i := 0; i < 3; i++ {
			b.Min[i] = min(b.Min[i], p[i])
			b.Max[i] = max(b.Max[i], p[i])
		}
	}
	return b
}

// Destroy frees the GPU buffers.
func (m *Mesh) Destroy(pool *resource.Pool) {
	pool.Destroy(m.Vertices)
	pool.Destroy(m.Indices)
}
