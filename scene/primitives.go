package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"vkframe/core"
)

var defaultVertexColor = mgl32.Vec3{0.8, 0.8, 0.8}

// CubeData returns a cube of edge size centred on the origin with one quad
// per face so normals stay flat.
func CubeData(size float32) core.MeshData {
	s := size / 2
	white := mgl32.Vec3{1, 1, 1}
	face := func(n mgl32.Vec3, corners [4]mgl32.Vec3) []core.Vertex {
		uvs := [4]mgl32.Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
		out := make([]core.Vertex, 4)
		for i := range out {
			out[i] = core.Vertex{Position: corners[i], Color: white, UV: uvs[i], Normal: n}
		}
		return out
	}

	var vertices []core.Vertex
	vertices = append(vertices, face(mgl32.Vec3{0, 0, 1}, [4]mgl32.Vec3{{-s, -s, s}, {s, -s, s}, {s, s, s}, {-s, s, s}})...)
	vertices = append(vertices, face(mgl32.Vec3{0, 0, -1}, [4]mgl32.Vec3{{s, -s, -s}, {-s, -s, -s}, {-s, s, -s}, {s, s, -s}})...)
	vertices = append(vertices, face(mgl32.Vec3{0, 1, 0}, [4]mgl32.Vec3{{-s, s, s}, {s, s, s}, {s, s, -s}, {-s, s, -s}})...)
	vertices = append(vertices, face(mgl32.Vec3{0, -1, 0}, [4]mgl32.Vec3{{-s, -s, -s}, {s, -s, -s}, {s, -s, s}, {-s, -s, s}})...)
	vertices = append(vertices, face(mgl32.Vec3{1, 0, 0}, [4]mgl32.Vec3{{s, -s, s}, {s, -s, -s}, {s, s, -s}, {s, s, s}})...)
	vertices = append(vertices, face(mgl32.Vec3{-1, 0, 0}, [4]mgl32.Vec3{{-s, -s, -s}, {-s, -s, s}, {-s, s, s}, {-s, s, -s}})...)

	indices := make([]uint32, 0, 36)
	for f := uint32(0); f < 6; f++ {
		b := f * 4
		indices = append(indices, b, b+1, b+2, b+2, b+3, b)
	}
	return core.MeshData{Vertices: vertices, Indices: indices}
}

// PlaneData returns a flat XZ plane facing +Y split into subdivisions²
// quads.
func PlaneData(width, depth float32, subdivisions int) core.MeshData {
	if subdivisions < 1 {
		subdivisions = 1
	}
	halfW, halfD := width/2, depth/2

	var vertices []core.Vertex
	for z := 0; z <= subdivisions; z++ {
		for x := 0; x <= subdivisions; x++ {
			u := float32(x) / float32(subdivisions)
			v := float32(z) / float32(subdivisions)
			vertices = append(vertices, core.Vertex{
				Position: mgl32.Vec3{-halfW + u*width, 0, -halfD + v*depth},
				Color:    defaultVertexColor,
				UV:       mgl32.Vec2{u, v},
				Normal:   mgl32.Vec3{0, 1, 0},
			})
		}
	}

	var indices []uint32
	row := uint32(subdivisions + 1)
	for z := uint32(0); z < uint32(subdivisions); z++ {
		for x := uint32(0); x < uint32(subdivisions); x++ {
			topLeft := z*row + x
			bottomLeft := topLeft + row
			indices = append(indices, topLeft, bottomLeft, topLeft+1)
			indices = append(indices, topLeft+1, bottomLeft, bottomLeft+1)
		}
	}
	return core.MeshData{Vertices: vertices, Indices: indices}
}

// SphereData returns a UV sphere.
func SphereData(radius float32, segments, rings int) core.MeshData {
	segments = max(segments, 3)
	rings = max(rings, 2)

	var vertices []core.Vertex
	for ring := 0; ring <= rings; ring++ {
		phi := float64(ring) * math.Pi / float64(rings)
		sinPhi, cosPhi := float32(math.Sin(phi)), float32(math.Cos(phi))
		for seg := 0; seg <= segments; seg++ {
			theta := float64(seg) * 2 * math.Pi / float64(segments)
			sinTheta, cosTheta := float32(math.Sin(theta)), float32(math.Cos(theta))

			normal := mgl32.Vec3{sinPhi * cosTheta, cosPhi, sinPhi * sinTheta}
			vertices = append(vertices, core.Vertex{
				Position: normal.Mul(radius),
				Color:    defaultVertexColor,
				UV:       mgl32.Vec2{float32(seg) / float32(segments), float32(ring) / float32(rings)},
				Normal:   normal,
			})
		}
	}

	var indices []uint32
	for ring := 0; ring < rings; ring++ {
		for seg := 0; seg < segments; seg++ {
			current := uint32(ring*(segments+1) + seg)
			next := current + uint32(segments+1)
			indices = append(indices, current, next, current+1)
			indices = append(indices, current+1, next, next+1)
		}
	}
	return core.MeshData{Vertices: vertices, Indices: indices}
}
