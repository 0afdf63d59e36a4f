package scene

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"vkframe/core"
)

var (
	ErrCycle         = errors.New("parent link would create a cycle")
	ErrInvalidEntity = errors.New("invalid entity id")
)

// EntityID indexes the Graph. IDs are never reused.
type EntityID int32

// NoEntity is the parent of a root node.
const NoEntity EntityID = -1

type graphNode struct {
	transform core.Transform
	parent    EntityID
	alive     bool
}

// Graph stores entity transforms in an arena. Each node keeps only its
// parent; children are derived when asked for.
type Graph struct {
	nodes []graphNode
	count int
}

func NewGraph() *Graph {
	return &Graph{}
}

// Add inserts a root node with transform t.
func (g *Graph) Add(t core.Transform) EntityID {
	g.nodes = append(g.nodes, graphNode{transform: t, parent: NoEntity, alive: true})
	g.count++
	return EntityID(len(g.nodes) - 1)
}

// Remove deletes id. Its children become roots and keep their local
// transforms.
func (g *Graph) Remove(id EntityID) {
	if !g.Valid(id) {
		return
	}
	for i := range g.nodes {
		if g.nodes[i].alive && g.nodes[i].parent == id {
			g.nodes[i].parent = NoEntity
		}
	}
	g.nodes[id] = graphNode{parent: NoEntity}
	g.count--
}

func (g *Graph) Valid(id EntityID) bool {
	return id >= 0 && int(id) < len(g.nodes) && g.nodes[id].alive
}

// Len returns the number of live nodes.
func (g *Graph) Len() int { return g.count }

// Transform returns the local transform of id for in-place edits.
func (g *Graph) Transform(id EntityID) *core.Transform {
	if !g.Valid(id) {
		return nil
	}
	return &g.nodes[id].transform
}

// SetParent links child under parent. NoEntity detaches child. A link that
// would make child its own ancestor is rejected.
func (g *Graph) SetParent(child, parent EntityID) error {
	if !g.Valid(child) {
		return errors.Wrapf(ErrInvalidEntity, "child %d", child)
	}
	if parent == NoEntity {
		g.nodes[child].parent = NoEntity
		return nil
	}
	if !g.Valid(parent) {
		return errors.Wrapf(ErrInvalidEntity, "parent %d", parent)
	}
	for p := parent; p != NoEntity; p = g.nodes[p].parent {
		if p == child {
			return errors.Wrapf(ErrCycle, "%d under %d", child, parent)
		}
	}
	g.nodes[child].parent = parent
	return nil
}

func (g *Graph) Parent(id EntityID) (EntityID, bool) {
	if !g.Valid(id) || g.nodes[id].parent == NoEntity {
		return NoEntity, false
	}
	return g.nodes[id].parent, true
}

// Children returns the direct children of id in insertion order.
func (g *Graph) Children(id EntityID) []EntityID {
	var out []EntityID
	for i, n := range g.nodes {
		if n.alive && n.parent == id {
			out = append(out, EntityID(i))
		}
	}
	return out
}

// WorldMatrix composes the local matrices from the root down to id.
func (g *Graph) WorldMatrix(id EntityID) mgl32.Mat4 {
	if !g.Valid(id) {
		return mgl32.Ident4()
	}
	m := g.nodes[id].transform.GetMatrix()
	for p := g.nodes[id].parent; p != NoEntity; p = g.nodes[p].parent {
		m = g.nodes[p].transform.GetMatrix().Mul4(m)
	}
	return m
}

// WorldPosition returns the translation of WorldMatrix(id).
func (g *Graph) WorldPosition(id EntityID) mgl32.Vec3 {
	return g.WorldMatrix(id).Col(3).Vec3()
}
