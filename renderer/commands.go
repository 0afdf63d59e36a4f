package renderer

import (
	"cogentcore.org/core/ordmap"
	"github.com/cockroachdb/errors"

	"vkframe/core"
	"vkframe/gpu"
	"vkframe/pipeline"
	"vkframe/scene"
)

type draw struct {
	name     string
	entity   scene.Renderable
	mesh     *scene.Mesh
	pipeline *pipeline.Pipeline
}

// RebuildCommandLists frees every command list and records one per back
// buffer drawing the visible renderables of entities in order. entities may
// be nil.
func (r *Renderer) RebuildCommandLists(entities *ordmap.Map[string, scene.Entity]) error {
	draws, err := r.collect(entities)
	if err != nil {
		return errors.Wrapf(err, "renderer %s", r.Name)
	}
	r.entities = entities

	if len(r.commands) > 0 {
		r.dev.FreeCommandBuffers(r.commands)
		r.commands = nil
	}
	commands, err := r.dev.AllocateCommandBuffers(r.ctx.BackBufferCount())
	if err != nil {
		return gpu.CreationError(err, "command lists")
	}
	r.commands = commands

	for i, cb := range r.commands {
		if err := r.record(i, cb, draws); err != nil {
			return errors.Wrapf(err, "record renderer %s list %d", r.Name, i)
		}
	}

	r.drawn = make([]string, 0, len(draws))
	r.stats = Stats{}
	for _, d := range draws {
		r.drawn = append(r.drawn, d.name)
		r.stats.Objects++
		r.stats.Triangles += int(d.mesh.IndexCount / 3)
	}
	core.Logger().Debug("command lists recorded",
		"renderer", r.Name,
		"lists", len(r.commands),
		"draws", len(draws))
	return nil
}

// collect resolves the pipeline of every drawable entity before anything is
// recorded.
func (r *Renderer) collect(entities *ordmap.Map[string, scene.Entity]) ([]draw, error) {
	if entities == nil {
		return nil, nil
	}
	var draws []draw
	for _, kv := range entities.Order {
		e, ok := kv.Value.(scene.Renderable)
		if !ok || e.Mesh() == nil {
			continue
		}
		if h, ok := kv.Value.(scene.Hideable); ok && h.Hidden() {
			continue
		}
		program := e.Program()
		sig := program.Signature
		if d := e.Descriptor(); d != nil {
			sig = d.Signature
		}
		p, err := r.world.Pipelines.GetOrCreate(program, e.Mesh().Layout, sig, r.target)
		if err != nil {
			return nil, errors.Wrapf(err, "entity %s", kv.Key)
		}
		draws = append(draws, draw{name: kv.Key, entity: e, mesh: e.Mesh(), pipeline: p})
	}
	return draws, nil
}

func (r *Renderer) record(index int, cb gpu.CommandBuffer, draws []draw) error {
	rec := r.dev.Recorder(cb)
	if err := rec.Begin(false); err != nil {
		return err
	}
	rec.BeginRenderPass(r.pass, r.framebuffers[index], r.extent, r.clears)
	rec.SetViewport(r.extent)
	for _, d := range draws {
		rec.BindPipeline(d.pipeline.Handle)
		rec.BindVertexBuffer(d.mesh.Vertices.Handle)
		rec.BindIndexBuffer(d.mesh.Indices.Handle)
		if desc := d.entity.Descriptor(); desc != nil {
			if index >= desc.Len() {
				return errors.Mark(errors.Newf("entity %s has %d descriptor sets, list %d", d.name, desc.Len(), index), gpu.ErrBackBufferCount)
			}
			rec.BindDescriptorSet(d.pipeline.Layout, desc.Set(index))
		}
		rec.DrawIndexed(d.mesh.IndexCount)
	}
	rec.EndRenderPass()
	return rec.End()
}
