package queueing

import "log"

type pipelineStage[T any] struct {
	elem     T
	occupied bool
}

// A Pipeline is a fixed-depth shift register. Every Tick moves each element
// one stage forward, and the element leaving the last stage is returned.
// Empty stages travel through as bubbles.
type Pipeline[T any] struct {
	name   string
	stages []pipelineStage[T]
}

// NewPipeline creates a pipeline with numStage stages.
func NewPipeline[T any](name string, numStage int) *Pipeline[T] {
	if numStage <= 0 {
		log.Panicf("pipeline %s must have at least one stage", name)
	}

	p := &Pipeline[T]{
		name:   name,
		stages: make([]pipelineStage[T], numStage),
	}

	return p
}

// Name returns the name of the pipeline.
func (p *Pipeline[T]) Name() string {
	return p.name
}

// NumStage returns the depth of the pipeline.
func (p *Pipeline[T]) NumStage() int {
	return len(p.stages)
}

// Tick shifts all the stages forward by one. It returns the element that
// leaves the last stage, if any.
func (p *Pipeline[T]) Tick() (out T, ok bool) {
	last := p.stages[len(p.stages)-1]
	out, ok = last.elem, last.occupied

	copy(p.stages[1:], p.stages[:len(p.stages)-1])
	p.stages[0] = pipelineStage[T]{}

	return out, ok
}

// Accept places an element in the first stage. If the first stage is
// currently occupied, this function panics.
func (p *Pipeline[T]) Accept(elem T) {
	if p.stages[0].occupied {
		log.Panicf("pipeline %s accepted twice in one cycle", p.name)
	}

	p.stages[0] = pipelineStage[T]{elem: elem, occupied: true}
}
