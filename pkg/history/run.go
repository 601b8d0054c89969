// Package history records the outcome of tasks run through maactl in a
// BadgerDB store. Records are msgpack-encoded and keyed by a time-ordered
// UUID, so iteration order is chronological.
package history

import (
	"time"

	"github.com/google/uuid"

	"github.com/haivivi/maafw/pkg/maa"
)

// Run is one recorded task run.
type Run struct {
	ID      string `msgpack:"id" json:"id" yaml:"id"`
	Profile string `msgpack:"profile,omitempty" json:"profile,omitempty" yaml:"profile,omitempty"`
	Entry   string `msgpack:"entry" json:"entry" yaml:"entry"`

	// Device is the controller UUID the task ran against.
	Device string `msgpack:"device,omitempty" json:"device,omitempty" yaml:"device,omitempty"`

	TaskID   int64         `msgpack:"task_id" json:"task_id" yaml:"task_id"`
	Status   string        `msgpack:"status" json:"status" yaml:"status"`
	Started  time.Time     `msgpack:"started" json:"started" yaml:"started"`
	Duration time.Duration `msgpack:"duration" json:"duration" yaml:"duration"`
	Nodes    []Node        `msgpack:"nodes,omitempty" json:"nodes,omitempty" yaml:"nodes,omitempty"`

	// Artifact is the location of the screenshot stored for the run.
	Artifact string `msgpack:"artifact,omitempty" json:"artifact,omitempty" yaml:"artifact,omitempty"`
	Error    string `msgpack:"error,omitempty" json:"error,omitempty" yaml:"error,omitempty"`
}

// Node summarizes one executed pipeline node.
type Node struct {
	Name      string `msgpack:"name" json:"name" yaml:"name"`
	Completed bool   `msgpack:"completed" json:"completed" yaml:"completed"`
	Algorithm string `msgpack:"algorithm,omitempty" json:"algorithm,omitempty" yaml:"algorithm,omitempty"`
	Hit       bool   `msgpack:"hit" json:"hit" yaml:"hit"`
	Action    string `msgpack:"action,omitempty" json:"action,omitempty" yaml:"action,omitempty"`
	Success   bool   `msgpack:"success" json:"success" yaml:"success"`
}

// NewID returns a time-ordered run id.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Succeeded reports whether the task finished successfully.
func (r *Run) Succeeded() bool {
	return r.Status == maa.StatusSucceeded.String()
}

// FromDetail fills the task fields of r from a task detail.
func (r *Run) FromDetail(d *maa.TaskDetail) {
	if d == nil {
		return
	}
	r.TaskID = d.ID
	if r.Entry == "" {
		r.Entry = d.Entry
	}
	r.Status = d.Status.String()
	r.Nodes = r.Nodes[:0]
	for _, n := range d.Nodes {
		if n == nil {
			continue
		}
		node := Node{Name: n.NodeName, Completed: n.Completed}
		if n.Recognition != nil {
			node.Algorithm = n.Recognition.Algorithm
			node.Hit = n.Recognition.Hit
		}
		if n.Action != nil {
			node.Action = n.Action.Action
			node.Success = n.Action.Success
		}
		r.Nodes = append(r.Nodes, node)
	}
}
