// Package config loads named queue policies (retention time, sync tag)
// from a directory of CUE files, so a long-running replayq process can
// declare its queue roster without being recompiled.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
)

//go:embed schema.cue
var schemaCUE string

// QueueConfig is one declared queue: its name, retention window, and an
// optional override for its sync tag (defaults to "replayq:"+Name when
// empty, matching queue.Queue's own default).
type QueueConfig struct {
	Name            string
	MaxRetention    time.Duration
	SyncTagOverride string
}

// LoadError reports a CUE validation failure, with a source position when
// one is available from the CUE toolchain.
type LoadError struct {
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

// rawQueue mirrors schema.cue's #Queue shape for decoding.
type rawQueue struct {
	Name                string `json:"name"`
	MaxRetentionMinutes int    `json:"maxRetentionMinutes"`
	Tag                 string `json:"tag"`
}

// Load reads every *.cue file in dir, validates it against the embedded
// queue schema, and returns the declared queues.
func Load(dir string) ([]QueueConfig, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &LoadError{Message: fmt.Sprintf("config directory not found: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	ctx := cuecontext.New()

	schemaVal := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if schemaVal.Err() != nil {
		return nil, &LoadError{Message: fmt.Sprintf("compiling embedded schema: %v", schemaVal.Err())}
	}

	cfg := &load.Config{Dir: dir}
	instances := load.Instances([]string{"."}, cfg)
	if len(instances) == 0 {
		return nil, &LoadError{Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	userVal := ctx.BuildInstance(inst)
	if userVal.Err() != nil {
		return nil, &LoadError{Message: fmt.Sprintf("building CUE value: %v", userVal.Err())}
	}

	unified := schemaVal.Unify(userVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		pos := token.NoPos
		if errs := errorsPositions(err); len(errs) > 0 {
			pos = errs[0]
		}
		return nil, &LoadError{Message: fmt.Sprintf("invalid queue config: %v", err), Pos: pos}
	}

	queuesVal := unified.LookupPath(cue.ParsePath("queues"))
	if !queuesVal.Exists() {
		return nil, &LoadError{Message: "no \"queues\" field declared"}
	}

	var raw []rawQueue
	if err := queuesVal.Decode(&raw); err != nil {
		return nil, &LoadError{Message: fmt.Sprintf("decoding queues: %v", err)}
	}

	out := make([]QueueConfig, 0, len(raw))
	for _, rq := range raw {
		out = append(out, QueueConfig{
			Name:            rq.Name,
			MaxRetention:    time.Duration(rq.MaxRetentionMinutes) * time.Minute,
			SyncTagOverride: rq.Tag,
		})
	}
	return out, nil
}

// errorsPositions extracts source positions from a CUE error chain, best
// effort, for inclusion in LoadError.
func errorsPositions(err error) []token.Pos {
	type positioner interface {
		Position() token.Pos
	}
	var positions []token.Pos
	if p, ok := err.(positioner); ok {
		positions = append(positions, p.Position())
	}
	return positions
}
