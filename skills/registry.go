// Package skills holds reusable instruction fragments bound to pipeline stages.
package skills

import (
	"fmt"
	"sync"
)

// Stages that accept skills.
const (
	StageContextEnhance = "context_enhance"
	StageCopyWrite      = "copy_write"
	StageImagePrompt    = "image_prompt"
)

// Stages lists the valid skill stages in pipeline order.
var Stages = []string{StageContextEnhance, StageCopyWrite, StageImagePrompt}

// Skill is a named prompt fragment injected into one stage's template.
type Skill struct {
	ID          string
	Name        string
	Stage       string
	Description string
	Content     string
}

// NewSkill validates the stage.
func NewSkill(id, name, stage, description, content string) (Skill, error) {
	if !ValidStage(stage) {
		return Skill{}, fmt.Errorf("stage must be one of %v, got %s", Stages, stage)
	}
	return Skill{ID: id, Name: name, Stage: stage, Description: description, Content: content}, nil
}

func ValidStage(stage string) bool {
	for _, s := range Stages {
		if s == stage {
			return true
		}
	}
	return false
}

// Registry indexes skills by id and by stage. It is filled during startup
// and only read while requests are served.
type Registry struct {
	mu      sync.RWMutex
	byID    map[string]Skill
	byStage map[string][]string
}

func NewRegistry() *Registry {
	r := &Registry{}
	r.reset()
	return r
}

func (r *Registry) reset() {
	r.byID = map[string]Skill{}
	r.byStage = map[string][]string{}
	for _, s := range Stages {
		r.byStage[s] = nil
	}
}

// Register adds or replaces a skill. Re-registering an id keeps its
// original position in the stage index.
func (r *Registry) Register(s Skill) error {
	if !ValidStage(s.Stage) {
		return fmt.Errorf("skill %s: stage must be one of %v, got %s", s.ID, Stages, s.Stage)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.byID[s.ID]; ok && prev.Stage != s.Stage {
		r.byStage[prev.Stage] = removeID(r.byStage[prev.Stage], s.ID)
	}
	_, existed := r.byID[s.ID]
	r.byID[s.ID] = s
	if !existed || !containsID(r.byStage[s.Stage], s.ID) {
		r.byStage[s.Stage] = append(r.byStage[s.Stage], s.ID)
	}
	return nil
}

// ForStage returns the stage's skills in registration order.
func (r *Registry) ForStage(stage string) []Skill {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.byStage[stage]
	out := make([]Skill, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.byID[id])
	}
	return out
}

func (r *Registry) ByID(id string) (Skill, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	return s, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Clear empties the registry; used to reload in tests.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reset()
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
