package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StageName 标识流水线中的一个阶段或终点。
type StageName string

const (
	StageInputSafety    StageName = "input_safety"
	StageContextEnhance StageName = "context_enhance"
	StageCopyWrite      StageName = "copy_write"
	StageImagePrompt    StageName = "image_prompt"
	StageImageGen       StageName = "image_gen"
	StageOutputSafety   StageName = "output_safety"

	StageDone     StageName = "done"
	StageRejected StageName = "rejected"
)

type stageFunc func(ctx context.Context, s State) (Update, error)

type node struct {
	run   stageFunc
	route func(s State) StageName
}

func always(next StageName) func(State) StageName {
	return func(State) StageName { return next }
}

// Result 是一次运行的最终状态与经过的阶段。
type Result struct {
	RequestID string
	State     State
	Path      []StageName
	Rejected  bool
}

// Pipeline 按显式路由表依次执行各阶段，单请求内串行。
type Pipeline struct {
	graph  map[StageName]node
	start  StageName
	logger *zap.Logger
}

func NewPipeline(nodes *Nodes, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	graph := map[StageName]node{
		StageInputSafety: {
			run: nodes.InputSafety,
			route: func(s State) StageName {
				if s.InputRejected() {
					return StageRejected
				}
				return StageContextEnhance
			},
		},
		StageContextEnhance: {run: nodes.ContextEnhance, route: always(StageCopyWrite)},
		StageCopyWrite: {
			run: nodes.CopyWrite,
			route: func(s State) StageName {
				if s.NeedImageGeneration {
					return StageImagePrompt
				}
				return StageOutputSafety
			},
		},
		StageImagePrompt:  {run: nodes.ImagePrompt, route: always(StageImageGen)},
		StageImageGen:     {run: nodes.ImageGenerate, route: always(StageOutputSafety)},
		StageOutputSafety: {run: nodes.OutputSafety, route: always(StageDone)},
	}
	return &Pipeline{graph: graph, start: StageInputSafety, logger: logger.Named("pipeline")}
}

// Run 从 input_safety 开始执行到 done 或 rejected。阶段错误会带上阶段名返回；
// 出错或取消时 Result 仍带有已合并的部分状态。
func (p *Pipeline) Run(ctx context.Context, s State) (res Result, err error) {
	res.RequestID = uuid.NewString()
	defer func() { res.State = s }()

	log := p.logger.With(zap.String("request_id", res.RequestID))
	visited := make(map[StageName]bool, len(p.graph))

	for stage := p.start; stage != StageDone && stage != StageRejected; {
		if cerr := ctx.Err(); cerr != nil {
			return res, cerr
		}
		if visited[stage] {
			return res, fmt.Errorf("stage %s revisited", stage)
		}
		visited[stage] = true

		n, ok := p.graph[stage]
		if !ok {
			return res, fmt.Errorf("unknown stage %s", stage)
		}

		start := time.Now()
		upd, runErr := n.run(ctx, s)
		if runErr != nil {
			log.Error("stage failed", zap.String("stage", string(stage)), zap.Error(runErr))
			return res, fmt.Errorf("%s: %w", stage, runErr)
		}
		s.merge(upd)
		res.Path = append(res.Path, stage)

		next := n.route(s)
		log.Debug("stage done",
			zap.String("stage", string(stage)),
			zap.String("next", string(next)),
			zap.Duration("elapsed", time.Since(start)))
		stage = next
		if stage == StageRejected {
			res.Rejected = true
			log.Info("input rejected", zap.String("reason", s.SafetyRejectReason))
		}
	}
	return res, nil
}
