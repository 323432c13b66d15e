// Package safety runs the two-phase compliance check on pipeline input and
// output: a literal deny-list first, then an LLM reviewer.
//
// The reviewer fails open: a judge error or an unparseable verdict counts as
// a pass so an unreliable judge cannot block the pipeline. Images are not
// inspected; CheckInput and CheckOutput accept them only as placeholders.
package safety

import (
	"context"
	"encoding/json"
	"os"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"promocopy/generator"
	"promocopy/stagectx"
)

// MaxJudgeInput caps the text sent to the reviewer, in runes.
const MaxJudgeInput = 2000

const defaultJudgeTemplate = "你是一名内容合规审核员。请判断以下文本是否合规（违法违规内容、违禁词、违反广告法、虚假宣传等）。\n" +
	"文本：\n---\n{content}\n---\n" +
	"请严格按 JSON 格式输出：{{\"passed\": true/false, \"reason\": \"说明\"}}\n"

// Result of a check. Reason is empty when Passed.
type Result struct {
	Passed bool
	Reason string
}

var pass = Result{Passed: true}

type Options struct {
	Words  WordSource
	UseLLM bool
	Judge  generator.LLMClient
	// TemplatePath points at an optional reviewer prompt with a {content} placeholder.
	TemplatePath string
	Logger       *zap.Logger
}

type Checker struct {
	opts   Options
	logger *zap.Logger
}

func NewChecker(opts Options) *Checker {
	if opts.Words == nil {
		opts.Words = StaticWords(nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{opts: opts, logger: logger.Named("safety")}
}

// CheckInput checks requirements, then description when non-empty.
func (c *Checker) CheckInput(ctx context.Context, requirements, description string, images [][]byte) Result {
	words := c.opts.Words.Words()
	if r := c.checkText(ctx, requirements, words); !r.Passed {
		return r
	}
	if description != "" {
		if r := c.checkText(ctx, description, words); !r.Passed {
			return r
		}
	}
	_ = images // placeholder: images are not moderated
	return pass
}

// CheckOutput checks the copy, then each image prompt in order.
func (c *Checker) CheckOutput(ctx context.Context, copyText string, prompts []string, images [][]byte) Result {
	words := c.opts.Words.Words()
	if r := c.checkText(ctx, copyText, words); !r.Passed {
		return r
	}
	for _, p := range prompts {
		if r := c.checkText(ctx, p, words); !r.Passed {
			return r
		}
	}
	_ = images
	return pass
}

func (c *Checker) checkText(ctx context.Context, text string, words []string) Result {
	if r := CheckForbidden(text, words); !r.Passed {
		c.logger.Info("deny-list match", zap.String("reason", r.Reason))
		return r
	}
	if c.opts.UseLLM && strings.TrimSpace(text) != "" {
		return c.judge(ctx, text)
	}
	return pass
}

// CheckForbidden fails on the first word that is a literal substring of text.
func CheckForbidden(text string, words []string) Result {
	if text == "" {
		return pass
	}
	for _, w := range words {
		if w != "" && strings.Contains(text, w) {
			return Result{Passed: false, Reason: "Contains forbidden word: " + w}
		}
	}
	return pass
}

func (c *Checker) judge(ctx context.Context, text string) Result {
	if c.opts.Judge == nil {
		return pass
	}
	prompt := stagectx.Render(c.template(), map[string]string{"content": truncateRunes(text, MaxJudgeInput)})
	raw, err := c.opts.Judge.Complete(ctx, generator.TextMessage(prompt))
	if err != nil {
		c.logger.Warn("safety judge failed, fail_open", zap.Error(err))
		return pass
	}
	verdict, ok := ParseVerdict(raw)
	if !ok {
		c.logger.Warn("safety judge verdict unparseable, fail_open", zap.String("response", truncateRunes(raw, 200)))
		return pass
	}
	return verdict
}

func (c *Checker) template() string {
	if c.opts.TemplatePath != "" {
		if data, err := os.ReadFile(c.opts.TemplatePath); err == nil {
			return string(data)
		}
	}
	return defaultJudgeTemplate
}

var verdictRe = regexp.MustCompile(`\{[^{}]*"passed"[^{}]*\}`)

// ParseVerdict takes the first {...} object mentioning "passed" that parses.
// passed is read by JSON truthiness: 0, "", null, [] and {} reject.
func ParseVerdict(raw string) (Result, bool) {
	for _, m := range verdictRe.FindAllString(raw, -1) {
		var data map[string]any
		if err := json.Unmarshal([]byte(m), &data); err != nil {
			continue
		}
		v, present := data["passed"]
		if !present {
			continue
		}
		if truthy(v) {
			return pass, true
		}
		reason, _ := data["reason"].(string)
		return Result{Passed: false, Reason: reason}, true
	}
	return Result{}, false
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	default:
		return true
	}
}
