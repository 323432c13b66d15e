package agent

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"promocopy/generator"
	"promocopy/safety"
	"promocopy/stagectx"
)

// 各阶段在未配置模板时使用的兜底模板。
const (
	defaultEnhanceTemplate = "Structure and clarify the following requirements:\n\n{input}\n\n" +
		"Output JSON: {{\"enhanced\": \"...\", \"need_images\": true/false, " +
		"\"image_count\": 1-4 (when need_images=true), \"reason\": \"...\"}}"
	defaultCopyTemplate        = "Generate promotional copy based on the following requirements:\n\n{enhanced_context}"
	defaultImagePromptTemplate = "Generate image prompts for promotional visuals based on the requirements:\n" +
		"{requirements}\n\nGuidelines: {image_prompt_skills}"
	defaultImageGenTemplate = "{prompts}"

	uploadedImagesHint  = "\n\n[The user has uploaded images. Analyze them and incorporate visual context into the enhanced requirements.]"
	referenceImagesHint = "\n\n[The user has provided reference images. Generate prompts that align with their style/content for image generation.]"
)

// Nodes 持有各阶段共享的依赖。每个阶段读取 State，返回需要更新的字段。
type Nodes struct {
	Models          generator.Models
	Images          generator.ImageGenerator
	ImageGenEnabled bool
	Safety          *safety.Checker
	Contexts        *stagectx.Resolver
	Logger          *zap.Logger
}

func (n *Nodes) logger() *zap.Logger {
	if n.Logger == nil {
		return zap.NewNop()
	}
	return n.Logger
}

func (n *Nodes) stageContext(ctx context.Context, stage, platform, style string) stagectx.Context {
	if n.Contexts == nil {
		return stagectx.Context{Platform: platform, Style: style}
	}
	return n.Contexts.Load(ctx, stage, platform, style)
}

func (n *Nodes) complete(ctx context.Context, useVision bool, msg generator.Message) (string, error) {
	llm := n.Models.Select(useVision)
	if llm == nil {
		return "", fmt.Errorf("no model configured (vision=%v)", useVision)
	}
	return llm.Complete(ctx, msg)
}

// InputSafety 检查原始需求与描述。
func (n *Nodes) InputSafety(ctx context.Context, s State) (Update, error) {
	res := safety.Result{Passed: true}
	if n.Safety != nil {
		res = n.Safety.CheckInput(ctx, s.RawRequirements, s.RawDescription, s.InputImages)
	}
	return Update{
		InputSafetyPassed:  ptr(res.Passed),
		SafetyRejectReason: ptr(rejectReason(res)),
	}, nil
}

// ContextEnhance 一次调用同时产出结构化需求与是否配图的判断。
func (n *Nodes) ContextEnhance(ctx context.Context, s State) (Update, error) {
	useVision := s.useVision()

	sc := n.stageContext(ctx, "context_enhance", "", "")
	tmpl := strings.TrimSpace(sc.PromptTemplate)
	if tmpl == "" {
		tmpl = defaultEnhanceTemplate
	}

	input := strings.TrimSpace(fmt.Sprintf("Requirements: %s\n\nDetailed description: %s", s.RawRequirements, s.RawDescription))
	if useVision {
		input += uploadedImagesHint
	}
	prompt := stagectx.Render(tmpl, map[string]string{"input": input})

	raw, err := n.complete(ctx, useVision, n.message(prompt, s, useVision))
	if err != nil {
		return Update{}, err
	}

	res := parseEnhanceResponse(raw, s.RawRequirements)
	count := res.ImageCount
	if !res.NeedImages {
		count = 0
	}
	n.logger().Debug("context enhanced",
		zap.Bool("vision", useVision),
		zap.Bool("need_images", res.NeedImages),
		zap.Int("image_count", count))
	return Update{
		EnhancedContext:     ptr(res.Enhanced),
		NeedImageGeneration: ptr(res.NeedImages),
		ImageCount:          ptr(count),
	}, nil
}

// CopyWrite 生成推广文案，平台规则来自 copy_write 阶段的技能。
func (n *Nodes) CopyWrite(ctx context.Context, s State) (Update, error) {
	enhanced := firstNonEmpty(s.EnhancedContext, s.RawRequirements)
	platform := firstNonEmpty(s.Platform, DefaultPlatform)
	style := firstNonEmpty(s.Style, DefaultStyle)

	sc := n.stageContext(ctx, "copy_write", platform, style)
	tmpl := strings.TrimSpace(sc.PromptTemplate)
	if tmpl == "" {
		tmpl = defaultCopyTemplate
	}
	prompt := stagectx.Render(tmpl, map[string]string{
		"enhanced_context": enhanced,
		"platform_rules":   sc.SkillsContent,
		"platform":         platform,
		"style":            style,
	})

	copyText, err := n.complete(ctx, false, generator.TextMessage(prompt))
	if err != nil {
		return Update{}, err
	}
	return Update{CopyDraft: ptr(copyText), FinalCopy: ptr(copyText)}, nil
}

// ImagePrompt 生成图片描述，数量不超过 ImageCount。
func (n *Nodes) ImagePrompt(ctx context.Context, s State) (Update, error) {
	useVision := s.useVision()

	sc := n.stageContext(ctx, "image_prompt", "", "")
	tmpl := strings.TrimSpace(sc.PromptTemplate)
	if tmpl == "" {
		tmpl = defaultImagePromptTemplate
	}

	count := clampImageCount(orDefault(s.ImageCount, 1))
	prompt := stagectx.Render(tmpl, map[string]string{
		"requirements":        s.RawRequirements,
		"description":         s.RawDescription,
		"enhanced_context":    s.EnhancedContext,
		"image_prompt_skills": sc.SkillsContent,
		"image_count":         strconv.Itoa(count),
	})
	if useVision {
		prompt += referenceImagesHint
	}

	raw, err := n.complete(ctx, useVision, n.message(prompt, s, useVision))
	if err != nil {
		return Update{}, err
	}
	prompts := parseImagePrompts(raw, count)
	return Update{ImagePrompts: ptr(prompts)}, nil
}

// ImageGenerate 把所有描述拼进一个 prompt，一次请求 n 张图。失败时返回空列表。
func (n *Nodes) ImageGenerate(ctx context.Context, s State) (Update, error) {
	empty := Update{GeneratedImages: ptr([][]byte{})}
	if !n.ImageGenEnabled || n.Images == nil || len(s.ImagePrompts) == 0 {
		return empty, nil
	}

	count := clampImageCount(orDefault(s.ImageCount, len(s.ImagePrompts)))
	prompts := s.ImagePrompts
	if len(prompts) > count {
		prompts = prompts[:count]
	}

	sc := n.stageContext(ctx, "image_gen", "", "")
	tmpl := stagectx.StripCommentLines(strings.TrimSpace(sc.PromptTemplate))
	if tmpl == "" {
		tmpl = defaultImageGenTemplate
	}
	prompt := strings.TrimSpace(stagectx.Render(tmpl, map[string]string{
		"image_count": strconv.Itoa(count),
		"prompts":     promptsBlock(prompts),
	}))

	images, err := n.Images.Generate(ctx, prompt, count)
	if err != nil {
		n.logger().Warn("image generation failed", zap.Int("n", count), zap.Error(err))
		return empty, nil
	}
	return Update{GeneratedImages: ptr(images)}, nil
}

// OutputSafety 检查最终文案与图片描述。
func (n *Nodes) OutputSafety(ctx context.Context, s State) (Update, error) {
	res := safety.Result{Passed: true}
	if n.Safety != nil {
		res = n.Safety.CheckOutput(ctx, s.FinalCopy, s.ImagePrompts, s.GeneratedImages)
	}
	return Update{
		OutputSafetyPassed: ptr(res.Passed),
		SafetyRejectReason: ptr(rejectReason(res)),
	}, nil
}

// message 只在走视觉模型时附带用户上传的图片。
func (n *Nodes) message(prompt string, s State, useVision bool) generator.Message {
	if !useVision {
		return generator.TextMessage(prompt)
	}
	return generator.BuildMessage(prompt, s.InputImages)
}

func promptsBlock(prompts []string) string {
	parts := make([]string, 0, len(prompts))
	for i, p := range prompts {
		parts = append(parts, fmt.Sprintf("第 %d 张图像的描述：\n%s", i+1, strings.TrimSpace(p)))
	}
	return strings.Join(parts, "\n\n")
}

func rejectReason(r safety.Result) string {
	if r.Passed {
		return ""
	}
	return r.Reason
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
