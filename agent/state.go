package agent

// 默认平台与风格。
const (
	DefaultPlatform = "xiaohongshu"
	DefaultStyle    = "natural"

	MinImageCount = 1
	MaxImageCount = 4
)

// Request 是一次生成请求的入口参数。
type Request struct {
	Requirements string
	Description  string
	Images       [][]byte
	Platform     string
	Style        string
}

// State 是单次请求在各阶段之间传递的记录，请求结束即丢弃。
type State struct {
	RawRequirements string
	RawDescription  string
	InputImages     [][]byte
	Platform        string
	Style           string
	HasInputImages  bool

	EnhancedContext     string
	NeedImageGeneration bool
	// ImageCount 为 0 表示不生成图片，否则在 [1,4]。
	ImageCount int

	CopyDraft string
	FinalCopy string

	ImagePrompts    []string
	GeneratedImages [][]byte

	// nil 表示该检查尚未执行。
	InputSafetyPassed  *bool
	OutputSafetyPassed *bool
	SafetyRejectReason string
}

// NewState 填充默认值并计算 HasInputImages。
func NewState(req Request) State {
	platform := req.Platform
	if platform == "" {
		platform = DefaultPlatform
	}
	style := req.Style
	if style == "" {
		style = DefaultStyle
	}
	return State{
		RawRequirements: req.Requirements,
		RawDescription:  req.Description,
		InputImages:     req.Images,
		Platform:        platform,
		Style:           style,
		HasInputImages:  len(req.Images) > 0,
	}
}

// InputRejected reports an explicit input safety failure. An absent verdict is not a rejection.
func (s State) InputRejected() bool {
	return s.InputSafetyPassed != nil && !*s.InputSafetyPassed
}

// Copy returns the final copy, falling back to the draft.
func (s State) Copy() string {
	if s.FinalCopy != "" {
		return s.FinalCopy
	}
	return s.CopyDraft
}

func (s State) useVision() bool {
	return s.HasInputImages && len(s.InputImages) > 0
}

// Update 是某个阶段产出的部分字段；nil 字段保持 State 原值。
type Update struct {
	EnhancedContext     *string
	NeedImageGeneration *bool
	ImageCount          *int

	CopyDraft *string
	FinalCopy *string

	ImagePrompts    *[]string
	GeneratedImages *[][]byte

	InputSafetyPassed  *bool
	OutputSafetyPassed *bool
	SafetyRejectReason *string
}

func (s *State) merge(u Update) {
	if u.EnhancedContext != nil {
		s.EnhancedContext = *u.EnhancedContext
	}
	if u.NeedImageGeneration != nil {
		s.NeedImageGeneration = *u.NeedImageGeneration
	}
	if u.ImageCount != nil {
		s.ImageCount = *u.ImageCount
	}
	if u.CopyDraft != nil {
		s.CopyDraft = *u.CopyDraft
	}
	if u.FinalCopy != nil {
		s.FinalCopy = *u.FinalCopy
	}
	if u.ImagePrompts != nil {
		s.ImagePrompts = *u.ImagePrompts
	}
	if u.GeneratedImages != nil {
		s.GeneratedImages = *u.GeneratedImages
	}
	if u.InputSafetyPassed != nil {
		v := *u.InputSafetyPassed
		s.InputSafetyPassed = &v
	}
	if u.OutputSafetyPassed != nil {
		v := *u.OutputSafetyPassed
		s.OutputSafetyPassed = &v
	}
	if u.SafetyRejectReason != nil {
		s.SafetyRejectReason = *u.SafetyRejectReason
	}
}

func ptr[T any](v T) *T { return &v }

func clampImageCount(n int) int {
	return max(MinImageCount, min(MaxImageCount, n))
}
