package agent

import (
	"encoding/json"
	"regexp"
	"strings"
)

// 允许一层嵌套的 JSON 对象。
var jsonObjectRe = regexp.MustCompile(`\{[^{}]*(?:\{[^{}]*\}[^{}]*)*\}`)

// enhanceResult 是 context_enhance 阶段解析出的结果。
type enhanceResult struct {
	Enhanced   string
	NeedImages bool
	ImageCount int
}

// parseEnhanceResponse takes the first object in raw that decodes. Without one,
// or with a blank "enhanced", Enhanced falls back to requirements.
func parseEnhanceResponse(raw, requirements string) enhanceResult {
	res := enhanceResult{ImageCount: MinImageCount}
	for _, m := range jsonObjectRe.FindAllString(raw, -1) {
		var data map[string]any
		if err := json.Unmarshal([]byte(m), &data); err != nil {
			continue
		}
		if v, ok := data["enhanced"]; ok && v != nil {
			res.Enhanced = strings.TrimSpace(stringify(v))
		}
		if v, ok := data["need_images"]; ok {
			res.NeedImages = truthy(v)
		}
		if v, ok := data["image_count"].(float64); ok {
			res.ImageCount = clampImageCount(int(v))
		}
		break
	}
	if res.Enhanced == "" {
		res.Enhanced = requirements
	}
	return res
}

// parseImagePrompts accepts a JSON array of prompts; anything else is a single prompt.
func parseImagePrompts(raw string, limit int) []string {
	content := strings.TrimSpace(raw)
	prompts := []string{content}
	if strings.Contains(content, "[") && strings.Contains(content, "]") {
		var items []any
		if err := json.Unmarshal([]byte(content), &items); err == nil {
			prompts = prompts[:0]
			for _, it := range items {
				if !truthy(it) {
					continue
				}
				prompts = append(prompts, stringify(it))
			}
		}
	}
	if len(prompts) > limit {
		prompts = prompts[:limit]
	}
	return prompts
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// truthy 对齐 JSON 值的布尔语义：空串、0、false、null、空数组/对象为假。
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
