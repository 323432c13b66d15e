package safety

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promocopy/generator"
)

func TestCheckInputBannedWordSkipsJudge(t *testing.T) {
	judge := generator.NewMockLLM("judge", `{"passed": true}`)
	c := NewChecker(Options{Words: StaticWords{"banned"}, UseLLM: true, Judge: judge})

	r := c.CheckInput(context.Background(), "this is banned content", "", nil)

	assert.False(t, r.Passed)
	assert.Equal(t, "Contains forbidden word: banned", r.Reason)
	assert.Equal(t, 0, judge.CallCount())
}

func TestCheckInputDescriptionChecked(t *testing.T) {
	c := NewChecker(Options{Words: StaticWords{"最好"}})

	r := c.CheckInput(context.Background(), "新品上市", "全网最好的面膜", nil)

	assert.False(t, r.Passed)
	assert.Equal(t, "Contains forbidden word: 最好", r.Reason)
}

func TestJudgeFailOpen(t *testing.T) {
	cases := map[string]*generator.MockLLM{
		"error":       {Err: errors.New("timeout")},
		"no verdict":  generator.NewMockLLM("judge", "looks fine to me"),
		"broken json": generator.NewMockLLM("judge", `{"passed": tru}`),
	}
	for name, judge := range cases {
		t.Run(name, func(t *testing.T) {
			c := NewChecker(Options{UseLLM: true, Judge: judge})
			r := c.CheckInput(context.Background(), "春季新品", "", nil)
			assert.True(t, r.Passed)
			assert.Empty(t, r.Reason)
			assert.Equal(t, 1, judge.CallCount())
		})
	}
}

func TestJudgeRejects(t *testing.T) {
	judge := generator.NewMockLLM("judge", "审核结果如下：\n```json\n{\"passed\": false, \"reason\": \"虚假宣传\"}\n```")
	c := NewChecker(Options{UseLLM: true, Judge: judge})

	r := c.CheckOutput(context.Background(), "包治百病", nil, nil)

	assert.False(t, r.Passed)
	assert.Equal(t, "虚假宣传", r.Reason)
}

func TestCheckOutputStopsAtFirstFailingPrompt(t *testing.T) {
	judge := generator.NewMockLLM("judge", `{"passed": true}`, `{"passed": false, "reason": "p1"}`, `{"passed": false, "reason": "p2"}`)
	c := NewChecker(Options{UseLLM: true, Judge: judge})

	r := c.CheckOutput(context.Background(), "copy", []string{"first", "second"}, nil)

	assert.False(t, r.Passed)
	assert.Equal(t, "p1", r.Reason)
	assert.Equal(t, 2, judge.CallCount())
}

func TestJudgeDisabledOrBlankText(t *testing.T) {
	judge := generator.NewMockLLM("judge", `{"passed": false, "reason": "no"}`)

	off := NewChecker(Options{UseLLM: false, Judge: judge})
	assert.True(t, off.CheckInput(context.Background(), "text", "", nil).Passed)

	on := NewChecker(Options{UseLLM: true, Judge: judge})
	assert.True(t, on.CheckOutput(context.Background(), "   ", nil, nil).Passed)

	assert.Equal(t, 0, judge.CallCount())
}

func TestJudgePromptTemplateAndTruncation(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "safety_check.txt")
	require.NoError(t, os.WriteFile(tmpl, []byte("审核：{content}"), 0o644))

	judge := generator.NewMockLLM("judge", `{"passed": true}`)
	c := NewChecker(Options{UseLLM: true, Judge: judge, TemplatePath: tmpl})

	long := make([]rune, MaxJudgeInput+50)
	for i := range long {
		long[i] = '字'
	}
	c.CheckInput(context.Background(), string(long), "", nil)

	calls := judge.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "审核："+string(long[:MaxJudgeInput]), calls[0].Text())
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		raw    string
		ok     bool
		passed bool
		reason string
	}{
		{`{"passed": true, "reason": ""}`, true, true, ""},
		{`结论 {"passed": false, "reason": "违禁"} 完`, true, false, "违禁"},
		{`{"passed": "maybe"}`, true, true, ""},
		{`{"passed": 0, "reason": "夸大功效"}`, true, false, "夸大功效"},
		{`{"passed": null, "reason": "无法判断"}`, true, false, "无法判断"},
		{`{"passed": "", "reason": "empty"}`, true, false, "empty"},
		{`{"passed": 1}`, true, true, ""},
		{`{"reason": "x"}`, false, false, ""},
		{`{"passed": oops} {"passed": false, "reason": "second"}`, true, false, "second"},
		{``, false, false, ""},
	}
	for _, tt := range tests {
		r, ok := ParseVerdict(tt.raw)
		assert.Equal(t, tt.ok, ok, tt.raw)
		if ok {
			assert.Equal(t, tt.passed, r.Passed, tt.raw)
			assert.Equal(t, tt.reason, r.Reason, tt.raw)
		}
	}
}

func TestLoadForbiddenWords(t *testing.T) {
	assert.Empty(t, LoadForbiddenWords(""))
	assert.Empty(t, LoadForbiddenWords(filepath.Join(t.TempDir(), "missing.txt")))

	path := filepath.Join(t.TempDir(), "words.txt")
	require.NoError(t, os.WriteFile(path, []byte("# 广告法\n最好\n\n  第一 \n最好\n"), 0o644))
	assert.Equal(t, []string{"最好", "第一"}, LoadForbiddenWords(path))
}

func TestFileWordsReloadsOnEveryCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.txt")
	c := NewChecker(Options{Words: FileWords{Path: path}})

	assert.True(t, c.CheckInput(context.Background(), "banned", "", nil).Passed)

	require.NoError(t, os.WriteFile(path, []byte("banned\n"), 0o644))
	assert.False(t, c.CheckInput(context.Background(), "banned", "", nil).Passed)
}

func TestJudgeFalsyVerdictRejects(t *testing.T) {
	judge := generator.NewMockLLM("judge", `{"passed": 0, "reason": "夸大功效"}`)
	c := NewChecker(Options{UseLLM: true, Judge: judge})

	r := c.CheckOutput(context.Background(), "三天美白", nil, nil)

	assert.False(t, r.Passed)
	assert.Equal(t, "夸大功效", r.Reason)
}
