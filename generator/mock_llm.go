package generator

import (
	"context"
	"errors"
	"sync"
)

// MockLLM 一个简单的占位实现，便于本地调试和测试，不调用外部模型。
// Responses 按调用顺序依次返回，用完后重复最后一条；Err 非空时每次调用都返回该错误。
type MockLLM struct {
	Name      string
	Responses []string
	Err       error

	mu    sync.Mutex
	calls []Message
}

// NewMockLLM 创建按顺序回放 responses 的 mock。
func NewMockLLM(name string, responses ...string) *MockLLM {
	return &MockLLM{Name: name, Responses: responses}
}

func (m *MockLLM) Complete(_ context.Context, msg Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.calls)
	m.calls = append(m.calls, msg)
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return "", errors.New("mock llm: no response configured")
	}
	if n >= len(m.Responses) {
		n = len(m.Responses) - 1
	}
	return m.Responses[n], nil
}

// Calls returns a copy of the messages received so far.
func (m *MockLLM) Calls() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *MockLLM) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
