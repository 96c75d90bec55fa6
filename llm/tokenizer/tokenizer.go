package tokenizer

import (
	"strings"
)

// Tokenizer 是统一的 token 计数接口.
type Tokenizer interface {
	// CountTokens 返回给定文本的 token 数.
	CountTokens(text string) (int, error)

	// CountMessages 返回消息列表的总 token 数,
	// 包括每条消息的开销（角色标记、分隔符等）。
	CountMessages(messages []Message) (int, error)

	// MaxTokens 返回模型的最大上下文长度.
	MaxTokens() int

	// Name 返回分词器的名称.
	Name() string
}

// Message 是一个轻量级消息结构, 由 tokenizer 包使用
// 以避免与 llm 包的循环依赖。
type Message struct {
	Role    string
	Content string
}

// ForModel 返回模型对应的分词器。tiktoken 编码数据不可用时
// （例如离线环境首次下载失败）自动回退到估算器。
func ForModel(model string) Tokenizer {
	return &fallback{
		primary:   NewTiktokenTokenizer(model),
		secondary: NewEstimatorTokenizer(model, 0),
	}
}

type fallback struct {
	primary   Tokenizer
	secondary Tokenizer
}

func (f *fallback) CountTokens(text string) (int, error) {
	if n, err := f.primary.CountTokens(text); err == nil {
		return n, nil
	}
	return f.secondary.CountTokens(text)
}

func (f *fallback) CountMessages(messages []Message) (int, error) {
	if n, err := f.primary.CountMessages(messages); err == nil {
		return n, nil
	}
	return f.secondary.CountMessages(messages)
}

func (f *fallback) MaxTokens() int { return f.primary.MaxTokens() }

func (f *fallback) Name() string { return f.primary.Name() + "|" + f.secondary.Name() }

// TruncationMarker 标记被截断的文本尾部.
const TruncationMarker = "// ... (truncated)"

// FitLines 按行保留文本开头，使结果不超过 budget 个 token。
// 发生截断时在末尾追加 TruncationMarker，并返回 true。
func FitLines(t Tokenizer, text string, budget int) (string, bool, error) {
	n, err := t.CountTokens(text)
	if err != nil {
		return "", false, err
	}
	if budget <= 0 || n <= budget {
		return text, false, nil
	}

	markerCost, err := t.CountTokens(TruncationMarker)
	if err != nil {
		return "", false, err
	}
	lines := strings.Split(text, "\n")
	var (
		kept []string
		used = markerCost
	)
	for _, line := range lines {
		cost, err := t.CountTokens(line + "\n")
		if err != nil {
			return "", false, err
		}
		if used+cost > budget {
			break
		}
		kept = append(kept, line)
		used += cost
	}
	kept = append(kept, TruncationMarker)
	return strings.Join(kept, "\n"), true, nil
}
