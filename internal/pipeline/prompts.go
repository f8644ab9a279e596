package pipeline

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"summify/internal/services"
)

// DefaultTranscribePrompt primes engines that accept an initial prompt.
const DefaultTranscribePrompt = "将以下音频转写成中文文本,确保使用正确的标点符号。"

// DefaultFixPrompt instructs the model to punctuate and correct a transcript
// chunk without adding content.
const DefaultFixPrompt = `我通过语音转写，把一篇文本转换为了文字稿，然后分成了一些小部分。请你帮我添文本修正润色，并且改正语句中的偶尔转换错误。
你可以适当的给文本分段处理。
注意！必须忠实于文本，语句可能是被截取的、不完整的，禁止自己发挥，续写额外内容。
只需要回复我最终结果即可。`

// LoadFixPrompt returns the contents of path, or DefaultFixPrompt when path
// is empty.
func LoadFixPrompt(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultFixPrompt, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", services.Wrap(services.CodePromptMissing, "fix", "read fix prompt", path, err)
		}
		return "", services.Wrap(services.CodeFileIO, "fix", "read fix prompt", path, err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", services.New(services.CodePromptMissing, "fix prompt file is empty: "+path)
	}
	return text, nil
}
