package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"

	"github.com/mattn/go-shellwords"
)

type execTranslator struct {
	cmd []string
	mu  sync.Mutex
}

type execRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
}

type execResponse struct {
	Text string `json:"text"`
}

func NewExecTranslator(command string) (Translator, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse translate command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("translate command empty")
	}
	return &execTranslator{cmd: args}, nil
}

func (t *execTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	input, err := json.Marshal(execRequest{Text: text, SourceLang: sourceLang, TargetLang: targetLang})
	if err != nil {
		return "", err
	}

	base := t.cmd[0]
	args := append([]string{}, t.cmd[1:]...)
	cmd := exec.CommandContext(ctx, base, args...)
	cmd.Stdin = bytes.NewReader(input)
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("translate exec command failed: %w", err)
	}

	var resp execResponse
	if err := json.Unmarshal(output, &resp); err != nil {
		return "", fmt.Errorf("decode translate exec response: %w", err)
	}
	return resp.Text, nil
}
