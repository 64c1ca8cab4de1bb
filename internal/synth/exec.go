package synth

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"

	"github.com/mattn/go-shellwords"
)

// execSynth shells out to an external synthesis command. The command
// reads one JSON request on stdin and writes line-delimited JSON
// responses carrying base64 audio until the final frame.
type execSynth struct {
	cmd []string
	mu  sync.Mutex
}

type execRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Voice    string `json:"voice"`
}

type execResponse struct {
	AudioBase64 string `json:"audio_base64"`
	Final       bool   `json:"final"`
}

func NewExecSynth(command string) (Synthesizer, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse synthesis command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("synthesis command empty")
	}
	return &execSynth{cmd: args}, nil
}

func (e *execSynth) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	frames, errs := e.SynthesizeStream(ctx, req)
	var audio []byte
	for frame := range frames {
		audio = append(audio, frame...)
	}
	if err := <-errs; err != nil {
		return nil, err
	}
	return audio, nil
}

func (e *execSynth) SynthesizeStream(ctx context.Context, req Request) (<-chan []byte, <-chan error) {
	e.mu.Lock()
	frames := make(chan []byte)
	errs := make(chan error, 1)
	go func() {
		defer close(frames)
		defer close(errs)
		defer e.mu.Unlock()

		data, err := json.Marshal(execRequest{Text: req.Text, Language: req.Language, Voice: req.Voice})
		if err != nil {
			errs <- err
			return
		}

		base := e.cmd[0]
		args := append([]string{}, e.cmd[1:]...)
		cmd := exec.CommandContext(ctx, base, args...)
		stdin, err := cmd.StdinPipe()
		if err != nil {
			errs <- err
			return
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			errs <- err
			return
		}
		if err := cmd.Start(); err != nil {
			errs <- err
			return
		}

		if _, err := stdin.Write(data); err != nil {
			errs <- err
			cmd.Wait()
			return
		}
		stdin.Close()

		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var resp execResponse
			if err := json.Unmarshal(line, &resp); err != nil {
				errs <- err
				cmd.Wait()
				return
			}
			audio, err := base64.StdEncoding.DecodeString(resp.AudioBase64)
			if err != nil {
				errs <- err
				cmd.Wait()
				return
			}
			if len(audio) > 0 {
				select {
				case frames <- audio:
				case <-ctx.Done():
					errs <- ctx.Err()
					cmd.Wait()
					return
				}
			}
			if resp.Final {
				break
			}
		}
		if err := cmd.Wait(); err != nil {
			errs <- err
			return
		}
		if scanErr := scanner.Err(); scanErr != nil {
			errs <- scanErr
		}
	}()
	return frames, errs
}
