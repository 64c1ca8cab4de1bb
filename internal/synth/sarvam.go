package synth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/gorilla/websocket"
)

// sarvamSynth speaks the Sarvam text-to-speech streaming protocol: one
// duplex websocket per chunk, configured with language and speaker, fed
// the chunk text, flushed, then drained until the server closes.
type sarvamSynth struct {
	endpoint string
	apiKey   string
}

func NewSarvamSynth(endpoint string) (Synthesizer, error) {
	apiKey, ok := os.LookupEnv("SARVAM_API_KEY")
	if !ok || apiKey == "" {
		return nil, fmt.Errorf("sarvam api key not found")
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("invalid sarvam endpoint: %w", err)
	}
	return &sarvamSynth{endpoint: endpoint, apiKey: apiKey}, nil
}

type sarvamConfigMessage struct {
	Type string           `json:"type"`
	Data sarvamConfigData `json:"data"`
}

type sarvamConfigData struct {
	TargetLanguageCode string `json:"target_language_code"`
	Speaker            string `json:"speaker"`
}

type sarvamTextMessage struct {
	Type string         `json:"type"`
	Data sarvamTextData `json:"data"`
}

type sarvamTextData struct {
	Text string `json:"text"`
}

type sarvamControlMessage struct {
	Type string `json:"type"`
}

type sarvamServerMessage struct {
	Type string `json:"type"`
	Data struct {
		Audio string `json:"audio"`
	} `json:"data"`
}

func (s *sarvamSynth) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	query := u.Query()
	query.Set("model", "bulbul:v2")
	u.RawQuery = query.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(),
		http.Header{"api-subscription-key": {s.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("open socket connection to sarvam: %w", err)
	}
	return conn, nil
}

func (s *sarvamSynth) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	frames, errs := s.SynthesizeStream(ctx, req)
	var audio []byte
	for frame := range frames {
		audio = append(audio, frame...)
	}
	if err := <-errs; err != nil {
		return nil, err
	}
	return audio, nil
}

func (s *sarvamSynth) SynthesizeStream(ctx context.Context, req Request) (<-chan []byte, <-chan error) {
	frames := make(chan []byte)
	errs := make(chan error, 1)

	go func() {
		defer close(frames)
		defer close(errs)

		conn, err := s.dial(ctx)
		if err != nil {
			errs <- err
			return
		}
		defer conn.Close()

		if err := conn.WriteJSON(sarvamConfigMessage{
			Type: "config",
			Data: sarvamConfigData{TargetLanguageCode: req.Language, Speaker: req.Voice},
		}); err != nil {
			errs <- fmt.Errorf("configure sarvam stream: %w", err)
			return
		}
		if err := conn.WriteJSON(sarvamTextMessage{Type: "text", Data: sarvamTextData{Text: req.Text}}); err != nil {
			errs <- fmt.Errorf("send text to sarvam: %w", err)
			return
		}
		if err := conn.WriteJSON(sarvamControlMessage{Type: "flush"}); err != nil {
			errs <- fmt.Errorf("flush sarvam stream: %w", err)
			return
		}

		for {
			select {
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			default:
			}

			_, msg, err := conn.ReadMessage()
			if err != nil {
				// Normal closure marks the end of the utterance.
				if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					return
				}
				errs <- fmt.Errorf("read sarvam stream: %w", err)
				return
			}

			var parsed sarvamServerMessage
			if err := json.Unmarshal(msg, &parsed); err != nil {
				continue
			}
			switch parsed.Type {
			case "audio":
				audio, err := base64.StdEncoding.DecodeString(parsed.Data.Audio)
				if err != nil || len(audio) == 0 {
					continue
				}
				select {
				case frames <- audio:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			case "flushed", "close":
				return
			}
		}
	}()

	return frames, errs
}
