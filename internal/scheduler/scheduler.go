// Package scheduler turns arbitrarily long text into audio bytes by
// segmenting it, fanning synthesis calls out onto a bounded worker
// pool, and reassembling the results in chunk order. Mode selection
// trades round trips against time-to-first-audio based on input length.
package scheduler

import (
	"context"
	"log/slog"
	"sync"

	"github.com/profailabs/prof-core/internal/config"
	"github.com/profailabs/prof-core/internal/synth"
	"github.com/profailabs/prof-core/internal/textseg"
)

// Mode identifies the synthesis strategy chosen for one job.
type Mode int

const (
	// ModeSingle issues one synchronous synthesis call, no chunking.
	ModeSingle Mode = iota
	// ModeParallelBatch segments the text and synthesizes chunks in
	// index order across bounded parallel batches.
	ModeParallelBatch
	// ModeStreamedParallel delivers the first chunk as soon as it is
	// ready and the rest in completion order.
	ModeStreamedParallel
)

// Job describes one synthesis request after mode selection.
type Job struct {
	Text      string
	Language  string
	Voice     string
	Mode      Mode
	ChunkSize int
}

type Scheduler struct {
	cfg    config.SynthesisConfig
	synth  synth.Synthesizer
	logger *slog.Logger
}

func New(cfg config.SynthesisConfig, s synth.Synthesizer, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		synth:  s,
		logger: logger.With(slog.String("component", "chunk-scheduler")),
	}
}

// Plan cleans the text, applies the hard input ceiling, and selects a
// synthesis mode by length against the configured thresholds.
func (s *Scheduler) Plan(text, language string) Job {
	cleaned := textseg.Clean(text)
	if len(cleaned) > s.cfg.HardCeiling {
		cleaned = textseg.Truncate(cleaned, s.cfg.HardCeiling-500)
		s.logger.Debug("input truncated to hard ceiling", slog.Int("length", len(cleaned)))
	}

	job := Job{
		Text:     cleaned,
		Language: s.effectiveLanguage(language),
		Voice:    s.cfg.Voice,
	}
	switch {
	case len(cleaned) <= s.cfg.SingleThreshold:
		job.Mode = ModeSingle
	case len(cleaned) <= s.cfg.MediumThreshold:
		job.Mode = ModeParallelBatch
		job.ChunkSize = s.cfg.SmallChunkSize
	default:
		job.Mode = ModeParallelBatch
		job.ChunkSize = s.cfg.LargeChunkSize
	}
	return job
}

// Synthesize produces the full audio for text. Individual chunk
// failures contribute zero bytes and are logged; an entirely failed job
// yields an empty result, never an error the caller must unwind.
func (s *Scheduler) Synthesize(ctx context.Context, text, language string) []byte {
	job := s.Plan(text, language)
	if job.Text == "" {
		return nil
	}

	switch job.Mode {
	case ModeSingle:
		return s.synthesizeOne(ctx, job, job.Text, 0)
	default:
		return s.synthesizeBatches(ctx, job)
	}
}

// SynthesizeUltraFast is the latency-optimized path: aggressive
// truncation, minimal cleaning, exactly one synthesis call.
func (s *Scheduler) SynthesizeUltraFast(ctx context.Context, text, language string) []byte {
	if len(text) > s.cfg.UltraFastCeiling {
		text = textseg.Truncate(text, s.cfg.UltraFastCeiling-200)
		s.logger.Debug("ultra-fast truncation applied", slog.Int("length", len(text)))
	}
	cleaned := textseg.CleanMinimal(text)
	if cleaned == "" {
		return nil
	}

	job := Job{Text: cleaned, Language: s.effectiveLanguage(language), Voice: s.cfg.Voice, Mode: ModeSingle}
	return s.synthesizeOne(ctx, job, cleaned, 0)
}

// Stream runs the streamed-parallel mode: the first chunk, segmented to
// complete sentences, is delivered as soon as its audio exists; the
// remaining chunks are fanned out concurrently and delivered in
// completion order, not index order. Callers needing strictly ordered
// audio use Synthesize instead.
func (s *Scheduler) Stream(ctx context.Context, text, language string) <-chan []byte {
	out := make(chan []byte)

	job := s.Plan(text, language)
	job.Mode = ModeStreamedParallel
	job.ChunkSize = s.cfg.StreamChunkSize

	go func() {
		defer close(out)

		chunks := textseg.SegmentForStreaming(job.Text, job.ChunkSize)
		if len(chunks) == 0 {
			return
		}

		if first := s.synthesizeOne(ctx, job, chunks[0].Content, 0); len(first) > 0 {
			select {
			case out <- first:
			case <-ctx.Done():
				return
			}
		}
		if len(chunks) == 1 {
			return
		}

		results := make(chan []byte)
		var wg sync.WaitGroup
		sem := make(chan struct{}, s.cfg.MaxConcurrency)
		for _, chunk := range chunks[1:] {
			wg.Add(1)
			go func(c textseg.Chunk) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()
				if audio := s.synthesizeOne(ctx, job, c.Content, c.Index); len(audio) > 0 {
					select {
					case results <- audio:
					case <-ctx.Done():
					}
				}
			}(chunk)
		}
		go func() {
			wg.Wait()
			close(results)
		}()

		for audio := range results {
			select {
			case out <- audio:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// synthesizeBatches dispatches chunk synthesis in batches bounded by
// the concurrency cap, then concatenates the per-chunk results in
// strictly ascending index order regardless of completion order.
func (s *Scheduler) synthesizeBatches(ctx context.Context, job Job) []byte {
	chunks := textseg.Segment(job.Text, job.ChunkSize)
	if len(chunks) == 0 {
		return nil
	}

	results := make([][]byte, len(chunks))
	for start := 0; start < len(chunks); start += s.cfg.MaxConcurrency {
		end := start + s.cfg.MaxConcurrency
		if end > len(chunks) {
			end = len(chunks)
		}

		var wg sync.WaitGroup
		for _, chunk := range chunks[start:end] {
			wg.Add(1)
			go func(c textseg.Chunk) {
				defer wg.Done()
				// Each chunk index is written exactly once.
				results[c.Index] = s.synthesizeOne(ctx, job, c.Content, c.Index)
			}(chunk)
		}
		wg.Wait()
	}

	var audio []byte
	for _, r := range results {
		audio = append(audio, r...)
	}
	return audio
}

func (s *Scheduler) synthesizeOne(ctx context.Context, job Job, text string, index int) []byte {
	audio, err := s.synth.Synthesize(ctx, synth.Request{Text: text, Language: job.Language, Voice: job.Voice})
	if err != nil {
		s.logger.Warn("chunk synthesis failed",
			slog.Int("chunk", index),
			slog.String("error", err.Error()))
		return nil
	}
	return audio
}

func (s *Scheduler) effectiveLanguage(language string) string {
	if language == "" {
		return s.cfg.DefaultLanguage
	}
	return language
}
