package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Jamesmini007/AX2-Caption/artifact"
)

// Simulator is a timer-driven TranslationBackend for development and tests.
// Each stage sleeps for a configurable delay, then either succeeds with
// synthetic output or fails according to the configured failure hooks.
type Simulator struct {
	// StageDelay is how long each pipeline stage takes. Zero means return
	// immediately, which is what tests want.
	StageDelay time.Duration

	// FailExtract, FailTranscribe, and FailRender force the corresponding
	// stage to fail.
	FailExtract    bool
	FailTranscribe bool
	FailRender     bool

	// FailLanguages lists target languages whose translation fails.
	FailLanguages []string

	// DetectedLanguage is reported when transcription is asked to
	// auto-detect. Defaults to "en".
	DetectedLanguage string
}

func (s *Simulator) wait(ctx context.Context) error {
	if s.StageDelay <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(s.StageDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ExtractAudio implements TranslationBackend.
func (s *Simulator) ExtractAudio(ctx context.Context, media Media) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	if s.FailExtract {
		return fmt.Errorf("audio extraction failed for %q", media.Title)
	}
	return nil
}

// Transcribe implements TranslationBackend. The synthetic transcript has one
// segment per 6 seconds of source media.
func (s *Simulator) Transcribe(ctx context.Context, media Media, sourceLanguage string) (*Transcript, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	if s.FailTranscribe {
		return nil, fmt.Errorf("speech-to-text failed for %q", media.Title)
	}

	lang := sourceLanguage
	if lang == "" {
		lang = s.DetectedLanguage
		if lang == "" {
			lang = "en"
		}
	}

	n := int(media.DurationSeconds / 6)
	if n < 1 {
		n = 1
	}
	segments := make([]artifact.Segment, 0, n)
	for i := 0; i < n; i++ {
		start := float64(i) * 6
		end := start + 6
		if end > media.DurationSeconds {
			end = media.DurationSeconds
		}
		segments = append(segments, artifact.Segment{
			Start: start,
			End:   end,
			Text:  fmt.Sprintf("segment %d", i+1),
		})
	}

	return &Transcript{Language: lang, Segments: segments}, nil
}

// Translate implements TranslationBackend.
func (s *Simulator) Translate(ctx context.Context, transcript *Transcript, targetLanguage string) (*artifact.Track, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	for _, fail := range s.FailLanguages {
		if fail == targetLanguage {
			return nil, fmt.Errorf("translation to %q failed", targetLanguage)
		}
	}

	segments := make([]artifact.Segment, len(transcript.Segments))
	for i, seg := range transcript.Segments {
		segments[i] = artifact.Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  fmt.Sprintf("[%s] %s", targetLanguage, seg.Text),
		}
	}

	return &artifact.Track{Language: targetLanguage, Segments: segments}, nil
}

// Render implements TranslationBackend.
func (s *Simulator) Render(ctx context.Context, media Media, tracks []artifact.Track) (string, error) {
	if err := s.wait(ctx); err != nil {
		return "", err
	}
	if s.FailRender {
		return "", fmt.Errorf("render failed for %q", media.Title)
	}

	key := fmt.Sprintf("render/%d/%s", time.Now().UnixNano(), media.Title)
	if len(tracks) == 1 {
		key += "." + tracks[0].Language
	}
	return key, nil
}

// MemoryBlobStore is an in-memory BlobStore for development and tests.
type MemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte

	// FailPut forces Put to fail, for exercising the background write
	// failure path.
	FailPut bool
}

// NewMemoryBlobStore creates an empty in-memory blob store.
func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string][]byte)}
}

// Put implements BlobStore.
func (m *MemoryBlobStore) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	if m.FailPut {
		return fmt.Errorf("blob write failed for %q", key)
	}

	var data []byte
	if r != nil {
		var err error
		data, err = io.ReadAll(r)
		if err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = data

	return nil
}

// Get implements BlobStore.
func (m *MemoryBlobStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	data, ok := m.blobs[key]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("blob %q not found", key)
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete implements BlobStore.
func (m *MemoryBlobStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)

	return nil
}

// Len returns the number of stored blobs.
func (m *MemoryBlobStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}
