// Package backend defines the processing pipeline interfaces the service
// drives: audio extraction, speech-to-text, translation, and blob storage.
// A timer-driven simulator implementation is provided for development and
// tests.
package backend

import (
	"context"
	"io"

	"github.com/Jamesmini007/AX2-Caption/artifact"
)

// Media describes the uploaded source video handed to the pipeline.
type Media struct {
	Title           string
	DurationSeconds float64
	SizeBytes       int64
	Reader          io.Reader // nil when only metadata is available
}

// Transcript is the speech-to-text output for the source audio.
type Transcript struct {
	Language string // detected when the request left it empty
	Segments []artifact.Segment
}

// TranslationBackend is the processing pipeline. Implementations must honor
// context cancellation at every stage boundary.
type TranslationBackend interface {
	// ExtractAudio pulls the audio track out of the source media.
	ExtractAudio(ctx context.Context, media Media) error

	// Transcribe runs speech-to-text over the extracted audio. When
	// sourceLanguage is empty the backend detects it and reports the
	// detected code in the returned transcript.
	Transcribe(ctx context.Context, media Media, sourceLanguage string) (*Transcript, error)

	// Translate renders the transcript into one target language.
	Translate(ctx context.Context, transcript *Transcript, targetLanguage string) (*artifact.Track, error)

	// Render muxes the subtitle tracks back into the media, returning a
	// blob key under which the output can later be stored.
	Render(ctx context.Context, media Media, tracks []artifact.Track) (string, error)
}

// BlobStore holds rendered media blobs. Metadata lives in the main store;
// blob writes happen in the background after a job completes, so readers
// must tolerate a key that is not present yet.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
