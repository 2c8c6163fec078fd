// Package media turns backend media ids into displayable URLs and
// captured binaries into stored media references.
package media

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/SAP-F-2025/assessment-runner/internal/client"
	apperrors "github.com/SAP-F-2025/assessment-runner/internal/errors"
	"github.com/SAP-F-2025/assessment-runner/internal/models"
	"golang.org/x/sync/singleflight"
)

// Backend is the slice of the backend API the resolver needs.
type Backend interface {
	DownloadURL(ctx context.Context, mediaID models.ID) (string, error)
	CreateMedia(ctx context.Context, req client.CreateMediaRequest) (*client.MediaSlot, error)
	Upload(ctx context.Context, presignedURL, contentType string, data []byte) error
	AttachMediaToQuestion(ctx context.Context, questionID, mediaID models.ID) error
}

// Resolver is scoped to one session. Resolved URLs are cached for the
// session's lifetime and never requested twice.
type Resolver struct {
	backend Backend
	logger  *slog.Logger

	mu    sync.RWMutex
	urls  map[models.ID]string
	group singleflight.Group
}

func NewResolver(backend Backend, logger *slog.Logger) *Resolver {
	return &Resolver{
		backend: backend,
		logger:  logger.With("component", "media_resolver"),
		urls:    make(map[models.ID]string),
	}
}

// Prime records a URL the backend already returned inline.
func (r *Resolver) Prime(id models.ID, url string) {
	if id.IsZero() || url == "" {
		return
	}
	r.mu.Lock()
	if _, ok := r.urls[id]; !ok {
		r.urls[id] = url
	}
	r.mu.Unlock()
}

func (r *Resolver) cached(id models.ID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.urls[id]
	return u, ok
}

// ResolveForDisplay returns a downloadable URL for mediaID.
func (r *Resolver) ResolveForDisplay(ctx context.Context, mediaID models.ID) (string, error) {
	if mediaID.IsZero() {
		return "", fmt.Errorf("resolve media: empty id: %w", apperrors.ErrNotFound)
	}
	if u, ok := r.cached(mediaID); ok {
		return u, nil
	}
	v, err, _ := r.group.Do(mediaID.String(), func() (interface{}, error) {
		if u, ok := r.cached(mediaID); ok {
			return u, nil
		}
		u, err := r.backend.DownloadURL(ctx, mediaID)
		if err != nil {
			return "", err
		}
		r.mu.Lock()
		r.urls[mediaID] = u
		r.mu.Unlock()
		return u, nil
	})
	if err != nil {
		return "", fmt.Errorf("resolve media %s: %w", mediaID, err)
	}
	return v.(string), nil
}

// ResolveRef resolves a "media:<id>" answer string into a MediaAnswer.
// A failed lookup keeps the reference with an empty URL.
func (r *Resolver) ResolveRef(ctx context.Context, ref string) (models.MediaAnswer, bool) {
	id, ok := models.ParseMediaRef(ref)
	if !ok {
		return models.MediaAnswer{}, false
	}
	u, err := r.ResolveForDisplay(ctx, id)
	if err != nil {
		r.logger.WarnContext(ctx, "Failed to resolve media answer", "media_id", id, "error", err)
		return models.MediaAnswer{Ref: ref}, true
	}
	return models.MediaAnswer{Ref: ref, DisplayURL: u}, true
}

// UploadAndReference stores blob and returns the "media:<id>" string to
// persist in its place. Attaching the media to its question is best effort.
func (r *Resolver) UploadAndReference(ctx context.Context, blob models.BinaryAnswer, label string, questionID models.ID) (string, error) {
	data, contentType := blob.Data, blob.ContentType
	mediaType := models.MediaImage
	if blob.IsAudio() {
		mediaType = models.MediaAudio
	} else if blob.Capture == models.BinaryDrawing {
		normalized, err := NormalizeDrawing(data)
		if err != nil {
			r.logger.WarnContext(ctx, "Uploading drawing without normalisation",
				"question_id", questionID,
				"error", err)
			if decoded, ct, ok := DecodeDataURL(data); ok {
				data, contentType = decoded, ct
			}
		} else {
			data, contentType = normalized, "image/png"
		}
	}
	if len(data) == 0 {
		return "", apperrors.NewUploadError("read", fmt.Errorf("empty %s payload", blob.Capture))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	slot, err := r.backend.CreateMedia(ctx, client.CreateMediaRequest{
		Type:        mediaType,
		Label:       label,
		Filename:    blob.Filename,
		ContentType: contentType,
	})
	if err != nil {
		return "", apperrors.NewUploadError("create_slot", err)
	}

	if err := r.backend.Upload(ctx, slot.PresignedURL, contentType, data); err != nil {
		return "", apperrors.NewUploadError("put_binary", err)
	}

	if !questionID.IsZero() {
		if err := r.backend.AttachMediaToQuestion(ctx, questionID, slot.ID); err != nil {
			r.logger.WarnContext(ctx, "Failed to attach media to question",
				"question_id", questionID,
				"media_id", slot.ID,
				"error", err)
		}
	}

	r.logger.InfoContext(ctx, "Uploaded answer media",
		"question_id", questionID,
		"media_id", slot.ID,
		"media_type", mediaType,
		"bytes", len(data))

	return models.MediaRef(slot.ID), nil
}

// UploadAnswer uploads blob and returns the stored answer with a display
// URL, so a fresh upload can be previewed right away. Failing to resolve
// the URL leaves it empty without failing the upload.
func (r *Resolver) UploadAnswer(ctx context.Context, blob models.BinaryAnswer, label string, questionID models.ID) (models.MediaAnswer, error) {
	ref, err := r.UploadAndReference(ctx, blob, label, questionID)
	if err != nil {
		return models.MediaAnswer{}, err
	}
	answer, _ := r.ResolveRef(ctx, ref)
	return answer, nil
}
