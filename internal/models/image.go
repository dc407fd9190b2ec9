package models

import (
	"strings"
	"sync"
)

// PlaceholderImage is shown when a park has no usable image
const PlaceholderImage = "https://placehold.co/600x400?text=Parque"

// ResolveImage picks the image URL for a park: the absolute URL when set,
// otherwise the storage path joined onto storageBase, otherwise the placeholder.
func ResolveImage(p Park, storageBase string) string {
	if u := strings.TrimSpace(p.ImageURL); u != "" {
		return u
	}
	if path := strings.TrimSpace(p.ImagePath); path != "" && storageBase != "" {
		return strings.TrimRight(storageBase, "/") + "/" + strings.TrimLeft(path, "/")
	}
	return PlaceholderImage
}

// ImageResolver resolves park images and remembers load failures for the
// lifetime of the session. A failed park always resolves to the placeholder.
type ImageResolver struct {
	storageBase string
	failed      map[string]bool
	mu          sync.RWMutex
}

// NewImageResolver creates a resolver joining relative paths onto storageBase
func NewImageResolver(storageBase string) *ImageResolver {
	return &ImageResolver{
		storageBase: storageBase,
		failed:      make(map[string]bool),
	}
}

// Resolve returns the image URL to display for p
func (r *ImageResolver) Resolve(p Park) string {
	r.mu.RLock()
	failed := r.failed[p.ID]
	r.mu.RUnlock()

	if failed {
		return PlaceholderImage
	}
	return ResolveImage(p, r.storageBase)
}

// MarkFailed records that the image for the park failed to load
func (r *ImageResolver) MarkFailed(id string) {
	r.mu.Lock()
	r.failed[id] = true
	r.mu.Unlock()
}

// Failed reports whether the park's image previously failed to load
func (r *ImageResolver) Failed(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.failed[id]
}
