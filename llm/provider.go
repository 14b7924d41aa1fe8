// ABOUTME: ProviderAdapter interface implemented by every generator backend.
// ABOUTME: Adapters translate the unified Request/Response into a provider's API.

package llm

import "context"

// ProviderAdapter is the interface that all LLM provider adapters implement.
type ProviderAdapter interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Response, error)
	Close() error
}

// VisionCapable is an optional interface for adapters that can accept image
// content parts. Adapters that do not implement it are treated as text-only.
type VisionCapable interface {
	SupportsImages() bool
}

// SupportsImages reports whether adapter accepts image content parts.
func SupportsImages(adapter ProviderAdapter) bool {
	if v, ok := adapter.(VisionCapable); ok {
		return v.SupportsImages()
	}
	return false
}
