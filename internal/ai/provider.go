package ai

import (
	"context"
	"strings"
)

// Provider abstracts a multimodal AI backend that receives a prompt plus a
// base64-encoded image and returns the model's raw text response.
type Provider interface {
	ExtractData(ctx context.Context, prompt string, imageBase64 string) (string, error)
}

// CleanBase64 strips a data:image/...;base64, prefix if present.
func CleanBase64(imageBase64 string) string {
	if strings.HasPrefix(imageBase64, "data:image") {
		if idx := strings.Index(imageBase64, ","); idx >= 0 {
			return imageBase64[idx+1:]
		}
	}
	return imageBase64
}

// DetectImageFormat guesses the image format from the base64 magic bytes.
// Defaults to jpeg, which every vision backend accepts.
func DetectImageFormat(base64Data string) string {
	switch {
	case strings.HasPrefix(base64Data, "iVBORw0KGgo"):
		return "png"
	case strings.HasPrefix(base64Data, "/9j/"):
		return "jpeg"
	case strings.HasPrefix(base64Data, "R0lGOD"):
		return "gif"
	case strings.HasPrefix(base64Data, "UklGR"):
		return "webp"
	default:
		return "jpeg"
	}
}
