// Package aigen produces the marketing bundle and campaign image from a generative model.
package aigen

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"artomate-backend/internal/models"
)

// HashtagCount is the exact number of hashtags a bundle carries.
const HashtagCount = 5

// ErrInvalidBundle is returned when generated copy is missing required fields.
var ErrInvalidBundle = errors.New("generated content is incomplete")

// Request describes the uploaded media the copy is written for.
type Request struct {
	ContentType string
	Theme       string
	FileName    string
}

// Image is a generated raster image.
type Image struct {
	Data     []byte
	MIMEType string
	Prompt   string
}

// TextGenerator writes the marketing copy.
type TextGenerator interface {
	GenerateBundle(ctx context.Context, req Request) (*models.GenerationBundle, error)
}

// ImageGenerator renders the campaign image from a prompt.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (*Image, error)
}

// Generator is both halves; the Gemini and mock clients implement it.
type Generator interface {
	TextGenerator
	ImageGenerator
}

// NormalizeBundle trims the copy and prefixes hashtags with '#', then checks
// that every required field is present and that there are exactly five hashtags.
func NormalizeBundle(b *models.GenerationBundle) error {
	if b == nil {
		return fmt.Errorf("%w: empty response", ErrInvalidBundle)
	}
	b.Caption = strings.TrimSpace(b.Caption)
	b.CaptionB = strings.TrimSpace(b.CaptionB)
	b.Email.Subject = strings.TrimSpace(b.Email.Subject)
	b.Email.Body = strings.TrimSpace(b.Email.Body)
	b.Email.CTAText = strings.TrimSpace(b.Email.CTAText)
	b.ImagePrompt = strings.TrimSpace(b.ImagePrompt)
	b.VideoScript = strings.TrimSpace(b.VideoScript)

	tags := make([]string, 0, len(b.Hashtags))
	for _, tag := range b.Hashtags {
		tag = strings.Join(strings.Fields(tag), "")
		tag = strings.TrimLeft(tag, "#")
		if tag == "" {
			continue
		}
		tags = append(tags, "#"+tag)
	}
	b.Hashtags = tags

	var missing []string
	for name, value := range map[string]string{
		"caption":       b.Caption,
		"captionB":      b.CaptionB,
		"email.subject": b.Email.Subject,
		"email.body":    b.Email.Body,
		"email.ctaText": b.Email.CTAText,
		"imagePrompt":   b.ImagePrompt,
		"videoScript":   b.VideoScript,
	} {
		if value == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: missing %s", ErrInvalidBundle, strings.Join(missing, ", "))
	}
	if len(b.Hashtags) != HashtagCount {
		return fmt.Errorf("%w: expected %d hashtags, got %d", ErrInvalidBundle, HashtagCount, len(b.Hashtags))
	}
	return nil
}

