package aigen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"artomate-backend/internal/models"
)

const (
	defaultTextModel  = "gemini-2.0-flash"
	defaultImageModel = "imagen-3.0-generate-002"
)

// modelsAPI is the slice of genai.Models used here.
type modelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateImages(ctx context.Context, model string, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
}

// GeminiConfig configures the Gemini client.
type GeminiConfig struct {
	APIKey     string
	TextModel  string
	ImageModel string
}

// GeminiGenerator writes copy with Gemini and renders images with Imagen.
type GeminiGenerator struct {
	models     modelsAPI
	textModel  string
	imageModel string
}

// NewGeminiGenerator creates a client against the Gemini Developer API.
func NewGeminiGenerator(ctx context.Context, cfg GeminiConfig) (*GeminiGenerator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("Gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return newGeminiGenerator(client.Models, cfg), nil
}

func newGeminiGenerator(m modelsAPI, cfg GeminiConfig) *GeminiGenerator {
	g := &GeminiGenerator{models: m, textModel: cfg.TextModel, imageModel: cfg.ImageModel}
	if g.textModel == "" {
		g.textModel = defaultTextModel
	}
	if g.imageModel == "" {
		g.imageModel = defaultImageModel
	}
	return g
}

// GenerateBundle asks Gemini for the six-part marketing package as schema-constrained JSON.
func (g *GeminiGenerator) GenerateBundle(ctx context.Context, req Request) (*models.GenerationBundle, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(BuildPrompt(req), genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0.8),
		TopK:             genai.Ptr[float32](40),
		TopP:             genai.Ptr[float32](0.95),
		MaxOutputTokens:  2048,
		ResponseMIMEType: "application/json",
		ResponseSchema:   bundleSchema(),
	}

	resp, err := g.models.GenerateContent(ctx, g.textModel, contents, config)
	if err != nil {
		return nil, fmt.Errorf("content generation failed: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, errors.New("content generation failed: invalid response from Gemini API")
	}

	bundle, err := ParseBundle(text)
	if err != nil {
		return nil, fmt.Errorf("content generation failed: %w", err)
	}
	return bundle, nil
}

// GenerateImage renders one square image with Imagen.
func (g *GeminiGenerator) GenerateImage(ctx context.Context, prompt string) (*Image, error) {
	fullPrompt := fmt.Sprintf("Generate a high-quality, artistic image based on this prompt: %s. "+
		"The image should be professional quality and suitable for social media marketing.", prompt)

	resp, err := g.models.GenerateImages(ctx, g.imageModel, fullPrompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		AspectRatio:    "1:1",
		OutputMIMEType: "image/png",
	})
	if err != nil {
		return nil, fmt.Errorf("image generation failed: %w", err)
	}
	if resp == nil || len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil ||
		len(resp.GeneratedImages[0].Image.ImageBytes) == 0 {
		return nil, errors.New("image generation failed: invalid response from Imagen API")
	}

	img := resp.GeneratedImages[0].Image
	mimeType := img.MIMEType
	if mimeType == "" {
		mimeType = "image/png"
	}
	return &Image{Data: img.ImageBytes, MIMEType: mimeType, Prompt: prompt}, nil
}

// BuildPrompt renders the copywriting instructions for one upload.
func BuildPrompt(req Request) string {
	return fmt.Sprintf(`You are Artomate, an AI-powered content creation suite for artists.

Based on the following content information, generate a complete marketing package:

Content Type: %s
Theme/Vibe: %s
Source File: %s

Generate the following content in JSON format:

1. caption: An engaging Instagram caption that captures the essence of the content
2. captionB: An alternative A/B test caption with a different approach
3. hashtags: An array of exactly 5 relevant hashtags
4. email: An object containing subject (compelling subject line), body (professional marketing email, 2-3 paragraphs) and ctaText (call-to-action button text)
5. imagePrompt: A detailed, artistic prompt for image generation (be specific about style, mood, colors)
6. videoScript: A scene-by-scene script for a 15-second vertical video (9:16 aspect ratio), one scene per line

Make the content engaging, professional, and tailored to the content type and theme.`,
		req.ContentType, req.Theme, req.FileName)
}

// ParseBundle decodes a JSON bundle, tolerating a markdown code fence around it.
func ParseBundle(text string) (*models.GenerationBundle, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}

	var bundle models.GenerationBundle
	if err := json.Unmarshal([]byte(text), &bundle); err != nil {
		return nil, fmt.Errorf("failed to parse AI-generated content: %w", err)
	}
	if err := NormalizeBundle(&bundle); err != nil {
		return nil, err
	}
	return &bundle, nil
}

func bundleSchema() *genai.Schema {
	str := &genai.Schema{Type: genai.TypeString}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"caption":  str,
			"captionB": str,
			"hashtags": {
				Type:     genai.TypeArray,
				Items:    str,
				MinItems: genai.Ptr[int64](HashtagCount),
				MaxItems: genai.Ptr[int64](HashtagCount),
			},
			"email": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"subject": str,
					"body":    str,
					"ctaText": str,
				},
				Required: []string{"subject", "body", "ctaText"},
			},
			"imagePrompt": str,
			"videoScript": str,
		},
		Required: []string{"caption", "captionB", "hashtags", "email", "imagePrompt", "videoScript"},
	}
}
