package aigen

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"artomate-backend/internal/models"
)

const validBundleJSON = `{
  "caption": " First caption ",
  "captionB": "Second caption",
  "hashtags": ["#one", "two", "# three", "#four", "five"],
  "email": {"subject": "Subject", "body": "Body", "ctaText": "Listen"},
  "imagePrompt": "A purple sky",
  "videoScript": "Scene 1\nScene 2"
}`

func TestParseBundle(t *testing.T) {
	b, err := ParseBundle(validBundleJSON)
	require.NoError(t, err)
	assert.Equal(t, "First caption", b.Caption)
	assert.Equal(t, []string{"#one", "#two", "#three", "#four", "#five"}, b.Hashtags)
	assert.Equal(t, "Listen", b.Email.CTAText)

	fenced := "```json\n" + validBundleJSON + "\n```"
	b, err = ParseBundle(fenced)
	require.NoError(t, err)
	assert.Equal(t, "Second caption", b.CaptionB)
}

func TestParseBundle_Invalid(t *testing.T) {
	_, err := ParseBundle("not json")
	require.Error(t, err)

	_, err = ParseBundle(`{"caption":"a","captionB":"b","hashtags":["#1","#2"],"email":{"subject":"s","body":"b","ctaText":"c"},"imagePrompt":"p","videoScript":"v"}`)
	require.ErrorIs(t, err, ErrInvalidBundle)
	assert.Contains(t, err.Error(), "expected 5 hashtags")

	_, err = ParseBundle(`{"caption":"a","hashtags":["#1","#2","#3","#4","#5"],"email":{"subject":"s","body":"b"},"imagePrompt":"p","videoScript":"v"}`)
	require.ErrorIs(t, err, ErrInvalidBundle)
	assert.Contains(t, err.Error(), "captionB")
	assert.Contains(t, err.Error(), "email.ctaText")
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt(Request{ContentType: "music", Theme: "Summer Nights", FileName: "summer-nights.mp3"})
	assert.Contains(t, p, "Content Type: music")
	assert.Contains(t, p, "Theme/Vibe: Summer Nights")
	assert.Contains(t, p, "Source File: summer-nights.mp3")
	assert.Contains(t, p, "exactly 5 relevant hashtags")
}

type fakeModels struct {
	text      string
	textErr   error
	imageResp *genai.GenerateImagesResponse
	imageErr  error

	gotModel  string
	gotConfig *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, _ []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.gotModel = model
	f.gotConfig = config
	if f.textErr != nil {
		return nil, f.textErr
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: f.text}}}}},
	}, nil
}

func (f *fakeModels) GenerateImages(_ context.Context, model string, _ string, _ *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error) {
	f.gotModel = model
	return f.imageResp, f.imageErr
}

func TestGeminiGenerator_GenerateBundle(t *testing.T) {
	fm := &fakeModels{text: validBundleJSON}
	g := newGeminiGenerator(fm, GeminiConfig{})

	b, err := g.GenerateBundle(context.Background(), Request{ContentType: "music", Theme: "x"})
	require.NoError(t, err)
	assert.Len(t, b.Hashtags, HashtagCount)
	assert.Equal(t, defaultTextModel, fm.gotModel)
	require.NotNil(t, fm.gotConfig)
	assert.Equal(t, float32(0.8), *fm.gotConfig.Temperature)
	assert.Equal(t, float32(40), *fm.gotConfig.TopK)
	assert.Equal(t, float32(0.95), *fm.gotConfig.TopP)
	assert.Equal(t, "application/json", fm.gotConfig.ResponseMIMEType)
}

func TestGeminiGenerator_GenerateBundleErrors(t *testing.T) {
	g := newGeminiGenerator(&fakeModels{textErr: errors.New("quota exceeded")}, GeminiConfig{})
	_, err := g.GenerateBundle(context.Background(), Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "content generation failed")
	assert.Contains(t, err.Error(), "quota exceeded")

	g = newGeminiGenerator(&fakeModels{text: ""}, GeminiConfig{})
	_, err = g.GenerateBundle(context.Background(), Request{})
	require.Error(t, err)
}

func TestGeminiGenerator_GenerateImage(t *testing.T) {
	fm := &fakeModels{imageResp: &genai.GenerateImagesResponse{
		GeneratedImages: []*genai.GeneratedImage{{Image: &genai.Image{ImageBytes: []byte{1, 2, 3}}}},
	}}
	g := newGeminiGenerator(fm, GeminiConfig{ImageModel: "imagen-test"})

	img, err := g.GenerateImage(context.Background(), "a cat")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, img.Data)
	assert.Equal(t, "image/png", img.MIMEType)
	assert.Equal(t, "a cat", img.Prompt)
	assert.Equal(t, "imagen-test", fm.gotModel)

	_, err = newGeminiGenerator(&fakeModels{imageResp: &genai.GenerateImagesResponse{}}, GeminiConfig{}).GenerateImage(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "image generation failed")
}

func TestMockGenerator(t *testing.T) {
	m := &MockGenerator{}
	b, err := m.GenerateBundle(context.Background(), Request{ContentType: models.ContentBook, Theme: "Quiet Storm"})
	require.NoError(t, err)
	assert.Contains(t, b.Caption, "Quiet Storm")
	assert.Equal(t, "Read Now", b.Email.CTAText)
	assert.Len(t, b.Hashtags, HashtagCount)

	img, err := m.GenerateImage(context.Background(), b.ImagePrompt)
	require.NoError(t, err)
	decoded, err := png.Decode(bytes.NewReader(img.Data))
	require.NoError(t, err)
	assert.Equal(t, 512, decoded.Bounds().Dx())
	assert.NotEqual(t, decoded.At(0, 0), decoded.At(256, 256), "accent square is blended into the centre")
}

func TestMockGenerator_Failures(t *testing.T) {
	m := &MockGenerator{FailText: errors.New("boom")}
	_, err := m.GenerateBundle(context.Background(), Request{})
	require.Error(t, err)

	m = &MockGenerator{FailImage: errors.New("boom")}
	_, err = m.GenerateImage(context.Background(), "x")
	require.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = (&MockGenerator{}).GenerateBundle(ctx, Request{})
	require.ErrorIs(t, err, context.Canceled)
}

var _ Generator = (*GeminiGenerator)(nil)
var _ Generator = (*MockGenerator)(nil)
