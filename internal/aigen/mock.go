package aigen

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/disintegration/imaging"

	"artomate-backend/internal/models"
)

// MockGenerator returns canned copy and a flat brand-coloured image.
// Used in development and tests where no API key is available.
type MockGenerator struct {
	// Delay simulates model latency.
	Delay time.Duration
	// FailText and FailImage force the corresponding step to error.
	FailText  error
	FailImage error
}

var mockHashtags = map[string][]string{
	models.ContentMusic: {"#NewMusic", "#ArtistLife", "#CreativeFlow", "#MusicLover", "#IndieArtist"},
	models.ContentVideo: {"#NewVideo", "#Filmmaker", "#CreativeFlow", "#VisualArt", "#IndieCreator"},
	models.ContentBook:  {"#NewBook", "#AuthorLife", "#CreativeFlow", "#BookLover", "#IndieAuthor"},
}

var mockCTA = map[string]string{
	models.ContentMusic: "Listen Now",
	models.ContentVideo: "Watch Now",
	models.ContentBook:  "Read Now",
}

func (m *MockGenerator) wait(ctx context.Context) error {
	if m.Delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(m.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (m *MockGenerator) GenerateBundle(ctx context.Context, req Request) (*models.GenerationBundle, error) {
	if err := m.wait(ctx); err != nil {
		return nil, fmt.Errorf("content generation failed: %w", err)
	}
	if m.FailText != nil {
		return nil, fmt.Errorf("content generation failed: %w", m.FailText)
	}

	hashtags, ok := mockHashtags[req.ContentType]
	if !ok {
		hashtags = mockHashtags[models.ContentMusic]
	}
	cta, ok := mockCTA[req.ContentType]
	if !ok {
		cta = "Check It Out"
	}

	bundle := &models.GenerationBundle{
		Caption: fmt.Sprintf("Just dropped my latest %s %q! This one's been brewing in my soul for months. Hope it resonates with you all!",
			req.ContentType, req.Theme),
		CaptionB: fmt.Sprintf("New %s alert! %q is finally here and it's everything I hoped it would be. Drop a heart if you're feeling it!",
			req.ContentType, req.Theme),
		Hashtags: append([]string(nil), hashtags...),
		Email: models.EmailCopy{
			Subject: fmt.Sprintf("Your New %s is Here: %q", req.ContentType, req.Theme),
			Body: fmt.Sprintf("Hey there!\n\nI'm so excited to share my latest %s with you! %q has been a labor of love, and I can't wait for you to experience it.\n\n"+
				"This piece represents everything I've been feeling and creating lately. It's raw, it's real, and it's straight from the heart.\n\n"+
				"I hope it speaks to you the way it speaks to me. Let me know what you think!", req.ContentType, req.Theme),
			CTAText: cta,
		},
		ImagePrompt: fmt.Sprintf("A vibrant, artistic composition, warm golden hour lighting, with a dreamy, ethereal atmosphere. "+
			"The image should capture the essence of %q with rich colors, dynamic composition, and professional photography quality. "+
			"1:1 aspect ratio, suitable for social media.", req.Theme),
		VideoScript: "Scene 1 (0-3s): Fade in from black to reveal the artist in a creative studio space\n" +
			"Scene 2 (3-6s): Close-up of hands at work, with dynamic lighting\n" +
			"Scene 3 (6-9s): Wide shot of the artist performing, with atmospheric effects\n" +
			"Scene 4 (9-12s): Artistic montage of creative process and final result\n" +
			"Scene 5 (12-15s): Fade to brand logo and call-to-action",
	}
	if err := NormalizeBundle(bundle); err != nil {
		return nil, err
	}
	return bundle, nil
}

func (m *MockGenerator) GenerateImage(ctx context.Context, prompt string) (*Image, error) {
	if err := m.wait(ctx); err != nil {
		return nil, fmt.Errorf("image generation failed: %w", err)
	}
	if m.FailImage != nil {
		return nil, fmt.Errorf("image generation failed: %w", m.FailImage)
	}

	base := imaging.New(512, 512, color.NRGBA{R: 0x8B, G: 0x5C, B: 0xF6, A: 0xFF})
	accent := imaging.New(256, 256, color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF})
	img := imaging.Overlay(base, accent, image.Pt(128, 128), 0.25)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("image generation failed: %w", err)
	}
	return &Image{Data: buf.Bytes(), MIMEType: "image/png", Prompt: prompt}, nil
}
