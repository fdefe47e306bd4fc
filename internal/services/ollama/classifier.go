package ollama

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/disintegration/imaging"

	"autoingest/internal/document"
	"autoingest/internal/services"
)

const classificationPrompt = `You are a records-management assistant. Classify the scanned document in the image.
Respond with JSON only, using exactly these keys:
{"document_type": string, "confidence": number between 0 and 1, "summary": string, "tags": [string], "reasoning": string}
document_type should be a short noun phrase such as "Invoice", "Contract", "ID Card", "Bank Statement", "Medical Report", or "Letter".`

// Classifier turns an image file into a document.Classification using a vision model.
type Classifier struct {
	client       *Client
	maxDimension int
	jpegQuality  int
}

// NewClassifier wraps client with image preprocessing settings from cfg.
func NewClassifier(cfg Config, opts ...Option) *Classifier {
	quality := cfg.JPEGQuality
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	return &Classifier{
		client:       NewClient(cfg, opts...),
		maxDimension: cfg.MaxDimension,
		jpegQuality:  quality,
	}
}

// Classify loads, downscales, and submits the image at path.
func (c *Classifier) Classify(ctx context.Context, path string) (document.Classification, error) {
	var empty document.Classification
	payload, err := c.prepareImage(path)
	if err != nil {
		return empty, services.Wrap(services.ErrValidation, "classifier", "prepare image", path, err)
	}
	content, err := c.client.GenerateJSON(ctx, classificationPrompt, payload)
	if err != nil {
		return empty, services.Wrap(services.ErrExternalTool, "classifier", "generate", c.client.cfg.Model, err)
	}
	var parsed document.Classification
	if err := DecodeJSON(content, &parsed); err != nil {
		return empty, services.Wrap(services.ErrExternalTool, "classifier", "parse response", "", err)
	}
	parsed.Normalize()
	return parsed, nil
}

// prepareImage re-encodes the source as JPEG, fitting it inside
// maxDimension x maxDimension so large scans stay within model limits.
func (c *Classifier) prepareImage(path string) ([]byte, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if c.maxDimension > 0 {
		bounds := img.Bounds()
		if bounds.Dx() > c.maxDimension || bounds.Dy() > c.maxDimension {
			img = imaging.Fit(img, c.maxDimension, c.maxDimension, imaging.Lanczos)
		}
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(c.jpegQuality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Model returns the configured model name.
func (c *Classifier) Model() string {
	return strings.TrimSpace(c.client.cfg.Model)
}
