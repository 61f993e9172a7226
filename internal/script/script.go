// Package script produces the marketing copy used by the video and website
// renderers. The primary writer calls an LLM chat completion endpoint; when
// no API key is configured a deterministic template writer takes over so the
// pipeline never blocks on missing credentials.
package script

import (
	"context"
	"fmt"
	"strings"

	"adforge/internal/config"
	"adforge/internal/project"
)

// Service generates a short marketing script from the project inputs.
type Service interface {
	Generate(ctx context.Context, in project.Inputs) (string, error)
}

// NewFromConfig selects the LLM writer when an API key is present and the
// template writer otherwise.
func NewFromConfig(cfg config.Script) Service {
	if strings.TrimSpace(cfg.APIKey) != "" {
		return NewWriter(cfg)
	}
	return TemplateWriter{}
}

// TemplateWriter produces a serviceable script without any external calls.
type TemplateWriter struct{}

// Generate assembles a three-beat spot from the product metadata.
func (TemplateWriter) Generate(_ context.Context, in project.Inputs) (string, error) {
	name := strings.TrimSpace(in.ProductName)
	if name == "" {
		name = "this product"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Meet %s.", name)
	if desc := strings.TrimSpace(in.ProductDescription); desc != "" {
		fmt.Fprintf(&b, " %s", strings.TrimRight(desc, "."))
		b.WriteString(".")
	}
	if category := strings.TrimSpace(in.ProductCategory); category != "" {
		fmt.Fprintf(&b, " The %s you didn't know you needed.", strings.ToLower(category))
	}
	if price := strings.TrimSpace(in.ProductPrice); price != "" {
		fmt.Fprintf(&b, " Yours for %s.", price)
	}
	fmt.Fprintf(&b, " Get %s today.", name)
	return b.String(), nil
}
