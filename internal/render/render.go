// Package render compiles and executes notification templates.
package render

import (
	"context"
	"fmt"

	"github.com/flosch/pongo2/v6"
	"github.com/sirupsen/logrus"

	"github.com/moviehub/notify/internal/shortener"
)

// Context key whose value is shortened before execution.
const urlKey = "url"

// Renderer executes templates against a per-subscriber context. When a
// shortener is configured, URL-bearing context values are replaced with
// their short form; a shortening failure keeps the original URL.
type Renderer struct {
	shortener shortener.Shortener
	log       *logrus.Logger
}

func New(s shortener.Shortener, log *logrus.Logger) *Renderer {
	return &Renderer{shortener: s, log: log}
}

// Validate reports whether body parses under the template grammar. The
// template stores call it on every write.
func Validate(body string) error {
	if _, err := pongo2.FromString(body); err != nil {
		return fmt.Errorf("template does not parse: %w", err)
	}
	return nil
}

// Render executes body with renderCtx. The input map is not mutated.
func (r *Renderer) Render(ctx context.Context, body string, renderCtx map[string]any) (string, error) {
	tpl, err := pongo2.FromString(body)
	if err != nil {
		return "", fmt.Errorf("template does not parse: %w", err)
	}

	out, err := tpl.Execute(pongo2.Context(r.prepare(ctx, renderCtx)))
	if err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}
	return out, nil
}

func (r *Renderer) prepare(ctx context.Context, renderCtx map[string]any) map[string]any {
	prepared := make(map[string]any, len(renderCtx))
	for k, v := range renderCtx {
		prepared[k] = v
	}
	if r.shortener == nil {
		return prepared
	}

	if long, ok := prepared[urlKey].(string); ok && long != "" {
		short, err := r.shortener.Shorten(ctx, long)
		if err != nil {
			r.log.WithError(err).Warn("URL shortening failed, keeping original")
		} else {
			prepared[urlKey] = short
		}
	}
	return prepared
}
