package pipeline

import (
	"fmt"
	"strings"

	"adforge/internal/project"
	"adforge/internal/renderer"
)

const (
	defaultVideoStyle    = "auto"
	defaultVideoLayout   = "product_main"
	defaultPublishTarget = "instagram"
)

var videoStyles = map[string]struct{}{
	"auto":      {},
	"rotation":  {},
	"zoom":      {},
	"pan":       {},
	"reveal":    {},
	"cinematic": {},
}

var videoLayouts = map[string]struct{}{
	"product_main": {},
	"avatar_main":  {},
}

// TransitionParams carries the optional per-stage knobs supplied with a
// transition request. Unknown values are rejected before any job is
// submitted.
type TransitionParams struct {
	VideoStyle    string
	VideoLayout   string
	PublishTarget string
	Caption       string
}

func (p TransitionParams) normalize(kind renderer.Kind) (TransitionParams, error) {
	out := TransitionParams{
		VideoStyle:    strings.ToLower(strings.TrimSpace(p.VideoStyle)),
		VideoLayout:   strings.ToLower(strings.TrimSpace(p.VideoLayout)),
		PublishTarget: strings.ToLower(strings.TrimSpace(p.PublishTarget)),
		Caption:       strings.TrimSpace(p.Caption),
	}
	switch kind {
	case renderer.KindVideo:
		if out.VideoStyle == "" {
			out.VideoStyle = defaultVideoStyle
		}
		if out.VideoLayout == "" {
			out.VideoLayout = defaultVideoLayout
		}
		if _, ok := videoStyles[out.VideoStyle]; !ok {
			return out, renderer.Wrap(renderer.ErrValidation, kind, "params", fmt.Sprintf("unknown video style %q", out.VideoStyle), nil)
		}
		if _, ok := videoLayouts[out.VideoLayout]; !ok {
			return out, renderer.Wrap(renderer.ErrValidation, kind, "params", fmt.Sprintf("unknown video layout %q", out.VideoLayout), nil)
		}
	case renderer.KindPublish:
		if out.PublishTarget == "" {
			out.PublishTarget = defaultPublishTarget
		}
		if out.PublishTarget != defaultPublishTarget {
			return out, renderer.Wrap(renderer.ErrValidation, kind, "params", fmt.Sprintf("unsupported publish target %q", out.PublishTarget), nil)
		}
	}
	return out, nil
}

// buildCaption derives an Instagram caption from the product metadata when
// the request did not supply one.
func buildCaption(in project.Inputs) string {
	var b strings.Builder
	name := strings.TrimSpace(in.ProductName)
	if name == "" {
		name = "Our latest product"
	}
	fmt.Fprintf(&b, "%s is here!", name)
	if desc := strings.TrimSpace(in.ProductDescription); desc != "" {
		b.WriteString("\n\n")
		b.WriteString(desc)
	}
	if price := strings.TrimSpace(in.ProductPrice); price != "" {
		fmt.Fprintf(&b, "\n\nAvailable now for %s.", price)
	}
	b.WriteString("\n\n#ad")
	if tag := hashtag(in.ProductCategory); tag != "" {
		b.WriteString(" " + tag)
	}
	if tag := hashtag(in.ProductName); tag != "" {
		b.WriteString(" " + tag)
	}
	return b.String()
}

func hashtag(value string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return -1
		}
	}, value)
	if cleaned == "" {
		return ""
	}
	return "#" + cleaned
}
