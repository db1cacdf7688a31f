package fetch

import (
	"errors"
	"fmt"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var ErrUnknownStyle = errors.New("unknown style")

// Styles are the built-in tile sources, in listing order. Carto needs no key but is rate limited.
var Styles = func() *orderedmap.OrderedMap[string, string] {
	styles := orderedmap.New[string, string]()
	styles.Set("osm", "https://tile.openstreetmap.org/{z}/{x}/{y}.png")
	styles.Set("carto-light", "https://cartodb-basemaps-a.global.ssl.fastly.net/light_all/{z}/{x}/{y}.png")
	styles.Set("carto-dark", "https://cartodb-basemaps-a.global.ssl.fastly.net/dark_all/{z}/{x}/{y}.png")
	return styles
}()

// Template resolves the URL template to use; a custom template wins over the style.
func Template(style, custom string) (string, error) {
	if custom != "" {
		hasXYZ := strings.Contains(custom, "{z}") && strings.Contains(custom, "{x}") && strings.Contains(custom, "{y}")
		if !hasXYZ && !strings.Contains(custom, "{q}") {
			return "", fmt.Errorf("template %q must contain {z}, {x} and {y} or {q}", custom)
		}
		return custom, nil
	}
	tmpl, ok := Styles.Get(style)
	if !ok {
		return "", fmt.Errorf("%w %q, use the styles command or pass a template", ErrUnknownStyle, style)
	}
	return tmpl, nil
}

// SourceExtension guesses the image extension from the template, png when unknown.
func SourceExtension(template string) string {
	path := template
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if i := strings.LastIndex(path, "."); i >= 0 && i > strings.LastIndex(path, "/") {
		switch ext := strings.ToLower(path[i+1:]); ext {
		case "png", "jpg", "jpeg", "webp":
			return ext
		}
	}
	return "png"
}
