package annotation

import "strings"

// Style is a sticker's look, stored as "icon:shape:color".
type Style struct {
	Icon  string `json:"icon"`
	Shape string `json:"shape"`
	Color string `json:"color"`
}

const (
	DefaultIcon  = "star"
	DefaultShape = "rounded"
	DefaultColor = "purple"
)

var (
	knownIcons = map[string]bool{
		"star": true, "heart": true, "fire": true, "sparkles": true,
		"bookmark": true, "lightbulb": true, "question": true, "exclaim": true,
		"check": true, "eyes": true, "brain": true, "rocket": true,
	}
	knownShapes = map[string]bool{
		"circle": true, "rounded": true, "square": true, "hexagon": true,
	}
	knownColors = map[string]bool{
		"purple": true, "blue": true, "pink": true,
		"amber": true, "emerald": true, "holographic": true,
	}

	// Notes written before the three-part format stored a bare hex color.
	legacyColors = map[string]string{
		"#FBBF24": "amber",
		"#F472B6": "pink",
		"#60A5FA": "blue",
		"#34D399": "emerald",
	}
)

func DefaultStyle() Style {
	return Style{Icon: DefaultIcon, Shape: DefaultShape, Color: DefaultColor}
}

// ParseStyle never fails. A three-part value keeps each recognised part and
// defaults the rest; anything else is treated as a legacy hex color.
func ParseStyle(raw string) Style {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, ":") {
		parts := strings.SplitN(raw, ":", 3)
		for len(parts) < 3 {
			parts = append(parts, "")
		}
		return Style{
			Icon:  pick(parts[0], knownIcons, DefaultIcon),
			Shape: pick(parts[1], knownShapes, DefaultShape),
			Color: pick(parts[2], knownColors, DefaultColor),
		}
	}

	style := DefaultStyle()
	if color, ok := legacyColors[strings.ToUpper(raw)]; ok {
		style.Color = color
	}
	return style
}

func pick(v string, known map[string]bool, fallback string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if known[v] {
		return v
	}
	return fallback
}

func (s Style) String() string {
	return s.Icon + ":" + s.Shape + ":" + s.Color
}
