package plot

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/freetype/truetype"
	"github.com/rs/zerolog/log"

	"github.com/pivolan/crime_stats/domain/models"
)

// systemFontPaths are Hangul-capable TrueType fonts shipped by common distributions.
var systemFontPaths = []string{
	"/usr/share/fonts/truetype/nanum/NanumGothic.ttf",
	"/usr/share/fonts/nanum/NanumGothic.ttf",
	"/usr/share/fonts/truetype/unfonts-core/UnDotum.ttf",
	"/Library/Fonts/AppleGothic.ttf",
	"/System/Library/Fonts/Supplemental/AppleGothic.ttf",
	`C:\Windows\Fonts\malgun.ttf`,
}

// Font is the resolved font of a rendering strategy. TTF is nil when the
// renderer default should be used.
type Font struct {
	TTF    *truetype.Font
	Family string
	Path   string
}

// LoadFont resolves the font for strategy. When no usable font is found it
// returns a default Font together with an error wrapping models.ErrMissingAsset,
// so callers can render anyway and report the condition.
func LoadFont(strategy models.FontStrategy, path string) (Font, error) {
	fallback := Font{Family: "sans-serif"}
	switch strategy {
	case models.FontBundled:
		f, err := parseFontFile(path)
		if err != nil {
			return fallback, fmt.Errorf("%w: bundled font: %v", models.ErrMissingAsset, err)
		}
		return f, nil
	case models.FontSystem, "":
		for _, p := range systemFontPaths {
			if f, err := parseFontFile(p); err == nil {
				return f, nil
			}
		}
		return fallback, fmt.Errorf("%w: no Hangul system font found", models.ErrMissingAsset)
	}
	return fallback, fmt.Errorf("unknown font strategy %q", strategy)
}

func parseFontFile(path string) (Font, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Font{}, err
	}
	ttf, err := truetype.Parse(data)
	if err != nil {
		return Font{}, fmt.Errorf("parse %s: %w", path, err)
	}
	family := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	log.Debug().Str("path", path).Str("family", family).Msg("font loaded")
	return Font{TTF: ttf, Family: family + ", sans-serif", Path: path}, nil
}
