package style

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Instruction is one requested variant: a display label and the text sent
// to the model alongside the photo.
type Instruction struct {
	Style       string `yaml:"style" json:"style"`
	Instruction string `yaml:"instruction" json:"instruction"`
}

type Catalog []Instruction

var defaultCatalog = Catalog{
	{
		Style:       "Official",
		Instruction: "Generate a professional headshot suitable for a corporate environment like LinkedIn. The person should be wearing business casual attire. The background should be a neutral, slightly out-of-focus office or studio setting. The lighting should be soft and professional.",
	},
	{
		Style:       "Formal Suit",
		Instruction: "Recreate this person in a highly professional headshot wearing a formal dark suit and tie (for men) or a professional blazer (for women). The background should be a bright, clean, modern studio backdrop. The expression should be confident and approachable.",
	},
	{
		Style:       "Creative",
		Instruction: "Generate a stylish but professional photo with a modern creative look, suitable for a tech or design role. The person could be against a textured wall or a minimalist, artistically lit background. The attire should be smart and trendy. The overall mood should be innovative and forward-thinking.",
	},
	{
		Style:       "Casual",
		Instruction: "Create a clean, approachable, and casual profile photo. The person should be wearing a simple, high-quality shirt or sweater. The background should be a natural outdoor setting, like a park or a pleasant urban street, with a shallow depth of field. The lighting should look natural and warm.",
	},
}

// Default returns a copy of the built-in catalog.
func Default() Catalog {
	return defaultCatalog.Clone()
}

func (c Catalog) Clone() Catalog {
	if c == nil {
		return nil
	}
	out := make(Catalog, len(c))
	copy(out, c)
	return out
}

func (c Catalog) Len() int {
	return len(c)
}

func (c Catalog) Styles() []string {
	out := make([]string, 0, len(c))
	for _, in := range c {
		out = append(out, in.Style)
	}
	return out
}

// Find looks a style up by label, ignoring case and surrounding space.
func (c Catalog) Find(label string) (Instruction, bool) {
	for _, in := range c {
		if strings.EqualFold(in.Style, strings.TrimSpace(label)) {
			return in, true
		}
	}
	return Instruction{}, false
}

func (c Catalog) Validate() error {
	seen := make(map[string]struct{}, len(c))
	for i, in := range c {
		label := strings.TrimSpace(in.Style)
		if label == "" {
			return fmt.Errorf("style #%d: empty label", i+1)
		}
		if strings.TrimSpace(in.Instruction) == "" {
			return fmt.Errorf("style %q: empty instruction", label)
		}
		key := strings.ToLower(label)
		if _, ok := seen[key]; ok {
			return fmt.Errorf("style %q: duplicate label", label)
		}
		seen[key] = struct{}{}
	}
	return nil
}

type catalogFile struct {
	Version int           `yaml:"version"`
	Styles  []Instruction `yaml:"styles"`
}

// LoadFile reads a YAML catalog. An empty path yields the default catalog.
func LoadFile(path string) (Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if file.Styles == nil {
		return nil, errors.New("decode catalog: missing styles list")
	}

	c := make(Catalog, 0, len(file.Styles))
	for _, in := range file.Styles {
		c = append(c, Instruction{
			Style:       strings.TrimSpace(in.Style),
			Instruction: strings.TrimSpace(in.Instruction),
		})
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// DownloadName is the file name offered for a generated variant,
// e.g. "linkedin-photo-formal-suit.jpg".
func DownloadName(label, ext string) string {
	slug := strings.ToLower(strings.TrimSpace(label))
	slug = strings.Join(strings.Fields(slug), "-")
	if slug == "" {
		slug = "style"
	}
	if ext == "" {
		ext = ".jpg"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return "linkedin-photo-" + slug + ext
}
