package share

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed channels.yaml
var defaultCatalog []byte

type Step string

const (
	StepSingle Step = "single"
	StepURLs   Step = "urls"
	StepOpen   Step = "open"
)

const SystemChannel = "SYSTEM"

// Plan describes how one channel is shared to.
type Plan struct {
	Social           string `yaml:"social"`
	Title            string `yaml:"title"`
	ClipboardCaption bool   `yaml:"clipboard_caption"`
	BackgroundImage  bool   `yaml:"background_image"`
	LocalFile        bool   `yaml:"local_file"`
	StripImageURLs   bool   `yaml:"strip_image_urls"`
	Steps            []Step `yaml:"steps"`
}

type Catalog struct {
	DefaultTitle string          `yaml:"default_title"`
	Toast        string          `yaml:"toast"`
	CouponLine   string          `yaml:"coupon_line"`
	Channels     map[string]Plan `yaml:"channels"`
}

// DefaultCatalog returns the built-in channel plans.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("share: embedded catalog: %v", err))
	}
	return c
}

// ParseCatalog loads channel plans and normalizes them so every plan ends
// with the generic open step.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse share catalog: %w", err)
	}

	plans := make(map[string]Plan, len(c.Channels)+1)
	for key, p := range c.Channels {
		for _, s := range p.Steps {
			switch s {
			case StepSingle, StepURLs, StepOpen:
			default:
				return nil, fmt.Errorf("channel %s: unknown step %q", key, s)
			}
		}
		if n := len(p.Steps); n == 0 || p.Steps[n-1] != StepOpen {
			p.Steps = append(p.Steps, StepOpen)
		}
		plans[strings.ToUpper(key)] = p
	}
	if _, ok := plans[SystemChannel]; !ok {
		plans[SystemChannel] = Plan{Steps: []Step{StepOpen}}
	}
	c.Channels = plans
	return &c, nil
}

// Lookup resolves a web-supplied channel key. Unknown keys use the system
// share sheet.
func (c *Catalog) Lookup(key string) (string, Plan) {
	key = strings.ToUpper(strings.TrimSpace(key))
	if p, ok := c.Channels[key]; ok {
		return key, p
	}
	return SystemChannel, c.Channels[SystemChannel]
}

func (c *Catalog) title(p Plan) string {
	if p.Title != "" {
		return p.Title
	}
	return c.DefaultTitle
}
