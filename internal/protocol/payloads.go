package protocol

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

type WebErrorPayload struct {
	Reason string `json:"reason,omitempty"`
}

type SigninPayload struct {
	Provider string `json:"provider"`
}

type PurchasePayload struct {
	ProductID   string `json:"product_id"`
	ProductType string `json:"product_type,omitempty"`
}

type DownloadPayload struct {
	URL      string `json:"url"`
	DataURL  string `json:"dataUrl"`
	Filename string `json:"filename"`
}

// Source returns the URL or inline data URL to materialise, preferring the
// inline form when both are given.
func (p DownloadPayload) Source() string {
	if p.DataURL != "" {
		return p.DataURL
	}
	return p.URL
}

// SharePayload is the normalised form of both START_SHARE and
// share.toChannel requests.
type SharePayload struct {
	Social        string
	// Platform is START_SHARE's platform field as sent.
	Platform      string
	File          string
	Caption       string
	Hashtags      []string
	CouponEnabled bool
	Link          string
}

// ParseShare reads a share request. Older web builds send
// {social, data:{...}} beside "type" instead of inside the payload, and
// START_SHARE uses {image, caption, platform}; all shapes are accepted.
func ParseShare(msg Message) SharePayload {
	root := gjson.Parse(msg.Raw())
	payload := gjson.ParseBytes(msg.Payload)

	social := firstString(
		payload.Get("social"),
		payload.Get("platform"),
		root.Get("social"),
	)

	data := payload
	switch {
	case payload.Get("data").IsObject():
		data = payload.Get("data")
	case root.Get("data").IsObject():
		data = root.Get("data")
	}

	p := SharePayload{
		Social:   strings.ToUpper(strings.TrimSpace(social)),
		Platform: payload.Get("platform").String(),
		File: firstString(
			data.Get("imageUrl"),
			data.Get("url"),
			data.Get("image"),
		),
		Caption:       data.Get("caption").String(),
		CouponEnabled: data.Get("couponEnabled").Bool(),
		Link:          data.Get("link").String(),
	}

	tags := data.Get("hashtags")
	switch {
	case tags.IsArray():
		for _, t := range tags.Array() {
			if s := strings.TrimSpace(t.String()); s != "" {
				p.Hashtags = append(p.Hashtags, s)
			}
		}
	case tags.Type == gjson.String && tags.String() != "":
		p.Hashtags = []string{tags.String()}
	}

	return p
}

func firstString(results ...gjson.Result) string {
	for _, r := range results {
		if r.Type == gjson.String && r.String() != "" {
			return r.String()
		}
	}
	return ""
}

type rule func(payload gjson.Result) error

var rules = map[string]rule{
	TypeStartSubscription:    requireString("product_id"),
	TypeStartOneTimePurchase: requireString("product_id"),
	TypeNavState: all(
		optionalBool("isRoot"),
		optionalBool("canGoBackInWeb"),
		optionalBool("canGoBack"),
		optionalBool("hasBlockingUI"),
		optionalBool("needsConfirm"),
		optionalString("path"),
	),
	TypeDownloadImage: all(
		optionalString("url"),
		optionalString("dataUrl"),
		optionalString("filename"),
	),
	TypeStartSignin: optionalString("provider"),
}

// Validate checks a decoded message against the schema of its type. The
// payload must always be an object; types with extra rules are checked
// field by field.
func Validate(msg Message) error {
	payload := gjson.ParseBytes(msg.Payload)
	if !payload.IsObject() {
		return fmt.Errorf("%w: %s payload is not an object", ErrInvalidPayload, msg.Type)
	}
	if r, ok := rules[msg.Type]; ok {
		if err := r(payload); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidPayload, msg.Type, err)
		}
	}
	return nil
}

func all(rs ...rule) rule {
	return func(p gjson.Result) error {
		for _, r := range rs {
			if err := r(p); err != nil {
				return err
			}
		}
		return nil
	}
}

func requireString(field string) rule {
	return func(p gjson.Result) error {
		v := p.Get(field)
		if v.Type != gjson.String || strings.TrimSpace(v.String()) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func optionalString(field string) rule {
	return func(p gjson.Result) error {
		v := p.Get(field)
		if v.Exists() && v.Type != gjson.String && v.Type != gjson.Null {
			return fmt.Errorf("%s must be a string", field)
		}
		return nil
	}
}

func optionalBool(field string) rule {
	return func(p gjson.Result) error {
		v := p.Get(field)
		if v.Exists() && v.Type != gjson.True && v.Type != gjson.False && v.Type != gjson.Null {
			return fmt.Errorf("%s must be a boolean", field)
		}
		return nil
	}
}
