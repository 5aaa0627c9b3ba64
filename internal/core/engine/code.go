package engine

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Source is the provenance of a function's code.
type Source string

const (
	// SourcePackage functions run inside a shared runtime pool.
	SourcePackage Source = "package"
	// SourceImage functions run in a dedicated container built from their own image.
	SourceImage Source = "image"
)

// Code describes where a function's code comes from. The zero value is
// invalid; build one with PackageCode or ImageCode so an image reference can
// only exist on image functions.
type Code struct {
	source Source
	image  string
}

// PackageCode returns the code descriptor of a runtime-backed function.
func PackageCode() Code {
	return Code{source: SourcePackage}
}

// ImageCode returns the code descriptor of a function shipped as an image.
func ImageCode(ref string) Code {
	return Code{source: SourceImage, image: ref}
}

// Source returns the code provenance.
func (c Code) Source() Source { return c.source }

// Image returns the image reference of an image function.
func (c Code) Image() (string, bool) {
	if c.source != SourceImage {
		return "", false
	}
	return c.image, true
}

// Validate reports whether the descriptor is one of the two known variants.
func (c Code) Validate() error {
	switch c.source {
	case SourcePackage:
		return nil
	case SourceImage:
		if c.image == "" {
			return fmt.Errorf("%w: image function without image", ErrInvalidCode)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown source %q", ErrInvalidCode, c.source)
	}
}

type codeJSON struct {
	Source Source `json:"source"`
	Image  string `json:"image,omitempty"`
}

// MarshalJSON encodes the descriptor as {"source": ..., "image": ...}.
func (c Code) MarshalJSON() ([]byte, error) {
	return json.Marshal(codeJSON{Source: c.source, Image: c.image})
}

// UnmarshalJSON decodes and validates the descriptor.
func (c *Code) UnmarshalJSON(data []byte) error {
	var raw codeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCode, err)
	}
	var code Code
	switch raw.Source {
	case SourcePackage:
		code = PackageCode()
	case SourceImage:
		code = ImageCode(raw.Image)
	default:
		code = Code{source: raw.Source}
	}
	if err := code.Validate(); err != nil {
		return err
	}
	*c = code
	return nil
}

// Value stores the descriptor as a JSON document.
func (c Code) Value() (driver.Value, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	b, err := c.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan reads a descriptor written by Value.
func (c *Code) Scan(value any) error {
	switch v := value.(type) {
	case []byte:
		return c.UnmarshalJSON(v)
	case string:
		return c.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("%w: cannot scan %T", ErrInvalidCode, value)
	}
}
