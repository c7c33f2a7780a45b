// Package separation wraps the background-removal capability: source image
// bytes in, same-size PNG with a transparent background out. The removal
// algorithm itself lives outside this module; adapters only integrate with it.
package separation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// ErrDimensionMismatch is returned when a cutout does not match the source size.
var ErrDimensionMismatch = errors.New("separation: cutout size differs from source")

// Separator extracts the foreground subject of an image.
// Implementations must not cache: every call reprocesses src.
type Separator interface {
	Separate(ctx context.Context, src []byte) ([]byte, error)
}

// Func adapts a plain function to Separator.
type Func func(ctx context.Context, src []byte) ([]byte, error)

func (f Func) Separate(ctx context.Context, src []byte) ([]byte, error) { return f(ctx, src) }

// Run calls s and checks that the result decodes to the source's dimensions.
func Run(ctx context.Context, s Separator, src []byte) ([]byte, error) {
	if s == nil {
		return nil, errors.New("separation: no separator configured")
	}
	srcCfg, _, err := image.DecodeConfig(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("separation: decode source: %w", err)
	}
	out, err := s.Separate(ctx, src)
	if err != nil {
		return nil, err
	}
	outCfg, _, err := image.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("separation: decode cutout: %w", err)
	}
	if outCfg.Width != srcCfg.Width || outCfg.Height != srcCfg.Height {
		return nil, fmt.Errorf("%w: %dx%d vs %dx%d", ErrDimensionMismatch,
			outCfg.Width, outCfg.Height, srcCfg.Width, srcCfg.Height)
	}
	return out, nil
}
