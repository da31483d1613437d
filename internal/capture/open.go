package capture

import "fmt"

// Open creates the source selected by opts.Kind. Synthetic sources use
// opts.Width and opts.Height, defaulting to 1280x720.
func Open(opts Options) (Source, error) {
	switch opts.Kind {
	case KindScreen, "":
		return NewScreenSource(opts)
	case KindDXGI:
		return NewDXGISource(opts)
	case KindSynthetic:
		w, h := opts.Width, opts.Height
		if w == 0 {
			w = 1280
		}
		if h == 0 {
			h = 720
		}
		return NewSyntheticSource(SyntheticOptions{Width: w, Height: h})
	default:
		return nil, fmt.Errorf("unknown capture source %q", opts.Kind)
	}
}
