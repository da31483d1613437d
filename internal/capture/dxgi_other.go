//go:build !windows

package capture

// NewDXGISource is only available on Windows.
func NewDXGISource(_ Options) (Source, error) {
	return nil, ErrUnsupported
}
