package evalgraph

import "fmt"

// Stream policy applied by GetEncoder.
const (
	StreamFramerate = 25
	StreamBitrate   = 400000
)

// align4 rounds v up to a multiple of 4.
func align4(v int) int {
	return (v + 3) &^ 3
}

// GetEncoder returns the output stream for filename, creating and
// initializing it on first use. Dimensions are rounded up to a multiple of
// 4. Later calls with the same filename return the same stream regardless
// of size. Close finalizes every stream.
func (c *Context) GetEncoder(filename string, width, height int) (StreamEncoder, error) {
	if c.closed {
		return nil, ErrContextClosed
	}
	if enc, ok := c.encoders[filename]; ok {
		return enc, nil
	}
	if c.streams == nil {
		return nil, ErrNoStreamFactory
	}

	enc, err := c.streams(filename)
	if err != nil {
		return nil, fmt.Errorf("evalgraph: create stream %s: %w", filename, err)
	}
	w, h := align4(width), align4(height)
	if err := enc.Init(filename, w, h, StreamFramerate, StreamBitrate); err != nil {
		return nil, fmt.Errorf("evalgraph: init stream %s: %w", filename, err)
	}

	c.encoders[filename] = enc
	c.encoderOrder = append(c.encoderOrder, filename)
	c.log().Info("evalgraph: stream opened", "file", filename, "width", w, "height", h)
	return enc, nil
}
