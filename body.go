package worker

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// Body is a message payload: empty, a fixed byte sequence, or a lazy
// finite sequence of byte chunks. A streaming body can be consumed at most
// once; a second consumption attempt fails with ErrBodyConsumed. A nil
// *Body is the empty body.
type Body struct {
	mu       sync.Mutex
	consumed bool

	fixed []byte
	// pull returns the next chunk, or io.EOF when the stream ends.
	// Non-nil pull marks a streaming body.
	pull func() ([]byte, error)
}

// NewBody returns a fixed body over b.
func NewBody(b []byte) *Body {
	return &Body{fixed: b}
}

// NewTextBody returns a fixed body over s.
func NewTextBody(s string) *Body {
	return &Body{fixed: []byte(s)}
}

// NewJSONBody marshals v into a fixed body.
func NewJSONBody(v any) (*Body, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding body: %w", err)
	}
	return &Body{fixed: data}, nil
}

// NewStreamBody returns a streaming body. pull is called until it returns
// io.EOF; chunks must not be retained by the producer after return.
func NewStreamBody(pull func() ([]byte, error)) *Body {
	return &Body{pull: pull}
}

// NewReaderBody returns a streaming body that draws chunks from r.
func NewReaderBody(r io.Reader) *Body {
	buf := make([]byte, 32*1024)
	return &Body{pull: func() ([]byte, error) {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			return chunk, nil
		}
		if err == nil {
			err = io.EOF
		}
		return nil, err
	}}
}

// IsStream reports whether the body is backed by a lazy chunk sequence.
func (b *Body) IsStream() bool {
	return b != nil && b.pull != nil
}

// consumeStream marks the body consumed, failing on the second attempt.
func (b *Body) consumeStream() (func() ([]byte, error), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.consumed {
		return nil, ErrBodyConsumed
	}
	b.consumed = true
	return b.pull, nil
}

// Chunks returns the body as a pull sequence: successive calls return
// chunks until io.EOF. Consuming a streaming body twice fails with
// ErrBodyConsumed.
func (b *Body) Chunks() (func() ([]byte, error), error) {
	if b == nil {
		return eofPull, nil
	}
	if b.pull == nil {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.consumed {
			return nil, ErrBodyConsumed
		}
		b.consumed = true
		sent := false
		data := b.fixed
		return func() ([]byte, error) {
			if sent || len(data) == 0 {
				return nil, io.EOF
			}
			sent = true
			return data, nil
		}, nil
	}
	return b.consumeStream()
}

func eofPull() ([]byte, error) { return nil, io.EOF }

// Bytes materializes the whole body. For streaming bodies this drains the
// stream and therefore consumes it.
func (b *Body) Bytes() ([]byte, error) {
	if b == nil {
		return nil, nil
	}
	if b.pull == nil {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.consumed {
			return nil, ErrBodyConsumed
		}
		b.consumed = true
		return b.fixed, nil
	}
	pull, err := b.consumeStream()
	if err != nil {
		return nil, err
	}
	var out []byte
	for {
		chunk, err := pull()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
	}
}

// Text materializes the body as a string.
func (b *Body) Text() (string, error) {
	data, err := b.Bytes()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// JSON materializes the body and decodes it into v. Decode failures carry
// the target shape and payload size.
func (b *Body) JSON(v any) error {
	data, err := b.Bytes()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &DeserializationError{Shape: fmt.Sprintf("%T", v), Size: len(data), Err: err}
	}
	return nil
}
