package upload

import "io"

// LimitedReader counts bytes read from the underlying reader and fails once
// the count passes the limit. Unlike io.LimitReader it reports the overflow
// instead of silently truncating.
type LimitedReader struct {
	r       io.Reader
	limit   int64
	read    int64
	message string
}

// NewLimitedReader wraps r with limit. A limit <= 0 disables the check.
func NewLimitedReader(r io.Reader, limit int64) *LimitedReader {
	return &LimitedReader{r: r, limit: limit}
}

func (l *LimitedReader) Read(p []byte) (int, error) {
	if l.limit > 0 {
		// Read one byte past the limit so an exactly-sized body still succeeds.
		remaining := l.limit - l.read + 1
		if remaining <= 0 {
			return 0, l.overflow()
		}
		if int64(len(p)) > remaining {
			p = p[:remaining]
		}
	}
	n, err := l.r.Read(p)
	l.read += int64(n)
	if l.limit > 0 && l.read > l.limit {
		l.read = l.limit + 1
		return n, l.overflow()
	}
	return n, err
}

// BytesRead returns the number of bytes consumed so far.
func (l *LimitedReader) BytesRead() int64 {
	return l.read
}

func (l *LimitedReader) overflow() error {
	message := l.message
	if message == "" {
		message = ErrTooLarge.Error()
	}
	return &overflowError{message: message}
}

type overflowError struct {
	message string
}

func (e *overflowError) Error() string { return e.message }

func (e *overflowError) Unwrap() []error {
	return []error{ErrTooLarge, &RejectionError{Reason: ReasonSize, Message: e.message}}
}
