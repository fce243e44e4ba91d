package relay

// TransportError reports that the upstream connection failed mid-stream.
// It is fatal to the stream it occurred on.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "upstream transport failed: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
