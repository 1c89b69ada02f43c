package present

import "errors"

// Fanout presents every trigger to each of its sinks in order.
// A failing sink does not prevent the others from presenting.
type Fanout []Sink

// Present implements Sink. The returned error joins every sink failure.
func (f Fanout) Present(t Trigger) error {
	var errs []error
	for _, s := range f {
		if err := s.Present(t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Dismiss implements Sink.
func (f Fanout) Dismiss() {
	for _, s := range f {
		s.Dismiss()
	}
}
