// Package rules provides the small combinator set the intent validators
// are built from. Checks compose left to right and the first failure
// wins; later steps never run once a step has failed.
package rules

// Check returns nil when the condition holds and the failure error
// otherwise. It is the leaf of every validation chain.
func Check(condition bool, failure error) error {
	if condition {
		return nil
	}
	return failure
}

// Sequence runs the checks in argument order and returns the first
// failure, or nil when every check passes.
func Sequence(checks ...func() error) error {
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

// AndThen chains a fallible step onto a prior result. When err is
// non-nil the step is skipped and the zero W is returned with err
// unchanged; otherwise next is applied to the value.
func AndThen[V, W any](v V, err error, next func(V) (W, error)) (W, error) {
	if err != nil {
		var zero W
		return zero, err
	}
	return next(v)
}

// Map transforms a prior result with an infallible function. When err
// is non-nil the function is skipped and the zero W is returned with
// err unchanged.
func Map[V, W any](v V, err error, fn func(V) W) (W, error) {
	if err != nil {
		var zero W
		return zero, err
	}
	return fn(v), nil
}
