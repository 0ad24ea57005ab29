/*
Package errx provides structured errors with codes, types, details and
aggregation.

# Basic Usage

Create simple errors with the New function:

	err := errx.New("scope already closed", errx.TypeResolution)

	if errx.IsType(err, errx.TypeResolution) {
		// handle
	}

# Error Registry

Packages declare their failures once, under a prefix:

	var registry = errx.NewRegistry("EVENTX")

	var ErrAccessDenied = registry.Register("ACCESS_DENIED", errx.TypeAccess,
		http.StatusForbidden, "dispatcher is not allowed to perform this operation")

	err := registry.New(ErrAccessDenied).WithDetail("operation", "RegisterEvents")

Registered codes are matched with IsCode or errors.Is:

	if errx.IsCode(err, ErrAccessDenied) { ... }

# Aggregation

Several failures can be returned as one error. The aggregate unwraps to each
failure, so IsCode, IsType and errors.As see through it:

	err := registry.NewAggregate(ErrDispatchFailed, failures)
	for _, f := range err.Errors() {
		fmt.Println(errx.Print(f))
	}

NewAggregate returns nil when every entry is nil. Assign the result to an
error variable only after checking for nil.
*/
package errx
