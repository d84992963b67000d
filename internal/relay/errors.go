package relay

// The pipeline's error taxonomy. All of these surface only as FAILED relay
// log entries scoped to a single rule attempt; none propagate past
// ProcessEvent.

// ConfigurationError marks a broken relay configuration: an unsupported
// operator in a stored logic rule, or an unknown relay type.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string { return e.Err.Error() }
func (e *ConfigurationError) Unwrap() error { return e.Err }

// ResolutionError marks a failure to resolve dynamic parts of a relay
// attempt, such as an unresolved template placeholder.
type ResolutionError struct {
	Err error
}

func (e *ResolutionError) Error() string { return e.Err.Error() }
func (e *ResolutionError) Unwrap() error { return e.Err }

// EnrichmentError marks a failed enrichment fetch.
type EnrichmentError struct {
	Err error
}

func (e *EnrichmentError) Error() string { return "enrichment failed: " + e.Err.Error() }
func (e *EnrichmentError) Unwrap() error { return e.Err }

// DispatchError marks a transport failure after the dispatch client's own
// retries were exhausted.
type DispatchError struct {
	Err error
}

func (e *DispatchError) Error() string { return e.Err.Error() }
func (e *DispatchError) Unwrap() error { return e.Err }
