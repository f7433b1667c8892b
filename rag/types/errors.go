package types

import "errors"

// ErrConfiguration reports an invalid engine or fusion configuration, such as
// a ranked-list/weight cardinality mismatch.
var ErrConfiguration = errors.New("invalid configuration")

// ErrUpstreamUnavailable reports that a mandatory remote capability (the
// dense-search backend) stayed unreachable after its retry. The optional
// external reranker never surfaces this error; it degrades to disabled.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")
