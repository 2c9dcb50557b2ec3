package gateway

import "github.com/indexbridge/z3950gateway/internal/diag"

// translate normalizes a *diag.Error returned by a back-end connector
// (SetSRW or SetZOOM) into the final BIB-1 code the reply carries (spec
// §7). Errors already produced by the core (SetBib1) pass through
// unchanged. nil stays nil so call sites can wrap every connector call
// uniformly.
func translate(err *diag.Error) *diag.Error {
	if err == nil {
		return nil
	}
	return diag.Translate(err)
}
