// Package diag carries BIB-1 diagnostic codes across the gateway's
// internal package boundaries and translates back-end failures into them.
package diag

import "fmt"

// Set identifies which diagnostic-set space a raw code was reported in
// before translation to BIB-1.
type Set int

const (
	SetBib1 Set = iota
	SetSRW
	SetZOOM
)

// BIB-1 diagnostic codes used by this gateway (spec §6).
const (
	PresentOutOfRange       = 13
	ResultSetNoRSID         = 18
	NonDefaultSetNotAllowed = 22
	UnsupportedSearch       = 100
	CannotConnect           = 109
	TooManyDatabases        = 111
	UnsupportedAttributeType = 113
	UnsupportedUseAttribute  = 114
	UnsupportedRelation      = 117
	UnsupportedPosition      = 119
	UnsupportedTruncation    = 120
	UnsupportedAttributeSet  = 121
	UnsupportedCompleteness  = 122
	ResultSetDoesNotExist    = 128
	DatabaseDoesNotExist     = 235
	IllegalSortRelation      = 237
	UnsupportedRecordSyntax  = 238
	BadCredentials           = 1014
	ConfigError              = 1
)

// OID_Bib1 is the BIB-1 attribute-set object identifier (spec §6).
const OID_Bib1 = "1.2.840.10003.3.1"

// Error is the one error type the core hands across package boundaries.
// The dispatcher (internal/gateway) is the only place that turns it into
// reply diagnostic fields.
type Error struct {
	Code    int
	AddInfo string
	Set     Set
}

func (e *Error) Error() string {
	if e.AddInfo == "" {
		return fmt.Sprintf("diagnostic %d", e.Code)
	}
	return fmt.Sprintf("diagnostic %d: %s", e.Code, e.AddInfo)
}

// New builds a BIB-1 diagnostic error.
func New(code int, addInfo string) *Error {
	return &Error{Code: code, AddInfo: addInfo, Set: SetBib1}
}

// Newf builds a BIB-1 diagnostic error with a formatted AddInfo.
func Newf(code int, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// FromSRW builds an error carrying a raw SRW diagnostic-1 code, to be
// resolved to BIB-1 by Translate before it reaches a reply.
func FromSRW(code int, addInfo string) *Error {
	return &Error{Code: code, AddInfo: addInfo, Set: SetSRW}
}

// FromZOOM builds an error carrying a raw ZOOM-level failure. Connect
// failures should use FromZOOMConnect instead so they land on 109.
func FromZOOM(addInfo string) *Error {
	return &Error{Code: UnsupportedSearch, AddInfo: addInfo, Set: SetZOOM}
}

// FromZOOMConnect marks a connection failure, which always maps to 109
// regardless of what the ZOOM layer's message says (spec §4.1/§7).
func FromZOOMConnect(addInfo string) *Error {
	return &Error{Code: CannotConnect, AddInfo: addInfo, Set: SetZOOM}
}

// srwToBib1 is the fixed SRW-diagnostic-1 → BIB-1 crosswalk (spec §4.1,
// §7). Only the codes a real SRU back-end is likely to emit in response
// to the queries this gateway builds are enumerated; anything else falls
// back to UnsupportedSearch (see Translate).
var srwToBib1 = map[int]int{
	1:  ConfigError,             // general system error
	2:  UnsupportedSearch,       // system temporarily unavailable
	4:  UnsupportedAttributeSet, // unsupported operation
	10: UnsupportedSearch,       // query syntax error
	11: UnsupportedSearch,       // unsupported query type
	12: UnsupportedUseAttribute, // too many characters in term / unsupported index
	13: UnsupportedUseAttribute, // unsupported index
	16: UnsupportedRelation,     // unsupported relation
	19: UnsupportedRelation,     // unsupported relation modifier
	20: UnsupportedPosition,     // unsupported combination of relation/modifier
	28: UnsupportedTruncation,   // masking (truncation) not supported
	29: UnsupportedCompleteness, // anchoring not supported
	48: UnsupportedRecordSyntax,
	64: DatabaseDoesNotExist,
	66: DatabaseDoesNotExist,
	67: ResultSetDoesNotExist,
	70: ResultSetDoesNotExist,
	80: PresentOutOfRange,
}

// Translate resolves an Error's raw code to a final BIB-1 code, per the
// three back-end failure kinds in spec §7. Errors already in SetBib1
// pass through unchanged.
func Translate(err *Error) *Error {
	switch err.Set {
	case SetBib1:
		return err
	case SetSRW:
		code, ok := srwToBib1[err.Code]
		if !ok {
			code = UnsupportedSearch
		}
		return &Error{Code: code, AddInfo: err.AddInfo, Set: SetBib1}
	case SetZOOM:
		// FromZOOMConnect already set Code to CannotConnect; anything
		// else reported by the ZOOM layer maps to 100 with its message.
		if err.Code == CannotConnect {
			return &Error{Code: CannotConnect, AddInfo: err.AddInfo, Set: SetBib1}
		}
		return &Error{Code: UnsupportedSearch, AddInfo: err.AddInfo, Set: SetBib1}
	default:
		return &Error{Code: UnsupportedSearch, AddInfo: err.AddInfo, Set: SetBib1}
	}
}
