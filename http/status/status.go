// Package status is a thin collaborator: the engine never synthesizes a status line on the
// application's behalf, except the fixed 100-continue line. This package only offers enough
// of a lookup table for Response's default status text.
package status

type Code int

const (
	Continue           Code = 100
	OK                 Code = 200
	NoContent          Code = 204
	BadRequest         Code = 400
	NotFound           Code = 404
	RequestEntityTooLarge Code = 413
	InternalServerError Code = 500
)

var text = map[Code]string{
	Continue:              "Continue",
	OK:                    "OK",
	NoContent:             "No Content",
	BadRequest:            "Bad Request",
	NotFound:              "Not Found",
	RequestEntityTooLarge: "Request Entity Too Large",
	InternalServerError:   "Internal Server Error",
}

// Text returns the standard reason phrase for code, or a generic fallback for anything not
// in the small built-in table above.
func Text(code Code) string {
	if s, ok := text[code]; ok {
		return s
	}

	return "Unknown Status Code"
}
