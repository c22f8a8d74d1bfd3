// Package twitter is the plain HTTP side of retrieval: bearer-token REST
// lookups (v2 tweets and users, v1.1 statuses and users) and the public
// embed endpoint used by the embedded-post widget.
//
// Responses are returned undecoded beyond generic JSON so the assembler can
// normalize every source the same way. Status codes are mapped onto the
// error taxonomy in package errors:
//
//	429            *errors.RateLimitError with the x-rate-limit-* window
//	404            errors.ErrNotFound
//	403 + code 63  errors.ErrNotFound (suspended author)
//	other non-200  errors.ErrAuthorization
//
// The embed endpoint never authenticates; a non-200 status, an HTML error
// page or an empty document are all reported as not found.
package twitter
