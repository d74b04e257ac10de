package push

import "errors"

// ErrUnknownRequestType is returned when the router receives a request type
// outside its sealed union. It indicates a programming error.
var ErrUnknownRequestType = errors.New("unknown router request type")
