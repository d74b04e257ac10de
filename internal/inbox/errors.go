package inbox

import "errors"

// ErrUnknownRequestType is returned when the inbox receives a request type
// outside its sealed union. It indicates a programming error.
var ErrUnknownRequestType = errors.New("unknown inbox request type")
