package utils

import (
	"fmt"
)

// ResponseData is the JSON envelope of every REST response. Status is only
// used to pick the HTTP status code.
type ResponseData struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Results any    `json:"results,omitempty"`
}

// PanicIfNeeded panics with err so middleware.Recovery can turn it into a
// response. An optional message replaces gorm's "record not found".
func PanicIfNeeded(err any, message ...string) {
	if err == nil {
		return
	}
	if fmt.Sprintf("%s", err) == "record not found" && len(message) > 0 {
		panic(message[0])
	}
	panic(err)
}
