package error

// GenericError is recovered by the REST recovery middleware and mapped to a
// status code and error code.
type GenericError interface {
	ErrCode() string
	Error() string
	StatusCode() int
}
