package quizdto

const (
	CodeIllegalState  = "illegal_state"
	CodeUnknownOption = "unknown_option"
	CodeBadRequest    = "bad_request"
	CodeStore         = "store_error"
	CodeInternal      = "internal"
)

type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "quiz error"
}
