package infoposts

// Error is an application-layer error that can be mapped to an HTTP response.
type Error struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

func errPostNotFound() *Error {
	return &Error{Status: 404, Code: "INFO_POST_NOT_FOUND", Message: "info post not found"}
}

func errCategoryNotFound() *Error {
	return &Error{Status: 404, Code: "CATEGORY_NOT_FOUND", Message: "category not found"}
}

func errAuthorNotProvisioned() *Error {
	return &Error{Status: 401, Code: "USER_NOT_PROVISIONED", Message: "user is not provisioned"}
}
