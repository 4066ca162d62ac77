package services

import "fmt"

// Machine-readable error codes surfaced in the API error envelope.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeConfig       = "CONFIG_ERROR"
	CodeAgent        = "DATA_AGENT_ERROR"
	CodeStore        = "STORE_ERROR"
	CodeRAG          = "RAG_ERROR"
	CodeInternal     = "INTERNAL_SERVER_ERROR"
)

// ServiceError is the domain error carried from services to handlers. It
// pins the HTTP status so handlers only translate, never decide.
type ServiceError struct {
	Code       string
	Message    string
	Details    map[string]string
	HTTPStatus int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Err }

func validationError(message string) *ServiceError {
	return &ServiceError{Code: CodeValidation, Message: message, HTTPStatus: 400}
}

func unauthorizedError(message string) *ServiceError {
	return &ServiceError{Code: CodeUnauthorized, Message: message, HTTPStatus: 401}
}

func configError(message string) *ServiceError {
	return &ServiceError{Code: CodeConfig, Message: message, HTTPStatus: 500}
}

func agentError(message string, err error) *ServiceError {
	return &ServiceError{Code: CodeAgent, Message: message, HTTPStatus: 500, Err: err}
}

func storeError(message string, err error) *ServiceError {
	return &ServiceError{Code: CodeStore, Message: message, HTTPStatus: 500, Err: err}
}

func ragError(message string, err error) *ServiceError {
	return &ServiceError{Code: CodeRAG, Message: message, HTTPStatus: 500, Err: err}
}

func upstreamError(code, message string, status int) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status}
}
