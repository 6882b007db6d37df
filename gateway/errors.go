package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// CircuitBreakerCode is the code the backend sends with a 429 once refresh
// attempts are blocked.
const CircuitBreakerCode = "CIRCUIT_BREAKER_OPEN"

// GenericErrorMessage is shown when an error carries nothing readable.
const GenericErrorMessage = "Something went wrong. Please try again."

var (
	// ErrUnauthorized matches any *Error with status 401.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrCircuitBreakerOpen matches a 429 carrying CircuitBreakerCode.
	ErrCircuitBreakerOpen = errors.New("circuit breaker open")
	// ErrSessionExpired wraps the failure of a refresh attempt. Queued calls
	// and the call that started the refresh all receive it.
	ErrSessionExpired = errors.New("session expired")
	// ErrTransport wraps failures where no response was received.
	ErrTransport = errors.New("transport failure")
)

// Error is the normalized form of every failed call. Status-carrying errors
// keep the raw body so validation payloads reach the caller verbatim.
type Error struct {
	StatusCode int
	Message    string
	Detail     string
	Reason     string
	Code       string
	Errors     map[string][]string
	Body       []byte
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.StatusCode == 0 {
		return e.Text()
	}
	return fmt.Sprintf("%d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Text())
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is lets callers test status classes with errors.Is.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrCircuitBreakerOpen:
		return e.StatusCode == http.StatusTooManyRequests && e.Code == CircuitBreakerCode
	}
	return false
}

// Text picks the most specific human-readable message: message, detail,
// the first field error, the backend's error string, then the wrapped cause.
func (e *Error) Text() string {
	if e == nil {
		return ""
	}
	for _, s := range []string{e.Message, e.Detail, firstFieldError(e.Errors), e.Reason} {
		if s != "" {
			return s
		}
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return GenericErrorMessage
}

// ErrorMessage returns the message to show a user for err.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Text()
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return GenericErrorMessage
}

// NewResponseError builds an *Error from a non-2xx response.
func NewResponseError(resp *Response) *Error {
	if resp == nil {
		return &Error{Message: GenericErrorMessage}
	}
	e := &Error{
		StatusCode: resp.StatusCode,
		Body:       resp.Body,
	}
	if !gjson.ValidBytes(resp.Body) {
		return e
	}
	root := gjson.ParseBytes(resp.Body)
	if !root.IsObject() {
		return e
	}

	e.Message = stringField(root, "message")
	e.Detail = stringField(root, "detail")
	e.Reason = stringField(root, "error")
	e.Code = stringField(root, "code")

	if errs := root.Get("errors"); errs.IsObject() {
		e.Errors = fieldErrors(errs)
	} else if e.Message == "" && e.Detail == "" && e.Reason == "" {
		// Django REST framework reports validation failures as top-level
		// field arrays.
		e.Errors = fieldErrors(root)
	}
	return e
}

func transportError(err error) *Error {
	return &Error{
		Message: err.Error(),
		Err:     fmt.Errorf("%w: %w", ErrTransport, err),
	}
}

func stringField(root gjson.Result, key string) string {
	v := root.Get(key)
	if v.Type != gjson.String {
		return ""
	}
	return v.String()
}

func fieldErrors(obj gjson.Result) map[string][]string {
	out := make(map[string][]string)
	obj.ForEach(func(key, value gjson.Result) bool {
		switch {
		case value.IsArray():
			var msgs []string
			for _, item := range value.Array() {
				if item.Type == gjson.String {
					msgs = append(msgs, item.String())
				}
			}
			if len(msgs) > 0 {
				out[key.String()] = msgs
			}
		case value.Type == gjson.String:
			out[key.String()] = []string{value.String()}
		}
		return true
	})
	if len(out) == 0 {
		return nil
	}
	return out
}

// firstFieldError is deterministic: non_field_errors first, then fields in
// lexical order.
func firstFieldError(errs map[string][]string) string {
	if len(errs) == 0 {
		return ""
	}
	if msgs := errs["non_field_errors"]; len(msgs) > 0 {
		return msgs[0]
	}
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if msgs := errs[k]; len(msgs) > 0 {
			return strings.TrimSpace(msgs[0])
		}
	}
	return ""
}

// asError normalizes err to an *Error, keeping an existing one.
func asError(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &Error{Message: err.Error(), Err: err}
}
