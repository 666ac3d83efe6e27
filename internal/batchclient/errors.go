/*
Copyright 2026 The llm-d Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/


package batchclient

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

// ServiceError is a structured rejection reported by the batch service itself,
// as opposed to a client-side validation or transport failure.
type ServiceError struct {
	Code    string
	Message string
	Fault   smithy.ErrorFault
	Err     error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// IsServiceError reports whether err carries a *ServiceError and returns it.
func IsServiceError(err error) (*ServiceError, bool) {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr, true
	}
	return nil, false
}

func asServiceError(err error) (*ServiceError, bool) {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return nil, false
	}
	return &ServiceError{
		Code:    apiErr.ErrorCode(),
		Message: apiErr.ErrorMessage(),
		Fault:   apiErr.ErrorFault(),
		Err:     err,
	}, true
}
