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


package handler

import (
	"errors"

	"github.com/aws/smithy-go"
)

func isParamValidation(err error) bool {
	var invalidParams smithy.InvalidParamsError
	if errors.As(err, &invalidParams) {
		return true
	}
	var invalidParamsPtr *smithy.InvalidParamsError
	return errors.As(err, &invalidParamsPtr)
}
