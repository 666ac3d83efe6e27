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


// The file provides the invocation endpoint that runs the function outside of Lambda.
// The path matches the one of the Lambda runtime interface emulator so the same clients work.
package invoke

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"reflect"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"

	"github.com/llm-d-incubation/batch-job-submitter/internal/apiserver/common"
	"github.com/llm-d-incubation/batch-job-submitter/internal/apiserver/middleware"
	"github.com/llm-d-incubation/batch-job-submitter/internal/util/logging"
)

const (
	InvokePath = "/2015-03-31/functions/function/invocations"

	maxEventSize = 6 << 20
)

// Function is the Lambda handler served by the endpoint.
type Function interface {
	Handle(ctx context.Context, event json.RawMessage) (events.APIGatewayProxyResponse, error)
}

// FaultBody is written when the function returns an error.
type FaultBody struct {
	ErrorMessage string `json:"errorMessage"`
	ErrorType    string `json:"errorType"`
}

type InvokeApiHandler struct {
	fn Function
}

func NewInvokeApiHandler(fn Function) *InvokeApiHandler {
	return &InvokeApiHandler{fn: fn}
}

func (c *InvokeApiHandler) GetRoutes() []common.Route {
	return []common.Route{
		{
			Method:      http.MethodPost,
			Pattern:     InvokePath,
			HandlerFunc: c.Invoke,
		},
	}
}

func (c *InvokeApiHandler) Invoke(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetRequestLogger(r)

	data, err := io.ReadAll(io.LimitReader(r.Body, maxEventSize+1))
	if err != nil {
		logger.Error(err, "Failed to read event")
		common.WriteJSON(r.Context(), w, http.StatusBadRequest, FaultBody{ErrorMessage: err.Error(), ErrorType: "RequestReadError"})
		return
	}
	if len(data) > maxEventSize {
		common.WriteJSON(r.Context(), w, http.StatusRequestEntityTooLarge, FaultBody{
			ErrorMessage: "event exceeds the maximum payload size",
			ErrorType:    "RequestTooLarge",
		})
		return
	}
	if len(data) == 0 {
		data = []byte("{}")
	}

	ctx := lambdacontext.NewContext(r.Context(), &lambdacontext.LambdaContext{
		AwsRequestID: middleware.GetRequestIDFromContext(r.Context()),
	})
	resp, err := c.fn.Handle(ctx, json.RawMessage(data))
	if err != nil {
		logger.Error(err, "Function invocation failed")
		common.WriteJSON(r.Context(), w, http.StatusInternalServerError, FaultBody{
			ErrorMessage: err.Error(),
			ErrorType:    errorType(err),
		})
		return
	}
	common.WriteJSON(r.Context(), w, http.StatusOK, resp)
}

func errorType(err error) string {
	t := reflect.TypeOf(err)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}
