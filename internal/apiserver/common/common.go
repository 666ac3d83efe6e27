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


// The file defines the route abstraction shared by the api handlers and the response helpers.
package common

import (
	"context"
	"encoding/json"
	"net/http"

	"k8s.io/klog/v2"
)

type Route struct {
	Method      string
	Pattern     string
	HandlerFunc http.HandlerFunc
}

type ApiHandler interface {
	GetRoutes() []Route
}

// RegisterHandler adds every route of h to mux. Requests with another method get 405.
func RegisterHandler(mux *http.ServeMux, h ApiHandler) {
	for _, route := range h.GetRoutes() {
		mux.HandleFunc(route.Method+" "+route.Pattern, route.HandlerFunc)
	}
}

func WriteJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		klog.FromContext(ctx).Error(err, "Failed to marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		klog.FromContext(ctx).Error(err, "Failed to write response")
	}
}
