// Copyright 2022-2024 The Parca Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package template

import (
	// Enable go:embed.
	_ "embed"
	"html/template"

	"github.com/prometheus/common/model"
)

//go:embed statuspage.html
var StatusPageTemplateBytes []byte

var StatusPageTemplate = template.Must(template.New("statuspage").Parse(string(StatusPageTemplateBytes)))

type Endpoint struct {
	Method      string
	Path        string
	Description string
}

type StatusPage struct {
	Endpoints          []Endpoint
	TimeIntervalMicros int64
	HeapIntervalBytes  int64
	ExternalLabels     model.LabelSet
	Config             string
}
