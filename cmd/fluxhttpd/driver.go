// Copyright 2025 The packetd Authors
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

package main

import (
	"context"
	"strconv"

	"github.com/packetd/fluxhttp/driver"
	"github.com/packetd/fluxhttp/piece"
)

// echoDriver is a minimal driver.ServerDriver that reports the request it
// received and discards the body. It exists so this binary answers real
// traffic out of the box; production deployments are expected to supply
// their own driver.ServerDriver.
type echoDriver struct{}

func (echoDriver) Handle(ctx context.Context, req driver.Request, body driver.Body, responder driver.Responder) error {
	var bodyLen int
	for {
		p, err := body.NextChunk(ctx)
		if err != nil {
			return err
		}
		if p.IsEmpty() {
			break
		}
		bodyLen += p.Len()
		p.Release()
	}

	payload := []byte(req.Method + " " + req.Path + "\n")
	headers := []driver.Header{
		{Name: "Content-Type", Value: "text/plain; charset=utf-8"},
		{Name: "Content-Length", Value: strconv.Itoa(len(payload))},
		{Name: "X-Request-Body-Bytes", Value: strconv.Itoa(bodyLen)},
	}
	if err := responder.WriteFinalResponse(ctx, 200, headers); err != nil {
		return err
	}
	if err := responder.WriteChunk(ctx, piece.FromHeap(payload)); err != nil {
		return err
	}
	return responder.FinishBody(ctx, nil)
}
