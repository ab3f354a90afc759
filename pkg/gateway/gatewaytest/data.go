// Copyright 2018-2024 CERN
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// In applying this license, CERN does not waive the privileges and immunities
// granted to it by virtue of its status as an Intergovernmental Organization
// or submit itself to any jurisdiction.

package gatewaytest

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
)

const transferHeader = "X-Reva-Transfer"

func (g *Gateway) dataRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/data/{token}", g.download)
	r.Put("/data/{token}", g.upload)
	return r
}

// claim returns the transfer addressed by the request, checking both tokens.
func (g *Gateway) claim(r *http.Request, upload bool) (transfer, int) {
	tkn := chi.URLParam(r, "token")
	if r.Header.Get(transferHeader) != tkn || r.Header.Get(tokenHeader) == "" {
		return transfer{}, http.StatusUnauthorized
	}
	t, ok := g.transfers[tkn]
	if !ok || t.upload != upload {
		return transfer{}, http.StatusNotFound
	}
	delete(g.transfers, tkn)
	return t, 0
}

func (g *Gateway) download(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	t, code := g.claim(r, false)
	var content []byte
	if code == 0 {
		n, ok := g.nodes[t.path]
		if !ok {
			code = http.StatusNotFound
		} else {
			content = append([]byte(nil), n.content...)
		}
	}
	g.mu.Unlock()

	if code != 0 {
		w.WriteHeader(code)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

func (g *Gateway) upload(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	t, code := g.claim(r, true)
	if code != 0 {
		w.WriteHeader(code)
		return
	}
	g.writeFile(t.path, t.user, body)
	w.WriteHeader(http.StatusOK)
}
