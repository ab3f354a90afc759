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

package gateway

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/cs3org/cs3api4lab/pkg/appctx"
	"github.com/cs3org/cs3api4lab/pkg/auth"
	"github.com/cs3org/cs3api4lab/pkg/errtypes"
	gateway "github.com/cs3org/go-cs3apis/cs3/gateway/v1beta1"
	provider "github.com/cs3org/go-cs3apis/cs3/storage/provider/v1beta1"
	types "github.com/cs3org/go-cs3apis/cs3/types/v1beta1"
	"github.com/pkg/errors"
)

const (
	// TransferProtocol is the data transfer protocol selected among the offered ones.
	TransferProtocol = "simple"
	// TransferTokenHeader carries the transfer token on the data request.
	TransferTokenHeader = "X-Reva-Transfer"
)

// InitiateDownload asks the gateway for a download endpoint of ref.
func (c *Client) InitiateDownload(ctx context.Context, ref *provider.Reference) (*gateway.FileDownloadProtocol, error) {
	ctx, _, err := c.authCtx(ctx)
	if err != nil {
		return nil, err
	}

	res, err := c.gw.InitiateFileDownload(ctx, &provider.InitiateFileDownloadRequest{Ref: ref})
	if err := checkRPC("initiate download", res, err); err != nil {
		return nil, err
	}
	for _, p := range res.Protocols {
		if p.Protocol == TransferProtocol {
			return p, nil
		}
	}
	return nil, errtypes.RemoteError("initiate download: protocol " + TransferProtocol + " not offered")
}

// InitiateUpload asks the gateway for an upload endpoint of ref of the given size.
func (c *Client) InitiateUpload(ctx context.Context, ref *provider.Reference, size int64) (*gateway.FileUploadProtocol, error) {
	ctx, _, err := c.authCtx(ctx)
	if err != nil {
		return nil, err
	}

	res, err := c.gw.InitiateFileUpload(ctx, &provider.InitiateFileUploadRequest{
		Ref: ref,
		Opaque: &types.Opaque{
			Map: map[string]*types.OpaqueEntry{
				"Upload-Length": {
					Decoder: "plain",
					Value:   []byte(strconv.FormatInt(size, 10)),
				},
			},
		},
	})
	if err := checkRPC("initiate upload", res, err); err != nil {
		return nil, err
	}
	for _, p := range res.Protocols {
		if p.Protocol == TransferProtocol {
			return p, nil
		}
	}
	return nil, errtypes.RemoteError("initiate upload: protocol " + TransferProtocol + " not offered")
}

// Download streams the content of ref into w, reading the body chunk by chunk.
func (c *Client) Download(ctx context.Context, ref *provider.Reference, w io.Writer) (int64, error) {
	p, err := c.InitiateDownload(ctx, ref)
	if err != nil {
		return 0, err
	}
	_, tkn, err := c.authCtx(ctx)
	if err != nil {
		return 0, err
	}

	req, err := c.newTransferRequest(ctx, http.MethodGet, p.DownloadEndpoint, tkn, p.Token, nil)
	if err != nil {
		return 0, err
	}
	res, err := c.doTransfer(req)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()

	var n int64
	buf := make([]byte, c.chunkSize)
	for {
		read, rerr := io.ReadFull(res.Body, buf)
		if read > 0 {
			if _, werr := w.Write(buf[:read]); werr != nil {
				return n, errors.Wrap(werr, "download: error writing chunk")
			}
			n += int64(read)
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			break
		}
		if rerr != nil {
			return n, errtypes.Transport("download: " + rerr.Error())
		}
	}
	appctx.GetLogger(ctx).Debug().Int64("bytes", n).Str("endpoint", p.DownloadEndpoint).Msg("gateway: downloaded")
	return n, nil
}

// ReadFile returns the full content of ref.
func (c *Client) ReadFile(ctx context.Context, ref *provider.Reference) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := c.Download(ctx, ref, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Upload replaces the content of ref with the size bytes read from r in a single request.
func (c *Client) Upload(ctx context.Context, ref *provider.Reference, r io.Reader, size int64) error {
	defer c.purgeStatCache()

	p, err := c.InitiateUpload(ctx, ref, size)
	if err != nil {
		return err
	}
	_, tkn, err := c.authCtx(ctx)
	if err != nil {
		return err
	}

	req, err := c.newTransferRequest(ctx, http.MethodPut, p.UploadEndpoint, tkn, p.Token, r)
	if err != nil {
		return err
	}
	req.ContentLength = size
	req.Header.Set("Upload-Length", strconv.FormatInt(size, 10))

	res, err := c.doTransfer(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	appctx.GetLogger(ctx).Debug().Int64("bytes", size).Str("endpoint", p.UploadEndpoint).Msg("gateway: uploaded")
	return nil
}

// WriteFile replaces the content of ref with data.
func (c *Client) WriteFile(ctx context.Context, ref *provider.Reference, data []byte) error {
	return c.Upload(ctx, ref, bytes.NewReader(data), int64(len(data)))
}

func (c *Client) newTransferRequest(ctx context.Context, method, endpoint, accessToken, transferToken string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create the HTTP request")
	}
	req.Header.Set(auth.TokenHeader, accessToken)
	req.Header.Set(TransferTokenHeader, transferToken)
	return req, nil
}

func (c *Client) doTransfer(req *http.Request) (*http.Response, error) {
	res, err := c.http.Do(req)
	if err != nil {
		return nil, errtypes.Transport(err.Error())
	}
	switch {
	case res.StatusCode == http.StatusNotFound:
		res.Body.Close()
		return nil, errtypes.NotFound(req.URL.Path)
	case res.StatusCode < 200 || res.StatusCode > 299:
		res.Body.Close()
		return nil, errtypes.RemoteError("performing the HTTP request failed: " + res.Status)
	}
	return res, nil
}
