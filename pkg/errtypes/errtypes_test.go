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

package errtypes

import (
	"testing"

	rpc "github.com/cs3org/go-cs3apis/cs3/rpc/v1beta1"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestNewErrtypeFromStatus(t *testing.T) {
	tests := []struct {
		code  rpc.Code
		check func(error) bool
	}{
		{rpc.Code_CODE_NOT_FOUND, IsNotFoundErr},
		{rpc.Code_CODE_ALREADY_EXISTS, IsAlreadyExistsErr},
		{rpc.Code_CODE_UNAUTHENTICATED, IsUnauthenticatedErr},
	}
	for _, tt := range tests {
		err := NewErrtypeFromStatus(&rpc.Status{Code: tt.code, Message: "msg"})
		assert.True(t, tt.check(err), tt.code.String())
	}

	assert.NoError(t, NewErrtypeFromStatus(&rpc.Status{Code: rpc.Code_CODE_OK}))
	assert.IsType(t, RemoteError(""), NewErrtypeFromStatus(&rpc.Status{Code: rpc.Code_CODE_INTERNAL}))
	assert.IsType(t, RemoteError(""), NewErrtypeFromStatus(nil))
}

func TestWrappedErrorsKeepTheirType(t *testing.T) {
	err := errors.Wrap(ShareNotFound("42"), "share: error removing")
	assert.True(t, IsNotFoundErr(err))
	assert.False(t, IsLockedErr(err))

	assert.True(t, IsFeatureDisabledErr(errors.Wrap(OCMDisabled("marie@cern.ch"), "share")))
	assert.True(t, IsBadRequestErr(InvalidEndpoint("")))
	assert.True(t, IsLockedErr(Locked("einstein")))
	assert.Equal(t, "error: file is locked by einstein", Locked("einstein").Error())
}

func TestJoin(t *testing.T) {
	assert.NoError(t, Join())
	assert.NoError(t, Join(nil, nil))

	err := Join(NotFound("a"), nil, Transport("b"))
	assert.EqualError(t, err, "error: not found: a, error: transport: b")
}
