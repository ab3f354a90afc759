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

package pool

import (
	"testing"

	"github.com/cs3org/cs3api4lab/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetGatewayServiceClientMemoized(t *testing.T) {
	a, err := GetGatewayServiceClient(Endpoint("localhost:19000"))
	require.NoError(t, err)
	b, err := GetGatewayServiceClient(Endpoint("localhost:19000"))
	require.NoError(t, err)
	assert.Same(t, a, b)

	authn := auth.NewStatic("token")
	c, err := GetGatewayServiceClient(Endpoint("localhost:19000"), WithAuthenticator(authn))
	require.NoError(t, err)
	assert.NotSame(t, a, c)
}

func TestNewOptions(t *testing.T) {
	o := newOptions(Endpoint("gw:9142"), Insecure(false), SkipVerify(true), MaxCallRecvMsgSize(10))
	assert.Equal(t, "gw:9142", o.Endpoint)
	assert.False(t, o.Insecure)
	assert.True(t, o.SkipVerify)
	assert.Equal(t, 10, o.MaxCallRecvMsgSize)
}
