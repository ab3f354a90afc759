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

// Package errtypes contains definitions for the errors surfaced by the adapter.
// It would have been nice to call this package errors, but that clashes
// with github.com/pkg/errors.
package errtypes

import (
	rpc "github.com/cs3org/go-cs3apis/cs3/rpc/v1beta1"
	"github.com/pkg/errors"
)

// NotFound is the error to use when a resource, share or provider is not found.
type NotFound string

func (e NotFound) Error() string { return "error: not found: " + string(e) }

// IsNotFound implements the IsNotFound interface.
func (e NotFound) IsNotFound() {}

// ResourceNotFound is returned when the target of a share vanished.
type ResourceNotFound string

func (e ResourceNotFound) Error() string { return "error: resource not found: " + string(e) }

// IsNotFound implements the IsNotFound interface.
func (e ResourceNotFound) IsNotFound() {}

// ShareNotFound is returned when operating on a share that does not exist.
type ShareNotFound string

func (e ShareNotFound) Error() string { return "error: share not found: " + string(e) }

// IsNotFound implements the IsNotFound interface.
func (e ShareNotFound) IsNotFound() {}

// ProviderNotFound is returned when a mesh provider lookup by domain misses.
type ProviderNotFound string

func (e ProviderNotFound) Error() string { return "error: provider not found: " + string(e) }

// IsNotFound implements the IsNotFound interface.
func (e ProviderNotFound) IsNotFound() {}

// AlreadyExists is the error to use when a resource or grant already exists.
type AlreadyExists string

func (e AlreadyExists) Error() string { return "error: already exists: " + string(e) }

// IsAlreadyExists implements the IsAlreadyExists interface.
func (e AlreadyExists) IsAlreadyExists() {}

// ShareAlreadyExists is returned for a duplicate grant.
type ShareAlreadyExists string

func (e ShareAlreadyExists) Error() string { return "error: share already exists: " + string(e) }

// IsAlreadyExists implements the IsAlreadyExists interface.
func (e ShareAlreadyExists) IsAlreadyExists() {}

// Locked is returned when a write is blocked by an active foreign lock.
type Locked string

func (e Locked) Error() string { return "error: file is locked by " + string(e) }

// IsLocked implements the IsLocked interface.
func (e Locked) IsLocked() {}

// FeatureDisabled is returned when a feature is switched off in the configuration.
type FeatureDisabled string

func (e FeatureDisabled) Error() string { return "error: feature disabled: " + string(e) }

// IsFeatureDisabled implements the IsFeatureDisabled interface.
func (e FeatureDisabled) IsFeatureDisabled() {}

// OCMDisabled is returned when a share needs OCM but OCM is turned off.
type OCMDisabled string

func (e OCMDisabled) Error() string { return "error: ocm is disabled: " + string(e) }

// IsFeatureDisabled implements the IsFeatureDisabled interface.
func (e OCMDisabled) IsFeatureDisabled() {}

// BadRequest is the error to use for invalid roles, grantee types, fields or states.
type BadRequest string

func (e BadRequest) Error() string { return "error: bad request: " + string(e) }

// IsBadRequest implements the IsBadRequest interface.
func (e BadRequest) IsBadRequest() {}

// InvalidEndpoint is returned when an id reference has no usable endpoint.
type InvalidEndpoint string

func (e InvalidEndpoint) Error() string { return "error: invalid endpoint: " + string(e) }

// IsBadRequest implements the IsBadRequest interface.
func (e InvalidEndpoint) IsBadRequest() {}

// RemoteError wraps any other non-OK status returned by the gateway.
type RemoteError string

func (e RemoteError) Error() string { return "error: remote: " + string(e) }

// IsRemoteError implements the IsRemoteError interface.
func (e RemoteError) IsRemoteError() {}

// Transport is the error to use for network failures talking to the gateway
// or to a data transfer endpoint.
type Transport string

func (e Transport) Error() string { return "error: transport: " + string(e) }

// IsTransport implements the IsTransport interface.
func (e Transport) IsTransport() {}

// Unauthenticated is returned when the gateway rejects the credentials.
type Unauthenticated string

func (e Unauthenticated) Error() string { return "error: unauthenticated: " + string(e) }

// IsUnauthenticated implements the IsUnauthenticated interface.
func (e Unauthenticated) IsUnauthenticated() {}

// IsNotFound is the interface to implement
// to specify that a resource is not found.
type IsNotFound interface {
	IsNotFound()
}

// IsAlreadyExists is the interface to implement
// to specify that a resource already exists.
type IsAlreadyExists interface {
	IsAlreadyExists()
}

// IsLocked is the interface to implement
// to specify that a resource is locked by someone else.
type IsLocked interface {
	IsLocked()
}

// IsFeatureDisabled is the interface to implement
// to specify that a feature is turned off.
type IsFeatureDisabled interface {
	IsFeatureDisabled()
}

// IsBadRequest is the interface to implement
// to specify that the caller passed invalid input.
type IsBadRequest interface {
	IsBadRequest()
}

// IsRemoteError is the interface to implement
// to specify a generic gateway failure.
type IsRemoteError interface {
	IsRemoteError()
}

// IsTransport is the interface to implement
// to specify a network level failure.
type IsTransport interface {
	IsTransport()
}

// IsUnauthenticated is the interface to implement
// to specify that the credentials were rejected.
type IsUnauthenticated interface {
	IsUnauthenticated()
}

// IsNotFoundErr walks the error chain looking for an IsNotFound error.
func IsNotFoundErr(err error) bool {
	var e IsNotFound
	return errors.As(err, &e)
}

// IsAlreadyExistsErr walks the error chain looking for an IsAlreadyExists error.
func IsAlreadyExistsErr(err error) bool {
	var e IsAlreadyExists
	return errors.As(err, &e)
}

// IsLockedErr walks the error chain looking for an IsLocked error.
func IsLockedErr(err error) bool {
	var e IsLocked
	return errors.As(err, &e)
}

// IsFeatureDisabledErr walks the error chain looking for an IsFeatureDisabled error.
func IsFeatureDisabledErr(err error) bool {
	var e IsFeatureDisabled
	return errors.As(err, &e)
}

// IsBadRequestErr walks the error chain looking for an IsBadRequest error.
func IsBadRequestErr(err error) bool {
	var e IsBadRequest
	return errors.As(err, &e)
}

// IsTransportErr walks the error chain looking for an IsTransport error.
func IsTransportErr(err error) bool {
	var e IsTransport
	return errors.As(err, &e)
}

// IsUnauthenticatedErr walks the error chain looking for an IsUnauthenticated error.
func IsUnauthenticatedErr(err error) bool {
	var e IsUnauthenticated
	return errors.As(err, &e)
}

// NewErrtypeFromStatus maps a CS3 status to the matching error type.
// An OK status yields nil.
func NewErrtypeFromStatus(status *rpc.Status) error {
	if status == nil {
		return RemoteError("missing status")
	}
	switch status.Code {
	case rpc.Code_CODE_OK:
		return nil
	case rpc.Code_CODE_NOT_FOUND:
		return NotFound(status.Message)
	case rpc.Code_CODE_ALREADY_EXISTS:
		return AlreadyExists(status.Message)
	case rpc.Code_CODE_UNAUTHENTICATED:
		return Unauthenticated(status.Message)
	default:
		return RemoteError(status.Message)
	}
}
