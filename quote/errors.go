// Copyright 2022
// SPDX-License-Identifier: Apache-2.0
//
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

package quote

import "errors"

var (
	// ErrInvalidRequest indicates a malformed symbol or request URL.
	ErrInvalidRequest = errors.New("invalid symbol or request")

	// ErrUnreachable indicates a transport or HTTP failure, including
	// timeouts.
	ErrUnreachable = errors.New("quote provider unreachable")

	// ErrNoData indicates a well-formed but empty result.
	ErrNoData = errors.New("no data returned")

	// ErrAuthenticationFailed indicates the crumb handshake failed or the
	// provider rejected the token.
	ErrAuthenticationFailed = errors.New("authentication handshake failed")

	// ErrDecodeFailed indicates the provider payload did not match the
	// expected schema.
	ErrDecodeFailed = errors.New("could not decode provider payload")
)
