// Adapted from https://github.com/thought-machine/please
// Copyright Thought Machine, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0
package cache

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
)

// SignatureAuthenticator computes and checks the HMAC tag attached to a
// remote-cache artifact when a signing key is configured (spec §4.G
// "Integrity": "an HMAC derived from hash and a configured signing key").
type SignatureAuthenticator struct {
	TeamID  string
	Key     []byte
	Enabled bool
}

func (a *SignatureAuthenticator) tagGenerator(hash string) (hash.Hash, error) {
	if len(a.Key) == 0 {
		return nil, errors.New("signature verification enabled but no signing key configured")
	}
	metadata, err := json.Marshal(struct {
		Hash   string `json:"hash"`
		TeamID string `json:"teamId"`
	}{Hash: hash, TeamID: a.TeamID})
	if err != nil {
		return nil, err
	}
	h := hmac.New(sha256.New, a.Key)
	h.Write(metadata)
	return h, nil
}

// GenerateTag computes the HMAC tag for one artifact's bytes.
func (a *SignatureAuthenticator) GenerateTag(hash string, body []byte) (string, error) {
	gen, err := a.tagGenerator(hash)
	if err != nil {
		return "", err
	}
	gen.Write(body)
	return base64.StdEncoding.EncodeToString(gen.Sum(nil)), nil
}

// Validate reports whether body's HMAC tag matches expectedTag.
func (a *SignatureAuthenticator) Validate(hash string, body []byte, expectedTag string) (bool, error) {
	computed, err := a.GenerateTag(hash, body)
	if err != nil {
		return false, fmt.Errorf("computing artifact signature: %w", err)
	}
	return hmac.Equal([]byte(computed), []byte(expectedTag)), nil
}
