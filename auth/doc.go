// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides user token generation and request authentication.

# User Tokens

User tokens use HMAC-SHA256 over the user ID:

	token := auth.GenerateUserToken(userID, salt)
	err := auth.ValidateUserToken(userID, token, salt)

The token is URL-safe base64 encoded without padding. Since it's
deterministic, the same user ID and salt always produce the same token,
so validation needs no database lookup.

# Requests

Clients send both values as headers:

	X-User-ID:    <uuid>
	X-User-Token: <token>

UserFromRequest validates them and returns the user ID; SetCredentials
adds them to an outgoing request.

# ID Generation

User IDs are random UUIDs (NewUserID). Other records use random hex IDs:

	id, err := auth.GenerateID(16)  // 32 hex characters
*/
package auth
