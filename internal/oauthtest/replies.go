package oauthtest

import "net/http"

// TokenReply is one scripted answer of the token endpoint
type TokenReply struct {
	Status int
	Body   any    // encoded as JSON when Raw is empty
	Raw    string // written verbatim when set
}

// Pending answers authorization_pending
func Pending() TokenReply {
	return Error("authorization_pending", "The authorization request is still pending")
}

// SlowDown answers slow_down
func SlowDown() TokenReply {
	return Error("slow_down", "Polling interval must be increased by 5 seconds")
}

// Denied answers access_denied
func Denied() TokenReply {
	return Error("access_denied", "The end user denied the authorization request")
}

// Expired answers expired_token
func Expired() TokenReply {
	return Error("expired_token", "The device_code has expired")
}

// Error answers an RFC 6749 error with the given code
func Error(code, description string) TokenReply {
	return TokenReply{
		Status: http.StatusBadRequest,
		Body:   ErrorResponse{Error: code, ErrorDescription: description},
	}
}

// Raw answers a non-JSON body, simulating a broken proxy
func Raw(status int, body string) TokenReply {
	return TokenReply{Status: status, Raw: body}
}

// Success answers with a bearer token
func Success(accessToken string, expiresIn int) TokenReply {
	return TokenReply{
		Status: http.StatusOK,
		Body: map[string]any{
			"access_token": accessToken,
			"token_type":   "Bearer",
			"expires_in":   expiresIn,
		},
	}
}
