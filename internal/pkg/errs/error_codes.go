/*
Package errs provides the application error type and its numeric code catalogue.

Codes are grouped by hundreds and are shared by the HTTP API and the websocket "error" event,
so a client can react to the same code whichever transport reported it.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrFormParseFailed indicates failure to parse multipart or URL-encoded form data.
	ErrFormParseFailed = 1005

	// ErrRequestEntityTooLarge indicates that the request body size exceeded the server limit.
	ErrRequestEntityTooLarge = 1006

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007

	// ErrMalformedEvent indicates that a websocket event could not be decoded or validated.
	ErrMalformedEvent = 1008
)

// 2xxx: Chat, Membership and Content Errors
const (
	// ErrChatNotFound indicates that the referenced chat does not exist.
	ErrChatNotFound = 2101

	// ErrNotGroupChat indicates a group-only operation on a one-to-one chat.
	ErrNotGroupChat = 2102

	// ErrAlreadyMember indicates that the target user already participates in the chat.
	ErrAlreadyMember = 2103

	// ErrNotMember indicates that the target user does not participate in the chat.
	ErrNotMember = 2104

	// ErrNotGroupAdmin indicates that only the group admin may perform the mutation.
	ErrNotGroupAdmin = 2105

	// ErrNotParticipant indicates that the actor is not a participant of the chat.
	ErrNotParticipant = 2106

	// ErrChatNameRequired indicates that a chat name was missing or blank.
	ErrChatNameRequired = 2107

	// ErrGroupMembersRequired indicates a group creation request without participants.
	ErrGroupMembersRequired = 2108

	// ErrSelfChat indicates an attempt to open a one-to-one chat with oneself.
	ErrSelfChat = 2109

	// ErrChatCorrupted indicates that a stored chat aggregate is inconsistent.
	ErrChatCorrupted = 2110

	// ErrMessageContentTooLong indicates that the message content exceeded the maximum length.
	ErrMessageContentTooLong = 2201

	// ErrMessageContentRequired indicates an empty message body.
	ErrMessageContentRequired = 2202

	// ErrFileSizeTooLarge indicates that an uploaded file exceeded the size limit.
	ErrFileSizeTooLarge = 2301

	// ErrFileTypeInvalid indicates that an uploaded file is not an accepted image type.
	ErrFileTypeInvalid = 2302
)

// 3xxx: User, Session, and Security Errors
const (
	// ErrPowChallengeRequired indicates the client must complete a Proof-of-Work challenge first.
	ErrPowChallengeRequired = 3001

	// ErrPowChallengeInvalid indicates that the PoW proof provided by the client is invalid.
	ErrPowChallengeInvalid = 3002

	// ErrSetupRequired indicates a websocket event sent before "setup".
	ErrSetupRequired = 3003

	// ErrIdentityMismatch indicates a "setup" for a user other than the authenticated one.
	ErrIdentityMismatch = 3004

	// ErrUnauthorized indicates a missing or invalid identity token.
	ErrUnauthorized = 3101

	// ErrInvalidCredentials indicates a failed login.
	ErrInvalidCredentials = 3102

	// ErrUserAlreadyExists indicates that the e-mail is already registered.
	ErrUserAlreadyExists = 3103

	// ErrUserNotFound indicates that the referenced user does not exist.
	ErrUserNotFound = 3104

	// ErrInvalidPassword indicates a password outside the accepted length.
	ErrInvalidPassword = 3105

	// ErrAlreadyLoggedIn indicates register/login with a valid identity token attached.
	ErrAlreadyLoggedIn = 3106
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000

	// ErrFileStorageFailed indicates that the object storage rejected an operation.
	ErrFileStorageFailed = 5001

	// ErrFileStorageDisabled indicates that no object storage is configured.
	ErrFileStorageDisabled = 5002
)
