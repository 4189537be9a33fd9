package errs

import "net/http"

// errorMap holds the template for every application error code.
// Status is only set where it differs from the one implied by Kind.
var errorMap = map[int]CustomError{
	// 1xxx
	ErrInvalidParams:         {Code: ErrInvalidParams, Kind: KindInvalidInput, Message: "Invalid request parameters."},
	ErrUnsupportedMediaType:  {Code: ErrUnsupportedMediaType, Kind: KindInvalidInput, Message: "Unsupported request format.", Status: http.StatusUnsupportedMediaType},
	ErrInvalidJSONFormat:     {Code: ErrInvalidJSONFormat, Kind: KindInvalidInput, Message: "Unsupported request format."},
	ErrExtraContentInBody:    {Code: ErrExtraContentInBody, Kind: KindInvalidInput, Message: "Request contains unexpected data."},
	ErrFormParseFailed:       {Code: ErrFormParseFailed, Kind: KindInvalidInput, Message: "Failed to process uploaded data."},
	ErrRequestEntityTooLarge: {Code: ErrRequestEntityTooLarge, Kind: KindInvalidInput, Message: "Request size is too large.", Status: http.StatusRequestEntityTooLarge},
	ErrRateLimitExceeded:     {Code: ErrRateLimitExceeded, Kind: KindInvalidInput, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},
	ErrMalformedEvent:        {Code: ErrMalformedEvent, Kind: KindInvalidInput, Message: "Malformed %s event."},

	// 2xxx
	ErrChatNotFound:           {Code: ErrChatNotFound, Kind: KindNotFound, Message: "Chat not found."},
	ErrNotGroupChat:           {Code: ErrNotGroupChat, Kind: KindInvalidInput, Message: "This operation is only available for group chats."},
	ErrAlreadyMember:          {Code: ErrAlreadyMember, Kind: KindConflict, Message: "User is already in the group."},
	ErrNotMember:              {Code: ErrNotMember, Kind: KindNotFound, Message: "User is not in the group."},
	ErrNotGroupAdmin:          {Code: ErrNotGroupAdmin, Kind: KindForbidden, Message: "Only the group admin can change members."},
	ErrNotParticipant:         {Code: ErrNotParticipant, Kind: KindForbidden, Message: "You are not a participant of this chat."},
	ErrChatNameRequired:       {Code: ErrChatNameRequired, Kind: KindInvalidInput, Message: "Chat name is required."},
	ErrGroupMembersRequired:   {Code: ErrGroupMembersRequired, Kind: KindInvalidInput, Message: "A group chat needs at least one other member."},
	ErrSelfChat:               {Code: ErrSelfChat, Kind: KindInvalidInput, Message: "You cannot start a chat with yourself."},
	ErrChatCorrupted:          {Code: ErrChatCorrupted, Kind: KindInternal, Message: "Chat data is corrupted."},
	ErrMessageContentTooLong:  {Code: ErrMessageContentTooLong, Kind: KindInvalidInput, Message: "Message is too long."},
	ErrMessageContentRequired: {Code: ErrMessageContentRequired, Kind: KindInvalidInput, Message: "Message content is required."},
	ErrFileSizeTooLarge:       {Code: ErrFileSizeTooLarge, Kind: KindInvalidInput, Message: "File is too large (max %d MB)."},
	ErrFileTypeInvalid:        {Code: ErrFileTypeInvalid, Kind: KindInvalidInput, Message: "Only JPEG, PNG, WebP and GIF images are allowed."},

	// 3xxx
	ErrPowChallengeRequired: {Code: ErrPowChallengeRequired, Kind: KindForbidden, Message: "Verification required. Please try again."},
	ErrPowChallengeInvalid:  {Code: ErrPowChallengeInvalid, Kind: KindInvalidInput, Message: "Verification failed. Please try again."},
	ErrSetupRequired:        {Code: ErrSetupRequired, Kind: KindUnauthenticated, Message: "Send setup before any other event."},
	ErrIdentityMismatch:     {Code: ErrIdentityMismatch, Kind: KindForbidden, Message: "Setup does not match the signed-in user."},
	ErrUnauthorized:         {Code: ErrUnauthorized, Kind: KindUnauthenticated, Message: "Please sign in to continue."},
	ErrInvalidCredentials:   {Code: ErrInvalidCredentials, Kind: KindUnauthenticated, Message: "Incorrect e-mail or password."},
	ErrUserAlreadyExists:    {Code: ErrUserAlreadyExists, Kind: KindConflict, Message: "This e-mail is already registered."},
	ErrUserNotFound:         {Code: ErrUserNotFound, Kind: KindNotFound, Message: "User not found."},
	ErrInvalidPassword:      {Code: ErrInvalidPassword, Kind: KindInvalidInput, Message: "Password must be between 6 and 72 characters."},
	ErrAlreadyLoggedIn:      {Code: ErrAlreadyLoggedIn, Kind: KindInvalidInput, Message: "You are already signed in."},

	// 5xxx
	ErrUnknown:             {Code: ErrUnknown, Kind: KindInternal, Message: "Something went wrong. Please try again."},
	ErrFileStorageFailed:   {Code: ErrFileStorageFailed, Kind: KindInternal, Message: "File upload failed. Please try again."},
	ErrFileStorageDisabled: {Code: ErrFileStorageDisabled, Kind: KindInternal, Message: "File uploads are not available.", Status: http.StatusServiceUnavailable},
}
