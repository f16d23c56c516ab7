package config

const (
	// Database errors
	ErrInitializeDatabaseFmt = "Failed to initialize database: %v"

	// Auth errors
	ErrNoAuthorizationHeader = "No authorization header"
	ErrUnauthorized          = "Unauthorized"
	ErrAdminRequired         = "Unauthorized - Admin access required"
	ErrNotOwner              = "Forbidden - you can only modify your own posts"
	ErrNoValidSession        = "No valid session found. Please log in again."
	ErrInvalidCredentials    = "Invalid login credentials"
	ErrInternalServerError   = "Internal Server Error"

	// Post errors
	ErrPostNotFound    = "Post not found"
	ErrInvalidBody     = "Invalid request body"
	ErrUploadFailed    = "Failed to upload image"
	ErrInvalidFileExt  = "Invalid file extension"
	ErrFileRequired    = "File is required"
	ErrTooManyRequests = "Too many requests"
)
