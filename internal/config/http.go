package config

const (
	HCType         = "Content-Type"
	HETag          = "ETag"
	HCacheControl  = "Cache-Control"
	HAuthorization = "Authorization"

	CTypeJSON = "application/json"
	CTypeHTML = "text/html"
	CTypeSSE  = "text/event-stream"
)

const (
	HTTPErrMethodNotAllowed = "Method not allowed"
)

const (
	EnvConfigPath        = "WARROOM_CONFIG"
	EnvAuthPrivateKey    = "AUTH_PRIVATE_KEY"
	EnvAuthPublicKey     = "AUTH_PUBLIC_KEY"
	EnvClerkKey          = "CLERK_API"
	EnvS3AccessKeyID     = "S3_ACCESS_KEY_ID"
	EnvS3SecretAccessKey = "S3_SECRET_ACCESS_KEY"

	DefaultConfigPath = "config.yaml"
)

const (
	UploadsUrlPath = "/uploads/"

	// Object storage prefix for post images.
	ImagesPrefix = "blog-images"
)
