package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/memberkeeper/internal/flagx"
)

var ownFlags = []string{
	"-a", "-grpc", "-d", "-s", "-i", "-t", "-u", "-p", "-b", "-g", "-e", "-public-url",
	"-blob", "-f", "-max-avatar", "-l", "-otlp",
}

// parseFlags populates server Config fields from command-line flags.
//
// Supported flags:
//
//	-a string         HTTP bind address (e.g., ":8080")
//	-grpc string      gRPC bind address (e.g., ":50051")
//	-d string         PostgreSQL DSN
//	-s string         JWT HMAC secret key
//	-i string         JWT issuer
//	-t duration       access token validity (e.g., "168h")
//	-u string         S3 access key
//	-p string         S3 secret key
//	-b string         S3 bucket name
//	-g string         S3 region
//	-e string         S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-public-url string public base URL for stored objects
//	-blob string      blob backend: s3 or memory
//	-f string         folder for profile images
//	-max-avatar int   max profile image size, bytes
//	-l string         log level
//	-otlp string      OTLP/gRPC collector address
//
// args are filtered with flagx.FilterArgs first, so flags owned by other
// layers (-c, -envfile) are ignored.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, ownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run HTTP server")
	fs.StringVar(&config.EndpointAddrGRPC, "grpc", config.EndpointAddrGRPC, "address and port to run gRPC server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.TokenIssuer, "i", config.TokenIssuer, "token issuer")
	fs.DurationVar(&config.AccessTokenValidityDuration, "t", config.AccessTokenValidityDuration, "access token validity duration")
	fs.StringVar(&config.S3AccessKey, "u", config.S3AccessKey, "S3 access key")
	fs.StringVar(&config.S3SecretKey, "p", config.S3SecretKey, "S3 secret key")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.S3PublicBaseURL, "public-url", config.S3PublicBaseURL, "public base URL of stored objects")
	fs.StringVar(&config.BlobBackend, "blob", config.BlobBackend, "blob backend (s3|memory)")
	fs.StringVar(&config.AvatarFolder, "f", config.AvatarFolder, "profile image folder")
	fs.Int64Var(&config.MaxAvatarBytes, "max-avatar", config.MaxAvatarBytes, "max profile image size in bytes")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.OTLPEndpoint, "otlp", config.OTLPEndpoint, "OTLP/gRPC collector address")

	return fs.Parse(args)
}
