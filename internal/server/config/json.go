package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/memberkeeper/internal/timex"
)

// JsonConfig is the on-disk shape of a JSON config file. Durations use
// timex.Duration, so both "168h" and integer nanoseconds are accepted.
type JsonConfig struct {
	EndpointAddrHTTP            string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC            string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                 string         `json:"database_dsn"`
	SecretKey                   string         `json:"secret_key"`
	TokenIssuer                 string         `json:"token_issuer"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	S3AccessKey                 string         `json:"s3_access_key"`
	S3SecretKey                 string         `json:"s3_secret_key"`
	S3Bucket                    string         `json:"s3_bucket"`
	S3Region                    string         `json:"s3_region"`
	S3BaseEndpoint              string         `json:"s3_base_endpoint"`
	S3PublicBaseURL             string         `json:"s3_public_base_url"`
	S3UsePathStyle              bool           `json:"s3_use_path_style"`
	BlobBackend                 string         `json:"blob_backend"`
	AvatarFolder                string         `json:"avatar_folder"`
	MaxAvatarBytes              int64          `json:"max_avatar_bytes"`
	LogLevel                    string         `json:"log_level"`
	OTLPEndpoint                string         `json:"otlp_endpoint"`
	Argon2Time                  uint32         `json:"argon2_time"`
	Argon2MemoryKiB             uint32         `json:"argon2_memory_kib"`
	Argon2Threads               uint8          `json:"argon2_threads"`
}

// parseJson overlays the JSON file at path onto config. Keys absent from the
// file keep their current values. An empty path is a no-op.
func parseJson(config *Config, path string) error {
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	c := fromConfig(config)
	if err := json.Unmarshal(file, c); err != nil {
		return err
	}

	config.EndpointAddrHTTP = c.EndpointAddrHTTP
	config.EndpointAddrGRPC = c.EndpointAddrGRPC
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.TokenIssuer = c.TokenIssuer
	config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	config.S3AccessKey = c.S3AccessKey
	config.S3SecretKey = c.S3SecretKey
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
	config.S3PublicBaseURL = c.S3PublicBaseURL
	config.S3UsePathStyle = c.S3UsePathStyle
	config.BlobBackend = c.BlobBackend
	config.AvatarFolder = c.AvatarFolder
	config.MaxAvatarBytes = c.MaxAvatarBytes
	config.LogLevel = c.LogLevel
	config.OTLPEndpoint = c.OTLPEndpoint
	config.Argon2Time = c.Argon2Time
	config.Argon2MemoryKiB = c.Argon2MemoryKiB
	config.Argon2Threads = c.Argon2Threads

	return nil
}

func fromConfig(config *Config) *JsonConfig {
	return &JsonConfig{
		EndpointAddrHTTP:            config.EndpointAddrHTTP,
		EndpointAddrGRPC:            config.EndpointAddrGRPC,
		DatabaseDSN:                 config.DatabaseDSN,
		SecretKey:                   config.SecretKey,
		TokenIssuer:                 config.TokenIssuer,
		AccessTokenValidityDuration: timex.Duration{Duration: config.AccessTokenValidityDuration},
		S3AccessKey:                 config.S3AccessKey,
		S3SecretKey:                 config.S3SecretKey,
		S3Bucket:                    config.S3Bucket,
		S3Region:                    config.S3Region,
		S3BaseEndpoint:              config.S3BaseEndpoint,
		S3PublicBaseURL:             config.S3PublicBaseURL,
		S3UsePathStyle:              config.S3UsePathStyle,
		BlobBackend:                 config.BlobBackend,
		AvatarFolder:                config.AvatarFolder,
		MaxAvatarBytes:              config.MaxAvatarBytes,
		LogLevel:                    config.LogLevel,
		OTLPEndpoint:                config.OTLPEndpoint,
		Argon2Time:                  config.Argon2Time,
		Argon2MemoryKiB:             config.Argon2MemoryKiB,
		Argon2Threads:               config.Argon2Threads,
	}
}
