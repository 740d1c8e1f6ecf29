package config

import "os"

// Environment variable names for credentials. Credentials never live in the
// config file in production; the yaml fields exist for local development.
const (
	envStoreID       = "DEPTHFLOW_STORE_ID"
	envStoreKey      = "DEPTHFLOW_STORE_KEY"
	envSweepEmail    = "DEPTHFLOW_SWEEP_EMAIL"
	envSweepPassword = "DEPTHFLOW_SWEEP_PASSWORD"
	envS3AccessKey   = "AWS_ACCESS_KEY_ID"
	envS3SecretKey   = "AWS_SECRET_ACCESS_KEY"
)

// applyEnvOverrides layers credential environment variables over whatever
// the yaml file provided. An empty variable leaves the file value alone.
func applyEnvOverrides(c *Config) {
	if v := os.Getenv(envStoreID); v != "" {
		c.Store.AppID = v
	}
	if v := os.Getenv(envStoreKey); v != "" {
		c.Store.AppKey = v
	}
	if v := os.Getenv(envSweepEmail); v != "" {
		c.Sweep.Email = v
	}
	if v := os.Getenv(envSweepPassword); v != "" {
		c.Sweep.Password = v
	}
	if v := os.Getenv(envS3AccessKey); v != "" && c.Export.S3.AccessKeyID == "" {
		c.Export.S3.AccessKeyID = v
	}
	if v := os.Getenv(envS3SecretKey); v != "" && c.Export.S3.SecretAccessKey == "" {
		c.Export.S3.SecretAccessKey = v
	}
}
