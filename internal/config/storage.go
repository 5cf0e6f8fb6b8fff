package config

const (
	StorageInline = "inline"
	StorageS3     = "s3"
)

// StorageConfig selects where payment QR images are kept.
// inline stores them as data URIs on the invoice row.
type StorageConfig struct {
	Driver string   `yaml:"driver" validate:"oneof=inline s3"`
	S3     S3Config `yaml:"s3"`
}

type S3Config struct {
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Endpoint        string `yaml:"endpoint"`
	PublicBaseURL   string `yaml:"public_base_url"`
	Prefix          string `yaml:"prefix"`
}
