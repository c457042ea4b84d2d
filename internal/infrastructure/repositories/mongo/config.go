package mongo

import "time"

// Config MongoDB connection settings
type Config struct {
	URL      string        `yaml:"url" env:"FILESTORE_MONGO_URL"`
	Database string        `yaml:"database" env-default:"filestore"`
	Timeout  time.Duration `yaml:"timeout" env-default:"10s"`
}

const txnCollection = "txns"
