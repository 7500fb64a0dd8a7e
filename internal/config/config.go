// Package config reads the deployment settings the CLI tools need to reach
// the warehouse and the stage bucket. Values come from the environment, with
// a .env file loaded first when present; credentials themselves stay with
// Application Default Credentials.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvProjectID   = "FSI_PROJECT_ID"
	EnvDatasetID   = "FSI_DATASET"
	EnvStageBucket = "FSI_STAGE_BUCKET"
	EnvBatchDir    = "FSI_BATCH_DIR"
)

const (
	defaultDataset  = "fsi_demo"
	defaultBatchDir = "tmp_streaming_batches"
)

// Config holds the warehouse and staging settings.
type Config struct {
	ProjectID   string
	DatasetID   string
	StageBucket string
	BatchDir    string
}

// Load reads configuration from the environment. A missing .env file is
// fine; explicit environment variables win over it either way.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		ProjectID:   os.Getenv(EnvProjectID),
		DatasetID:   getenvDefault(EnvDatasetID, defaultDataset),
		StageBucket: os.Getenv(EnvStageBucket),
		BatchDir:    getenvDefault(EnvBatchDir, defaultBatchDir),
	}
}

// RequireWarehouse verifies the settings the warehouse-facing commands need.
func (c Config) RequireWarehouse() error {
	if c.ProjectID == "" {
		return fmt.Errorf("config: %s is required", EnvProjectID)
	}
	return nil
}

// RequireStage verifies the settings the stage-file commands need, on top of
// the warehouse ones.
func (c Config) RequireStage() error {
	if err := c.RequireWarehouse(); err != nil {
		return err
	}
	if c.StageBucket == "" {
		return fmt.Errorf("config: %s is required", EnvStageBucket)
	}
	return nil
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
