package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateScenes(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.MaxConcurrentTasks < 1 {
		return errors.New("pipeline.max_concurrent_tasks must be at least 1")
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Provider {
	case "local":
		return nil
	case "s3":
		if c.Storage.Bucket == "" {
			return errors.New("storage.bucket is required when storage.provider is s3")
		}
		if c.Storage.AccessKeyID == "" || c.Storage.SecretKey == "" {
			return errors.New("storage.access_key_id and storage.secret_key are required when storage.provider is s3")
		}
		return nil
	default:
		return fmt.Errorf("storage.provider: unsupported value %q (expected local or s3)", c.Storage.Provider)
	}
}

func (c *Config) validateScenes() error {
	if c.Scenes.MaxSceneSeconds <= c.Scenes.MinSceneSeconds {
		return errors.New("scenes.max_scene_seconds must exceed scenes.min_scene_seconds")
	}
	if c.Scenes.MaxLines < c.Scenes.MinLines {
		return errors.New("scenes.max_lines must be at least scenes.min_lines")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
		return nil
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
}
