package config

import (
	"os"

	"github.com/joho/godotenv"
)

// LoadEnv returns the process environment after applying a .env file from the
// working directory, if one exists. Variables already set win over the file.
func LoadEnv() (EnvSource, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	return FromEnviron(), nil
}

func LoadFromEnv() (Config, error) {
	source, err := LoadEnv()
	if err != nil {
		return Config{}, err
	}
	return Load(source)
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}
