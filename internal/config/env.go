package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultEnvFile is read from the working directory when no env file is named.
const DefaultEnvFile = ".env"

// LoadEnvFile exports the variables of a dotenv file into the process
// environment without overriding values that are already set. A missing
// default file is ignored; a missing explicitly named file is an error.
func LoadEnvFile(path string) error {
	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = DefaultEnvFile
	}
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := godotenv.Load(expanded); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", expanded, err)
	}
	return nil
}
