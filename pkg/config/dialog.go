package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/types"
	"gopkg.in/yaml.v3"
)

// dialogFile is the on-disk layout of a dialog override file:
//
//	dialog:
//	  title: Confirm payment
//	  negativeButton: Not now
type dialogFile struct {
	Dialog types.DialogMessages `yaml:"dialog"`
}

// LoadDialogMessagesFile reads server-wide dialog overrides from a YAML file.
// Labels left out keep their defaults.
func LoadDialogMessagesFile(path string) (types.DialogMessages, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.DialogMessages{}, fmt.Errorf("failed to read dialog config %s: %w", path, err)
	}
	return ParseDialogMessages(data)
}

func ParseDialogMessages(data []byte) (types.DialogMessages, error) {
	var f dialogFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return types.DialogMessages{}, nil
		}
		return types.DialogMessages{}, fmt.Errorf("failed to parse dialog config: %w", err)
	}
	return f.Dialog, nil
}
