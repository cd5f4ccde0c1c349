package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Layr-Labs/eigenx-biosigner-go/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSoftwareConfig() *BiosignerServerConfig {
	return &BiosignerServerConfig{
		Port:              8080,
		StoreType:         StoreTypeSoftware,
		PersistenceType:   PersistenceTypeMemory,
		SealingPassphrase: "passphrase",
		PromptType:        PromptTypeApproveAll,
	}
}

func TestBiosignerServerConfig_Validate(t *testing.T) {
	t.Run("valid software config", func(t *testing.T) {
		require.NoError(t, validSoftwareConfig().Validate())
	})

	t.Run("valid aws config", func(t *testing.T) {
		cfg := &BiosignerServerConfig{
			Port:       8080,
			StoreType:  StoreTypeAWSKMS,
			KMSAlias:   DefaultKMSAlias,
			PromptType: PromptTypeTerminal,
		}
		require.NoError(t, cfg.Validate())
	})

	t.Run("aggregates every error", func(t *testing.T) {
		cfg := &BiosignerServerConfig{
			Port:            0,
			StoreType:       StoreTypeSoftware,
			PersistenceType: PersistenceTypeBadger,
			PromptType:      "carrier-pigeon",
		}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "port")
		assert.Contains(t, err.Error(), "sealingPassphrase")
		assert.Contains(t, err.Error(), "dataPath")
		assert.Contains(t, err.Error(), "promptType")
	})

	t.Run("redis requires address", func(t *testing.T) {
		cfg := validSoftwareConfig()
		cfg.PersistenceType = PersistenceTypeRedis
		cfg.RedisDB = 16
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "redisAddress")
		assert.Contains(t, err.Error(), "redisDb")
	})

	t.Run("kms alias prefix", func(t *testing.T) {
		cfg := &BiosignerServerConfig{Port: 1, StoreType: StoreTypeAWSKMS, KMSAlias: "gated", PromptType: PromptTypeTerminal}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "alias/")
	})

	t.Run("unknown store type", func(t *testing.T) {
		cfg := validSoftwareConfig()
		cfg.StoreType = "enclave"
		require.Error(t, cfg.Validate())
	})

	t.Run("rate limit burst", func(t *testing.T) {
		cfg := validSoftwareConfig()
		cfg.RateLimitRPS = 5
		require.Error(t, cfg.Validate())
		cfg.RateLimitBurst = 10
		require.NoError(t, cfg.Validate())
	})
}

func TestPlatformGate(t *testing.T) {
	assert.True(t, NewPlatformGate("android", nil).IsSupported())
	assert.True(t, NewPlatformGate("iOS", []string{"ios"}).IsSupported())
	assert.False(t, NewPlatformGate("plan9", nil).IsSupported())
	assert.False(t, NewPlatformGate("linux", []string{}).IsSupported())
	assert.Equal(t, DetectPlatform(), NewPlatformGate("", nil).Platform)

	var nilGate *PlatformGate
	assert.False(t, nilGate.IsSupported())
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"fingerprint", "face"}, SplitList(" fingerprint, ,face,"))
	assert.Nil(t, SplitList(""))
}

func TestLoadDialogMessagesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dialog.yaml")
	content := "dialog:\n  title: Confirm payment\n  negativeButton: Not now\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	d, err := LoadDialogMessagesFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Confirm payment", d.Title)
	assert.Equal(t, "Not now", d.NegativeButton)
	assert.Empty(t, d.Hint)

	merged := d.WithDefaults()
	assert.Equal(t, types.DefaultDialogHint, merged.Hint)
	assert.Equal(t, "Confirm payment", merged.Title)
}

func TestParseDialogMessages(t *testing.T) {
	d, err := ParseDialogMessages(nil)
	require.NoError(t, err)
	assert.Equal(t, types.DialogMessages{}, d)

	_, err = ParseDialogMessages([]byte("dialog:\n  colour: red\n"))
	assert.Error(t, err)

	_, err = LoadDialogMessagesFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
