package config

import (
	"fmt"
	"runtime"
	"strings"

	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Environment variable names for biosigner configuration
const (
	EnvBiosignerPort               = "BIOSIGNER_PORT"
	EnvBiosignerPlatform           = "BIOSIGNER_PLATFORM"
	EnvBiosignerSupportedPlatforms = "BIOSIGNER_SUPPORTED_PLATFORMS"
	EnvBiosignerStoreType          = "BIOSIGNER_STORE_TYPE"
	EnvBiosignerPersistenceType    = "BIOSIGNER_PERSISTENCE_TYPE"
	EnvBiosignerDataPath           = "BIOSIGNER_DATA_PATH"
	EnvBiosignerRedisAddress       = "BIOSIGNER_REDIS_ADDRESS"
	EnvBiosignerRedisPassword      = "BIOSIGNER_REDIS_PASSWORD"
	EnvBiosignerRedisDB            = "BIOSIGNER_REDIS_DB"
	EnvBiosignerRedisKeyPrefix     = "BIOSIGNER_REDIS_KEY_PREFIX"
	EnvBiosignerSealingPassphrase  = "BIOSIGNER_SEALING_PASSPHRASE"
	EnvBiosignerPromptType         = "BIOSIGNER_PROMPT_TYPE"
	EnvBiosignerEnrolledModalities = "BIOSIGNER_ENROLLED_MODALITIES"
	EnvBiosignerRequireEnrollment  = "BIOSIGNER_REQUIRE_ENROLLMENT"
	EnvBiosignerMaxAttempts        = "BIOSIGNER_MAX_ATTEMPTS"
	EnvBiosignerDialogConfig       = "BIOSIGNER_DIALOG_CONFIG"
	EnvBiosignerAWSRegion          = "BIOSIGNER_AWS_REGION"
	EnvBiosignerKMSAlias           = "BIOSIGNER_KMS_ALIAS"
	EnvBiosignerRateLimitRPS       = "BIOSIGNER_RATE_LIMIT_RPS"
	EnvBiosignerRateLimitBurst     = "BIOSIGNER_RATE_LIMIT_BURST"
	EnvBiosignerVerbose            = "BIOSIGNER_VERBOSE"
	EnvBiosignerServerURL          = "BIOSIGNER_SERVER_URL"
)

// StoreType selects the secure credential store backing the gated key.
type StoreType string

const (
	StoreTypeSoftware StoreType = "software"
	StoreTypeAWSKMS   StoreType = "aws-kms"
)

// PersistenceType selects where the software store keeps its key slot.
type PersistenceType string

const (
	PersistenceTypeMemory PersistenceType = "memory"
	PersistenceTypeBadger PersistenceType = "badger"
	PersistenceTypeRedis  PersistenceType = "redis"
)

// PromptType selects the biometric prompt collaborator.
type PromptType string

const (
	PromptTypeTerminal   PromptType = "terminal"
	PromptTypeApproveAll PromptType = "approve-all"
)

// DefaultSupportedPlatforms lists platforms that ship a secure credential store
// and a biometric prompt.
var DefaultSupportedPlatforms = []string{"linux", "darwin", "windows", "android", "ios"}

// DefaultKMSAlias is the KMS alias naming the single gated key slot.
const DefaultKMSAlias = "alias/biosigner-gated-key"

// PlatformGate decides whether the current platform may run gated operations.
type PlatformGate struct {
	Platform  string
	Supported []string
}

// DetectPlatform returns the platform identifier of the running process.
func DetectPlatform() string {
	return runtime.GOOS
}

func NewPlatformGate(platform string, supported []string) *PlatformGate {
	if platform == "" {
		platform = DetectPlatform()
	}
	if supported == nil {
		supported = DefaultSupportedPlatforms
	}
	return &PlatformGate{Platform: platform, Supported: supported}
}

func (g *PlatformGate) IsSupported() bool {
	if g == nil {
		return false
	}
	for _, p := range g.Supported {
		if strings.EqualFold(strings.TrimSpace(p), g.Platform) {
			return true
		}
	}
	return false
}

// BiosignerServerConfig is the complete configuration of a biosigner server.
type BiosignerServerConfig struct {
	Port int `json:"port" yaml:"port"`

	Platform           string   `json:"platform" yaml:"platform"`
	SupportedPlatforms []string `json:"supportedPlatforms" yaml:"supportedPlatforms"`

	StoreType StoreType `json:"storeType" yaml:"storeType"`

	// Software store
	PersistenceType   PersistenceType `json:"persistenceType" yaml:"persistenceType"`
	DataPath          string          `json:"dataPath" yaml:"dataPath"`
	RedisAddress      string          `json:"redisAddress" yaml:"redisAddress"`
	RedisPassword     string          `json:"-" yaml:"-"`
	RedisDB           int             `json:"redisDb" yaml:"redisDb"`
	RedisKeyPrefix    string          `json:"redisKeyPrefix" yaml:"redisKeyPrefix"`
	SealingPassphrase string          `json:"-" yaml:"-"`

	// AWS KMS store
	AWSRegion string `json:"awsRegion" yaml:"awsRegion"`
	KMSAlias  string `json:"kmsAlias" yaml:"kmsAlias"`

	// Biometric prompt
	PromptType         PromptType `json:"promptType" yaml:"promptType"`
	EnrolledModalities []string   `json:"enrolledModalities" yaml:"enrolledModalities"`
	RequireEnrollment  bool       `json:"requireEnrollment" yaml:"requireEnrollment"`
	MaxAttempts        int        `json:"maxAttempts" yaml:"maxAttempts"`
	DialogConfigPath   string     `json:"dialogConfigPath" yaml:"dialogConfigPath"`

	// Transport
	RateLimitRPS   float64 `json:"rateLimitRps" yaml:"rateLimitRps"`
	RateLimitBurst int     `json:"rateLimitBurst" yaml:"rateLimitBurst"`

	Verbose bool `json:"verbose" yaml:"verbose"`
}

// Validate validates the server configuration, reporting every problem at once.
func (c *BiosignerServerConfig) Validate() error {
	var allErrors field.ErrorList

	if c.Port < 1 || c.Port > 65535 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("port"), c.Port, "must be between 1-65535"))
	}

	switch c.StoreType {
	case StoreTypeSoftware:
		allErrors = append(allErrors, c.validateSoftwareStore()...)
	case StoreTypeAWSKMS:
		if c.KMSAlias == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("kmsAlias"), "kmsAlias is required for the aws-kms store"))
		} else if !strings.HasPrefix(c.KMSAlias, "alias/") {
			allErrors = append(allErrors, field.Invalid(field.NewPath("kmsAlias"), c.KMSAlias, "must start with alias/"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(field.NewPath("storeType"), c.StoreType,
			[]string{string(StoreTypeSoftware), string(StoreTypeAWSKMS)}))
	}

	switch c.PromptType {
	case PromptTypeTerminal, PromptTypeApproveAll:
	default:
		allErrors = append(allErrors, field.NotSupported(field.NewPath("promptType"), c.PromptType,
			[]string{string(PromptTypeTerminal), string(PromptTypeApproveAll)}))
	}

	if c.MaxAttempts < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("maxAttempts"), c.MaxAttempts, "cannot be negative"))
	}
	if c.RateLimitRPS < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("rateLimitRps"), c.RateLimitRPS, "cannot be negative"))
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("rateLimitBurst"), c.RateLimitBurst, "must be at least 1 when rate limiting is enabled"))
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

func (c *BiosignerServerConfig) validateSoftwareStore() field.ErrorList {
	var errs field.ErrorList
	if c.SealingPassphrase == "" {
		errs = append(errs, field.Required(field.NewPath("sealingPassphrase"), "sealing passphrase is required for the software store"))
	}
	switch c.PersistenceType {
	case PersistenceTypeMemory:
	case PersistenceTypeBadger:
		if c.DataPath == "" {
			errs = append(errs, field.Required(field.NewPath("dataPath"), "dataPath is required for badger persistence"))
		}
	case PersistenceTypeRedis:
		if c.RedisAddress == "" {
			errs = append(errs, field.Required(field.NewPath("redisAddress"), "redisAddress is required for redis persistence"))
		}
		if c.RedisDB < 0 || c.RedisDB > 15 {
			errs = append(errs, field.Invalid(field.NewPath("redisDb"), c.RedisDB, "must be between 0-15"))
		}
	default:
		errs = append(errs, field.NotSupported(field.NewPath("persistenceType"), c.PersistenceType,
			[]string{string(PersistenceTypeMemory), string(PersistenceTypeBadger), string(PersistenceTypeRedis)}))
	}
	return errs
}

// PlatformGate builds the gate described by this config.
func (c *BiosignerServerConfig) PlatformGate() *PlatformGate {
	return NewPlatformGate(c.Platform, c.SupportedPlatforms)
}

// SplitList parses a comma separated flag value, dropping empty entries.
func SplitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// GetSupportedStoreTypesString returns supported store types for CLI help
func GetSupportedStoreTypesString() string {
	return fmt.Sprintf("%s, %s", StoreTypeSoftware, StoreTypeAWSKMS)
}
