package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/corrgraph-cli/internal/encode"
	"github.com/KaramelBytes/corrgraph-cli/internal/frame"
	"github.com/KaramelBytes/corrgraph-cli/internal/pipeline"
	"github.com/KaramelBytes/corrgraph-cli/internal/utils"
)

// ErrInvalid marks a configuration value that cannot be used.
var ErrInvalid = errors.New("invalid configuration")

// ColumnType declares the kind of one input column.
type ColumnType struct {
	Name string `mapstructure:"name" yaml:"name"`
	Type string `mapstructure:"type" yaml:"type"`
}

// Global configuration structure.
type Global struct {
	InputPath   string       `mapstructure:"input_path" yaml:"input_path"`
	OutputPath  string       `mapstructure:"output_path" yaml:"output_path"`
	ColumnTypes []ColumnType `mapstructure:"column_types" yaml:"column_types"`
	Delimiter   string       `mapstructure:"delimiter" yaml:"delimiter"`
	NAStrings   []string     `mapstructure:"na_strings" yaml:"na_strings"`
	ReplaceChar string       `mapstructure:"replace_char" yaml:"replace_char"`
	// MaxLevels is exclusive: enums with this many levels or more are not encoded.
	MaxLevels     int      `mapstructure:"max_levels" yaml:"max_levels"`
	CorrThreshold float64  `mapstructure:"corr_threshold" yaml:"corr_threshold"`
	Drop          []string `mapstructure:"drop" yaml:"drop"`

	// XLSX input
	Sheet      string `mapstructure:"sheet" yaml:"sheet"`
	SheetIndex int    `mapstructure:"sheet_index" yaml:"sheet_index"`

	FrameOutput string `mapstructure:"frame_output" yaml:"frame_output"`
	MaxMemoryMB int    `mapstructure:"max_memory_mb" yaml:"max_memory_mb"`
}

// Keys lists the settable configuration keys in display order.
var Keys = []string{
	"input_path", "output_path", "column_types", "delimiter", "na_strings", "replace_char",
	"max_levels", "corr_threshold", "drop", "sheet", "sheet_index", "frame_output", "max_memory_mb",
}

func setDefaults(v *viper.Viper) {
	d := pipeline.DefaultConfig()
	v.SetDefault("input_path", d.InputPath)
	v.SetDefault("output_path", d.OutputPath)
	v.SetDefault("column_types", []ColumnType{})
	v.SetDefault("delimiter", string(d.Delimiter))
	v.SetDefault("na_strings", d.NAStrings)
	v.SetDefault("replace_char", d.ReplaceChar)
	v.SetDefault("max_levels", d.MaxLevels)
	v.SetDefault("corr_threshold", d.Threshold)
	v.SetDefault("drop", d.Drop)
	v.SetDefault("sheet", "")
	v.SetDefault("sheet_index", d.SheetIndex)
	v.SetDefault("frame_output", "")
	v.SetDefault("max_memory_mb", d.MaxMemoryMB)
}

// Default returns the configuration used when no file or environment is present.
func Default() *Global {
	v := viper.New()
	setDefaults(v)
	var c Global
	_ = v.Unmarshal(&c)
	return &c
}

// Path resolves the config file location: cfgFile if set, else ~/.corrgraph/config.yaml.
func Path(cfgFile string) (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".corrgraph", "config.yaml"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.corrgraph/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path, err := Path(cfgFile)
	if err != nil {
		return err
	}
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := utils.SafeWriteFile(path, b); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (applied by the caller) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("CORRGRAPH")
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		path, err := Path("")
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(filepath.Dir(path))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

func invalid(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, a...))
}

// DelimiterRune decodes the delimiter setting; "tab" and `\t` mean a tab.
func DelimiterRune(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "tab", `\t`:
		return '\t', nil
	case "":
		return 0, invalid("delimiter is empty")
	}
	r, size := utf8.DecodeRuneInString(s)
	if size != len(s) {
		return 0, invalid("delimiter %q must be a single character", s)
	}
	if r == '"' || r == '\n' || r == '\r' || r == utf8.RuneError {
		return 0, invalid("delimiter %q is not usable", s)
	}
	return r, nil
}

func (c *Global) kinds() (map[string]frame.Kind, error) {
	out := make(map[string]frame.Kind, len(c.ColumnTypes))
	for _, ct := range c.ColumnTypes {
		if ct.Name == "" {
			return nil, invalid("column_types entry without a name")
		}
		if _, dup := out[ct.Name]; dup {
			return nil, invalid("column %q declared twice", ct.Name)
		}
		k, err := frame.ParseKind(ct.Type)
		if err != nil {
			return nil, invalid("column %q: %v", ct.Name, err)
		}
		out[ct.Name] = k
	}
	return out, nil
}

// Validate checks every value for use by the pipeline.
func (c *Global) Validate() error {
	_, err := c.Pipeline()
	return err
}

// Pipeline converts the configuration into a validated pipeline configuration.
func (c *Global) Pipeline() (pipeline.Config, error) {
	p := pipeline.DefaultConfig()
	switch {
	case c.InputPath == "":
		return p, invalid("input_path is empty")
	case c.OutputPath == "":
		return p, invalid("output_path is empty")
	case utf8.RuneCountInString(c.ReplaceChar) != 1:
		return p, invalid("replace_char %q must be a single character", c.ReplaceChar)
	case encode.IsUnsafe(c.ReplaceChar):
		return p, invalid("replace_char %q would itself be replaced", c.ReplaceChar)
	case c.MaxLevels < 1:
		return p, invalid("max_levels must be at least 1, got %d", c.MaxLevels)
	case c.CorrThreshold < 0 || c.CorrThreshold > 1:
		return p, invalid("corr_threshold %v outside [0, 1]", c.CorrThreshold)
	case c.SheetIndex < 1:
		return p, invalid("sheet_index must be at least 1, got %d", c.SheetIndex)
	case c.MaxMemoryMB < 0:
		return p, invalid("max_memory_mb must not be negative")
	}
	delim, err := DelimiterRune(c.Delimiter)
	if err != nil {
		return p, err
	}
	kinds, err := c.kinds()
	if err != nil {
		return p, err
	}

	p.InputPath = c.InputPath
	p.OutputPath = c.OutputPath
	p.Delimiter = delim
	p.NAStrings = append([]string(nil), c.NAStrings...)
	p.ColumnTypes = kinds
	p.ReplaceChar = c.ReplaceChar
	p.MaxLevels = c.MaxLevels
	p.Threshold = c.CorrThreshold
	p.Drop = append([]string(nil), c.Drop...)
	p.Sheet = c.Sheet
	p.SheetIndex = c.SheetIndex
	p.FrameOutput = c.FrameOutput
	p.MaxMemoryMB = c.MaxMemoryMB
	return p, nil
}

func splitList(val string) []string {
	if strings.TrimSpace(val) == "" {
		return []string{}
	}
	parts := strings.Split(val, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// ParseColumnTypes reads "name=type" pairs separated by commas.
func ParseColumnTypes(val string) ([]ColumnType, error) {
	var out []ColumnType
	for _, pair := range splitList(val) {
		name, typ, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, invalid("column type %q: expected name=type", pair)
		}
		out = append(out, ColumnType{Name: strings.TrimSpace(name), Type: strings.TrimSpace(typ)})
	}
	return out, nil
}

// Set assigns one key from its string form. Lists are comma separated and
// column_types uses name=type pairs. The result is validated.
func (c *Global) Set(key, val string) error {
	next := *c
	switch key {
	case "input_path":
		next.InputPath = val
	case "output_path":
		next.OutputPath = val
	case "column_types":
		ct, err := ParseColumnTypes(val)
		if err != nil {
			return err
		}
		next.ColumnTypes = ct
	case "delimiter":
		next.Delimiter = val
	case "na_strings":
		next.NAStrings = strings.Split(val, ",")
	case "replace_char":
		next.ReplaceChar = val
	case "max_levels":
		i, err := strconv.Atoi(val)
		if err != nil {
			return invalid("invalid int for max_levels: %v", val)
		}
		next.MaxLevels = i
	case "corr_threshold":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return invalid("invalid float for corr_threshold: %v", val)
		}
		next.CorrThreshold = f
	case "drop":
		next.Drop = splitList(val)
	case "sheet":
		next.Sheet = val
	case "sheet_index":
		i, err := strconv.Atoi(val)
		if err != nil {
			return invalid("invalid int for sheet_index: %v", val)
		}
		next.SheetIndex = i
	case "frame_output":
		next.FrameOutput = val
	case "max_memory_mb":
		i, err := strconv.Atoi(val)
		if err != nil {
			return invalid("invalid int for max_memory_mb: %v", val)
		}
		next.MaxMemoryMB = i
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}
