package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"altsignal/internal/evo"
	"altsignal/internal/genotype"
	"altsignal/internal/hardware"
	"altsignal/internal/model"
	"altsignal/internal/scape"
	"altsignal/internal/tag"
)

var ErrInvalidConfig = errors.New("invalid config")

// TimeSeed is the SEED value that asks for a seed derived from the clock.
const TimeSeed = -1

type DefaultGroup struct {
	Seed           int64 `toml:"SEED" json:"SEED"`
	Generations    int   `toml:"GENERATIONS" json:"GENERATIONS"`
	PopSize        int   `toml:"POP_SIZE" json:"POP_SIZE"`
	Workers        int   `toml:"WORKERS" json:"WORKERS"`
	StopOnSolution bool  `toml:"STOP_ON_SOLUTION" json:"STOP_ON_SOLUTION"`
}

type EnvironmentGroup struct {
	NumSignalResponses int     `toml:"NUM_SIGNAL_RESPONSES" json:"NUM_SIGNAL_RESPONSES"`
	NumEnvCycles       int     `toml:"NUM_ENV_CYCLES" json:"NUM_ENV_CYCLES"`
	CPUTimePerEnvCycle int     `toml:"CPU_TIME_PER_ENV_CYCLE" json:"CPU_TIME_PER_ENV_CYCLE"`
	SignalSequence     string  `toml:"SIGNAL_SEQUENCE" json:"SIGNAL_SEQUENCE"`
	SignalTag          tag.Tag `toml:"SIGNAL_TAG" json:"SIGNAL_TAG"`
}

type ProgramGroup struct {
	UseFuncRegulation bool    `toml:"USE_FUNC_REGULATION" json:"USE_FUNC_REGULATION"`
	UseGlobalMemory   bool    `toml:"USE_GLOBAL_MEMORY" json:"USE_GLOBAL_MEMORY"`
	MinFuncCount      int     `toml:"MIN_FUNC_CNT" json:"MIN_FUNC_CNT"`
	MaxFuncCount      int     `toml:"MAX_FUNC_CNT" json:"MAX_FUNC_CNT"`
	MinFuncInstCount  int     `toml:"MIN_FUNC_INST_CNT" json:"MIN_FUNC_INST_CNT"`
	MaxFuncInstCount  int     `toml:"MAX_FUNC_INST_CNT" json:"MAX_FUNC_INST_CNT"`
	RegulationStep    float64 `toml:"REGULATION_STEP" json:"REGULATION_STEP"`
	RegulationDecay   float64 `toml:"REGULATION_DECAY" json:"REGULATION_DECAY"`
}

type HardwareGroup struct {
	MaxActiveThreads  int     `toml:"MAX_ACTIVE_THREAD_CNT" json:"MAX_ACTIVE_THREAD_CNT"`
	MaxThreadCapacity int     `toml:"MAX_THREAD_CAPACITY" json:"MAX_THREAD_CAPACITY"`
	MaxCallDepth      int     `toml:"MAX_CALL_DEPTH" json:"MAX_CALL_DEPTH"`
	MinBindThreshold  float64 `toml:"MIN_BIND_THRESH" json:"MIN_BIND_THRESH"`
}

type SelectionGroup struct {
	TournamentSize int `toml:"TOURNAMENT_SIZE" json:"TOURNAMENT_SIZE"`
	EliteCount     int `toml:"ELITE_CNT" json:"ELITE_CNT"`
}

type DataCollectionGroup struct {
	SummaryResolution  int    `toml:"SUMMARY_RESOLUTION" json:"SUMMARY_RESOLUTION"`
	SnapshotResolution int    `toml:"SNAPSHOT_RESOLUTION" json:"SNAPSHOT_RESOLUTION"`
	OutputDir          string `toml:"OUTPUT_DIR" json:"OUTPUT_DIR"`
	Store              string `toml:"STORE" json:"STORE"`
	StoreDSN           string `toml:"STORE_DSN" json:"STORE_DSN"`
}

// Config is the full experiment configuration, one table per group.
type Config struct {
	Default        DefaultGroup        `toml:"DEFAULT_GROUP" json:"DEFAULT_GROUP"`
	Environment    EnvironmentGroup    `toml:"ENVIRONMENT_GROUP" json:"ENVIRONMENT_GROUP"`
	Program        ProgramGroup        `toml:"PROGRAM_GROUP" json:"PROGRAM_GROUP"`
	Hardware       HardwareGroup       `toml:"HARDWARE_GROUP" json:"HARDWARE_GROUP"`
	Selection      SelectionGroup      `toml:"SELECTION_GROUP" json:"SELECTION_GROUP"`
	Mutation       evo.MutationRates   `toml:"MUTATION_GROUP" json:"MUTATION_GROUP"`
	DataCollection DataCollectionGroup `toml:"DATA_COLLECTION_GROUP" json:"DATA_COLLECTION_GROUP"`
}

func Default() Config {
	hw := hardware.DefaultConfig()
	env := scape.DefaultEnvironmentConfig()
	return Config{
		Default: DefaultGroup{
			Seed:        0,
			Generations: 100,
			PopSize:     100,
			Workers:     1,
		},
		Environment: EnvironmentGroup{
			NumSignalResponses: env.NumSignalResponses,
			NumEnvCycles:       env.NumEnvCycles,
			CPUTimePerEnvCycle: env.CPUTimePerEnvCycle,
			SignalSequence:     env.Sequence,
			SignalTag:          env.SignalTag,
		},
		Program: ProgramGroup{
			UseFuncRegulation: hw.UseFuncRegulation,
			UseGlobalMemory:   hw.UseGlobalMemory,
			MinFuncCount:      0,
			MaxFuncCount:      32,
			MinFuncInstCount:  0,
			MaxFuncInstCount:  128,
			RegulationStep:    hw.RegulationStep,
			RegulationDecay:   hw.RegulationDecay,
		},
		Hardware: HardwareGroup{
			MaxActiveThreads:  hw.MaxActiveThreads,
			MaxThreadCapacity: hw.MaxThreadCapacity,
			MaxCallDepth:      hw.MaxCallDepth,
			MinBindThreshold:  hw.MinBindThreshold,
		},
		Selection: SelectionGroup{
			TournamentSize: 7,
			EliteCount:     1,
		},
		Mutation: evo.DefaultMutationRates(),
		DataCollection: DataCollectionGroup{
			SummaryResolution:  10,
			SnapshotResolution: 100,
			OutputDir:          "output",
			Store:              "memory",
			StoreDSN:           "altsignal.db",
		},
	}
}

// Load reads a TOML or JSON file (by extension, TOML otherwise) over the
// defaults. Unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("decode %s: %w", path, err)
		}
	} else {
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("decode %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, key := range undecoded {
				keys[i] = key.String()
			}
			return Config{}, fmt.Errorf("%w: unknown keys in %s: %s", ErrInvalidConfig, path, strings.Join(keys, ", "))
		}
	}
	return cfg, nil
}

func (c Config) WriteTOML(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

func (c Config) Validate() error {
	if c.Default.Seed < TimeSeed {
		return fmt.Errorf("%w: SEED must be >= -1", ErrInvalidConfig)
	}
	if c.Default.Generations <= 0 {
		return fmt.Errorf("%w: GENERATIONS must be > 0", ErrInvalidConfig)
	}
	if c.Default.PopSize <= 0 {
		return fmt.Errorf("%w: POP_SIZE must be > 0", ErrInvalidConfig)
	}
	if c.Default.Workers < 0 {
		return fmt.Errorf("%w: WORKERS must be >= 0", ErrInvalidConfig)
	}
	if c.Selection.TournamentSize <= 0 {
		return fmt.Errorf("%w: TOURNAMENT_SIZE must be > 0", ErrInvalidConfig)
	}
	if c.Selection.EliteCount < 0 || c.Selection.EliteCount > c.Default.PopSize {
		return fmt.Errorf("%w: ELITE_CNT must be in [0, POP_SIZE]", ErrInvalidConfig)
	}
	if c.DataCollection.SummaryResolution < 0 || c.DataCollection.SnapshotResolution < 0 {
		return fmt.Errorf("%w: SUMMARY_RESOLUTION and SNAPSHOT_RESOLUTION must be >= 0", ErrInvalidConfig)
	}
	switch c.DataCollection.Store {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("%w: unsupported STORE %q", ErrInvalidConfig, c.DataCollection.Store)
	}
	if err := c.Bounds().Validate(); err != nil {
		return err
	}
	if err := c.HardwareConfig().Validate(); err != nil {
		return err
	}
	if err := c.EnvironmentConfig().Validate(); err != nil {
		return err
	}
	return c.Mutation.Validate()
}

// Resolve replaces a SEED of -1 with a seed taken from now.
func (c Config) Resolve(now time.Time) Config {
	if c.Default.Seed == TimeSeed {
		c.Default.Seed = now.UnixNano() & (1<<62 - 1)
	}
	return c
}

func (c Config) Bounds() genotype.Bounds {
	return genotype.Bounds{
		MinFuncCount:     c.Program.MinFuncCount,
		MaxFuncCount:     c.Program.MaxFuncCount,
		MinFuncInstCount: c.Program.MinFuncInstCount,
		MaxFuncInstCount: c.Program.MaxFuncInstCount,
	}
}

func (c Config) HardwareConfig() hardware.Config {
	return hardware.Config{
		MaxActiveThreads:  c.Hardware.MaxActiveThreads,
		MaxThreadCapacity: c.Hardware.MaxThreadCapacity,
		MaxCallDepth:      c.Hardware.MaxCallDepth,
		MinBindThreshold:  c.Hardware.MinBindThreshold,
		UseGlobalMemory:   c.Program.UseGlobalMemory,
		UseFuncRegulation: c.Program.UseFuncRegulation,
		RegulationStep:    c.Program.RegulationStep,
		RegulationDecay:   c.Program.RegulationDecay,
		NumResponses:      c.Environment.NumSignalResponses,
	}
}

// EnvironmentConfig seeds a random signal sequence from SEED.
func (c Config) EnvironmentConfig() scape.EnvironmentConfig {
	return scape.EnvironmentConfig{
		NumSignalResponses: c.Environment.NumSignalResponses,
		NumEnvCycles:       c.Environment.NumEnvCycles,
		CPUTimePerEnvCycle: c.Environment.CPUTimePerEnvCycle,
		SignalTag:          c.Environment.SignalTag,
		Sequence:           c.Environment.SignalSequence,
		Seed:               c.Default.Seed,
	}
}

// Parameters flattens every value in declaration order.
func (c Config) Parameters() []model.Parameter {
	var params []model.Parameter
	groups := reflect.ValueOf(c)
	for i := 0; i < groups.NumField(); i++ {
		groupName := tomlName(groups.Type().Field(i))
		group := groups.Field(i)
		for j := 0; j < group.NumField(); j++ {
			params = append(params, model.Parameter{
				Group: groupName,
				Name:  tomlName(group.Type().Field(j)),
				Value: fmt.Sprint(group.Field(j).Interface()),
			})
		}
	}
	return params
}

// Set assigns one value by name, either "NAME" or "GROUP.NAME".
func (c *Config) Set(name, value string) error {
	groupName, valueName, qualified := strings.Cut(name, ".")
	if !qualified {
		valueName = groupName
		groupName = ""
	}

	groups := reflect.ValueOf(c).Elem()
	for i := 0; i < groups.NumField(); i++ {
		if groupName != "" && tomlName(groups.Type().Field(i)) != groupName {
			continue
		}
		group := groups.Field(i)
		for j := 0; j < group.NumField(); j++ {
			if tomlName(group.Type().Field(j)) != valueName {
				continue
			}
			if err := setField(group.Field(j), value); err != nil {
				return fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, name, value, err)
			}
			return nil
		}
	}
	return fmt.Errorf("%w: unknown setting %s", ErrInvalidConfig, name)
}

func setField(field reflect.Value, value string) error {
	if unmarshaler, ok := field.Addr().Interface().(interface{ UnmarshalText([]byte) error }); ok {
		return unmarshaler.UnmarshalText([]byte(value))
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		v, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(v)
	case reflect.Int, reflect.Int64:
		v, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(v)
	case reflect.Float64:
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(v)
	default:
		return fmt.Errorf("unsupported kind %s", field.Kind())
	}
	return nil
}

func tomlName(field reflect.StructField) string {
	name, _, _ := strings.Cut(field.Tag.Get("toml"), ",")
	if name == "" {
		return field.Name
	}
	return name
}
