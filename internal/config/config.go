// Package config loads the importer's ImportParameter from
// environment variables, with an optional YAML override file, following
// an env-first loading pattern with debug-level logging of found/default
// values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	importerrors "github.com/osmscout-go/mapimport/internal/pkg/errors"
	"github.com/osmscout-go/mapimport/internal/pkg/logger"
)

// Router mirrors ImportParameter::Router from original_source/Import.h: a
// vehicle mask and a filename base, with the three derived file names.
type Router struct {
	VehicleMask  uint8
	FilenameBase string
}

func (r Router) DataFilename() string    { return r.FilenameBase + ".dat" }
func (r Router) VariantFilename() string { return r.FilenameBase + "2.dat" }
func (r Router) IndexFilename() string   { return r.FilenameBase + ".idx" }

// WayOptimizeMethod matches TransPolygon::OptimizeMethod from
// original_source, used by the low-zoom way/area optimization stages.
type WayOptimizeMethod string

const (
	WayOptimizeNone               WayOptimizeMethod = "none"
	WayOptimizeQuality            WayOptimizeMethod = "quality"
	WayOptimizeFastDouglasPeucker WayOptimizeMethod = "fast_douglas_peucker"
)

// ImportParameter is the full configuration surface for one import run,
// matching original_source/libosmscout-import/include/osmscout/import/Import.h
// field-for-field.
type ImportParameter struct {
	Mapfiles             []string
	Typefile             string
	DestinationDirectory string

	StartStep int
	EndStep   int
	Eco       bool

	Router []Router

	StrictAreas bool

	SortObjects   bool
	SortBlockSize int
	SortTileMag   int

	NumericIndexPageSize int

	RawCoordBlockSize int

	RawNodeDataMemoryMapped bool

	RawWayIndexMemoryMapped bool
	RawWayDataMemoryMapped  bool
	RawWayIndexCacheSize    int
	RawWayBlockSize         int

	CoordDataMemoryMapped bool
	CoordIndexCacheSize   int

	AreaDataMemoryMapped bool
	AreaDataCacheSize    int

	WayDataMemoryMapped bool
	WayDataCacheSize    int

	AreaAreaIndexMaxMag int

	AreaNodeMinMag               int
	AreaNodeIndexMinFillRate     float64
	AreaNodeIndexCellSizeAverage int
	AreaNodeIndexCellSizeMax     int

	AreaWayMinMag               int
	AreaWayIndexMaxLevel        int
	AreaWayIndexCellSizeAverage int
	AreaWayIndexCellSizeMax     int

	WaterIndexMinMag int
	WaterIndexMaxMag int

	OptimizationMaxWayCount     int
	OptimizationMaxMag          int
	OptimizationMinMag          int
	OptimizationCellSizeAverage int
	OptimizationCellSizeMax     int
	OptimizationWayMethod       WayOptimizeMethod

	RouteNodeBlockSize int

	AssumeLand bool

	LangOrder    []string
	AltLangOrder []string

	// Ambient additions beyond the original C++ surface: where the
	// importer should publish/consume cross-process signals, and which
	// ledger backend persists run history.
	RedisAddr    string
	RedisChannel string
	LedgerDriver string // "sqlite" | "postgres"
	LedgerDSN    string
}

// DestDir, DataFile, and IsEco implement stage.Parameter.
func (p *ImportParameter) DestDir() string { return p.DestinationDirectory }

func (p *ImportParameter) DataFile(base string) string {
	return strings.TrimRight(p.DestinationDirectory, "/") + "/" + base
}

func (p *ImportParameter) IsEco() bool { return p.Eco }

// StartEndStep lets internal/orchestrator restrict execution to the
// configured [StartStep, EndStep] range without importing this package.
func (p *ImportParameter) StartEndStep() (int, int) { return p.StartStep, p.EndStep }

// Default returns an ImportParameter populated with the same defaults as
// the original libosmscout ImportParameter constructor.
func Default() *ImportParameter {
	return &ImportParameter{
		StartStep:                    1,
		EndStep:                      24,
		SortObjects:                  true,
		SortBlockSize:                40000000,
		SortTileMag:                  14,
		NumericIndexPageSize:         4096,
		RawCoordBlockSize:            60000000,
		RawWayIndexCacheSize:         10000,
		RawWayBlockSize:              500000,
		CoordIndexCacheSize:          1000000,
		AreaDataCacheSize:            0,
		WayDataCacheSize:             0,
		AreaAreaIndexMaxMag:          17,
		AreaNodeMinMag:               10,
		AreaNodeIndexMinFillRate:     0.1,
		AreaNodeIndexCellSizeAverage: 64,
		AreaNodeIndexCellSizeMax:     100,
		AreaWayMinMag:                10,
		AreaWayIndexMaxLevel:         16,
		AreaWayIndexCellSizeAverage:  64,
		AreaWayIndexCellSizeMax:      100,
		WaterIndexMinMag:             4,
		WaterIndexMaxMag:             14,
		OptimizationMaxWayCount:      1000000,
		OptimizationMaxMag:           10,
		OptimizationMinMag:           0,
		OptimizationCellSizeAverage:  64,
		OptimizationCellSizeMax:      100,
		OptimizationWayMethod:        WayOptimizeFastDouglasPeucker,
		RouteNodeBlockSize:           500000,
		AssumeLand:                   true,
		LangOrder:                    []string{"#"},
		LedgerDriver:                 "sqlite",
	}
}

// Validate enforces the pre-flight invariants before a run starts.
func (p *ImportParameter) Validate() error {
	if p.DestinationDirectory == "" {
		return fmt.Errorf("destination directory required: %w", importerrors.ErrConfigViolation)
	}
	if len(p.Mapfiles) == 0 {
		return fmt.Errorf("at least one mapfile required: %w", importerrors.ErrConfigViolation)
	}
	if p.Typefile == "" {
		return fmt.Errorf("type definition file required: %w", importerrors.ErrConfigViolation)
	}
	if p.StartStep < 1 || p.EndStep < p.StartStep {
		return fmt.Errorf("invalid step range [%d,%d]: %w", p.StartStep, p.EndStep, importerrors.ErrConfigViolation)
	}
	if p.Eco && (p.StartStep != 1) {
		return fmt.Errorf("eco mode requires starting from step 1 so temporary-file dependents are known: %w", importerrors.ErrConfigViolation)
	}
	if p.AreaWayMinMag < p.OptimizationMaxMag {
		return fmt.Errorf("area way min mag (%d) must not be below optimization max mag (%d): %w", p.AreaWayMinMag, p.OptimizationMaxMag, importerrors.ErrConfigViolation)
	}
	if p.WaterIndexMinMag > p.WaterIndexMaxMag {
		return fmt.Errorf("water index min mag (%d) exceeds max mag (%d): %w", p.WaterIndexMinMag, p.WaterIndexMaxMag, importerrors.ErrConfigViolation)
	}
	if p.AreaNodeIndexMinFillRate < 0 || p.AreaNodeIndexMinFillRate > 1 {
		return fmt.Errorf("area node index min fill rate must be in [0,1], got %f: %w", p.AreaNodeIndexMinFillRate, importerrors.ErrConfigViolation)
	}
	return nil
}

// LoadFromEnv overlays environment variables onto Default(), then, if
// MAPIMPORT_CONFIG_FILE is set, overlays a YAML file on top of that (YAML
// wins, matching layered configuration approach).
func LoadFromEnv(log *logger.Logger) (*ImportParameter, error) {
	p := Default()

	if v := os.Getenv("MAPIMPORT_MAPFILES"); v != "" {
		p.Mapfiles = splitNonEmpty(v, ",")
	}
	p.Typefile = envString(log, "MAPIMPORT_TYPEFILE", p.Typefile)
	p.DestinationDirectory = envString(log, "MAPIMPORT_DEST_DIR", p.DestinationDirectory)
	p.StartStep = envInt(log, "MAPIMPORT_START_STEP", p.StartStep)
	p.EndStep = envInt(log, "MAPIMPORT_END_STEP", p.EndStep)
	p.Eco = envBool(log, "MAPIMPORT_ECO", p.Eco)
	p.StrictAreas = envBool(log, "MAPIMPORT_STRICT_AREAS", p.StrictAreas)
	p.RedisAddr = envString(log, "MAPIMPORT_REDIS_ADDR", p.RedisAddr)
	p.RedisChannel = envString(log, "MAPIMPORT_REDIS_CHANNEL", p.RedisChannel)
	p.LedgerDriver = envString(log, "MAPIMPORT_LEDGER_DRIVER", p.LedgerDriver)
	p.LedgerDSN = envString(log, "MAPIMPORT_LEDGER_DSN", p.LedgerDSN)

	if v := os.Getenv("MAPIMPORT_LANG_ORDER"); v != "" {
		p.LangOrder = splitNonEmpty(v, ",")
	}
	if v := os.Getenv("MAPIMPORT_ALT_LANG_ORDER"); v != "" {
		p.AltLangOrder = splitNonEmpty(v, ",")
	}

	if path := os.Getenv("MAPIMPORT_CONFIG_FILE"); path != "" {
		if err := overlayYAML(p, path); err != nil {
			return nil, err
		}
	}

	return p, nil
}

func overlayYAML(p *ImportParameter, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, importerrors.ErrIO)
	}
	if err := yaml.Unmarshal(raw, p); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, importerrors.ErrFormatViolation)
	}
	return nil
}

func splitNonEmpty(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envString(log *logger.Logger, key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if log != nil {
			log.Debug("config: found env value", "key", key)
		}
		return v
	}
	if log != nil {
		log.Debug("config: using default", "key", key, "default", def)
	}
	return def
}

func envInt(log *logger.Logger, key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			if log != nil {
				log.Debug("config: found env value", "key", key)
			}
			return n
		}
		if log != nil {
			log.Warn("config: invalid int env value, using default", "key", key, "value", v)
		}
	}
	return def
}

func envBool(log *logger.Logger, key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
