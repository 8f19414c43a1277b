package profiling

import (
	"fmt"
	"strings"
	"time"

	"github.com/grafana/pyroscope-go"
	"github.com/tutorlink/tutorlink-api/config"
	"github.com/tutorlink/tutorlink-api/pkg/logger"
	"go.uber.org/zap"
)

// Identity labels the profile stream so one Pyroscope tenant can hold
// every deployment of the service side by side.
type Identity struct {
	Service     string
	Namespace   string
	Version     string
	InstanceID  string
	Environment string
}

var sampleTypes = map[string][]pyroscope.ProfileType{
	"cpu":           {pyroscope.ProfileCPU},
	"alloc_space":   {pyroscope.ProfileAllocSpace},
	"alloc_objects": {pyroscope.ProfileAllocObjects},
	"goroutines":    {pyroscope.ProfileGoroutines},
	"mutex":         {pyroscope.ProfileMutexCount, pyroscope.ProfileMutexDuration},
	"block":         {pyroscope.ProfileBlockCount, pyroscope.ProfileBlockDuration},
}

// Start begins continuous profiling when enabled in config. The returned
// stop function flushes and shuts the profiler down.
func Start(cfg config.ProfilingConfig, id Identity) (func(), error) {
	if !cfg.Enabled {
		logger.Info("Continuous profiling disabled")
		return func() {}, nil
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("profiling endpoint is required when profiling is enabled")
	}

	uploadInterval := time.Duration(cfg.UploadIntervalSeconds) * time.Second
	if uploadInterval <= 0 {
		uploadInterval = 15 * time.Second
	}

	types, err := resolveSampleTypes(cfg.SampleTypes)
	if err != nil {
		return nil, err
	}

	appName := strings.TrimSpace(cfg.AppName)
	if appName == "" {
		appName = id.Service
	}

	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: appName,
		ServerAddress:   endpoint,
		UploadRate:      uploadInterval,
		ProfileTypes:    types,
		Tags: map[string]string{
			"namespace":       id.Namespace,
			"environment":     id.Environment,
			"service_version": id.Version,
			"instance":        id.InstanceID,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start profiler: %w", err)
	}

	logger.Info("Continuous profiling initialized",
		zap.String("application_name", appName),
		zap.String("endpoint", endpoint),
		zap.String("sample_types", cfg.SampleTypes),
		zap.Duration("upload_interval", uploadInterval),
	)

	return func() {
		if stopErr := profiler.Stop(); stopErr != nil {
			logger.Error("Failed to stop profiler", zap.Error(stopErr))
		}
	}, nil
}

// resolveSampleTypes maps the comma-separated config value onto pyroscope
// profile types; an empty value selects everything.
func resolveSampleTypes(value string) ([]pyroscope.ProfileType, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return allSampleTypes(), nil
	}

	var types []pyroscope.ProfileType
	seen := make(map[pyroscope.ProfileType]bool)

	for _, raw := range strings.Split(value, ",") {
		key := strings.ToLower(strings.TrimSpace(raw))
		if key == "" {
			continue
		}

		mapped, ok := sampleTypes[key]
		if !ok {
			return nil, fmt.Errorf("unsupported profiling sample type %q", key)
		}

		for _, t := range mapped {
			if !seen[t] {
				types = append(types, t)
				seen[t] = true
			}
		}
	}

	if len(types) == 0 {
		return allSampleTypes(), nil
	}
	return types, nil
}

func allSampleTypes() []pyroscope.ProfileType {
	return []pyroscope.ProfileType{
		pyroscope.ProfileCPU,
		pyroscope.ProfileAllocSpace,
		pyroscope.ProfileAllocObjects,
		pyroscope.ProfileGoroutines,
		pyroscope.ProfileMutexCount,
		pyroscope.ProfileMutexDuration,
		pyroscope.ProfileBlockCount,
		pyroscope.ProfileBlockDuration,
	}
}
