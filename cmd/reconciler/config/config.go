package config

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"po-reconciliation-service/internal/matcher"
	"po-reconciliation-service/internal/parsers"
	"po-reconciliation-service/internal/reconciler"
	"po-reconciliation-service/internal/reporter"
	"po-reconciliation-service/pkg/errors"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// AsOfLayout is the accepted layout of the --as-of flag
const AsOfLayout = "2006-01-02"

// CreateTableConfigs creates load configurations for the four input tables.
// Defaults can be adjusted per table under the "tables.<name>" config key:
//
//	tables:
//	  master:
//	    sheet: Sheet2
//	    column_aliases:
//	      item_code: item_id
//	  sr:
//	    delimiter: ";"
func CreateTableConfigs(v *viper.Viper) (map[string]*parsers.TableConfig, error) {
	configs := parsers.DefaultTableConfigs()
	if v == nil {
		return configs, nil
	}

	for name, config := range configs {
		prefix := "tables." + name + "."

		if sheet := v.GetString(prefix + "sheet"); sheet != "" {
			config.Sheet = sheet
		}

		if delimiter := v.GetString(prefix + "delimiter"); delimiter != "" {
			r, size := utf8.DecodeRuneInString(delimiter)
			if size != len(delimiter) {
				return nil, errors.ConfigurationError(errors.CodeInvalidConfig, prefix+"delimiter", delimiter,
					fmt.Errorf("delimiter must be a single character"))
			}
			config.Delimiter = r
		}

		for source, target := range v.GetStringMapString(prefix + "column_aliases") {
			config.ColumnAliases[source] = target
		}

		config.DateColumns = append(config.DateColumns, v.GetStringSlice(prefix+"date_columns")...)

		if err := config.Validate(); err != nil {
			return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "tables."+name, nil, err)
		}
	}

	return configs, nil
}

// ParseAsOf parses the --as-of date. An empty value means today.
func ParseAsOf(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(AsOfLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, errors.ConfigurationError(errors.CodeInvalidConfig, "as-of", value, err)
	}
	return t, nil
}

// CreateEngineConfig creates a reconciler configuration. A zero asOf uses the wall clock.
func CreateEngineConfig(asOf time.Time, cityAliases map[string]string, showProgress bool) (*reconciler.Config, error) {
	config := reconciler.DefaultConfig()

	config.Matching = matcher.DefaultConfig()
	for raw, canonical := range cityAliases {
		config.Matching.CityAliases[raw] = canonical
	}

	if !asOf.IsZero() {
		config.Now = reconciler.FixedClock(asOf)
	}
	config.ProgressReporting = showProgress

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "reconciler", nil, err)
	}
	return config, nil
}

// CreateReportConfig creates a report configuration for the specified output format and table
func CreateReportConfig(format, table string, useColors bool) (*reporter.ReportConfig, error) {
	config := reporter.DefaultReportConfig()
	config.Format = reporter.OutputFormat(strings.ToLower(strings.TrimSpace(format)))
	config.UseColors = useColors

	if table != "" {
		config.Table = table
	}

	switch config.Format {
	case reporter.FormatConsole:
		config.IncludeLoadStats = true
	case reporter.FormatJSON:
		config.IncludeLoadStats = true
		config.UseColors = false
	case reporter.FormatCSV:
		config.CSVHeaders = true
		config.CSVDelimiter = ','
		config.UseColors = false
	case reporter.FormatXLSX:
		config.UseColors = false
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "output", format, err)
	}
	return config, nil
}

// cityAliasFile is the YAML layout of a city alias file. Either a top-level
// city_aliases map or a bare mapping is accepted.
type cityAliasFile struct {
	CityAliases map[string]string `yaml:"city_aliases"`
}

// LoadCityAliases reads city alias overrides from a YAML file
func LoadCityAliases(fs afero.Fs, path string) (map[string]string, error) {
	if path == "" {
		return map[string]string{}, nil
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.FileError(errors.CodeFileNotFound, path, err)
	}

	var keys map[string]interface{}
	if err := yaml.Unmarshal(data, &keys); err != nil {
		return nil, invalidAliasFile(path, err)
	}

	if _, ok := keys["city_aliases"]; ok {
		var wrapped cityAliasFile
		if err := yaml.Unmarshal(data, &wrapped); err != nil {
			return nil, invalidAliasFile(path, err)
		}
		if wrapped.CityAliases == nil {
			return map[string]string{}, nil
		}
		return wrapped.CityAliases, nil
	}

	aliases := make(map[string]string)
	if err := yaml.Unmarshal(data, &aliases); err != nil {
		return nil, invalidAliasFile(path, err)
	}
	return aliases, nil
}

func invalidAliasFile(path string, err error) error {
	return errors.ConfigurationError(errors.CodeInvalidConfig, "city_aliases", path, err).
		WithSuggestion("use a YAML mapping of city name to warehouse city, e.g. 'surat: ahmedabad'")
}

// MergeCityAliases merges alias maps; later maps win
func MergeCityAliases(maps ...map[string]string) map[string]string {
	merged := make(map[string]string)
	for _, m := range maps {
		for raw, canonical := range m {
			merged[raw] = canonical
		}
	}
	return merged
}

// ResolveCityAliases combines the city_aliases config key with an optional alias file
func ResolveCityAliases(fs afero.Fs, v *viper.Viper, path string) (map[string]string, error) {
	var fromConfig map[string]string
	if v != nil {
		fromConfig = v.GetStringMapString("city_aliases")
	}

	fromFile, err := LoadCityAliases(fs, path)
	if err != nil {
		return nil, err
	}

	aliases := MergeCityAliases(fromConfig, fromFile)
	if err := (&matcher.Config{CityAliases: aliases}).Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "city_aliases", nil, err)
	}
	return aliases, nil
}
