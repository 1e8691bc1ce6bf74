package config

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/spf13/viper"
)

// AppConfig holds the configuration for the application.
// Tags used:
// - mapstructure: used by viper to unmarshal
// - default: default value to set if missing
// - required: if "true", error if missing
type AppConfig struct {
	// Environment specifies the runtime environment (e.g., development, production).
	Environment string `mapstructure:"APP_ENV" default:"development"`
	// LogLevel defines the logging verbosity (e.g., debug, info, error).
	LogLevel string `mapstructure:"LOG_LEVEL" default:"info"`
	// ServerPort is the port where the server will listen.
	ServerPort int `mapstructure:"SERVER_PORT" default:"8080"`

	// SheetPath is the path of the CSV sheet acting as the tracking database.
	SheetPath string `mapstructure:"SHEET_PATH" default:"tracker.csv"`
	// RedisURL enables the short-lived carrier payload cache when set.
	RedisURL string `mapstructure:"REDIS_URL"`

	// PollIntervalHours is the cadence of the polling scheduler.
	PollIntervalHours int `mapstructure:"POLL_INTERVAL_HOURS" default:"6"`
	// WorkerLimit bounds the number of simultaneous outbound carrier requests.
	WorkerLimit int `mapstructure:"WORKER_LIMIT" default:"3"`
	// EnableAddressValidation toggles destination address enrichment.
	EnableAddressValidation bool `mapstructure:"ENABLE_ADDRESS_VALIDATION" default:"false"`
	// EnableEstimateFallback toggles the transit-time estimate fallback.
	EnableEstimateFallback bool `mapstructure:"ENABLE_ESTIMATE_FALLBACK" default:"false"`

	// Origin holds the shipper origin address used for transit-time estimates.
	Origin OriginConfig `mapstructure:",squash"`

	// UPS holds UPS API credentials and endpoints.
	UPS UPSConfig `mapstructure:",squash"`
	// USPS holds USPS API credentials and endpoints.
	USPS USPSConfig `mapstructure:",squash"`
	// DHL holds DHL API credentials and endpoints.
	DHL DHLConfig `mapstructure:",squash"`

	// ShipStation holds the upstream shipment feed configuration.
	ShipStation ShipStationConfig `mapstructure:",squash"`
}

// OriginConfig holds the origin address for transit-time estimates.
type OriginConfig struct {
	// Street is the origin street line.
	Street string `mapstructure:"ORIGIN_STREET"`
	// City is the origin city.
	City string `mapstructure:"ORIGIN_CITY"`
	// State is the origin state or province.
	State string `mapstructure:"ORIGIN_STATE"`
	// PostalCode is the origin postal code; estimates are skipped without it.
	PostalCode string `mapstructure:"ORIGIN_ZIP"`
}

// UPSConfig holds the UPS OAuth client credentials.
type UPSConfig struct {
	// BaseURL is the UPS API host.
	BaseURL string `mapstructure:"UPS_BASE_URL" default:"https://onlinetools.ups.com"`
	// ClientID is the OAuth client id.
	ClientID string `mapstructure:"UPS_CLIENT_ID" required:"true"`
	// ClientSecret is the OAuth client secret.
	ClientSecret string `mapstructure:"UPS_CLIENT_SECRET" required:"true"`
}

// USPSConfig holds the USPS Web Tools credentials.
type USPSConfig struct {
	// BaseURL is the USPS Web Tools endpoint.
	BaseURL string `mapstructure:"USPS_BASE_URL" default:"https://secure.shippingapis.com/ShippingAPI.dll"`
	// UserID is the Web Tools user id.
	UserID string `mapstructure:"USPS_USER_ID"`
}

// DHLConfig holds the DHL unified tracking credentials.
type DHLConfig struct {
	// BaseURL is the DHL API host.
	BaseURL string `mapstructure:"DHL_BASE_URL" default:"https://api-eu.dhl.com"`
	// APIKey is the DHL-API-Key header value.
	APIKey string `mapstructure:"DHL_API_KEY"`
}

// ShipStationConfig holds the upstream order feed configuration.
type ShipStationConfig struct {
	// BaseURL is the ShipStation V2 API host.
	BaseURL string `mapstructure:"SHIPSTATION_BASE_URL" default:"https://api.shipstation.com"`
	// APIKey is the API-Key header value.
	APIKey string `mapstructure:"SHIPSTATION_API_KEY" required:"true"`
	// SeedWindowDays bounds how far back the seeder looks for shipments.
	SeedWindowDays int `mapstructure:"SEED_WINDOW_DAYS" default:"30"`
	// SeedMaxPages bounds how many feed pages one seeding pass consumes.
	SeedMaxPages int `mapstructure:"SEED_MAX_PAGES" default:"20"`
	// SeedPageSize is the feed page size.
	SeedPageSize int `mapstructure:"SEED_PAGE_SIZE" default:"100"`
}

// Load loads configuration from .env files and environment variables.
func Load(path string) (*AppConfig, error) {
	v := viper.New()

	v.AutomaticEnv()

	v.AddConfigPath(path)
	v.SetConfigName(".env")
	v.SetConfigType("env")

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config AppConfig

	if err := processTags(v, &config); err != nil {
		return nil, err
	}

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := validateRequired(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// processTags iterates over the struct fields and sets default values in Viper.
func processTags(v *viper.Viper, config interface{}) error {
	val := reflect.ValueOf(config)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	t := val.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Type.Kind() == reflect.Struct {
			if err := processTags(v, val.Field(i).Addr().Interface()); err != nil {
				return err
			}
			continue
		}

		key := field.Tag.Get("mapstructure")
		defaultValue := field.Tag.Get("default")

		if key != "" {
			v.BindEnv(key)
		}

		if key != "" && defaultValue != "" {
			v.SetDefault(key, defaultValue)
		}
	}
	return nil
}

// validateRequired checks if fields marked as required have non-zero values.
func validateRequired(config interface{}) error {
	val := reflect.ValueOf(config)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	t := val.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Type.Kind() == reflect.Struct {
			if err := validateRequired(val.Field(i).Addr().Interface()); err != nil {
				return err
			}
			continue
		}

		required := field.Tag.Get("required")
		if required == "true" {
			value := val.Field(i)
			if isZero(value) {
				key := field.Tag.Get("mapstructure")
				return fmt.Errorf("missing required configuration: %s", key)
			}
		}
	}
	return nil
}

// isZero checks if a reflect.Value is the zero value for its type.
func isZero(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return v.String() == ""
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Slice, reflect.Map:
		return v.Len() == 0
	default:
		return v.IsZero()
	}
}
