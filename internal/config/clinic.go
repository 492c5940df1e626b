package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ClinicConfig holds operational settings the front desk tunes without a
// redeploy: default tax rate, bookable hours and reminder lead time.
type ClinicConfig struct {
	DefaultTaxRate      float64 `mapstructure:"defaultTaxRate"`
	InvoiceDueDays      int     `mapstructure:"invoiceDueDays"`
	OpeningMinute       int     `mapstructure:"openingMinute"`
	ClosingMinute       int     `mapstructure:"closingMinute"`
	ReminderLeadHours   int     `mapstructure:"reminderLeadHours"`
	DefaultDurationMin  int     `mapstructure:"defaultDurationMin"`
	MaxAppointmentHours int     `mapstructure:"maxAppointmentHours"`
}

func DefaultClinicConfig() ClinicConfig {
	return ClinicConfig{
		DefaultTaxRate:      0.08,
		InvoiceDueDays:      30,
		OpeningMinute:       8 * 60,
		ClosingMinute:       18 * 60,
		ReminderLeadHours:   24,
		DefaultDurationMin:  30,
		MaxAppointmentHours: 8,
	}
}

// ClinicConfigHolder exposes the current clinic settings with hot reload.
type ClinicConfigHolder struct {
	current atomic.Value // holds ClinicConfig
}

func NewClinicConfigHolder() (*ClinicConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("clinic")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/dentora/config") // Volume-mounted config
	v.AddConfigPath("/etc/dentora")            // System config
	v.AddConfigPath(".")                       // Current directory (dev mode)

	v.SetEnvPrefix("DENTORA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultClinicConfig()
		v.SetDefault("clinic.defaultTaxRate", defaults.DefaultTaxRate)
		v.SetDefault("clinic.invoiceDueDays", defaults.InvoiceDueDays)
		v.SetDefault("clinic.openingMinute", defaults.OpeningMinute)
		v.SetDefault("clinic.closingMinute", defaults.ClosingMinute)
		v.SetDefault("clinic.reminderLeadHours", defaults.ReminderLeadHours)
		v.SetDefault("clinic.defaultDurationMin", defaults.DefaultDurationMin)
		v.SetDefault("clinic.maxAppointmentHours", defaults.MaxAppointmentHours)
	}

	var cfg ClinicConfig
	if err := v.UnmarshalKey("clinic", &cfg); err != nil {
		return nil, err
	}
	if err := validateClinicConfig(cfg); err != nil {
		return nil, err
	}

	holder := &ClinicConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated ClinicConfig
		if err := v.UnmarshalKey("clinic", &updated); err != nil {
			log.Printf("[clinic-config] reload failed: %v", err)
			return
		}
		if err := validateClinicConfig(updated); err != nil {
			log.Printf("[clinic-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[clinic-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *ClinicConfigHolder) Get() ClinicConfig {
	return h.current.Load().(ClinicConfig)
}

// StaticClinicConfigHolder wraps a fixed configuration without file
// watching. Tests and one-shot tools use this.
func StaticClinicConfigHolder(cfg ClinicConfig) *ClinicConfigHolder {
	h := &ClinicConfigHolder{}
	h.current.Store(cfg)
	return h
}

func validateClinicConfig(cfg ClinicConfig) error {
	if cfg.DefaultTaxRate < 0 || cfg.DefaultTaxRate >= 1 {
		return errors.New("clinic.defaultTaxRate must be a fraction in [0, 1)")
	}
	if cfg.InvoiceDueDays <= 0 {
		return errors.New("clinic.invoiceDueDays must be positive")
	}
	if cfg.OpeningMinute < 0 || cfg.ClosingMinute > 24*60 || cfg.OpeningMinute >= cfg.ClosingMinute {
		return errors.New("clinic opening hours are out of range")
	}
	return nil
}
