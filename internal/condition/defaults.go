package condition

import (
	"net/http"
	"time"

	"github.com/tgifai/teleworker/internal/config"
)

const (
	KeyExtreme        = "/condition/extreme"
	KeyExtremeFear    = "/condition/extreme-fear"
	KeyExtremeGreed   = "/condition/extreme-greed"
	KeyWakeUp         = "/condition/prayer/wake-up"
	KeyWakeUpSunrise  = "/condition/prayer/wake-up-sunrise"
	KeyFridayPrayer   = "/condition/prayer/friday-prayer"
	KeyMonthlyMeeting = "/condition/meetings/monthly"
)

// legacyAliases keeps refs stored by older deployments resolvable.
var legacyAliases = map[string]string{
	"/microservices/fng/extreme":            KeyExtreme,
	"/microservices/fng/extreme-fear":       KeyExtremeFear,
	"/microservices/fng/extreme-greed":      KeyExtremeGreed,
	"/microservices/prayer/wake-up":         KeyWakeUp,
	"/microservices/prayer/wake-up-sunrise": KeyWakeUpSunrise,
	"/microservices/prayer/friday-prayer":   KeyFridayPrayer,
	"/microservices/meetings/monthly":       KeyMonthlyMeeting,
}

// RegisterDefaults installs the built-in providers. zone is the local zone
// prayer times and calendar conditions are computed in.
func RegisterDefaults(reg *Registry, cfg config.ConditionsConfig, zone *time.Location, client *http.Client) {
	fng := NewFNGSource(cfg.FNG.URL, client)
	reg.Register(KeyExtreme, NewExtremeProvider(fng))
	reg.Register(KeyExtremeFear, NewExtremeFearProvider(fng))
	reg.Register(KeyExtremeGreed, NewExtremeGreedProvider(fng))

	prayer := &PrayerSource{
		URL:     cfg.Prayer.URL,
		City:    cfg.Prayer.City,
		Country: cfg.Prayer.Country,
		Method:  cfg.Prayer.Method,
		Zone:    zone,
		Client:  client,
	}
	friday := time.Friday
	reg.Register(KeyWakeUp, &PrayerAlarm{Source: prayer, Prayer: "Fajr", Offset: 5 * time.Minute})
	reg.Register(KeyWakeUpSunrise, &PrayerAlarm{Source: prayer, Prayer: "Sunrise", Offset: 10 * time.Minute})
	reg.Register(KeyFridayPrayer, &PrayerAlarm{Source: prayer, Prayer: "Dhuhr", Offset: 30 * time.Minute, OnlyOn: &friday})

	reg.Register(KeyMonthlyMeeting, &LastThursday{Zone: zone})

	for alias, key := range legacyAliases {
		reg.Alias(alias, key)
	}
}
